package qrscan

import (
	"log/slog"
	"sync"

	"github.com/campuskit/faceroll/internal/logging"
)

var (
	serviceLogger *slog.Logger
	loggerOnce    sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logging.ForService("qrscan")
		if serviceLogger == nil {
			serviceLogger = slog.Default().With("service", "qrscan")
		}
	})
	return serviceLogger
}
