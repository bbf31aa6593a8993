package mqtt

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
		serviceLogger = logging.ForService("mqtt")
		if serviceLogger == nil {
			serviceLogger = slog.Default().With("service", "mqtt")
		}
	})
	return serviceLogger
}
