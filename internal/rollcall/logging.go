package rollcall

import (
	"log/slog"
	"sync"

	"github.com/campuskit/faceroll/internal/logging"
)

var (
	serviceLogger *slog.Logger
	loggerOnce    sync.Once
)

// getLogger returns the rollcall service logger, falling back to the
// default slog logger when structured logging has not been
// initialized.
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logging.ForService("rollcall")
		if serviceLogger == nil {
			serviceLogger = slog.Default().With("service", "rollcall")
		}
	})
	return serviceLogger
}
