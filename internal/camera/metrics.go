package camera

import (
	"sync"
	"sync/atomic"

	"github.com/campuskit/faceroll/internal/observability/metrics"
)

var (
	cameraMetrics atomic.Pointer[metrics.CameraMetrics]
	metricsOnce   sync.Once
)

// SetMetrics wires the metrics instance used by the capture loop and
// hub. Only the first call takes effect; later calls are ignored.
func SetMetrics(m *metrics.CameraMetrics) {
	metricsOnce.Do(func() {
		cameraMetrics.Store(m)
	})
}

// getMetrics returns the wired metrics instance, or nil when metrics
// are disabled.
func getMetrics() *metrics.CameraMetrics {
	return cameraMetrics.Load()
}
