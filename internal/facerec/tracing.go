// Package facerec - metrics wiring for recognizer operations
package facerec

import (
	"sync"
	"sync/atomic"

	"github.com/campuskit/faceroll/internal/observability/metrics"
)

// Global metrics instance (set by observability package)
var (
	globalMetrics    *metrics.RecognizerMetrics
	metricsMutex     sync.RWMutex
	metricsOnce      sync.Once
	activeOperations atomic.Int64
)

// SetMetrics sets the global metrics instance for recognizer
// operations. Metrics are set once per process lifetime; later calls
// are ignored.
func SetMetrics(m *metrics.RecognizerMetrics) {
	metricsOnce.Do(func() {
		metricsMutex.Lock()
		defer metricsMutex.Unlock()
		globalMetrics = m
	})
}

// getMetrics returns the current metrics instance in a thread-safe
// manner.
func getMetrics() *metrics.RecognizerMetrics {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return globalMetrics
}

// beginOperation tracks an in-flight recognizer call for the active
// processing gauge.
func beginOperation() {
	count := activeOperations.Add(1)
	if m := getMetrics(); m != nil {
		m.SetActiveProcessing(float64(count))
	}
}

// endOperation is the counterpart to beginOperation.
func endOperation() {
	count := activeOperations.Add(-1)
	if m := getMetrics(); m != nil {
		m.SetActiveProcessing(float64(count))
	}
}
