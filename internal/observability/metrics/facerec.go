// Package metrics provides custom Prometheus metrics for the FaceRoll application.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RecognizerMetrics contains all Prometheus metrics related to face recognizer operations.
type RecognizerMetrics struct {
	MatchCounter     *prometheus.CounterVec
	ProcessTimeGauge prometheus.Gauge

	// Performance metrics
	DetectionDuration *prometheus.HistogramVec
	EmbeddingDuration *prometheus.HistogramVec
	FrameDuration     *prometheus.HistogramVec

	// Operation counters
	DetectionTotal  *prometheus.CounterVec
	DetectionErrors *prometheus.CounterVec
	EmbeddingTotal  *prometheus.CounterVec
	EmbeddingErrors *prometheus.CounterVec
	ModelLoadTotal  *prometheus.CounterVec
	ModelLoadErrors *prometheus.CounterVec

	// Current state gauges
	FacesPerFrameGauge    prometheus.Gauge
	ActiveProcessingGauge prometheus.Gauge
	ModelLoadedGauge      prometheus.Gauge

	registry *prometheus.Registry
}

// NewRecognizerMetrics creates a new instance of RecognizerMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewRecognizerMetrics(registry *prometheus.Registry) (*RecognizerMetrics, error) {
	m := &RecognizerMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize recognizer metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register recognizer metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for RecognizerMetrics.
func (m *RecognizerMetrics) initMetrics() error {
	m.MatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_matches",
			Help: "Total number of face matches partitioned by person identifier.",
		},
		[]string{"person"},
	)
	m.ProcessTimeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerec_processing_time_milliseconds",
			Help: "Most recent processing time for a recognition frame in milliseconds.",
		},
	)

	// Performance histograms
	m.DetectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facerec_detection_duration_seconds",
			Help:    "Time taken to detect faces in a frame",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10), // 1ms to ~1s
		},
		[]string{"model"},
	)

	m.EmbeddingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facerec_embedding_duration_seconds",
			Help:    "Time taken to compute a face embedding",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"model"},
	)

	m.FrameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facerec_frame_duration_seconds",
			Help:    "Time taken to fully process a recognition frame",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"model"},
	)

	// Operation counters
	m.DetectionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_detections_total",
			Help: "Total number of detection requests",
		},
		[]string{"model", "status"},
	)

	m.DetectionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_detection_errors_total",
			Help: "Total number of detection errors",
		},
		[]string{"model", "error_type"},
	)

	m.EmbeddingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_embeddings_total",
			Help: "Total number of embedding computations",
		},
		[]string{"model", "status"},
	)

	m.EmbeddingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_embedding_errors_total",
			Help: "Total number of embedding errors",
		},
		[]string{"model", "error_type"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"model", "status"},
	)

	m.ModelLoadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerec_model_load_errors_total",
			Help: "Total number of model load errors",
		},
		[]string{"model", "error_type"},
	)

	// State gauges
	m.FacesPerFrameGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerec_faces_per_frame",
			Help: "Number of faces detected in the most recent frame",
		},
	)

	m.ActiveProcessingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerec_active_processing",
			Help: "Number of currently active processing operations",
		},
	)

	m.ModelLoadedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerec_model_loaded",
			Help: "Whether the recognition models are currently loaded (1) or not (0)",
		},
	)

	return nil
}

// IncrementMatchCounter increments the match counter for a given person identifier.
// It should be called each time the matcher confirms a candidate.
func (m *RecognizerMetrics) IncrementMatchCounter(person string) {
	m.MatchCounter.WithLabelValues(person).Inc()
}

// SetProcessTime sets the most recent processing time for a recognition frame.
func (m *RecognizerMetrics) SetProcessTime(milliseconds float64) {
	m.ProcessTimeGauge.Set(milliseconds)
}

// RecordDetection records metrics for a detection operation
func (m *RecognizerMetrics) RecordDetection(model string, durationSeconds float64, faceCount int, err error) {
	if err != nil {
		m.DetectionTotal.WithLabelValues(model, "error").Inc()
		m.DetectionErrors.WithLabelValues(model, categorizeError(err)).Inc()
	} else {
		m.DetectionTotal.WithLabelValues(model, "success").Inc()
		m.DetectionDuration.WithLabelValues(model).Observe(durationSeconds)
		m.FacesPerFrameGauge.Set(float64(faceCount))
	}
}

// RecordEmbedding records metrics for an embedding computation
func (m *RecognizerMetrics) RecordEmbedding(model string, durationSeconds float64, err error) {
	if err != nil {
		m.EmbeddingTotal.WithLabelValues(model, "error").Inc()
		m.EmbeddingErrors.WithLabelValues(model, categorizeError(err)).Inc()
	} else {
		m.EmbeddingTotal.WithLabelValues(model, "success").Inc()
		m.EmbeddingDuration.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordFrameProcess records metrics for full frame processing
func (m *RecognizerMetrics) RecordFrameProcess(model string, durationSeconds float64) {
	m.FrameDuration.WithLabelValues(model).Observe(durationSeconds)
	m.ProcessTimeGauge.Set(durationSeconds * MillisecondsPerSecond)
}

// RecordModelLoad records metrics for model loading operations
func (m *RecognizerMetrics) RecordModelLoad(model string, err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(model, "error").Inc()
		m.ModelLoadErrors.WithLabelValues(model, categorizeError(err)).Inc()
		m.ModelLoadedGauge.Set(0)
	} else {
		m.ModelLoadTotal.WithLabelValues(model, "success").Inc()
		m.ModelLoadedGauge.Set(1)
	}
}

// SetActiveProcessing sets the number of active processing operations
func (m *RecognizerMetrics) SetActiveProcessing(count float64) {
	m.ActiveProcessingGauge.Set(count)
}

// RecordOperation implements the Recorder interface.
func (m *RecognizerMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpDetection:
		m.DetectionTotal.WithLabelValues(LabelDlib, status).Inc()
	case OpEmbedding:
		m.EmbeddingTotal.WithLabelValues(LabelDlib, status).Inc()
	case OpModelLoad:
		m.ModelLoadTotal.WithLabelValues(LabelDlib, status).Inc()
	}
}

// RecordDuration implements the Recorder interface.
func (m *RecognizerMetrics) RecordDuration(operation string, seconds float64) {
	switch operation {
	case OpDetection:
		m.DetectionDuration.WithLabelValues(LabelDlib).Observe(seconds)
	case OpEmbedding:
		m.EmbeddingDuration.WithLabelValues(LabelDlib).Observe(seconds)
	case OpFrameProcess:
		m.FrameDuration.WithLabelValues(LabelDlib).Observe(seconds)
	}
}

// RecordError implements the Recorder interface.
func (m *RecognizerMetrics) RecordError(operation, errorType string) {
	switch operation {
	case OpDetection:
		m.DetectionErrors.WithLabelValues(LabelDlib, errorType).Inc()
		m.DetectionTotal.WithLabelValues(LabelDlib, "error").Inc()
	case OpEmbedding:
		m.EmbeddingErrors.WithLabelValues(LabelDlib, errorType).Inc()
		m.EmbeddingTotal.WithLabelValues(LabelDlib, "error").Inc()
	case OpModelLoad:
		m.ModelLoadErrors.WithLabelValues(LabelDlib, errorType).Inc()
		m.ModelLoadTotal.WithLabelValues(LabelDlib, "error").Inc()
	}
}

// categorizeError returns a category string for the error type
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	// Simple categorization based on error message
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "model"):
		return "model_error"
	case strings.Contains(errStr, "image"):
		return "image_error"
	case strings.Contains(errStr, "face"):
		return "face_error"
	case strings.Contains(errStr, "file"):
		return "file_error"
	default:
		return "unknown"
	}
}

// Describe implements the prometheus.Collector interface.
func (m *RecognizerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.MatchCounter.Describe(ch)
	ch <- m.ProcessTimeGauge.Desc()

	// Performance metrics
	m.DetectionDuration.Describe(ch)
	m.EmbeddingDuration.Describe(ch)
	m.FrameDuration.Describe(ch)

	// Operation counters
	m.DetectionTotal.Describe(ch)
	m.DetectionErrors.Describe(ch)
	m.EmbeddingTotal.Describe(ch)
	m.EmbeddingErrors.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.ModelLoadErrors.Describe(ch)

	// State gauges
	ch <- m.FacesPerFrameGauge.Desc()
	ch <- m.ActiveProcessingGauge.Desc()
	ch <- m.ModelLoadedGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *RecognizerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.MatchCounter.Collect(ch)
	ch <- m.ProcessTimeGauge

	// Performance metrics
	m.DetectionDuration.Collect(ch)
	m.EmbeddingDuration.Collect(ch)
	m.FrameDuration.Collect(ch)

	// Operation counters
	m.DetectionTotal.Collect(ch)
	m.DetectionErrors.Collect(ch)
	m.EmbeddingTotal.Collect(ch)
	m.EmbeddingErrors.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.ModelLoadErrors.Collect(ch)

	// State gauges
	ch <- m.FacesPerFrameGauge
	ch <- m.ActiveProcessingGauge
	ch <- m.ModelLoadedGauge
}
