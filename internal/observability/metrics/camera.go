// Package metrics provides custom Prometheus metrics for capture operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CameraMetrics contains all Prometheus metrics related to frame capture operations.
type CameraMetrics struct {
	DeviceStatus     prometheus.Gauge
	FramesCaptured   prometheus.Counter
	CaptureErrors    prometheus.Counter
	FrameDrops       prometheus.Counter
	HubSwaps         prometheus.Counter
	LastCaptureTime  prometheus.Gauge
	SessionRefsGauge prometheus.Gauge
	CaptureDuration  prometheus.Histogram
	FrameSize        prometheus.Histogram
	registry         *prometheus.Registry
}

// NewCameraMetrics creates a new instance of CameraMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewCameraMetrics(registry *prometheus.Registry) (*CameraMetrics, error) {
	m := &CameraMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize camera metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register camera metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for CameraMetrics.
func (m *CameraMetrics) initMetrics() error {
	m.DeviceStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_device_status",
		Help: "Current capture device status (1 for open, 0 for closed or unavailable)",
	})

	m.FramesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_frames_captured_total",
		Help: "Total number of frames successfully captured",
	})

	m.CaptureErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_capture_errors_total",
		Help: "Total number of frame capture errors",
	})

	m.FrameDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_frame_drops_total",
		Help: "Total number of frames overwritten in the hub before any reader observed them",
	})

	m.HubSwaps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_hub_swaps_total",
		Help: "Total number of frame snapshots published to the hub",
	})

	m.LastCaptureTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_last_capture_time_seconds",
		Help: "Timestamp of the last successful frame capture",
	})

	m.SessionRefsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_session_refs",
		Help: "Number of sessions currently holding the capture source open",
	})

	m.CaptureDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camera_capture_duration_seconds",
		Help:    "Time taken to grab a single frame from the device",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	m.FrameSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camera_frame_size_bytes",
		Help:    "Size of captured frames in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount12),
	})

	return nil
}

// UpdateDeviceStatus updates the capture device status and last capture time.
// It should be called when the device state changes.
func (m *CameraMetrics) UpdateDeviceStatus(open bool) {
	if open {
		m.DeviceStatus.Set(1)
	} else {
		m.DeviceStatus.Set(0)
	}
}

// IncrementFramesCaptured increments the count of successfully captured frames.
func (m *CameraMetrics) IncrementFramesCaptured() {
	m.FramesCaptured.Inc()
	m.LastCaptureTime.SetToCurrentTime()
}

// IncrementCaptureErrors increments the count of capture errors.
func (m *CameraMetrics) IncrementCaptureErrors() {
	m.CaptureErrors.Inc()
}

// IncrementFrameDrops increments the count of dropped frames.
func (m *CameraMetrics) IncrementFrameDrops() {
	m.FrameDrops.Inc()
}

// IncrementHubSwaps increments the count of published frame snapshots.
func (m *CameraMetrics) IncrementHubSwaps() {
	m.HubSwaps.Inc()
}

// SetSessionRefs sets the number of sessions holding the source open.
func (m *CameraMetrics) SetSessionRefs(refs int) {
	m.SessionRefsGauge.Set(float64(refs))
}

// ObserveCaptureDuration records the duration of a single frame grab.
func (m *CameraMetrics) ObserveCaptureDuration(durationSeconds float64) {
	m.CaptureDuration.Observe(durationSeconds)
}

// ObserveFrameSize records the size of a captured frame.
func (m *CameraMetrics) ObserveFrameSize(sizeBytes float64) {
	m.FrameSize.Observe(sizeBytes)
}

// StartCaptureTimer starts a timer for measuring capture duration.
// It returns a CaptureTimer that should be used to record the duration.
func (m *CameraMetrics) StartCaptureTimer() *CaptureTimer {
	return &CaptureTimer{
		startTime: time.Now(),
		metrics:   m,
	}
}

// CaptureTimer is a helper struct for measuring capture duration.
type CaptureTimer struct {
	startTime time.Time
	metrics   *CameraMetrics
}

// ObserveDuration stops the timer and records the duration.
func (ct *CaptureTimer) ObserveDuration() {
	duration := time.Since(ct.startTime).Seconds()
	ct.metrics.ObserveCaptureDuration(duration)
}

// Collect implements the prometheus.Collector interface.
func (m *CameraMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.DeviceStatus
	ch <- m.FramesCaptured
	ch <- m.CaptureErrors
	ch <- m.FrameDrops
	ch <- m.HubSwaps
	ch <- m.LastCaptureTime
	ch <- m.SessionRefsGauge
	ch <- m.CaptureDuration
	ch <- m.FrameSize
}

// Describe implements the prometheus.Collector interface.
func (m *CameraMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.DeviceStatus.Desc()
	ch <- m.FramesCaptured.Desc()
	ch <- m.CaptureErrors.Desc()
	ch <- m.FrameDrops.Desc()
	ch <- m.HubSwaps.Desc()
	ch <- m.LastCaptureTime.Desc()
	ch <- m.SessionRefsGauge.Desc()
	ch <- m.CaptureDuration.Desc()
	ch <- m.FrameSize.Desc()
}
