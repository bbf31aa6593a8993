// Package metrics provides recognition session metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics contains Prometheus metrics for recognition session operations
type SessionMetrics struct {
	registry *prometheus.Registry

	// Session lifecycle metrics
	sessionsStartedTotal *prometheus.CounterVec
	sessionsStoppedTotal *prometheus.CounterVec
	sessionDuration      *prometheus.HistogramVec
	activeSessionsGauge  *prometheus.GaugeVec

	// Frame evaluation metrics
	framesEvaluatedTotal *prometheus.CounterVec

	// Confirmation tracking metrics
	counterIncrementsTotal *prometheus.CounterVec
	counterDecrementsTotal *prometheus.CounterVec
	counterResetsTotal     *prometheus.CounterVec
	confirmationsTotal     *prometheus.CounterVec

	// Commit metrics
	commitResultsTotal *prometheus.CounterVec
	markedTodayGauge   prometheus.Gauge

	// Group switch metrics
	groupSwitchesTotal prometheus.Counter

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewSessionMetrics creates and registers new session metrics
func NewSessionMetrics(registry *prometheus.Registry) (*SessionMetrics, error) {
	m := &SessionMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *SessionMetrics) initMetrics() error {
	m.sessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_started_total",
			Help: "Total number of recognition sessions started",
		},
		[]string{"mode"}, // mode: verify, open, group
	)

	m.sessionsStoppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_stopped_total",
			Help: "Total number of recognition sessions stopped",
		},
		[]string{"mode", "reason"}, // reason: confirmed, cancelled, error
	)

	m.sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_duration_seconds",
			Help:    "Lifetime of recognition sessions",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15), // 100ms to ~54min
		},
		[]string{"mode"},
	)

	m.activeSessionsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_active",
			Help: "Number of currently active recognition sessions",
		},
		[]string{"mode"},
	)

	m.framesEvaluatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_frames_evaluated_total",
			Help: "Total number of frames evaluated by sessions",
		},
		[]string{"mode"},
	)

	m.counterIncrementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_counter_increments_total",
			Help: "Total number of confirmation counter increments",
		},
		[]string{"mode"},
	)

	m.counterDecrementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_counter_decrements_total",
			Help: "Total number of confirmation counter decrements",
		},
		[]string{"mode"},
	)

	m.counterResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_counter_resets_total",
			Help: "Total number of confirmation counter resets",
		},
		[]string{"mode", "reason"}, // reason: confirmed, group_switch, reload
	)

	m.confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_confirmations_total",
			Help: "Total number of identities that reached the confirmation threshold",
		},
		[]string{"mode"},
	)

	m.commitResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_commit_results_total",
			Help: "Total number of attendance commit outcomes",
		},
		[]string{"result"}, // result: created, already_marked, error
	)

	m.markedTodayGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_marked_today",
		Help: "Number of identities confirmed so far today",
	})

	m.groupSwitchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_group_switches_total",
		Help: "Total number of group switches in subset sessions",
	})

	// Initialize collectors slice with all metrics
	m.collectors = []prometheus.Collector{
		m.sessionsStartedTotal,
		m.sessionsStoppedTotal,
		m.sessionDuration,
		m.activeSessionsGauge,
		m.framesEvaluatedTotal,
		m.counterIncrementsTotal,
		m.counterDecrementsTotal,
		m.counterResetsTotal,
		m.confirmationsTotal,
		m.commitResultsTotal,
		m.markedTodayGauge,
		m.groupSwitchesTotal,
	}

	return nil
}

// Describe implements the Collector interface
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSessionStart records a session start and updates the active gauge
func (m *SessionMetrics) RecordSessionStart(mode string) {
	m.sessionsStartedTotal.WithLabelValues(mode).Inc()
	m.activeSessionsGauge.WithLabelValues(mode).Inc()
}

// RecordSessionStop records a session stop with its reason and lifetime
func (m *SessionMetrics) RecordSessionStop(mode, reason string, durationSeconds float64) {
	m.sessionsStoppedTotal.WithLabelValues(mode, reason).Inc()
	m.sessionDuration.WithLabelValues(mode).Observe(durationSeconds)
	m.activeSessionsGauge.WithLabelValues(mode).Dec()
}

// RecordFrameEvaluated records one evaluated frame
func (m *SessionMetrics) RecordFrameEvaluated(mode string) {
	m.framesEvaluatedTotal.WithLabelValues(mode).Inc()
}

// RecordCounterIncrement records a confirmation counter increment
func (m *SessionMetrics) RecordCounterIncrement(mode string) {
	m.counterIncrementsTotal.WithLabelValues(mode).Inc()
}

// RecordCounterDecrement records a confirmation counter decrement
func (m *SessionMetrics) RecordCounterDecrement(mode string) {
	m.counterDecrementsTotal.WithLabelValues(mode).Inc()
}

// RecordCounterReset records a confirmation counter reset
func (m *SessionMetrics) RecordCounterReset(mode, reason string) {
	m.counterResetsTotal.WithLabelValues(mode, reason).Inc()
}

// RecordConfirmation records an identity reaching the confirmation threshold
func (m *SessionMetrics) RecordConfirmation(mode string) {
	m.confirmationsTotal.WithLabelValues(mode).Inc()
}

// RecordCommitResult records the outcome of an attendance commit
func (m *SessionMetrics) RecordCommitResult(result string) {
	m.commitResultsTotal.WithLabelValues(result).Inc()
}

// SetMarkedToday sets the number of identities confirmed today
func (m *SessionMetrics) SetMarkedToday(count int) {
	m.markedTodayGauge.Set(float64(count))
}

// IncrementGroupSwitches increments the group switch counter
func (m *SessionMetrics) IncrementGroupSwitches() {
	m.groupSwitchesTotal.Inc()
}
