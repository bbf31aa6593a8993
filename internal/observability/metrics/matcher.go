// Package metrics provides matcher metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MatcherMetrics contains Prometheus metrics for candidate matching operations
type MatcherMetrics struct {
	registry *prometheus.Registry

	// Scan metrics
	scansTotal       *prometheus.CounterVec
	scanDuration     *prometheus.HistogramVec
	comparisonsTotal prometheus.Counter

	// Match outcome metrics
	matchesTotal      *prometheus.CounterVec
	distanceHistogram *prometheus.HistogramVec
	confidenceGauge   prometheus.Gauge

	// Candidate set metrics
	candidateSetSize *prometheus.HistogramVec
	emptySetTotal    prometheus.Counter

	// Multi-face frame metrics
	downscaledFramesTotal prometheus.Counter
	skippedFramesTotal    prometheus.Counter

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewMatcherMetrics creates and registers new matcher metrics
func NewMatcherMetrics(registry *prometheus.Registry) (*MatcherMetrics, error) {
	m := &MatcherMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *MatcherMetrics) initMetrics() error {
	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_scans_total",
			Help: "Total number of candidate scans",
		},
		[]string{"mode", "status"}, // mode: verify, open, group; status: success, error
	)

	m.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matcher_scan_duration_seconds",
			Help:    "Time taken to scan the candidate list for one face",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12), // 0.1ms to ~400ms
		},
		[]string{"mode"},
	)

	m.comparisonsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_comparisons_total",
		Help: "Total number of embedding distance comparisons",
	})

	m.matchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_matches_total",
			Help: "Total number of match decisions",
		},
		[]string{"outcome"}, // outcome: match, no_match
	)

	m.distanceHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matcher_best_distance",
			Help:    "Best embedding distance found per scanned face",
			Buckets: prometheus.LinearBuckets(0, 0.05, 20), // 0.0 to 1.0
		},
		[]string{"outcome"},
	)

	m.confidenceGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matcher_last_confidence_percent",
		Help: "Confidence of the most recent match in percent",
	})

	m.candidateSetSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matcher_candidate_set_size",
			Help:    "Number of candidates scanned per face",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"mode"},
	)

	m.emptySetTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_empty_candidate_sets_total",
		Help: "Total number of scans short-circuited because the candidate list was empty",
	})

	m.downscaledFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_downscaled_frames_total",
		Help: "Total number of frames processed at reduced resolution",
	})

	m.skippedFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_skipped_frames_total",
		Help: "Total number of frames skipped by the frame stride",
	})

	// Initialize collectors slice with all metrics
	m.collectors = []prometheus.Collector{
		m.scansTotal,
		m.scanDuration,
		m.comparisonsTotal,
		m.matchesTotal,
		m.distanceHistogram,
		m.confidenceGauge,
		m.candidateSetSize,
		m.emptySetTotal,
		m.downscaledFramesTotal,
		m.skippedFramesTotal,
	}

	return nil
}

// Describe implements the Collector interface
func (m *MatcherMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *MatcherMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordScan records a candidate scan
func (m *MatcherMetrics) RecordScan(mode, status string) {
	m.scansTotal.WithLabelValues(mode, status).Inc()
}

// RecordScanDuration records the duration of a candidate scan
func (m *MatcherMetrics) RecordScanDuration(mode string, duration float64) {
	m.scanDuration.WithLabelValues(mode).Observe(duration)
}

// AddComparisons adds to the running count of distance comparisons
func (m *MatcherMetrics) AddComparisons(count int) {
	m.comparisonsTotal.Add(float64(count))
}

// RecordMatchOutcome records a match decision with its best distance
func (m *MatcherMetrics) RecordMatchOutcome(matched bool, bestDistance float64) {
	outcome := "no_match"
	if matched {
		outcome = "match"
	}
	m.matchesTotal.WithLabelValues(outcome).Inc()
	m.distanceHistogram.WithLabelValues(outcome).Observe(bestDistance)
}

// SetLastConfidence sets the confidence of the most recent match
func (m *MatcherMetrics) SetLastConfidence(percent float64) {
	m.confidenceGauge.Set(percent)
}

// RecordCandidateSetSize records the number of candidates scanned
func (m *MatcherMetrics) RecordCandidateSetSize(mode string, size int) {
	m.candidateSetSize.WithLabelValues(mode).Observe(float64(size))
}

// IncrementEmptySet increments the empty candidate set counter
func (m *MatcherMetrics) IncrementEmptySet() {
	m.emptySetTotal.Inc()
}

// IncrementDownscaledFrames increments the downscaled frame counter
func (m *MatcherMetrics) IncrementDownscaledFrames() {
	m.downscaledFramesTotal.Inc()
}

// IncrementSkippedFrames increments the skipped frame counter
func (m *MatcherMetrics) IncrementSkippedFrames() {
	m.skippedFramesTotal.Inc()
}
