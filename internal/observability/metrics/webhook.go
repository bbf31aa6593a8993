// Package metrics provides custom Prometheus metrics for webhook delivery.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics contains all Prometheus metrics related to webhook delivery.
type WebhookMetrics struct {
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	RetriesTotal     prometheus.Counter
	RateLimitedTotal prometheus.Counter
	PayloadSize      prometheus.Histogram
	EndpointsGauge   prometheus.Gauge
	registry         *prometheus.Registry
}

// NewWebhookMetrics creates a new instance of WebhookMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewWebhookMetrics(registry *prometheus.Registry) (*WebhookMetrics, error) {
	m := &WebhookMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize webhook metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register webhook metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for WebhookMetrics.
func (m *WebhookMetrics) initMetrics() error {
	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"status"}, // status: success, error, timeout
	)

	m.DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Time taken for webhook deliveries",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10), // 10ms to ~10s
		},
		[]string{"status"},
	)

	m.RetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_retries_total",
		Help: "Total number of webhook delivery retries",
	})

	m.RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_rate_limited_total",
		Help: "Total number of deliveries delayed by the rate limiter",
	})

	m.PayloadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_payload_size_bytes",
		Help:    "Size of webhook payloads in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})

	m.EndpointsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_endpoints_configured",
		Help: "Number of configured webhook endpoints",
	})

	return nil
}

// RecordDelivery records a webhook delivery attempt with its outcome and duration.
func (m *WebhookMetrics) RecordDelivery(status string, duration time.Duration) {
	m.DeliveriesTotal.WithLabelValues(status).Inc()
	m.DeliveryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncrementRetries increments the retry counter.
func (m *WebhookMetrics) IncrementRetries() {
	m.RetriesTotal.Inc()
}

// IncrementRateLimited increments the rate limited counter.
func (m *WebhookMetrics) IncrementRateLimited() {
	m.RateLimitedTotal.Inc()
}

// ObservePayloadSize records the size of a webhook payload.
func (m *WebhookMetrics) ObservePayloadSize(sizeBytes float64) {
	m.PayloadSize.Observe(sizeBytes)
}

// SetEndpointCount sets the number of configured endpoints.
func (m *WebhookMetrics) SetEndpointCount(count int) {
	m.EndpointsGauge.Set(float64(count))
}

// Collect implements the prometheus.Collector interface.
func (m *WebhookMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	ch <- m.RetriesTotal
	ch <- m.RateLimitedTotal
	ch <- m.PayloadSize
	ch <- m.EndpointsGauge
}

// Describe implements the prometheus.Collector interface.
func (m *WebhookMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	ch <- m.RetriesTotal.Desc()
	ch <- m.RateLimitedTotal.Desc()
	ch <- m.PayloadSize.Desc()
	ch <- m.EndpointsGauge.Desc()
}
