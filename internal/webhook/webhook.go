// Package webhook posts attendance records to external HTTP endpoints.
//
// Each created record is serialized once and posted to every configured
// URL. Endpoints fail independently, transient failures retry with a
// linear backoff, and a shared rate limiter keeps a burst of
// confirmations from flooding a receiver.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/observability/metrics"
	"github.com/campuskit/faceroll/internal/session"
)

// ComponentWebhook is the component name used in error reports.
const ComponentWebhook = "webhook"

const (
	// defaultTimeout bounds a single POST when the settings carry none.
	defaultTimeout = 10 * time.Second

	// retryBaseDelay is multiplied by the attempt number between retries.
	retryBaseDelay = 500 * time.Millisecond

	// The shared limiter admits limitPerSecond deliveries per second and
	// tolerates a burst of limitBurst when an open session confirms
	// several people in the same frame.
	limitPerSecond = 5
	limitBurst     = 10
)

// Deliverer posts attendance records to the configured endpoints.
type Deliverer struct {
	urls       []string
	retries    int
	retryDelay time.Duration
	client     *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.WebhookMetrics
}

// New validates the webhook settings and returns a ready Deliverer.
// The metrics parameter may be nil.
func New(settings *conf.Settings, m *metrics.WebhookMetrics) (*Deliverer, error) {
	cfg := settings.Realtime.Webhook
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("webhook enabled but no URLs configured").
			Component(ComponentWebhook).
			Category(errors.CategoryValidation).
			Build()
	}
	for _, raw := range cfg.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.Newf("invalid webhook URL: %s", raw).
				Component(ComponentWebhook).
				Category(errors.CategoryValidation).
				Context("url", raw).
				Build()
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := max(cfg.Retries, 0)

	d := &Deliverer{
		urls:       cfg.URLs,
		retries:    retries,
		retryDelay: retryBaseDelay,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(limitPerSecond), limitBurst),
		metrics:    m,
	}
	if m != nil {
		m.SetEndpointCount(len(cfg.URLs))
	}
	getLogger().Info("webhook delivery configured",
		"endpoints", len(cfg.URLs),
		"timeout", timeout,
		"retries", retries)
	return d, nil
}

// Deliver posts the record to every configured endpoint. Endpoints fail
// independently; the returned error joins the per-endpoint failures.
func (d *Deliverer) Deliver(ctx context.Context, ev session.Event) error {
	payload, err := json.Marshal(&ev)
	if err != nil {
		return errors.New(err).
			Component(ComponentWebhook).
			Category(errors.CategoryWebhook).
			Context("operation", "marshal_record").
			Build()
	}
	if d.metrics != nil {
		d.metrics.ObservePayloadSize(float64(len(payload)))
	}

	var failures []error
	for _, endpoint := range d.urls {
		if err := d.deliverOne(ctx, endpoint, payload); err != nil {
			getLogger().Error("webhook delivery failed",
				"url", endpoint,
				"reg_no", ev.RegNo,
				"error", err)
			failures = append(failures, err)
			continue
		}
		getLogger().Debug("webhook delivered",
			"url", endpoint,
			"reg_no", ev.RegNo,
			"payload_bytes", len(payload))
	}
	return errors.Join(failures...)
}

// deliverOne posts the payload to a single endpoint, retrying transient
// failures with a linear backoff.
func (d *Deliverer) deliverOne(ctx context.Context, endpoint string, payload []byte) error {
	attempts := d.retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if !d.limiter.Allow() {
			if d.metrics != nil {
				d.metrics.IncrementRateLimited()
			}
			if err := d.limiter.Wait(ctx); err != nil {
				return errors.New(err).
					Component(ComponentWebhook).
					Category(errors.CategoryWebhook).
					Context("operation", "rate_limiter_wait").
					Context("url", endpoint).
					Build()
			}
		}

		start := time.Now()
		err := d.post(ctx, endpoint, payload)
		if d.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			d.metrics.RecordDelivery(status, time.Since(start))
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			return lastErr
		}
		if attempt < attempts-1 {
			if d.metrics != nil {
				d.metrics.IncrementRetries()
			}
			delay := time.Duration(attempt+1) * d.retryDelay
			getLogger().Warn("webhook request failed, retrying",
				"url", endpoint,
				"attempt", attempt+1,
				"max_attempts", attempts,
				"delay_ms", delay.Milliseconds(),
				"error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}

// post performs one POST and classifies the response.
func (d *Deliverer) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.New(err).
			Component(ComponentWebhook).
			Category(errors.CategoryValidation).
			Context("operation", "build_request").
			Context("url", endpoint).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "faceroll")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component(ComponentWebhook).
			Category(errors.CategoryWebhook).
			Context("operation", "post_record").
			Context("url", endpoint).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Newf("webhook endpoint returned status %d", resp.StatusCode).
			Component(ComponentWebhook).
			Category(errors.CategoryWebhook).
			Context("operation", "post_record").
			Context("url", endpoint).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}

// isRetryable reports whether a delivery failure is worth another
// attempt. Client errors are final; 429 and server errors are
// transient, as are network failures that never produced a status.
func isRetryable(err error) bool {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		if statusCode, ok := enhanced.Context["status_code"].(int); ok {
			if statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests {
				return false
			}
		}
	}
	return true
}
