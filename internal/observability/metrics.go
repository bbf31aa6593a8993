// Package observability provides metrics and monitoring capabilities for the FaceRoll application.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Camera       *metrics.CameraMetrics
	Recognizer   *metrics.RecognizerMetrics
	Matcher      *metrics.MatcherMetrics
	Session      *metrics.SessionMetrics
	Datastore    *metrics.DatastoreMetrics
	MQTT         *metrics.MQTTMetrics
	Webhook      *metrics.WebhookMetrics
	Notification *metrics.NotificationMetrics
	HTTP         *metrics.HTTPMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	cameraMetrics, err := metrics.NewCameraMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Camera metrics: %w", err)
	}

	recognizerMetrics, err := metrics.NewRecognizerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Recognizer metrics: %w", err)
	}

	matcherMetrics, err := metrics.NewMatcherMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matcher metrics: %w", err)
	}

	sessionMetrics, err := metrics.NewSessionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Session metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	webhookMetrics, err := metrics.NewWebhookMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Webhook metrics: %w", err)
	}

	notificationMetrics, err := metrics.NewNotificationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Notification metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	m := &Metrics{
		registry:     registry,
		Camera:       cameraMetrics,
		Recognizer:   recognizerMetrics,
		Matcher:      matcherMetrics,
		Session:      sessionMetrics,
		Datastore:    datastoreMetrics,
		MQTT:         mqttMetrics,
		Webhook:      webhookMetrics,
		Notification: notificationMetrics,
		HTTP:         httpMetrics,
	}

	// Initialize recognizer tracing with metrics
	initializeTracing(recognizerMetrics)

	// Initialize camera capture with metrics
	camera.SetMetrics(cameraMetrics)

	return m, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// Handler exposes the metrics endpoint for mounting on another
// server, such as the operator web API.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}

// initializeTracing sets up the recognizer tracing system with metrics
func initializeTracing(recognizerMetrics *metrics.RecognizerMetrics) {
	facerec.SetMetrics(recognizerMetrics)
}
