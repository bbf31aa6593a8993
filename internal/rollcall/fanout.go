package rollcall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/mqtt"
	"github.com/campuskit/faceroll/internal/notify"
	"github.com/campuskit/faceroll/internal/observability"
	"github.com/campuskit/faceroll/internal/observability/metrics"
	"github.com/campuskit/faceroll/internal/session"
	"github.com/campuskit/faceroll/internal/webhook"
)

// deliveryTimeout bounds one integration delivery, retries included.
const deliveryTimeout = 30 * time.Second

// Fanout hands created attendance records to the enabled
// integrations. Sessions call Created from the frame loop, so every
// delivery runs on its own goroutine under a deadline; failures are
// logged and never reach the caller.
type Fanout struct {
	mqttClient mqtt.Client
	deliverer  *webhook.Deliverer
	notifier   *notify.Notifier

	timeAs24h bool
	logMu     sync.Mutex
	logFile   *os.File

	wg sync.WaitGroup
}

// NewFanout builds the integration targets the settings enable. A
// target that fails to initialize is logged and skipped; attendance
// marking does not depend on any of them.
func NewFanout(ctx context.Context, settings *conf.Settings, m *observability.Metrics) *Fanout {
	f := &Fanout{timeAs24h: settings.Main.TimeAs24h}

	if settings.Realtime.MQTT.Enabled {
		var mqttMetrics *metrics.MQTTMetrics
		if m != nil {
			mqttMetrics = m.MQTT
		}
		client, err := mqtt.NewClient(settings, mqttMetrics)
		if err != nil {
			getLogger().Error("mqtt client disabled", "error", err)
		} else {
			f.mqttClient = client
			f.wg.Go(func() { f.connectMQTT(ctx) })
		}
	}

	if settings.Realtime.Webhook.Enabled {
		var webhookMetrics *metrics.WebhookMetrics
		if m != nil {
			webhookMetrics = m.Webhook
		}
		deliverer, err := webhook.New(settings, webhookMetrics)
		if err != nil {
			getLogger().Error("webhook delivery disabled", "error", err)
		} else {
			f.deliverer = deliverer
		}
	}

	if settings.Realtime.Notification.Enabled {
		var notifyMetrics *metrics.NotificationMetrics
		if m != nil {
			notifyMetrics = m.Notification
		}
		notifier, err := notify.New(settings, notifyMetrics)
		if err != nil {
			getLogger().Error("push notifications disabled", "error", err)
		} else {
			f.notifier = notifier
		}
	}

	if settings.Realtime.Log.Enabled && settings.Realtime.Log.Path != "" {
		if err := f.openEventLog(settings.Realtime.Log.Path); err != nil {
			getLogger().Error("attendance log disabled", "path", settings.Realtime.Log.Path, "error", err)
		}
	}

	return f
}

// connectMQTT attempts the initial broker connection. The client
// reconnects on its own afterwards, so a failure here only delays
// publishing.
func (f *Fanout) connectMQTT(ctx context.Context) {
	connectCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := f.mqttClient.Connect(connectCtx); err != nil {
		getLogger().Warn("initial mqtt connect failed, will retry on publish", "error", err)
	}
}

func (f *Fanout) openEventLog(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.logFile = file
	return nil
}

// Created dispatches one created attendance record to every enabled
// target. It returns immediately; sessions call it from the frame
// loop.
func (f *Fanout) Created(ev session.Event) {
	if f.logFile != nil {
		f.dispatch(func(ctx context.Context) error {
			return f.appendEventLog(ev)
		}, "attendance log", ev)
	}
	if f.mqttClient != nil {
		f.dispatch(func(ctx context.Context) error {
			return f.mqttClient.PublishEvent(ctx, ev)
		}, "mqtt", ev)
	}
	if f.deliverer != nil {
		f.dispatch(func(ctx context.Context) error {
			return f.deliverer.Deliver(ctx, ev)
		}, "webhook", ev)
	}
	if f.notifier != nil {
		f.dispatch(func(ctx context.Context) error {
			return f.notifier.Announce(ctx, ev)
		}, "notification", ev)
	}
}

func (f *Fanout) dispatch(deliver func(context.Context) error, target string, ev session.Event) {
	f.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := deliver(ctx); err != nil {
			getLogger().Warn("integration delivery failed",
				"target", target,
				"reg_no", ev.RegNo,
				"error", err)
		}
	})
}

// appendEventLog writes one human-readable line per mark. The file is
// the operator's plain-text ledger, one writer at a time.
func (f *Fanout) appendEventLog(ev session.Event) error {
	timeLayout := "15:04:05"
	if !f.timeAs24h {
		timeLayout = "03:04:05 PM"
	}
	line := fmt.Sprintf("%s %s  %s (%s)  %.0f%%  %s\n",
		ev.Time.Format(time.DateOnly),
		ev.Time.Format(timeLayout),
		ev.Name,
		ev.RegNo,
		ev.Confidence,
		ev.Mode)

	f.logMu.Lock()
	defer f.logMu.Unlock()
	_, err := f.logFile.WriteString(line)
	return err
}

// Close waits for in-flight deliveries, then releases the targets.
// Deliveries carry deadlines, so the wait is bounded.
func (f *Fanout) Close() {
	f.wg.Wait()

	if f.mqttClient != nil {
		f.mqttClient.Disconnect()
	}
	if f.logFile != nil {
		f.logMu.Lock()
		_ = f.logFile.Close()
		f.logFile = nil
		f.logMu.Unlock()
	}
}
