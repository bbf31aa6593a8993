// Package notify pushes attendance announcements to external services
// through shoutrrr URLs (telegram, gotify, ntfy and the rest).
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/containrrr/shoutrrr"
	stypes "github.com/containrrr/shoutrrr/pkg/types"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/observability/metrics"
	"github.com/campuskit/faceroll/internal/privacy"
	"github.com/campuskit/faceroll/internal/session"
)

// ComponentNotify is the component name used in error reports.
const ComponentNotify = "notify"

const (
	providerName   = "shoutrrr"
	typeAttendance = "attendance"

	// sendTimeout bounds one router send across all services.
	sendTimeout = 10 * time.Second
)

// sender is the slice of the shoutrrr router the notifier uses, so
// tests can capture sends.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier announces created attendance records to configured push
// services.
type Notifier struct {
	title   string
	sender  sender
	metrics *metrics.NotificationMetrics
}

// New validates the notification settings, builds the shared shoutrrr
// router and returns a ready Notifier. The metrics parameter may be
// nil.
func New(settings *conf.Settings, m *metrics.NotificationMetrics) (*Notifier, error) {
	cfg := settings.Realtime.Notification
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("notifications enabled but no service URLs configured").
			Component(ComponentNotify).
			Category(errors.CategoryValidation).
			Build()
	}

	router, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		// Service URLs embed tokens; scrub before the error leaves.
		return nil, errors.New(privacy.WrapError(err)).
			Component(ComponentNotify).
			Category(errors.CategoryValidation).
			Context("operation", "create_sender").
			Context("url_count", len(cfg.URLs)).
			Build()
	}
	router.Timeout = sendTimeout
	router.SetLogger(log.New(io.Discard, "", 0))

	title := strings.TrimSpace(settings.Main.Name)
	if title == "" {
		title = "faceroll"
	}

	n := &Notifier{title: title, sender: router, metrics: m}
	if m != nil {
		m.UpdateHealthStatus(providerName, true)
	}
	getLogger().Info("push notifications configured", "services", len(cfg.URLs))
	return n, nil
}

// Announce pushes one "marked present" message. Callers announce
// created records only; already-marked outcomes stay quiet.
func (n *Notifier) Announce(ctx context.Context, ev session.Event) error {
	_ = ctx // the router applies its own timeout per service

	body := announcementBody(ev)
	params := stypes.Params{}
	params.SetTitle(n.title)

	start := time.Now()
	err := firstError(n.sender.Send(body, &params))
	if n.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		n.metrics.RecordDelivery(providerName, typeAttendance, status, time.Since(start))
	}
	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordDeliveryError(providerName, typeAttendance, "send_failed")
		}
		return errors.New(privacy.WrapError(err)).
			Component(ComponentNotify).
			Category(errors.CategoryNotification).
			Context("operation", "send_announcement").
			Context("reg_no", ev.RegNo).
			Build()
	}

	getLogger().Debug("announcement delivered",
		"reg_no", ev.RegNo,
		"confidence", ev.Confidence)
	return nil
}

// announcementBody renders the push message for one record. The name
// leads when the roster carries one; the registration number stands in
// otherwise.
func announcementBody(ev session.Event) string {
	who := ev.Name
	if who == "" {
		who = ev.RegNo
	}
	return fmt.Sprintf("%s marked present, %.0f%%", who, ev.Confidence)
}

// firstError returns the first non-nil error from a router send.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
