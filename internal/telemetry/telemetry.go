// Package telemetry reports errors to Sentry when the operator has
// opted in. Everything that leaves the process is scrubbed first:
// URLs are anonymized, hostnames and user data are dropped, and the
// only stable identifier is the random system ID.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/privacy"
)

// sentryActive tracks whether InitSentry completed with an enabled
// client. Captures before that are dropped.
var sentryActive atomic.Bool

// platformInfo holds the privacy-safe platform facts attached to every
// report.
type platformInfo struct {
	OS           string
	Architecture string
	Container    bool
	NumCPU       int
	GoVersion    string
}

func collectPlatformInfo() platformInfo {
	return platformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Container:    conf.RunningInContainer(),
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK when the operator has opted
// in. Disabled settings are not an error; a missing DSN with enabled
// telemetry is.
func InitSentry(settings *conf.Settings) error {
	if !settings.Sentry.Enabled {
		getLogger().Info("error telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		Debug:      false,

		// Stack traces can embed file paths; leave them off.
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",

		Release: fmt.Sprintf("faceroll@%s", settings.Version),

		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	configureScope(settings)
	sentryActive.Store(true)
	InitializeErrorIntegration()

	getLogger().Info("error telemetry initialized",
		"system_id", settings.SystemID,
		"version", settings.Version)
	return nil
}

// applyPrivacyFilters strips everything personal from an outgoing
// event. The message itself was scrubbed by the capture path; this
// removes what the SDK added on its own.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// configureScope tags every future event with the anonymous system ID
// and coarse platform facts.
func configureScope(settings *conf.Settings) {
	info := collectPlatformInfo()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", settings.SystemID)
		scope.SetTag("os", info.OS)
		scope.SetTag("arch", info.Architecture)
		scope.SetTag("container", fmt.Sprintf("%t", info.Container))

		scope.SetContext("application", map[string]any{
			"name":      "faceroll",
			"version":   settings.Version,
			"system_id": settings.SystemID,
		})
		scope.SetContext("platform", map[string]any{
			"os":           info.OS,
			"architecture": info.Architecture,
			"container":    info.Container,
			"num_cpu":      info.NumCPU,
			"go_version":   info.GoVersion,
		})
	})
}

// CaptureError reports an error with its component tag. The message is
// scrubbed before it leaves the process.
func CaptureError(err error, component string) {
	if !sentryActive.Load() {
		return
	}

	scrubbed := privacy.ScrubMessage(err.Error())
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetContext("error", map[string]any{
			"type":             fmt.Sprintf("%T", err),
			"scrubbed_message": scrubbed,
		})
		scope.SetFingerprint([]string{scrubbed, component})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = scrubbed
		event.Exception = []sentry.Exception{{
			Type:  component,
			Value: scrubbed,
		}}
		sentry.CaptureEvent(event)
	})
}

// CaptureMessage reports a plain message at the given level.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !sentryActive.Load() {
		return
	}

	scrubbed := privacy.ScrubMessage(message)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(scrubbed)
	})
}

// Flush drains buffered events before shutdown.
func Flush(timeout time.Duration) {
	if !sentryActive.Load() {
		return
	}
	sentry.Flush(timeout)
}
