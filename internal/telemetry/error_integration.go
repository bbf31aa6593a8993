// Package telemetry - integration with the error handling system
package telemetry

import (
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/privacy"
)

// InitializeErrorIntegration points the error package at Sentry when
// the operator has opted in, and installs the privacy scrubber either
// way so enhanced error messages never carry raw URLs.
func InitializeErrorIntegration() {
	settings := conf.GetSettings()
	enabled := settings != nil && settings.Sentry.Enabled

	errors.SetTelemetryReporter(errors.NewSentryReporter(enabled))
	errors.SetPrivacyScrubber(privacy.ScrubMessage)
}

// UpdateErrorIntegration swaps the reporter when the telemetry setting
// changes at runtime.
func UpdateErrorIntegration(enabled bool) {
	errors.SetTelemetryReporter(errors.NewSentryReporter(enabled))
}
