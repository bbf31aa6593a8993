// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate Camera settings
	if err := validateCameraSettings(&settings.Camera); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Recognition settings
	if err := validateRecognitionSettings(&settings.Recognition); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate WebServer settings
	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Realtime settings
	if err := validateRealtimeSettings(&settings.Realtime); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Output settings
	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateCameraSettings validates the capture device settings
func validateCameraSettings(settings *CameraSettings) error {
	var errs []string

	// Check if device index is non-negative
	if settings.Device < 0 {
		errs = append(errs, "Camera device index must be at least 0")
	}

	// Check if capture dimensions are sensible
	if settings.Width <= 0 || settings.Height <= 0 {
		errs = append(errs, "Camera width and height must be positive")
	}

	// Check if capture interval is positive
	if settings.CaptureInterval <= 0 {
		errs = append(errs, "Camera capture interval must be positive")
	}

	// If there are any errors, return them as a single error
	if len(errs) > 0 {
		return fmt.Errorf("Camera settings errors: %v", errs)
	}

	return nil
}

// validateRecognitionSettings validates the face matching settings
func validateRecognitionSettings(settings *RecognitionSettings) error {
	var errs []string

	// Check if tolerance is within valid range
	if settings.Tolerance < 0 || settings.Tolerance > 1 {
		errs = append(errs, "Recognition tolerance must be between 0 and 1")
	}

	// Check if frame skip is at least 1, 1 means every frame
	if settings.ProcessEveryNth < 1 {
		errs = append(errs, "Recognition processeverynth must be at least 1")
	}

	// Check if downscale factor is within valid range
	if settings.Downscale <= 0 || settings.Downscale > 1 {
		errs = append(errs, "Recognition downscale must be between 0 (exclusive) and 1")
	}

	// Check if confirmation thresholds are at least 1
	if settings.Confirm.Single < 1 {
		errs = append(errs, "Recognition confirm.single must be at least 1")
	}
	if settings.Confirm.Population < 1 {
		errs = append(errs, "Recognition confirm.population must be at least 1")
	}

	// If there are any errors, return them as a single error
	if len(errs) > 0 {
		return fmt.Errorf("Recognition settings errors: %v", errs)
	}

	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *Settings) error {
	ws := &settings.WebServer
	if ws.Enabled {
		// Check if port is provided when enabled
		if ws.Port == "" {
			return errors.New("WebServer port is required when enabled")
		}
		if port, err := strconv.Atoi(ws.Port); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("WebServer port must be a number between 1 and 65535, got %q", ws.Port)
		}
		// A bcrypt hash is required when basic auth is on, an empty
		// hash would lock every request out
		if ws.BasicAuth.Enabled && ws.BasicAuth.Password == "" {
			return errors.New("WebServer basicauth password hash is required when basicauth is enabled")
		}
	}

	return nil
}

// validateRealtimeSettings validates the realtime-specific settings
func validateRealtimeSettings(settings *RealtimeSettings) error {
	var errs []string

	// Check if interval is non-negative
	if settings.Interval < 0 {
		errs = append(errs, "Realtime interval must be at least 0")
	}

	// Webhook needs at least one URL when enabled
	if settings.Webhook.Enabled && len(settings.Webhook.URLs) == 0 {
		errs = append(errs, "Realtime webhook requires at least one URL when enabled")
	}
	if settings.Webhook.Retries < 0 {
		errs = append(errs, "Realtime webhook retries must be at least 0")
	}

	// Notification needs at least one URL when enabled
	if settings.Notification.Enabled && len(settings.Notification.URLs) == 0 {
		errs = append(errs, "Realtime notification requires at least one URL when enabled")
	}

	// If there are any errors, return them as a single error
	if len(errs) > 0 {
		return fmt.Errorf("Realtime settings errors: %v", errs)
	}

	return nil
}

// validateOutputSettings validates the datastore output settings
func validateOutputSettings(settings *Settings) error {
	var errs []string

	sqlite := &settings.Output.SQLite
	mysql := &settings.Output.MySQL

	// Exactly one store backend must be active
	if !sqlite.Enabled && !mysql.Enabled {
		errs = append(errs, "either SQLite or MySQL output must be enabled")
	}
	if sqlite.Enabled && mysql.Enabled {
		errs = append(errs, "only one of SQLite or MySQL output may be enabled")
	}

	if sqlite.Enabled && sqlite.Path == "" {
		errs = append(errs, "SQLite output path must not be empty")
	}

	if mysql.Enabled {
		if mysql.Host == "" || mysql.Database == "" {
			errs = append(errs, "MySQL output requires host and database")
		}
		if _, err := strconv.Atoi(mysql.Port); err != nil {
			errs = append(errs, "MySQL output port must be a number")
		}
	}

	// If there are any errors, return them as a single error
	if len(errs) > 0 {
		return fmt.Errorf("Output settings errors: %v", errs)
	}

	return nil
}
