package privacy

// SanitizedError wraps an error whose message may carry credentials or
// tokens. Error() returns the scrubbed message; the original stays
// reachable through Unwrap so errors.Is and errors.As keep working.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

// Error returns the scrubbed message.
func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

// Unwrap returns the original error.
func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs an error message with ScrubMessage. Returns nil for
// a nil input.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
