package session

import (
	"github.com/campuskit/faceroll/internal/errors"
)

// Component identifier for session errors
const ComponentSession = "session"

var (
	// ErrNotRunning is returned by operator actions on a session whose
	// frame loop is not active.
	ErrNotRunning = errors.New(nil).
			Component(ComponentSession).
			Category(errors.CategorySession).
			Context("error", "session is not running").
			Build()

	// ErrAlreadyRunning is returned by Start on a session that is
	// already consuming frames.
	ErrAlreadyRunning = errors.New(nil).
			Component(ComponentSession).
			Category(errors.CategorySession).
			Context("error", "session is already running").
			Build()

	// ErrFinished is returned by Start on a session whose loop has
	// already exited. Sessions are one-shot; start a new one instead.
	ErrFinished = errors.New(nil).
			Component(ComponentSession).
			Category(errors.CategorySession).
			Context("error", "session already finished").
			Build()
)
