package camera

import (
	"github.com/campuskit/faceroll/internal/errors"
)

// Component identifier for camera errors
const ComponentCamera = "camera"

var (
	// ErrEmptyFrame is returned by a device when a grab succeeds but
	// yields no pixel data, which webcams routinely do while warming up.
	ErrEmptyFrame = errors.New(nil).
		Component(ComponentCamera).
		Category(errors.CategoryCapture).
		Context("error", "device returned an empty frame").
		Build()

	// ErrNotAcquired is returned when Release is called on a source
	// with no outstanding references.
	ErrNotAcquired = errors.New(nil).
		Component(ComponentCamera).
		Category(errors.CategoryState).
		Context("error", "release without matching acquire").
		Build()
)
