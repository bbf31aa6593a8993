package facerec

import (
	"github.com/campuskit/faceroll/internal/errors"
)

// Component identifier for face recognition errors
const ComponentFaceRec = "facerec"

var (
	// ErrNoFace is returned when an enrollment photo contains no
	// detectable face.
	ErrNoFace = errors.New(nil).
		Component(ComponentFaceRec).
		Category(errors.CategoryDetection).
		Context("error", "no face found in photo").
		Build()

	// ErrMultipleFaces is returned when an enrollment photo contains
	// more than one face.
	ErrMultipleFaces = errors.New(nil).
		Component(ComponentFaceRec).
		Category(errors.CategoryDetection).
		Context("error", "photo contains more than one face").
		Build()

	// ErrRecognizerClosed is returned by calls made after Close.
	ErrRecognizerClosed = errors.New(nil).
		Component(ComponentFaceRec).
		Category(errors.CategoryState).
		Context("error", "recognizer is closed").
		Build()
)
