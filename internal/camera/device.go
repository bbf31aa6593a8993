package camera

import (
	"image"
)

// Device is a single capture device. Grab blocks until the device
// produces the next frame and returns a freshly allocated image that
// does not alias device-internal buffers.
type Device interface {
	// Grab captures one frame from the device.
	Grab() (*image.RGBA, error)

	// Close releases the device so other processes can open it.
	Close() error
}

// OpenDeviceFunc opens a capture device. The FrameSource calls it when
// the first session acquires the camera and closes the returned device
// when the last session releases it.
type OpenDeviceFunc func() (Device, error)
