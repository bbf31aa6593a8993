package camera

import (
	"image"
	"time"
)

// Frame is a single captured camera frame. A frame is immutable once
// published: the capture loop never writes to it after handing it to
// the hub, and consumers must not modify Image.
type Frame struct {
	// Image holds the frame pixels. The buffer is owned by this frame
	// and never aliases device-internal memory.
	Image *image.RGBA

	// Seq is the capture sequence number, starting at 1. Consumers
	// compare it against the last frame they processed to detect
	// whether the hub slot has advanced.
	Seq uint64

	// Timestamp is the wall-clock capture time.
	Timestamp time.Time
}

// Bounds returns the pixel bounds of the frame image.
func (f *Frame) Bounds() image.Rectangle {
	return f.Image.Bounds()
}
