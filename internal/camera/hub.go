package camera

import (
	"sync/atomic"
)

// FrameHub distributes the most recent captured frame to any number of
// readers. A single slot holds a pointer to the latest frame; Publish
// swaps the whole pointer, so a reader always observes one complete
// frame and never a mix of two captures.
type FrameHub struct {
	latest atomic.Pointer[Frame]
}

// NewFrameHub returns an empty hub. Latest returns nil until the first
// frame is published.
func NewFrameHub() *FrameHub {
	return &FrameHub{}
}

// Publish makes frame the hub's latest frame. The frame must not be
// modified after publishing.
func (h *FrameHub) Publish(frame *Frame) {
	h.latest.Store(frame)
	if m := getMetrics(); m != nil {
		m.IncrementHubSwaps()
	}
}

// Latest returns the most recently published frame, or nil when no
// frame has been published yet. Successive calls may return the same
// frame; readers compare Seq to skip frames they have already handled.
func (h *FrameHub) Latest() *Frame {
	return h.latest.Load()
}
