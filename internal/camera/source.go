package camera

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/observability/metrics"
)

const (
	// defaultCaptureInterval paces the capture loop when the
	// configuration does not set an interval.
	defaultCaptureInterval = 20 * time.Millisecond

	// failureLogInterval is the number of consecutive failed grabs
	// between repeated capture failure logs. Failed grabs repeat at
	// tick rate, so most of them are not worth a log line.
	failureLogInterval = 250
)

// Config describes how the frame source opens and paces the capture
// device.
type Config struct {
	Device   int            // capture device index
	Width    int            // requested frame width in pixels
	Height   int            // requested frame height in pixels
	Interval time.Duration  // delay between capture attempts
	Open     OpenDeviceFunc // overrides the default device opener
}

// ConfigFromSettings builds a capture config from application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		Device:   settings.Camera.Device,
		Width:    settings.Camera.Width,
		Height:   settings.Camera.Height,
		Interval: settings.Camera.CaptureInterval,
	}
}

// FrameSource owns the capture device and feeds the frame hub. All
// recognition sessions share one source: the first Acquire opens the
// device and starts the capture loop, the last Release stops the loop
// and closes the device.
type FrameSource struct {
	hub      *FrameHub
	open     OpenDeviceFunc
	interval time.Duration

	mu     sync.Mutex
	refs   int
	device Device
	cancel context.CancelFunc
	done   chan struct{}

	seq atomic.Uint64
}

// NewFrameSource creates a frame source publishing to hub. The device
// is not opened until the first Acquire.
func NewFrameSource(config Config, hub *FrameHub) *FrameSource {
	interval := config.Interval
	if interval <= 0 {
		interval = defaultCaptureInterval
	}

	open := config.Open
	if open == nil {
		open = func() (Device, error) {
			return OpenCaptureDevice(config.Device, config.Width, config.Height)
		}
	}

	return &FrameSource{
		hub:      hub,
		open:     open,
		interval: interval,
	}
}

// Hub returns the hub this source publishes to.
func (s *FrameSource) Hub() *FrameHub {
	return s.hub
}

// Acquire registers a consumer. The first consumer opens the device
// and starts the capture loop; further consumers share the running
// loop. A non-nil error means the device could not be opened and no
// reference was taken.
func (s *FrameSource) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs > 0 {
		s.refs++
		if m := getMetrics(); m != nil {
			m.SetSessionRefs(s.refs)
		}
		return nil
	}

	device, err := s.open()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.device = device
	s.cancel = cancel
	s.done = make(chan struct{})
	s.refs = 1

	go s.captureLoop(ctx, device, s.done)

	if m := getMetrics(); m != nil {
		m.UpdateDeviceStatus(true)
		m.SetSessionRefs(1)
	}
	getLogger().Info("capture device opened", "interval", s.interval)
	return nil
}

// Release drops one consumer reference. Releasing the last reference
// stops the capture loop and closes the device, handing the camera
// back to the operating system.
func (s *FrameSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return ErrNotAcquired
	}

	s.refs--
	if m := getMetrics(); m != nil {
		m.SetSessionRefs(s.refs)
	}
	if s.refs > 0 {
		return nil
	}

	// Stop the loop before closing the device so no grab is in flight
	// when the device goes away. The loop never takes s.mu, so waiting
	// here with the lock held also serializes teardown against a
	// concurrent Acquire.
	s.cancel()
	<-s.done

	device := s.device
	s.device = nil
	s.cancel = nil
	s.done = nil

	err := device.Close()
	if m := getMetrics(); m != nil {
		m.UpdateDeviceStatus(false)
	}
	if err != nil {
		getLogger().Error("failed to close capture device", "error", err)
		return err
	}
	getLogger().Info("capture device closed")
	return nil
}

// Refs returns the number of active consumers.
func (s *FrameSource) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// captureLoop paces the device at the configured interval and
// publishes each captured frame to the hub. Grab failures are
// transient: the loop keeps the device and retries on the next tick.
func (s *FrameSource) captureLoop(ctx context.Context, device Device, done chan struct{}) {
	defer close(done)

	logger := getLogger()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.captureOne(device)
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if errors.Is(err, ErrEmptyFrame) {
				continue
			}
			if failures == 1 || failures%failureLogInterval == 0 {
				logger.Warn("frame capture failed",
					"error", err,
					"consecutive_failures", failures)
			}
		}
	}
}

// captureOne grabs a single frame, stamps it, and publishes it.
func (s *FrameSource) captureOne(device Device) error {
	m := getMetrics()
	var timer *metrics.CaptureTimer
	if m != nil {
		timer = m.StartCaptureTimer()
	}

	img, err := device.Grab()
	if err != nil {
		if m != nil {
			if errors.Is(err, ErrEmptyFrame) {
				m.IncrementFrameDrops()
			} else {
				m.IncrementCaptureErrors()
			}
		}
		return err
	}

	frame := &Frame{
		Image:     img,
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
	}
	s.hub.Publish(frame)

	if m != nil {
		timer.ObserveDuration()
		m.IncrementFramesCaptured()
		m.ObserveFrameSize(float64(len(img.Pix)))
	}
	return nil
}
