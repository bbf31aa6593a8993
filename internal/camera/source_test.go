package camera

import (
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
)

// fakeDevice produces synthetic frames without touching capture
// hardware.
type fakeDevice struct {
	mu             sync.Mutex
	grabs          int
	closed         bool
	grabErr        error
	emptyEveryOther bool
}

func (d *fakeDevice) Grab() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.grabs++
	if d.grabErr != nil {
		return nil, d.grabErr
	}
	if d.emptyEveryOther && d.grabs%2 == 0 {
		return nil, ErrEmptyFrame
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(d.grabs % 251)
	}
	return img, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeOpener tracks every device it hands out.
type fakeOpener struct {
	mu      sync.Mutex
	devices []*fakeDevice
	openErr error
}

func (o *fakeOpener) open() (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}
	device := &fakeDevice{}
	o.devices = append(o.devices, device)
	return device, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.devices)
}

func (o *fakeOpener) device(i int) *fakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.devices[i]
}

func newTestSource(opener *fakeOpener, interval time.Duration) *FrameSource {
	return NewFrameSource(Config{Interval: interval, Open: opener.open}, NewFrameHub())
}

// waitForSeq polls the hub until a frame with at least the wanted
// sequence number shows up.
func waitForSeq(t *testing.T, hub *FrameHub, want uint64) *Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frame := hub.Latest(); frame != nil && frame.Seq >= want {
			return frame
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("No frame with seq >= %d arrived within deadline", want)
	return nil
}

func TestConfigFromSettings(t *testing.T) {
	settings := &conf.Settings{}
	settings.Camera.Device = 2
	settings.Camera.Width = 1280
	settings.Camera.Height = 720
	settings.Camera.CaptureInterval = 50 * time.Millisecond

	config := ConfigFromSettings(settings)
	if config.Device != 2 {
		t.Errorf("Expected device index 2, got %d", config.Device)
	}
	if config.Width != 1280 || config.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", config.Width, config.Height)
	}
	if config.Interval != 50*time.Millisecond {
		t.Errorf("Expected 50ms interval, got %v", config.Interval)
	}
}

func TestFrameSourceSharedDevice(t *testing.T) {
	opener := &fakeOpener{}
	source := newTestSource(opener, time.Millisecond)

	for i := range 3 {
		if err := source.Acquire(); err != nil {
			t.Fatalf("Acquire %d failed: %v", i+1, err)
		}
	}
	if got := opener.opened(); got != 1 {
		t.Errorf("Expected one device open for three consumers, got %d", got)
	}
	if got := source.Refs(); got != 3 {
		t.Errorf("Expected 3 refs, got %d", got)
	}

	// Intermediate releases keep the device open.
	for i := range 2 {
		if err := source.Release(); err != nil {
			t.Fatalf("Release %d failed: %v", i+1, err)
		}
		if opener.device(0).isClosed() {
			t.Fatal("Device closed while references remain")
		}
	}

	if err := source.Release(); err != nil {
		t.Fatalf("Final release failed: %v", err)
	}
	if !opener.device(0).isClosed() {
		t.Error("Expected last release to close the device")
	}
	if got := source.Refs(); got != 0 {
		t.Errorf("Expected 0 refs after full release, got %d", got)
	}
}

func TestFrameSourceReacquireReopens(t *testing.T) {
	opener := &fakeOpener{}
	source := newTestSource(opener, time.Millisecond)

	if err := source.Acquire(); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	if err := source.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := source.Acquire(); err != nil {
		t.Fatalf("Reacquire failed: %v", err)
	}
	defer func() {
		if err := source.Release(); err != nil {
			t.Errorf("Cleanup release failed: %v", err)
		}
	}()

	if got := opener.opened(); got != 2 {
		t.Errorf("Expected a fresh device on reacquire, got %d opens", got)
	}
	if !opener.device(0).isClosed() {
		t.Error("Expected the first device to be closed")
	}
	if opener.device(1).isClosed() {
		t.Error("Second device should still be open")
	}
}

func TestFrameSourceOpenFailure(t *testing.T) {
	opener := &fakeOpener{openErr: fmt.Errorf("device busy")}
	source := newTestSource(opener, time.Millisecond)

	if err := source.Acquire(); err == nil {
		t.Fatal("Expected acquire to fail when the device cannot be opened")
	}
	if got := source.Refs(); got != 0 {
		t.Errorf("Expected no refs after failed acquire, got %d", got)
	}

	// The camera freeing up later must make acquire work again.
	opener.mu.Lock()
	opener.openErr = nil
	opener.mu.Unlock()

	if err := source.Acquire(); err != nil {
		t.Fatalf("Acquire after device became available failed: %v", err)
	}
	if err := source.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

func TestFrameSourceReleaseWithoutAcquire(t *testing.T) {
	source := newTestSource(&fakeOpener{}, time.Millisecond)

	err := source.Release()
	if err == nil {
		t.Fatal("Expected an error releasing a source with no references")
	}
	if !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Expected ErrNotAcquired, got %v", err)
	}
}

func TestFrameSourcePublishesFrames(t *testing.T) {
	opener := &fakeOpener{}
	source := newTestSource(opener, time.Millisecond)

	if err := source.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	frame := waitForSeq(t, source.Hub(), 3)
	if frame.Timestamp.IsZero() {
		t.Error("Expected a capture timestamp on published frames")
	}
	if frame.Bounds().Dx() != 4 || frame.Bounds().Dy() != 4 {
		t.Errorf("Expected 4x4 test frames, got %v", frame.Bounds())
	}

	if err := source.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// A stopped loop must not publish further frames.
	last := source.Hub().Latest().Seq
	time.Sleep(20 * time.Millisecond)
	if got := source.Hub().Latest().Seq; got != last {
		t.Errorf("Frames kept arriving after release: seq %d -> %d", last, got)
	}
}

func TestFrameSourceSurvivesEmptyFrames(t *testing.T) {
	opener := &fakeOpener{}
	source := NewFrameSource(Config{Interval: time.Millisecond, Open: func() (Device, error) {
		device, err := opener.open()
		if err != nil {
			return nil, err
		}
		device.(*fakeDevice).emptyEveryOther = true
		return device, nil
	}}, NewFrameHub())

	if err := source.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer func() {
		if err := source.Release(); err != nil {
			t.Errorf("Release failed: %v", err)
		}
	}()

	// Half the grabs return empty frames; the loop must keep going and
	// publish the other half.
	waitForSeq(t, source.Hub(), 5)
}

func TestFrameSourceDefaultInterval(t *testing.T) {
	opener := &fakeOpener{}
	source := newTestSource(opener, 0)

	if err := source.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer func() {
		if err := source.Release(); err != nil {
			t.Errorf("Release failed: %v", err)
		}
	}()

	// With the zero value falling back to the default pace, frames
	// still have to arrive.
	waitForSeq(t, source.Hub(), 2)
}

func TestFrameSourceConcurrentAcquireRelease(t *testing.T) {
	opener := &fakeOpener{}
	source := newTestSource(opener, time.Millisecond)

	const numGoroutines = 20
	var wg sync.WaitGroup
	errCh := make(chan error, numGoroutines)

	for range numGoroutines {
		wg.Go(func() {
			if err := source.Acquire(); err != nil {
				errCh <- fmt.Errorf("acquire: %w", err)
				return
			}
			time.Sleep(2 * time.Millisecond)
			if err := source.Release(); err != nil {
				errCh <- fmt.Errorf("release: %w", err)
			}
		})
	}
	wg.Wait()

	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	if got := source.Refs(); got != 0 {
		t.Errorf("Expected 0 refs after all goroutines released, got %d", got)
	}
	for i := range opener.opened() {
		if !opener.device(i).isClosed() {
			t.Errorf("Device %d was left open", i)
		}
	}
}
