package camera

import (
	"fmt"
	"image"
	"sync"
	"testing"
	"time"
)

// testFrame builds a frame whose every pixel byte equals fill, so a
// reader can tell a complete frame from a mix of two.
func testFrame(seq uint64, fill uint8, width, height int) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return &Frame{Image: img, Seq: seq, Timestamp: time.Now()}
}

func TestFrameHubEmpty(t *testing.T) {
	hub := NewFrameHub()
	if frame := hub.Latest(); frame != nil {
		t.Errorf("Expected nil frame from empty hub, got seq %d", frame.Seq)
	}
}

func TestFrameHubLatestWins(t *testing.T) {
	hub := NewFrameHub()
	hub.Publish(testFrame(1, 10, 4, 4))
	hub.Publish(testFrame(2, 20, 4, 4))

	frame := hub.Latest()
	if frame == nil {
		t.Fatal("Expected a frame after publishing")
	}
	if frame.Seq != 2 {
		t.Errorf("Expected latest frame seq 2, got %d", frame.Seq)
	}
	if frame.Image.Pix[0] != 20 {
		t.Errorf("Expected pixels from the second frame, got %d", frame.Image.Pix[0])
	}
}

func TestFrameHubRereadReturnsSameFrame(t *testing.T) {
	hub := NewFrameHub()
	hub.Publish(testFrame(7, 1, 2, 2))

	first := hub.Latest()
	second := hub.Latest()
	if first != second {
		t.Error("Expected repeated Latest calls to return the same frame until the next publish")
	}
}

func TestFrameHubNoTornReads(t *testing.T) {
	hub := NewFrameHub()

	const (
		numReaders = 8
		numFrames  = 2000
	)

	stop := make(chan struct{})
	errCh := make(chan error, numReaders)
	var wg sync.WaitGroup

	for range numReaders {
		wg.Go(func() {
			var lastSeq uint64
			for {
				select {
				case <-stop:
					return
				default:
				}

				frame := hub.Latest()
				if frame == nil {
					continue
				}
				if frame.Seq < lastSeq {
					errCh <- fmt.Errorf("sequence went backwards: %d after %d", frame.Seq, lastSeq)
					return
				}
				lastSeq = frame.Seq

				// Every byte of a frame carries the same fill value, so
				// any mixed byte means the reader saw a torn frame.
				want := uint8(frame.Seq % 251)
				for i, px := range frame.Image.Pix {
					if px != want {
						errCh <- fmt.Errorf("frame %d: pixel byte %d is %d, want %d", frame.Seq, i, px, want)
						return
					}
				}
			}
		})
	}

	for seq := uint64(1); seq <= numFrames; seq++ {
		hub.Publish(testFrame(seq, uint8(seq%251), 8, 8))
	}
	close(stop)
	wg.Wait()

	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}
