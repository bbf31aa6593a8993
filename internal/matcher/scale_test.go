package matcher

import (
	"image"
	"testing"
)

func TestDownscaleHalves(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))

	dst := Downscale(src, 0.5)
	if dst.Bounds().Dx() != 320 || dst.Bounds().Dy() != 240 {
		t.Errorf("downscaled bounds = %v, want 320x240", dst.Bounds())
	}
}

func TestDownscaleNoOpFactors(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))

	for _, factor := range []float64{0, -0.5, 1.0, 2.0} {
		if got := Downscale(src, factor); got != src {
			t.Errorf("Downscale(src, %v) returned a copy, want src unchanged", factor)
		}
	}
}

func TestDownscaleTinyImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))

	dst := Downscale(src, 0.1)
	if dst.Bounds().Dx() < 1 || dst.Bounds().Dy() < 1 {
		t.Errorf("downscaled bounds = %v, want at least 1x1", dst.Bounds())
	}
}

func TestUpscaleRect(t *testing.T) {
	r := image.Rect(10, 10, 50, 50)

	got := UpscaleRect(r, 0.5)
	want := image.Rect(20, 20, 100, 100)
	if got != want {
		t.Errorf("UpscaleRect(%v, 0.5) = %v, want %v", r, got, want)
	}
}

func TestUpscaleRectNoOpFactors(t *testing.T) {
	r := image.Rect(10, 10, 50, 50)

	for _, factor := range []float64{0, -1, 1.0, 1.5} {
		if got := UpscaleRect(r, factor); got != r {
			t.Errorf("UpscaleRect(r, %v) = %v, want %v unchanged", factor, got, r)
		}
	}
}

func TestUpscaleRectInvertsDownscale(t *testing.T) {
	// Rectangles whose corners are multiples of 4 survive a 0.25
	// round trip exactly.
	r := image.Rect(40, 80, 200, 240)

	down := image.Rect(10, 20, 50, 60)
	if got := UpscaleRect(down, 0.25); got != r {
		t.Errorf("UpscaleRect(%v, 0.25) = %v, want %v", down, got, r)
	}
}
