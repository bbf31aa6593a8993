package render

import (
	"bytes"
	"image"
	"testing"
	"time"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/session"
)

// grayFrame builds a uniform mid-gray source frame.
func grayFrame(w, h int) *camera.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return &camera.Frame{Image: img, Seq: 1, Timestamp: time.Now()}
}

func TestAnnotateDrawsStateColoredBoxes(t *testing.T) {
	t.Parallel()

	out := &session.Output{
		Frame: grayFrame(64, 64),
		Detections: []session.Detection{
			{Region: image.Rect(30, 30, 50, 50), State: session.StateConfirmed, PersonID: 1, Label: "S001 | Aisha Khan", Confidence: 70},
		},
		Status: session.StatusLookingForFace,
	}

	img := Annotate(out)
	if got := img.RGBAAt(31, 30); got != colorConfirmed {
		t.Errorf("top edge pixel = %v, want %v", got, colorConfirmed)
	}
	if got := img.RGBAAt(30, 45); got != colorConfirmed {
		t.Errorf("left edge pixel = %v, want %v", got, colorConfirmed)
	}
	if got := img.RGBAAt(40, 40); got == colorConfirmed {
		t.Error("box interior was filled, want outline only")
	}
}

func TestAnnotateUnknownFaceIsRed(t *testing.T) {
	t.Parallel()

	out := &session.Output{
		Frame: grayFrame(64, 64),
		Detections: []session.Detection{
			{Region: image.Rect(30, 30, 50, 50), State: session.StateUnknown},
		},
	}

	img := Annotate(out)
	if got := img.RGBAAt(31, 30); got != colorUnknown {
		t.Errorf("unknown box pixel = %v, want %v", got, colorUnknown)
	}
}

func TestAnnotateLeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	frame := grayFrame(64, 64)
	out := &session.Output{
		Frame: frame,
		Detections: []session.Detection{
			{Region: image.Rect(8, 8, 24, 24), State: session.StateCounting, Label: "S001 | Aisha Khan"},
		},
	}

	Annotate(out)
	for i, p := range frame.Image.Pix {
		if p != 0x80 {
			t.Fatalf("source frame mutated at byte %d", i)
		}
	}
}

func TestAnnotateClipsOffscreenRegions(t *testing.T) {
	t.Parallel()

	out := &session.Output{
		Frame: grayFrame(32, 32),
		Detections: []session.Detection{
			{Region: image.Rect(-10, -10, 10, 10), State: session.StateCounting, Label: "S001 | Aisha Khan"},
		},
	}

	img := Annotate(out)
	if got := img.RGBAAt(8, 0); got != colorCounting {
		t.Errorf("visible edge pixel = %v, want %v", got, colorCounting)
	}
}

func TestAnnotateWithoutFrameUsesBackdrop(t *testing.T) {
	t.Parallel()

	img := Annotate(nil)
	b := img.Bounds()
	if b.Dx() != fallbackWidth || b.Dy() != fallbackHeight {
		t.Fatalf("backdrop is %dx%d, want %dx%d", b.Dx(), b.Dy(), fallbackWidth, fallbackHeight)
	}
	if got := img.RGBAAt(0, 0); got != colorBackdrop {
		t.Errorf("backdrop pixel = %v, want opaque black", got)
	}
	if got := img.RGBAAt(10, 10); got != colorHUD {
		t.Errorf("HUD border pixel = %v, want %v", got, colorHUD)
	}
}

func TestDetectionLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		det  session.Detection
		want string
	}{
		{"unknown", session.Detection{State: session.StateUnknown}, "Unknown"},
		{"counting with confidence", session.Detection{State: session.StateCounting, Label: "S001 | Aisha Khan", Confidence: 87.33}, "S001 | Aisha Khan | 87.3%"},
		{"confirmed", session.Detection{State: session.StateConfirmed, Label: "S002 | Bilal Ahmed", Confidence: 70}, "S002 | Bilal Ahmed | 70.0%"},
		{"label without confidence", session.Detection{State: session.StateCounting, Label: "S003 | Chitra Nair"}, "S003 | Chitra Nair"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := detectionLabel(&tt.det); got != tt.want {
				t.Errorf("detectionLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeJPEGRoundTrip(t *testing.T) {
	t.Parallel()

	img := Annotate(&session.Output{Frame: grayFrame(64, 48)})
	data, err := EncodeJPEG(img)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding preview: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded size = %dx%d, want 64x48", b.Dx(), b.Dy())
	}
}
