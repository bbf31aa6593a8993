// Package render draws session output onto preview frames: region
// boxes colored by detection state, identity labels, the status line,
// and the loaded/marked HUD. The annotated frame is JPEG-encoded for
// the web preview stream.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	draw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/session"
)

// Component identifier for render errors
const ComponentRender = "render"

const (
	boxThickness = 2
	hudThickness = 2

	// unknownLabel marks faces that matched nobody on the roster.
	unknownLabel = "Unknown"

	// previewJPEGQuality trades stream bandwidth against artifacting.
	previewJPEGQuality = 80

	// Placeholder dimensions when no frame has been captured yet.
	fallbackWidth  = 640
	fallbackHeight = 480
)

var (
	colorConfirmed = color.RGBA{G: 0xFF, A: 0xFF}
	colorCounting  = color.RGBA{R: 0xFF, G: 0xA5, A: 0xFF}
	colorUnknown   = color.RGBA{R: 0xFF, A: 0xFF}
	colorHUD       = color.RGBA{R: 0xC8, G: 0xC8, A: 0xFF}
	colorBackdrop  = color.RGBA{A: 0xFF}
)

// Annotate renders a session output into a fresh preview image. The
// source frame is never written to; a nil output or missing frame
// produces a blank backdrop carrying the status line.
func Annotate(out *session.Output) *image.RGBA {
	var (
		img        *image.RGBA
		detections []session.Detection
		loaded     int
		marked     int
	)
	status := session.StatusCameraUnavailable
	if out != nil {
		status = out.Status
		loaded = out.Loaded
		marked = out.MarkedToday
		detections = out.Detections
		if out.Frame != nil && out.Frame.Image != nil {
			src := out.Frame.Image
			img = image.NewRGBA(src.Bounds())
			draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
		}
	}
	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, fallbackWidth, fallbackHeight))
		draw.Draw(img, img.Bounds(), image.NewUniform(colorBackdrop), image.Point{}, draw.Src)
	}

	for i := range detections {
		det := &detections[i]
		col := stateColor(det.State)
		drawRect(img, det.Region, col, boxThickness)
		drawText(img, detectionLabel(det), det.Region.Min.X, max(20, det.Region.Min.Y-10), col)
	}

	b := img.Bounds()
	drawRect(img, image.Rect(b.Min.X+10, b.Min.Y+10, b.Max.X-10, b.Max.Y-10), colorHUD, hudThickness)
	if status != "" {
		drawText(img, status, b.Min.X+16, b.Min.Y+28, colorHUD)
	}
	drawText(img, session.HUDLine(loaded, marked), b.Min.X+16, b.Max.Y-18, colorHUD)
	return img
}

// EncodeJPEG serializes an annotated frame for the preview stream.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return nil, errors.New(err).
			Component(ComponentRender).
			Category(errors.CategoryImageDecode).
			Context("operation", "encode_preview").
			Build()
	}
	return buf.Bytes(), nil
}

// detectionLabel composes the on-frame text: identity plus confidence
// for known faces, a fixed marker for strangers.
func detectionLabel(det *session.Detection) string {
	if det.State == session.StateUnknown || det.Label == "" {
		return unknownLabel
	}
	if det.Confidence > 0 {
		return fmt.Sprintf("%s | %.1f%%", det.Label, det.Confidence)
	}
	return det.Label
}

func stateColor(state session.DetectionState) color.RGBA {
	switch state {
	case session.StateConfirmed:
		return colorConfirmed
	case session.StateCounting:
		return colorCounting
	default:
		return colorUnknown
	}
}

// drawRect strokes a rectangle outline. Edges outside the image clip
// away instead of panicking, so partially visible faces draw fine.
func drawRect(img *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

func drawText(img *image.RGBA, text string, x, y int, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
