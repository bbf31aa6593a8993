package camera

import (
	"image"
	"image/draw"

	"gocv.io/x/gocv"

	"github.com/campuskit/faceroll/internal/errors"
)

// captureDevice wraps a gocv VideoCapture as a Device. The Mat is
// reused across grabs; Grab copies pixels out before returning.
type captureDevice struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// OpenCaptureDevice opens the capture device at the given index and
// requests the given frame size. Drivers may ignore the size request,
// so callers read the real dimensions off each frame.
func OpenCaptureDevice(deviceIndex, width, height int) (Device, error) {
	capture, err := gocv.OpenVideoCapture(deviceIndex)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentCamera).
			Category(errors.CategoryDevice).
			Context("device_index", deviceIndex).
			Context("operation", "open_device").
			Build()
	}

	if width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &captureDevice{
		capture: capture,
		mat:     gocv.NewMat(),
	}, nil
}

// Grab reads one frame from the device and converts it to RGBA.
func (d *captureDevice) Grab() (*image.RGBA, error) {
	if ok := d.capture.Read(&d.mat); !ok {
		return nil, errors.New(nil).
			Component(ComponentCamera).
			Category(errors.CategoryCapture).
			Context("error", "device read failed").
			Build()
	}
	if d.mat.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentCamera).
			Category(errors.CategoryCapture).
			Context("operation", "convert_frame").
			Build()
	}

	// ToImage returns RGBA for the 8-bit BGR mats a webcam produces,
	// but other mat types decode to different image kinds.
	rgba, ok := img.(*image.RGBA)
	if !ok {
		bounds := img.Bounds()
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	}
	return rgba, nil
}

// Close releases the scratch mat and the underlying device.
func (d *captureDevice) Close() error {
	if err := d.mat.Close(); err != nil {
		getLogger().Warn("failed to release capture buffer", "error", err)
	}
	if err := d.capture.Close(); err != nil {
		return errors.New(err).
			Component(ComponentCamera).
			Category(errors.CategoryDevice).
			Context("operation", "close_device").
			Build()
	}
	return nil
}
