package matcher

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Downscale resizes src by factor using approximate bi-linear
// interpolation. A factor of 0.5 halves each dimension. Factors
// outside (0, 1) return src unchanged.
func Downscale(src *image.RGBA, factor float64) *image.RGBA {
	if factor <= 0 || factor >= 1 {
		return src
	}

	bounds := src.Bounds()
	width := max(1, int(math.Round(float64(bounds.Dx())*factor)))
	height := max(1, int(math.Round(float64(bounds.Dy())*factor)))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}

// UpscaleRect maps a rectangle detected on a downscaled image back to
// the coordinate space of the original, inverting the Downscale
// factor.
func UpscaleRect(r image.Rectangle, factor float64) image.Rectangle {
	if factor <= 0 || factor >= 1 {
		return r
	}

	inv := 1.0 / factor
	return image.Rect(
		int(math.Round(float64(r.Min.X)*inv)),
		int(math.Round(float64(r.Min.Y)*inv)),
		int(math.Round(float64(r.Max.X)*inv)),
		int(math.Round(float64(r.Max.Y)*inv)),
	)
}
