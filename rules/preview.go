//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// PreviewEncoding routes frame serialization through render.EncodeJPEG.
// Encoding with default options produces a different quality setting
// than the preview stream advertises, and skips the error telemetry.
//
// Problematic pattern:
//
//	jpeg.Encode(&buf, img, nil)
//
// Preferred:
//
//	data, err := render.EncodeJPEG(img)
func PreviewEncoding(m dsl.Matcher) {
	m.Match(
		`jpeg.Encode($w, $img, nil)`,
	).
		Report("use render.EncodeJPEG so preview frames share one quality setting")
}
