// Package qrscan decodes QR codes out of camera frames, feeding the
// verification flow's identifier discovery. A frame without a code is
// the common case and reports as a plain miss, not an error.
package qrscan

import (
	"image"
	"strings"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder scans frames for QR codes. One mutex serializes calls: the
// underlying reader keeps per-decode state.
type Decoder struct {
	mu     sync.Mutex
	reader gozxing.Reader
}

// New creates a QR decoder.
func New() *Decoder {
	return &Decoder{reader: qrcode.NewQRCodeReader()}
}

// Scan reports the text of the first QR code found in the image.
// Whitespace around the payload is dropped; an empty payload counts
// as a miss.
func (d *Decoder) Scan(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		getLogger().Debug("frame not convertible for code scan", "error", err)
		return "", false
	}

	d.mu.Lock()
	result, err := d.reader.Decode(bmp, nil)
	d.reader.Reset()
	d.mu.Unlock()
	if err != nil {
		// Almost always NotFoundException: no code in this frame.
		return "", false
	}

	text := strings.TrimSpace(result.GetText())
	if text == "" {
		return "", false
	}
	getLogger().Debug("decoded identifier code", "length", len(text))
	return text, true
}
