package facerec

import (
	"encoding/binary"
	"math"

	goface "github.com/Kagami/go-face"

	"github.com/campuskit/faceroll/internal/errors"
)

// Descriptor is a 128-dimensional face embedding.
type Descriptor = goface.Descriptor

// DescriptorBytes is the size of an encoded descriptor: 128 float32
// values, 4 bytes each.
const DescriptorBytes = 512

// EncodeDescriptor serializes a descriptor to the little-endian blob
// stored in the people table.
func EncodeDescriptor(d Descriptor) []byte {
	buf := make([]byte, DescriptorBytes)
	for i, v := range d {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeDescriptor deserializes a stored embedding blob. The blob
// must be exactly DescriptorBytes long.
func DecodeDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if len(data) != DescriptorBytes {
		return d, errors.Newf("facerec: embedding blob is %d bytes, want %d", len(data), DescriptorBytes).
			Component(ComponentFaceRec).
			Category(errors.CategoryValidation).
			Context("blob_size", len(data)).
			Build()
	}
	for i := range d {
		d[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return d, nil
}
