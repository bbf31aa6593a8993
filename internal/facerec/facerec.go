// facerec.go dlib face model specific code
package facerec

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "image/png" // enrollment photos may be PNG

	goface "github.com/Kagami/go-face"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
)

// ModelName labels recognizer metrics.
const ModelName = "dlib_resnet_v1"

// jpegQuality is used when re-encoding frames for the dlib loader.
const jpegQuality = 90

// requiredModelFiles are the dlib model files go-face expects inside
// the model directory.
var requiredModelFiles = []string{
	"shape_predictor_5_face_landmarks.dat",
	"dlib_face_recognition_resnet_model_v1.dat",
	"mmod_human_face_detector.dat",
}

// Face is one detected face: where it sits in the image and its
// embedding.
type Face struct {
	Rectangle  image.Rectangle
	Descriptor Descriptor
}

// Recognizer wraps the dlib models. One mutex serializes calls: they
// share the recognizer handle and the JPEG encode buffer.
type Recognizer struct {
	settings *conf.Settings
	modelDir string

	mu     sync.Mutex
	rec    *goface.Recognizer
	buf    bytes.Buffer
	closed bool
}

// New loads the dlib face models from the configured model directory.
// Callers own the recognizer and must Close it to release the dlib
// handles.
func New(settings *conf.Settings) (*Recognizer, error) {
	modelDir := settings.Recognition.ModelDir
	start := time.Now()

	if err := validateModelDir(modelDir); err != nil {
		if m := getMetrics(); m != nil {
			m.RecordModelLoad(ModelName, err)
		}
		return nil, err
	}

	rec, err := goface.NewRecognizer(modelDir)
	if m := getMetrics(); m != nil {
		m.RecordModelLoad(ModelName, err)
	}
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentFaceRec).
			Category(errors.CategoryModelInit).
			Context("model_dir", modelDir).
			Context("operation", "load_models").
			Build()
	}

	getLogger().Info("face models loaded",
		"model_dir", modelDir,
		"load_time_ms", time.Since(start).Milliseconds())

	return &Recognizer{
		settings: settings,
		modelDir: modelDir,
		rec:      rec,
	}, nil
}

// validateModelDir checks the model files exist before dlib does;
// dlib reports a missing file as a serialization failure without
// naming it.
func validateModelDir(modelDir string) error {
	if modelDir == "" {
		return errors.Newf("facerec: model directory is not configured").
			Component(ComponentFaceRec).
			Category(errors.CategoryConfiguration).
			Context("setting", "recognition.modeldir").
			Build()
	}

	var missing []string
	for _, name := range requiredModelFiles {
		if _, err := os.Stat(filepath.Join(modelDir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("facerec: model directory %s is missing %s", modelDir, strings.Join(missing, ", ")).
			Component(ComponentFaceRec).
			Category(errors.CategoryModelInit).
			Context("model_dir", modelDir).
			Context("missing_files", strings.Join(missing, ",")).
			Build()
	}
	return nil
}

// DetectAll finds every face in the image and computes embeddings.
// It uses the HOG detector, which keeps per-frame cost low enough for
// the capture pace.
func (r *Recognizer) DetectAll(img image.Image) ([]Face, error) {
	beginOperation()
	defer endOperation()
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRecognizerClosed
	}

	// go-face only loads JPEG data, so the frame is encoded into the
	// reusable buffer first.
	r.buf.Reset()
	if err := jpeg.Encode(&r.buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.New(err).
			Component(ComponentFaceRec).
			Category(errors.CategoryImageDecode).
			Context("operation", "encode_frame").
			Build()
	}

	found, err := r.rec.Recognize(r.buf.Bytes())
	if m := getMetrics(); m != nil {
		m.RecordDetection(ModelName, time.Since(start).Seconds(), len(found), err)
	}
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentFaceRec).
			Category(errors.CategoryDetection).
			Context("operation", "detect_faces").
			Build()
	}

	faces := make([]Face, 0, len(found))
	for i := range found {
		faces = append(faces, Face{
			Rectangle:  found[i].Rectangle,
			Descriptor: found[i].Descriptor,
		})
	}
	return faces, nil
}

// EmbedPhoto computes the embedding for an enrollment photo. The
// photo must contain exactly one face; zero faces return ErrNoFace
// and several return ErrMultipleFaces.
func (r *Recognizer) EmbedPhoto(photo []byte) (Descriptor, error) {
	beginOperation()
	defer endOperation()
	start := time.Now()
	var zero Descriptor

	jpegData, err := toJPEG(photo)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return zero, ErrRecognizerClosed
	}

	found, err := r.rec.Recognize(jpegData)
	if m := getMetrics(); m != nil {
		m.RecordEmbedding(ModelName, time.Since(start).Seconds(), err)
	}
	if err != nil {
		return zero, errors.New(err).
			Component(ComponentFaceRec).
			Category(errors.CategoryEmbedding).
			Context("operation", "embed_photo").
			Build()
	}

	switch len(found) {
	case 0:
		return zero, ErrNoFace
	case 1:
		return found[0].Descriptor, nil
	default:
		return zero, ErrMultipleFaces
	}
}

// Close releases the dlib recognizer. Close is idempotent; detection
// calls made after it return ErrRecognizerClosed.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.rec.Close()
	getLogger().Debug("face recognizer closed")
	return nil
}

// toJPEG passes JPEG data through unchanged and re-encodes other
// image formats, since the dlib loader reads nothing else.
func toJPEG(data []byte) ([]byte, error) {
	if isJPEG(data) {
		return data, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentFaceRec).
			Category(errors.CategoryImageDecode).
			Context("operation", "decode_photo").
			Build()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.New(err).
			Component(ComponentFaceRec).
			Category(errors.CategoryImageDecode).
			Context("operation", "reencode_photo").
			Context("source_format", format).
			Build()
	}
	return buf.Bytes(), nil
}

// isJPEG checks for the JPEG start-of-image marker.
func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}
