package session

import (
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/datastore"
)

// DetectionState classifies a detected region for rendering.
type DetectionState string

const (
	// StateUnknown marks a region that matched no candidate.
	StateUnknown DetectionState = "unknown"
	// StateCounting marks a matched region still accumulating
	// confirmations.
	StateCounting DetectionState = "counting"
	// StateConfirmed marks a region whose identity already confirmed
	// today.
	StateConfirmed DetectionState = "confirmed"
)

// Detection is one annotated region of a processed frame.
type Detection struct {
	Region     image.Rectangle `json:"region"`
	State      DetectionState  `json:"state"`
	PersonID   uint            `json:"person_id,omitempty"`
	Label      string          `json:"label,omitempty"`      // "REGNO | NAME" when matched
	Confidence float64         `json:"confidence,omitempty"` // percent, only meaningful when matched
}

// Output is the per-processed-frame snapshot a session publishes for
// rendering and streaming. An output is immutable once published.
type Output struct {
	SessionID   uuid.UUID
	Mode        Mode
	Frame       *camera.Frame // nil when the camera has no frame yet
	Detections  []Detection
	Status      string
	Loaded      int // candidates currently matchable
	MarkedToday int
	At          time.Time
}

// Event describes one attendance mark created by a session, handed to
// the integrations fan-out.
type Event struct {
	SessionID  uuid.UUID               `json:"session_id"`
	Mode       Mode                    `json:"mode"`
	PersonID   uint                    `json:"person_id"`
	RegNo      string                  `json:"reg_no"`
	Name       string                  `json:"name"`
	Confidence float64                 `json:"confidence"`
	Outcome    datastore.CommitOutcome `json:"outcome"`
	Time       time.Time               `json:"time"`
}
