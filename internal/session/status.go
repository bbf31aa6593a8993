package session

import "fmt"

// Status lines surfaced to the operator. The wording is part of the
// operator-facing contract; the web UI and kiosk overlays match on it.
const (
	StatusCameraUnavailable = "Camera not available."
	StatusLoadingFaces      = "Loading faces…"
	StatusScanningCode      = "Scanning QR… (hold code in front of camera)"
	StatusWaitingForStudent = "Waiting for student..."
	StatusLookingForFace    = "Looking for face…"
	StatusStudentNotFound   = "Student not found."
	StatusNoFaceInPhoto     = "No face found in stored photo."
	StatusLoadFailed        = "Could not load faces."
)

// StatusLoaded reports a completed candidate load.
func StatusLoaded(count int) string {
	return fmt.Sprintf("Loaded faces: %d students ready", count)
}

// StatusSaved reports a created attendance mark.
func StatusSaved(name string, confidence float64) string {
	return fmt.Sprintf("Attendance saved: %s (%.0f%%)", name, confidence)
}

// StatusAlreadyMarked reports a commit that found an existing mark.
func StatusAlreadyMarked(name string) string {
	return fmt.Sprintf("Already marked today: %s", name)
}

// MatchLabel formats the box label for a matched region.
func MatchLabel(regNo, name string) string {
	return regNo + " | " + name
}

// HUDLine formats the heads-up counts drawn on the preview.
func HUDLine(loaded, markedToday int) string {
	return fmt.Sprintf("Loaded: %d | Marked today: %d", loaded, markedToday)
}
