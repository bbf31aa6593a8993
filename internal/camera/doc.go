// Package camera owns the shared capture device and distributes frames
// to recognition sessions.
//
// One FrameSource opens the device and runs the capture loop. Captured
// frames flow into a FrameHub, a single atomically swapped slot that
// any number of sessions read without coordinating with the capture
// loop or with each other. Sessions acquire the source before reading
// and release it when they stop; the device stays open exactly as long
// as at least one session holds a reference.
package camera
