package session

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/matcher"
)

const testPollInterval = 2 * time.Millisecond

// testFrame returns a small frame with the given sequence number.
func testFrame(seq uint64) *camera.Frame {
	return &camera.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 32, 32)),
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

// faceAt returns a detected face whose descriptor sits at the given
// distance from the zero descriptor.
func faceAt(distance float32) facerec.Face {
	var d facerec.Descriptor
	d[0] = distance
	return facerec.Face{
		Rectangle:  image.Rect(10, 10, 50, 50),
		Descriptor: d,
	}
}

// fakeFeed is an in-memory FrameFeed; tests publish frames straight to
// its hub.
type fakeFeed struct {
	hub *camera.FrameHub

	mu         sync.Mutex
	refs       int
	acquires   int
	acquireErr error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{hub: camera.NewFrameHub()}
}

func (f *fakeFeed) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.refs++
	f.acquires++
	return nil
}

func (f *fakeFeed) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs--
	return nil
}

func (f *fakeFeed) Hub() *camera.FrameHub {
	return f.hub
}

func (f *fakeFeed) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

// fakeDetector replays a per-processed-frame script of detected faces.
// Calls beyond the script return no faces.
type fakeDetector struct {
	mu     sync.Mutex
	script [][]facerec.Face
	calls  int
	lastW  int
	lastH  int
	err    error
}

func (d *fakeDetector) DetectAll(img image.Image) ([]facerec.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastW = img.Bounds().Dx()
	d.lastH = img.Bounds().Dy()
	if d.err != nil {
		return nil, d.err
	}
	i := d.calls
	d.calls++
	if i < len(d.script) {
		return d.script[i], nil
	}
	return nil, nil
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) lastBounds() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastW, d.lastH
}

// fakeSource serves candidate sets from memory.
type fakeSource struct {
	mu        sync.Mutex
	all       []matcher.Candidate
	groups    map[string][]matcher.Candidate
	people    map[string]matcher.Candidate
	lookupErr map[string]error
	allErr    error
}

func (s *fakeSource) All(_ context.Context) ([]matcher.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allErr != nil {
		return nil, s.allErr
	}
	return s.all, nil
}

func (s *fakeSource) Group(_ context.Context, tag string) ([]matcher.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[tag], nil
}

func (s *fakeSource) ByRegNo(_ context.Context, regNo string) (matcher.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lookupErr[regNo]; err != nil {
		return matcher.Candidate{}, err
	}
	cand, ok := s.people[regNo]
	if !ok {
		return matcher.Candidate{}, errors.Newf("person %q not found", regNo).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return cand, nil
}

type commitCall struct {
	personID   uint
	confidence float64
	mode       string
}

// fakeLedger mimics the store's (person, date) dedup.
type fakeLedger struct {
	mu      sync.Mutex
	commits []commitCall
	marked  map[string]bool
	err     error
}

func (l *fakeLedger) CommitAttendance(_ context.Context, personID uint, confidence float64, mode string) (datastore.CommitOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	l.commits = append(l.commits, commitCall{personID, confidence, mode})
	if l.marked == nil {
		l.marked = make(map[string]bool)
	}
	key := fmt.Sprintf("%d|%s", personID, datastore.Today())
	if l.marked[key] {
		return datastore.AttendanceAlreadyMarked, nil
	}
	l.marked[key] = true
	return datastore.AttendanceCreated, nil
}

func (l *fakeLedger) calls() []commitCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]commitCall(nil), l.commits...)
}

func (l *fakeLedger) premark(personID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.marked == nil {
		l.marked = make(map[string]bool)
	}
	l.marked[fmt.Sprintf("%d|%s", personID, datastore.Today())] = true
}

// fakeScanner yields a decoded identifier a limited number of times.
type fakeScanner struct {
	mu        sync.Mutex
	text      string
	remaining int
}

func (s *fakeScanner) Scan(_ image.Image) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining <= 0 {
		return "", false
	}
	s.remaining--
	return s.text, true
}

// testHarness bundles a session with its fakes.
type testHarness struct {
	feed     *fakeFeed
	detector *fakeDetector
	source   *fakeSource
	ledger   *fakeLedger
	session  *Session
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	h := &testHarness{
		feed:     newFakeFeed(),
		detector: &fakeDetector{},
		source:   &fakeSource{},
		ledger:   &fakeLedger{},
	}
	cfg.Feed = h.feed
	cfg.Detector = h.detector
	cfg.Source = h.source
	cfg.Ledger = h.ledger
	if cfg.Engine == nil {
		cfg.Engine = matcher.New(0.4)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = testPollInterval
	}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.session = s
	return h
}

func (h *testHarness) start(t *testing.T) {
	t.Helper()
	if err := h.session.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := h.session.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
}

// waitLoaded polls until the session's candidate count reaches want.
func waitLoaded(t *testing.T, s *Session, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Loaded() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d loaded candidates, have %d", want, s.Loaded())
}

// waitOutputSeq polls until the session publishes output for the given
// frame sequence.
func waitOutputSeq(t *testing.T, s *Session, seq uint64) *Output {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if out := s.Output(); out != nil && out.Frame != nil && out.Frame.Seq == seq {
			return out
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for output of frame %d", seq)
	return nil
}

// waitStatus polls until the session's status line equals want.
func waitStatus(t *testing.T, s *Session, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q, have %q", want, s.Status())
}

// pumpStatus keeps fresh frames flowing until the session's status
// line equals want. Event notes surface only on published frames, so
// tests that trigger one off the frame path need the stream running.
func pumpStatus(t *testing.T, h *testHarness, startSeq uint64, want string) uint64 {
	t.Helper()
	seq := startSeq
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.feed.Hub().Publish(testFrame(seq))
		seq++
		time.Sleep(2 * testPollInterval)
		if h.session.Status() == want {
			return seq
		}
	}
	t.Fatalf("timed out waiting for status %q, have %q", want, h.session.Status())
	return seq
}

// waitDone waits for the session loop to exit on its own.
func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to finish")
	}
}

func TestOpenSessionHysteresisCommitsOnce(t *testing.T) {
	// Distances [0.3, 0.3, 0.5, 0.3, 0.3, 0.3] against tolerance 0.4
	// walk the counter [1,2,1,2,3]: the commit fires exactly once, on
	// the fifth processed frame, at that frame's confidence.
	h := newHarness(t, Config{Mode: ModeOpen, Threshold: 3})
	h.source.all = []matcher.Candidate{
		matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{
		{faceAt(0.3)},
		{faceAt(0.3)},
		{faceAt(0.5)},
		{faceAt(0.3)},
		{faceAt(0.3)},
		{faceAt(0.3)},
	}

	h.start(t)
	waitLoaded(t, h.session, 1)

	for seq := uint64(1); seq <= 4; seq++ {
		h.feed.Hub().Publish(testFrame(seq))
		out := waitOutputSeq(t, h.session, seq)
		if seq == 3 {
			if len(out.Detections) != 1 || out.Detections[0].State != StateUnknown {
				t.Errorf("frame 3 should be a non-match, got %+v", out.Detections)
			}
		}
	}
	if calls := h.ledger.calls(); len(calls) != 0 {
		t.Fatalf("committed before the threshold: %+v", calls)
	}

	h.feed.Hub().Publish(testFrame(5))
	out := waitOutputSeq(t, h.session, 5)

	calls := h.ledger.calls()
	if len(calls) != 1 {
		t.Fatalf("commits = %d after the confirming frame, want 1", len(calls))
	}
	if calls[0].personID != 1 || calls[0].mode != "population" {
		t.Errorf("commit = %+v, want person 1 via population mode", calls[0])
	}
	if math.Abs(calls[0].confidence-70) > 0.01 {
		t.Errorf("confidence = %v, want 70 from the confirming frame", calls[0].confidence)
	}
	if out.MarkedToday != 1 {
		t.Errorf("marked today = %d, want 1", out.MarkedToday)
	}
	if len(out.Detections) != 1 || out.Detections[0].State != StateConfirmed {
		t.Errorf("confirming frame detections = %+v, want one confirmed region", out.Detections)
	}
	if want := StatusSaved("Aisha Khan", 70); out.Status != want {
		t.Errorf("status = %q, want %q", out.Status, want)
	}

	// The identity is excluded for the day: a sixth match changes
	// nothing.
	h.feed.Hub().Publish(testFrame(6))
	waitOutputSeq(t, h.session, 6)
	if calls := h.ledger.calls(); len(calls) != 1 {
		t.Errorf("commits = %d after the sixth frame, want still 1", len(calls))
	}
}

func TestOpenSessionNeverSelfTerminates(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen, Threshold: 1})
	h.source.all = []matcher.Candidate{
		matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{{faceAt(0.1)}}

	h.start(t)
	waitLoaded(t, h.session, 1)

	h.feed.Hub().Publish(testFrame(1))
	waitOutputSeq(t, h.session, 1)

	if calls := h.ledger.calls(); len(calls) != 1 {
		t.Fatalf("commits = %d, want 1", len(calls))
	}
	select {
	case <-h.session.Done():
		t.Fatal("open session terminated after a confirmation")
	case <-time.After(50 * time.Millisecond):
	}
	if !h.session.Running() {
		t.Error("open session should keep running after a commit")
	}
}

func TestVerifySessionStopsOnConfirm(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeVerify})
	h.source.people = map[string]matcher.Candidate{
		"S001": matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{
		{faceAt(0.2)}, {faceAt(0.2)}, {faceAt(0.2)}, {faceAt(0.2)}, {faceAt(0.2)},
	}

	h.start(t)
	if err := h.session.Supply("S001"); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	waitLoaded(t, h.session, 1)

	for seq := uint64(1); seq <= 5; seq++ {
		h.feed.Hub().Publish(testFrame(seq))
		if seq < 5 {
			waitOutputSeq(t, h.session, seq)
		}
	}
	waitDone(t, h.session)

	calls := h.ledger.calls()
	if len(calls) != 1 {
		t.Fatalf("commits = %d, want 1", len(calls))
	}
	if calls[0].personID != 1 || calls[0].mode != "single" {
		t.Errorf("commit = %+v, want person 1 via single mode", calls[0])
	}
	if h.session.Running() {
		t.Error("verify session should stop once its identity commits")
	}
	if refs := h.feed.Refs(); refs != 0 {
		t.Errorf("feed refs = %d after self-stop, want 0", refs)
	}
	if err := h.session.Start(t.Context()); !errors.Is(err, ErrFinished) {
		t.Errorf("restarting a finished session returned %v, want ErrFinished", err)
	}
}

func TestVerifySessionAlreadyMarked(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeVerify, Threshold: 2})
	h.source.people = map[string]matcher.Candidate{
		"S001": matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.ledger.premark(1)
	h.detector.script = [][]facerec.Face{{faceAt(0.2)}, {faceAt(0.2)}}

	h.start(t)
	if err := h.session.Supply("S001"); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	waitLoaded(t, h.session, 1)

	h.feed.Hub().Publish(testFrame(1))
	waitOutputSeq(t, h.session, 1)
	h.feed.Hub().Publish(testFrame(2))
	waitDone(t, h.session)

	if got := h.session.Status(); got != StatusAlreadyMarked("Aisha Khan") {
		t.Errorf("status = %q, want already-marked line", got)
	}
	if out := h.session.Output(); out.MarkedToday != 0 {
		t.Errorf("marked today = %d for a dedup no-op, want 0", out.MarkedToday)
	}
}

func TestVerifySessionUnknownIdentifier(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeVerify})
	h.source.people = map[string]matcher.Candidate{
		"S001": matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}

	h.start(t)
	if err := h.session.Supply("S999"); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	pumpStatus(t, h, 1, StatusStudentNotFound)

	if !h.session.Running() {
		t.Fatal("session should idle after an unknown identifier, not stop")
	}

	// A corrected identifier resolves and loads one candidate.
	if err := h.session.Supply("S001"); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	waitLoaded(t, h.session, 1)
}

func TestVerifySessionPhotoWithoutFace(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeVerify})
	h.source.lookupErr = map[string]error{"S002": facerec.ErrNoFace}

	h.start(t)
	if err := h.session.Supply("S002"); err != nil {
		t.Fatalf("Supply: %v", err)
	}
	pumpStatus(t, h, 1, StatusNoFaceInPhoto)

	if got := h.session.Loaded(); got != 0 {
		t.Errorf("loaded = %d for an unembeddable enrollment, want 0", got)
	}
}

func TestVerifySessionScannerResolves(t *testing.T) {
	scanner := &fakeScanner{text: "S001", remaining: 1}
	h := newHarness(t, Config{Mode: ModeVerify, Threshold: 2, Scanner: scanner})
	h.source.people = map[string]matcher.Candidate{
		"S001": matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{{faceAt(0.2)}, {faceAt(0.2)}}

	h.start(t)

	// The first frame carries the code; the session decodes it and
	// loads the identity without operator input.
	h.feed.Hub().Publish(testFrame(1))
	out := waitOutputSeq(t, h.session, 1)
	if out.Status != StatusScanningCode && out.Status != StatusLoadingFaces {
		t.Errorf("idle status = %q, want scanning or loading", out.Status)
	}
	waitLoaded(t, h.session, 1)

	h.feed.Hub().Publish(testFrame(2))
	waitOutputSeq(t, h.session, 2)
	h.feed.Hub().Publish(testFrame(3))
	waitDone(t, h.session)

	if calls := h.ledger.calls(); len(calls) != 1 || calls[0].personID != 1 {
		t.Errorf("commits = %+v, want one for person 1", calls)
	}
}

func TestGroupSwitchRestartsCounting(t *testing.T) {
	// A person counting toward confirmation in group A starts from
	// zero after a switch to group B, even though the frames keep
	// matching.
	same := matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{})
	h := newHarness(t, Config{Mode: ModeGroup, Threshold: 3, GroupTag: "A"})
	h.source.groups = map[string][]matcher.Candidate{
		"A": {same},
		"B": {same},
	}
	h.detector.script = [][]facerec.Face{
		{faceAt(0.2)}, {faceAt(0.2)}, // group A, counter reaches 2
		{faceAt(0.2)}, {faceAt(0.2)}, {faceAt(0.2)}, // group B, counter 1,2,3
	}

	h.start(t)
	waitLoaded(t, h.session, 1)

	for seq := uint64(1); seq <= 2; seq++ {
		h.feed.Hub().Publish(testFrame(seq))
		waitOutputSeq(t, h.session, seq)
	}
	if calls := h.ledger.calls(); len(calls) != 0 {
		t.Fatalf("committed in group A before the threshold: %+v", calls)
	}

	if err := h.session.SwitchGroup("B"); err != nil {
		t.Fatalf("SwitchGroup: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.session.GroupTag() == "B" && h.session.Loaded() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if h.session.GroupTag() != "B" {
		t.Fatalf("group tag = %q after switch, want B", h.session.GroupTag())
	}

	// Two post-switch matches are not enough: the pre-switch progress
	// is gone.
	for seq := uint64(3); seq <= 4; seq++ {
		h.feed.Hub().Publish(testFrame(seq))
		waitOutputSeq(t, h.session, seq)
	}
	if calls := h.ledger.calls(); len(calls) != 0 {
		t.Fatalf("pre-switch counters leaked into group B: %+v", calls)
	}

	h.feed.Hub().Publish(testFrame(5))
	waitOutputSeq(t, h.session, 5)
	if calls := h.ledger.calls(); len(calls) != 1 {
		t.Errorf("commits = %d after three post-switch matches, want 1", len(calls))
	}
}

func TestGroupSwitchClearsConfirmedSet(t *testing.T) {
	// The confirmed-today exclusion resets with the candidate set, so
	// the same person re-counts in the new group; the ledger's dedup
	// turns the second commit into a no-op.
	same := matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{})
	h := newHarness(t, Config{Mode: ModeGroup, Threshold: 2, GroupTag: "A"})
	h.source.groups = map[string][]matcher.Candidate{
		"A": {same},
		"B": {same},
	}
	h.detector.script = [][]facerec.Face{
		{faceAt(0.2)}, {faceAt(0.2)},
		{faceAt(0.2)}, {faceAt(0.2)},
	}

	h.start(t)
	waitLoaded(t, h.session, 1)

	for seq := uint64(1); seq <= 2; seq++ {
		h.feed.Hub().Publish(testFrame(seq))
		waitOutputSeq(t, h.session, seq)
	}
	if calls := h.ledger.calls(); len(calls) != 1 {
		t.Fatalf("commits = %d in group A, want 1", len(calls))
	}

	if err := h.session.SwitchGroup("B"); err != nil {
		t.Fatalf("SwitchGroup: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.session.GroupTag() == "B" && h.session.Loaded() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	for seq := uint64(3); seq <= 4; seq++ {
		h.feed.Hub().Publish(testFrame(seq))
		waitOutputSeq(t, h.session, seq)
	}

	calls := h.ledger.calls()
	if len(calls) != 2 {
		t.Fatalf("commits = %d, want 2 (the exclusion resets with the switch)", len(calls))
	}
	if got := h.session.Status(); got != StatusAlreadyMarked("Aisha Khan") {
		t.Errorf("status = %q, want already-marked from the ledger dedup", got)
	}
}

func TestSessionEveryNthStride(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen, Threshold: 3, EveryNth: 2})
	h.source.all = []matcher.Candidate{
		matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{
		{faceAt(0.2)}, {faceAt(0.2)}, {faceAt(0.2)},
	}

	h.start(t)
	waitLoaded(t, h.session, 1)

	// Odd sequences are off stride: the session must skip them
	// without running detection.
	h.feed.Hub().Publish(testFrame(1))
	time.Sleep(20 * testPollInterval)
	if calls := h.detector.callCount(); calls != 0 {
		t.Fatalf("detector ran %d times on an off-stride frame, want 0", calls)
	}

	h.feed.Hub().Publish(testFrame(2))
	waitOutputSeq(t, h.session, 2)
	h.feed.Hub().Publish(testFrame(3))
	time.Sleep(20 * testPollInterval)
	h.feed.Hub().Publish(testFrame(4))
	waitOutputSeq(t, h.session, 4)

	if calls := h.detector.callCount(); calls != 2 {
		t.Errorf("detector calls = %d over sequences 1-4, want 2", calls)
	}
}

func TestSessionDownscaleMapsRegionsBack(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen, Threshold: 1, Downscale: 0.5})
	h.source.all = []matcher.Candidate{
		matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{
		{{Rectangle: image.Rect(2, 2, 8, 8)}},
	}

	h.start(t)
	waitLoaded(t, h.session, 1)

	h.feed.Hub().Publish(testFrame(1))
	out := waitOutputSeq(t, h.session, 1)

	if w, height := h.detector.lastBounds(); w != 16 || height != 16 {
		t.Errorf("detector saw %dx%d, want the 16x16 downscaled frame", w, height)
	}
	if len(out.Detections) != 1 {
		t.Fatalf("detections = %d, want 1", len(out.Detections))
	}
	if want := image.Rect(4, 4, 16, 16); out.Detections[0].Region != want {
		t.Errorf("region = %v, want %v mapped back to frame coordinates", out.Detections[0].Region, want)
	}
}

func TestSessionMultipleFaces(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen, Threshold: 1})
	h.source.all = []matcher.Candidate{
		matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}
	h.detector.script = [][]facerec.Face{
		{faceAt(0.2), faceAt(0.9)},
	}

	h.start(t)
	waitLoaded(t, h.session, 1)

	h.feed.Hub().Publish(testFrame(1))
	out := waitOutputSeq(t, h.session, 1)

	if len(out.Detections) != 2 {
		t.Fatalf("detections = %d, want 2", len(out.Detections))
	}
	if out.Detections[0].State != StateConfirmed {
		t.Errorf("matched region state = %q, want confirmed at threshold 1", out.Detections[0].State)
	}
	if want := MatchLabel("S001", "Aisha Khan"); out.Detections[0].Label != want {
		t.Errorf("label = %q, want %q", out.Detections[0].Label, want)
	}
	if out.Detections[1].State != StateUnknown {
		t.Errorf("stranger region state = %q, want unknown", out.Detections[1].State)
	}
	if calls := h.ledger.calls(); len(calls) != 1 {
		t.Errorf("commits = %d, want 1 for the one matched identity", len(calls))
	}
}

func TestSessionCameraUnavailable(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen})
	h.source.all = []matcher.Candidate{
		matcher.NewCandidate(1, "S001", "Aisha Khan", facerec.Descriptor{}),
	}

	h.start(t)
	waitStatus(t, h.session, StatusCameraUnavailable)
}

func TestSessionStopReleasesFeed(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen})

	if err := h.session.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if refs := h.feed.Refs(); refs != 1 {
		t.Fatalf("feed refs = %d after start, want 1", refs)
	}
	if err := h.session.Start(t.Context()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start returned %v, want ErrAlreadyRunning", err)
	}

	if err := h.session.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if refs := h.feed.Refs(); refs != 0 {
		t.Errorf("feed refs = %d after stop, want 0", refs)
	}
	if h.session.Running() {
		t.Error("session reports running after Stop")
	}
	select {
	case <-h.session.Done():
	default:
		t.Error("Done channel should be closed after Stop")
	}

	// Stop is idempotent.
	if err := h.session.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSessionOperatorActionGuards(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen})

	if err := h.session.Supply("S001"); err == nil {
		t.Error("Supply on an open session should fail")
	}
	if err := h.session.SwitchGroup("A"); err == nil {
		t.Error("SwitchGroup on an open session should fail")
	}
	if err := h.session.Reload(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Reload before Start returned %v, want ErrNotRunning", err)
	}

	verify := newHarness(t, Config{Mode: ModeVerify})
	if err := verify.session.Supply("S001"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Supply before Start returned %v, want ErrNotRunning", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Mode: "bogus"}); err == nil {
		t.Error("unknown mode should fail")
	}
	if _, err := New(Config{Mode: ModeOpen}); err == nil {
		t.Error("missing collaborators should fail")
	}
}

func TestConfigFromSettings(t *testing.T) {
	settings := &conf.Settings{}
	settings.Camera.CaptureInterval = 20 * time.Millisecond
	settings.Recognition.Tolerance = 0.4
	settings.Recognition.ProcessEveryNth = 2
	settings.Recognition.Downscale = 0.5
	settings.Recognition.Confirm.Single = 5
	settings.Recognition.Confirm.Population = 3
	settings.Realtime.RollCall.Group = "MCA-1"

	verify := ConfigFromSettings(settings, ModeVerify)
	if verify.Threshold != 5 {
		t.Errorf("verify threshold = %d, want 5", verify.Threshold)
	}
	if verify.EveryNth != 0 || verify.Downscale != 0 {
		t.Errorf("verify stride/downscale = %d/%v, want unset", verify.EveryNth, verify.Downscale)
	}

	open := ConfigFromSettings(settings, ModeOpen)
	if open.Threshold != 3 || open.EveryNth != 2 || open.Downscale != 0.5 {
		t.Errorf("open config = %+v, want threshold 3, stride 2, downscale 0.5", open)
	}

	group := ConfigFromSettings(settings, ModeGroup)
	if group.GroupTag != "MCA-1" {
		t.Errorf("group tag = %q, want MCA-1", group.GroupTag)
	}
}

func TestSessionStartFeedError(t *testing.T) {
	h := newHarness(t, Config{Mode: ModeOpen})
	h.feed.acquireErr = errors.Newf("device busy").
		Component("camera").
		Category(errors.CategoryDevice).
		Build()

	if err := h.session.Start(t.Context()); err == nil {
		t.Fatal("Start should surface the acquire failure")
	}
	if h.session.Running() {
		t.Error("session must not run after a failed acquire")
	}
}
