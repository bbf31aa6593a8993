package session

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/matcher"
	"github.com/campuskit/faceroll/internal/observability/metrics"
)

// Mode selects a session's candidate scope and termination behavior.
type Mode string

const (
	// ModeVerify verifies one expected identity at full resolution and
	// stops once it is confirmed and committed.
	ModeVerify Mode = "verify"
	// ModeOpen matches against every usable enrollment and runs until
	// stopped.
	ModeOpen Mode = "open"
	// ModeGroup matches against one group tag's enrollments and runs
	// until stopped.
	ModeGroup Mode = "group"
)

// ledgerMode returns the mode string recorded on attendance rows.
func (m Mode) ledgerMode() string {
	switch m {
	case ModeVerify:
		return "single"
	case ModeOpen:
		return "population"
	default:
		return string(m)
	}
}

const (
	// defaultPollInterval paces the frame loop when the configuration
	// does not set one. It matches the capture cadence, so a session
	// sees every captured frame without spinning.
	defaultPollInterval = 20 * time.Millisecond

	// statusHold is how long event statuses such as a saved mark stay
	// on the status line before per-frame statuses take over again.
	statusHold = 3 * time.Second

	defaultVerifyThreshold     = 5
	defaultPopulationThreshold = 3

	stopReasonConfirmed = "confirmed"
	stopReasonCancelled = "cancelled"
)

// FrameFeed is the shared, reference-counted camera owner a session
// borrows frames from. *camera.FrameSource implements it.
type FrameFeed interface {
	Acquire() error
	Release() error
	Hub() *camera.FrameHub
}

// Detector finds faces and their descriptors in an image.
// *facerec.Recognizer implements it.
type Detector interface {
	DetectAll(img image.Image) ([]facerec.Face, error)
}

// CandidateSource loads matchable candidates from the roster.
// Implementations return only enrollments with a usable embedding;
// ByRegNo reports an enrollment whose photo has no detectable face by
// wrapping facerec.ErrNoFace.
type CandidateSource interface {
	All(ctx context.Context) ([]matcher.Candidate, error)
	Group(ctx context.Context, tag string) ([]matcher.Candidate, error)
	ByRegNo(ctx context.Context, regNo string) (matcher.Candidate, error)
}

// Ledger commits confirmed identities to the attendance store.
// datastore.Interface implements it.
type Ledger interface {
	CommitAttendance(ctx context.Context, personID uint, confidence float64, mode string) (datastore.CommitOutcome, error)
}

// Scanner decodes a machine-readable identifier from a frame, feeding
// the verify session's identifier discovery.
type Scanner interface {
	Scan(img image.Image) (string, bool)
}

// Config assembles a session's collaborators and tuning.
type Config struct {
	Mode Mode

	Feed     FrameFeed
	Detector Detector
	Engine   *matcher.Engine
	Source   CandidateSource
	Ledger   Ledger
	Scanner  Scanner // verify identifier discovery, optional

	// Threshold is the confirmation count; zero selects the mode
	// default (5 for verify, 3 for population modes).
	Threshold int

	// EveryNth processes only every Nth captured frame. Zero or one
	// processes every frame; verify sessions always do.
	EveryNth int

	// Downscale shrinks frames before detection in population modes;
	// zero or one disables. Detected regions are mapped back to frame
	// coordinates before they are reported.
	Downscale float64

	// PollInterval paces the frame loop; zero selects the capture
	// cadence default.
	PollInterval time.Duration

	// GroupTag preloads the subset session with a group on start.
	GroupTag string

	// OnCreated is called for each commit that created the day's
	// record. Optional; must not block the frame loop.
	OnCreated func(Event)

	Metrics     *metrics.SessionMetrics
	ScanMetrics *metrics.MatcherMetrics
}

// ConfigFromSettings builds the per-mode tuning from application
// settings. Collaborators are filled in by the caller.
func ConfigFromSettings(settings *conf.Settings, mode Mode) Config {
	cfg := Config{
		Mode:         mode,
		PollInterval: settings.Camera.CaptureInterval,
	}
	switch mode {
	case ModeVerify:
		cfg.Threshold = settings.Recognition.Confirm.Single
	default:
		cfg.Threshold = settings.Recognition.Confirm.Population
		cfg.EveryNth = settings.Recognition.ProcessEveryNth
		cfg.Downscale = settings.Recognition.Downscale
	}
	if mode == ModeGroup {
		cfg.GroupTag = settings.Realtime.RollCall.Group
	}
	return cfg
}

// sessionState is the immutable candidate snapshot the frame loop
// works against. Loads and group switches publish a fresh state; a
// frame in flight keeps using the snapshot it started with, so a
// switch never mixes old counters with new candidates.
type sessionState struct {
	groupTag   string
	target     string // verify: identifier under verification
	candidates []matcher.Candidate
	tracker    *Tracker
	loading    bool
	note       string // one-shot status surfaced when the loop first sees this state
}

// Session drives one recognition mode over the shared frame stream:
// poll the hub, detect, match, advance the confirmation counters, and
// commit confirmed identities exactly once per day.
type Session struct {
	id  uuid.UUID
	cfg Config

	state    atomic.Pointer[sessionState]
	supplied atomic.Pointer[string]
	output   atomic.Pointer[Output]
	marked   atomic.Int64

	mu       sync.Mutex
	running  bool
	finished bool
	ctx      context.Context
	cancel   context.CancelFunc
	started  time.Time

	done chan struct{}
}

// New assembles a session. The frame loop does not start until Start.
func New(cfg Config) (*Session, error) {
	switch cfg.Mode {
	case ModeVerify, ModeOpen, ModeGroup:
	default:
		return nil, errors.Newf("unknown session mode %q", cfg.Mode).
			Component(ComponentSession).
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Feed == nil || cfg.Detector == nil || cfg.Engine == nil || cfg.Source == nil || cfg.Ledger == nil {
		return nil, errors.Newf("session requires feed, detector, engine, source, and ledger").
			Component(ComponentSession).
			Category(errors.CategoryValidation).
			Context("mode", string(cfg.Mode)).
			Build()
	}

	if cfg.Threshold <= 0 {
		if cfg.Mode == ModeVerify {
			cfg.Threshold = defaultVerifyThreshold
		} else {
			cfg.Threshold = defaultPopulationThreshold
		}
	}
	if cfg.Mode == ModeVerify {
		// Verification runs full resolution on every frame.
		cfg.EveryNth = 1
		cfg.Downscale = 0
	}
	if cfg.EveryNth <= 0 {
		cfg.EveryNth = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	s := &Session{
		id:   uuid.New(),
		cfg:  cfg,
		done: make(chan struct{}),
	}
	s.state.Store(&sessionState{tracker: NewTracker(cfg.Threshold)})
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Mode returns the session's mode.
func (s *Session) Mode() Mode {
	return s.cfg.Mode
}

// Output returns the most recently published frame snapshot, nil
// before the first one.
func (s *Session) Output() *Output {
	return s.output.Load()
}

// Status returns the current status line, empty before the first
// published output.
func (s *Session) Status() string {
	if out := s.output.Load(); out != nil {
		return out.Status
	}
	return ""
}

// Loaded returns the number of currently matchable candidates.
func (s *Session) Loaded() int {
	return len(s.state.Load().candidates)
}

// GroupTag returns the subset session's active group tag.
func (s *Session) GroupTag() string {
	return s.state.Load().groupTag
}

// MarkedToday returns the marked-today count shown on the HUD.
func (s *Session) MarkedToday() int {
	return int(s.marked.Load())
}

// SetMarkedToday replaces the marked-today count, as refreshed from
// the store by the periodic job.
func (s *Session) SetMarkedToday(count int) {
	s.marked.Store(int64(count))
	if m := s.cfg.Metrics; m != nil {
		m.SetMarkedToday(count)
	}
}

// Running reports whether the frame loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done returns a channel closed when the frame loop exits, either by
// Stop or, for verify sessions, by confirming their identity.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start acquires the shared camera and begins the frame loop. The
// loop also stops when ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.finished {
		return ErrFinished
	}

	if err := s.cfg.Feed.Acquire(); err != nil {
		return errors.New(err).
			Component(ComponentSession).
			Category(errors.CategoryDevice).
			Context("mode", string(s.cfg.Mode)).
			Build()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true
	s.started = time.Now()

	if m := s.cfg.Metrics; m != nil {
		m.RecordSessionStart(string(s.cfg.Mode))
	}
	getLogger().Info("session started",
		"session_id", s.id.String(),
		"mode", string(s.cfg.Mode),
		"threshold", s.cfg.Threshold,
		"every_nth", s.cfg.EveryNth)

	// Population modes know their candidate scope up front.
	switch s.cfg.Mode {
	case ModeOpen:
		s.beginLoad(runCtx, "", "")
	case ModeGroup:
		if s.cfg.GroupTag != "" {
			s.beginLoad(runCtx, s.cfg.GroupTag, "")
		}
	}

	go s.run(runCtx)
	return nil
}

// Stop cancels the frame loop, waits for it to exit, and returns once
// the camera reference is released. Stopping a session that never
// started or already finished is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-s.done
	return nil
}

// run is the frame loop goroutine. It owns the camera reference taken
// by Start and releases it on every exit path.
func (s *Session) run(ctx context.Context) {
	reason := stopReasonCancelled
	defer func() {
		if err := s.cfg.Feed.Release(); err != nil {
			getLogger().Error("failed to release camera feed",
				"session_id", s.id.String(),
				"error", err)
		}
		s.mu.Lock()
		s.running = false
		s.finished = true
		started := s.started
		s.mu.Unlock()
		if m := s.cfg.Metrics; m != nil {
			m.RecordSessionStop(string(s.cfg.Mode), reason, time.Since(started).Seconds())
		}
		getLogger().Info("session stopped",
			"session_id", s.id.String(),
			"mode", string(s.cfg.Mode),
			"reason", reason)
		close(s.done)
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	loop := &loopState{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.step(ctx, loop) {
				reason = stopReasonConfirmed
				return
			}
		}
	}
}

// loopState is the frame loop's private bookkeeping.
type loopState struct {
	lastSeq     uint64        // sequence of the last frame examined
	lastState   *sessionState // last snapshot whose note was surfaced
	sticky      string
	stickyUntil time.Time
}

// status resolves the line to publish: an unexpired event status wins
// over the per-frame default.
func (l *loopState) status(def string, now time.Time) string {
	if l.sticky != "" {
		if now.Before(l.stickyUntil) {
			return l.sticky
		}
		l.sticky = ""
	}
	return def
}

// hold pins an event status for the next few published frames.
func (l *loopState) hold(status string, now time.Time) {
	l.sticky = status
	l.stickyUntil = now.Add(statusHold)
}

// step examines the latest frame and processes it when it is new and
// on stride. It reports true once a verify session has committed its
// identity.
func (s *Session) step(ctx context.Context, loop *loopState) bool {
	now := time.Now()
	state := s.state.Load()

	if state != loop.lastState {
		loop.lastState = state
		if state.note != "" {
			loop.hold(state.note, now)
		}
	}

	// Pick up an operator-supplied identifier even between frames.
	if s.cfg.Mode == ModeVerify {
		if id := s.supplied.Swap(nil); id != nil && *id != "" {
			s.beginLoad(ctx, "", *id)
			return false
		}
	}

	frame := s.cfg.Feed.Hub().Latest()
	if frame == nil {
		// Device state outranks held event statuses: with no frames
		// there is no preview for a note to sit on.
		s.publish(nil, nil, state, StatusCameraUnavailable, now)
		return false
	}
	if frame.Seq == loop.lastSeq {
		return false
	}
	loop.lastSeq = frame.Seq

	if s.cfg.EveryNth > 1 && frame.Seq%uint64(s.cfg.EveryNth) != 0 {
		if m := s.cfg.ScanMetrics; m != nil {
			m.IncrementSkippedFrames()
		}
		return false
	}

	return s.process(ctx, loop, state, frame, now)
}

// process runs detection and matching for one frame and advances the
// confirmation counters.
func (s *Session) process(ctx context.Context, loop *loopState, state *sessionState, frame *camera.Frame, now time.Time) bool {
	if m := s.cfg.Metrics; m != nil {
		m.RecordFrameEvaluated(string(s.cfg.Mode))
	}

	if state.loading {
		s.publish(frame, nil, state, loop.status(StatusLoadingFaces, now), now)
		return false
	}

	if len(state.candidates) == 0 {
		// Nothing to match yet. Verify sessions sit here scanning the
		// frame for an identifier; population sessions await a load.
		if s.cfg.Mode == ModeVerify && s.cfg.Scanner != nil {
			// A code that just failed to resolve keeps decoding for as
			// long as it stays in frame; state.target suppresses the
			// repeat lookups.
			if text, ok := s.cfg.Scanner.Scan(frame.Image); ok && text != "" && text != state.target {
				getLogger().Info("identifier decoded from frame",
					"session_id", s.id.String(),
					"reg_no", text)
				s.beginLoad(ctx, "", text)
			}
		}
		s.publish(frame, nil, state, loop.status(s.idleStatus(), now), now)
		return false
	}

	date := datastore.Today()
	detections, matched, err := s.scanFrame(frame, state, date)
	if err != nil {
		// Detection failures carry no match information; leave the
		// counters alone and self-heal on the next frame.
		s.publish(frame, nil, state, loop.status(s.frameStatus(0), now), now)
		return false
	}

	adv := state.tracker.Advance(date, matched)
	s.recordAdvance(adv)

	for _, c := range adv.Confirmed {
		s.commit(ctx, loop, state, c, now)
	}
	if len(adv.Confirmed) > 0 {
		// Regions matched on the confirming frame were classified
		// before the counters advanced; upgrade them in place.
		for i := range detections {
			if detections[i].PersonID != 0 && state.tracker.Confirmed(date, detections[i].PersonID) {
				detections[i].State = StateConfirmed
			}
		}
	}

	s.publish(frame, detections, state, loop.status(s.frameStatus(len(detections)), now), now)

	return len(adv.Confirmed) > 0 && s.cfg.Mode == ModeVerify
}

// scanFrame detects faces and matches each against the candidate set.
// It returns the annotated regions plus the matched identities with
// their confidences for the tracker.
func (s *Session) scanFrame(frame *camera.Frame, state *sessionState, date string) ([]Detection, map[uint]float64, error) {
	img := frame.Image
	factor := s.cfg.Downscale
	scaled := img
	if factor > 0 && factor < 1 {
		scaled = matcher.Downscale(img, factor)
		if m := s.cfg.ScanMetrics; m != nil {
			m.IncrementDownscaledFrames()
		}
	}

	mode := string(s.cfg.Mode)
	start := time.Now()
	faces, err := s.cfg.Detector.DetectAll(scaled)
	if m := s.cfg.ScanMetrics; m != nil {
		m.RecordScanDuration(mode, time.Since(start).Seconds())
		if err != nil {
			m.RecordScan(mode, "error")
		} else {
			m.RecordScan(mode, "success")
			m.RecordCandidateSetSize(mode, len(state.candidates))
		}
	}
	if err != nil {
		getLogger().Warn("face detection failed",
			"session_id", s.id.String(),
			"error", err)
		return nil, nil, err
	}

	var (
		detections []Detection
		matched    map[uint]float64
	)
	for i := range faces {
		region := faces[i].Rectangle
		if factor > 0 && factor < 1 {
			region = matcher.UpscaleRect(region, factor)
		}

		m := s.cfg.Engine.Best(faces[i].Descriptor, state.candidates)
		if !m.Matched {
			detections = append(detections, Detection{Region: region, State: StateUnknown})
			continue
		}

		det := Detection{
			Region:     region,
			State:      StateCounting,
			PersonID:   m.PersonID,
			Label:      MatchLabel(m.RegNo, m.Name),
			Confidence: m.Confidence,
		}
		if state.tracker.Confirmed(date, m.PersonID) {
			det.State = StateConfirmed
		}
		detections = append(detections, det)

		if matched == nil {
			matched = make(map[uint]float64)
		}
		// Two regions matching the same identity in one frame count
		// once, at the higher confidence.
		if prev, ok := matched[m.PersonID]; !ok || m.Confidence > prev {
			matched[m.PersonID] = m.Confidence
		}
	}
	return detections, matched, nil
}

// commit attempts the day's attendance insert for one confirmed
// identity. The tracker already excluded the identity from further
// counting, so this runs at most once per identity per day regardless
// of outcome.
func (s *Session) commit(ctx context.Context, loop *loopState, state *sessionState, c Confirmation, now time.Time) {
	cand, ok := findCandidate(state.candidates, c.PersonID)
	if !ok {
		return
	}

	outcome, err := s.cfg.Ledger.CommitAttendance(ctx, c.PersonID, c.Confidence, s.cfg.Mode.ledgerMode())
	if err != nil {
		if m := s.cfg.Metrics; m != nil {
			m.RecordCommitResult("error")
		}
		getLogger().Error("attendance commit failed",
			"session_id", s.id.String(),
			"person_id", c.PersonID,
			"reg_no", cand.RegNo,
			"error", err)
		return
	}

	if m := s.cfg.Metrics; m != nil {
		m.RecordCommitResult(string(outcome))
	}

	switch outcome {
	case datastore.AttendanceCreated:
		markedToday := s.marked.Add(1)
		if m := s.cfg.Metrics; m != nil {
			m.SetMarkedToday(int(markedToday))
		}
		loop.hold(StatusSaved(cand.Name, c.Confidence), now)
		getLogger().Info("attendance saved",
			"session_id", s.id.String(),
			"mode", string(s.cfg.Mode),
			"person_id", c.PersonID,
			"reg_no", cand.RegNo,
			"name", cand.Name,
			"confidence", c.Confidence)
		if s.cfg.OnCreated != nil {
			s.cfg.OnCreated(Event{
				SessionID:  s.id,
				Mode:       s.cfg.Mode,
				PersonID:   c.PersonID,
				RegNo:      cand.RegNo,
				Name:       cand.Name,
				Confidence: c.Confidence,
				Outcome:    outcome,
				Time:       now,
			})
		}
	case datastore.AttendanceAlreadyMarked:
		loop.hold(StatusAlreadyMarked(cand.Name), now)
		getLogger().Info("attendance already marked",
			"session_id", s.id.String(),
			"mode", string(s.cfg.Mode),
			"person_id", c.PersonID,
			"reg_no", cand.RegNo)
	}
}

// recordAdvance mirrors the tracker's counter movement into metrics.
func (s *Session) recordAdvance(adv FrameAdvance) {
	m := s.cfg.Metrics
	if m == nil {
		return
	}
	mode := string(s.cfg.Mode)
	for range adv.Increments {
		m.RecordCounterIncrement(mode)
	}
	for range adv.Decrements {
		m.RecordCounterDecrement(mode)
	}
	for range adv.Confirmed {
		m.RecordConfirmation(mode)
	}
}

// publish stores the frame snapshot read by the renderer and the web
// preview.
func (s *Session) publish(frame *camera.Frame, detections []Detection, state *sessionState, status string, now time.Time) {
	s.output.Store(&Output{
		SessionID:   s.id,
		Mode:        s.cfg.Mode,
		Frame:       frame,
		Detections:  detections,
		Status:      status,
		Loaded:      len(state.candidates),
		MarkedToday: int(s.marked.Load()),
		At:          now,
	})
}

// idleStatus is the line shown while the session has no candidates.
func (s *Session) idleStatus() string {
	if s.cfg.Mode == ModeVerify {
		if s.cfg.Scanner != nil {
			return StatusScanningCode
		}
		return StatusWaitingForStudent
	}
	return StatusLookingForFace
}

// frameStatus is the per-frame default once candidates are loaded.
func (s *Session) frameStatus(detections int) string {
	if s.cfg.Mode == ModeVerify && detections == 0 {
		return StatusWaitingForStudent
	}
	return StatusLookingForFace
}

// Supply hands the verify session an identifier to verify, as typed
// by the operator. The loop picks it up on its next tick; a newer
// identifier supplied before pickup replaces the older one.
func (s *Session) Supply(regNo string) error {
	if s.cfg.Mode != ModeVerify {
		return errors.Newf("identifiers apply to verify sessions only").
			Component(ComponentSession).
			Category(errors.CategorySession).
			Context("mode", string(s.cfg.Mode)).
			Build()
	}
	if !s.Running() {
		return ErrNotRunning
	}
	id := regNo
	s.supplied.Store(&id)
	return nil
}

// SwitchGroup atomically retargets the subset session: the counters
// and the confirmed-today set are cleared by the same state swap that
// starts the new tag's load, so the old group's progress never leaks
// into the new one.
func (s *Session) SwitchGroup(tag string) error {
	if s.cfg.Mode != ModeGroup {
		return errors.Newf("group switching applies to subset sessions only").
			Component(ComponentSession).
			Category(errors.CategorySession).
			Context("mode", string(s.cfg.Mode)).
			Build()
	}

	s.mu.Lock()
	ctx := s.ctx
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	if m := s.cfg.Metrics; m != nil {
		m.IncrementGroupSwitches()
		m.RecordCounterReset(string(s.cfg.Mode), "group_switch")
	}
	getLogger().Info("group switch",
		"session_id", s.id.String(),
		"group", tag)
	s.beginLoad(ctx, tag, "")
	return nil
}

// Reload refreshes the candidate set from the roster: all usable
// enrollments for open sessions, the active tag for subset sessions.
// Counters and the confirmed-today set reset together with the
// candidate set.
func (s *Session) Reload() error {
	s.mu.Lock()
	ctx := s.ctx
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	tag := ""
	switch s.cfg.Mode {
	case ModeVerify:
		// The one-candidate set reloads with the next identifier.
		return nil
	case ModeGroup:
		tag = s.state.Load().groupTag
		if tag == "" {
			return nil
		}
	}

	if m := s.cfg.Metrics; m != nil {
		m.RecordCounterReset(string(s.cfg.Mode), "reload")
	}
	s.beginLoad(ctx, tag, "")
	return nil
}

// beginLoad swaps in a fresh loading state and fetches its candidates
// in the background. tag selects a group load, target an identifier
// lookup for verify mode; with neither, the full roster loads. A load
// landing after a newer swap is discarded, so a slow fetch never
// clobbers newer state.
func (s *Session) beginLoad(ctx context.Context, tag, target string) {
	loading := &sessionState{
		groupTag: tag,
		target:   target,
		tracker:  NewTracker(s.cfg.Threshold),
		loading:  true,
	}
	s.state.Store(loading)

	go func() {
		candidates, note := s.load(ctx, tag, target)
		loaded := &sessionState{
			groupTag:   tag,
			target:     target,
			candidates: candidates,
			tracker:    loading.tracker,
			note:       note,
		}
		if !s.state.CompareAndSwap(loading, loaded) {
			getLogger().Debug("discarding stale candidate load",
				"session_id", s.id.String(),
				"group", tag,
				"count", len(candidates))
		}
	}()
}

// load fetches candidates for beginLoad and produces the status note
// surfaced when the load lands.
func (s *Session) load(ctx context.Context, tag, target string) ([]matcher.Candidate, string) {
	if target != "" {
		cand, err := s.cfg.Source.ByRegNo(ctx, target)
		switch {
		case err == nil:
			return []matcher.Candidate{cand}, ""
		case errors.Is(err, facerec.ErrNoFace):
			getLogger().Warn("enrollment photo has no detectable face",
				"session_id", s.id.String(),
				"reg_no", target)
			return nil, StatusNoFaceInPhoto
		case errors.IsNotFound(err):
			getLogger().Info("identifier not enrolled",
				"session_id", s.id.String(),
				"reg_no", target)
			return nil, StatusStudentNotFound
		default:
			getLogger().Error("identifier lookup failed",
				"session_id", s.id.String(),
				"reg_no", target,
				"error", err)
			return nil, StatusLoadFailed
		}
	}

	var (
		candidates []matcher.Candidate
		err        error
	)
	start := time.Now()
	if tag != "" {
		candidates, err = s.cfg.Source.Group(ctx, tag)
	} else {
		candidates, err = s.cfg.Source.All(ctx)
	}
	if err != nil {
		getLogger().Error("candidate load failed",
			"session_id", s.id.String(),
			"group", tag,
			"error", err)
		return nil, StatusLoadFailed
	}

	getLogger().Info("candidates loaded",
		"session_id", s.id.String(),
		"mode", string(s.cfg.Mode),
		"group", tag,
		"count", len(candidates),
		"load_time_ms", time.Since(start).Milliseconds())
	return candidates, StatusLoaded(len(candidates))
}

// findCandidate resolves a confirmed identity back to its candidate
// for names and labels.
func findCandidate(candidates []matcher.Candidate, personID uint) (matcher.Candidate, bool) {
	for i := range candidates {
		if candidates[i].PersonID == personID {
			return candidates[i], true
		}
	}
	return matcher.Candidate{}, false
}
