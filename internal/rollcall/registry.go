package rollcall

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/matcher"
	"github.com/campuskit/faceroll/internal/observability"
	"github.com/campuskit/faceroll/internal/session"
)

// ComponentRollcall is the component name used in error reports.
const ComponentRollcall = "rollcall"

// RegistryConfig carries the collaborators every session shares.
type RegistryConfig struct {
	Settings *conf.Settings
	Feed     session.FrameFeed
	Detector session.Detector
	Engine   *matcher.Engine
	Source   session.CandidateSource
	Ledger   session.Ledger
	Scanner  session.Scanner

	// OnCreated receives each created attendance record, typically
	// the integrations fan-out.
	OnCreated func(session.Event)

	Metrics *observability.Metrics
}

type registryEntry struct {
	sess *session.Session
	seq  uint64 // start order, List returns oldest first
}

// Registry owns the live recognition sessions. Sessions share one
// camera feed, one candidate source, and one ledger; the registry
// builds each session's config from the shared collaborators and
// tracks it until its frame loop exits.
type Registry struct {
	cfg     RegistryConfig
	baseCtx context.Context // session lifecycle, outlives any request

	mu      sync.Mutex
	nextSeq uint64
	entries map[uuid.UUID]*registryEntry
}

// NewRegistry builds a registry whose sessions run under ctx.
// Cancelling ctx stops every session the registry started.
func NewRegistry(ctx context.Context, cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		baseCtx: ctx,
		entries: make(map[uuid.UUID]*registryEntry),
	}
}

// StartSession creates and starts a session in the given mode. The
// mode decides scope and tuning; collaborators come from the shared
// registry config.
func (r *Registry) StartSession(mode session.Mode) (*session.Session, error) {
	sessCfg := session.ConfigFromSettings(r.cfg.Settings, mode)
	sessCfg.Feed = r.cfg.Feed
	sessCfg.Detector = r.cfg.Detector
	sessCfg.Engine = r.cfg.Engine
	sessCfg.Source = r.cfg.Source
	sessCfg.Ledger = r.cfg.Ledger
	sessCfg.OnCreated = r.cfg.OnCreated
	if mode == session.ModeVerify {
		sessCfg.Scanner = r.cfg.Scanner
	}
	if m := r.cfg.Metrics; m != nil {
		sessCfg.Metrics = m.Session
		sessCfg.ScanMetrics = m.Matcher
	}

	sess, err := session.New(sessCfg)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(r.baseCtx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.nextSeq++
	r.entries[sess.ID()] = &registryEntry{sess: sess, seq: r.nextSeq}
	r.mu.Unlock()

	go r.reap(sess)
	return sess, nil
}

// StartFromSettings starts the sessions the configuration asks for at
// boot: the open-population session and, when a group tag is set, the
// group session. Failures are logged; boot continues without them.
func (r *Registry) StartFromSettings() {
	rc := r.cfg.Settings.Realtime.RollCall
	if rc.OpenEnabled {
		if _, err := r.StartSession(session.ModeOpen); err != nil {
			getLogger().Error("failed to start open session", "error", err)
		}
	}
	if rc.Group != "" {
		if _, err := r.StartSession(session.ModeGroup); err != nil {
			getLogger().Error("failed to start group session",
				"group", rc.Group,
				"error", err)
		}
	}
}

// reap drops the session from the registry once its frame loop exits,
// whether it confirmed its target, was stopped, or lost its context.
func (r *Registry) reap(sess *session.Session) {
	<-sess.Done()

	r.mu.Lock()
	delete(r.entries, sess.ID())
	r.mu.Unlock()

	getLogger().Info("session finished",
		"session_id", sess.ID().String(),
		"mode", string(sess.Mode()))
}

// Get returns a live session by ID.
func (r *Registry) Get(id uuid.UUID) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return entry.sess, true
}

// List returns the live sessions, oldest first.
func (r *Registry) List() []*session.Session {
	r.mu.Lock()
	entries := make([]*registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	sessions := make([]*session.Session, len(entries))
	for i, entry := range entries {
		sessions[i] = entry.sess
	}
	return sessions
}

// StopSession stops one session and waits for its loop to exit.
func (r *Registry) StopSession(id uuid.UUID) error {
	sess, ok := r.Get(id)
	if !ok {
		return errors.Newf("no such session: %s", id).
			Component(ComponentRollcall).
			Category(errors.CategoryNotFound).
			Context("session_id", id.String()).
			Build()
	}
	return sess.Stop()
}

// StopAll stops every live session. It returns once all frame loops
// have exited and the camera is released.
func (r *Registry) StopAll() {
	for _, sess := range r.List() {
		if err := sess.Stop(); err != nil {
			getLogger().Error("failed to stop session",
				"session_id", sess.ID().String(),
				"error", err)
		}
	}
}

// Supply hands an identifier to a verify session.
func (r *Registry) Supply(id uuid.UUID, regNo string) error {
	sess, ok := r.Get(id)
	if !ok {
		return errors.Newf("no such session: %s", id).
			Component(ComponentRollcall).
			Category(errors.CategoryNotFound).
			Context("session_id", id.String()).
			Build()
	}
	return sess.Supply(regNo)
}

// SwitchGroup points a group session at a different group tag.
func (r *Registry) SwitchGroup(id uuid.UUID, tag string) error {
	sess, ok := r.Get(id)
	if !ok {
		return errors.Newf("no such session: %s", id).
			Component(ComponentRollcall).
			Category(errors.CategoryNotFound).
			Context("session_id", id.String()).
			Build()
	}
	return sess.SwitchGroup(tag)
}
