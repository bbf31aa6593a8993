package rollcall

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/roster"
)

const (
	// defaultCountRefresh paces the marked-today refresh when the
	// configuration does not set one.
	defaultCountRefresh = 30 * time.Second

	// warmTimeout bounds the nightly descriptor refresh. Deriving a
	// few hundred embeddings on CPU stays well within it.
	warmTimeout = 10 * time.Minute

	countTimeout = 10 * time.Second
)

// AttendanceCounter is the ledger slice the scheduler reads.
// datastore.Interface implements it.
type AttendanceCounter interface {
	CountOn(ctx context.Context, date string) (int64, error)
}

// RosterWarmer drops and re-derives the descriptor cache.
// roster.Store implements it.
type RosterWarmer interface {
	InvalidateAll()
	Warm(ctx context.Context, progress func()) (roster.WarmStats, error)
}

// Scheduler runs the registry's periodic work: a nightly roster
// refresh so enrollment changes land by morning, and a marked-today
// count refresh so every session's HUD reflects marks made by the
// others.
type Scheduler struct {
	cron     *gocron.Scheduler
	registry *Registry
	counter  AttendanceCounter
	warmer   RosterWarmer
	refresh  time.Duration
}

// NewScheduler wires the periodic jobs. refreshSeconds sets the
// marked-today cadence; zero or negative selects the default.
func NewScheduler(registry *Registry, counter AttendanceCounter, warmer RosterWarmer, refreshSeconds int) *Scheduler {
	refresh := defaultCountRefresh
	if refreshSeconds > 0 {
		refresh = time.Duration(refreshSeconds) * time.Second
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(time.Local),
		registry: registry,
		counter:  counter,
		warmer:   warmer,
		refresh:  refresh,
	}
}

// Start registers the jobs and launches the scheduler. Job failures
// are logged; the next run tries again.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At("00:00").Do(s.RefreshRoster); err != nil {
		return err
	}
	if _, err := s.cron.Every(s.refresh).Do(s.RefreshMarkedToday); err != nil {
		return err
	}
	s.cron.StartAsync()
	getLogger().Info("scheduler started",
		"count_refresh", s.refresh.String(),
		"roster_refresh", "00:00")
	return nil
}

// Stop halts the scheduler. Running jobs finish on their own
// deadlines.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RefreshRoster re-derives every descriptor and points the live
// sessions at the fresh cache. The nightly job runs it at midnight;
// the engine also triggers it when an operator asks for a reload.
func (s *Scheduler) RefreshRoster() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	s.warmer.InvalidateAll()
	stats, err := s.warmer.Warm(ctx, nil)
	if err != nil {
		getLogger().Error("nightly roster refresh failed", "error", err)
		return
	}

	for _, sess := range s.registry.List() {
		if err := sess.Reload(); err != nil {
			getLogger().Error("failed to reload session after roster refresh",
				"session_id", sess.ID().String(),
				"error", err)
		}
	}

	getLogger().Info("nightly roster refresh complete",
		"total", stats.Total,
		"ready", stats.Ready,
		"skipped", stats.Skipped)

	// The date rolled over with this job; zero the counts now rather
	// than waiting for the next periodic tick.
	s.RefreshMarkedToday()
}

// RefreshMarkedToday pushes the ledger's count for the current day to
// every live session.
func (s *Scheduler) RefreshMarkedToday() {
	sessions := s.registry.List()
	if len(sessions) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()

	count, err := s.counter.CountOn(ctx, datastore.Today())
	if err != nil {
		getLogger().Warn("marked-today count refresh failed", "error", err)
		return
	}
	for _, sess := range sessions {
		sess.SetMarkedToday(int(count))
	}
}
