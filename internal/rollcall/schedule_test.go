package rollcall

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/roster"
	"github.com/campuskit/faceroll/internal/session"
)

type fakeCounter struct {
	mu       sync.Mutex
	count    int64
	err      error
	calls    int
	lastDate string
}

func (c *fakeCounter) CountOn(_ context.Context, date string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastDate = date
	if c.err != nil {
		return 0, c.err
	}
	return c.count, nil
}

func (c *fakeCounter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeWarmer struct {
	mu            sync.Mutex
	invalidations int
	warms         int
	err           error
}

func (w *fakeWarmer) InvalidateAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.invalidations++
}

func (w *fakeWarmer) Warm(context.Context, func()) (roster.WarmStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warms++
	if w.err != nil {
		return roster.WarmStats{}, w.err
	}
	return roster.WarmStats{Total: 5, Ready: 4, Skipped: 1}, nil
}

func (w *fakeWarmer) counts() (invalidations, warms int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.invalidations, w.warms
}

func TestRefreshMarkedToday(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())
	first, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	second, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)

	counter := &fakeCounter{count: 12}
	sched := NewScheduler(registry, counter, &fakeWarmer{}, 0)

	sched.RefreshMarkedToday()

	assert.Equal(t, 12, first.MarkedToday())
	assert.Equal(t, 12, second.MarkedToday())
	assert.Equal(t, datastore.Today(), counter.lastDate)
}

func TestRefreshMarkedTodaySkipsWithoutSessions(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())
	counter := &fakeCounter{count: 3}
	sched := NewScheduler(registry, counter, &fakeWarmer{}, 0)

	sched.RefreshMarkedToday()

	assert.Equal(t, 0, counter.callCount())
}

func TestRefreshMarkedTodayKeepsOldCountOnError(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())
	sess, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	sess.SetMarkedToday(7)

	counter := &fakeCounter{err: errors.Newf("store offline").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()}
	sched := NewScheduler(registry, counter, &fakeWarmer{}, 0)

	sched.RefreshMarkedToday()

	assert.Equal(t, 7, sess.MarkedToday())
}

func TestRefreshRoster(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())
	_, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)

	counter := &fakeCounter{count: 4}
	warmer := &fakeWarmer{}
	sched := NewScheduler(registry, counter, warmer, 0)

	sched.RefreshRoster()

	invalidations, warms := warmer.counts()
	assert.Equal(t, 1, invalidations)
	assert.Equal(t, 1, warms)

	// The nightly job chains straight into a count refresh.
	assert.Equal(t, 1, counter.callCount())
}

func TestRefreshRosterWarmFailureSkipsReload(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())
	_, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)

	counter := &fakeCounter{}
	warmer := &fakeWarmer{err: errors.Newf("people list unavailable").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()}
	sched := NewScheduler(registry, counter, warmer, 0)

	sched.RefreshRoster()

	assert.Equal(t, 0, counter.callCount())
}

func TestNewSchedulerRefreshCadence(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())

	sched := NewScheduler(registry, &fakeCounter{}, &fakeWarmer{}, 0)
	assert.Equal(t, defaultCountRefresh, sched.refresh)

	sched = NewScheduler(registry, &fakeCounter{}, &fakeWarmer{}, 5)
	assert.Equal(t, 5*time.Second, sched.refresh)
}
