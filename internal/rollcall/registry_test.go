package rollcall

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/matcher"
	"github.com/campuskit/faceroll/internal/session"
)

const waitFor = 2 * time.Second

// fakeFeed is an in-memory frame feed with reference counting.
type fakeFeed struct {
	hub *camera.FrameHub

	mu   sync.Mutex
	refs int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{hub: camera.NewFrameHub()}
}

func (f *fakeFeed) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs++
	return nil
}

func (f *fakeFeed) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs--
	return nil
}

func (f *fakeFeed) Hub() *camera.FrameHub { return f.hub }

func (f *fakeFeed) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

// fakeDetector never finds a face; registry tests exercise lifecycle,
// not recognition.
type fakeDetector struct{}

func (fakeDetector) DetectAll(image.Image) ([]facerec.Face, error) { return nil, nil }

// fakeSource serves an empty roster.
type fakeSource struct{}

func (fakeSource) All(context.Context) ([]matcher.Candidate, error) { return nil, nil }

func (fakeSource) Group(context.Context, string) ([]matcher.Candidate, error) { return nil, nil }

func (fakeSource) ByRegNo(_ context.Context, regNo string) (matcher.Candidate, error) {
	return matcher.Candidate{}, errors.Newf("person %q not found", regNo).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}

type fakeLedger struct{}

func (fakeLedger) CommitAttendance(context.Context, uint, float64, string) (datastore.CommitOutcome, error) {
	return datastore.AttendanceCreated, nil
}

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Camera.CaptureInterval = 2 * time.Millisecond
	settings.Recognition.Tolerance = 0.4
	settings.Recognition.Confirm.Single = 2
	settings.Recognition.Confirm.Population = 2
	return settings
}

func newTestRegistry(t *testing.T, settings *conf.Settings) (*Registry, *fakeFeed) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	feed := newFakeFeed()
	registry := NewRegistry(ctx, RegistryConfig{
		Settings: settings,
		Feed:     feed,
		Detector: fakeDetector{},
		Engine:   matcher.New(settings.Recognition.Tolerance),
		Source:   fakeSource{},
		Ledger:   fakeLedger{},
	})
	t.Cleanup(func() {
		registry.StopAll()
		cancel()
	})
	return registry, feed
}

func TestStartAndStopSession(t *testing.T) {
	t.Parallel()

	registry, feed := newTestRegistry(t, testSettings())

	sess, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	assert.True(t, sess.Running())
	assert.Equal(t, 1, feed.Refs())

	got, ok := registry.Get(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Len(t, registry.List(), 1)

	require.NoError(t, registry.StopSession(sess.ID()))
	assert.False(t, sess.Running())
	assert.Equal(t, 0, feed.Refs())

	// The reaper drops the entry once the loop reports done.
	require.Eventually(t, func() bool {
		return len(registry.List()) == 0
	}, waitFor, 5*time.Millisecond)
}

func TestStopUnknownSession(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())

	err := registry.StopSession(uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such session")
}

func TestListReturnsStartOrder(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())

	first, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	second, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	third, err := registry.StartSession(session.ModeVerify)
	require.NoError(t, err)

	listed := registry.List()
	require.Len(t, listed, 3)
	assert.Equal(t, first.ID(), listed[0].ID())
	assert.Equal(t, second.ID(), listed[1].ID())
	assert.Equal(t, third.ID(), listed[2].ID())
}

func TestStartFromSettings(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Realtime.RollCall.OpenEnabled = true
	settings.Realtime.RollCall.Group = "CS-A"
	registry, feed := newTestRegistry(t, settings)

	registry.StartFromSettings()

	listed := registry.List()
	require.Len(t, listed, 2)
	assert.Equal(t, session.ModeOpen, listed[0].Mode())
	assert.Equal(t, session.ModeGroup, listed[1].Mode())
	assert.Equal(t, "CS-A", listed[1].GroupTag())
	assert.Equal(t, 2, feed.Refs())

	registry.StopAll()
	assert.Equal(t, 0, feed.Refs())
	require.Eventually(t, func() bool {
		return len(registry.List()) == 0
	}, waitFor, 5*time.Millisecond)
}

func TestStartFromSettingsDisabled(t *testing.T) {
	t.Parallel()

	registry, feed := newTestRegistry(t, testSettings())

	registry.StartFromSettings()

	assert.Empty(t, registry.List())
	assert.Equal(t, 0, feed.Refs())
}

func TestSupplyRoutesToVerifySession(t *testing.T) {
	t.Parallel()

	registry, _ := newTestRegistry(t, testSettings())

	verify, err := registry.StartSession(session.ModeVerify)
	require.NoError(t, err)
	open, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)

	require.NoError(t, registry.Supply(verify.ID(), "S042"))

	err = registry.Supply(open.ID(), "S042")
	require.Error(t, err, "supplying an open session must fail")

	err = registry.Supply(uuid.New(), "S042")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such session")
}

func TestSwitchGroupRoutesToGroupSession(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Realtime.RollCall.Group = "CS-A"
	registry, _ := newTestRegistry(t, settings)

	group, err := registry.StartSession(session.ModeGroup)
	require.NoError(t, err)

	require.NoError(t, registry.SwitchGroup(group.ID(), "EE-B"))
	require.Eventually(t, func() bool {
		return group.GroupTag() == "EE-B"
	}, waitFor, 5*time.Millisecond)

	err = registry.SwitchGroup(uuid.New(), "EE-B")
	require.Error(t, err)
}

func TestRegistryContextCancelStopsSessions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	feed := newFakeFeed()
	registry := NewRegistry(ctx, RegistryConfig{
		Settings: testSettings(),
		Feed:     feed,
		Detector: fakeDetector{},
		Engine:   matcher.New(0.4),
		Source:   fakeSource{},
		Ledger:   fakeLedger{},
	})

	sess, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	require.True(t, sess.Running())

	cancel()

	require.Eventually(t, func() bool {
		return !sess.Running() && len(registry.List()) == 0
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 0, feed.Refs())
}
