package webapi

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/matcher"
	"github.com/campuskit/faceroll/internal/session"
)

// Inert session collaborators. Handler tests never start the frame
// loop, so these only need to satisfy the constructor.

type stubFeed struct{ hub *camera.FrameHub }

func (f *stubFeed) Acquire() error        { return nil }
func (f *stubFeed) Release() error        { return nil }
func (f *stubFeed) Hub() *camera.FrameHub { return f.hub }

type stubDetector struct{}

func (stubDetector) DetectAll(image.Image) ([]facerec.Face, error) { return nil, nil }

type stubSource struct{}

func (stubSource) All(context.Context) ([]matcher.Candidate, error)           { return nil, nil }
func (stubSource) Group(context.Context, string) ([]matcher.Candidate, error) { return nil, nil }
func (stubSource) ByRegNo(context.Context, string) (matcher.Candidate, error) {
	return matcher.Candidate{}, errors.Newf("not enrolled").
		Component(ComponentWebAPI).
		Category(errors.CategoryNotFound).
		Build()
}

type stubLedger struct{}

func (stubLedger) CommitAttendance(context.Context, uint, float64, string) (datastore.CommitOutcome, error) {
	return datastore.AttendanceCreated, nil
}

func newStubSession(t *testing.T, mode session.Mode) *session.Session {
	t.Helper()
	sess, err := session.New(session.Config{
		Mode:     mode,
		Feed:     &stubFeed{hub: camera.NewFrameHub()},
		Detector: stubDetector{},
		Engine:   matcher.New(0.4),
		Source:   stubSource{},
		Ledger:   stubLedger{},
	})
	require.NoError(t, err)
	return sess
}

// fakeRegistry implements SessionRegistry over unstarted sessions and
// records the calls handlers route to it.
type fakeRegistry struct {
	t  *testing.T
	mu sync.Mutex

	sessions map[uuid.UUID]*session.Session
	order    []uuid.UUID

	startErr  error
	supplyErr error
	switchErr error

	supplied map[uuid.UUID]string
	switched map[uuid.UUID]string
	stopped  []uuid.UUID
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	return &fakeRegistry{
		t:        t,
		sessions: make(map[uuid.UUID]*session.Session),
		supplied: make(map[uuid.UUID]string),
		switched: make(map[uuid.UUID]string),
	}
}

func (f *fakeRegistry) unknownSession(id uuid.UUID) error {
	return errors.Newf("no such session: %s", id).
		Component(ComponentWebAPI).
		Category(errors.CategoryNotFound).
		Build()
}

func (f *fakeRegistry) StartSession(mode session.Mode) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	sess := newStubSession(f.t, mode)
	f.sessions[sess.ID()] = sess
	f.order = append(f.order, sess.ID())
	return sess, nil
}

func (f *fakeRegistry) Get(id uuid.UUID) (*session.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	return sess, ok
}

func (f *fakeRegistry) List() []*session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*session.Session, 0, len(f.order))
	for _, id := range f.order {
		if sess, ok := f.sessions[id]; ok {
			out = append(out, sess)
		}
	}
	return out
}

func (f *fakeRegistry) StopSession(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return f.unknownSession(id)
	}
	delete(f.sessions, id)
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeRegistry) Supply(id uuid.UUID, regNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.supplyErr != nil {
		return f.supplyErr
	}
	if _, ok := f.sessions[id]; !ok {
		return f.unknownSession(id)
	}
	f.supplied[id] = regNo
	return nil
}

func (f *fakeRegistry) SwitchGroup(id uuid.UUID, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switchErr != nil {
		return f.switchErr
	}
	if _, ok := f.sessions[id]; !ok {
		return f.unknownSession(id)
	}
	f.switched[id] = tag
	return nil
}

// fakeStore implements Store and records the filter arguments handlers
// pass through.
type fakeStore struct {
	people  []datastore.Person
	groups  []string
	entries []datastore.AttendanceEntry
	err     error

	groupArg  string
	searchArg string
	onDate    string
	betweenLo string
	betweenHi string
}

func (f *fakeStore) ListPeople(context.Context) ([]datastore.Person, error) {
	return f.people, f.err
}

func (f *fakeStore) ListGroup(_ context.Context, groupTag string) ([]datastore.Person, error) {
	f.groupArg = groupTag
	return f.people, f.err
}

func (f *fakeStore) SearchPeople(_ context.Context, query string) ([]datastore.Person, error) {
	f.searchArg = query
	return f.people, f.err
}

func (f *fakeStore) DistinctGroups(context.Context) ([]string, error) {
	return f.groups, f.err
}

func (f *fakeStore) AttendanceOn(_ context.Context, date string) ([]datastore.AttendanceEntry, error) {
	f.onDate = date
	return f.entries, f.err
}

func (f *fakeStore) AttendanceBetween(_ context.Context, startDate, endDate string) ([]datastore.AttendanceEntry, error) {
	f.betweenLo = startDate
	f.betweenHi = endDate
	return f.entries, f.err
}

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Version = "1.2.3"
	settings.WebServer.Enabled = true
	settings.WebServer.Port = "8090"
	return settings
}

func newTestController(t *testing.T, registry SessionRegistry, store Store) *Controller {
	t.Helper()
	return New(testSettings(), store, registry, nil, nil)
}

func jsonRequest(method, target, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, http.NoBody)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	c := newTestController(t, newFakeRegistry(t), &fakeStore{})
	req := jsonRequest(http.MethodGet, "/health", "")
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)

	require.NoError(t, c.HealthCheck(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "1.2.3", resp["version"])
}

func TestBasicAuthGuardsAPIRoutes(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	settings := testSettings()
	settings.WebServer.BasicAuth.Enabled = true
	settings.WebServer.BasicAuth.Username = "operator"
	settings.WebServer.BasicAuth.Password = string(hash)

	c := New(settings, &fakeStore{}, newFakeRegistry(t), nil, nil)

	// No credentials.
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, jsonRequest(http.MethodGet, "/api/v1/sessions", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong password.
	req := jsonRequest(http.MethodGet, "/api/v1/sessions", "")
	req.SetBasicAuth("operator", "wrong")
	rec = httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials.
	req = jsonRequest(http.MethodGet, "/api/v1/sessions", "")
	req.SetBasicAuth("operator", "secret")
	rec = httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	rec = httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, jsonRequest(http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReloadRosterQueuesSignal(t *testing.T) {
	t.Parallel()

	controlChan := make(chan string, 1)
	c := New(testSettings(), &fakeStore{}, newFakeRegistry(t), nil, controlChan)

	req := jsonRequest(http.MethodPost, "/api/v1/roster/reload", "")
	rec := httptest.NewRecorder()
	require.NoError(t, c.ReloadRoster(c.Echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case signal := <-controlChan:
		assert.Equal(t, SignalReloadRoster, signal)
	default:
		t.Fatal("expected reload signal on control channel")
	}

	// A full channel means a reload is already pending; the request
	// still succeeds without blocking.
	controlChan <- SignalReloadRoster
	rec = httptest.NewRecorder()
	require.NoError(t, c.ReloadRoster(c.Echo.NewContext(req, rec)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestReloadRosterWithoutControlChannel(t *testing.T) {
	t.Parallel()

	c := newTestController(t, newFakeRegistry(t), &fakeStore{})
	req := jsonRequest(http.MethodPost, "/api/v1/roster/reload", "")
	rec := httptest.NewRecorder()
	require.NoError(t, c.ReloadRoster(c.Echo.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	build := func(category errors.ErrorCategory) error {
		return errors.Newf("boom").Component(ComponentWebAPI).Category(category).Build()
	}

	assert.Equal(t, http.StatusNotFound, statusForError(build(errors.CategoryNotFound)))
	assert.Equal(t, http.StatusBadRequest, statusForError(build(errors.CategoryValidation)))
	assert.Equal(t, http.StatusConflict, statusForError(build(errors.CategorySession)))
	assert.Equal(t, http.StatusConflict, statusForError(build(errors.CategoryState)))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(build(errors.CategoryDevice)))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(build(errors.CategoryCapture)))
	assert.Equal(t, http.StatusInternalServerError, statusForError(build(errors.CategoryDatabase)))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.Newf("plain failure").Build()))
}
