package webapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/faceroll/internal/session"
)

func TestGetFrameSnapshot(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry(t)
	sess, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	c := newTestController(t, registry, &fakeStore{})

	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(jsonRequest(http.MethodGet, "/api/v1/sessions/x/frame", ""), rec)
	ctx.SetPath("/sessions/:id/frame")
	ctx.SetParamNames("id")
	ctx.SetParamValues(sess.ID().String())

	require.NoError(t, c.GetFrame(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))

	// JPEG start-of-image marker. A session without a captured frame
	// still renders a status backdrop.
	body := rec.Body.Bytes()
	require.Greater(t, len(body), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, body[:2])
}

func TestGetFrameUnknownSession(t *testing.T) {
	t.Parallel()

	c := newTestController(t, newFakeRegistry(t), &fakeStore{})
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(jsonRequest(http.MethodGet, "/api/v1/sessions/x/frame", ""), rec)
	ctx.SetPath("/sessions/:id/frame")
	ctx.SetParamNames("id")
	ctx.SetParamValues(uuid.NewString())

	require.NoError(t, c.GetFrame(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamPreviewDeliversParts(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry(t)
	sess, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	c := newTestController(t, registry, &fakeStore{})

	reqCtx, cancel := context.WithCancel(context.Background())
	req := jsonRequest(http.MethodGet, "/api/v1/sessions/x/preview", "").WithContext(reqCtx)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetPath("/sessions/:id/preview")
	ctx.SetParamNames("id")
	ctx.SetParamValues(sess.ID().String())

	handlerDone := make(chan error, 1)
	go func() { handlerDone <- c.StreamPreview(ctx) }()

	// Long enough for a few ticks of the part writer.
	time.Sleep(350 * time.Millisecond)
	cancel()

	select {
	case err := <-handlerDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after client left")
	}

	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "multipart/x-mixed-replace")
	body := rec.Body.String()
	assert.Contains(t, body, "--frame")
	assert.Contains(t, body, "Content-Type: image/jpeg")
	assert.Greater(t, strings.Count(body, "--frame"), 1)
}

func TestStreamPreviewEndsWhenSessionStops(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry(t)
	sess, err := registry.StartSession(session.ModeOpen)
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))

	c := newTestController(t, registry, &fakeStore{})
	req := jsonRequest(http.MethodGet, "/api/v1/sessions/x/preview", "")
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetPath("/sessions/:id/preview")
	ctx.SetParamNames("id")
	ctx.SetParamValues(sess.ID().String())

	handlerDone := make(chan error, 1)
	go func() { handlerDone <- c.StreamPreview(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sess.Stop())

	select {
	case err := <-handlerDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after session ended")
	}
}
