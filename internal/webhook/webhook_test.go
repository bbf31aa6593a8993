package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/session"
)

// setupHTTPMock activates HTTP mocking for a test and ensures cleanup.
func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func testSettings(urls []string, retries int) *conf.Settings {
	settings := &conf.Settings{}
	settings.Realtime.Webhook = conf.WebhookSettings{
		Enabled: true,
		URLs:    urls,
		Timeout: 2 * time.Second,
		Retries: retries,
	}
	return settings
}

// newTestDeliverer builds a Deliverer with a short retry delay so retry
// paths run in test time.
func newTestDeliverer(t *testing.T, urls []string, retries int) *Deliverer {
	t.Helper()
	d, err := New(testSettings(urls, retries), nil)
	require.NoError(t, err)
	d.retryDelay = time.Millisecond
	return d
}

func testEvent() session.Event {
	return session.Event{
		SessionID:  uuid.New(),
		Mode:       session.ModeOpen,
		PersonID:   7,
		RegNo:      "S042",
		Name:       "Maya Iyer",
		Confidence: 91.5,
		Outcome:    datastore.AttendanceCreated,
		Time:       time.Date(2026, 3, 9, 9, 15, 0, 0, time.UTC),
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		urls    []string
		wantErr bool
	}{
		{"no URLs", nil, true},
		{"unsupported scheme", []string{"ftp://example.com/hook"}, true},
		{"missing host", []string{"http://"}, true},
		{"valid http", []string{"http://example.com/hook"}, false},
		{"valid https pair", []string{"https://a.example.com/h", "https://b.example.com/h"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(testSettings(tt.urls, 0), nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeliverPostsRecordToAllEndpoints(t *testing.T) {
	setupHTTPMock(t)

	const (
		first  = "http://attendance.example.com/hook"
		second = "http://mirror.example.com/hook"
	)

	var got session.Event
	httpmock.RegisterResponder("POST", first, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", req.Header.Get("Content-Type"))
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &got); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})
	httpmock.RegisterResponder("POST", second, httpmock.NewStringResponder(http.StatusOK, "ok"))

	d := newTestDeliverer(t, []string{first, second}, 0)
	ev := testEvent()
	require.NoError(t, d.Deliver(t.Context(), ev))

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+first])
	assert.Equal(t, 1, info["POST "+second])

	assert.Equal(t, ev.RegNo, got.RegNo)
	assert.Equal(t, ev.Name, got.Name)
	assert.Equal(t, session.ModeOpen, got.Mode)
	assert.Equal(t, datastore.AttendanceCreated, got.Outcome)
	assert.InDelta(t, ev.Confidence, got.Confidence, 0.001)
}

func TestDeliverRetriesServerErrors(t *testing.T) {
	setupHTTPMock(t)

	const endpoint = "http://flaky.example.com/hook"
	calls := 0
	httpmock.RegisterResponder("POST", endpoint, func(*http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	d := newTestDeliverer(t, []string{endpoint}, 2)
	require.NoError(t, d.Deliver(t.Context(), testEvent()))
	assert.Equal(t, 3, calls, "two failures then one success")
}

func TestDeliverDoesNotRetryClientErrors(t *testing.T) {
	setupHTTPMock(t)

	const endpoint = "http://strict.example.com/hook"
	httpmock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(http.StatusNotFound, "no such hook"))

	d := newTestDeliverer(t, []string{endpoint}, 3)
	err := d.Deliver(t.Context(), testEvent())
	require.Error(t, err)
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["POST "+endpoint], "4xx responses are final")
}

func TestDeliverGivesUpAfterRetryBudget(t *testing.T) {
	setupHTTPMock(t)

	const endpoint = "http://down.example.com/hook"
	httpmock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(http.StatusServiceUnavailable, "maintenance"))

	d := newTestDeliverer(t, []string{endpoint}, 1)
	err := d.Deliver(t.Context(), testEvent())
	require.Error(t, err)
	assert.Equal(t, 2, httpmock.GetCallCountInfo()["POST "+endpoint], "initial attempt plus one retry")
}

func TestDeliverEndpointsFailIndependently(t *testing.T) {
	setupHTTPMock(t)

	const (
		broken  = "http://broken.example.com/hook"
		healthy = "http://healthy.example.com/hook"
	)
	httpmock.RegisterResponder("POST", broken, httpmock.NewStringResponder(http.StatusBadRequest, "bad"))
	httpmock.RegisterResponder("POST", healthy, httpmock.NewStringResponder(http.StatusOK, "ok"))

	d := newTestDeliverer(t, []string{broken, healthy}, 0)
	err := d.Deliver(t.Context(), testEvent())
	require.Error(t, err, "broken endpoint surfaces in the joined error")
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["POST "+healthy], "healthy endpoint still receives the record")
}

func TestDeliverStopsRetryingOnCancelledContext(t *testing.T) {
	setupHTTPMock(t)

	const endpoint = "http://slowly.example.com/hook"
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	httpmock.RegisterResponder("POST", endpoint, func(*http.Request) (*http.Response, error) {
		calls++
		cancel()
		return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
	})

	d := newTestDeliverer(t, []string{endpoint}, 5)
	err := d.Deliver(ctx, testEvent())
	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation halts the retry loop")
}
