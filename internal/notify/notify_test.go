package notify

import (
	"fmt"
	"testing"

	stypes "github.com/containrrr/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/session"
)

// fakeSender captures router sends and replies with scripted errors.
type fakeSender struct {
	bodies []string
	titles []string
	errs   []error
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.bodies = append(f.bodies, message)
	title := ""
	if params != nil {
		title = (*params)["title"]
	}
	f.titles = append(f.titles, title)
	return f.errs
}

func testSettings(urls []string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Main.Name = "faceroll-lab"
	settings.Realtime.Notification = conf.NotificationSettings{
		Enabled: true,
		URLs:    urls,
	}
	return settings
}

func testEvent(name string, confidence float64) session.Event {
	return session.Event{
		Mode:       session.ModeOpen,
		PersonID:   3,
		RegNo:      "S017",
		Name:       name,
		Confidence: confidence,
		Outcome:    datastore.AttendanceCreated,
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	t.Run("no URLs", func(t *testing.T) {
		t.Parallel()
		_, err := New(testSettings(nil), nil)
		assert.Error(t, err)
	})

	t.Run("unknown service", func(t *testing.T) {
		t.Parallel()
		_, err := New(testSettings([]string{"notaservice://nowhere"}), nil)
		assert.Error(t, err)
	})

	t.Run("logger service", func(t *testing.T) {
		t.Parallel()
		n, err := New(testSettings([]string{"logger://"}), nil)
		require.NoError(t, err)
		assert.NotNil(t, n)
	})
}

func TestAnnounceSendsTitledMessage(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{}
	n := &Notifier{title: "faceroll-lab", sender: fake}

	require.NoError(t, n.Announce(t.Context(), testEvent("Maya Iyer", 92.7)))

	require.Len(t, fake.bodies, 1)
	assert.Equal(t, "Maya Iyer marked present, 93%", fake.bodies[0])
	assert.Equal(t, "faceroll-lab", fake.titles[0])
}

func TestAnnounceReportsSendFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{errs: []error{nil, fmt.Errorf("dial tcp: connection refused")}}
	n := &Notifier{title: "faceroll-lab", sender: fake}

	err := n.Announce(t.Context(), testEvent("Maya Iyer", 92.7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAnnouncementBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		personName string
		confidence float64
		want       string
	}{
		{"name leads", "Maya Iyer", 92.7, "Maya Iyer marked present, 93%"},
		{"reg no stands in", "", 70.0, "S017 marked present, 70%"},
		{"low confidence", "Dev Patel", 60.2, "Dev Patel marked present, 60%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := announcementBody(testEvent(tt.personName, tt.confidence))
			assert.Equal(t, tt.want, got)
		})
	}
}
