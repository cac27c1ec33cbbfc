package reminder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapline/internal/config"
	"snapline/internal/domain"
	"snapline/internal/schedule"
)

func testEvents() []domain.CalendarEvent {
	return []domain.CalendarEvent{
		{ID: "post-1", Type: domain.EventPost, Title: "Post: Forest - tiktok", Date: "2025-06-13"},
		{ID: "shoot-1", Type: domain.EventShoot, Title: "Shoot Day: Forest", Date: "2025-06-09"},
		{ID: "release", Type: domain.EventRelease, Title: "Release: Forest", Date: "2025-06-07"},
		{ID: "post-2", Type: domain.EventPost, Title: "Post", Date: "2025-06-08"},
		{ID: "broken", Type: domain.EventPost, Date: "soon"},
	}
}

func TestDue(t *testing.T) {
	today := schedule.MustParseDate("2025-06-06")
	got := Due(testEvents(), DefaultSettings(), today)

	require.Len(t, got, 3)
	assert.Equal(t, "release", got[0].EventID)
	assert.Equal(t, 1, got[0].DaysBefore)
	assert.Equal(t, "shoot-1", got[1].EventID)
	assert.Equal(t, 3, got[1].DaysBefore)
	assert.Equal(t, "post-1", got[2].EventID)
	assert.Equal(t, 7, got[2].DaysBefore)
	for _, r := range got {
		assert.Equal(t, "2025-06-06", r.RemindOn)
		assert.Equal(t, DefaultTime, r.Time)
	}
}

func TestDue_RespectsToggles(t *testing.T) {
	settings := DefaultSettings()
	settings.Posts = false
	settings.Release = false
	settings.Time = "07:30"
	got := Due(testEvents(), settings, schedule.MustParseDate("2025-06-06"))

	require.Len(t, got, 1)
	assert.Equal(t, domain.EventShoot, got[0].EventType)
	assert.Equal(t, "07:30", got[0].Time)
}

func TestDue_NoDayCounts(t *testing.T) {
	settings := DefaultSettings()
	settings.DaysBefore = nil
	assert.Empty(t, Due(testEvents(), settings, schedule.MustParseDate("2025-06-06")))
}

type received struct {
	mu      sync.Mutex
	headers []http.Header
	bodies  []webhookPayload
}

func newHookServer(t *testing.T, status int) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec.mu.Lock()
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.bodies = append(rec.bodies, body)
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestNotifier_FiltersAndSigns(t *testing.T) {
	srv, rec := newHookServer(t, http.StatusNoContent)
	disabled := false
	n := NewNotifier([]config.WebhookConfig{
		{URL: srv.URL, Secret: "s3cret", Events: []string{"shoot"}},
		{URL: srv.URL, Enabled: &disabled},
	}, nil)

	reminders := Due(testEvents(), DefaultSettings(), schedule.MustParseDate("2025-06-06"))
	report, err := n.Notify(context.Background(), reminders)
	require.NoError(t, err)
	assert.Equal(t, Report{Delivered: 1, Skipped: 2}, report)

	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "reminder.shoot", rec.bodies[0].Type)
	assert.Equal(t, "shoot-1", rec.bodies[0].Reminder.EventID)
	assert.Equal(t, "s3cret", rec.headers[0].Get("X-Snapline-Secret"))
	assert.Equal(t, "reminder.shoot", rec.headers[0].Get("X-Snapline-Event"))
	assert.Equal(t, rec.bodies[0].ID, rec.headers[0].Get("X-Snapline-Delivery"))
}

func TestNotifier_ReportsFailures(t *testing.T) {
	srv, _ := newHookServer(t, http.StatusInternalServerError)
	n := NewNotifier([]config.WebhookConfig{{URL: srv.URL}}, nil)

	report, err := n.Notify(context.Background(), []domain.Reminder{
		{EventID: "a", EventType: domain.EventPost},
		{EventID: "b", EventType: domain.EventRelease},
	})
	assert.Error(t, err)
	assert.ErrorContains(t, err, "status 500")
	assert.Equal(t, 2, report.Failed)
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("post"))
	assert.True(t, newEventFilter([]string{" "}).match("post"))
	f := newEventFilter([]string{"post", " release "})
	assert.True(t, f.match("release"))
	assert.False(t, f.match("shoot"))
}
