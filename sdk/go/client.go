package snaplinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Snapline HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  30 * time.Second,
	}
}

// Snapshot is one planned piece of content.
type Snapshot struct {
	ID                   string `json:"id,omitempty"`
	WorldID              string `json:"world_id,omitempty"`
	VisualDescription    string `json:"visual_description,omitempty"`
	Caption              string `json:"caption,omitempty"`
	Platform             string `json:"platform,omitempty"`
	ContentType          string `json:"content_type,omitempty"`
	Timing               string `json:"timing,omitempty"`
	Order                int    `json:"order,omitempty"`
	PostingDate          string `json:"posting_date,omitempty"`
	WeekLabel            string `json:"week_label,omitempty"`
	SuggestedFilmingDate string `json:"suggested_filming_date,omitempty"`
}

// ShootDay groups snapshots filmed on the same date.
type ShootDay struct {
	ID            string   `json:"id"`
	WorldID       string   `json:"world_id,omitempty"`
	Date          string   `json:"date"`
	SuggestedDate string   `json:"suggested_date,omitempty"`
	Status        string   `json:"status,omitempty"`
	Snapshots     []string `json:"snapshots,omitempty"`
	ConfirmedDate string   `json:"confirmed_date,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// WeekGroup is a timeline bucket.
type WeekGroup struct {
	Label     string     `json:"label"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Plan is a scheduled release campaign for one world.
type Plan struct {
	WorldID     string      `json:"world_id"`
	ReleaseDate string      `json:"release_date"`
	Snapshots   []Snapshot  `json:"snapshots"`
	ShootDays   []ShootDay  `json:"shoot_days"`
	Weeks       []WeekGroup `json:"weeks"`
}

// ScheduleRequest asks the server to plan one world.
type ScheduleRequest struct {
	WorldID       string     `json:"world_id"`
	ReleaseDate   string     `json:"release_date"`
	Snapshots     []Snapshot `json:"snapshots"`
	BlackoutDates []string   `json:"blackout_dates,omitempty"`
}

// GenerateRequest describes the world to generate a strategy for.
type GenerateRequest struct {
	WorldID          string   `json:"world_id,omitempty"`
	WorldName        string   `json:"world_name"`
	ReleaseDate      string   `json:"release_date"`
	Color            string   `json:"color,omitempty"`
	VisualReferences []string `json:"visual_references,omitempty"`
	ColorPalette     []string `json:"color_palette,omitempty"`
	BlackoutDates    []string `json:"blackout_dates,omitempty"`
}

// Strategy is a generated and scheduled snapshot strategy.
type Strategy struct {
	Strategy struct {
		ID          string     `json:"id"`
		WorldID     string     `json:"world_id"`
		Snapshots   []Snapshot `json:"snapshots"`
		GeneratedAt string     `json:"generated_at"`
	} `json:"strategy"`
	ShootDays []ShootDay `json:"shoot_days"`
}

// CalendarRequest carries a plan to turn into calendar output.
type CalendarRequest struct {
	WorldID     string     `json:"world_id,omitempty"`
	WorldName   string     `json:"world_name"`
	ReleaseDate string     `json:"release_date,omitempty"`
	Snapshots   []Snapshot `json:"snapshots,omitempty"`
	ShootDays   []ShootDay `json:"shoot_days,omitempty"`
}

// CalendarEvent is a dated calendar entry.
type CalendarEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	WorldID     string `json:"world_id,omitempty"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	ShootDayID  string `json:"shoot_day_id,omitempty"`
}

// CalendarStatus reports external calendar connectivity.
type CalendarStatus struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

// ReminderSettings overrides the server's reminder defaults. Nil fields keep
// the server value.
type ReminderSettings struct {
	DaysBefore []int  `json:"days_before,omitempty"`
	Time       string `json:"time,omitempty"`
	Posts      *bool  `json:"posts,omitempty"`
	Shoots     *bool  `json:"shoots,omitempty"`
	Release    *bool  `json:"release,omitempty"`
}

// RemindersRequest asks which reminders are due on Today.
type RemindersRequest struct {
	CalendarRequest
	Today    string            `json:"today"`
	Settings *ReminderSettings `json:"settings,omitempty"`
	Notify   bool              `json:"notify,omitempty"`
}

// Reminder is a due notification for a calendar event.
type Reminder struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	Title      string `json:"title"`
	EventDate  string `json:"event_date"`
	RemindOn   string `json:"remind_on"`
	Time       string `json:"time,omitempty"`
	DaysBefore int    `json:"days_before"`
	WorldID    string `json:"world_id,omitempty"`
}

// Reminders is the due-reminder response.
type Reminders struct {
	Reminders []Reminder `json:"reminders"`
	Notified  *struct {
		Delivered int `json:"delivered"`
		Skipped   int `json:"skipped"`
		Failed    int `json:"failed"`
	} `json:"notified,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Code returns the error code from the response envelope, if any.
func (e *APIError) Code() string {
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &env) != nil {
		return ""
	}
	return env.Error.Code
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

// Schedule plans one world.
func (c *Client) Schedule(ctx context.Context, req ScheduleRequest) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodPost, "schedule", req, &resp)
	return resp, err
}

// ScheduleBatch plans several worlds at once. Plans come back in request order.
func (c *Client) ScheduleBatch(ctx context.Context, reqs []ScheduleRequest) ([]Plan, error) {
	var resp struct {
		Plans []Plan `json:"plans"`
	}
	err := c.do(ctx, http.MethodPost, "schedule/batch", map[string]any{"worlds": reqs}, &resp)
	return resp.Plans, err
}

// Generate asks the server to generate and schedule a strategy.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Strategy, error) {
	var resp Strategy
	err := c.do(ctx, http.MethodPost, "snapshots/generate", req, &resp)
	return resp, err
}

// GroupShootDays groups snapshots into shoot days.
func (c *Client) GroupShootDays(ctx context.Context, worldID string, snapshots []Snapshot) ([]ShootDay, error) {
	body := map[string]any{
		"world_id":  worldID,
		"snapshots": snapshots,
	}
	var resp struct {
		ShootDays []ShootDay `json:"shoot_days"`
	}
	err := c.do(ctx, http.MethodPost, "shoot-days", body, &resp)
	return resp.ShootDays, err
}

// Reschedule suggests new dates for shoot days that hit a blackout.
func (c *Client) Reschedule(ctx context.Context, days []ShootDay, blackouts []string) ([]ShootDay, error) {
	body := map[string]any{"shoot_days": days}
	if len(blackouts) > 0 {
		body["blackout_dates"] = blackouts
	}
	var resp struct {
		ShootDays []ShootDay `json:"shoot_days"`
	}
	err := c.do(ctx, http.MethodPost, "shoot-days/reschedule", body, &resp)
	return resp.ShootDays, err
}

// Confirm locks in a shoot day on its original or suggested date.
func (c *Client) Confirm(ctx context.Context, day ShootDay, useSuggested bool) (ShootDay, error) {
	body := map[string]any{
		"shoot_day":          day,
		"use_suggested_date": useSuggested,
	}
	var resp ShootDay
	err := c.do(ctx, http.MethodPost, "shoot-days/confirm", body, &resp)
	return resp, err
}

// CalendarEvents returns the calendar entries for a plan.
func (c *Client) CalendarEvents(ctx context.Context, req CalendarRequest) ([]CalendarEvent, error) {
	var resp struct {
		Events []CalendarEvent `json:"events"`
	}
	err := c.do(ctx, http.MethodPost, "calendar/events", req, &resp)
	return resp.Events, err
}

// ExportCalendar returns the plan as an iCalendar document.
func (c *Client) ExportCalendar(ctx context.Context, req CalendarRequest) (string, error) {
	var buf bytes.Buffer
	err := c.do(ctx, http.MethodPost, "calendar/export", req, &buf)
	return buf.String(), err
}

// CalendarStatus reports whether an external calendar is connected.
func (c *Client) CalendarStatus(ctx context.Context) (CalendarStatus, error) {
	var resp CalendarStatus
	err := c.do(ctx, http.MethodGet, "calendar/status", nil, &resp)
	return resp, err
}

// DueReminders lists reminders due on req.Today, optionally delivering them.
func (c *Client) DueReminders(ctx context.Context, req RemindersRequest) (Reminders, error) {
	var resp Reminders
	err := c.do(ctx, http.MethodPost, "reminders/due", req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	switch dst := out.(type) {
	case nil:
		return nil
	case io.Writer:
		_, err := io.Copy(dst, resp.Body)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
