package server

import (
	"snapline/internal/domain"
	"snapline/internal/engine"
	"snapline/internal/reminder"
	"snapline/internal/schedule"
)

// Request payloads

type SnapshotInput struct {
	ID                   string             `json:"id,omitempty"`
	WorldID              string             `json:"world_id,omitempty"`
	VisualDescription    string             `json:"visual_description,omitempty"`
	Caption              string             `json:"caption,omitempty"`
	Platform             domain.Platform    `json:"platform,omitempty" enum:"instagram,tiktok,twitter"`
	ContentType          domain.ContentType `json:"content_type,omitempty" enum:"photo,video,story,reel,carousel"`
	Timing               string             `json:"timing,omitempty"`
	Order                int                `json:"order,omitempty"`
	PostingDate          string             `json:"posting_date,omitempty" format:"date"`
	WeekLabel            string             `json:"week_label,omitempty"`
	SuggestedFilmingDate string             `json:"suggested_filming_date,omitempty" format:"date"`
}

type ShootDayInput struct {
	ID            string                `json:"id"`
	WorldID       string                `json:"world_id,omitempty"`
	Date          string                `json:"date" format:"date"`
	SuggestedDate string                `json:"suggested_date,omitempty" format:"date"`
	Status        domain.ShootDayStatus `json:"status,omitempty" enum:"suggested,confirmed"`
	Snapshots     []string              `json:"snapshots,omitempty"`
	ConfirmedDate string                `json:"confirmed_date,omitempty" format:"date"`
	CreatedAt     string                `json:"created_at,omitempty"`
}

type ScheduleRequest struct {
	WorldID       string          `json:"world_id" minLength:"1"`
	ReleaseDate   string          `json:"release_date" format:"date"`
	Snapshots     []SnapshotInput `json:"snapshots"`
	BlackoutDates []string        `json:"blackout_dates,omitempty"`
}

type BatchScheduleRequest struct {
	Worlds []ScheduleRequest `json:"worlds" minItems:"1"`
}

type GenerateRequest struct {
	WorldID          string   `json:"world_id,omitempty"`
	WorldName        string   `json:"world_name" minLength:"1"`
	ReleaseDate      string   `json:"release_date" format:"date"`
	Color            string   `json:"color,omitempty"`
	VisualReferences []string `json:"visual_references,omitempty"`
	ColorPalette     []string `json:"color_palette,omitempty"`
	BlackoutDates    []string `json:"blackout_dates,omitempty"`
}

type GroupShootDaysRequest struct {
	WorldID   string          `json:"world_id" minLength:"1"`
	Snapshots []SnapshotInput `json:"snapshots"`
}

type RescheduleRequest struct {
	ShootDays     []ShootDayInput `json:"shoot_days"`
	BlackoutDates []string        `json:"blackout_dates,omitempty"`
}

type ConfirmShootDayRequest struct {
	ShootDay         ShootDayInput `json:"shoot_day"`
	UseSuggestedDate bool          `json:"use_suggested_date,omitempty"`
}

type CalendarRequest struct {
	WorldID     string          `json:"world_id,omitempty"`
	WorldName   string          `json:"world_name" minLength:"1"`
	ReleaseDate string          `json:"release_date,omitempty" format:"date"`
	Snapshots   []SnapshotInput `json:"snapshots,omitempty"`
	ShootDays   []ShootDayInput `json:"shoot_days,omitempty"`
}

type ReminderSettingsInput struct {
	DaysBefore []int  `json:"days_before,omitempty"`
	Time       string `json:"time,omitempty"`
	Posts      *bool  `json:"posts,omitempty"`
	Shoots     *bool  `json:"shoots,omitempty"`
	Release    *bool  `json:"release,omitempty"`
}

type RemindersRequest struct {
	CalendarRequest
	Today    string                 `json:"today" format:"date"`
	Settings *ReminderSettingsInput `json:"settings,omitempty"`
	Notify   bool                   `json:"notify,omitempty"`
}

// Response payloads

type PlanResponse struct {
	WorldID     string               `json:"world_id"`
	ReleaseDate string               `json:"release_date"`
	Snapshots   []domain.Snapshot    `json:"snapshots"`
	ShootDays   []domain.ShootDay    `json:"shoot_days"`
	Weeks       []schedule.WeekGroup `json:"weeks"`
}

type BatchScheduleResponse struct {
	Plans []PlanResponse `json:"plans"`
}

type ShootDaysResponse struct {
	ShootDays []domain.ShootDay `json:"shoot_days"`
}

type EventsResponse struct {
	Events []domain.CalendarEvent `json:"events"`
}

type RemindersResponse struct {
	Reminders []domain.Reminder `json:"reminders"`
	Notified  *reminder.Report  `json:"notified,omitempty"`
}

func (in SnapshotInput) toDomain() domain.Snapshot {
	return domain.Snapshot{
		ID:                   in.ID,
		WorldID:              in.WorldID,
		VisualDescription:    in.VisualDescription,
		Caption:              in.Caption,
		Platform:             in.Platform,
		ContentType:          in.ContentType,
		Timing:               in.Timing,
		Order:                in.Order,
		PostingDate:          in.PostingDate,
		WeekLabel:            in.WeekLabel,
		SuggestedFilmingDate: in.SuggestedFilmingDate,
	}
}

func (in ShootDayInput) toDomain() domain.ShootDay {
	status := in.Status
	if status == "" {
		status = domain.ShootDaySuggested
	}
	return domain.ShootDay{
		ID:            in.ID,
		WorldID:       in.WorldID,
		Date:          in.Date,
		SuggestedDate: in.SuggestedDate,
		Status:        status,
		SnapshotIDs:   append([]string{}, in.Snapshots...),
		ConfirmedDate: in.ConfirmedDate,
		CreatedAt:     in.CreatedAt,
	}
}

func mapSnapshots(items []SnapshotInput) []domain.Snapshot {
	out := make([]domain.Snapshot, len(items))
	for i, s := range items {
		out[i] = s.toDomain()
	}
	return out
}

func mapShootDays(items []ShootDayInput) []domain.ShootDay {
	out := make([]domain.ShootDay, len(items))
	for i, d := range items {
		out[i] = d.toDomain()
	}
	return out
}

func (r ScheduleRequest) toPlanRequest() engine.PlanRequest {
	return engine.PlanRequest{
		WorldID:       r.WorldID,
		ReleaseDate:   r.ReleaseDate,
		Snapshots:     mapSnapshots(r.Snapshots),
		BlackoutDates: r.BlackoutDates,
	}
}

func planResponse(p engine.Plan) PlanResponse {
	return PlanResponse{
		WorldID:     p.WorldID,
		ReleaseDate: p.ReleaseDate,
		Snapshots:   p.Snapshots,
		ShootDays:   p.ShootDays,
		Weeks:       schedule.GroupByWeek(p.Snapshots),
	}
}

func (in *ReminderSettingsInput) apply(base domain.ReminderSettings) domain.ReminderSettings {
	if in == nil {
		return base
	}
	if in.DaysBefore != nil {
		base.DaysBefore = in.DaysBefore
	}
	if in.Time != "" {
		base.Time = in.Time
	}
	if in.Posts != nil {
		base.Posts = *in.Posts
	}
	if in.Shoots != nil {
		base.Shoots = *in.Shoots
	}
	if in.Release != nil {
		base.Release = *in.Release
	}
	return base
}
