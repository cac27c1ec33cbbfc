package calendar

import (
	"fmt"
	"sort"

	"snapline/internal/config"
	"snapline/internal/domain"
	"snapline/internal/schedule"
)

// DefaultShootStart is the start time of shoot day events.
const DefaultShootStart = "10:00"

// Builder turns scheduled snapshots and shoot days into calendar events.
type Builder struct {
	WorldID      string
	WorldName    string
	PostingTimes map[string]string
	ShootStart   string
}

// NewBuilder returns a Builder using the schedule section's posting times
// and shoot start.
func NewBuilder(worldID, worldName string, sched config.ScheduleConfig) Builder {
	return Builder{
		WorldID:      worldID,
		WorldName:    worldName,
		PostingTimes: sched.PostingTimes,
		ShootStart:   sched.ShootStart,
	}
}

func (b Builder) postingTime(p domain.Platform) string {
	if t := b.PostingTimes[string(p)]; t != "" {
		return t
	}
	return schedule.OptimalPostingTime(p)
}

// SnapshotEvents creates one post event per snapshot with a posting date.
func (b Builder) SnapshotEvents(snapshots []domain.Snapshot) []domain.CalendarEvent {
	var out []domain.CalendarEvent
	for _, s := range snapshots {
		if s.PostingDate == "" {
			continue
		}
		desc := s.VisualDescription
		if s.Caption != "" {
			desc += fmt.Sprintf("\n\nCaption: %q", s.Caption)
		}
		out = append(out, domain.CalendarEvent{
			ID:          "event-" + s.ID,
			Type:        domain.EventPost,
			Title:       fmt.Sprintf("Post: %s - %s", b.WorldName, s.Platform),
			Description: desc,
			Date:        s.PostingDate,
			Time:        b.postingTime(s.Platform),
			WorldID:     firstNonEmpty(s.WorldID, b.WorldID),
			SnapshotID:  s.ID,
		})
	}
	return out
}

// ShootDayEvents creates one shoot event per shoot day, on the confirmed date
// when there is one and the suggested date otherwise.
func (b Builder) ShootDayEvents(days []domain.ShootDay) []domain.CalendarEvent {
	start := b.ShootStart
	if start == "" {
		start = DefaultShootStart
	}
	out := make([]domain.CalendarEvent, 0, len(days))
	for _, d := range days {
		n := len(d.SnapshotIDs)
		plural := "s"
		if n == 1 {
			plural = ""
		}
		out = append(out, domain.CalendarEvent{
			ID:          "event-" + d.ID,
			Type:        domain.EventShoot,
			Title:       "Shoot Day: " + b.WorldName,
			Description: fmt.Sprintf("Film %d snapshot%s for %s", n, plural, b.WorldName),
			Date:        ShootDate(d),
			Time:        start,
			WorldID:     firstNonEmpty(d.WorldID, b.WorldID),
			ShootDayID:  d.ID,
		})
	}
	return out
}

// ShootDate is the day a shoot actually happens.
func ShootDate(d domain.ShootDay) string {
	return firstNonEmpty(d.ConfirmedDate, d.SuggestedDate, d.Date)
}

// ReleaseEvent is an all-day event on the release date.
func (b Builder) ReleaseEvent(release string) domain.CalendarEvent {
	id := b.WorldID
	if id == "" {
		id = b.WorldName
	}
	return domain.CalendarEvent{
		ID:      "event-release-" + id,
		Type:    domain.EventRelease,
		Title:   "Release: " + b.WorldName,
		Date:    release,
		WorldID: b.WorldID,
	}
}

// Events collects every event for a world ordered by date and time. release
// may be empty.
func (b Builder) Events(snapshots []domain.Snapshot, days []domain.ShootDay, release string) []domain.CalendarEvent {
	out := b.SnapshotEvents(snapshots)
	out = append(out, b.ShootDayEvents(days)...)
	if release != "" {
		out = append(out, b.ReleaseEvent(release))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
