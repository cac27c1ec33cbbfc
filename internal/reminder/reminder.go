package reminder

import (
	"sort"
	"time"

	"snapline/internal/domain"
	"snapline/internal/schedule"
)

// DefaultTime is used when settings carry no reminder time.
const DefaultTime = "09:00"

// DefaultSettings mirrors the reminders section of the default config.
func DefaultSettings() domain.ReminderSettings {
	return domain.ReminderSettings{
		DaysBefore: []int{7, 3, 1},
		Time:       DefaultTime,
		Posts:      true,
		Shoots:     true,
		Release:    true,
	}
}

func enabled(s domain.ReminderSettings, t domain.CalendarEventType) bool {
	switch t {
	case domain.EventPost:
		return s.Posts
	case domain.EventShoot, domain.EventEditDeadline:
		return s.Shoots
	case domain.EventRelease:
		return s.Release
	}
	return false
}

// Due returns the reminders to send on today: one per event whose date is
// exactly one of the configured day counts away. Events with unparseable
// dates are skipped.
func Due(events []domain.CalendarEvent, settings domain.ReminderSettings, today time.Time) []domain.Reminder {
	offsets := make(map[int]struct{}, len(settings.DaysBefore))
	for _, n := range settings.DaysBefore {
		offsets[n] = struct{}{}
	}
	at := settings.Time
	if at == "" {
		at = DefaultTime
	}
	remindOn := schedule.FormatDate(today)

	var out []domain.Reminder
	for _, ev := range events {
		if !enabled(settings, ev.Type) {
			continue
		}
		date, err := schedule.ParseDate(ev.Date)
		if err != nil {
			continue
		}
		n := schedule.DaysBetween(today, date)
		if _, ok := offsets[n]; !ok {
			continue
		}
		out = append(out, domain.Reminder{
			EventID:    ev.ID,
			EventType:  ev.Type,
			Title:      ev.Title,
			EventDate:  schedule.FormatDate(date),
			RemindOn:   remindOn,
			Time:       at,
			DaysBefore: n,
			WorldID:    ev.WorldID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventDate < out[j].EventDate
	})
	return out
}
