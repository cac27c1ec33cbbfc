package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"snapline/internal/domain"
	"snapline/internal/schedule"
)

const (
	productID     = "-//snapline//release calendar//EN"
	eventDuration = time.Hour
	// maxEventDays bounds how many blackout days one imported event can produce.
	maxEventDays = 366
)

// Export renders events as an iCalendar document. Timed events are placed in
// loc and last an hour; events without a time are all-day.
func Export(events []domain.CalendarEvent, loc *time.Location, stamp time.Time) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		day, err := schedule.ParseDate(ev.Date)
		if err != nil {
			return "", fmt.Errorf("event %s: %w", ev.ID, err)
		}
		vevent := cal.AddEvent(ev.ID + "@snapline")
		vevent.SetDtStampTime(stamp)
		vevent.SetSummary(ev.Title)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Time == "" {
			vevent.SetAllDayStartAt(day)
			vevent.SetAllDayEndAt(schedule.AddDays(day, 1))
			continue
		}
		clock, err := time.Parse("15:04", ev.Time)
		if err != nil {
			return "", fmt.Errorf("event %s: time %q must be HH:MM", ev.ID, ev.Time)
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		vevent.SetStartAt(start)
		vevent.SetEndAt(start.Add(eventDuration))
	}
	return cal.Serialize(), nil
}

// BlackoutsFromICS reads an iCalendar document and returns every day covered
// by one of its events, sorted. All-day end dates are exclusive.
func BlackoutsFromICS(r io.Reader) ([]string, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	set := schedule.NewDateSet()
	for _, ev := range cal.Events() {
		startProp := ev.GetProperty(ics.ComponentPropertyDtStart)
		if startProp == nil {
			continue
		}
		start, allDay, err := propDate(startProp.Value)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.Id(), err)
		}
		last := start
		if endProp := ev.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
			end, _, err := propDate(endProp.Value)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", ev.Id(), err)
			}
			last = end
			if allDay || endsAtMidnight(endProp.Value) {
				last = schedule.AddDays(end, -1)
			}
		}
		if schedule.DaysBetween(start, last) > maxEventDays {
			last = schedule.AddDays(start, maxEventDays)
		}
		for d := start; !d.After(last); d = schedule.AddDays(d, 1) {
			set[schedule.FormatDate(d)] = struct{}{}
		}
	}
	return set.Sorted(), nil
}

// propDate reads the calendar date of a DATE or DATE-TIME value as written.
func propDate(v string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, false, fmt.Errorf("%w %q", schedule.ErrInvalidDate, v)
	}
	t, err := time.Parse("20060102", v[:8])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w %q", schedule.ErrInvalidDate, v)
	}
	return schedule.AddDays(t, 0), len(v) == 8, nil
}

func endsAtMidnight(v string) bool {
	v = strings.TrimSuffix(strings.TrimSpace(v), "Z")
	return len(v) == 15 && strings.HasSuffix(v, "T000000")
}

// Status describes calendar provider connectivity.
type Status struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

// CurrentStatus reports that no provider is connected; calendars are shared
// through ICS export.
func CurrentStatus() Status {
	return Status{
		Provider:  "google",
		Connected: false,
		Message:   "calendar sync is not connected; use the iCalendar export",
	}
}
