package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"snapline/internal/calendar"
	"snapline/internal/domain"
	"snapline/internal/engine"
	"snapline/internal/reminder"
	"snapline/internal/schedule"
)

func calendarEvents(e engine.Engine, req CalendarRequest) ([]domain.CalendarEvent, error) {
	snapshots := mapSnapshots(req.Snapshots)
	for i, s := range snapshots {
		if err := validateEventDate("snapshots", i, s.PostingDate); err != nil {
			return nil, err
		}
	}
	days := mapShootDays(req.ShootDays)
	for i, d := range days {
		if err := validateEventDate("shoot_days", i, calendar.ShootDate(d)); err != nil {
			return nil, err
		}
	}
	b := calendar.NewBuilder(req.WorldID, req.WorldName, e.Config.Schedule)
	return b.Events(snapshots, days, req.ReleaseDate), nil
}

func validateEventDate(field string, i int, date string) error {
	if date == "" {
		return nil
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return fmt.Errorf("%s[%d]: %w", field, i, err)
	}
	return nil
}

func registerCalendar(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "calendar-events",
		Method:      http.MethodPost,
		Path:        "/calendar/events",
		Summary:     "Build calendar events for a world",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CalendarRequest `json:"body"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		events, err := calendarEvents(e, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: EventsResponse{Events: events}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "calendar-export",
		Method:      http.MethodPost,
		Path:        "/calendar/export",
		Summary:     "Export a world's calendar as iCalendar",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CalendarRequest `json:"body"`
	}) (*struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}, error) {
		events, err := calendarEvents(e, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		loc, err := e.Config.Schedule.Location()
		if err != nil {
			return nil, handleError(err)
		}
		doc, err := calendar.Export(events, loc, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentType        string `header:"Content-Type"`
			ContentDisposition string `header:"Content-Disposition"`
			Body               []byte
		}{
			ContentType:        "text/calendar; charset=utf-8",
			ContentDisposition: `attachment; filename="snapline.ics"`,
			Body:               []byte(doc),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "calendar-status",
		Method:      http.MethodGet,
		Path:        "/calendar/status",
		Summary:     "Calendar provider connection status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body calendar.Status `json:"body"`
	}, error) {
		return &struct {
			Body calendar.Status `json:"body"`
		}{Body: calendar.CurrentStatus()}, nil
	})
}

func registerReminders(api huma.API, e engine.Engine, notifier *reminder.Notifier) {
	huma.Register(api, huma.Operation{
		OperationID: "reminders-due",
		Method:      http.MethodPost,
		Path:        "/reminders/due",
		Summary:     "List reminders due on a day, optionally sending them to webhooks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RemindersRequest `json:"body"`
	}) (*struct {
		Body RemindersResponse `json:"body"`
	}, error) {
		today, err := schedule.ParseDate(input.Body.Today)
		if err != nil {
			return nil, handleError(err)
		}
		events, err := calendarEvents(e, input.Body.CalendarRequest)
		if err != nil {
			return nil, handleError(err)
		}
		settings := input.Body.Settings.apply(e.Config.Reminders.Settings())
		out := RemindersResponse{Reminders: reminder.Due(events, settings, today)}
		if input.Body.Notify && notifier != nil {
			report, err := notifier.Notify(ctx, out.Reminders)
			out.Notified = &report
			if err != nil && report.Delivered == 0 && report.Failed > 0 {
				return nil, newAPIError(http.StatusBadGateway, "bad_gateway", err.Error(), nil)
			}
		}
		return &struct {
			Body RemindersResponse `json:"body"`
		}{Body: out}, nil
	})
}
