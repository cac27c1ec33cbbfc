package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"

	"snapline/internal/domain"
	"snapline/internal/schedule"
)

// PlanRequest asks for one world's snapshots to be scheduled.
type PlanRequest struct {
	WorldID       string            `json:"world_id"`
	ReleaseDate   string            `json:"release_date"`
	Snapshots     []domain.Snapshot `json:"snapshots"`
	BlackoutDates []string          `json:"blackout_dates,omitempty"`
}

// Plan is a scheduled world: every snapshot has a posting date, week label
// and filming date, and the filming dates are grouped into shoot days.
type Plan struct {
	WorldID     string            `json:"world_id"`
	ReleaseDate string            `json:"release_date"`
	Snapshots   []domain.Snapshot `json:"snapshots"`
	ShootDays   []domain.ShootDay `json:"shoot_days"`
}

// Schedule runs the full pipeline for one world: distribute over the release
// window, derive filming dates, group into shoot days, then move shoot days
// off blackout dates.
func (e Engine) Schedule(ctx context.Context, req PlanRequest) (Plan, error) {
	start := e.now()
	ctx, span := e.startSpan(ctx, "engine.schedule",
		attribute.String("world.id", req.WorldID),
		attribute.Int("snapshot.count", len(req.Snapshots)),
	)
	plan, err := e.schedule(ctx, req)
	endSpan(span, err)
	if err != nil {
		return Plan{}, err
	}
	e.logger().Info("world scheduled",
		"world_id", plan.WorldID,
		"snapshot_count", len(plan.Snapshots),
		"shoot_day_count", len(plan.ShootDays),
		"duration_ms", e.now().Sub(start).Milliseconds(),
	)
	return plan, nil
}

func (e Engine) schedule(ctx context.Context, req PlanRequest) (Plan, error) {
	if req.WorldID == "" {
		return Plan{}, invalid("world_id is required")
	}
	if err := validateDate("release_date", req.ReleaseDate); err != nil {
		return Plan{}, err
	}
	release, _ := schedule.ParseDate(req.ReleaseDate)
	blackouts, err := e.Blackouts(req.BlackoutDates)
	if err != nil {
		return Plan{}, err
	}
	items, err := e.prepareSnapshots(req.WorldID, req.Snapshots)
	if err != nil {
		return Plan{}, err
	}
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	items = schedule.DeriveFilmingDates(schedule.Distribute(items, release))
	days := schedule.RescheduleAroundBlackouts(schedule.GroupIntoShootDays(items, req.WorldID), blackouts)
	e.stamp(days)
	return Plan{
		WorldID:     req.WorldID,
		ReleaseDate: schedule.FormatDate(release),
		Snapshots:   items,
		ShootDays:   days,
	}, nil
}

func (e Engine) stamp(days []domain.ShootDay) {
	created := e.now().UTC().Format(time.RFC3339)
	for i := range days {
		if days[i].CreatedAt == "" {
			days[i].CreatedAt = created
		}
	}
}

// PlanWorlds schedules many worlds concurrently. Results are in request
// order; the first failure cancels the remaining work.
func (e Engine) PlanWorlds(ctx context.Context, reqs []PlanRequest) ([]Plan, error) {
	ctx, span := e.startSpan(ctx, "engine.plan_worlds", attribute.Int("world.count", len(reqs)))
	out := make([]Plan, len(reqs))
	workers := 4
	if e.Config != nil && e.Config.Schedule.Workers > 0 {
		workers = e.Config.Schedule.Workers
	}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, req := range reqs {
		p.Go(func(ctx context.Context) error {
			plan, err := e.Schedule(ctx, req)
			if err != nil {
				return fmt.Errorf("worlds[%d] %s: %w", i, req.WorldID, err)
			}
			out[i] = plan
			return nil
		})
	}
	err := p.Wait()
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GroupShootDays groups already dated snapshots into shoot days. Snapshots
// with a posting date but no filming date get one derived first.
func (e Engine) GroupShootDays(ctx context.Context, worldID string, snapshots []domain.Snapshot) ([]domain.ShootDay, error) {
	_, span := e.startSpan(ctx, "engine.group_shoot_days",
		attribute.String("world.id", worldID),
		attribute.Int("snapshot.count", len(snapshots)),
	)
	days, err := e.groupShootDays(worldID, snapshots)
	endSpan(span, err)
	return days, err
}

func (e Engine) groupShootDays(worldID string, snapshots []domain.Snapshot) ([]domain.ShootDay, error) {
	if worldID == "" {
		return nil, invalid("world_id is required")
	}
	items, err := e.prepareSnapshots(worldID, snapshots)
	if err != nil {
		return nil, err
	}
	for i, s := range items {
		if s.SuggestedFilmingDate == "" && s.PostingDate != "" {
			items[i] = schedule.DeriveFilmingDates([]domain.Snapshot{s})[0]
		}
	}
	days := schedule.GroupIntoShootDays(items, worldID)
	e.stamp(days)
	return days, nil
}

// Reschedule moves shoot days that fall on blackout dates. Configured
// blackout dates always apply in addition to extra.
func (e Engine) Reschedule(ctx context.Context, days []domain.ShootDay, extra []string) ([]domain.ShootDay, error) {
	_, span := e.startSpan(ctx, "engine.reschedule",
		attribute.Int("shoot_day.count", len(days)),
		attribute.Int("blackout.count", len(extra)),
	)
	out, err := e.reschedule(days, extra)
	endSpan(span, err)
	if err == nil {
		moved := 0
		for _, d := range out {
			if d.SuggestedDate != d.Date {
				moved++
			}
		}
		e.logger().Info("shoot days rescheduled", "shoot_day_count", len(out), "moved", moved)
	}
	return out, err
}

func (e Engine) reschedule(days []domain.ShootDay, extra []string) ([]domain.ShootDay, error) {
	for i, d := range days {
		if err := validateDate(fmt.Sprintf("shoot_days[%d].date", i), d.Date); err != nil {
			return nil, err
		}
	}
	blackouts, err := e.Blackouts(extra)
	if err != nil {
		return nil, err
	}
	return schedule.RescheduleAroundBlackouts(days, blackouts), nil
}

// ConfirmShootDay locks a shoot day in. The confirmed date is the suggested
// date when useSuggested is set and one exists, otherwise the original date.
func (e Engine) ConfirmShootDay(day domain.ShootDay, useSuggested bool) (domain.ShootDay, error) {
	if day.ID == "" {
		return domain.ShootDay{}, invalid("shoot day id is required")
	}
	if err := validateDate("date", day.Date); err != nil {
		return domain.ShootDay{}, err
	}
	if err := validateOptionalDate("suggested_date", day.SuggestedDate); err != nil {
		return domain.ShootDay{}, err
	}
	out := day
	out.SnapshotIDs = append([]string(nil), day.SnapshotIDs...)
	out.Status = domain.ShootDayConfirmed
	out.ConfirmedDate = day.Date
	if useSuggested && day.SuggestedDate != "" {
		out.ConfirmedDate = day.SuggestedDate
	}
	e.logger().Info("shoot day confirmed", "shoot_day_id", out.ID, "confirmed_date", out.ConfirmedDate)
	return out, nil
}
