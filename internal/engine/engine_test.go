package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"snapline/internal/config"
	"snapline/internal/domain"
	"snapline/internal/engine"
	"snapline/internal/llm"
	"snapline/internal/schedule"
)

type fakeGenerator struct {
	snapshots []domain.Snapshot
	err       error
	calls     atomic.Int32
	brief     llm.SnapshotBrief
}

func (f *fakeGenerator) GenerateSnapshots(_ context.Context, brief llm.SnapshotBrief) ([]domain.Snapshot, error) {
	f.calls.Add(1)
	f.brief = brief
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Snapshot(nil), f.snapshots...), nil
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Logs   *bytes.Buffer
}

func newTestEnv(t *testing.T, cfg *config.Config, gen engine.Generator) testEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	logs := &bytes.Buffer{}
	eng := engine.New(cfg, gen, slog.New(slog.NewTextHandler(logs, nil)))
	eng.Now = func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) }
	var n atomic.Int32
	eng.NewID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	return testEnv{Engine: eng, Ctx: context.Background(), Logs: logs}
}

func fiveSnapshots() []domain.Snapshot {
	var out []domain.Snapshot
	for i := 1; i <= 5; i++ {
		out = append(out, domain.Snapshot{ID: fmt.Sprintf("s%d", i), Order: i, Platform: domain.PlatformInstagram})
	}
	return out
}

func TestScheduleRunsPipeline(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	plan, err := env.Engine.Schedule(env.Ctx, engine.PlanRequest{
		WorldID:     "w1",
		ReleaseDate: "2025-01-10",
		Snapshots:   fiveSnapshots(),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(plan.Snapshots) != 5 {
		t.Fatalf("expected 5 snapshots, got %d", len(plan.Snapshots))
	}
	wantPosting := []string{"2024-12-27", "2025-01-03", "2025-01-10", "2025-02-07", "2025-03-07"}
	wantFilming := []string{"2024-12-20", "2024-12-27", "2025-01-03", "2025-01-31", "2025-02-28"}
	for i, s := range plan.Snapshots {
		if s.PostingDate != wantPosting[i] || s.SuggestedFilmingDate != wantFilming[i] {
			t.Fatalf("snapshot %d: posting %s filming %s", i, s.PostingDate, s.SuggestedFilmingDate)
		}
		if s.WorldID != "w1" {
			t.Fatalf("snapshot %d world id %q", i, s.WorldID)
		}
	}
	if len(plan.ShootDays) != 5 {
		t.Fatalf("expected 5 shoot days, got %d", len(plan.ShootDays))
	}
	for _, d := range plan.ShootDays {
		if d.CreatedAt != "2025-05-01T08:00:00Z" {
			t.Fatalf("created_at %q", d.CreatedAt)
		}
		if d.SuggestedDate != d.Date {
			t.Fatalf("no blackouts but %s moved to %s", d.Date, d.SuggestedDate)
		}
	}
	if !strings.Contains(env.Logs.String(), "world_id=w1") {
		t.Fatalf("expected structured log, got %q", env.Logs.String())
	}
}

func TestScheduleAppliesConfiguredAndRequestBlackouts(t *testing.T) {
	cfg := config.Default()
	// First filming date for a 2025-01-10 release with five items.
	cfg.Schedule.BlackoutDates = []string{"2024-12-20"}
	env := newTestEnv(t, cfg, nil)

	plan, err := env.Engine.Schedule(env.Ctx, engine.PlanRequest{
		WorldID:       "w1",
		ReleaseDate:   "2025-01-10",
		Snapshots:     fiveSnapshots(),
		BlackoutDates: []string{"2024-12-23", "2025-01-03"},
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	got := map[string]string{}
	for _, d := range plan.ShootDays {
		got[d.Date] = d.SuggestedDate
	}
	if got["2024-12-20"] != "2024-12-24" {
		t.Fatalf("2024-12-20 moved to %s", got["2024-12-20"])
	}
	if got["2025-01-03"] != "2025-01-06" {
		t.Fatalf("2025-01-03 moved to %s", got["2025-01-03"])
	}
	if got["2024-12-27"] != "2024-12-27" {
		t.Fatalf("open day moved to %s", got["2024-12-27"])
	}
}

func TestScheduleAssignsMissingIDs(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	plan, err := env.Engine.Schedule(env.Ctx, engine.PlanRequest{
		WorldID:     "w1",
		ReleaseDate: "2025-06-15",
		Snapshots:   []domain.Snapshot{{Order: 1}},
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	s := plan.Snapshots[0]
	if s.ID != "id-1" || s.PostingDate != "2025-06-13" || s.WeekLabel != schedule.ReleaseDayLabel {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if plan.ShootDays[0].ID != "shoot-day-w1-1" || plan.ShootDays[0].SnapshotIDs[0] != "id-1" {
		t.Fatalf("unexpected shoot day %+v", plan.ShootDays[0])
	}
}

func TestScheduleRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cases := []struct {
		name string
		req  engine.PlanRequest
		want error
	}{
		{"missing world", engine.PlanRequest{ReleaseDate: "2025-01-10"}, engine.ErrInvalidInput},
		{"missing release", engine.PlanRequest{WorldID: "w"}, engine.ErrInvalidInput},
		{"bad release", engine.PlanRequest{WorldID: "w", ReleaseDate: "10/01/2025"}, schedule.ErrInvalidDate},
		{"bad blackout", engine.PlanRequest{WorldID: "w", ReleaseDate: "2025-01-10", BlackoutDates: []string{"tomorrow"}}, schedule.ErrInvalidDate},
		{"bad platform", engine.PlanRequest{WorldID: "w", ReleaseDate: "2025-01-10", Snapshots: []domain.Snapshot{{Platform: "myspace"}}}, engine.ErrInvalidInput},
		{"duplicate id", engine.PlanRequest{WorldID: "w", ReleaseDate: "2025-01-10", Snapshots: []domain.Snapshot{{ID: "a"}, {ID: "a"}}}, engine.ErrInvalidInput},
	}
	for _, tc := range cases {
		if _, err := env.Engine.Schedule(env.Ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestPlanWorldsKeepsRequestOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule.Workers = 3
	env := newTestEnv(t, cfg, nil)

	var reqs []engine.PlanRequest
	for i := 0; i < 12; i++ {
		reqs = append(reqs, engine.PlanRequest{
			WorldID:     fmt.Sprintf("w%d", i),
			ReleaseDate: schedule.FormatDate(schedule.AddDays(schedule.MustParseDate("2025-03-01"), i*7)),
			Snapshots:   fiveSnapshots(),
		})
	}
	plans, err := env.Engine.PlanWorlds(env.Ctx, reqs)
	if err != nil {
		t.Fatalf("plan worlds: %v", err)
	}
	for i, p := range plans {
		if p.WorldID != reqs[i].WorldID || p.ReleaseDate != reqs[i].ReleaseDate {
			t.Fatalf("plan %d is for %s/%s", i, p.WorldID, p.ReleaseDate)
		}
		if len(p.ShootDays) == 0 {
			t.Fatalf("plan %d has no shoot days", i)
		}
	}
}

func TestPlanWorldsReportsFailingWorld(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	_, err := env.Engine.PlanWorlds(env.Ctx, []engine.PlanRequest{
		{WorldID: "ok", ReleaseDate: "2025-03-01"},
		{WorldID: "broken", ReleaseDate: "March"},
	})
	if !errors.Is(err, schedule.ErrInvalidDate) || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected invalid date for broken world, got %v", err)
	}
}

func TestGroupShootDaysDerivesMissingFilmingDates(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	days, err := env.Engine.GroupShootDays(env.Ctx, "w1", []domain.Snapshot{
		{ID: "a", PostingDate: "2025-06-20"},
		{ID: "b", PostingDate: "2025-06-24", SuggestedFilmingDate: "2025-06-13"},
		{ID: "c"},
	})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(days) != 1 || days[0].Date != "2025-06-13" || len(days[0].SnapshotIDs) != 2 {
		t.Fatalf("unexpected shoot days %+v", days)
	}
}

func TestRescheduleValidatesDates(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	_, err := env.Engine.Reschedule(env.Ctx, []domain.ShootDay{{ID: "x", Date: "07/05/2025"}}, nil)
	if !errors.Is(err, schedule.ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	out, err := env.Engine.Reschedule(env.Ctx, []domain.ShootDay{{ID: "x", Date: "2025-07-05"}}, []string{"2025-07-05", "2025-07-07"})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if out[0].SuggestedDate != "2025-07-08" {
		t.Fatalf("expected 2025-07-08, got %s", out[0].SuggestedDate)
	}
}

func TestConfirmShootDay(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	day := domain.ShootDay{ID: "sd", Date: "2025-07-05", SuggestedDate: "2025-07-08", Status: domain.ShootDaySuggested, SnapshotIDs: []string{"a"}}

	got, err := env.Engine.ConfirmShootDay(day, true)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != domain.ShootDayConfirmed || got.ConfirmedDate != "2025-07-08" {
		t.Fatalf("unexpected confirmation %+v", got)
	}
	got, _ = env.Engine.ConfirmShootDay(day, false)
	if got.ConfirmedDate != "2025-07-05" {
		t.Fatalf("expected original date, got %s", got.ConfirmedDate)
	}
	if day.Status != domain.ShootDaySuggested {
		t.Fatalf("input was modified")
	}
	if _, err := env.Engine.ConfirmShootDay(domain.ShootDay{Date: "2025-07-05"}, false); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGenerateStrategy(t *testing.T) {
	gen := &fakeGenerator{snapshots: []domain.Snapshot{
		{VisualDescription: "teaser", Platform: domain.PlatformTikTok, Order: 1},
		{VisualDescription: "launch", Platform: domain.PlatformInstagram, Order: 2},
	}}
	env := newTestEnv(t, nil, gen)

	res, err := env.Engine.GenerateStrategy(env.Ctx, llm.SnapshotBrief{WorldName: "Forest", ReleaseDate: "2025-06-13"}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.brief.WorldID != "world-id-1" {
		t.Fatalf("expected generated world id, got %q", gen.brief.WorldID)
	}
	st := res.Strategy
	if st.WorldID != "world-id-1" || !strings.HasPrefix(st.ID, "snapshot-strategy-") || st.GeneratedAt != "2025-05-01T08:00:00Z" {
		t.Fatalf("unexpected strategy header %+v", st)
	}
	if len(st.Snapshots) != 2 || st.Snapshots[0].PostingDate != "2025-05-30" || st.Snapshots[1].PostingDate != "2025-08-08" {
		t.Fatalf("unexpected snapshots %+v", st.Snapshots)
	}
	for _, s := range st.Snapshots {
		if s.ID == "" || s.SuggestedFilmingDate == "" {
			t.Fatalf("snapshot not completed: %+v", s)
		}
	}
	if len(res.ShootDays) != 2 {
		t.Fatalf("expected 2 shoot days, got %d", len(res.ShootDays))
	}
}

func TestGenerateStrategyErrors(t *testing.T) {
	brief := llm.SnapshotBrief{WorldID: "w", WorldName: "Forest", ReleaseDate: "2025-06-13"}

	env := newTestEnv(t, nil, nil)
	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); !errors.Is(err, engine.ErrGeneratorUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	env = newTestEnv(t, nil, &fakeGenerator{err: &llm.ConfigurationError{Field: "api_key", Msg: "is not configured"}})
	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); !errors.Is(err, engine.ErrGeneratorUnavailable) {
		t.Fatalf("expected unavailable from configuration error, got %v", err)
	}

	env = newTestEnv(t, nil, &fakeGenerator{err: llm.ErrRateLimited})
	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); !errors.Is(err, engine.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	env = newTestEnv(t, nil, &fakeGenerator{err: llm.ErrInvalidOutput})
	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); !errors.Is(err, llm.ErrInvalidOutput) {
		t.Fatalf("expected invalid output, got %v", err)
	}

	env = newTestEnv(t, nil, &fakeGenerator{})
	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); !errors.Is(err, engine.ErrEmptyStrategy) {
		t.Fatalf("expected empty strategy, got %v", err)
	}

	gen := &fakeGenerator{}
	env = newTestEnv(t, nil, gen)
	if _, err := env.Engine.GenerateStrategy(env.Ctx, llm.SnapshotBrief{WorldName: "x", ReleaseDate: "June"}, nil); !errors.Is(err, schedule.ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if gen.calls.Load() != 0 {
		t.Fatalf("generator called for invalid input")
	}
}

func TestGenerateStrategyIsRateLimited(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.RequestsPerMinute = 1
	cfg.Generation.Burst = 1
	gen := &fakeGenerator{snapshots: []domain.Snapshot{{Order: 1}}}
	env := newTestEnv(t, cfg, gen)
	brief := llm.SnapshotBrief{WorldID: "w", WorldName: "Forest", ReleaseDate: "2025-06-13"}

	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := env.Engine.GenerateStrategy(env.Ctx, brief, nil); !errors.Is(err, engine.ErrRateLimited) {
		t.Fatalf("expected rate limit on second call, got %v", err)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("generator called %d times", gen.calls.Load())
	}
}
