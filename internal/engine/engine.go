package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"snapline/internal/config"
	"snapline/internal/domain"
	"snapline/internal/llm"
	"snapline/internal/schedule"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyStrategy        = errors.New("generator returned no snapshots")
	ErrRateLimited          = errors.New("generation rate limit exceeded")
	ErrGeneratorUnavailable = errors.New("content generator unavailable")
)

// Generator produces unscheduled snapshots for a world.
type Generator interface {
	GenerateSnapshots(ctx context.Context, brief llm.SnapshotBrief) ([]domain.Snapshot, error)
}

type Engine struct {
	Config    *config.Config
	Generator Generator
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string

	limiter *rate.Limiter
	tracer  trace.Tracer
}

// New builds an engine. gen may be nil when no API key is configured; the
// scheduling operations work without it.
func New(cfg *config.Config, gen Generator, logger *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Engine{
		Config:    cfg,
		Generator: gen,
		Logger:    logger,
		Now:       time.Now,
		NewID:     func() string { return uuid.NewString() },
		limiter:   newLimiter(cfg),
		tracer:    otel.Tracer("snapline/engine"),
	}
}

func newLimiter(cfg *config.Config) *rate.Limiter {
	perMinute := cfg.Generation.RequestsPerMinute
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Generation.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer("snapline/engine")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Blackouts merges the configured blackout dates with extra ones.
func (e Engine) Blackouts(extra []string) (schedule.DateSet, error) {
	set := schedule.NewDateSet()
	var all []string
	if e.Config != nil {
		all = append(all, e.Config.Schedule.BlackoutDates...)
	}
	all = append(all, extra...)
	for _, d := range all {
		t, err := schedule.ParseDate(d)
		if err != nil {
			return nil, fmt.Errorf("blackout date: %w", err)
		}
		set[schedule.FormatDate(t)] = struct{}{}
	}
	return set, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateDate(field, value string) error {
	if value == "" {
		return invalid("%s is required", field)
	}
	if _, err := schedule.ParseDate(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func validateOptionalDate(field, value string) error {
	if value == "" {
		return nil
	}
	return validateDate(field, value)
}

func validateSnapshot(i int, s domain.Snapshot) error {
	if s.Platform != "" && !s.Platform.Valid() {
		return invalid("snapshots[%d].platform %q is not supported", i, s.Platform)
	}
	if s.ContentType != "" && !s.ContentType.Valid() {
		return invalid("snapshots[%d].content_type %q is not supported", i, s.ContentType)
	}
	if err := validateOptionalDate(fmt.Sprintf("snapshots[%d].posting_date", i), s.PostingDate); err != nil {
		return err
	}
	return validateOptionalDate(fmt.Sprintf("snapshots[%d].suggested_filming_date", i), s.SuggestedFilmingDate)
}

// prepareSnapshots validates snapshots, assigns missing ids and stamps the
// world id. The input slice is not modified.
func (e Engine) prepareSnapshots(worldID string, in []domain.Snapshot) ([]domain.Snapshot, error) {
	out := make([]domain.Snapshot, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, s := range in {
		if err := validateSnapshot(i, s); err != nil {
			return nil, err
		}
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			s.ID = e.newID()
		}
		if _, dup := seen[s.ID]; dup {
			return nil, invalid("duplicate snapshot id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if worldID != "" {
			s.WorldID = worldID
		}
		out[i] = s
	}
	return out, nil
}
