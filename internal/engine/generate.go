package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"snapline/internal/domain"
	"snapline/internal/llm"
)

// StrategyResult is a generated, fully scheduled snapshot strategy.
type StrategyResult struct {
	Strategy  domain.SnapshotStrategy `json:"strategy"`
	ShootDays []domain.ShootDay       `json:"shoot_days"`
}

// GenerateStrategy asks the generator for snapshots and schedules them.
// Calls are rate limited per engine.
func (e Engine) GenerateStrategy(ctx context.Context, brief llm.SnapshotBrief, blackouts []string) (StrategyResult, error) {
	ctx, span := e.startSpan(ctx, "engine.generate_strategy", attribute.String("world.name", brief.WorldName))
	res, err := e.generateStrategy(ctx, brief, blackouts)
	if err == nil {
		span.SetAttributes(attribute.Int("snapshot.count", len(res.Strategy.Snapshots)))
	}
	endSpan(span, err)
	if err != nil {
		e.logger().Warn("strategy generation failed", "world_name", brief.WorldName, "error", err)
		return StrategyResult{}, err
	}
	e.logger().Info("strategy generated", "world_id", res.Strategy.WorldID, "snapshot_count", len(res.Strategy.Snapshots))
	return res, nil
}

func (e Engine) generateStrategy(ctx context.Context, brief llm.SnapshotBrief, blackouts []string) (StrategyResult, error) {
	if brief.WorldName == "" {
		return StrategyResult{}, invalid("world_name is required")
	}
	if err := validateDate("release_date", brief.ReleaseDate); err != nil {
		return StrategyResult{}, err
	}
	if _, err := e.Blackouts(blackouts); err != nil {
		return StrategyResult{}, err
	}
	if e.Generator == nil {
		return StrategyResult{}, fmt.Errorf("%w: no API key configured", ErrGeneratorUnavailable)
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return StrategyResult{}, ErrRateLimited
	}
	if brief.WorldID == "" {
		brief.WorldID = "world-" + e.newID()
	}

	snapshots, err := e.Generator.GenerateSnapshots(ctx, brief)
	if err != nil {
		var cfgErr *llm.ConfigurationError
		switch {
		case errors.As(err, &cfgErr):
			return StrategyResult{}, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
		case errors.Is(err, llm.ErrRateLimited):
			return StrategyResult{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return StrategyResult{}, fmt.Errorf("generate snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return StrategyResult{}, ErrEmptyStrategy
	}
	plan, err := e.schedule(ctx, PlanRequest{
		WorldID:       brief.WorldID,
		ReleaseDate:   brief.ReleaseDate,
		Snapshots:     snapshots,
		BlackoutDates: blackouts,
	})
	if err != nil {
		return StrategyResult{}, err
	}
	return StrategyResult{
		Strategy: domain.SnapshotStrategy{
			ID:          "snapshot-strategy-" + e.newID(),
			WorldID:     plan.WorldID,
			Snapshots:   plan.Snapshots,
			GeneratedAt: e.now().UTC().Format(time.RFC3339),
		},
		ShootDays: plan.ShootDays,
	}, nil
}
