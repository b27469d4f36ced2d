package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/auctionalerts/auction-alert-system/internal/learning"
	"github.com/auctionalerts/auction-alert-system/internal/metrics"
	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// DefaultParameters is the registry of adjustable parameters with their
// bounds and step sizes. Only the confidence threshold is policy-driven;
// the rest are registered so manual changes share the same audit trail.
func DefaultParameters() []*models.LearningParameter {
	return []*models.LearningParameter{
		{ParamName: ConfidenceThresholdParam, CurrentValue: 0.6, MinValue: 0.3, MaxValue: 0.95, StepSize: 0.05},
		{ParamName: "max_hours_before_close", CurrentValue: 48, MinValue: 12, MaxValue: 96, StepSize: 6},
		{ParamName: "max_distance_miles", CurrentValue: 100, MinValue: 25, MaxValue: 200, StepSize: 10},
		{ParamName: "max_price", CurrentValue: 1200, MinValue: 300, MaxValue: 3000, StepSize: 100},
	}
}

// ParameterRegistrar seeds learning parameters at startup.
type ParameterRegistrar interface {
	RegisterParameter(ctx context.Context, param *models.LearningParameter) error
}

// RegisterDefaultParameters seeds the registry, leaving learned values of
// already-registered parameters untouched.
func RegisterDefaultParameters(ctx context.Context, store ParameterRegistrar) error {
	for _, param := range DefaultParameters() {
		if err := store.RegisterParameter(ctx, param); err != nil {
			return fmt.Errorf("failed to register %s: %w", param.ParamName, err)
		}
	}
	return nil
}

// ChangePublisher announces applied parameter changes.
type ChangePublisher interface {
	PublishParameterAdjusted(ctx context.Context, entry *models.LearningHistoryEntry) error
}

// StatsCache caches the latest outcome stats snapshot; nil-safe optional.
type StatsCache interface {
	SetOutcomeStats(ctx context.Context, windowDays int, stats *models.OutcomeStats, ttl time.Duration) error
}

// LearningJob runs the learning loop on its cadence and reports the
// observed click rate and applied changes.
type LearningJob struct {
	loop       *learning.Loop
	aggregator *learning.OutcomeAggregator
	publisher  ChangePublisher
	cache      StatsCache
	windowDays int
	now        func() time.Time
}

// NewLearningJob wires a learning job. publisher and cache may be nil.
func NewLearningJob(loop *learning.Loop, agg *learning.OutcomeAggregator, publisher ChangePublisher, cache StatsCache, windowDays int) *LearningJob {
	return &LearningJob{
		loop:       loop,
		aggregator: agg,
		publisher:  publisher,
		cache:      cache,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// Run executes one learning cycle.
func (j *LearningJob) Run(ctx context.Context) ([]learning.Change, error) {
	now := j.now().UTC()

	stats, err := j.aggregator.Stats(ctx, now)
	if err != nil {
		return nil, err
	}
	if rate, ok := stats.ClickRate(); ok {
		metrics.ClickRate.Set(rate)
		log.Printf("Learning job: %d alerts in window, click rate %.1f%%", stats.Total, rate*100)
	} else {
		log.Printf("Learning job: no actionable alerts in window")
	}
	if j.cache != nil {
		if err := j.cache.SetOutcomeStats(ctx, j.windowDays, &stats, time.Hour); err != nil {
			log.Printf("Warning: failed to cache outcome stats: %v", err)
		}
	}

	changes, err := j.loop.Run(ctx)
	for _, change := range changes {
		metrics.ParameterAdjustments.WithLabelValues(change.ParamName).Inc()
		if j.publisher == nil {
			continue
		}
		entry := &models.LearningHistoryEntry{
			ParamName: change.ParamName,
			OldValue:  change.OldValue,
			NewValue:  change.NewValue,
			Reason:    change.Reason,
			CreatedAt: now,
		}
		if pubErr := j.publisher.PublishParameterAdjusted(ctx, entry); pubErr != nil {
			log.Printf("Warning: failed to publish parameter change: %v", pubErr)
		}
	}
	return changes, err
}
