// Package learning closes the feedback loop: it aggregates how users
// responded to past alerts and nudges registered parameters toward a
// target engagement band, keeping every change bounded and reversible.
package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// AlertSource lists alerts created after a point in time, with outcomes
// populated. Backed by the alert store.
type AlertSource interface {
	ListAlerts(ctx context.Context, createdAfter time.Time) ([]*models.Alert, error)
}

// OutcomeAggregator computes engagement statistics over a trailing window
// of alerts.
type OutcomeAggregator struct {
	alerts AlertSource
	window time.Duration
}

// NewOutcomeAggregator returns an aggregator over the given trailing
// window (e.g. 14 days).
func NewOutcomeAggregator(alerts AlertSource, window time.Duration) *OutcomeAggregator {
	return &OutcomeAggregator{alerts: alerts, window: window}
}

// Stats tallies outcomes for all alerts created within the window ending
// at now. Stable under empty input: callers get zero counts and an
// undefined click rate.
func (a *OutcomeAggregator) Stats(ctx context.Context, now time.Time) (models.OutcomeStats, error) {
	alerts, err := a.alerts.ListAlerts(ctx, now.Add(-a.window))
	if err != nil {
		return models.OutcomeStats{}, fmt.Errorf("failed to list alerts for aggregation: %w", err)
	}

	var stats models.OutcomeStats
	for _, alert := range alerts {
		stats.Count(alert.Outcome)
	}
	return stats, nil
}
