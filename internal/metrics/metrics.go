// Package metrics exposes Prometheus instrumentation for the matching
// pass, alert lifecycle, and learning loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsCreated counts alerts persisted by the matching pass.
	AlertsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_alerts_created_total",
		Help: "Total number of alerts created by the matching pass",
	})

	// AlertsDuplicate counts create attempts skipped because an alert
	// already existed for the (item, intent) pair.
	AlertsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_alerts_duplicate_total",
		Help: "Total number of duplicate alerts skipped",
	})

	// AlertClicks counts tracked clicks on alert links.
	AlertClicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_alert_clicks_total",
		Help: "Total number of tracked alert clicks",
	})

	// MatchingPassDuration observes how long a full matching pass takes.
	MatchingPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auction_matching_pass_duration_seconds",
		Help:    "Duration of a full matching pass",
		Buckets: prometheus.DefBuckets,
	})

	// PairsScored counts (item, intent) pairs evaluated by the scorer.
	PairsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_matching_pairs_scored_total",
		Help: "Total number of (item, intent) pairs scored",
	})

	// ParameterAdjustments counts learning-loop changes per parameter.
	ParameterAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_learning_adjustments_total",
		Help: "Total number of learning parameter adjustments",
	}, []string{"param"})

	// ClickRate reports the click rate observed by the last learning run.
	ClickRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auction_learning_click_rate",
		Help: "Click rate over the trailing outcome window",
	})
)
