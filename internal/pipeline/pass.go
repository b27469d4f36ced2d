// Package pipeline orchestrates the periodic jobs: the matching pass that
// turns items and intents into alerts, the outcome sweep that resolves
// stale alerts, and the learning job that re-tunes parameters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/auctionalerts/auction-alert-system/internal/database"
	"github.com/auctionalerts/auction-alert-system/internal/matching"
	"github.com/auctionalerts/auction-alert-system/internal/metrics"
	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// ConfidenceThresholdParam is the learned system-wide alert threshold.
const ConfidenceThresholdParam = "confidence_threshold"

// Store is the persistence surface the matching pass needs.
type Store interface {
	ListActiveItems(ctx context.Context, filter database.ItemFilter) ([]*models.AuctionItem, error)
	ListActiveIntents(ctx context.Context) ([]*models.UserIntent, error)
	CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) error
	MarkAlertSent(ctx context.Context, alertID string) error
	GetParameter(ctx context.Context, name string) (*models.LearningParameter, error)
}

// AlertPublisher hands freshly created alerts to the delivery service.
type AlertPublisher interface {
	PublishAlertCreated(ctx context.Context, alert *models.Alert, item *models.AuctionItem, userEmail string) error
}

// TokenCache caches tracking-token redirects; nil-safe optional.
type TokenCache interface {
	SetTokenRedirect(ctx context.Context, token, url string, ttl time.Duration) error
}

// PassSummary reports what one matching pass did.
type PassSummary struct {
	Items         int `json:"items"`
	Intents       int `json:"intents"`
	Candidates    int `json:"candidates"`
	AlertsCreated int `json:"alerts_created"`
	Duplicates    int `json:"duplicates"`
	PublishErrors int `json:"publish_errors"`
}

// MatchingPass evaluates every candidate item against every active intent
// and creates alerts for pairs that clear the threshold. Safe to re-run:
// alert creation is idempotent through the (item, intent) uniqueness
// constraint.
type MatchingPass struct {
	store     Store
	publisher AlertPublisher
	cache     TokenCache
	matcher   *matching.Matcher
	now       func() time.Time
}

// NewMatchingPass wires a matching pass. cache may be nil.
func NewMatchingPass(store Store, publisher AlertPublisher, cache TokenCache, matcher *matching.Matcher) *MatchingPass {
	return &MatchingPass{
		store:     store,
		publisher: publisher,
		cache:     cache,
		matcher:   matcher,
		now:       time.Now,
	}
}

// WithClock overrides the pass clock. Tests only.
func (p *MatchingPass) WithClock(now func() time.Time) *MatchingPass {
	p.now = now
	return p
}

// Run executes one matching pass.
func (p *MatchingPass) Run(ctx context.Context) (*PassSummary, error) {
	start := p.now()
	defer func() {
		metrics.MatchingPassDuration.Observe(time.Since(start).Seconds())
	}()

	defaultThreshold, err := p.defaultThreshold(ctx)
	if err != nil {
		return nil, err
	}

	items, err := p.store.ListActiveItems(ctx, database.ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("matching pass failed to list items: %w", err)
	}
	intents, err := p.store.ListActiveIntents(ctx)
	if err != nil {
		return nil, fmt.Errorf("matching pass failed to list intents: %w", err)
	}

	summary := &PassSummary{Items: len(items), Intents: len(intents)}
	if len(items) == 0 || len(intents) == 0 {
		log.Printf("Matching pass: nothing to do (%d items, %d intents)", len(items), len(intents))
		return summary, nil
	}

	candidates := p.matcher.Match(items, intents, defaultThreshold, start.UTC())
	summary.Candidates = len(candidates)
	metrics.PairsScored.Add(float64(len(items) * len(intents)))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.processCandidate(ctx, c, summary); err != nil {
			log.Printf("Error processing candidate %s/%s: %v", c.Item.ItemID, c.Intent.IntentID, err)
		}
	}

	log.Printf("Matching pass complete: %d candidates, %d alerts created, %d duplicates skipped",
		summary.Candidates, summary.AlertsCreated, summary.Duplicates)
	return summary, nil
}

func (p *MatchingPass) processCandidate(ctx context.Context, c matching.Candidate, summary *PassSummary) error {
	alert := &models.Alert{
		AlertID:         "alert_" + uuid.NewString(),
		ItemID:          c.Item.ItemID,
		IntentID:        c.Intent.IntentID,
		UserID:          c.Intent.UserID,
		TrackingToken:   uuid.NewString(),
		ConfidenceScore: c.Result.Confidence,
		MatchReasons:    c.Result.Reasons,
	}

	err := p.store.CreateAlertIfAbsent(ctx, alert)
	if errors.Is(err, models.ErrAlreadyExists) {
		// Expected on re-runs and concurrent workers; not a failure.
		summary.Duplicates++
		metrics.AlertsDuplicate.Inc()
		return nil
	}
	if err != nil {
		return err
	}
	summary.AlertsCreated++
	metrics.AlertsCreated.Inc()

	if err := p.publisher.PublishAlertCreated(ctx, alert, c.Item, c.Intent.UserEmail); err != nil {
		// The alert stays pending; delivery is retried out of band.
		summary.PublishErrors++
		return fmt.Errorf("failed to publish alert %s: %w", alert.AlertID, err)
	}
	if err := p.store.MarkAlertSent(ctx, alert.AlertID); err != nil {
		return err
	}

	if p.cache != nil {
		ttl := 30 * 24 * time.Hour
		if err := p.cache.SetTokenRedirect(ctx, alert.TrackingToken, c.Item.SourceURL, ttl); err != nil {
			log.Printf("Warning: failed to cache token redirect: %v", err)
		}
	}
	return nil
}

// defaultThreshold reads the learned threshold, falling back to a sane
// default when the parameter registry has not been seeded yet.
func (p *MatchingPass) defaultThreshold(ctx context.Context) (float64, error) {
	param, err := p.store.GetParameter(ctx, ConfidenceThresholdParam)
	if errors.Is(err, models.ErrNotFound) {
		return 0.6, nil
	}
	if err != nil {
		return 0, fmt.Errorf("matching pass failed to read threshold: %w", err)
	}
	return param.CurrentValue, nil
}
