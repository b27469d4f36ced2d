package learning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// ParameterStore provides read-modify-write access to learning parameters
// with optimistic concurrency. CompareAndSet returns models.ErrConflict
// when the expected current value no longer matches.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (*models.LearningParameter, error)
	CompareAndSet(ctx context.Context, name string, expected, newValue float64, reason string) error
}

// HistoryStore is the append-only audit trail of parameter changes.
// ListHistory returns entries most recent first.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry *models.LearningHistoryEntry) error
	ListHistory(ctx context.Context, name string, limit int) ([]*models.LearningHistoryEntry, error)
}

// Change describes one applied parameter adjustment.
type Change struct {
	ParamName string  `json:"param_name"`
	OldValue  float64 `json:"old_value"`
	NewValue  float64 `json:"new_value"`
	Reason    string  `json:"reason"`
}

// Loop orchestrates one learning cycle: read windowed outcome stats,
// consult the policy for each registered parameter, apply the bounded
// change, and append a history record. State is passed in explicitly so
// tests run against isolated snapshots.
type Loop struct {
	aggregator *OutcomeAggregator
	params     ParameterStore
	history    HistoryStore
	policies   map[string]Policy
	now        func() time.Time
}

// NewLoop wires a learning loop. policies maps parameter names to the
// policy that drives them; parameters without a policy are registered and
// revertible but only change by hand.
func NewLoop(agg *OutcomeAggregator, params ParameterStore, history HistoryStore, policies map[string]Policy) *Loop {
	return &Loop{
		aggregator: agg,
		params:     params,
		history:    history,
		policies:   policies,
		now:        time.Now,
	}
}

// WithClock overrides the loop's clock. Tests only.
func (l *Loop) WithClock(now func() time.Time) *Loop {
	l.now = now
	return l
}

// Run executes one learning cycle and returns the changes applied. A
// parameter already at its bound, or whose policy proposes no delta,
// produces no change and no history entry.
func (l *Loop) Run(ctx context.Context) ([]Change, error) {
	now := l.now().UTC()
	stats, err := l.aggregator.Stats(ctx, now)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for name, policy := range l.policies {
		change, err := l.adjust(ctx, name, policy, stats, now)
		if err != nil {
			return changes, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

// adjust applies the policy to one parameter. A compare-and-set conflict
// is retried once against freshly re-read state; a second conflict is
// surfaced as a transient failure for the next cycle to retry.
func (l *Loop) adjust(ctx context.Context, name string, policy Policy, stats models.OutcomeStats, now time.Time) (*Change, error) {
	change, err := l.tryAdjust(ctx, name, policy, stats, now)
	if errors.Is(err, models.ErrConflict) {
		log.Printf("Parameter %s changed underneath us, retrying with fresh state", name)
		change, err = l.tryAdjust(ctx, name, policy, stats, now)
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("parameter %s: adjustment lost two compare-and-set races: %w", name, err)
		}
	}
	return change, err
}

func (l *Loop) tryAdjust(ctx context.Context, name string, policy Policy, stats models.OutcomeStats, now time.Time) (*Change, error) {
	param, err := l.params.GetParameter(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter %s: %w", name, err)
	}

	delta, reason := policy.ProposeDelta(stats, param)
	if delta == 0 {
		return nil, nil
	}

	oldValue := param.CurrentValue
	newValue := param.Clamp(oldValue + delta)
	if newValue == oldValue {
		// Clamped against a bound; no-op changes are not logged.
		log.Printf("Parameter %s already at bound (%.4g), skipping adjustment", name, oldValue)
		return nil, nil
	}

	if err := l.params.CompareAndSet(ctx, name, oldValue, newValue, reason); err != nil {
		return nil, err
	}
	entry := &models.LearningHistoryEntry{
		ParamName: name,
		OldValue:  oldValue,
		NewValue:  newValue,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := l.history.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record history for %s: %w", name, err)
	}

	log.Printf("Adjusted %s: %.4g -> %.4g (%s)", name, oldValue, newValue, reason)
	return &Change{ParamName: name, OldValue: oldValue, NewValue: newValue, Reason: reason}, nil
}

// RevertLastChange restores a parameter to the old value of its most
// recent history entry and appends a new entry recording the reversion,
// so rollbacks are audited like any other change. Returns
// models.ErrNotFound when the parameter has no history.
func (l *Loop) RevertLastChange(ctx context.Context, name string) (*Change, error) {
	entries, err := l.history.ListHistory(ctx, name, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", name, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no history for parameter %s: %w", name, models.ErrNotFound)
	}
	last := entries[0]

	param, err := l.params.GetParameter(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter %s: %w", name, err)
	}

	oldValue := param.CurrentValue
	newValue := last.OldValue
	reason := fmt.Sprintf("reverted change of %s from %.4g to %.4g", name, last.OldValue, last.NewValue)

	if oldValue != newValue {
		if err := l.params.CompareAndSet(ctx, name, oldValue, newValue, reason); err != nil {
			return nil, err
		}
	}
	entry := &models.LearningHistoryEntry{
		ParamName: name,
		OldValue:  oldValue,
		NewValue:  newValue,
		Reason:    reason,
		CreatedAt: l.now().UTC(),
	}
	if err := l.history.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record reversion for %s: %w", name, err)
	}

	log.Printf("Reverted %s: %.4g -> %.4g", name, oldValue, newValue)
	return &Change{ParamName: name, OldValue: oldValue, NewValue: newValue, Reason: reason}, nil
}
