package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/auctionalerts/auction-alert-system/internal/database"
	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// SweepStore is the persistence surface the outcome sweep needs.
type SweepStore interface {
	ListUnresolvedAlerts(ctx context.Context) ([]database.UnresolvedAlert, error)
	UpdateAlertOutcome(ctx context.Context, alertID string, outcome models.AlertOutcome) error
}

// SweepSummary reports what one outcome sweep resolved.
type SweepSummary struct {
	Expired int `json:"expired"`
	Ignored int `json:"ignored"`
}

// OutcomeSweep applies the time-based outcome rules to sent alerts:
//
//	the item's auction closed with no click        → expired
//	the silence window elapsed with no click/close → ignored
type OutcomeSweep struct {
	store         SweepStore
	silenceWindow time.Duration
	now           func() time.Time
}

// NewOutcomeSweep wires an outcome sweep with the given silence window
// (how long a sent alert may go unanswered before it counts as ignored).
func NewOutcomeSweep(store SweepStore, silenceWindow time.Duration) *OutcomeSweep {
	return &OutcomeSweep{store: store, silenceWindow: silenceWindow, now: time.Now}
}

// WithClock overrides the sweep clock. Tests only.
func (s *OutcomeSweep) WithClock(now func() time.Time) *OutcomeSweep {
	s.now = now
	return s
}

// Run resolves stale sent alerts and returns counts per outcome.
func (s *OutcomeSweep) Run(ctx context.Context) (*SweepSummary, error) {
	now := s.now().UTC()

	unresolved, err := s.store.ListUnresolvedAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("outcome sweep failed to list alerts: %w", err)
	}

	summary := &SweepSummary{}
	for _, u := range unresolved {
		outcome := resolveOutcome(u, s.silenceWindow, now)
		if outcome == "" {
			continue
		}
		if err := s.store.UpdateAlertOutcome(ctx, u.Alert.AlertID, outcome); err != nil {
			// A concurrent click or manual outcome won the race; fine.
			log.Printf("Sweep skipped alert %s: %v", u.Alert.AlertID, err)
			continue
		}
		switch outcome {
		case models.OutcomeExpired:
			summary.Expired++
		case models.OutcomeIgnored:
			summary.Ignored++
		}
	}

	log.Printf("Outcome sweep complete: %d expired, %d ignored", summary.Expired, summary.Ignored)
	return summary, nil
}

// resolveOutcome decides the time-based transition for one sent alert, or
// "" when it should stay as is.
func resolveOutcome(u database.UnresolvedAlert, silence time.Duration, now time.Time) models.AlertOutcome {
	if u.ClosingAt != nil && u.ClosingAt.Before(now) {
		return models.OutcomeExpired
	}
	if u.Alert.SentAt != nil && now.Sub(*u.Alert.SentAt) > silence {
		return models.OutcomeIgnored
	}
	return ""
}
