package models

import "time"

// AlertOutcome is the state machine for how a user responded to an alert.
//
//	pending → sent → clicked | ignored | expired | won | lost
//
// won and lost record the real-world auction result and may be set from
// any state.
type AlertOutcome string

const (
	OutcomePending AlertOutcome = "pending"
	OutcomeSent    AlertOutcome = "sent"
	OutcomeClicked AlertOutcome = "clicked"
	OutcomeIgnored AlertOutcome = "ignored"
	OutcomeExpired AlertOutcome = "expired"
	OutcomeWon     AlertOutcome = "won"
	OutcomeLost    AlertOutcome = "lost"
)

// Valid reports whether o is a known outcome.
func (o AlertOutcome) Valid() bool {
	switch o {
	case OutcomePending, OutcomeSent, OutcomeClicked, OutcomeIgnored,
		OutcomeExpired, OutcomeWon, OutcomeLost:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition applies.
func (o AlertOutcome) Terminal() bool {
	switch o {
	case OutcomeClicked, OutcomeIgnored, OutcomeExpired, OutcomeWon, OutcomeLost:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from o
// to next. won/lost are externally supplied and allowed from any state.
func (o AlertOutcome) CanTransitionTo(next AlertOutcome) bool {
	if next == OutcomeWon || next == OutcomeLost {
		return true
	}
	switch o {
	case OutcomePending:
		return next == OutcomeSent
	case OutcomeSent:
		return next == OutcomeClicked || next == OutcomeIgnored || next == OutcomeExpired
	}
	return false
}

// Alert records that an item matched an intent strongly enough to tell the
// user. At most one alert ever exists per (item, intent) pair; the store
// enforces that with a uniqueness constraint.
type Alert struct {
	AlertID       string `json:"alert_id"`
	ItemID        string `json:"item_id"`
	IntentID      string `json:"intent_id"`
	UserID        string `json:"user_id"`
	TrackingToken string `json:"tracking_token"`

	ConfidenceScore float64  `json:"confidence_score"`
	MatchReasons    []string `json:"match_reasons"`

	Outcome          AlertOutcome `json:"outcome"`
	CreatedAt        time.Time    `json:"created_at"`
	SentAt           *time.Time   `json:"sent_at,omitempty"`
	ClickedAt        *time.Time   `json:"clicked_at,omitempty"`
	OutcomeUpdatedAt *time.Time   `json:"outcome_updated_at,omitempty"`
}

// OutcomeStats aggregates alert outcomes over a trailing window.
type OutcomeStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Clicked int `json:"clicked"`
	Ignored int `json:"ignored"`
	Expired int `json:"expired"`
	Won     int `json:"won"`
	Lost    int `json:"lost"`
}

// Count tallies one alert into the stats.
func (s *OutcomeStats) Count(o AlertOutcome) {
	s.Total++
	switch o {
	case OutcomePending:
		s.Pending++
	case OutcomeSent:
		s.Sent++
	case OutcomeClicked:
		s.Clicked++
	case OutcomeIgnored:
		s.Ignored++
	case OutcomeExpired:
		s.Expired++
	case OutcomeWon:
		s.Won++
	case OutcomeLost:
		s.Lost++
	}
}

// ClickRate returns clicked alerts over all non-pending alerts in the
// window. The boolean is false when the denominator is zero, in which case
// the learning policy treats the window as "no signal".
func (s *OutcomeStats) ClickRate() (float64, bool) {
	actionable := s.Total - s.Pending
	if actionable <= 0 {
		return 0, false
	}
	return float64(s.Clicked) / float64(actionable), true
}
