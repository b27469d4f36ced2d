package models

import "time"

// LearningParameter is a bounded numeric control value owned by the
// learning loop. current_value stays within [min_value, max_value] at all
// times; every change is recorded in learning_history.
type LearningParameter struct {
	ParamName     string     `json:"param_name"`
	CurrentValue  float64    `json:"current_value"`
	PreviousValue *float64   `json:"previous_value,omitempty"`
	MinValue      float64    `json:"min_value"`
	MaxValue      float64    `json:"max_value"`
	StepSize      float64    `json:"step_size"`
	ChangeReason  string     `json:"change_reason,omitempty"`
	ChangedAt     *time.Time `json:"changed_at,omitempty"`
}

// Clamp bounds v to the parameter's [min, max] range.
func (p *LearningParameter) Clamp(v float64) float64 {
	if v < p.MinValue {
		return p.MinValue
	}
	if v > p.MaxValue {
		return p.MaxValue
	}
	return v
}

// Validate checks the parameter invariants.
func (p *LearningParameter) Validate() error {
	if p.ParamName == "" {
		return &ValidationError{Field: "param_name", Reason: "required"}
	}
	if p.MinValue > p.MaxValue {
		return &ValidationError{Field: "min_value", Reason: "must not exceed max_value"}
	}
	if p.CurrentValue < p.MinValue || p.CurrentValue > p.MaxValue {
		return &ValidationError{Field: "current_value", Reason: "outside [min_value, max_value]"}
	}
	if p.StepSize <= 0 {
		return &ValidationError{Field: "step_size", Reason: "must be positive"}
	}
	return nil
}

// LearningHistoryEntry is one immutable, append-only record of a parameter
// change. Reversion reads the newest entry and is itself recorded as a new
// entry, never a silent rollback.
type LearningHistoryEntry struct {
	ID        int       `json:"id"`
	ParamName string    `json:"param_name"`
	OldValue  float64   `json:"old_value"`
	NewValue  float64   `json:"new_value"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
