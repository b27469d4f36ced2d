package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserIntent is a standing search owned by one user: what they want, how
// much they'll pay, how far they'll drive, and when they want to be told.
// The matching pass never mutates an intent; only the owner and the
// learning loop (threshold only) do.
type UserIntent struct {
	IntentID  string `json:"intent_id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`

	Category ItemCategory `json:"category"`
	Subtype  *ItemSubtype `json:"subtype,omitempty"`
	Keywords []string     `json:"keywords"`

	MaxPrice         decimal.Decimal `json:"max_price"`
	MaxDistanceMiles float64         `json:"max_distance_miles"`
	ReferenceLat     float64         `json:"reference_lat"`
	ReferenceLng     float64         `json:"reference_lng"`

	MinHoursBeforeClose float64 `json:"min_hours_before_close"`
	MaxHoursBeforeClose float64 `json:"max_hours_before_close"`

	// ConfidenceThreshold of 0 means "follow the learned system default".
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IsActive            bool    `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the intent invariants before storage or scoring.
func (in *UserIntent) Validate() error {
	if in.IntentID == "" {
		return &ValidationError{Field: "intent_id", Reason: "required"}
	}
	if in.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if !in.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if in.Subtype != nil && !in.Subtype.Valid() {
		return &ValidationError{Field: "subtype", Reason: "unknown subtype"}
	}
	if in.MaxPrice.IsNegative() {
		return &ValidationError{Field: "max_price", Reason: "must not be negative"}
	}
	if in.MaxDistanceMiles < 0 {
		return &ValidationError{Field: "max_distance_miles", Reason: "must not be negative"}
	}
	if in.MinHoursBeforeClose >= in.MaxHoursBeforeClose {
		return &ValidationError{Field: "min_hours_before_close", Reason: "must be less than max_hours_before_close"}
	}
	if in.ConfidenceThreshold < 0 || in.ConfidenceThreshold > 1 {
		return &ValidationError{Field: "confidence_threshold", Reason: "must be within [0, 1]"}
	}
	return nil
}
