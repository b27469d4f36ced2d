package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

const intentColumns = `
	intent_id, user_id, user_email, category, subtype, keywords,
	max_price, max_distance_miles, reference_lat, reference_lng,
	min_hours_before_close, max_hours_before_close,
	confidence_threshold, is_active, created_at, updated_at
`

// CreateIntent inserts a new user intent.
func (db *DB) CreateIntent(ctx context.Context, intent *models.UserIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO user_intents (
			intent_id, user_id, user_email, category, subtype, keywords,
			max_price, max_distance_miles, reference_lat, reference_lng,
			min_hours_before_close, max_hours_before_close,
			confidence_threshold, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING created_at
	`
	now := time.Now().UTC()
	err := db.conn.QueryRowContext(ctx, query,
		intent.IntentID, intent.UserID, intent.UserEmail,
		intent.Category, nullSubtype(intent.Subtype), pq.Array(intent.Keywords),
		intent.MaxPrice, intent.MaxDistanceMiles, intent.ReferenceLat, intent.ReferenceLng,
		intent.MinHoursBeforeClose, intent.MaxHoursBeforeClose,
		intent.ConfidenceThreshold, intent.IsActive, now,
	).Scan(&intent.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("intent %s: %w", intent.IntentID, models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create intent: %w", err)
	}
	intent.UpdatedAt = intent.CreatedAt
	return nil
}

// UpdateIntent replaces the owner-editable fields of an intent.
func (db *DB) UpdateIntent(ctx context.Context, intent *models.UserIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE user_intents SET
			category = $2, subtype = $3, keywords = $4,
			max_price = $5, max_distance_miles = $6,
			reference_lat = $7, reference_lng = $8,
			min_hours_before_close = $9, max_hours_before_close = $10,
			confidence_threshold = $11, is_active = $12, updated_at = NOW()
		WHERE intent_id = $1
	`
	result, err := db.conn.ExecContext(ctx, query,
		intent.IntentID, intent.Category, nullSubtype(intent.Subtype), pq.Array(intent.Keywords),
		intent.MaxPrice, intent.MaxDistanceMiles, intent.ReferenceLat, intent.ReferenceLng,
		intent.MinHoursBeforeClose, intent.MaxHoursBeforeClose,
		intent.ConfidenceThreshold, intent.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update intent %s: %w", intent.IntentID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("intent %s: %w", intent.IntentID, models.ErrNotFound)
	}
	return nil
}

// GetIntent retrieves an intent by id.
func (db *DB) GetIntent(ctx context.Context, intentID string) (*models.UserIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM user_intents WHERE intent_id = $1`

	intent, err := scanIntent(db.conn.QueryRowContext(ctx, query, intentID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("intent %s: %w", intentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent %s: %w", intentID, err)
	}
	return intent, nil
}

// ListActiveIntents returns all intents with the active flag set.
func (db *DB) ListActiveIntents(ctx context.Context) ([]*models.UserIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM user_intents WHERE is_active ORDER BY intent_id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active intents: %w", err)
	}
	defer rows.Close()

	var intents []*models.UserIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// DeactivateIntent clears the active flag; intents are never deleted so
// their alert history keeps a valid owner.
func (db *DB) DeactivateIntent(ctx context.Context, intentID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE user_intents SET is_active = FALSE, updated_at = NOW() WHERE intent_id = $1`, intentID)
	if err != nil {
		return fmt.Errorf("failed to deactivate intent %s: %w", intentID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("intent %s: %w", intentID, models.ErrNotFound)
	}
	return nil
}

func scanIntent(row rowScanner) (*models.UserIntent, error) {
	var intent models.UserIntent
	var subtype sql.NullString

	err := row.Scan(
		&intent.IntentID, &intent.UserID, &intent.UserEmail,
		&intent.Category, &subtype, pq.Array(&intent.Keywords),
		&intent.MaxPrice, &intent.MaxDistanceMiles,
		&intent.ReferenceLat, &intent.ReferenceLng,
		&intent.MinHoursBeforeClose, &intent.MaxHoursBeforeClose,
		&intent.ConfidenceThreshold, &intent.IsActive,
		&intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if subtype.Valid {
		st := models.ItemSubtype(subtype.String)
		intent.Subtype = &st
	}
	return &intent, nil
}
