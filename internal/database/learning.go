package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// RegisterParameter seeds a learning parameter if it does not exist yet.
// Existing rows are left alone so learned values survive restarts.
func (db *DB) RegisterParameter(ctx context.Context, param *models.LearningParameter) error {
	if err := param.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO learning_parameters (param_name, current_value, min_value, max_value, step_size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (param_name) DO NOTHING
	`
	_, err := db.conn.ExecContext(ctx, query,
		param.ParamName, param.CurrentValue, param.MinValue, param.MaxValue, param.StepSize)
	if err != nil {
		return fmt.Errorf("failed to register parameter %s: %w", param.ParamName, err)
	}
	return nil
}

// GetParameter reads one learning parameter.
func (db *DB) GetParameter(ctx context.Context, name string) (*models.LearningParameter, error) {
	query := `
		SELECT param_name, current_value, previous_value, min_value, max_value,
		       step_size, change_reason, changed_at
		FROM learning_parameters
		WHERE param_name = $1
	`
	var param models.LearningParameter
	var previous sql.NullFloat64
	var reason sql.NullString
	var changedAt sql.NullTime

	err := db.conn.QueryRowContext(ctx, query, name).Scan(
		&param.ParamName, &param.CurrentValue, &previous,
		&param.MinValue, &param.MaxValue, &param.StepSize,
		&reason, &changedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("parameter %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if previous.Valid {
		param.PreviousValue = &previous.Float64
	}
	if reason.Valid {
		param.ChangeReason = reason.String
	}
	if changedAt.Valid {
		t := changedAt.Time
		param.ChangedAt = &t
	}
	return &param, nil
}

// ListParameters returns all registered learning parameters.
func (db *DB) ListParameters(ctx context.Context) ([]*models.LearningParameter, error) {
	query := `
		SELECT param_name, current_value, previous_value, min_value, max_value,
		       step_size, change_reason, changed_at
		FROM learning_parameters
		ORDER BY param_name
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list parameters: %w", err)
	}
	defer rows.Close()

	var params []*models.LearningParameter
	for rows.Next() {
		var param models.LearningParameter
		var previous sql.NullFloat64
		var reason sql.NullString
		var changedAt sql.NullTime
		err := rows.Scan(
			&param.ParamName, &param.CurrentValue, &previous,
			&param.MinValue, &param.MaxValue, &param.StepSize,
			&reason, &changedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		if previous.Valid {
			param.PreviousValue = &previous.Float64
		}
		if reason.Valid {
			param.ChangeReason = reason.String
		}
		if changedAt.Valid {
			t := changedAt.Time
			param.ChangedAt = &t
		}
		params = append(params, &param)
	}
	return params, rows.Err()
}

// CompareAndSet updates a parameter only when its current value still
// matches what the caller read. A mismatch returns models.ErrConflict so
// the learning loop can retry with fresh state; concurrent loops for the
// same parameter serialize on this check.
func (db *DB) CompareAndSet(ctx context.Context, name string, expected, newValue float64, reason string) error {
	query := `
		UPDATE learning_parameters
		SET current_value = $3, previous_value = $2, change_reason = $4, changed_at = NOW()
		WHERE param_name = $1 AND current_value = $2
	`
	result, err := db.conn.ExecContext(ctx, query, name, expected, newValue, reason)
	if err != nil {
		return fmt.Errorf("failed to update parameter %s: %w", name, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 1 {
		return nil
	}

	// Distinguish a lost race from a missing parameter.
	if _, err := db.GetParameter(ctx, name); err != nil {
		return err
	}
	return fmt.Errorf("parameter %s changed concurrently: %w", name, models.ErrConflict)
}

// AppendHistory adds one immutable entry to the parameter audit trail.
func (db *DB) AppendHistory(ctx context.Context, entry *models.LearningHistoryEntry) error {
	query := `
		INSERT INTO learning_history (param_name, old_value, new_value, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		entry.ParamName, entry.OldValue, entry.NewValue, entry.Reason, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", entry.ParamName, err)
	}
	return nil
}

// ListHistory returns a parameter's change history, most recent first.
func (db *DB) ListHistory(ctx context.Context, name string, limit int) ([]*models.LearningHistoryEntry, error) {
	query := `
		SELECT id, param_name, old_value, new_value, reason, created_at
		FROM learning_history
		WHERE param_name = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{name}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", name, err)
	}
	defer rows.Close()

	var entries []*models.LearningHistoryEntry
	for rows.Next() {
		var e models.LearningHistoryEntry
		if err := rows.Scan(&e.ID, &e.ParamName, &e.OldValue, &e.NewValue, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
