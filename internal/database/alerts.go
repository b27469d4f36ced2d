package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

const alertColumns = `
	alert_id, item_id, intent_id, user_id, tracking_token,
	confidence_score, match_reasons, outcome,
	created_at, sent_at, clicked_at, outcome_updated_at
`

// CreateAlertIfAbsent inserts an alert unless one already exists for the
// (item_id, intent_id) pair. The uniqueness constraint makes alert
// creation idempotent, so concurrent matching workers and re-run passes
// cannot duplicate alerts. Returns models.ErrAlreadyExists on a duplicate.
func (db *DB) CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			alert_id, item_id, intent_id, user_id, tracking_token,
			confidence_score, match_reasons, outcome, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id, intent_id) DO NOTHING
		RETURNING created_at
	`
	now := time.Now().UTC()
	err := db.conn.QueryRowContext(ctx, query,
		alert.AlertID, alert.ItemID, alert.IntentID, alert.UserID, alert.TrackingToken,
		alert.ConfidenceScore, pq.Array(alert.MatchReasons), models.OutcomePending, now,
	).Scan(&alert.CreatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("alert for item %s intent %s: %w", alert.ItemID, alert.IntentID, models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	alert.Outcome = models.OutcomePending
	return nil
}

// MarkAlertSent records successful delivery: pending → sent.
func (db *DB) MarkAlertSent(ctx context.Context, alertID string) error {
	query := `
		UPDATE alerts
		SET outcome = $2, sent_at = NOW(), outcome_updated_at = NOW()
		WHERE alert_id = $1 AND outcome = $3
	`
	result, err := db.conn.ExecContext(ctx, query, alertID, models.OutcomeSent, models.OutcomePending)
	if err != nil {
		return fmt.Errorf("failed to mark alert %s sent: %w", alertID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert %s not pending: %w", alertID, models.ErrNotFound)
	}
	return nil
}

// MarkAlertClicked records a tracked click: sent → clicked. Returns the
// updated alert so the caller can resolve the item for the redirect.
func (db *DB) MarkAlertClicked(ctx context.Context, trackingToken string) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET outcome = $2, clicked_at = NOW(), outcome_updated_at = NOW()
		WHERE tracking_token = $1 AND outcome = $3
		RETURNING ` + alertColumns

	alert, err := scanAlert(db.conn.QueryRowContext(ctx, query, trackingToken, models.OutcomeClicked, models.OutcomeSent))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no sent alert for token: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record click: %w", err)
	}
	return alert, nil
}

// GetAlertByToken resolves a tracking token without changing state. Used
// for repeat clicks, which still deserve a redirect.
func (db *DB) GetAlertByToken(ctx context.Context, trackingToken string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE tracking_token = $1`

	alert, err := scanAlert(db.conn.QueryRowContext(ctx, query, trackingToken))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown tracking token: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by token: %w", err)
	}
	return alert, nil
}

// UpdateAlertOutcome applies a state-machine transition. Invalid
// transitions are rejected with a ValidationError.
func (db *DB) UpdateAlertOutcome(ctx context.Context, alertID string, outcome models.AlertOutcome) error {
	if !outcome.Valid() {
		return &models.ValidationError{Field: "outcome", Reason: "unknown outcome"}
	}

	current, err := db.getAlertOutcome(ctx, alertID)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(outcome) {
		return &models.ValidationError{
			Field:  "outcome",
			Reason: fmt.Sprintf("cannot transition from %s to %s", current, outcome),
		}
	}

	query := `
		UPDATE alerts SET outcome = $2, outcome_updated_at = NOW()
		WHERE alert_id = $1 AND outcome = $3
	`
	result, err := db.conn.ExecContext(ctx, query, alertID, outcome, current)
	if err != nil {
		return fmt.Errorf("failed to update alert %s outcome: %w", alertID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Lost a race with another transition.
		return fmt.Errorf("alert %s outcome moved concurrently: %w", alertID, models.ErrConflict)
	}
	return nil
}

func (db *DB) getAlertOutcome(ctx context.Context, alertID string) (models.AlertOutcome, error) {
	var outcome models.AlertOutcome
	err := db.conn.QueryRowContext(ctx, `SELECT outcome FROM alerts WHERE alert_id = $1`, alertID).Scan(&outcome)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get alert %s: %w", alertID, err)
	}
	return outcome, nil
}

// ListAlerts returns alerts created after the given time, newest first,
// with outcomes populated. This is the outcome source for the aggregator.
func (db *DB) ListAlerts(ctx context.Context, createdAfter time.Time) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE created_at > $1 ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query, createdAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// UnresolvedAlert pairs a sent alert with its item's closing time for the
// outcome sweep.
type UnresolvedAlert struct {
	Alert     *models.Alert
	ClosingAt *time.Time
}

// ListUnresolvedAlerts returns sent alerts that have not reached a
// terminal outcome, joined with the item closing time.
func (db *DB) ListUnresolvedAlerts(ctx context.Context) ([]UnresolvedAlert, error) {
	query := `
		SELECT a.alert_id, a.item_id, a.intent_id, a.user_id, a.tracking_token,
		       a.confidence_score, a.match_reasons, a.outcome,
		       a.created_at, a.sent_at, a.clicked_at, a.outcome_updated_at,
		       i.closing_at
		FROM alerts a
		JOIN auction_items i ON i.item_id = a.item_id
		WHERE a.outcome = $1
		ORDER BY a.created_at
	`
	rows, err := db.conn.QueryContext(ctx, query, models.OutcomeSent)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved alerts: %w", err)
	}
	defer rows.Close()

	var out []UnresolvedAlert
	for rows.Next() {
		var alert models.Alert
		var sentAt, clickedAt, outcomeUpdatedAt, closingAt sql.NullTime
		err := rows.Scan(
			&alert.AlertID, &alert.ItemID, &alert.IntentID, &alert.UserID, &alert.TrackingToken,
			&alert.ConfidenceScore, pq.Array(&alert.MatchReasons), &alert.Outcome,
			&alert.CreatedAt, &sentAt, &clickedAt, &outcomeUpdatedAt, &closingAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unresolved alert: %w", err)
		}
		setNullTimes(&alert, sentAt, clickedAt, outcomeUpdatedAt)
		u := UnresolvedAlert{Alert: &alert}
		if closingAt.Valid {
			t := closingAt.Time
			u.ClosingAt = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var sentAt, clickedAt, outcomeUpdatedAt sql.NullTime

	err := row.Scan(
		&alert.AlertID, &alert.ItemID, &alert.IntentID, &alert.UserID, &alert.TrackingToken,
		&alert.ConfidenceScore, pq.Array(&alert.MatchReasons), &alert.Outcome,
		&alert.CreatedAt, &sentAt, &clickedAt, &outcomeUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	setNullTimes(&alert, sentAt, clickedAt, outcomeUpdatedAt)
	return &alert, nil
}

func setNullTimes(alert *models.Alert, sentAt, clickedAt, outcomeUpdatedAt sql.NullTime) {
	if sentAt.Valid {
		t := sentAt.Time
		alert.SentAt = &t
	}
	if clickedAt.Valid {
		t := clickedAt.Time
		alert.ClickedAt = &t
	}
	if outcomeUpdatedAt.Valid {
		t := outcomeUpdatedAt.Time
		alert.OutcomeUpdatedAt = &t
	}
}
