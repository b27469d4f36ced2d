package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// ItemFilter narrows ListActiveItems. Zero values mean "no filter".
type ItemFilter struct {
	Category     models.ItemCategory
	UpdatedSince time.Time
}

const itemColumns = `
	item_id, source, source_url, title, description, category, subtype,
	current_price, starting_price, buy_now_price, closing_at,
	pickup_city, pickup_state, pickup_lat, pickup_lng,
	first_seen, last_seen
`

// UpsertItem inserts an item on first observation and refreshes its
// mutable fields (prices, closing time, last_seen) on every later one.
func (db *DB) UpsertItem(ctx context.Context, item *models.AuctionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO auction_items (
			item_id, source, source_url, title, description, category, subtype,
			current_price, starting_price, buy_now_price, closing_at,
			pickup_city, pickup_state, pickup_lat, pickup_lng,
			first_seen, last_seen
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16
		)
		ON CONFLICT (item_id)
		DO UPDATE SET
			source_url = EXCLUDED.source_url,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			subtype = EXCLUDED.subtype,
			current_price = EXCLUDED.current_price,
			starting_price = EXCLUDED.starting_price,
			buy_now_price = EXCLUDED.buy_now_price,
			closing_at = EXCLUDED.closing_at,
			pickup_city = EXCLUDED.pickup_city,
			pickup_state = EXCLUDED.pickup_state,
			pickup_lat = EXCLUDED.pickup_lat,
			pickup_lng = EXCLUDED.pickup_lng,
			last_seen = EXCLUDED.last_seen
	`

	var city, state sql.NullString
	var lat, lng *float64
	if loc := item.PickupLocation; loc != nil {
		city = sql.NullString{String: loc.City, Valid: loc.City != ""}
		state = sql.NullString{String: loc.State, Valid: loc.State != ""}
		lat, lng = loc.Lat, loc.Lng
	}

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, query,
		item.ItemID, item.Source, item.SourceURL, item.Title, item.Description,
		item.Category, nullSubtype(item.Subtype),
		nullDecimal(item.CurrentPrice), nullDecimal(item.StartingPrice), nullDecimal(item.BuyNowPrice),
		item.ClosingAt, city, state, lat, lng, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ItemID, err)
	}
	return nil
}

// GetItem retrieves an item by id.
func (db *DB) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM auction_items WHERE item_id = $1`

	item, err := scanItem(db.conn.QueryRowContext(ctx, query, itemID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return item, nil
}

// ListActiveItems returns items still open for bidding (closing time
// unknown or in the future), optionally narrowed by category and
// last-seen cutoff.
func (db *DB) ListActiveItems(ctx context.Context, filter ItemFilter) ([]*models.AuctionItem, error) {
	query := `SELECT ` + itemColumns + ` FROM auction_items
		WHERE (closing_at IS NULL OR closing_at > NOW())`
	args := []interface{}{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if !filter.UpdatedSince.IsZero() {
		query += fmt.Sprintf(" AND last_seen >= $%d", argIdx)
		args = append(args, filter.UpdatedSince)
	}
	query += " ORDER BY item_id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	defer rows.Close()

	var items []*models.AuctionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.AuctionItem, error) {
	var item models.AuctionItem
	var subtype, city, state sql.NullString
	var currentPrice, startingPrice, buyNowPrice sql.NullString
	var lat, lng sql.NullFloat64
	var closingAt sql.NullTime

	err := row.Scan(
		&item.ItemID, &item.Source, &item.SourceURL, &item.Title, &item.Description,
		&item.Category, &subtype,
		&currentPrice, &startingPrice, &buyNowPrice, &closingAt,
		&city, &state, &lat, &lng,
		&item.FirstSeen, &item.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	if subtype.Valid {
		st := models.ItemSubtype(subtype.String)
		item.Subtype = &st
	}
	item.CurrentPrice = parseDecimal(currentPrice)
	item.StartingPrice = parseDecimal(startingPrice)
	item.BuyNowPrice = parseDecimal(buyNowPrice)
	if closingAt.Valid {
		t := closingAt.Time
		item.ClosingAt = &t
	}
	if city.Valid || lat.Valid {
		loc := &models.Location{City: city.String, State: state.String}
		if lat.Valid {
			loc.Lat = &lat.Float64
		}
		if lng.Valid {
			loc.Lng = &lng.Float64
		}
		item.PickupLocation = loc
	}
	return &item, nil
}

func parseDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

func nullSubtype(s *models.ItemSubtype) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
