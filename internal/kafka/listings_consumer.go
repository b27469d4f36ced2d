package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// ItemRepository defines the interface for item database operations
type ItemRepository interface {
	UpsertItem(ctx context.Context, item *models.AuctionItem) error
}

// ListingEvent represents a normalized-listings event from the scraper fleet
type ListingEvent struct {
	EventType string           `json:"event_type"`
	Source    string           `json:"source"`
	Timestamp string           `json:"timestamp"`
	Data      ListingEventData `json:"data"`
}

// ListingEventData holds the payload for the listing event types
type ListingEventData struct {
	// For LISTINGS_BATCH events
	Listings []ListingData `json:"listings,omitempty"`

	// For LISTING_OBSERVED events
	Listing *ListingData `json:"listing,omitempty"`
}

// ListingData is one canonical listing on the wire. Prices arrive as
// strings, matching how the scrapers serialize them.
type ListingData struct {
	ItemID        string   `json:"item_id"`
	Source        string   `json:"source"`
	SourceURL     string   `json:"source_url"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Subtype       string   `json:"subtype,omitempty"`
	CurrentPrice  string   `json:"current_price,omitempty"`
	StartingPrice string   `json:"starting_price,omitempty"`
	BuyNowPrice   string   `json:"buy_now_price,omitempty"`
	ClosingAt     string   `json:"closing_at,omitempty"`
	PickupCity    string   `json:"pickup_city,omitempty"`
	PickupState   string   `json:"pickup_state,omitempty"`
	PickupLat     *float64 `json:"pickup_lat,omitempty"`
	PickupLng     *float64 `json:"pickup_lng,omitempty"`
}

// ListingsConsumer handles consuming normalized listing events from Kafka
type ListingsConsumer struct {
	reader *kafka.Reader
	repo   ItemRepository
}

// NewListingsConsumer creates a new Kafka consumer for listing events
func NewListingsConsumer(brokers []string, topic, groupID string, repo ItemRepository) *ListingsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-listings",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &ListingsConsumer{
		reader: reader,
		repo:   repo,
	}
}

// Start begins consuming messages from Kafka
func (c *ListingsConsumer) Start(ctx context.Context) error {
	log.Printf("Starting listings consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Listings consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading listings message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing listings message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *ListingsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event ListingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal listing event: %w", err)
	}

	switch event.EventType {
	case "LISTINGS_BATCH":
		return c.handleBatch(ctx, event)

	case "LISTING_OBSERVED":
		if event.Data.Listing == nil {
			return fmt.Errorf("LISTING_OBSERVED event with no listing payload")
		}
		return c.handleListing(ctx, *event.Data.Listing)

	default:
		log.Printf("Ignoring unknown listing event type: %s", event.EventType)
		return nil
	}
}

func (c *ListingsConsumer) handleBatch(ctx context.Context, event ListingEvent) error {
	log.Printf("Processing listings batch: %d listings from %s", len(event.Data.Listings), event.Source)

	for _, listing := range event.Data.Listings {
		if err := c.handleListing(ctx, listing); err != nil {
			log.Printf("Error upserting listing %s: %v", listing.ItemID, err)
			continue
		}
	}
	return nil
}

func (c *ListingsConsumer) handleListing(ctx context.Context, data ListingData) error {
	item, err := toAuctionItem(data)
	if err != nil {
		return err
	}
	if err := c.repo.UpsertItem(ctx, item); err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ItemID, err)
	}
	return nil
}

// toAuctionItem converts wire-format listing data to the canonical model.
// Malformed listings are rejected here, never partially stored.
func toAuctionItem(data ListingData) (*models.AuctionItem, error) {
	category := models.ItemCategory(strings.ToLower(data.Category))
	if category == "" {
		category = models.CategoryOther
	}

	item := &models.AuctionItem{
		ItemID:      data.ItemID,
		Source:      models.AuctionSource(data.Source),
		SourceURL:   data.SourceURL,
		Title:       data.Title,
		Description: data.Description,
		Category:    category,
	}

	if data.Subtype != "" {
		st := models.ItemSubtype(strings.ToLower(data.Subtype))
		item.Subtype = &st
	}

	var err error
	if item.CurrentPrice, err = parsePrice(data.CurrentPrice, "current_price"); err != nil {
		return nil, err
	}
	if item.StartingPrice, err = parsePrice(data.StartingPrice, "starting_price"); err != nil {
		return nil, err
	}
	if item.BuyNowPrice, err = parsePrice(data.BuyNowPrice, "buy_now_price"); err != nil {
		return nil, err
	}

	if data.ClosingAt != "" {
		t, err := time.Parse(time.RFC3339, data.ClosingAt)
		if err != nil {
			return nil, &models.ValidationError{Field: "closing_at", Reason: "not RFC3339"}
		}
		item.ClosingAt = &t
	}

	if data.PickupCity != "" || data.PickupLat != nil {
		item.PickupLocation = &models.Location{
			City:  data.PickupCity,
			State: data.PickupState,
			Lat:   data.PickupLat,
			Lng:   data.PickupLng,
		}
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &models.ValidationError{Field: field, Reason: "not a decimal"}
	}
	return &d, nil
}

// Close closes the Kafka consumer
func (c *ListingsConsumer) Close() error {
	return c.reader.Close()
}
