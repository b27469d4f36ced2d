package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// Producer publishes alert and learning events for downstream services
// (email delivery consumes ALERT_CREATED).
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the given topic
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// AlertCreatedEvent is the payload the email service renders and delivers.
type AlertCreatedEvent struct {
	EventType string           `json:"event_type"`
	Source    string           `json:"source"`
	Timestamp string           `json:"timestamp"`
	Data      AlertCreatedData `json:"data"`
}

// AlertCreatedData carries the alert plus the item and recipient details
// the email template needs.
type AlertCreatedData struct {
	Alert     *models.Alert       `json:"alert"`
	Item      *models.AuctionItem `json:"item"`
	UserEmail string              `json:"user_email"`
}

// ParameterAdjustedEvent announces a learning-loop change for observers.
type ParameterAdjustedEvent struct {
	EventType string                       `json:"event_type"`
	Source    string                       `json:"source"`
	Timestamp string                       `json:"timestamp"`
	Data      *models.LearningHistoryEntry `json:"data"`
}

// PublishAlertCreated publishes an ALERT_CREATED event keyed by alert id.
func (p *Producer) PublishAlertCreated(ctx context.Context, alert *models.Alert, item *models.AuctionItem, userEmail string) error {
	event := AlertCreatedEvent{
		EventType: "ALERT_CREATED",
		Source:    "alert-engine",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      AlertCreatedData{Alert: alert, Item: item, UserEmail: userEmail},
	}
	return p.publish(ctx, alert.AlertID, event)
}

// PublishParameterAdjusted publishes a PARAMETER_ADJUSTED event keyed by
// parameter name.
func (p *Producer) PublishParameterAdjusted(ctx context.Context, entry *models.LearningHistoryEntry) error {
	event := ParameterAdjustedEvent{
		EventType: "PARAMETER_ADJUSTED",
		Source:    "alert-engine",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      entry,
	}
	return p.publish(ctx, entry.ParamName, event)
}

func (p *Producer) publish(ctx context.Context, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
