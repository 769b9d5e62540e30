// Package events publishes a record of every successful prediction for
// downstream consumers (analytics, notifications).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// PredictionEvent is the message body on the predictions topic.
type PredictionEvent struct {
	EventID    string             `json:"eventId"`
	LogID      string             `json:"logId"`
	UserID     string             `json:"userId"`
	Type       domain.FeatureType `json:"type"`
	Output     json.RawMessage    `json:"output,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// NewPredictionEvent builds the event for a stored log entry.
func NewPredictionEvent(entry *domain.PredictionLog) PredictionEvent {
	return PredictionEvent{
		EventID:    uuid.NewString(),
		LogID:      entry.ID,
		UserID:     entry.UserID,
		Type:       entry.Type,
		Output:     entry.Output,
		OccurredAt: entry.CreatedAt,
	}
}

type Publisher interface {
	PublishPrediction(ctx context.Context, event PredictionEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter creates the writer for the predictions topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           5 * time.Second,
	}
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// PublishPrediction writes one message keyed by user id, so a user's events stay ordered.
func (p *KafkaPublisher) PublishPrediction(ctx context.Context, event PredictionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal prediction event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish prediction event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishPrediction(context.Context, PredictionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
