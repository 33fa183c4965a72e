// Package events publishes the writes applied to the portfolio.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/etnz/folio/mutation"
	"github.com/segmentio/kafka-go"
)

// WriteApplied is the type of the event published after a confirmed write.
const WriteApplied = "WRITE_APPLIED"

// Event is the message published for a write.
type Event struct {
	EventType  string                `json:"event_type"`
	WriteID    string                `json:"write_id"`
	Kind       mutation.Kind         `json:"kind"`
	Message    string                `json:"message"`
	NewTickers []string              `json:"new_tickers,omitempty"`
	Sale       *mutation.SaleOutcome `json:"sale,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// NewEvent returns the event describing o.
func NewEvent(o mutation.Outcome, at time.Time) Event {
	return Event{
		EventType:  WriteApplied,
		WriteID:    o.WriteID,
		Kind:       o.Kind,
		Message:    o.Message,
		NewTickers: o.NewTickers,
		Sale:       o.Sale,
		Timestamp:  at,
	}
}

// writer is the part of kafka.Writer used by the Producer.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes write events to a Kafka topic.
type Producer struct {
	writer writer
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer.
func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: w, topic: topic, now: time.Now}
}

// Publish publishes the event of a write, keyed by its id.
func (p *Producer) Publish(ctx context.Context, o mutation.Outcome) error {
	data, err := json.Marshal(NewEvent(o, p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{Key: []byte(o.WriteID), Value: data}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka producer.
func (p *Producer) Close() error { return p.writer.Close() }

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, mutation.Outcome) error { return nil }
func (Nop) Close() error                                    { return nil }
