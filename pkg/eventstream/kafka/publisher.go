// Package kafka publishes record events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// DefaultTopic is the topic record events are published to.
const DefaultTopic = "recall.records"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic defaults to DefaultTopic if empty.
	Topic string
}

// Publisher writes record events to Kafka. Messages are keyed by user ID so
// one user's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(c.Brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	logger.Info("kafka publisher initialized", "brokers", c.Brokers, "topic", topic)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishRecordCommitted publishes one committed-pair event.
func (p *Publisher) PublishRecordCommitted(ctx context.Context, event *eventstream.RecordCommittedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publishing event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published record committed event",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"fingerprint", event.Fingerprint,
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
