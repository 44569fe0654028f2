// Package stream moves pricing decision records from the billing path
// into the analytics store. Live quotes are published as immutable
// events; a worker consumes them into ClickHouse. Test quotes never
// enter the stream.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"sms-margin/decision/pricing"
)

// DefaultTopic is the decision event topic.
const DefaultTopic = "pricing-decisions"

// DecisionPublisher writes decision records to Kafka, keyed by owner
// so one reseller's records stay ordered within a partition.
type DecisionPublisher struct {
	writer *kafka.Writer
}

// NewDecisionPublisher creates a publisher for the given brokers and
// topic.
func NewDecisionPublisher(brokers []string, topic string) *DecisionPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &DecisionPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish sends one decision record.
func (p *DecisionPublisher) Publish(ctx context.Context, rec *pricing.DecisionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal decision record: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.OwnerID.String()),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish decision record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *DecisionPublisher) Close() error {
	return p.writer.Close()
}
