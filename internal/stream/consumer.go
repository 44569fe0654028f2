package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"sms-margin/decision/pricing"
)

const (
	dedupKeyPrefix = "smsmargin:decision:seen:"
	dedupTTL       = 24 * time.Hour
)

// DecisionInserter is the write side of the decision store.
type DecisionInserter interface {
	InsertDecision(ctx context.Context, rec *pricing.DecisionRecord) error
}

// Deduper tracks decision ids that already reached the store. MarkSeen
// claims an id and reports false when it was claimed before; Forget
// releases a claim whose insert did not go through, so a redelivery is
// not misread as a duplicate.
type Deduper interface {
	MarkSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type redisDeduper struct {
	client *redis.Client
}

func (d *redisDeduper) MarkSeen(ctx context.Context, id string) (bool, error) {
	return d.client.SetNX(ctx, dedupKeyPrefix+id, 1, dedupTTL).Result()
}

func (d *redisDeduper) Forget(ctx context.Context, id string) error {
	return d.client.Del(ctx, dedupKeyPrefix+id).Err()
}

// DecisionConsumer reads decision events and appends them to the
// decision store. A Redis SETNX guard drops records already seen, so
// redelivered messages never double-count profit.
type DecisionConsumer struct {
	reader *kafka.Reader
	store  DecisionInserter
	dedup  Deduper
	log    zerolog.Logger
}

// NewDecisionConsumer creates a consumer in the given group.
func NewDecisionConsumer(brokers []string, topic, groupID string, store DecisionInserter, dedup *redis.Client, log zerolog.Logger) *DecisionConsumer {
	if topic == "" {
		topic = DefaultTopic
	}
	c := &DecisionConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		store: store,
		log:   log,
	}
	if dedup != nil {
		c.dedup = &redisDeduper{client: dedup}
	}
	return c
}

// Run consumes until the context is cancelled. Offsets are committed
// only after the record is safely in the store (or recognized as a
// duplicate), so a crash re-delivers instead of losing records.
func (c *DecisionConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch decision message: %w", err)
		}

		if err := c.handle(ctx, msg.Value); err != nil {
			c.log.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("failed to process decision record, leaving uncommitted")
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit decision message: %w", err)
		}
	}
}

func (c *DecisionConsumer) handle(ctx context.Context, payload []byte) error {
	var rec pricing.DecisionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		// A malformed event will never become parseable; log and drop.
		c.log.Error().Err(err).Msg("dropping malformed decision event")
		return nil
	}

	// The dedup claim must not outlive a failed insert: a claim left
	// behind would make the redelivered message look like a duplicate
	// and the record would be lost.
	claimed := false
	if c.dedup != nil {
		ok, err := c.dedup.MarkSeen(ctx, rec.ID.String())
		if err == nil && !ok {
			c.log.Info().Str("decision_id", rec.ID.String()).Msg("skipping duplicate decision record")
			return nil
		}
		claimed = err == nil
	}

	if err := c.store.InsertDecision(ctx, &rec); err != nil {
		if claimed {
			if derr := c.dedup.Forget(ctx, rec.ID.String()); derr != nil {
				c.log.Error().Err(derr).
					Str("decision_id", rec.ID.String()).
					Msg("failed to release dedup claim after failed insert")
			}
		}
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

// Close closes the underlying reader.
func (c *DecisionConsumer) Close() error {
	return c.reader.Close()
}
