package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/models/events"
)

// ContributionHandler processes the upstream contribution events. Handlers
// must tolerate redelivery: offsets are committed only after a handler
// returns nil, so the bus gives at-least-once delivery and the ledger's
// uniqueness constraint does the dedupe.
type ContributionHandler interface {
	HandleContributionCompleted(ctx context.Context, evt events.ContributionCompleted) error
	HandleContributionRefunded(ctx context.Context, evt events.ContributionRefunded) error
}

// Consumer reads the contribution topics and dispatches to the handler.
type Consumer struct {
	completed *kafka.Reader
	refunded  *kafka.Reader
	handler   ContributionHandler
	log       *zap.Logger
}

func NewConsumer(brokers []string, groupID string, handler ContributionHandler, log *zap.Logger) *Consumer {
	return &Consumer{
		completed: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   events.TopicContributionCompleted,
		}),
		refunded: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   events.TopicContributionRefunded,
		}),
		handler: handler,
		log:     log,
	}
}

// Run consumes both topics until the context ends.
func (c *Consumer) Run(ctx context.Context) {
	go c.consume(ctx, c.completed, c.handleCompleted)
	c.consume(ctx, c.refunded, c.handleRefunded)
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader, handle func(context.Context, []byte) error) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("fetching message", zap.String("topic", reader.Config().Topic), zap.Error(err))
			continue
		}

		if err := handle(ctx, msg.Value); err != nil {
			// Leave the offset uncommitted; the message redelivers and the
			// idempotent pipeline absorbs the repeat.
			c.log.Error("handling message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("committing offset", zap.String("topic", msg.Topic), zap.Error(err))
		}
	}
}

func (c *Consumer) handleCompleted(ctx context.Context, value []byte) error {
	var evt events.ContributionCompleted
	if err := json.Unmarshal(value, &evt); err != nil {
		// Poison message; log and move on rather than redelivering forever.
		c.log.Error("decoding contribution-completed event", zap.Error(err))
		return nil
	}
	return c.handler.HandleContributionCompleted(ctx, evt)
}

func (c *Consumer) handleRefunded(ctx context.Context, value []byte) error {
	var evt events.ContributionRefunded
	if err := json.Unmarshal(value, &evt); err != nil {
		c.log.Error("decoding contribution-refunded event", zap.Error(err))
		return nil
	}
	return c.handler.HandleContributionRefunded(ctx, evt)
}

func (c *Consumer) Close() error {
	if err := c.completed.Close(); err != nil {
		return err
	}
	return c.refunded.Close()
}
