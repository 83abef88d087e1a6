package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/hierarchy"
	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
	"github.com/charterpay/dues-distribution-engine/internal/models/events"
	"github.com/charterpay/dues-distribution-engine/internal/splitter"
	"github.com/charterpay/dues-distribution-engine/internal/transfer"
)

// Service ties the pipeline together: resolve config, compute the split,
// write the batch, execute transfers. It is the handler behind the
// contribution event consumer.
type Service struct {
	resolver  *hierarchy.Resolver
	calc      *splitter.Calculator
	writer    *Writer
	reverser  *Reverser
	executor  *transfer.Executor
	publisher interfaces.EventPublisher
	log       *zap.Logger
}

func NewService(
	resolver *hierarchy.Resolver,
	calc *splitter.Calculator,
	writer *Writer,
	reverser *Reverser,
	executor *transfer.Executor,
	publisher interfaces.EventPublisher,
	log *zap.Logger,
) *Service {
	return &Service{
		resolver:  resolver,
		calc:      calc,
		writer:    writer,
		reverser:  reverser,
		executor:  executor,
		publisher: publisher,
		log:       log,
	}
}

// HandleContributionCompleted splits a finalized contribution and executes
// the resulting transfers. Safe under redelivery: the batch write is
// idempotent, and the executor skips entries that already moved past
// pending. A ConfigurationError flags the contribution for manual review
// and creates no entries.
func (s *Service) HandleContributionCompleted(ctx context.Context, evt events.ContributionCompleted) error {
	contribution := models.Contribution{
		ID:          evt.ContributionID,
		CharterID:   evt.CharterID,
		Amount:      evt.Amount,
		Currency:    evt.Currency,
		SourceType:  evt.SourceType,
		CompletedAt: evt.OccurredAt,
	}

	cfg, err := s.resolver.ResolveEffectiveConfig(ctx, contribution.CharterID)
	if err != nil {
		return errors.Wrapf(err, "resolving config for contribution %s", contribution.ID)
	}

	result, err := s.calc.Compute(contribution, cfg)
	if err != nil {
		var cfgErr *splitter.ConfigurationError
		if errors.As(err, &cfgErr) {
			s.log.Error("split configuration invalid, flagging contribution",
				zap.String("contribution_id", contribution.ID),
				zap.String("charter_id", cfgErr.CharterID),
				zap.String("rule_sum", cfgErr.Sum.String()))
			if pubErr := s.publisher.Publish(ctx, events.TopicContributionFlagged, events.ContributionFlagged{
				ContributionID: contribution.ID,
				CharterID:      cfgErr.CharterID,
				Reason:         cfgErr.Error(),
				OccurredAt:     time.Now().UTC(),
			}); pubErr != nil {
				return errors.Wrap(pubErr, "flagging contribution")
			}
			return nil
		}
		return errors.Wrapf(err, "computing split for contribution %s", contribution.ID)
	}

	batch, created, err := s.writer.WriteBatch(ctx, contribution, result)
	if err != nil {
		return err
	}
	if created {
		if err := s.publisher.Publish(ctx, events.TopicLedgerEntriesCreated, events.LedgerEntriesCreated{
			ContributionID: contribution.ID,
			EntryCount:     len(batch),
			TotalAmount:    result.Remainder,
			OccurredAt:     time.Now().UTC(),
		}); err != nil {
			s.log.Error("publishing entries-created event", zap.Error(err))
		}
	}

	s.executor.ExecuteBatch(ctx, batch)
	return nil
}

// HandleContributionRefunded creates and executes reversal entries for a
// refunded contribution. Repeat deliveries are no-ops past the executor's
// pending check.
func (s *Service) HandleContributionRefunded(ctx context.Context, evt events.ContributionRefunded) error {
	reversals, err := s.reverser.Reverse(ctx, evt.ContributionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			// Refund for a contribution we never split (for example one
			// flagged on a configuration error). Nothing to reverse.
			s.log.Warn("refund for unknown contribution",
				zap.String("contribution_id", evt.ContributionID))
			return nil
		}
		return err
	}

	s.executor.ExecuteBatch(ctx, reversals)
	return nil
}
