package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

// reversalSourceType marks entries created by refund/chargeback handling.
const reversalSourceType = "refund"

// Reverser creates negating entries for a refunded contribution. The
// original transferred entries are never mutated here; the executor marks
// them reversed once the negating transfer completes.
type Reverser struct {
	store interfaces.LedgerStore
	log   *zap.Logger
}

func NewReverser(store interfaces.LedgerStore, log *zap.Logger) *Reverser {
	return &Reverser{store: store, log: log}
}

// Reverse creates one pending reversal entry per transferred entry of the
// contribution, each the exact negation of its original. Idempotent per
// original entry: a repeat request returns the existing reversals without
// creating new ones. The returned entries still need to be routed through
// the transfer executor.
func (r *Reverser) Reverse(ctx context.Context, contributionID string) ([]models.LedgerEntry, error) {
	batch, err := r.store.GetBatch(ctx, contributionID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading batch for contribution %s", contributionID)
	}
	if len(batch) == 0 {
		return nil, errors.Wrapf(interfaces.ErrNotFound, "no ledger batch for contribution %s", contributionID)
	}

	now := time.Now().UTC()
	reversals := make([]models.LedgerEntry, 0, len(batch))
	for _, original := range batch {
		if original.IsReversal() {
			continue
		}
		// Reversals target entries whose money actually moved. An entry
		// already marked reversed is included so the lookup below can
		// return its existing reversal.
		if original.Status != models.StatusTransferred && original.Status != models.StatusReversed {
			continue
		}

		reversal := models.LedgerEntry{
			ID:                 uuid.NewString(),
			ContributionID:     original.ContributionID,
			SourceType:         reversalSourceType,
			RecipientCharterID: original.RecipientCharterID,
			Amount:             -original.Amount,
			Currency:           original.Currency,
			Status:             models.StatusPending,
			TransferGroupID:    original.TransferGroupID,
			ReversalOfID:       original.ID,
			Snapshot:           original.Snapshot,
			CreatedAt:          now,
		}

		stored, created, err := r.store.CreateReversal(ctx, reversal)
		if err != nil {
			return nil, errors.Wrapf(err, "creating reversal for entry %s", original.ID)
		}
		if !created {
			r.log.Debug("reversal already exists",
				zap.String("entry_id", original.ID),
				zap.String("reversal_id", stored.ID))
		}
		reversals = append(reversals, stored)
	}

	r.log.Info("reversal entries ready",
		zap.String("contribution_id", contributionID),
		zap.Int("reversal_count", len(reversals)))
	return reversals, nil
}
