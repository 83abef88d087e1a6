// Package ledger owns the write side of the distribution ledger: batch
// creation, voiding, operator retry, and reversals. Entries are immutable
// after creation; only status and transfer fields ever change.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
	"github.com/charterpay/dues-distribution-engine/internal/splitter"
)

// VoidedReason marks entries cancelled before any transfer executed.
const VoidedReason = "voided"

// transferGroupID groups all entries of one contribution for provider-side
// reconciliation.
func transferGroupID(contributionID string) string {
	return "contrib_" + contributionID
}

// Writer persists split results as ledger-entry batches. Idempotency lives
// in the store's uniqueness constraint on contribution id, not here: two
// concurrent writers racing on the same contribution both come back with
// the single surviving batch.
type Writer struct {
	store interfaces.LedgerStore
	log   *zap.Logger
}

func NewWriter(store interfaces.LedgerStore, log *zap.Logger) *Writer {
	return &Writer{store: store, log: log}
}

// WriteBatch materializes a split result as pending ledger entries, one per
// recipient, inside a single transaction. Redelivery of the same
// contribution returns the original entries unchanged with created=false.
func (w *Writer) WriteBatch(ctx context.Context, contribution models.Contribution, result splitter.Result) ([]models.LedgerEntry, bool, error) {
	now := time.Now().UTC()
	entries := make([]models.LedgerEntry, 0, len(result.Allocations))
	for _, alloc := range result.Allocations {
		entries = append(entries, models.LedgerEntry{
			ID:                 uuid.NewString(),
			ContributionID:     contribution.ID,
			SourceType:         contribution.SourceType,
			RecipientCharterID: alloc.RecipientCharterID,
			Amount:             alloc.Amount,
			Currency:           contribution.Currency,
			Status:             models.StatusPending,
			TransferGroupID:    transferGroupID(contribution.ID),
			Snapshot:           alloc.Snapshot,
			CreatedAt:          now,
		})
	}

	batch, created, err := w.store.CreateBatch(ctx, contribution.ID, entries)
	if err != nil {
		return nil, false, errors.Wrapf(err, "writing batch for contribution %s", contribution.ID)
	}
	if !created {
		w.log.Info("batch already exists, returning existing entries",
			zap.String("contribution_id", contribution.ID),
			zap.Int("entry_count", len(batch)))
		return batch, false, nil
	}

	w.log.Info("ledger batch created",
		zap.String("contribution_id", contribution.ID),
		zap.Int("entry_count", len(batch)),
		zap.Int64("remainder", result.Remainder),
		zap.Int64("national_fee", result.NationalFee))
	return batch, true, nil
}

// VoidPending cancels a contribution's not-yet-transferred entries without
// ever calling the provider. Entries already transferred are left alone.
func (w *Writer) VoidPending(ctx context.Context, contributionID string) ([]models.LedgerEntry, error) {
	batch, err := w.store.GetBatch(ctx, contributionID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading batch for contribution %s", contributionID)
	}

	voided := make([]models.LedgerEntry, 0, len(batch))
	for _, entry := range batch {
		if entry.Status != models.StatusPending {
			continue
		}
		if err := w.store.MarkFailed(ctx, entry.ID, VoidedReason); err != nil {
			if errors.Is(err, interfaces.ErrInvalidTransition) {
				continue // raced with the executor
			}
			return nil, errors.Wrapf(err, "voiding entry %s", entry.ID)
		}
		entry.Status = models.StatusFailed
		entry.FailureReason = VoidedReason
		voided = append(voided, entry)
	}

	w.log.Info("voided pending entries",
		zap.String("contribution_id", contributionID),
		zap.Int("voided_count", len(voided)))
	return voided, nil
}

// RetryFailed moves one failed entry back to pending. This is the explicit
// operator action; failed entries are never retried automatically.
func (w *Writer) RetryFailed(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	if err := w.store.MarkPending(ctx, entryID); err != nil {
		return models.LedgerEntry{}, errors.Wrapf(err, "re-queueing entry %s", entryID)
	}
	entry, err := w.store.GetEntry(ctx, entryID)
	if err != nil {
		return models.LedgerEntry{}, errors.Wrapf(err, "loading entry %s", entryID)
	}
	w.log.Info("failed entry re-queued by operator", zap.String("entry_id", entryID))
	return entry, nil
}
