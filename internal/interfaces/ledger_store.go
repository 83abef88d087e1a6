package interfaces

import (
	"context"
	"time"

	"github.com/charterpay/dues-distribution-engine/internal/models"
)

// LedgerStore persists immutable ledger entries. Implementations must make
// CreateBatch atomic and idempotent on contribution id: concurrent or
// repeated attempts for the same contribution yield exactly one batch, and
// callers get the surviving entries back either way. That constraint is the
// system's only dedupe for at-least-once event delivery.
type LedgerStore interface {
	// CreateBatch writes all entries for one contribution in a single
	// transaction. If a batch already exists for the contribution it writes
	// nothing and returns the existing entries with created=false.
	CreateBatch(ctx context.Context, contributionID string, entries []models.LedgerEntry) (batch []models.LedgerEntry, created bool, err error)

	// CreateReversal inserts one reversal entry, idempotent on the reversed
	// entry's id: if a reversal already exists for entry.ReversalOfID it
	// returns the existing one with created=false.
	CreateReversal(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, bool, error)

	GetBatch(ctx context.Context, contributionID string) ([]models.LedgerEntry, error)
	GetEntry(ctx context.Context, id string) (models.LedgerEntry, error)
	FindReversal(ctx context.Context, originalID string) (models.LedgerEntry, error)
	ListPending(ctx context.Context, limit int) ([]models.LedgerEntry, error)

	// Status transitions. Each is guarded: the update applies only when the
	// entry is in the expected source state, otherwise ErrInvalidTransition.
	MarkTransferred(ctx context.Context, id, transferID string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkReversed(ctx context.Context, id string) error
	MarkPending(ctx context.Context, id string) error // operator retry, failed -> pending

	// Query serves the audit surface: filtered, offset-paginated entries
	// joined with recipient charter names, newest first, plus the total
	// match count.
	Query(ctx context.Context, filter models.EntryFilter, limit, offset int) ([]models.AuditRecord, int64, error)
}
