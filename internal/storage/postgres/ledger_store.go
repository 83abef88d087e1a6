package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

const entryColumns = `id, contribution_id, source_type, recipient_charter_id, amount, currency,
	status, transfer_id, transfer_group_id, transferred_at, reversal_of_id, failure_reason,
	rule_snapshot, created_at`

const insertEntry = `INSERT INTO ledger_entries (` + entryColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

// CreateBatch claims the contribution id in ledger_batches and writes all
// entries in the same transaction. Losing the claim (duplicate event
// delivery, concurrent writer) rolls everything back and returns the
// surviving batch, so entries are never visible half-written.
func (s *Store) CreateBatch(ctx context.Context, contributionID string, entries []models.LedgerEntry) ([]models.LedgerEntry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "beginning batch transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_batches (contribution_id, created_at) VALUES ($1, $2)
		 ON CONFLICT (contribution_id) DO NOTHING`,
		contributionID, time.Now().UTC())
	if err != nil {
		return nil, false, errors.Wrap(err, "claiming contribution batch")
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, false, errors.Wrap(err, "reading claim result")
	}
	if claimed == 0 {
		tx.Rollback()
		existing, getErr := s.GetBatch(ctx, contributionID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}

	for _, e := range entries {
		if err = s.insertEntryTx(ctx, tx, e); err != nil {
			return nil, false, errors.Wrapf(err, "inserting entry %s", e.ID)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, errors.Wrap(err, "committing batch")
	}
	return entries, true, nil
}

// CreateReversal relies on the partial unique index on reversal_of_id: the
// second writer's insert affects zero rows and gets the existing reversal
// back instead.
func (s *Store) CreateReversal(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, bool, error) {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return models.LedgerEntry{}, false, errors.Wrap(err, "encoding rule snapshot")
	}

	res, err := s.db.ExecContext(ctx, insertEntry+` ON CONFLICT (reversal_of_id) WHERE reversal_of_id IS NOT NULL DO NOTHING`,
		entry.ID, entry.ContributionID, entry.SourceType, entry.RecipientCharterID,
		entry.Amount, entry.Currency, string(entry.Status),
		nullString(entry.TransferID), entry.TransferGroupID, nullTime(entry.TransferredAt),
		nullString(entry.ReversalOfID), nullString(entry.FailureReason),
		snapshot, entry.CreatedAt)
	if err != nil {
		return models.LedgerEntry{}, false, errors.Wrap(err, "inserting reversal")
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.LedgerEntry{}, false, errors.Wrap(err, "reading insert result")
	}
	if inserted == 0 {
		existing, findErr := s.FindReversal(ctx, entry.ReversalOfID)
		if findErr != nil {
			return models.LedgerEntry{}, false, findErr
		}
		return existing, false, nil
	}
	return entry, true, nil
}

func (s *Store) GetBatch(ctx context.Context, contributionID string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE contribution_id = $1 ORDER BY created_at, id`,
		contributionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying batch")
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) GetEntry(ctx context.Context, id string) (models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, interfaces.ErrNotFound
	}
	return entry, err
}

func (s *Store) FindReversal(ctx context.Context, originalID string) (models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE reversal_of_id = $1`, originalID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, interfaces.ErrNotFound
	}
	return entry, err
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE status = 'pending' ORDER BY created_at, id LIMIT $1`,
		limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying pending entries")
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) MarkTransferred(ctx context.Context, id, transferID string, at time.Time) error {
	return s.transition(ctx, id,
		`UPDATE ledger_entries SET status = 'transferred', transfer_id = $2, transferred_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		id, transferID, at)
}

func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id,
		`UPDATE ledger_entries SET status = 'failed', failure_reason = $2
		 WHERE id = $1 AND status = 'pending'`,
		id, reason)
}

func (s *Store) MarkReversed(ctx context.Context, id string) error {
	return s.transition(ctx, id,
		`UPDATE ledger_entries SET status = 'reversed'
		 WHERE id = $1 AND status = 'transferred'`,
		id)
}

func (s *Store) MarkPending(ctx context.Context, id string) error {
	return s.transition(ctx, id,
		`UPDATE ledger_entries SET status = 'pending', failure_reason = NULL
		 WHERE id = $1 AND status = 'failed'`,
		id)
}

func (s *Store) Query(ctx context.Context, filter models.EntryFilter, limit, offset int) ([]models.AuditRecord, int64, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if filter.CharterID != "" {
		args = append(args, filter.CharterID)
		conditions = append(conditions, fmt.Sprintf("e.recipient_charter_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("e.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("e.created_at <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limit)
	limitPos := len(args)
	args = append(args, offset)
	offsetPos := len(args)

	query := `SELECT e.id, e.contribution_id, e.source_type, e.recipient_charter_id, e.amount,
			e.currency, e.status, e.transfer_id, e.transfer_group_id, e.transferred_at,
			e.reversal_of_id, e.failure_reason, e.rule_snapshot, e.created_at,
			c.name, count(*) OVER() AS total
		FROM ledger_entries e
		JOIN charters c ON c.id = e.recipient_charter_id` + where +
		fmt.Sprintf(` ORDER BY e.created_at DESC, e.id LIMIT $%d OFFSET $%d`, limitPos, offsetPos)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying audit records")
	}
	defer rows.Close()

	var (
		records []models.AuditRecord
		total   int64
	)
	for rows.Next() {
		var (
			rec           models.AuditRecord
			transferID    sql.NullString
			transferredAt sql.NullTime
			reversalOfID  sql.NullString
			failureReason sql.NullString
			snapshot      []byte
			status        string
		)
		if err := rows.Scan(
			&rec.ID, &rec.ContributionID, &rec.SourceType, &rec.RecipientCharterID,
			&rec.Amount, &rec.Currency, &status, &transferID, &rec.TransferGroupID,
			&transferredAt, &reversalOfID, &failureReason, &snapshot, &rec.CreatedAt,
			&rec.RecipientCharterName, &total,
		); err != nil {
			return nil, 0, errors.Wrap(err, "scanning audit record")
		}
		rec.Status = models.EntryStatus(status)
		rec.TransferID = transferID.String
		rec.ReversalOfID = reversalOfID.String
		rec.FailureReason = failureReason.String
		if transferredAt.Valid {
			at := transferredAt.Time
			rec.TransferredAt = &at
		}
		if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
			return nil, 0, errors.Wrapf(err, "decoding snapshot for entry %s", rec.ID)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterating audit records")
	}
	return records, total, nil
}

func (s *Store) insertEntryTx(ctx context.Context, tx *sql.Tx, e models.LedgerEntry) error {
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return errors.Wrap(err, "encoding rule snapshot")
	}
	_, err = tx.ExecContext(ctx, insertEntry,
		e.ID, e.ContributionID, e.SourceType, e.RecipientCharterID,
		e.Amount, e.Currency, string(e.Status),
		nullString(e.TransferID), e.TransferGroupID, nullTime(e.TransferredAt),
		nullString(e.ReversalOfID), nullString(e.FailureReason),
		snapshot, e.CreatedAt)
	return err
}

// transition runs a guarded status update: zero rows affected means the
// entry either does not exist or is not in the expected source state.
func (s *Store) transition(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating entry status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading update result")
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM ledger_entries WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "checking entry existence")
	}
	return interfaces.ErrInvalidTransition
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var (
		e             models.LedgerEntry
		status        string
		transferID    sql.NullString
		transferredAt sql.NullTime
		reversalOfID  sql.NullString
		failureReason sql.NullString
		snapshot      []byte
	)
	err := row.Scan(
		&e.ID, &e.ContributionID, &e.SourceType, &e.RecipientCharterID,
		&e.Amount, &e.Currency, &status, &transferID, &e.TransferGroupID,
		&transferredAt, &reversalOfID, &failureReason, &snapshot, &e.CreatedAt,
	)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	e.Status = models.EntryStatus(status)
	e.TransferID = transferID.String
	e.ReversalOfID = reversalOfID.String
	e.FailureReason = failureReason.String
	if transferredAt.Valid {
		at := transferredAt.Time
		e.TransferredAt = &at
	}
	if err := json.Unmarshal(snapshot, &e.Snapshot); err != nil {
		return models.LedgerEntry{}, errors.Wrapf(err, "decoding snapshot for entry %s", e.ID)
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating entries")
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ interfaces.LedgerStore = (*Store)(nil)
