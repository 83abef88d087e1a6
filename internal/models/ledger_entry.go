package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the lifecycle state of a ledger entry.
//
//	pending     -> transferred  (provider transfer succeeded)
//	pending     -> failed       (retries exhausted, or voided before transfer)
//	transferred -> reversed     (a negating entry was created and executed)
//
// failed entries re-enter pending only through an explicit operator action.
type EntryStatus string

const (
	StatusPending     EntryStatus = "pending"
	StatusTransferred EntryStatus = "transferred"
	StatusReversed    EntryStatus = "reversed"
	StatusFailed      EntryStatus = "failed"
)

// RuleSnapshot is a verbatim copy of the split-rule values in force when an
// entry was created. It is stored by value and never re-derived, so later
// edits to SplitRule cannot retroactively change what an entry meant.
type RuleSnapshot struct {
	Model              DisbursementModel `json:"model"`
	RecipientCharterID string            `json:"recipient_charter_id"`
	Percentage         decimal.Decimal   `json:"percentage"`
	SortOrder          int               `json:"sort_order"`
}

// LedgerEntry is one immutable record of a planned or executed monetary
// distribution. Amount and Snapshot never change after creation; only the
// status and transfer fields mutate.
type LedgerEntry struct {
	ID                 string       `json:"id"`
	ContributionID     string       `json:"contribution_id"`
	SourceType         string       `json:"source_type"`
	RecipientCharterID string       `json:"recipient_charter_id"`
	Amount             int64        `json:"amount"` // signed minor units; negative for reversals
	Currency           string       `json:"currency"`
	Status             EntryStatus  `json:"status"`
	TransferID         string       `json:"transfer_id,omitempty"`
	TransferGroupID    string       `json:"transfer_group_id"`
	TransferredAt      *time.Time   `json:"transferred_at,omitempty"`
	ReversalOfID       string       `json:"reversal_of_id,omitempty"`
	FailureReason      string       `json:"failure_reason,omitempty"`
	Snapshot           RuleSnapshot `json:"snapshot"`
	CreatedAt          time.Time    `json:"created_at"`
}

// IsReversal reports whether the entry negates a previously transferred one.
func (e LedgerEntry) IsReversal() bool {
	return e.ReversalOfID != ""
}
