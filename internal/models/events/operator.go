package events

import "time"

// Operator-facing events. These feed the ops queue and the reconciliation
// dashboards; nothing in this service consumes them.

// LedgerEntriesCreated is published once per contribution when its entry
// batch is first written.
type LedgerEntriesCreated struct {
	ContributionID string    `json:"contribution_id"`
	EntryCount     int       `json:"entry_count"`
	TotalAmount    int64     `json:"total_amount"` // minor units, net of national fee
	OccurredAt     time.Time `json:"occurred_at"`
}

// TransferFailed is published when an entry exhausts its transfer retries.
type TransferFailed struct {
	EntryID        string    `json:"entry_id"`
	ContributionID string    `json:"contribution_id"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TransferAwaitingOnboarding is published when a transfer is held because
// the recipient charter has no active provider account yet. The entry stays
// pending; funds are never silently dropped.
type TransferAwaitingOnboarding struct {
	EntryID            string    `json:"entry_id"`
	RecipientCharterID string    `json:"recipient_charter_id"`
	AccountStatus      string    `json:"account_status"` // "missing" when no record exists
	OccurredAt         time.Time `json:"occurred_at"`
}

// ContributionFlagged is published when a contribution cannot be split
// because its charter's active rules fail the sum-to-100 check. The
// contribution is escalated for manual review instead of being mis-split.
type ContributionFlagged struct {
	ContributionID string    `json:"contribution_id"`
	CharterID      string    `json:"charter_id"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}
