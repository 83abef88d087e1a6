package events

import "time"

// ContributionCompleted is emitted by the contribution source when a payment
// finalizes. Delivery is at-least-once; the ledger writer's uniqueness
// constraint is the only dedupe.
type ContributionCompleted struct {
	ContributionID string    `json:"contribution_id"`
	CharterID      string    `json:"charter_id"`
	Amount         int64     `json:"amount"` // minor units
	Currency       string    `json:"currency"`
	SourceType     string    `json:"source_type"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ContributionRefunded is emitted on refund or chargeback of a previously
// completed contribution.
type ContributionRefunded struct {
	ContributionID string    `json:"contribution_id"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}
