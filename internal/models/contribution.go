package models

import "time"

// Contribution is an already-finalized, immutable payment fact produced by
// the upstream dues/contribution system. Amounts are integer minor units
// (cents); this subsystem never computes how much a member owes.
type Contribution struct {
	ID          string    `json:"id"`
	CharterID   string    `json:"charter_id"` // originating charter
	Amount      int64     `json:"amount"`     // minor units, always positive
	Currency    string    `json:"currency"`
	SourceType  string    `json:"source_type"` // dues, donation, ...
	CompletedAt time.Time `json:"completed_at"`
}
