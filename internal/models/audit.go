package models

import "time"

// EntryFilter narrows an audit query over the ledger. Zero values mean
// "no filter" for that dimension.
type EntryFilter struct {
	Status    EntryStatus
	CharterID string
	From      *time.Time
	To        *time.Time
}

// AuditRecord is a ledger entry joined with the recipient charter's display
// name, as served by the audit/reporting surface.
type AuditRecord struct {
	LedgerEntry
	RecipientCharterName string `json:"recipient_charter_name"`
}
