package models

import "github.com/shopspring/decimal"

// DisbursementModel decides whether the national body distributes dues on a
// charter's behalf, or delegates full control downstream.
type DisbursementModel string

const (
	// NationalManaged means the national body splits the remainder across
	// the charter's recipient rules and transfers each share itself.
	NationalManaged DisbursementModel = "national_managed"

	// StateManaged means the resolved charter receives the full remainder
	// in one transfer and redistributes internally, outside our visibility.
	StateManaged DisbursementModel = "state_managed"
)

// SplitConfig is the disbursement policy attached to one charter.
// Created and edited by the admin surface; read-only here.
type SplitConfig struct {
	ID        string            `json:"id"`
	CharterID string            `json:"charter_id"`
	Model     DisbursementModel `json:"model"`
	IsActive  bool              `json:"is_active"`
}

// SplitRule is one percentage-weighted recipient under a SplitConfig.
// The admin surface validates at write time that active percentages sum
// to 100; the calculator re-checks defensively at read time.
type SplitRule struct {
	ID                 string          `json:"id"`
	ConfigID           string          `json:"config_id"`
	RecipientCharterID string          `json:"recipient_charter_id"`
	Percentage         decimal.Decimal `json:"percentage"` // 0-100, 2-decimal precision
	SortOrder          int             `json:"sort_order"`
	IsActive           bool            `json:"is_active"`
}

// EffectiveConfig is the result of walking the charter tree upward from an
// originating charter until an active SplitConfig is found. CharterID is the
// charter the config was resolved AT, which may be an ancestor of the
// originating charter.
type EffectiveConfig struct {
	CharterID string
	Model     DisbursementModel
	Rules     []SplitRule
}
