package interfaces

import (
	"context"

	"github.com/charterpay/dues-distribution-engine/internal/models"
)

// CharterStore reads the charter tree. Owned upstream; read-only here.
type CharterStore interface {
	GetCharter(ctx context.Context, id string) (models.Charter, error)
}

// SplitConfigStore reads the currently active, already-validated split
// configuration. Owned by the admin surface; read-only here.
type SplitConfigStore interface {
	// GetActiveConfig returns the active SplitConfig attached directly to
	// the charter, or ErrNotFound when the charter has none.
	GetActiveConfig(ctx context.Context, charterID string) (models.SplitConfig, error)

	// GetActiveRules returns a config's active rules ordered by sort_order
	// then id.
	GetActiveRules(ctx context.Context, configID string) ([]models.SplitRule, error)
}

// StripeAccountStore reads charter-to-provider account mappings produced by
// the onboarding collaborator.
type StripeAccountStore interface {
	GetAccount(ctx context.Context, charterID string) (models.CharterStripeAccount, error)
}
