package hierarchy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/charterpay/dues-distribution-engine/internal/models"
	"github.com/charterpay/dues-distribution-engine/internal/storage/memory"
)

func seedTree(store *memory.Store) {
	store.SeedCharter(models.Charter{ID: "national", Name: "National", IsActive: true})
	store.SeedCharter(models.Charter{ID: "state-1", Name: "State One", ParentID: "national", IsActive: true})
	store.SeedCharter(models.Charter{ID: "local-1", Name: "Local One", ParentID: "state-1", IsActive: true})
}

func TestResolveFindsConfigOnAncestor(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	store.SeedConfig(
		models.SplitConfig{ID: "cfg-state", CharterID: "state-1", Model: models.NationalManaged, IsActive: true},
		models.SplitRule{ID: "r1", ConfigID: "cfg-state", RecipientCharterID: "state-1", Percentage: decimal.NewFromInt(100), SortOrder: 1, IsActive: true},
	)

	r := NewResolver(store, store, zaptest.NewLogger(t))
	cfg, err := r.ResolveEffectiveConfig(context.Background(), "local-1")
	require.NoError(t, err)

	// local-1 has no config of its own; state-1's applies.
	assert.Equal(t, "state-1", cfg.CharterID)
	assert.Equal(t, models.NationalManaged, cfg.Model)
	require.Len(t, cfg.Rules, 1)
}

func TestResolvePrefersOwnConfigOverAncestors(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	store.SeedConfig(models.SplitConfig{ID: "cfg-state", CharterID: "state-1", Model: models.NationalManaged, IsActive: true})
	store.SeedConfig(models.SplitConfig{ID: "cfg-local", CharterID: "local-1", Model: models.StateManaged, IsActive: true})

	r := NewResolver(store, store, zaptest.NewLogger(t))
	cfg, err := r.ResolveEffectiveConfig(context.Background(), "local-1")
	require.NoError(t, err)

	assert.Equal(t, "local-1", cfg.CharterID)
	assert.Equal(t, models.StateManaged, cfg.Model)
}

func TestResolveFallsBackToNationalDefault(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)

	r := NewResolver(store, store, zaptest.NewLogger(t))
	cfg, err := r.ResolveEffectiveConfig(context.Background(), "local-1")
	require.NoError(t, err)

	// No config anywhere on the chain: national default, resolved at the
	// originating charter with no rules.
	assert.Equal(t, "local-1", cfg.CharterID)
	assert.Equal(t, models.NationalManaged, cfg.Model)
	assert.Empty(t, cfg.Rules)
}

func TestResolveSkipsInactiveCharter(t *testing.T) {
	store := memory.NewStore()
	store.SeedCharter(models.Charter{ID: "national", Name: "National", IsActive: true})
	store.SeedCharter(models.Charter{ID: "state-1", Name: "State One", ParentID: "national", IsActive: false})
	store.SeedCharter(models.Charter{ID: "local-1", Name: "Local One", ParentID: "state-1", IsActive: true})
	store.SeedConfig(models.SplitConfig{ID: "cfg-state", CharterID: "state-1", Model: models.StateManaged, IsActive: true})
	store.SeedConfig(models.SplitConfig{ID: "cfg-national", CharterID: "national", Model: models.NationalManaged, IsActive: true})

	r := NewResolver(store, store, zaptest.NewLogger(t))
	cfg, err := r.ResolveEffectiveConfig(context.Background(), "local-1")
	require.NoError(t, err)

	// state-1 is inactive so its config is passed over.
	assert.Equal(t, "national", cfg.CharterID)
}

func TestResolveUnknownCharter(t *testing.T) {
	store := memory.NewStore()
	r := NewResolver(store, store, zaptest.NewLogger(t))

	_, err := r.ResolveEffectiveConfig(context.Background(), "missing")
	assert.Error(t, err)
}

func TestResolveDetectsCycles(t *testing.T) {
	store := memory.NewStore()
	store.SeedCharter(models.Charter{ID: "a", Name: "A", ParentID: "b", IsActive: true})
	store.SeedCharter(models.Charter{ID: "b", Name: "B", ParentID: "a", IsActive: true})

	r := NewResolver(store, store, zaptest.NewLogger(t))
	_, err := r.ResolveEffectiveConfig(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCharterTooDeep)
}
