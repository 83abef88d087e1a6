package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/charterpay/dues-distribution-engine/internal/models"
	"github.com/charterpay/dues-distribution-engine/internal/storage/memory"
)

func seedLedger(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	store.SeedCharter(models.Charter{ID: "state-1", Name: "State One", IsActive: true})
	store.SeedCharter(models.Charter{ID: "local-1", Name: "Local One", IsActive: true})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, spec := range []struct {
		id        string
		contrib   string
		recipient string
		amount    int64
	}{
		{"e1", "c1", "state-1", 2100},
		{"e2", "c1", "local-1", 1400},
		{"e3", "c2", "state-1", 3500},
	} {
		_, _, err := store.CreateBatch(ctx, spec.contrib+"/"+spec.id, []models.LedgerEntry{{
			ID:                 spec.id,
			ContributionID:     spec.contrib + "/" + spec.id,
			SourceType:         "dues",
			RecipientCharterID: spec.recipient,
			Amount:             spec.amount,
			Currency:           "USD",
			Status:             models.StatusPending,
			TransferGroupID:    "contrib_" + spec.contrib,
			CreatedAt:          base.Add(time.Duration(i) * time.Hour),
		}})
		require.NoError(t, err)
	}
	require.NoError(t, store.MarkTransferred(ctx, "e1", "tr_1", base.Add(3*time.Hour)))
}

func TestQueryReturnsNewestFirstWithNames(t *testing.T) {
	store := memory.NewStore()
	seedLedger(t, store)
	svc := NewService(store, zaptest.NewLogger(t))

	page, err := svc.Query(context.Background(), models.EntryFilter{}, 1, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "e3", page.Items[0].ID)
	assert.Equal(t, "State One", page.Items[0].RecipientCharterName)
	assert.Equal(t, "e1", page.Items[2].ID)
}

func TestQueryFiltersByStatus(t *testing.T) {
	store := memory.NewStore()
	seedLedger(t, store)
	svc := NewService(store, zaptest.NewLogger(t))

	page, err := svc.Query(context.Background(), models.EntryFilter{Status: models.StatusTransferred}, 1, 10)
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "e1", page.Items[0].ID)
}

func TestQueryFiltersByCharter(t *testing.T) {
	store := memory.NewStore()
	seedLedger(t, store)
	svc := NewService(store, zaptest.NewLogger(t))

	page, err := svc.Query(context.Background(), models.EntryFilter{CharterID: "local-1"}, 1, 10)
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "e2", page.Items[0].ID)
}

func TestQueryFiltersByDateRange(t *testing.T) {
	store := memory.NewStore()
	seedLedger(t, store)
	svc := NewService(store, zaptest.NewLogger(t))

	from := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC)
	page, err := svc.Query(context.Background(), models.EntryFilter{From: &from, To: &to}, 1, 10)
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "e2", page.Items[0].ID)
}

func TestQueryPaginates(t *testing.T) {
	store := memory.NewStore()
	seedLedger(t, store)
	svc := NewService(store, zaptest.NewLogger(t))

	first, err := svc.Query(context.Background(), models.EntryFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.Equal(t, int64(3), first.Total)

	second, err := svc.Query(context.Background(), models.EntryFilter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "e1", second.Items[0].ID)

	empty, err := svc.Query(context.Background(), models.EntryFilter{}, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Equal(t, int64(3), empty.Total)
}

func TestQueryClampsPagingInputs(t *testing.T) {
	store := memory.NewStore()
	seedLedger(t, store)
	svc := NewService(store, zaptest.NewLogger(t))

	page, err := svc.Query(context.Background(), models.EntryFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultLimit, page.Limit)

	page, err = svc.Query(context.Background(), models.EntryFilter{}, 1, 10_000)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
}
