package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/charterpay/dues-distribution-engine/internal/hierarchy"
	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
	"github.com/charterpay/dues-distribution-engine/internal/models/events"
	"github.com/charterpay/dues-distribution-engine/internal/splitter"
	"github.com/charterpay/dues-distribution-engine/internal/storage/memory"
	"github.com/charterpay/dues-distribution-engine/internal/transfer"
)

// End-to-end pipeline tests: event in, resolved config, exact split, batch
// write, transfers out. Only the provider is faked.

type stubProvider struct {
	mu        sync.Mutex
	transfers []interfaces.TransferRequest
	reversals []string
	fail      bool
}

func (p *stubProvider) CreateTransfer(_ context.Context, req interfaces.TransferRequest) (interfaces.TransferResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return interfaces.TransferResult{}, &interfaces.PermanentError{Err: errors.New("rejected")}
	}
	p.transfers = append(p.transfers, req)
	return interfaces.TransferResult{ID: "tr_" + req.IdempotencyKey}, nil
}

func (p *stubProvider) ReverseTransfer(_ context.Context, transferID string, _ int64, _ string) (interfaces.TransferResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reversals = append(p.reversals, transferID)
	return interfaces.TransferResult{ID: "trr_" + transferID}, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	byTopic map[string][]any
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{byTopic: make(map[string][]any)}
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byTopic[topic] = append(p.byTopic[topic], event)
	return nil
}

func (p *capturingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byTopic[topic])
}

type pipeline struct {
	store     *memory.Store
	provider  *stubProvider
	publisher *capturingPublisher
	service   *Service
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	provider := &stubProvider{}
	publisher := newCapturingPublisher()

	executor := transfer.NewExecutor(provider, store, store, publisher, log, transfer.Options{
		MaxAttempts:     2,
		Concurrency:     4,
		InitialInterval: time.Millisecond,
	})
	service := NewService(
		hierarchy.NewResolver(store, store, log),
		splitter.NewCalculator(decimal.RequireFromString("30")),
		NewWriter(store, log),
		NewReverser(store, log),
		executor,
		publisher,
		log,
	)
	return &pipeline{store: store, provider: provider, publisher: publisher, service: service}
}

func (p *pipeline) seedStandardTree() {
	p.store.SeedCharter(models.Charter{ID: "national", Name: "National", IsActive: true})
	p.store.SeedCharter(models.Charter{ID: "state-1", Name: "State One", ParentID: "national", IsActive: true})
	p.store.SeedCharter(models.Charter{ID: "local-1", Name: "Local One", ParentID: "state-1", IsActive: true})
	p.store.SeedAccount(models.CharterStripeAccount{CharterID: "state-1", ProviderAccountID: "acct_state", Status: models.AccountActive})
	p.store.SeedAccount(models.CharterStripeAccount{CharterID: "local-1", ProviderAccountID: "acct_local", Status: models.AccountActive})
}

func (p *pipeline) seedNationalManagedConfig() {
	p.store.SeedConfig(
		models.SplitConfig{ID: "cfg-1", CharterID: "state-1", Model: models.NationalManaged, IsActive: true},
		models.SplitRule{ID: "r1", ConfigID: "cfg-1", RecipientCharterID: "state-1", Percentage: decimal.RequireFromString("60"), SortOrder: 1, IsActive: true},
		models.SplitRule{ID: "r2", ConfigID: "cfg-1", RecipientCharterID: "local-1", Percentage: decimal.RequireFromString("40"), SortOrder: 2, IsActive: true},
	)
}

func completedEvent(id string, amount int64) events.ContributionCompleted {
	return events.ContributionCompleted{
		ContributionID: id,
		CharterID:      "local-1",
		Amount:         amount,
		Currency:       "USD",
		SourceType:     "dues",
		OccurredAt:     time.Now().UTC(),
	}
}

func TestPipelineSplitsAndTransfers(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.seedNationalManagedConfig()

	require.NoError(t, p.service.HandleContributionCompleted(ctx, completedEvent("c1", 5000)))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, batch, 2)

	var sum int64
	for _, e := range batch {
		assert.Equal(t, models.StatusTransferred, e.Status)
		assert.NotEmpty(t, e.TransferID)
		sum += e.Amount
	}
	assert.Equal(t, int64(3500), sum) // 5000 minus the 30% national fee
	assert.Equal(t, 1, p.publisher.count(events.TopicLedgerEntriesCreated))
}

func TestPipelineRedeliveryCreatesNoNewEntries(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.seedNationalManagedConfig()

	evt := completedEvent("c1", 5000)
	require.NoError(t, p.service.HandleContributionCompleted(ctx, evt))
	require.NoError(t, p.service.HandleContributionCompleted(ctx, evt))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	// Already-transferred entries are skipped, so no second round of
	// provider calls either.
	assert.Len(t, p.provider.transfers, 2)
	assert.Equal(t, 1, p.publisher.count(events.TopicLedgerEntriesCreated))
}

func TestPipelineStateManagedSingleEntry(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.store.SeedConfig(models.SplitConfig{ID: "cfg-1", CharterID: "state-1", Model: models.StateManaged, IsActive: true})

	require.NoError(t, p.service.HandleContributionCompleted(ctx, completedEvent("c1", 5000)))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "state-1", batch[0].RecipientCharterID)
	assert.Equal(t, int64(3500), batch[0].Amount)
	assert.Equal(t, models.StatusTransferred, batch[0].Status)
}

func TestPipelineFlagsBadConfiguration(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.store.SeedConfig(
		models.SplitConfig{ID: "cfg-1", CharterID: "state-1", Model: models.NationalManaged, IsActive: true},
		models.SplitRule{ID: "r1", ConfigID: "cfg-1", RecipientCharterID: "state-1", Percentage: decimal.RequireFromString("60"), SortOrder: 1, IsActive: true},
		// 60 + 30 = 90: fails the read-time check.
		models.SplitRule{ID: "r2", ConfigID: "cfg-1", RecipientCharterID: "local-1", Percentage: decimal.RequireFromString("30"), SortOrder: 2, IsActive: true},
	)

	require.NoError(t, p.service.HandleContributionCompleted(ctx, completedEvent("c1", 5000)))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 1, p.publisher.count(events.TopicContributionFlagged))
}

func TestPipelineHoldsTransfersUntilOnboarded(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.seedNationalManagedConfig()
	// local-1 loses its account mapping.
	p.store.SeedAccount(models.CharterStripeAccount{CharterID: "local-1", ProviderAccountID: "acct_local", Status: models.AccountOnboarding})

	require.NoError(t, p.service.HandleContributionCompleted(ctx, completedEvent("c1", 5000)))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)

	statuses := map[string]models.EntryStatus{}
	for _, e := range batch {
		statuses[e.RecipientCharterID] = e.Status
	}
	assert.Equal(t, models.StatusTransferred, statuses["state-1"])
	assert.Equal(t, models.StatusPending, statuses["local-1"])
	assert.Equal(t, 1, p.publisher.count(events.TopicAwaitingOnboarding))
}

func TestPipelineRefundReversesTransferredEntries(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.seedNationalManagedConfig()

	require.NoError(t, p.service.HandleContributionCompleted(ctx, completedEvent("c1", 5000)))
	require.NoError(t, p.service.HandleContributionRefunded(ctx, events.ContributionRefunded{
		ContributionID: "c1",
		Reason:         "chargeback",
		OccurredAt:     time.Now().UTC(),
	}))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, batch, 4)

	var originals, reversals int
	for _, e := range batch {
		if e.IsReversal() {
			reversals++
			assert.Equal(t, models.StatusTransferred, e.Status)
			assert.Negative(t, e.Amount)
		} else {
			originals++
			assert.Equal(t, models.StatusReversed, e.Status)
		}
	}
	assert.Equal(t, 2, originals)
	assert.Equal(t, 2, reversals)
	assert.Len(t, p.provider.reversals, 2)
}

func TestPipelineRepeatRefundIsNoOp(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.seedStandardTree()
	p.seedNationalManagedConfig()

	require.NoError(t, p.service.HandleContributionCompleted(ctx, completedEvent("c1", 5000)))

	refund := events.ContributionRefunded{ContributionID: "c1", Reason: "refund", OccurredAt: time.Now().UTC()}
	require.NoError(t, p.service.HandleContributionRefunded(ctx, refund))
	require.NoError(t, p.service.HandleContributionRefunded(ctx, refund))

	batch, err := p.store.GetBatch(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, batch, 4)
	assert.Len(t, p.provider.reversals, 2)
}

func TestPipelineRefundForUnknownContribution(t *testing.T) {
	p := newPipeline(t)
	p.seedStandardTree()

	err := p.service.HandleContributionRefunded(context.Background(), events.ContributionRefunded{
		ContributionID: "missing",
	})
	assert.NoError(t, err)
}
