// Package transfer drives external money movement for pending ledger
// entries: account resolution, idempotency-keyed provider calls, bounded
// retry, and independent per-entry execution.
package transfer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
	"github.com/charterpay/dues-distribution-engine/internal/models/events"
)

const (
	defaultMaxAttempts = 5
	defaultConcurrency = 8
	defaultInterval    = 500 * time.Millisecond
)

// Options tune retry and dispatch behavior. Zero values take the defaults
// above; tests shrink InitialInterval to keep backoff fast.
type Options struct {
	MaxAttempts     uint64
	Concurrency     int
	InitialInterval time.Duration
}

// Executor moves money for pending entries. It is safe for concurrent use;
// the provider client is the only shared resource and holds no entry state
// between calls. A circuit breaker in front of the provider sheds load when
// it is down instead of hammering it from every in-flight task.
type Executor struct {
	provider  interfaces.TransferProvider
	accounts  interfaces.StripeAccountStore
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher
	log       *zap.Logger
	breaker   *gobreaker.CircuitBreaker

	maxAttempts     uint64
	concurrency     int
	initialInterval time.Duration
}

func NewExecutor(
	provider interfaces.TransferProvider,
	accounts interfaces.StripeAccountStore,
	store interfaces.LedgerStore,
	publisher interfaces.EventPublisher,
	log *zap.Logger,
	opts Options,
) *Executor {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = defaultInterval
	}
	return &Executor{
		provider:  provider,
		accounts:  accounts,
		store:     store,
		publisher: publisher,
		log:       log,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "transfer-provider",
			Timeout: 30 * time.Second,
		}),
		maxAttempts:     opts.MaxAttempts,
		concurrency:     opts.Concurrency,
		initialInterval: opts.InitialInterval,
	}
}

// ExecuteBatch runs every pending entry of a batch as an independent task
// under the concurrency cap. One entry failing or stalling never blocks its
// siblings; per-entry outcomes land in the store and on the operator topics.
func (e *Executor) ExecuteBatch(ctx context.Context, entries []models.LedgerEntry) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if _, err := e.Execute(ctx, entry); err != nil {
				e.log.Error("transfer execution failed",
					zap.String("entry_id", entry.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Execute drives one entry through the provider. Non-pending entries are
// returned unchanged. A recipient without an active provider account leaves
// the entry pending and signals the operators instead of failing it: funds
// are never silently dropped.
func (e *Executor) Execute(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if entry.Status != models.StatusPending {
		return entry, nil
	}

	account, err := e.accounts.GetAccount(ctx, entry.RecipientCharterID)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		e.signalAwaitingOnboarding(ctx, entry, "missing")
		return entry, nil
	case err != nil:
		return entry, errors.Wrapf(err, "resolving account for charter %s", entry.RecipientCharterID)
	case account.Status != models.AccountActive:
		e.signalAwaitingOnboarding(ctx, entry, string(account.Status))
		return entry, nil
	}

	result, err := e.executeWithRetry(ctx, entry, account)
	if err != nil {
		reason := err.Error()
		if markErr := e.store.MarkFailed(ctx, entry.ID, reason); markErr != nil {
			return entry, errors.Wrapf(markErr, "marking entry %s failed", entry.ID)
		}
		entry.Status = models.StatusFailed
		entry.FailureReason = reason
		e.publish(ctx, events.TopicTransferFailed, events.TransferFailed{
			EntryID:        entry.ID,
			ContributionID: entry.ContributionID,
			Reason:         reason,
			OccurredAt:     time.Now().UTC(),
		})
		return entry, err
	}

	now := time.Now().UTC()
	if err := e.store.MarkTransferred(ctx, entry.ID, result.ID, now); err != nil {
		return entry, errors.Wrapf(err, "marking entry %s transferred", entry.ID)
	}
	if entry.IsReversal() {
		// The reversed original moves transferred -> reversed now that the
		// negating transfer actually executed.
		if err := e.store.MarkReversed(ctx, entry.ReversalOfID); err != nil && !errors.Is(err, interfaces.ErrInvalidTransition) {
			return entry, errors.Wrapf(err, "marking entry %s reversed", entry.ReversalOfID)
		}
	}

	entry.Status = models.StatusTransferred
	entry.TransferID = result.ID
	entry.TransferredAt = &now
	e.log.Info("transfer executed",
		zap.String("entry_id", entry.ID),
		zap.String("transfer_id", result.ID),
		zap.Int64("amount", entry.Amount))
	return entry, nil
}

// executeWithRetry calls the provider with exponential backoff and jitter,
// capped at maxAttempts. The idempotency key is derived from the entry id
// alone, so retries of the same entry can never double-transfer.
func (e *Executor) executeWithRetry(ctx context.Context, entry models.LedgerEntry, account models.CharterStripeAccount) (interfaces.TransferResult, error) {
	idempotencyKey := "ledger-entry-" + entry.ID

	var result interfaces.TransferResult
	op := func() error {
		res, err := e.breaker.Execute(func() (interface{}, error) {
			return e.callProvider(ctx, entry, account, idempotencyKey)
		})
		if err != nil {
			var perm *interfaces.PermanentError
			if errors.As(err, &perm) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res.(interfaces.TransferResult)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.initialInterval
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, e.maxAttempts-1), ctx))
	if err != nil {
		return interfaces.TransferResult{}, errors.Wrapf(err, "transfer for entry %s failed", entry.ID)
	}
	return result, nil
}

func (e *Executor) callProvider(ctx context.Context, entry models.LedgerEntry, account models.CharterStripeAccount, idempotencyKey string) (interfaces.TransferResult, error) {
	if entry.IsReversal() {
		original, err := e.store.GetEntry(ctx, entry.ReversalOfID)
		if err != nil {
			return interfaces.TransferResult{}, errors.Wrapf(err, "loading reversed entry %s", entry.ReversalOfID)
		}
		if original.TransferID == "" {
			return interfaces.TransferResult{}, &interfaces.PermanentError{
				Err: errors.Errorf("entry %s has no transfer to reverse", original.ID),
			}
		}
		return e.provider.ReverseTransfer(ctx, original.TransferID, -entry.Amount, idempotencyKey)
	}

	return e.provider.CreateTransfer(ctx, interfaces.TransferRequest{
		IdempotencyKey:       idempotencyKey,
		Amount:               entry.Amount,
		Currency:             entry.Currency,
		DestinationAccountID: account.ProviderAccountID,
		TransferGroupID:      entry.TransferGroupID,
		Description:          "dues distribution " + entry.ContributionID,
	})
}

// Run polls for pending entries until the context ends. This drains entries
// left behind by onboarding holds, operator retries, and crashes between
// batch creation and execution.
func (e *Executor) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := e.store.ListPending(ctx, batchSize)
			if err != nil {
				e.log.Error("listing pending entries", zap.Error(err))
				continue
			}
			if len(entries) > 0 {
				e.ExecuteBatch(ctx, entries)
			}
		}
	}
}

func (e *Executor) signalAwaitingOnboarding(ctx context.Context, entry models.LedgerEntry, status string) {
	e.log.Warn("transfer held, recipient account not active",
		zap.String("entry_id", entry.ID),
		zap.String("recipient_charter_id", entry.RecipientCharterID),
		zap.String("account_status", status))
	e.publish(ctx, events.TopicAwaitingOnboarding, events.TransferAwaitingOnboarding{
		EntryID:            entry.ID,
		RecipientCharterID: entry.RecipientCharterID,
		AccountStatus:      status,
		OccurredAt:         time.Now().UTC(),
	})
}

func (e *Executor) publish(ctx context.Context, topic string, event any) {
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.log.Error("publishing operator event", zap.String("topic", topic), zap.Error(err))
	}
}
