package interfaces

import (
	"context"
	"fmt"
)

// TransferRequest describes one transfer to a connected account.
type TransferRequest struct {
	IdempotencyKey       string
	Amount               int64 // minor units, positive
	Currency             string
	DestinationAccountID string
	TransferGroupID      string
	Description          string
}

// TransferResult is the provider's record of a created transfer or reversal.
type TransferResult struct {
	ID string
}

// TransferProvider is the external payment-transfer provider. Implementations
// must be safe for concurrent use across all in-flight transfer tasks and
// must not hold entry-specific state between calls.
type TransferProvider interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (TransferResult, error)

	// ReverseTransfer returns amount minor units of a previous transfer to
	// the platform, keyed for safe retries.
	ReverseTransfer(ctx context.Context, transferID string, amount int64, idempotencyKey string) (TransferResult, error)
}

// PermanentError wraps a provider failure that retrying cannot fix, such as
// a rejected destination account. The transfer executor fails the entry
// immediately instead of burning retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent transfer error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }
