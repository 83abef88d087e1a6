// Package stripe adapts the Stripe Connect transfer API to the
// TransferProvider interface.
package stripe

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	stripelib "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
)

// Provider moves money to connected accounts via Stripe transfers. The
// underlying client is safe for concurrent use and carries no per-call
// state; one Provider serves all in-flight transfer tasks.
type Provider struct {
	api *client.API
}

func NewProvider(apiKey string) *Provider {
	return &Provider{api: client.New(apiKey, nil)}
}

func (p *Provider) CreateTransfer(ctx context.Context, req interfaces.TransferRequest) (interfaces.TransferResult, error) {
	params := &stripelib.TransferParams{
		Amount:        stripelib.Int64(req.Amount),
		Currency:      stripelib.String(strings.ToLower(req.Currency)),
		Destination:   stripelib.String(req.DestinationAccountID),
		TransferGroup: stripelib.String(req.TransferGroupID),
		Description:   stripelib.String(req.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	t, err := p.api.Transfers.New(params)
	if err != nil {
		return interfaces.TransferResult{}, classify(err)
	}
	return interfaces.TransferResult{ID: t.ID}, nil
}

func (p *Provider) ReverseTransfer(ctx context.Context, transferID string, amount int64, idempotencyKey string) (interfaces.TransferResult, error) {
	params := &stripelib.TransferReversalParams{
		ID:     stripelib.String(transferID),
		Amount: stripelib.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	rev, err := p.api.TransferReversals.New(params)
	if err != nil {
		return interfaces.TransferResult{}, classify(err)
	}
	return interfaces.TransferResult{ID: rev.ID}, nil
}

// classify separates faults worth retrying (network, rate limits, Stripe
// 5xx) from ones that are not (invalid destination, bad request).
func classify(err error) error {
	var stripeErr *stripelib.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripelib.ErrorTypeInvalidRequest, stripelib.ErrorTypeCard:
			return &interfaces.PermanentError{Err: err}
		}
	}
	return err
}

var _ interfaces.TransferProvider = (*Provider)(nil)
