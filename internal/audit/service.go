// Package audit is the read-only compliance view over the ledger. It never
// mutates state, and because batches are written in one transaction it
// never observes a partial batch.
package audit

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Page is one page of audit records with the paging echo the admin ledger
// viewer needs.
type Page struct {
	Items []models.AuditRecord `json:"items"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Total int64                `json:"total"`
}

type Service struct {
	store interfaces.LedgerStore
	log   *zap.Logger
}

func NewService(store interfaces.LedgerStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Query returns entries matching the filter, newest first, joined with
// recipient charter names. Page numbers start at 1; out-of-range paging
// inputs are clamped rather than rejected.
func (s *Service) Query(ctx context.Context, filter models.EntryFilter, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset := (page - 1) * limit
	items, total, err := s.store.Query(ctx, filter, limit, offset)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying ledger")
	}
	if items == nil {
		items = []models.AuditRecord{}
	}

	return Page{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}
