package memory

import (
	"context"
	"sort"
	"time"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

func (s *Store) CreateBatch(_ context.Context, contributionID string, entries []models.LedgerEntry) ([]models.LedgerEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids, exists := s.batches[contributionID]; exists {
		return s.collect(ids), false, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		s.entries[e.ID] = e
		s.order = append(s.order, e.ID)
		ids = append(ids, e.ID)
	}
	s.batches[contributionID] = ids
	return s.collect(ids), true, nil
}

func (s *Store) CreateReversal(_ context.Context, entry models.LedgerEntry) (models.LedgerEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.reversals[entry.ReversalOfID]; ok {
		return s.entries[existingID], false, nil
	}

	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	s.reversals[entry.ReversalOfID] = entry.ID
	s.batches[entry.ContributionID] = append(s.batches[entry.ContributionID], entry.ID)
	return entry, true, nil
}

func (s *Store) GetBatch(_ context.Context, contributionID string) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(s.batches[contributionID]), nil
}

func (s *Store) GetEntry(_ context.Context, id string) (models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.LedgerEntry{}, interfaces.ErrNotFound
	}
	return e, nil
}

func (s *Store) FindReversal(_ context.Context, originalID string) (models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.reversals[originalID]
	if !ok {
		return models.LedgerEntry{}, interfaces.ErrNotFound
	}
	return s.entries[id], nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.LedgerEntry
	for _, id := range s.order {
		if len(out) == limit {
			break
		}
		if e := s.entries[id]; e.Status == models.StatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) MarkTransferred(_ context.Context, id, transferID string, at time.Time) error {
	return s.transition(id, models.StatusPending, func(e *models.LedgerEntry) {
		e.Status = models.StatusTransferred
		e.TransferID = transferID
		e.TransferredAt = &at
	})
}

func (s *Store) MarkFailed(_ context.Context, id, reason string) error {
	return s.transition(id, models.StatusPending, func(e *models.LedgerEntry) {
		e.Status = models.StatusFailed
		e.FailureReason = reason
	})
}

func (s *Store) MarkReversed(_ context.Context, id string) error {
	return s.transition(id, models.StatusTransferred, func(e *models.LedgerEntry) {
		e.Status = models.StatusReversed
	})
}

func (s *Store) MarkPending(_ context.Context, id string) error {
	return s.transition(id, models.StatusFailed, func(e *models.LedgerEntry) {
		e.Status = models.StatusPending
		e.FailureReason = ""
	})
}

func (s *Store) Query(_ context.Context, filter models.EntryFilter, limit, offset int) ([]models.AuditRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.AuditRecord
	for _, id := range s.order {
		e := s.entries[id]
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.CharterID != "" && e.RecipientCharterID != filter.CharterID {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, models.AuditRecord{
			LedgerEntry:          e,
			RecipientCharterName: s.charters[e.RecipientCharterID].Name,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// transition applies a guarded status change under the store lock.
func (s *Store) transition(id string, want models.EntryStatus, apply func(*models.LedgerEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	if e.Status != want {
		return interfaces.ErrInvalidTransition
	}
	apply(&e)
	s.entries[id] = e
	return nil
}

func (s *Store) collect(ids []string) []models.LedgerEntry {
	out := make([]models.LedgerEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id])
	}
	return out
}
