// Package memory is the in-memory storage implementation. It backs tests
// and local development; the same interfaces are served by postgres in
// production.
package memory

import (
	"context"
	"sync"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

// Store holds the whole data model behind one mutex: ledger entries plus
// the read-only charter/config/account tables this service consumes. Seed
// methods populate the read-only side.
type Store struct {
	mu sync.Mutex

	entries   map[string]models.LedgerEntry
	order     []string            // entry ids in insertion order
	batches   map[string][]string // contribution id -> entry ids
	reversals map[string]string   // original entry id -> reversal entry id

	charters map[string]models.Charter
	configs  map[string]models.SplitConfig // keyed by charter id
	rules    map[string][]models.SplitRule // keyed by config id
	accounts map[string]models.CharterStripeAccount
}

func NewStore() *Store {
	return &Store{
		entries:   make(map[string]models.LedgerEntry),
		batches:   make(map[string][]string),
		reversals: make(map[string]string),
		charters:  make(map[string]models.Charter),
		configs:   make(map[string]models.SplitConfig),
		rules:     make(map[string][]models.SplitRule),
		accounts:  make(map[string]models.CharterStripeAccount),
	}
}

func (s *Store) SeedCharter(c models.Charter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charters[c.ID] = c
}

func (s *Store) SeedConfig(cfg models.SplitConfig, rules ...models.SplitRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.CharterID] = cfg
	s.rules[cfg.ID] = append(s.rules[cfg.ID], rules...)
}

func (s *Store) SeedAccount(a models.CharterStripeAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.CharterID] = a
}

func (s *Store) GetCharter(_ context.Context, id string) (models.Charter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charters[id]
	if !ok {
		return models.Charter{}, interfaces.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetActiveConfig(_ context.Context, charterID string) (models.SplitConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[charterID]
	if !ok || !cfg.IsActive {
		return models.SplitConfig{}, interfaces.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) GetActiveRules(_ context.Context, configID string) ([]models.SplitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SplitRule
	for _, r := range s.rules[configID] {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, charterID string) (models.CharterStripeAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[charterID]
	if !ok {
		return models.CharterStripeAccount{}, interfaces.ErrNotFound
	}
	return a, nil
}

var (
	_ interfaces.CharterStore       = (*Store)(nil)
	_ interfaces.SplitConfigStore   = (*Store)(nil)
	_ interfaces.StripeAccountStore = (*Store)(nil)
	_ interfaces.LedgerStore        = (*Store)(nil)
)
