package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

// Read-only access to the tables owned by collaborators: the charter tree,
// split configuration, and provider account mappings.

func (s *Store) GetCharter(ctx context.Context, id string) (models.Charter, error) {
	var (
		c        models.Charter
		parentID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, is_active FROM charters WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &parentID, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Charter{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Charter{}, errors.Wrap(err, "querying charter")
	}
	c.ParentID = parentID.String
	return c, nil
}

func (s *Store) GetActiveConfig(ctx context.Context, charterID string) (models.SplitConfig, error) {
	var cfg models.SplitConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT id, charter_id, disbursement_model, is_active
		 FROM split_configs WHERE charter_id = $1 AND is_active`, charterID).
		Scan(&cfg.ID, &cfg.CharterID, &cfg.Model, &cfg.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SplitConfig{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.SplitConfig{}, errors.Wrap(err, "querying split config")
	}
	return cfg, nil
}

func (s *Store) GetActiveRules(ctx context.Context, configID string) ([]models.SplitRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, config_id, recipient_charter_id, percentage, sort_order, is_active
		 FROM split_rules WHERE config_id = $1 AND is_active ORDER BY sort_order, id`, configID)
	if err != nil {
		return nil, errors.Wrap(err, "querying split rules")
	}
	defer rows.Close()

	var rules []models.SplitRule
	for rows.Next() {
		var r models.SplitRule
		if err := rows.Scan(&r.ID, &r.ConfigID, &r.RecipientCharterID, &r.Percentage, &r.SortOrder, &r.IsActive); err != nil {
			return nil, errors.Wrap(err, "scanning split rule")
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating split rules")
	}
	return rules, nil
}

func (s *Store) GetAccount(ctx context.Context, charterID string) (models.CharterStripeAccount, error) {
	var a models.CharterStripeAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT charter_id, provider_account_id, status
		 FROM charter_stripe_accounts WHERE charter_id = $1`, charterID).
		Scan(&a.CharterID, &a.ProviderAccountID, &a.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CharterStripeAccount{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.CharterStripeAccount{}, errors.Wrap(err, "querying charter account")
	}
	return a, nil
}

var (
	_ interfaces.CharterStore       = (*Store)(nil)
	_ interfaces.SplitConfigStore   = (*Store)(nil)
	_ interfaces.StripeAccountStore = (*Store)(nil)
)
