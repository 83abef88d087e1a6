package hierarchy

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

// maxDepth bounds the upward walk. The real tree is three levels deep
// (national / state / local); anything past this is a data problem.
const maxDepth = 16

// ErrCharterTooDeep is returned when the parent chain exceeds maxDepth,
// which in practice means a cycle in the charter table.
var ErrCharterTooDeep = errors.New("charter parent chain exceeds max depth")

// Resolver finds the split configuration in effect for a charter by walking
// its ancestor chain. Keeping the walk here keeps the calculator pure and
// independently testable.
type Resolver struct {
	charters interfaces.CharterStore
	configs  interfaces.SplitConfigStore
	log      *zap.Logger
}

func NewResolver(charters interfaces.CharterStore, configs interfaces.SplitConfigStore, log *zap.Logger) *Resolver {
	return &Resolver{
		charters: charters,
		configs:  configs,
		log:      log,
	}
}

// ResolveEffectiveConfig walks upward from charterID until it finds an
// active SplitConfig on an active charter. If no ancestor carries one, the
// national default applies: national_managed with no rules, resolved at the
// originating charter (the calculator turns that into full retention).
func (r *Resolver) ResolveEffectiveConfig(ctx context.Context, charterID string) (models.EffectiveConfig, error) {
	current := charterID
	for depth := 0; depth < maxDepth; depth++ {
		charter, err := r.charters.GetCharter(ctx, current)
		if err != nil {
			return models.EffectiveConfig{}, errors.Wrapf(err, "resolving charter %s", current)
		}

		if charter.IsActive {
			cfg, err := r.configs.GetActiveConfig(ctx, current)
			switch {
			case err == nil:
				rules, err := r.configs.GetActiveRules(ctx, cfg.ID)
				if err != nil {
					return models.EffectiveConfig{}, errors.Wrapf(err, "loading rules for config %s", cfg.ID)
				}
				return models.EffectiveConfig{
					CharterID: current,
					Model:     cfg.Model,
					Rules:     rules,
				}, nil
			case !errors.Is(err, interfaces.ErrNotFound):
				return models.EffectiveConfig{}, errors.Wrapf(err, "loading config for charter %s", current)
			}
		}

		if charter.ParentID == "" {
			// Reached the root with no config anywhere on the chain.
			r.log.Debug("no split config in ancestor chain, using national default",
				zap.String("charter_id", charterID))
			return r.nationalDefault(charterID), nil
		}
		current = charter.ParentID
	}

	return models.EffectiveConfig{}, errors.Wrapf(ErrCharterTooDeep, "charter %s", charterID)
}

func (r *Resolver) nationalDefault(charterID string) models.EffectiveConfig {
	return models.EffectiveConfig{
		CharterID: charterID,
		Model:     models.NationalManaged,
		Rules:     nil,
	}
}
