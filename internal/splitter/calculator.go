// Package splitter computes exact per-recipient amounts for a finalized
// contribution. All money is integer minor units; percentages are decimals.
// Floating-point currency arithmetic is disallowed throughout.
package splitter

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/charterpay/dues-distribution-engine/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)

	// sumTolerance is the defensive read-time slack on the sum-to-100 check.
	// The admin surface enforces the same bound at write time.
	sumTolerance = decimal.New(1, -2) // 0.01
)

// ConfigurationError reports active rules whose percentages do not sum to
// 100 within tolerance. No ledger entries are produced; the contribution is
// flagged for manual review instead of being silently mis-split.
type ConfigurationError struct {
	CharterID string
	Sum       decimal.Decimal
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("split rules for charter %s sum to %s, want 100", e.CharterID, e.Sum.String())
}

// Allocation is one recipient's exact share, with the rule values that
// produced it copied verbatim for the ledger snapshot.
type Allocation struct {
	RecipientCharterID string
	Amount             int64
	Snapshot           models.RuleSnapshot
}

// Result is the full outcome of splitting one contribution.
type Result struct {
	Allocations []Allocation
	NationalFee int64
	Remainder   int64 // contribution amount minus the national fee
}

// Calculator is pure: identical input always yields identical output. The
// national fee is a configured percentage of the gross amount, floored to
// whole minor units.
type Calculator struct {
	feePercent decimal.Decimal
}

func NewCalculator(feePercent decimal.Decimal) *Calculator {
	return &Calculator{feePercent: feePercent}
}

// Compute splits a contribution according to the effective configuration.
//
// state_managed: the resolved charter receives the full remainder as one
// allocation and redistributes internally, outside our visibility.
//
// national_managed: each active rule, ordered by sort_order then id, gets
// floor(remainder * percentage / 100); the last rule absorbs the rounding
// residue so the total is cent-exact. An empty active rule set means the
// originating charter retains 100% of the remainder.
func (c *Calculator) Compute(contribution models.Contribution, cfg models.EffectiveConfig) (Result, error) {
	if contribution.Amount <= 0 {
		return Result{}, errors.Errorf("contribution %s has non-positive amount %d", contribution.ID, contribution.Amount)
	}

	fee := decimal.NewFromInt(contribution.Amount).
		Mul(c.feePercent).
		Div(hundred).
		Floor().
		IntPart()
	remainder := contribution.Amount - fee
	if remainder < 0 {
		return Result{}, errors.Errorf("national fee %d exceeds contribution amount %d", fee, contribution.Amount)
	}

	res := Result{NationalFee: fee, Remainder: remainder}

	if cfg.Model == models.StateManaged {
		res.Allocations = []Allocation{singleAllocation(cfg.CharterID, remainder, cfg.Model)}
		return res, nil
	}

	rules := activeRules(cfg.Rules)
	if len(rules) == 0 {
		// Policy, not an error: with no rules the originating charter
		// keeps the whole remainder.
		res.Allocations = []Allocation{singleAllocation(contribution.CharterID, remainder, cfg.Model)}
		return res, nil
	}

	if err := checkSum(cfg.CharterID, rules); err != nil {
		return Result{}, err
	}

	res.Allocations = make([]Allocation, 0, len(rules))
	var allocated int64
	for i, rule := range rules {
		var share int64
		if i == len(rules)-1 {
			// Last rule absorbs the rounding residue.
			share = remainder - allocated
		} else {
			share = decimal.NewFromInt(remainder).
				Mul(rule.Percentage).
				Div(hundred).
				Floor().
				IntPart()
		}
		allocated += share
		res.Allocations = append(res.Allocations, Allocation{
			RecipientCharterID: rule.RecipientCharterID,
			Amount:             share,
			Snapshot: models.RuleSnapshot{
				Model:              cfg.Model,
				RecipientCharterID: rule.RecipientCharterID,
				Percentage:         rule.Percentage,
				SortOrder:          rule.SortOrder,
			},
		})
	}
	return res, nil
}

// activeRules filters inactive rules and orders the rest by sort_order then
// id. The sort is total, so repeated computation is order-stable even when
// the store returns rules in a different order.
func activeRules(rules []models.SplitRule) []models.SplitRule {
	out := make([]models.SplitRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func checkSum(charterID string, rules []models.SplitRule) error {
	sum := decimal.Zero
	for _, r := range rules {
		sum = sum.Add(r.Percentage)
	}
	if sum.Sub(hundred).Abs().GreaterThan(sumTolerance) {
		return &ConfigurationError{CharterID: charterID, Sum: sum}
	}
	return nil
}

func singleAllocation(charterID string, amount int64, model models.DisbursementModel) Allocation {
	return Allocation{
		RecipientCharterID: charterID,
		Amount:             amount,
		Snapshot: models.RuleSnapshot{
			Model:              model,
			RecipientCharterID: charterID,
			Percentage:         hundred,
			SortOrder:          0,
		},
	}
}
