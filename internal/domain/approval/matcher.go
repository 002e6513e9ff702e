package approval

import (
	"github.com/shopspring/decimal"

	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// Match selects the single best-matching workflow definition for an expense,
// or nil when no definition applies (the auto-approve signal). A definition
// matches when it is active, its inclusive amount bounds contain the amount
// (an absent bound is unbounded on that side) and every match condition
// holds against the attribute map. Among matches the highest priority wins;
// ties break by earliest creation, then lowest id, so selection is
// deterministic and reproducible.
func Match(defs []*entity.WorkflowDefinition, amount decimal.Decimal, attrs map[string]string) *entity.WorkflowDefinition {
	var best *entity.WorkflowDefinition
	for _, def := range defs {
		if !Matches(def, amount, attrs) {
			continue
		}
		if best == nil || beats(def, best) {
			best = def
		}
	}
	return best
}

// Matches reports whether a single definition applies to the expense.
func Matches(def *entity.WorkflowDefinition, amount decimal.Decimal, attrs map[string]string) bool {
	if def == nil || !def.Active {
		return false
	}
	if def.MatchAmountMin != nil && amount.LessThan(*def.MatchAmountMin) {
		return false
	}
	if def.MatchAmountMax != nil && amount.GreaterThan(*def.MatchAmountMax) {
		return false
	}
	for _, cond := range def.MatchConditions {
		if !conditionHolds(cond, attrs) {
			return false
		}
	}
	return true
}

func conditionHolds(cond entity.MatchCondition, attrs map[string]string) bool {
	got, ok := attrs[cond.Attribute]
	if !ok {
		return false
	}
	switch cond.Operator {
	case entity.MatchEquals:
		return got == cond.Value
	case entity.MatchIn:
		for _, v := range cond.Values {
			if got == v {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// beats reports whether a should be preferred over b among matching
// definitions.
func beats(a, b *entity.WorkflowDefinition) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
