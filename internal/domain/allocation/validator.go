package allocation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// ProposedTag is one dimension reference on a proposed allocation line.
type ProposedTag struct {
	Kind     entity.DimensionKind `json:"kind"`
	EntityID string               `json:"entity_id"`
}

// ProposedLine is one requested allocation line before validation.
type ProposedLine struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
	Tags   []ProposedTag   `json:"tags"`
}

// EntityLookupFunc checks that a dimension entity exists and is visible to
// the tenant (global or tenant-scoped). Backed by the external dimension
// lookup collaborator.
type EntityLookupFunc func(ctx context.Context, kind entity.DimensionKind, entityID string) (bool, error)

// Rules carries the tenant-dependent inputs of a validation run. The tenant
// is threaded explicitly by the caller building the Rules; the validator
// itself holds no ambient state.
type Rules struct {
	ExpenseTotal decimal.Decimal
	// Precision is the expense currency's decimal exponent (2 for PLN/EUR).
	Precision int32
	// EnabledKinds is the tenant's enabled dimension set from the registry.
	EnabledKinds map[entity.DimensionKind]bool
	Lookup       EntityLookupFunc
}

// Validate checks proposed lines against the rules and returns normalized
// allocation records ready for atomic persistence. The sum of line amounts
// may be below the expense total (partial allocation is a valid
// intermediate state) but never above it.
func Validate(ctx context.Context, rules Rules, lines []ProposedLine) ([]*entity.ExpenseAllocation, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	sum := decimal.Zero
	out := make([]*entity.ExpenseAllocation, 0, len(lines))

	for i, line := range lines {
		if !line.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: line %d amount %s must be positive", ErrInvalidAmount, i+1, line.Amount)
		}
		if !line.Amount.Equal(line.Amount.Round(rules.Precision)) {
			return nil, fmt.Errorf("%w: line %d amount %s exceeds currency precision %d", ErrInvalidAmount, i+1, line.Amount, rules.Precision)
		}

		tags := make([]*entity.AllocationDimensionTag, 0, len(line.Tags))
		for _, tag := range line.Tags {
			if !tag.Kind.IsValid() {
				return nil, fmt.Errorf("%w: %s", ErrUnknownDimensionKind, tag.Kind)
			}
			if !rules.EnabledKinds[tag.Kind] {
				return nil, fmt.Errorf("%w: %s", ErrDimensionNotEnabled, tag.Kind)
			}
			exists, err := rules.Lookup(ctx, tag.Kind, tag.EntityID)
			if err != nil {
				return nil, fmt.Errorf("dimension lookup %s/%s: %w", tag.Kind, tag.EntityID, err)
			}
			if !exists {
				return nil, fmt.Errorf("%w: %s/%s", ErrDimensionEntityNotFound, tag.Kind, tag.EntityID)
			}
			tags = append(tags, &entity.AllocationDimensionTag{
				Kind:     tag.Kind,
				EntityID: tag.EntityID,
			})
		}

		sum = sum.Add(line.Amount)
		out = append(out, &entity.ExpenseAllocation{
			Amount: line.Amount,
			Note:   line.Note,
			Status: entity.AllocationPending,
			Tags:   tags,
		})
	}

	if sum.GreaterThan(rules.ExpenseTotal) {
		return nil, fmt.Errorf("%w: allocated %s of %s", ErrAllocationTotalMismatch, sum, rules.ExpenseTotal)
	}

	return out, nil
}

// WithinTotal reports whether the sum of non-rejected line amounts stays at
// or below the expense total. Exposed as a pure check for the expense
// collaborator, which gates status transitions on full allocation.
func WithinTotal(total decimal.Decimal, lines []*entity.ExpenseAllocation) bool {
	return Allocated(lines).LessThanOrEqual(total)
}

// Allocated sums the non-rejected line amounts.
func Allocated(lines []*entity.ExpenseAllocation) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Status == entity.AllocationRejected {
			continue
		}
		sum = sum.Add(l.Amount)
	}
	return sum
}

// AutoSplit divides a total across the given tag sets without explicit
// per-line amounts, evenly or by the caller's weights. Each amount is the
// weighted share rounded down to the currency precision; the residual cents
// land on the last line so the rounded sum equals the total exactly.
func AutoSplit(total decimal.Decimal, precision int32, targets [][]ProposedTag, weights []decimal.Decimal) ([]ProposedLine, error) {
	n := len(targets)
	if n == 0 {
		return nil, ErrNoLines
	}
	if weights != nil && len(weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d lines", ErrInvalidAmount, len(weights), n)
	}

	weightSum := decimal.Zero
	if weights == nil {
		weightSum = decimal.NewFromInt(int64(n))
	} else {
		for _, w := range weights {
			if !w.IsPositive() {
				return nil, fmt.Errorf("%w: weight %s must be positive", ErrInvalidAmount, w)
			}
			weightSum = weightSum.Add(w)
		}
	}

	lines := make([]ProposedLine, n)
	assigned := decimal.Zero
	for i := 0; i < n; i++ {
		var share decimal.Decimal
		if i == n-1 {
			share = total.Sub(assigned)
		} else {
			w := decimal.NewFromInt(1)
			if weights != nil {
				w = weights[i]
			}
			share = total.Mul(w).Div(weightSum).RoundDown(precision)
		}
		if !share.IsPositive() {
			return nil, fmt.Errorf("%w: computed share %s for line %d", ErrInvalidAmount, share, i+1)
		}
		assigned = assigned.Add(share)
		lines[i] = ProposedLine{Amount: share, Tags: targets[i]}
	}

	return lines, nil
}
