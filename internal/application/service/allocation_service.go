package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jm-sky/saasbase-approvals/internal/application/dispatcher"
	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/allocation"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/domain/event"
)

// AllocationService validates and persists expense allocations against the
// tenant's enabled dimensions and the expense's remaining total.
type AllocationService interface {
	// Validate runs the allocation rules without persisting; returns the
	// normalized lines that Allocate would write.
	Validate(ctx context.Context, tenantID, expenseID string, lines []allocation.ProposedLine) ([]*entity.ExpenseAllocation, error)

	// Allocate validates and persists all lines with their dimension tags
	// in one transaction: the whole request succeeds or none of it does.
	Allocate(ctx context.Context, tenantID, expenseID string, lines []allocation.ProposedLine) ([]*entity.ExpenseAllocation, error)

	// AutoAllocate splits the expense's remaining total across the target
	// dimension sets, evenly or by the supplied weights, then persists like
	// Allocate.
	AutoAllocate(ctx context.Context, tenantID, expenseID string, targets [][]allocation.ProposedTag, weights []decimal.Decimal) ([]*entity.ExpenseAllocation, error)

	// ListByExpense returns the expense's allocation lines with tags.
	ListByExpense(ctx context.Context, tenantID, expenseID string) ([]*entity.ExpenseAllocation, error)

	// Remaining returns the expense total minus the non-rejected allocated
	// sum.
	Remaining(ctx context.Context, tenantID, expenseID string) (decimal.Decimal, error)
}

type allocationServiceImpl struct {
	allocations port.AllocationRepository
	registry    DimensionRegistry
	expenses    port.ExpenseService
	lookup      port.DimensionLookup
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
}

// NewAllocationService creates an AllocationService.
func NewAllocationService(
	allocations port.AllocationRepository,
	registry DimensionRegistry,
	expenses port.ExpenseService,
	lookup port.DimensionLookup,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) AllocationService {
	return &allocationServiceImpl{
		allocations: allocations,
		registry:    registry,
		expenses:    expenses,
		lookup:      lookup,
		txManager:   txManager,
		dispatcher:  d,
		logger:      logger,
	}
}

// Expense allocation status values reported to the expense collaborator.
const (
	expenseFullyAllocated     = "FULLY_ALLOCATED"
	expensePartiallyAllocated = "PARTIALLY_ALLOCATED"
)

// zero-decimal currencies; everything else uses two decimal places
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
}

func currencyPrecision(currency string) int32 {
	if zeroDecimalCurrencies[currency] {
		return 0
	}
	return 2
}

// rules assembles the validation inputs for one expense: its remaining
// total (allocating more than what is left of the gross amount must fail),
// currency precision, the tenant's enabled kinds and the entity lookup.
func (s *allocationServiceImpl) rules(ctx context.Context, tenantID, expenseID string) (allocation.Rules, *entity.Expense, error) {
	expense, err := s.expenses.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return allocation.Rules{}, nil, fmt.Errorf("get expense: %w", err)
	}

	existing, err := s.allocations.ListByExpense(ctx, tenantID, expenseID)
	if err != nil {
		return allocation.Rules{}, nil, err
	}
	remaining := expense.TotalGross.Sub(allocation.Allocated(existing))

	enabled, err := s.registry.EnabledSet(ctx, tenantID)
	if err != nil {
		return allocation.Rules{}, nil, err
	}

	return allocation.Rules{
		ExpenseTotal: remaining,
		Precision:    currencyPrecision(expense.Currency),
		EnabledKinds: enabled,
		Lookup: func(ctx context.Context, kind entity.DimensionKind, entityID string) (bool, error) {
			return s.lookup.Exists(ctx, tenantID, kind, entityID)
		},
	}, expense, nil
}

func (s *allocationServiceImpl) Validate(ctx context.Context, tenantID, expenseID string, lines []allocation.ProposedLine) ([]*entity.ExpenseAllocation, error) {
	rules, _, err := s.rules(ctx, tenantID, expenseID)
	if err != nil {
		return nil, err
	}
	return allocation.Validate(ctx, rules, lines)
}

func (s *allocationServiceImpl) Allocate(ctx context.Context, tenantID, expenseID string, lines []allocation.ProposedLine) ([]*entity.ExpenseAllocation, error) {
	var normalized []*entity.ExpenseAllocation

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		rules, expense, err := s.rules(txCtx, tenantID, expenseID)
		if err != nil {
			return err
		}
		normalized, err = allocation.Validate(txCtx, rules, lines)
		if err != nil {
			return err
		}
		for _, line := range normalized {
			line.TenantID = tenantID
			line.ExpenseID = expenseID
		}
		if err := s.allocations.CreateBatch(txCtx, normalized); err != nil {
			return err
		}

		// Report the allocation state back to the expense owner.
		status := expensePartiallyAllocated
		all, err := s.allocations.ListByExpense(txCtx, tenantID, expenseID)
		if err != nil {
			return err
		}
		if allocation.Allocated(all).Equal(expense.TotalGross) {
			status = expenseFullyAllocated
		}
		return s.expenses.SetAllocationStatus(txCtx, tenantID, expenseID, status)
	})
	if err != nil {
		s.logger.Error("Failed to allocate expense", "error", err, "expense_id", expenseID)
		return nil, err
	}

	s.logger.Info("Expense allocated", "expense_id", expenseID, "lines", len(normalized))

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.New(event.TypeAllocationCreated, tenantID, expenseID, 0, map[string]interface{}{
			"lines": len(normalized),
		}))
	}
	return normalized, nil
}

func (s *allocationServiceImpl) AutoAllocate(ctx context.Context, tenantID, expenseID string, targets [][]allocation.ProposedTag, weights []decimal.Decimal) ([]*entity.ExpenseAllocation, error) {
	remaining, err := s.Remaining(ctx, tenantID, expenseID)
	if err != nil {
		return nil, err
	}
	expense, err := s.expenses.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return nil, err
	}

	lines, err := allocation.AutoSplit(remaining, currencyPrecision(expense.Currency), targets, weights)
	if err != nil {
		return nil, err
	}
	return s.Allocate(ctx, tenantID, expenseID, lines)
}

func (s *allocationServiceImpl) ListByExpense(ctx context.Context, tenantID, expenseID string) ([]*entity.ExpenseAllocation, error) {
	return s.allocations.ListByExpense(ctx, tenantID, expenseID)
}

func (s *allocationServiceImpl) Remaining(ctx context.Context, tenantID, expenseID string) (decimal.Decimal, error) {
	expense, err := s.expenses.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return decimal.Zero, err
	}
	existing, err := s.allocations.ListByExpense(ctx, tenantID, expenseID)
	if err != nil {
		return decimal.Zero, err
	}
	return expense.TotalGross.Sub(allocation.Allocated(existing)), nil
}
