package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jm-sky/saasbase-approvals/internal/domain/allocation"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/domain/event"
)

type allocationFixture struct {
	service     AllocationService
	allocations *mockAllocationRepo
	expenses    *mockExpenseService
	dispatcher  *mockDispatcher
}

func newAllocationFixture(total string) *allocationFixture {
	f := &allocationFixture{
		allocations: &mockAllocationRepo{},
		dispatcher:  &mockDispatcher{},
	}
	f.expenses = &mockExpenseService{
		getExpenseFunc: func(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error) {
			return &entity.Expense{
				ID: expenseID, TenantID: tenantID,
				TotalGross: decimal.RequireFromString(total),
				Currency:   "PLN",
				Status:     entity.ExpenseStatusDraft,
			}, nil
		},
	}
	registry := NewDimensionRegistry(&mockDimensionConfigRepo{}, &mockLogger{})
	f.service = NewAllocationService(
		f.allocations, registry, f.expenses, &mockDimensionLookup{},
		&mockTxManager{}, f.dispatcher, &mockLogger{},
	)
	return f
}

func proposed(amount string, kind entity.DimensionKind, entityID string) allocation.ProposedLine {
	return allocation.ProposedLine{
		Amount: decimal.RequireFromString(amount),
		Tags:   []allocation.ProposedTag{{Kind: kind, EntityID: entityID}},
	}
}

func TestAllocationService_Allocate(t *testing.T) {
	f := newAllocationFixture("100.00")

	lines, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("60.00", entity.DimensionProject, "p1"),
		proposed("40.00", entity.DimensionCostCenter, "cc1"),
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Allocate() returned %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		if line.TenantID != "tenant-1" || line.ExpenseID != "exp-1" {
			t.Errorf("line not stamped with tenant and expense: %+v", line)
		}
	}
	if got := f.expenses.lastAllocationStatus(); got != expenseFullyAllocated {
		t.Errorf("expense allocation status = %q, want %q", got, expenseFullyAllocated)
	}
	if !f.dispatcher.dispatched(event.TypeAllocationCreated) {
		t.Error("allocation event was not dispatched")
	}
}

func TestAllocationService_Allocate_Partial(t *testing.T) {
	f := newAllocationFixture("100.00")

	if _, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("30.00", entity.DimensionProject, "p1"),
	}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got := f.expenses.lastAllocationStatus(); got != expensePartiallyAllocated {
		t.Errorf("expense allocation status = %q, want %q", got, expensePartiallyAllocated)
	}

	// A later request may fill the rest, but not overshoot it.
	if _, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("80.00", entity.DimensionProject, "p2"),
	}); !errors.Is(err, allocation.ErrAllocationTotalMismatch) {
		t.Errorf("overshooting Allocate() error = %v, want ErrAllocationTotalMismatch", err)
	}

	if _, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("70.00", entity.DimensionProject, "p2"),
	}); err != nil {
		t.Fatalf("filling Allocate() error = %v", err)
	}
	if got := f.expenses.lastAllocationStatus(); got != expenseFullyAllocated {
		t.Errorf("expense allocation status = %q after fill, want %q", got, expenseFullyAllocated)
	}
}

func TestAllocationService_Allocate_AtomicOnFailure(t *testing.T) {
	f := newAllocationFixture("100.00")
	f.allocations.createBatchFunc = func(ctx context.Context, lines []*entity.ExpenseAllocation) error {
		return errors.New("constraint violated")
	}

	if _, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("50.00", entity.DimensionProject, "p1"),
	}); err == nil {
		t.Fatal("Allocate() error = nil, want persistence error")
	}
	if got := f.expenses.lastAllocationStatus(); got != "" {
		t.Errorf("expense allocation status = %q written despite failure", got)
	}
	if f.dispatcher.dispatched(event.TypeAllocationCreated) {
		t.Error("allocation event dispatched despite failure")
	}
}

func TestAllocationService_Validate_DoesNotPersist(t *testing.T) {
	f := newAllocationFixture("100.00")

	lines, err := f.service.Validate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("50.00", entity.DimensionProject, "p1"),
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("Validate() returned %d lines, want 1", len(lines))
	}

	persisted, _ := f.allocations.ListByExpense(context.Background(), "tenant-1", "exp-1")
	if len(persisted) != 0 {
		t.Errorf("Validate() persisted %d lines", len(persisted))
	}
}

func TestAllocationService_Validate_DisabledDimension(t *testing.T) {
	f := newAllocationFixture("100.00")

	// CONTRACTOR is outside the default enabled set.
	_, err := f.service.Validate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("50.00", entity.DimensionContractor, "c1"),
	})
	if !errors.Is(err, allocation.ErrDimensionNotEnabled) {
		t.Errorf("Validate() error = %v, want ErrDimensionNotEnabled", err)
	}
}

func TestAllocationService_AutoAllocate(t *testing.T) {
	f := newAllocationFixture("100.00")

	lines, err := f.service.AutoAllocate(context.Background(), "tenant-1", "exp-1", [][]allocation.ProposedTag{
		{{Kind: entity.DimensionProject, EntityID: "p1"}},
		{{Kind: entity.DimensionProject, EntityID: "p2"}},
		{{Kind: entity.DimensionProject, EntityID: "p3"}},
	}, nil)
	if err != nil {
		t.Fatalf("AutoAllocate() error = %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("AutoAllocate() returned %d lines, want 3", len(lines))
	}

	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Amount)
	}
	if !sum.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("auto-split sum = %s, want exactly 100.00", sum)
	}
	if got := f.expenses.lastAllocationStatus(); got != expenseFullyAllocated {
		t.Errorf("expense allocation status = %q, want %q", got, expenseFullyAllocated)
	}
}

func TestAllocationService_AutoAllocate_SplitsRemainderOnly(t *testing.T) {
	f := newAllocationFixture("100.00")

	if _, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("40.00", entity.DimensionProject, "p1"),
	}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	lines, err := f.service.AutoAllocate(context.Background(), "tenant-1", "exp-1", [][]allocation.ProposedTag{
		{{Kind: entity.DimensionProject, EntityID: "p2"}},
		{{Kind: entity.DimensionProject, EntityID: "p3"}},
	}, nil)
	if err != nil {
		t.Fatalf("AutoAllocate() error = %v", err)
	}
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Amount)
	}
	if !sum.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("auto-split sum = %s, want the 60.00 remainder", sum)
	}
}

func TestAllocationService_Remaining(t *testing.T) {
	f := newAllocationFixture("100.00")

	remaining, err := f.service.Remaining(context.Background(), "tenant-1", "exp-1")
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if !remaining.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("Remaining() = %s, want 100.00", remaining)
	}

	if _, err := f.service.Allocate(context.Background(), "tenant-1", "exp-1", []allocation.ProposedLine{
		proposed("25.50", entity.DimensionProject, "p1"),
	}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	remaining, err = f.service.Remaining(context.Background(), "tenant-1", "exp-1")
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if !remaining.Equal(decimal.RequireFromString("74.50")) {
		t.Errorf("Remaining() = %s, want 74.50", remaining)
	}
}

func TestCurrencyPrecision(t *testing.T) {
	tests := []struct {
		currency string
		want     int32
	}{
		{currency: "PLN", want: 2},
		{currency: "EUR", want: 2},
		{currency: "JPY", want: 0},
		{currency: "KRW", want: 0},
	}
	for _, tt := range tests {
		if got := currencyPrecision(tt.currency); got != tt.want {
			t.Errorf("currencyPrecision(%s) = %d, want %d", tt.currency, got, tt.want)
		}
	}
}
