package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocation status constants
const (
	AllocationPending   = "PENDING"
	AllocationApproved  = "APPROVED"
	AllocationRejected  = "REJECTED"
	AllocationAllocated = "ALLOCATED"
)

// ExpenseAllocation is one line of an expense's monetary split. An expense
// may carry zero or many lines; the sum of non-rejected line amounts must
// not exceed the expense's total gross amount.
type ExpenseAllocation struct {
	ID        int64                    `json:"id"`
	TenantID  string                   `json:"tenant_id"`
	ExpenseID string                   `json:"expense_id"`
	Amount    decimal.Decimal          `json:"amount"`
	Note      string                   `json:"note,omitempty"`
	Status    string                   `json:"status"`
	Tags      []*AllocationDimensionTag `json:"tags,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// AllocationDimensionTag attaches one dimension entity to an allocation
// line. A line may be tagged by several independent dimensions at once,
// e.g. both a cost center and a project.
type AllocationDimensionTag struct {
	ID           int64         `json:"id"`
	AllocationID int64         `json:"allocation_id"`
	Kind         DimensionKind `json:"kind"`
	EntityID     string        `json:"entity_id"`
	CreatedAt    time.Time     `json:"created_at"`
}
