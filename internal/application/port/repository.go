package port

import (
	"context"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// WorkflowRepository defines persistence operations for WorkflowDefinition
// and its nested steps and approver specs.
type WorkflowRepository interface {
	// Create persists a definition with its steps and specs in one unit.
	Create(ctx context.Context, def *entity.WorkflowDefinition) error

	// GetByID loads a definition with steps and specs.
	GetByID(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error)

	// ListActive returns all active definitions for a tenant, fully loaded,
	// ordered by creation.
	ListActive(ctx context.Context, tenantID string) ([]*entity.WorkflowDefinition, error)

	// List returns a page of definitions for a tenant (steps included).
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowDefinition, error)

	// SetActive soft-enables or soft-disables a definition. Definitions are
	// never deleted while executions reference them.
	SetActive(ctx context.Context, tenantID string, id int64, active bool) error
}

// ExecutionRepository defines persistence operations for ApprovalExecution.
type ExecutionRepository interface {
	// Create inserts a new pending execution. Returns ErrDuplicateExecution
	// when a pending execution already exists for the expense (backed by a
	// partial unique index, so concurrent starts cannot both succeed).
	Create(ctx context.Context, exec *entity.ApprovalExecution) error

	GetByID(ctx context.Context, id int64) (*entity.ApprovalExecution, error)

	// GetPendingByExpense returns the pending execution for an expense, or
	// ErrNotFound when none exists.
	GetPendingByExpense(ctx context.Context, expenseID string) (*entity.ApprovalExecution, error)

	// AdvanceStep moves the execution to the given step.
	AdvanceStep(ctx context.Context, id int64, stepID int64) error

	// Complete sets a terminal status, clears the current step and stamps
	// completed-at.
	Complete(ctx context.Context, id int64, status string, completedAt time.Time) error

	// ListByExpense returns all executions for an expense, newest first
	// (terminal executions are retained for audit).
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalExecution, error)
}

// DecisionRepository defines persistence operations for ApprovalDecision.
type DecisionRepository interface {
	// Create appends a decision. Returns ErrAlreadyDecided when a decision
	// already exists for (execution, step, approver); decisions are
	// immutable and never updated.
	Create(ctx context.Context, decision *entity.ApprovalDecision) error

	// ListByExecution returns all decisions of an execution ordered by
	// decided-at.
	ListByExecution(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error)
}

// AllocationRepository defines persistence operations for ExpenseAllocation
// and its dimension tags.
type AllocationRepository interface {
	// CreateBatch persists all lines with their tags; the caller wraps it in
	// one transaction so a request's lines succeed or fail together.
	CreateBatch(ctx context.Context, lines []*entity.ExpenseAllocation) error

	// ListByExpense returns all lines with tags for an expense.
	ListByExpense(ctx context.Context, tenantID, expenseID string) ([]*entity.ExpenseAllocation, error)

	// UpdateStatus moves one line between allocation statuses.
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// DimensionConfigRepository defines persistence operations for
// TenantDimensionConfig.
type DimensionConfigRepository interface {
	// Upsert writes the configuration for (tenant, kind); idempotent.
	Upsert(ctx context.Context, cfg *entity.TenantDimensionConfig) error

	// ListByTenant returns the tenant's overrides ordered by display order.
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error)

	// DeleteByTenant clears all overrides, reverting the tenant to the
	// built-in defaults.
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
