package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/sqlite"
)

// ExecutionRepository implements port.ExecutionRepository
type ExecutionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(db *sqlite.DB, logger *zap.Logger) port.ExecutionRepository {
	return &ExecutionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending execution. A partial unique index on
// (expense_id) WHERE status = 'PENDING' backs the one-pending-per-expense
// invariant; a violation maps to port.ErrDuplicateExecution so concurrent
// starts cannot both succeed.
func (r *ExecutionRepository) Create(ctx context.Context, exec *entity.ApprovalExecution) error {
	query := `
		INSERT INTO approval_executions (
			tenant_id, expense_id, workflow_id, current_step_id,
			initiator_id, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		exec.TenantID,
		exec.ExpenseID,
		exec.WorkflowID,
		exec.CurrentStepID,
		exec.InitiatorID,
		exec.Status,
		exec.StartedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrDuplicateExecution
		}
		r.logger.Error("Failed to create execution", zap.String("expense_id", exec.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to create execution: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	exec.ID = id
	return nil
}

// GetByID retrieves an execution by ID
func (r *ExecutionRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalExecution, error) {
	query := selectExecution + ` WHERE id = ?`

	exec, err := scanExecution(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get execution", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return exec, nil
}

// GetPendingByExpense returns the pending execution of an expense
func (r *ExecutionRepository) GetPendingByExpense(ctx context.Context, expenseID string) (*entity.ApprovalExecution, error) {
	query := selectExecution + ` WHERE expense_id = ? AND status = ?`

	exec, err := scanExecution(r.db.Executor(ctx).QueryRowContext(ctx, query, expenseID, entity.ExecutionPending))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get pending execution", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get pending execution: %w", err)
	}
	return exec, nil
}

// AdvanceStep moves a pending execution to the given step
func (r *ExecutionRepository) AdvanceStep(ctx context.Context, id int64, stepID int64) error {
	query := `
		UPDATE approval_executions
		SET current_step_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, stepID, id, entity.ExecutionPending)
	if err != nil {
		r.logger.Error("Failed to advance execution step", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to advance execution step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

// Complete sets a terminal status, clears the current step and stamps
// completed-at
func (r *ExecutionRepository) Complete(ctx context.Context, id int64, status string, completedAt time.Time) error {
	query := `
		UPDATE approval_executions
		SET status = ?, current_step_id = NULL, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, completedAt, id, entity.ExecutionPending)
	if err != nil {
		r.logger.Error("Failed to complete execution", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to complete execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

// ListByExpense returns all executions for an expense, newest first
func (r *ExecutionRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalExecution, error) {
	query := selectExecution + ` WHERE expense_id = ? ORDER BY started_at DESC, id DESC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list executions", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var execs []*entity.ApprovalExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

const selectExecution = `
	SELECT id, tenant_id, expense_id, workflow_id, current_step_id,
		initiator_id, status, started_at, completed_at, created_at, updated_at
	FROM approval_executions`

func scanExecution(row rowScanner) (*entity.ApprovalExecution, error) {
	var exec entity.ApprovalExecution
	var currentStepID sql.NullInt64
	var completedAt sql.NullTime

	err := row.Scan(
		&exec.ID,
		&exec.TenantID,
		&exec.ExpenseID,
		&exec.WorkflowID,
		&currentStepID,
		&exec.InitiatorID,
		&exec.Status,
		&exec.StartedAt,
		&completedAt,
		&exec.CreatedAt,
		&exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentStepID.Valid {
		exec.CurrentStepID = &currentStepID.Int64
	}
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.Time
	}
	return &exec, nil
}

// Verify interface compliance
var _ port.ExecutionRepository = (*ExecutionRepository)(nil)
