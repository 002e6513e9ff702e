package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/sqlite"
)

// DecisionRepository implements port.DecisionRepository
type DecisionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *sqlite.DB, logger *zap.Logger) port.DecisionRepository {
	return &DecisionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a decision. A unique index over (execution_id, step_id,
// approver_id) backs decision idempotency; a violation maps to
// port.ErrAlreadyDecided and the stored row is never modified.
func (r *DecisionRepository) Create(ctx context.Context, decision *entity.ApprovalDecision) error {
	query := `
		INSERT INTO approval_decisions (
			execution_id, step_id, approver_id, decision, reason, decided_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		decision.ExecutionID,
		decision.StepID,
		decision.ApproverID,
		decision.Decision,
		decision.Reason,
		decision.DecidedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrAlreadyDecided
		}
		r.logger.Error("Failed to create decision",
			zap.Int64("execution_id", decision.ExecutionID),
			zap.String("approver_id", decision.ApproverID),
			zap.Error(err))
		return fmt.Errorf("failed to create decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	decision.ID = id
	return nil
}

// ListByExecution returns all decisions of an execution ordered by decided-at
func (r *DecisionRepository) ListByExecution(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error) {
	query := `
		SELECT id, execution_id, step_id, approver_id, decision, reason, decided_at
		FROM approval_decisions
		WHERE execution_id = ?
		ORDER BY decided_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, executionID)
	if err != nil {
		r.logger.Error("Failed to list decisions", zap.Int64("execution_id", executionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*entity.ApprovalDecision
	for rows.Next() {
		var d entity.ApprovalDecision
		err := rows.Scan(
			&d.ID,
			&d.ExecutionID,
			&d.StepID,
			&d.ApproverID,
			&d.Decision,
			&d.Reason,
			&d.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

// Verify interface compliance
var _ port.DecisionRepository = (*DecisionRepository)(nil)
