package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/application/dispatcher"
	"github.com/jm-sky/saasbase-approvals/internal/application/engine"
	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/application/resolver"
	"github.com/jm-sky/saasbase-approvals/internal/domain/approval"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ErrCannotStartApproval is returned when the expense is not in a status
// that permits starting an approval.
var ErrCannotStartApproval = errors.New("expense is not in an approvable status")

// StartResult is the outcome of StartApproval. When no workflow applies the
// expense is auto-approved and no execution is created.
type StartResult struct {
	AutoApproved bool                      `json:"auto_approved"`
	Execution    *entity.ApprovalExecution `json:"execution,omitempty"`
}

// ExecutionHistory is an execution with its full decision log, for audit
// views.
type ExecutionHistory struct {
	Execution *entity.ApprovalExecution  `json:"execution"`
	Decisions []*entity.ApprovalDecision `json:"decisions"`
}

// ApprovalService exposes the two consumer entry points, start approval and
// process decision, plus the API-facing pre-checks around them.
type ApprovalService interface {
	// StartApproval matches the expense against the tenant's active
	// workflows and either starts an execution or signals auto-approval.
	StartApproval(ctx context.Context, tenantID, expenseID, initiatorID string) (*StartResult, error)

	// CanStartApproval reports whether approval may start, with a
	// human-readable reason when it may not.
	CanStartApproval(ctx context.Context, tenantID, expenseID string) (bool, string, error)

	// ProcessDecision records a decision, drives the state machine and, on
	// a terminal transition, updates the expense collaborator.
	ProcessDecision(ctx context.Context, executionID int64, userID, decision, notes string) (*entity.ApprovalExecution, error)

	// CancelExecution cancels a pending execution.
	CancelExecution(ctx context.Context, executionID int64, userID string) (*entity.ApprovalExecution, error)

	// CanUserMakeDecision mirrors the resolver's membership test for the
	// execution's current step.
	CanUserMakeDecision(ctx context.Context, executionID int64, userID string) (bool, error)

	// GetCannotDecideReason returns a user-facing diagnostic, empty when
	// the user may decide.
	GetCannotDecideReason(ctx context.Context, executionID int64, userID string) (string, error)

	// GetExecutionHistory returns one execution with its decision log.
	GetExecutionHistory(ctx context.Context, executionID int64) (*ExecutionHistory, error)

	// ListExecutions returns all executions of an expense, newest first.
	ListExecutions(ctx context.Context, expenseID string) ([]*entity.ApprovalExecution, error)
}

type approvalServiceImpl struct {
	workflows  port.WorkflowRepository
	executions port.ExecutionRepository
	expenses   port.ExpenseService
	engine     engine.Engine
	resolver   resolver.ApproverResolver
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(
	workflows port.WorkflowRepository,
	executions port.ExecutionRepository,
	expenses port.ExpenseService,
	eng engine.Engine,
	approvers resolver.ApproverResolver,
	d dispatcher.Dispatcher,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		workflows:  workflows,
		executions: executions,
		expenses:   expenses,
		engine:     eng,
		resolver:   approvers,
		dispatcher: d,
		logger:     logger,
	}
}

// StartApproval runs the matcher over the tenant's active definitions. No
// match means no execution: the expense is approved directly and the
// auto-approve signal returned.
func (s *approvalServiceImpl) StartApproval(ctx context.Context, tenantID, expenseID, initiatorID string) (*StartResult, error) {
	expense, err := s.expenses.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if !expense.Approvable() {
		return nil, fmt.Errorf("%w: status %s", ErrCannotStartApproval, expense.Status)
	}

	defs, err := s.workflows.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	matched := approval.Match(defs, expense.TotalGross, expense.Attributes)
	if matched == nil {
		if err := s.expenses.SetApprovalStatus(ctx, tenantID, expenseID, entity.ExpenseApprovalApproved); err != nil {
			return nil, fmt.Errorf("auto-approve expense: %w", err)
		}
		s.logger.Info("No applicable workflow, expense auto-approved", "expense_id", expenseID)
		if s.dispatcher != nil {
			s.dispatcher.DispatchAsync(ctx, event.New(event.TypeExpenseAutoApproved, tenantID, expenseID, 0, map[string]interface{}{
				"initiator_id": initiatorID,
			}))
		}
		return &StartResult{AutoApproved: true}, nil
	}

	exec, err := s.engine.Start(ctx, expense, matched, initiatorID)
	if err != nil {
		return nil, err
	}
	if err := s.expenses.SetApprovalStatus(ctx, tenantID, expenseID, entity.ExpenseApprovalPending); err != nil {
		s.logger.Error("Failed to set expense approval status", "error", err, "expense_id", expenseID)
		return nil, err
	}
	return &StartResult{Execution: exec}, nil
}

func (s *approvalServiceImpl) CanStartApproval(ctx context.Context, tenantID, expenseID string) (bool, string, error) {
	expense, err := s.expenses.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return false, "", err
	}
	if !expense.Approvable() {
		return false, fmt.Sprintf("expense status %s does not permit approval", expense.Status), nil
	}
	if _, err := s.executions.GetPendingByExpense(ctx, expenseID); err == nil {
		return false, "an approval is already pending for this expense", nil
	} else if err != port.ErrNotFound {
		return false, "", err
	}
	return true, "", nil
}

// ProcessDecision delegates to the engine and, when the execution turned
// terminal, pushes the outcome to the expense collaborator.
func (s *approvalServiceImpl) ProcessDecision(ctx context.Context, executionID int64, userID, decision, notes string) (*entity.ApprovalExecution, error) {
	exec, err := s.engine.RecordDecision(ctx, executionID, userID, decision, notes)
	if err != nil {
		return nil, err
	}
	if exec.IsTerminal() {
		if err := s.syncExpenseStatus(ctx, exec); err != nil {
			return nil, err
		}
	}
	return exec, nil
}

func (s *approvalServiceImpl) CancelExecution(ctx context.Context, executionID int64, userID string) (*entity.ApprovalExecution, error) {
	exec, err := s.engine.Cancel(ctx, executionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.syncExpenseStatus(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// syncExpenseStatus maps a terminal execution status onto the expense's
// approval status. Cancellation clears the status so approval can be
// restarted.
func (s *approvalServiceImpl) syncExpenseStatus(ctx context.Context, exec *entity.ApprovalExecution) error {
	var status string
	switch exec.Status {
	case entity.ExecutionApproved:
		status = entity.ExpenseApprovalApproved
	case entity.ExecutionRejected:
		status = entity.ExpenseApprovalRejected
	case entity.ExecutionCancelled:
		status = entity.ExpenseApprovalNone
	default:
		return nil
	}
	if err := s.expenses.SetApprovalStatus(ctx, exec.TenantID, exec.ExpenseID, status); err != nil {
		s.logger.Error("Failed to sync expense approval status",
			"error", err, "expense_id", exec.ExpenseID, "status", status)
		return err
	}
	return nil
}

func (s *approvalServiceImpl) CanUserMakeDecision(ctx context.Context, executionID int64, userID string) (bool, error) {
	step, exec, err := s.currentStep(ctx, executionID)
	if err != nil {
		return false, err
	}
	if step == nil {
		return false, nil
	}
	return s.resolver.CanDecide(ctx, exec.TenantID, step, userID, time.Now())
}

func (s *approvalServiceImpl) GetCannotDecideReason(ctx context.Context, executionID int64, userID string) (string, error) {
	step, exec, err := s.currentStep(ctx, executionID)
	if err != nil {
		return "", err
	}
	if step == nil {
		return "execution is not awaiting decisions", nil
	}
	decisions, err := s.engine.ListDecisions(ctx, executionID)
	if err != nil {
		return "", err
	}
	return s.resolver.ExplainCannotDecide(ctx, exec.TenantID, step, userID, time.Now(), decisions), nil
}

func (s *approvalServiceImpl) GetExecutionHistory(ctx context.Context, executionID int64) (*ExecutionHistory, error) {
	exec, err := s.engine.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	decisions, err := s.engine.ListDecisions(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return &ExecutionHistory{Execution: exec, Decisions: decisions}, nil
}

func (s *approvalServiceImpl) ListExecutions(ctx context.Context, expenseID string) ([]*entity.ApprovalExecution, error) {
	return s.executions.ListByExpense(ctx, expenseID)
}

// currentStep loads the execution's current step, nil when terminal.
func (s *approvalServiceImpl) currentStep(ctx context.Context, executionID int64) (*entity.WorkflowStep, *entity.ApprovalExecution, error) {
	exec, err := s.engine.GetExecution(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	if exec.IsTerminal() || exec.CurrentStepID == nil {
		return nil, exec, nil
	}
	wf, err := s.workflows.GetByID(ctx, exec.TenantID, exec.WorkflowID)
	if err != nil {
		return nil, nil, err
	}
	return wf.StepByID(*exec.CurrentStepID), exec, nil
}
