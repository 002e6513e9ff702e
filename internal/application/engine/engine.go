package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/application/dispatcher"
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

// Engine owns the persisted state machine of one expense-approval attempt:
// current step, collected decisions and the transitions between them. All
// state lives in the execution row and its append-only decision log; every
// operation runs inside one transaction so a crash mid-operation leaves no
// partial state.
type Engine interface {
	// Start creates a pending execution at the workflow's first step.
	// Fails with port.ErrDuplicateExecution when a pending execution exists
	// for the expense, and with ErrInvalidStepConfiguration when any step
	// resolves to zero approvers.
	Start(ctx context.Context, expense *entity.Expense, wf *entity.WorkflowDefinition, initiatorID string) (*entity.ApprovalExecution, error)

	// RecordDecision appends one approver's vote and drives the state
	// machine: a rejection vetoes the execution, an approval re-evaluates
	// the step's completion condition and advances or completes. Safe to
	// retry: a repeat of the same (execution, step, approver) surfaces
	// port.ErrAlreadyDecided without touching state.
	RecordDecision(ctx context.Context, executionID int64, approverID, decision, reason string) (*entity.ApprovalExecution, error)

	// Cancel terminates a pending execution; decisions are retained.
	Cancel(ctx context.Context, executionID int64, byUserID string) (*entity.ApprovalExecution, error)

	// GetExecution loads one execution.
	GetExecution(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error)

	// ListDecisions returns the execution's decision log.
	ListDecisions(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error)
}

type engineImpl struct {
	executions port.ExecutionRepository
	decisions  port.DecisionRepository
	workflows  port.WorkflowRepository
	resolver   resolver.ApproverResolver
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// Option configures the engine
type Option func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *engineImpl) {
		e.now = now
	}
}

// New creates an execution engine.
func New(
	executions port.ExecutionRepository,
	decisions port.DecisionRepository,
	workflows port.WorkflowRepository,
	approvers resolver.ApproverResolver,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) Engine {
	e := &engineImpl{
		executions: executions,
		decisions:  decisions,
		workflows:  workflows,
		resolver:   approvers,
		txManager:  txManager,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates the workflow's steps and inserts the execution. The
// pending-uniqueness check runs inside the same transaction as the insert;
// the partial unique index makes the loser of a concurrent start fail with
// ErrDuplicateExecution instead of creating a second execution.
func (e *engineImpl) Start(ctx context.Context, expense *entity.Expense, wf *entity.WorkflowDefinition, initiatorID string) (*entity.ApprovalExecution, error) {
	first := wf.FirstStep()
	if first == nil {
		return nil, fmt.Errorf("%w: workflow %d has no steps", ErrInvalidStepConfiguration, wf.ID)
	}

	asOf := e.now()
	for _, step := range wf.Steps {
		users, err := e.resolver.Resolve(ctx, wf.TenantID, step, asOf)
		if err != nil {
			return nil, fmt.Errorf("resolve approvers for step %d: %w", step.ID, err)
		}
		if len(users) == 0 {
			return nil, fmt.Errorf("%w: step %q resolves to zero approvers", ErrInvalidStepConfiguration, step.Name)
		}
	}

	exec := &entity.ApprovalExecution{
		TenantID:      wf.TenantID,
		ExpenseID:     expense.ID,
		WorkflowID:    wf.ID,
		CurrentStepID: &first.ID,
		InitiatorID:   initiatorID,
		Status:        entity.ExecutionPending,
		StartedAt:     asOf,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := e.executions.GetPendingByExpense(txCtx, expense.ID); err == nil {
			return port.ErrDuplicateExecution
		} else if err != port.ErrNotFound {
			return err
		}
		return e.executions.Create(txCtx, exec)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval execution started",
		"execution_id", exec.ID, "expense_id", expense.ID, "workflow_id", wf.ID)

	e.emit(ctx, event.TypeExecutionStarted, exec, map[string]interface{}{
		"workflow_name": wf.Name,
		"step_name":     first.Name,
		"initiator_id":  initiatorID,
	})
	return exec, nil
}

// RecordDecision applies one vote inside a single transaction. Step
// advancement is computed from a transaction-consistent read of all
// decisions, so two concurrent "final" approvals cannot both advance the
// step: sqlite serializes the writers and the loser re-evaluates against
// the committed log.
func (e *engineImpl) RecordDecision(ctx context.Context, executionID int64, approverID, decision, reason string) (*entity.ApprovalExecution, error) {
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDecision, decision)
	}

	var exec *entity.ApprovalExecution
	var terminalEvent event.Type
	var stepName string

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		exec, err = e.executions.GetByID(txCtx, executionID)
		if err != nil {
			return err
		}
		if exec.IsTerminal() || exec.CurrentStepID == nil {
			return ErrExecutionFinished
		}

		wf, err := e.workflows.GetByID(txCtx, exec.TenantID, exec.WorkflowID)
		if err != nil {
			return err
		}
		current := wf.StepByID(*exec.CurrentStepID)
		if current == nil {
			return fmt.Errorf("%w: current step %d not in workflow %d", ErrInvalidStepConfiguration, *exec.CurrentStepID, wf.ID)
		}

		asOf := e.now()
		eligible, err := e.resolver.Resolve(txCtx, exec.TenantID, current, asOf)
		if err != nil {
			return err
		}
		if !contains(eligible, approverID) {
			return e.classifyIneligible(txCtx, exec, wf, current, approverID, asOf)
		}

		rec := &entity.ApprovalDecision{
			ExecutionID: exec.ID,
			StepID:      current.ID,
			ApproverID:  approverID,
			Decision:    decision,
			Reason:      reason,
			DecidedAt:   asOf,
		}
		if err := e.decisions.Create(txCtx, rec); err != nil {
			return err
		}

		stepName = current.Name

		if decision == entity.DecisionRejected {
			return e.finish(txCtx, exec, approval.TriggerReject, asOf, &terminalEvent)
		}

		all, err := e.decisions.ListByExecution(txCtx, exec.ID)
		if err != nil {
			return err
		}
		if !approval.StepSatisfied(current, eligible, all) {
			return nil // stay on the step awaiting more decisions
		}

		next := wf.NextStep(current.StepOrder)
		if next == nil {
			return e.finish(txCtx, exec, approval.TriggerComplete, asOf, &terminalEvent)
		}
		if err := e.executions.AdvanceStep(txCtx, exec.ID, next.ID); err != nil {
			return err
		}
		exec.CurrentStepID = &next.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Decision recorded",
		"execution_id", exec.ID, "approver_id", approverID, "decision", decision, "status", exec.Status)

	e.emit(ctx, event.TypeDecisionRecorded, exec, map[string]interface{}{
		"approver_id": approverID,
		"decision":    decision,
		"step_name":   stepName,
	})
	if terminalEvent != "" {
		e.emit(ctx, terminalEvent, exec, map[string]interface{}{
			"approver_id": approverID,
		})
	}
	return exec, nil
}

// Cancel is allowed only while pending; the decision log stays for audit.
func (e *engineImpl) Cancel(ctx context.Context, executionID int64, byUserID string) (*entity.ApprovalExecution, error) {
	var exec *entity.ApprovalExecution
	var terminalEvent event.Type

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		exec, err = e.executions.GetByID(txCtx, executionID)
		if err != nil {
			return err
		}
		if exec.IsTerminal() {
			return ErrExecutionFinished
		}
		return e.finish(txCtx, exec, approval.TriggerCancel, e.now(), &terminalEvent)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval execution cancelled", "execution_id", exec.ID, "by", byUserID)

	e.emit(ctx, terminalEvent, exec, map[string]interface{}{
		"cancelled_by": byUserID,
	})
	return exec, nil
}

func (e *engineImpl) GetExecution(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error) {
	return e.executions.GetByID(ctx, executionID)
}

func (e *engineImpl) ListDecisions(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error) {
	return e.decisions.ListByExecution(ctx, executionID)
}

// finish fires the lifecycle trigger and persists the terminal status.
func (e *engineImpl) finish(ctx context.Context, exec *entity.ApprovalExecution, trigger approval.Trigger, at time.Time, terminalEvent *event.Type) error {
	lc, err := approval.NewLifecycle(approval.State(exec.Status))
	if err != nil {
		return err
	}
	if err := lc.Fire(trigger); err != nil {
		return err
	}

	status := lc.State().String()
	if err := e.executions.Complete(ctx, exec.ID, status, at); err != nil {
		return err
	}
	exec.Status = status
	exec.CurrentStepID = nil
	exec.CompletedAt = &at

	switch lc.State() {
	case approval.StateApproved:
		*terminalEvent = event.TypeExecutionApproved
	case approval.StateRejected:
		*terminalEvent = event.TypeExecutionRejected
	case approval.StateCancelled:
		*terminalEvent = event.TypeExecutionCancelled
	}
	return nil
}

// classifyIneligible distinguishes a late approver of a completed step from
// a user who was never eligible.
func (e *engineImpl) classifyIneligible(ctx context.Context, exec *entity.ApprovalExecution, wf *entity.WorkflowDefinition, current *entity.WorkflowStep, approverID string, asOf time.Time) error {
	for _, step := range wf.Steps {
		if step.StepOrder >= current.StepOrder {
			continue
		}
		eligible, err := e.resolver.Resolve(ctx, exec.TenantID, step, asOf)
		if err != nil {
			return err
		}
		if contains(eligible, approverID) {
			return fmt.Errorf("%w: step %q", ErrStepAlreadyCompleted, step.Name)
		}
	}
	return ErrNotAuthorized
}

// emit dispatches asynchronously so notification delivery never blocks the
// request.
func (e *engineImpl) emit(ctx context.Context, eventType event.Type, exec *entity.ApprovalExecution, payload map[string]interface{}) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, event.New(eventType, exec.TenantID, exec.ExpenseID, exec.ID, payload))
}

func contains(users []string, userID string) bool {
	for _, u := range users {
		if u == userID {
			return true
		}
	}
	return false
}
