package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/application/dispatcher"
	"github.com/jm-sky/saasbase-approvals/internal/application/engine"
	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/application/resolver"
	"github.com/jm-sky/saasbase-approvals/internal/domain/event"
)

// NotificationHandler turns approval lifecycle events into user
// notifications: current-step approvers are told when their turn starts, the
// initiator is told about every decision and the final outcome.
type NotificationHandler struct {
	engine    engine.Engine
	workflows port.WorkflowRepository
	resolver  resolver.ApproverResolver
	notifier  port.Notifier
	logger    Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(
	eng engine.Engine,
	workflows port.WorkflowRepository,
	approvers resolver.ApproverResolver,
	notifier port.Notifier,
	logger Logger,
) *NotificationHandler {
	return &NotificationHandler{
		engine:    eng,
		workflows: workflows,
		resolver:  approvers,
		notifier:  notifier,
		logger:    logger,
	}
}

// Register subscribes the handler to the dispatcher.
func (h *NotificationHandler) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeExecutionStarted, "notify-approvers", h.HandleExecutionStarted)
	d.SubscribeNamed(event.TypeDecisionRecorded, "notify-initiator-decision", h.HandleDecisionRecorded)
	d.SubscribeNamed(event.TypeExecutionApproved, "notify-initiator-approved", h.HandleExecutionFinished)
	d.SubscribeNamed(event.TypeExecutionRejected, "notify-initiator-rejected", h.HandleExecutionFinished)
	d.SubscribeNamed(event.TypeExecutionCancelled, "notify-initiator-cancelled", h.HandleExecutionFinished)
}

// HandleExecutionStarted notifies the approvers of the first step.
func (h *NotificationHandler) HandleExecutionStarted(ctx context.Context, evt *event.Event) error {
	subject := "Expense awaiting your approval"
	body := fmt.Sprintf("Expense %s entered workflow %q at step %q and awaits your decision.",
		evt.ExpenseID, evt.GetPayloadString("workflow_name"), evt.GetPayloadString("step_name"))
	return h.notifyCurrentApprovers(ctx, evt, subject, body)
}

// HandleDecisionRecorded notifies the initiator about the decision and, when
// the execution advanced to a new step, the next step's approvers.
func (h *NotificationHandler) HandleDecisionRecorded(ctx context.Context, evt *event.Event) error {
	exec, err := h.engine.GetExecution(ctx, evt.ExecutionID)
	if err != nil {
		return fmt.Errorf("load execution %d: %w", evt.ExecutionID, err)
	}

	subject := "Approval decision recorded"
	body := fmt.Sprintf("Approver %s recorded %s on step %q of expense %s.",
		evt.GetPayloadString("approver_id"), evt.GetPayloadString("decision"),
		evt.GetPayloadString("step_name"), evt.ExpenseID)
	h.send(ctx, exec.InitiatorID, subject, body)

	if !exec.IsTerminal() {
		next := "Expense awaiting your approval"
		nextBody := fmt.Sprintf("Expense %s reached your approval step and awaits your decision.", evt.ExpenseID)
		return h.notifyCurrentApprovers(ctx, evt, next, nextBody)
	}
	return nil
}

// HandleExecutionFinished notifies the initiator about the terminal outcome.
func (h *NotificationHandler) HandleExecutionFinished(ctx context.Context, evt *event.Event) error {
	exec, err := h.engine.GetExecution(ctx, evt.ExecutionID)
	if err != nil {
		return fmt.Errorf("load execution %d: %w", evt.ExecutionID, err)
	}

	var subject, body string
	switch evt.Type {
	case event.TypeExecutionApproved:
		subject = "Expense approved"
		body = fmt.Sprintf("Expense %s completed approval.", evt.ExpenseID)
	case event.TypeExecutionRejected:
		subject = "Expense rejected"
		body = fmt.Sprintf("Expense %s was rejected by %s.", evt.ExpenseID, evt.GetPayloadString("approver_id"))
	case event.TypeExecutionCancelled:
		subject = "Approval cancelled"
		body = fmt.Sprintf("Approval of expense %s was cancelled by %s.", evt.ExpenseID, evt.GetPayloadString("cancelled_by"))
	default:
		return nil
	}
	h.send(ctx, exec.InitiatorID, subject, body)
	return nil
}

// notifyCurrentApprovers resolves the execution's current step and sends the
// same message to every eligible approver.
func (h *NotificationHandler) notifyCurrentApprovers(ctx context.Context, evt *event.Event, subject, body string) error {
	exec, err := h.engine.GetExecution(ctx, evt.ExecutionID)
	if err != nil {
		return fmt.Errorf("load execution %d: %w", evt.ExecutionID, err)
	}
	if exec.IsTerminal() || exec.CurrentStepID == nil {
		return nil
	}
	wf, err := h.workflows.GetByID(ctx, exec.TenantID, exec.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow %d: %w", exec.WorkflowID, err)
	}
	step := wf.StepByID(*exec.CurrentStepID)
	if step == nil {
		return nil
	}
	users, err := h.resolver.Resolve(ctx, exec.TenantID, step, time.Now())
	if err != nil {
		return fmt.Errorf("resolve approvers for step %d: %w", step.ID, err)
	}
	for _, userID := range users {
		h.send(ctx, userID, subject, body)
	}
	return nil
}

// send delivers one notification; failures are logged and swallowed so a
// single unreachable user does not abort the batch.
func (h *NotificationHandler) send(ctx context.Context, userID, subject, body string) {
	if err := h.notifier.Notify(ctx, userID, subject, body); err != nil {
		h.logger.Error("Failed to deliver notification", "error", err, "user_id", userID, "subject", subject)
	}
}
