package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/domain/event"
)

func draftExpense(amount string) *entity.Expense {
	return &entity.Expense{
		ID:         "exp-1",
		TenantID:   "tenant-1",
		TotalGross: decimal.RequireFromString(amount),
		Currency:   "PLN",
		Status:     entity.ExpenseStatusDraft,
	}
}

func activeWorkflow() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		ID:       1,
		TenantID: "tenant-1",
		Name:     "standard",
		Active:   true,
		Steps: []*entity.WorkflowStep{
			{ID: 11, WorkflowID: 1, StepOrder: 1, Name: "Manager review", MinApprovers: 1},
		},
	}
}

func newApprovalService(workflows *mockWorkflowRepo, executions *mockExecutionRepo, expenses *mockExpenseService, eng *mockEngine, res *mockResolver, d *mockDispatcher) ApprovalService {
	return NewApprovalService(workflows, executions, expenses, eng, res, d, &mockLogger{})
}

func TestApprovalService_StartApproval(t *testing.T) {
	tests := []struct {
		name             string
		expense          *entity.Expense
		active           []*entity.WorkflowDefinition
		wantAutoApproved bool
		wantStatus       string
		wantErr          error
	}{
		{
			name:             "no matching workflow auto-approves",
			expense:          draftExpense("50.00"),
			active:           nil,
			wantAutoApproved: true,
			wantStatus:       entity.ExpenseApprovalApproved,
		},
		{
			name:       "matching workflow starts execution",
			expense:    draftExpense("500.00"),
			active:     []*entity.WorkflowDefinition{activeWorkflow()},
			wantStatus: entity.ExpenseApprovalPending,
		},
		{
			name: "amount outside all bounds auto-approves",
			expense: draftExpense("50.00"),
			active: []*entity.WorkflowDefinition{
				func() *entity.WorkflowDefinition {
					wf := activeWorkflow()
					min := decimal.RequireFromString("100.00")
					wf.MatchAmountMin = &min
					return wf
				}(),
			},
			wantAutoApproved: true,
			wantStatus:       entity.ExpenseApprovalApproved,
		},
		{
			name: "closed expense cannot start",
			expense: &entity.Expense{
				ID: "exp-1", TenantID: "tenant-1", Status: entity.ExpenseStatusClosed,
			},
			wantErr: ErrCannotStartApproval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expenses := &mockExpenseService{
				getExpenseFunc: func(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error) {
					return tt.expense, nil
				},
			}
			workflows := &mockWorkflowRepo{
				listActiveFunc: func(ctx context.Context, tenantID string) ([]*entity.WorkflowDefinition, error) {
					return tt.active, nil
				},
			}
			d := &mockDispatcher{}
			svc := newApprovalService(workflows, &mockExecutionRepo{}, expenses, &mockEngine{}, &mockResolver{}, d)

			result, err := svc.StartApproval(context.Background(), "tenant-1", "exp-1", "applicant-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("StartApproval() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("StartApproval() error = %v", err)
			}
			if result.AutoApproved != tt.wantAutoApproved {
				t.Errorf("AutoApproved = %v, want %v", result.AutoApproved, tt.wantAutoApproved)
			}
			if tt.wantAutoApproved && result.Execution != nil {
				t.Error("Execution != nil on auto-approval")
			}
			if !tt.wantAutoApproved && result.Execution == nil {
				t.Error("Execution = nil when a workflow matched")
			}
			if got := expenses.lastApprovalStatus(); got != tt.wantStatus {
				t.Errorf("expense approval status = %q, want %q", got, tt.wantStatus)
			}
			if tt.wantAutoApproved && !d.dispatched(event.TypeExpenseAutoApproved) {
				t.Error("auto-approval event was not dispatched")
			}
		})
	}
}

func TestApprovalService_StartApproval_PicksHighestPriority(t *testing.T) {
	low := activeWorkflow()
	low.ID = 1
	low.Priority = 1
	high := activeWorkflow()
	high.ID = 2
	high.Priority = 10

	expenses := &mockExpenseService{
		getExpenseFunc: func(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error) {
			return draftExpense("500.00"), nil
		},
	}
	workflows := &mockWorkflowRepo{
		listActiveFunc: func(ctx context.Context, tenantID string) ([]*entity.WorkflowDefinition, error) {
			return []*entity.WorkflowDefinition{low, high}, nil
		},
	}
	var startedWith int64
	eng := &mockEngine{
		startFunc: func(ctx context.Context, expense *entity.Expense, wf *entity.WorkflowDefinition, initiatorID string) (*entity.ApprovalExecution, error) {
			startedWith = wf.ID
			return &entity.ApprovalExecution{ID: 1, TenantID: wf.TenantID, ExpenseID: expense.ID, WorkflowID: wf.ID, Status: entity.ExecutionPending}, nil
		},
	}

	svc := newApprovalService(workflows, &mockExecutionRepo{}, expenses, eng, &mockResolver{}, &mockDispatcher{})
	if _, err := svc.StartApproval(context.Background(), "tenant-1", "exp-1", "applicant-1"); err != nil {
		t.Fatalf("StartApproval() error = %v", err)
	}
	if startedWith != high.ID {
		t.Errorf("engine started with workflow %d, want %d", startedWith, high.ID)
	}
}

func TestApprovalService_CanStartApproval(t *testing.T) {
	tests := []struct {
		name       string
		expense    *entity.Expense
		executions *mockExecutionRepo
		wantOK     bool
		wantReason bool
	}{
		{
			name:       "draft expense with no pending execution",
			expense:    draftExpense("100.00"),
			executions: &mockExecutionRepo{},
			wantOK:     true,
		},
		{
			name:    "pending execution blocks restart",
			expense: draftExpense("100.00"),
			executions: &mockExecutionRepo{
				getPendingByExpenseFunc: func(ctx context.Context, expenseID string) (*entity.ApprovalExecution, error) {
					return &entity.ApprovalExecution{ID: 1, Status: entity.ExecutionPending}, nil
				},
			},
			wantOK:     false,
			wantReason: true,
		},
		{
			name: "closed expense blocks start",
			expense: &entity.Expense{
				ID: "exp-1", TenantID: "tenant-1", Status: entity.ExpenseStatusClosed,
			},
			executions: &mockExecutionRepo{},
			wantOK:     false,
			wantReason: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expenses := &mockExpenseService{
				getExpenseFunc: func(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error) {
					return tt.expense, nil
				},
			}
			svc := newApprovalService(&mockWorkflowRepo{}, tt.executions, expenses, &mockEngine{}, &mockResolver{}, &mockDispatcher{})

			ok, reason, err := svc.CanStartApproval(context.Background(), "tenant-1", "exp-1")
			if err != nil {
				t.Fatalf("CanStartApproval() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("CanStartApproval() = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantReason && reason == "" {
				t.Error("expected a reason, got empty string")
			}
		})
	}
}

func TestApprovalService_ProcessDecision_SyncsExpense(t *testing.T) {
	tests := []struct {
		name       string
		terminal   string
		wantStatus string
	}{
		{name: "approval", terminal: entity.ExecutionApproved, wantStatus: entity.ExpenseApprovalApproved},
		{name: "rejection", terminal: entity.ExecutionRejected, wantStatus: entity.ExpenseApprovalRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &mockEngine{
				recordDecisionFunc: func(ctx context.Context, executionID int64, approverID, decision, reason string) (*entity.ApprovalExecution, error) {
					return &entity.ApprovalExecution{
						ID: executionID, TenantID: "tenant-1", ExpenseID: "exp-1", Status: tt.terminal,
					}, nil
				},
			}
			expenses := &mockExpenseService{}
			svc := newApprovalService(&mockWorkflowRepo{}, &mockExecutionRepo{}, expenses, eng, &mockResolver{}, &mockDispatcher{})

			exec, err := svc.ProcessDecision(context.Background(), 1, "manager-1", entity.DecisionApproved, "")
			if err != nil {
				t.Fatalf("ProcessDecision() error = %v", err)
			}
			if exec.Status != tt.terminal {
				t.Errorf("execution status = %s, want %s", exec.Status, tt.terminal)
			}
			if got := expenses.lastApprovalStatus(); got != tt.wantStatus {
				t.Errorf("expense approval status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestApprovalService_ProcessDecision_NonTerminalSkipsSync(t *testing.T) {
	expenses := &mockExpenseService{}
	svc := newApprovalService(&mockWorkflowRepo{}, &mockExecutionRepo{}, expenses, &mockEngine{}, &mockResolver{}, &mockDispatcher{})

	if _, err := svc.ProcessDecision(context.Background(), 1, "manager-1", entity.DecisionApproved, ""); err != nil {
		t.Fatalf("ProcessDecision() error = %v", err)
	}
	if got := expenses.lastApprovalStatus(); got != "" {
		t.Errorf("expense approval status = %q written for non-terminal execution", got)
	}
}

func TestApprovalService_CancelExecution(t *testing.T) {
	eng := &mockEngine{
		cancelFunc: func(ctx context.Context, executionID int64, byUserID string) (*entity.ApprovalExecution, error) {
			return &entity.ApprovalExecution{
				ID: executionID, TenantID: "tenant-1", ExpenseID: "exp-1", Status: entity.ExecutionCancelled,
			}, nil
		},
	}
	expenses := &mockExpenseService{}
	svc := newApprovalService(&mockWorkflowRepo{}, &mockExecutionRepo{}, expenses, eng, &mockResolver{}, &mockDispatcher{})

	exec, err := svc.CancelExecution(context.Background(), 1, "applicant-1")
	if err != nil {
		t.Fatalf("CancelExecution() error = %v", err)
	}
	if exec.Status != entity.ExecutionCancelled {
		t.Errorf("status = %s, want CANCELLED", exec.Status)
	}
	// Cancellation resets the expense so approval can be restarted.
	if got := expenses.lastApprovalStatus(); got != entity.ExpenseApprovalNone {
		t.Errorf("expense approval status = %q, want %q", got, entity.ExpenseApprovalNone)
	}
}

func TestApprovalService_CanUserMakeDecision(t *testing.T) {
	stepID := int64(11)
	wf := activeWorkflow()

	t.Run("pending execution delegates to resolver", func(t *testing.T) {
		eng := &mockEngine{
			getExecutionFunc: func(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error) {
				return &entity.ApprovalExecution{
					ID: executionID, TenantID: "tenant-1", WorkflowID: wf.ID,
					CurrentStepID: &stepID, Status: entity.ExecutionPending,
				}, nil
			},
		}
		workflows := &mockWorkflowRepo{
			getByIDFunc: func(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error) {
				return wf, nil
			},
		}
		res := &mockResolver{
			canDecideFunc: func(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time) (bool, error) {
				return userID == "manager-1", nil
			},
		}
		svc := newApprovalService(workflows, &mockExecutionRepo{}, &mockExpenseService{}, eng, res, &mockDispatcher{})

		ok, err := svc.CanUserMakeDecision(context.Background(), 1, "manager-1")
		if err != nil || !ok {
			t.Errorf("CanUserMakeDecision(manager-1) = (%v, %v), want (true, nil)", ok, err)
		}
		ok, err = svc.CanUserMakeDecision(context.Background(), 1, "stranger")
		if err != nil || ok {
			t.Errorf("CanUserMakeDecision(stranger) = (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("terminal execution always false", func(t *testing.T) {
		eng := &mockEngine{
			getExecutionFunc: func(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error) {
				return &entity.ApprovalExecution{ID: executionID, Status: entity.ExecutionApproved}, nil
			},
		}
		svc := newApprovalService(&mockWorkflowRepo{}, &mockExecutionRepo{}, &mockExpenseService{}, eng, &mockResolver{}, &mockDispatcher{})

		ok, err := svc.CanUserMakeDecision(context.Background(), 1, "manager-1")
		if err != nil || ok {
			t.Errorf("CanUserMakeDecision() on terminal = (%v, %v), want (false, nil)", ok, err)
		}

		reason, err := svc.GetCannotDecideReason(context.Background(), 1, "manager-1")
		if err != nil || reason == "" {
			t.Errorf("GetCannotDecideReason() on terminal = (%q, %v), want a reason", reason, err)
		}
	})
}

func TestApprovalService_GetExecutionHistory(t *testing.T) {
	eng := &mockEngine{
		getExecutionFunc: func(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error) {
			return &entity.ApprovalExecution{ID: executionID, Status: entity.ExecutionApproved}, nil
		},
		listDecisionsFunc: func(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error) {
			return []*entity.ApprovalDecision{
				{ID: 1, ExecutionID: executionID, ApproverID: "manager-1", Decision: entity.DecisionApproved},
			}, nil
		},
	}
	svc := newApprovalService(&mockWorkflowRepo{}, &mockExecutionRepo{}, &mockExpenseService{}, eng, &mockResolver{}, &mockDispatcher{})

	history, err := svc.GetExecutionHistory(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetExecutionHistory() error = %v", err)
	}
	if history.Execution == nil || history.Execution.ID != 7 {
		t.Errorf("history execution = %v, want id 7", history.Execution)
	}
	if len(history.Decisions) != 1 {
		t.Errorf("history has %d decisions, want 1", len(history.Decisions))
	}
}
