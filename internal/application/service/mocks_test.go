package service

import (
	"context"
	"sync"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/application/dispatcher"
	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/domain/event"
)

// Func-field mocks shared by the service tests.

type mockWorkflowRepo struct {
	createFunc     func(ctx context.Context, def *entity.WorkflowDefinition) error
	getByIDFunc    func(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error)
	listActiveFunc func(ctx context.Context, tenantID string) ([]*entity.WorkflowDefinition, error)
	listFunc       func(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowDefinition, error)
	setActiveFunc  func(ctx context.Context, tenantID string, id int64, active bool) error
}

func (m *mockWorkflowRepo) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, def)
	}
	def.ID = 1
	return nil
}

func (m *mockWorkflowRepo) GetByID(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, tenantID, id)
	}
	return &entity.WorkflowDefinition{ID: id, TenantID: tenantID, Active: true}, nil
}

func (m *mockWorkflowRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.WorkflowDefinition, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *mockWorkflowRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowDefinition, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, tenantID, limit, offset)
	}
	return nil, nil
}

func (m *mockWorkflowRepo) SetActive(ctx context.Context, tenantID string, id int64, active bool) error {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, tenantID, id, active)
	}
	return nil
}

type mockExecutionRepo struct {
	createFunc              func(ctx context.Context, exec *entity.ApprovalExecution) error
	getByIDFunc             func(ctx context.Context, id int64) (*entity.ApprovalExecution, error)
	getPendingByExpenseFunc func(ctx context.Context, expenseID string) (*entity.ApprovalExecution, error)
	listByExpenseFunc       func(ctx context.Context, expenseID string) ([]*entity.ApprovalExecution, error)
}

func (m *mockExecutionRepo) Create(ctx context.Context, exec *entity.ApprovalExecution) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, exec)
	}
	exec.ID = 1
	return nil
}

func (m *mockExecutionRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalExecution, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.ApprovalExecution{ID: id, Status: entity.ExecutionPending}, nil
}

func (m *mockExecutionRepo) GetPendingByExpense(ctx context.Context, expenseID string) (*entity.ApprovalExecution, error) {
	if m.getPendingByExpenseFunc != nil {
		return m.getPendingByExpenseFunc(ctx, expenseID)
	}
	return nil, port.ErrNotFound
}

func (m *mockExecutionRepo) AdvanceStep(ctx context.Context, id int64, stepID int64) error {
	return nil
}

func (m *mockExecutionRepo) Complete(ctx context.Context, id int64, status string, completedAt time.Time) error {
	return nil
}

func (m *mockExecutionRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalExecution, error) {
	if m.listByExpenseFunc != nil {
		return m.listByExpenseFunc(ctx, expenseID)
	}
	return nil, nil
}

type mockExpenseService struct {
	mu                     sync.Mutex
	getExpenseFunc         func(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error)
	approvalStatusWrites   []string
	allocationStatusWrites []string
	setApprovalErr         error
}

func (m *mockExpenseService) GetExpense(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error) {
	if m.getExpenseFunc != nil {
		return m.getExpenseFunc(ctx, tenantID, expenseID)
	}
	return &entity.Expense{ID: expenseID, TenantID: tenantID, Status: entity.ExpenseStatusDraft}, nil
}

func (m *mockExpenseService) SetApprovalStatus(ctx context.Context, tenantID, expenseID, status string) error {
	if m.setApprovalErr != nil {
		return m.setApprovalErr
	}
	m.mu.Lock()
	m.approvalStatusWrites = append(m.approvalStatusWrites, status)
	m.mu.Unlock()
	return nil
}

func (m *mockExpenseService) SetAllocationStatus(ctx context.Context, tenantID, expenseID, status string) error {
	m.mu.Lock()
	m.allocationStatusWrites = append(m.allocationStatusWrites, status)
	m.mu.Unlock()
	return nil
}

func (m *mockExpenseService) lastApprovalStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.approvalStatusWrites) == 0 {
		return ""
	}
	return m.approvalStatusWrites[len(m.approvalStatusWrites)-1]
}

func (m *mockExpenseService) lastAllocationStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.allocationStatusWrites) == 0 {
		return ""
	}
	return m.allocationStatusWrites[len(m.allocationStatusWrites)-1]
}

type mockEngine struct {
	startFunc          func(ctx context.Context, expense *entity.Expense, wf *entity.WorkflowDefinition, initiatorID string) (*entity.ApprovalExecution, error)
	recordDecisionFunc func(ctx context.Context, executionID int64, approverID, decision, reason string) (*entity.ApprovalExecution, error)
	cancelFunc         func(ctx context.Context, executionID int64, byUserID string) (*entity.ApprovalExecution, error)
	getExecutionFunc   func(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error)
	listDecisionsFunc  func(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error)
}

func (m *mockEngine) Start(ctx context.Context, expense *entity.Expense, wf *entity.WorkflowDefinition, initiatorID string) (*entity.ApprovalExecution, error) {
	if m.startFunc != nil {
		return m.startFunc(ctx, expense, wf, initiatorID)
	}
	firstStepID := int64(0)
	if first := wf.FirstStep(); first != nil {
		firstStepID = first.ID
	}
	return &entity.ApprovalExecution{
		ID:            1,
		TenantID:      wf.TenantID,
		ExpenseID:     expense.ID,
		WorkflowID:    wf.ID,
		CurrentStepID: &firstStepID,
		InitiatorID:   initiatorID,
		Status:        entity.ExecutionPending,
	}, nil
}

func (m *mockEngine) RecordDecision(ctx context.Context, executionID int64, approverID, decision, reason string) (*entity.ApprovalExecution, error) {
	if m.recordDecisionFunc != nil {
		return m.recordDecisionFunc(ctx, executionID, approverID, decision, reason)
	}
	return &entity.ApprovalExecution{ID: executionID, Status: entity.ExecutionPending}, nil
}

func (m *mockEngine) Cancel(ctx context.Context, executionID int64, byUserID string) (*entity.ApprovalExecution, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, executionID, byUserID)
	}
	return &entity.ApprovalExecution{ID: executionID, Status: entity.ExecutionCancelled}, nil
}

func (m *mockEngine) GetExecution(ctx context.Context, executionID int64) (*entity.ApprovalExecution, error) {
	if m.getExecutionFunc != nil {
		return m.getExecutionFunc(ctx, executionID)
	}
	return &entity.ApprovalExecution{ID: executionID, Status: entity.ExecutionPending}, nil
}

func (m *mockEngine) ListDecisions(ctx context.Context, executionID int64) ([]*entity.ApprovalDecision, error) {
	if m.listDecisionsFunc != nil {
		return m.listDecisionsFunc(ctx, executionID)
	}
	return nil, nil
}

type mockResolver struct {
	resolveFunc   func(ctx context.Context, tenantID string, step *entity.WorkflowStep, asOf time.Time) ([]string, error)
	canDecideFunc func(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time) (bool, error)
	explainFunc   func(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time, decisions []*entity.ApprovalDecision) string
}

func (m *mockResolver) Resolve(ctx context.Context, tenantID string, step *entity.WorkflowStep, asOf time.Time) ([]string, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, tenantID, step, asOf)
	}
	return nil, nil
}

func (m *mockResolver) CanDecide(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time) (bool, error) {
	if m.canDecideFunc != nil {
		return m.canDecideFunc(ctx, tenantID, step, userID, asOf)
	}
	return false, nil
}

func (m *mockResolver) ExplainCannotDecide(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time, decisions []*entity.ApprovalDecision) string {
	if m.explainFunc != nil {
		return m.explainFunc(ctx, tenantID, step, userID, asOf, decisions)
	}
	return ""
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.record(evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.record(evt)
}

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) record(evt *event.Event) {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
}

func (m *mockDispatcher) dispatched(eventType event.Type) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Type == eventType {
			return true
		}
	}
	return false
}

type mockAllocationRepo struct {
	mu                sync.Mutex
	created           []*entity.ExpenseAllocation
	createBatchFunc   func(ctx context.Context, lines []*entity.ExpenseAllocation) error
	listByExpenseFunc func(ctx context.Context, tenantID, expenseID string) ([]*entity.ExpenseAllocation, error)
}

func (m *mockAllocationRepo) CreateBatch(ctx context.Context, lines []*entity.ExpenseAllocation) error {
	if m.createBatchFunc != nil {
		return m.createBatchFunc(ctx, lines)
	}
	m.mu.Lock()
	m.created = append(m.created, lines...)
	m.mu.Unlock()
	return nil
}

func (m *mockAllocationRepo) ListByExpense(ctx context.Context, tenantID, expenseID string) ([]*entity.ExpenseAllocation, error) {
	if m.listByExpenseFunc != nil {
		return m.listByExpenseFunc(ctx, tenantID, expenseID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.ExpenseAllocation{}, m.created...), nil
}

func (m *mockAllocationRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	return nil
}

type mockDimensionConfigRepo struct {
	mu           sync.Mutex
	rows         []*entity.TenantDimensionConfig
	upsertFunc   func(ctx context.Context, cfg *entity.TenantDimensionConfig) error
	listFunc     func(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error)
	deleteCalled bool
}

func (m *mockDimensionConfigRepo) Upsert(ctx context.Context, cfg *entity.TenantDimensionConfig) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, cfg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.TenantID == cfg.TenantID && row.Kind == cfg.Kind {
			m.rows[i] = cfg
			return nil
		}
	}
	m.rows = append(m.rows, cfg)
	return nil
}

func (m *mockDimensionConfigRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, tenantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.TenantDimensionConfig
	for _, row := range m.rows {
		if row.TenantID == tenantID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockDimensionConfigRepo) DeleteByTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalled = true
	var kept []*entity.TenantDimensionConfig
	for _, row := range m.rows {
		if row.TenantID != tenantID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

type mockDimensionLookup struct {
	existsFunc func(ctx context.Context, tenantID string, kind entity.DimensionKind, entityID string) (bool, error)
}

func (m *mockDimensionLookup) Exists(ctx context.Context, tenantID string, kind entity.DimensionKind, entityID string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, tenantID, kind, entityID)
	}
	return true, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
