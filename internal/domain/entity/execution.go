package entity

import "time"

// Execution status constants
const (
	ExecutionPending   = "PENDING"
	ExecutionApproved  = "APPROVED"
	ExecutionRejected  = "REJECTED"
	ExecutionCancelled = "CANCELLED"
)

// ApprovalExecution is one concrete run of a workflow against one expense.
// At most one PENDING execution may exist per expense; terminal executions
// are retained for audit.
type ApprovalExecution struct {
	ID            int64      `json:"id"`
	TenantID      string     `json:"tenant_id"`
	ExpenseID     string     `json:"expense_id"`
	WorkflowID    int64      `json:"workflow_id"`
	CurrentStepID *int64     `json:"current_step_id,omitempty"` // nil once terminal
	InitiatorID   string     `json:"initiator_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsTerminal returns true once the execution reached a final status.
func (e *ApprovalExecution) IsTerminal() bool {
	return e.Status != ExecutionPending
}
