package entity

import "time"

// Decision value constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// ApprovalDecision is one approver's immutable vote on one step of one
// execution. Uniqueness over (execution, step, approver) is a hard
// invariant; the engine only ever appends decisions, for new steps.
type ApprovalDecision struct {
	ID          int64     `json:"id"`
	ExecutionID int64     `json:"execution_id"`
	StepID      int64     `json:"step_id"`
	ApproverID  string    `json:"approver_id"`
	Decision    string    `json:"decision"`
	Reason      string    `json:"reason,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
}

// IsApproval returns true for an APPROVED decision.
func (d *ApprovalDecision) IsApproval() bool {
	return d.Decision == DecisionApproved
}
