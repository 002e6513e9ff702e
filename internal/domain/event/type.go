package event

// Type identifies the type of domain event
type Type string

const (
	TypeExecutionStarted   Type = "execution.started"
	TypeDecisionRecorded   Type = "execution.decision_recorded"
	TypeExecutionApproved  Type = "execution.approved"
	TypeExecutionRejected  Type = "execution.rejected"
	TypeExecutionCancelled Type = "execution.cancelled"
	TypeExpenseAutoApproved Type = "expense.auto_approved"
	TypeAllocationCreated  Type = "allocation.created"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExecutionStarted,
		TypeDecisionRecorded,
		TypeExecutionApproved,
		TypeExecutionRejected,
		TypeExecutionCancelled,
		TypeExpenseAutoApproved,
		TypeAllocationCreated:
		return true
	default:
		return false
	}
}

// Terminal reports whether the event marks an execution reaching a final
// status.
func (t Type) Terminal() bool {
	switch t {
	case TypeExecutionApproved, TypeExecutionRejected, TypeExecutionCancelled:
		return true
	default:
		return false
	}
}
