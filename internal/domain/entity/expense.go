package entity

import "github.com/shopspring/decimal"

// Expense approval status values written back to the expense collaborator.
const (
	ExpenseApprovalNone     = "NONE"
	ExpenseApprovalPending  = "PENDING"
	ExpenseApprovalApproved = "APPROVED"
	ExpenseApprovalRejected = "REJECTED"
)

// Expense statuses in which approval may be started or allocation changed.
const (
	ExpenseStatusDraft      = "DRAFT"
	ExpenseStatusProcessing = "PROCESSING"
	ExpenseStatusClosed     = "CLOSED"
)

// Expense is the read snapshot of an expense owned by the external expense
// collaborator. The engine matches and allocates against it but never owns
// the record.
type Expense struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	TotalGross     decimal.Decimal   `json:"total_gross"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	ApprovalStatus string            `json:"approval_status"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// Approvable returns true when the expense is in a status that permits
// starting an approval or changing its allocation.
func (e *Expense) Approvable() bool {
	return e.Status == ExpenseStatusDraft || e.Status == ExpenseStatusProcessing
}
