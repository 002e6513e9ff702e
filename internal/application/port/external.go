package port

import (
	"context"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// ExpenseService is the external collaborator owning the expense entity.
// The engine reads a snapshot for matching and allocation and writes status
// transitions back; it never owns the record.
type ExpenseService interface {
	GetExpense(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error)
	SetApprovalStatus(ctx context.Context, tenantID, expenseID, status string) error
	SetAllocationStatus(ctx context.Context, tenantID, expenseID, status string) error
}

// MembershipSource resolves organizational unit membership for UnitRole
// approver specs. Validity window: valid_from <= asOf < valid_until, or an
// open-ended valid_until.
type MembershipSource interface {
	MembersOf(ctx context.Context, tenantID, orgUnitID, roleLevel string, asOf time.Time) ([]string, error)
}

// PermissionSource resolves Permission approver specs via the external
// authorization collaborator.
type PermissionSource interface {
	UsersWithPermission(ctx context.Context, tenantID, permission string) ([]string, error)
}

// DimensionLookup checks dimension entity existence and tenant visibility
// (global or tenant-scoped records).
type DimensionLookup interface {
	Exists(ctx context.Context, tenantID string, kind entity.DimensionKind, entityID string) (bool, error)
}

// Notifier delivers fire-and-forget notifications on execution start,
// decisions and terminal transitions. Delivery failures are logged, never
// surfaced to the request.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, body string) error
}
