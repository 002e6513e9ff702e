package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// Membership is one user's role assignment in an organizational unit with a
// validity window. ValidUntil nil means open-ended.
type Membership struct {
	UserID     string
	OrgUnitID  string
	RoleLevel  string
	ValidFrom  time.Time
	ValidUntil *time.Time
}

// Directory is an in-memory stand-in for the organization collaborators.
// It backs local development and tests; production deployments plug real
// adapters into the same ports.
type Directory struct {
	mu          sync.RWMutex
	memberships map[string][]Membership        // tenant -> assignments
	permissions map[string]map[string][]string // tenant -> permission -> users
	entities    map[string]map[string]bool     // tenant -> kind:id -> exists
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{
		memberships: make(map[string][]Membership),
		permissions: make(map[string]map[string][]string),
		entities:    make(map[string]map[string]bool),
	}
}

// AddMembership registers a role assignment
func (d *Directory) AddMembership(tenantID string, m Membership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memberships[tenantID] = append(d.memberships[tenantID], m)
}

// GrantPermission registers a permission holder
func (d *Directory) GrantPermission(tenantID, permission, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permissions[tenantID] == nil {
		d.permissions[tenantID] = make(map[string][]string)
	}
	d.permissions[tenantID][permission] = append(d.permissions[tenantID][permission], userID)
}

// AddDimensionEntity registers a dimension entity as existing
func (d *Directory) AddDimensionEntity(tenantID string, kind entity.DimensionKind, entityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entities[tenantID] == nil {
		d.entities[tenantID] = make(map[string]bool)
	}
	d.entities[tenantID][entityKey(kind, entityID)] = true
}

// MembersOf implements port.MembershipSource
func (d *Directory) MembersOf(ctx context.Context, tenantID, orgUnitID, roleLevel string, asOf time.Time) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var users []string
	for _, m := range d.memberships[tenantID] {
		if m.OrgUnitID != orgUnitID || m.RoleLevel != roleLevel {
			continue
		}
		if asOf.Before(m.ValidFrom) {
			continue
		}
		if m.ValidUntil != nil && !asOf.Before(*m.ValidUntil) {
			continue
		}
		users = append(users, m.UserID)
	}
	return users, nil
}

// UsersWithPermission implements port.PermissionSource
func (d *Directory) UsersWithPermission(ctx context.Context, tenantID, permission string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byPermission := d.permissions[tenantID]
	if byPermission == nil {
		return nil, nil
	}
	users := make([]string, len(byPermission[permission]))
	copy(users, byPermission[permission])
	return users, nil
}

// Exists implements port.DimensionLookup
func (d *Directory) Exists(ctx context.Context, tenantID string, kind entity.DimensionKind, entityID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entities[tenantID][entityKey(kind, entityID)], nil
}

func entityKey(kind entity.DimensionKind, entityID string) string {
	return string(kind) + ":" + entityID
}

// Verify interface compliance
var (
	_ port.MembershipSource = (*Directory)(nil)
	_ port.PermissionSource = (*Directory)(nil)
	_ port.DimensionLookup  = (*Directory)(nil)
)

// ExpenseStore is an in-memory stand-in for the expense collaborator.
type ExpenseStore struct {
	mu          sync.RWMutex
	expenses    map[string]*entity.Expense // tenant:id
	allocStatus map[string]string
}

// NewExpenseStore creates an empty expense store
func NewExpenseStore() *ExpenseStore {
	return &ExpenseStore{
		expenses:    make(map[string]*entity.Expense),
		allocStatus: make(map[string]string),
	}
}

// Put stores an expense snapshot
func (s *ExpenseStore) Put(expense *entity.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[expenseKey(expense.TenantID, expense.ID)] = expense
}

// GetExpense implements port.ExpenseService
func (s *ExpenseStore) GetExpense(ctx context.Context, tenantID, expenseID string) (*entity.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expenses[expenseKey(tenantID, expenseID)]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", expenseID, port.ErrNotFound)
	}
	snapshot := *expense
	return &snapshot, nil
}

// SetApprovalStatus implements port.ExpenseService
func (s *ExpenseStore) SetApprovalStatus(ctx context.Context, tenantID, expenseID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expenses[expenseKey(tenantID, expenseID)]
	if !ok {
		return fmt.Errorf("expense %s: %w", expenseID, port.ErrNotFound)
	}
	expense.ApprovalStatus = status
	return nil
}

// SetAllocationStatus implements port.ExpenseService
func (s *ExpenseStore) SetAllocationStatus(ctx context.Context, tenantID, expenseID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[expenseKey(tenantID, expenseID)]; !ok {
		return fmt.Errorf("expense %s: %w", expenseID, port.ErrNotFound)
	}
	s.allocStatus[expenseKey(tenantID, expenseID)] = status
	return nil
}

// AllocationStatus returns the last status written for an expense
func (s *ExpenseStore) AllocationStatus(tenantID, expenseID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allocStatus[expenseKey(tenantID, expenseID)]
}

func expenseKey(tenantID, expenseID string) string {
	return tenantID + ":" + expenseID
}

// Verify interface compliance
var _ port.ExpenseService = (*ExpenseStore)(nil)
