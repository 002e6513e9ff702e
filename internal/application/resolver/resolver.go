package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/approval"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ApproverResolver resolves a step's declared approver specs to the
// concrete set of users entitled to decide, for a given point in time.
// Results are never cached across requests because organizational
// membership changes over time.
type ApproverResolver interface {
	// Resolve returns the de-duplicated union over all specs of the step,
	// sorted for determinism.
	Resolve(ctx context.Context, tenantID string, step *entity.WorkflowStep, asOf time.Time) ([]string, error)

	// CanDecide is the membership-test shorthand over Resolve.
	CanDecide(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time) (bool, error)

	// ExplainCannotDecide returns a user-facing reason why the user may not
	// decide on the step, considering decisions already recorded.
	ExplainCannotDecide(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time, decisions []*entity.ApprovalDecision) string
}

type resolverImpl struct {
	membership  port.MembershipSource
	permissions port.PermissionSource
	logger      Logger
}

// New creates an ApproverResolver over the external membership and
// authorization collaborators.
func New(membership port.MembershipSource, permissions port.PermissionSource, logger Logger) ApproverResolver {
	return &resolverImpl{
		membership:  membership,
		permissions: permissions,
		logger:      logger,
	}
}

// Resolve resolves every spec variant and unions the results.
func (r *resolverImpl) Resolve(ctx context.Context, tenantID string, step *entity.WorkflowStep, asOf time.Time) ([]string, error) {
	seen := make(map[string]bool)
	for _, spec := range step.ApproverSpecs {
		users, err := r.resolveSpec(ctx, tenantID, spec, asOf)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			seen[u] = true
		}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// resolveSpec resolves a single approver spec by variant.
func (r *resolverImpl) resolveSpec(ctx context.Context, tenantID string, spec *entity.ApproverSpec, asOf time.Time) ([]string, error) {
	switch spec.Kind {
	case entity.ApproverUser:
		return []string{spec.UserID}, nil

	case entity.ApproverUnitRole:
		users, err := r.membership.MembersOf(ctx, tenantID, spec.OrgUnitID, spec.RoleLevel, asOf)
		if err != nil {
			return nil, fmt.Errorf("resolve unit role %s/%s: %w", spec.OrgUnitID, spec.RoleLevel, err)
		}
		return users, nil

	case entity.ApproverPermission:
		users, err := r.permissions.UsersWithPermission(ctx, tenantID, spec.Permission)
		if err != nil {
			return nil, fmt.Errorf("resolve permission %s: %w", spec.Permission, err)
		}
		return users, nil

	default:
		return nil, fmt.Errorf("unknown approver spec kind: %s", spec.Kind)
	}
}

// CanDecide returns true when the user is in the step's resolved set.
func (r *resolverImpl) CanDecide(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time) (bool, error) {
	users, err := r.Resolve(ctx, tenantID, step, asOf)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

// ExplainCannotDecide builds a diagnostic for API pre-checks. Resolution
// errors degrade to a generic reason rather than failing the check.
func (r *resolverImpl) ExplainCannotDecide(ctx context.Context, tenantID string, step *entity.WorkflowStep, userID string, asOf time.Time, decisions []*entity.ApprovalDecision) string {
	if approval.DecisionBy(step.ID, userID, decisions) != nil {
		return "already decided on this step"
	}

	ok, err := r.CanDecide(ctx, tenantID, step, userID, asOf)
	if err != nil {
		r.logger.Error("Approver resolution failed", "step_id", step.ID, "error", err)
		return "approver eligibility could not be determined"
	}
	if ok {
		return ""
	}

	for _, spec := range step.ApproverSpecs {
		switch spec.Kind {
		case entity.ApproverUnitRole:
			return fmt.Sprintf("not a %s of unit %s", spec.RoleLevel, spec.OrgUnitID)
		case entity.ApproverPermission:
			return fmt.Sprintf("missing permission %s", spec.Permission)
		}
	}
	return "not an eligible approver for this step"
}
