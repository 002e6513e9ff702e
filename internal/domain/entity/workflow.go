package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchOperator is the comparison applied by a single match condition.
type MatchOperator string

const (
	MatchEquals MatchOperator = "EQUALS"
	MatchIn     MatchOperator = "IN"
)

// MatchCondition is one conjunctive predicate over an expense attribute.
// All conditions of a definition must hold for the definition to match.
type MatchCondition struct {
	Attribute string        `json:"attribute"`
	Operator  MatchOperator `json:"operator"`
	Value     string        `json:"value,omitempty"`
	Values    []string      `json:"values,omitempty"`
}

// WorkflowDefinition is a tenant-configured approval workflow. Definitions
// may overlap in matched range; the matcher picks exactly one by priority,
// ties broken by earliest creation.
type WorkflowDefinition struct {
	ID             int64            `json:"id"`
	TenantID       string           `json:"tenant_id"`
	Name           string           `json:"name"`
	MatchAmountMin *decimal.Decimal `json:"match_amount_min,omitempty"` // inclusive; nil = unbounded
	MatchAmountMax *decimal.Decimal `json:"match_amount_max,omitempty"` // inclusive; nil = unbounded
	MatchConditions []MatchCondition `json:"match_conditions,omitempty"`
	Priority       int              `json:"priority"` // higher wins
	Active         bool             `json:"active"`
	Steps          []*WorkflowStep  `json:"steps,omitempty"` // ordered by StepOrder
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// WorkflowStep is one stage of a workflow. Step orders are strictly
// increasing within a workflow but need not be contiguous; execution always
// advances to the next higher order.
type WorkflowStep struct {
	ID                  int64           `json:"id"`
	WorkflowID          int64           `json:"workflow_id"`
	StepOrder           int             `json:"step_order"`
	Name                string          `json:"name"`
	RequireAllApprovers bool            `json:"require_all_approvers"`
	MinApprovers        int             `json:"min_approvers"` // used when RequireAllApprovers is false
	ApproverSpecs       []*ApproverSpec `json:"approver_specs,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ApproverKind discriminates the ApproverSpec variants.
type ApproverKind string

const (
	ApproverUser       ApproverKind = "USER"
	ApproverUnitRole   ApproverKind = "UNIT_ROLE"
	ApproverPermission ApproverKind = "PERMISSION"
)

// ApproverSpec declares who may decide on a step. Exactly one variant's
// fields are populated, selected by Kind. Specs resolve to concrete user
// sets at decision time; resolution is never cached across requests because
// organizational membership changes over time.
type ApproverSpec struct {
	ID          int64        `json:"id"`
	StepID      int64        `json:"step_id"`
	Kind        ApproverKind `json:"kind"`
	UserID      string       `json:"user_id,omitempty"`
	RoleLevel   string       `json:"role_level,omitempty"`
	OrgUnitID   string       `json:"org_unit_id,omitempty"`
	Permission  string       `json:"permission,omitempty"`
	CanDelegate bool         `json:"can_delegate"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NextStep returns the step with the lowest order strictly greater than
// after, or nil when the workflow has no further step.
func (w *WorkflowDefinition) NextStep(after int) *WorkflowStep {
	var next *WorkflowStep
	for _, s := range w.Steps {
		if s.StepOrder <= after {
			continue
		}
		if next == nil || s.StepOrder < next.StepOrder {
			next = s
		}
	}
	return next
}

// FirstStep returns the step with the lowest order, or nil for an empty
// workflow.
func (w *WorkflowDefinition) FirstStep() *WorkflowStep {
	var first *WorkflowStep
	for _, s := range w.Steps {
		if first == nil || s.StepOrder < first.StepOrder {
			first = s
		}
	}
	return first
}

// StepByID returns the step with the given id, or nil.
func (w *WorkflowDefinition) StepByID(stepID int64) *WorkflowStep {
	for _, s := range w.Steps {
		if s.ID == stepID {
			return s
		}
	}
	return nil
}
