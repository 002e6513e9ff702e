package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// ErrInvalidWorkflow is returned when a workflow definition fails
// structural validation.
var ErrInvalidWorkflow = errors.New("invalid workflow definition")

// WorkflowService manages tenant workflow definitions. Definitions are
// append-and-deactivate: they are never deleted while executions reference
// them.
type WorkflowService interface {
	// Create validates and persists a definition with steps and specs.
	Create(ctx context.Context, def *entity.WorkflowDefinition) error

	// Get loads one definition, fully loaded.
	Get(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error)

	// List returns a page of the tenant's definitions.
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowDefinition, error)

	// SetActive enables or disables a definition.
	SetActive(ctx context.Context, tenantID string, id int64, active bool) error
}

type workflowServiceImpl struct {
	workflows port.WorkflowRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(workflows port.WorkflowRepository, txManager port.TransactionManager, logger Logger) WorkflowService {
	return &workflowServiceImpl{
		workflows: workflows,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *workflowServiceImpl) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.workflows.Create(txCtx, def)
	})
	if err != nil {
		s.logger.Error("Failed to create workflow", "error", err, "tenant_id", def.TenantID)
		return err
	}

	s.logger.Info("Workflow created",
		"workflow_id", def.ID, "tenant_id", def.TenantID, "steps", len(def.Steps))
	return nil
}

func (s *workflowServiceImpl) Get(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error) {
	return s.workflows.GetByID(ctx, tenantID, id)
}

func (s *workflowServiceImpl) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowDefinition, error) {
	return s.workflows.List(ctx, tenantID, limit, offset)
}

func (s *workflowServiceImpl) SetActive(ctx context.Context, tenantID string, id int64, active bool) error {
	if err := s.workflows.SetActive(ctx, tenantID, id, active); err != nil {
		return err
	}
	s.logger.Info("Workflow activation changed", "workflow_id", id, "active", active)
	return nil
}

// validateDefinition checks the structural invariants a definition must
// satisfy before it can ever match or run.
func validateDefinition(def *entity.WorkflowDefinition) error {
	if def.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidWorkflow)
	}
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}
	if def.MatchAmountMin != nil && def.MatchAmountMax != nil && def.MatchAmountMin.GreaterThan(*def.MatchAmountMax) {
		return fmt.Errorf("%w: amount bounds are inverted", ErrInvalidWorkflow)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidWorkflow)
	}

	seenOrders := make(map[int]bool, len(def.Steps))
	for _, step := range def.Steps {
		if seenOrders[step.StepOrder] {
			return fmt.Errorf("%w: duplicate step order %d", ErrInvalidWorkflow, step.StepOrder)
		}
		seenOrders[step.StepOrder] = true

		if len(step.ApproverSpecs) == 0 {
			return fmt.Errorf("%w: step %d has no approver specs", ErrInvalidWorkflow, step.StepOrder)
		}
		if !step.RequireAllApprovers && step.MinApprovers < 1 {
			return fmt.Errorf("%w: step %d min approvers must be at least 1", ErrInvalidWorkflow, step.StepOrder)
		}
		for _, spec := range step.ApproverSpecs {
			if err := validateSpec(spec); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidWorkflow, step.StepOrder, err)
			}
		}
	}

	for _, cond := range def.MatchConditions {
		switch cond.Operator {
		case entity.MatchEquals:
			if cond.Attribute == "" || cond.Value == "" {
				return fmt.Errorf("%w: EQUALS condition needs attribute and value", ErrInvalidWorkflow)
			}
		case entity.MatchIn:
			if cond.Attribute == "" || len(cond.Values) == 0 {
				return fmt.Errorf("%w: IN condition needs attribute and values", ErrInvalidWorkflow)
			}
		default:
			return fmt.Errorf("%w: unknown match operator %q", ErrInvalidWorkflow, cond.Operator)
		}
	}
	return nil
}

func validateSpec(spec *entity.ApproverSpec) error {
	switch spec.Kind {
	case entity.ApproverUser:
		if spec.UserID == "" {
			return errors.New("USER spec needs user_id")
		}
	case entity.ApproverUnitRole:
		if spec.OrgUnitID == "" || spec.RoleLevel == "" {
			return errors.New("UNIT_ROLE spec needs org_unit_id and role_level")
		}
	case entity.ApproverPermission:
		if spec.Permission == "" {
			return errors.New("PERMISSION spec needs permission")
		}
	default:
		return fmt.Errorf("unknown approver kind %q", spec.Kind)
	}
	return nil
}
