package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/sqlite"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sqlite.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a workflow definition with its steps and approver specs.
// The caller wraps it in a transaction so the aggregate is written whole.
func (r *WorkflowRepository) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	conditions, err := json.Marshal(def.MatchConditions)
	if err != nil {
		return fmt.Errorf("failed to marshal match conditions: %w", err)
	}

	query := `
		INSERT INTO approval_workflows (
			tenant_id, name, match_amount_min, match_amount_max,
			match_conditions, priority, active
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		def.TenantID,
		def.Name,
		decimalToNull(def.MatchAmountMin),
		decimalToNull(def.MatchAmountMax),
		string(conditions),
		def.Priority,
		def.Active,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	def.ID = id

	for _, step := range def.Steps {
		if err := r.createStep(ctx, id, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *WorkflowRepository) createStep(ctx context.Context, workflowID int64, step *entity.WorkflowStep) error {
	query := `
		INSERT INTO workflow_steps (
			workflow_id, step_order, name, require_all_approvers, min_approvers
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		workflowID,
		step.StepOrder,
		step.Name,
		step.RequireAllApprovers,
		step.MinApprovers,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow step", zap.Int64("workflow_id", workflowID), zap.Error(err))
		return fmt.Errorf("failed to create workflow step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	step.ID = id
	step.WorkflowID = workflowID

	for _, spec := range step.ApproverSpecs {
		if err := r.createSpec(ctx, id, spec); err != nil {
			return err
		}
	}
	return nil
}

func (r *WorkflowRepository) createSpec(ctx context.Context, stepID int64, spec *entity.ApproverSpec) error {
	query := `
		INSERT INTO step_approver_specs (
			step_id, kind, user_id, role_level, org_unit_id, permission, can_delegate
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		stepID,
		string(spec.Kind),
		spec.UserID,
		spec.RoleLevel,
		spec.OrgUnitID,
		spec.Permission,
		spec.CanDelegate,
	)
	if err != nil {
		r.logger.Error("Failed to create approver spec", zap.Int64("step_id", stepID), zap.Error(err))
		return fmt.Errorf("failed to create approver spec: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	spec.ID = id
	spec.StepID = stepID
	return nil
}

// GetByID retrieves a workflow with steps and approver specs
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID string, id int64) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, name, match_amount_min, match_amount_max,
			match_conditions, priority, active, created_at, updated_at
		FROM approval_workflows
		WHERE tenant_id = ? AND id = ?
	`

	def, err := r.scanWorkflow(r.db.Executor(ctx).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if err := r.loadSteps(ctx, []*entity.WorkflowDefinition{def}); err != nil {
		return nil, err
	}
	return def, nil
}

// ListActive returns all active workflows of a tenant, fully loaded
func (r *WorkflowRepository) ListActive(ctx context.Context, tenantID string) ([]*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, name, match_amount_min, match_amount_max,
			match_conditions, priority, active, created_at, updated_at
		FROM approval_workflows
		WHERE tenant_id = ? AND active = 1
		ORDER BY created_at ASC, id ASC
	`
	return r.queryWorkflows(ctx, query, tenantID)
}

// List returns a page of workflows of a tenant, fully loaded
func (r *WorkflowRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, name, match_amount_min, match_amount_max,
			match_conditions, priority, active, created_at, updated_at
		FROM approval_workflows
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	return r.queryWorkflows(ctx, query, tenantID, limit, offset)
}

// SetActive enables or disables a workflow
func (r *WorkflowRepository) SetActive(ctx context.Context, tenantID string, id int64, active bool) error {
	query := `
		UPDATE approval_workflows
		SET active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, active, tenantID, id)
	if err != nil {
		r.logger.Error("Failed to set workflow active", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set workflow active: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowDefinition, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		def, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadSteps(ctx, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *WorkflowRepository) scanWorkflow(row rowScanner) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	var amountMin, amountMax sql.NullString
	var conditions string

	err := row.Scan(
		&def.ID,
		&def.TenantID,
		&def.Name,
		&amountMin,
		&amountMax,
		&conditions,
		&def.Priority,
		&def.Active,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if def.MatchAmountMin, err = decimalFromNull(amountMin); err != nil {
		return nil, fmt.Errorf("invalid match_amount_min: %w", err)
	}
	if def.MatchAmountMax, err = decimalFromNull(amountMax); err != nil {
		return nil, fmt.Errorf("invalid match_amount_max: %w", err)
	}
	if conditions != "" {
		if err := json.Unmarshal([]byte(conditions), &def.MatchConditions); err != nil {
			return nil, fmt.Errorf("invalid match_conditions: %w", err)
		}
	}
	return &def, nil
}

// loadSteps attaches steps and approver specs to the given workflows.
func (r *WorkflowRepository) loadSteps(ctx context.Context, defs []*entity.WorkflowDefinition) error {
	byWorkflow := make(map[int64]*entity.WorkflowDefinition, len(defs))
	for _, def := range defs {
		byWorkflow[def.ID] = def
	}
	if len(byWorkflow) == 0 {
		return nil
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, workflow_id, step_order, name, require_all_approvers, min_approvers, created_at
		FROM workflow_steps
		WHERE workflow_id IN (`+placeholders(len(byWorkflow))+`)
		ORDER BY workflow_id, step_order
	`, workflowIDs(defs)...)
	if err != nil {
		r.logger.Error("Failed to load workflow steps", zap.Error(err))
		return fmt.Errorf("failed to load workflow steps: %w", err)
	}
	defer rows.Close()

	bySteps := make(map[int64]*entity.WorkflowStep)
	for rows.Next() {
		var step entity.WorkflowStep
		err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.StepOrder,
			&step.Name,
			&step.RequireAllApprovers,
			&step.MinApprovers,
			&step.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}
		def := byWorkflow[step.WorkflowID]
		if def == nil {
			continue
		}
		def.Steps = append(def.Steps, &step)
		bySteps[step.ID] = &step
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(bySteps) == 0 {
		return nil
	}

	specRows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, step_id, kind, user_id, role_level, org_unit_id, permission, can_delegate, created_at
		FROM step_approver_specs
		WHERE step_id IN (`+placeholders(len(bySteps))+`)
		ORDER BY step_id, id
	`, stepIDs(bySteps)...)
	if err != nil {
		r.logger.Error("Failed to load approver specs", zap.Error(err))
		return fmt.Errorf("failed to load approver specs: %w", err)
	}
	defer specRows.Close()

	for specRows.Next() {
		var spec entity.ApproverSpec
		var kind string
		err := specRows.Scan(
			&spec.ID,
			&spec.StepID,
			&kind,
			&spec.UserID,
			&spec.RoleLevel,
			&spec.OrgUnitID,
			&spec.Permission,
			&spec.CanDelegate,
			&spec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan approver spec: %w", err)
		}
		spec.Kind = entity.ApproverKind(kind)
		if step := bySteps[spec.StepID]; step != nil {
			step.ApproverSpecs = append(step.ApproverSpecs, &spec)
		}
	}
	return specRows.Err()
}

func workflowIDs(defs []*entity.WorkflowDefinition) []interface{} {
	ids := make([]interface{}, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}
	return ids
}

func stepIDs(steps map[int64]*entity.WorkflowStep) []interface{} {
	ids := make([]interface{}, 0, len(steps))
	for id := range steps {
		ids = append(ids, id)
	}
	return ids
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}

func decimalToNull(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalFromNull(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
