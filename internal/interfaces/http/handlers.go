package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jm-sky/saasbase-approvals/internal/application/engine"
	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/application/service"
	"github.com/jm-sky/saasbase-approvals/internal/domain/allocation"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService   service.ApprovalService
	allocationService service.AllocationService
	workflowService   service.WorkflowService
	dimensionRegistry service.DimensionRegistry
	reporter          *export.AllocationReporter
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	allocationService service.AllocationService,
	workflowService service.WorkflowService,
	dimensionRegistry service.DimensionRegistry,
	reporter *export.AllocationReporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService:   approvalService,
		allocationService: allocationService,
		workflowService:   workflowService,
		dimensionRegistry: dimensionRegistry,
		reporter:          reporter,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

func tenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}

// respondError maps domain and port sentinels to HTTP statuses
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, port.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, port.ErrDuplicateExecution),
		errors.Is(err, port.ErrAlreadyDecided),
		errors.Is(err, engine.ErrStepAlreadyCompleted),
		errors.Is(err, engine.ErrExecutionFinished),
		errors.Is(err, service.ErrCannotStartApproval):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidDecision),
		errors.Is(err, engine.ErrInvalidStepConfiguration),
		errors.Is(err, service.ErrInvalidWorkflow),
		errors.Is(err, allocation.ErrUnknownDimensionKind),
		errors.Is(err, allocation.ErrDimensionNotEnabled),
		errors.Is(err, allocation.ErrDimensionEntityNotFound),
		errors.Is(err, allocation.ErrInvalidAmount),
		errors.Is(err, allocation.ErrAllocationTotalMismatch),
		errors.Is(err, allocation.ErrNoLines):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ---- workflows ----

// ApproverSpecRequest is one approver spec in a workflow create request
type ApproverSpecRequest struct {
	Kind        string `json:"kind" binding:"required"`
	UserID      string `json:"user_id,omitempty"`
	RoleLevel   string `json:"role_level,omitempty"`
	OrgUnitID   string `json:"org_unit_id,omitempty"`
	Permission  string `json:"permission,omitempty"`
	CanDelegate bool   `json:"can_delegate"`
}

// StepRequest is one step in a workflow create request
type StepRequest struct {
	StepOrder           int                   `json:"step_order" binding:"required"`
	Name                string                `json:"name"`
	RequireAllApprovers bool                  `json:"require_all_approvers"`
	MinApprovers        int                   `json:"min_approvers"`
	ApproverSpecs       []ApproverSpecRequest `json:"approver_specs" binding:"required"`
}

// CreateWorkflowRequest is the workflow create payload
type CreateWorkflowRequest struct {
	Name            string                  `json:"name" binding:"required"`
	MatchAmountMin  *string                 `json:"match_amount_min,omitempty"`
	MatchAmountMax  *string                 `json:"match_amount_max,omitempty"`
	MatchConditions []entity.MatchCondition `json:"match_conditions,omitempty"`
	Priority        int                     `json:"priority"`
	Active          *bool                   `json:"active,omitempty"`
	Steps           []StepRequest           `json:"steps" binding:"required"`
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	def, err := req.toDefinition(tenantID(c))
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	if err := h.workflowService.Create(c.Request.Context(), def); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: def})
}

func (r *CreateWorkflowRequest) toDefinition(tenant string) (*entity.WorkflowDefinition, error) {
	def := &entity.WorkflowDefinition{
		TenantID:        tenant,
		Name:            r.Name,
		MatchConditions: r.MatchConditions,
		Priority:        r.Priority,
		Active:          true,
	}
	if r.Active != nil {
		def.Active = *r.Active
	}

	var err error
	if def.MatchAmountMin, err = parseAmount(r.MatchAmountMin); err != nil {
		return nil, fmt.Errorf("invalid match_amount_min: %v", err)
	}
	if def.MatchAmountMax, err = parseAmount(r.MatchAmountMax); err != nil {
		return nil, fmt.Errorf("invalid match_amount_max: %v", err)
	}

	for _, s := range r.Steps {
		step := &entity.WorkflowStep{
			StepOrder:           s.StepOrder,
			Name:                s.Name,
			RequireAllApprovers: s.RequireAllApprovers,
			MinApprovers:        s.MinApprovers,
		}
		if !s.RequireAllApprovers && step.MinApprovers == 0 {
			step.MinApprovers = 1
		}
		for _, spec := range s.ApproverSpecs {
			step.ApproverSpecs = append(step.ApproverSpecs, &entity.ApproverSpec{
				Kind:        entity.ApproverKind(spec.Kind),
				UserID:      spec.UserID,
				RoleLevel:   spec.RoleLevel,
				OrgUnitID:   spec.OrgUnitID,
				Permission:  spec.Permission,
				CanDelegate: spec.CanDelegate,
			})
		}
		def.Steps = append(def.Steps, step)
	}
	return def, nil
}

func parseAmount(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListWorkflowsRequest represents query parameters for listing workflows
type ListWorkflowsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	var req ListWorkflowsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	defs, err := h.workflowService.List(c.Request.Context(), tenantID(c), req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: defs})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid workflow ID")
		return
	}

	def, err := h.workflowService.Get(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// SetWorkflowActiveRequest is the activation toggle payload
type SetWorkflowActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetWorkflowActive handles PATCH /api/workflows/:id/active
func (h *Handlers) SetWorkflowActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid workflow ID")
		return
	}
	var req SetWorkflowActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	if err := h.workflowService.SetActive(c.Request.Context(), tenantID(c), id, *req.Active); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ---- approval lifecycle ----

// StartApprovalRequest is the start-approval payload
type StartApprovalRequest struct {
	InitiatorID string `json:"initiator_id" binding:"required"`
}

// StartApproval handles POST /api/expenses/:expense_id/approval
func (h *Handlers) StartApproval(c *gin.Context) {
	var req StartApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.approvalService.StartApproval(c.Request.Context(), tenantID(c), c.Param("expense_id"), req.InitiatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// CanStartApproval handles GET /api/expenses/:expense_id/approval/can-start
func (h *Handlers) CanStartApproval(c *gin.Context) {
	can, reason, err := h.approvalService.CanStartApproval(c.Request.Context(), tenantID(c), c.Param("expense_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"can_start": can,
		"reason":    reason,
	}})
}

// ListExecutions handles GET /api/expenses/:expense_id/executions
func (h *Handlers) ListExecutions(c *gin.Context) {
	execs, err := h.approvalService.ListExecutions(c.Request.Context(), c.Param("expense_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: execs})
}

// GetExecution handles GET /api/executions/:id
func (h *Handlers) GetExecution(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid execution ID")
		return
	}

	history, err := h.approvalService.GetExecutionHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// DecisionRequest is the record-decision payload
type DecisionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes,omitempty"`
}

// RecordDecision handles POST /api/executions/:id/decisions
func (h *Handlers) RecordDecision(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid execution ID")
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	exec, err := h.approvalService.ProcessDecision(c.Request.Context(), id, req.UserID, req.Decision, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: exec})
}

// CancelExecutionRequest is the cancel payload
type CancelExecutionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CancelExecution handles POST /api/executions/:id/cancel
func (h *Handlers) CancelExecution(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid execution ID")
		return
	}
	var req CancelExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	exec, err := h.approvalService.CancelExecution(c.Request.Context(), id, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: exec})
}

// CanDecide handles GET /api/executions/:id/can-decide?user_id=
func (h *Handlers) CanDecide(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.badRequest(c, "invalid execution ID")
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		h.badRequest(c, "missing user_id")
		return
	}

	can, err := h.approvalService.CanUserMakeDecision(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	reason := ""
	if !can {
		reason, err = h.approvalService.GetCannotDecideReason(c.Request.Context(), id, userID)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"can_decide": can,
		"reason":     reason,
	}})
}

// ---- allocations ----

// AllocationsRequest is the allocation create/validate payload
type AllocationsRequest struct {
	Lines []allocation.ProposedLine `json:"lines" binding:"required"`
}

// CreateAllocations handles POST /api/expenses/:expense_id/allocations
func (h *Handlers) CreateAllocations(c *gin.Context) {
	var req AllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	lines, err := h.allocationService.Allocate(c.Request.Context(), tenantID(c), c.Param("expense_id"), req.Lines)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: lines})
}

// ValidateAllocations handles POST /api/expenses/:expense_id/allocations/validate
func (h *Handlers) ValidateAllocations(c *gin.Context) {
	var req AllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	lines, err := h.allocationService.Validate(c.Request.Context(), tenantID(c), c.Param("expense_id"), req.Lines)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: lines})
}

// AutoAllocateRequest is the auto-allocation payload. Weights are optional;
// omitted means an even split.
type AutoAllocateRequest struct {
	Targets [][]allocation.ProposedTag `json:"targets" binding:"required"`
	Weights []string                   `json:"weights,omitempty"`
}

// AutoAllocate handles POST /api/expenses/:expense_id/allocations/auto
func (h *Handlers) AutoAllocate(c *gin.Context) {
	var req AutoAllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	var weights []decimal.Decimal
	for _, w := range req.Weights {
		d, err := decimal.NewFromString(w)
		if err != nil {
			h.badRequest(c, "invalid weight: "+w)
			return
		}
		weights = append(weights, d)
	}

	lines, err := h.allocationService.AutoAllocate(c.Request.Context(), tenantID(c), c.Param("expense_id"), req.Targets, weights)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: lines})
}

// ListAllocations handles GET /api/expenses/:expense_id/allocations
func (h *Handlers) ListAllocations(c *gin.Context) {
	lines, err := h.allocationService.ListByExpense(c.Request.Context(), tenantID(c), c.Param("expense_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: lines})
}

// RemainingAmount handles GET /api/expenses/:expense_id/allocations/remaining
func (h *Handlers) RemainingAmount(c *gin.Context) {
	remaining, err := h.allocationService.Remaining(c.Request.Context(), tenantID(c), c.Param("expense_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"remaining": remaining,
	}})
}

// DownloadAllocationReport handles GET /api/expenses/:expense_id/allocations/report
func (h *Handlers) DownloadAllocationReport(c *gin.Context) {
	expenseID := c.Param("expense_id")
	f, err := h.reporter.Build(c.Request.Context(), tenantID(c), expenseID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="allocations-%s.xlsx"`, expenseID))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if _, err := f.WriteTo(c.Writer); err != nil {
		h.logger.Error("Failed to stream allocation report", "error", err, "expense_id", expenseID)
	}
}

// ---- dimension configuration ----

// ListDimensionConfiguration handles GET /api/dimensions
func (h *Handlers) ListDimensionConfiguration(c *gin.Context) {
	configs, err := h.dimensionRegistry.ListConfiguration(c.Request.Context(), tenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: configs})
}

// SetDimensionRequest is the dimension configuration payload
type SetDimensionRequest struct {
	Enabled      *bool `json:"enabled" binding:"required"`
	DisplayOrder int   `json:"display_order"`
}

// SetDimensionConfiguration handles PUT /api/dimensions/:kind
func (h *Handlers) SetDimensionConfiguration(c *gin.Context) {
	var req SetDimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	kind := entity.DimensionKind(c.Param("kind"))
	err := h.dimensionRegistry.SetConfiguration(c.Request.Context(), tenantID(c), kind, *req.Enabled, req.DisplayOrder)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ResetDimensionConfiguration handles POST /api/dimensions/reset
func (h *Handlers) ResetDimensionConfiguration(c *gin.Context) {
	if err := h.dimensionRegistry.ResetToDefaults(c.Request.Context(), tenantID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}
