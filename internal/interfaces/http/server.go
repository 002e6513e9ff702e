// Package http provides the HTTP adapter for the application layer.
// This is a thin adapter that translates HTTP requests to application
// service calls; no approval or allocation rules live here.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jm-sky/saasbase-approvals/internal/application/service"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/export"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config            ServerConfig
	httpServer        *http.Server
	router            *gin.Engine
	approvalService   service.ApprovalService
	allocationService service.AllocationService
	workflowService   service.WorkflowService
	dimensionRegistry service.DimensionRegistry
	reporter          *export.AllocationReporter
	logger            Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	approvalService service.ApprovalService,
	allocationService service.AllocationService,
	workflowService service.WorkflowService,
	dimensionRegistry service.DimensionRegistry,
	reporter *export.AllocationReporter,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:            config,
		router:            router,
		approvalService:   approvalService,
		allocationService: allocationService,
		workflowService:   workflowService,
		dimensionRegistry: dimensionRegistry,
		reporter:          reporter,
		logger:            logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware allows cross-origin access for back-office frontends
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Tenant-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.approvalService, s.allocationService, s.workflowService, s.dimensionRegistry, s.reporter, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	// API routes; all carry the tenant in the X-Tenant-ID header
	api := s.router.Group("/api", tenantMiddleware())
	{
		// Workflow definitions
		api.GET("/workflows", handlers.ListWorkflows)
		api.POST("/workflows", handlers.CreateWorkflow)
		api.GET("/workflows/:id", handlers.GetWorkflow)
		api.PATCH("/workflows/:id/active", handlers.SetWorkflowActive)

		// Approval lifecycle
		api.POST("/expenses/:expense_id/approval", handlers.StartApproval)
		api.GET("/expenses/:expense_id/approval/can-start", handlers.CanStartApproval)
		api.GET("/expenses/:expense_id/executions", handlers.ListExecutions)
		api.GET("/executions/:id", handlers.GetExecution)
		api.POST("/executions/:id/decisions", handlers.RecordDecision)
		api.POST("/executions/:id/cancel", handlers.CancelExecution)
		api.GET("/executions/:id/can-decide", handlers.CanDecide)

		// Allocations
		api.GET("/expenses/:expense_id/allocations", handlers.ListAllocations)
		api.POST("/expenses/:expense_id/allocations", handlers.CreateAllocations)
		api.POST("/expenses/:expense_id/allocations/validate", handlers.ValidateAllocations)
		api.POST("/expenses/:expense_id/allocations/auto", handlers.AutoAllocate)
		api.GET("/expenses/:expense_id/allocations/remaining", handlers.RemainingAmount)
		api.GET("/expenses/:expense_id/allocations/report", handlers.DownloadAllocationReport)

		// Dimension configuration
		api.GET("/dimensions", handlers.ListDimensionConfiguration)
		api.PUT("/dimensions/:kind", handlers.SetDimensionConfiguration)
		api.POST("/dimensions/reset", handlers.ResetDimensionConfiguration)
	}
}

// tenantMiddleware requires the X-Tenant-ID header on API routes
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "missing X-Tenant-ID header",
			})
			return
		}
		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
