package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/dispatcher"
	"github.com/jm-sky/saasbase-approvals/internal/application/engine"
	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/application/resolver"
	"github.com/jm-sky/saasbase-approvals/internal/application/service"
	"github.com/jm-sky/saasbase-approvals/internal/config"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/export"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/external/lark"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/external/memory"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/repository"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/jm-sky/saasbase-approvals/internal/interfaces/http"
	"github.com/jm-sky/saasbase-approvals/pkg/database"
	"github.com/jm-sky/saasbase-approvals/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting approval service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database
	sqlDB, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer sqlDB.Close()

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	db := sqlite.NewDB(sqlDB.DB, logger)

	// Repositories
	workflowRepo := repository.NewWorkflowRepository(db, logger)
	executionRepo := repository.NewExecutionRepository(db, logger)
	decisionRepo := repository.NewDecisionRepository(db, logger)
	allocationRepo := repository.NewAllocationRepository(db, logger)
	dimensionRepo := repository.NewDimensionConfigRepository(db, logger)

	// External collaborators. The in-memory directory and expense store
	// serve local development; production deployments wire real adapters
	// behind the same ports.
	directory := memory.NewDirectory()
	expenses := memory.NewExpenseStore()

	var notifier port.Notifier
	if cfg.Lark.Enabled {
		larkClient := lark.NewClient(lark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, logger)
		notifier = lark.NewNotifier(larkClient, logger)
	} else {
		notifier = memory.NewLogNotifier(logger)
	}

	kv := utils.NewKVLogger(logger)

	// Application layer
	eventDispatcher := dispatcher.New(dispatcher.WithLogger(kv))
	defer eventDispatcher.Close()

	approverResolver := resolver.New(directory, directory, kv)
	approvalEngine := engine.New(
		executionRepo,
		decisionRepo,
		workflowRepo,
		approverResolver,
		db,
		kv,
		engine.WithDispatcher(eventDispatcher),
	)

	dimensionRegistry := service.NewDimensionRegistry(dimensionRepo, kv)
	allocationService := service.NewAllocationService(allocationRepo, dimensionRegistry, expenses, directory, db, eventDispatcher, kv)
	workflowService := service.NewWorkflowService(workflowRepo, db, kv)
	approvalService := service.NewApprovalService(workflowRepo, executionRepo, expenses, approvalEngine, approverResolver, eventDispatcher, kv)

	notifications := service.NewNotificationHandler(approvalEngine, workflowRepo, approverResolver, notifier, kv)
	notifications.Register(eventDispatcher)

	reporter := export.NewAllocationReporter(allocationRepo, expenses, logger)

	// HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		approvalService,
		allocationService,
		workflowService,
		dimensionRegistry,
		reporter,
		kv,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.yaml"
}
