package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/sqlite"
)

// DimensionConfigRepository implements port.DimensionConfigRepository
type DimensionConfigRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDimensionConfigRepository creates a new dimension config repository
func NewDimensionConfigRepository(db *sqlite.DB, logger *zap.Logger) port.DimensionConfigRepository {
	return &DimensionConfigRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the configuration for (tenant, kind); repeated writes with
// the same payload are idempotent.
func (r *DimensionConfigRepository) Upsert(ctx context.Context, cfg *entity.TenantDimensionConfig) error {
	query := `
		INSERT INTO tenant_dimension_configs (tenant_id, kind, enabled, display_order)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, kind) DO UPDATE SET
			enabled = excluded.enabled,
			display_order = excluded.display_order,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		cfg.TenantID,
		string(cfg.Kind),
		cfg.Enabled,
		cfg.DisplayOrder,
	)
	if err != nil {
		r.logger.Error("Failed to upsert dimension config",
			zap.String("tenant_id", cfg.TenantID),
			zap.String("kind", cfg.Kind.String()),
			zap.Error(err))
		return fmt.Errorf("failed to upsert dimension config: %w", err)
	}
	return nil
}

// ListByTenant returns the tenant's overrides ordered by display order
func (r *DimensionConfigRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error) {
	query := `
		SELECT id, tenant_id, kind, enabled, display_order, created_at, updated_at
		FROM tenant_dimension_configs
		WHERE tenant_id = ?
		ORDER BY display_order ASC, kind ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to list dimension configs", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list dimension configs: %w", err)
	}
	defer rows.Close()

	var configs []*entity.TenantDimensionConfig
	for rows.Next() {
		var cfg entity.TenantDimensionConfig
		var kind string
		err := rows.Scan(
			&cfg.ID,
			&cfg.TenantID,
			&kind,
			&cfg.Enabled,
			&cfg.DisplayOrder,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dimension config: %w", err)
		}
		cfg.Kind = entity.DimensionKind(kind)
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// DeleteByTenant clears all overrides, reverting the tenant to defaults
func (r *DimensionConfigRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	query := `DELETE FROM tenant_dimension_configs WHERE tenant_id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to delete dimension configs", zap.String("tenant_id", tenantID), zap.Error(err))
		return fmt.Errorf("failed to delete dimension configs: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.DimensionConfigRepository = (*DimensionConfigRepository)(nil)
