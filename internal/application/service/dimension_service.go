package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/allocation"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// DimensionRegistry is the per-tenant source of truth for which allocation
// dimension kinds may be used and in what display order. Reads dominate;
// writes are rare and idempotent (upsert by tenant+kind).
type DimensionRegistry interface {
	// IsEnabled reports whether the kind is enabled for the tenant.
	IsEnabled(ctx context.Context, tenantID string, kind entity.DimensionKind) (bool, error)

	// EnabledKinds returns the tenant's enabled kinds in display order.
	EnabledKinds(ctx context.Context, tenantID string) ([]entity.DimensionKind, error)

	// EnabledSet returns the enabled kinds as a set, for the allocation
	// validator.
	EnabledSet(ctx context.Context, tenantID string) (map[entity.DimensionKind]bool, error)

	// SetConfiguration upserts the tenant's override for one kind.
	SetConfiguration(ctx context.Context, tenantID string, kind entity.DimensionKind, enabled bool, displayOrder int) error

	// ResetToDefaults clears all tenant overrides, reverting to the
	// built-in default set.
	ResetToDefaults(ctx context.Context, tenantID string) error

	// ListConfiguration returns the effective configuration for the whole
	// catalog, overrides applied.
	ListConfiguration(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error)
}

type dimensionRegistryImpl struct {
	configs port.DimensionConfigRepository
	logger  Logger
}

// NewDimensionRegistry creates a DimensionRegistry over the configuration
// repository.
func NewDimensionRegistry(configs port.DimensionConfigRepository, logger Logger) DimensionRegistry {
	return &dimensionRegistryImpl{configs: configs, logger: logger}
}

// effective returns the tenant's configuration rows, falling back to the
// built-in default set when the tenant has no overrides at all. Once at
// least one override exists, unconfigured kinds are disabled.
func (s *dimensionRegistryImpl) effective(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error) {
	rows, err := s.configs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}

	defaults := entity.DefaultEnabledDimensionKinds()
	out := make([]*entity.TenantDimensionConfig, 0, len(defaults))
	for i, kind := range defaults {
		out = append(out, &entity.TenantDimensionConfig{
			TenantID:     tenantID,
			Kind:         kind,
			Enabled:      true,
			DisplayOrder: i + 1,
		})
	}
	return out, nil
}

func (s *dimensionRegistryImpl) IsEnabled(ctx context.Context, tenantID string, kind entity.DimensionKind) (bool, error) {
	if !kind.IsValid() {
		return false, fmt.Errorf("%w: %s", allocation.ErrUnknownDimensionKind, kind)
	}
	rows, err := s.effective(ctx, tenantID)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Kind == kind {
			return row.Enabled, nil
		}
	}
	return false, nil
}

func (s *dimensionRegistryImpl) EnabledKinds(ctx context.Context, tenantID string) ([]entity.DimensionKind, error) {
	rows, err := s.effective(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	enabled := make([]*entity.TenantDimensionConfig, 0, len(rows))
	for _, row := range rows {
		if row.Enabled {
			enabled = append(enabled, row)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].DisplayOrder < enabled[j].DisplayOrder
	})

	kinds := make([]entity.DimensionKind, 0, len(enabled))
	for _, row := range enabled {
		kinds = append(kinds, row.Kind)
	}
	return kinds, nil
}

func (s *dimensionRegistryImpl) EnabledSet(ctx context.Context, tenantID string) (map[entity.DimensionKind]bool, error) {
	kinds, err := s.EnabledKinds(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	set := make(map[entity.DimensionKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set, nil
}

func (s *dimensionRegistryImpl) SetConfiguration(ctx context.Context, tenantID string, kind entity.DimensionKind, enabled bool, displayOrder int) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %s", allocation.ErrUnknownDimensionKind, kind)
	}
	err := s.configs.Upsert(ctx, &entity.TenantDimensionConfig{
		TenantID:     tenantID,
		Kind:         kind,
		Enabled:      enabled,
		DisplayOrder: displayOrder,
	})
	if err != nil {
		s.logger.Error("Failed to set dimension configuration", "error", err, "tenant_id", tenantID, "kind", kind)
		return err
	}
	s.logger.Info("Dimension configuration updated", "tenant_id", tenantID, "kind", kind, "enabled", enabled)
	return nil
}

func (s *dimensionRegistryImpl) ResetToDefaults(ctx context.Context, tenantID string) error {
	if err := s.configs.DeleteByTenant(ctx, tenantID); err != nil {
		s.logger.Error("Failed to reset dimension configuration", "error", err, "tenant_id", tenantID)
		return err
	}
	s.logger.Info("Dimension configuration reset to defaults", "tenant_id", tenantID)
	return nil
}

func (s *dimensionRegistryImpl) ListConfiguration(ctx context.Context, tenantID string) ([]*entity.TenantDimensionConfig, error) {
	rows, err := s.effective(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byKind := make(map[entity.DimensionKind]*entity.TenantDimensionConfig, len(rows))
	for _, row := range rows {
		byKind[row.Kind] = row
	}

	// Full catalog view: unconfigured kinds surface as disabled.
	out := make([]*entity.TenantDimensionConfig, 0, len(entity.AllDimensionKinds()))
	nextOrder := len(rows) + 1
	for _, kind := range entity.AllDimensionKinds() {
		if row, ok := byKind[kind]; ok {
			out = append(out, row)
			continue
		}
		out = append(out, &entity.TenantDimensionConfig{
			TenantID:     tenantID,
			Kind:         kind,
			Enabled:      false,
			DisplayOrder: nextOrder,
		})
		nextOrder++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}
