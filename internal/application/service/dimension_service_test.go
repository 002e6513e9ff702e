package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jm-sky/saasbase-approvals/internal/domain/allocation"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

func TestDimensionRegistry_Defaults(t *testing.T) {
	registry := NewDimensionRegistry(&mockDimensionConfigRepo{}, &mockLogger{})

	kinds, err := registry.EnabledKinds(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("EnabledKinds() error = %v", err)
	}
	if !reflect.DeepEqual(kinds, entity.DefaultEnabledDimensionKinds()) {
		t.Errorf("EnabledKinds() = %v, want defaults %v", kinds, entity.DefaultEnabledDimensionKinds())
	}

	enabled, err := registry.IsEnabled(context.Background(), "tenant-1", entity.DimensionProject)
	if err != nil || !enabled {
		t.Errorf("IsEnabled(PROJECT) = (%v, %v), want (true, nil)", enabled, err)
	}
	enabled, err = registry.IsEnabled(context.Background(), "tenant-1", entity.DimensionVehicle)
	if err != nil || enabled {
		t.Errorf("IsEnabled(VEHICLE) = (%v, %v), want (false, nil)", enabled, err)
	}
}

func TestDimensionRegistry_Overrides(t *testing.T) {
	repo := &mockDimensionConfigRepo{}
	registry := NewDimensionRegistry(repo, &mockLogger{})
	ctx := context.Background()

	// One override replaces the whole default set for the tenant.
	if err := registry.SetConfiguration(ctx, "tenant-1", entity.DimensionVehicle, true, 1); err != nil {
		t.Fatalf("SetConfiguration() error = %v", err)
	}

	kinds, err := registry.EnabledKinds(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("EnabledKinds() error = %v", err)
	}
	if !reflect.DeepEqual(kinds, []entity.DimensionKind{entity.DimensionVehicle}) {
		t.Errorf("EnabledKinds() = %v, want only VEHICLE", kinds)
	}

	// Defaults are now disabled unless configured.
	enabled, err := registry.IsEnabled(ctx, "tenant-1", entity.DimensionProject)
	if err != nil || enabled {
		t.Errorf("IsEnabled(PROJECT) after override = (%v, %v), want (false, nil)", enabled, err)
	}

	// Another tenant is unaffected.
	otherKinds, err := registry.EnabledKinds(ctx, "tenant-2")
	if err != nil {
		t.Fatalf("EnabledKinds(tenant-2) error = %v", err)
	}
	if !reflect.DeepEqual(otherKinds, entity.DefaultEnabledDimensionKinds()) {
		t.Errorf("EnabledKinds(tenant-2) = %v, want defaults", otherKinds)
	}
}

func TestDimensionRegistry_DisplayOrder(t *testing.T) {
	repo := &mockDimensionConfigRepo{}
	registry := NewDimensionRegistry(repo, &mockLogger{})
	ctx := context.Background()

	if err := registry.SetConfiguration(ctx, "tenant-1", entity.DimensionProject, true, 2); err != nil {
		t.Fatal(err)
	}
	if err := registry.SetConfiguration(ctx, "tenant-1", entity.DimensionCostCenter, true, 1); err != nil {
		t.Fatal(err)
	}

	kinds, err := registry.EnabledKinds(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("EnabledKinds() error = %v", err)
	}
	want := []entity.DimensionKind{entity.DimensionCostCenter, entity.DimensionProject}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("EnabledKinds() = %v, want %v (display order)", kinds, want)
	}
}

func TestDimensionRegistry_SetConfiguration_Idempotent(t *testing.T) {
	repo := &mockDimensionConfigRepo{}
	registry := NewDimensionRegistry(repo, &mockLogger{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := registry.SetConfiguration(ctx, "tenant-1", entity.DimensionProject, true, 1); err != nil {
			t.Fatalf("SetConfiguration() attempt %d error = %v", i+1, err)
		}
	}

	rows, err := repo.ListByTenant(ctx, "tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("repository holds %d rows after repeated upsert, want 1", len(rows))
	}
}

func TestDimensionRegistry_UnknownKind(t *testing.T) {
	registry := NewDimensionRegistry(&mockDimensionConfigRepo{}, &mockLogger{})
	ctx := context.Background()

	if err := registry.SetConfiguration(ctx, "tenant-1", entity.DimensionKind("FLAVOR"), true, 1); !errors.Is(err, allocation.ErrUnknownDimensionKind) {
		t.Errorf("SetConfiguration(FLAVOR) error = %v, want ErrUnknownDimensionKind", err)
	}
	if _, err := registry.IsEnabled(ctx, "tenant-1", entity.DimensionKind("FLAVOR")); !errors.Is(err, allocation.ErrUnknownDimensionKind) {
		t.Errorf("IsEnabled(FLAVOR) error = %v, want ErrUnknownDimensionKind", err)
	}
}

func TestDimensionRegistry_ResetToDefaults(t *testing.T) {
	repo := &mockDimensionConfigRepo{}
	registry := NewDimensionRegistry(repo, &mockLogger{})
	ctx := context.Background()

	if err := registry.SetConfiguration(ctx, "tenant-1", entity.DimensionVehicle, true, 1); err != nil {
		t.Fatal(err)
	}
	if err := registry.ResetToDefaults(ctx, "tenant-1"); err != nil {
		t.Fatalf("ResetToDefaults() error = %v", err)
	}

	kinds, err := registry.EnabledKinds(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("EnabledKinds() error = %v", err)
	}
	if !reflect.DeepEqual(kinds, entity.DefaultEnabledDimensionKinds()) {
		t.Errorf("EnabledKinds() after reset = %v, want defaults", kinds)
	}
}

func TestDimensionRegistry_ListConfiguration_CoversCatalog(t *testing.T) {
	registry := NewDimensionRegistry(&mockDimensionConfigRepo{}, &mockLogger{})

	rows, err := registry.ListConfiguration(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("ListConfiguration() error = %v", err)
	}
	if len(rows) != len(entity.AllDimensionKinds()) {
		t.Fatalf("ListConfiguration() returned %d rows, want full catalog of %d", len(rows), len(entity.AllDimensionKinds()))
	}

	enabledCount := 0
	for _, row := range rows {
		if row.Enabled {
			enabledCount++
		}
	}
	if enabledCount != len(entity.DefaultEnabledDimensionKinds()) {
		t.Errorf("ListConfiguration() has %d enabled rows, want %d defaults", enabledCount, len(entity.DefaultEnabledDimensionKinds()))
	}
}
