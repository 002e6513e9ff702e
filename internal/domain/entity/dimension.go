package entity

import "time"

// DimensionKind identifies one allocation dimension axis. The catalog is
// closed: tenants enable or disable kinds, they never define new ones.
type DimensionKind string

const (
	DimensionCostCenter      DimensionKind = "COST_CENTER"
	DimensionDepartment      DimensionKind = "DEPARTMENT"
	DimensionLocation        DimensionKind = "LOCATION"
	DimensionProject         DimensionKind = "PROJECT"
	DimensionProduct         DimensionKind = "PRODUCT"
	DimensionContractor      DimensionKind = "CONTRACTOR"
	DimensionEmployee        DimensionKind = "EMPLOYEE"
	DimensionVehicle         DimensionKind = "VEHICLE"
	DimensionStructure       DimensionKind = "STRUCTURE"
	DimensionCostType        DimensionKind = "COST_TYPE"
	DimensionTransactionType DimensionKind = "TRANSACTION_TYPE"
)

var validDimensionKinds = map[DimensionKind]bool{
	DimensionCostCenter:      true,
	DimensionDepartment:      true,
	DimensionLocation:        true,
	DimensionProject:         true,
	DimensionProduct:         true,
	DimensionContractor:      true,
	DimensionEmployee:        true,
	DimensionVehicle:         true,
	DimensionStructure:       true,
	DimensionCostType:        true,
	DimensionTransactionType: true,
}

// AllDimensionKinds returns the full catalog in default display order.
func AllDimensionKinds() []DimensionKind {
	return []DimensionKind{
		DimensionCostCenter,
		DimensionDepartment,
		DimensionLocation,
		DimensionProject,
		DimensionProduct,
		DimensionContractor,
		DimensionEmployee,
		DimensionVehicle,
		DimensionStructure,
		DimensionCostType,
		DimensionTransactionType,
	}
}

// DefaultEnabledDimensionKinds is the built-in set a tenant starts with and
// reverts to on reset. Unlisted kinds default to disabled.
func DefaultEnabledDimensionKinds() []DimensionKind {
	return []DimensionKind{
		DimensionCostCenter,
		DimensionDepartment,
		DimensionLocation,
		DimensionProject,
	}
}

// IsValid returns true if the kind belongs to the catalog.
func (k DimensionKind) IsValid() bool {
	return validDimensionKinds[k]
}

// String returns the string representation of the kind.
func (k DimensionKind) String() string {
	return string(k)
}

// TenantDimensionConfig is one tenant's override for a single dimension kind.
type TenantDimensionConfig struct {
	ID           int64         `json:"id"`
	TenantID     string        `json:"tenant_id"`
	Kind         DimensionKind `json:"kind"`
	Enabled      bool          `json:"enabled"`
	DisplayOrder int           `json:"display_order"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
