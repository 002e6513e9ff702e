package allocation

import "errors"

var (
	// ErrUnknownDimensionKind is returned when a kind outside the catalog is
	// supplied (a configuration error).
	ErrUnknownDimensionKind = errors.New("unknown dimension kind")

	// ErrDimensionNotEnabled is returned when a tag references a kind the
	// tenant has not enabled.
	ErrDimensionNotEnabled = errors.New("dimension kind not enabled for tenant")

	// ErrDimensionEntityNotFound is returned when a tag references a
	// dimension entity that does not exist or is not visible to the tenant.
	ErrDimensionEntityNotFound = errors.New("dimension entity not found")

	// ErrInvalidAmount is returned for a non-positive line amount or one
	// exceeding the expense currency's precision.
	ErrInvalidAmount = errors.New("invalid allocation amount")

	// ErrAllocationTotalMismatch is returned when proposed line amounts sum
	// to more than the expense total. Under-allocation is permitted.
	ErrAllocationTotalMismatch = errors.New("allocation exceeds expense total")

	// ErrNoLines is returned when a request carries no allocation lines.
	ErrNoLines = errors.New("no allocation lines")
)
