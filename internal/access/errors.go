package access

import "errors"

var (
	ErrNotFound     = errors.New("access: not found")
	ErrInvalidInput = errors.New("access: invalid input")

	// Building delete guards: referential integrity, not cascading delete.
	ErrBuildingHasCertificates = errors.New("access: building has certificates")
	ErrBuildingHasTenants      = errors.New("access: building has tenants")
)
