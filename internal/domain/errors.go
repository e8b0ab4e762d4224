package domain

import "errors"

// Sentinel errors shared across the engine. The HTTP layer maps each one to
// a stable API error code.
var (
	ErrNotFound               = errors.New("not found")
	ErrCategoryNotAssignable  = errors.New("category not assignable")
	ErrEntitlementNotOwned    = errors.New("entitlement not owned by user")
	ErrEntitlementExhausted   = errors.New("entitlement exhausted")
	ErrUnitNotApplicable      = errors.New("promotion unit not applicable to target")
	ErrInvalidSearchParameter = errors.New("invalid search parameter")
)
