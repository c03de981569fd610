package identitystore

import "errors"

var (
	// ErrBadStatus is returned when a non-VALID result is given identity fields
	ErrBadStatus = errors.New("identity fields are only allowed on a valid result")

	// ErrEmptyPrincipal is returned when a VALID result has no usable caller name
	ErrEmptyPrincipal = errors.New("null or empty caller principal")

	// ErrAccessDenied is returned when a grant lacks a required permission
	ErrAccessDenied = errors.New("identity store access denied")

	// ErrStoreFailure wraps any system fault raised by a store during aggregation
	ErrStoreFailure = errors.New("identity store failure")

	// ErrStoreTimeout is returned when a store does not answer within its deadline
	ErrStoreTimeout = errors.New("identity store timed out")
)
