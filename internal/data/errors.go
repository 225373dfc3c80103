package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrProfileNotFound is returned when no profile row matches the lookup.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when inserting a profile that already exists
	// for the identity or email.
	ErrProfileExists = errors.New("profile already exists")
	// ErrIdentityIDRequired is returned when a lookup is missing the identity id.
	ErrIdentityIDRequired = errors.New("identity_id is required")
	// ErrEmailRequired is returned when an email lookup is missing the email.
	ErrEmailRequired = errors.New("email is required")
)
