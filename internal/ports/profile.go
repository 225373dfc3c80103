package ports

import (
	"context"

	"github.com/brightclass/identity-go/internal/domain/identity"
)

// CreateProfileInput groups parameters for inserting a profile row.
type CreateProfileInput struct {
	IdentityID string
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
}

// UpdateProfileInput is a partial display-field update. Nil fields are left
// untouched.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	AvatarURL *string
}

// ProfileRepository provides access to the role-partitioned profile tables.
// Every operation targets exactly one table, selected by the role argument;
// callers that need both tables issue two calls. Lookups return
// data.ErrProfileNotFound when no row matches.
type ProfileRepository interface {
	// GetByIdentityID looks up the role's table by identity id, returning
	// only display-minimal fields.
	GetByIdentityID(ctx context.Context, role identity.Role, identityID string) (*identity.Profile, error)

	// GetByEmail looks up the role's table by email.
	GetByEmail(ctx context.Context, role identity.Role, email string) (*identity.Profile, error)

	// Create inserts a new profile row.
	Create(ctx context.Context, role identity.Role, in CreateProfileInput) (*identity.Profile, error)

	// Update applies a partial display-field update by identity id.
	Update(ctx context.Context, role identity.Role, identityID string, in UpdateProfileInput) (*identity.Profile, error)

	// DeleteByIdentityID removes a profile row. Deleting a missing row is not
	// an error.
	DeleteByIdentityID(ctx context.Context, role identity.Role, identityID string) error
}
