// Package testutil provides testing utilities and helpers for the identity
// gateway.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightclass/identity-go/internal/domain/identity"
)

// IdentityBuilder provides a fluent interface for building Identity values
// for testing.
type IdentityBuilder struct {
	ident identity.Identity
}

// NewIdentity creates an IdentityBuilder with sensible defaults: a random id,
// an account old enough to clear the new-account window, and no role claim.
func NewIdentity() *IdentityBuilder {
	return &IdentityBuilder{
		ident: identity.Identity{
			ID:        uuid.NewString(),
			Email:     "user@example.com",
			CreatedAt: time.Now().Add(-time.Hour),
		},
	}
}

// WithID sets the identity id.
func (b *IdentityBuilder) WithID(id string) *IdentityBuilder {
	b.ident.ID = id
	return b
}

// WithEmail sets the email.
func (b *IdentityBuilder) WithEmail(email string) *IdentityBuilder {
	b.ident.Email = email
	return b
}

// WithCreatedAt sets the account creation time.
func (b *IdentityBuilder) WithCreatedAt(t time.Time) *IdentityBuilder {
	b.ident.CreatedAt = t
	return b
}

// WithRole sets the role claim at the default metadata location.
func (b *IdentityBuilder) WithRole(role identity.Role) *IdentityBuilder {
	if b.ident.Metadata == nil {
		b.ident.Metadata = map[string]any{}
	}
	meta, _ := b.ident.Metadata["user_metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["role"] = string(role)
	b.ident.Metadata["user_metadata"] = meta
	return b
}

// WithMetadata replaces the whole metadata bag.
func (b *IdentityBuilder) WithMetadata(meta map[string]any) *IdentityBuilder {
	b.ident.Metadata = meta
	return b
}

// Build returns the constructed identity.
func (b *IdentityBuilder) Build() identity.Identity {
	return b.ident
}

// SessionBuilder provides a fluent interface for building Session values.
type SessionBuilder struct {
	sess identity.Session
}

// NewSession creates a SessionBuilder wrapping the given identity with a
// one-hour expiry.
func NewSession(ident identity.Identity) *SessionBuilder {
	return &SessionBuilder{
		sess: identity.Session{
			Identity:  ident,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

// WithExpiresAt sets the expiry; a zero time means no expiry.
func (b *SessionBuilder) WithExpiresAt(t time.Time) *SessionBuilder {
	b.sess.ExpiresAt = t
	return b
}

// Expired backdates the expiry.
func (b *SessionBuilder) Expired() *SessionBuilder {
	b.sess.ExpiresAt = time.Now().Add(-time.Minute)
	return b
}

// Build returns a pointer, matching provider return shapes.
func (b *SessionBuilder) Build() *identity.Session {
	sess := b.sess
	return &sess
}

// ProfileBuilder provides a fluent interface for building Profile rows.
type ProfileBuilder struct {
	profile identity.Profile
}

// NewProfile creates a ProfileBuilder tied to the identity.
func NewProfile(ident identity.Identity) *ProfileBuilder {
	now := time.Now()
	return &ProfileBuilder{
		profile: identity.Profile{
			IdentityID: ident.ID,
			Email:      ident.Email,
			FirstName:  "Jamie",
			LastName:   "Rivera",
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// WithIdentityID overrides the identity id, for orphan-row fixtures.
func (b *ProfileBuilder) WithIdentityID(id string) *ProfileBuilder {
	b.profile.IdentityID = id
	return b
}

// WithName sets the display name.
func (b *ProfileBuilder) WithName(first, last string) *ProfileBuilder {
	b.profile.FirstName = first
	b.profile.LastName = last
	return b
}

// WithAvatarURL sets the avatar URL.
func (b *ProfileBuilder) WithAvatarURL(url string) *ProfileBuilder {
	b.profile.AvatarURL = url
	return b
}

// Build returns the constructed profile.
func (b *ProfileBuilder) Build() identity.Profile {
	return b.profile
}
