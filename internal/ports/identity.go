package ports

// Package ports defines interfaces (hexagonal ports) for identity resolution.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	"github.com/brightclass/identity-go/internal/domain/identity"
)

// BeginInput carries inputs for initiating an external auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange after the
// external redirect returns.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// MetadataPatch is a partial update to the identity's metadata bag. Keys not
// present are left untouched by the provider.
type MetadataPatch map[string]any

// IdentityProvider is the external identity/session service. The gateway
// consumes sessions and identities; it never mints them.
//
// Implementations scope session state by the client id carried on the
// context (see WithClientID), so one provider instance serves every
// connected client without cross-talk. Events targeted at a single client
// carry that id on the AuthEvent.
type IdentityProvider interface {
	// GetSession returns the current session, or nil when none exists.
	GetSession(ctx context.Context) (*identity.Session, error)

	// GetUser returns the current identity, or nil when unauthenticated.
	GetUser(ctx context.Context) (*identity.Identity, error)

	// UpdateUserMetadata applies a metadata patch and returns the updated
	// identity.
	UpdateUserMetadata(ctx context.Context, patch MetadataPatch) (*identity.Identity, error)

	// SignOut revokes the provider-side session.
	SignOut(ctx context.Context) error

	// Begin starts the external login flow and returns the provider auth URL,
	// an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the external login flow, verifying state and nonce,
	// and returns the authenticated session.
	Exchange(ctx context.Context, in ExchangeInput) (*identity.Session, error)

	// Events yields the provider's auth event stream. Deliveries are
	// serialized; the channel is closed when the provider shuts down.
	// The stream is process-wide; fan-out to per-client consumers is the
	// caller's job (see service.EventBroadcaster).
	Events() <-chan identity.AuthEvent
}

// RoleExtractor locates the role attribute inside a provider metadata bag.
type RoleExtractor interface {
	// Role returns the extracted role and true, or false when the bag carries
	// no valid role.
	Role(metadata map[string]any) (identity.Role, bool)
}
