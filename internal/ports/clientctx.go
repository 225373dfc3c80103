package ports

import "context"

type clientIDContextKey struct{}

// WithClientID returns a context carrying the client id that scopes
// provider-side session state. Boundary code tags contexts before calling
// into an IdentityProvider: the HTTP middleware for request contexts, the
// session controller for its own. A context without an id addresses the
// provider's default slot.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey{}, clientID)
}

// ClientIDFromContext returns the client id carried by ctx, or empty when
// none was set.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDContextKey{}).(string); ok {
		return v
	}
	return ""
}
