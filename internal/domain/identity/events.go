package identity

// EventType enumerates the identity provider's auth event stream.
type EventType string

const (
	EventTokenRefreshed     EventType = "TOKEN_REFRESHED"
	EventSignedOut          EventType = "SIGNED_OUT"
	EventTokenRefreshFailed EventType = "TOKEN_REFRESH_FAILED"
	EventUserUpdated        EventType = "USER_UPDATED"
	EventSignedIn           EventType = "SIGNED_IN"
	EventInitialSession     EventType = "INITIAL_SESSION"
)

// AuthEvent is a single delivery from the provider's event stream. Session is
// nil for events that carry no session (e.g. SIGNED_OUT, TOKEN_REFRESH_FAILED).
// ClientID targets the event at one client's controller; empty means the
// event applies to every client.
type AuthEvent struct {
	Type     EventType
	ClientID string
	Session  *Session
}

// RecoverySource records where a recovered role came from.
type RecoverySource string

const (
	// RecoverySourcePending means the role came from a marker saved before an
	// external auth redirect.
	RecoverySourcePending RecoverySource = "pending"
	// RecoverySourceExistingProfile means the role was inferred from an
	// existing profile row keyed by identity id.
	RecoverySourceExistingProfile RecoverySource = "existing-profile"
)
