package service

import "github.com/brightclass/identity-go/internal/domain/identity"

// Persisted per-client state keys. All values are plain strings or JSON; the
// state store scopes them by client id.
const (
	// keyPendingRole holds a role chosen before an external auth redirect,
	// consumed exactly once by recovery or callback completion.
	keyPendingRole = "pending_role"
	// keyRecoveryAttempts is the automatic role-recovery attempt counter.
	keyRecoveryAttempts = "role_recovery_attempts"
	// keySignupInProgress marks an active signup flow.
	keySignupInProgress = "signup_in_progress"
	// keySignupStartedAt timestamps the signup flow for the timeout check.
	keySignupStartedAt = "signup_started_at"
	// keyRedirectAfterLogin preserves the intended destination across the
	// auth detour.
	keyRedirectAfterLogin = "redirect_after_login"
)

// profileCacheKey returns the per-role profile cache blob key.
func profileCacheKey(role identity.Role) string {
	return "profile_cache:" + string(role)
}

// inflightKey returns the in-flight fetch lease key for an identity-role pair.
func inflightKey(role identity.Role, identityID string) string {
	return "profile_fetch:" + string(role) + ":" + identityID
}

// rolePatch builds the metadata patch that writes a recovered or chosen role
// back to the identity provider's canonical claim location.
func rolePatch(role identity.Role) map[string]any {
	return map[string]any{
		"user_metadata": map[string]any{"role": string(role)},
	}
}
