package identity

// Package identity contains domain-level types for identity, session, and
// profile resolution. It is pure and free of framework/adapter concerns.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRole is returned for role values outside the known set.
var ErrInvalidRole = errors.New("invalid role")

// Role partitions profile storage and dashboard routing.
// Keep string form for easy persistence and claim matching.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole validates a raw role string. Anything other than the two known
// roles is rejected, including empty strings.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Valid reports whether the role is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Roles lists the known roles in tie-break order. When an identity has a
// profile row under both roles (a data-integrity violation) the first match
// wins everywhere, so resolution stays deterministic.
func Roles() []Role {
	return []Role{RoleTeacher, RoleStudent}
}

// Identity represents the authenticated principal returned by the identity
// provider, independent of role or profile.
type Identity struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsZero reports whether the identity carries no principal.
func (i Identity) IsZero() bool { return i.ID == "" }

// Age returns how long ago the identity record was created.
func (i Identity) Age(now time.Time) time.Duration {
	if i.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(i.CreatedAt)
}

// Session is a time-bounded credential wrapping an Identity. A zero ExpiresAt
// means the provider issued no expiry.
type Session struct {
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// SessionValid reports whether the session can be trusted at the given
// instant: the session must carry an identity, and its expiry (when present)
// must be strictly in the future. No clock-skew tolerance is applied.
func SessionValid(sess *Session, now time.Time) bool {
	if sess == nil || sess.Identity.IsZero() {
		return false
	}
	if sess.ExpiresAt.IsZero() {
		return true
	}
	return sess.ExpiresAt.After(now)
}
