package identity

import "strings"

// Well-known application paths the gateway routes between. The SPA owns the
// views; the gateway only decides where the client should be.
const (
	PathHome          = "/"
	PathAuth          = "/auth"
	PathLogin         = "/login"
	PathRegister      = "/register"
	PathAuthCallback  = "/auth/callback"
	PathRoleSelection = "/auth/role"
)

// DashboardPath returns the dashboard path for a role, or the auth entry
// point when the role is unknown.
func DashboardPath(role Role) string {
	switch role {
	case RoleTeacher:
		return "/teacher/dashboard"
	case RoleStudent:
		return "/student/dashboard"
	default:
		return PathAuth
	}
}

// OnboardingPath returns the onboarding path for a role.
func OnboardingPath(role Role) string {
	return "/onboarding/" + string(role)
}

// IsAuthPath reports whether the path belongs to the auth family. Auth-family
// paths are never persisted as post-login redirect targets.
func IsAuthPath(path string) bool {
	switch path {
	case PathAuth, PathLogin, PathRegister, PathRoleSelection:
		return true
	}
	return strings.HasPrefix(path, PathAuthCallback)
}

// IsOnboardingPath reports whether the path is part of the onboarding flow.
func IsOnboardingPath(path string) bool {
	return strings.HasPrefix(path, "/onboarding/")
}

// DecisionKind classifies a route gate outcome.
type DecisionKind string

const (
	// DecisionAllow renders the protected content unchanged.
	DecisionAllow DecisionKind = "allow"
	// DecisionLoading renders a loading state without navigating.
	DecisionLoading DecisionKind = "loading"
	// DecisionRedirect navigates the client to Target.
	DecisionRedirect DecisionKind = "redirect"
)

// RouteDecision is the route gate's verdict for a location.
type RouteDecision struct {
	Kind   DecisionKind `json:"kind"`
	Target string       `json:"target,omitempty"`
	// Reason is a short machine-readable label for logs and metrics.
	Reason string `json:"reason,omitempty"`
}

// Allow is the decision that renders protected content.
func Allow() RouteDecision { return RouteDecision{Kind: DecisionAllow, Reason: "ok"} }

// Loading is the decision that renders a loading state.
func Loading() RouteDecision { return RouteDecision{Kind: DecisionLoading, Reason: "resolving"} }

// Redirect builds a redirect decision.
func Redirect(target, reason string) RouteDecision {
	return RouteDecision{Kind: DecisionRedirect, Target: target, Reason: reason}
}
