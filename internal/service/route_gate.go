package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// Location describes where the client currently is and what the view there
// demands. RequiredRole is empty for views open to any authenticated role.
type Location struct {
	Path         string
	RequiredRole identity.Role
}

// Decide is the pure route decision, evaluated in strict order: resolving
// state renders loading, missing/invalid sessions bounce to auth, a role
// mismatch bounces to the identity's own dashboard, a known-missing profile
// bounces to onboarding, everything else renders.
func Decide(snap Snapshot, loc Location, now time.Time) identity.RouteDecision {
	if snap.Loading || snap.ProfileLoading {
		return identity.Loading()
	}

	if snap.Identity == nil || !identity.SessionValid(snap.Session, now) {
		if loc.Path == identity.PathAuth {
			return identity.Allow()
		}
		return identity.Redirect(identity.PathAuth, "unauthenticated")
	}

	if loc.RequiredRole != "" && snap.Role != loc.RequiredRole {
		if !snap.HasRole {
			return identity.Redirect(identity.PathAuth, "no-role")
		}
		return identity.Redirect(identity.DashboardPath(snap.Role), "role-mismatch")
	}

	if !identity.IsOnboardingPath(loc.Path) && snap.Profile.Known() && !snap.Profile.Exists() {
		return identity.Redirect(identity.OnboardingPath(snap.Role), "needs-onboarding")
	}

	return identity.Allow()
}

// RouteGateOptions groups dependencies for RouteGate.
type RouteGateOptions struct {
	Store        ports.StateStore
	Navigator    ports.Navigator
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// RouteGate wraps Decide with the stateful parts: it navigates at most once
// per location change and saves the intended destination before bouncing to
// auth so login can return the user where they were headed.
type RouteGate struct {
	store     ports.StateStore
	navigator ports.Navigator
	tp        data.TimeProvider
	logger    *slog.Logger

	mu        sync.Mutex
	navigated map[string]string // clientID -> last location a redirect fired for
}

// NewRouteGate constructs a RouteGate.
func NewRouteGate(opts RouteGateOptions) *RouteGate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	return &RouteGate{
		store:     opts.Store,
		navigator: opts.Navigator,
		tp:        tp,
		logger:    logger,
		navigated: make(map[string]string),
	}
}

// Evaluate computes the decision for the client's location and carries out
// its side effects. Re-evaluating the same location (identity state changed,
// path did not) returns the decision without navigating again.
func (g *RouteGate) Evaluate(ctx context.Context, clientID string, snap Snapshot, loc Location) identity.RouteDecision {
	decision := Decide(snap, loc, g.tp.Now())
	if decision.Kind != identity.DecisionRedirect {
		g.mu.Lock()
		delete(g.navigated, clientID)
		g.mu.Unlock()
		return decision
	}

	g.mu.Lock()
	already := g.navigated[clientID] == loc.Path
	if !already {
		g.navigated[clientID] = loc.Path
	}
	g.mu.Unlock()
	if already {
		return decision
	}

	if decision.Target == identity.PathAuth && !identity.IsAuthPath(loc.Path) {
		if err := g.store.Set(ctx, clientID, keyRedirectAfterLogin, loc.Path, 0); err != nil {
			g.logger.WarnContext(ctx, "save post-login redirect failed", "error", err)
		}
	}
	if g.navigator != nil {
		if err := g.navigator.Navigate(ctx, clientID, decision.Target); err != nil {
			g.logger.WarnContext(ctx, "route navigation failed",
				"target", decision.Target, "error", err)
		}
	}
	g.logger.InfoContext(ctx, "route redirect",
		"path", loc.Path, "target", decision.Target, "reason", decision.Reason)
	return decision
}
