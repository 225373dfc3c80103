package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	identitymocks "github.com/brightclass/identity-go/internal/mocks/identity"
	"github.com/brightclass/identity-go/internal/testutil"
)

func gateSnapshot(ident identity.Identity, hasProfile *bool) Snapshot {
	snap := Snapshot{
		Identity: &ident,
		Session:  testutil.NewSession(ident).Build(),
		Profile:  identity.ProfileCacheEntry{HasProfile: hasProfile, FetchedAt: time.Now()},
	}
	snap.Role, snap.HasRole = identitymocks.MapRoleExtractor{}.Role(ident.Metadata)
	return snap
}

func boolPtr(v bool) *bool { return &v }

func TestDecideLoadingStates(t *testing.T) {
	now := time.Now()
	assert.Equal(t, identity.DecisionLoading,
		Decide(Snapshot{Loading: true}, Location{Path: "/"}, now).Kind)
	assert.Equal(t, identity.DecisionLoading,
		Decide(Snapshot{ProfileLoading: true}, Location{Path: "/"}, now).Kind)
}

func TestDecideUnauthenticated(t *testing.T) {
	now := time.Now()

	d := Decide(Snapshot{}, Location{Path: "/teacher/dashboard"}, now)
	assert.Equal(t, identity.DecisionRedirect, d.Kind)
	assert.Equal(t, identity.PathAuth, d.Target)

	// Already at the auth entry point: nothing to do.
	assert.Equal(t, identity.DecisionAllow, Decide(Snapshot{}, Location{Path: identity.PathAuth}, now).Kind)

	// An expired session counts as unauthenticated.
	ident := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	snap := gateSnapshot(ident, boolPtr(true))
	snap.Session = testutil.NewSession(ident).Expired().Build()
	d = Decide(snap, Location{Path: "/teacher/dashboard"}, now)
	assert.Equal(t, identity.PathAuth, d.Target)
}

func TestDecideRoleMismatch(t *testing.T) {
	now := time.Now()
	student := testutil.NewIdentity().WithRole(identity.RoleStudent).Build()
	snap := gateSnapshot(student, boolPtr(true))

	d := Decide(snap, Location{Path: "/teacher/dashboard", RequiredRole: identity.RoleTeacher}, now)
	assert.Equal(t, identity.DecisionRedirect, d.Kind)
	assert.Equal(t, "/student/dashboard", d.Target)

	// No role at all goes back to auth, not a dashboard.
	noRole := testutil.NewIdentity().Build()
	d = Decide(gateSnapshot(noRole, boolPtr(true)),
		Location{Path: "/teacher/dashboard", RequiredRole: identity.RoleTeacher}, now)
	assert.Equal(t, identity.PathAuth, d.Target)
}

func TestDecideMissingProfileRedirectsToOnboarding(t *testing.T) {
	// Identity has a role but no profile row.
	now := time.Now()
	teacher := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	snap := gateSnapshot(teacher, boolPtr(false))

	d := Decide(snap, Location{Path: "/teacher/dashboard", RequiredRole: identity.RoleTeacher}, now)
	assert.Equal(t, identity.DecisionRedirect, d.Kind)
	assert.Equal(t, "/onboarding/teacher", d.Target)

	// On the onboarding path itself the redirect would loop; render instead.
	d = Decide(snap, Location{Path: "/onboarding/teacher"}, now)
	assert.Equal(t, identity.DecisionAllow, d.Kind)
}

func TestDecideUnknownProfilePassesThrough(t *testing.T) {
	now := time.Now()
	teacher := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	d := Decide(gateSnapshot(teacher, nil), Location{Path: "/teacher/dashboard"}, now)
	assert.Equal(t, identity.DecisionAllow, d.Kind, "undetermined existence must not bounce to onboarding")
}

func TestDecideAllow(t *testing.T) {
	now := time.Now()
	teacher := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	d := Decide(gateSnapshot(teacher, boolPtr(true)),
		Location{Path: "/teacher/dashboard", RequiredRole: identity.RoleTeacher}, now)
	assert.Equal(t, identity.DecisionAllow, d.Kind)
}

func TestEvaluateNavigatesOncePerLocation(t *testing.T) {
	ctx := context.Background()
	store := identitymocks.NewMemoryStateStore()
	nav := &identitymocks.RecorderNavigator{}
	gate := NewRouteGate(RouteGateOptions{Store: store, Navigator: nav})

	loc := Location{Path: "/teacher/dashboard"}
	gate.Evaluate(ctx, "c1", Snapshot{}, loc)
	gate.Evaluate(ctx, "c1", Snapshot{}, loc)
	assert.Equal(t, 1, nav.Count(), "same location redirects once")

	gate.Evaluate(ctx, "c1", Snapshot{}, Location{Path: "/student/dashboard"})
	assert.Equal(t, 2, nav.Count(), "a location change re-arms navigation")
}

func TestEvaluatePersistsPostLoginRedirect(t *testing.T) {
	ctx := context.Background()
	store := identitymocks.NewMemoryStateStore()
	nav := &identitymocks.RecorderNavigator{}
	gate := NewRouteGate(RouteGateOptions{Store: store, Navigator: nav})

	gate.Evaluate(ctx, "c1", Snapshot{}, Location{Path: "/teacher/dashboard"})
	saved, ok, err := store.Get(ctx, "c1", keyRedirectAfterLogin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/teacher/dashboard", saved)
}

func TestEvaluateSkipsAuthPathsAsRedirectTargets(t *testing.T) {
	ctx := context.Background()
	store := identitymocks.NewMemoryStateStore()
	nav := &identitymocks.RecorderNavigator{}
	gate := NewRouteGate(RouteGateOptions{Store: store, Navigator: nav})

	gate.Evaluate(ctx, "c1", Snapshot{}, Location{Path: identity.PathRoleSelection})
	_, ok, err := store.Get(ctx, "c1", keyRedirectAfterLogin)
	require.NoError(t, err)
	assert.False(t, ok, "auth-family paths are never saved as return targets")
	assert.Equal(t, identity.PathAuth, nav.Last().Path)
}

func TestEvaluateAllowClearsNavigationGuard(t *testing.T) {
	ctx := context.Background()
	store := identitymocks.NewMemoryStateStore()
	nav := &identitymocks.RecorderNavigator{}
	clock := data.NewFixedTimeProvider(time.Now())
	gate := NewRouteGate(RouteGateOptions{Store: store, Navigator: nav, TimeProvider: clock})

	teacher := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	loc := Location{Path: "/teacher/dashboard"}

	gate.Evaluate(ctx, "c1", Snapshot{}, loc)
	gate.Evaluate(ctx, "c1", gateSnapshot(teacher, boolPtr(true)), loc)
	gate.Evaluate(ctx, "c1", Snapshot{}, loc)
	assert.Equal(t, 2, nav.Count(), "an allow in between re-arms the same location")
}
