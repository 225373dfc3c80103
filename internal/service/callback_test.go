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

type callbackFixture struct {
	handler  *CallbackHandler
	provider *identitymocks.MockProvider
	repo     *identitymocks.MemoryProfileRepo
	store    *identitymocks.MemoryStateStore
	nav      *identitymocks.RecorderNavigator
	signup   *SignupState
	clock    *data.FixedTimeProvider
}

func newCallbackFixture(t *testing.T) *callbackFixture {
	t.Helper()
	provider := identitymocks.NewMockProvider()
	repo := identitymocks.NewMemoryProfileRepo()
	store := identitymocks.NewMemoryStateStore()
	nav := &identitymocks.RecorderNavigator{}
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store.Now = clock.Now
	signup := NewSignupState(SignupStateOptions{Store: store, TimeProvider: clock})
	recovery := NewRoleRecoveryEngine(RoleRecoveryOptions{
		Provider:     provider,
		Profiles:     repo,
		Store:        store,
		Signup:       signup,
		TimeProvider: clock,
	})
	handler := NewCallbackHandler(CallbackOptions{
		Provider:     provider,
		Profiles:     repo,
		Roles:        identitymocks.MapRoleExtractor{},
		Recovery:     recovery,
		Orphans:      NewOrphanReconciler(repo, nil, nil),
		Signup:       signup,
		Store:        store,
		Navigator:    nav,
		TimeProvider: clock,
	})
	return &callbackFixture{
		handler:  handler,
		provider: provider,
		repo:     repo,
		store:    store,
		nav:      nav,
		signup:   signup,
		clock:    clock,
	}
}

func TestCallbackWithoutIdentityReturnsToAuth(t *testing.T) {
	fix := newCallbackFixture(t)
	decision := fix.handler.Complete(context.Background(), "c1")
	assert.Equal(t, identity.PathAuth, decision.Target)
	assert.Equal(t, identity.PathAuth, fix.nav.Last().Path)
}

func TestCallbackExistingProfileLandsOnDashboard(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().Build() // no role claim
	fix.provider.User = &ident
	fix.repo.Seed(identity.RoleStudent, testutil.NewProfile(ident).Build())
	require.NoError(t, fix.store.Set(ctx, "c1", keyPendingRole, "teacher", 0))

	decision := fix.handler.Complete(ctx, "c1")

	assert.Equal(t, "/student/dashboard", decision.Target)
	require.Len(t, fix.provider.Patches, 1, "disagreeing metadata is repaired to match the row")
	_, ok, _ := fix.store.Get(ctx, "c1", keyPendingRole)
	assert.False(t, ok, "pending marker is consumed")
}

func TestCallbackDualProfilesDeterministic(t *testing.T) {
	// Rows under both roles for the same identity id: the outcome must be a
	// single deterministic dashboard.
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().Build()
	fix.provider.User = &ident
	fix.repo.Seed(identity.RoleTeacher, testutil.NewProfile(ident).Build())
	fix.repo.Seed(identity.RoleStudent, testutil.NewProfile(ident).Build())

	first := fix.handler.Complete(ctx, "c1")
	second := fix.handler.Complete(ctx, "c1")
	assert.Equal(t, "/teacher/dashboard", first.Target)
	assert.Equal(t, first.Target, second.Target)
}

func TestCallbackRemovesOrphanedRows(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithEmail("sam@example.com").WithRole(identity.RoleTeacher).Build()
	fix.provider.User = &ident
	fix.repo.Seed(identity.RoleTeacher, testutil.NewProfile(ident).Build())
	orphan := testutil.NewProfile(ident).WithIdentityID("discarded-id").Build()
	fix.repo.Seed(identity.RoleStudent, orphan)

	fix.handler.Complete(ctx, "c1")
	assert.Equal(t, []string{"student:discarded-id"}, fix.repo.Deleted)
}

func TestCallbackSignupInProgressConsumesPendingRole(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithCreatedAt(fix.clock.Now().Add(-time.Minute)).Build()
	fix.provider.User = &ident
	require.NoError(t, fix.signup.MarkInProgress(ctx, "c1"))
	require.NoError(t, fix.store.Set(ctx, "c1", keyPendingRole, "teacher", 0))

	decision := fix.handler.Complete(ctx, "c1")

	assert.Equal(t, "/onboarding/teacher", decision.Target)
	require.Len(t, fix.provider.Patches, 1)
	_, ok, _ := fix.store.Get(ctx, "c1", keyPendingRole)
	assert.False(t, ok)
}

func TestCallbackRecoversPendingRoleOutsideSignup(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithCreatedAt(fix.clock.Now().Add(-10 * time.Minute)).Build()
	fix.provider.User = &ident
	require.NoError(t, fix.store.Set(ctx, "c1", keyPendingRole, "student", 0))

	decision := fix.handler.Complete(ctx, "c1")

	assert.Equal(t, "/onboarding/student", decision.Target)
	require.Len(t, fix.provider.Patches, 1)
}

func TestCallbackRoleUnresolvedGoesToSelection(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithCreatedAt(fix.clock.Now().Add(-10 * time.Minute)).Build()
	fix.provider.User = &ident

	decision := fix.handler.Complete(ctx, "c1")
	assert.Equal(t, identity.PathRoleSelection, decision.Target,
		"nothing to recover falls through to manual selection")
}

func TestCallbackWithRoleAndNoProfileGoesToOnboarding(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleStudent).Build()
	fix.provider.User = &ident

	decision := fix.handler.Complete(ctx, "c1")
	assert.Equal(t, "/onboarding/student", decision.Target)
}

func TestCallbackHonorsSavedRedirect(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleStudent).Build()
	fix.provider.User = &ident
	require.NoError(t, fix.store.Set(ctx, "c1", keyRedirectAfterLogin, "/student/assignments/42", 0))

	decision := fix.handler.Complete(ctx, "c1")

	assert.Equal(t, "/student/assignments/42", decision.Target)
	_, ok, _ := fix.store.Get(ctx, "c1", keyRedirectAfterLogin)
	assert.False(t, ok, "saved redirect is consumed")
}

func TestCallbackIgnoresAuthPathAsSavedRedirect(t *testing.T) {
	ctx := context.Background()
	fix := newCallbackFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleStudent).Build()
	fix.provider.User = &ident
	require.NoError(t, fix.store.Set(ctx, "c1", keyRedirectAfterLogin, identity.PathLogin, 0))

	decision := fix.handler.Complete(ctx, "c1")
	assert.Equal(t, "/onboarding/student", decision.Target)
}

func TestCallbackTimesOut(t *testing.T) {
	fix := newCallbackFixture(t)
	fix.provider.GetUserFunc = func(ctx context.Context) (*identity.Identity, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	fix.handler.timeout = 20 * time.Millisecond

	start := time.Now()
	decision := fix.handler.Complete(context.Background(), "c1")

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, identity.PathAuth, decision.Target)
	assert.Equal(t, "callback-timeout", decision.Reason)
	assert.Equal(t, identity.PathAuth, fix.nav.Last().Path)
}
