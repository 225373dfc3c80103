package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	identitymocks "github.com/brightclass/identity-go/internal/mocks/identity"
	"github.com/brightclass/identity-go/internal/testutil"
)

type recoveryFixture struct {
	engine   *RoleRecoveryEngine
	provider *identitymocks.MockProvider
	repo     *identitymocks.MemoryProfileRepo
	store    *identitymocks.MemoryStateStore
	signup   *SignupState
	clock    *data.FixedTimeProvider
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()
	provider := identitymocks.NewMockProvider()
	repo := identitymocks.NewMemoryProfileRepo()
	store := identitymocks.NewMemoryStateStore()
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store.Now = clock.Now
	signup := NewSignupState(SignupStateOptions{Store: store, TimeProvider: clock})
	return &recoveryFixture{
		engine: NewRoleRecoveryEngine(RoleRecoveryOptions{
			Provider:     provider,
			Profiles:     repo,
			Store:        store,
			Signup:       signup,
			TimeProvider: clock,
		}),
		provider: provider,
		repo:     repo,
		store:    store,
		signup:   signup,
		clock:    clock,
	}
}

func (f *recoveryFixture) oldIdentity() identity.Identity {
	return testutil.NewIdentity().WithCreatedAt(f.clock.Now().Add(-10 * time.Minute)).Build()
}

func TestRecoveryFromPendingMarker(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()
	require.NoError(t, fix.engine.SavePending(ctx, "c1", identity.RoleStudent))

	role, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, identity.RoleStudent, role)

	require.Len(t, fix.provider.Patches, 1)
	_, stillPending := fix.engine.PendingRole(ctx, "c1")
	assert.False(t, stillPending, "marker is consumed exactly once")

	// Success re-arms the budget.
	_, ok, _ := fix.store.Get(ctx, "c1", keyRecoveryAttempts)
	assert.False(t, ok)
}

func TestRecoveryFromExistingProfile(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()
	fix.repo.Seed(identity.RoleStudent, testutil.NewProfile(ident).Build())

	role, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, identity.RoleStudent, role)
	require.Len(t, fix.provider.Patches, 1)
}

func TestRecoveryDualProfilesPicksTeacher(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()
	fix.repo.Seed(identity.RoleTeacher, testutil.NewProfile(ident).Build())
	fix.repo.Seed(identity.RoleStudent, testutil.NewProfile(ident).Build())

	role, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, identity.RoleTeacher, role)
}

func TestRecoveryNothingToRecover(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()

	_, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
	require.NoError(t, err)
	assert.False(t, recovered)
	assert.Empty(t, fix.provider.Patches)
}

func TestRecoveryCounterIncrementsBeforeAttempt(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()
	fix.repo.Err = assert.AnError

	_, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
	require.Error(t, err)
	assert.False(t, recovered)

	// The failed attempt still consumed budget.
	raw, ok, _ := fix.store.Get(ctx, "c1", keyRecoveryAttempts)
	require.True(t, ok)
	assert.Equal(t, "1", raw)
}

func TestShouldAttemptExhaustsBudget(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()

	for i := 0; i < DefaultMaxRecoveryAttempts; i++ {
		assert.True(t, fix.engine.ShouldAttempt(ctx, "c1", &ident), "attempt %d", i)
		_, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
		require.NoError(t, err)
		require.False(t, recovered)
	}
	assert.False(t, fix.engine.ShouldAttempt(ctx, "c1", &ident))

	// Explicit reset re-arms.
	require.NoError(t, fix.engine.ResetAttempts(ctx, "c1"))
	assert.True(t, fix.engine.ShouldAttempt(ctx, "c1", &ident))
}

func TestShouldAttemptSkipsDuringSignup(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()

	require.NoError(t, fix.signup.MarkInProgress(ctx, "c1"))
	assert.False(t, fix.engine.ShouldAttempt(ctx, "c1", &ident))

	require.NoError(t, fix.signup.MarkComplete(ctx, "c1"))
	assert.True(t, fix.engine.ShouldAttempt(ctx, "c1", &ident))
}

func TestShouldAttemptSkipsNewAccounts(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)

	young := testutil.NewIdentity().WithCreatedAt(fix.clock.Now().Add(-3 * time.Minute)).Build()
	assert.False(t, fix.engine.ShouldAttempt(ctx, "c1", &young))

	old := testutil.NewIdentity().WithCreatedAt(fix.clock.Now().Add(-6 * time.Minute)).Build()
	assert.True(t, fix.engine.ShouldAttempt(ctx, "c1", &old))
}

func TestShouldAttemptIgnoresGarbageCounter(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()

	require.NoError(t, fix.store.Set(ctx, "c1", keyRecoveryAttempts, "wat", 0))
	assert.True(t, fix.engine.ShouldAttempt(ctx, "c1", &ident))

	require.NoError(t, fix.store.Set(ctx, "c1", keyRecoveryAttempts, strconv.Itoa(DefaultMaxRecoveryAttempts), 0))
	assert.False(t, fix.engine.ShouldAttempt(ctx, "c1", &ident))
}

func TestRecoveryInvalidPendingMarkerFallsThrough(t *testing.T) {
	ctx := context.Background()
	fix := newRecoveryFixture(t)
	ident := fix.oldIdentity()
	require.NoError(t, fix.store.Set(ctx, "c1", keyPendingRole, "admin", 0))
	fix.repo.Seed(identity.RoleTeacher, testutil.NewProfile(ident).Build())

	role, recovered, err := fix.engine.Attempt(ctx, "c1", &ident)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, identity.RoleTeacher, role, "invalid marker is ignored, profile probe decides")
}
