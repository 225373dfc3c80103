package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/internal/domain/identity"
	identitymocks "github.com/brightclass/identity-go/internal/mocks/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

func newRoleSelectionFixture(t *testing.T) (*RoleSelection, *identitymocks.MockProvider, *identitymocks.MemoryStateStore) {
	t.Helper()
	provider := identitymocks.NewMockProvider()
	store := identitymocks.NewMemoryStateStore()
	engine := NewRoleRecoveryEngine(RoleRecoveryOptions{
		Provider: provider,
		Profiles: identitymocks.NewMemoryProfileRepo(),
		Store:    store,
	})
	return NewRoleSelection(provider, engine, nil), provider, store
}

func TestChooseCommitsRole(t *testing.T) {
	ctx := context.Background()
	selection, provider, store := newRoleSelectionFixture(t)
	require.NoError(t, store.Set(ctx, "c1", keyPendingRole, "student", 0))
	require.NoError(t, store.Set(ctx, "c1", keyRecoveryAttempts, "3", 0))

	require.NoError(t, selection.Choose(ctx, "c1", identity.RoleTeacher))

	require.Len(t, provider.Patches, 1)
	_, ok, _ := store.Get(ctx, "c1", keyPendingRole)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "c1", keyRecoveryAttempts)
	assert.False(t, ok, "explicit selection re-arms the recovery budget")
}

func TestChooseRejectsUnknownRole(t *testing.T) {
	selection, provider, _ := newRoleSelectionFixture(t)
	err := selection.Choose(context.Background(), "c1", identity.Role("admin"))
	assert.ErrorIs(t, err, identity.ErrInvalidRole)
	assert.Empty(t, provider.Patches)
}

func TestChooseSurfacesProviderFailure(t *testing.T) {
	selection, provider, _ := newRoleSelectionFixture(t)
	provider.UpdateFunc = func(context.Context, ports.MetadataPatch) (*identity.Identity, error) {
		return nil, assert.AnError
	}
	err := selection.Choose(context.Background(), "c1", identity.RoleTeacher)
	assert.Error(t, err)
}

func TestSavePendingWritesMarker(t *testing.T) {
	ctx := context.Background()
	selection, _, store := newRoleSelectionFixture(t)

	require.NoError(t, selection.SavePending(ctx, "c1", identity.RoleStudent))
	raw, ok, _ := store.Get(ctx, "c1", keyPendingRole)
	require.True(t, ok)
	assert.Equal(t, "student", raw)

	assert.ErrorIs(t, selection.SavePending(ctx, "c1", identity.Role("parent")), identity.ErrInvalidRole)
}
