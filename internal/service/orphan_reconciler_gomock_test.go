package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/mocks"
	"github.com/brightclass/identity-go/internal/testutil"
)

// Expectation-based coverage of the reconciler's exact repository calls:
// both tables probed by email, only the mismatched row deleted.
func TestReconcileProbesBothTablesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ident := testutil.NewIdentity().WithEmail("shared@example.com").Build()
	stale := testutil.NewProfile(ident).Build()
	stale.IdentityID = "discarded-id"

	repo := mocks.NewMockProfileRepository(ctrl)
	repo.EXPECT().
		GetByEmail(gomock.Any(), identity.RoleTeacher, "shared@example.com").
		Return(nil, data.ErrProfileNotFound)
	repo.EXPECT().
		GetByEmail(gomock.Any(), identity.RoleStudent, "shared@example.com").
		Return(&stale, nil)
	repo.EXPECT().
		DeleteByIdentityID(gomock.Any(), identity.RoleStudent, "discarded-id").
		Return(nil)

	rec := NewOrphanReconciler(repo, nil, slog.Default())
	removed := rec.Reconcile(context.Background(), &ident)
	assert.Equal(t, 1, removed)
}

func TestReconcileLeavesMatchingRowAlone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ident := testutil.NewIdentity().WithEmail("owner@example.com").Build()
	owned := testutil.NewProfile(ident).Build()

	repo := mocks.NewMockProfileRepository(ctrl)
	repo.EXPECT().
		GetByEmail(gomock.Any(), identity.RoleTeacher, "owner@example.com").
		Return(&owned, nil)
	repo.EXPECT().
		GetByEmail(gomock.Any(), identity.RoleStudent, "owner@example.com").
		Return(nil, data.ErrProfileNotFound)

	rec := NewOrphanReconciler(repo, nil, slog.Default())
	removed := rec.Reconcile(context.Background(), &ident)
	assert.Equal(t, 0, removed)
}
