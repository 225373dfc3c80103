package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/testutil"
)

func TestProfileRepo_CreateAndLookup(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		created, err := repo.Create(ctx, identity.RoleTeacher, ports.CreateProfileInput{
			IdentityID: "it-teacher-1",
			Email:      "grace@example.com",
			FirstName:  "Grace",
			LastName:   "Hopper",
		})
		require.NoError(t, err)
		assert.Equal(t, "it-teacher-1", created.IdentityID)
		assert.Equal(t, "grace@example.com", created.Email)
		assert.False(t, created.CreatedAt.IsZero())

		byID, err := repo.GetByIdentityID(ctx, identity.RoleTeacher, "it-teacher-1")
		require.NoError(t, err)
		assert.Equal(t, created.Email, byID.Email)

		byEmail, err := repo.GetByEmail(ctx, identity.RoleTeacher, "GRACE@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.IdentityID, byEmail.IdentityID)
	})
}

func TestProfileRepo_TablesArePartitionedByRole(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		_, err := repo.Create(ctx, identity.RoleTeacher, ports.CreateProfileInput{
			IdentityID: "it-dual-1",
			Email:      "dual@example.com",
		})
		require.NoError(t, err)

		// A student lookup must not see the teacher row.
		_, err = repo.GetByEmail(ctx, identity.RoleStudent, "dual@example.com")
		require.ErrorIs(t, err, ErrProfileNotFound)

		// The same identity may hold a row in each table.
		_, err = repo.Create(ctx, identity.RoleStudent, ports.CreateProfileInput{
			IdentityID: "it-dual-1",
			Email:      "dual@example.com",
		})
		require.NoError(t, err)

		student, err := repo.GetByEmail(ctx, identity.RoleStudent, "dual@example.com")
		require.NoError(t, err)
		assert.Equal(t, "it-dual-1", student.IdentityID)
	})
}

func TestProfileRepo_DuplicateCreateReportsExists(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		in := ports.CreateProfileInput{IdentityID: "it-dup-1", Email: "dup@example.com"}
		_, err := repo.Create(ctx, identity.RoleStudent, in)
		require.NoError(t, err)

		_, err = repo.Create(ctx, identity.RoleStudent, in)
		require.ErrorIs(t, err, ErrProfileExists)
	})
}

func TestProfileRepo_UpdatePartialFields(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		_, err := repo.Create(ctx, identity.RoleTeacher, ports.CreateProfileInput{
			IdentityID: "it-upd-1",
			Email:      "upd@example.com",
			FirstName:  "Ada",
			LastName:   "Lovelace",
		})
		require.NoError(t, err)

		updated, err := repo.Update(ctx, identity.RoleTeacher, "it-upd-1", ports.UpdateProfileInput{
			AvatarURL: testutil.StringPtr("https://cdn.example.com/a.png"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada", updated.FirstName)
		assert.Equal(t, "https://cdn.example.com/a.png", updated.AvatarURL)

		_, err = repo.Update(ctx, identity.RoleTeacher, "it-missing", ports.UpdateProfileInput{
			FirstName: testutil.StringPtr("Nobody"),
		})
		require.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestProfileRepo_DeleteIsIdempotent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		_, err := repo.Create(ctx, identity.RoleStudent, ports.CreateProfileInput{
			IdentityID: "it-del-1",
			Email:      "del@example.com",
		})
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByIdentityID(ctx, identity.RoleStudent, "it-del-1"))

		_, err = repo.GetByIdentityID(ctx, identity.RoleStudent, "it-del-1")
		require.ErrorIs(t, err, ErrProfileNotFound)

		// Deleting again is not an error.
		require.NoError(t, repo.DeleteByIdentityID(ctx, identity.RoleStudent, "it-del-1"))
	})
}
