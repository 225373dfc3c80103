// Package devseed populates the profile tables with development fixtures so
// the gateway's cache, recovery, and routing flows can be exercised locally
// without a real signup.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB       *sql.DB
	profiles *data.ProfileRepo
}

// NewServices constructs the repositories used for seeding against the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:       db,
		profiles: data.NewProfileRepo(db),
	}
}

type profileSeed struct {
	role identity.Role
	in   ports.CreateProfileInput
}

func defaultProfileSeeds() []profileSeed {
	return []profileSeed{
		{
			role: identity.RoleTeacher,
			in: ports.CreateProfileInput{
				IdentityID: "dev-teacher-1",
				Email:      "teacher@example.com",
				FirstName:  "Grace",
				LastName:   "Hopper",
			},
		},
		{
			role: identity.RoleTeacher,
			in: ports.CreateProfileInput{
				IdentityID: "dev-teacher-2",
				Email:      "second.teacher@example.com",
				FirstName:  "Alan",
				LastName:   "Kay",
				AvatarURL:  "https://cdn.example.com/avatars/alan.png",
			},
		},
		{
			role: identity.RoleStudent,
			in: ports.CreateProfileInput{
				IdentityID: "dev-student-1",
				Email:      "student@example.com",
				FirstName:  "Ada",
				LastName:   "Lovelace",
			},
		},
		{
			// Same email in both tables exercises the dual-role tie-break.
			role: identity.RoleStudent,
			in: ports.CreateProfileInput{
				IdentityID: "dev-teacher-1",
				Email:      "teacher@example.com",
				FirstName:  "Grace",
				LastName:   "Hopper",
			},
		},
	}
}

// Run executes the development seeding workflow against the provided DB.
// Seeding is idempotent: rows that already exist are left alone.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	for _, seed := range defaultProfileSeeds() {
		created, err := createProfile(ctx, svcs.profiles, seed)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed profile",
					"role", seed.role, "email", seed.in.Email, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "profile already exists"
			if created {
				msg = "created profile"
			}
			logger.InfoContext(ctx, msg, "role", seed.role, "email", seed.in.Email)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func createProfile(ctx context.Context, repo *data.ProfileRepo, seed profileSeed) (bool, error) {
	if _, err := repo.Create(ctx, seed.role, seed.in); err != nil {
		if errors.Is(err, data.ErrProfileExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
