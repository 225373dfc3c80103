package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/brightclass/identity-go/internal/data/pgxutil"
	"github.com/brightclass/identity-go/internal/domain/identity"
	apperrors "github.com/brightclass/identity-go/internal/errors"
	"github.com/brightclass/identity-go/internal/ports"
)

// profileTables maps each role to its partitioned table. Lookups always hit
// exactly one table; callers that need both issue two calls.
var profileTables = map[identity.Role]string{
	identity.RoleTeacher: "teacher_profiles",
	identity.RoleStudent: "student_profiles",
}

// profileColumns is the display-minimal column set the gateway ever reads.
const profileColumns = "identity_id, email, first_name, last_name, avatar_url, created_at, updated_at"

// profileRow mirrors a profile table row for pgx struct scanning.
type profileRow struct {
	IdentityID string    `db:"identity_id"`
	Email      string    `db:"email"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	AvatarURL  *string   `db:"avatar_url"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r profileRow) toDomain() *identity.Profile {
	p := &identity.Profile{
		IdentityID: r.IdentityID,
		Email:      r.Email,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.AvatarURL != nil {
		p.AvatarURL = *r.AvatarURL
	}
	return p
}

// ProfileRepo provides database operations for the role-partitioned profile
// tables. It implements ports.ProfileRepository.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.ProfileRepository = (*ProfileRepo)(nil)

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// GetByIdentityID retrieves a profile from the role's table by identity id.
func (r *ProfileRepo) GetByIdentityID(
	ctx context.Context,
	role identity.Role,
	identityID string,
) (*identity.Profile, error) {
	if identityID == "" {
		return nil, ErrIdentityIDRequired
	}
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE identity_id = $1", profileColumns, table)
	return r.getByQuery(ctx, q, "get profile by identity id", identityID)
}

// GetByEmail retrieves a profile from the role's table by email. Email is the
// secondary lookup key used for orphan detection.
func (r *ProfileRepo) GetByEmail(
	ctx context.Context,
	role identity.Role,
	email string,
) (*identity.Profile, error) {
	if email == "" {
		return nil, ErrEmailRequired
	}
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE lower(email) = lower($1)", profileColumns, table)
	return r.getByQuery(ctx, q, "get profile by email", email)
}

// Create inserts a new profile row.
func (r *ProfileRepo) Create(
	ctx context.Context,
	role identity.Role,
	in ports.CreateProfileInput,
) (*identity.Profile, error) {
	if in.IdentityID == "" {
		return nil, ErrIdentityIDRequired
	}
	if in.Email == "" {
		return nil, ErrEmailRequired
	}
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	q := fmt.Sprintf(`
		INSERT INTO %s (identity_id, email, first_name, last_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
		RETURNING %s`, table, profileColumns)

	var out profileRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q,
			in.IdentityID,
			strings.ToLower(strings.TrimSpace(in.Email)),
			strings.TrimSpace(in.FirstName),
			strings.TrimSpace(in.LastName),
			in.AvatarURL,
			now,
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return qerr
	}); err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return nil, fmt.Errorf("%w: %v", ErrProfileExists, mapped)
		}
		return nil, fmt.Errorf("create %s profile: %w", role, mapped)
	}
	return out.toDomain(), nil
}

// Update applies a partial display-field update by identity id.
func (r *ProfileRepo) Update(
	ctx context.Context,
	role identity.Role,
	identityID string,
	in ports.UpdateProfileInput,
) (*identity.Profile, error) {
	if identityID == "" {
		return nil, ErrIdentityIDRequired
	}
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		UPDATE %s SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = $5
		WHERE identity_id = $1
		RETURNING %s`, table, profileColumns)

	now := r.timeProvider.Now().UTC()
	var out profileRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, identityID, in.FirstName, in.LastName, in.AvatarURL, now)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return qerr
	}); err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("update %s profile: %w", role, mapped)
	}
	return out.toDomain(), nil
}

// DeleteByIdentityID removes a profile row. Deleting a missing row is a no-op.
func (r *ProfileRepo) DeleteByIdentityID(
	ctx context.Context,
	role identity.Role,
	identityID string,
) error {
	if identityID == "" {
		return ErrIdentityIDRequired
	}
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE identity_id = $1", table)
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, q, identityID)
		return execErr
	}); err != nil {
		return fmt.Errorf("delete %s profile: %w", role, apperrors.MapDBError(err))
	}
	return nil
}

// getByQuery executes a single-row lookup, mapping pgx.ErrNoRows to
// ErrProfileNotFound. Uses variadic args to avoid slice allocation at call sites.
func (r *ProfileRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*identity.Profile, error) {
	var out profileRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return qerr
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, apperrors.MapDBError(err))
	}
	return out.toDomain(), nil
}

func tableFor(role identity.Role) (string, error) {
	table, ok := profileTables[role]
	if !ok {
		return "", fmt.Errorf("unknown role: %q", role)
	}
	return table, nil
}
