package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/observability/metrics"
	"github.com/brightclass/identity-go/internal/observability/statsd"
	"github.com/brightclass/identity-go/internal/ports"
)

const (
	// DefaultMaxRecoveryAttempts bounds automatic role recovery per client.
	// Past the budget the client is routed to manual role selection instead.
	DefaultMaxRecoveryAttempts = 3

	// DefaultNewAccountWindow is how long after account creation recovery is
	// suppressed. A brand-new account with no role is mid-signup, not stuck.
	DefaultNewAccountWindow = 5 * time.Minute
)

// RoleRecoveryOptions groups dependencies for RoleRecoveryEngine.
type RoleRecoveryOptions struct {
	Provider         ports.IdentityProvider
	Profiles         ports.ProfileRepository
	Store            ports.StateStore
	Signup           *SignupState
	MaxAttempts      int           // default DefaultMaxRecoveryAttempts
	NewAccountWindow time.Duration // default DefaultNewAccountWindow
	TimeProvider     data.TimeProvider
	Metrics          statsd.Sink
	Logger           *slog.Logger
}

// RoleRecoveryEngine restores a missing role claim for accounts whose
// metadata was lost or never written. It consults the pending-role marker
// first, then probes the profile tables; a determined role is written back to
// the provider so subsequent sessions carry it.
type RoleRecoveryEngine struct {
	provider    ports.IdentityProvider
	profiles    ports.ProfileRepository
	store       ports.StateStore
	signup      *SignupState
	maxAttempts int
	newWindow   time.Duration
	tp          data.TimeProvider
	metrics     statsd.Sink
	logger      *slog.Logger
}

// NewRoleRecoveryEngine constructs a RoleRecoveryEngine.
func NewRoleRecoveryEngine(opts RoleRecoveryOptions) *RoleRecoveryEngine {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRecoveryAttempts
	}
	window := opts.NewAccountWindow
	if window <= 0 {
		window = DefaultNewAccountWindow
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleRecoveryEngine{
		provider:    opts.Provider,
		profiles:    opts.Profiles,
		store:       opts.Store,
		signup:      opts.Signup,
		maxAttempts: maxAttempts,
		newWindow:   window,
		tp:          tp,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// ShouldAttempt reports whether automatic recovery may run for this identity.
// It is false once the attempt budget is spent, while a signup is actively in
// progress, and for accounts younger than the new-account window.
func (e *RoleRecoveryEngine) ShouldAttempt(ctx context.Context, clientID string, ident *identity.Identity) bool {
	if ident == nil || ident.IsZero() {
		return false
	}
	if e.attempts(ctx, clientID) >= e.maxAttempts {
		metrics.EmitRecoveryExhausted(e.metrics)
		return false
	}
	if e.signup != nil && e.signup.InProgress(ctx, clientID) {
		return false
	}
	if !ident.CreatedAt.IsZero() && ident.Age(e.tp.Now()) < e.newWindow {
		return false
	}
	return true
}

// Attempt runs one recovery pass. The attempt counter is incremented before
// any recovery step so a crash mid-attempt still consumes budget. Returns the
// recovered role and true on success.
func (e *RoleRecoveryEngine) Attempt(ctx context.Context, clientID string, ident *identity.Identity) (identity.Role, bool, error) {
	attempt := e.attempts(ctx, clientID) + 1
	if err := e.store.Set(ctx, clientID, keyRecoveryAttempts, strconv.Itoa(attempt), 0); err != nil {
		return "", false, err
	}
	e.logger.InfoContext(ctx, "role recovery attempt",
		"client_id", clientID, "identity_id", ident.ID, "attempt", attempt)

	if role, ok := e.PendingRole(ctx, clientID); ok {
		if err := e.adopt(ctx, clientID, role); err != nil {
			metrics.EmitRecoveryAttempt(e.metrics, false, string(identity.RecoverySourcePending))
			return "", false, err
		}
		metrics.EmitRecoveryAttempt(e.metrics, true, string(identity.RecoverySourcePending))
		e.logger.InfoContext(ctx, "role recovered from pending selection",
			"identity_id", ident.ID, "role", role)
		return role, true, nil
	}

	role, ok, err := e.probeProfiles(ctx, ident.ID)
	if err != nil {
		metrics.EmitRecoveryAttempt(e.metrics, false, string(identity.RecoverySourceExistingProfile))
		return "", false, err
	}
	if !ok {
		metrics.EmitRecoveryAttempt(e.metrics, false, "")
		return "", false, nil
	}
	if err := e.adopt(ctx, clientID, role); err != nil {
		metrics.EmitRecoveryAttempt(e.metrics, false, string(identity.RecoverySourceExistingProfile))
		return "", false, err
	}
	metrics.EmitRecoveryAttempt(e.metrics, true, string(identity.RecoverySourceExistingProfile))
	e.logger.InfoContext(ctx, "role recovered from existing profile",
		"identity_id", ident.ID, "role", role)
	return role, true, nil
}

// ResetAttempts clears the attempt counter, re-arming automatic recovery.
// Called after a successful manual role selection.
func (e *RoleRecoveryEngine) ResetAttempts(ctx context.Context, clientID string) error {
	return e.store.Delete(ctx, clientID, keyRecoveryAttempts)
}

// PendingRole returns a previously saved role choice, if any.
func (e *RoleRecoveryEngine) PendingRole(ctx context.Context, clientID string) (identity.Role, bool) {
	raw, ok, err := e.store.Get(ctx, clientID, keyPendingRole)
	if err != nil {
		e.logger.WarnContext(ctx, "pending role read failed", "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	role, err := identity.ParseRole(raw)
	if err != nil {
		return "", false
	}
	return role, true
}

// SavePending records a role choice ahead of an external auth redirect.
func (e *RoleRecoveryEngine) SavePending(ctx context.Context, clientID string, role identity.Role) error {
	return e.store.Set(ctx, clientID, keyPendingRole, string(role), 0)
}

// ClearPending removes the pending role marker.
func (e *RoleRecoveryEngine) ClearPending(ctx context.Context, clientID string) error {
	return e.store.Delete(ctx, clientID, keyPendingRole)
}

// adopt writes the role to the provider metadata, then clears the pending
// marker and resets the attempt counter.
func (e *RoleRecoveryEngine) adopt(ctx context.Context, clientID string, role identity.Role) error {
	if _, err := e.provider.UpdateUserMetadata(ctx, rolePatch(role)); err != nil {
		return err
	}
	if err := e.ClearPending(ctx, clientID); err != nil {
		e.logger.WarnContext(ctx, "clear pending role failed", "error", err)
	}
	return e.ResetAttempts(ctx, clientID)
}

// probeProfiles checks both role tables concurrently. One row recovers that
// row's role. Rows in both tables violate the one-profile invariant; the
// teacher role wins deterministically so repeated attempts agree.
func (e *RoleRecoveryEngine) probeProfiles(ctx context.Context, identityID string) (identity.Role, bool, error) {
	roles := identity.Roles()
	found := make([]bool, len(roles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		g.Go(func() error {
			_, err := e.profiles.GetByIdentityID(gctx, role, identityID)
			if err == nil {
				found[i] = true
				return nil
			}
			if errors.Is(err, data.ErrProfileNotFound) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", false, err
	}

	var matched []identity.Role
	for i, role := range roles {
		if found[i] {
			matched = append(matched, role)
		}
	}
	switch len(matched) {
	case 0:
		return "", false, nil
	case 1:
		return matched[0], true, nil
	default:
		// Roles() is teacher-first, so matched[0] is the winner.
		e.logger.WarnContext(ctx, "identity has profiles under multiple roles",
			"identity_id", identityID, "chosen", matched[0])
		return matched[0], true, nil
	}
}

func (e *RoleRecoveryEngine) attempts(ctx context.Context, clientID string) int {
	raw, ok, err := e.store.Get(ctx, clientID, keyRecoveryAttempts)
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
