package service

import (
	"context"
	"log/slog"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// RoleSelection handles the explicit role choice screen, the fallback when
// automatic recovery gave up.
type RoleSelection struct {
	provider ports.IdentityProvider
	recovery *RoleRecoveryEngine
	logger   *slog.Logger
}

// NewRoleSelection constructs a RoleSelection.
func NewRoleSelection(provider ports.IdentityProvider, recovery *RoleRecoveryEngine, logger *slog.Logger) *RoleSelection {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleSelection{provider: provider, recovery: recovery, logger: logger}
}

// Choose commits the user's explicit role choice: the provider metadata is
// patched, the pending marker consumed, and the recovery budget re-armed.
func (s *RoleSelection) Choose(ctx context.Context, clientID string, role identity.Role) error {
	if !role.Valid() {
		return identity.ErrInvalidRole
	}
	if _, err := s.provider.UpdateUserMetadata(ctx, rolePatch(role)); err != nil {
		return err
	}
	if err := s.recovery.ClearPending(ctx, clientID); err != nil {
		s.logger.WarnContext(ctx, "clear pending role failed", "error", err)
	}
	if err := s.recovery.ResetAttempts(ctx, clientID); err != nil {
		s.logger.WarnContext(ctx, "reset recovery attempts failed", "error", err)
	}
	s.logger.InfoContext(ctx, "role selected", "client_id", clientID, "role", role)
	return nil
}

// SavePending records a role choice ahead of an external OAuth detour so the
// callback can adopt it once the identity exists.
func (s *RoleSelection) SavePending(ctx context.Context, clientID string, role identity.Role) error {
	if !role.Valid() {
		return identity.ErrInvalidRole
	}
	return s.recovery.SavePending(ctx, clientID, role)
}
