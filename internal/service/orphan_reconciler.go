package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/observability/metrics"
	"github.com/brightclass/identity-go/internal/observability/statsd"
	"github.com/brightclass/identity-go/internal/ports"
)

// OrphanReconciler removes profile rows left behind when an account was
// deleted at the provider and the same email later re-registered under a new
// identity id. Such rows shadow the fresh account: the email lookup matches
// but the identity id does not, so the row can never be reached again.
//
// Reconciliation is best effort. It never fails the calling flow; errors are
// logged and the orphan survives until the next pass.
type OrphanReconciler struct {
	profiles ports.ProfileRepository
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewOrphanReconciler constructs an OrphanReconciler.
func NewOrphanReconciler(profiles ports.ProfileRepository, sink statsd.Sink, logger *slog.Logger) *OrphanReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrphanReconciler{profiles: profiles, metrics: sink, logger: logger}
}

// Reconcile scans both role tables for rows matching the identity's email
// under a different identity id and deletes them. Returns the number of rows
// removed.
func (o *OrphanReconciler) Reconcile(ctx context.Context, ident *identity.Identity) int {
	if ident == nil || ident.Email == "" {
		return 0
	}
	removed := 0
	for _, role := range identity.Roles() {
		profile, err := o.profiles.GetByEmail(ctx, role, ident.Email)
		if err != nil {
			if !errors.Is(err, data.ErrProfileNotFound) {
				o.logger.WarnContext(ctx, "orphan scan lookup failed",
					"role", role, "error", err)
			}
			continue
		}
		if profile.IdentityID == ident.ID {
			continue
		}
		if err := o.profiles.DeleteByIdentityID(ctx, role, profile.IdentityID); err != nil {
			o.logger.WarnContext(ctx, "orphan delete failed",
				"role", role, "orphan_identity_id", profile.IdentityID, "error", err)
			continue
		}
		o.logger.InfoContext(ctx, "orphaned profile removed",
			"role", role, "email", ident.Email, "orphan_identity_id", profile.IdentityID)
		metrics.EmitOrphanDeleted(o.metrics, string(role))
		removed++
	}
	return removed
}
