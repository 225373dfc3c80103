package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/observability/metrics"
	"github.com/brightclass/identity-go/internal/observability/notify"
	"github.com/brightclass/identity-go/internal/observability/statsd"
	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/service/failurenotifier"
)

// DefaultCallbackTimeout bounds the whole callback completion flow. Past the
// deadline the client is sent back to auth rather than left on a blank page.
const DefaultCallbackTimeout = 20 * time.Second

// CallbackOptions groups dependencies for CallbackHandler.
type CallbackOptions struct {
	Provider     ports.IdentityProvider
	Profiles     ports.ProfileRepository
	Roles        ports.RoleExtractor
	Recovery     *RoleRecoveryEngine
	Orphans      *OrphanReconciler
	Signup       *SignupState
	Store        ports.StateStore
	Navigator    ports.Navigator
	Timeout      time.Duration // default DefaultCallbackTimeout
	TimeProvider data.TimeProvider
	Metrics      statsd.Sink
	Incidents    *failurenotifier.Service
	Logger       *slog.Logger
}

// CallbackHandler finishes an external auth detour: it reconciles the fresh
// identity against the profile tables, repairs role metadata, cleans up
// orphaned rows, and picks the client's landing path.
type CallbackHandler struct {
	provider  ports.IdentityProvider
	profiles  ports.ProfileRepository
	roles     ports.RoleExtractor
	recovery  *RoleRecoveryEngine
	orphans   *OrphanReconciler
	signup    *SignupState
	store     ports.StateStore
	navigator ports.Navigator
	timeout   time.Duration
	tp        data.TimeProvider
	metrics   statsd.Sink
	incidents *failurenotifier.Service
	logger    *slog.Logger
}

// NewCallbackHandler constructs a CallbackHandler.
func NewCallbackHandler(opts CallbackOptions) *CallbackHandler {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{
		provider:  opts.Provider,
		profiles:  opts.Profiles,
		roles:     opts.Roles,
		recovery:  opts.Recovery,
		orphans:   opts.Orphans,
		signup:    opts.Signup,
		store:     opts.Store,
		navigator: opts.Navigator,
		timeout:   timeout,
		tp:        tp,
		metrics:   opts.Metrics,
		incidents: opts.Incidents,
		logger:    logger,
	}
}

type callbackResult struct {
	path    string
	reason  string
	outcome string
}

// Complete runs the callback flow under the hard deadline and navigates the
// client to the final destination. On deadline the client goes back to the
// auth entry point and any late result is discarded.
func (h *CallbackHandler) Complete(ctx context.Context, clientID string) identity.RouteDecision {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var timedOut atomic.Bool
	results := make(chan callbackResult, 1)
	go func() {
		results <- h.run(cctx, clientID, &timedOut)
	}()

	select {
	case res := <-results:
		metrics.EmitCallbackOutcome(h.metrics, res.outcome, time.Since(start))
		h.logger.InfoContext(ctx, "callback complete",
			"client_id", clientID, "outcome", res.outcome, "path", res.path)
		h.navigate(ctx, clientID, res.path)
		return identity.Redirect(res.path, res.reason)
	case <-cctx.Done():
		timedOut.Store(true)
		metrics.EmitCallbackOutcome(h.metrics, "timeout", time.Since(start))
		h.logger.WarnContext(ctx, "callback timed out", "client_id", clientID)
		if h.incidents != nil && h.incidents.Enabled() {
			h.incidents.NotifyProviderIncident(ctx, notify.ProviderIncidentPayload{
				Kind:       notify.KindCallbackTimeout,
				ClientID:   clientID,
				Error:      context.DeadlineExceeded.Error(),
				OccurredAt: h.tp.Now(),
			})
		}
		h.navigate(ctx, clientID, identity.PathAuth)
		return identity.Redirect(identity.PathAuth, "callback-timeout")
	}
}

func (h *CallbackHandler) run(ctx context.Context, clientID string, timedOut *atomic.Bool) callbackResult {
	ident, err := h.provider.GetUser(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "callback identity fetch failed", "error", err)
	}
	if ident == nil || ident.IsZero() {
		return callbackResult{path: identity.PathAuth, reason: "no-identity", outcome: "no-identity"}
	}

	// Existing profiles end the flow at a dashboard. Teacher-first order
	// keeps the outcome deterministic when both tables hold a row.
	existingRole, hasProfile := h.probeByIdentity(ctx, ident.ID)

	if h.orphans != nil && !timedOut.Load() {
		h.orphans.Reconcile(ctx, ident)
	}
	if timedOut.Load() {
		return callbackResult{path: identity.PathAuth, reason: "callback-timeout", outcome: "timeout"}
	}

	if hasProfile {
		if claimed, ok := h.roles.Role(ident.Metadata); !ok || claimed != existingRole {
			if _, err := h.provider.UpdateUserMetadata(ctx, rolePatch(existingRole)); err != nil {
				h.logger.WarnContext(ctx, "role metadata repair failed",
					"identity_id", ident.ID, "role", existingRole, "error", err)
			}
		}
		if err := h.store.Delete(ctx, clientID, keyPendingRole); err != nil {
			h.logger.WarnContext(ctx, "clear pending role failed", "error", err)
		}
		return callbackResult{
			path:    identity.DashboardPath(existingRole),
			reason:  "existing-profile",
			outcome: "dashboard",
		}
	}

	role, ok := h.roles.Role(ident.Metadata)
	if !ok {
		role, ok = h.restoreRole(ctx, clientID, ident, timedOut)
	}
	if timedOut.Load() {
		return callbackResult{path: identity.PathAuth, reason: "callback-timeout", outcome: "timeout"}
	}
	if !ok {
		return callbackResult{
			path:    identity.PathRoleSelection,
			reason:  "role-unresolved",
			outcome: "role-selection",
		}
	}

	if target, found := h.consumeSavedRedirect(ctx, clientID); found {
		return callbackResult{path: target, reason: "saved-redirect", outcome: "saved-redirect"}
	}
	return callbackResult{
		path:    identity.OnboardingPath(role),
		reason:  "needs-onboarding",
		outcome: "onboarding",
	}
}

// restoreRole fills a missing role claim: an in-progress signup consumes the
// pending marker directly, anything else goes through the recovery engine.
func (h *CallbackHandler) restoreRole(ctx context.Context, clientID string, ident *identity.Identity, timedOut *atomic.Bool) (identity.Role, bool) {
	if h.signup != nil && h.signup.InProgress(ctx, clientID) {
		if h.recovery == nil {
			return "", false
		}
		role, found := h.recovery.PendingRole(ctx, clientID)
		if !found || timedOut.Load() {
			return "", false
		}
		if _, err := h.provider.UpdateUserMetadata(ctx, rolePatch(role)); err != nil {
			h.logger.WarnContext(ctx, "pending role patch failed", "error", err)
			return "", false
		}
		if err := h.recovery.ClearPending(ctx, clientID); err != nil {
			h.logger.WarnContext(ctx, "clear pending role failed", "error", err)
		}
		return role, true
	}

	if h.recovery == nil || !h.recovery.ShouldAttempt(ctx, clientID, ident) {
		return "", false
	}
	role, recovered, err := h.recovery.Attempt(ctx, clientID, ident)
	if err != nil {
		h.logger.ErrorContext(ctx, "callback role recovery failed", "error", err)
		return "", false
	}
	return role, recovered
}

// probeByIdentity checks both role tables for a row keyed by identity id.
func (h *CallbackHandler) probeByIdentity(ctx context.Context, identityID string) (identity.Role, bool) {
	for _, role := range identity.Roles() {
		_, err := h.profiles.GetByIdentityID(ctx, role, identityID)
		if err == nil {
			return role, true
		}
		if !errors.Is(err, data.ErrProfileNotFound) {
			h.logger.WarnContext(ctx, "callback profile probe failed",
				"role", role, "error", err)
		}
	}
	return "", false
}

func (h *CallbackHandler) consumeSavedRedirect(ctx context.Context, clientID string) (string, bool) {
	target, ok, err := h.store.Get(ctx, clientID, keyRedirectAfterLogin)
	if err != nil {
		h.logger.WarnContext(ctx, "saved redirect read failed", "error", err)
		return "", false
	}
	if !ok || target == "" || identity.IsAuthPath(target) {
		return "", false
	}
	if err := h.store.Delete(ctx, clientID, keyRedirectAfterLogin); err != nil {
		h.logger.WarnContext(ctx, "saved redirect clear failed", "error", err)
	}
	return target, true
}

func (h *CallbackHandler) navigate(ctx context.Context, clientID, path string) {
	if h.navigator == nil {
		return
	}
	if err := h.navigator.Navigate(ctx, clientID, path); err != nil {
		h.logger.WarnContext(ctx, "callback navigation failed", "path", path, "error", err)
	}
}
