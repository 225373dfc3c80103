package service

// Signup progress tracking distinguishes an active signup flow (user just
// registered, mid-onboarding) from a truly stuck account (old session with
// missing role metadata). Conflating the two causes spurious redirects to the
// role-selection fallback.

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/ports"
)

// DefaultSignupTimeout is how long a signup may stay "in progress" before the
// flag is considered abandoned and cleared.
const DefaultSignupTimeout = 30 * time.Minute

// SignupStateOptions groups dependencies for SignupState.
type SignupStateOptions struct {
	Store        ports.StateStore
	Timeout      time.Duration // default DefaultSignupTimeout
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// SignupState tracks the signup-in-progress marker in the per-client state
// store.
type SignupState struct {
	store   ports.StateStore
	timeout time.Duration
	tp      data.TimeProvider
	logger  *slog.Logger
}

// NewSignupState constructs a SignupState.
func NewSignupState(opts SignupStateOptions) *SignupState {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSignupTimeout
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SignupState{store: opts.Store, timeout: timeout, tp: tp, logger: logger}
}

// MarkInProgress flags the client as mid-signup. Called when the signup flow
// begins.
func (s *SignupState) MarkInProgress(ctx context.Context, clientID string) error {
	now := strconv.FormatInt(s.tp.Now().UnixMilli(), 10)
	if err := s.store.Set(ctx, clientID, keySignupInProgress, "true", 0); err != nil {
		return err
	}
	return s.store.Set(ctx, clientID, keySignupStartedAt, now, 0)
}

// MarkComplete clears the signup flag. Called after onboarding finishes.
func (s *SignupState) MarkComplete(ctx context.Context, clientID string) error {
	if err := s.store.Delete(ctx, clientID, keySignupInProgress); err != nil {
		return err
	}
	return s.store.Delete(ctx, clientID, keySignupStartedAt)
}

// InProgress reports whether a signup is actively in progress. A flag older
// than the timeout is treated as abandoned and cleared. Store errors read as
// "not in progress" so a flaky store never blocks recovery forever.
func (s *SignupState) InProgress(ctx context.Context, clientID string) bool {
	val, ok, err := s.store.Get(ctx, clientID, keySignupInProgress)
	if err != nil {
		s.logger.WarnContext(ctx, "signup flag read failed", "error", err)
		return false
	}
	if !ok || val != "true" {
		return false
	}

	raw, ok, err := s.store.Get(ctx, clientID, keySignupStartedAt)
	if err != nil || !ok {
		return true
	}
	startedMs, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return true
	}
	started := time.UnixMilli(startedMs)
	if s.tp.Now().Sub(started) > s.timeout {
		s.logger.WarnContext(ctx, "signup timed out, clearing flag",
			"client_id", clientID, "started_at", started)
		if clearErr := s.MarkComplete(ctx, clientID); clearErr != nil {
			s.logger.WarnContext(ctx, "clear stale signup flag failed", "error", clearErr)
		}
		return false
	}
	return true
}
