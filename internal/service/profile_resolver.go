package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/observability/metrics"
	"github.com/brightclass/identity-go/internal/observability/statsd"
	"github.com/brightclass/identity-go/internal/ports"
)

const (
	// DefaultCacheFreshness is how long a cached profile entry is served
	// without re-fetching.
	DefaultCacheFreshness = 5 * time.Minute

	// DefaultFetchLeaseTTL bounds how long a single profile fetch may hold
	// the in-flight lease before another caller is allowed to retry.
	DefaultFetchLeaseTTL = 10 * time.Second
)

// ProfileResolverOptions groups dependencies for ProfileResolver.
type ProfileResolverOptions struct {
	Profiles     ports.ProfileRepository
	Store        ports.StateStore
	Freshness    time.Duration // default DefaultCacheFreshness
	LeaseTTL     time.Duration // default DefaultFetchLeaseTTL
	TimeProvider data.TimeProvider
	Metrics      statsd.Sink
	Logger       *slog.Logger
}

// ProfileResolver answers "does this identity have a {role} profile, and what
// does it look like" with a per-client cache in front of the repository.
// Concurrent resolves for the same identity are collapsed with a store lease:
// the loser returns whatever cached value exists rather than piling on.
type ProfileResolver struct {
	profiles  ports.ProfileRepository
	store     ports.StateStore
	freshness time.Duration
	leaseTTL  time.Duration
	tp        data.TimeProvider
	metrics   statsd.Sink
	logger    *slog.Logger
}

// NewProfileResolver constructs a ProfileResolver.
func NewProfileResolver(opts ProfileResolverOptions) *ProfileResolver {
	freshness := opts.Freshness
	if freshness <= 0 {
		freshness = DefaultCacheFreshness
	}
	leaseTTL := opts.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = DefaultFetchLeaseTTL
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileResolver{
		profiles:  opts.Profiles,
		store:     opts.Store,
		freshness: freshness,
		leaseTTL:  leaseTTL,
		tp:        tp,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// ResolveOptions tunes a single Resolve call.
type ResolveOptions struct {
	// Force bypasses the freshness check and always fetches. The lease still
	// applies.
	Force bool
}

// Resolve returns the profile cache entry for the identity, fetching from the
// repository when the cache is stale or missing. A repository failure yields
// an entry with HasProfile=false that is NOT persisted, so callers treat the
// identity as profile-less for this pass but the next resolve retries.
func (r *ProfileResolver) Resolve(ctx context.Context, clientID string, role identity.Role, identityID string, opts ResolveOptions) identity.ProfileCacheEntry {
	now := r.tp.Now()

	cached, haveCached := r.readCache(ctx, clientID, role)
	if haveCached && !cached.Known() && cached.HasDisplayFields() {
		// A restored blob with display fields but no existence flag implies
		// the profile exists; repair rather than re-fetch.
		exists := true
		cached.HasProfile = &exists
		r.writeCache(ctx, clientID, role, cached)
	}
	if haveCached && !opts.Force && cached.Fresh(now, r.freshness) {
		r.emit(role, "cache", "hit", 0)
		return cached
	}

	acquired, err := r.store.SetIfNotExists(ctx, clientID, inflightKey(role, identityID), "1", r.leaseTTL)
	if err != nil {
		r.logger.WarnContext(ctx, "profile fetch lease failed", "error", err)
	}
	if err == nil && !acquired {
		// Another resolve is in flight. Serve the stale entry if we have one.
		r.emit(role, "inflight-skip", metrics.ResultNoop, 0)
		if haveCached {
			return cached
		}
		return identity.ProfileCacheEntry{FetchedAt: now}
	}
	defer func() {
		if delErr := r.store.Delete(ctx, clientID, inflightKey(role, identityID)); delErr != nil {
			r.logger.WarnContext(ctx, "profile fetch lease release failed", "error", delErr)
		}
	}()

	start := r.tp.Now()
	profile, fetchErr := r.profiles.GetByIdentityID(ctx, role, identityID)
	elapsed := r.tp.Now().Sub(start)

	switch {
	case fetchErr == nil:
		entry := identity.CacheEntryFromProfile(profile, now)
		r.writeCache(ctx, clientID, role, entry)
		r.emit(role, "store", "exists", elapsed)
		return entry
	case errors.Is(fetchErr, data.ErrProfileNotFound):
		entry := identity.CacheEntryFromProfile(nil, now)
		r.writeCache(ctx, clientID, role, entry)
		r.emit(role, "store", "missing", elapsed)
		return entry
	default:
		r.logger.ErrorContext(ctx, "profile fetch failed",
			"role", role, "identity_id", identityID, "error", fetchErr)
		r.emit(role, "store", metrics.ResultError, elapsed)
		missing := false
		return identity.ProfileCacheEntry{HasProfile: &missing, FetchedAt: now}
	}
}

// Invalidate drops the cached entry for the role so the next resolve fetches.
func (r *ProfileResolver) Invalidate(ctx context.Context, clientID string, role identity.Role) error {
	return r.store.Delete(ctx, clientID, profileCacheKey(role))
}

func (r *ProfileResolver) readCache(ctx context.Context, clientID string, role identity.Role) (identity.ProfileCacheEntry, bool) {
	raw, ok, err := r.store.Get(ctx, clientID, profileCacheKey(role))
	if err != nil {
		r.logger.WarnContext(ctx, "profile cache read failed", "error", err)
		return identity.ProfileCacheEntry{}, false
	}
	if !ok {
		return identity.ProfileCacheEntry{}, false
	}
	var entry identity.ProfileCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		r.logger.WarnContext(ctx, "profile cache entry corrupt, dropping", "error", err)
		_ = r.store.Delete(ctx, clientID, profileCacheKey(role))
		return identity.ProfileCacheEntry{}, false
	}
	return entry, true
}

func (r *ProfileResolver) writeCache(ctx context.Context, clientID string, role identity.Role, entry identity.ProfileCacheEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, clientID, profileCacheKey(role), string(raw), 0); err != nil {
		r.logger.WarnContext(ctx, "profile cache write failed", "error", err)
	}
}

func (r *ProfileResolver) emit(role identity.Role, source, result string, d time.Duration) {
	metrics.EmitProfileFetch(r.metrics, metrics.ProfileFetchMetric{
		Role:     string(role),
		Source:   source,
		Result:   result,
		Duration: d,
	})
}
