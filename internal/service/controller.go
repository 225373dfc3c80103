package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/observability/notify"
	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/service/failurenotifier"
)

// Snapshot is the controller's read state handed to consumers: the route
// gate, the HTTP surface, and tests. Profile.HasProfile stays nil until a
// resolve settles, which consumers must distinguish from a known false.
type Snapshot struct {
	Identity       *identity.Identity
	Session        *identity.Session
	Role           identity.Role
	HasRole        bool
	Profile        identity.ProfileCacheEntry
	Loading        bool
	ProfileLoading bool
}

// SessionControllerOptions groups dependencies for SessionController.
type SessionControllerOptions struct {
	ClientID string
	Provider ports.IdentityProvider
	// Events is this controller's auth event subscription, normally taken
	// from an EventBroadcaster so every controller sees every event. Nil
	// falls back to the provider's raw stream, which is only safe with a
	// single controller.
	Events       <-chan identity.AuthEvent
	Roles        ports.RoleExtractor
	Resolver     *ProfileResolver
	Recovery     *RoleRecoveryEngine
	Signup       *SignupState
	Store        ports.StateStore
	Navigator    ports.Navigator
	TimeProvider data.TimeProvider
	Incidents    *failurenotifier.Service
	Logger       *slog.Logger
}

// SessionController owns one client's identity state. It populates itself
// with a one-shot session fetch, then follows the provider's event stream for
// its lifetime. Events are handled one at a time in arrival order; profile
// resolution runs off the event loop and settles through a sequence guard so
// a slow fetch can never overwrite the result of a newer one.
//
// All mutable state lives on the instance. Tests construct as many isolated
// controllers as they need.
type SessionController struct {
	clientID  string
	provider  ports.IdentityProvider
	events    <-chan identity.AuthEvent
	roles     ports.RoleExtractor
	resolver  *ProfileResolver
	recovery  *RoleRecoveryEngine
	signup    *SignupState
	store     ports.StateStore
	navigator ports.Navigator
	tp        data.TimeProvider
	incidents *failurenotifier.Service
	logger    *slog.Logger

	handlers map[identity.EventType]func(context.Context, identity.AuthEvent)

	mu             sync.Mutex
	ident          *identity.Identity
	session        *identity.Session
	profile        identity.ProfileCacheEntry
	loading        bool
	profileLoading bool
	visible        bool
	resolveSeq     uint64

	done chan struct{}
}

// NewSessionController constructs a controller for one client. Call Start to
// populate it and begin event handling.
func NewSessionController(opts SessionControllerOptions) *SessionController {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := opts.Events
	if events == nil && opts.Provider != nil {
		events = opts.Provider.Events()
	}
	c := &SessionController{
		clientID:  opts.ClientID,
		provider:  opts.Provider,
		events:    events,
		roles:     opts.Roles,
		resolver:  opts.Resolver,
		recovery:  opts.Recovery,
		signup:    opts.Signup,
		store:     opts.Store,
		navigator: opts.Navigator,
		tp:        tp,
		incidents: opts.Incidents,
		logger:    logger.With("client_id", opts.ClientID),
		loading:   true,
		visible:   true,
		done:      make(chan struct{}),
	}
	c.handlers = map[identity.EventType]func(context.Context, identity.AuthEvent){
		identity.EventTokenRefreshed:     c.onTokenRefreshed,
		identity.EventSignedOut:          c.onSignedOut,
		identity.EventTokenRefreshFailed: c.onTokenRefreshFailed,
		identity.EventUserUpdated:        c.onUserUpdated,
		identity.EventSignedIn:           c.onSignedIn,
		identity.EventInitialSession:     c.onInitialSession,
	}
	return c
}

// Start populates the controller with the current session and begins
// consuming provider events until ctx is canceled or the event stream closes.
// It returns after the initial populate; the controller is Ready even when
// profile resolution is still settling.
func (c *SessionController) Start(ctx context.Context) error {
	ctx = ports.WithClientID(ctx, c.clientID)
	sess, err := c.provider.GetSession(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "initial session fetch failed", "error", err)
	}
	c.adopt(sess)

	if role, ok := c.currentRole(); ok {
		c.resolveAsync(ctx, role, ResolveOptions{})
	}
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()

	go c.eventLoop(ctx)
	return err
}

// Done is closed when the event loop has exited.
func (c *SessionController) Done() <-chan struct{} { return c.done }

func (c *SessionController) eventLoop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *SessionController) handle(ctx context.Context, ev identity.AuthEvent) {
	if ev.ClientID != "" && ev.ClientID != c.clientID {
		return // addressed to another client's controller
	}
	handler, ok := c.handlers[ev.Type]
	if !ok {
		c.logger.WarnContext(ctx, "unhandled auth event", "event", ev.Type)
		return
	}
	handler(ctx, ev)
}

// Snapshot returns a copy of the controller's current read state.
func (c *SessionController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Session:        c.session,
		Profile:        c.profile,
		Loading:        c.loading,
		ProfileLoading: c.profileLoading,
	}
	if c.ident != nil {
		cp := *c.ident
		snap.Identity = &cp
		snap.Role, snap.HasRole = c.roles.Role(c.ident.Metadata)
	}
	return snap
}

// SetVisible updates the client visibility hint. Refresh and sign-in events
// arriving while hidden are dropped to avoid redundant work from background
// wake-ups.
func (c *SessionController) SetVisible(visible bool) {
	c.mu.Lock()
	c.visible = visible
	c.mu.Unlock()
}

// SignOut revokes the provider session best-effort, then unconditionally
// wipes local state and navigates home.
func (c *SessionController) SignOut(ctx context.Context) {
	ctx = ports.WithClientID(ctx, c.clientID)
	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.WarnContext(ctx, "remote sign-out failed", "error", err)
	}
	c.wipe(ctx)
	c.navigate(ctx, identity.PathHome)
}

// RefreshProfile re-resolves the profile for the current role and returns the
// settled entry. The resolve claims a new sequence, so any in-flight resolve
// from an earlier event can no longer overwrite state.
func (c *SessionController) RefreshProfile(ctx context.Context, force bool) identity.ProfileCacheEntry {
	role, ok := c.currentRole()
	if !ok {
		return identity.ProfileCacheEntry{}
	}
	ident := c.identitySnapshot()
	if ident == nil {
		return identity.ProfileCacheEntry{}
	}

	c.mu.Lock()
	c.resolveSeq++
	seq := c.resolveSeq
	c.profileLoading = true
	c.mu.Unlock()

	entry := c.resolver.Resolve(ctx, c.clientID, role, ident.ID, ResolveOptions{Force: force})
	c.settle(seq, entry)
	return entry
}

func (c *SessionController) onTokenRefreshed(ctx context.Context, ev identity.AuthEvent) {
	if c.hidden() {
		return
	}
	c.adopt(ev.Session)
}

func (c *SessionController) onSignedOut(ctx context.Context, _ identity.AuthEvent) {
	c.mu.Lock()
	c.ident = nil
	c.session = nil
	c.profile = identity.ProfileCacheEntry{}
	c.resolveSeq++ // invalidate in-flight resolves
	c.profileLoading = false
	c.mu.Unlock()

	for _, role := range identity.Roles() {
		if err := c.store.Delete(ctx, c.clientID, profileCacheKey(role)); err != nil {
			c.logger.WarnContext(ctx, "profile cache clear failed", "error", err)
		}
	}
	if err := c.store.Delete(ctx, c.clientID, keyRecoveryAttempts); err != nil {
		c.logger.WarnContext(ctx, "recovery counter clear failed", "error", err)
	}
	// The next account on this client must not inherit the previous
	// account's saved destination.
	if err := c.store.Delete(ctx, c.clientID, keyRedirectAfterLogin); err != nil {
		c.logger.WarnContext(ctx, "saved redirect clear failed", "error", err)
	}
	// Navigation is owned by whoever triggered the sign-out.
}

func (c *SessionController) onTokenRefreshFailed(ctx context.Context, _ identity.AuthEvent) {
	// One silent re-fetch. Refresh failure with no recoverable session is
	// terminal: stale state must not stay rendered.
	sess, err := c.provider.GetSession(ctx)
	if err == nil && identity.SessionValid(sess, c.tp.Now()) {
		c.logger.InfoContext(ctx, "session recovered after refresh failure")
		c.adopt(sess)
		return
	}
	c.logger.WarnContext(ctx, "token refresh failed and session unrecoverable", "error", err)
	if c.incidents != nil && c.incidents.Enabled() {
		payload := notify.ProviderIncidentPayload{
			Kind:       notify.KindSessionWiped,
			ClientID:   c.clientID,
			OccurredAt: c.tp.Now(),
		}
		if err != nil {
			payload.Error = err.Error()
		}
		if ident := c.identitySnapshot(); ident != nil {
			payload.IdentityID = ident.ID
		}
		c.incidents.NotifyProviderIncident(ctx, payload)
	}
	c.wipe(ctx)
	c.navigate(ctx, identity.PathAuth)
}

func (c *SessionController) onUserUpdated(ctx context.Context, ev identity.AuthEvent) {
	c.adopt(ev.Session)
	if role, ok := c.currentRole(); ok {
		c.resolveAsync(ctx, role, ResolveOptions{})
	}
}

func (c *SessionController) onSignedIn(ctx context.Context, ev identity.AuthEvent) {
	if c.hidden() {
		return
	}
	c.adopt(ev.Session)

	ident := c.identitySnapshot()
	if ident == nil {
		return
	}
	if role, ok := c.currentRole(); ok {
		c.resolveAsync(ctx, role, ResolveOptions{})
		return
	}

	// No valid role claim. A fresh signup or brand-new account is still
	// registering; anything else gets the recovery engine.
	if c.recovery == nil || !c.recovery.ShouldAttempt(ctx, c.clientID, ident) {
		return
	}
	role, recovered, err := c.recovery.Attempt(ctx, c.clientID, ident)
	if err != nil {
		c.logger.ErrorContext(ctx, "role recovery failed", "error", err)
	}
	if !recovered {
		c.navigate(ctx, identity.PathRoleSelection)
		return
	}
	c.adoptRole(role)
	c.resolveAsync(ctx, role, ResolveOptions{})
}

func (c *SessionController) onInitialSession(ctx context.Context, ev identity.AuthEvent) {
	c.adopt(ev.Session)
	if role, ok := c.currentRole(); ok {
		c.resolveAsync(ctx, role, ResolveOptions{})
	}
}

// resolveAsync resolves the profile off the event loop. The claimed sequence
// number is compared on settle; a result that lost the race is dropped.
func (c *SessionController) resolveAsync(ctx context.Context, role identity.Role, opts ResolveOptions) {
	ident := c.identitySnapshot()
	if ident == nil {
		return
	}
	c.mu.Lock()
	c.resolveSeq++
	seq := c.resolveSeq
	c.profileLoading = true
	c.mu.Unlock()

	go func() {
		entry := c.resolver.Resolve(ctx, c.clientID, role, ident.ID, opts)
		c.settle(seq, entry)
	}()
}

func (c *SessionController) settle(seq uint64, entry identity.ProfileCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.resolveSeq {
		return // a newer resolve owns the state now
	}
	c.profile = entry
	c.profileLoading = false
}

// adopt replaces the session and identity from a session payload. A nil
// session clears both.
func (c *SessionController) adopt(sess *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	if sess == nil {
		c.ident = nil
		return
	}
	ident := sess.Identity
	c.ident = &ident
}

// adoptRole patches the in-memory identity's role claim after recovery so the
// snapshot reflects it without waiting for the next provider event.
func (c *SessionController) adoptRole(role identity.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ident == nil {
		return
	}
	if c.ident.Metadata == nil {
		c.ident.Metadata = map[string]any{}
	}
	meta, _ := c.ident.Metadata["user_metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["role"] = string(role)
	c.ident.Metadata["user_metadata"] = meta
}

// wipe clears in-memory state and the client's entire persisted namespace.
func (c *SessionController) wipe(ctx context.Context) {
	c.mu.Lock()
	c.ident = nil
	c.session = nil
	c.profile = identity.ProfileCacheEntry{}
	c.resolveSeq++
	c.profileLoading = false
	c.mu.Unlock()

	if err := c.store.ClearClient(ctx, c.clientID); err != nil {
		c.logger.WarnContext(ctx, "client state wipe failed", "error", err)
	}
}

func (c *SessionController) navigate(ctx context.Context, path string) {
	if c.navigator == nil {
		return
	}
	if err := c.navigator.Navigate(ctx, c.clientID, path); err != nil {
		c.logger.WarnContext(ctx, "navigation failed", "path", path, "error", err)
	}
}

func (c *SessionController) hidden() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.visible
}

func (c *SessionController) currentRole() (identity.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ident == nil {
		return "", false
	}
	return c.roles.Role(c.ident.Metadata)
}

func (c *SessionController) identitySnapshot() *identity.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ident == nil {
		return nil
	}
	cp := *c.ident
	return &cp
}
