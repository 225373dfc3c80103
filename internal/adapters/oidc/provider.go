package oidc

// Package oidc implements the identity provider port against an OIDC/OAuth2
// identity service (GoTrue-compatible). It owns the provider-side token pair
// and emits the auth event stream the session controller consumes.

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/brightclass/identity-go/internal/domain/identity"
	apperrors "github.com/brightclass/identity-go/internal/errors"
	"github.com/brightclass/identity-go/internal/ports"
)

// eventBuffer bounds the event channel; the controller drains serially and a
// slow consumer drops refresh ticks rather than blocking the refresh loop.
const eventBuffer = 16

// Provider implements ports.IdentityProvider using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	// userEndpoint is the identity service's user resource, used for
	// metadata patches and userinfo-style reads.
	userEndpoint string
	logoutURL    string

	// clients holds one session/token slot per client id. The id rides the
	// call context (ports.WithClientID); the empty id is a valid slot.
	mu      sync.Mutex
	clients map[string]*clientSession

	events chan identity.AuthEvent
	closed bool
}

// clientSession is one client's provider-side state.
type clientSession struct {
	session *identity.Session
	token   *oauth2.Token
}

var _ ports.IdentityProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	UserEndpoint string
	LogoutURL    string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// NewProvider creates a new OIDC provider. It performs a single discovery
// fetch against the issuer.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient:   httpClient,
		userEndpoint: cfg.UserEndpoint,
		logoutURL:    cfg.LogoutURL,
		clients:      make(map[string]*clientSession),
		events:       make(chan identity.AuthEvent, eventBuffer),
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: cfg.ClientID})

	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       strings.Fields(cfg.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// Begin starts the external login flow and returns the provider auth URL with
// cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := randomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)
	return authURL, state, nonce, nil
}

// Exchange completes the external login flow: code for token pair, nonce
// check, ID-token claims to identity. The resulting session becomes current
// and a SIGNED_IN event is emitted.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (*identity.Session, error) {
	if in.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if in.State == "" {
		return nil, errors.New("state is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvider, "exchange authorization code")
	}

	sess, err := p.sessionFromToken(ctx, token, in.Nonce)
	if err != nil {
		return nil, err
	}

	cid := ports.ClientIDFromContext(ctx)
	p.adopt(cid, sess, token)
	p.emit(identity.AuthEvent{Type: identity.EventSignedIn, ClientID: cid, Session: sess})
	return sess, nil
}

// GetSession returns the calling client's session, or nil when none exists.
// It does not refresh; the refresh loop owns that.
func (p *Provider) GetSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs := p.clients[ports.ClientIDFromContext(ctx)]
	if cs == nil || cs.session == nil {
		return nil, nil
	}
	sess := *cs.session
	return &sess, nil
}

// GetUser fetches the current identity from the user endpoint, falling back
// to the session's identity when no endpoint is configured.
func (p *Provider) GetUser(ctx context.Context) (*identity.Identity, error) {
	cid := ports.ClientIDFromContext(ctx)
	var (
		token *oauth2.Token
		sess  *identity.Session
	)
	p.mu.Lock()
	if cs := p.clients[cid]; cs != nil {
		token = cs.token
		sess = cs.session
	}
	p.mu.Unlock()

	if token == nil {
		return nil, nil
	}
	if p.userEndpoint == "" {
		if sess == nil {
			return nil, nil
		}
		ident := sess.Identity
		return &ident, nil
	}

	var payload userPayload
	if err := p.userRequest(ctx, http.MethodGet, token.AccessToken, nil, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvider, "get user")
	}
	ident := payload.toIdentity()
	p.patchSessionIdentity(cid, ident)
	return &ident, nil
}

// UpdateUserMetadata applies a metadata patch on the identity service and
// returns the updated identity. A USER_UPDATED event is emitted on success.
func (p *Provider) UpdateUserMetadata(
	ctx context.Context,
	patch ports.MetadataPatch,
) (*identity.Identity, error) {
	if len(patch) == 0 {
		return nil, errors.New("metadata patch is empty")
	}
	cid := ports.ClientIDFromContext(ctx)
	var token *oauth2.Token
	p.mu.Lock()
	if cs := p.clients[cid]; cs != nil {
		token = cs.token
	}
	p.mu.Unlock()
	if token == nil {
		return nil, apperrors.Provider("no authenticated session")
	}
	if p.userEndpoint == "" {
		return nil, apperrors.Provider("user endpoint not configured")
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata patch: %w", err)
	}

	var payload userPayload
	if err := p.userRequest(ctx, http.MethodPut, token.AccessToken, body, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvider, "update user metadata")
	}

	ident := payload.toIdentity()
	sess := p.patchSessionIdentity(cid, ident)
	p.emit(identity.AuthEvent{Type: identity.EventUserUpdated, ClientID: cid, Session: sess})
	return &ident, nil
}

// SignOut revokes the calling client's provider-side session best-effort and
// drops its token state. A SIGNED_OUT event is emitted regardless of the
// revocation outcome.
func (p *Provider) SignOut(ctx context.Context) error {
	cid := ports.ClientIDFromContext(ctx)
	var token *oauth2.Token
	p.mu.Lock()
	if cs := p.clients[cid]; cs != nil {
		token = cs.token
	}
	delete(p.clients, cid)
	p.mu.Unlock()

	defer p.emit(identity.AuthEvent{Type: identity.EventSignedOut, ClientID: cid})

	if p.logoutURL == "" || token == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.logoutURL, nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProvider, "logout")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return apperrors.Provider(fmt.Sprintf("logout returned %d", resp.StatusCode))
	}
	return nil
}

// Events yields the provider's auth event stream.
func (p *Provider) Events() <-chan identity.AuthEvent {
	return p.events
}

// Run drives the token refresh loop until the context is canceled. It emits
// INITIAL_SESSION once, then TOKEN_REFRESHED / TOKEN_REFRESH_FAILED per
// client as its token pair is rolled over ahead of expiry.
func (p *Provider) Run(ctx context.Context, checkEvery time.Duration) {
	if checkEvery <= 0 {
		checkEvery = time.Minute
	}

	p.mu.Lock()
	initial := make(map[string]*identity.Session, len(p.clients))
	for cid, cs := range p.clients {
		initial[cid] = cs.session
	}
	p.mu.Unlock()
	if len(initial) == 0 {
		p.emit(identity.AuthEvent{Type: identity.EventInitialSession})
	}
	for cid, sess := range initial {
		p.emit(identity.AuthEvent{Type: identity.EventInitialSession, ClientID: cid, Session: sess})
	}

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			close(p.events)
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.refreshIfNeeded(ctx, checkEvery)
		}
	}
}

// refreshIfNeeded rolls each client's token pair over when it expires within
// two check intervals.
func (p *Provider) refreshIfNeeded(ctx context.Context, checkEvery time.Duration) {
	p.mu.Lock()
	tokens := make(map[string]*oauth2.Token, len(p.clients))
	for cid, cs := range p.clients {
		tokens[cid] = cs.token
	}
	p.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	for cid, token := range tokens {
		if token == nil || token.Expiry.IsZero() {
			continue
		}
		if time.Until(token.Expiry) > 2*checkEvery {
			continue
		}

		fresh, err := p.config.TokenSource(ctx, token).Token()
		if err != nil {
			p.emit(identity.AuthEvent{Type: identity.EventTokenRefreshFailed, ClientID: cid})
			continue
		}

		sess, err := p.sessionFromToken(ctx, fresh, "")
		if err != nil {
			p.emit(identity.AuthEvent{Type: identity.EventTokenRefreshFailed, ClientID: cid})
			continue
		}
		p.adopt(cid, sess, fresh)
		p.emit(identity.AuthEvent{Type: identity.EventTokenRefreshed, ClientID: cid, Session: sess})
	}
}

// sessionFromToken verifies the ID token and maps its claims to a session.
func (p *Provider) sessionFromToken(
	ctx context.Context,
	token *oauth2.Token,
	expectedNonce string,
) (*identity.Session, error) {
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, apperrors.Provider("token response missing id_token")
	}

	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvider, "verify id_token")
	}

	var claims idTokenClaims
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return nil, apperrors.Provider("invalid nonce")
	}

	expiresAt := idTok.Expiry
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	return &identity.Session{
		Identity:  claims.toIdentity(),
		ExpiresAt: expiresAt,
	}, nil
}

func (p *Provider) adopt(clientID string, sess *identity.Session, token *oauth2.Token) {
	p.mu.Lock()
	p.clients[clientID] = &clientSession{session: sess, token: token}
	p.mu.Unlock()
}

// patchSessionIdentity folds a fresh identity read into the client's session
// and returns the updated session snapshot.
func (p *Provider) patchSessionIdentity(clientID string, ident identity.Identity) *identity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs := p.clients[clientID]
	if cs == nil || cs.session == nil {
		return nil
	}
	cs.session.Identity = ident
	sess := *cs.session
	return &sess
}

// emit delivers an event without ever blocking the caller.
func (p *Provider) emit(ev identity.AuthEvent) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}

func (p *Provider) userRequest(
	ctx context.Context,
	method, accessToken string,
	body []byte,
	out *userPayload,
) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.userEndpoint, reader)
	if err != nil {
		return fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("user endpoint returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// idTokenClaims is the claim shape our identity service signs. The metadata
// bags ride along as custom claims.
type idTokenClaims struct {
	Sub          string         `json:"sub"`
	Email        string         `json:"email"`
	CreatedAt    string         `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	Nonce        string         `json:"nonce"`
}

func (c idTokenClaims) toIdentity() identity.Identity {
	ident := identity.Identity{
		ID:       c.Sub,
		Email:    c.Email,
		Metadata: metadataBag(c.UserMetadata, c.AppMetadata),
	}
	if c.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, c.CreatedAt); err == nil {
			ident.CreatedAt = ts
		}
	}
	return ident
}

// userPayload is the user endpoint's resource shape.
type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    time.Time      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

func (u userPayload) toIdentity() identity.Identity {
	return identity.Identity{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Metadata:  metadataBag(u.UserMetadata, u.AppMetadata),
	}
}

// metadataBag merges the provider's metadata bags under their canonical keys.
func metadataBag(user, app map[string]any) map[string]any {
	if user == nil && app == nil {
		return nil
	}
	bag := make(map[string]any, 2)
	if user != nil {
		bag["user_metadata"] = user
	}
	if app != nil {
		bag["app_metadata"] = app
	}
	return bag
}

// randomString returns n base64 URL characters of cryptographic randomness.
func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) > n {
		s = s[:n]
	}
	return s, nil
}
