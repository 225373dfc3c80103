package devauth

// Package devauth provides a config-driven identity provider for local
// development. It short-circuits the external OAuth flow and serves a single
// configured identity.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// Config controls the dev provider behavior.
type Config struct {
	UserID          string
	Email           string
	Role            string        // optional; empty simulates a missing role attribute
	AccountAge      time.Duration // how old the identity pretends to be; default 1h
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.IdentityProvider for local development. Exchange
// ignores the code and returns the configured identity. Metadata patches are
// applied in memory, so role recovery and onboarding flows behave end to end.
// Sessions are held per client id (from the context) so several dev clients
// can sign in and out independently against the one configured identity.
type Provider struct {
	mu        sync.Mutex
	ident     identity.Identity
	sessions  map[string]*identity.Session
	signedOut map[string]bool
	duration  time.Duration
	events    chan identity.AuthEvent
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	age := cfg.AccountAge
	if age == 0 {
		age = time.Hour
	}

	ident := identity.Identity{
		ID:        cfg.UserID,
		Email:     cfg.Email,
		CreatedAt: time.Now().Add(-age),
	}
	if cfg.Role != "" {
		ident.Metadata = map[string]any{
			"user_metadata": map[string]any{"role": cfg.Role},
		}
	}

	return &Provider{
		ident:     ident,
		sessions:  make(map[string]*identity.Session),
		signedOut: make(map[string]bool),
		duration:  dur,
		events:    make(chan identity.AuthEvent, 16),
	}, nil
}

// Begin returns a local callback URL and random state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return "/auth/callback?code=dev&state=" + state, state, nonce, nil
}

// Exchange ignores the provided code and returns a fresh session for the dev
// identity, emitting SIGNED_IN for the calling client.
func (p *Provider) Exchange(ctx context.Context, _ ports.ExchangeInput) (*identity.Session, error) {
	cid := ports.ClientIDFromContext(ctx)
	p.mu.Lock()
	delete(p.signedOut, cid)
	p.sessions[cid] = &identity.Session{
		Identity:  p.ident,
		ExpiresAt: time.Now().Add(p.duration),
	}
	sess := *p.sessions[cid]
	p.mu.Unlock()

	p.emit(identity.AuthEvent{Type: identity.EventSignedIn, ClientID: cid, Session: &sess})
	return &sess, nil
}

func (p *Provider) GetSession(ctx context.Context) (*identity.Session, error) {
	cid := ports.ClientIDFromContext(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := p.sessions[cid]
	if stored == nil || p.signedOut[cid] {
		return nil, nil
	}
	sess := *stored
	return &sess, nil
}

func (p *Provider) GetUser(ctx context.Context) (*identity.Identity, error) {
	cid := ports.ClientIDFromContext(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signedOut[cid] {
		return nil, nil
	}
	ident := p.ident
	return &ident, nil
}

// UpdateUserMetadata merges the patch into the in-memory metadata bag. The
// dev identity is shared, so every live session picks up the new bag.
func (p *Provider) UpdateUserMetadata(
	ctx context.Context,
	patch ports.MetadataPatch,
) (*identity.Identity, error) {
	if len(patch) == 0 {
		return nil, errors.New("metadata patch is empty")
	}

	cid := ports.ClientIDFromContext(ctx)
	p.mu.Lock()
	if p.ident.Metadata == nil {
		p.ident.Metadata = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		merged, ok := v.(map[string]any)
		existing, hasExisting := p.ident.Metadata[k].(map[string]any)
		if ok && hasExisting {
			for mk, mv := range merged {
				existing[mk] = mv
			}
			continue
		}
		p.ident.Metadata[k] = v
	}
	for _, stored := range p.sessions {
		stored.Identity = p.ident
	}
	ident := p.ident
	var sess *identity.Session
	if stored := p.sessions[cid]; stored != nil {
		cp := *stored
		sess = &cp
	}
	p.mu.Unlock()

	p.emit(identity.AuthEvent{Type: identity.EventUserUpdated, ClientID: cid, Session: sess})
	return &ident, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	cid := ports.ClientIDFromContext(ctx)
	p.mu.Lock()
	p.signedOut[cid] = true
	delete(p.sessions, cid)
	p.mu.Unlock()
	p.emit(identity.AuthEvent{Type: identity.EventSignedOut, ClientID: cid})
	return nil
}

func (p *Provider) Events() <-chan identity.AuthEvent {
	return p.events
}

// Emit injects an arbitrary event, useful for exercising controller flows in
// development.
func (p *Provider) Emit(ev identity.AuthEvent) {
	p.emit(ev)
}

func (p *Provider) emit(ev identity.AuthEvent) {
	select {
	case p.events <- ev:
	default:
	}
}

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
