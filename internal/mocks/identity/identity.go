package identitymocks

// Package identitymocks contains simple hand-written test doubles for the
// identity ports. These are lightweight and suitable for unit tests without
// codegen.

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockProvider)(nil)
	_ ports.StateStore       = (*MemoryStateStore)(nil)
	_ ports.Navigator        = (*RecorderNavigator)(nil)
	_ ports.RoleExtractor    = (*MapRoleExtractor)(nil)
)

// MockProvider simulates the identity provider with overridable funcs and an
// injectable event stream.
type MockProvider struct {
	GetSessionFunc func(ctx context.Context) (*identity.Session, error)
	GetUserFunc    func(ctx context.Context) (*identity.Identity, error)
	UpdateFunc     func(ctx context.Context, patch ports.MetadataPatch) (*identity.Identity, error)
	SignOutFunc    func(ctx context.Context) error
	BeginFunc      func(ctx context.Context, in ports.BeginInput) (string, string, string, error)
	ExchangeFunc   func(ctx context.Context, in ports.ExchangeInput) (*identity.Session, error)

	mu sync.Mutex
	// Session is returned by GetSession when GetSessionFunc is nil.
	Session *identity.Session
	// User is returned by GetUser when GetUserFunc is nil.
	User *identity.Identity
	// Patches records every metadata patch applied.
	Patches []ports.MetadataPatch
	// SignOutCalls counts SignOut invocations.
	SignOutCalls int

	events chan identity.AuthEvent
}

// NewMockProvider creates a MockProvider with an open event stream.
func NewMockProvider() *MockProvider {
	return &MockProvider{events: make(chan identity.AuthEvent, 32)}
}

func (m *MockProvider) GetSession(ctx context.Context) (*identity.Session, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Session == nil {
		return nil, nil
	}
	sess := *m.Session
	return &sess, nil
}

func (m *MockProvider) GetUser(ctx context.Context) (*identity.Identity, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.User == nil {
		if m.Session == nil {
			return nil, nil
		}
		ident := m.Session.Identity
		return &ident, nil
	}
	ident := *m.User
	return &ident, nil
}

// UpdateUserMetadata records the patch and merges user_metadata keys into the
// stored identity so recovery flows observe their own writes.
func (m *MockProvider) UpdateUserMetadata(
	ctx context.Context,
	patch ports.MetadataPatch,
) (*identity.Identity, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Patches = append(m.Patches, patch)

	target := m.User
	if target == nil && m.Session != nil {
		target = &m.Session.Identity
	}
	if target == nil {
		return nil, nil
	}
	if target.Metadata == nil {
		target.Metadata = make(map[string]any)
	}
	for k, v := range patch {
		if merged, ok := v.(map[string]any); ok {
			if existing, has := target.Metadata[k].(map[string]any); has {
				for mk, mv := range merged {
					existing[mk] = mv
				}
				continue
			}
		}
		target.Metadata[k] = v
	}
	ident := *target
	return &ident, nil
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignOutCalls++
	m.Session = nil
	m.User = nil
	return nil
}

func (m *MockProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	return "https://mock-idp/auth", "state-1", "nonce-1", nil
}

func (m *MockProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (*identity.Session, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return m.GetSession(ctx)
}

func (m *MockProvider) Events() <-chan identity.AuthEvent {
	return m.events
}

// Emit pushes an event onto the stream, blocking until consumed.
func (m *MockProvider) Emit(ev identity.AuthEvent) {
	m.events <- ev
}

// CloseEvents terminates the stream.
func (m *MockProvider) CloseEvents() {
	close(m.events)
}

// storedValue pairs a value with its expiry for TTL semantics.
type storedValue struct {
	value     string
	expiresAt time.Time
}

// MemoryStateStore is an in-memory ports.StateStore with real TTL semantics
// driven by an injectable clock.
type MemoryStateStore struct {
	mu   sync.Mutex
	data map[string]storedValue
	// Now is the clock used for TTL checks; defaults to time.Now.
	Now func() time.Time
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{data: make(map[string]storedValue), Now: time.Now}
}

func (s *MemoryStateStore) key(clientID, key string) string { return clientID + ":" + key }

func (s *MemoryStateStore) live(v storedValue) bool {
	return v.expiresAt.IsZero() || v.expiresAt.After(s.Now())
}

func (s *MemoryStateStore) Get(_ context.Context, clientID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[s.key(clientID, key)]
	if !ok || !s.live(v) {
		return "", false, nil
	}
	return v.value, true, nil
}

func (s *MemoryStateStore) Set(_ context.Context, clientID, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv := storedValue{value: value}
	if ttl > 0 {
		sv.expiresAt = s.Now().Add(ttl)
	}
	s.data[s.key(clientID, key)] = sv
	return nil
}

func (s *MemoryStateStore) SetIfNotExists(
	_ context.Context,
	clientID, key, value string,
	ttl time.Duration,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(clientID, key)
	if v, ok := s.data[k]; ok && s.live(v) {
		return false, nil
	}
	sv := storedValue{value: value}
	if ttl > 0 {
		sv.expiresAt = s.Now().Add(ttl)
	}
	s.data[k] = sv
	return true, nil
}

func (s *MemoryStateStore) Delete(_ context.Context, clientID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, s.key(clientID, key))
	return nil
}

func (s *MemoryStateStore) ClearClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := clientID + ":"
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

// Len reports the number of live keys, for assertions on state wipes.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.data {
		if s.live(v) {
			n++
		}
	}
	return n
}

// RecorderNavigator records navigation instructions per client.
type RecorderNavigator struct {
	mu    sync.Mutex
	Calls []NavigationCall
	// Err, when set, is returned by Navigate.
	Err error
}

// NavigationCall is a single recorded navigation.
type NavigationCall struct {
	ClientID string
	Path     string
}

func (n *RecorderNavigator) Navigate(_ context.Context, clientID, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Calls = append(n.Calls, NavigationCall{ClientID: clientID, Path: path})
	return nil
}

// Last returns the most recent navigation, or zero when none happened.
func (n *RecorderNavigator) Last() NavigationCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Calls) == 0 {
		return NavigationCall{}
	}
	return n.Calls[len(n.Calls)-1]
}

// Count returns the number of recorded navigations.
func (n *RecorderNavigator) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Calls)
}

// MapRoleExtractor reads the role from metadata["user_metadata"]["role"],
// mirroring the default production claim path without JMESPath.
type MapRoleExtractor struct{}

func (MapRoleExtractor) Role(metadata map[string]any) (identity.Role, bool) {
	user, ok := metadata["user_metadata"].(map[string]any)
	if !ok {
		return "", false
	}
	raw, ok := user["role"].(string)
	if !ok {
		return "", false
	}
	role, err := identity.ParseRole(raw)
	if err != nil {
		return "", false
	}
	return role, true
}
