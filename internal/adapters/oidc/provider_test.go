package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/internal/ports"
)

// newDiscoveryServer serves a minimal openid-configuration whose endpoints
// point back at the test server itself.
func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		doc := map[string]any{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/token",
			"userinfo_endpoint":      server.URL + "/userinfo",
			"jwks_uri":               server.URL + "/jwks",
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "server_error", http.StatusInternalServerError)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	discovery := newDiscoveryServer(t)
	provider, err := NewProvider(ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email",
		DiscoveryURL: discovery.URL,
		LogoutURL:    discovery.URL + "/logout",
	})
	require.NoError(t, err)
	return provider
}

func TestNewProvider_Success(t *testing.T) {
	discovery := newDiscoveryServer(t)

	provider, err := NewProvider(ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email",
		DiscoveryURL: discovery.URL,
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, discovery.URL+"/authorize", provider.config.Endpoint.AuthURL)
	assert.Equal(t, discovery.URL+"/token", provider.config.Endpoint.TokenURL)
}

func TestNewProvider_TrimsDiscoveryPath(t *testing.T) {
	discovery := newDiscoveryServer(t)

	provider, err := NewProvider(ProviderConfig{
		ClientID:     "test-client",
		RedirectURL:  "http://localhost:8080/auth/callback",
		DiscoveryURL: discovery.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	assert.Equal(t, discovery.URL+"/authorize", provider.config.Endpoint.AuthURL)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name: "missing client ID",
			config: ProviderConfig{
				RedirectURL:  "http://localhost/callback",
				DiscoveryURL: "http://example.com",
			},
			errMsg: "client ID is required",
		},
		{
			name: "missing redirect URL",
			config: ProviderConfig{
				ClientID:     "client",
				DiscoveryURL: "http://example.com",
			},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/callback"},
			errMsg: "discovery URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	provider := newTestProvider(t)

	authURL, state, nonce, err := provider.Begin(context.Background(), ports.BeginInput{
		RedirectURL: "http://localhost:8080/auth/callback",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, authURL)
	assert.NotEmpty(t, state)
	assert.NotEmpty(t, nonce)
	assert.Contains(t, authURL, "/authorize")
	assert.Contains(t, authURL, "client_id=test-client")
	assert.Contains(t, authURL, "state="+state)
	assert.Contains(t, authURL, "nonce="+nonce)
}

func TestProvider_Begin_EmptyRedirectURL(t *testing.T) {
	provider := newTestProvider(t)

	_, _, _, err := provider.Begin(context.Background(), ports.BeginInput{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{
			name:   "missing code",
			input:  ports.ExchangeInput{State: "state", Nonce: "nonce"},
			errMsg: "authorization code is required",
		},
		{
			name:   "missing state",
			input:  ports.ExchangeInput{Code: "code", Nonce: "nonce"},
			errMsg: "state is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Exchange(ctx, tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_TokenEndpointFailure(t *testing.T) {
	provider := newTestProvider(t)

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:  "test-code",
		State: "test-state",
		Nonce: "test-nonce",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange authorization code")
}

func TestProvider_GetSessionWithoutLogin(t *testing.T) {
	provider := newTestProvider(t)

	sess, err := provider.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestProvider_UpdateUserMetadataWithoutSession(t *testing.T) {
	provider := newTestProvider(t)

	_, err := provider.UpdateUserMetadata(context.Background(), ports.MetadataPatch{
		"user_metadata": map[string]any{"role": "teacher"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authenticated session")

	_, err = provider.UpdateUserMetadata(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata patch is empty")
}

func TestIDTokenClaims_ToIdentity(t *testing.T) {
	claims := idTokenClaims{
		Sub:          "user-123",
		Email:        "teacher@example.com",
		CreatedAt:    "2026-01-15T10:30:00Z",
		UserMetadata: map[string]any{"role": "teacher"},
		AppMetadata:  map[string]any{"provider": "email"},
	}

	ident := claims.toIdentity()
	assert.Equal(t, "user-123", ident.ID)
	assert.Equal(t, "teacher@example.com", ident.Email)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), ident.CreatedAt)
	assert.Equal(t, map[string]any{"role": "teacher"}, ident.Metadata["user_metadata"])
	assert.Equal(t, map[string]any{"provider": "email"}, ident.Metadata["app_metadata"])
}

func TestIDTokenClaims_ToIdentityBadTimestamp(t *testing.T) {
	claims := idTokenClaims{Sub: "user-123", CreatedAt: "not-a-timestamp"}

	ident := claims.toIdentity()
	assert.True(t, ident.CreatedAt.IsZero())
}

func TestMetadataBag(t *testing.T) {
	assert.Nil(t, metadataBag(nil, nil))

	bag := metadataBag(map[string]any{"role": "student"}, nil)
	assert.Equal(t, map[string]any{"role": "student"}, bag["user_metadata"])
	_, hasApp := bag["app_metadata"]
	assert.False(t, hasApp)

	bag = metadataBag(nil, map[string]any{"role": "teacher"})
	assert.Equal(t, map[string]any{"role": "teacher"}, bag["app_metadata"])
}

func TestRandomString(t *testing.T) {
	str1, err := randomString(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := randomString(32)
	require.NoError(t, err)
	assert.Len(t, str2, 32)

	str3, err := randomString(16)
	require.NoError(t, err)
	assert.NotEqual(t, str1, str3)
}
