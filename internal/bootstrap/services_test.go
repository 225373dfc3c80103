package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/config"
	"github.com/brightclass/identity-go/internal/adapters/roleclaim"
	identitymocks "github.com/brightclass/identity-go/internal/mocks/identity"
)

func devConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		IsDev: true,
		Auth: config.AuthConfig{
			Mode: config.AuthModeMock,
			DevAuth: config.DevAuthConfig{
				UserID: "dev-user",
				Email:  "dev@example.com",
				Role:   "teacher",
			},
			RoleClaimPath: "user_metadata.role",
		},
	}
	cfg.Sanitize()
	return cfg
}

func TestBuildProviderMockMode(t *testing.T) {
	cfg := devConfig()

	provider, err := buildProvider(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)

	ident, err := provider.GetUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "dev@example.com", ident.Email)
}

func TestBuildProviderRejectsUnknownMode(t *testing.T) {
	cfg := devConfig()
	cfg.Auth.Mode = config.AuthMode("saml")

	_, err := buildProvider(cfg, nil)
	require.Error(t, err)
}

func TestBuildServicesWiresContainer(t *testing.T) {
	cfg := devConfig()

	provider, err := buildProvider(cfg, nil)
	require.NoError(t, err)

	adapters := AdapterSet{
		Provider: provider,
		Roles:    roleclaim.MustNew(cfg.Auth.RoleClaimPath),
		Store:    identitymocks.NewMemoryStateStore(),
	}

	incidents, err := BuildIncidentNotifier(cfg, nil)
	require.NoError(t, err)

	container := BuildServices(context.Background(), cfg, nil, adapters, incidents, nil)

	require.NotNil(t, container.Resolver)
	require.NotNil(t, container.Recovery)
	require.NotNil(t, container.Signup)
	require.NotNil(t, container.Orphans)
	require.NotNil(t, container.Callback)
	require.NotNil(t, container.Selection)
	require.NotNil(t, container.Gate)
	require.NotNil(t, container.Registry)
	require.NotNil(t, container.Navigations)
	require.Same(t, provider, container.Provider)
}

func TestBuildIncidentNotifierDisabledByDefault(t *testing.T) {
	cfg := devConfig()

	incidents, err := BuildIncidentNotifier(cfg, nil)
	require.NoError(t, err)
	require.False(t, incidents.Enabled())
}

func TestBuildIncidentNotifierSlackSink(t *testing.T) {
	cfg := devConfig()
	cfg.Observability.Notifications.Enabled = true
	cfg.Observability.Notifications.Slack = config.SlackNotificationConfig{
		Enabled:    true,
		WebhookURL: "https://hooks.slack.com/services/test",
	}
	cfg.Sanitize()

	incidents, err := BuildIncidentNotifier(cfg, nil)
	require.NoError(t, err)
	require.True(t, incidents.Enabled())
}
