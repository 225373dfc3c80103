package bootstrap

import (
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/brightclass/identity-go/config"
	"github.com/brightclass/identity-go/internal/adapters/devauth"
	"github.com/brightclass/identity-go/internal/adapters/oidc"
	redisadapter "github.com/brightclass/identity-go/internal/adapters/redis"
	"github.com/brightclass/identity-go/internal/adapters/roleclaim"
	"github.com/brightclass/identity-go/internal/observability/notify"
	"github.com/brightclass/identity-go/internal/observability/notify/pagerduty"
	"github.com/brightclass/identity-go/internal/observability/notify/slack"
	"github.com/brightclass/identity-go/internal/observability/statsd"
	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/service/failurenotifier"
)

// AdapterSet holds the infrastructure adapters the service layer is wired
// against.
type AdapterSet struct {
	Provider ports.IdentityProvider
	Roles    ports.RoleExtractor
	Store    ports.StateStore
	Metrics  statsd.Sink
}

// BuildAdapters constructs the identity provider, role extractor, state
// store, and metrics sink from configuration.
func BuildAdapters(cfg *config.AppConfig, redisClient goredis.UniversalClient, logger *slog.Logger) (AdapterSet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return AdapterSet{}, err
	}

	roles, err := roleclaim.New(cfg.Auth.RoleClaimPath)
	if err != nil {
		return AdapterSet{}, fmt.Errorf("build role extractor: %w", err)
	}

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  "identity_gateway",
		Logger:  logger,
	})
	if err != nil {
		return AdapterSet{}, fmt.Errorf("build statsd client: %w", err)
	}

	return AdapterSet{
		Provider: provider,
		Roles:    roles,
		Store:    redisadapter.NewStateStore(redisClient),
		Metrics:  metrics,
	}, nil
}

//nolint:ireturn // provider selection depends on runtime configuration.
func buildProvider(cfg *config.AppConfig, logger *slog.Logger) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if !cfg.IsDev {
			logger.Warn("mock auth enabled outside dev mode")
		}
		provider, err := devauth.NewProvider(devauth.Config{
			UserID:     cfg.Auth.DevAuth.UserID,
			Email:      cfg.Auth.DevAuth.Email,
			Role:       cfg.Auth.DevAuth.Role,
			AccountAge: cfg.Auth.DevAuth.AccountAge,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth provider: %w", err)
		}
		return provider, nil
	case config.AuthModeOAuth:
		provider, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			RedirectURL:  cfg.Auth.OAuth.RedirectURL,
			Scope:        cfg.Auth.OAuth.Scope,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
			UserEndpoint: cfg.Auth.OAuth.UserEndpoint,
			LogoutURL:    cfg.Auth.OAuth.LogoutURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build oidc provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Auth.Mode)
	}
}

// BuildIncidentNotifier assembles the provider incident fan-out from the
// notification configuration. A notifier with no sinks is valid and inert.
func BuildIncidentNotifier(cfg *config.AppConfig, logger *slog.Logger) (*failurenotifier.Service, error) {
	notifications := cfg.Observability.Notifications

	var sinks []failurenotifier.SinkRegistration

	if notifications.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: notifications.Slack.WebhookURL,
			Channel:    notifications.Slack.Channel,
			Username:   notifications.Slack.Username,
			Timeout:    notifications.Timeout,
			RetryLimit: notifications.RetryLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("build slack sink: %w", err)
		}
		sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
	}

	if notifications.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: notifications.PagerDuty.RoutingKey,
			Source:     notifications.PagerDuty.Source,
			Component:  notifications.PagerDuty.Component,
			Timeout:    notifications.Timeout,
			RetryLimit: notifications.RetryLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("build pagerduty sink: %w", err)
		}
		sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
	}

	var suppress []string
	if cfg.IsDev {
		// Dev sessions get wiped constantly; only hard provider failures page.
		suppress = []string{notify.KindSessionWiped}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:        logger,
		Sinks:         sinks,
		SuppressKinds: suppress,
	}), nil
}
