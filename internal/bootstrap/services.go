package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/brightclass/identity-go/config"
	"github.com/brightclass/identity-go/internal/data"
	httpx "github.com/brightclass/identity-go/internal/http"
	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/service"
	"github.com/brightclass/identity-go/internal/service/failurenotifier"
)

// ServiceContainer holds the wired service layer handed to the HTTP surface.
type ServiceContainer struct {
	Provider    ports.IdentityProvider
	Profiles    *data.ProfileRepo
	Resolver    *service.ProfileResolver
	Recovery    *service.RoleRecoveryEngine
	Signup      *service.SignupState
	Orphans     *service.OrphanReconciler
	Callback    *service.CallbackHandler
	Selection   *service.RoleSelection
	Gate        *service.RouteGate
	Registry    *httpx.ClientRegistry
	Navigations *httpx.NavigationSink
	Incidents   *failurenotifier.Service
}

// BuildServices wires the full identity pipeline: repositories, resolver,
// recovery, callback, route gate, and the per-client controller registry.
// baseCtx bounds the lifetime of every controller the registry starts.
func BuildServices(baseCtx context.Context, cfg *config.AppConfig, db *sql.DB, adapters AdapterSet, incidents *failurenotifier.Service, logger *slog.Logger) ServiceContainer {
	if logger == nil {
		logger = slog.Default()
	}

	profiles := data.NewProfileRepo(db)

	signup := service.NewSignupState(service.SignupStateOptions{
		Store:   adapters.Store,
		Timeout: cfg.Identity.Recovery.SignupTimeout,
		Logger:  logger,
	})

	resolver := service.NewProfileResolver(service.ProfileResolverOptions{
		Profiles:  profiles,
		Store:     adapters.Store,
		Freshness: cfg.Identity.Cache.Freshness,
		LeaseTTL:  cfg.Identity.Cache.FetchLeaseTTL,
		Metrics:   adapters.Metrics,
		Logger:    logger,
	})

	recovery := service.NewRoleRecoveryEngine(service.RoleRecoveryOptions{
		Provider:         adapters.Provider,
		Profiles:         profiles,
		Store:            adapters.Store,
		Signup:           signup,
		MaxAttempts:      cfg.Identity.Recovery.MaxAttempts,
		NewAccountWindow: cfg.Identity.Recovery.NewAccountWindow,
		Metrics:          adapters.Metrics,
		Logger:           logger,
	})

	orphans := service.NewOrphanReconciler(profiles, adapters.Metrics, logger)

	navigations := httpx.NewNavigationSink()

	callback := service.NewCallbackHandler(service.CallbackOptions{
		Provider:  adapters.Provider,
		Profiles:  profiles,
		Roles:     adapters.Roles,
		Recovery:  recovery,
		Orphans:   orphans,
		Signup:    signup,
		Store:     adapters.Store,
		Navigator: navigations,
		Timeout:   cfg.Identity.Callback.Timeout,
		Metrics:   adapters.Metrics,
		Incidents: incidents,
		Logger:    logger,
	})

	selection := service.NewRoleSelection(adapters.Provider, recovery, logger)

	gate := service.NewRouteGate(service.RouteGateOptions{
		Store:     adapters.Store,
		Navigator: navigations,
		Logger:    logger,
	})

	// One event stream comes out of the provider; every controller needs its
	// own copy of every event.
	broadcaster := service.NewEventBroadcaster(adapters.Provider.Events(), logger)
	go broadcaster.Run(baseCtx)

	factory := func(clientID string) *service.SessionController {
		events, _ := broadcaster.Subscribe() // controllers live until shutdown
		return service.NewSessionController(service.SessionControllerOptions{
			ClientID:  clientID,
			Provider:  adapters.Provider,
			Events:    events,
			Roles:     adapters.Roles,
			Resolver:  resolver,
			Recovery:  recovery,
			Signup:    signup,
			Store:     adapters.Store,
			Navigator: navigations,
			Incidents: incidents,
			Logger:    logger,
		})
	}

	registry := httpx.NewClientRegistry(baseCtx, factory, logger)

	return ServiceContainer{
		Provider:    adapters.Provider,
		Profiles:    profiles,
		Resolver:    resolver,
		Recovery:    recovery,
		Signup:      signup,
		Orphans:     orphans,
		Callback:    callback,
		Selection:   selection,
		Gate:        gate,
		Registry:    registry,
		Navigations: navigations,
		Incidents:   incidents,
	}
}
