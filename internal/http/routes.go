package httpx

import (
	"log/slog"
	"net/http"

	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Registry    *ClientRegistry
	Navigations *NavigationSink
	Gate        *service.RouteGate
	Callback    *service.CallbackHandler
	Selection   *service.RoleSelection
	Signup      *service.SignupState
	Provider    ports.IdentityProvider
	Logger      *slog.Logger
}

// NewRouter creates and configures the gateway's HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	sessionHandlers := &SessionHandlers{
		Registry:    services.Registry,
		Navigations: services.Navigations,
	}
	mux.HandleFunc("GET /api/session/state", sessionHandlers.GetState)
	mux.HandleFunc("POST /api/session/signout", sessionHandlers.SignOut)
	mux.HandleFunc("POST /api/session/refresh-profile", sessionHandlers.RefreshProfile)
	mux.HandleFunc("POST /api/session/visibility", sessionHandlers.SetVisibility)

	routeHandlers := &RouteHandlers{Registry: services.Registry, Gate: services.Gate}
	mux.HandleFunc("GET /api/route/decision", routeHandlers.Decision)

	authHandlers := &AuthHandlers{
		Provider:  services.Provider,
		Callback:  services.Callback,
		Selection: services.Selection,
		Signup:    services.Signup,
	}
	mux.HandleFunc("POST /api/auth/begin", authHandlers.Begin)
	mux.HandleFunc("POST /api/auth/callback", authHandlers.CompleteCallback)
	mux.HandleFunc("POST /api/role/select", authHandlers.SelectRole)
	mux.HandleFunc("POST /api/role/pending", authHandlers.SavePendingRole)
	mux.HandleFunc("POST /api/signup/state", authHandlers.SetSignupState)

	var handler http.Handler = mux
	handler = WithClientID()(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
