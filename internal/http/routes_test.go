package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	identitymocks "github.com/brightclass/identity-go/internal/mocks/identity"
	"github.com/brightclass/identity-go/internal/service"
	"github.com/brightclass/identity-go/internal/testutil"
)

type routerFixture struct {
	handler  http.Handler
	provider *identitymocks.MockProvider
	repo     *identitymocks.MemoryProfileRepo
	store    *identitymocks.MemoryStateStore
	nav      *NavigationSink
	clock    *data.FixedTimeProvider
	cookie   *http.Cookie
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	provider := identitymocks.NewMockProvider()
	repo := identitymocks.NewMemoryProfileRepo()
	store := identitymocks.NewMemoryStateStore()
	nav := NewNavigationSink()
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store.Now = clock.Now

	signup := service.NewSignupState(service.SignupStateOptions{Store: store, TimeProvider: clock})
	resolver := service.NewProfileResolver(service.ProfileResolverOptions{
		Profiles: repo, Store: store, TimeProvider: clock,
	})
	recovery := service.NewRoleRecoveryEngine(service.RoleRecoveryOptions{
		Provider: provider, Profiles: repo, Store: store, Signup: signup, TimeProvider: clock,
	})
	registry := NewClientRegistry(context.Background(), func(clientID string) *service.SessionController {
		return service.NewSessionController(service.SessionControllerOptions{
			ClientID:     clientID,
			Provider:     provider,
			Roles:        identitymocks.MapRoleExtractor{},
			Resolver:     resolver,
			Recovery:     recovery,
			Signup:       signup,
			Store:        store,
			Navigator:    nav,
			TimeProvider: clock,
		})
	}, nil)

	handler := NewRouter(RouterServices{
		Registry:    registry,
		Navigations: nav,
		Gate: service.NewRouteGate(service.RouteGateOptions{
			Store: store, Navigator: nav, TimeProvider: clock,
		}),
		Callback: service.NewCallbackHandler(service.CallbackOptions{
			Provider: provider, Profiles: repo,
			Roles:    identitymocks.MapRoleExtractor{},
			Recovery: recovery, Orphans: service.NewOrphanReconciler(repo, nil, nil),
			Signup: signup, Store: store, Navigator: nav, TimeProvider: clock,
		}),
		Selection: service.NewRoleSelection(provider, recovery, nil),
		Signup:    signup,
		Provider:  provider,
	})
	return &routerFixture{
		handler:  handler,
		provider: provider,
		repo:     repo,
		store:    store,
		nav:      nav,
		clock:    clock,
	}
}

// do performs a request, carrying the minted client cookie across calls.
func (f *routerFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == clientCookieName {
			f.cookie = c
		}
	}
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	fix := newRouterFixture(t)
	rec := fix.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClientCookieMinted(t *testing.T) {
	fix := newRouterFixture(t)
	fix.do(t, http.MethodGet, "/api/session/state", nil)
	require.NotNil(t, fix.cookie, "first response mints the client cookie")

	first := fix.cookie.Value
	fix.do(t, http.MethodGet, "/api/session/state", nil)
	assert.Equal(t, first, fix.cookie.Value, "existing cookie is honored")
}

func TestSessionStateAnonymous(t *testing.T) {
	fix := newRouterFixture(t)
	rec := fix.do(t, http.MethodGet, "/api/session/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decodeBody[sessionStateResponse](t, rec)
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.HasProfile)
}

func TestSessionStateAuthenticated(t *testing.T) {
	fix := newRouterFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	fix.provider.Session = testutil.NewSession(ident).Build()
	fix.repo.Seed(identity.RoleTeacher, testutil.NewProfile(ident).WithName("Ada", "Byron").Build())

	var state sessionStateResponse
	require.Eventually(t, func() bool {
		state = decodeBody[sessionStateResponse](t, fix.do(t, http.MethodGet, "/api/session/state", nil))
		return state.HasProfile != nil
	}, time.Second, 10*time.Millisecond, "profile resolution settles")

	assert.True(t, state.Authenticated)
	assert.Equal(t, "teacher", state.Role)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "AB", state.Profile.Initials)
}

func TestSignOut(t *testing.T) {
	fix := newRouterFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleTeacher).Build()
	fix.provider.Session = testutil.NewSession(ident).Build()

	fix.do(t, http.MethodGet, "/api/session/state", nil)
	rec := fix.do(t, http.MethodPost, "/api/session/signout", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, identity.PathHome, body["navigate_to"])
	assert.Equal(t, 1, fix.provider.SignOutCalls)
}

func TestRefreshProfile(t *testing.T) {
	fix := newRouterFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleStudent).Build()
	fix.provider.Session = testutil.NewSession(ident).Build()
	fix.repo.Seed(identity.RoleStudent, testutil.NewProfile(ident).Build())

	rec := fix.do(t, http.MethodPost, "/api/session/refresh-profile", refreshProfileRequest{Force: true})
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decodeBody[identity.ProfileCacheEntry](t, rec)
	assert.True(t, entry.Exists())
}

func TestRouteDecision(t *testing.T) {
	fix := newRouterFixture(t)

	rec := fix.do(t, http.MethodGet, "/api/route/decision?path=/teacher/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decision := decodeBody[identity.RouteDecision](t, rec)
	assert.Equal(t, identity.DecisionRedirect, decision.Kind)
	assert.Equal(t, identity.PathAuth, decision.Target)

	rec = fix.do(t, http.MethodGet, "/api/route/decision", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fix.do(t, http.MethodGet, "/api/route/decision?path=/x&required_role=admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthBegin(t *testing.T) {
	fix := newRouterFixture(t)
	rec := fix.do(t, http.MethodPost, "/api/auth/begin", beginRequest{RedirectURL: "/app", Role: "teacher"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.NotEmpty(t, body["auth_url"])

	// The role rides along as the pending choice.
	raw, ok, _ := fix.store.Get(context.Background(), fix.cookie.Value, "pending_role")
	require.True(t, ok)
	assert.Equal(t, "teacher", raw)
}

func TestAuthCallbackLandsOnDashboard(t *testing.T) {
	fix := newRouterFixture(t)
	ident := testutil.NewIdentity().WithRole(identity.RoleStudent).Build()
	fix.provider.Session = testutil.NewSession(ident).Build()
	fix.repo.Seed(identity.RoleStudent, testutil.NewProfile(ident).Build())

	rec := fix.do(t, http.MethodPost, "/api/auth/callback", callbackRequest{Code: "abc", State: "s"})
	require.Equal(t, http.StatusOK, rec.Code)
	decision := decodeBody[identity.RouteDecision](t, rec)
	assert.Equal(t, "/student/dashboard", decision.Target)
}

func TestRoleSelect(t *testing.T) {
	fix := newRouterFixture(t)
	ident := testutil.NewIdentity().Build()
	fix.provider.User = &ident

	rec := fix.do(t, http.MethodPost, "/api/role/select", roleRequest{Role: "teacher"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fix.provider.Patches, 1)

	rec = fix.do(t, http.MethodPost, "/api/role/select", roleRequest{Role: "principal"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPendingRoleAndSignupState(t *testing.T) {
	fix := newRouterFixture(t)

	rec := fix.do(t, http.MethodPost, "/api/role/pending", roleRequest{Role: "student"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = fix.do(t, http.MethodPost, "/api/signup/state", signupStateRequest{InProgress: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok, _ := fix.store.Get(context.Background(), fix.cookie.Value, "signup_in_progress")
	assert.True(t, ok)

	rec = fix.do(t, http.MethodPost, "/api/signup/state", signupStateRequest{InProgress: false})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok, _ = fix.store.Get(context.Background(), fix.cookie.Value, "signup_in_progress")
	assert.False(t, ok)
}
