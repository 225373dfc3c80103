package httpx

import (
	"net/http"
	"time"

	"github.com/brightclass/identity-go/internal/domain/identity"
)

// SessionHandlers serves the SPA shell's view of the current session.
type SessionHandlers struct {
	Registry    *ClientRegistry
	Navigations *NavigationSink
}

// sessionStateResponse is the wire shape of GET /api/session/state.
type sessionStateResponse struct {
	Authenticated  bool          `json:"authenticated"`
	Identity       *identityView `json:"identity,omitempty"`
	Role           string        `json:"role,omitempty"`
	HasProfile     *bool         `json:"has_profile"`
	Profile        *profileView  `json:"profile,omitempty"`
	Loading        bool          `json:"loading"`
	ProfileLoading bool          `json:"profile_loading"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	NavigateTo     string        `json:"navigate_to,omitempty"`
}

type identityView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type profileView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Initials  string `json:"initials"`
}

// GetState reports the controller snapshot plus any pending navigation.
func (h *SessionHandlers) GetState(w http.ResponseWriter, r *http.Request) {
	clientID := ClientID(r)
	snap := h.Registry.Controller(clientID).Snapshot()

	resp := sessionStateResponse{
		Authenticated:  snap.Identity != nil,
		HasProfile:     snap.Profile.HasProfile,
		Loading:        snap.Loading,
		ProfileLoading: snap.ProfileLoading,
	}
	if snap.Identity != nil {
		resp.Identity = &identityView{ID: snap.Identity.ID, Email: snap.Identity.Email}
	}
	if snap.HasRole {
		resp.Role = string(snap.Role)
	}
	if snap.Session != nil && !snap.Session.ExpiresAt.IsZero() {
		expires := snap.Session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	if snap.Profile.Exists() {
		resp.Profile = &profileView{
			FirstName: snap.Profile.FirstName,
			LastName:  snap.Profile.LastName,
			AvatarURL: snap.Profile.AvatarURL,
			Initials: identity.Profile{
				FirstName: snap.Profile.FirstName,
				LastName:  snap.Profile.LastName,
			}.Initials(),
		}
	}
	if h.Navigations != nil {
		if path, ok := h.Navigations.Consume(clientID); ok {
			resp.NavigateTo = path
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// SignOut revokes the session and tells the client to go home.
func (h *SessionHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	clientID := ClientID(r)
	h.Registry.Controller(clientID).SignOut(r.Context())

	target := identity.PathHome
	if h.Navigations != nil {
		if path, ok := h.Navigations.Consume(clientID); ok {
			target = path
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"navigate_to": target})
}

type refreshProfileRequest struct {
	Force bool `json:"force"`
}

// RefreshProfile re-resolves the profile and returns the settled entry.
func (h *SessionHandlers) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	var req refreshProfileRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}
	entry := h.Registry.Controller(ClientID(r)).RefreshProfile(r.Context(), req.Force)
	WriteJSON(w, http.StatusOK, entry)
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

// SetVisibility records whether the client tab is in the foreground, which
// gates redundant event processing.
func (h *SessionHandlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.Registry.Controller(ClientID(r)).SetVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}
