package httpx

import (
	"errors"
	"net/http"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
	"github.com/brightclass/identity-go/internal/service"
)

// AuthHandlers covers the external auth detour: starting the flow, finishing
// the callback, and the role endpoints around them.
type AuthHandlers struct {
	Provider  ports.IdentityProvider
	Callback  *service.CallbackHandler
	Selection *service.RoleSelection
	Signup    *service.SignupState
}

type beginRequest struct {
	RedirectURL string `json:"redirect_url"`
	// Role, when present, is saved as the pending choice before the detour.
	Role string `json:"role,omitempty"`
}

// Begin starts the external login flow and hands the SPA the provider URL.
func (h *AuthHandlers) Begin(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	if req.Role != "" {
		role, err := identity.ParseRole(req.Role)
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: err})
			return
		}
		if err := h.Selection.SavePending(r.Context(), ClientID(r), role); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "state_store", Err: err})
			return
		}
	}

	authURL, state, _, err := h.Provider.Begin(r.Context(), ports.BeginInput{RedirectURL: req.RedirectURL})
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "provider", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"auth_url": authURL, "state": state})
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// CompleteCallback exchanges the code when one is supplied, then runs the
// callback completion flow and returns the landing decision.
func (h *AuthHandlers) CompleteCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}
	if req.Code != "" {
		if _, err := h.Provider.Exchange(r.Context(), ports.ExchangeInput{Code: req.Code, State: req.State}); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "exchange_failed", Err: err})
			return
		}
	}
	decision := h.Callback.Complete(r.Context(), ClientID(r))
	WriteJSON(w, http.StatusOK, decision)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *AuthHandlers) parseRole(w http.ResponseWriter, r *http.Request) (identity.Role, bool) {
	var req roleRequest
	if !DecodeJSON(w, r, &req) {
		return "", false
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: err})
		return "", false
	}
	return role, true
}

// SelectRole commits an explicit role choice from the selection screen.
func (h *AuthHandlers) SelectRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.parseRole(w, r)
	if !ok {
		return
	}
	if err := h.Selection.Choose(r.Context(), ClientID(r), role); err != nil {
		code, errCode := http.StatusInternalServerError, "role_select_failed"
		if errors.Is(err, identity.ErrInvalidRole) {
			code, errCode = http.StatusBadRequest, "invalid_role"
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: errCode, Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"role": string(role)})
}

// SavePendingRole records a role choice ahead of the external redirect.
func (h *AuthHandlers) SavePendingRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.parseRole(w, r)
	if !ok {
		return
	}
	if err := h.Selection.SavePending(r.Context(), ClientID(r), role); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "state_store", Err: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type signupStateRequest struct {
	InProgress bool `json:"in_progress"`
}

// SetSignupState marks a signup flow as started or finished.
func (h *AuthHandlers) SetSignupState(w http.ResponseWriter, r *http.Request) {
	var req signupStateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	var err error
	if req.InProgress {
		err = h.Signup.MarkInProgress(r.Context(), ClientID(r))
	} else {
		err = h.Signup.MarkComplete(r.Context(), ClientID(r))
	}
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "state_store", Err: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
