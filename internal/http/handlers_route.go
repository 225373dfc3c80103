package httpx

import (
	"errors"
	"net/http"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/service"
)

// RouteHandlers answers "may the client render this location".
type RouteHandlers struct {
	Registry *ClientRegistry
	Gate     *service.RouteGate
}

// Decision evaluates the route gate for the client's current location.
// Query parameters: path (required), required_role (optional).
func (h *RouteHandlers) Decision(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_path",
			Err:     errors.New("query parameter path is required"),
		})
		return
	}

	loc := service.Location{Path: path}
	if raw := r.URL.Query().Get("required_role"); raw != "" {
		role, err := identity.ParseRole(raw)
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: err})
			return
		}
		loc.RequiredRole = role
	}

	clientID := ClientID(r)
	snap := h.Registry.Controller(clientID).Snapshot()
	decision := h.Gate.Evaluate(r.Context(), clientID, snap, loc)
	WriteJSON(w, http.StatusOK, decision)
}
