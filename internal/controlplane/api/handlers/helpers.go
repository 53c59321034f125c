package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/marmos91/postmaster/internal/controlplane/api/middleware"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// decodeJSONBody decodes a JSON request body into v. On failure a 400
// response is written and false returned.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// requireActor returns the account loaded by the auth middleware, writing
// 401 when there is none.
func requireActor(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	actor := middleware.GetAccountFromContext(r.Context())
	if actor == nil {
		Unauthorized(w, "Authentication required")
		return nil, false
	}
	return actor, true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
