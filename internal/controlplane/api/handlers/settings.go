package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/settings"
)

// DefaultHistoryLimit caps GET /api/v1/audit when no limit is given.
const DefaultHistoryLimit = 100

// SettingsHandler handles runtime settings, grant listing and the
// administrative history.
type SettingsHandler struct {
	svc *settings.Service
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(svc *settings.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// SettingRequest is the request body for PUT /api/v1/settings/{key}.
type SettingRequest struct {
	Value string `json:"value"`
}

// List handles GET /api/v1/settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}

// Get handles GET /api/v1/settings/{key}.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	value, err := h.svc.Get(r.Context(), actor, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, models.Setting{Key: key, Value: value})
}

// Set handles PUT /api/v1/settings/{key}.
func (h *SettingsHandler) Set(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req SettingRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.svc.Set(r.Context(), actor, key, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, models.Setting{Key: key, Value: req.Value})
}

// Delete handles DELETE /api/v1/settings/{key}.
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "key")); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// GrantRequest is the request body for POST /api/v1/grants/{type}/{id}.
type GrantRequest struct {
	Username string `json:"username"`
}

func grantTarget(r *http.Request) models.ObjectRef {
	return models.ObjectRef{
		Type: models.ObjectType(chi.URLParam(r, "type")),
		ID:   chi.URLParam(r, "id"),
	}
}

// Grants handles GET /api/v1/grants/{type}/{id}.
func (h *SettingsHandler) Grants(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Grants(r.Context(), actor, grantTarget(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}

// Grant handles POST /api/v1/grants/{type}/{id}.
func (h *SettingsHandler) Grant(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req GrantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		BadRequest(w, "username is required")
		return
	}
	target := grantTarget(r)
	if err := h.svc.Grant(r.Context(), actor, req.Username, target); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Grants(r.Context(), actor, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}

// Revoke handles DELETE /api/v1/grants/{type}/{id}/{username}.
func (h *SettingsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Revoke(r.Context(), actor, chi.URLParam(r, "username"), grantTarget(r)); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// History handles GET /api/v1/audit?limit=N.
func (h *SettingsHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, valid := queryInt(r, "limit", DefaultHistoryLimit)
	if !valid {
		BadRequest(w, "limit must be a non-negative integer")
		return
	}
	list, err := h.svc.History(r.Context(), actor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}
