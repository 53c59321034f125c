package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/domains"
)

// DomainHandler handles domain and domain alias endpoints.
type DomainHandler struct {
	svc *domains.Service
}

// NewDomainHandler creates a DomainHandler.
func NewDomainHandler(svc *domains.Service) *DomainHandler {
	return &DomainHandler{svc: svc}
}

// DomainRequest is the request body for creating or updating a domain.
// On update only the fields present are changed.
type DomainRequest struct {
	Name    *string `json:"name,omitempty"`
	Quota   *int    `json:"quota,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// DomainAliasRequest is the request body for creating or updating a
// domain alias. Target is the target domain name.
type DomainAliasRequest struct {
	Name    string  `json:"name,omitempty"`
	Target  *string `json:"target,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// List handles GET /api/v1/domains.
func (h *DomainHandler) List(w http.ResponseWriter, r *http.Request) {
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

// Get handles GET /api/v1/domains/{name}.
func (h *DomainHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Get(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "name")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, d)
}

// Create handles POST /api/v1/domains.
func (h *DomainHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req DomainRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == nil || *req.Name == "" {
		BadRequest(w, "Domain name is required")
		return
	}

	create := domains.CreateRequest{Name: models.NormalizeName(*req.Name), Enabled: req.Enabled}
	if req.Quota != nil {
		create.Quota = *req.Quota
	}
	d, err := h.svc.Create(r.Context(), actor, create)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONCreated(w, d)
}

// Update handles PUT /api/v1/domains/{name}.
func (h *DomainHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req DomainRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name != nil {
		n := models.NormalizeName(*req.Name)
		req.Name = &n
	}

	d, err := h.svc.Update(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "name")), domains.UpdateRequest{
		Name:    req.Name,
		Quota:   req.Quota,
		Enabled: req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, d)
}

// Delete handles DELETE /api/v1/domains/{name}.
func (h *DomainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "name"))); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// ListAliases handles GET /api/v1/domain-aliases.
func (h *DomainHandler) ListAliases(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListAliases(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}

// GetAlias handles GET /api/v1/domain-aliases/{name}.
func (h *DomainHandler) GetAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetAlias(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "name")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, a)
}

// CreateAlias handles POST /api/v1/domain-aliases.
func (h *DomainHandler) CreateAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req DomainAliasRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Target == nil {
		BadRequest(w, "Name and target are required")
		return
	}

	a, err := h.svc.CreateAlias(r.Context(), actor, domains.AliasRequest{
		Name:    models.NormalizeName(req.Name),
		Target:  models.NormalizeName(*req.Target),
		Enabled: req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONCreated(w, a)
}

// UpdateAlias handles PUT /api/v1/domain-aliases/{name}.
func (h *DomainHandler) UpdateAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req DomainAliasRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Target != nil {
		t := models.NormalizeName(*req.Target)
		req.Target = &t
	}

	a, err := h.svc.UpdateAlias(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "name")), domains.AliasUpdateRequest{
		Target:  req.Target,
		Enabled: req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, a)
}

// DeleteAlias handles DELETE /api/v1/domain-aliases/{name}.
func (h *DomainHandler) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAlias(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "name"))); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}
