package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/mailboxes"
)

// MailboxHandler handles mailbox and alias endpoints.
type MailboxHandler struct {
	svc *mailboxes.Service
}

// NewMailboxHandler creates a MailboxHandler.
func NewMailboxHandler(svc *mailboxes.Service) *MailboxHandler {
	return &MailboxHandler{svc: svc}
}

// CreateMailboxRequest is the request body for POST /api/v1/mailboxes.
type CreateMailboxRequest struct {
	Address string `json:"address"`
	Account string `json:"account"`
	Quota   int    `json:"quota,omitempty"`
}

// UpdateMailboxRequest is the request body for PUT /api/v1/mailboxes/{address}.
type UpdateMailboxRequest struct {
	Address *string `json:"address,omitempty"`
	Quota   *int    `json:"quota,omitempty"`
}

// AliasRequest is the request body for creating or updating an alias.
type AliasRequest struct {
	Address    string   `json:"address,omitempty"`
	Recipients []string `json:"recipients"`
	Enabled    *bool    `json:"enabled,omitempty"`
}

// List handles GET /api/v1/mailboxes, optionally filtered with ?domain=.
func (h *MailboxHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), actor, models.NormalizeName(r.URL.Query().Get("domain")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}

// Get handles GET /api/v1/mailboxes/{address}.
func (h *MailboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	mb, err := h.svc.Get(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, mb)
}

// Create handles POST /api/v1/mailboxes.
func (h *MailboxHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateMailboxRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Address == "" || req.Account == "" {
		BadRequest(w, "Address and account are required")
		return
	}

	mb, err := h.svc.Create(r.Context(), actor, mailboxes.CreateRequest{
		Address: models.NormalizeName(req.Address),
		Account: models.NormalizeName(req.Account),
		Quota:   req.Quota,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONCreated(w, mb)
}

// Update handles PUT /api/v1/mailboxes/{address}.
func (h *MailboxHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req UpdateMailboxRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Address != nil {
		a := models.NormalizeName(*req.Address)
		req.Address = &a
	}

	mb, err := h.svc.Update(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address")), mailboxes.UpdateRequest{
		Address: req.Address,
		Quota:   req.Quota,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, mb)
}

// Delete handles DELETE /api/v1/mailboxes/{address}.
func (h *MailboxHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address"))); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// ListAliases handles GET /api/v1/aliases, optionally filtered with ?domain=.
func (h *MailboxHandler) ListAliases(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListAliases(r.Context(), actor, models.NormalizeName(r.URL.Query().Get("domain")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, list)
}

// GetAlias handles GET /api/v1/aliases/{address}.
func (h *MailboxHandler) GetAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetAlias(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, a)
}

// CreateAlias handles POST /api/v1/aliases.
func (h *MailboxHandler) CreateAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req AliasRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Address == "" {
		BadRequest(w, "Address is required")
		return
	}

	a, err := h.svc.CreateAlias(r.Context(), actor, mailboxes.AliasRequest{
		Address:    models.NormalizeName(req.Address),
		Recipients: req.Recipients,
		Enabled:    req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONCreated(w, a)
}

// UpdateAlias handles PUT /api/v1/aliases/{address}.
func (h *MailboxHandler) UpdateAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req AliasRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	a, err := h.svc.UpdateAlias(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address")), mailboxes.AliasUpdateRequest{
		Recipients: req.Recipients,
		Enabled:    req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, a)
}

// DeleteAlias handles DELETE /api/v1/aliases/{address}.
func (h *MailboxHandler) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAlias(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address"))); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}
