package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/postmaster/pkg/controlplane/runtime/extensions"
)

// ExtensionHandler handles extension endpoints.
type ExtensionHandler struct {
	svc *extensions.Service
}

// NewExtensionHandler creates an ExtensionHandler.
func NewExtensionHandler(svc *extensions.Service) *ExtensionHandler {
	return &ExtensionHandler{svc: svc}
}

// List handles GET /api/v1/extensions.
func (h *ExtensionHandler) List(w http.ResponseWriter, r *http.Request) {
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

// Enable handles POST /api/v1/extensions/{name}/enable.
func (h *ExtensionHandler) Enable(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Enable(r.Context(), actor, chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Disable handles POST /api/v1/extensions/{name}/disable.
func (h *ExtensionHandler) Disable(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Disable(r.Context(), actor, chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}
