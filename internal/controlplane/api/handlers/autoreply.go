package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/extensions"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/mailboxes"
	"github.com/marmos91/postmaster/pkg/extensions/autoreply"
)

// AutoreplyHandler reads and writes mailbox auto-reply messages while the
// auto-reply extension is loaded.
type AutoreplyHandler struct {
	extensions *extensions.Service
	mailboxes  *mailboxes.Service
}

// NewAutoreplyHandler creates an AutoreplyHandler.
func NewAutoreplyHandler(ext *extensions.Service, mb *mailboxes.Service) *AutoreplyHandler {
	return &AutoreplyHandler{extensions: ext, mailboxes: mb}
}

// AutoreplyRequest is the request body for PUT /api/v1/mailboxes/{address}/autoreply.
type AutoreplyRequest struct {
	Subject   string     `json:"subject"`
	Content   string     `json:"content"`
	Enabled   bool       `json:"enabled"`
	FromDate  *time.Time `json:"from_date,omitempty"`
	UntilDate *time.Time `json:"until_date,omitempty"`
}

// Get handles GET /api/v1/mailboxes/{address}/autoreply.
func (h *AutoreplyHandler) Get(w http.ResponseWriter, r *http.Request) {
	ext, mb, ok := h.resolve(w, r)
	if !ok {
		return
	}
	msg, err := ext.GetMessage(r.Context(), mb.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, msg)
}

// Set handles PUT /api/v1/mailboxes/{address}/autoreply.
func (h *AutoreplyHandler) Set(w http.ResponseWriter, r *http.Request) {
	ext, mb, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req AutoreplyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	msg := &autoreply.Message{
		MailboxID: mb.ID,
		Subject:   req.Subject,
		Content:   req.Content,
		Enabled:   req.Enabled,
		FromDate:  req.FromDate,
		UntilDate: req.UntilDate,
	}
	if err := ext.SetMessage(r.Context(), msg); err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, msg)
}

func (h *AutoreplyHandler) resolve(w http.ResponseWriter, r *http.Request) (*autoreply.Extension, *models.Mailbox, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return nil, nil, false
	}
	loaded, ok := h.extensions.Loaded(autoreply.Name)
	if !ok {
		NotFound(w, "Auto-reply extension is not enabled")
		return nil, nil, false
	}
	ext, ok := loaded.(*autoreply.Extension)
	if !ok {
		InternalServerError(w, "Unexpected auto-reply extension implementation")
		return nil, nil, false
	}

	mb, err := h.mailboxes.GetUsed(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	return ext, mb, true
}
