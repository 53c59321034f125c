package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/postmaster/internal/controlplane/api/auth"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
)

// AccountHandler handles account management endpoints. Authorization is
// enforced by the account service.
type AccountHandler struct {
	svc        *accounts.Service
	jwtService *auth.JWTService
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(svc *accounts.Service, jwtService *auth.JWTService) *AccountHandler {
	return &AccountHandler{svc: svc, jwtService: jwtService}
}

// CreateAccountRequest is the request body for POST /api/v1/accounts.
type CreateAccountRequest struct {
	Username           string      `json:"username"`
	Password           string      `json:"password"`
	FirstName          string      `json:"first_name,omitempty"`
	LastName           string      `json:"last_name,omitempty"`
	Email              string      `json:"email,omitempty"`
	Role               models.Role `json:"role,omitempty"`
	Enabled            *bool       `json:"enabled,omitempty"`
	MustChangePassword bool        `json:"must_change_password,omitempty"`
}

// UpdateAccountRequest is the request body for PUT /api/v1/accounts/{username}.
type UpdateAccountRequest struct {
	FirstName *string      `json:"first_name,omitempty"`
	LastName  *string      `json:"last_name,omitempty"`
	Email     *string      `json:"email,omitempty"`
	Enabled   *bool        `json:"enabled,omitempty"`
	Role      *models.Role `json:"role,omitempty"`
}

// SetRoleRequest is the request body for PUT /api/v1/accounts/{username}/role.
type SetRoleRequest struct {
	Role models.Role `json:"role"`
}

// ChangePasswordRequest is the request body for password endpoints.
// CurrentPassword is only read when changing one's own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
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

// Get handles GET /api/v1/accounts/{username}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	account, err := h.svc.Get(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "username")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, account)
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		BadRequest(w, "Username is required")
		return
	}

	account, err := h.svc.Create(r.Context(), actor, accounts.CreateRequest{
		Username:           models.NormalizeName(req.Username),
		Password:           req.Password,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		Role:               req.Role,
		Enabled:            req.Enabled,
		MustChangePassword: req.MustChangePassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONCreated(w, account)
}

// Update handles PUT /api/v1/accounts/{username}.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	account, err := h.svc.Update(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "username")), accounts.UpdateRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Enabled:   req.Enabled,
		Role:      req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, account)
}

// SetRole handles PUT /api/v1/accounts/{username}/role.
func (h *AccountHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req SetRoleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !req.Role.IsValid() {
		BadRequest(w, "Invalid role")
		return
	}

	account, err := h.svc.SetRole(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "username")), req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSONOK(w, account)
}

// Delete handles DELETE /api/v1/accounts/{username}.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "username"))); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// ResetPassword handles POST /api/v1/accounts/{username}/password.
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		BadRequest(w, "New password is required")
		return
	}

	if err := h.svc.SetPassword(r.Context(), actor, models.NormalizeName(chi.URLParam(r, "username")), req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// ChangeOwnPassword handles POST /api/v1/accounts/me/password. A fresh
// token pair is returned so a cleared must-change flag takes effect.
func (h *AccountHandler) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		BadRequest(w, "Current and new password are required")
		return
	}

	if err := h.svc.ChangeOwnPassword(r.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			BadRequest(w, "Current password is incorrect")
			return
		}
		writeError(w, r, err)
		return
	}

	account, err := h.svc.Get(r.Context(), actor, actor.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := h.jwtService.GenerateTokenPair(account)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}
	WriteJSONOK(w, pair)
}
