package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/postmaster/internal/controlplane/api/auth"
	"github.com/marmos91/postmaster/internal/controlplane/api/middleware"
	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/metrics"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	accounts   *accounts.Service
	loader     middleware.AccountLoader
	jwtService *auth.JWTService
	metrics    metrics.APIMetrics
}

// NewAuthHandler creates an AuthHandler. m may be nil.
func NewAuthHandler(svc *accounts.Service, loader middleware.AccountLoader, jwtService *auth.JWTService, m metrics.APIMetrics) *AuthHandler {
	return &AuthHandler{accounts: svc, loader: loader, jwtService: jwtService, metrics: m}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by login and refresh.
type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Account      *models.Account `json:"account"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), models.NormalizeName(req.Username), req.Password)
	metrics.ObserveLogin(h.metrics, err == nil)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) || errors.Is(err, models.ErrInvalidCredentials) {
			logger.InfoCtx(r.Context(), "Login failed", logger.Username(req.Username))
			Unauthorized(w, "Invalid username or password")
			return
		}
		writeError(w, r, err)
		return
	}

	h.writeTokens(w, account)
}

// Refresh handles POST /api/v1/auth/refresh. The account is reloaded so
// disabled or deleted accounts cannot renew their tokens.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		BadRequest(w, "Refresh token is required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	account, err := h.loader.GetAccountByID(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			Unauthorized(w, "Account no longer exists")
			return
		}
		writeError(w, r, err)
		return
	}
	if !account.Enabled {
		Forbidden(w, "Account is disabled")
		return
	}

	h.writeTokens(w, account)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	WriteJSONOK(w, actor)
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, account *models.Account) {
	pair, err := h.jwtService.GenerateTokenPair(account)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}
	WriteJSONOK(w, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		Account:      account,
	})
}
