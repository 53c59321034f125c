// Package middleware provides HTTP middleware for the Postmaster API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/marmos91/postmaster/internal/controlplane/api/auth"
	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/internal/telemetry"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

type contextKey int

const (
	claimsContextKey contextKey = iota
	accountContextKey
)

// AccountLoader fetches the account a token was issued to.
type AccountLoader interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
}

// JWTAuth validates the bearer access token and stores its claims in the
// request context.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing or malformed authorization header")
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				detail := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					detail = "Token has expired"
				}
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithActor(claims.Username, string(claims.Role)))
			}
			telemetry.SetAttributes(ctx, telemetry.Actor(claims.Username, string(claims.Role))...)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadAccount resolves the authenticated account from the store. Deleted
// accounts are rejected with 401 and disabled ones with 403. Must run after
// JWTAuth.
func LoadAccount(loader AccountLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}

			account, err := loader.GetAccountByID(r.Context(), claims.AccountID)
			switch {
			case errors.Is(err, models.ErrAccountNotFound):
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Account no longer exists")
				return
			case err != nil:
				logger.ErrorCtx(r.Context(), "Failed to load account", logger.Err(err))
				writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load account")
				return
			case !account.Enabled:
				writeProblem(w, http.StatusForbidden, "Forbidden", "Account is disabled")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePasswordChange blocks requests from accounts that must change
// their password, except on the allowed paths.
func RequirePasswordChange(allowedPaths ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedPaths))
	for _, p := range allowedPaths {
		allowed[strings.TrimSuffix(p, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}

			if claims.MustChangePassword {
				if _, ok := allowed[strings.TrimSuffix(r.URL.Path, "/")]; !ok {
					writeProblem(w, http.StatusForbidden, "Forbidden", "Password change required")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext returns the token claims, or nil if the request is
// not authenticated.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// GetAccountFromContext returns the account loaded by LoadAccount, or nil.
func GetAccountFromContext(ctx context.Context) *models.Account {
	account, _ := ctx.Value(accountContextKey).(*models.Account)
	return account
}

// WithAccount returns a context carrying account, as LoadAccount does.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// extractBearerToken returns the token of a "Bearer <token>" header.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
