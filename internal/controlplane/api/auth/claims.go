// Package auth provides JWT authentication for the Postmaster API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents JWT claims for Postmaster authentication.
//
// Claims only identify the account. Permissions are always resolved
// against the stored account, so a role change takes effect on the next
// request even with an older token.
type Claims struct {
	jwt.RegisteredClaims

	// AccountID is the unique identifier (UUID) of the account.
	AccountID string `json:"uid"`

	// Username is the account login name.
	Username string `json:"username"`

	// Role is the account role at issue time.
	Role models.Role `json:"role"`

	// IsSuperuser mirrors the account superuser flag.
	IsSuperuser bool `json:"superuser,omitempty"`

	// TokenType indicates whether this is an access or refresh token.
	TokenType TokenType `json:"token_type"`

	// MustChangePassword blocks most operations until the password is changed.
	MustChangePassword bool `json:"must_change_password,omitempty"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken returns true if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}

// IsSuperAdmin reports whether the token was issued to a super administrator.
func (c *Claims) IsSuperAdmin() bool {
	return c.IsSuperuser || c.Role == models.RoleSuperAdmin
}
