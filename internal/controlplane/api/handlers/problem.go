// Package handlers provides HTTP handlers for the Postmaster API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict writes a 409 Conflict problem response.
func Conflict(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusConflict, "Conflict", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

var notFoundErrors = []error{
	models.ErrAccountNotFound,
	models.ErrDomainNotFound,
	models.ErrDomainAliasNotFound,
	models.ErrMailboxNotFound,
	models.ErrAliasNotFound,
	models.ErrExtensionNotFound,
	models.ErrSettingNotFound,
	models.ErrGrantNotFound,
}

var conflictErrors = []error{
	models.ErrDuplicateAccount,
	models.ErrDuplicateDomain,
	models.ErrDuplicateDomainAlias,
	models.ErrDuplicateMailbox,
	models.ErrDuplicateAlias,
}

// writeError maps a service error to a problem response. Rule violations
// are reported verbatim; unexpected errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			NotFound(w, err.Error())
			return
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			Conflict(w, err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, models.ErrPermissionDenied):
		Forbidden(w, "Permission denied")
	case errors.Is(err, models.ErrInvalidCredentials):
		Unauthorized(w, "Invalid username or password")
	case errors.Is(err, models.ErrAccountDisabled):
		Forbidden(w, "Account is disabled")
	case errors.Is(err, models.ErrSelfDeletion), errors.Is(err, models.ErrExternalPassword):
		BadRequest(w, err.Error())
	case models.IsAdminError(err):
		BadRequest(w, err.Error())
	default:
		logger.ErrorCtx(r.Context(), "Request failed", logger.KeyMethod, r.Method, logger.KeyPath, r.URL.Path, logger.Err(err))
		InternalServerError(w, "Internal error")
	}
}
