package models

import "errors"

// Common errors for administration operations.
var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSelfDeletion       = errors.New("you can't delete your own account")
	ErrExternalPassword   = errors.New("password is managed by the external authentication backend")

	// Permission errors
	ErrPermissionDenied = errors.New("permission denied")

	// Grant errors
	ErrGrantNotFound = errors.New("grant not found")

	// Domain errors
	ErrDomainNotFound  = errors.New("domain not found")
	ErrDuplicateDomain = errors.New("domain already exists")

	// Domain alias errors
	ErrDomainAliasNotFound  = errors.New("domain alias not found")
	ErrDuplicateDomainAlias = errors.New("domain alias already exists")

	// Mailbox errors
	ErrMailboxNotFound  = errors.New("mailbox not found")
	ErrDuplicateMailbox = errors.New("mailbox already exists")

	// Alias errors
	ErrAliasNotFound  = errors.New("alias not found")
	ErrDuplicateAlias = errors.New("Alias with this name already exists")

	// Extension errors
	ErrExtensionNotFound = errors.New("extension not found")

	// Setting errors
	ErrSettingNotFound = errors.New("setting not found")
)

// AdminError is a rule violation reported back to the operator verbatim.
type AdminError struct {
	Msg string
}

func (e *AdminError) Error() string {
	return e.Msg
}

// NewAdminError creates an AdminError.
func NewAdminError(msg string) error {
	return &AdminError{Msg: msg}
}

// IsAdminError reports whether err wraps an AdminError.
func IsAdminError(err error) bool {
	var ae *AdminError
	return errors.As(err, &ae)
}
