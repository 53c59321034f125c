// Package store provides the control plane persistence layer.
//
// This package implements the Store interface for managing administration
// data: accounts, object access grants, domains, domain aliases, mailboxes,
// aliases, extensions, the audit history and runtime settings.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
package store

import (
	"context"
	"time"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// AccountStore persists accounts.
type AccountStore interface {
	// GetAccount returns an account by username.
	// Returns models.ErrAccountNotFound if the account doesn't exist.
	GetAccount(ctx context.Context, username string) (*models.Account, error)

	// GetAccountByID returns an account by its unique ID (UUID).
	// Returns models.ErrAccountNotFound if no account has this ID.
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)

	// ListAccounts returns all accounts ordered by username.
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// ListSuperusers returns all superuser accounts, oldest first.
	ListSuperusers(ctx context.Context) ([]*models.Account, error)

	// CreateAccount creates a new account.
	// When creatorID is not empty, the creator is granted ownership of the
	// account in the same transaction.
	// Returns models.ErrDuplicateAccount if the username is taken.
	CreateAccount(ctx context.Context, account *models.Account, creatorID string) (string, error)

	// UpdateAccount updates the mutable fields of an account.
	// Returns models.ErrAccountNotFound if the account doesn't exist.
	UpdateAccount(ctx context.Context, account *models.Account) error

	// DeleteAccount deletes an account and the mailboxes it uses.
	// Objects owned by the account are re-granted, as owner, to heirID.
	// Every grant held by or targeting the account or its mailboxes is removed.
	// Returns the deleted mailboxes with their domain loaded.
	DeleteAccount(ctx context.Context, id, heirID string) ([]*models.Mailbox, error)

	// UpdatePassword replaces the stored password digest.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error
}

// GrantStore persists object access grants.
type GrantStore interface {
	// GrantAccess gives an account access to an object.
	// An existing grant for the same pair has its owner flag replaced.
	GrantAccess(ctx context.Context, accountID string, target models.ObjectRef, isOwner bool) error

	// RevokeAccess removes the grant of an account on an object.
	// Returns models.ErrGrantNotFound if no such grant exists.
	RevokeAccess(ctx context.Context, accountID string, target models.ObjectRef) error

	// UngrantObject removes every grant targeting an object.
	UngrantObject(ctx context.Context, target models.ObjectRef) error

	// RevokeAllHeldBy removes every grant held by an account.
	RevokeAllHeldBy(ctx context.Context, accountID string) error

	// HasGrant reports whether a direct grant exists.
	HasGrant(ctx context.Context, accountID string, target models.ObjectRef) (bool, error)

	// HasDelegatedGrant reports whether the account holds a grant on some
	// account that owns the target.
	HasDelegatedGrant(ctx context.Context, accountID string, target models.ObjectRef) (bool, error)

	// IsOwner reports whether the account owns the object.
	IsOwner(ctx context.Context, accountID string, target models.ObjectRef) (bool, error)

	// GetObjectOwner returns the owner of an object.
	// Returns models.ErrGrantNotFound if the object has no owner.
	GetObjectOwner(ctx context.Context, target models.ObjectRef) (*models.Account, error)

	// ListGrantsFor returns every grant targeting an object.
	ListGrantsFor(ctx context.Context, target models.ObjectRef) ([]*models.ObjectAccess, error)

	// ListGrantsHeldBy returns every grant held by an account.
	ListGrantsHeldBy(ctx context.Context, accountID string) ([]*models.ObjectAccess, error)
}

// DomainStore persists domains and domain aliases.
type DomainStore interface {
	GetDomain(ctx context.Context, name string) (*models.Domain, error)
	GetDomainByID(ctx context.Context, id string) (*models.Domain, error)
	ListDomains(ctx context.Context) ([]*models.Domain, error)

	// CreateDomain creates a domain owned by creatorID (if not empty).
	// Returns models.ErrDuplicateDomain if the name is taken.
	CreateDomain(ctx context.Context, domain *models.Domain, creatorID string) (string, error)

	// UpdateDomain updates name, quota and enabled state.
	UpdateDomain(ctx context.Context, domain *models.Domain) error

	// DeleteDomain deletes a domain with its mailboxes, aliases and domain
	// aliases, removing every grant referencing them.
	DeleteDomain(ctx context.Context, id string) error

	GetDomainAlias(ctx context.Context, name string) (*models.DomainAlias, error)
	GetDomainAliasByID(ctx context.Context, id string) (*models.DomainAlias, error)
	ListDomainAliases(ctx context.Context) ([]*models.DomainAlias, error)

	// CreateDomainAlias creates a domain alias owned by creatorID (if not empty).
	// Returns models.ErrDuplicateDomainAlias if the name is taken.
	CreateDomainAlias(ctx context.Context, alias *models.DomainAlias, creatorID string) (string, error)

	// UpdateDomainAlias updates target and enabled state.
	UpdateDomainAlias(ctx context.Context, alias *models.DomainAlias) error

	// DeleteDomainAlias deletes a domain alias and its grants.
	DeleteDomainAlias(ctx context.Context, id string) error
}

// MailboxStore persists mailboxes and aliases.
type MailboxStore interface {
	GetMailboxByID(ctx context.Context, id string) (*models.Mailbox, error)

	// GetMailboxByAddress looks a mailbox up by its full "local@domain" address.
	GetMailboxByAddress(ctx context.Context, address string) (*models.Mailbox, error)

	ListMailboxes(ctx context.Context) ([]*models.Mailbox, error)
	ListMailboxesByDomain(ctx context.Context, domainID string) ([]*models.Mailbox, error)
	ListMailboxesByAccount(ctx context.Context, accountID string) ([]*models.Mailbox, error)

	// CreateMailbox creates a mailbox owned by creatorID (if not empty).
	// Returns models.ErrDuplicateMailbox if the address is taken.
	CreateMailbox(ctx context.Context, mailbox *models.Mailbox, creatorID string) (string, error)

	// UpdateMailbox updates the address, domain and quota of a mailbox.
	UpdateMailbox(ctx context.Context, mailbox *models.Mailbox) error

	// DeleteMailbox deletes a mailbox, its grants and alias recipients
	// pointing at it.
	DeleteMailbox(ctx context.Context, id string) error

	GetAliasByID(ctx context.Context, id string) (*models.Alias, error)

	// GetAliasByAddress looks an alias up by its full "local@domain" address.
	GetAliasByAddress(ctx context.Context, address string) (*models.Alias, error)

	ListAliases(ctx context.Context) ([]*models.Alias, error)
	ListAliasesByDomain(ctx context.Context, domainID string) ([]*models.Alias, error)

	// CreateAlias creates an alias with its recipients, owned by creatorID
	// (if not empty).
	// Returns models.ErrDuplicateAlias if the address is taken.
	CreateAlias(ctx context.Context, alias *models.Alias, creatorID string) (string, error)

	// UpdateAlias updates the alias and replaces its recipients.
	UpdateAlias(ctx context.Context, alias *models.Alias) error

	// DeleteAlias deletes an alias, its recipients and its grants.
	DeleteAlias(ctx context.Context, id string) error
}

// ExtensionStore persists extension state.
type ExtensionStore interface {
	GetExtension(ctx context.Context, name string) (*models.Extension, error)
	ListExtensions(ctx context.Context) ([]*models.Extension, error)

	// EnsureExtension creates a disabled extension row if none exists.
	EnsureExtension(ctx context.Context, name string) (*models.Extension, error)

	// SetExtensionEnabled persists the enabled flag.
	SetExtensionEnabled(ctx context.Context, name string, enabled bool) error
}

// AuditStore persists the administrative history.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error

	// ListAuditLogs returns the newest entries first, at most limit (0 = all).
	ListAuditLogs(ctx context.Context, limit int) ([]*models.AuditLog, error)

	// PurgeAuditLogs deletes entries older than before and returns how many.
	PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error)
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	// GetSetting returns the value, or "" when the key is not set.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) ([]*models.Setting, error)
}

// Store provides the control plane persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from multiple
// goroutines.
type Store interface {
	AccountStore
	GrantStore
	DomainStore
	MailboxStore
	ExtensionStore
	AuditStore
	SettingsStore

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
