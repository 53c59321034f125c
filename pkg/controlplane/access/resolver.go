// Package access resolves who may act on what.
//
// Two layers are combined:
//   - Policy: role-level permissions (casbin RBAC), e.g. "DomainAdmins may
//     add mailboxes".
//   - Resolver: object-level grants, e.g. "alice may edit this mailbox".
//
// Object-level resolution follows ObjectAccess grants: a superuser reaches
// everything, an account reaches every object it holds a grant on, and it
// also reaches non-account objects owned by an account it holds a grant on.
// Resolution never follows more than that single indirection.
package access

import (
	"context"
	"errors"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// GrantReader is the subset of the store needed to resolve access.
type GrantReader interface {
	HasGrant(ctx context.Context, accountID string, target models.ObjectRef) (bool, error)
	HasDelegatedGrant(ctx context.Context, accountID string, target models.ObjectRef) (bool, error)
	IsOwner(ctx context.Context, accountID string, target models.ObjectRef) (bool, error)
	GetObjectOwner(ctx context.Context, target models.ObjectRef) (*models.Account, error)
}

// Resolver answers object-level access questions.
type Resolver struct {
	grants GrantReader
}

// NewResolver creates a Resolver reading grants from the given store.
func NewResolver(grants GrantReader) *Resolver {
	return &Resolver{grants: grants}
}

// CanAccess reports whether subject may act on target.
func (r *Resolver) CanAccess(ctx context.Context, subject *models.Account, target models.ObjectRef) (bool, error) {
	if subject == nil {
		return false, nil
	}
	if subject.IsSuperuser {
		return true, nil
	}

	ok, err := r.grants.HasGrant(ctx, subject.ID, target)
	if err != nil || ok {
		return ok, err
	}

	if target.IsAccount() {
		return false, nil
	}
	return r.grants.HasDelegatedGrant(ctx, subject.ID, target)
}

// RequireAccess returns models.ErrPermissionDenied unless subject may act on target.
func (r *Resolver) RequireAccess(ctx context.Context, subject *models.Account, target models.ObjectRef) error {
	ok, err := r.CanAccess(ctx, subject, target)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrPermissionDenied
	}
	return nil
}

// IsOwner reports whether account owns target.
func (r *Resolver) IsOwner(ctx context.Context, account *models.Account, target models.ObjectRef) (bool, error) {
	if account == nil {
		return false, nil
	}
	return r.grants.IsOwner(ctx, account.ID, target)
}

// Owner returns the owner of target, or nil when it has none.
func (r *Resolver) Owner(ctx context.Context, target models.ObjectRef) (*models.Account, error) {
	owner, err := r.grants.GetObjectOwner(ctx, target)
	if errors.Is(err, models.ErrGrantNotFound) {
		return nil, nil
	}
	return owner, err
}
