package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

// Refresher reloads cached settings after a write.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Validators check the value of known keys before they are stored. Keys
// without a validator accept any value.
var Validators = map[string]func(string) error{
	models.SettingPasswordScheme: func(v string) error {
		if _, ok := password.ParseScheme(v); !ok {
			return models.NewAdminError(fmt.Sprintf("unknown password scheme %q", v))
		}
		return nil
	},
	models.SettingAuthenticationType: func(v string) error {
		switch v {
		case "local", "external":
			return nil
		}
		return models.NewAdminError(fmt.Sprintf("unknown authentication type %q", v))
	},
}

// Service manages runtime settings.
type Service struct {
	store     store.Store
	guard     *access.Guard
	refresher Refresher
}

// New creates a settings service. refresher may be nil.
func New(s store.Store, guard *access.Guard, refresher Refresher) *Service {
	return &Service{store: s, guard: guard, refresher: refresher}
}

// List returns every stored setting.
func (s *Service) List(ctx context.Context, actor *models.Account) ([]*models.Setting, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceSetting, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListSettings(ctx)
}

// Get returns the value of key, or models.ErrSettingNotFound.
func (s *Service) Get(ctx context.Context, actor *models.Account, key string) (string, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceSetting, access.ActionView); err != nil {
		return "", err
	}
	v, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", models.ErrSettingNotFound
	}
	return v, nil
}

// Set validates and stores a setting, then refreshes the cached values.
func (s *Service) Set(ctx context.Context, actor *models.Account, key, value string) error {
	if err := s.guard.Policy.Check(actor, access.ResourceSetting, access.ActionChange); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return models.NewAdminError("setting key is required")
	}
	if validate, ok := Validators[key]; ok {
		if err := validate(value); err != nil {
			return err
		}
	}
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Setting updated", logger.KeySetting, key)
	return s.refresh(ctx)
}

// Delete removes a setting so the configured default applies again.
func (s *Service) Delete(ctx context.Context, actor *models.Account, key string) error {
	if err := s.guard.Policy.Check(actor, access.ResourceSetting, access.ActionDelete); err != nil {
		return err
	}
	if err := s.store.DeleteSetting(ctx, key); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Setting removed", logger.KeySetting, key)
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	if s.refresher == nil {
		return nil
	}
	return s.refresher.Refresh(ctx)
}

// Grants returns the grants targeting an object the actor can access.
func (s *Service) Grants(ctx context.Context, actor *models.Account, target models.ObjectRef) ([]*models.ObjectAccess, error) {
	if !target.Type.IsValid() {
		return nil, models.NewAdminError(fmt.Sprintf("unknown object type %q", target.Type))
	}
	if err := s.guard.Policy.Check(actor, access.ResourceGrant, access.ActionView); err != nil {
		return nil, err
	}
	if err := s.guard.Resolver.RequireAccess(ctx, actor, target); err != nil {
		return nil, err
	}
	return s.store.ListGrantsFor(ctx, target)
}

// Grant gives the account named username access to target. Domain and
// domain alias targets are reserved for DomainAdmins; granting an existing
// grant again changes nothing, so ownership is never downgraded.
func (s *Service) Grant(ctx context.Context, actor *models.Account, username string, target models.ObjectRef) error {
	grantee, err := s.grantee(ctx, actor, access.ActionAdd, username, target)
	if err != nil {
		return err
	}
	if grantee.ID == target.ID {
		return models.NewAdminError("an account cannot be granted access to itself")
	}
	switch target.Type {
	case models.ObjectTypeDomain, models.ObjectTypeDomainAlias:
		if grantee.Role != models.RoleDomainAdmin {
			return models.NewAdminError(fmt.Sprintf("account %s is not a domain administrator", grantee.Username))
		}
	}

	held, err := s.store.HasGrant(ctx, grantee.ID, target)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	if err := s.store.GrantAccess(ctx, grantee.ID, target, false); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Access granted", logger.Username(grantee.Username), logger.KeyObjectType, string(target.Type), logger.KeyObjectID, target.ID)
	return nil
}

// Revoke removes the grant of username on target. Ownership grants are
// kept: they decide who inherits the object.
func (s *Service) Revoke(ctx context.Context, actor *models.Account, username string, target models.ObjectRef) error {
	grantee, err := s.grantee(ctx, actor, access.ActionDelete, username, target)
	if err != nil {
		return err
	}
	owner, err := s.store.IsOwner(ctx, grantee.ID, target)
	if err != nil {
		return err
	}
	if owner {
		return models.NewAdminError(fmt.Sprintf("account %s owns %s", grantee.Username, target))
	}
	if err := s.store.RevokeAccess(ctx, grantee.ID, target); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "Access revoked", logger.Username(grantee.Username), logger.KeyObjectType, string(target.Type), logger.KeyObjectID, target.ID)
	return nil
}

// grantee checks the grant permission and loads both ends of a grant.
func (s *Service) grantee(ctx context.Context, actor *models.Account, act access.Action, username string, target models.ObjectRef) (*models.Account, error) {
	if !target.Type.IsValid() {
		return nil, models.NewAdminError(fmt.Sprintf("unknown object type %q", target.Type))
	}
	if err := s.guard.Policy.Check(actor, access.ResourceGrant, act); err != nil {
		return nil, err
	}
	if err := s.objectExists(ctx, target); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, username)
}

func (s *Service) objectExists(ctx context.Context, target models.ObjectRef) error {
	var err error
	switch target.Type {
	case models.ObjectTypeAccount:
		_, err = s.store.GetAccountByID(ctx, target.ID)
	case models.ObjectTypeDomain:
		_, err = s.store.GetDomainByID(ctx, target.ID)
	case models.ObjectTypeDomainAlias:
		_, err = s.store.GetDomainAliasByID(ctx, target.ID)
	case models.ObjectTypeMailbox:
		_, err = s.store.GetMailboxByID(ctx, target.ID)
	case models.ObjectTypeAlias:
		_, err = s.store.GetAliasByID(ctx, target.ID)
	}
	return err
}

// History returns the newest audit entries, at most limit (0 = all).
func (s *Service) History(ctx context.Context, actor *models.Account, limit int) ([]*models.AuditLog, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceAudit, access.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListAuditLogs(ctx, limit)
}
