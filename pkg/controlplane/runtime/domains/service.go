package domains

import (
	"context"
	"errors"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
)

// CreateRequest describes a new domain.
type CreateRequest struct {
	Name    string
	Quota   int
	Enabled *bool
}

// UpdateRequest holds the domain fields to change. Nil fields are kept.
type UpdateRequest struct {
	Name    *string
	Quota   *int
	Enabled *bool
}

// AliasRequest describes a domain alias. Target is the target domain name.
type AliasRequest struct {
	Name    string
	Target  string
	Enabled *bool
}

// AliasUpdateRequest holds the domain alias fields to change.
type AliasUpdateRequest struct {
	Target  *string
	Enabled *bool
}

// Service manages domains and domain aliases.
type Service struct {
	store store.Store
	guard *access.Guard
	bus   *events.Bus
}

// New creates a domain service.
func New(s store.Store, guard *access.Guard, bus *events.Bus) *Service {
	return &Service{store: s, guard: guard, bus: bus}
}

// ============================================
// DOMAINS
// ============================================

// List returns the domains actor can access.
func (s *Service) List(ctx context.Context, actor *models.Account) ([]*models.Domain, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceDomain, access.ActionView); err != nil {
		return nil, err
	}
	all, err := s.store.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	return access.Filter(ctx, s.guard, actor, all)
}

// Get returns a domain actor can access.
func (s *Service) Get(ctx context.Context, actor *models.Account, name string) (*models.Domain, error) {
	domain, err := s.store.GetDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceDomain, access.ActionView, domain); err != nil {
		return nil, err
	}
	return domain, nil
}

// Create creates a domain owned by actor.
func (s *Service) Create(ctx context.Context, actor *models.Account, req CreateRequest) (*models.Domain, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceDomain, access.ActionAdd); err != nil {
		return nil, err
	}

	domain := &models.Domain{Name: models.NormalizeName(req.Name), Quota: req.Quota, Enabled: true}
	if req.Enabled != nil {
		domain.Enabled = *req.Enabled
	}
	if err := domain.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}
	if err := s.checkNameFree(ctx, domain.Name); err != nil {
		return nil, err
	}

	if _, err := s.store.CreateDomain(ctx, domain, actorID(actor)); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Domain created", logger.Domain(domain.Name))
	s.bus.Emit(ctx, events.Event{Name: events.DomainCreated, Actor: actor, Object: domain})
	return domain, nil
}

// Update changes a domain. Renames publish DomainModified with the old name.
func (s *Service) Update(ctx context.Context, actor *models.Account, name string, req UpdateRequest) (*models.Domain, error) {
	domain, err := s.store.GetDomain(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceDomain, access.ActionChange, domain); err != nil {
		return nil, err
	}

	oldName := domain.Name
	if req.Name != nil {
		domain.Name = models.NormalizeName(*req.Name)
	}
	if req.Quota != nil {
		domain.Quota = *req.Quota
	}
	if req.Enabled != nil {
		domain.Enabled = *req.Enabled
	}
	if err := domain.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}
	if domain.Name != oldName {
		if err := s.checkNameFree(ctx, domain.Name); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateDomain(ctx, domain); err != nil {
		return nil, err
	}

	ev := events.Event{Name: events.DomainModified, Actor: actor, Object: domain}
	if domain.Name != oldName {
		ev.OldName = oldName
		logger.InfoCtx(ctx, "Domain renamed", logger.Domain(domain.Name), "old_name", oldName)
	}
	s.bus.Emit(ctx, ev)
	return domain, nil
}

// Delete removes a domain with its mailboxes, aliases and domain aliases.
func (s *Service) Delete(ctx context.Context, actor *models.Account, name string) error {
	domain, err := s.store.GetDomain(ctx, name)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceDomain, access.ActionDelete, domain); err != nil {
		return err
	}

	mailboxes, err := s.store.ListMailboxesByDomain(ctx, domain.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDomain(ctx, domain.ID); err != nil {
		return err
	}

	for _, mb := range mailboxes {
		s.bus.Emit(ctx, events.Event{Name: events.MailboxDeleted, Actor: actor, Object: mb})
	}
	logger.InfoCtx(ctx, "Domain deleted", logger.Domain(domain.Name), logger.KeyCount, len(mailboxes))
	s.bus.Emit(ctx, events.Event{Name: events.DomainDeleted, Actor: actor, Object: domain})
	return nil
}

// checkNameFree rejects names already used by a domain or domain alias.
func (s *Service) checkNameFree(ctx context.Context, name string) error {
	if _, err := s.store.GetDomain(ctx, name); err == nil {
		return models.ErrDuplicateDomain
	} else if !errors.Is(err, models.ErrDomainNotFound) {
		return err
	}

	_, err := s.store.GetDomainAlias(ctx, name)
	switch {
	case errors.Is(err, models.ErrDomainAliasNotFound):
		return nil
	case err != nil:
		return err
	}
	return models.ErrDuplicateDomainAlias
}

// ============================================
// DOMAIN ALIASES
// ============================================

// ListAliases returns the domain aliases actor can access.
func (s *Service) ListAliases(ctx context.Context, actor *models.Account) ([]*models.DomainAlias, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceDomainAlias, access.ActionView); err != nil {
		return nil, err
	}
	all, err := s.store.ListDomainAliases(ctx)
	if err != nil {
		return nil, err
	}
	return access.Filter(ctx, s.guard, actor, all)
}

// GetAlias returns a domain alias actor can access.
func (s *Service) GetAlias(ctx context.Context, actor *models.Account, name string) (*models.DomainAlias, error) {
	alias, err := s.store.GetDomainAlias(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceDomainAlias, access.ActionView, alias); err != nil {
		return nil, err
	}
	return alias, nil
}

// CreateAlias creates a domain alias pointing at a domain actor can access.
func (s *Service) CreateAlias(ctx context.Context, actor *models.Account, req AliasRequest) (*models.DomainAlias, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceDomainAlias, access.ActionAdd); err != nil {
		return nil, err
	}
	target, err := s.targetDomain(ctx, actor, req.Target)
	if err != nil {
		return nil, err
	}

	alias := &models.DomainAlias{Name: models.NormalizeName(req.Name), TargetID: target.ID, Enabled: true}
	if req.Enabled != nil {
		alias.Enabled = *req.Enabled
	}
	if err := alias.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}
	if err := s.checkNameFree(ctx, alias.Name); err != nil {
		return nil, err
	}

	if _, err := s.store.CreateDomainAlias(ctx, alias, actorID(actor)); err != nil {
		return nil, err
	}
	alias.Target = target

	logger.InfoCtx(ctx, "Domain alias created", logger.Domain(alias.Name), "target", target.Name)
	s.bus.Emit(ctx, events.Event{Name: events.DomainAliasCreated, Actor: actor, Object: alias})
	return alias, nil
}

// UpdateAlias changes the target or enabled state of a domain alias.
func (s *Service) UpdateAlias(ctx context.Context, actor *models.Account, name string, req AliasUpdateRequest) (*models.DomainAlias, error) {
	alias, err := s.store.GetDomainAlias(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceDomainAlias, access.ActionChange, alias); err != nil {
		return nil, err
	}

	if req.Target != nil {
		target, err := s.targetDomain(ctx, actor, *req.Target)
		if err != nil {
			return nil, err
		}
		alias.TargetID = target.ID
		alias.Target = target
	}
	if req.Enabled != nil {
		alias.Enabled = *req.Enabled
	}

	if err := s.store.UpdateDomainAlias(ctx, alias); err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.Event{Name: events.DomainAliasModified, Actor: actor, Object: alias})
	return alias, nil
}

// DeleteAlias removes a domain alias.
func (s *Service) DeleteAlias(ctx context.Context, actor *models.Account, name string) error {
	alias, err := s.store.GetDomainAlias(ctx, name)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceDomainAlias, access.ActionDelete, alias); err != nil {
		return err
	}
	if err := s.store.DeleteDomainAlias(ctx, alias.ID); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Domain alias deleted", logger.Domain(alias.Name))
	s.bus.Emit(ctx, events.Event{Name: events.DomainAliasDeleted, Actor: actor, Object: alias})
	return nil
}

// targetDomain resolves a domain alias target the actor can access.
func (s *Service) targetDomain(ctx context.Context, actor *models.Account, name string) (*models.Domain, error) {
	target, err := s.store.GetDomain(ctx, name)
	if errors.Is(err, models.ErrDomainNotFound) {
		return nil, models.NewAdminError("unknown target domain " + models.NormalizeName(name))
	}
	if err != nil {
		return nil, err
	}
	if err := s.guard.Resolver.RequireAccess(ctx, actor, target.ObjectRef()); err != nil {
		return nil, err
	}
	return target, nil
}

func actorID(a *models.Account) string {
	if a == nil {
		return ""
	}
	return a.ID
}
