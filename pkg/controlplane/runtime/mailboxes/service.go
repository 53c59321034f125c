package mailboxes

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
)

// CreateRequest describes a new mailbox. Address is "local@domain" and
// Account the username of the account using it.
type CreateRequest struct {
	Address string
	Account string
	Quota   int
}

// UpdateRequest holds the mailbox fields to change. Nil fields are kept.
type UpdateRequest struct {
	Address *string
	Quota   *int
}

// Service manages mailboxes and aliases.
type Service struct {
	store store.Store
	guard *access.Guard
	bus   *events.Bus
}

// New creates a mailbox service.
func New(s store.Store, guard *access.Guard, bus *events.Bus) *Service {
	return &Service{store: s, guard: guard, bus: bus}
}

// List returns the mailboxes actor can access, optionally limited to one domain.
func (s *Service) List(ctx context.Context, actor *models.Account, domain string) ([]*models.Mailbox, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceMailbox, access.ActionView); err != nil {
		return nil, err
	}

	var all []*models.Mailbox
	if domain != "" {
		d, err := s.store.GetDomain(ctx, domain)
		if err != nil {
			return nil, err
		}
		all, err = s.store.ListMailboxesByDomain(ctx, d.ID)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		if all, err = s.store.ListMailboxes(ctx); err != nil {
			return nil, err
		}
	}
	return access.Filter(ctx, s.guard, actor, all)
}

// Get returns a mailbox actor can access.
func (s *Service) Get(ctx context.Context, actor *models.Account, address string) (*models.Mailbox, error) {
	mb, err := s.store.GetMailboxByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceMailbox, access.ActionView, mb); err != nil {
		return nil, err
	}
	return mb, nil
}

// GetUsed returns a mailbox actor either uses itself or can access as an
// administrator.
func (s *Service) GetUsed(ctx context.Context, actor *models.Account, address string) (*models.Mailbox, error) {
	mb, err := s.store.GetMailboxByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if actor != nil && mb.AccountID == actor.ID {
		return mb, nil
	}
	if err := s.guard.Require(ctx, actor, access.ResourceMailbox, access.ActionView, mb); err != nil {
		return nil, err
	}
	return mb, nil
}

// Create creates a mailbox in a domain actor can access, used by an
// account actor can access.
func (s *Service) Create(ctx context.Context, actor *models.Account, req CreateRequest) (*models.Mailbox, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceMailbox, access.ActionAdd); err != nil {
		return nil, err
	}

	local, domain, err := s.resolveAddress(ctx, actor, req.Address)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Resolver.RequireAccess(ctx, actor, account.ObjectRef()); err != nil {
		return nil, err
	}

	mb := &models.Mailbox{Address: local, DomainID: domain.ID, Domain: domain, AccountID: account.ID, Quota: req.Quota}
	if err := s.validate(mb); err != nil {
		return nil, err
	}

	if _, err := s.store.CreateMailbox(ctx, mb, actorID(actor)); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Mailbox created", logger.Address(mb.FullAddress()), logger.Username(account.Username))
	s.bus.Emit(ctx, events.Event{Name: events.MailboxCreated, Actor: actor, Object: mb})
	return mb, nil
}

// Update changes the address or quota of a mailbox. Address changes publish
// MailboxModified with the old full address.
func (s *Service) Update(ctx context.Context, actor *models.Account, address string, req UpdateRequest) (*models.Mailbox, error) {
	mb, err := s.store.GetMailboxByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceMailbox, access.ActionChange, mb); err != nil {
		return nil, err
	}

	oldAddress := mb.FullAddress()
	if req.Address != nil {
		local, domain, err := s.resolveAddress(ctx, actor, *req.Address)
		if err != nil {
			return nil, err
		}
		mb.Address, mb.DomainID, mb.Domain = local, domain.ID, domain
	}
	if req.Quota != nil {
		mb.Quota = *req.Quota
	}
	if err := s.validate(mb); err != nil {
		return nil, err
	}

	if err := s.store.UpdateMailbox(ctx, mb); err != nil {
		return nil, err
	}

	ev := events.Event{Name: events.MailboxModified, Actor: actor, Object: mb}
	if mb.FullAddress() != oldAddress {
		ev.OldName = oldAddress
		logger.InfoCtx(ctx, "Mailbox address changed", logger.Address(mb.FullAddress()), "old_address", oldAddress)
	}
	s.bus.Emit(ctx, ev)
	return mb, nil
}

// Delete removes a mailbox and the alias recipients pointing at it.
func (s *Service) Delete(ctx context.Context, actor *models.Account, address string) error {
	mb, err := s.store.GetMailboxByAddress(ctx, address)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceMailbox, access.ActionDelete, mb); err != nil {
		return err
	}
	if err := s.store.DeleteMailbox(ctx, mb.ID); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Mailbox deleted", logger.Address(mb.FullAddress()))
	s.bus.Emit(ctx, events.Event{Name: events.MailboxDeleted, Actor: actor, Object: mb})
	return nil
}

// resolveAddress splits a full address and loads its domain, which actor
// must be able to access.
func (s *Service) resolveAddress(ctx context.Context, actor *models.Account, address string) (string, *models.Domain, error) {
	local, domainName, err := models.SplitAddress(address)
	if err != nil {
		return "", nil, models.NewAdminError(err.Error())
	}
	domain, err := s.store.GetDomain(ctx, domainName)
	if errors.Is(err, models.ErrDomainNotFound) {
		return "", nil, models.NewAdminError("unknown domain " + domainName)
	}
	if err != nil {
		return "", nil, err
	}
	if err := s.guard.Resolver.RequireAccess(ctx, actor, domain.ObjectRef()); err != nil {
		return "", nil, err
	}
	return local, domain, nil
}

func (s *Service) validate(mb *models.Mailbox) error {
	if err := mb.Validate(); err != nil {
		return models.NewAdminError(err.Error())
	}
	if mb.Quota < 0 {
		return models.NewAdminError("quota must not be negative")
	}
	if mb.Domain != nil && mb.Domain.Quota > 0 && mb.Quota > mb.Domain.Quota {
		return models.NewAdminError(fmt.Sprintf("quota exceeds the domain quota (%d MB)", mb.Domain.Quota))
	}
	return nil
}

func actorID(a *models.Account) string {
	if a == nil {
		return ""
	}
	return a.ID
}
