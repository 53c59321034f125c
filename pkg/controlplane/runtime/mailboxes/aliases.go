package mailboxes

import (
	"context"
	"errors"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/events"
)

// AliasRequest describes a new alias.
type AliasRequest struct {
	Address    string
	Recipients []string
	Enabled    *bool
}

// AliasUpdateRequest holds the alias fields to change. Nil fields are kept.
type AliasUpdateRequest struct {
	Recipients []string
	Enabled    *bool
}

// ListAliases returns the aliases actor can access, optionally limited to one domain.
func (s *Service) ListAliases(ctx context.Context, actor *models.Account, domain string) ([]*models.Alias, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceAlias, access.ActionView); err != nil {
		return nil, err
	}

	var (
		all []*models.Alias
		err error
	)
	if domain != "" {
		d, derr := s.store.GetDomain(ctx, domain)
		if derr != nil {
			return nil, derr
		}
		all, err = s.store.ListAliasesByDomain(ctx, d.ID)
	} else {
		all, err = s.store.ListAliases(ctx)
	}
	if err != nil {
		return nil, err
	}
	return access.Filter(ctx, s.guard, actor, all)
}

// GetAlias returns an alias actor can access.
func (s *Service) GetAlias(ctx context.Context, actor *models.Account, address string) (*models.Alias, error) {
	alias, err := s.store.GetAliasByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAlias, access.ActionView, alias); err != nil {
		return nil, err
	}
	return alias, nil
}

// CreateAlias creates an alias in a domain actor can access.
func (s *Service) CreateAlias(ctx context.Context, actor *models.Account, req AliasRequest) (*models.Alias, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceAlias, access.ActionAdd); err != nil {
		return nil, err
	}

	local, domain, err := s.resolveAddress(ctx, actor, req.Address)
	if err != nil {
		return nil, err
	}
	recipients, err := s.resolveRecipients(ctx, req.Recipients)
	if err != nil {
		return nil, err
	}

	alias := &models.Alias{Address: local, DomainID: domain.ID, Domain: domain, Enabled: true, Recipients: recipients}
	if req.Enabled != nil {
		alias.Enabled = *req.Enabled
	}
	if err := alias.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}

	if _, err := s.store.CreateAlias(ctx, alias, actorID(actor)); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Alias created", logger.Address(alias.FullAddress()), "kind", string(alias.Kind()))
	s.bus.Emit(ctx, events.Event{Name: events.AliasCreated, Actor: actor, Object: alias})
	return alias, nil
}

// UpdateAlias replaces the recipients or changes the enabled state of an alias.
func (s *Service) UpdateAlias(ctx context.Context, actor *models.Account, address string, req AliasUpdateRequest) (*models.Alias, error) {
	alias, err := s.store.GetAliasByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAlias, access.ActionChange, alias); err != nil {
		return nil, err
	}

	if req.Recipients != nil {
		if alias.Recipients, err = s.resolveRecipients(ctx, req.Recipients); err != nil {
			return nil, err
		}
	}
	if req.Enabled != nil {
		alias.Enabled = *req.Enabled
	}
	if err := alias.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}

	if err := s.store.UpdateAlias(ctx, alias); err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.Event{Name: events.AliasModified, Actor: actor, Object: alias})
	return alias, nil
}

// DeleteAlias removes an alias.
func (s *Service) DeleteAlias(ctx context.Context, actor *models.Account, address string) error {
	alias, err := s.store.GetAliasByAddress(ctx, address)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAlias, access.ActionDelete, alias); err != nil {
		return err
	}
	if err := s.store.DeleteAlias(ctx, alias.ID); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Alias deleted", logger.Address(alias.FullAddress()))
	s.bus.Emit(ctx, events.Event{Name: events.AliasDeleted, Actor: actor, Object: alias})
	return nil
}

// resolveRecipients links recipients to hosted mailboxes. Duplicates are
// dropped, keeping the first occurrence.
func (s *Service) resolveRecipients(ctx context.Context, addresses []string) ([]models.AliasRecipient, error) {
	seen := make(map[string]bool, len(addresses))
	out := make([]models.AliasRecipient, 0, len(addresses))

	for _, raw := range addresses {
		addr := models.NormalizeName(raw)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		if err := models.ValidateAddress(addr); err != nil {
			return nil, models.NewAdminError(err.Error())
		}

		r := models.AliasRecipient{Address: addr}
		mb, err := s.store.GetMailboxByAddress(ctx, addr)
		switch {
		case err == nil:
			id := mb.ID
			r.MailboxID = &id
		case !errors.Is(err, models.ErrMailboxNotFound):
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
