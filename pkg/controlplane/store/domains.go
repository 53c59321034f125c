package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================
// DOMAIN OPERATIONS
// ============================================

func (s *GORMStore) GetDomain(ctx context.Context, name string) (*models.Domain, error) {
	return getByField[models.Domain](s.db, ctx, "name", models.NormalizeName(name), models.ErrDomainNotFound)
}

func (s *GORMStore) GetDomainByID(ctx context.Context, id string) (*models.Domain, error) {
	return getByField[models.Domain](s.db, ctx, "id", id, models.ErrDomainNotFound)
}

func (s *GORMStore) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	var domains []*models.Domain
	if err := s.db.WithContext(ctx).Order("name").Find(&domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

func (s *GORMStore) CreateDomain(ctx context.Context, domain *models.Domain, creatorID string) (string, error) {
	domain.Name = models.NormalizeName(domain.Name)
	return createOwned(s.db, ctx, domain, func(d *models.Domain, id string) { d.ID = id }, domain.ID, models.ErrDuplicateDomain, domain, creatorID)
}

func (s *GORMStore) UpdateDomain(ctx context.Context, domain *models.Domain) error {
	var existing models.Domain
	if err := s.db.WithContext(ctx).Where("id = ?", domain.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrDomainNotFound)
	}

	domain.Name = models.NormalizeName(domain.Name)
	err := s.db.WithContext(ctx).
		Model(&existing).
		Select("Name", "Quota", "Enabled").
		Updates(domain).Error
	if isUniqueConstraintError(err) {
		return models.ErrDuplicateDomain
	}
	return err
}

func (s *GORMStore) DeleteDomain(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var domain models.Domain
		if err := tx.Where("id = ?", id).First(&domain).Error; err != nil {
			return convertNotFoundError(err, models.ErrDomainNotFound)
		}

		var mailboxes []*models.Mailbox
		if err := tx.Where("domain_id = ?", id).Find(&mailboxes).Error; err != nil {
			return err
		}
		if err := deleteMailboxes(tx, mailboxes); err != nil {
			return err
		}

		var aliasIDs []string
		if err := tx.Model(&models.Alias{}).Where("domain_id = ?", id).Pluck("id", &aliasIDs).Error; err != nil {
			return err
		}
		if err := deleteAliases(tx, aliasIDs); err != nil {
			return err
		}

		var domainAliasIDs []string
		if err := tx.Model(&models.DomainAlias{}).Where("target_id = ?", id).Pluck("id", &domainAliasIDs).Error; err != nil {
			return err
		}
		if err := ungrant(tx, models.ObjectTypeDomainAlias, domainAliasIDs...); err != nil {
			return err
		}
		if err := tx.Where("target_id = ?", id).Delete(&models.DomainAlias{}).Error; err != nil {
			return err
		}

		if err := ungrant(tx, models.ObjectTypeDomain, id); err != nil {
			return err
		}
		return tx.Delete(&domain).Error
	})
}

// ============================================
// DOMAIN ALIAS OPERATIONS
// ============================================

func (s *GORMStore) GetDomainAlias(ctx context.Context, name string) (*models.DomainAlias, error) {
	return getByField[models.DomainAlias](s.db, ctx, "name", models.NormalizeName(name), models.ErrDomainAliasNotFound, "Target")
}

func (s *GORMStore) GetDomainAliasByID(ctx context.Context, id string) (*models.DomainAlias, error) {
	return getByField[models.DomainAlias](s.db, ctx, "id", id, models.ErrDomainAliasNotFound, "Target")
}

func (s *GORMStore) ListDomainAliases(ctx context.Context) ([]*models.DomainAlias, error) {
	var aliases []*models.DomainAlias
	if err := s.db.WithContext(ctx).Preload("Target").Order("name").Find(&aliases).Error; err != nil {
		return nil, err
	}
	return aliases, nil
}

func (s *GORMStore) CreateDomainAlias(ctx context.Context, alias *models.DomainAlias, creatorID string) (string, error) {
	alias.Name = models.NormalizeName(alias.Name)
	// The association is set by TargetID only.
	alias.Target = nil
	return createOwned(s.db, ctx, alias, func(a *models.DomainAlias, id string) { a.ID = id }, alias.ID, models.ErrDuplicateDomainAlias, alias, creatorID)
}

func (s *GORMStore) UpdateDomainAlias(ctx context.Context, alias *models.DomainAlias) error {
	var existing models.DomainAlias
	if err := s.db.WithContext(ctx).Where("id = ?", alias.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrDomainAliasNotFound)
	}

	return s.db.WithContext(ctx).
		Model(&existing).
		Select("TargetID", "Enabled").
		Updates(alias).Error
}

func (s *GORMStore) DeleteDomainAlias(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ungrant(tx, models.ObjectTypeDomainAlias, id); err != nil {
			return err
		}
		return deleteByField[models.DomainAlias](tx, ctx, "id", id, models.ErrDomainAliasNotFound)
	})
}
