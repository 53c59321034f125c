package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================
// MAILBOX OPERATIONS
// ============================================

func (s *GORMStore) GetMailboxByID(ctx context.Context, id string) (*models.Mailbox, error) {
	return getByField[models.Mailbox](s.db, ctx, "id", id, models.ErrMailboxNotFound, "Domain")
}

func (s *GORMStore) GetMailboxByAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	local, domain, err := models.SplitAddress(address)
	if err != nil {
		return nil, models.ErrMailboxNotFound
	}

	var mailbox models.Mailbox
	err = s.db.WithContext(ctx).
		Preload("Domain").
		Joins("JOIN domains ON domains.id = mailboxes.domain_id").
		Where("mailboxes.address = ? AND domains.name = ?", local, domain).
		First(&mailbox).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrMailboxNotFound)
	}
	return &mailbox, nil
}

func (s *GORMStore) ListMailboxes(ctx context.Context) ([]*models.Mailbox, error) {
	return s.findMailboxes(ctx, "")
}

func (s *GORMStore) ListMailboxesByDomain(ctx context.Context, domainID string) ([]*models.Mailbox, error) {
	return s.findMailboxes(ctx, "mailboxes.domain_id = ?", domainID)
}

func (s *GORMStore) ListMailboxesByAccount(ctx context.Context, accountID string) ([]*models.Mailbox, error) {
	return s.findMailboxes(ctx, "mailboxes.account_id = ?", accountID)
}

func (s *GORMStore) findMailboxes(ctx context.Context, where string, args ...any) ([]*models.Mailbox, error) {
	q := s.db.WithContext(ctx).
		Preload("Domain").
		Joins("JOIN domains ON domains.id = mailboxes.domain_id").
		Order("domains.name, mailboxes.address")
	if where != "" {
		q = q.Where(where, args...)
	}
	var mailboxes []*models.Mailbox
	if err := q.Find(&mailboxes).Error; err != nil {
		return nil, err
	}
	return mailboxes, nil
}

func (s *GORMStore) CreateMailbox(ctx context.Context, mailbox *models.Mailbox, creatorID string) (string, error) {
	mailbox.Address = models.NormalizeName(mailbox.Address)
	domain := mailbox.Domain
	mailbox.Domain = nil
	id, err := createOwned(s.db, ctx, mailbox, func(m *models.Mailbox, id string) { m.ID = id }, mailbox.ID, models.ErrDuplicateMailbox, mailbox, creatorID)
	mailbox.Domain = domain
	return id, err
}

func (s *GORMStore) UpdateMailbox(ctx context.Context, mailbox *models.Mailbox) error {
	var existing models.Mailbox
	if err := s.db.WithContext(ctx).Where("id = ?", mailbox.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrMailboxNotFound)
	}

	mailbox.Address = models.NormalizeName(mailbox.Address)
	err := s.db.WithContext(ctx).
		Model(&existing).
		Select("Address", "DomainID", "AccountID", "Quota").
		Updates(mailbox).Error
	if isUniqueConstraintError(err) {
		return models.ErrDuplicateMailbox
	}
	return err
}

func (s *GORMStore) DeleteMailbox(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mailbox models.Mailbox
		if err := tx.Where("id = ?", id).First(&mailbox).Error; err != nil {
			return convertNotFoundError(err, models.ErrMailboxNotFound)
		}
		return deleteMailboxes(tx, []*models.Mailbox{&mailbox})
	})
}

// deleteMailboxes removes mailboxes with their grants and the alias
// recipients pointing at them. Must run inside a transaction.
func deleteMailboxes(tx *gorm.DB, mailboxes []*models.Mailbox) error {
	if len(mailboxes) == 0 {
		return nil
	}
	ids := make([]string, len(mailboxes))
	for i, m := range mailboxes {
		ids[i] = m.ID
	}

	if err := ungrant(tx, models.ObjectTypeMailbox, ids...); err != nil {
		return err
	}
	if err := tx.Where("mailbox_id IN ?", ids).Delete(&models.AliasRecipient{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Mailbox{}).Error
}

// ============================================
// ALIAS OPERATIONS
// ============================================

func (s *GORMStore) GetAliasByID(ctx context.Context, id string) (*models.Alias, error) {
	var alias models.Alias
	err := s.db.WithContext(ctx).
		Preload("Domain").
		Preload("Recipients", orderedRecipients).
		Where("id = ?", id).
		First(&alias).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrAliasNotFound)
	}
	return &alias, nil
}

func (s *GORMStore) GetAliasByAddress(ctx context.Context, address string) (*models.Alias, error) {
	local, domain, err := models.SplitAddress(address)
	if err != nil {
		return nil, models.ErrAliasNotFound
	}

	var alias models.Alias
	err = s.db.WithContext(ctx).
		Preload("Domain").
		Preload("Recipients", orderedRecipients).
		Joins("JOIN domains ON domains.id = aliases.domain_id").
		Where("aliases.address = ? AND domains.name = ?", local, domain).
		First(&alias).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrAliasNotFound)
	}
	return &alias, nil
}

func (s *GORMStore) ListAliases(ctx context.Context) ([]*models.Alias, error) {
	return s.findAliases(ctx, "")
}

func (s *GORMStore) ListAliasesByDomain(ctx context.Context, domainID string) ([]*models.Alias, error) {
	return s.findAliases(ctx, "aliases.domain_id = ?", domainID)
}

func (s *GORMStore) findAliases(ctx context.Context, where string, args ...any) ([]*models.Alias, error) {
	q := s.db.WithContext(ctx).
		Preload("Domain").
		Preload("Recipients", orderedRecipients).
		Joins("JOIN domains ON domains.id = aliases.domain_id").
		Order("domains.name, aliases.address")
	if where != "" {
		q = q.Where(where, args...)
	}
	var aliases []*models.Alias
	if err := q.Find(&aliases).Error; err != nil {
		return nil, err
	}
	return aliases, nil
}

func (s *GORMStore) CreateAlias(ctx context.Context, alias *models.Alias, creatorID string) (string, error) {
	alias.Address = models.NormalizeName(alias.Address)
	domain := alias.Domain
	alias.Domain = nil
	if alias.ID == "" {
		alias.ID = uuid.New().String()
	}
	prepareRecipients(alias)

	id, err := createOwned(s.db, ctx, alias, func(a *models.Alias, id string) { a.ID = id }, alias.ID, models.ErrDuplicateAlias, alias, creatorID)
	alias.Domain = domain
	return id, err
}

func (s *GORMStore) UpdateAlias(ctx context.Context, alias *models.Alias) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Alias
		if err := tx.Where("id = ?", alias.ID).First(&existing).Error; err != nil {
			return convertNotFoundError(err, models.ErrAliasNotFound)
		}

		alias.Address = models.NormalizeName(alias.Address)
		err := tx.Model(&existing).
			Select("Address", "DomainID", "Enabled").
			Updates(alias).Error
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateAlias
		}
		if err != nil {
			return err
		}

		if err := tx.Where("alias_id = ?", alias.ID).Delete(&models.AliasRecipient{}).Error; err != nil {
			return err
		}
		prepareRecipients(alias)
		if len(alias.Recipients) == 0 {
			return nil
		}
		return tx.Create(&alias.Recipients).Error
	})
}

func (s *GORMStore) DeleteAlias(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Alias{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrAliasNotFound
		}
		return deleteAliases(tx, []string{id})
	})
}

// deleteAliases removes aliases with their recipients and grants.
// Must run inside a transaction.
func deleteAliases(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ungrant(tx, models.ObjectTypeAlias, ids...); err != nil {
		return err
	}
	if err := tx.Where("alias_id IN ?", ids).Delete(&models.AliasRecipient{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Alias{}).Error
}

// prepareRecipients assigns ids, owner and position to the recipients.
func prepareRecipients(alias *models.Alias) {
	for i := range alias.Recipients {
		r := &alias.Recipients[i]
		r.ID = uuid.New().String()
		r.AliasID = alias.ID
		r.Address = models.NormalizeName(r.Address)
		r.Position = i
	}
}

func orderedRecipients(db *gorm.DB) *gorm.DB {
	return db.Order("alias_recipients.position")
}
