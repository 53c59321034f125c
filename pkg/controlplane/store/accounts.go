package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================
// ACCOUNT OPERATIONS
// ============================================

func (s *GORMStore) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	return getByField[models.Account](s.db, ctx, "username", models.NormalizeName(username), models.ErrAccountNotFound)
}

func (s *GORMStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return getByField[models.Account](s.db, ctx, "id", id, models.ErrAccountNotFound)
}

func (s *GORMStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := s.db.WithContext(ctx).Order("username").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *GORMStore) ListSuperusers(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := s.db.WithContext(ctx).
		Where("is_superuser = ?", true).
		Order("created_at, username").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *GORMStore) CreateAccount(ctx context.Context, account *models.Account, creatorID string) (string, error) {
	account.Username = models.NormalizeName(account.Username)
	account.CreatedAt = time.Now()
	return createOwned(s.db, ctx, account, func(a *models.Account, id string) { a.ID = id }, account.ID, models.ErrDuplicateAccount, account, creatorID)
}

func (s *GORMStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	var existing models.Account
	if err := s.db.WithContext(ctx).Where("id = ?", account.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrAccountNotFound)
	}

	account.Username = models.NormalizeName(account.Username)
	err := s.db.WithContext(ctx).
		Model(&existing).
		Select("Username", "FirstName", "LastName", "Email", "Enabled", "IsLocal", "IsSuperuser", "Role", "MustChangePassword").
		Updates(account).Error
	if isUniqueConstraintError(err) {
		return models.ErrDuplicateAccount
	}
	return err
}

func (s *GORMStore) DeleteAccount(ctx context.Context, id, heirID string) ([]*models.Mailbox, error) {
	var deleted []*models.Mailbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.Where("id = ?", id).First(&account).Error; err != nil {
			return convertNotFoundError(err, models.ErrAccountNotFound)
		}

		// Hand over owned objects before the account's own grants go away
		if heirID != "" && heirID != id {
			var owned []*models.ObjectAccess
			if err := tx.Where("account_id = ? AND is_owner = ?", id, true).Find(&owned).Error; err != nil {
				return err
			}
			for _, g := range owned {
				if err := upsertGrant(tx, heirID, g.Target(), true); err != nil {
					return err
				}
			}
		}

		if err := tx.Preload("Domain").Where("account_id = ?", id).Find(&deleted).Error; err != nil {
			return err
		}
		if err := deleteMailboxes(tx, deleted); err != nil {
			return err
		}

		if err := tx.Where("account_id = ?", id).Delete(&models.ObjectAccess{}).Error; err != nil {
			return err
		}
		if err := ungrant(tx, models.ObjectTypeAccount, id); err != nil {
			return err
		}

		return tx.Delete(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *GORMStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("username = ?", models.NormalizeName(username)).
		Update("password_hash", passwordHash)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("username = ?", models.NormalizeName(username)).
		Update("last_login", timestamp)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}
