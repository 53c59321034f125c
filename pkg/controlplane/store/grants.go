package store

import (
	"context"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================
// OBJECT ACCESS OPERATIONS
// ============================================

func (s *GORMStore) GrantAccess(ctx context.Context, accountID string, target models.ObjectRef, isOwner bool) error {
	return upsertGrant(s.db.WithContext(ctx), accountID, target, isOwner)
}

func (s *GORMStore) RevokeAccess(ctx context.Context, accountID string, target models.ObjectRef) error {
	result := s.db.WithContext(ctx).
		Where("account_id = ? AND object_type = ? AND object_id = ?", accountID, target.Type, target.ID).
		Delete(&models.ObjectAccess{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrGrantNotFound
	}
	return nil
}

func (s *GORMStore) UngrantObject(ctx context.Context, target models.ObjectRef) error {
	return ungrant(s.db.WithContext(ctx), target.Type, target.ID)
}

func (s *GORMStore) RevokeAllHeldBy(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.ObjectAccess{}).Error
}

func (s *GORMStore) HasGrant(ctx context.Context, accountID string, target models.ObjectRef) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ObjectAccess{}).
		Where("account_id = ? AND object_type = ? AND object_id = ?", accountID, target.Type, target.ID).
		Count(&count).Error
	return count > 0, err
}

// HasDelegatedGrant joins the owner grants of target with the grants the
// account holds on those owners. Only one level of indirection is followed.
func (s *GORMStore) HasDelegatedGrant(ctx context.Context, accountID string, target models.ObjectRef) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("object_access AS owned").
		Joins("JOIN object_access AS held ON held.object_type = ? AND held.object_id = owned.account_id", models.ObjectTypeAccount).
		Where("owned.object_type = ? AND owned.object_id = ? AND owned.is_owner = ?", target.Type, target.ID, true).
		Where("held.account_id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}

func (s *GORMStore) IsOwner(ctx context.Context, accountID string, target models.ObjectRef) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ObjectAccess{}).
		Where("account_id = ? AND object_type = ? AND object_id = ? AND is_owner = ?", accountID, target.Type, target.ID, true).
		Count(&count).Error
	return count > 0, err
}

func (s *GORMStore) GetObjectOwner(ctx context.Context, target models.ObjectRef) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Joins("JOIN object_access ON object_access.account_id = accounts.id").
		Where("object_access.object_type = ? AND object_access.object_id = ? AND object_access.is_owner = ?", target.Type, target.ID, true).
		Order("object_access.created_at").
		First(&account).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrGrantNotFound)
	}
	return &account, nil
}

func (s *GORMStore) ListGrantsFor(ctx context.Context, target models.ObjectRef) ([]*models.ObjectAccess, error) {
	var grants []*models.ObjectAccess
	if err := s.db.WithContext(ctx).
		Where("object_type = ? AND object_id = ?", target.Type, target.ID).
		Order("created_at").
		Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

func (s *GORMStore) ListGrantsHeldBy(ctx context.Context, accountID string) ([]*models.ObjectAccess, error) {
	var grants []*models.ObjectAccess
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at").
		Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}
