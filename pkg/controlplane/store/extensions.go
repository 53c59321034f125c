package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================
// EXTENSION OPERATIONS
// ============================================

func (s *GORMStore) GetExtension(ctx context.Context, name string) (*models.Extension, error) {
	return getByField[models.Extension](s.db, ctx, "name", name, models.ErrExtensionNotFound)
}

func (s *GORMStore) ListExtensions(ctx context.Context) ([]*models.Extension, error) {
	var exts []*models.Extension
	if err := s.db.WithContext(ctx).Order("name").Find(&exts).Error; err != nil {
		return nil, err
	}
	return exts, nil
}

func (s *GORMStore) EnsureExtension(ctx context.Context, name string) (*models.Extension, error) {
	ext, err := s.GetExtension(ctx, name)
	if err == nil {
		return ext, nil
	}
	if !errors.Is(err, models.ErrExtensionNotFound) {
		return nil, err
	}

	ext = &models.Extension{
		ID:   uuid.New().String(),
		Name: name,
	}
	if err := s.db.WithContext(ctx).Create(ext).Error; err != nil {
		if isUniqueConstraintError(err) {
			return s.GetExtension(ctx, name)
		}
		return nil, err
	}
	return ext, nil
}

func (s *GORMStore) SetExtensionEnabled(ctx context.Context, name string, enabled bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.Extension{}).
		Where("name = ?", name).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Update reports zero rows when the value is unchanged on some
		// drivers, so confirm the row exists before failing.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Extension{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrExtensionNotFound
		}
	}
	return nil
}
