package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================================================
// Generic GORM Helpers
// ============================================================================
//
// These helpers reduce repetitive CRUD boilerplate across store implementation
// files. They are unexported (package-internal) and operate on the raw *gorm.DB
// to avoid coupling to GORMStore. Each helper handles standard concerns like
// context propagation, preloading, not-found error conversion, and unique
// constraint detection.

// getByField retrieves a single record of type T by matching field=value.
// It applies optional GORM Preload clauses and converts gorm.ErrRecordNotFound
// to the provided notFoundErr for consistent domain error mapping.
//
// Example:
//
//	domain, err := getByField[models.Domain](db, ctx, "name", "example.com", models.ErrDomainNotFound)
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error, preloads ...string) (*T, error) {
	var result T
	q := db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// listAll retrieves all records of type T, applying optional GORM Preload clauses.
// Returns an empty slice (not nil) on success with no records.
//
// Example:
//
//	aliases, err := listAll[models.Alias](db, ctx, "Domain", "Recipients")
func listAll[T any](db *gorm.DB, ctx context.Context, preloads ...string) ([]*T, error) {
	var results []*T
	q := db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// createWithID generates a UUID for the entity if it has no ID, then creates
// it in the database. The idSetter callback sets the generated ID on the entity.
// Unique constraint violations are converted to dupErr for consistent error handling.
//
// Example:
//
//	id, err := createWithID(db, ctx, account, func(a *models.Account, id string) { a.ID = id }, account.ID, models.ErrDuplicateAccount)
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, idSetter func(*T, string), currentID string, dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.New().String()
		idSetter(entity, id)
	}
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", dupErr
		}
		return "", err
	}
	return id, nil
}

// deleteByField deletes records of type T matching field=value.
// Returns notFoundErr if no rows were affected.
//
// Example:
//
//	err := deleteByField[models.Setting](db, ctx, "key", "admin.password_scheme", models.ErrSettingNotFound)
func deleteByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) error {
	var zero T
	result := db.WithContext(ctx).Where(field+" = ?", value).Delete(&zero)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

// createOwned creates entity and, when creatorID is not empty, grants the
// creator ownership of it. Both writes happen in one transaction.
//
// Example:
//
//	id, err := createOwned(db, ctx, domain, func(d *models.Domain, id string) { d.ID = id }, domain.ID, models.ErrDuplicateDomain, domain, creator.ID)
func createOwned[T any](db *gorm.DB, ctx context.Context, entity *T, idSetter func(*T, string), currentID string, dupErr error, obj models.Object, creatorID string) (string, error) {
	var id string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = createWithID(tx, ctx, entity, idSetter, currentID, dupErr)
		if err != nil {
			return err
		}
		if creatorID == "" {
			return nil
		}
		return upsertGrant(tx, creatorID, obj.ObjectRef(), true)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// upsertGrant inserts a grant or replaces the owner flag of an existing one.
func upsertGrant(tx *gorm.DB, accountID string, target models.ObjectRef, isOwner bool) error {
	grant := models.ObjectAccess{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		ObjectType: target.Type,
		ObjectID:   target.ID,
		IsOwner:    isOwner,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "object_type"}, {Name: "object_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_owner"}),
	}).Create(&grant).Error
}

// ungrant removes every grant targeting any of the given objects.
func ungrant(tx *gorm.DB, objectType models.ObjectType, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("object_type = ? AND object_id IN ?", objectType, ids).
		Delete(&models.ObjectAccess{}).Error
}
