package store

import (
	"context"
	"time"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// ============================================
// AUDIT LOG OPERATIONS
// ============================================

func (s *GORMStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GORMStore) ListAuditLogs(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	q := s.db.WithContext(ctx).Order("date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []*models.AuditLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *GORMStore) PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("date < ?", before).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
