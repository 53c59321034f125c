package store

import (
	"context"
	"fmt"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

var _ Store = (*GORMStore)(nil)

// Healthcheck pings the database and checks the schema is migrated.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if !s.db.WithContext(ctx).Migrator().HasTable(&models.Account{}) {
		return fmt.Errorf("database schema is not migrated")
	}
	return nil
}

// Close closes the connection pool.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
