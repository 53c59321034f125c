//go:build integration

package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// createPostgresStore starts a throwaway PostgreSQL container and opens a
// store on it. Requires a Docker daemon.
func createPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("postmaster_test"),
		tcpostgres.WithUsername("postmaster"),
		tcpostgres.WithPassword("postmaster"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "failed to start postgres container")

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := &Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     portNum,
			Database: "postmaster_test",
			User:     "postmaster",
			Password: "postmaster",
			SSLMode:  "disable",
		},
	}
	cfg.ApplyDefaults()

	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	s := createPostgresStore(t)
	ctx := context.Background()

	t.Run("healthcheck", func(t *testing.T) {
		assert.NoError(t, s.Healthcheck(ctx))
	})

	admin := mustAccount(t, s, "admin", models.RoleSuperAdmin, "")

	t.Run("duplicate domain maps to sentinel", func(t *testing.T) {
		mustDomain(t, s, "example.com", admin.ID)
		_, err := s.CreateDomain(ctx, &models.Domain{Name: "example.com"}, admin.ID)
		assert.ErrorIs(t, err, models.ErrDuplicateDomain)
	})

	t.Run("duplicate account maps to sentinel", func(t *testing.T) {
		_, err := s.CreateAccount(ctx, &models.Account{Username: "admin", Role: models.RoleSimpleUser}, admin.ID)
		assert.ErrorIs(t, err, models.ErrDuplicateAccount)
	})

	t.Run("settings upsert", func(t *testing.T) {
		require.NoError(t, s.SetSetting(ctx, "core.password_scheme", "sha512crypt"))
		require.NoError(t, s.SetSetting(ctx, "core.password_scheme", "blfcrypt"))
		v, err := s.GetSetting(ctx, "core.password_scheme")
		require.NoError(t, err)
		assert.Equal(t, "blfcrypt", v)
	})

	t.Run("audit purge", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, s.CreateAuditLog(ctx, &models.AuditLog{Date: now.Add(-48 * time.Hour), Message: "old", Level: models.AuditLevelInfo, Logger: "postmaster.admin"}))
		require.NoError(t, s.CreateAuditLog(ctx, &models.AuditLog{Date: now, Message: "new", Level: models.AuditLevelInfo, Logger: "postmaster.admin"}))
		n, err := s.PurgeAuditLogs(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}
