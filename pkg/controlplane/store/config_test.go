package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigApplyDefaults(t *testing.T) {
	t.Run("sqlite under XDG_CONFIG_HOME", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)

		cfg := &Config{}
		cfg.ApplyDefaults()

		assert.Equal(t, DatabaseTypeSQLite, cfg.Type)
		assert.Equal(t, filepath.Join(dir, "postmaster", "postmaster.db"), cfg.SQLite.Path)
	})

	t.Run("sqlite without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		cfg := &Config{Type: DatabaseTypeSQLite}
		cfg.ApplyDefaults()

		home, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(home, ".config", "postmaster", "postmaster.db"), cfg.SQLite.Path)
	})

	t.Run("explicit path kept", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: "/var/lib/postmaster/db.sqlite"}}
		cfg.ApplyDefaults()
		assert.Equal(t, "/var/lib/postmaster/db.sqlite", cfg.SQLite.Path)
	})

	t.Run("postgres pool", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypePostgres}
		cfg.ApplyDefaults()
		assert.Equal(t, 5432, cfg.Postgres.Port)
		assert.Equal(t, "disable", cfg.Postgres.SSLMode)
		assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
		assert.Equal(t, 5, cfg.Postgres.MaxIdleConns)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite ok", Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: "db"}}, false},
		{"sqlite without path", Config{Type: DatabaseTypeSQLite}, true},
		{"postgres ok", Config{Type: DatabaseTypePostgres, Postgres: PostgresConfig{Host: "db", Database: "postmaster", User: "pm"}}, false},
		{"postgres without user", Config{Type: DatabaseTypePostgres, Postgres: PostgresConfig{Host: "db", Database: "postmaster"}}, true},
		{"unknown type", Config{Type: "mysql"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
