package controlplane

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/api"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	t.Setenv(api.EnvControlPlaneSecret, "")
	return &Options{
		Database: &store.Config{
			Type:   store.DatabaseTypeSQLite,
			SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "postmaster.db")},
		},
		API: &api.APIConfig{JWT: api.JWTConfig{Secret: "controlplane-test-secret-with-32-chars!"}},
		Runtime: runtime.Options{
			PasswordScheme: password.SchemeSHA512Crypt,
			MediaRoot:      t.TempDir(),
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	_, err = New(context.Background(), &Options{})
	assert.Error(t, err)

	_, err = New(context.Background(), &Options{Database: &store.Config{}})
	assert.Error(t, err)
}

func TestNew_GeneratesAdminPassword(t *testing.T) {
	t.Setenv(accounts.EnvAdminInitialPassword, "")
	opts := testOptions(t)

	cp, err := New(context.Background(), opts)
	require.NoError(t, err)
	generated := cp.GeneratedAdminPassword()
	assert.NotEmpty(t, generated)
	assert.NotNil(t, cp.Runtime())
	assert.NotNil(t, cp.APIServer())
	require.NoError(t, cp.Close())

	// A second start finds the administrator and generates nothing.
	cp, err = New(context.Background(), opts)
	require.NoError(t, err)
	defer func() { _ = cp.Close() }()
	assert.Empty(t, cp.GeneratedAdminPassword())

	admin, err := cp.Store().GetAccount(context.Background(), accounts.DefaultAdminUsername)
	require.NoError(t, err)
	assert.True(t, admin.MustChangePassword)
}

func TestNew_RejectsShortSecret(t *testing.T) {
	opts := testOptions(t)
	opts.API.JWT.Secret = "short"

	_, err := New(context.Background(), opts)
	assert.Error(t, err)
}
