package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

func newTestStore(t *testing.T) *store.GORMStore {
	t.Helper()
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSettingsWatcher_Defaults(t *testing.T) {
	s := newTestStore(t)

	w := NewSettingsWatcher(s, "", "", 0)
	require.NoError(t, w.LoadInitial(context.Background()))

	assert.Equal(t, password.DefaultScheme, w.PasswordScheme())
	assert.Equal(t, AuthLocal, w.AuthenticationType())
	assert.True(t, w.LocalAuthentication())
	assert.Equal(t, DefaultPollInterval, w.pollInterval)
}

func TestSettingsWatcher_StoredValuesOverride(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SetSetting(ctx, models.SettingPasswordScheme, "sha256crypt"))
	require.NoError(t, s.SetSetting(ctx, models.SettingAuthenticationType, AuthExternal))

	w := NewSettingsWatcher(s, password.SchemePlain, AuthLocal, time.Second)
	require.NoError(t, w.LoadInitial(ctx))

	assert.Equal(t, password.SchemeSHA256Crypt, w.PasswordScheme())
	assert.False(t, w.LocalAuthentication())

	require.NoError(t, s.DeleteSetting(ctx, models.SettingPasswordScheme))
	require.NoError(t, w.Refresh(ctx))
	assert.Equal(t, password.SchemePlain, w.PasswordScheme(), "falls back to the configured default")
}

func TestSettingsWatcher_InvalidValuesKeepDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SetSetting(ctx, models.SettingPasswordScheme, "rot13"))
	require.NoError(t, s.SetSetting(ctx, models.SettingAuthenticationType, "kerberos"))

	w := NewSettingsWatcher(s, password.SchemeSHA512Crypt, AuthLocal, time.Second)
	require.NoError(t, w.Refresh(ctx))

	assert.Equal(t, password.SchemeSHA512Crypt, w.PasswordScheme())
	assert.Equal(t, AuthLocal, w.AuthenticationType())
}

func TestSettingsWatcher_Polls(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	w := NewSettingsWatcher(s, password.SchemePlain, AuthLocal, 10*time.Millisecond)
	require.NoError(t, w.LoadInitial(ctx))
	w.Start(ctx)
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, s.SetSetting(ctx, models.SettingPasswordScheme, "blfcrypt"))
	assert.Eventually(t, func() bool {
		return w.PasswordScheme() == password.SchemeBLFCrypt
	}, time.Second, 5*time.Millisecond)
}

func TestSettingsWatcher_StopWithoutStart(t *testing.T) {
	w := NewSettingsWatcher(newTestStore(t), "", "", 0)
	w.Stop()
	w.Stop()
}
