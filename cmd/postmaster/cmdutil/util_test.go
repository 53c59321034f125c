package cmdutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/internal/cli/output"
	"github.com/marmos91/postmaster/pkg/config"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/domains"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  models.Role
	}{
		{"SuperAdmins", models.RoleSuperAdmin},
		{"super", models.RoleSuperAdmin},
		{"DomainAdmins", models.RoleDomainAdmin},
		{"domain", models.RoleDomainAdmin},
		{"simpleusers", models.RoleSimpleUser},
		{"", models.RoleSimpleUser},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRole("Resellers")
	assert.Error(t, err)
}

func TestBoolToYesNo(t *testing.T) {
	assert.Equal(t, "yes", BoolToYesNo(true))
	assert.Equal(t, "no", BoolToYesNo(false))
}

func TestEmptyOr(t *testing.T) {
	assert.Equal(t, "value", EmptyOr("value", "-"))
	assert.Equal(t, "-", EmptyOr("", "-"))
}

type testTable struct{}

func (testTable) Headers() []string { return []string{"NAME"} }
func (testTable) Rows() [][]string  { return [][]string{{"example.com"}} }

func TestPrintOutput(t *testing.T) {
	t.Cleanup(func() { Flags.Output = "" })

	var buf bytes.Buffer
	Flags.Output = "table"
	require.NoError(t, PrintOutput(&buf, nil, true, "Nothing here.", testTable{}))
	assert.Equal(t, "Nothing here.\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintOutput(&buf, []string{"a"}, false, "", testTable{}))
	assert.Contains(t, buf.String(), "example.com")

	buf.Reset()
	Flags.Output = "json"
	require.NoError(t, PrintOutput(&buf, map[string]int{"count": 1}, false, "", testTable{}))
	assert.Contains(t, buf.String(), `"count": 1`)

	Flags.Output = "xml"
	assert.Error(t, PrintOutput(&buf, nil, true, "", testTable{}))
}

func TestNewSession(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewInMemory()
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	cfg := config.GetDefaultConfig()
	cfg.Admin.MediaRoot = t.TempDir()

	_, err = NewSessionForTest(ctx, cfg, s, "")
	assert.ErrorContains(t, err, "not found")

	admin := &models.Account{Username: "admin", PasswordHash: "{PLAIN}x", Role: models.RoleSuperAdmin, IsSuperuser: true, Enabled: true}
	_, err = s.CreateAccount(ctx, admin, "")
	require.NoError(t, err)

	sess, err := NewSessionForTest(ctx, cfg, s, "")
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.Actor.Username)
	assert.NotNil(t, sess.Runtime.Accounts())
}

func TestSession_AuditsMutations(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewInMemory()
	require.NoError(t, err)

	cfg := config.GetDefaultConfig()
	cfg.Admin.MediaRoot = t.TempDir()

	admin := &models.Account{Username: "admin", PasswordHash: "{PLAIN}x", Role: models.RoleSuperAdmin, IsSuperuser: true, Enabled: true}
	_, err = s.CreateAccount(ctx, admin, "")
	require.NoError(t, err)
	_, err = s.EnsureExtension(ctx, "autoreply")
	require.NoError(t, err)
	require.NoError(t, s.SetExtensionEnabled(ctx, "autoreply", true))

	sess, err := NewSessionForTest(ctx, cfg, s, "")
	require.NoError(t, err)

	_, ok := sess.Runtime.Extensions().Loaded("autoreply")
	assert.True(t, ok, "enabled extensions are loaded for the session")

	_, err = sess.Runtime.Domains().Create(ctx, sess.Actor, domains.CreateRequest{Name: "example.com"})
	require.NoError(t, err)
	require.NoError(t, sess.Runtime.Domains().Delete(ctx, sess.Actor, "example.com"))

	entries, err := s.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, sess.Close())
	_, ok = sess.Runtime.Extensions().Loaded("autoreply")
	assert.False(t, ok)
}

var _ output.TableRenderer = testTable{}
