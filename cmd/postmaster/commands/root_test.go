package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/config"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/extensions/autoreply"
)

// setupCLI writes a config in a temp dir and bootstraps the administrator
// the way the first server start does.
func setupCLI(t *testing.T) string {
	t.Helper()
	t.Setenv(accounts.EnvAdminInitialPassword, "admin-password")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.InitConfigToPath(path, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	s, err := store.New(&cfg.Database)
	require.NoError(t, err)
	_, _, err = runtime.InitializeFromStore(context.Background(), s, cfg.RuntimeOptions(cmdutil.BuiltinExtensions()...))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	t.Cleanup(func() { *cmdutil.Flags = cmdutil.GlobalFlags{} })
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { *cmdutil.Flags = cmdutil.GlobalFlags{} })

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")
}

func TestDomainAndAccountCommands(t *testing.T) {
	path := setupCLI(t)

	_, err := execute(t, "domain", "add", "example.com", "--quota", "100", "--config", path, "-o", "json")
	require.NoError(t, err)

	out, err := execute(t, "domain", "list", "--config", path, "-o", "json")
	require.NoError(t, err)
	var domains []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &domains))
	require.Len(t, domains, 1)
	assert.Equal(t, "example.com", domains[0]["name"])

	_, err = execute(t, "account", "add", "alice@example.com", "--password", "Alice-pw-123", "--role", "domain", "--config", path, "-o", "json")
	require.NoError(t, err)

	out, err = execute(t, "account", "role", "alice@example.com", "SimpleUsers", "--config", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"role": "SimpleUsers"`)

	out, err = execute(t, "account", "list", "--config", path, "-o", "json")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 2)

	// A simple user may not add domains.
	_, err = execute(t, "domain", "add", "example.org", "--config", path, "--as", "alice@example.com")
	assert.Error(t, err)

	_, err = execute(t, "account", "delete", "alice@example.com", "--force", "--config", path, "--as", "admin")
	require.NoError(t, err)

	_, err = execute(t, "account", "delete", "admin", "--force", "--config", path)
	assert.Error(t, err, "an account cannot delete itself")
}

func TestExtensionCommands(t *testing.T) {
	path := setupCLI(t)

	out, err := execute(t, "extension", "list", "--config", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, autoreply.Name)
	assert.Contains(t, out, `"enabled": false`)

	_, err = execute(t, "extension", "enable", autoreply.Name, "--config", path)
	require.NoError(t, err)

	out, err = execute(t, "extension", "list", "--config", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"enabled": true`)

	_, err = execute(t, "ext", "disable", autoreply.Name, "--config", path)
	require.NoError(t, err)

	_, err = execute(t, "extension", "enable", "nope", "--config", path)
	assert.Error(t, err)
}

func TestDomainAdminCommands(t *testing.T) {
	path := setupCLI(t)

	_, err := execute(t, "domain", "add", "example.com", "--config", path, "-o", "json")
	require.NoError(t, err)
	_, err = execute(t, "account", "add", "da", "--password", "Da-pw-12345", "--role", "domain", "--config", path, "-o", "json")
	require.NoError(t, err)

	visible := func() int {
		out, err := execute(t, "domain", "list", "--config", path, "-o", "json", "--as", "da")
		require.NoError(t, err)
		var domains []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &domains))
		return len(domains)
	}
	assert.Zero(t, visible())

	_, err = execute(t, "domain", "admin", "add", "example.com", "da", "--config", path, "--as", "da")
	assert.Error(t, err, "only superusers grant access")

	_, err = execute(t, "domain", "admin", "add", "example.com", "da", "--config", path, "--as", "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, visible())

	out, err := execute(t, "domain", "admin", "list", "example.com", "--config", path, "-o", "json", "--as", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, `"username": "da"`)

	_, err = execute(t, "domain", "admin", "remove", "example.com", "da", "--config", path)
	require.NoError(t, err)
	assert.Zero(t, visible())

	_, err = execute(t, "domain", "admin", "remove", "example.com", "da", "--config", path, "--as", "admin")
	assert.Error(t, err)
}
