package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/postmaster/pkg/config"
	"github.com/marmos91/postmaster/pkg/controlplane/api"
)

func TestWarningsFor(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Admin.MediaRoot = t.TempDir()
	cfg.ControlPlane.JWT.Secret = "a-secret-long-enough-for-the-api-server"
	cfg.Audit.Retention = 0
	t.Setenv(api.EnvControlPlaneSecret, "")

	warnings := warningsFor(cfg)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "audit.retention")

	cfg.Admin.PasswordScheme = "plain"
	cfg.Admin.MediaRoot = filepath.Join(t.TempDir(), "missing")
	warnings = warningsFor(cfg)
	assert.Len(t, warnings, 3)
}
