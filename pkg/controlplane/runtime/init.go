package runtime

import (
	"context"
	"fmt"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

// InitializeFromStore creates a runtime, loads the runtime settings and
// makes sure the default administrator exists.
//
// When a new administrator is created with a generated password, the
// password is returned so the caller can show it once. It is empty
// otherwise.
func InitializeFromStore(ctx context.Context, s store.Store, opts Options) (*Runtime, string, error) {
	rt, err := New(s, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create runtime: %w", err)
	}

	if err := rt.settingsWatcher.LoadInitial(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to load runtime settings: %w", err)
	}

	adminPassword, err := rt.accountsSvc.EnsureAdmin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to ensure admin account: %w", err)
	}
	logger.Info("Runtime initialized",
		logger.KeyScheme, string(rt.settingsWatcher.PasswordScheme()),
		"authentication_type", rt.settingsWatcher.AuthenticationType())
	return rt, adminPassword, nil
}
