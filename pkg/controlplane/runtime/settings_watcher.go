package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
)

// DefaultPollInterval is the default interval for polling the DB for settings changes.
const DefaultPollInterval = 10 * time.Second

// Authentication types accepted by the admin.authentication_type setting.
const (
	AuthLocal    = "local"
	AuthExternal = "external"
)

// SettingsWatcher caches the runtime settings that change how accounts are
// managed and refreshes them from the database in the background.
//
// Readers never hit the database. Writers (the poll goroutine and Refresh)
// replace the whole snapshot under the write lock.
type SettingsWatcher struct {
	mu    sync.RWMutex
	store store.SettingsStore

	scheme   password.Scheme
	authType string

	defaults     settingsSnapshot
	pollInterval time.Duration
	stopCh       chan struct{}
	stopped      chan struct{}
	startOnce    sync.Once
}

type settingsSnapshot struct {
	scheme   password.Scheme
	authType string
}

// NewSettingsWatcher creates a SettingsWatcher. The defaults are used for
// keys that are not stored in the database.
// If pollInterval is 0, DefaultPollInterval is used.
func NewSettingsWatcher(s store.SettingsStore, defaultScheme password.Scheme, defaultAuthType string, pollInterval time.Duration) *SettingsWatcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if defaultScheme == "" {
		defaultScheme = password.DefaultScheme
	}
	if defaultAuthType == "" {
		defaultAuthType = AuthLocal
	}
	return &SettingsWatcher{
		store:        s,
		scheme:       defaultScheme,
		authType:     defaultAuthType,
		defaults:     settingsSnapshot{scheme: defaultScheme, authType: defaultAuthType},
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// LoadInitial loads the settings once before serving begins.
func (w *SettingsWatcher) LoadInitial(ctx context.Context) error {
	return w.Refresh(ctx)
}

// Start begins the background polling goroutine. It runs until Stop is
// called or ctx is cancelled.
func (w *SettingsWatcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go func() {
			defer close(w.stopped)

			ticker := time.NewTicker(w.pollInterval)
			defer ticker.Stop()

			logger.Debug("Settings watcher started", "poll_interval", w.pollInterval)

			for {
				select {
				case <-ctx.Done():
					return
				case <-w.stopCh:
					return
				case <-ticker.C:
					if err := w.Refresh(ctx); err != nil {
						logger.Warn("Settings watcher: failed to poll settings", logger.Err(err))
					}
				}
			}
		}()
	})
}

// Stop signals the polling goroutine to stop and waits for it to exit.
// Calling Stop on a watcher that was never started is a no-op.
func (w *SettingsWatcher) Stop() {
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}

	started := true
	w.startOnce.Do(func() { started = false })
	if started {
		<-w.stopped
	}
}

// Refresh reloads the settings from the database.
func (w *SettingsWatcher) Refresh(ctx context.Context) error {
	next := w.defaults

	raw, err := w.store.GetSetting(ctx, models.SettingPasswordScheme)
	if err != nil {
		return err
	}
	if raw != "" {
		scheme, ok := password.ParseScheme(raw)
		if !ok {
			logger.Warn("Unknown password scheme in settings, keeping default",
				logger.KeySetting, models.SettingPasswordScheme, logger.KeyScheme, raw)
			scheme = w.defaults.scheme
		}
		next.scheme = scheme
	}

	raw, err = w.store.GetSetting(ctx, models.SettingAuthenticationType)
	if err != nil {
		return err
	}
	switch raw {
	case "":
	case AuthLocal, AuthExternal:
		next.authType = raw
	default:
		logger.Warn("Unknown authentication type in settings, keeping default",
			logger.KeySetting, models.SettingAuthenticationType, "value", raw)
	}

	w.mu.Lock()
	changed := w.scheme != next.scheme || w.authType != next.authType
	w.scheme, w.authType = next.scheme, next.authType
	w.mu.Unlock()

	if changed {
		logger.Info("Runtime settings reloaded",
			logger.KeyScheme, string(next.scheme), "authentication_type", next.authType)
	}
	return nil
}

// PasswordScheme returns the scheme new passwords are encoded with.
func (w *SettingsWatcher) PasswordScheme() password.Scheme {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scheme
}

// AuthenticationType returns AuthLocal or AuthExternal.
func (w *SettingsWatcher) AuthenticationType() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.authType
}

// LocalAuthentication reports whether passwords are managed locally.
func (w *SettingsWatcher) LocalAuthentication() bool {
	return w.AuthenticationType() == AuthLocal
}
