package extensions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
	ext "github.com/marmos91/postmaster/pkg/extensions"
)

// Service manages extension state: persistence, loading and media.
type Service struct {
	mu       sync.Mutex
	registry *ext.Registry
	loaded   map[string]ext.Extension

	store     store.ExtensionStore
	host      *ext.Host
	policy    *access.Policy
	mediaRoot string
}

// New creates an extension service. mediaRoot may be empty when no
// registered extension needs media.
func New(registry *ext.Registry, s store.ExtensionStore, host *ext.Host, policy *access.Policy, mediaRoot string) *Service {
	return &Service{
		registry:  registry,
		loaded:    make(map[string]ext.Extension),
		store:     s,
		host:      host,
		policy:    policy,
		mediaRoot: mediaRoot,
	}
}

// LoadFromStore ensures a row exists for every registered extension and
// loads and initialises the enabled ones. Extensions already loaded are
// left alone.
func (s *Service) LoadFromStore(ctx context.Context) error {
	for _, name := range s.registry.Names() {
		row, err := s.store.EnsureExtension(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to ensure extension %q: %w", name, err)
		}
		if !row.Enabled {
			continue
		}

		e, _ := s.registry.Get(name)
		s.mu.Lock()
		if _, isLoaded := s.loaded[name]; isLoaded {
			s.mu.Unlock()
			continue
		}
		err = s.load(ctx, e)
		if err == nil {
			if err = e.Init(ctx); err != nil {
				delete(s.loaded, name)
				err = fmt.Errorf("failed to initialise extension %q: %w", name, err)
			}
		} else {
			err = fmt.Errorf("failed to load extension %q: %w", name, err)
		}
		s.mu.Unlock()
		if err != nil {
			return err
		}
		logger.Info("Extension loaded", logger.Extension(name))
	}
	return nil
}

// List returns every registered extension with its persisted state.
func (s *Service) List(ctx context.Context, actor *models.Account) ([]ext.Info, error) {
	if err := s.policy.Check(actor, access.ResourceExtension, access.ActionView); err != nil {
		return nil, err
	}

	rows, err := s.store.ListExtensions(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(rows))
	for _, row := range rows {
		enabled[row.Name] = row.Enabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.registry.Names()
	out := make([]ext.Info, 0, len(names))
	for _, name := range names {
		e, _ := s.registry.Get(name)
		_, isLoaded := s.loaded[name]
		out = append(out, ext.Info{
			Name:        name,
			Label:       e.Label(),
			Version:     e.Version(),
			Description: e.Description(),
			Enabled:     enabled[name],
			Loaded:      isLoaded,
		})
	}
	return out, nil
}

// Enable persists enabled=true, loads and initialises the extension and
// provisions its media directory. Enabling a loaded extension is a no-op.
func (s *Service) Enable(ctx context.Context, actor *models.Account, name string) error {
	if err := s.policy.Check(actor, access.ResourceExtension, access.ActionChange); err != nil {
		return err
	}
	e, ok := s.registry.Get(name)
	if !ok {
		return models.ErrExtensionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, isLoaded := s.loaded[name]; isLoaded {
		return nil
	}

	if _, err := s.store.EnsureExtension(ctx, name); err != nil {
		return err
	}
	if err := s.store.SetExtensionEnabled(ctx, name, true); err != nil {
		return err
	}
	if err := s.load(ctx, e); err != nil {
		return err
	}
	if err := e.Init(ctx); err != nil {
		delete(s.loaded, name)
		return fmt.Errorf("failed to initialise extension %q: %w", name, err)
	}
	if e.NeedsMedia() {
		if err := os.MkdirAll(s.mediaPath(name), 0o755); err != nil {
			return fmt.Errorf("failed to create media directory: %w", err)
		}
	}

	logger.InfoCtx(ctx, "Extension enabled", logger.Extension(name))
	s.host.Bus.Emit(ctx, events.Event{Name: events.ExtEnabled, Actor: actor, Extension: name})
	return nil
}

// Disable destroys the extension, persists enabled=false and removes its
// media directory. Unknown names are a no-op.
func (s *Service) Disable(ctx context.Context, actor *models.Account, name string) error {
	if err := s.policy.Check(actor, access.ResourceExtension, access.ActionChange); err != nil {
		return err
	}
	e, ok := s.registry.Get(name)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, isLoaded := s.loaded[name]; isLoaded {
		if err := e.Destroy(ctx); err != nil {
			return fmt.Errorf("failed to destroy extension %q: %w", name, err)
		}
		delete(s.loaded, name)
	}

	err := s.store.SetExtensionEnabled(ctx, name, false)
	if err != nil && !errors.Is(err, models.ErrExtensionNotFound) {
		return err
	}
	if e.NeedsMedia() {
		if err := os.RemoveAll(s.mediaPath(name)); err != nil {
			return fmt.Errorf("failed to remove media directory: %w", err)
		}
	}

	logger.InfoCtx(ctx, "Extension disabled", logger.Extension(name))
	s.host.Bus.Emit(ctx, events.Event{Name: events.ExtDisabled, Actor: actor, Extension: name})
	return nil
}

// Loaded returns the extension when it is currently loaded.
func (s *Service) Loaded(name string) (ext.Extension, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.loaded[name]
	return e, ok
}

// Shutdown destroys every loaded extension without touching their
// persisted state.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, e := range s.loaded {
		if err := e.Destroy(ctx); err != nil {
			logger.Warn("Failed to destroy extension", logger.Extension(name), logger.Err(err))
		}
		delete(s.loaded, name)
	}
}

// load must be called with s.mu held.
func (s *Service) load(ctx context.Context, e ext.Extension) error {
	if err := e.Load(ctx, s.host); err != nil {
		return err
	}
	s.loaded[e.Name()] = e
	return nil
}

func (s *Service) mediaPath(name string) string {
	return filepath.Join(s.mediaRoot, name)
}
