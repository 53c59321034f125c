// Package extensions defines the contract of optional feature modules and
// the registry they are published in.
//
// An extension is registered once at start-up. Its persisted state (the
// models.Extension row) decides whether it is loaded: Load wires it into
// the running process, Init brings its own data in line with the hosted
// objects, and Destroy detaches it again.
package extensions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
)

// Extension is an optional feature module.
type Extension interface {
	// Name is the unique identifier persisted in the extensions table.
	Name() string
	Label() string
	Version() string
	Description() string

	// NeedsMedia reports whether a media directory is provisioned while
	// the extension is enabled.
	NeedsMedia() bool

	// Load attaches the extension: migrations, event subscriptions.
	Load(ctx context.Context, host *Host) error

	// Init synchronises the extension's data with the existing objects.
	// It runs after Load when the extension is enabled.
	Init(ctx context.Context) error

	// Destroy detaches the extension. It must undo every subscription
	// made by Load.
	Destroy(ctx context.Context) error
}

// Host is what the process hands to a loaded extension.
type Host struct {
	// DB is the control plane database. Extensions keep their own tables in it.
	DB *gorm.DB

	// Store gives read access to the hosted objects.
	Store store.Store

	// Bus delivers lifecycle events.
	Bus *events.Bus
}

// Info describes a registered extension and its persisted state.
type Info struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Loaded      bool   `json:"loaded"`
}

// Registry holds the extensions known to the process.
type Registry struct {
	mu   sync.RWMutex
	exts map[string]Extension
}

// NewRegistry creates a registry with the given extensions.
func NewRegistry(exts ...Extension) (*Registry, error) {
	r := &Registry{exts: make(map[string]Extension)}
	for _, e := range exts {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an extension. Names must be unique.
func (r *Registry) Register(e Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if name == "" {
		return fmt.Errorf("extension name is required")
	}
	if _, exists := r.exts[name]; exists {
		return fmt.Errorf("extension %q already registered", name)
	}
	r.exts[name] = e
	return nil
}

// Get returns the extension registered under name.
func (r *Registry) Get(name string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exts[name]
	return e, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.exts))
	for name := range r.exts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
