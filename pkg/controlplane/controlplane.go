// Package controlplane assembles the administration panel.
//
// A ControlPlane owns the persistent store, the runtime services on top of
// it and the servers exposing them:
//
//	cp, err := controlplane.New(ctx, &controlplane.Options{...})
//	if err != nil {
//	    return err
//	}
//	defer cp.Close()
//
//	return cp.Serve(ctx)
package controlplane

import (
	"context"
	"fmt"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/api"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/metrics"
)

// ControlPlane is the central management component.
type ControlPlane struct {
	store         store.Store
	runtime       *runtime.Runtime
	apiServer     *api.Server
	adminPassword string
}

// Options configures the ControlPlane.
type Options struct {
	// Database configuration for persistent storage
	Database *store.Config

	// API configuration for the REST server
	API *api.APIConfig

	// Runtime carries the settings defaults, extensions and job schedules.
	Runtime runtime.Options

	// MetricsPort enables the Prometheus registry and its server when > 0.
	MetricsPort int
}

// New opens the store, initializes the runtime and registers the servers.
//
// Call Close() when done to release resources.
func New(ctx context.Context, opts *Options) (*ControlPlane, error) {
	if opts == nil {
		return nil, fmt.Errorf("options cannot be nil")
	}
	if opts.Database == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if opts.API == nil {
		return nil, fmt.Errorf("API configuration is required")
	}

	// Registry first: runtime and API metrics are created against it.
	if opts.MetricsPort > 0 {
		metrics.InitRegistry()
	}

	s, err := store.New(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	cp, err := newWithStore(ctx, s, opts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return cp, nil
}

func newWithStore(ctx context.Context, s store.Store, opts *Options) (*ControlPlane, error) {
	rt, adminPassword, err := runtime.InitializeFromStore(ctx, s, opts.Runtime)
	if err != nil {
		return nil, err
	}

	apiServer, err := api.NewServer(*opts.API, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}
	rt.SetAPIServer(apiServer)

	if opts.MetricsPort > 0 {
		if ms := metrics.NewServer(opts.MetricsPort); ms != nil {
			rt.SetMetricsServer(ms)
		}
	}

	logger.Info("Control plane initialized", "api_port", apiServer.Port(), "metrics_port", opts.MetricsPort)

	return &ControlPlane{
		store:         s,
		runtime:       rt,
		apiServer:     apiServer,
		adminPassword: adminPassword,
	}, nil
}

// Store returns the persistent store.
func (cp *ControlPlane) Store() store.Store {
	return cp.store
}

// Runtime returns the runtime services.
func (cp *ControlPlane) Runtime() *runtime.Runtime {
	return cp.runtime
}

// APIServer returns the REST API server.
func (cp *ControlPlane) APIServer() *api.Server {
	return cp.apiServer
}

// GeneratedAdminPassword returns the password generated for the default
// administrator on first start, or "" when none was generated.
func (cp *ControlPlane) GeneratedAdminPassword() string {
	return cp.adminPassword
}

// Serve runs the runtime and its servers until ctx is cancelled.
func (cp *ControlPlane) Serve(ctx context.Context) error {
	return cp.runtime.Serve(ctx)
}

// Close releases the store.
func (cp *ControlPlane) Close() error {
	if cp.store != nil {
		return cp.store.Close()
	}
	return nil
}
