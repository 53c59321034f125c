package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/postmaster/internal/logger"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// AuxiliaryServer is an interface for the HTTP servers (API, Metrics).
type AuxiliaryServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port() int
}

// SettingsInitializer loads initial settings and starts background polling.
type SettingsInitializer interface {
	LoadInitial(ctx context.Context) error
	Start(ctx context.Context)
	Stop()
}

// ExtensionLoader loads the enabled extensions and unloads them on shutdown.
type ExtensionLoader interface {
	LoadFromStore(ctx context.Context) error
	Shutdown(ctx context.Context)
}

// BackgroundJob is a scheduled task running for the lifetime of the server.
type BackgroundJob interface {
	Start() error
	Stop()
}

// Service orchestrates server startup and graceful shutdown.
type Service struct {
	shutdownTimeout time.Duration
	servers         []namedServer

	// serveOnce ensures Serve() is only called once
	serveOnce sync.Once
	served    bool
}

type namedServer struct {
	name   string
	server AuxiliaryServer
}

// New creates a new lifecycle service.
func New(shutdownTimeout time.Duration) *Service {
	if shutdownTimeout == 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Service{shutdownTimeout: shutdownTimeout}
}

// SetShutdownTimeout sets the maximum time to wait for graceful shutdown.
func (s *Service) SetShutdownTimeout(d time.Duration) {
	if d == 0 {
		d = DefaultShutdownTimeout
	}
	s.shutdownTimeout = d
}

// AddServer registers an HTTP server started by Serve.
// Must be called before Serve().
func (s *Service) AddServer(name string, server AuxiliaryServer) {
	if s.served {
		panic("cannot add a server after Serve() has been called")
	}
	if server == nil {
		return
	}
	s.servers = append(s.servers, namedServer{name: name, server: server})
	logger.Info("Server registered", "server", name, "port", server.Port())
}

// Serve starts all components and blocks until shutdown.
func (s *Service) Serve(ctx context.Context, settings SettingsInitializer, extensions ExtensionLoader, jobs ...BackgroundJob) error {
	var err error

	s.serveOnce.Do(func() {
		s.served = true
		err = s.serve(ctx, settings, extensions, jobs)
	})

	return err
}

func (s *Service) serve(ctx context.Context, settings SettingsInitializer, extensions ExtensionLoader, jobs []BackgroundJob) error {
	logger.Info("Starting postmaster runtime")

	// 0. Runtime settings
	if settings != nil {
		if err := settings.LoadInitial(ctx); err != nil {
			logger.Warn("Failed to load initial settings", logger.Err(err))
		}
		settings.Start(ctx)
	}

	// 1. Extensions
	if extensions != nil {
		if err := extensions.LoadFromStore(ctx); err != nil {
			if settings != nil {
				settings.Stop()
			}
			return fmt.Errorf("failed to load extensions: %w", err)
		}
	}

	// 2. Background jobs
	started := make([]BackgroundJob, 0, len(jobs))
	for _, job := range jobs {
		if err := job.Start(); err != nil {
			s.shutdown(settings, extensions, started)
			return fmt.Errorf("failed to start background job: %w", err)
		}
		started = append(started, job)
	}

	// 3. HTTP servers
	errCh := make(chan error, len(s.servers))
	for _, ns := range s.servers {
		go func(ns namedServer) {
			if err := ns.server.Start(ctx); err != nil {
				logger.Error("Server error", "server", ns.name, logger.Err(err))
				errCh <- fmt.Errorf("%s server error: %w", ns.name, err)
			}
		}(ns)
	}

	// 4. Wait for shutdown signal or server error
	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
		shutdownErr = ctx.Err()
	case err := <-errCh:
		logger.Error("Server failed, initiating shutdown", logger.Err(err))
		shutdownErr = err
	}

	s.shutdown(settings, extensions, started)

	logger.Info("Postmaster runtime stopped")
	return shutdownErr
}

// shutdown stops the components in reverse start order.
func (s *Service) shutdown(settings SettingsInitializer, extensions ExtensionLoader, jobs []BackgroundJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	for i := len(s.servers) - 1; i >= 0; i-- {
		ns := s.servers[i]
		logger.Debug("Stopping server", "server", ns.name)
		if err := ns.server.Stop(ctx); err != nil {
			logger.Error("Server shutdown error", "server", ns.name, logger.Err(err))
		}
	}

	for i := len(jobs) - 1; i >= 0; i-- {
		jobs[i].Stop()
	}

	if extensions != nil {
		logger.Debug("Unloading extensions")
		extensions.Shutdown(ctx)
	}

	if settings != nil {
		logger.Debug("Stopping settings watcher")
		settings.Stop()
	}
}
