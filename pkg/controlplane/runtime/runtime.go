package runtime

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/audit"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/domains"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/extensions"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/lifecycle"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/mailboxes"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/settings"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
	ext "github.com/marmos91/postmaster/pkg/extensions"
	"github.com/marmos91/postmaster/pkg/metrics"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = lifecycle.DefaultShutdownTimeout

// AuxiliaryServer is an HTTP server (API, Metrics) managed by the runtime.
type AuxiliaryServer = lifecycle.AuxiliaryServer

// Options configures a Runtime. Zero values select the defaults.
type Options struct {
	// PasswordScheme and AuthenticationType apply until overridden by the
	// settings table.
	PasswordScheme     password.Scheme
	AuthenticationType string

	// AdminUsername is the superuser created on first start.
	AdminUsername string

	SettingsPollInterval time.Duration

	// MediaRoot holds one directory per enabled extension that needs media.
	MediaRoot string

	// AuditRetention is how long history entries are kept. Zero keeps them
	// forever.
	AuditRetention time.Duration
	AuditSchedule  string

	ShutdownTimeout time.Duration

	// Extensions are registered with the extension registry.
	Extensions []ext.Extension
}

// gormBacked is implemented by stores that expose their database handle
// to extensions.
type gormBacked interface {
	DB() *gorm.DB
}

// Runtime wires the administration services around a persistent store.
//
// Every mutation goes through a sub-service that checks the role policy and
// object grants, writes through the store and publishes lifecycle events on
// the shared bus. Extensions and the audit recorder react to those events.
type Runtime struct {
	store store.Store
	bus   *events.Bus
	guard *access.Guard

	settingsWatcher *SettingsWatcher

	// Sub-services
	accountsSvc   *accounts.Service
	domainsSvc    *domains.Service
	mailboxesSvc  *mailboxes.Service
	extensionsSvc *extensions.Service
	settingsSvc   *settings.Service
	lifecycleSvc  *lifecycle.Service

	recorder *audit.Recorder
	sweeper  *audit.Sweeper
}

// New creates a Runtime on top of s.
func New(s store.Store, opts Options) (*Runtime, error) {
	policy, err := access.NewPolicy()
	if err != nil {
		return nil, err
	}

	registry, err := ext.NewRegistry(opts.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("failed to register extensions: %w", err)
	}

	rt := &Runtime{
		store:        s,
		bus:          events.NewBus(),
		guard:        access.NewGuard(policy, access.NewResolver(s)),
		lifecycleSvc: lifecycle.New(opts.ShutdownTimeout),
	}
	rt.settingsWatcher = NewSettingsWatcher(s, opts.PasswordScheme, opts.AuthenticationType, opts.SettingsPollInterval)

	if em := metrics.NewEventMetrics(); em != nil {
		rt.bus.SetObserver(func(name events.Name, err error) {
			em.ObserveEvent(string(name), err != nil)
		})
	}

	host := &ext.Host{Store: s, Bus: rt.bus}
	if g, ok := s.(gormBacked); ok {
		host.DB = g.DB()
	}

	rt.accountsSvc = accounts.New(s, rt.guard, rt.bus, rt.settingsWatcher)
	rt.accountsSvc.SetAdminUsername(opts.AdminUsername)
	rt.domainsSvc = domains.New(s, rt.guard, rt.bus)
	rt.mailboxesSvc = mailboxes.New(s, rt.guard, rt.bus)
	rt.extensionsSvc = extensions.New(registry, s, host, policy, opts.MediaRoot)
	rt.settingsSvc = settings.New(s, rt.guard, rt.settingsWatcher)
	rt.recorder = audit.NewRecorder(s, rt.bus)
	rt.sweeper = audit.NewSweeper(s, opts.AuditRetention, opts.AuditSchedule)

	return rt, nil
}

// ============================================================================
// Accessors
// ============================================================================

func (r *Runtime) Store() store.Store                { return r.store }
func (r *Runtime) Bus() *events.Bus                  { return r.bus }
func (r *Runtime) Guard() *access.Guard              { return r.guard }
func (r *Runtime) SettingsWatcher() *SettingsWatcher { return r.settingsWatcher }
func (r *Runtime) Accounts() *accounts.Service       { return r.accountsSvc }
func (r *Runtime) Domains() *domains.Service         { return r.domainsSvc }
func (r *Runtime) Mailboxes() *mailboxes.Service     { return r.mailboxesSvc }
func (r *Runtime) Extensions() *extensions.Service   { return r.extensionsSvc }
func (r *Runtime) Settings() *settings.Service       { return r.settingsSvc }
func (r *Runtime) AuditSweeper() *audit.Sweeper      { return r.sweeper }
func (r *Runtime) AuditRecorder() *audit.Recorder    { return r.recorder }
func (r *Runtime) Lifecycle() *lifecycle.Service     { return r.lifecycleSvc }

// ============================================================================
// Lifecycle
// ============================================================================

// SetAPIServer registers the control plane API server.
// Must be called before Serve().
func (r *Runtime) SetAPIServer(server AuxiliaryServer) {
	r.lifecycleSvc.AddServer("api", server)
}

// SetMetricsServer registers the metrics server.
// Must be called before Serve().
func (r *Runtime) SetMetricsServer(server AuxiliaryServer) {
	r.lifecycleSvc.AddServer("metrics", server)
}

// SetShutdownTimeout sets the maximum time to wait for graceful shutdown.
func (r *Runtime) SetShutdownTimeout(d time.Duration) {
	r.lifecycleSvc.SetShutdownTimeout(d)
}

// Serve loads settings and extensions, starts the audit recorder, the
// retention sweeper and the registered servers, and blocks until ctx is
// cancelled.
func (r *Runtime) Serve(ctx context.Context) error {
	r.recorder.Start()
	defer r.recorder.Stop()

	return r.lifecycleSvc.Serve(ctx, r.settingsWatcher, r.extensionsSvc, r.sweeper)
}

// Healthcheck verifies the store is reachable.
func (r *Runtime) Healthcheck(ctx context.Context) error {
	if err := r.store.Healthcheck(ctx); err != nil {
		logger.WarnCtx(ctx, "Store healthcheck failed", logger.Err(err))
		return err
	}
	return nil
}
