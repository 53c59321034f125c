package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/postmaster/internal/controlplane/api/auth"
	"github.com/marmos91/postmaster/internal/controlplane/api/handlers"
	apiMiddleware "github.com/marmos91/postmaster/internal/controlplane/api/middleware"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime"
	"github.com/marmos91/postmaster/pkg/metrics"
)

// changeOwnPasswordPath stays reachable for accounts that must change their
// password.
const changeOwnPasswordPath = "/api/v1/accounts/me/password"

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health, GET /health/ready - probes
//   - POST /api/v1/auth/login, /refresh - rate limited per client IP
//   - GET /api/v1/auth/me
//   - POST /api/v1/accounts/me/password
//   - /api/v1/accounts, /domains, /domain-aliases, /mailboxes, /aliases - CRUD
//   - GET|PUT /api/v1/mailboxes/{address}/autoreply
//   - GET /api/v1/grants/{type}/{id}, GET /api/v1/audit
//   - /api/v1/extensions, /api/v1/settings
//
// Authorization is decided by the runtime services; the router only
// authenticates.
func NewRouter(rt *runtime.Runtime, jwtService *auth.JWTService, cfg APIConfig, m metrics.APIMetrics) http.Handler {
	cfg.ApplyDefaults()
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Tracing)
	r.Use(apiMiddleware.RequestLogger)
	r.Use(apiMiddleware.Metrics(m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(rt)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(rt.Accounts(), rt.Store(), jwtService, m)
	accountHandler := handlers.NewAccountHandler(rt.Accounts(), jwtService)
	domainHandler := handlers.NewDomainHandler(rt.Domains())
	mailboxHandler := handlers.NewMailboxHandler(rt.Mailboxes())
	autoreplyHandler := handlers.NewAutoreplyHandler(rt.Extensions(), rt.Mailboxes())
	extensionHandler := handlers.NewExtensionHandler(rt.Extensions())
	settingsHandler := handlers.NewSettingsHandler(rt.Settings())

	limiter := apiMiddleware.NewRateLimiter(apiMiddleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimit.RequestsPerSecond,
		Burst:             cfg.LoginRateLimit.Burst,
	}, m)
	authenticated := func(r chi.Router) {
		r.Use(apiMiddleware.JWTAuth(jwtService))
		r.Use(apiMiddleware.LoadAccount(rt.Store()))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limiter.Middleware)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})
			r.Group(func(r chi.Router) {
				authenticated(r)
				r.Get("/me", authHandler.Me)
			})
		})

		// Exempt from the must-change-password check so the change can happen.
		r.Group(func(r chi.Router) {
			authenticated(r)
			r.Post("/accounts/me/password", accountHandler.ChangeOwnPassword)
		})

		r.Group(func(r chi.Router) {
			authenticated(r)
			r.Use(apiMiddleware.RequirePasswordChange(changeOwnPasswordPath))

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", accountHandler.List)
				r.Post("/", accountHandler.Create)
				r.Get("/{username}", accountHandler.Get)
				r.Put("/{username}", accountHandler.Update)
				r.Delete("/{username}", accountHandler.Delete)
				r.Put("/{username}/role", accountHandler.SetRole)
				r.Post("/{username}/password", accountHandler.ResetPassword)
			})

			r.Route("/domains", func(r chi.Router) {
				r.Get("/", domainHandler.List)
				r.Post("/", domainHandler.Create)
				r.Get("/{name}", domainHandler.Get)
				r.Put("/{name}", domainHandler.Update)
				r.Delete("/{name}", domainHandler.Delete)
			})

			r.Route("/domain-aliases", func(r chi.Router) {
				r.Get("/", domainHandler.ListAliases)
				r.Post("/", domainHandler.CreateAlias)
				r.Get("/{name}", domainHandler.GetAlias)
				r.Put("/{name}", domainHandler.UpdateAlias)
				r.Delete("/{name}", domainHandler.DeleteAlias)
			})

			r.Route("/mailboxes", func(r chi.Router) {
				r.Get("/", mailboxHandler.List)
				r.Post("/", mailboxHandler.Create)
				r.Get("/{address}", mailboxHandler.Get)
				r.Put("/{address}", mailboxHandler.Update)
				r.Delete("/{address}", mailboxHandler.Delete)
				r.Get("/{address}/autoreply", autoreplyHandler.Get)
				r.Put("/{address}/autoreply", autoreplyHandler.Set)
			})

			r.Route("/aliases", func(r chi.Router) {
				r.Get("/", mailboxHandler.ListAliases)
				r.Post("/", mailboxHandler.CreateAlias)
				r.Get("/{address}", mailboxHandler.GetAlias)
				r.Put("/{address}", mailboxHandler.UpdateAlias)
				r.Delete("/{address}", mailboxHandler.DeleteAlias)
			})

			r.Route("/extensions", func(r chi.Router) {
				r.Get("/", extensionHandler.List)
				r.Post("/{name}/enable", extensionHandler.Enable)
				r.Post("/{name}/disable", extensionHandler.Disable)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.List)
				r.Get("/{key}", settingsHandler.Get)
				r.Put("/{key}", settingsHandler.Set)
				r.Delete("/{key}", settingsHandler.Delete)
			})

			r.Route("/grants/{type}/{id}", func(r chi.Router) {
				r.Get("/", settingsHandler.Grants)
				r.Post("/", settingsHandler.Grant)
				r.Delete("/{username}", settingsHandler.Revoke)
			})
			r.Get("/audit", settingsHandler.History)
		})
	})

	return r
}
