package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/shopdesk/internal/api/v1"
	"github.com/gosuda/shopdesk/internal/api/ws"
	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/config"
	"github.com/gosuda/shopdesk/internal/metrics"
	"github.com/gosuda/shopdesk/internal/server/middleware"
)

// AuthService is what the routes and the auth middleware need from *auth.Service.
type AuthService interface {
	v1.AuthService
	middleware.APIKeyValidator
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer is wired with. Optional fields may
// be left nil: Files disables uploads, Positions disables nearby search,
// Events and Subscriber disable realtime, Metrics disables /metrics.
type Deps struct {
	Store      v1.DataStore
	Auth       AuthService
	Plans      v1.PlanEnforcer
	Notifier   v1.Notifier
	Drawer     v1.WinnerDrawer
	Secrets    v1.SecretStore
	Files      v1.ObjectStorage
	Positions  v1.PositionCache
	Events     v1.Events
	Subscriber ws.Subscriber
	Metrics    *metrics.Metrics
	Providers  map[string]auth.OAuthExchanger
	Checks     map[string]Pinger
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the rate limiter
// cleanup goroutines.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger())
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID", middleware.HeaderTenantOverride},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	if deps.Metrics != nil && cfg.Metrics.Enabled {
		router.Use(deps.Metrics.Middleware)
	}

	s := &Server{
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Unauthenticated group for signup, login and OAuth.
	// 2. Authenticated group for all other endpoints.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst))

			authConfig := huma.DefaultConfig("Shopdesk Auth API", "1.0.0")
			authConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			authConfig.OpenAPIPath = "/auth/openapi"
			authConfig.DocsPath = ""
			authAPI := humachi.New(r, authConfig)
			registerAuthRoutes(authAPI, cfg, deps)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret, deps.Auth))
			r.Use(middleware.RequireTenant())
			r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst))

			apiConfig := huma.DefaultConfig("Shopdesk API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, cfg, deps)
		})
	})

	// WebSocket routes.
	if deps.Subscriber != nil {
		hub := ws.NewHub(deps.Subscriber, deps.Plans, deps.Metrics)
		router.Route("/ws", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret, deps.Auth))
			r.Use(middleware.RequireTenant())
			registerWSRoutes(r, hub)
		})
	}

	if deps.Metrics != nil && cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, deps.Metrics.Handler())
	}

	// Liveness (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Readiness checks every dependency in deps.Checks.
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		for name, p := range deps.Checks {
			if err := p.Ping(ctx); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, `{"status":"unavailable","dependency":%q}`, name)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
