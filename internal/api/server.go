// Package api provides the HTTP API server and handlers for AppHub.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/apphub/apphub-server/internal/http/response"
	"github.com/apphub/apphub-server/internal/metrics"
	"github.com/apphub/apphub-server/internal/store"
)

// Options carries the settings NewServer needs beyond its services.
type Options struct {
	Version            string
	Environment        string
	Backend            string
	CORSAllowedOrigins []string
	// SentryEnabled installs the sentry-go HTTP middleware. Sentry must already be initialized.
	SentryEnabled bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	metrics         *metrics.Metrics
	authRateLimiter *RateLimiter
	opts            Options
	startedAt       time.Time
}

// NewServer creates a new HTTP server with all routes configured.
// m and limiter may be nil, which disables instrumentation and auth rate limiting.
func NewServer(st store.Store, services *Services, m *metrics.Metrics, limiter *RateLimiter, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		store:           st,
		services:        services,
		router:          chi.NewRouter(),
		logger:          logger,
		metrics:         m,
		authRateLimiter: limiter,
		opts:            opts,
		startedAt:       time.Now(),
	}

	s.setupMiddleware()
	s.api = humachi.New(s.router, newHumaConfig(opts.Version))
	RegisterErrorHandler(logger)
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func newHumaConfig(version string) huma.Config {
	if version == "" {
		version = "dev"
	}
	cfg := huma.DefaultConfig("AppHub API", version)
	cfg.Info.Description = "Bookmark dashboard: categories, apps, favorites, access history and user administration."
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:   "http",
			Scheme: "bearer",
		},
	}
	// Plain JSON bodies, without the $schema link.
	cfg.CreateHooks = nil
	return cfg
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	if s.metrics != nil {
		s.router.Use(s.metrics.Instrument)
	}
	s.router.Use(requestLogger(s.logger))
	if s.opts.SentryEnabled {
		s.router.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(corsOptions(s.opts.CORSAllowedOrigins)))
	if s.authRateLimiter != nil {
		s.router.Use(pathPrefix("/api/auth/", RateLimitMiddleware(s.authRateLimiter, s.logger)))
	}
	s.router.Use(authMiddleware(s.services.Auth))

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found", s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, "method not allowed", s.logger)
	})
}

// setupRoutes registers every operation.
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerCatalogRoutes()
	s.registerSearchRoutes()
	s.registerActivityRoutes()
	s.registerConfigRoutes()
	s.registerAdminRoutes()
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}
