package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/api"
	"github.com/apphub/apphub-server/internal/config"
	"github.com/apphub/apphub-server/internal/logger"
	"github.com/apphub/apphub-server/internal/metrics"
	"github.com/apphub/apphub-server/internal/service"
)

// Auth endpoints allow 20 attempts per minute per client IP, bursting to 10.
const (
	authRateLimit  = 20
	authRateWindow = time.Minute
	authRateBurst  = 10
)

// RateLimiterHandle wraps the auth rate limiter so its cleanup goroutine stops on shutdown.
type RateLimiterHandle struct {
	*api.RateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-IP limiter for /api/auth routes.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	return &RateLimiterHandle{RateLimiter: api.NewRateLimiter(authRateLimit, authRateWindow, authRateBurst)}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sentryHandle := do.MustInvoke[*SentryHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:       do.MustInvoke[*service.AuthService](i),
		Catalog:    do.MustInvoke[*service.CatalogService](i),
		Activity:   do.MustInvoke[*service.ActivityService](i),
		Search:     do.MustInvoke[*service.SearchService](i),
		Settings:   do.MustInvoke[*service.SettingsService](i),
		Admin:      do.MustInvoke[*service.AdminService](i),
		Connection: do.MustInvoke[*service.ConnectionService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, m, limiter.RateLimiter, api.Options{
		Version:            cfg.App.Version,
		Environment:        cfg.App.Environment,
		Backend:            cfg.Storage.Backend,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		SentryEnabled:      sentryHandle.Enabled,
	}, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "backend", cfg.Storage.Backend)

	return &HTTPServerHandle{Server: srv}, nil
}
