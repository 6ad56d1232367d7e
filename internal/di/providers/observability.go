package providers

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/config"
	"github.com/apphub/apphub-server/internal/logger"
	"github.com/apphub/apphub-server/internal/metrics"
)

// SentryHandle records whether error reporting is active and flushes
// buffered events on shutdown.
type SentryHandle struct {
	Enabled bool
}

// Shutdown implements do.Shutdownable.
func (h *SentryHandle) Shutdown() error {
	if h.Enabled {
		sentry.Flush(sentryFlushTimeout)
	}
	return nil
}

// ProvideSentry initializes the Sentry client when SENTRY_DSN is set.
func ProvideSentry(i do.Injector) (*SentryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Sentry.DSN == "" {
		log.Debug("Sentry disabled")
		return &SentryHandle{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Environment:      cfg.App.Environment,
		Release:          cfg.App.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	log.Info("Sentry error reporting enabled")
	return &SentryHandle{Enabled: true}, nil
}

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return metrics.New(cfg.App.Version, cfg.Storage.Backend), nil
}
