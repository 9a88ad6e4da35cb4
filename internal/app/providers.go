package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/config"
	"mcpdesk/internal/infra/remote"
	"mcpdesk/internal/infra/telemetry"
	"mcpdesk/internal/ui"
	"mcpdesk/internal/ui/viewcache"
)

func NewMetricsRegistry() *prometheus.Registry {
	return telemetry.NewRegistry()
}

func NewMetrics(registry *prometheus.Registry) *telemetry.PrometheusMetrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

func NewEventHub() *ui.EventHub {
	return ui.NewEventHub()
}

func NewRemoteClient(cfg config.Config, logger *zap.Logger, metrics domain.Metrics) (*remote.Client, error) {
	return remote.NewClient(remote.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: "mcpdesk/" + Version,
	}, logger, metrics)
}

func NewConsole(client domain.Remote, logger *zap.Logger, metrics domain.Metrics, events *ui.EventHub) *ui.Console {
	return ui.NewConsole(client, logger, metrics, events)
}

// NewViewCache opens the view cache. The cache is optional: when it is disabled or cannot be
// opened (another process may hold the lock) a nil store is returned and commands run
// without offline fallback.
func NewViewCache(cfg config.Config, logger *zap.Logger) (*viewcache.Store, func()) {
	if cfg.Cache.Disabled || cfg.Cache.Path == "" {
		return nil, func() {}
	}
	store, err := viewcache.OpenStore(cfg.Cache.Path)
	if err != nil {
		logger.Warn("view cache unavailable", zap.String("path", cfg.Cache.Path), zap.Error(err))
		return nil, func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close view cache", zap.Error(err))
		}
	}
}
