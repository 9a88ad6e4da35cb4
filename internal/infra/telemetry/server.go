package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultObservabilityAddr = "127.0.0.1:9464"
	shutdownTimeout          = 5 * time.Second
)

// HTTPServerOptions configures the watch-mode observability endpoints.
type HTTPServerOptions struct {
	Addr          string
	EnableMetrics bool
	EnableHealthz bool
	// Endpoint is the management API being watched, echoed in health reports.
	Endpoint string
	Health   *HealthTracker
	Registry prometheus.Gatherer
}

// NewObservabilityHandler routes /metrics and /healthz as enabled in opts.
func NewObservabilityHandler(opts HTTPServerOptions) http.Handler {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	if opts.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	if opts.EnableHealthz {
		mux.Handle("GET /healthz", healthHandler(opts.Health, opts.Endpoint))
	}
	return mux
}

// StartHTTPServer serves the observability endpoints until ctx is done. A listen failure is
// returned before anything is served.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.EnableMetrics && !opts.EnableHealthz {
		return nil
	}
	addr := opts.Addr
	if addr == "" {
		addr = defaultObservabilityAddr
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("observability server failed to start: %w", err)
	}
	server := &http.Server{
		Handler:           NewObservabilityHandler(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger = logger.Named("observability").With(zap.String("addr", listener.Addr().String()))
	logger.Info("observability server listening",
		zap.Bool("metrics", opts.EnableMetrics),
		zap.Bool("healthz", opts.EnableHealthz),
	)

	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("observability server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("observability server shutdown", zap.Error(err))
		return err
	}
	logger.Info("observability server stopped")
	return nil
}

// healthHandler answers 200 while every watch loop keeps beating and 503 once one goes stale.
func healthHandler(tracker *HealthTracker, endpoint string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := HealthReport{Status: "ok"}
		if tracker != nil {
			report = tracker.Report()
		}
		report.Endpoint = endpoint

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
