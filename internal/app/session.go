package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/config"
	"mcpdesk/internal/infra/remote"
	"mcpdesk/internal/infra/telemetry"
	"mcpdesk/internal/ui"
	"mcpdesk/internal/ui/viewcache"
)

// Session is one wired console instance bound to a single management service endpoint.
type Session struct {
	cfg      config.Config
	logger   *zap.Logger
	level    zap.AtomicLevel
	registry *prometheus.Registry
	metrics  *telemetry.PrometheusMetrics
	health   *telemetry.HealthTracker
	client   *remote.Client
	console  *ui.Console
	cache    *viewcache.Store

	hydrateOnce sync.Once
	hydrated    bool
}

// SessionOptions captures dependencies for Session.
type SessionOptions struct {
	Config   config.Config
	Logging  Logging
	Registry *prometheus.Registry
	Metrics  *telemetry.PrometheusMetrics
	Health   *telemetry.HealthTracker
	Client   *remote.Client
	Console  *ui.Console
	Cache    *viewcache.Store
}

func NewSession(opts SessionOptions) *Session {
	logger := opts.Logging.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	level := opts.Logging.Level
	if level == (zap.AtomicLevel{}) {
		level = zap.NewAtomicLevel()
	}
	return &Session{
		cfg:      opts.Config,
		logger:   logger,
		level:    level,
		registry: opts.Registry,
		metrics:  opts.Metrics,
		health:   opts.Health,
		client:   opts.Client,
		console:  opts.Console,
		cache:    opts.Cache,
	}
}

func (s *Session) Config() config.Config            { return s.cfg }
func (s *Session) Logger() *zap.Logger              { return s.logger }
func (s *Session) Console() *ui.Console             { return s.console }
func (s *Session) Client() *remote.Client           { return s.client }
func (s *Session) Registry() *prometheus.Registry   { return s.registry }
func (s *Session) Health() *telemetry.HealthTracker { return s.health }
func (s *Session) Cache() *viewcache.Store          { return s.cache }
func (s *Session) Endpoint() string                 { return s.client.BaseURL() }

// SavedQuery returns the last query issued against this endpoint, or the configured default.
func (s *Session) SavedQuery() domain.ServerQuery {
	if s.cache != nil {
		q, ok, err := s.cache.LoadQuery(s.Endpoint())
		if err != nil {
			s.logger.Warn("load saved query", zap.Error(err))
		}
		if ok && q.Validate() == nil {
			return q
		}
	}
	return s.cfg.Defaults.Query()
}

// ServersView fetches the page for q. When the service is unreachable and a cached page
// exists, the cached page is returned with Stale set and Err holding the transport failure.
// A cached tool collection alone does not count.
func (s *Session) ServersView(ctx context.Context, q domain.ServerQuery) (ui.ServerPage, error) {
	page, err := s.console.Servers().Fetch(ctx, q)
	if err != nil {
		if s.fallback(err) {
			if cached := s.console.Servers().Snapshot(); cached.Stale {
				return cached, nil
			}
		}
		// The query still becomes the saved one so --next/--prev stay consistent.
		s.Capture()
		return page, err
	}
	s.Capture()
	return page, nil
}

// ToolsView loads the tools matching filter, falling back to the cache like ServersView.
func (s *Session) ToolsView(ctx context.Context, filter domain.ToolFilter) (ui.ToolSnapshot, error) {
	snap, err := s.console.Tools().Load(ctx, filter)
	if err != nil {
		if s.fallback(err) {
			if cached := s.console.Tools().Snapshot(); cached.Stale {
				return cached, nil
			}
		}
		return snap, err
	}
	s.Capture()
	return snap, nil
}

// TreeView loads the server page for q and the tools matching filter concurrently and
// returns the tree built from them.
func (s *Session) TreeView(ctx context.Context, q domain.ServerQuery, filter domain.ToolFilter) (*ui.Tree, bool, error) {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		errAll error
	)
	record := func(err error) {
		mu.Lock()
		errAll = multierr.Append(errAll, err)
		mu.Unlock()
	}
	g.Go(func() error {
		if _, err := s.console.Servers().Fetch(ctx, q); err != nil {
			record(err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.console.Tools().Load(ctx, filter); err != nil {
			record(err)
		}
		return nil
	})
	_ = g.Wait()

	if errAll != nil {
		if !s.fallback(errAll) {
			return nil, false, errAll
		}
	} else {
		s.Capture()
	}
	stale := s.console.Servers().Snapshot().Stale || s.console.Tools().Snapshot().Stale
	return s.console.Tree(), stale, nil
}

// Capture saves the current console view for this endpoint. Failures are logged only.
func (s *Session) Capture() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Capture(s.Endpoint(), s.console); err != nil {
		s.logger.Warn("save view cache", zap.Error(err))
	}
}

// Hydrate restores the cached view once per session and reports whether anything was restored.
func (s *Session) Hydrate() bool {
	if s.cache == nil {
		return false
	}
	s.hydrateOnce.Do(func() {
		restored, err := s.cache.Hydrate(s.Endpoint(), s.console)
		if err != nil {
			s.logger.Warn("restore view cache", zap.Error(err))
		}
		s.hydrated = restored
	})
	return s.hydrated
}

// fallback restores the cached view when every failure in err is a transport failure. Remote
// and validation errors are answers from the service and never fall back.
func (s *Session) fallback(err error) bool {
	errs := multierr.Errors(err)
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !domain.IsTransport(e) {
			return false
		}
	}
	if !s.Hydrate() {
		return false
	}
	s.logger.Info("service unreachable, showing cached view",
		zap.String("endpoint", s.Endpoint()),
		zap.Error(err),
	)
	return true
}
