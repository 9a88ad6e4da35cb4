package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/config"
	"mcpdesk/internal/infra/telemetry"
	"mcpdesk/internal/ui"
)

const (
	syncLoopName        = "sync"
	heartbeatMultiplier = 3
)

// WatchOptions configures Session.Watch.
type WatchOptions struct {
	// ConfigPath is watched for changes when set.
	ConfigPath string
	// Query is the server page to follow. The zero value means the saved query.
	Query domain.ServerQuery
	// Tools narrows the tool collection.
	Tools domain.ToolFilter
	// OnTick receives a report after every sync round.
	OnTick func(WatchTick)
	// OnEvent receives console events as they are published.
	OnEvent func(ui.Event)
}

// WatchTick summarizes one sync round.
type WatchTick struct {
	At    time.Time
	Stats domain.TreeStats
	Stale bool
	Err   error
}

// Watch re-synchronizes the console every configured interval until ctx is done. It also
// serves metrics and health when enabled and applies config file changes that do not need a
// new session (log level, interval).
func (s *Session) Watch(ctx context.Context, opts WatchOptions) error {
	interval := s.cfg.Watch.Interval
	if interval <= 0 {
		interval = domain.DefaultWatchIntervalSecs * time.Second
	}

	query := opts.Query
	if query == (domain.ServerQuery{}) {
		query = s.SavedQuery()
	}
	if err := query.Validate(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telemetry.StartHTTPServer(gctx, telemetry.HTTPServerOptions{
			Addr:          s.cfg.Watch.MetricsAddr,
			EnableMetrics: s.cfg.Watch.EnableMetrics,
			EnableHealthz: s.cfg.Watch.EnableHealthz,
			Endpoint:      s.Endpoint(),
			Health:        s.health,
			Registry:      s.registry,
		}, s.logger)
	})

	reloads := make(chan config.Config, 1)
	if opts.ConfigPath != "" {
		watcher := config.NewWatcher(config.NewLoader(s.logger), opts.ConfigPath, s.logger)
		watcher.OnError(func(err error) {
			s.logger.Warn("config reload rejected", zap.Error(err))
		})
		g.Go(func() error {
			return watcher.Run(gctx, func(cfg config.Config) {
				select {
				case <-reloads:
				default:
				}
				reloads <- cfg
			})
		})
	}

	if opts.OnEvent != nil {
		events := s.console.Events().Subscribe(gctx)
		g.Go(func() error {
			for evt := range events {
				opts.OnEvent(evt)
			}
			return nil
		})
	}

	g.Go(func() error {
		return s.syncLoop(gctx, interval, query, opts.Tools, reloads, opts.OnTick)
	})

	err := g.Wait()
	if path := s.cfg.Watch.MetricsDumpPath; path != "" {
		if dumpErr := telemetry.DumpMetrics(path, s.registry); dumpErr != nil {
			s.logger.Warn("dump metrics", zap.String("path", path), zap.Error(dumpErr))
		} else {
			s.logger.Info("metrics written", zap.String("path", path))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) syncLoop(
	ctx context.Context,
	interval time.Duration,
	query domain.ServerQuery,
	filter domain.ToolFilter,
	reloads <-chan config.Config,
	onTick func(WatchTick),
) error {
	heartbeat := s.health.Register(syncLoopName, heartbeatMultiplier*interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	first := true
	round := func() {
		var tick WatchTick
		if first {
			tick = s.initialRound(ctx, query, filter)
			first = false
		} else {
			tick = s.syncRound(ctx)
		}
		if tick.Err != nil {
			heartbeat.Fail(tick.Err)
		} else {
			heartbeat.Beat()
		}
		if onTick != nil && ctx.Err() == nil {
			onTick(tick)
		}
	}

	round()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			round()
		case cfg := <-reloads:
			if next := s.applyReload(cfg, interval); next != interval {
				interval = next
				ticker.Reset(interval)
				heartbeat = s.health.Register(syncLoopName, heartbeatMultiplier*interval)
			}
			round()
		}
	}
}

// initialRound issues the followed query; later rounds refresh whatever query is current.
func (s *Session) initialRound(ctx context.Context, query domain.ServerQuery, filter domain.ToolFilter) WatchTick {
	tree, stale, err := s.TreeView(ctx, query, filter)
	if err != nil {
		s.logger.Warn("initial sync failed", zap.Error(err))
		tree = s.console.Tree()
	}
	return WatchTick{At: time.Now(), Stats: tree.Stats(), Stale: stale, Err: err}
}

func (s *Session) syncRound(ctx context.Context) WatchTick {
	err := s.console.Sync(ctx)
	if err != nil && !s.fallback(err) {
		s.logger.Warn("sync failed", zap.Error(err))
	}
	if err == nil {
		s.Capture()
	}
	tree := s.console.Tree()
	return WatchTick{
		At:    time.Now(),
		Stats: tree.Stats(),
		Stale: s.console.Servers().Snapshot().Stale || s.console.Tools().Snapshot().Stale,
		Err:   err,
	}
}

// applyReload applies the reloadable settings of cfg and returns the sync interval to use.
func (s *Session) applyReload(cfg config.Config, current time.Duration) time.Duration {
	if level, err := telemetry.ParseLevel(cfg.Log.Level); err == nil && level != s.level.Level() {
		s.level.SetLevel(level)
		s.logger.Info("log level changed", zap.String("level", level.String()))
	}
	if cfg.API.BaseURL != s.cfg.API.BaseURL {
		s.logger.Warn("api base url changed; restart watch to use it",
			zap.String("current", s.cfg.API.BaseURL),
			zap.String("configured", cfg.API.BaseURL),
		)
	}
	if cfg.Watch.Interval > 0 && cfg.Watch.Interval != current {
		s.logger.Info("sync interval changed", telemetry.DurationField(cfg.Watch.Interval))
		return cfg.Watch.Interval
	}
	return current
}
