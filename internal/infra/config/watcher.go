package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"mcpdesk/internal/infra/telemetry"
)

// ReloadFunc receives every successfully reloaded config.
type ReloadFunc func(Config)

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	loader   *Loader
	path     string
	debounce time.Duration
	logger   *zap.Logger
	onError  func(error)
}

func NewWatcher(loader *Loader, path string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader == nil {
		loader = NewLoader(logger)
	}
	return &Watcher{
		loader:   loader,
		path:     path,
		debounce: defaultReloadDebounce,
		logger:   logger.Named("config-watcher"),
	}
}

// OnError registers a callback for failed reloads.
func (w *Watcher) OnError(fn func(error)) {
	w.onError = fn
}

// Run blocks until ctx is done. The parent directory is watched so editors that replace the
// file by rename still trigger a reload.
func (w *Watcher) Run(ctx context.Context, onReload ReloadFunc) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !relevant(event.Op) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			cfg, err := w.loader.Load(ctx, w.path)
			if err != nil {
				w.logger.Warn("config reload failed", telemetry.EventField(telemetry.EventConfigReload), zap.Error(err))
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.logger.Info("config reloaded", telemetry.EventField(telemetry.EventConfigReload), zap.String("path", w.path))
			if onReload != nil {
				onReload(cfg)
			}
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
