package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mcpdesk/internal/app"
	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui"
)

type watchFlags struct {
	interval    time.Duration
	metricsAddr string
	metrics     bool
	healthz     bool
	dumpMetrics string
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	var flags watchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the server page and tools in sync and report changes",
		Long: "Re-synchronize the saved server page and the tool collection on an interval, " +
			"printing tree summaries, sync failures and mutation outcomes. Optionally serves " +
			"/metrics and /healthz.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd.Context())
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("interval") {
				if flags.interval < time.Second {
					return usageError("--interval must be at least 1s")
				}
				cfg.Watch.Interval = flags.interval
			}
			if changed("metrics-addr") {
				cfg.Watch.MetricsAddr = flags.metricsAddr
			}
			if changed("metrics") {
				cfg.Watch.EnableMetrics = flags.metrics
			}
			if changed("healthz") {
				cfg.Watch.EnableHealthz = flags.healthz
			}
			if changed("dump-metrics") {
				cfg.Watch.MetricsDumpPath = flags.dumpMetrics
			}
			opts.cfg = cfg

			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reporter := &watchReporter{out: &lockedWriter{w: cmd.OutOrStdout()}}
			return session.Watch(cmd.Context(), app.WatchOptions{
				ConfigPath: opts.configFile,
				OnTick:     reporter.tick,
				OnEvent:    reporter.event,
			})
		},
	}
	f := cmd.Flags()
	f.DurationVar(&flags.interval, "interval", domain.DefaultWatchIntervalSecs*time.Second, "sync interval")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "listen address for /metrics and /healthz")
	f.BoolVar(&flags.metrics, "metrics", false, "serve Prometheus metrics")
	f.BoolVar(&flags.healthz, "healthz", false, "serve the health endpoint")
	f.StringVar(&flags.dumpMetrics, "dump-metrics", "", "write metrics to this file on exit")
	return cmd
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// watchReporter prints a tick only when the tree summary or staleness changed since the
// previous one.
type watchReporter struct {
	out io.Writer

	mu    sync.Mutex
	last  domain.TreeStats
	stale bool
	seen  bool
}

func (r *watchReporter) tick(tick app.WatchTick) {
	stamp := tick.At.Local().Format(time.TimeOnly)
	if tick.Err != nil && !tick.Stale {
		_, _ = fmt.Fprintf(r.out, "%s sync failed: %v\n", stamp, tick.Err)
		return
	}

	r.mu.Lock()
	unchanged := r.seen && r.last == tick.Stats && r.stale == tick.Stale
	r.last, r.stale, r.seen = tick.Stats, tick.Stale, true
	r.mu.Unlock()
	if unchanged {
		return
	}

	s := tick.Stats
	line := fmt.Sprintf("%s %d servers, %d categories, %d tools (%d enabled)", stamp, s.Servers, s.Categories, s.Tools, s.Enabled)
	if tick.Stale {
		line += " [cached]"
	}
	_, _ = fmt.Fprintln(r.out, line)
}

func (r *watchReporter) event(evt ui.Event) {
	stamp := evt.At.Local().Format(time.TimeOnly)
	switch payload := evt.Payload.(type) {
	case ui.MutationEvent:
		verb := "disabled"
		if payload.Enabled {
			verb = "enabled"
		}
		if payload.Category != "" {
			verb = "moved to " + payload.Category + ":"
		}
		if evt.Name == ui.EventMutationFailed {
			_, _ = fmt.Fprintf(r.out, "%s rolled back %s %s: %v\n", stamp, verb, payload.Target, payload.Error)
			return
		}
		_, _ = fmt.Fprintf(r.out, "%s %s %s\n", stamp, verb, payload.Target)
	}
}
