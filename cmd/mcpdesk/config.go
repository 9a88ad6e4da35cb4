package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mcpdesk/internal/infra/config"
	"mcpdesk/internal/ui/viewcache"
)

type configView struct {
	Path     string          `json:"path,omitempty" yaml:"path,omitempty"`
	BaseURL  string          `json:"baseUrl" yaml:"baseUrl"`
	Timeout  string          `json:"timeout" yaml:"timeout"`
	LogLevel string          `json:"logLevel" yaml:"logLevel"`
	LogJSON  bool            `json:"logJson" yaml:"logJson"`
	Output   string          `json:"output" yaml:"output"`
	Query    queryView       `json:"defaultQuery" yaml:"defaultQuery"`
	Cache    string          `json:"cache" yaml:"cache"`
	Watch    watchConfigView `json:"watch" yaml:"watch"`
}

type watchConfigView struct {
	Interval      string `json:"interval" yaml:"interval"`
	MetricsAddr   string `json:"metricsAddr" yaml:"metricsAddr"`
	EnableMetrics bool   `json:"enableMetrics" yaml:"enableMetrics"`
	EnableHealthz bool   `json:"enableHealthz" yaml:"enableHealthz"`
	DumpPath      string `json:"dumpPath,omitempty" yaml:"dumpPath,omitempty"`
}

func toConfigView(path string, cfg config.Config) configView {
	view := configView{
		Path:     path,
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout.String(),
		LogLevel: cfg.Log.Level,
		LogJSON:  cfg.Log.JSON,
		Output:   string(cfg.Output),
		Query:    toQueryView(cfg.Defaults.Query()),
		Cache:    cfg.Cache.Path,
		Watch: watchConfigView{
			Interval:      cfg.Watch.Interval.String(),
			MetricsAddr:   cfg.Watch.MetricsAddr,
			EnableMetrics: cfg.Watch.EnableMetrics,
			EnableHealthz: cfg.Watch.EnableHealthz,
			DumpPath:      cfg.Watch.MetricsDumpPath,
		},
	}
	if cfg.Cache.Disabled {
		view.Cache = "disabled"
	}
	return view
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after defaults, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd.Context())
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			view := toConfigView(opts.configFile, cfg)
			return p.emit(view, func(w io.Writer) error {
				return writeYAML(w, view)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	})
	return cmd
}

type cacheEntryView struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	UpdatedAt string `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the offline view cache",
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the cached view of the configured endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd.Context())
			if err != nil {
				return err
			}
			return withCache(cfg, func(store *viewcache.Store) error {
				endpoints := []string{cfg.API.BaseURL}
				if all {
					if endpoints, err = store.Endpoints(); err != nil {
						return err
					}
				}
				for _, endpoint := range endpoints {
					if err := store.Clear(endpoint); err != nil {
						return err
					}
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", endpoint); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "clear every endpoint")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the endpoints with a cached view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd.Context())
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			return withCache(cfg, func(store *viewcache.Store) error {
				endpoints, err := store.Endpoints()
				if err != nil {
					return err
				}
				entries := make([]cacheEntryView, 0, len(endpoints))
				for _, endpoint := range endpoints {
					entry := cacheEntryView{Endpoint: endpoint}
					if at, ok, err := store.UpdatedAt(endpoint); err == nil && ok {
						entry.UpdatedAt = formatTime(at)
					}
					entries = append(entries, entry)
				}
				return p.emit(map[string]any{"path": store.Path(), "endpoints": entries}, func(w io.Writer) error {
					tw := newTable(w)
					_, _ = fmt.Fprintln(tw, "ENDPOINT\tUPDATED")
					for _, entry := range entries {
						_, _ = fmt.Fprintf(tw, "%s\t%s\n", entry.Endpoint, orDash(entry.UpdatedAt))
					}
					return tw.Flush()
				})
			})
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}

func withCache(cfg config.Config, fn func(*viewcache.Store) error) error {
	if cfg.Cache.Disabled {
		return usageError("the view cache is disabled")
	}
	path := cfg.Cache.Path
	if path == "" {
		path = config.DefaultCachePath()
	}
	store, err := viewcache.OpenStore(path)
	if err != nil {
		return fmt.Errorf("open view cache: %w", err)
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}
