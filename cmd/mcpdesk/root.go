package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mcpdesk/internal/app"
	"mcpdesk/internal/infra/config"
)

type cliOptions struct {
	configPath string
	baseURL    string
	output     string
	logLevel   string
	noCache    bool

	loaded     bool
	cfg        config.Config
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "mcpdesk",
		Short:         "Manage remote MCP servers and their tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			applyRootFlagBindings(cmd, opts)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file (default: user config dir)")
	flags.StringVar(&opts.baseURL, "base-url", "", "management service API base URL")
	flags.StringVarP(&opts.output, "output", "o", "", "output format: text, json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the offline view cache")

	root.AddCommand(
		newServersCmd(opts),
		newToolsCmd(opts),
		newWatchCmd(opts),
		newConfigCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)
	return root
}

// applyRootFlagBindings re-reads persistent flags visited on the executing command so flags
// given after the subcommand name take effect.
func applyRootFlagBindings(cmd *cobra.Command, opts *cliOptions) {
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			opts.configPath, _ = flags.GetString("config")
		case "base-url":
			opts.baseURL, _ = flags.GetString("base-url")
		case "output":
			opts.output, _ = flags.GetString("output")
		case "log-level":
			opts.logLevel, _ = flags.GetString("log-level")
		case "no-cache":
			opts.noCache, _ = flags.GetBool("no-cache")
		}
	})
}

// config loads the config file once and applies flag overrides on top of it.
func (o *cliOptions) config(ctx context.Context) (config.Config, error) {
	if o.loaded {
		return o.cfg, nil
	}
	loader := config.NewLoader(zap.NewNop())
	var (
		cfg  config.Config
		path string
		err  error
	)
	if o.configPath != "" {
		path = o.configPath
		cfg, err = loader.Load(ctx, path)
	} else {
		cfg, path, err = loader.LoadDefault(ctx)
	}
	if err != nil {
		return config.Config{}, usageError(fmt.Sprintf("load config: %v", err))
	}

	if o.baseURL != "" {
		cfg.API.BaseURL = strings.TrimSpace(o.baseURL)
	}
	if o.output != "" {
		format, err := parseOutput(o.output)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Output = format
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.noCache {
		cfg.Cache.Disabled = true
	}

	o.cfg = cfg
	o.configFile = path
	o.loaded = true
	return cfg, nil
}

// session wires a console session for the resolved config.
func (o *cliOptions) session(cmd *cobra.Command) (*app.Session, func(), error) {
	cfg, err := o.config(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	session, cleanup, err := app.InitializeSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	return session, cleanup, nil
}

func (o *cliOptions) printer(cmd *cobra.Command) (printer, error) {
	cfg, err := o.config(cmd.Context())
	if err != nil {
		return printer{}, err
	}
	return newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Output), nil
}

func parseOutput(raw string) (config.OutputFormat, error) {
	switch format := config.OutputFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case config.OutputText, config.OutputJSON, config.OutputYAML:
		return format, nil
	default:
		return "", usageError(fmt.Sprintf("unknown output format %q (want text, json or yaml)", raw))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mcpdesk version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mcpdesk %s (%s)\n", app.Version, app.Build)
		},
	}
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func warnf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "warning: "+format+"\n", args...)
}
