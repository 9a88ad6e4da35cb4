package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui/transfer"
)

func newServersCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Aliases: []string{"server", "srv"},
		Short:   "List and manage registered servers",
	}
	cmd.AddCommand(
		newServersListCmd(opts),
		newServersGetCmd(opts),
		newServersCreateCmd(opts),
		newServersUpdateCmd(opts),
		newServersDeleteCmd(opts),
		newServersToggleCmd(opts, true),
		newServersToggleCmd(opts, false),
		newServersTagsCmd(opts),
		newServersTestCmd(opts),
		newServersDiscoverCmd(opts, false),
		newServersDiscoverCmd(opts, true),
		newServersImportCmd(opts),
	)
	return cmd
}

type listFlags struct {
	page       int
	size       int
	search     string
	status     string
	enabled    string
	sort       string
	toggleSort string
	next       bool
	prev       bool
	reset      bool
}

func newServersListCmd(opts *cliOptions) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show a page of servers, continuing from the last query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			base := session.SavedQuery()
			if flags.reset {
				base = session.Config().Defaults.Query()
			}
			q, err := applyListFlags(cmd, base, flags)
			if err != nil {
				return err
			}

			page, err := session.ServersView(cmd.Context(), q)
			if err != nil {
				return err
			}
			if page.Stale {
				p.staleWarning(page.FetchedAt, page.Err)
			}
			view := toPageView(page)
			return p.emit(view, view.writeText)
		},
	}
	f := cmd.Flags()
	f.IntVar(&flags.page, "page", 0, "page number")
	f.IntVar(&flags.size, "size", 0, fmt.Sprintf("page size (1-%d)", domain.MaxPageSize))
	f.StringVar(&flags.search, "search", "", "search text; empty clears it")
	f.StringVar(&flags.status, "status", "", "status filter: active, inactive, error; empty clears it")
	f.StringVar(&flags.enabled, "enabled", "", "enabled filter: any, enabled, disabled")
	f.StringVar(&flags.sort, "sort", "", "sort as field[:asc|desc] (created_at, updated_at, name)")
	f.StringVar(&flags.toggleSort, "toggle-sort", "", "flip the direction of field, or sort by it ascending")
	f.BoolVar(&flags.next, "next", false, "go to the next page")
	f.BoolVar(&flags.prev, "prev", false, "go to the previous page")
	f.BoolVar(&flags.reset, "reset", false, "start from the configured default query")
	cmd.MarkFlagsMutuallyExclusive("next", "prev", "page")
	cmd.MarkFlagsMutuallyExclusive("sort", "toggle-sort")
	return cmd
}

// applyListFlags folds the changed flags into q. Filters go first because they return to
// page 1; explicit paging is applied last.
func applyListFlags(cmd *cobra.Command, q domain.ServerQuery, flags listFlags) (domain.ServerQuery, error) {
	changed := cmd.Flags().Changed
	if changed("search") {
		q = q.WithSearch(flags.search)
	}
	if changed("status") {
		status, ok := domain.ParseServerStatus(flags.status)
		if !ok {
			return q, usageError(fmt.Sprintf("unknown status %q", flags.status))
		}
		q = q.WithStatus(status)
	}
	if changed("enabled") {
		filter, ok := domain.ParseEnabledFilter(flags.enabled)
		if !ok {
			return q, usageError(fmt.Sprintf("unknown enabled filter %q", flags.enabled))
		}
		q = q.WithEnabled(filter)
	}
	if changed("sort") {
		field, dir, err := parseSortFlag(flags.sort)
		if err != nil {
			return q, err
		}
		q = q.WithSort(field, dir)
	}
	if changed("toggle-sort") {
		field, ok := domain.ParseSortField(flags.toggleSort)
		if !ok {
			return q, usageError(fmt.Sprintf("unknown sort field %q", flags.toggleSort))
		}
		q = q.ToggleSort(field)
	}
	if changed("size") {
		q = q.WithPageSize(flags.size)
	}
	switch {
	case changed("page"):
		q = q.WithPage(flags.page)
	case flags.next:
		q = q.NextPage()
	case flags.prev:
		q = q.PrevPage()
	}
	return q, q.Validate()
}

func parseSortFlag(raw string) (domain.SortField, domain.SortDirection, error) {
	fieldRaw, dirRaw, _ := strings.Cut(raw, ":")
	field, ok := domain.ParseSortField(fieldRaw)
	if !ok {
		return "", "", usageError(fmt.Sprintf("unknown sort field %q", fieldRaw))
	}
	dir := domain.SortDesc
	if strings.TrimSpace(dirRaw) != "" {
		if dir, ok = domain.ParseSortDirection(dirRaw); !ok {
			return "", "", usageError(fmt.Sprintf("unknown sort direction %q", dirRaw))
		}
	}
	return field, dir, nil
}

func newServersGetCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseServerID(args[0])
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := session.Client().GetServer(cmd.Context(), id)
			if err != nil {
				return err
			}
			view := toServerView(srv)
			return p.emit(view, view.writeText)
		},
	}
}

type serverFlags struct {
	name        string
	description string
	url         string
	authType    string
	authConfig  string
	tags        []string
	enabled     bool
}

func (f *serverFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "server name")
	flags.StringVar(&f.description, "description", "", "server description")
	flags.StringVar(&f.url, "url", "", "server endpoint URL")
	flags.StringVar(&f.authType, "auth-type", "", "auth type: none, bearer, basic, api_key")
	flags.StringVar(&f.authConfig, "auth-config", "", "auth settings as a JSON object")
	flags.StringSliceVar(&f.tags, "tag", nil, "tag (repeatable or comma separated)")
}

func parseAuthFlags(authType, authConfig string) (domain.AuthType, string, error) {
	auth, ok := domain.ParseAuthType(authType)
	if !ok {
		return "", "", usageError(fmt.Sprintf("unknown auth type %q", authType))
	}
	authConfig = strings.TrimSpace(authConfig)
	if authConfig != "" && !json.Valid([]byte(authConfig)) {
		return "", "", usageError("--auth-config must be valid JSON")
	}
	return auth, authConfig, nil
}

func newServersCreateCmd(opts *cliOptions) *cobra.Command {
	var flags serverFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, authConfig, err := parseAuthFlags(flags.authType, flags.authConfig)
			if err != nil {
				return err
			}
			req := domain.ServerCreateRequest{
				Name:        strings.TrimSpace(flags.name),
				Description: flags.description,
				URL:         strings.TrimSpace(flags.url),
				AuthType:    auth,
				AuthConfig:  authConfig,
				Tags:        domain.ParseTags(strings.Join(flags.tags, ",")),
			}
			if err := req.Validate(); err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := session.Client().CreateServer(cmd.Context(), req)
			if err != nil {
				return err
			}
			view := toServerView(srv)
			return p.emit(view, view.writeText)
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newServersUpdateCmd(opts *cliOptions) *cobra.Command {
	var flags serverFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the editable fields of a server",
		Long:  "Change the editable fields of a server. Fields whose flags are not given keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseServerID(args[0])
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			current, err := session.Client().GetServer(cmd.Context(), id)
			if err != nil {
				return err
			}
			req, err := overlayServerFlags(cmd, current, flags)
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			srv, err := session.Client().UpdateServer(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			view := toServerView(srv)
			return p.emit(view, view.writeText)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.enabled, "enabled", false, "set the enabled flag")
	return cmd
}

func overlayServerFlags(cmd *cobra.Command, current domain.Server, flags serverFlags) (domain.ServerUpdateRequest, error) {
	changed := cmd.Flags().Changed
	req := domain.ServerUpdateRequest{
		Name:        current.Name,
		Description: current.Description,
		URL:         current.URL,
		AuthType:    current.AuthType,
		AuthConfig:  current.AuthConfig,
		Tags:        current.Tags,
	}
	if changed("name") {
		req.Name = strings.TrimSpace(flags.name)
	}
	if changed("description") {
		req.Description = flags.description
	}
	if changed("url") {
		req.URL = strings.TrimSpace(flags.url)
	}
	if changed("auth-type") || changed("auth-config") {
		authType := string(req.AuthType)
		if changed("auth-type") {
			authType = flags.authType
		}
		authConfig := req.AuthConfig
		if changed("auth-config") {
			authConfig = flags.authConfig
		}
		auth, cfg, err := parseAuthFlags(authType, authConfig)
		if err != nil {
			return req, err
		}
		req.AuthType = auth
		req.AuthConfig = cfg
	}
	if changed("tag") {
		req.Tags = domain.ParseTags(strings.Join(flags.tags, ","))
	}
	if changed("enabled") {
		enabled := flags.enabled
		req.Enabled = &enabled
	}
	return req, nil
}

func newServersDeleteCmd(opts *cliOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Unregister a server and its tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseServerID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return usageError("refusing to delete without --yes")
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := session.Client().DeleteServer(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted server %d\n", id)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func newServersToggleCmd(opts *cliOptions, enabled bool) *cobra.Command {
	use, short := "disable ID", "Disable a server"
	if enabled {
		use, short = "enable ID", "Enable a server"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseServerID(args[0])
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := session.Console().SetServerEnabled(cmd.Context(), id, enabled)
			if err != nil {
				return err
			}
			view := toServerView(srv)
			return p.emit(view, view.writeText)
		},
	}
}

func newServersTagsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tags, err := session.Client().ListServerTags(cmd.Context())
			if err != nil {
				return err
			}
			return p.emit(map[string][]string{"tags": tags}, func(w io.Writer) error {
				for _, tag := range tags {
					if _, err := fmt.Fprintln(w, tag); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newServersTestCmd(opts *cliOptions) *cobra.Command {
	var flags serverFlags
	cmd := &cobra.Command{
		Use:   "test [ID]",
		Short: "Ask the management service to probe an endpoint",
		Long:  "Probe a registered server by ID, or an unregistered endpoint given with --url.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && flags.url == "" {
				return usageError("either a server ID or --url is required")
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var req domain.ConnectionTestRequest
			if len(args) == 1 {
				id, err := parseServerID(args[0])
				if err != nil {
					return err
				}
				srv, err := session.Client().GetServer(cmd.Context(), id)
				if err != nil {
					return err
				}
				req = domain.ConnectionTestRequest{URL: srv.URL, AuthType: srv.AuthType, AuthConfig: srv.AuthConfig}
			}
			if cmd.Flags().Changed("url") {
				req.URL = strings.TrimSpace(flags.url)
			}
			if cmd.Flags().Changed("auth-type") || cmd.Flags().Changed("auth-config") || req.AuthType == "" {
				auth, cfg, err := parseAuthFlags(flags.authType, flags.authConfig)
				if err != nil {
					return err
				}
				req.AuthType, req.AuthConfig = auth, cfg
			}

			connected, err := session.Client().TestConnection(cmd.Context(), req)
			if err != nil {
				return err
			}
			result := map[string]any{"url": req.URL, "connected": connected}
			if err := p.emit(result, func(w io.Writer) error {
				state := "connected"
				if !connected {
					state = "not reachable"
				}
				_, err := fmt.Fprintf(w, "%s: %s\n", req.URL, state)
				return err
			}); err != nil {
				return err
			}
			if !connected {
				return exitSilent(exitRemote)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newServersDiscoverCmd(opts *cliOptions, refresh bool) *cobra.Command {
	use, short := "discover ID", "Discover the tools a server exposes"
	if refresh {
		use, short = "refresh ID", "Replace a server's tools with a fresh discovery run"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseServerID(args[0])
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			console := session.Console()
			run := console.DiscoverTools
			if refresh {
				run = console.RefreshTools
			}
			res, err := run(cmd.Context(), id)
			if err != nil {
				return err
			}
			session.Capture()
			view := discoveryView{ServerID: uint(id), Success: res.Success, ToolsCount: res.ToolsCount, Message: res.Message}
			return p.emit(view, view.writeText)
		},
	}
}

func newServersImportCmd(opts *cliOptions) *cobra.Command {
	var (
		sourceRaw string
		path      string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Register the HTTP servers of a local MCP client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := transfer.ParseSource(sourceRaw)
			if err != nil {
				return usageError(fmt.Sprintf("unknown source %q (want claude, codex or gemini)", sourceRaw))
			}
			var result transfer.Result
			if path != "" {
				result, err = transfer.ReadFile(source, path)
			} else {
				result, err = transfer.ReadSource(source)
			}
			if err != nil {
				if errors.Is(err, transfer.ErrNotFound) {
					return exitError{code: exitFailure, message: fmt.Sprintf("no %s config at %s", source, result.Path)}
				}
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}

			view := importView{
				Source:  string(result.Source),
				Path:    result.Path,
				DryRun:  dryRun,
				Servers: make([]importEntryView, 0, len(result.Servers)),
				Issues:  result.Issues,
			}
			failed := 0
			if dryRun {
				for _, req := range result.Servers {
					view.Servers = append(view.Servers, importEntryView{Name: req.Name, URL: req.URL, AuthType: string(req.AuthType)})
				}
			} else {
				session, cleanup, err := opts.session(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
				for _, req := range result.Servers {
					entry := importEntryView{Name: req.Name, URL: req.URL, AuthType: string(req.AuthType)}
					srv, err := session.Client().CreateServer(cmd.Context(), req)
					if err != nil {
						entry.Error = err.Error()
						failed++
					} else {
						entry.ID = uint(srv.ID)
					}
					view.Servers = append(view.Servers, entry)
				}
			}

			if err := p.emit(view, view.writeText); err != nil {
				return err
			}
			if failed > 0 {
				return exitError{code: exitRemote, message: fmt.Sprintf("%d of %d servers failed to register", failed, len(result.Servers))}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceRaw, "source", "", "client config to read: claude, codex or gemini")
	cmd.Flags().StringVar(&path, "file", "", "read this file instead of the client's default location")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be registered without registering")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func parseServerID(raw string) (domain.ServerID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil || id == 0 {
		return 0, usageError(fmt.Sprintf("invalid server id %q", raw))
	}
	return domain.ServerID(id), nil
}

func parseToolID(raw string) (domain.ToolID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil || id == 0 {
		return 0, usageError(fmt.Sprintf("invalid tool id %q", raw))
	}
	return domain.ToolID(id), nil
}
