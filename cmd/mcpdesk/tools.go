package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mcpdesk/internal/app"
	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui"
)

func newToolsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tools",
		Aliases: []string{"tool"},
		Short:   "Browse and toggle discovered tools",
	}
	cmd.AddCommand(
		newToolsListCmd(opts),
		newToolsTreeCmd(opts),
		newToolsToggleCmd(opts, true),
		newToolsToggleCmd(opts, false),
		newToolsCategorizeCmd(opts),
		newToolsCategoriesCmd(opts),
		newToolsParamsCmd(opts),
	)
	return cmd
}

type toolFilterFlags struct {
	server   uint
	category string
	search   string
	enabled  string
}

func (f *toolFilterFlags) register(cmd *cobra.Command, prefix string) {
	flags := cmd.Flags()
	flags.UintVar(&f.server, "server", 0, "only tools of this server id")
	flags.StringVar(&f.category, "category", "", "only tools in this category")
	flags.StringVar(&f.search, prefix+"search", "", "tool search text")
	flags.StringVar(&f.enabled, prefix+"enabled", "", "tool enabled filter: any, enabled, disabled")
}

func (f toolFilterFlags) filter() (domain.ToolFilter, error) {
	enabled, ok := domain.ParseEnabledFilter(f.enabled)
	if !ok {
		return domain.ToolFilter{}, usageError(fmt.Sprintf("unknown enabled filter %q", f.enabled))
	}
	return domain.ToolFilter{
		ServerID: domain.ServerID(f.server),
		Category: strings.TrimSpace(f.category),
		Search:   strings.TrimSpace(f.search),
		Enabled:  enabled,
	}, nil
}

func newToolsListCmd(opts *cliOptions) *cobra.Command {
	var flags toolFilterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
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

			snap, err := session.ToolsView(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if snap.Stale {
				p.staleWarning(snap.FetchedAt, snap.Err)
			}
			view := toToolsView(snap)
			return p.emit(view, view.writeText)
		},
	}
	flags.register(cmd, "")
	return cmd
}

func newToolsTreeCmd(opts *cliOptions) *cobra.Command {
	var (
		list  listFlags
		tools toolFilterFlags
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the server, category and tool tree for the current server page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := tools.filter()
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

			q, err := treeQuery(cmd, session, list)
			if err != nil {
				return err
			}
			tree, stale, err := session.TreeView(cmd.Context(), q, filter)
			if err != nil {
				return err
			}
			if stale {
				p.staleWarning(session.Console().Servers().Snapshot().FetchedAt, nil)
			}
			view := toTreeView(tree, stale)
			return p.emit(view, view.writeText)
		},
	}
	f := cmd.Flags()
	f.IntVar(&list.page, "page", 0, "server page number")
	f.IntVar(&list.size, "size", 0, fmt.Sprintf("server page size (1-%d)", domain.MaxPageSize))
	f.StringVar(&list.search, "search", "", "server search text")
	f.StringVar(&list.status, "status", "", "server status filter")
	f.StringVar(&list.sort, "sort", "", "server sort as field[:asc|desc]")
	f.BoolVar(&list.reset, "all", false, fmt.Sprintf("show the first %d servers instead of the saved page", domain.DefaultTreePageSize))
	tools.register(cmd, "tool-")
	return cmd
}

func treeQuery(cmd *cobra.Command, session *app.Session, list listFlags) (domain.ServerQuery, error) {
	base := session.SavedQuery()
	if list.reset {
		base = session.Config().Defaults.Query().WithPageSize(domain.DefaultTreePageSize)
	}
	return applyListFlags(cmd, base, list)
}

// scopeFlags selects the tools a batch mutation covers.
type scopeFlags struct {
	tool     string
	server   uint
	category string
	node     string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.tool, "tool", "", "tool id")
	flags.UintVar(&f.server, "server", 0, "server id")
	flags.StringVar(&f.category, "category", "", "category name within --server; empty selects uncategorized tools")
	flags.StringVar(&f.node, "node", "", "tree node key")
	cmd.MarkFlagsMutuallyExclusive("tool", "server", "node")
}

func (f *scopeFlags) check(cmd *cobra.Command) error {
	changed := cmd.Flags().Changed
	if !changed("tool") && !changed("server") && !changed("node") {
		return usageError("one of --tool, --server or --node is required")
	}
	if changed("category") && !changed("server") {
		return usageError("--category requires --server")
	}
	return nil
}

const scopeHelp = "\n\nThe scope is one of --tool ID, --server ID [--category NAME] " +
	"or --node KEY, where KEY is a key printed by `tools tree`."

func newToolsToggleCmd(opts *cliOptions, enabled bool) *cobra.Command {
	var scope scopeFlags
	use, short := "disable", "Disable a tool, a category or every tool of a server"
	if enabled {
		use, short = "enable", "Enable a tool, a category or every tool of a server"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + "." + scopeHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := scope.check(cmd); err != nil {
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

			var res ui.BatchResult
			if cmd.Flags().Changed("node") {
				res, err = toggleNode(cmd, session, scope.node, enabled)
			} else {
				var target ui.ToolScope
				if target, err = loadScope(cmd, session, scope); err == nil {
					res, err = session.Console().SetToolsEnabled(cmd.Context(), target, enabled)
				}
			}
			if err != nil {
				return err
			}
			session.Capture()
			view := toBatchView(res)
			return p.emit(view, view.writeText)
		},
	}
	scope.register(cmd)
	return cmd
}

func newToolsCategorizeCmd(opts *cliOptions) *cobra.Command {
	var scope scopeFlags
	short := "Move a tool, a category or every tool of a server to another category"
	cmd := &cobra.Command{
		Use:   "categorize NAME",
		Short: short,
		Long:  short + "." + scopeHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scope.check(cmd); err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if name == "" {
				return usageError("category name must not be empty")
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

			var target ui.ToolScope
			if cmd.Flags().Changed("node") {
				target, err = nodeScope(cmd, session, scope.node)
			} else {
				target, err = loadScope(cmd, session, scope)
			}
			if err != nil {
				return err
			}
			res, err := session.Console().MoveTools(cmd.Context(), target, name)
			if err != nil {
				return err
			}
			session.Capture()
			view := toBatchView(res)
			return p.emit(view, view.writeText)
		},
	}
	scope.register(cmd)
	return cmd
}

// loadScope builds the scope named by the tool or server flags and loads the tools it can
// cover. Scopes are not resolved against a stale collection.
func loadScope(cmd *cobra.Command, session *app.Session, f scopeFlags) (ui.ToolScope, error) {
	var (
		scope  ui.ToolScope
		filter domain.ToolFilter
	)
	switch {
	case f.tool != "":
		id, err := parseToolID(f.tool)
		if err != nil {
			return ui.ToolScope{}, err
		}
		scope = ui.ToolScopeOf(id)
	case cmd.Flags().Changed("category"):
		scope = ui.CategoryScope(domain.ServerID(f.server), f.category)
		filter.ServerID = domain.ServerID(f.server)
	default:
		scope = ui.ServerScope(domain.ServerID(f.server))
		filter.ServerID = domain.ServerID(f.server)
	}
	if scope.ServerID == 0 && scope.ToolID == 0 {
		return ui.ToolScope{}, usageError("invalid scope: ids must be positive")
	}

	snap, err := session.ToolsView(cmd.Context(), filter)
	if err != nil {
		return ui.ToolScope{}, err
	}
	if snap.Stale {
		return ui.ToolScope{}, refuseStale()
	}
	return scope, nil
}

func toggleNode(cmd *cobra.Command, session *app.Session, key string, enabled bool) (ui.BatchResult, error) {
	if err := loadTree(cmd, session); err != nil {
		return ui.BatchResult{}, err
	}
	return session.Console().SetNodeEnabled(cmd.Context(), strings.TrimSpace(key), enabled)
}

func nodeScope(cmd *cobra.Command, session *app.Session, key string) (ui.ToolScope, error) {
	if err := loadTree(cmd, session); err != nil {
		return ui.ToolScope{}, err
	}
	key = strings.TrimSpace(key)
	node, ok := session.Console().Tree().Find(key)
	if !ok {
		return ui.ToolScope{}, domain.Validation("tools.categorize", "unknown tree node "+key)
	}
	return node.Scope(), nil
}

// loadTree syncs the saved server page and every tool so tree keys resolve.
func loadTree(cmd *cobra.Command, session *app.Session) error {
	_, stale, err := session.TreeView(cmd.Context(), session.SavedQuery(), domain.ToolFilter{})
	if err != nil {
		return err
	}
	if stale {
		return refuseStale()
	}
	return nil
}

func refuseStale() error {
	return exitError{code: exitRemote, message: "management service unreachable; tools cannot be changed from a cached view"}
}

func newToolsCategoriesCmd(opts *cliOptions) *cobra.Command {
	var server uint
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List tool categories",
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

			categories, err := session.Client().ListToolCategories(cmd.Context(), domain.ServerID(server))
			if err != nil {
				return err
			}
			return p.emit(map[string][]string{"categories": categories}, func(w io.Writer) error {
				for _, category := range categories {
					if _, err := fmt.Fprintln(w, categoryLabel(category)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&server, "server", 0, "only categories of this server id")
	return cmd
}

func newToolsParamsCmd(opts *cliOptions) *cobra.Command {
	var argsRaw string
	cmd := &cobra.Command{
		Use:   "params ID",
		Short: "Show the parameters of a tool and optionally check arguments against them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseToolID(args[0])
			if err != nil {
				return err
			}
			var toolArgs map[string]any
			if cmd.Flags().Changed("args") {
				if err := json.Unmarshal([]byte(argsRaw), &toolArgs); err != nil {
					return usageError(fmt.Sprintf("--args must be a JSON object: %v", err))
				}
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

			if _, err := session.ToolsView(cmd.Context(), domain.ToolFilter{}); err != nil {
				return err
			}
			tool, ok := session.Console().Tools().Tool(id)
			if !ok {
				return domain.E(domain.CodeNotFound, "tools.params", fmt.Sprintf("tool %d", id), domain.ErrUnknownTool)
			}
			params, err := domain.ParseToolParameters(tool.Parameters)
			if err != nil {
				return domain.E(domain.CodeInternal, "tools.params", "unreadable parameter payload", err)
			}

			view := paramsView{ToolID: uint(tool.ID), Name: tool.Name, Parameters: params}
			if toolArgs != nil {
				if err := domain.ValidateToolArguments(tool.Parameters, toolArgs); err != nil {
					return err
				}
				valid := true
				view.ArgsValid = &valid
			}
			return p.emit(view, view.writeText)
		},
	}
	cmd.Flags().StringVar(&argsRaw, "args", "", "arguments as a JSON object to validate")
	return cmd
}
