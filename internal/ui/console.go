package ui

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcpdesk/internal/domain"
)

// Console composes the server page, the tool collection and the mutators, and serves the
// tree derived from them.
type Console struct {
	remote  domain.Remote
	logger  *zap.Logger
	metrics domain.Metrics
	events  *EventHub

	servers *Synchronizer
	tools   *ToolStore
	batch   *BatchMutator
	toggle  *ToggleReconciler

	treeMu      sync.Mutex
	tree        *Tree
	treeServers uint64
	treeTools   uint64
}

func NewConsole(remote domain.Remote, logger *zap.Logger, metrics domain.Metrics, events *EventHub) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	if events == nil {
		events = NewEventHub()
	}
	logger = logger.Named("console")
	servers := NewSynchronizer(remote, logger, metrics, events)
	tools := NewToolStore(remote, logger, metrics, events)
	return &Console{
		remote:  remote,
		logger:  logger,
		metrics: metrics,
		events:  events,
		servers: servers,
		tools:   tools,
		batch:   NewBatchMutator(tools, remote, logger, metrics, events),
		toggle:  NewToggleReconciler(servers, remote, logger, metrics, events),
	}
}

func (c *Console) Servers() *Synchronizer { return c.servers }
func (c *Console) Tools() *ToolStore      { return c.tools }
func (c *Console) Events() *EventHub      { return c.events }

// Sync refreshes the server page and reloads the tool collection concurrently. A superseded
// fetch is not reported as a failure.
func (c *Console) Sync(ctx context.Context) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		errAll error
	)
	record := func(err error) {
		if err == nil || IsSuperseded(err) {
			return
		}
		mu.Lock()
		errAll = multierr.Append(errAll, err)
		mu.Unlock()
	}
	g.Go(func() error {
		_, err := c.servers.Refresh(ctx)
		record(err)
		return nil
	})
	g.Go(func() error {
		_, err := c.tools.Reload(ctx)
		record(err)
		return nil
	})
	_ = g.Wait()
	return errAll
}

// SetQuery applies a query transition and fetches the resulting page.
func (c *Console) SetQuery(ctx context.Context, transition func(domain.ServerQuery) domain.ServerQuery) (ServerPage, error) {
	return c.servers.Update(ctx, transition)
}

// Tree returns the tree for the current page and tool collection. It is rebuilt only when
// either source collection changed since the last call.
func (c *Console) Tree() *Tree {
	page := c.servers.Snapshot()
	tools := c.tools.Snapshot()

	c.treeMu.Lock()
	defer c.treeMu.Unlock()
	if c.tree != nil && c.treeServers == page.Version && c.treeTools == tools.Version {
		return c.tree
	}
	c.tree = BuildTree(page.Servers, tools.Tools)
	c.treeServers = page.Version
	c.treeTools = tools.Version
	c.metrics.SetTreeStats(c.tree.Stats())
	return c.tree
}

// SetToolsEnabled toggles every tool in scope.
func (c *Console) SetToolsEnabled(ctx context.Context, scope ToolScope, enabled bool) (BatchResult, error) {
	return c.batch.SetEnabled(ctx, scope, enabled)
}

// SetNodeEnabled toggles the tools under the tree node with key.
func (c *Console) SetNodeEnabled(ctx context.Context, key string, enabled bool) (BatchResult, error) {
	node, ok := c.Tree().Find(key)
	if !ok {
		return BatchResult{}, domain.Validation("console.set_node_enabled", "unknown tree node "+key)
	}
	return c.batch.SetEnabled(ctx, node.Scope(), enabled)
}

// MoveTools moves every tool in scope to category.
func (c *Console) MoveTools(ctx context.Context, scope ToolScope, category string) (BatchResult, error) {
	return c.batch.SetCategory(ctx, scope, category)
}

// SetServerEnabled sets a server's own enabled flag.
func (c *Console) SetServerEnabled(ctx context.Context, id domain.ServerID, enabled bool) (domain.Server, error) {
	return c.toggle.SetEnabled(ctx, id, enabled)
}

// DiscoverTools asks the collaborator to enumerate a server's tools and reloads the tool collection.
func (c *Console) DiscoverTools(ctx context.Context, id domain.ServerID) (domain.DiscoveryResult, error) {
	return c.rediscover(ctx, "console.discover_tools", id, c.remote.DiscoverTools)
}

// RefreshTools replaces a server's tools with a fresh discovery run and reloads the tool collection.
func (c *Console) RefreshTools(ctx context.Context, id domain.ServerID) (domain.DiscoveryResult, error) {
	return c.rediscover(ctx, "console.refresh_tools", id, c.remote.RefreshTools)
}

func (c *Console) rediscover(
	ctx context.Context,
	op string,
	id domain.ServerID,
	call func(context.Context, domain.ServerID) (domain.DiscoveryResult, error),
) (domain.DiscoveryResult, error) {
	res, err := call(ctx, id)
	if err != nil {
		return domain.DiscoveryResult{}, domain.Wrap(domain.CodeInternal, op, err)
	}
	if _, err := c.tools.Reload(ctx); err != nil && !IsSuperseded(err) {
		c.logger.Warn("tool reload after discovery failed", zap.Uint("server_id", uint(id)), zap.Error(err))
	}
	return res, nil
}
