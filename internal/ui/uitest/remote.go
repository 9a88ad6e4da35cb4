// Package uitest provides an in-memory collaborator for console tests.
package uitest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mcpdesk/internal/domain"
)

// Operation names accepted by Fail and HoldNext.
const (
	OpListServers      = "ListServers"
	OpGetServer        = "GetServer"
	OpCreateServer     = "CreateServer"
	OpUpdateServer     = "UpdateServer"
	OpDeleteServer     = "DeleteServer"
	OpToggleServer     = "ToggleServer"
	OpListServerTags   = "ListServerTags"
	OpDiscoverTools    = "DiscoverTools"
	OpRefreshTools     = "RefreshTools"
	OpTestConnection   = "TestConnection"
	OpListTools        = "ListTools"
	OpUpdateTool       = "UpdateTool"
	OpBatchUpdateTools = "BatchUpdateTools"
	OpListCategories   = "ListToolCategories"
)

// Call is one recorded invocation.
type Call struct {
	Op  string
	Arg any
}

// Gate blocks exactly one call to an operation until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed once the held call has arrived.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets the held call continue.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// Remote is an in-memory domain.Remote.
type Remote struct {
	mu       sync.Mutex
	servers  []domain.Server
	tools    []domain.Tool
	calls    []Call
	failures map[string]error
	gates    map[string][]*Gate
	nextID   domain.ServerID
	clock    time.Time
	// Discovered is what DiscoverTools adds for a server.
	Discovered map[domain.ServerID][]domain.Tool
}

func NewRemote(servers []domain.Server, tools []domain.Tool) *Remote {
	r := &Remote{
		servers:    make([]domain.Server, len(servers)),
		tools:      domain.CloneTools(tools),
		failures:   map[string]error{},
		gates:      map[string][]*Gate{},
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Discovered: map[domain.ServerID][]domain.Tool{},
	}
	for i, srv := range servers {
		r.servers[i] = srv.Clone()
		if srv.ID > r.nextID {
			r.nextID = srv.ID
		}
	}
	return r
}

// Fail makes every later call to op return err. A nil err clears the failure.
func (r *Remote) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

// HoldNext blocks the next call to op until the returned gate is released.
func (r *Remote) HoldNext(op string) *Gate {
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	r.mu.Lock()
	r.gates[op] = append(r.gates[op], g)
	r.mu.Unlock()
	return g
}

// Calls returns the recorded invocations of op, or of every op when op is empty.
func (r *Remote) Calls(op string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, call := range r.calls {
		if op == "" || call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Tool returns the remote copy of a tool.
func (r *Remote) Tool(id domain.ToolID) (domain.Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tool := range r.tools {
		if tool.ID == id {
			return tool.Clone(), true
		}
	}
	return domain.Tool{}, false
}

// SetTools replaces the remote tool collection.
func (r *Remote) SetTools(tools []domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = domain.CloneTools(tools)
}

// enter records the call, waits on a pending gate and returns any configured failure.
func (r *Remote) enter(ctx context.Context, op string, arg any) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Arg: arg})
	var gate *Gate
	if queue := r.gates[op]; len(queue) > 0 {
		gate = queue[0]
		r.gates[op] = queue[1:]
	}
	r.mu.Unlock()

	if gate != nil {
		close(gate.entered)
		select {
		case <-gate.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[op]
}

func (r *Remote) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *Remote) ListServers(ctx context.Context, req domain.ServerListRequest) (domain.ServerListResult, error) {
	if err := r.enter(ctx, OpListServers, req); err != nil {
		return domain.ServerListResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]domain.Server, 0, len(r.servers))
	search := strings.ToLower(req.Search)
	for _, srv := range r.servers {
		if search != "" && !strings.Contains(strings.ToLower(srv.Name), search) &&
			!strings.Contains(strings.ToLower(srv.Description), search) {
			continue
		}
		if req.Status != "" && srv.Status != req.Status {
			continue
		}
		if req.Enabled != nil && srv.Enabled != *req.Enabled {
			continue
		}
		matched = append(matched, srv.Clone())
	}
	before := func(a, b domain.Server) bool {
		switch req.OrderBy {
		case domain.SortName:
			return a.Name < b.Name
		case domain.SortUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if req.OrderDir == domain.SortDesc {
			return before(matched[j], matched[i])
		}
		return before(matched[i], matched[j])
	})

	start := (req.Page - 1) * req.Size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + req.Size
	if end > len(matched) {
		end = len(matched)
	}
	return domain.ServerListResult{Servers: matched[start:end], Total: len(matched)}, nil
}

func (r *Remote) findServerLocked(id domain.ServerID) int {
	for i, srv := range r.servers {
		if srv.ID == id {
			return i
		}
	}
	return -1
}

func (r *Remote) GetServer(ctx context.Context, id domain.ServerID) (domain.Server, error) {
	if err := r.enter(ctx, OpGetServer, id); err != nil {
		return domain.Server{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.findServerLocked(id)
	if idx < 0 {
		return domain.Server{}, domain.RemoteFailure("server.get", "server not found", 404)
	}
	return r.servers[idx].Clone(), nil
}

func (r *Remote) CreateServer(ctx context.Context, req domain.ServerCreateRequest) (domain.Server, error) {
	if err := r.enter(ctx, OpCreateServer, req); err != nil {
		return domain.Server{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.tick()
	srv := domain.Server{
		ID:          r.nextID,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		AuthType:    req.AuthType,
		AuthConfig:  req.AuthConfig,
		Status:      domain.StatusInactive,
		Enabled:     true,
		Tags:        domain.ParseTags(domain.JoinTags(req.Tags)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.servers = append(r.servers, srv)
	return srv.Clone(), nil
}

func (r *Remote) UpdateServer(ctx context.Context, id domain.ServerID, req domain.ServerUpdateRequest) (domain.Server, error) {
	if err := r.enter(ctx, OpUpdateServer, req); err != nil {
		return domain.Server{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.findServerLocked(id)
	if idx < 0 {
		return domain.Server{}, domain.RemoteFailure("server.update", "server not found", 404)
	}
	srv := &r.servers[idx]
	srv.Name = req.Name
	srv.Description = req.Description
	srv.URL = req.URL
	srv.AuthType = req.AuthType
	srv.AuthConfig = req.AuthConfig
	srv.Tags = domain.ParseTags(domain.JoinTags(req.Tags))
	if req.Enabled != nil {
		srv.Enabled = *req.Enabled
	}
	srv.UpdatedAt = r.tick()
	return srv.Clone(), nil
}

func (r *Remote) DeleteServer(ctx context.Context, id domain.ServerID) error {
	if err := r.enter(ctx, OpDeleteServer, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.findServerLocked(id)
	if idx < 0 {
		return domain.RemoteFailure("server.delete", "server not found", 404)
	}
	r.servers = append(r.servers[:idx], r.servers[idx+1:]...)
	kept := r.tools[:0]
	for _, tool := range r.tools {
		if tool.ServerID != id {
			kept = append(kept, tool)
		}
	}
	r.tools = kept
	return nil
}

func (r *Remote) ToggleServer(ctx context.Context, id domain.ServerID) (domain.Server, error) {
	if err := r.enter(ctx, OpToggleServer, id); err != nil {
		return domain.Server{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.findServerLocked(id)
	if idx < 0 {
		return domain.Server{}, domain.RemoteFailure("server.toggle", "server not found", 404)
	}
	r.servers[idx].Enabled = !r.servers[idx].Enabled
	r.servers[idx].UpdatedAt = r.tick()
	return r.servers[idx].Clone(), nil
}

func (r *Remote) ListServerTags(ctx context.Context) ([]string, error) {
	if err := r.enter(ctx, OpListServerTags, nil); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []string
	for _, srv := range r.servers {
		all = append(all, srv.Tags...)
	}
	tags := domain.ParseTags(strings.Join(all, ","))
	sort.Strings(tags)
	return tags, nil
}

func (r *Remote) DiscoverTools(ctx context.Context, id domain.ServerID) (domain.DiscoveryResult, error) {
	if err := r.enter(ctx, OpDiscoverTools, id); err != nil {
		return domain.DiscoveryResult{}, err
	}
	return r.discover(id, false)
}

func (r *Remote) RefreshTools(ctx context.Context, id domain.ServerID) (domain.DiscoveryResult, error) {
	if err := r.enter(ctx, OpRefreshTools, id); err != nil {
		return domain.DiscoveryResult{}, err
	}
	return r.discover(id, true)
}

func (r *Remote) discover(id domain.ServerID, replace bool) (domain.DiscoveryResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findServerLocked(id) < 0 {
		return domain.DiscoveryResult{}, domain.RemoteFailure("server.discover", "server not found", 404)
	}
	if replace {
		kept := r.tools[:0]
		for _, tool := range r.tools {
			if tool.ServerID != id {
				kept = append(kept, tool)
			}
		}
		r.tools = kept
	}
	found := r.Discovered[id]
	r.tools = append(r.tools, domain.CloneTools(found)...)
	return domain.DiscoveryResult{
		Success:    true,
		ToolsCount: len(found),
		Message:    fmt.Sprintf("discovered %d tools", len(found)),
	}, nil
}

func (r *Remote) TestConnection(ctx context.Context, req domain.ConnectionTestRequest) (bool, error) {
	if err := r.enter(ctx, OpTestConnection, req); err != nil {
		return false, err
	}
	return strings.HasPrefix(req.URL, "http"), nil
}

func (r *Remote) ListTools(ctx context.Context, req domain.ToolListRequest) (domain.ToolListResult, error) {
	if err := r.enter(ctx, OpListTools, req); err != nil {
		return domain.ToolListResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	enabled := req.Enabled.Bool()
	search := strings.ToLower(req.Search)
	matched := make([]domain.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		if req.ServerID != 0 && tool.ServerID != req.ServerID {
			continue
		}
		if req.Category != "" && tool.Category != req.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(tool.Name), search) {
			continue
		}
		if enabled != nil && tool.Enabled != *enabled {
			continue
		}
		matched = append(matched, tool.Clone())
	}
	size := req.Size
	if size <= 0 {
		size = len(matched)
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return domain.ToolListResult{Tools: matched[start:end], Total: len(matched)}, nil
}

func (r *Remote) UpdateTool(ctx context.Context, id domain.ToolID, req domain.ToolUpdateRequest) (domain.Tool, error) {
	if err := r.enter(ctx, OpUpdateTool, req); err != nil {
		return domain.Tool{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tools {
		if r.tools[i].ID != id {
			continue
		}
		if req.Enabled != nil {
			r.tools[i].Enabled = *req.Enabled
		}
		if req.Category != "" {
			r.tools[i].Category = req.Category
		}
		r.tools[i].UpdatedAt = r.tick()
		return r.tools[i].Clone(), nil
	}
	return domain.Tool{}, domain.RemoteFailure("tool.update", "tool not found", 404)
}

func (r *Remote) BatchUpdateTools(ctx context.Context, req domain.ToolBatchUpdateRequest) error {
	if err := r.enter(ctx, OpBatchUpdateTools, req); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[domain.ToolID]struct{}, len(req.ToolIDs))
	for _, id := range req.ToolIDs {
		ids[id] = struct{}{}
	}
	now := r.tick()
	for i := range r.tools {
		if _, ok := ids[r.tools[i].ID]; !ok {
			continue
		}
		if req.Enabled != nil {
			r.tools[i].Enabled = *req.Enabled
		}
		if req.Category != "" {
			r.tools[i].Category = req.Category
		}
		r.tools[i].UpdatedAt = now
	}
	return nil
}

func (r *Remote) ListToolCategories(ctx context.Context, serverID domain.ServerID) ([]string, error) {
	if err := r.enter(ctx, OpListCategories, serverID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, tool := range r.tools {
		if serverID != 0 && tool.ServerID != serverID {
			continue
		}
		if _, ok := seen[tool.Category]; ok {
			continue
		}
		seen[tool.Category] = struct{}{}
		out = append(out, tool.Category)
	}
	sort.Strings(out)
	return out, nil
}

var _ domain.Remote = (*Remote)(nil)
