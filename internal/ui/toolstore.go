package ui

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpdesk/internal/domain"
)

const toolsCollection = "tools"

// ToolSnapshot is a consistent view of the local tool collection.
// Tools must be treated as read-only.
type ToolSnapshot struct {
	Filter    domain.ToolFilter
	Tools     []domain.Tool
	Version   uint64
	Loading   bool
	Err       error
	Stale     bool
	FetchedAt time.Time
}

type pendingFlag struct {
	enabled bool
	token   uint64
}

// ToolStore owns the local tool collection: the last loaded copy of the remote records plus
// the enabled flags of mutations that have not resolved yet. Loads are last-request-wins and
// re-apply pending flags so an in-flight mutation is not undone by a concurrent reload.
type ToolStore struct {
	remote  domain.ToolRemote
	logger  *zap.Logger
	metrics domain.Metrics
	events  *EventHub
	now     func() time.Time

	mu        sync.Mutex
	seq       uint64
	filter    domain.ToolFilter
	tools     []domain.Tool
	index     map[domain.ToolID]int
	pending   map[domain.ToolID]pendingFlag
	tokens    uint64
	version   uint64
	loading   bool
	err       error
	stale     bool
	fetchedAt time.Time
}

func NewToolStore(remote domain.ToolRemote, logger *zap.Logger, metrics domain.Metrics, events *EventHub) *ToolStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	return &ToolStore{
		remote:  remote,
		logger:  logger.Named("tools"),
		metrics: metrics,
		events:  events,
		now:     time.Now,
		tools:   []domain.Tool{},
		index:   map[domain.ToolID]int{},
		pending: map[domain.ToolID]pendingFlag{},
	}
}

// Load replaces the collection with every tool matching filter.
func (s *ToolStore) Load(ctx context.Context, filter domain.ToolFilter) (ToolSnapshot, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.filter = filter
	s.loading = true
	s.mu.Unlock()

	tools, err := domain.AllTools(ctx, s.remote, filter)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.metrics.ObserveFetch(toolsCollection, domain.FetchSuperseded)
		return ToolSnapshot{}, domain.ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.err = err
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.metrics.ObserveFetch(toolsCollection, domain.FetchFailed)
		s.logger.Warn("tool load failed", zap.Error(err))
		s.events.Publish(EventSyncFailed, SyncFailedEvent{Collection: toolsCollection, Error: MapDomainError(err)})
		return snap, err
	}
	s.replaceLocked(tools)
	s.err = nil
	s.stale = false
	s.fetchedAt = s.now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.ObserveFetch(toolsCollection, domain.FetchApplied)
	s.events.Publish(EventToolsUpdated, ToolsUpdatedEvent{Count: len(snap.Tools)})
	return snap, nil
}

// Reload re-runs the last load filter.
func (s *ToolStore) Reload(ctx context.Context) (ToolSnapshot, error) {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	return s.Load(ctx, filter)
}

// Restore seeds the collection from a cached copy before the first successful load.
func (s *ToolStore) Restore(filter domain.ToolFilter, tools []domain.Tool, fetchedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version > 0 && !s.stale {
		return false
	}
	s.filter = filter
	s.replaceLocked(tools)
	s.stale = true
	s.fetchedAt = fetchedAt
	return true
}

func (s *ToolStore) replaceLocked(tools []domain.Tool) {
	next := make([]domain.Tool, len(tools))
	index := make(map[domain.ToolID]int, len(tools))
	for i, tool := range tools {
		next[i] = tool.Clone()
		if flag, ok := s.pending[tool.ID]; ok {
			next[i].Enabled = flag.enabled
		}
		index[tool.ID] = i
	}
	s.tools = next
	s.index = index
	s.version++
}

// Snapshot returns the current collection.
func (s *ToolStore) Snapshot() ToolSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ToolStore) snapshotLocked() ToolSnapshot {
	return ToolSnapshot{
		Filter:    s.filter,
		Tools:     s.tools,
		Version:   s.version,
		Loading:   s.loading,
		Err:       s.err,
		Stale:     s.stale,
		FetchedAt: s.fetchedAt,
	}
}

// Tool returns the local copy of a tool.
func (s *ToolStore) Tool(id domain.ToolID) (domain.Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[id]
	if !ok {
		return domain.Tool{}, false
	}
	return s.tools[idx].Clone(), true
}

// Resolve returns the ids of the tools currently covered by scope, in collection order.
func (s *ToolStore) Resolve(scope ToolScope) []domain.ToolID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []domain.ToolID
	for _, tool := range s.tools {
		if scope.Covers(tool) {
			ids = append(ids, tool.ID)
		}
	}
	return ids
}

// flagChange records what a mutation did so it can be confirmed or undone.
type flagChange struct {
	token   uint64
	enabled bool
	prev    map[domain.ToolID]bool
}

// beginFlags sets enabled on ids and marks them pending. Unknown ids are skipped.
func (s *ToolStore) beginFlags(ids []domain.ToolID, enabled bool) flagChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens++
	change := flagChange{token: s.tokens, enabled: enabled, prev: make(map[domain.ToolID]bool, len(ids))}
	s.setFlagsLocked(ids, func(id domain.ToolID, cur bool) bool {
		change.prev[id] = cur
		s.pending[id] = pendingFlag{enabled: enabled, token: change.token}
		return enabled
	})
	return change
}

// commitFlags re-asserts the value of a successful mutation.
func (s *ToolStore) commitFlags(change flagChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setFlagsLocked(s.changeIDs(change), func(id domain.ToolID, _ bool) bool {
		s.clearPendingLocked(id, change.token)
		return change.enabled
	})
}

// rollbackFlags restores the values seen before a failed mutation.
func (s *ToolStore) rollbackFlags(change flagChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setFlagsLocked(s.changeIDs(change), func(id domain.ToolID, _ bool) bool {
		s.clearPendingLocked(id, change.token)
		return change.prev[id]
	})
}

func (s *ToolStore) changeIDs(change flagChange) []domain.ToolID {
	ids := make([]domain.ToolID, 0, len(change.prev))
	for id := range change.prev {
		ids = append(ids, id)
	}
	return ids
}

func (s *ToolStore) clearPendingLocked(id domain.ToolID, token uint64) {
	if flag, ok := s.pending[id]; ok && flag.token == token {
		delete(s.pending, id)
	}
}

// setFlagsLocked rewrites the enabled flag of ids through fn, copying the collection first.
func (s *ToolStore) setFlagsLocked(ids []domain.ToolID, fn func(id domain.ToolID, cur bool) bool) {
	next := make([]domain.Tool, len(s.tools))
	copy(next, s.tools)
	changed := false
	for _, id := range ids {
		idx, ok := s.index[id]
		if !ok {
			continue
		}
		value := fn(id, next[idx].Enabled)
		if next[idx].Enabled != value {
			next[idx].Enabled = value
			changed = true
		}
	}
	if changed {
		s.tools = next
		s.version++
	}
}

// setCategories moves ids to category and returns the categories they had. Unknown ids are
// skipped.
func (s *ToolStore) setCategories(ids []domain.ToolID, category string) map[domain.ToolID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := make(map[domain.ToolID]string, len(ids))
	next := make([]domain.Tool, len(s.tools))
	copy(next, s.tools)
	for _, id := range ids {
		idx, ok := s.index[id]
		if !ok {
			continue
		}
		prev[id] = next[idx].Category
		next[idx].Category = category
	}
	s.tools = next
	s.version++
	return prev
}

// restoreCategories undoes setCategories.
func (s *ToolStore) restoreCategories(prev map[domain.ToolID]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.Tool, len(s.tools))
	copy(next, s.tools)
	for id, category := range prev {
		if idx, ok := s.index[id]; ok {
			next[idx].Category = category
		}
	}
	s.tools = next
	s.version++
}

// Apply replaces the local copy of a tool with a record returned by the remote. The record
// is the latest acknowledged state, so it overrides any pending flag for display.
func (s *ToolStore) Apply(tool domain.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[tool.ID]
	if !ok {
		return
	}
	next := make([]domain.Tool, len(s.tools))
	copy(next, s.tools)
	next[idx] = tool.Clone()
	s.tools = next
	s.version++
}
