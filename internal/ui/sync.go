package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpdesk/internal/domain"
)

const serversCollection = "servers"

// ServerPage is a consistent snapshot of the synchronized server page.
// Servers must be treated as read-only.
type ServerPage struct {
	// Query is the query whose result is shown.
	Query domain.ServerQuery
	// Pending is the most recently issued query; it differs from Query while a fetch is in flight.
	Pending domain.ServerQuery
	Servers []domain.Server
	Total   int
	Version uint64
	Loading bool
	Err     error
	// Stale marks a page restored from the view cache rather than fetched.
	Stale     bool
	FetchedAt time.Time
}

// Synchronizer mirrors one page of the remote server collection.
// The visible page always belongs to the most recently issued query.
type Synchronizer struct {
	remote  domain.ServerRemote
	logger  *zap.Logger
	metrics domain.Metrics
	events  *EventHub
	now     func() time.Time

	mu        sync.Mutex
	seq       uint64
	pending   domain.ServerQuery
	applied   domain.ServerQuery
	servers   []domain.Server
	total     int
	version   uint64
	loading   bool
	err       error
	stale     bool
	fetchedAt time.Time
}

func NewSynchronizer(remote domain.ServerRemote, logger *zap.Logger, metrics domain.Metrics, events *EventHub) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	initial := domain.DefaultServerQuery()
	return &Synchronizer{
		remote:  remote,
		logger:  logger.Named("sync"),
		metrics: metrics,
		events:  events,
		now:     time.Now,
		pending: initial,
		applied: initial,
		servers: []domain.Server{},
	}
}

// Fetch issues q and waits for its result. Invalid queries are rejected without touching
// the current state. If a newer fetch is issued before this one resolves, the result is
// discarded and ErrSuperseded is returned.
func (s *Synchronizer) Fetch(ctx context.Context, q domain.ServerQuery) (ServerPage, error) {
	if err := q.Validate(); err != nil {
		s.metrics.ObserveFetch(serversCollection, domain.FetchRejected)
		return s.Snapshot(), err
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending = q
	s.loading = true
	s.mu.Unlock()

	res, err := s.remote.ListServers(ctx, q.Request())

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.metrics.ObserveFetch(serversCollection, domain.FetchSuperseded)
		s.logger.Debug("discarding superseded server page", zap.Uint64("seq", seq), zap.Error(err))
		return ServerPage{}, domain.ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.err = err
		page := s.snapshotLocked()
		s.mu.Unlock()

		s.metrics.ObserveFetch(serversCollection, domain.FetchFailed)
		s.logger.Warn("server page fetch failed", zap.Int("page", q.Page), zap.Error(err))
		s.events.Publish(EventSyncFailed, SyncFailedEvent{Collection: serversCollection, Error: MapDomainError(err)})
		return page, err
	}

	servers := make([]domain.Server, len(res.Servers))
	for i, srv := range res.Servers {
		servers[i] = srv.Clone()
	}
	s.servers = servers
	s.total = res.Total
	s.applied = q
	s.err = nil
	s.stale = false
	s.fetchedAt = s.now()
	s.version++
	page := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.ObserveFetch(serversCollection, domain.FetchApplied)
	s.events.Publish(EventServersUpdated, ServersUpdatedEvent{Query: q, Total: res.Total, Count: len(servers)})
	return page, nil
}

// Update applies a query transition to the most recently issued query and fetches the result.
func (s *Synchronizer) Update(ctx context.Context, transition func(domain.ServerQuery) domain.ServerQuery) (ServerPage, error) {
	return s.Fetch(ctx, transition(s.Query()))
}

// Refresh re-fetches the most recently issued query.
func (s *Synchronizer) Refresh(ctx context.Context) (ServerPage, error) {
	return s.Fetch(ctx, s.Query())
}

// Query returns the most recently issued query.
func (s *Synchronizer) Query() domain.ServerQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Snapshot returns the current page state.
func (s *Synchronizer) Snapshot() ServerPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() ServerPage {
	return ServerPage{
		Query:     s.applied,
		Pending:   s.pending,
		Servers:   s.servers,
		Total:     s.total,
		Version:   s.version,
		Loading:   s.loading,
		Err:       s.err,
		Stale:     s.stale,
		FetchedAt: s.fetchedAt,
	}
}

// Server looks up a server on the visible page.
func (s *Synchronizer) Server(id domain.ServerID) (domain.Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		if srv.ID == id {
			return srv.Clone(), true
		}
	}
	return domain.Server{}, false
}

// PatchServer applies fn to the server with id on the visible page. It reports whether the
// server was present. The page slice is replaced, never modified in place.
func (s *Synchronizer) PatchServer(id domain.ServerID, fn func(*domain.Server)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, srv := range s.servers {
		if srv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]domain.Server, len(s.servers))
	copy(next, s.servers)
	patched := next[idx].Clone()
	fn(&patched)
	patched.ID = id
	next[idx] = patched
	s.servers = next
	s.version++
	return true
}

// Restore seeds the page from a cached snapshot. It only takes effect before the first
// successful fetch.
func (s *Synchronizer) Restore(q domain.ServerQuery, servers []domain.Server, total int, fetchedAt time.Time) bool {
	if err := q.Validate(); err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version > 0 && !s.stale {
		return false
	}
	restored := make([]domain.Server, len(servers))
	for i, srv := range servers {
		restored[i] = srv.Clone()
	}
	s.servers = restored
	s.total = total
	s.applied = q
	if s.seq == 0 {
		s.pending = q
	}
	s.stale = true
	s.fetchedAt = fetchedAt
	s.version++
	return true
}

// IsSuperseded reports whether err means a newer fetch replaced this one.
func IsSuperseded(err error) bool {
	return errors.Is(err, domain.ErrSuperseded)
}
