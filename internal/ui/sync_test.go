package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui/uitest"
)

func fixtureServers() []domain.Server {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"charlie", "alpha", "bravo"}
	servers := make([]domain.Server, len(names))
	for i, name := range names {
		servers[i] = domain.Server{
			ID:        domain.ServerID(i + 1),
			Name:      name,
			Status:    domain.StatusActive,
			Enabled:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return servers
}

func serverNames(page ServerPage) []string {
	names := make([]string, len(page.Servers))
	for i, s := range page.Servers {
		names[i] = s.Name
	}
	return names
}

func waitGate(t *testing.T, gate *uitest.Gate) {
	t.Helper()
	select {
	case <-gate.Entered():
	case <-time.After(2 * time.Second):
		t.Fatal("held call never arrived")
	}
}

func TestSynchronizer_FetchReplacesPage(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)

	page, err := sync.Fetch(context.Background(), domain.DefaultServerQuery().WithSort(domain.SortName, domain.SortAsc))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "bravo", "charlie"}, serverNames(page))
	require.Equal(t, 3, page.Total)
	require.False(t, page.Loading)
	require.NoError(t, page.Err)
	require.Equal(t, uint64(1), page.Version)
}

func TestSynchronizer_RejectsInvalidQueryWithoutRemoteCall(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)

	before := sync.Query()
	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery().WithPageSize(0))
	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
	require.Empty(t, remote.Calls(uitest.OpListServers))
	require.Equal(t, before, sync.Query())
	require.False(t, sync.Snapshot().Loading)
}

// The later-issued query wins even when the earlier response arrives last.
func TestSynchronizer_LastRequestWins(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	ctx := context.Background()

	asc := domain.DefaultServerQuery().WithSort(domain.SortName, domain.SortAsc)
	desc := asc.WithSort(domain.SortName, domain.SortDesc)

	gate := remote.HoldNext(uitest.OpListServers)
	firstErr := make(chan error, 1)
	go func() {
		_, err := sync.Fetch(ctx, asc)
		firstErr <- err
	}()
	waitGate(t, gate)
	require.True(t, sync.Snapshot().Loading)

	page, err := sync.Fetch(ctx, desc)
	require.NoError(t, err)
	require.Equal(t, []string{"charlie", "bravo", "alpha"}, serverNames(page))

	gate.Release()
	require.ErrorIs(t, <-firstErr, domain.ErrSuperseded)

	final := sync.Snapshot()
	require.Equal(t, desc, final.Query)
	require.Equal(t, []string{"charlie", "bravo", "alpha"}, serverNames(final))
	require.False(t, final.Loading)
}

func TestSynchronizer_LoadingStaysWhileLatestIsPending(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	ctx := context.Background()

	q1 := domain.DefaultServerQuery()
	q2 := q1.WithSearch("alpha")

	first := remote.HoldNext(uitest.OpListServers)
	second := remote.HoldNext(uitest.OpListServers)
	done := make(chan error, 2)
	go func() { _, err := sync.Fetch(ctx, q1); done <- err }()
	waitGate(t, first)
	go func() { _, err := sync.Fetch(ctx, q2); done <- err }()
	waitGate(t, second)

	first.Release()
	require.ErrorIs(t, <-done, domain.ErrSuperseded)
	snap := sync.Snapshot()
	require.True(t, snap.Loading)
	require.Equal(t, uint64(0), snap.Version)
	require.Equal(t, q2, snap.Pending)

	second.Release()
	require.NoError(t, <-done)
	snap = sync.Snapshot()
	require.False(t, snap.Loading)
	require.Equal(t, []string{"alpha"}, serverNames(snap))
}

func TestSynchronizer_FailureKeepsLastGoodPage(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	events := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := events.Subscribe(ctx)
	sync := NewSynchronizer(remote, nil, nil, events)

	good, err := sync.Fetch(ctx, domain.DefaultServerQuery())
	require.NoError(t, err)

	boom := domain.Transport("server.list", errors.New("connection refused"))
	remote.Fail(uitest.OpListServers, boom)
	page, err := sync.Update(ctx, domain.ServerQuery.NextPage)
	require.ErrorIs(t, err, boom)
	require.Equal(t, good.Servers, page.Servers)
	require.Equal(t, good.Query, page.Query)
	require.Equal(t, 2, page.Pending.Page)
	require.ErrorIs(t, page.Err, boom)

	require.Equal(t, EventServersUpdated, (<-sub).Name)
	failed := <-sub
	require.Equal(t, EventSyncFailed, failed.Name)
	require.Equal(t, ErrCodeUnreachable, failed.Payload.(SyncFailedEvent).Error.Code)

	remote.Fail(uitest.OpListServers, nil)
	page, err = sync.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Err)
	require.Equal(t, 2, page.Query.Page)
}

func TestSynchronizer_UpdateAppliesTransitionToIssuedQuery(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	ctx := context.Background()

	_, err := sync.Update(ctx, func(q domain.ServerQuery) domain.ServerQuery { return q.WithPageSize(2) })
	require.NoError(t, err)
	page, err := sync.Update(ctx, domain.ServerQuery.NextPage)
	require.NoError(t, err)
	require.Equal(t, 2, page.Query.Page)
	require.Equal(t, 2, page.Query.Size)
	require.Len(t, page.Servers, 1)

	calls := remote.Calls(uitest.OpListServers)
	require.Len(t, calls, 2)
	require.Equal(t, 2, calls[1].Arg.(domain.ServerListRequest).Page)
}

func TestSynchronizer_PatchServerCopiesOnWrite(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	before, err := sync.Fetch(context.Background(), domain.DefaultServerQuery())
	require.NoError(t, err)

	require.True(t, sync.PatchServer(2, func(s *domain.Server) { s.Enabled = false }))
	require.False(t, sync.PatchServer(42, func(s *domain.Server) { s.Enabled = false }))

	for _, s := range before.Servers {
		require.True(t, s.Enabled, "earlier snapshot must not change")
	}
	got, ok := sync.Server(2)
	require.True(t, ok)
	require.False(t, got.Enabled)
	require.Greater(t, sync.Snapshot().Version, before.Version)
}

func TestSynchronizer_RestoreOnlyBeforeFirstFetch(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	cached := []domain.Server{{ID: 9, Name: "cached"}}
	q := domain.DefaultServerQuery().WithPage(3)

	require.True(t, sync.Restore(q, cached, 21, time.Unix(0, 0)))
	snap := sync.Snapshot()
	require.True(t, snap.Stale)
	require.Equal(t, q, snap.Query)
	require.Equal(t, q, sync.Query())
	require.Equal(t, 21, snap.Total)

	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery())
	require.NoError(t, err)
	require.False(t, sync.Snapshot().Stale)
	require.False(t, sync.Restore(q, cached, 1, time.Unix(0, 0)))
}
