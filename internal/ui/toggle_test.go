package ui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui/uitest"
)

func TestToggleReconciler_DisableCommits(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery())
	require.NoError(t, err)
	toggle := NewToggleReconciler(sync, remote, nil, nil, nil)

	gate := remote.HoldNext(uitest.OpToggleServer)
	done := make(chan error, 1)
	go func() {
		_, err := toggle.SetEnabled(context.Background(), 2, false)
		done <- err
	}()
	waitGate(t, gate)
	optimistic, _ := sync.Server(2)
	require.False(t, optimistic.Enabled)

	gate.Release()
	require.NoError(t, <-done)
	settled, _ := sync.Server(2)
	require.False(t, settled.Enabled)
	require.False(t, settled.UpdatedAt.Equal(fixtureServers()[1].UpdatedAt), "remote record replaces the local one")
}

func TestToggleReconciler_RollsBackOnFailure(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery())
	require.NoError(t, err)
	toggle := NewToggleReconciler(sync, remote, nil, nil, nil)

	boom := domain.Transport("server.toggle", errors.New("reset by peer"))
	remote.Fail(uitest.OpToggleServer, boom)
	_, err = toggle.SetEnabled(context.Background(), 1, false)
	require.ErrorIs(t, err, boom)

	got, _ := sync.Server(1)
	require.True(t, got.Enabled)
}

func TestToggleReconciler_NoopWhenAlreadySet(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery())
	require.NoError(t, err)
	toggle := NewToggleReconciler(sync, remote, nil, nil, nil)

	srv, err := toggle.SetEnabled(context.Background(), 3, true)
	require.NoError(t, err)
	require.True(t, srv.Enabled)
	require.Empty(t, remote.Calls(uitest.OpToggleServer))
}

func TestToggleReconciler_StalePageFlipsBack(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery())
	require.NoError(t, err)
	toggle := NewToggleReconciler(sync, remote, nil, nil, nil)

	// Another client disables server 2 after the page was fetched.
	changed, err := remote.ToggleServer(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, changed.Enabled)
	cached, _ := sync.Server(2)
	require.True(t, cached.Enabled)

	srv, err := toggle.SetEnabled(context.Background(), 2, false)
	require.NoError(t, err)
	require.False(t, srv.Enabled)

	actual, err := remote.GetServer(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, actual.Enabled)
	local, _ := sync.Server(2)
	require.False(t, local.Enabled)
	require.Len(t, remote.Calls(uitest.OpToggleServer), 3)
}

func TestToggleReconciler_ServerOffPageUsesRemoteRecord(t *testing.T) {
	remote := uitest.NewRemote(fixtureServers(), nil)
	sync := NewSynchronizer(remote, nil, nil, nil)
	_, err := sync.Fetch(context.Background(), domain.DefaultServerQuery().WithSearch("alpha"))
	require.NoError(t, err)
	toggle := NewToggleReconciler(sync, remote, nil, nil, nil)

	srv, err := toggle.SetEnabled(context.Background(), 3, false)
	require.NoError(t, err)
	require.False(t, srv.Enabled)
	require.Len(t, remote.Calls(uitest.OpGetServer), 1)
	require.Len(t, remote.Calls(uitest.OpToggleServer), 1)

	_, err = toggle.SetEnabled(context.Background(), 404, false)
	require.Error(t, err)
	require.True(t, domain.IsRemote(err))
}
