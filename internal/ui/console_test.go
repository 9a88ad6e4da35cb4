package ui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui/uitest"
)

type recordingMetrics struct {
	domain.NoopMetrics
	treeStats []domain.TreeStats
}

func (m *recordingMetrics) SetTreeStats(stats domain.TreeStats) {
	m.treeStats = append(m.treeStats, stats)
}

func TestConsole_SyncBuildsCachedTree(t *testing.T) {
	remote := uitest.NewRemote(
		[]domain.Server{testServer(10, "alpha"), testServer(20, "beta")},
		[]domain.Tool{testTool(1, 10, "A", true), testTool(2, 20, "B", false), testTool(3, 30, "C", true)},
	)
	metrics := &recordingMetrics{}
	console := NewConsole(remote, nil, metrics, nil)

	require.NoError(t, console.Sync(context.Background()))
	tree := console.Tree()
	require.Len(t, tree.Servers, 2)
	require.Equal(t, 1, tree.Orphans)
	require.Same(t, tree, console.Tree(), "unchanged sources reuse the tree")
	require.Len(t, metrics.treeStats, 1)

	_, err := console.SetNodeEnabled(context.Background(), "category-20-B", true)
	require.NoError(t, err)
	rebuilt := console.Tree()
	require.NotSame(t, tree, rebuilt)
	require.Equal(t, ToggleOn, rebuilt.Servers[1].State())
}

func TestConsole_SyncReportsBothFailures(t *testing.T) {
	remote := uitest.NewRemote(nil, nil)
	remote.Fail(uitest.OpListServers, domain.Transport("server.list", errors.New("down")))
	remote.Fail(uitest.OpListTools, domain.Transport("tool.list", errors.New("down")))
	console := NewConsole(remote, nil, nil, nil)

	err := console.Sync(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.list")
	require.Contains(t, err.Error(), "tool.list")
	require.NotNil(t, console.Tree())
}

func TestConsole_SetNodeEnabledUnknownKey(t *testing.T) {
	console := NewConsole(uitest.NewRemote(nil, nil), nil, nil, nil)
	_, err := console.SetNodeEnabled(context.Background(), "server-1", true)
	require.True(t, domain.IsValidation(err))
}

func TestConsole_DiscoverReloadsTools(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "alpha")}, nil)
	remote.Discovered[10] = []domain.Tool{testTool(1, 10, "A", true), testTool(2, 10, "A", true)}
	console := NewConsole(remote, nil, nil, nil)
	require.NoError(t, console.Sync(context.Background()))
	require.Empty(t, console.Tools().Snapshot().Tools)

	res, err := console.DiscoverTools(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, res.ToolsCount)
	require.Len(t, console.Tools().Snapshot().Tools, 2)

	res, err = console.RefreshTools(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, res.ToolsCount)
	require.Len(t, console.Tools().Snapshot().Tools, 2)

	_, err = console.DiscoverTools(context.Background(), 99)
	require.True(t, domain.IsRemote(err))
}

func TestConsole_SetServerEnabled(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "alpha")}, nil)
	console := NewConsole(remote, nil, nil, nil)
	require.NoError(t, console.Sync(context.Background()))

	srv, err := console.SetServerEnabled(context.Background(), 10, false)
	require.NoError(t, err)
	require.False(t, srv.Enabled)
	require.False(t, console.Tree().Servers[0].Server.Enabled)
}
