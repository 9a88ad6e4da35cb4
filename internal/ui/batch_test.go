package ui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/ui/uitest"
)

func enabledFlags(store *ToolStore) map[domain.ToolID]bool {
	flags := map[domain.ToolID]bool{}
	for _, tl := range store.Snapshot().Tools {
		flags[tl.ID] = tl.Enabled
	}
	return flags
}

func loadedStore(t *testing.T, remote *uitest.Remote) *ToolStore {
	t.Helper()
	store := NewToolStore(remote, nil, nil, nil)
	_, err := store.Load(context.Background(), domain.ToolFilter{})
	require.NoError(t, err)
	return store
}

func scenarioTools() []domain.Tool {
	return []domain.Tool{
		testTool(1, 10, "A", false),
		testTool(2, 10, "A", false),
	}
}

func TestBatchMutator_CategoryEnableCommits(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	mutator := NewBatchMutator(store, remote, nil, nil, nil)

	gate := remote.HoldNext(uitest.OpBatchUpdateTools)
	done := make(chan error, 1)
	go func() {
		_, err := mutator.SetEnabled(context.Background(), CategoryScope(10, "A"), true)
		done <- err
	}()
	waitGate(t, gate)
	require.Equal(t, map[domain.ToolID]bool{1: true, 2: true}, enabledFlags(store), "optimistic flip must be visible before the remote answers")

	gate.Release()
	require.NoError(t, <-done)
	require.Equal(t, map[domain.ToolID]bool{1: true, 2: true}, enabledFlags(store))

	calls := remote.Calls(uitest.OpBatchUpdateTools)
	require.Len(t, calls, 1)
	req := calls[0].Arg.(domain.ToolBatchUpdateRequest)
	require.ElementsMatch(t, []domain.ToolID{1, 2}, req.ToolIDs)
	require.True(t, *req.Enabled)
}

func TestBatchMutator_CategoryEnableRollsBack(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	events := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := events.Subscribe(ctx)
	mutator := NewBatchMutator(store, remote, nil, nil, events)

	boom := domain.RemoteFailure("tool.batch_update", "database locked", 500)
	remote.Fail(uitest.OpBatchUpdateTools, boom)
	gate := remote.HoldNext(uitest.OpBatchUpdateTools)
	done := make(chan error, 1)
	go func() {
		_, err := mutator.SetEnabled(ctx, CategoryScope(10, "A"), true)
		done <- err
	}()
	waitGate(t, gate)
	require.Equal(t, map[domain.ToolID]bool{1: true, 2: true}, enabledFlags(store))

	gate.Release()
	err := <-done
	require.ErrorIs(t, err, boom)
	require.True(t, domain.IsRemote(err))
	require.Equal(t, map[domain.ToolID]bool{1: false, 2: false}, enabledFlags(store))

	evt := <-sub
	require.Equal(t, EventMutationFailed, evt.Name)
	payload := evt.Payload.(MutationEvent)
	require.Equal(t, domain.MutationCategory, payload.Kind)
	require.Equal(t, ErrCodeRemoteRejected, payload.Error.Code)
}

func TestBatchMutator_RollbackRestoresMixedValues(t *testing.T) {
	tools := []domain.Tool{
		testTool(1, 10, "A", true),
		testTool(2, 10, "B", false),
		testTool(3, 10, "A", false),
		testTool(4, 20, "A", true),
	}
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s"), testServer(20, "t")}, tools)
	store := loadedStore(t, remote)
	mutator := NewBatchMutator(store, remote, nil, nil, nil)
	remote.Fail(uitest.OpBatchUpdateTools, domain.Transport("tool.batch_update", errors.New("timeout")))

	_, err := mutator.SetEnabled(context.Background(), ServerScope(10), false)
	require.Error(t, err)
	require.True(t, domain.IsTransport(err))
	require.Equal(t, map[domain.ToolID]bool{1: true, 2: false, 3: false, 4: true}, enabledFlags(store))
}

// The scope is resolved against the collection at call time, not against an older tree.
func TestBatchMutator_ResolvesScopeAtCallTime(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	console := BuildTree([]domain.Server{testServer(10, "s")}, store.Snapshot().Tools)
	rendered, ok := console.Find("category-10-A")
	require.True(t, ok)
	total, _ := rendered.Counts()
	require.Equal(t, 2, total)

	remote.SetTools([]domain.Tool{
		testTool(2, 10, "A", false),
		testTool(3, 10, "A", false),
		testTool(5, 10, "A", false),
	})
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	mutator := NewBatchMutator(store, remote, nil, nil, nil)
	res, err := mutator.SetEnabled(context.Background(), rendered.Scope(), true)
	require.NoError(t, err)
	require.Equal(t, []domain.ToolID{2, 3, 5}, res.ToolIDs)

	req := remote.Calls(uitest.OpBatchUpdateTools)[0].Arg.(domain.ToolBatchUpdateRequest)
	require.Equal(t, []domain.ToolID{2, 3, 5}, req.ToolIDs)
}

func TestBatchMutator_EmptyScopeIsRejectedLocally(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	mutator := NewBatchMutator(store, remote, nil, nil, nil)

	_, err := mutator.SetEnabled(context.Background(), CategoryScope(10, "missing"), true)
	require.ErrorIs(t, err, domain.ErrEmptyScope)
	require.True(t, domain.IsValidation(err))

	_, err = mutator.SetEnabled(context.Background(), ToolScopeOf(99), true)
	require.ErrorIs(t, err, domain.ErrUnknownTool)

	require.Empty(t, remote.Calls(uitest.OpBatchUpdateTools))
	require.Empty(t, remote.Calls(uitest.OpUpdateTool))
}

func TestBatchMutator_SingleToolUsesUpdateEndpoint(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	mutator := NewBatchMutator(store, remote, nil, nil, nil)

	_, err := mutator.SetEnabled(context.Background(), ToolScopeOf(2), true)
	require.NoError(t, err)
	require.Len(t, remote.Calls(uitest.OpUpdateTool), 1)
	require.Empty(t, remote.Calls(uitest.OpBatchUpdateTools))

	got, ok := store.Tool(2)
	require.True(t, ok)
	require.True(t, got.Enabled)
	require.False(t, got.UpdatedAt.IsZero(), "the returned record is applied")
}

// Overlapping toggles: local state reflects the later-resolving call.
func TestBatchMutator_OverlappingCallsLaterResolutionWins(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	mutator := NewBatchMutator(store, remote, nil, nil, nil)
	ctx := context.Background()

	categoryGate := remote.HoldNext(uitest.OpBatchUpdateTools)
	categoryDone := make(chan error, 1)
	go func() {
		_, err := mutator.SetEnabled(ctx, CategoryScope(10, "A"), true)
		categoryDone <- err
	}()
	waitGate(t, categoryGate)

	_, err := mutator.SetEnabled(ctx, ToolScopeOf(1), false)
	require.NoError(t, err)
	require.Equal(t, map[domain.ToolID]bool{1: false, 2: true}, enabledFlags(store))

	categoryGate.Release()
	require.NoError(t, <-categoryDone)
	require.Equal(t, map[domain.ToolID]bool{1: true, 2: true}, enabledFlags(store))
}

func TestBatchMutator_CompletesWhenCallerCancels(t *testing.T) {
	remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, scenarioTools())
	store := loadedStore(t, remote)
	mutator := NewBatchMutator(store, remote, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	gate := remote.HoldNext(uitest.OpBatchUpdateTools)
	done := make(chan error, 1)
	go func() {
		_, err := mutator.SetEnabled(ctx, CategoryScope(10, "A"), true)
		done <- err
	}()
	waitGate(t, gate)
	cancel()
	gate.Release()

	require.NoError(t, <-done)
	remoteTool, _ := remote.Tool(1)
	require.True(t, remoteTool.Enabled)
}

func categories(store *ToolStore) map[domain.ToolID]string {
	out := map[domain.ToolID]string{}
	for _, tl := range store.Snapshot().Tools {
		out[tl.ID] = tl.Category
	}
	return out
}

func TestBatchMutator_SetCategory(t *testing.T) {
	tools := []domain.Tool{
		testTool(1, 10, "A", true),
		testTool(2, 10, "A", false),
		testTool(3, 10, "B", true),
	}

	t.Run("category scope uses batch update", func(t *testing.T) {
		remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, tools)
		store := loadedStore(t, remote)
		mutator := NewBatchMutator(store, remote, nil, nil, nil)

		gate := remote.HoldNext(uitest.OpBatchUpdateTools)
		done := make(chan error, 1)
		go func() {
			_, err := mutator.SetCategory(context.Background(), CategoryScope(10, "A"), "search")
			done <- err
		}()
		waitGate(t, gate)
		require.Equal(t, map[domain.ToolID]string{1: "search", 2: "search", 3: "B"}, categories(store))

		gate.Release()
		require.NoError(t, <-done)
		calls := remote.Calls(uitest.OpBatchUpdateTools)
		require.Len(t, calls, 1)
		req := calls[0].Arg.(domain.ToolBatchUpdateRequest)
		require.Equal(t, "search", req.Category)
		require.Nil(t, req.Enabled)
		require.ElementsMatch(t, []domain.ToolID{1, 2}, req.ToolIDs)
		moved, _ := remote.Tool(2)
		require.Equal(t, "search", moved.Category)
		require.False(t, moved.Enabled)
	})

	t.Run("single tool uses tool update", func(t *testing.T) {
		remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, tools)
		store := loadedStore(t, remote)
		mutator := NewBatchMutator(store, remote, nil, nil, nil)

		res, err := mutator.SetCategory(context.Background(), ToolScopeOf(3), " db ")
		require.NoError(t, err)
		require.Equal(t, "db", res.Category)
		require.Empty(t, remote.Calls(uitest.OpBatchUpdateTools))
		calls := remote.Calls(uitest.OpUpdateTool)
		require.Len(t, calls, 1)
		require.Equal(t, "db", calls[0].Arg.(domain.ToolUpdateRequest).Category)
		require.Equal(t, "db", categories(store)[3])
	})

	t.Run("failure restores categories", func(t *testing.T) {
		remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, tools)
		store := loadedStore(t, remote)
		mutator := NewBatchMutator(store, remote, nil, nil, nil)
		remote.Fail(uitest.OpBatchUpdateTools, domain.Transport("tool.batch_update", errors.New("timeout")))

		_, err := mutator.SetCategory(context.Background(), ServerScope(10), "all")
		require.Error(t, err)
		require.True(t, domain.IsTransport(err))
		require.Equal(t, map[domain.ToolID]string{1: "A", 2: "A", 3: "B"}, categories(store))
	})

	t.Run("empty name and empty scope are rejected", func(t *testing.T) {
		remote := uitest.NewRemote([]domain.Server{testServer(10, "s")}, tools)
		store := loadedStore(t, remote)
		mutator := NewBatchMutator(store, remote, nil, nil, nil)

		_, err := mutator.SetCategory(context.Background(), ServerScope(10), "  ")
		require.True(t, domain.IsValidation(err))
		_, err = mutator.SetCategory(context.Background(), CategoryScope(10, "missing"), "x")
		require.ErrorIs(t, err, domain.ErrEmptyScope)
		require.Empty(t, remote.Calls(uitest.OpBatchUpdateTools))
		require.Empty(t, remote.Calls(uitest.OpUpdateTool))
	})
}
