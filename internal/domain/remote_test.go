package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type pagedTools struct {
	tools []Tool
	calls []ToolListRequest
	err   error
}

func (p *pagedTools) ListTools(_ context.Context, req ToolListRequest) (ToolListResult, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return ToolListResult{}, p.err
	}
	start := (req.Page - 1) * req.Size
	if start > len(p.tools) {
		start = len(p.tools)
	}
	end := start + req.Size
	if end > len(p.tools) {
		end = len(p.tools)
	}
	return ToolListResult{Tools: p.tools[start:end], Total: len(p.tools)}, nil
}

func (p *pagedTools) UpdateTool(context.Context, ToolID, ToolUpdateRequest) (Tool, error) {
	return Tool{}, nil
}

func (p *pagedTools) BatchUpdateTools(context.Context, ToolBatchUpdateRequest) error { return nil }

func (p *pagedTools) ListToolCategories(context.Context, ServerID) ([]string, error) {
	return nil, nil
}

func TestAllTools_DrainsPages(t *testing.T) {
	tools := make([]Tool, 230)
	for i := range tools {
		tools[i] = Tool{ID: ToolID(i + 1), ServerID: 1}
	}
	remote := &pagedTools{tools: tools}

	got, err := AllTools(context.Background(), remote, ToolFilter{ServerID: 1})
	require.NoError(t, err)
	require.Len(t, got, 230)
	require.Len(t, remote.calls, 3)
	for i, call := range remote.calls {
		require.Equal(t, i+1, call.Page)
		require.Equal(t, MaxPageSize, call.Size)
		require.Equal(t, ServerID(1), call.ServerID)
	}
}

func TestAllTools_EmptyAndError(t *testing.T) {
	got, err := AllTools(context.Background(), &pagedTools{}, ToolFilter{})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	boom := errors.New("boom")
	_, err = AllTools(context.Background(), &pagedTools{err: boom}, ToolFilter{})
	require.ErrorIs(t, err, boom)
}
