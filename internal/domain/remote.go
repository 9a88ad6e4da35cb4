package domain

import "context"

// ServerRemote is the collaborator surface for server records.
type ServerRemote interface {
	ListServers(ctx context.Context, req ServerListRequest) (ServerListResult, error)
	GetServer(ctx context.Context, id ServerID) (Server, error)
	CreateServer(ctx context.Context, req ServerCreateRequest) (Server, error)
	UpdateServer(ctx context.Context, id ServerID, req ServerUpdateRequest) (Server, error)
	DeleteServer(ctx context.Context, id ServerID) error
	// ToggleServer flips the enabled flag remotely and returns the resulting record.
	ToggleServer(ctx context.Context, id ServerID) (Server, error)
	ListServerTags(ctx context.Context) ([]string, error)
	DiscoverTools(ctx context.Context, id ServerID) (DiscoveryResult, error)
	RefreshTools(ctx context.Context, id ServerID) (DiscoveryResult, error)
	TestConnection(ctx context.Context, req ConnectionTestRequest) (bool, error)
}

// ToolRemote is the collaborator surface for tool records.
type ToolRemote interface {
	ListTools(ctx context.Context, req ToolListRequest) (ToolListResult, error)
	UpdateTool(ctx context.Context, id ToolID, req ToolUpdateRequest) (Tool, error)
	BatchUpdateTools(ctx context.Context, req ToolBatchUpdateRequest) error
	ListToolCategories(ctx context.Context, serverID ServerID) ([]string, error)
}

// Remote is the full collaborator contract.
type Remote interface {
	ServerRemote
	ToolRemote
}

// AllTools drains every page of a tool listing.
func AllTools(ctx context.Context, remote ToolRemote, filter ToolFilter) ([]Tool, error) {
	var tools []Tool
	page := 1
	for {
		res, err := remote.ListTools(ctx, ToolListRequest{ToolFilter: filter, Page: page, Size: MaxPageSize})
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if len(res.Tools) == 0 || len(tools) >= res.Total || len(res.Tools) < MaxPageSize {
			break
		}
		page++
	}
	if tools == nil {
		tools = []Tool{}
	}
	return tools, nil
}
