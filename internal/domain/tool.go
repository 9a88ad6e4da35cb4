package domain

import (
	"encoding/json"
	"time"
)

// ToolID identifies a discovered tool.
type ToolID uint

// Tool is a single capability belonging to exactly one server.
// Category is a free-form grouping label with no enumerated domain.
type Tool struct {
	ID          ToolID
	ServerID    ServerID
	Name        string
	Description string
	Category    string
	Parameters  json.RawMessage
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy that shares no backing arrays with t.
func (t Tool) Clone() Tool {
	if t.Parameters != nil {
		t.Parameters = append(json.RawMessage(nil), t.Parameters...)
	}
	return t
}

// CloneTools copies a tool slice element by element.
func CloneTools(tools []Tool) []Tool {
	out := make([]Tool, len(tools))
	for i, tool := range tools {
		out[i] = tool.Clone()
	}
	return out
}

// ToolFilter narrows a tool listing. Zero values mean "no filter".
type ToolFilter struct {
	ServerID ServerID
	Category string
	Search   string
	Enabled  EnabledFilter
}

// ToolListRequest is a single page of a tool listing.
type ToolListRequest struct {
	ToolFilter
	Page int
	Size int
}

// ToolListResult is a page of tools plus the total match count.
type ToolListResult struct {
	Tools []Tool
	Total int
}

// ToolUpdateRequest patches a single tool. Nil/empty fields are left unchanged.
type ToolUpdateRequest struct {
	Enabled  *bool
	Category string
}

// ToolBatchUpdateRequest patches many tools at once.
type ToolBatchUpdateRequest struct {
	ToolIDs  []ToolID
	Enabled  *bool
	Category string
}
