package remote

import (
	"encoding/json"
	"strings"
	"time"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/mapping"
)

// envelope is the common response shape of the management service.
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Details   string          `json:"details,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// failure returns the most specific error text the service supplied.
func (e envelope) failure() string {
	switch {
	case e.Error != "" && e.Details != "":
		return e.Error + ": " + e.Details
	case e.Error != "":
		return e.Error
	default:
		return e.Message
	}
}

type serverRecord struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	AuthType    string    `json:"auth_type"`
	AuthConfig  string    `json:"auth_config"`
	Status      string    `json:"status"`
	IsEnabled   bool      `json:"is_enabled"`
	Tags        string    `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r serverRecord) toDomain() domain.Server {
	auth, ok := domain.ParseAuthType(r.AuthType)
	if !ok {
		auth = domain.AuthType(r.AuthType)
	}
	return domain.Server{
		ID:          domain.ServerID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		AuthType:    auth,
		AuthConfig:  r.AuthConfig,
		Status:      domain.ServerStatus(r.Status),
		Enabled:     r.IsEnabled,
		Tags:        domain.ParseTags(r.Tags),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type serverList struct {
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Size    int            `json:"size"`
	Servers []serverRecord `json:"servers"`
}

type serverPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	AuthType    string `json:"auth_type"`
	AuthConfig  string `json:"auth_config"`
	IsEnabled   *bool  `json:"is_enabled,omitempty"`
	Tags        string `json:"tags"`
}

type connectionPayload struct {
	URL        string `json:"url"`
	AuthType   string `json:"auth_type"`
	AuthConfig string `json:"auth_config"`
}

type connectionResult struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

type toolRecord struct {
	ID          uint      `json:"id"`
	ServerID    uint      `json:"server_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Parameters  string    `json:"parameters"`
	IsEnabled   bool      `json:"is_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r toolRecord) toDomain() domain.Tool {
	tool := domain.Tool{
		ID:          domain.ToolID(r.ID),
		ServerID:    domain.ServerID(r.ServerID),
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Enabled:     r.IsEnabled,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if params := strings.TrimSpace(r.Parameters); params != "" {
		tool.Parameters = json.RawMessage(params)
	}
	return tool
}

type toolList struct {
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Tools []toolRecord `json:"tools"`
}

type toolUpdatePayload struct {
	IsEnabled *bool  `json:"is_enabled,omitempty"`
	Category  string `json:"category,omitempty"`
}

type toolBatchPayload struct {
	ToolIDs   []uint `json:"tool_ids"`
	IsEnabled *bool  `json:"is_enabled,omitempty"`
	Category  string `json:"category,omitempty"`
}

// discovery is returned at the top level, outside the data envelope.
type discovery struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	ToolsCount *int         `json:"tools_count,omitempty"`
	Tools      []toolRecord `json:"tools,omitempty"`
	Error      string       `json:"error,omitempty"`
	Details    string       `json:"details,omitempty"`
}

func (d discovery) toDomain() domain.DiscoveryResult {
	count := len(d.Tools)
	if d.ToolsCount != nil {
		count = *d.ToolsCount
	}
	return domain.DiscoveryResult{Success: d.Success, ToolsCount: count, Message: d.Message}
}

func toolIDs(ids []domain.ToolID) []uint {
	return mapping.MapSlice(ids, func(id domain.ToolID) uint { return uint(id) })
}
