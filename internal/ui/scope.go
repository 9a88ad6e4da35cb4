package ui

import (
	"fmt"

	"mcpdesk/internal/domain"
)

// ScopeLevel is the tree level a toggle was issued at.
type ScopeLevel string

const (
	ScopeTool     ScopeLevel = "tool"
	ScopeCategory ScopeLevel = "category"
	ScopeServer   ScopeLevel = "server"
)

// ToolScope names a set of tools by tree position. It is resolved to concrete ids against
// the local tool collection at the moment a mutation runs.
type ToolScope struct {
	Level    ScopeLevel
	ToolID   domain.ToolID
	ServerID domain.ServerID
	Category string
}

// ToolScopeOf targets a single tool.
func ToolScopeOf(id domain.ToolID) ToolScope {
	return ToolScope{Level: ScopeTool, ToolID: id}
}

// CategoryScope targets every tool of a server in category.
func CategoryScope(serverID domain.ServerID, category string) ToolScope {
	return ToolScope{Level: ScopeCategory, ServerID: serverID, Category: category}
}

// ServerScope targets every tool of a server.
func ServerScope(serverID domain.ServerID) ToolScope {
	return ToolScope{Level: ScopeServer, ServerID: serverID}
}

// Covers reports whether tool falls inside the scope.
func (s ToolScope) Covers(tool domain.Tool) bool {
	switch s.Level {
	case ScopeTool:
		return tool.ID == s.ToolID
	case ScopeCategory:
		return tool.ServerID == s.ServerID && tool.Category == s.Category
	case ScopeServer:
		return tool.ServerID == s.ServerID
	default:
		return false
	}
}

func (s ToolScope) mutationKind() domain.MutationKind {
	switch s.Level {
	case ScopeCategory:
		return domain.MutationCategory
	case ScopeServer:
		return domain.MutationServer
	default:
		return domain.MutationTool
	}
}

func (s ToolScope) String() string {
	switch s.Level {
	case ScopeTool:
		return fmt.Sprintf("tool %d", s.ToolID)
	case ScopeCategory:
		return fmt.Sprintf("server %d category %q", s.ServerID, s.Category)
	case ScopeServer:
		return fmt.Sprintf("server %d", s.ServerID)
	default:
		return "unknown scope"
	}
}
