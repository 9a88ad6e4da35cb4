package ui

import (
	"fmt"

	"mcpdesk/internal/domain"
)

// NodeKind identifies the level of a tree node.
type NodeKind string

const (
	NodeServer   NodeKind = "server"
	NodeCategory NodeKind = "category"
	NodeTool     NodeKind = "tool"
)

// ToggleState summarizes the enabled flags of the tools under a node.
type ToggleState string

const (
	ToggleOn    ToggleState = "on"
	ToggleOff   ToggleState = "off"
	ToggleMixed ToggleState = "mixed"
	ToggleEmpty ToggleState = "empty"
)

func toggleStateOf(total, enabled int) ToggleState {
	switch {
	case total == 0:
		return ToggleEmpty
	case enabled == total:
		return ToggleOn
	case enabled == 0:
		return ToggleOff
	default:
		return ToggleMixed
	}
}

// Node is a server, category or tool node of the tree.
type Node interface {
	Kind() NodeKind
	Key() string
	Label() string
	Counts() (tools, enabled int)
	State() ToggleState
	// Scope returns the toggle scope that covers every tool under the node.
	Scope() ToolScope
}

// ServerNode is the root node for one server.
type ServerNode struct {
	Server       domain.Server
	Categories   []*CategoryNode
	ToolCount    int
	EnabledCount int
}

func (n *ServerNode) Kind() NodeKind { return NodeServer }
func (n *ServerNode) Key() string    { return serverKey(n.Server.ID) }
func (n *ServerNode) Label() string  { return n.Server.Name }
func (n *ServerNode) Counts() (int, int) {
	return n.ToolCount, n.EnabledCount
}
func (n *ServerNode) State() ToggleState { return toggleStateOf(n.ToolCount, n.EnabledCount) }
func (n *ServerNode) Scope() ToolScope   { return ServerScope(n.Server.ID) }

// CategoryNode groups the tools of one server that share a category label.
type CategoryNode struct {
	ServerID     domain.ServerID
	Category     string
	Tools        []*ToolNode
	EnabledCount int
}

func (n *CategoryNode) Kind() NodeKind { return NodeCategory }
func (n *CategoryNode) Key() string    { return categoryKey(n.ServerID, n.Category) }
func (n *CategoryNode) Label() string {
	if n.Category == "" {
		return domain.UncategorizedDisplayLabel
	}
	return n.Category
}
func (n *CategoryNode) Counts() (int, int) {
	return len(n.Tools), n.EnabledCount
}
func (n *CategoryNode) State() ToggleState { return toggleStateOf(len(n.Tools), n.EnabledCount) }
func (n *CategoryNode) Scope() ToolScope   { return CategoryScope(n.ServerID, n.Category) }

// ToolNode is a leaf.
type ToolNode struct {
	Tool domain.Tool
}

func (n *ToolNode) Kind() NodeKind { return NodeTool }
func (n *ToolNode) Key() string    { return toolKey(n.Tool.ServerID, n.Tool.Category, n.Tool.ID) }
func (n *ToolNode) Label() string  { return n.Tool.Name }
func (n *ToolNode) Counts() (int, int) {
	if n.Tool.Enabled {
		return 1, 1
	}
	return 1, 0
}
func (n *ToolNode) State() ToggleState {
	if n.Tool.Enabled {
		return ToggleOn
	}
	return ToggleOff
}
func (n *ToolNode) Scope() ToolScope { return ToolScopeOf(n.Tool.ID) }

func serverKey(id domain.ServerID) string {
	return fmt.Sprintf("server-%d", id)
}

func categoryKey(id domain.ServerID, category string) string {
	return fmt.Sprintf("category-%d-%s", id, category)
}

func toolKey(serverID domain.ServerID, category string, id domain.ToolID) string {
	return fmt.Sprintf("tool-%d-%s-%d", serverID, category, id)
}

// Tree is the server → category → tool view of two flat collections.
type Tree struct {
	Servers []*ServerNode
	// Orphans counts tools dropped because their server is not loaded.
	Orphans int
	index   map[string]Node
}

// BuildTree groups tools under their servers and categories. Server order follows the input,
// category order follows first occurrence in tools and tool order follows the input. Servers
// with no tools are kept with no categories. Later duplicates of a server id are ignored.
// The inputs are not modified.
func BuildTree(servers []domain.Server, tools []domain.Tool) *Tree {
	tree := &Tree{
		Servers: make([]*ServerNode, 0, len(servers)),
		index:   make(map[string]Node, len(servers)+len(tools)),
	}
	byID := make(map[domain.ServerID]*ServerNode, len(servers))
	for _, srv := range servers {
		if _, dup := byID[srv.ID]; dup {
			continue
		}
		node := &ServerNode{Server: srv.Clone(), Categories: []*CategoryNode{}}
		byID[srv.ID] = node
		tree.Servers = append(tree.Servers, node)
		tree.index[node.Key()] = node
	}

	categories := make(map[string]*CategoryNode)
	for _, tool := range tools {
		srv, ok := byID[tool.ServerID]
		if !ok {
			tree.Orphans++
			continue
		}
		key := categoryKey(tool.ServerID, tool.Category)
		cat, ok := categories[key]
		if !ok {
			cat = &CategoryNode{ServerID: tool.ServerID, Category: tool.Category, Tools: []*ToolNode{}}
			categories[key] = cat
			srv.Categories = append(srv.Categories, cat)
			tree.index[key] = cat
		}
		leaf := &ToolNode{Tool: tool.Clone()}
		cat.Tools = append(cat.Tools, leaf)
		tree.index[leaf.Key()] = leaf

		srv.ToolCount++
		if tool.Enabled {
			cat.EnabledCount++
			srv.EnabledCount++
		}
	}
	return tree
}

// Find returns the node with key.
func (t *Tree) Find(key string) (Node, bool) {
	if t == nil {
		return nil, false
	}
	node, ok := t.index[key]
	return node, ok
}

// Walk visits nodes depth-first in display order. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(node Node, depth int) bool) {
	if t == nil {
		return
	}
	for _, srv := range t.Servers {
		if !fn(srv, 0) {
			return
		}
		for _, cat := range srv.Categories {
			if !fn(cat, 1) {
				return
			}
			for _, leaf := range cat.Tools {
				if !fn(leaf, 2) {
					return
				}
			}
		}
	}
}

// Stats summarizes the tree size.
func (t *Tree) Stats() domain.TreeStats {
	var stats domain.TreeStats
	if t == nil {
		return stats
	}
	stats.Orphans = t.Orphans
	for _, srv := range t.Servers {
		stats.Servers++
		stats.Categories += len(srv.Categories)
		stats.Tools += srv.ToolCount
		stats.Enabled += srv.EnabledCount
	}
	return stats
}
