package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/mapping"
	"mcpdesk/internal/ui"
	"mcpdesk/internal/ui/transfer"
)

type serverView struct {
	ID          uint     `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string   `json:"url" yaml:"url"`
	AuthType    string   `json:"authType" yaml:"authType"`
	Status      string   `json:"status,omitempty" yaml:"status,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Tags        []string `json:"tags" yaml:"tags"`
	CreatedAt   string   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func toServerView(srv domain.Server) serverView {
	tags := srv.Tags
	if tags == nil {
		tags = []string{}
	}
	return serverView{
		ID:          uint(srv.ID),
		Name:        srv.Name,
		Description: srv.Description,
		URL:         srv.URL,
		AuthType:    string(srv.AuthType),
		Status:      string(srv.Status),
		Enabled:     srv.Enabled,
		Tags:        tags,
		CreatedAt:   formatTime(srv.CreatedAt),
		UpdatedAt:   formatTime(srv.UpdatedAt),
	}
}

func (v serverView) writeText(w io.Writer) error {
	tw := newTable(w)
	rows := [][2]string{
		{"ID", fmt.Sprint(v.ID)},
		{"Name", v.Name},
		{"Description", orDash(v.Description)},
		{"URL", v.URL},
		{"Auth", orDash(v.AuthType)},
		{"Status", orDash(v.Status)},
		{"Enabled", onOff(v.Enabled)},
		{"Tags", orDash(strings.Join(v.Tags, ","))},
		{"Created", orDash(v.CreatedAt)},
		{"Updated", orDash(v.UpdatedAt)},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

type queryView struct {
	Page     int    `json:"page" yaml:"page"`
	Size     int    `json:"size" yaml:"size"`
	Search   string `json:"search,omitempty" yaml:"search,omitempty"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
	Enabled  string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	OrderBy  string `json:"orderBy" yaml:"orderBy"`
	OrderDir string `json:"orderDir" yaml:"orderDir"`
}

func toQueryView(q domain.ServerQuery) queryView {
	return queryView{
		Page:     q.Page,
		Size:     q.Size,
		Search:   q.Search,
		Status:   string(q.Status),
		Enabled:  string(q.Enabled),
		OrderBy:  string(q.OrderBy),
		OrderDir: string(q.OrderDir),
	}
}

type pageView struct {
	Query     queryView    `json:"query" yaml:"query"`
	Servers   []serverView `json:"servers" yaml:"servers"`
	Total     int          `json:"total" yaml:"total"`
	Pages     int          `json:"pages" yaml:"pages"`
	Stale     bool         `json:"stale" yaml:"stale"`
	FetchedAt string       `json:"fetchedAt,omitempty" yaml:"fetchedAt,omitempty"`
}

func toPageView(page ui.ServerPage) pageView {
	pages := 0
	if page.Query.Size > 0 {
		pages = (page.Total + page.Query.Size - 1) / page.Query.Size
	}
	return pageView{
		Query:     toQueryView(page.Query),
		Servers:   mapping.MapSlice(page.Servers, toServerView),
		Total:     page.Total,
		Pages:     pages,
		Stale:     page.Stale,
		FetchedAt: formatTime(page.FetchedAt),
	}
}

func (v pageView) writeText(w io.Writer) error {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tENABLED\tTAGS\tURL")
	for _, srv := range v.Servers {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			srv.ID, srv.Name, orDash(srv.Status), onOff(srv.Enabled), orDash(strings.Join(srv.Tags, ",")), srv.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	summary := fmt.Sprintf("page %d of %d, %d servers, sorted by %s %s",
		v.Query.Page, max(v.Pages, 1), v.Total, v.Query.OrderBy, v.Query.OrderDir)
	var filters []string
	if v.Query.Search != "" {
		filters = append(filters, "search="+v.Query.Search)
	}
	if v.Query.Status != "" {
		filters = append(filters, "status="+v.Query.Status)
	}
	if v.Query.Enabled != "" {
		filters = append(filters, "enabled="+v.Query.Enabled)
	}
	if len(filters) > 0 {
		summary += " (" + strings.Join(filters, " ") + ")"
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

type toolView struct {
	ID          uint   `json:"id" yaml:"id"`
	ServerID    uint   `json:"serverId" yaml:"serverId"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category" yaml:"category"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

func toToolView(tool domain.Tool) toolView {
	return toolView{
		ID:          uint(tool.ID),
		ServerID:    uint(tool.ServerID),
		Name:        tool.Name,
		Description: tool.Description,
		Category:    tool.Category,
		Enabled:     tool.Enabled,
	}
}

type toolsView struct {
	Tools     []toolView `json:"tools" yaml:"tools"`
	Total     int        `json:"total" yaml:"total"`
	Stale     bool       `json:"stale" yaml:"stale"`
	FetchedAt string     `json:"fetchedAt,omitempty" yaml:"fetchedAt,omitempty"`
}

func toToolsView(snap ui.ToolSnapshot) toolsView {
	tools := mapping.MapSlice(snap.Tools, toToolView)
	return toolsView{
		Tools:     tools,
		Total:     len(tools),
		Stale:     snap.Stale,
		FetchedAt: formatTime(snap.FetchedAt),
	}
}

func (v toolsView) writeText(w io.Writer) error {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tSERVER\tCATEGORY\tNAME\tENABLED")
	for _, tool := range v.Tools {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			tool.ID, tool.ServerID, categoryLabel(tool.Category), tool.Name, onOff(tool.Enabled))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d tools\n", v.Total)
	return err
}

type statsView struct {
	Servers    int `json:"servers" yaml:"servers"`
	Categories int `json:"categories" yaml:"categories"`
	Tools      int `json:"tools" yaml:"tools"`
	Enabled    int `json:"enabled" yaml:"enabled"`
	Orphans    int `json:"orphans" yaml:"orphans"`
}

func toStatsView(stats domain.TreeStats) statsView {
	return statsView{
		Servers:    stats.Servers,
		Categories: stats.Categories,
		Tools:      stats.Tools,
		Enabled:    stats.Enabled,
		Orphans:    stats.Orphans,
	}
}

type treeToolView struct {
	Key     string `json:"key" yaml:"key"`
	ID      uint   `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type treeCategoryView struct {
	Key     string         `json:"key" yaml:"key"`
	Name    string         `json:"name" yaml:"name"`
	State   string         `json:"state" yaml:"state"`
	Enabled int            `json:"enabled" yaml:"enabled"`
	Tools   []treeToolView `json:"tools" yaml:"tools"`
}

type treeServerView struct {
	Key        string             `json:"key" yaml:"key"`
	ID         uint               `json:"id" yaml:"id"`
	Name       string             `json:"name" yaml:"name"`
	Enabled    bool               `json:"enabled" yaml:"enabled"`
	State      string             `json:"state" yaml:"state"`
	ToolCount  int                `json:"toolCount" yaml:"toolCount"`
	EnabledCnt int                `json:"enabledCount" yaml:"enabledCount"`
	Categories []treeCategoryView `json:"categories" yaml:"categories"`
}

type treeView struct {
	Stats   statsView        `json:"stats" yaml:"stats"`
	Stale   bool             `json:"stale" yaml:"stale"`
	Servers []treeServerView `json:"servers" yaml:"servers"`

	tree *ui.Tree
}

func toTreeView(tree *ui.Tree, stale bool) treeView {
	view := treeView{
		Stats:   toStatsView(tree.Stats()),
		Stale:   stale,
		Servers: make([]treeServerView, 0, len(tree.Servers)),
		tree:    tree,
	}
	for _, srv := range tree.Servers {
		sv := treeServerView{
			Key:        srv.Key(),
			ID:         uint(srv.Server.ID),
			Name:       srv.Server.Name,
			Enabled:    srv.Server.Enabled,
			State:      string(srv.State()),
			ToolCount:  srv.ToolCount,
			EnabledCnt: srv.EnabledCount,
			Categories: make([]treeCategoryView, 0, len(srv.Categories)),
		}
		for _, cat := range srv.Categories {
			cv := treeCategoryView{
				Key:     cat.Key(),
				Name:    cat.Category,
				State:   string(cat.State()),
				Enabled: cat.EnabledCount,
				Tools:   make([]treeToolView, 0, len(cat.Tools)),
			}
			for _, leaf := range cat.Tools {
				cv.Tools = append(cv.Tools, treeToolView{
					Key:     leaf.Key(),
					ID:      uint(leaf.Tool.ID),
					Name:    leaf.Tool.Name,
					Enabled: leaf.Tool.Enabled,
				})
			}
			sv.Categories = append(sv.Categories, cv)
		}
		view.Servers = append(view.Servers, sv)
	}
	return view
}

func (v treeView) writeText(w io.Writer) error {
	var err error
	v.tree.Walk(func(node ui.Node, depth int) bool {
		total, enabled := node.Counts()
		indent := strings.Repeat("  ", depth)
		switch node.Kind() {
		case ui.NodeTool:
			_, err = fmt.Fprintf(w, "%s[%s] %s  %s\n", indent, node.State(), node.Label(), node.Key())
		default:
			_, err = fmt.Fprintf(w, "%s[%s] %s (%d/%d)  %s\n", indent, node.State(), node.Label(), enabled, total, node.Key())
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	s := v.Stats
	line := fmt.Sprintf("%d servers, %d categories, %d tools (%d enabled)", s.Servers, s.Categories, s.Tools, s.Enabled)
	if s.Orphans > 0 {
		line += fmt.Sprintf(", %d tools of servers outside the page", s.Orphans)
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

type batchView struct {
	Scope    string `json:"scope" yaml:"scope"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	ToolIDs  []uint `json:"toolIds" yaml:"toolIds"`
}

func toBatchView(res ui.BatchResult) batchView {
	ids := mapping.MapSlice(res.ToolIDs, func(id domain.ToolID) uint { return uint(id) })
	return batchView{Scope: res.Scope.String(), Enabled: res.Enabled, Category: res.Category, ToolIDs: ids}
}

func (v batchView) writeText(w io.Writer) error {
	if v.Category != "" {
		_, err := fmt.Fprintf(w, "moved %d tools to %s (%s)\n", len(v.ToolIDs), v.Category, v.Scope)
		return err
	}
	verb := "disabled"
	if v.Enabled {
		verb = "enabled"
	}
	_, err := fmt.Fprintf(w, "%s %d tools (%s)\n", verb, len(v.ToolIDs), v.Scope)
	return err
}

type discoveryView struct {
	ServerID   uint   `json:"serverId" yaml:"serverId"`
	Success    bool   `json:"success" yaml:"success"`
	ToolsCount int    `json:"toolsCount" yaml:"toolsCount"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

func (v discoveryView) writeText(w io.Writer) error {
	line := fmt.Sprintf("server %d: %d tools", v.ServerID, v.ToolsCount)
	if v.Message != "" {
		line += " (" + v.Message + ")"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

type paramsView struct {
	ToolID     uint                   `json:"toolId" yaml:"toolId"`
	Name       string                 `json:"name" yaml:"name"`
	Parameters []domain.ToolParameter `json:"parameters" yaml:"parameters"`
	ArgsValid  *bool                  `json:"argsValid,omitempty" yaml:"argsValid,omitempty"`
}

func (v paramsView) writeText(w io.Writer) error {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tREQUIRED\tDEFAULT\tDESCRIPTION")
	for _, param := range v.Parameters {
		def := "-"
		if param.Default != nil {
			if data, err := json.Marshal(param.Default); err == nil {
				def = string(data)
			}
		}
		desc := param.Description
		if len(param.Enum) > 0 {
			desc = strings.TrimSpace(desc + " [" + strings.Join(param.Enum, "|") + "]")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", param.Name, orDash(param.Type), onOff(param.Required), def, orDash(desc))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if v.ArgsValid != nil && *v.ArgsValid {
		_, err := fmt.Fprintln(w, "arguments valid")
		return err
	}
	return nil
}

type importEntryView struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	AuthType string `json:"authType" yaml:"authType"`
	ID       uint   `json:"id,omitempty" yaml:"id,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

type importView struct {
	Source  string            `json:"source" yaml:"source"`
	Path    string            `json:"path" yaml:"path"`
	DryRun  bool              `json:"dryRun" yaml:"dryRun"`
	Servers []importEntryView `json:"servers" yaml:"servers"`
	Issues  []transfer.Issue  `json:"issues,omitempty" yaml:"issues,omitempty"`
}

func (v importView) writeText(w io.Writer) error {
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "NAME\tAUTH\tURL\tRESULT")
	for _, entry := range v.Servers {
		result := "would register"
		switch {
		case entry.Error != "":
			result = "failed: " + entry.Error
		case entry.ID != 0:
			result = fmt.Sprintf("registered as %d", entry.ID)
		case !v.DryRun:
			result = "skipped"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.Name, entry.AuthType, entry.URL, result)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, issue := range v.Issues {
		if _, err := fmt.Fprintf(w, "%s: %s: %s\n", issue.Kind, issue.Name, issue.Message); err != nil {
			return err
		}
	}
	return nil
}

func categoryLabel(category string) string {
	if category == "" {
		return domain.UncategorizedDisplayLabel
	}
	return category
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
