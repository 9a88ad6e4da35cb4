// Package remotetest runs an in-memory management service over httptest for tests that
// exercise the HTTP client end to end.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mcpdesk/internal/domain"
)

// Server is a fake management service. Zero or more servers and tools are seeded; every
// mutation is applied in memory.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	servers   []server
	tools     []tool
	nextID    uint
	discovery map[uint][]tool
	failures  map[string]int
	garbled   map[string]bool
	requests  []string
}

type server struct {
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

type tool struct {
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

// NewServer starts a fake service seeded with servers and tools.
func NewServer(servers []domain.Server, tools []domain.Tool) *Server {
	s := &Server{
		discovery: make(map[uint][]tool),
		failures:  make(map[string]int),
		garbled:   make(map[string]bool),
		nextID:    1000,
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, srv := range servers {
		created := srv.CreatedAt
		if created.IsZero() {
			created = base.Add(time.Duration(i) * time.Minute)
		}
		status := string(srv.Status)
		if status == "" {
			status = string(domain.StatusActive)
		}
		s.servers = append(s.servers, server{
			ID:          uint(srv.ID),
			Name:        srv.Name,
			Description: srv.Description,
			URL:         srv.URL,
			AuthType:    string(srv.AuthType),
			AuthConfig:  srv.AuthConfig,
			Status:      status,
			IsEnabled:   srv.Enabled,
			Tags:        domain.JoinTags(srv.Tags),
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}
	for _, t := range tools {
		s.tools = append(s.tools, fromTool(t))
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the API root to hand to the client.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// SetDiscovery sets the tools a discovery run on serverID will produce.
func (s *Server) SetDiscovery(serverID domain.ServerID, tools []domain.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tool, len(tools))
	for i, t := range tools {
		t.ServerID = serverID
		out[i] = fromTool(t)
	}
	s.discovery[uint(serverID)] = out
}

// FailPath makes every request whose path starts with prefix (below /api) answer status with
// an error envelope. Status 0 clears the failure.
func (s *Server) FailPath(prefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, prefix)
		return
	}
	s.failures[prefix] = status
}

// GarblePath makes every request whose path starts with prefix answer 200 with a body that is
// not JSON. On the client side this is a transport failure.
func (s *Server) GarblePath(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.garbled[prefix] = true
}

// Requests returns "METHOD /path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Tool returns the stored tool with id.
func (s *Server) Tool(id domain.ToolID) (domain.Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tools {
		if t.ID == uint(id) {
			return toTool(t), true
		}
	}
	return domain.Tool{}, false
}

// ServerRecord returns the stored server with id.
func (s *Server) ServerRecord(id domain.ServerID) (domain.Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.serverIndex(uint(id))
	if idx < 0 {
		return domain.Server{}, false
	}
	srv := s.servers[idx]
	return domain.Server{
		ID:          domain.ServerID(srv.ID),
		Name:        srv.Name,
		Description: srv.Description,
		URL:         srv.URL,
		AuthType:    domain.AuthType(srv.AuthType),
		AuthConfig:  srv.AuthConfig,
		Status:      domain.ServerStatus(srv.Status),
		Enabled:     srv.IsEnabled,
		Tags:        domain.ParseTags(srv.Tags),
		CreatedAt:   srv.CreatedAt,
		UpdatedAt:   srv.UpdatedAt,
	}, true
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/mcp-servers", s.listServers)
	mux.HandleFunc("POST /api/mcp-servers", s.createServer)
	mux.HandleFunc("GET /api/mcp-servers/tags", s.listTags)
	mux.HandleFunc("POST /api/mcp-servers/test-connection", s.testConnection)
	mux.HandleFunc("GET /api/mcp-servers/{id}", s.getServer)
	mux.HandleFunc("PUT /api/mcp-servers/{id}", s.updateServer)
	mux.HandleFunc("DELETE /api/mcp-servers/{id}", s.deleteServer)
	mux.HandleFunc("PUT /api/mcp-servers/{id}/toggle", s.toggleServer)
	mux.HandleFunc("POST /api/mcp-servers/{id}/discover-tools", s.discover(false))
	mux.HandleFunc("POST /api/mcp-tools/refresh/{id}", s.discover(true))
	mux.HandleFunc("GET /api/mcp-tools", s.listTools)
	mux.HandleFunc("GET /api/mcp-tools/categories", s.listCategories)
	mux.HandleFunc("PUT /api/mcp-tools/batch", s.batchUpdateTools)
	mux.HandleFunc("PUT /api/mcp-tools/{id}", s.updateTool)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		status := 0
		path := strings.TrimPrefix(r.URL.Path, "/api")
		for prefix, code := range s.failures {
			if strings.HasPrefix(path, prefix) {
				status = code
				break
			}
		}
		garbled := false
		for prefix := range s.garbled {
			if strings.HasPrefix(path, prefix) {
				garbled = true
				break
			}
		}
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"success": false, "error": http.StatusText(status)})
			return
		}
		if garbled {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>gateway</html>"))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := max(atoiDefault(q.Get("page"), 1), 1)
	size := max(atoiDefault(q.Get("size"), domain.DefaultPageSize), 1)
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	matched := make([]server, 0, len(s.servers))
	for _, srv := range s.servers {
		if search != "" && !strings.Contains(strings.ToLower(srv.Name), search) &&
			!strings.Contains(strings.ToLower(srv.Description), search) {
			continue
		}
		if status := q.Get("status"); status != "" && srv.Status != status {
			continue
		}
		if enabled := q.Get("enabled"); enabled != "" && strconv.FormatBool(srv.IsEnabled) != enabled {
			continue
		}
		matched = append(matched, srv)
	}
	s.mu.Unlock()

	desc := q.Get("order_dir") != string(domain.SortAsc)
	orderBy := q.Get("order_by")
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareServers(matched[i], matched[j], orderBy)
		if desc {
			return c > 0
		}
		return c < 0
	})

	total := len(matched)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	writeData(w, map[string]any{
		"total":   total,
		"page":    page,
		"size":    size,
		"servers": matched[start:end],
	})
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.serverIndex(pathID(r))
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "MCP server not found"})
		return
	}
	writeData(w, s.servers[idx])
}

type serverBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	AuthType    string `json:"auth_type"`
	AuthConfig  string `json:"auth_config"`
	IsEnabled   *bool  `json:"is_enabled"`
	Tags        string `json:"tags"`
}

func (s *Server) createServer(w http.ResponseWriter, r *http.Request) {
	var body serverBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		if srv.Name == body.Name {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to create MCP server",
				"details": "server with name " + body.Name + " already exists",
			})
			return
		}
	}
	s.nextID++
	now := time.Now().UTC()
	srv := server{
		ID:          s.nextID,
		Name:        body.Name,
		Description: body.Description,
		URL:         body.URL,
		AuthType:    body.AuthType,
		AuthConfig:  body.AuthConfig,
		Status:      string(domain.StatusInactive),
		IsEnabled:   true,
		Tags:        body.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.servers = append(s.servers, srv)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "MCP server created successfully", "data": srv})
}

func (s *Server) updateServer(w http.ResponseWriter, r *http.Request) {
	var body serverBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.serverIndex(pathID(r))
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "MCP server not found"})
		return
	}
	srv := &s.servers[idx]
	srv.Name = body.Name
	srv.Description = body.Description
	srv.URL = body.URL
	srv.AuthType = body.AuthType
	srv.AuthConfig = body.AuthConfig
	srv.Tags = body.Tags
	if body.IsEnabled != nil {
		srv.IsEnabled = *body.IsEnabled
	}
	srv.UpdatedAt = time.Now().UTC()
	writeData(w, *srv)
}

func (s *Server) deleteServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	idx := s.serverIndex(id)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "MCP server not found"})
		return
	}
	s.servers = append(s.servers[:idx], s.servers[idx+1:]...)
	kept := s.tools[:0]
	for _, t := range s.tools {
		if t.ServerID != id {
			kept = append(kept, t)
		}
	}
	s.tools = kept
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "MCP server deleted successfully"})
}

func (s *Server) toggleServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.serverIndex(pathID(r))
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "MCP server not found"})
		return
	}
	s.servers[idx].IsEnabled = !s.servers[idx].IsEnabled
	s.servers[idx].UpdatedAt = time.Now().UTC()
	writeData(w, s.servers[idx])
}

func (s *Server) listTags(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	tags := []string{}
	for _, srv := range s.servers {
		for _, tag := range domain.ParseTags(srv.Tags) {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	writeData(w, tags)
}

func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	connected := strings.HasPrefix(body.URL, "http")
	writeData(w, map[string]any{"connected": connected})
}

func (s *Server) discover(replace bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := pathID(r)
		if s.serverIndex(id) < 0 {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "MCP server not found"})
			return
		}
		found := s.discovery[id]
		if replace {
			kept := s.tools[:0]
			for _, t := range s.tools {
				if t.ServerID != id {
					kept = append(kept, t)
				}
			}
			s.tools = kept
		}
		for _, t := range found {
			if idx := s.toolIndex(t.ID); idx >= 0 {
				s.tools[idx] = t
				continue
			}
			s.tools = append(s.tools, t)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Tools discovered successfully",
			"tools":   found,
		})
	}
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := max(atoiDefault(q.Get("page"), 1), 1)
	size := max(atoiDefault(q.Get("size"), domain.DefaultToolPageSize), 1)
	serverID := uint(atoiDefault(q.Get("server_id"), 0))
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	matched := make([]tool, 0, len(s.tools))
	for _, t := range s.tools {
		switch {
		case serverID != 0 && t.ServerID != serverID:
			continue
		case q.Get("category") != "" && t.Category != q.Get("category"):
			continue
		case search != "" && !strings.Contains(strings.ToLower(t.Name), search):
			continue
		case q.Get("enabled") != "" && strconv.FormatBool(t.IsEnabled) != q.Get("enabled"):
			continue
		}
		matched = append(matched, t)
	}
	s.mu.Unlock()

	total := len(matched)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	writeData(w, map[string]any{"total": total, "page": page, "size": size, "tools": matched[start:end]})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	serverID := uint(atoiDefault(r.URL.Query().Get("server_id"), 0))
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	categories := []string{}
	for _, t := range s.tools {
		if t.Category == "" || (serverID != 0 && t.ServerID != serverID) {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		categories = append(categories, t.Category)
	}
	writeData(w, categories)
}

type toolBody struct {
	ToolIDs   []uint `json:"tool_ids"`
	IsEnabled *bool  `json:"is_enabled"`
	Category  string `json:"category"`
}

func (s *Server) updateTool(w http.ResponseWriter, r *http.Request) {
	var body toolBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.toolIndex(pathID(r))
	if idx < 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to update tool", "details": "record not found"})
		return
	}
	s.applyTool(idx, body)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Tool updated successfully"})
}

func (s *Server) batchUpdateTools(w http.ResponseWriter, r *http.Request) {
	var body toolBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.ToolIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range body.ToolIDs {
		if idx := s.toolIndex(id); idx >= 0 {
			s.applyTool(idx, body)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Tools updated successfully"})
}

func (s *Server) applyTool(idx int, body toolBody) {
	if body.IsEnabled != nil {
		s.tools[idx].IsEnabled = *body.IsEnabled
	}
	if body.Category != "" {
		s.tools[idx].Category = body.Category
	}
	s.tools[idx].UpdatedAt = time.Now().UTC()
}

func compareServers(a, b server, orderBy string) int {
	switch orderBy {
	case string(domain.SortName):
		return strings.Compare(a.Name, b.Name)
	case string(domain.SortUpdatedAt):
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (s *Server) serverIndex(id uint) int {
	for i, srv := range s.servers {
		if srv.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) toolIndex(id uint) int {
	for i, t := range s.tools {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func fromTool(t domain.Tool) tool {
	return tool{
		ID:          uint(t.ID),
		ServerID:    uint(t.ServerID),
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Parameters:  string(t.Parameters),
		IsEnabled:   t.Enabled,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTool(t tool) domain.Tool {
	out := domain.Tool{
		ID:          domain.ToolID(t.ID),
		ServerID:    domain.ServerID(t.ServerID),
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Enabled:     t.IsEnabled,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Parameters != "" {
		out.Parameters = json.RawMessage(t.Parameters)
	}
	return out
}

func pathID(r *http.Request) uint {
	return uint(atoiDefault(r.PathValue("id"), 0))
}

func atoiDefault(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	if _, ok := body["timestamp"]; !ok {
		body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
