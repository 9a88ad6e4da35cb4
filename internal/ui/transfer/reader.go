package transfer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mcpdesk/internal/domain"
)

// ResolvePath returns the config file path for the given source.
func ResolvePath(source Source) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	switch source {
	case SourceClaude:
		return filepath.Join(home, ".claude.json"), nil
	case SourceCodex:
		return filepath.Join(home, ".codex", "config.toml"), nil
	case SourceGemini:
		return filepath.Join(home, ".gemini", "settings.json"), nil
	default:
		return "", ErrUnknownSource
	}
}

// ReadSource reads servers from the source's default config location.
func ReadSource(source Source) (Result, error) {
	path, err := ResolvePath(source)
	if err != nil {
		return Result{}, err
	}
	return ReadFile(source, path)
}

// ReadFile reads servers from path using the format of source.
func ReadFile(source Source, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Source: source, Path: path}, ErrNotFound
		}
		return Result{}, fmt.Errorf("read source: %w", err)
	}
	var payload map[string]any
	switch source {
	case SourceClaude, SourceGemini:
		if err := json.Unmarshal(data, &payload); err != nil {
			return Result{}, fmt.Errorf("parse json: %w", err)
		}
	case SourceCodex:
		if err := toml.Unmarshal(data, &payload); err != nil {
			return Result{}, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return Result{}, ErrUnknownSource
	}

	result := Result{Source: source, Path: path, Servers: []domain.ServerCreateRequest{}}
	switch source {
	case SourceCodex:
		primary := readTable(payload, "mcp_servers")
		legacy := readTable(payload, "mcp", "servers")
		seen := result.collect(primary, nil)
		result.collect(legacy, seen)
	default:
		raw, ok := payload["mcpServers"].(map[string]any)
		if !ok {
			return Result{}, errors.New("mcpServers must be an object map")
		}
		result.collect(raw, nil)
	}
	sort.Slice(result.Servers, func(i, j int) bool { return result.Servers[i].Name < result.Servers[j].Name })
	sort.SliceStable(result.Issues, func(i, j int) bool { return result.Issues[i].Name < result.Issues[j].Name })
	return result, nil
}

// collect parses entries in name order. Names already in seen are reported as duplicates.
func (r *Result) collect(entries map[string]any, seen map[string]struct{}) map[string]struct{} {
	if seen == nil {
		seen = make(map[string]struct{})
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, exists := seen[strings.TrimSpace(name)]; exists {
			r.Issues = append(r.Issues, Issue{
				Name:    name,
				Kind:    IssueDuplicate,
				Message: "legacy mcp.servers entry ignored because mcp_servers already defines it",
			})
			continue
		}
		table, ok := entries[name].(map[string]any)
		if !ok {
			r.Issues = append(r.Issues, Issue{Name: name, Kind: IssueInvalid, Message: "entry must be an object"})
			continue
		}
		req, issues, ok := parseServer(r.Source, name, table)
		r.Issues = append(r.Issues, issues...)
		if !ok {
			continue
		}
		seen[req.Name] = struct{}{}
		r.Servers = append(r.Servers, req)
	}
	return seen
}

func parseServer(source Source, name string, entry map[string]any) (domain.ServerCreateRequest, []Issue, bool) {
	name = strings.TrimSpace(name)
	invalid := func(msg string) (domain.ServerCreateRequest, []Issue, bool) {
		return domain.ServerCreateRequest{}, []Issue{{Name: name, Kind: IssueInvalid, Message: msg}}, false
	}
	if name == "" {
		return invalid("server name is required")
	}

	endpoint, ok := readOptionalString(entry, "endpoint")
	if !ok {
		return invalid("endpoint must be a string")
	}
	if endpoint == "" {
		if endpoint, ok = readOptionalString(entry, "url"); !ok {
			return invalid("url must be a string")
		}
	}
	if endpoint == "" {
		if endpoint, ok = readOptionalString(entry, "httpUrl"); !ok {
			return invalid("httpUrl must be a string")
		}
	}
	transport, ok := readOptionalString(entry, "transport")
	if !ok {
		return invalid("transport must be a string")
	}
	if transport == "" {
		if transport, ok = readOptionalString(entry, "type"); !ok {
			return invalid("type must be a string")
		}
	}

	remote, ok := isRemoteTransport(transport, endpoint != "")
	if !ok {
		return invalid("unsupported transport type")
	}
	if !remote {
		return domain.ServerCreateRequest{}, []Issue{{
			Name:    name,
			Kind:    IssueUnsupported,
			Message: "stdio servers run locally and cannot be registered with the management service",
		}}, false
	}
	if endpoint == "" {
		return invalid("url is required for http transport")
	}

	headers, ok := readHTTPHeaders(entry)
	if !ok {
		return invalid("headers must be a map of strings")
	}
	auth, authConfig, dropped := authFromHeaders(headers)

	description, _ := readOptionalString(entry, "description")
	req := domain.ServerCreateRequest{
		Name:        name,
		Description: description,
		URL:         endpoint,
		AuthType:    auth,
		AuthConfig:  authConfig,
		Tags:        []string{"imported", string(source)},
	}
	if err := req.Validate(); err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return invalid(domainErr.Message)
		}
		return invalid(err.Error())
	}

	var issues []Issue
	if len(dropped) > 0 {
		issues = append(issues, Issue{
			Name:    name,
			Kind:    IssueLossy,
			Message: "headers not carried over: " + strings.Join(dropped, ", "),
		})
	}
	return req, issues, true
}

// isRemoteTransport reports whether the transport is HTTP based. An empty transport is
// inferred from the presence of an endpoint.
func isRemoteTransport(raw string, hasEndpoint bool) (bool, bool) {
	if raw == "" {
		return hasEndpoint, true
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stdio":
		return false, true
	case "streamable_http", "streamable-http", "streamablehttp", "http", "sse":
		return true, true
	default:
		return false, false
	}
}

// authFromHeaders maps client headers onto the service's auth model. An Authorization
// header wins; otherwise a single remaining header is treated as an API key. Headers that
// do not fit are returned by name.
func authFromHeaders(headers map[string]string) (domain.AuthType, string, []string) {
	if len(headers) == 0 {
		return domain.AuthNone, "", nil
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	authIdx := -1
	for i, name := range names {
		if strings.EqualFold(name, "Authorization") {
			authIdx = i
			break
		}
	}

	if authIdx >= 0 {
		name := names[authIdx]
		rest := append(append([]string(nil), names[:authIdx]...), names[authIdx+1:]...)
		scheme, credential, _ := strings.Cut(strings.TrimSpace(headers[name]), " ")
		credential = strings.TrimSpace(credential)
		switch strings.ToLower(scheme) {
		case "bearer":
			return domain.AuthBearer, encodeAuth(map[string]string{"token": credential}), rest
		case "basic":
			if user, pass, ok := decodeBasic(credential); ok {
				return domain.AuthBasic, encodeAuth(map[string]string{"username": user, "password": pass}), rest
			}
		}
		return domain.AuthAPIKey, encodeAuth(map[string]string{"header": name, "key": headers[name]}), rest
	}

	if len(names) == 1 {
		name := names[0]
		return domain.AuthAPIKey, encodeAuth(map[string]string{"header": name, "key": headers[name]}), nil
	}
	return domain.AuthNone, "", names
}

func decodeBasic(credential string) (string, string, bool) {
	raw, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}

func encodeAuth(values map[string]string) string {
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func readTable(payload map[string]any, path ...string) map[string]any {
	current := payload
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return nil
		}
		table, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return table
		}
		current = table
	}
	return nil
}

func readOptionalString(entry map[string]any, key string) (string, bool) {
	value, ok := entry[key]
	if !ok {
		return "", true
	}
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func readHTTPHeaders(entry map[string]any) (map[string]string, bool) {
	key := "headers"
	if _, exists := entry["http_headers"]; exists {
		key = "http_headers"
	}
	value, ok := entry[key]
	if !ok {
		return nil, true
	}
	return toStringMap(value)
}

func toStringMap(value any) (map[string]string, bool) {
	switch raw := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			out[k] = v
		}
		return out, true
	case map[string]any:
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
