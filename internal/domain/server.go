package domain

import (
	"strings"
	"time"
)

// ServerID identifies a registered server. Assigned by the collaborator.
type ServerID uint

// AuthType selects how the collaborator authenticates against a server.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api_key"
)

// ServerStatus is the remote-computed operational status of a server.
type ServerStatus string

const (
	StatusActive   ServerStatus = "active"
	StatusInactive ServerStatus = "inactive"
	StatusError    ServerStatus = "error"
)

// Server is a read-through copy of a registered remote endpoint.
// Status is computed remotely; the console only ever changes Enabled.
type Server struct {
	ID          ServerID
	Name        string
	Description string
	URL         string
	AuthType    AuthType
	AuthConfig  string
	Status      ServerStatus
	Enabled     bool
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy that shares no slices with s.
func (s Server) Clone() Server {
	s.Tags = append([]string(nil), s.Tags...)
	return s
}

// ServerCreateRequest registers a new server.
type ServerCreateRequest struct {
	Name        string
	Description string
	URL         string
	AuthType    AuthType
	AuthConfig  string
	Tags        []string
}

// ServerUpdateRequest replaces the editable fields of a server.
type ServerUpdateRequest struct {
	Name        string
	Description string
	URL         string
	AuthType    AuthType
	AuthConfig  string
	Enabled     *bool
	Tags        []string
}

// ConnectionTestRequest asks the collaborator to probe an endpoint.
type ConnectionTestRequest struct {
	URL        string
	AuthType   AuthType
	AuthConfig string
}

// DiscoveryResult reports a discovery or refresh run on a server.
type DiscoveryResult struct {
	Success    bool
	ToolsCount int
	Message    string
}

// ParseAuthType normalizes raw into an AuthType. Empty input means none.
func ParseAuthType(raw string) (AuthType, bool) {
	switch AuthType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AuthNone:
		return AuthNone, true
	case AuthBearer:
		return AuthBearer, true
	case AuthBasic:
		return AuthBasic, true
	case AuthAPIKey, "api-key", "apikey":
		return AuthAPIKey, true
	default:
		return "", false
	}
}

// ParseServerStatus normalizes raw into a ServerStatus. Empty input is valid and means
// "no filter".
func ParseServerStatus(raw string) (ServerStatus, bool) {
	switch status := ServerStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case "", StatusActive, StatusInactive, StatusError:
		return status, true
	default:
		return "", false
	}
}

// ParseTags splits a comma-joined tag string. Order is preserved; blanks and repeats are dropped.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// JoinTags is the inverse of ParseTags.
func JoinTags(tags []string) string {
	return strings.Join(ParseTags(strings.Join(tags, ",")), ",")
}

// Validate checks the fields the collaborator requires.
func (r ServerCreateRequest) Validate() error {
	return validateServerFields("server.create", r.Name, r.URL, r.AuthType, r.Description, r.Tags)
}

// Validate checks the fields the collaborator requires.
func (r ServerUpdateRequest) Validate() error {
	return validateServerFields("server.update", r.Name, r.URL, r.AuthType, r.Description, r.Tags)
}

func validateServerFields(op, name, url string, auth AuthType, description string, tags []string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Validation(op, "name is required")
	case len(name) > 100:
		return Validation(op, "name must be at most 100 characters")
	case len(description) > 500:
		return Validation(op, "description must be at most 500 characters")
	case !looksLikeURL(url):
		return Validation(op, "url must be an absolute http(s) URL")
	case len(JoinTags(tags)) > 255:
		return Validation(op, "tags must be at most 255 characters")
	}
	if _, ok := ParseAuthType(string(auth)); !ok {
		return Validation(op, "auth type must be one of none, bearer, basic, api_key")
	}
	return nil
}

func looksLikeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, prefix) && len(raw) > len(prefix) {
			return true
		}
	}
	return false
}
