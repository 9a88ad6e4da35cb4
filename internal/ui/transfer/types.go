package transfer

import (
	"errors"
	"strings"

	"mcpdesk/internal/domain"
)

// Source identifies a client configuration to import servers from.
type Source string

const (
	// SourceClaude identifies the Claude config source.
	SourceClaude Source = "claude"
	// SourceCodex identifies the Codex config source.
	SourceCodex Source = "codex"
	// SourceGemini identifies the Gemini config source.
	SourceGemini Source = "gemini"
)

const (
	// IssueInvalid indicates an invalid entry in the source config.
	IssueInvalid = "invalid"
	// IssueDuplicate indicates a duplicate entry in the source config.
	IssueDuplicate = "duplicate"
	// IssueUnsupported indicates a valid entry that cannot be registered remotely.
	IssueUnsupported = "unsupported"
	// IssueLossy indicates an entry was imported but some settings were dropped.
	IssueLossy = "lossy"
)

var (
	// ErrNotFound indicates the source config file is missing.
	ErrNotFound = errors.New("transfer source config not found")
	// ErrUnknownSource indicates the source string is not supported.
	ErrUnknownSource = errors.New("unknown transfer source")
)

// Issue describes a parsing or validation issue.
type Issue struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result holds the registrable servers and issues of a transfer source.
type Result struct {
	Source  Source                       `json:"source"`
	Path    string                       `json:"path"`
	Servers []domain.ServerCreateRequest `json:"servers"`
	Issues  []Issue                      `json:"issues,omitempty"`
}

// ParseSource converts a raw string into a Source.
func ParseSource(raw string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SourceClaude):
		return SourceClaude, nil
	case string(SourceCodex):
		return SourceCodex, nil
	case string(SourceGemini):
		return SourceGemini, nil
	default:
		return "", ErrUnknownSource
	}
}
