package transfer

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
)

func TestReadSourceClaudeHTTP(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeFile(t, filepath.Join(home, ".claude.json"), `{
  "mcpServers": {
    "web": {
      "transport": "streamable_http",
      "endpoint": "https://example.com/mcp",
      "headers": {"Authorization": "Bearer token"},
      "maxRetries": 2
    },
    "alpha": {
      "type": "sse",
      "url": "http://alpha.local/sse",
      "description": "alpha server"
    }
  }
}`)

	result, err := ReadSource(SourceClaude)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".claude.json"), result.Path)
	assert.Empty(t, result.Issues)
	require.Len(t, result.Servers, 2)

	alpha := result.Servers[0]
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, "alpha server", alpha.Description)
	assert.Equal(t, "http://alpha.local/sse", alpha.URL)
	assert.Equal(t, domain.AuthNone, alpha.AuthType)
	assert.Equal(t, []string{"imported", "claude"}, alpha.Tags)

	web := result.Servers[1]
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, domain.AuthBearer, web.AuthType)
	assert.JSONEq(t, `{"token":"token"}`, web.AuthConfig)
}

func TestReadSourceClaudeStdioIsUnsupported(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeFile(t, filepath.Join(home, ".claude.json"), `{
  "mcpServers": {
    "local": {"command": "node", "args": ["server.js"]},
    "explicit": {"type": "stdio", "command": "uvx"}
  }
}`)

	result, err := ReadSource(SourceClaude)
	require.NoError(t, err)
	assert.Empty(t, result.Servers)
	require.Len(t, result.Issues, 2)
	for _, issue := range result.Issues {
		assert.Equal(t, IssueUnsupported, issue.Kind)
	}
}

func TestReadSourceGeminiAuthHeaders(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	basic := base64.StdEncoding.EncodeToString([]byte("ada:secret"))
	writeFile(t, filepath.Join(home, ".gemini", "settings.json"), `{
  "mcpServers": {
    "basic": {"httpUrl": "https://basic.example/mcp", "headers": {"Authorization": "Basic `+basic+`"}},
    "keyed": {"url": "https://keyed.example/mcp", "headers": {"X-API-Key": "k-123"}},
    "noisy": {"url": "https://noisy.example/mcp", "headers": {"Authorization": "Bearer t", "X-Trace": "1"}},
    "ambiguous": {"url": "https://amb.example/mcp", "headers": {"X-A": "a", "X-B": "b"}}
  }
}`)

	result, err := ReadSource(SourceGemini)
	require.NoError(t, err)
	require.Len(t, result.Servers, 4)

	byName := make(map[string]domain.ServerCreateRequest)
	for _, server := range result.Servers {
		byName[server.Name] = server
		assert.Contains(t, server.Tags, "gemini")
	}

	assert.Equal(t, domain.AuthBasic, byName["basic"].AuthType)
	assert.JSONEq(t, `{"username":"ada","password":"secret"}`, byName["basic"].AuthConfig)
	assert.Equal(t, domain.AuthAPIKey, byName["keyed"].AuthType)
	assert.JSONEq(t, `{"header":"X-API-Key","key":"k-123"}`, byName["keyed"].AuthConfig)
	assert.Equal(t, domain.AuthBearer, byName["noisy"].AuthType)
	assert.Equal(t, domain.AuthNone, byName["ambiguous"].AuthType)

	require.Len(t, result.Issues, 2)
	assert.Equal(t, Issue{Name: "ambiguous", Kind: IssueLossy, Message: "headers not carried over: X-A, X-B"}, result.Issues[0])
	assert.Equal(t, Issue{Name: "noisy", Kind: IssueLossy, Message: "headers not carried over: X-Trace"}, result.Issues[1])
}

func TestReadSourceCodexLegacyAndPrimary(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeFile(t, filepath.Join(home, ".codex", "config.toml"), `
[mcp_servers.alpha]
url = "https://alpha.example/mcp"
http_headers = { Authorization = "Bearer abc" }

[mcp_servers.tool]
command = "node"

[mcp.servers.alpha]
url = "https://legacy.example/mcp"

[mcp.servers.beta]
url = "https://beta.example/mcp"
`)

	result, err := ReadSource(SourceCodex)
	require.NoError(t, err)
	require.Len(t, result.Servers, 2)
	assert.Equal(t, "alpha", result.Servers[0].Name)
	assert.Equal(t, "https://alpha.example/mcp", result.Servers[0].URL)
	assert.Equal(t, domain.AuthBearer, result.Servers[0].AuthType)
	assert.Equal(t, "beta", result.Servers[1].Name)

	kinds := make(map[string]string)
	for _, issue := range result.Issues {
		kinds[issue.Name] = issue.Kind
	}
	assert.Equal(t, map[string]string{"alpha": IssueDuplicate, "tool": IssueUnsupported}, kinds)
}

func TestReadFileInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	writeFile(t, path, `{
  "mcpServers": {
    "bad-url": {"type": "http", "url": "ftp://nope"},
    "no-url": {"type": "http"},
    "weird": {"type": "websocket", "url": "https://x.example"},
    "scalar": 3,
    "bad-headers": {"url": "https://h.example", "headers": {"X": 1}}
  }
}`)

	result, err := ReadFile(SourceClaude, path)
	require.NoError(t, err)
	assert.Empty(t, result.Servers)
	require.Len(t, result.Issues, 5)
	for _, issue := range result.Issues {
		assert.Equal(t, IssueInvalid, issue.Kind, issue.Name)
	}
}

func TestReadSourceErrors(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := ReadSource(SourceClaude)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ReadSource(Source("cursor"))
	assert.ErrorIs(t, err, ErrUnknownSource)

	writeFile(t, filepath.Join(home, ".claude.json"), `{"mcpServers": []}`)
	_, err = ReadSource(SourceClaude)
	assert.Error(t, err)

	writeFile(t, filepath.Join(home, ".claude.json"), `{`)
	_, err = ReadSource(SourceClaude)
	assert.ErrorContains(t, err, "parse json")
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource(" Codex ")
	require.NoError(t, err)
	assert.Equal(t, SourceCodex, src)

	_, err = ParseSource("vscode")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
