package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdesk/internal/domain"
	"mcpdesk/internal/infra/remote/remotetest"
)

var (
	cliServers = []domain.Server{
		{ID: 1, Name: "alpha", URL: "http://alpha.local/mcp", Enabled: true, Tags: []string{"dev"}},
		{ID: 2, Name: "bravo", URL: "http://bravo.local/mcp", Enabled: false},
		{ID: 3, Name: "charlie", URL: "http://charlie.local/mcp", Enabled: true, Tags: []string{"prod"}},
	}
	cliTools = []domain.Tool{
		{ID: 10, ServerID: 1, Name: "search", Category: "web", Enabled: true,
			Parameters: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`)},
		{ID: 11, ServerID: 1, Name: "fetch", Category: "web"},
		{ID: 12, ServerID: 2, Name: "query", Category: "db", Enabled: true},
	}
)

type cliEnv struct {
	t      *testing.T
	api    *remotetest.Server
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))

	api := remotetest.NewServer(cliServers, cliTools)
	t.Cleanup(api.Close)

	path := filepath.Join(dir, "mcpdesk.yaml")
	content := fmt.Sprintf("api:\n  baseURL: %s\n  timeoutSeconds: 2\nlog:\n  level: error\ncache:\n  path: %s\n",
		api.BaseURL(), filepath.Join(dir, "view.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &cliEnv{t: t, api: api, config: path}
}

func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	code, _, _ := describeExit(err)
	return code
}

func TestServersList_PagesFromSavedQuery(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("servers", "list", "--size", "2", "--sort", "name:asc")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "bravo")
	assert.NotContains(t, out, "charlie")
	assert.Contains(t, out, "page 1 of 2, 3 servers, sorted by name asc")

	out, _, err = env.run("servers", "list", "--next")
	require.NoError(t, err)
	assert.Contains(t, out, "charlie")
	assert.NotContains(t, out, "alpha")
	assert.Contains(t, out, "page 2 of 2")

	out, _, err = env.run("servers", "list", "--search", "alp")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 1, 1 servers")
}

func TestServersList_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("-o", "json", "servers", "list", "--enabled", "enabled", "--sort", "name:desc")
	require.NoError(t, err)

	var view pageView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Servers, 2)
	assert.Equal(t, "charlie", view.Servers[0].Name)
	assert.Equal(t, "enabled", view.Query.Enabled)
	assert.False(t, view.Stale)
}

func TestServersList_OfflineShowsCachedPage(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("servers", "list")
	require.NoError(t, err)
	env.api.Close()

	out, errOut, err := env.run("servers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, errOut, "warning: management service unreachable")

	_, _, err = env.run("tools", "disable", "--server", "1")
	require.Error(t, err)
	assert.Equal(t, exitRemote, exitCode(err))
}

func TestServersList_RejectsBadFlags(t *testing.T) {
	env := newCLIEnv(t)

	for _, args := range [][]string{
		{"servers", "list", "--status", "bogus"},
		{"servers", "list", "--sort", "size"},
		{"servers", "list", "--size", "500"},
		{"-o", "xml", "servers", "list"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, _, err := env.run(args...)
			require.Error(t, err)
			assert.Equal(t, exitValidation, exitCode(err))
		})
	}
	assert.Empty(t, env.api.Requests())
}

func TestServersCreateUpdateDelete(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("servers", "create", "--name", "delta", "--url", "ftp://delta")
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))

	out, _, err := env.run("-o", "json", "servers", "create", "--name", "delta", "--url", "http://delta.local/mcp",
		"--auth-type", "bearer", "--auth-config", `{"token":"t"}`, "--tag", "a,b")
	require.NoError(t, err)
	var created serverView
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, []string{"a", "b"}, created.Tags)

	id := fmt.Sprint(created.ID)
	_, _, err = env.run("servers", "update", id, "--description", "fourth")
	require.NoError(t, err)
	record, ok := env.api.ServerRecord(domain.ServerID(created.ID))
	require.True(t, ok)
	assert.Equal(t, "fourth", record.Description)
	assert.Equal(t, "delta", record.Name)
	assert.Equal(t, domain.AuthBearer, record.AuthType)

	_, _, err = env.run("servers", "delete", id)
	assert.Equal(t, exitValidation, exitCode(err))
	_, _, err = env.run("servers", "delete", id, "--yes")
	require.NoError(t, err)
	_, ok = env.api.ServerRecord(domain.ServerID(created.ID))
	assert.False(t, ok)
}

func TestServersEnableDisable(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("servers", "enable", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Enabled:")
	record, _ := env.api.ServerRecord(2)
	assert.True(t, record.Enabled)

	_, _, err = env.run("servers", "disable", "1")
	require.NoError(t, err)
	record, _ = env.api.ServerRecord(1)
	assert.False(t, record.Enabled)
}

func TestServersTestConnection(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("servers", "test", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "http://alpha.local/mcp: connected")

	_, _, err = env.run("servers", "test", "--url", "nope")
	require.Error(t, err)
	code, _, silent := describeExit(err)
	assert.Equal(t, exitRemote, code)
	assert.True(t, silent)
}

func TestServersDiscover(t *testing.T) {
	env := newCLIEnv(t)
	env.api.SetDiscovery(3, []domain.Tool{{ID: 30, Name: "deploy", Category: "ops"}})

	out, _, err := env.run("servers", "discover", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "server 3: 1 tools")

	_, ok := env.api.Tool(30)
	assert.True(t, ok)
}

func TestServersImport(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "claude.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{
		"remote":{"type":"http","url":"https://remote.example/mcp","headers":{"Authorization":"Bearer abc"}},
		"local":{"command":"npx","args":["server"]}
	}}`), 0o600))

	out, _, err := env.run("servers", "import", "--source", "claude", "--file", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would register")
	assert.Contains(t, out, "unsupported: local")
	assert.Empty(t, env.api.Requests())

	out, _, err = env.run("-o", "yaml", "servers", "import", "--source", "claude", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name: remote")
	assert.Contains(t, out, "authType: bearer")

	_, _, err = env.run("servers", "import", "--source", "claude", "--file", path)
	require.Error(t, err)
	assert.Equal(t, exitRemote, exitCode(err))
}

func TestToolsDisableServerScope(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("tools", "disable", "--server", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled 2 tools (server 1)")
	for _, id := range []domain.ToolID{10, 11} {
		tool, ok := env.api.Tool(id)
		require.True(t, ok)
		assert.False(t, tool.Enabled)
	}
	tool, _ := env.api.Tool(12)
	assert.True(t, tool.Enabled)
}

func TestToolsEnableNodeAndSingleTool(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("tools", "enable", "--node", "category-1-web")
	require.NoError(t, err)
	tool, _ := env.api.Tool(11)
	assert.True(t, tool.Enabled)

	_, _, err = env.run("tools", "disable", "--tool", "12")
	require.NoError(t, err)
	tool, _ = env.api.Tool(12)
	assert.False(t, tool.Enabled)

	_, _, err = env.run("tools", "enable", "--node", "server-99")
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))

	_, _, err = env.run("tools", "enable", "--category", "web")
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestToolsCategorize(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("tools", "categorize", "lookup", "--server", "1", "--category", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "moved 2 tools to lookup (server 1 category \"web\")")
	for _, id := range []domain.ToolID{10, 11} {
		tool, ok := env.api.Tool(id)
		require.True(t, ok)
		assert.Equal(t, "lookup", tool.Category)
	}

	_, _, err = env.run("tools", "categorize", "storage", "--node", "tool-2-db-12")
	require.NoError(t, err)
	tool, _ := env.api.Tool(12)
	assert.Equal(t, "storage", tool.Category)

	_, _, err = env.run("tools", "categorize", "x", "--node", "server-99")
	assert.Equal(t, exitValidation, exitCode(err))
	_, _, err = env.run("tools", "categorize", " ", "--tool", "10")
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestToolsEnableEmptyScope(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("tools", "enable", "--server", "3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyScope))
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestToolsTree(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("tools", "tree", "--sort", "name:asc")
	require.NoError(t, err)
	assert.Contains(t, out, "[mixed] alpha (1/2)  server-1")
	assert.Contains(t, out, "  [mixed] web (1/2)  category-1-web")
	assert.Contains(t, out, "    [on] search  tool-1-web-10")
	assert.Contains(t, out, "[empty] charlie (0/0)  server-3")
	assert.Contains(t, out, "3 servers, 2 categories, 3 tools (2 enabled)")

	out, _, err = env.run("-o", "json", "tools", "tree")
	require.NoError(t, err)
	var view treeView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, statsView{Servers: 3, Categories: 2, Tools: 3, Enabled: 2}, view.Stats)
}

func TestToolsParams(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run("tools", "params", "10", "--args", `{"q":"go"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "q")
	assert.Contains(t, out, "arguments valid")

	_, _, err = env.run("tools", "params", "10", "--args", `{}`)
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))

	_, _, err = env.run("tools", "params", "99")
	require.Error(t, err)
	assert.Equal(t, exitRemote, exitCode(err))
}

func TestCacheListAndClear(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("servers", "list")
	require.NoError(t, err)

	out, _, err := env.run("cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, env.api.BaseURL())

	_, _, err = env.run("cache", "clear")
	require.NoError(t, err)
	out, _, err = env.run("cache", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, env.api.BaseURL())
}

func TestDescribeExit(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   int
		silent bool
	}{
		{name: "usage", err: usageError("bad flag"), code: exitValidation},
		{name: "silent", err: exitSilent(exitRemote), code: exitRemote, silent: true},
		{name: "validation", err: domain.Validation("op", "bad"), code: exitValidation},
		{name: "transport", err: domain.Transport("op", errors.New("refused")), code: exitRemote},
		{name: "remote", err: domain.RemoteFailure("op", "nope", 500), code: exitRemote},
		{name: "wrapped remote", err: fmt.Errorf("ctx: %w", domain.RemoteFailure("op", "nope", 409)), code: exitRemote},
		{name: "other", err: errors.New("boom"), code: exitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, silent := describeExit(tc.err)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.silent, silent)
		})
	}
}
