package main

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryPath is set by TestMain after building the binary.
var binaryPath string

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	tmp, err := os.MkdirTemp("", "mtag-integration-*")
	if err != nil {
		panic(err)
	}

	binaryPath = filepath.Join(tmp, "mtag")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(tmp)
		panic("failed to build binary: " + err.Error())
	}

	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

// --- helpers ---

func skipIfNotIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}
}

// startServer launches mtag serve as a subprocess and returns an initialized MCP client.
func startServer(t *testing.T, args ...string) *client.Client {
	t.Helper()

	c, err := client.NewStdioMCPClient(binaryPath, nil, append([]string{"serve"}, args...)...)
	require.NoError(t, err, "failed to start MCP server")
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "mtag-integration-test",
		Version: "1.0.0",
	}

	result, err := c.Initialize(ctx, initReq)
	require.NoError(t, err, "failed to initialize MCP session")
	assert.Equal(t, "mtag", result.ServerInfo.Name)

	return c
}

func callToolHelper(t *testing.T, c *client.Client, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	if args != nil {
		req.Params.Arguments = args
	}

	result, err := c.CallTool(ctx, req)
	require.NoError(t, err, "CallTool(%s) failed", toolName)
	return result
}

func extractJSON(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected content in result")
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

// --- integration tests ---

func TestIntegration_ListTools(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"tag_source",
		"tag_file",
		"describe_path",
		"index_workspace",
		"find_component",
	}, names)
}

func TestIntegration_TagSource(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t)

	result := callToolHelper(t, c, "tag_source", map[string]any{
		"code":     "const Nav = () => m('nav');",
		"filename": "Nav.js",
	})
	require.False(t, result.IsError, extractJSON(t, result))

	var got struct {
		Code    string `json:"code"`
		Changed bool   `json:"changed"`
	}
	require.NoError(t, json.Unmarshal([]byte(extractJSON(t, result)), &got))
	assert.True(t, got.Changed)
	assert.Equal(t, "const Nav = () => m('nav', { 'data-component': 'Nav' });", got.Code)

	result = callToolHelper(t, c, "tag_source", map[string]any{"code": "const = ;"})
	assert.True(t, result.IsError)
}

func TestIntegration_IndexAndFind(t *testing.T) {
	skipIfNotIntegration(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Card.js"),
		[]byte("function Card() {\n  return m('.card');\n}\n"), 0644))

	callLog := filepath.Join(t.TempDir(), "calls.jsonl")
	c := startServer(t, "--call-log", callLog)

	result := callToolHelper(t, c, "index_workspace", map[string]any{"root": dir})
	require.False(t, result.IsError, extractJSON(t, result))

	result = callToolHelper(t, c, "find_component", map[string]any{"name": "Card"})
	var locations []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractJSON(t, result)), &locations))
	require.Len(t, locations, 1)
	assert.Equal(t, filepath.Join(dir, "Card.js"), locations[0]["file"])

	data, err := os.ReadFile(callLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tool":"find_component"`)
}
