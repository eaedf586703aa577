package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenttrace/internal/events"
	"agenttrace/internal/query"
	"agenttrace/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	runs := filepath.Join(dir, "runs")
	require.NoError(t, os.MkdirAll(runs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runs, "s1.yaml"), []byte("span_id: s1\ntrace_id: t1\noperation_name: orchestrator\nstatus: {code: OK}\nduration_ms: 500\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runs, "s2.yaml"), []byte("span_id: s2\ntrace_id: t1\nparent_span_id: s1\noperation_name: worker\nstatus: {code: ERROR}\nduration_ms: 200\n"), 0o644))

	d := query.New(store.NewDirStore(runs, 2, nil), events.NewLog(filepath.Join(dir, "events", "queue.jsonl"), nil))
	return New(d, nil)
}

func call(t *testing.T, s *Server, queryName, tool string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	res, err := s.Handler(queryName)(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: tool, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestToolsFromCatalog(t *testing.T) {
	tools := newTestServer(t).Tools()

	names := make([]string, 0, len(tools))
	byName := map[string]mcplib.Tool{}
	for _, tool := range tools {
		names = append(names, tool.Name)
		byName[tool.Name] = tool
		require.NotNil(t, tool.Annotations.ReadOnlyHint)
		assert.True(t, *tool.Annotations.ReadOnlyHint)
	}
	assert.Equal(t, []string{"trace_lineage", "trace_runs", "trace_stats", "trace_span", "trace_events"}, names)

	assert.Equal(t, []string{"trace_id"}, byName["trace_lineage"].InputSchema.Required)
	assert.Equal(t, []string{"span_id"}, byName["trace_span"].InputSchema.Required)
	assert.Empty(t, byName["trace_stats"].InputSchema.Required)

	limit, ok := byName["trace_runs"].InputSchema.Properties["limit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", limit["type"])
	assert.Equal(t, 20.0, limit["default"])

	format, ok := byName["trace_lineage"].InputSchema.Properties["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tree", format["default"])
}

func TestRegisterTools(t *testing.T) {
	s := newTestServer(t)
	mcpServer := server.NewMCPServer("agenttrace-test", "0.0.0", server.WithToolCapabilities(false))
	assert.NotPanics(t, func() { s.RegisterTools(mcpServer) })
}

func TestHandlerLineage(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, query.Lineage, "trace_lineage", map[string]any{"trace_id": "t1"})
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "[✓] orchestrator (500ms)")
	assert.Contains(t, out, "[✗] worker (200ms)")

	res = call(t, s, query.Lineage, "trace_lineage", map[string]any{"trace_id": "missing"})
	assert.False(t, res.IsError)
	assert.Equal(t, "No spans found for trace: missing", text(t, res))
}

func TestHandlerNumericArguments(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, query.Runs, "trace_runs", map[string]any{"limit": 1.0})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"span_id": "s1"`)
	assert.NotContains(t, text(t, res), `"span_id": "s2"`)
}

func TestHandlerNotFoundIsText(t *testing.T) {
	s := newTestServer(t)

	res := call(t, s, query.Span, "trace_span", map[string]any{"span_id": "nope"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Span not found: nope", text(t, res))

	res = call(t, s, query.Events, "trace_events", nil)
	assert.False(t, res.IsError)
	assert.Equal(t, "No events in queue", text(t, res))
}

func TestHandlerUnsupported(t *testing.T) {
	res := call(t, newTestServer(t), "bogus", "trace_bogus", map[string]any{"trace_id": "t1"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Unknown tool: trace_bogus", text(t, res))
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, string, query.Args) (string, error) {
	return "", errors.New("disk on fire")
}

func (failingDispatcher) Catalog() []query.Definition { return query.Catalog(20, 20) }

func TestHandlerDispatchFailure(t *testing.T) {
	res := call(t, New(failingDispatcher{}, nil), query.Stats, "trace_stats", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "disk on fire")
}
