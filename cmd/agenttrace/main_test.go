package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	runs := filepath.Join(root, "runs")
	require.NoError(t, os.MkdirAll(runs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runs, "s1.yaml"), []byte("span_id: s1\ntrace_id: t1\noperation_name: orchestrator\nstatus: {code: OK}\nduration_ms: 500\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runs, "s2.yaml"), []byte("span_id: s2\ntrace_id: t1\nparent_span_id: s1\noperation_name: worker\nstatus: {code: ERROR}\nduration_ms: 200\n"), 0o644))

	path := filepath.Join(root, "config.yaml")
	cfg := fmt.Sprintf("app:\n  log_level: error\nstore:\n  trace_dir: %q\nquery:\n  runs_limit: 7\n", root)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestQueryCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "query", "lineage", "trace_id=t1")
	require.NoError(t, err)
	assert.Contains(t, out, "TRACE LINEAGE: t1")
	assert.Contains(t, out, "[✓] orchestrator (500ms)")
	assert.Contains(t, out, "        └─ [✗] worker (200ms)")

	out, _, err = execute(t, "--config", cfg, "query", "span", "span_id=nope")
	require.NoError(t, err)
	assert.Equal(t, "Span not found: nope\n", out)
}

func TestQueryCommandErrors(t *testing.T) {
	cfg := writeConfig(t)

	_, stderr, err := execute(t, "--config", cfg, "query", "trace_bogus")
	require.Error(t, err)
	assert.Contains(t, stderr, "unsupported query")

	_, _, err = execute(t, "--config", cfg, "query", "lineage", "trace_id")
	assert.ErrorContains(t, err, "expected key=value")

	_, _, err = execute(t, "--config", cfg, "query")
	assert.Error(t, err)
}

func TestQueriesCommand(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t), "queries")
	require.NoError(t, err)
	assert.Contains(t, out, "trace_lineage")
	assert.Contains(t, out, "[format=tree|deep|diagram|structured(tree)]")
	assert.Contains(t, out, "[limit(7)]")
	assert.Contains(t, out, "span_id")
}

func TestColorize(t *testing.T) {
	plain := "[1, 2]"
	assert.Equal(t, plain, colorize(plain))

	tree := "TRACE LINEAGE: t1\n[✓] a (1ms)\n    └─ [✗] b (n/a)\n"
	out := colorize(tree)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "(1ms)")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
