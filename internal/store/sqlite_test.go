package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSQLite plays the producer: it creates the schema and writes rows the
// read-only store is then opened over.
func seedSQLite(t *testing.T, rows [][3]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spans.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(SQLiteSchema)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO spans (span_id, trace_id, record) VALUES (?, ?, ?)`, r[0], r[1], r[2])
		require.NoError(t, err)
	}
	return path
}

func TestSQLiteStore(t *testing.T) {
	path := seedSQLite(t, [][3]string{
		{"s2", "t1", "span_id: s2\ntrace_id: t1\nparent_span_id: s1\noperation_name: worker\n"},
		{"s1", "t1", `{"span_id": "s1", "trace_id": "t1", "operation_name": "orchestrator"}`},
		{"bad", "t1", "span_id: [broken"},
		{"s3", "t2", "span_id: s3\ntrace_id: t2\n"},
	})

	var skipped int
	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()
	s.onSkip = func(string) { skipped++ }

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	spans, err := s.ListSpans(ctx)
	require.NoError(t, err)
	require.Len(t, spans, 3)
	assert.Equal(t, "s2", spans[0].SpanID)
	assert.Equal(t, "s1", spans[1].SpanID)
	assert.Equal(t, "s3", spans[2].SpanID)
	assert.Equal(t, 1, skipped)

	trace, err := SpansForTrace(ctx, s, "t1")
	require.NoError(t, err)
	assert.Len(t, trace, 2)

	span, ok := s.GetSpan(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, "orchestrator", span.OperationName)

	_, ok = s.GetSpan(ctx, "bad")
	assert.False(t, ok)
	_, ok = s.GetSpan(ctx, "missing")
	assert.False(t, ok)
}

func TestSQLiteSpansForTraceBlankColumn(t *testing.T) {
	path := seedSQLite(t, [][3]string{
		{"s1", "t1", "span_id: s1\ntrace_id: t1\n"},
		{"s9", "", "span_id: s9\ntrace_id: t1\nparent_span_id: s1\n"},
		{"s8", "", "span_id: s8\ntrace_id: t2\n"},
	})

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	trace, err := s.SpansForTrace(ctx, "t1")
	require.NoError(t, err)
	ids := make([]string, 0, len(trace))
	for _, span := range trace {
		ids = append(ids, span.SpanID)
	}
	assert.Equal(t, []string{"s1", "s9"}, ids)

	// Same selection as a full scan filtered on the record.
	all, err := s.ListSpans(ctx)
	require.NoError(t, err)
	var scanned []string
	for _, span := range all {
		if span.TraceID == "t1" {
			scanned = append(scanned, span.SpanID)
		}
	}
	assert.Equal(t, scanned, ids)
}

func TestSQLiteSchemaRequiresTraceID(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "spans.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(SQLiteSchema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO spans (span_id, record) VALUES ('x', 'span_id: x\ntrace_id: t1\n')`)
	assert.Error(t, err)
}

func TestSQLiteStoreIsReadOnly(t *testing.T) {
	path := seedSQLite(t, nil)

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO spans (span_id, record) VALUES ('x', 'span_id: x')`)
	assert.Error(t, err)
}

func TestOpenSQLiteMissingFile(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "absent.db"), nil)
	assert.Error(t, err)

	_, err = OpenSQLite("", nil)
	assert.Error(t, err)
}
