package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"agenttrace/internal/models"
)

// SQLiteSchema is the table layout producers write spans into. Each row keeps
// the original span document in record; span_id and trace_id are indexed copies
// and must be written with every row.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS spans (
	span_id TEXT PRIMARY KEY,
	trace_id TEXT NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_spans_trace ON spans(trace_id);
`

// SQLiteStore reads spans from a SQLite database opened read-only.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	onSkip SkipRecorder
}

// OpenSQLite opens dbPath read-only and verifies the connection.
func OpenSQLite(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath == "" {
		return nil, errors.New("sqlite backend requires store.sqlite_path")
	}

	dsn := "file:" + dbPath + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: logger,
	}, nil
}

// GetSpan looks a span up by primary key.
func (s *SQLiteStore) GetSpan(ctx context.Context, spanID string) (models.Span, bool) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM spans WHERE span_id = ?`, spanID).Scan(&record)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("Span lookup failed", "span_id", spanID, "error", err)
		}
		return models.Span{}, false
	}
	span, err := models.ParseSpan([]byte(record))
	if err != nil {
		s.logger.Debug("Skipping malformed span", "span_id", spanID, "error", err)
		return models.Span{}, false
	}
	return span, true
}

// ListSpans returns every span in rowid order.
func (s *SQLiteStore) ListSpans(ctx context.Context) ([]models.Span, error) {
	return s.query(ctx, `SELECT span_id, record FROM spans ORDER BY rowid`)
}

// SpansForTrace uses the trace_id index instead of a full scan. Rows with a
// blank trace_id column are read too and selected by their record.
func (s *SQLiteStore) SpansForTrace(ctx context.Context, traceID string) ([]models.Span, error) {
	spans, err := s.query(ctx, `SELECT span_id, record FROM spans WHERE trace_id = ? OR trace_id = '' OR trace_id IS NULL ORDER BY rowid`, traceID)
	if err != nil {
		return nil, err
	}
	// The indexed column is a copy; the record is authoritative.
	out := spans[:0]
	for _, span := range spans {
		if span.TraceID == traceID {
			out = append(out, span)
		}
	}
	return out, nil
}

// Ping verifies the database is still reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]models.Span, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("span query failed: %w", err)
	}
	defer rows.Close()

	var spans []models.Span
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, fmt.Errorf("failed to scan span row: %w", err)
		}
		span, err := models.ParseSpan([]byte(record))
		if err != nil {
			s.logger.Debug("Skipping malformed span", "span_id", id, "error", err)
			if s.onSkip != nil {
				s.onSkip("span")
			}
			continue
		}
		spans = append(spans, span)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("span query failed: %w", err)
	}
	return spans, nil
}
