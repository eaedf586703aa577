// Package store provides read-only access to persisted span records.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agenttrace/internal/config"
	"agenttrace/internal/models"
)

// SpanStore loads span records. Missing and malformed records are never errors:
// GetSpan reports them as absent and ListSpans skips them.
type SpanStore interface {
	GetSpan(ctx context.Context, spanID string) (models.Span, bool)
	ListSpans(ctx context.Context) ([]models.Span, error)
}

// TraceLister is implemented by stores that can select one trace without a full scan.
type TraceLister interface {
	SpansForTrace(ctx context.Context, traceID string) ([]models.Span, error)
}

// SkipRecorder is notified for every record a store drops while enumerating.
type SkipRecorder func(kind string)

// Backend names accepted in store.backend.
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// Open builds the configured store. The returned close function releases any
// resources held by the backend and is always safe to call.
func Open(cfg config.StoreConfig, logger *slog.Logger, onSkip SkipRecorder) (SpanStore, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendDir:
		s := NewDirStore(cfg.GetRunsDir(), cfg.LoadWorkers, logger)
		s.onSkip = onSkip
		return s, func() error { return nil }, nil
	case BackendSQLite:
		s, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		s.onSkip = onSkip
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// SpansForTrace selects the spans of one trace, using the store's own index when it has one.
func SpansForTrace(ctx context.Context, s SpanStore, traceID string) ([]models.Span, error) {
	if tl, ok := s.(TraceLister); ok {
		return tl.SpansForTrace(ctx, traceID)
	}
	all, err := s.ListSpans(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Span
	for _, span := range all {
		if span.TraceID == traceID {
			out = append(out, span)
		}
	}
	return out, nil
}
