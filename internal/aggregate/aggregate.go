// Package aggregate computes run listings and per-operation statistics over spans.
package aggregate

import (
	"context"
	"fmt"
	"math"

	"agenttrace/internal/models"
	"agenttrace/internal/store"
)

// DefaultRunsLimit bounds a run listing when the caller gives no limit.
const DefaultRunsLimit = 20

const unknownOperation = "unknown"

// ListRuns keeps spans whose operation_name equals operation (all spans when
// operation is empty) and projects the first limit of them, in input order.
// A limit of zero or less yields an empty listing.
func ListRuns(spans []models.Span, operation string, limit int) []models.RunSummary {
	if limit <= 0 {
		return []models.RunSummary{}
	}
	rows := make([]models.RunSummary, 0, min(limit, len(spans)))
	for _, s := range spans {
		if len(rows) == limit {
			break
		}
		if operation != "" && s.OperationName != operation {
			continue
		}
		rows = append(rows, models.RunSummary{
			SpanID:     models.ShortID(s.SpanID, 16),
			Operation:  s.OperationName,
			DurationMs: s.DurationMs,
			Status:     s.Code(),
			Start:      s.StartTime,
		})
	}
	return rows
}

type group struct {
	runs, success int
	durationTotal int64
	durationCount int
}

// ComputeStats groups completed spans (status OK or any other definite code)
// by operation, one row per group in first-encounter order. Every non-OK
// outcome counts as an error.
func ComputeStats(spans []models.Span, operation string) []models.OperationStats {
	var order []string
	groups := make(map[string]*group)

	for _, s := range spans {
		if !s.HasOutcome() {
			continue
		}
		op := s.OperationName
		if op == "" {
			op = unknownOperation
		}
		if operation != "" && op != operation {
			continue
		}

		g, ok := groups[op]
		if !ok {
			g = &group{}
			groups[op] = g
			order = append(order, op)
		}
		g.runs++
		if s.Code() == models.StatusOK {
			g.success++
		}
		if s.DurationMs != nil {
			g.durationTotal += *s.DurationMs
			g.durationCount++
		}
	}

	rows := make([]models.OperationStats, 0, len(order))
	for _, op := range order {
		g := groups[op]
		row := models.OperationStats{
			Operation:   op,
			Runs:        g.runs,
			Success:     g.success,
			Error:       g.runs - g.success,
			SuccessRate: fmt.Sprintf("%.1f%%", float64(g.success)/float64(g.runs)*100),
		}
		if g.durationCount > 0 {
			avg := int64(math.Round(float64(g.durationTotal) / float64(g.durationCount)))
			row.AvgDurationMs = &avg
		}
		rows = append(rows, row)
	}
	return rows
}

// Aggregator runs ListRuns and ComputeStats against a store. Every call
// re-reads the store.
type Aggregator struct {
	store store.SpanStore
}

// New creates an Aggregator over s.
func New(s store.SpanStore) *Aggregator {
	return &Aggregator{store: s}
}

// ListRuns loads all spans and returns the bounded run listing.
func (a *Aggregator) ListRuns(ctx context.Context, operation string, limit int) ([]models.RunSummary, error) {
	spans, err := a.store.ListSpans(ctx)
	if err != nil {
		return nil, err
	}
	return ListRuns(spans, operation, limit), nil
}

// ComputeStats loads all spans and returns per-operation statistics.
func (a *Aggregator) ComputeStats(ctx context.Context, operation string) ([]models.OperationStats, error) {
	spans, err := a.store.ListSpans(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeStats(spans, operation), nil
}
