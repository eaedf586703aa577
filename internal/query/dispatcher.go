package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agenttrace/internal/aggregate"
	"agenttrace/internal/events"
	"agenttrace/internal/lineage"
	"agenttrace/internal/store"
)

// ErrUnsupportedQuery is returned for any query name outside the catalog.
var ErrUnsupportedQuery = errors.New("unsupported query")

const noEvents = "No events in queue"

const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeUnsupported = "unsupported"
	outcomeError       = "error"
)

var tracer = otel.Tracer("agenttrace.query")

// Dispatcher serves named queries. It keeps no state between calls, so one
// Dispatcher may serve concurrent queries.
type Dispatcher struct {
	spans      store.SpanStore
	events     *events.Log
	lineage    *lineage.Builder
	aggregates *aggregate.Aggregator

	logger      *slog.Logger
	metrics     *Metrics
	runsLimit   int
	eventsLimit int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records query counts and latencies on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDefaults overrides the default limit of runs and events. Non-positive
// values keep the built-in default.
func WithDefaults(runsLimit, eventsLimit int) Option {
	return func(d *Dispatcher) {
		if runsLimit > 0 {
			d.runsLimit = runsLimit
		}
		if eventsLimit > 0 {
			d.eventsLimit = eventsLimit
		}
	}
}

// New creates a Dispatcher over a span store and an event log.
func New(spans store.SpanStore, log *events.Log, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		spans:       spans,
		events:      log,
		lineage:     lineage.NewBuilder(spans),
		aggregates:  aggregate.New(spans),
		logger:      slog.Default(),
		runsLimit:   aggregate.DefaultRunsLimit,
		eventsLimit: 20,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Catalog returns the query definitions with this dispatcher's defaults.
func (d *Dispatcher) Catalog() []Definition {
	return Catalog(d.runsLimit, d.eventsLimit)
}

// Dispatch runs the named query and returns its rendered payload. Not-found
// conditions are ordinary payloads; only an unknown name or a store failure
// returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args Args) (string, error) {
	ctx, span := tracer.Start(ctx, "query."+name,
		trace.WithAttributes(attribute.String("query.name", name)),
	)
	defer span.End()

	queryID := uuid.NewString()
	start := time.Now()

	out, outcome, err := d.run(ctx, name, args)
	elapsed := time.Since(start)
	d.metrics.observe(name, outcome, elapsed.Seconds())

	span.SetAttributes(attribute.String("query.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("query failed",
			slog.String("query", name),
			slog.String("query_id", queryID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	d.logger.Debug("query served",
		slog.String("query", name),
		slog.String("query_id", queryID),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	)
	return out, nil
}

func (d *Dispatcher) run(ctx context.Context, name string, args Args) (string, string, error) {
	switch name {
	case Lineage:
		return d.lineageQuery(ctx, args)
	case Runs:
		return d.runsQuery(ctx, args)
	case Stats:
		return d.statsQuery(ctx, args)
	case Span:
		return d.spanQuery(ctx, args)
	case Events:
		return d.eventsQuery(ctx, args)
	default:
		return "", outcomeUnsupported, fmt.Errorf("%w: %s", ErrUnsupportedQuery, name)
	}
}

func (d *Dispatcher) lineageQuery(ctx context.Context, args Args) (string, string, error) {
	traceID := args.String("trace_id", "")
	format := lineage.ParseFormat(args.String("format", string(lineage.FormatTree)))

	if traceID == "" {
		return notFoundTrace(traceID), outcomeNotFound, nil
	}
	forest, err := d.lineage.BuildLineage(ctx, traceID)
	if err != nil {
		return "", outcomeError, fmt.Errorf("build lineage for %s: %w", traceID, err)
	}
	if forest == nil {
		return notFoundTrace(traceID), outcomeNotFound, nil
	}

	out, err := forest.Render(format)
	if err != nil {
		return "", outcomeError, fmt.Errorf("render lineage: %w", err)
	}
	return out, outcomeOK, nil
}

func (d *Dispatcher) runsQuery(ctx context.Context, args Args) (string, string, error) {
	rows, err := d.aggregates.ListRuns(ctx, args.String("agent_id", ""), args.Int("limit", d.runsLimit))
	if err != nil {
		return "", outcomeError, fmt.Errorf("list runs: %w", err)
	}
	return encode(rows)
}

func (d *Dispatcher) statsQuery(ctx context.Context, args Args) (string, string, error) {
	rows, err := d.aggregates.ComputeStats(ctx, args.String("agent_id", ""))
	if err != nil {
		return "", outcomeError, fmt.Errorf("compute stats: %w", err)
	}
	return encode(rows)
}

func (d *Dispatcher) spanQuery(ctx context.Context, args Args) (string, string, error) {
	spanID := args.String("span_id", "")
	if spanID == "" {
		return notFoundSpan(spanID), outcomeNotFound, nil
	}
	span, ok := d.spans.GetSpan(ctx, spanID)
	if !ok {
		return notFoundSpan(spanID), outcomeNotFound, nil
	}
	return encode(span)
}

func (d *Dispatcher) eventsQuery(ctx context.Context, args Args) (string, string, error) {
	if d.events == nil {
		return noEvents, outcomeNotFound, nil
	}
	evs, found := d.events.Recent(ctx, args.String("type", ""), args.Int("limit", d.eventsLimit))
	if !found {
		return noEvents, outcomeNotFound, nil
	}
	if err := ctx.Err(); err != nil {
		return "", outcomeError, fmt.Errorf("read events: %w", err)
	}
	return encode(evs)
}

func notFoundTrace(traceID string) string {
	return fmt.Sprintf("No spans found for trace: %s", traceID)
}

func notFoundSpan(spanID string) string {
	return fmt.Sprintf("Span not found: %s", spanID)
}

func encode(v any) (string, string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", outcomeError, fmt.Errorf("encode result: %w", err)
	}
	return string(data), outcomeOK, nil
}
