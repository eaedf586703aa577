// Package app assembles the span store, event log, metrics and query
// dispatcher from configuration, and exposes them over HTTP and MCP.
package app

import (
	"fmt"
	"io"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"agenttrace/internal/config"
	"agenttrace/internal/events"
	"agenttrace/internal/mcp"
	"agenttrace/internal/query"
	"agenttrace/internal/server"
	"agenttrace/internal/store"
)

// App holds the wired components of one process.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Registry   *prometheus.Registry
	Metrics    *query.Metrics
	Store      store.SpanStore
	Events     *events.Log
	Dispatcher *query.Dispatcher

	closeStore func() error
}

// NewLogger builds a JSON logger at the configured level writing to w.
func NewLogger(cfg config.AppConfig, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// New opens the configured store and builds the dispatcher. Call Close when done.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := query.NewMetrics(reg)

	spans, closeStore, err := store.Open(cfg.Store, logger, metrics.RecordSkipped)
	if err != nil {
		return nil, fmt.Errorf("open span store: %w", err)
	}

	log := events.NewLog(cfg.Store.GetEventsFile(), logger)
	log.OnSkip(metrics.RecordSkipped)

	d := query.New(spans, log,
		query.WithLogger(logger),
		query.WithMetrics(metrics),
		query.WithDefaults(cfg.Query.RunsLimit, cfg.Query.EventsLimit),
	)

	logger.Info("trace store opened",
		"backend", cfg.Store.Backend,
		"runs_dir", cfg.Store.GetRunsDir(),
		"events_file", log.Path(),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Metrics:    metrics,
		Store:      spans,
		Events:     log,
		Dispatcher: d,
		closeStore: closeStore,
	}, nil
}

// HTTPServer builds the HTTP query server on the configured address.
func (a *App) HTTPServer() *server.Server {
	pinger, _ := a.Store.(server.Pinger)
	h := server.NewHandler(a.Dispatcher, pinger, a.Registry, a.Logger)
	return server.New(a.Config, h)
}

// MCPServer builds an MCP server with every trace tool registered.
func (a *App) MCPServer(version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"agenttrace",
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	mcp.New(a.Dispatcher, a.Logger).RegisterTools(s)
	return s
}

// Close releases the span store.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}
