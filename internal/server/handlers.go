package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agenttrace/internal/query"
)

// maxBodySize bounds POST /query argument bodies.
const maxBodySize = 1 << 20

// Dispatcher serves named trace queries.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args query.Args) (string, error)
	Catalog() []query.Definition
}

// Pinger reports whether the backing span store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the server dependencies
type Handler struct {
	dispatcher Dispatcher
	store      Pinger
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// NewHandler creates a new handler. store and gatherer may be nil; /ready then
// always succeeds and /metrics serves the default registry.
func NewHandler(d Dispatcher, store Pinger, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher: d,
		store:      store,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/queries", h.HandleQueries)
	r.Get("/query/{name}", h.HandleQuery)
	r.Post("/query/{name}", h.HandleQuery)
}

// HandleQuery dispatches one query. Arguments come from the URL query string
// and, for POST, a JSON object body whose fields take precedence.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := query.Args{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			args[k] = v[0]
		}
	}

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if len(strings.TrimSpace(string(body))) > 0 {
			var fields map[string]any
			if err := json.Unmarshal(body, &fields); err != nil {
				http.Error(w, "Invalid query arguments", http.StatusBadRequest)
				return
			}
			for k, v := range fields {
				args[k] = v
			}
		}
	}

	out, err := h.dispatcher.Dispatch(r.Context(), name, args)
	if err != nil {
		if errors.Is(err, query.ErrUnsupportedQuery) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("query failed", "query", name, "error", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// HandleQueries lists the supported queries and their argument schemas.
func (h *Handler) HandleQueries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispatcher.Catalog())
}

// HandleHealth returns health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady returns readiness status
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
