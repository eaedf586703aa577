package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	queries        *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	recordsSkipped *prometheus.CounterVec
}

// NewMetrics registers the query collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenttrace",
			Name:      "queries_total",
			Help:      "Dispatched trace queries by query name and outcome.",
		}, []string{"query", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenttrace",
			Name:      "query_duration_seconds",
			Help:      "Time spent serving a trace query.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"query"}),
		recordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenttrace",
			Name:      "records_skipped_total",
			Help:      "Span and event records skipped because they failed to parse.",
		}, []string{"kind"}),
	}
}

// RecordSkipped counts one malformed record of the given kind.
func (m *Metrics) RecordSkipped(kind string) {
	if m == nil {
		return
	}
	m.recordsSkipped.WithLabelValues(kind).Inc()
}

func (m *Metrics) observe(query, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(query, outcome).Inc()
	m.duration.WithLabelValues(query).Observe(seconds)
}
