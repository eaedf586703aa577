// Package query routes named trace queries to the span, lineage, aggregate and
// event components and renders a single textual payload per call.
package query

import (
	"agenttrace/internal/lineage"
	"agenttrace/internal/models"
)

// Query names accepted by the Dispatcher.
const (
	Lineage = "lineage"
	Runs    = "runs"
	Stats   = "stats"
	Span    = "span"
	Events  = "events"
)

// ParamType is the JSON type of a query argument.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
)

// Param documents one argument of a query.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
}

// Definition documents a query and its argument schema.
type Definition struct {
	Name        string  `json:"name"`
	ToolName    string  `json:"tool_name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Catalog returns the definitions of every supported query. runsLimit and
// eventsLimit are the defaults advertised for limit.
func Catalog(runsLimit, eventsLimit int) []Definition {
	formats := make([]string, 0, len(lineage.Formats))
	for _, f := range lineage.Formats {
		formats = append(formats, string(f))
	}

	return []Definition{
		{
			Name:        Lineage,
			ToolName:    "trace_lineage",
			Description: "Show parent-child agent spawn relationships for a trace",
			Params: []Param{
				{Name: "trace_id", Type: ParamString, Required: true, Description: "The trace ID to show lineage for"},
				{Name: "format", Type: ParamString, Default: string(lineage.FormatTree), Enum: formats,
					Description: "Output format: tree (roots and direct children), deep (full hierarchy), diagram (Mermaid), structured (raw JSON)"},
			},
		},
		{
			Name:        Runs,
			ToolName:    "trace_runs",
			Description: "List completed agent runs, optionally filtered by agent",
			Params: []Param{
				{Name: "agent_id", Type: ParamString, Description: "Filter by agent operation name"},
				{Name: "limit", Type: ParamNumber, Default: runsLimit, Description: "Maximum number of runs to return"},
			},
		},
		{
			Name:        Stats,
			ToolName:    "trace_stats",
			Description: "Get aggregate statistics for agent runs",
			Params: []Param{
				{Name: "agent_id", Type: ParamString, Description: "Filter stats by agent operation name"},
			},
		},
		{
			Name:        Span,
			ToolName:    "trace_span",
			Description: "Get full details of a specific span",
			Params: []Param{
				{Name: "span_id", Type: ParamString, Required: true, Description: "The span ID to retrieve"},
			},
		},
		{
			Name:        Events,
			ToolName:    "trace_events",
			Description: "Get recent events from the event queue",
			Params: []Param{
				{Name: "limit", Type: ParamNumber, Default: eventsLimit, Description: "Maximum number of events to return"},
				{Name: "type", Type: ParamString, Description: "Filter by event type",
					Enum: []string{models.EventAgentSpawn, models.EventAgentComplete, models.EventAgentError}},
			},
		},
	}
}
