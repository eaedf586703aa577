package models

import (
	"encoding/json"
	"fmt"
)

// Lifecycle event types written by the agent runtime. Producers may add others.
const (
	EventAgentSpawn    = "agent:spawn"
	EventAgentComplete = "agent:complete"
	EventAgentError    = "agent:error"
)

// Event is one line of the event log, kept as the flat record it was written as.
type Event map[string]any

// ParseEvent decodes a single JSON object line.
func ParseEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	if ev == nil {
		return nil, fmt.Errorf("failed to parse event: null record")
	}
	return ev, nil
}

// Type returns the event_type field, empty if missing.
func (e Event) Type() string {
	t, _ := e["event_type"].(string)
	return t
}
