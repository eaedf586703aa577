// Package models defines the span and event records shared by every query component.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// NoParent is the literal parent marker producers write for root spans.
const NoParent = "null"

// StatusCode is the outcome recorded on a span.
type StatusCode string

const (
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
	StatusUnset StatusCode = "UNSET"
)

// Status glyphs used by the text renderings.
const (
	GlyphSuccess = "✓"
	GlyphFailure = "✗"
	GlyphUnknown = "○"
)

// ErrMalformedSpan is returned by ParseSpan for records that cannot be used.
var ErrMalformedSpan = errors.New("malformed span record")

// Status carries the span outcome.
type Status struct {
	Code StatusCode `json:"code"`
}

// Span is one recorded unit of agent execution. Spans are immutable once parsed.
type Span struct {
	SpanID        string
	TraceID       string
	ParentSpanID  string
	OperationName string
	StartTime     string
	DurationMs    *int64
	Status        *Status

	raw map[string]any
}

// ParseSpan decodes a YAML (or JSON) span document. Fields are read by name and
// values of the wrong shape are treated as absent; only a record without a
// mapping body or a span_id is rejected.
func ParseSpan(data []byte) (Span, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Span{}, fmt.Errorf("%w: %v", ErrMalformedSpan, err)
	}
	raw, ok := normalize(doc).(map[string]any)
	if !ok {
		return Span{}, fmt.Errorf("%w: document is not a mapping", ErrMalformedSpan)
	}
	return SpanFromRecord(raw)
}

// SpanFromRecord builds a Span from an already decoded record.
func SpanFromRecord(raw map[string]any) (Span, error) {
	s := Span{
		SpanID:        stringField(raw, "span_id"),
		TraceID:       stringField(raw, "trace_id"),
		ParentSpanID:  stringField(raw, "parent_span_id"),
		OperationName: stringField(raw, "operation_name"),
		StartTime:     stringField(raw, "start_time"),
		DurationMs:    durationField(raw["duration_ms"]),
		Status:        statusField(raw["status"]),
		raw:           raw,
	}
	if s.SpanID == "" {
		return Span{}, fmt.Errorf("%w: missing span_id", ErrMalformedSpan)
	}
	return s, nil
}

// IsRoot reports whether the span has no parent.
func (s Span) IsRoot() bool {
	return s.ParentSpanID == "" || s.ParentSpanID == NoParent
}

// Code returns the status code, empty when the span carries no status.
func (s Span) Code() StatusCode {
	if s.Status == nil {
		return ""
	}
	return s.Status.Code
}

// HasOutcome reports whether the span finished with a definite status.
func (s Span) HasOutcome() bool {
	code := s.Code()
	return code != "" && code != StatusUnset
}

// Glyph returns the status marker used in text renderings.
func (s Span) Glyph() string {
	switch s.Code() {
	case StatusOK:
		return GlyphSuccess
	case StatusError:
		return GlyphFailure
	default:
		return GlyphUnknown
	}
}

// Duration formats duration_ms for display.
func (s Span) Duration() string {
	if s.DurationMs == nil {
		return "n/a"
	}
	return strconv.FormatInt(*s.DurationMs, 10) + "ms"
}

// Record returns the record exactly as it was decoded.
func (s Span) Record() map[string]any {
	return s.raw
}

// MarshalJSON emits the unmodified record so structured dumps lose nothing.
func (s Span) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return json.Marshal(map[string]any{"span_id": s.SpanID, "trace_id": s.TraceID})
	}
	return json.Marshal(s.raw)
}

// ShortID truncates an identifier for display, adding an ellipsis when cut.
func ShortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n] + "..."
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func durationField(v any) *int64 {
	var d int64
	switch n := v.(type) {
	case int:
		d = int64(n)
	case int64:
		d = n
	case uint64:
		if n > math.MaxInt64 {
			return nil
		}
		d = int64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		d = int64(math.Round(n))
	default:
		return nil
	}
	if d < 0 {
		return nil
	}
	return &d
}

func statusField(v any) *Status {
	switch st := v.(type) {
	case map[string]any:
		code, _ := st["code"].(string)
		if code == "" {
			return nil
		}
		return &Status{Code: StatusCode(code)}
	case string:
		if st == "" {
			return nil
		}
		return &Status{Code: StatusCode(st)}
	default:
		return nil
	}
}

// normalize converts yaml's map[any]any nodes into map[string]any so records
// can always be re-encoded as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
