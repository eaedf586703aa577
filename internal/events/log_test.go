package events

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenttrace/internal/models"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func types(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, fmt.Sprint(ev["n"]))
	}
	return out
}

func TestLogAllSkipsMalformedLines(t *testing.T) {
	path := writeLog(t,
		`{"event_type":"agent:spawn","n":1}`,
		`not json at all`,
		``,
		`{"event_type":"agent:complete","n":2}`,
		`[1,2,3]`,
		`{"event_type":"agent:error","n":3}`,
	)

	skipped := 0
	l := NewLog(path, nil)
	l.OnSkip(func(string) { skipped++ })

	var got []models.Event
	for ev := range l.All(context.Background()) {
		got = append(got, ev)
	}

	assert.Equal(t, []string{"1", "2", "3"}, types(got))
	assert.Equal(t, 2, skipped)
}

func TestLogAllStopsEarly(t *testing.T) {
	path := writeLog(t, `{"n":1}`, `{"n":2}`, `{"n":3}`)

	count := 0
	for range NewLog(path, nil).All(context.Background()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestLogMissingFile(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "queue.jsonl"), nil)

	for range l.All(context.Background()) {
		t.Fatal("expected no events")
	}

	events, found := l.Recent(context.Background(), "", 20)
	assert.False(t, found)
	assert.Empty(t, events)
}

func TestLogRecent(t *testing.T) {
	path := writeLog(t,
		`{"event_type":"agent:spawn","n":1}`,
		`{"event_type":"agent:complete","n":2}`,
		`{"event_type":"agent:spawn","n":3}`,
		`{"event_type":"agent:error","n":4}`,
		`{"event_type":"agent:spawn","n":5}`,
		`{"event_type":"agent:spawn","n":6}`,
	)
	l := NewLog(path, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		eventType string
		limit     int
		expected  []string
	}{
		{"all under limit", "", 20, []string{"1", "2", "3", "4", "5", "6"}},
		{"last three", "", 3, []string{"4", "5", "6"}},
		{"filtered", models.EventAgentSpawn, 20, []string{"1", "3", "5", "6"}},
		{"filtered and limited", models.EventAgentSpawn, 2, []string{"5", "6"}},
		{"no matches", "agent:unknown", 5, []string{}},
		{"zero limit", "", 0, []string{}},
		{"huge limit", "", math.MaxInt >> 1, []string{"1", "2", "3", "4", "5", "6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, found := l.Recent(ctx, tt.eventType, tt.limit)
			require.True(t, found)
			assert.Equal(t, tt.expected, types(events))
		})
	}
}
