// Package events reads the append-only, line-delimited agent event log.
package events

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"

	"agenttrace/internal/models"
)

const maxLineSize = 4 << 20

// maxRingPrealloc caps the initial capacity of the Recent ring buffer.
const maxRingPrealloc = 1024

// Log reads events from a JSONL file. It never writes to the file.
type Log struct {
	path   string
	logger *slog.Logger
	onSkip func(kind string)
}

// NewLog creates a reader for the event log at path.
func NewLog(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{path: path, logger: logger}
}

// OnSkip registers a callback invoked for every line that fails to parse.
func (l *Log) OnSkip(fn func(kind string)) {
	l.onSkip = fn
}

// Path returns the log location.
func (l *Log) Path() string {
	return l.path
}

// Exists reports whether the log file is present.
func (l *Log) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// All yields events top to bottom. Lines that fail to parse are dropped and a
// missing file yields nothing. The file is read lazily as the sequence is consumed.
func (l *Log) All(ctx context.Context) iter.Seq[models.Event] {
	return func(yield func(models.Event) bool) {
		f, err := os.Open(l.path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				l.logger.Warn("Failed to open event log", "path", l.path, "error", err)
			}
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		line := 0
		for sc.Scan() {
			line++
			if ctx.Err() != nil {
				return
			}
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}
			ev, err := models.ParseEvent(raw)
			if err != nil {
				l.logger.Debug("Skipping malformed event", "path", l.path, "line", line, "error", err)
				if l.onSkip != nil {
					l.onSkip("event")
				}
				continue
			}
			if !yield(ev) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			l.logger.Warn("Event log read stopped early", "path", l.path, "line", line, "error", err)
		}
	}
}

// Recent returns the last limit events, optionally restricted to one
// event_type, in log order. found is false when the log file does not exist.
func (l *Log) Recent(ctx context.Context, eventType string, limit int) (events []models.Event, found bool) {
	if !l.Exists() {
		return nil, false
	}
	if limit <= 0 {
		return []models.Event{}, true
	}

	// Ring buffer keeps memory bounded by limit rather than by log size. It
	// grows on demand, so a huge limit costs no more than the log itself.
	ring := make([]models.Event, 0, min(limit, maxRingPrealloc))
	next := 0
	for ev := range l.All(ctx) {
		if eventType != "" && ev.Type() != eventType {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, ev)
			continue
		}
		ring[next] = ev
		next = (next + 1) % limit
	}

	out := make([]models.Event, 0, len(ring))
	out = append(out, ring[next:]...)
	out = append(out, ring[:next]...)
	return out, true
}
