package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"agenttrace/internal/models"
)

var spanExtensions = []string{".yaml", ".yml", ".json"}

// DirStore reads one span document per file from a directory, keyed by span_id.
type DirStore struct {
	dir     string
	workers int
	logger  *slog.Logger
	onSkip  SkipRecorder
}

// NewDirStore creates a store over dir. workers bounds concurrent file decoding.
func NewDirStore(dir string, workers int, logger *slog.Logger) *DirStore {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &DirStore{
		dir:     dir,
		workers: workers,
		logger:  logger,
	}
}

// Dir returns the directory backing the store.
func (s *DirStore) Dir() string {
	return s.dir
}

// GetSpan loads <spanID>.yaml (or .yml/.json).
func (s *DirStore) GetSpan(ctx context.Context, spanID string) (models.Span, bool) {
	if !validSpanID(spanID) {
		return models.Span{}, false
	}
	for _, ext := range spanExtensions {
		path := filepath.Join(s.dir, spanID+ext)
		span, err := s.readSpan(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Debug("Skipping unreadable span", "path", path, "error", err)
			return models.Span{}, false
		}
		return span, true
	}
	return models.Span{}, false
}

// ListSpans decodes every span file in lexical file-name order.
func (s *DirStore) ListSpans(ctx context.Context) ([]models.Span, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !hasSpanExtension(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}

	// Each worker writes only its own slot, so enumeration order survives.
	results := make([]*models.Span, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			span, err := s.readSpan(path)
			if err != nil {
				s.logger.Debug("Skipping malformed span", "path", path, "error", err)
				s.skipped()
				return nil
			}
			results[i] = &span
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load spans: %w", err)
	}

	spans := make([]models.Span, 0, len(results))
	for _, r := range results {
		if r != nil {
			spans = append(spans, *r)
		}
	}
	return spans, nil
}

// Ping reports whether the runs directory is readable. A missing directory is
// an empty store, not a failure.
func (s *DirStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("runs path is not a directory: %s", s.dir)
	}
	return nil
}

func (s *DirStore) readSpan(path string) (models.Span, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Span{}, err
	}
	return models.ParseSpan(data)
}

func (s *DirStore) skipped() {
	if s.onSkip != nil {
		s.onSkip("span")
	}
}

func hasSpanExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range spanExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func validSpanID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
