// Package tracker orchestrates change tracking: it resolves a file set,
// classifies each file against a scope's recorded state, shapes output
// per the active update mode, and commits fresh fingerprints only after
// the whole batch succeeded.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/repolens/repolens/internal/diff"
	"github.com/repolens/repolens/internal/fingerprint"
	"github.com/repolens/repolens/internal/state"
)

// Engine composes fingerprinting, classification, and the update-mode
// policy over one state store.
type Engine struct {
	store state.Store
	diffs *diff.Engine

	maxFiles       int
	truncateBytes  int
	retentionBytes int
}

// NewEngine creates a tracking Engine.
func NewEngine(store state.Store, maxFiles, truncateBytes, retentionBytes int) *Engine {
	return &Engine{
		store:          store,
		diffs:          diff.NewEngine(store),
		maxFiles:       maxFiles,
		truncateBytes:  truncateBytes,
		retentionBytes: retentionBytes,
	}
}

// Track classifies every path in the file set against the scope, shapes
// the batch for the mode, then commits new fingerprints and removals in
// one staged write. Paths are repository-relative; duplicates collapse
// to the first occurrence.
func (e *Engine) Track(
	ctx context.Context, repoRoot string, scope state.Scope, paths []string, mode UpdateMode,
) ([]FileOutput, error) {
	paths, err := normalize(paths)
	if err != nil {
		return nil, err
	}
	if len(paths) > e.maxFiles {
		return nil, &ConfigurationError{
			Field: "file_count",
			Value: formatCount(len(paths), e.maxFiles),
		}
	}

	outputs := make([]FileOutput, 0, len(paths))
	puts := make(map[string]state.FileRecord)
	var removes []string
	now := time.Now().UTC()

	for _, relPath := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, fp, err := fingerprint.File(filepath.Join(repoRoot, relPath))
		if err != nil {
			var readErr *fingerprint.ReadError
			if !errors.As(err, &readErr) {
				return nil, err
			}
			// Unreadable counts as deleted; drop any stale record at
			// commit time.
			if _, ok, _ := e.store.Get(scope, relPath); ok {
				removes = append(removes, relPath)
			}
			outputs = append(outputs, FileOutput{Path: relPath, Status: diff.Deleted})
			continue
		}

		res, err := e.diffs.Classify(scope, relPath, content, fp.MTime)
		if err != nil {
			return nil, err
		}

		if out, include := shape(res, content, mode, e.truncateBytes); include {
			outputs = append(outputs, out)
		}

		if res.Classification == diff.New || res.Classification == diff.Modified {
			puts[relPath] = e.record(content, res.Fingerprint, now)
		}
	}

	// The batch shaped successfully; commit fingerprints in one write.
	if err := e.store.Apply(scope, puts, removes); err != nil {
		return nil, err
	}

	slog.Debug("Tracked file set",
		"scope", scope.String(), "mode", string(mode),
		"files", len(paths), "updated", len(puts), "removed", len(removes))
	return outputs, nil
}

// record builds the FileRecord to commit, retaining full content for
// later diffing only under the retention cap.
func (e *Engine) record(content []byte, fp fingerprint.Fingerprint, now time.Time) state.FileRecord {
	rec := state.FileRecord{Fingerprint: fp, UpdatedAt: now}
	if len(content) <= e.retentionBytes {
		rec.Content = string(content)
		rec.ContentRetained = true
	}
	return rec
}

// normalize cleans the requested paths and collapses duplicates to the
// first occurrence. A path that is absolute or still starts with ".."
// after cleaning would resolve outside the repository root and is
// rejected before anything is read.
func normalize(paths []string) ([]string, error) {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.ToSlash(filepath.Clean(p))
		if escapesRoot(p) {
			return nil, &ConfigurationError{Field: "path", Value: p}
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func escapesRoot(cleaned string) bool {
	return filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

func formatCount(got, limit int) string {
	return fmt.Sprintf("%d files requested, cap is %d", got, limit)
}
