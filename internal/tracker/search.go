package tracker

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/repolens/repolens/internal/pathfilter"
	"github.com/repolens/repolens/internal/state"
)

// TrackDiscovered resolves the file set by discovery: it walks the
// repository for non-ignored files, caps the set at maxFiles, and tracks
// the result against the scope. The second return value is the total
// number of files discovered before capping, so callers can report how
// much the cap cut off.
func (e *Engine) TrackDiscovered(
	ctx context.Context, repoRoot string, scope state.Scope, filter pathfilter.Filter, maxFiles int, mode UpdateMode,
) ([]FileOutput, int, error) {
	if maxFiles <= 0 || maxFiles > e.maxFiles {
		maxFiles = e.maxFiles
	}

	files, err := WalkFiles(repoRoot, filter)
	if err != nil {
		return nil, 0, err
	}
	total := len(files)
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}

	outputs, err := e.Track(ctx, repoRoot, scope, files, mode)
	if err != nil {
		return nil, 0, err
	}
	return outputs, total, nil
}

// Search walks the repository for files matching the glob pattern,
// excluding ignored paths. A pattern matches against the relative path
// or the base name; as a convenience it also matches as a
// case-insensitive substring, so "handler" finds internal/api/handler.go.
// Results are sorted and capped at limit.
func Search(repoRoot string, filter pathfilter.Filter, pattern string, limit int) ([]string, error) {
	// Compile with no separator so * crosses path segments, like the
	// glob filters elsewhere in the codebase.
	compiled, err := glob.Compile(pattern)
	if err != nil {
		return nil, &ConfigurationError{Field: "pattern", Value: pattern}
	}

	files, err := WalkFiles(repoRoot, filter)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(pattern)
	matches := []string{}
	for _, rel := range files {
		if compiled.Match(rel) || compiled.Match(filepath.Base(rel)) ||
			strings.Contains(strings.ToLower(rel), lowered) {
			matches = append(matches, rel)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

// WalkFiles enumerates all non-ignored regular files under repoRoot as
// sorted repository-relative slash paths.
func WalkFiles(repoRoot string, filter pathfilter.Filter) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory vanished mid-walk; skip it.
			return nil
		}
		rel, relErr := filepath.Rel(repoRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if filter.IsIgnored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.IsIgnored(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
