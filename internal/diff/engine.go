// Package diff classifies file observations against their last recorded
// state and produces unified diffs for modifications.
package diff

import (
	"fmt"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/repolens/repolens/internal/fingerprint"
	"github.com/repolens/repolens/internal/state"
)

// contextLines is the unified diff context window.
const contextLines = 3

// Classification is the per-file verdict driving output shaping.
type Classification string

const (
	// New means the path has no record in the scope
	New Classification = "new"

	// Modified means the current fingerprint differs from the record
	Modified Classification = "modified"

	// Unchanged means the fingerprints are equal
	Unchanged Classification = "unchanged"

	// Deleted means the scope has a record but the file is gone
	Deleted Classification = "deleted"
)

// Result is the ephemeral outcome of classifying one file. It is never
// persisted.
type Result struct {
	Path           string
	Classification Classification

	// Diff holds the unified diff text when Classification is Modified
	// and the prior content was retained
	Diff string

	// DiffUnavailable is set when the file is modified but the prior
	// content was over the retention cap, so no honest diff exists
	DiffUnavailable bool

	// Fingerprint is the current observation's fingerprint, unset for
	// Deleted
	Fingerprint fingerprint.Fingerprint
}

// Engine classifies files against a scope's stored records.
type Engine struct {
	store state.Store
}

// NewEngine creates a diff Engine backed by the given store.
func NewEngine(store state.Store) *Engine {
	return &Engine{store: store}
}

// Classify compares current content for a path against the scope's
// record. Deletion is detected by the caller when enumerating records;
// Classify only handles readable files.
func (e *Engine) Classify(scope state.Scope, path string, current []byte, mtime time.Time) (Result, error) {
	fp := fingerprint.Of(current, mtime)

	prior, ok, err := e.store.Get(scope, path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load prior state for %s: %w", path, err)
	}
	if !ok {
		return Result{Path: path, Classification: New, Fingerprint: fp}, nil
	}

	if prior.Fingerprint.Hash == fp.Hash {
		return Result{Path: path, Classification: Unchanged, Fingerprint: fp}, nil
	}

	res := Result{Path: path, Classification: Modified, Fingerprint: fp}
	if !prior.ContentRetained {
		res.DiffUnavailable = true
		return res, nil
	}

	text, err := Unified(prior.Content, string(current), path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to diff %s: %w", path, err)
	}
	res.Diff = text
	return res, nil
}

// Unified renders a unified line diff between two versions of a file,
// with conventional a/ and b/ headers and a 3-line context window.
func Unified(old, current, path string) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(current),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", err
	}
	return text, nil
}
