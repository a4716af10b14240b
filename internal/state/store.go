// Package state persists per-scope file tracking records. Each scope
// (whole repository or workspace) owns one JSON partition on disk,
// written via atomic replace and serialized by a file lock so separate
// sessions can share a mounted state directory.
package state

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store defines the interface for file state persistence
type Store interface {
	// Get returns the record for a path within a scope
	Get(scope Scope, path string) (FileRecord, bool, error)

	// List returns all records in a scope, keyed by relative path
	List(scope Scope) (map[string]FileRecord, error)

	// Put overwrites the record for a path and persists the scope
	Put(scope Scope, path string, rec FileRecord) error

	// Remove drops the record for a path and persists the scope
	Remove(scope Scope, path string) error

	// Apply commits a staged batch of puts and removes in one persisted
	// write. Used by the tracking engine so a failure while shaping
	// output never leaves a partial commit behind.
	Apply(scope Scope, puts map[string]FileRecord, removes []string) error

	// ResetScope drops every record in a scope and its persisted file
	ResetScope(scope Scope) error
}

type fileStore struct {
	baseDir string

	mu         sync.Mutex
	partitions map[string]map[string]FileRecord
}

// NewFileStore creates a file-backed Store rooted at baseDir. Scopes are
// loaded lazily on first access.
func NewFileStore(baseDir string) Store {
	return &fileStore{
		baseDir:    baseDir,
		partitions: make(map[string]map[string]FileRecord),
	}
}

func (f *fileStore) scopePath(scope Scope) string {
	return filepath.Join(f.baseDir, scope.RepoKey(), scope.FileName())
}

// loadLocked returns the in-memory partition for a scope, reading it
// from disk on first access. Reads serve this cached snapshot and may
// trail another instance's writes; every write path goes through
// mutateLocked, which re-reads first.
func (f *fileStore) loadLocked(scope Scope) map[string]FileRecord {
	path := f.scopePath(scope)
	if part, ok := f.partitions[path]; ok {
		return part
	}

	records := readPartition(scope, path)
	f.partitions[path] = records
	return records
}

// mutateLocked commits one write delta: under the cross-process file
// lock it re-reads the partition, applies the delta, and persists the
// result. The re-read keeps a sibling instance sharing the state
// directory from having its records clobbered by our whole-map rewrite.
func (f *fileStore) mutateLocked(scope Scope, apply func(map[string]FileRecord)) error {
	path := f.scopePath(scope)
	unlock, err := lockFile(path)
	if err != nil {
		return err
	}
	defer unlock()

	records := readPartition(scope, path)
	apply(records)
	if err := writeJSON(path, records); err != nil {
		return err
	}
	f.partitions[path] = records
	return nil
}

// readPartition loads a scope's records from disk. A missing or corrupt
// partition loads as empty: losing state means re-sending context, never
// crashing.
func readPartition(scope Scope, path string) map[string]FileRecord {
	records := make(map[string]FileRecord)
	if err := LoadJSON(path, &records); err != nil && !os.IsNotExist(err) {
		cerr := &CorruptionError{Scope: scope, Err: err}
		slog.Warn("Persisted scope unreadable, treating as empty",
			"scope", scope.String(), "error", cerr)
		return make(map[string]FileRecord)
	}
	return records
}

func (f *fileStore) Get(scope Scope, path string) (FileRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.loadLocked(scope)[path]
	return rec, ok, nil
}

func (f *fileStore) List(scope Scope) (map[string]FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	part := f.loadLocked(scope)
	out := make(map[string]FileRecord, len(part))
	for k, v := range part {
		out[k] = v
	}
	return out, nil
}

func (f *fileStore) Put(scope Scope, path string, rec FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mutateLocked(scope, func(part map[string]FileRecord) {
		part[path] = rec
	})
}

func (f *fileStore) Remove(scope Scope, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mutateLocked(scope, func(part map[string]FileRecord) {
		delete(part, path)
	})
}

func (f *fileStore) Apply(scope Scope, puts map[string]FileRecord, removes []string) error {
	if len(puts) == 0 && len(removes) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mutateLocked(scope, func(part map[string]FileRecord) {
		for path, rec := range puts {
			part[path] = rec
		}
		for _, path := range removes {
			delete(part, path)
		}
	})
}

func (f *fileStore) ResetScope(scope Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.scopePath(scope)
	f.partitions[path] = make(map[string]FileRecord)
	return RemoveFile(path)
}
