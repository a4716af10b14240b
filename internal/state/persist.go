package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SaveJSON marshals v and writes it to path atomically: the bytes go to
// a temporary file first, then an atomic rename replaces the target. A
// sibling .lock file serializes writers across processes sharing the
// state directory; readers proceed unlocked and may see the previous
// snapshot.
func SaveJSON(path string, v any) error {
	unlock, err := lockFile(path)
	if err != nil {
		return err
	}
	defer unlock()

	return writeJSON(path, v)
}

// lockFile creates the parent directory and takes the sibling .lock for
// path. The caller holds the lock until it invokes the returned func.
func lockFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

// writeJSON marshals v and replaces path atomically via a temporary file
// and rename. Callers hold the sibling .lock.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

// LoadJSON reads and unmarshals path into out. A missing file returns
// os.ErrNotExist unwrapped for the caller to treat as empty.
func LoadJSON(path string, out any) error {
	// #nosec G304 -- path is constructed from the managed state directory
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal state file %s: %w", path, err)
	}
	return nil
}

// RemoveFile deletes a persisted file, tolerating its absence.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
