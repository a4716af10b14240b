// Package fingerprint computes content fingerprints for tracked files.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Fingerprint is a compact, collision-resistant summary of one file's
// content at a point in time.
type Fingerprint struct {
	// Hash is the hex-encoded sha256 of the file bytes
	Hash string `json:"hash"`

	// Size is the byte length of the file
	Size int64 `json:"size"`

	// MTime is the last-observed modification time
	MTime time.Time `json:"mtime"`
}

// ReadError indicates a file vanished or became unreadable between
// discovery and fingerprinting. Callers treat it as a deletion, not a
// hard failure.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Of computes the fingerprint of already-read content using the given
// file info for size and mtime.
func Of(content []byte, mtime time.Time) Fingerprint {
	sum := sha256.Sum256(content)
	return Fingerprint{
		Hash:  hex.EncodeToString(sum[:]),
		Size:  int64(len(content)),
		MTime: mtime,
	}
}

// File reads the file once and returns its bytes together with the
// computed fingerprint. Returns a ReadError if the file is unreadable.
func File(path string) ([]byte, Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, Fingerprint{}, &ReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, Fingerprint{}, &ReadError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	// #nosec G304 -- paths are resolved against a validated repository root
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, Fingerprint{}, &ReadError{Path: path, Err: err}
	}

	return content, Of(content, info.ModTime()), nil
}
