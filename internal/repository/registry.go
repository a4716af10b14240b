// Package repository discovers git repositories under a base directory
// and tracks each session's current selection.
package repository

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Repository identifies one discovered git repository.
type Repository struct {
	// Name is the display name, the final path segment
	Name string `json:"name"`

	// Path is the absolute repository root
	Path string `json:"path"`
}

// NotFoundError indicates an unknown repository name. It carries the
// currently discoverable names so the caller can self-correct.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Registry defines the interface for repository discovery
type Registry interface {
	// Discover rescans the base directory for git repositories
	Discover() ([]Repository, error)

	// Get resolves a repository by name, rescanning first
	Get(name string) (Repository, error)
}

type registry struct {
	baseDir string
}

// NewRegistry creates a Registry scanning baseDir. The base directory
// itself and its immediate subdirectories are candidates; a candidate
// qualifies when it contains a .git directory.
func NewRegistry(baseDir string) Registry {
	return &registry{baseDir: baseDir}
}

func (r *registry) Discover() ([]Repository, error) {
	repos := []Repository{}

	if isGitRepo(r.baseDir) {
		repos = append(repos, Repository{
			Name: filepath.Base(r.baseDir),
			Path: r.baseDir,
		})
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return repos, nil
		}
		return nil, fmt.Errorf("failed to scan base directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(r.baseDir, entry.Name())
		if isGitRepo(path) {
			repos = append(repos, Repository{Name: entry.Name(), Path: path})
		}
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	slog.Debug("Discovered repositories", "count", len(repos), "base_dir", r.baseDir)
	return repos, nil
}

func (r *registry) Get(name string) (Repository, error) {
	repos, err := r.Discover()
	if err != nil {
		return Repository{}, err
	}
	available := make([]string, 0, len(repos))
	for _, repo := range repos {
		if repo.Name == name {
			return repo, nil
		}
		available = append(available, repo.Name)
	}
	return Repository{}, &NotFoundError{Name: name, Available: available}
}

func isGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}
