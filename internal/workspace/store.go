// Package workspace manages named, ordered file subsets of a repository,
// each with its own independent tracking scope.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/repolens/repolens/internal/repository"
	"github.com/repolens/repolens/internal/state"
)

// definitionsFileName holds the workspace definitions within a
// repository's state partition directory.
const definitionsFileName = "workspaces.json"

// Workspace is a curated, ordered file subset of one repository.
type Workspace struct {
	Name string `json:"name"`

	// Files is the ordered member list; insertion order is display
	// order, duplicates are collapsed
	Files []string `json:"files"`

	CreatedAt time.Time `json:"created_at"`
}

// NotFoundError indicates an unknown workspace name within a repository.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workspace %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Store defines the interface for workspace persistence
type Store interface {
	// Create stores a workspace definition, replacing any existing
	// workspace of the same name and resetting its tracking scope so
	// the first load classifies every member as new
	Create(repo repository.Repository, name string, paths []string) (Workspace, error)

	// Get returns a workspace by name
	Get(repo repository.Repository, name string) (Workspace, error)

	// List returns the repository's workspaces in creation order
	List(repo repository.Repository) ([]Workspace, error)

	// Delete removes a workspace and its tracking scope
	Delete(repo repository.Repository, name string) error
}

type fileStore struct {
	baseDir string
	states  state.Store

	mu sync.Mutex
}

// NewFileStore creates a workspace Store persisting definitions under
// baseDir, alongside the tracking state partitions it resets.
func NewFileStore(baseDir string, states state.Store) Store {
	return &fileStore{baseDir: baseDir, states: states}
}

func (f *fileStore) definitionsPath(repo repository.Repository) string {
	key := state.RepoScope(repo.Name, repo.Path).RepoKey()
	return filepath.Join(f.baseDir, key, definitionsFileName)
}

// load reads the definitions map for a repository. Missing or corrupt
// files load as empty, consistent with the tracking partitions.
func (f *fileStore) load(repo repository.Repository) map[string]Workspace {
	defs := make(map[string]Workspace)
	if err := state.LoadJSON(f.definitionsPath(repo), &defs); err != nil && !os.IsNotExist(err) {
		slog.Warn("Workspace definitions unreadable, treating as empty",
			"repository", repo.Name, "error", err)
		return make(map[string]Workspace)
	}
	return defs
}

func (f *fileStore) Create(repo repository.Repository, name string, paths []string) (Workspace, error) {
	if err := validateName(name); err != nil {
		return Workspace{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ws := Workspace{
		Name:      name,
		Files:     dedupe(paths),
		CreatedAt: time.Now().UTC(),
	}

	defs := f.load(repo)
	defs[name] = ws
	if err := state.SaveJSON(f.definitionsPath(repo), defs); err != nil {
		return Workspace{}, err
	}

	// A recreated workspace starts with a fresh viewing history.
	if err := f.states.ResetScope(state.WorkspaceScope(repo.Name, repo.Path, name)); err != nil {
		return Workspace{}, err
	}

	slog.Info("Created workspace", "repository", repo.Name, "workspace", name, "files", len(ws.Files))
	return ws, nil
}

func (f *fileStore) Get(repo repository.Repository, name string) (Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	defs := f.load(repo)
	ws, ok := defs[name]
	if !ok {
		return Workspace{}, &NotFoundError{Name: name, Available: names(defs)}
	}
	return ws, nil
}

func (f *fileStore) List(repo repository.Repository) ([]Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	defs := f.load(repo)
	out := make([]Workspace, 0, len(defs))
	for _, ws := range defs {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fileStore) Delete(repo repository.Repository, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	defs := f.load(repo)
	if _, ok := defs[name]; !ok {
		return &NotFoundError{Name: name, Available: names(defs)}
	}
	delete(defs, name)
	if err := state.SaveJSON(f.definitionsPath(repo), defs); err != nil {
		return err
	}
	if err := f.states.ResetScope(state.WorkspaceScope(repo.Name, repo.Path, name)); err != nil {
		return err
	}

	slog.Info("Deleted workspace", "repository", repo.Name, "workspace", name)
	return nil
}

func validateName(name string) error {
	if name == "" || name == state.RepoScopeName {
		return fmt.Errorf("invalid workspace name %q", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("workspace name %q must not contain path separators", name)
	}
	return nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.ToSlash(filepath.Clean(p))
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func names(defs map[string]Workspace) []string {
	out := make([]string, 0, len(defs))
	for name := range defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
