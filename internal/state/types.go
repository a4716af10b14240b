package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/repolens/repolens/internal/fingerprint"
)

// RepoScopeName is the scope name used for whole-repository tracking.
const RepoScopeName = "__repo__"

// Scope identifies one independent tracking ledger: either a whole
// repository or a single named workspace within it.
type Scope struct {
	// RepoName is the repository display name
	RepoName string

	// RepoPath is the repository root, used to disambiguate repositories
	// with the same name under different paths
	RepoPath string

	// Name is RepoScopeName or a workspace name
	Name string
}

// RepoScope returns the whole-repository scope for a repository.
func RepoScope(repoName, repoPath string) Scope {
	return Scope{RepoName: repoName, RepoPath: repoPath, Name: RepoScopeName}
}

// WorkspaceScope returns the scope for a named workspace.
func WorkspaceScope(repoName, repoPath, workspace string) Scope {
	return Scope{RepoName: repoName, RepoPath: repoPath, Name: workspace}
}

// IsRepoScope reports whether the scope tracks the whole repository.
func (s Scope) IsRepoScope() bool {
	return s.Name == RepoScopeName
}

// RepoKey returns the repository partition directory name, unique per
// repository identity.
func (s Scope) RepoKey() string {
	sum := sha256.Sum256([]byte(s.RepoPath))
	return fmt.Sprintf("%s_%s", s.RepoName, hex.EncodeToString(sum[:])[:12])
}

// FileName returns the partition file name for this scope.
func (s Scope) FileName() string {
	if s.IsRepoScope() {
		return RepoScopeName + ".json"
	}
	return "ws_" + s.Name + ".json"
}

func (s Scope) String() string {
	return s.RepoName + "/" + s.Name
}

// FileRecord is the last recorded observation of one file within one
// scope. Its fingerprint is only ever replaced wholesale by a newer
// observation, never merged.
type FileRecord struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`

	// Content holds the full file content when it was retained for
	// later diffing. ContentRetained distinguishes an empty retained
	// file from content dropped over the retention cap.
	Content         string `json:"content,omitempty"`
	ContentRetained bool   `json:"content_retained"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CorruptionError indicates a persisted scope could not be decoded. It
// is logged and absorbed: the scope is treated as empty so the next
// operation conservatively reclassifies everything as new.
type CorruptionError struct {
	Scope Scope
	Err   error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt state for scope %s: %v", e.Scope, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
