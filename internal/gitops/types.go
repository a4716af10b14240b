package gitops

import (
	"fmt"
	"time"
)

// statusListCap bounds the untracked/modified/staged lists in a Status,
// keeping the payload assistant-friendly.
const statusListCap = 10

// Status is a structured snapshot of the repository worktree.
type Status struct {
	Branch    string   `json:"branch"`
	IsDirty   bool     `json:"is_dirty"`
	Untracked []string `json:"untracked_files"`
	Modified  []string `json:"modified_files"`
	Staged    []string `json:"staged_files"`
}

// Commit is one structured commit record.
type Commit struct {
	ID           string    `json:"commit_id"`
	FullID       string    `json:"full_commit_id"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	Email        string    `json:"email"`
	Date         time.Time `json:"date"`
	FilesChanged int       `json:"files_changed"`
}

// Remote describes one configured remote.
type Remote struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

// GitError indicates a git operation failed. It is surfaced to the
// caller with the underlying message and never retried.
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// GitTimeoutError indicates a git operation exceeded its wall-clock
// budget.
type GitTimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *GitTimeoutError) Error() string {
	return fmt.Sprintf("git %s timed out after %s", e.Op, e.Timeout)
}
