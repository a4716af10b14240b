// Package gitops exposes structured git queries over go-git. Every
// operation runs under a bounded wall-clock timeout so a slow repository
// cannot hang the request loop.
package gitops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitDiffByteCap bounds the rendered patch of CommitDiff.
const commitDiffByteCap = 64 * 1024

// Client defines the interface for git repository queries
type Client interface {
	// Status returns the worktree status
	Status(ctx context.Context, repoPath string) (*Status, error)

	// Log returns up to limit commits from HEAD
	Log(ctx context.Context, repoPath string, limit int) ([]Commit, error)

	// FileHistory returns up to limit commits touching one path
	FileHistory(ctx context.Context, repoPath, path string, limit int) ([]Commit, error)

	// Branches returns local branch names
	Branches(ctx context.Context, repoPath string) ([]string, error)

	// Remotes returns configured remotes
	Remotes(ctx context.Context, repoPath string) ([]Remote, error)

	// Tags returns tag names
	Tags(ctx context.Context, repoPath string) ([]string, error)

	// CommitDiff renders the patch between two revisions, optionally
	// restricted to one path
	CommitDiff(ctx context.Context, repoPath, from, to, path string) (string, error)
}

type client struct {
	timeout time.Duration
}

// NewClient creates a go-git backed Client with the given per-operation
// timeout.
func NewClient(timeout time.Duration) Client {
	return &client{timeout: timeout}
}

// runQuery executes fn with the given timeout. On expiry the caller gets
// a GitTimeoutError while the goroutine is left to finish on its own;
// go-git has no cancellation for local object walks. The result travels
// through the buffered channel so an abandoned goroutine never touches
// anything the caller still sees.
func runQuery[T any](
	ctx context.Context, timeout time.Duration, op, repoPath string, fn func(*git.Repository) (T, error),
) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		repo, err := git.PlainOpen(repoPath)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		value, err := fn(repo)
		done <- outcome{value: value, err: err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		return zero, &GitTimeoutError{Op: op, Timeout: timeout}
	case res := <-done:
		if res.err != nil {
			return zero, &GitError{Op: op, Err: res.err}
		}
		return res.value, nil
	}
}

func (c *client) Status(ctx context.Context, repoPath string) (*Status, error) {
	return runQuery(ctx, c.timeout, "status", repoPath, func(repo *git.Repository) (*Status, error) {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to get worktree: %w", err)
		}
		st, err := wt.Status()
		if err != nil {
			return nil, fmt.Errorf("failed to get status: %w", err)
		}

		result := &Status{
			Branch:    currentBranch(repo),
			IsDirty:   !st.IsClean(),
			Untracked: []string{},
			Modified:  []string{},
			Staged:    []string{},
		}
		for path, fs := range st {
			switch {
			case fs.Worktree == git.Untracked:
				if len(result.Untracked) < statusListCap {
					result.Untracked = append(result.Untracked, path)
				}
			case fs.Worktree != git.Unmodified:
				if len(result.Modified) < statusListCap {
					result.Modified = append(result.Modified, path)
				}
			}
			if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
				if len(result.Staged) < statusListCap {
					result.Staged = append(result.Staged, path)
				}
			}
		}
		return result, nil
	})
}

func (c *client) Log(ctx context.Context, repoPath string, limit int) ([]Commit, error) {
	return c.log(ctx, repoPath, "", limit)
}

func (c *client) FileHistory(ctx context.Context, repoPath, path string, limit int) ([]Commit, error) {
	return c.log(ctx, repoPath, path, limit)
}

func (c *client) log(ctx context.Context, repoPath, path string, limit int) ([]Commit, error) {
	op := "log"
	if path != "" {
		op = "file-history"
	}
	return runQuery(ctx, c.timeout, op, repoPath, func(repo *git.Repository) ([]Commit, error) {
		opts := &git.LogOptions{}
		if path != "" {
			opts.FileName = &path
		}
		iter, err := repo.Log(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		defer iter.Close()

		commits := []Commit{}
		for len(commits) < limit {
			commit, err := iter.Next()
			if err != nil {
				break
			}
			filesChanged := 0
			if stats, err := commit.Stats(); err == nil {
				filesChanged = len(stats)
			}
			commits = append(commits, Commit{
				ID:           commit.Hash.String()[:8],
				FullID:       commit.Hash.String(),
				Message:      strings.TrimSpace(commit.Message),
				Author:       commit.Author.Name,
				Email:        commit.Author.Email,
				Date:         commit.Author.When,
				FilesChanged: filesChanged,
			})
		}
		return commits, nil
	})
}

func (c *client) Branches(ctx context.Context, repoPath string) ([]string, error) {
	return runQuery(ctx, c.timeout, "branches", repoPath, func(repo *git.Repository) ([]string, error) {
		iter, err := repo.Branches()
		if err != nil {
			return nil, fmt.Errorf("failed to list branches: %w", err)
		}
		defer iter.Close()

		names := []string{}
		_ = iter.ForEach(func(ref *plumbing.Reference) error {
			names = append(names, ref.Name().Short())
			return nil
		})
		return names, nil
	})
}

func (c *client) Remotes(ctx context.Context, repoPath string) ([]Remote, error) {
	return runQuery(ctx, c.timeout, "remotes", repoPath, func(repo *git.Repository) ([]Remote, error) {
		remotes, err := repo.Remotes()
		if err != nil {
			return nil, fmt.Errorf("failed to list remotes: %w", err)
		}
		result := []Remote{}
		for _, r := range remotes {
			cfg := r.Config()
			result = append(result, Remote{Name: cfg.Name, URLs: cfg.URLs})
		}
		return result, nil
	})
}

func (c *client) Tags(ctx context.Context, repoPath string) ([]string, error) {
	return runQuery(ctx, c.timeout, "tags", repoPath, func(repo *git.Repository) ([]string, error) {
		iter, err := repo.Tags()
		if err != nil {
			return nil, fmt.Errorf("failed to list tags: %w", err)
		}
		defer iter.Close()

		names := []string{}
		_ = iter.ForEach(func(ref *plumbing.Reference) error {
			names = append(names, ref.Name().Short())
			return nil
		})
		return names, nil
	})
}

func (c *client) CommitDiff(ctx context.Context, repoPath, from, to, path string) (string, error) {
	return runQuery(ctx, c.timeout, "commit-diff", repoPath, func(repo *git.Repository) (string, error) {
		fromCommit, err := resolveCommit(repo, from)
		if err != nil {
			return "", err
		}
		toCommit, err := resolveCommit(repo, to)
		if err != nil {
			return "", err
		}

		fromTree, err := fromCommit.Tree()
		if err != nil {
			return "", fmt.Errorf("failed to read tree %s: %w", from, err)
		}
		toTree, err := toCommit.Tree()
		if err != nil {
			return "", fmt.Errorf("failed to read tree %s: %w", to, err)
		}

		changes, err := object.DiffTree(fromTree, toTree)
		if err != nil {
			return "", fmt.Errorf("failed to diff trees: %w", err)
		}
		if path != "" {
			filtered := object.Changes{}
			for _, ch := range changes {
				if ch.From.Name == path || ch.To.Name == path {
					filtered = append(filtered, ch)
				}
			}
			changes = filtered
		}

		patch, err := changes.Patch()
		if err != nil {
			return "", fmt.Errorf("failed to render patch: %w", err)
		}
		text := patch.String()
		if len(text) > commitDiffByteCap {
			text = text[:commitDiffByteCap] + fmt.Sprintf("\n... [truncated %d bytes]", len(text)-commitDiffByteCap)
		}
		return text, nil
	})
}

func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %s: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", rev, err)
	}
	return commit, nil
}

func currentBranch(repo *git.Repository) string {
	ref, err := repo.Head()
	if err != nil {
		return "unknown"
	}
	if ref.Name().IsBranch() {
		return ref.Name().Short()
	}
	return "detached"
}
