// Package pathfilter aggregates ignore rules for a repository:
// .gitignore, .dockerignore, a repository-local .repolensignore, and a
// built-in set of patterns that never belong in assistant context.
package pathfilter

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreFiles are read from the repository root, in order.
var ignoreFiles = []string{".gitignore", ".dockerignore", ".repolensignore"}

// defaultPatterns are always applied regardless of repository ignore
// files.
var defaultPatterns = []string{
	".git/",
	"__pycache__/",
	"*.pyc",
	"*.pyo",
	"node_modules/",
	".env",
	".DS_Store",
	"Thumbs.db",
	"*.log",
	".vscode/",
	".idea/",
}

// Filter decides whether a repository-relative path is excluded from
// tracking and search.
type Filter interface {
	// IsIgnored reports whether the relative path matches any ignore rule
	IsIgnored(relPath string) bool

	// PatternCount returns the number of loaded patterns
	PatternCount() int
}

type filter struct {
	matcher gitignore.Matcher
	count   int
}

// New builds a Filter for the repository rooted at repoPath. Unreadable
// ignore files are skipped.
func New(repoPath string) Filter {
	var patterns []gitignore.Pattern

	for _, name := range ignoreFiles {
		data, err := os.ReadFile(filepath.Join(repoPath, name)) // #nosec G304
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Failed to read ignore file", "file", name, "error", err)
			}
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	}

	for _, p := range defaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &filter{
		matcher: gitignore.NewMatcher(patterns),
		count:   len(patterns),
	}
}

func (f *filter) IsIgnored(relPath string) bool {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	return f.matcher.Match(parts, false)
}

func (f *filter) PatternCount() int {
	return f.count
}
