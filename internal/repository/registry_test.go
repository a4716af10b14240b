package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkGitRepo(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(path, ".git"), 0750))
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	mkGitRepo(t, filepath.Join(baseDir, "beta"))
	mkGitRepo(t, filepath.Join(baseDir, "alpha"))
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, "not-a-repo"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "stray.txt"), []byte("x"), 0600))

	repos, err := NewRegistry(baseDir).Discover()
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "alpha", repos[0].Name)
	assert.Equal(t, filepath.Join(baseDir, "alpha"), repos[0].Path)
	assert.Equal(t, "beta", repos[1].Name)
}

func TestDiscover_BaseDirIsRepo(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	mkGitRepo(t, baseDir)
	mkGitRepo(t, filepath.Join(baseDir, "nested"))

	repos, err := NewRegistry(baseDir).Discover()
	require.NoError(t, err)
	require.Len(t, repos, 2)

	names := []string{repos[0].Name, repos[1].Name}
	assert.Contains(t, names, filepath.Base(baseDir))
	assert.Contains(t, names, "nested")
}

func TestDiscover_MissingBaseDir(t *testing.T) {
	t.Parallel()

	repos, err := NewRegistry(filepath.Join(t.TempDir(), "gone")).Discover()
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestDiscover_GitFileIsNotRepo(t *testing.T) {
	t.Parallel()

	// Worktrees and submodules use a .git file, not a directory; those
	// are not standalone repositories here.
	baseDir := t.TempDir()
	dir := filepath.Join(baseDir, "worktree")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: ../x"), 0600))

	repos, err := NewRegistry(baseDir).Discover()
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestGet(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	mkGitRepo(t, filepath.Join(baseDir, "alpha"))
	mkGitRepo(t, filepath.Join(baseDir, "beta"))
	reg := NewRegistry(baseDir)

	repo, err := reg.Get("beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", repo.Name)

	_, err = reg.Get("gamma")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gamma", nf.Name)
	assert.Equal(t, []string{"alpha", "beta"}, nf.Available)
}

func TestSession(t *testing.T) {
	t.Parallel()

	session := NewSession()
	assert.NotEmpty(t, session.ID)

	_, ok := session.Current()
	assert.False(t, ok, "a fresh session has no selection")

	session.SetCurrent(Repository{Name: "alpha", Path: "/repos/alpha"})
	repo, ok := session.Current()
	require.True(t, ok)
	assert.Equal(t, "alpha", repo.Name)

	other := NewSession()
	_, ok = other.Current()
	assert.False(t, ok, "selections do not leak across sessions")
	assert.NotEqual(t, session.ID, other.ID)
}
