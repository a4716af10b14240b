package tracker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/diff"
	"github.com/repolens/repolens/internal/pathfilter"
	"github.com/repolens/repolens/internal/state"
)

const (
	testMaxFiles      = 50
	testTruncateBytes = 100
	testRetention     = 1024
)

func newTestEngine(t *testing.T) (*Engine, state.Store, string, state.Scope) {
	t.Helper()
	repoRoot := t.TempDir()
	store := state.NewFileStore(t.TempDir())
	engine := NewEngine(store, testMaxFiles, testTruncateBytes, testRetention)
	scope := state.RepoScope("demo", repoRoot)
	return engine, store, repoRoot, scope
}

func writeFile(t *testing.T, repoRoot, rel, content string) {
	t.Helper()
	path := filepath.Join(repoRoot, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestTrack_FirstSightIsNew(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello")

	outputs, err := engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, diff.New, outputs[0].Status)
	assert.Equal(t, "hello", outputs[0].Content)
}

func TestTrack_Idempotence(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello")
	writeFile(t, repoRoot, "b.txt", "world")
	paths := []string{"a.txt", "b.txt"}

	first, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeSmart)
	require.NoError(t, err)
	for _, out := range first {
		assert.Equal(t, diff.New, out.Status)
	}

	second, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeSmart)
	require.NoError(t, err)
	for _, out := range second {
		assert.Equal(t, diff.Unchanged, out.Status)
		assert.Empty(t, out.Content, "unchanged is status only under smart")
		assert.Empty(t, out.Diff)
	}
}

func TestTrack_ModifiedEmitsDiff(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello\n")

	_, err := engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)

	writeFile(t, repoRoot, "a.txt", "hello!\n")
	outputs, err := engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, diff.Modified, outputs[0].Status)
	assert.Contains(t, outputs[0].Diff, "-hello\n")
	assert.Contains(t, outputs[0].Diff, "+hello!\n")
	assert.Empty(t, outputs[0].Content)
}

func TestTrack_DeletedRemovesRecord(t *testing.T) {
	t.Parallel()

	engine, store, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello")

	_, err := engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(repoRoot, "a.txt")))
	outputs, err := engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, diff.Deleted, outputs[0].Status)
	assert.Empty(t, outputs[0].Content)

	_, ok, err := store.Get(scope, "a.txt")
	require.NoError(t, err)
	assert.False(t, ok, "deleted paths are removed at commit")

	// A reappearing identical file is new again, not unchanged.
	writeFile(t, repoRoot, "a.txt", "hello")
	outputs, err = engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)
	assert.Equal(t, diff.New, outputs[0].Status)
}

func TestTrack_ModeTable(t *testing.T) {
	t.Parallel()

	// Build a scope with one unchanged, one modified, one new, and one
	// deleted path, then exercise each mode against it.
	setup := func(t *testing.T) (*Engine, string, state.Scope) {
		t.Helper()
		engine, _, repoRoot, scope := newTestEngine(t)
		writeFile(t, repoRoot, "unchanged.txt", "stable\n")
		writeFile(t, repoRoot, "modified.txt", "before\n")
		writeFile(t, repoRoot, "doomed.txt", "bye\n")
		_, err := engine.Track(context.Background(), repoRoot, scope,
			[]string{"unchanged.txt", "modified.txt", "doomed.txt"}, ModeSmart)
		require.NoError(t, err)

		writeFile(t, repoRoot, "modified.txt", "after\n")
		writeFile(t, repoRoot, "new.txt", "fresh\n")
		require.NoError(t, os.Remove(filepath.Join(repoRoot, "doomed.txt")))
		return engine, repoRoot, scope
	}

	paths := []string{"unchanged.txt", "modified.txt", "new.txt", "doomed.txt"}

	t.Run("smart", func(t *testing.T) {
		t.Parallel()
		engine, repoRoot, scope := setup(t)
		outputs, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeSmart)
		require.NoError(t, err)
		byPath := index(outputs)

		assert.Empty(t, byPath["unchanged.txt"].Content)
		assert.Contains(t, byPath["modified.txt"].Diff, "+after")
		assert.Equal(t, "fresh\n", byPath["new.txt"].Content)
		assert.Equal(t, diff.Deleted, byPath["doomed.txt"].Status)
	})

	t.Run("diffs_only", func(t *testing.T) {
		t.Parallel()
		engine, repoRoot, scope := setup(t)
		outputs, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeDiffsOnly)
		require.NoError(t, err)
		byPath := index(outputs)

		assert.Empty(t, byPath["unchanged.txt"].Content)
		assert.Contains(t, byPath["modified.txt"].Diff, "+after")
		assert.Equal(t, "fresh\n", byPath["new.txt"].Content, "under the cap, content is intact")
		assert.Equal(t, diff.Deleted, byPath["doomed.txt"].Status)
	})

	t.Run("full_content", func(t *testing.T) {
		t.Parallel()
		engine, repoRoot, scope := setup(t)
		outputs, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeFullContent)
		require.NoError(t, err)
		byPath := index(outputs)

		assert.Equal(t, "stable\n", byPath["unchanged.txt"].Content)
		assert.Equal(t, "after\n", byPath["modified.txt"].Content)
		assert.Empty(t, byPath["modified.txt"].Diff)
		assert.Equal(t, "fresh\n", byPath["new.txt"].Content)
		assert.Equal(t, diff.Deleted, byPath["doomed.txt"].Status)
		assert.Empty(t, byPath["doomed.txt"].Content)
	})

	t.Run("changed_files_only", func(t *testing.T) {
		t.Parallel()
		engine, repoRoot, scope := setup(t)
		outputs, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeChangedFilesOnly)
		require.NoError(t, err)
		byPath := index(outputs)

		assert.NotContains(t, byPath, "unchanged.txt", "unchanged files are omitted entirely")
		assert.Equal(t, "after\n", byPath["modified.txt"].Content)
		assert.Equal(t, "fresh\n", byPath["new.txt"].Content)
		assert.Equal(t, diff.Deleted, byPath["doomed.txt"].Status)
	})
}

func TestTrack_TruncatesNewFilesInDiffsOnly(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	big := make([]byte, testTruncateBytes*3)
	for i := range big {
		big[i] = 'x'
	}
	writeFile(t, repoRoot, "big.txt", string(big))

	outputs, err := engine.Track(context.Background(), repoRoot, scope, []string{"big.txt"}, ModeDiffsOnly)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.True(t, outputs[0].Truncated)
	assert.Contains(t, outputs[0].Content, "[truncated")
	assert.Less(t, len(outputs[0].Content), len(big))
}

func TestTrack_RetentionCapDegradesDiff(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	big := make([]byte, testRetention+1)
	for i := range big {
		big[i] = 'y'
	}
	writeFile(t, repoRoot, "big.txt", string(big))

	_, err := engine.Track(context.Background(), repoRoot, scope, []string{"big.txt"}, ModeSmart)
	require.NoError(t, err)

	writeFile(t, repoRoot, "big.txt", string(big)+"z")
	outputs, err := engine.Track(context.Background(), repoRoot, scope, []string{"big.txt"}, ModeSmart)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, diff.Modified, outputs[0].Status)
	assert.True(t, outputs[0].DiffUnavailable)
	assert.Empty(t, outputs[0].Diff)
	assert.NotEmpty(t, outputs[0].Content, "full content stands in for the missing diff")
}

func TestTrack_FileCountCap(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	paths := make([]string, testMaxFiles+1)
	for i := range paths {
		paths[i] = fmt.Sprintf("dir/file%03d.txt", i)
	}

	_, err := engine.Track(context.Background(), repoRoot, scope, paths, ModeSmart)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "file_count", cfgErr.Field)
}

func TestTrack_EndToEndScenario(t *testing.T) {
	t.Parallel()

	engine, store, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello\n")
	writeFile(t, repoRoot, "b.txt", "world\n")

	outputs, err := engine.Track(context.Background(), repoRoot, scope, []string{"a.txt", "b.txt"}, ModeSmart)
	require.NoError(t, err)
	byPath := index(outputs)
	assert.Equal(t, diff.New, byPath["a.txt"].Status)
	assert.Equal(t, "hello\n", byPath["a.txt"].Content)
	assert.Equal(t, diff.New, byPath["b.txt"].Status)
	assert.Equal(t, "world\n", byPath["b.txt"].Content)

	writeFile(t, repoRoot, "a.txt", "hello!\n")
	outputs, err = engine.Track(context.Background(), repoRoot, scope, []string{"a.txt", "b.txt"}, ModeSmart)
	require.NoError(t, err)
	byPath = index(outputs)
	assert.Equal(t, diff.Modified, byPath["a.txt"].Status)
	assert.Contains(t, byPath["a.txt"].Diff, "-hello\n")
	assert.Contains(t, byPath["a.txt"].Diff, "+hello!\n")
	assert.Equal(t, diff.Unchanged, byPath["b.txt"].Status)
	assert.Empty(t, byPath["b.txt"].Content)

	require.NoError(t, store.ResetScope(scope))
	outputs, err = engine.Track(context.Background(), repoRoot, scope, []string{"a.txt"}, ModeSmart)
	require.NoError(t, err)
	assert.Equal(t, diff.New, outputs[0].Status)
}

func TestTrack_RejectsPathsOutsideRepo(t *testing.T) {
	t.Parallel()

	engine, store, repoRoot, scope := newTestEngine(t)
	secret := filepath.Join(filepath.Dir(repoRoot), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("outside the repo"), 0600))

	for _, path := range []string{
		"../secret.txt",
		"dir/../../secret.txt",
		secret,
		"..",
	} {
		_, err := engine.Track(context.Background(), repoRoot, scope, []string{path}, ModeSmart)
		require.Error(t, err, "path %q must not resolve outside the root", path)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "path", cfgErr.Field)
	}

	records, err := store.List(scope)
	require.NoError(t, err)
	assert.Empty(t, records, "nothing outside the root may be committed")
}

func TestTrackDiscovered(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello\n")
	writeFile(t, repoRoot, "src/b.txt", "world\n")
	writeFile(t, repoRoot, "debug.log", "noise\n")

	filter := pathfilter.New(repoRoot)
	outputs, discovered, err := engine.TrackDiscovered(
		context.Background(), repoRoot, scope, filter, 10, ModeSmart)
	require.NoError(t, err)
	assert.Equal(t, 2, discovered, "ignored files are not discovered")

	byPath := index(outputs)
	assert.Equal(t, diff.New, byPath["a.txt"].Status)
	assert.Equal(t, "hello\n", byPath["a.txt"].Content)
	assert.Equal(t, diff.New, byPath["src/b.txt"].Status)
	assert.NotContains(t, byPath, "debug.log")

	// The discovered set commits like any other: a second pass is all
	// unchanged.
	outputs, _, err = engine.TrackDiscovered(
		context.Background(), repoRoot, scope, filter, 10, ModeSmart)
	require.NoError(t, err)
	for _, out := range outputs {
		assert.Equal(t, diff.Unchanged, out.Status)
	}
}

func TestTrackDiscovered_Cap(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "a\n")
	writeFile(t, repoRoot, "b.txt", "b\n")
	writeFile(t, repoRoot, "c.txt", "c\n")

	filter := pathfilter.New(repoRoot)
	outputs, discovered, err := engine.TrackDiscovered(
		context.Background(), repoRoot, scope, filter, 2, ModeSmart)
	require.NoError(t, err)
	assert.Equal(t, 3, discovered)
	assert.Len(t, outputs, 2)

	// A zero or oversized cap falls back to the engine limit rather than
	// tripping the file-count error.
	outputs, _, err = engine.TrackDiscovered(
		context.Background(), repoRoot, scope, filter, 0, ModeSmart)
	require.NoError(t, err)
	assert.Len(t, outputs, 3)
}

func TestTrack_DuplicatePathsCollapse(t *testing.T) {
	t.Parallel()

	engine, _, repoRoot, scope := newTestEngine(t)
	writeFile(t, repoRoot, "a.txt", "hello")

	outputs, err := engine.Track(context.Background(), repoRoot, scope,
		[]string{"a.txt", "a.txt", "./a.txt"}, ModeSmart)
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
}

func index(outputs []FileOutput) map[string]FileOutput {
	byPath := make(map[string]FileOutput, len(outputs))
	for _, out := range outputs {
		byPath[out.Path] = out
	}
	return byPath
}
