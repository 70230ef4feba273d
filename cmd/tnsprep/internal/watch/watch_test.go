package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs w in the background and returns the batches it reports
func startWatcher(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx, func(paths []string) { batches <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		w.Close()
	})
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for changes")
		return nil
	}
}

func svelteOnly(path string) bool {
	return strings.HasSuffix(path, ".svelte")
}

func TestWatcher_ReportsChangedTemplates(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, Options{Debounce: 20 * time.Millisecond, Filter: svelteOnly})
	require.NoError(t, err)
	batches := startWatcher(t, w)

	file := filepath.Join(dir, "App.svelte")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(file, []byte("<page/>"), 0644))
	require.NoError(t, os.WriteFile(file, []byte("<page></page>"), 0644))

	assert.Equal(t, []string{file}, waitBatch(t, batches))
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, Options{Debounce: 20 * time.Millisecond, Filter: svelteOnly})
	require.NoError(t, err)
	batches := startWatcher(t, w)

	sub := filepath.Join(dir, "views")
	require.NoError(t, os.Mkdir(sub, 0755))
	// give the loop a moment to pick up the directory
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "List.svelte")
	require.NoError(t, os.WriteFile(file, []byte("<listView/>"), 0644))

	assert.Equal(t, []string{file}, waitBatch(t, batches))
}

func TestWatcher_SkipsExcludedAndHidden(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"src", "node_modules", ".git"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0755))
	}

	w, err := New([]string{dir}, Options{Exclude: []string{"node_modules"}})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{dir, filepath.Join(dir, "src")}, w.Dirs())
}

func TestWatcher_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "A.svelte")
	other := filepath.Join(dir, "B.svelte")
	require.NoError(t, os.WriteFile(target, []byte("<a/>"), 0644))

	w, err := New([]string{target}, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	batches := startWatcher(t, w)

	require.NoError(t, os.WriteFile(other, []byte("<b/>"), 0644))
	require.NoError(t, os.WriteFile(target, []byte("<a></a>"), 0644))

	assert.Equal(t, []string{target}, waitBatch(t, batches))
}

func TestNew_MissingPath(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, Options{})
	assert.Error(t, err)
}
