package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestCache_GetPut(t *testing.T) {
	c := newTestCache(t, Config{MaxAge: time.Hour})

	key := Key("<page/>", "tns")
	data := []byte(`<page xmlns="tns" />`)
	require.NoError(t, c.Put(key, "Index.svelte", data))

	got, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, data, got)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.MemoryHits)

	_, found = c.Get("non-existent")
	assert.False(t, found)
	assert.Equal(t, int64(1), c.GetStats().Misses)
}

func TestCache_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first := newTestCache(t, Config{Dir: dir})
	require.NoError(t, first.Put("k", "a.svelte", []byte("v")))
	require.NoError(t, first.Close())

	second := newTestCache(t, Config{Dir: dir})
	got, found := second.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), got)

	stats := second.GetStats()
	assert.Equal(t, int64(0), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.TotalSize)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestCache_Eviction(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10})

	require.NoError(t, c.Put("a", "", []byte("12345")))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Put("b", "", []byte("12345")))
	time.Sleep(5 * time.Millisecond)

	// touching a makes b the least recently used
	_, found := c.Get("a")
	require.True(t, found)

	require.NoError(t, c.Put("c", "", []byte("12345")))

	_, found = c.Get("b")
	assert.False(t, found)
	_, found = c.Get("a")
	assert.True(t, found)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(10), stats.TotalSize)
}

func TestCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Dir: dir, MaxAge: 10 * time.Millisecond})
	require.NoError(t, c.Put("k", "", []byte("v")))
	require.NoError(t, c.Close())

	time.Sleep(20 * time.Millisecond)

	reopened := newTestCache(t, Config{Dir: dir, MaxAge: 10 * time.Millisecond})
	_, found := reopened.Get("k")
	assert.False(t, found)
	assert.Equal(t, 0, reopened.GetStats().EntryCount)
}

func TestCache_CorruptIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0644))

	c := newTestCache(t, Config{Dir: dir})
	assert.Equal(t, 0, c.GetStats().EntryCount)
	require.NoError(t, c.Put("k", "", []byte("v")))
}

func TestCache_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	first := newTestCache(t, Config{Dir: dir})
	require.NoError(t, first.Put("k", "", []byte("v")))
	require.NoError(t, os.Remove(filepath.Join(dir, "artifacts", "k")))

	second := newTestCache(t, Config{Dir: dir})
	_, found := second.Get("k")
	assert.False(t, found)
	assert.Equal(t, 0, second.GetStats().EntryCount)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, Config{})
	require.NoError(t, c.Put("a", "", []byte("1")))
	require.NoError(t, c.Put("b", "", []byte("2")))

	require.NoError(t, c.Clear())

	_, found := c.Get("a")
	assert.False(t, found)
	assert.Equal(t, 0, c.GetStats().EntryCount)
	assert.DirExists(t, filepath.Join(c.Dir(), "artifacts"))
}

func TestCache_Concurrent(t *testing.T) {
	c := newTestCache(t, Config{MemoryEntries: 4})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("file", string(rune('a'+i)))
			assert.NoError(t, c.Put(key, "", []byte{byte(i)}))
			got, found := c.Get(key)
			if assert.True(t, found) {
				assert.Equal(t, []byte{byte(i)}, got)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, c.GetStats().EntryCount)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key("x"), 64)
}
