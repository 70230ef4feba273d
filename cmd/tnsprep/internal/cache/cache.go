// Package cache stores transformed templates keyed by a hash of their
// source and the options they were transformed with, so unchanged files are
// not re-processed between runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const indexVersion = "1"

// Cache is a two level cache: a bounded in-memory LRU in front of an
// on-disk artifact store with a JSON index
type Cache struct {
	mu      sync.RWMutex
	dir     string
	index   *Index
	mem     *lru.Cache[string, []byte]
	maxSize int64
	maxAge  time.Duration
	stats   Stats
	log     zerolog.Logger
}

// Index tracks all cached entries
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry is a single cached artifact
type Entry struct {
	Key         string    `json:"key"`
	Source      string    `json:"source,omitempty"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
}

// Stats tracks cache performance
type Stats struct {
	Hits       int64 `json:"hits"`
	MemoryHits int64 `json:"memory_hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	TotalSize  int64 `json:"total_size"`
	EntryCount int   `json:"entry_count"`
}

// Config holds cache configuration
type Config struct {
	Dir           string        // Cache directory
	MaxSize       int64         // Maximum on-disk size in bytes, 0 for unlimited
	MaxAge        time.Duration // Maximum entry age, 0 for no expiry
	MemoryEntries int           // In-memory LRU capacity
	Logger        *zerolog.Logger
}

// New opens or creates a cache in config.Dir. Expired entries are pruned.
func New(config Config) (*Cache, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("cache directory not set")
	}
	if config.MemoryEntries <= 0 {
		config.MemoryEntries = 128
	}

	if err := os.MkdirAll(filepath.Join(config.Dir, "artifacts"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	mem, err := lru.New[string, []byte](config.MemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	c := &Cache{
		dir:     config.Dir,
		mem:     mem,
		maxSize: config.MaxSize,
		maxAge:  config.MaxAge,
		log:     zerolog.Nop(),
		index:   newIndex(),
	}
	if config.Logger != nil {
		c.log = *config.Logger
	}

	if err := c.loadIndex(); err != nil {
		// Index doesn't exist or is corrupted, start fresh
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("dir", c.dir).Msg("discarding unreadable cache index")
		}
		c.index = newIndex()
	}

	c.Prune()
	return c, nil
}

// Key derives a cache key from the inputs that determine a transform result
func Key(inputs ...string) string {
	h := sha256.New()
	for _, input := range inputs {
		// length prefix keeps ("ab", "c") and ("a", "bc") apart
		fmt.Fprintf(h, "%d:", len(input))
		h.Write([]byte(input))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached artifact
func (c *Cache) Get(key string) ([]byte, bool) {
	if data, ok := c.mem.Get(key); ok {
		c.touch(key)
		c.mu.Lock()
		c.stats.Hits++
		c.stats.MemoryHits++
		c.mu.Unlock()
		return data, true
	}

	c.mu.RLock()
	entry, exists := c.index.Entries[key]
	c.mu.RUnlock()

	if !exists || c.isExpired(entry) {
		if exists {
			c.Delete(key)
		}
		c.recordMiss()
		return nil, false
	}

	data, err := os.ReadFile(c.artifactPath(key))
	if err != nil {
		// Cache file is missing or corrupted
		c.Delete(key)
		c.recordMiss()
		return nil, false
	}

	c.mem.Add(key, data)
	c.touch(key)
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()

	return data, true
}

// Put stores an artifact. source labels the entry for diagnostics.
func (c *Cache) Put(key, source string, data []byte) error {
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index.Entries[key]; ok {
		c.stats.TotalSize -= old.Size
		delete(c.index.Entries, key)
	}
	c.ensureSpace(size)

	if err := os.WriteFile(c.artifactPath(key), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	c.index.Entries[key] = &Entry{
		Key:        key,
		Source:     source,
		Size:       size,
		Created:    now,
		LastAccess: now,
	}
	c.index.Updated = now
	c.stats.TotalSize += size
	c.stats.EntryCount = len(c.index.Entries)
	c.mem.Add(key, data)

	return c.saveIndexNoLock()
}

// Delete removes an entry from the cache
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.removeNoLock(key) {
		return nil
	}
	c.index.Updated = time.Now()
	return c.saveIndexNoLock()
}

// Prune removes expired entries and returns how many were dropped
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.index.Entries {
		if c.isExpired(entry) {
			c.removeNoLock(key)
			count++
		}
	}
	if count > 0 {
		c.index.Updated = time.Now()
		if err := c.saveIndexNoLock(); err != nil {
			c.log.Warn().Err(err).Msg("failed to save cache index")
		}
	}
	return count
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	artifactsDir := filepath.Join(c.dir, "artifacts")
	if err := os.RemoveAll(artifactsDir); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	c.mem.Purge()
	c.index = newIndex()
	c.stats = Stats{}

	return c.saveIndexNoLock()
}

// GetStats returns cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Close saves the index so access times survive the process
func (c *Cache) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveIndexNoLock()
}

// Private methods

func newIndex() *Index {
	return &Index{
		Version: indexVersion,
		Entries: make(map[string]*Entry),
		Updated: time.Now(),
	}
}

func (c *Cache) artifactPath(key string) string {
	return filepath.Join(c.dir, "artifacts", key)
}

func (c *Cache) touch(key string) {
	c.mu.Lock()
	if entry, ok := c.index.Entries[key]; ok {
		entry.LastAccess = time.Now()
		entry.AccessCount++
	}
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion || index.Entries == nil {
		return fmt.Errorf("unsupported cache index version %q", index.Version)
	}
	c.index = &index

	var totalSize int64
	for _, entry := range c.index.Entries {
		totalSize += entry.Size
	}
	c.stats.TotalSize = totalSize
	c.stats.EntryCount = len(c.index.Entries)

	return nil
}

// saveIndexNoLock saves the index; caller must hold at least a read lock
func (c *Cache) saveIndexNoLock() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "index.json"), data, 0644)
}

func (c *Cache) isExpired(entry *Entry) bool {
	if c.maxAge <= 0 {
		return false
	}
	return time.Since(entry.Created) > c.maxAge
}

// ensureSpace evicts least recently used entries until needed bytes fit;
// caller must hold the write lock
func (c *Cache) ensureSpace(needed int64) {
	if c.maxSize <= 0 {
		return
	}

	for c.stats.TotalSize+needed > c.maxSize && len(c.index.Entries) > 0 {
		var evictKey string
		var oldest time.Time
		for key, entry := range c.index.Entries {
			if evictKey == "" || entry.LastAccess.Before(oldest) {
				evictKey = key
				oldest = entry.LastAccess
			}
		}

		c.removeNoLock(evictKey)
		c.stats.Evictions++
	}
}

func (c *Cache) removeNoLock(key string) bool {
	entry, ok := c.index.Entries[key]
	if !ok {
		return false
	}

	if err := os.Remove(c.artifactPath(key)); err != nil && !os.IsNotExist(err) {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to remove cache file")
	}
	c.mem.Remove(key)
	delete(c.index.Entries, key)
	c.stats.TotalSize -= entry.Size
	c.stats.EntryCount = len(c.index.Entries)
	return true
}
