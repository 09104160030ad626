package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/happycreater/binance-historical-data/internal/errors"
)

// CacheDirName is the hidden directory under the output root that holds
// persisted listing results.
const CacheDirName = ".binance-index-cache"

// Store is the persistence contract for remote listing results, keyed by
// prefix. Lookups are concurrent-safe; writes are last-writer-wins, which is
// acceptable because upstream listings only grow.
type Store interface {
	// Lookup returns the cached child names for a prefix, if present
	Lookup(prefix string) ([]string, bool)

	// Store persists the child names for a prefix
	Store(prefix string, names []string) error

	// Invalidate removes the cached entry for a prefix
	Invalidate(prefix string) error
}

// entry is the on-disk cache file format
type entry struct {
	Prefix   string    `json:"prefix"`
	CachedAt time.Time `json:"cached_at"`
	Keys     []string  `json:"keys"`
}

// FileStore persists listing results as JSON files under
// <root>/.binance-index-cache, one file per prefix, so repeated runs across
// process invocations stay warm.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a file-backed store scoped to the output root
func NewFileStore(outputRoot string) *FileStore {
	return &FileStore{dir: filepath.Join(outputRoot, CacheDirName)}
}

// cachePath derives the cache file name from the prefix digest
func (s *FileStore) cachePath(prefix string) string {
	digest := sha256.Sum256([]byte(prefix))
	return filepath.Join(s.dir, "index_"+hex.EncodeToString(digest[:])[:16]+".json")
}

// Lookup implements Store. A corrupt or unreadable file counts as a miss.
func (s *FileStore) Lookup(prefix string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.cachePath(prefix))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	if e.Keys == nil {
		return nil, false
	}
	return e.Keys, true
}

// Store implements Store
func (s *FileStore) Store(prefix string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.NewCacheError("index", "create_cache_dir", err)
	}

	// an empty key set must round-trip as a hit, so keep the slice non-nil
	sorted := make([]string, 0, len(names))
	sorted = append(sorted, names...)
	sort.Strings(sorted)
	data, err := json.MarshalIndent(entry{
		Prefix:   prefix,
		CachedAt: time.Now().UTC(),
		Keys:     sorted,
	}, "", "  ")
	if err != nil {
		return errors.NewCacheError("index", "encode_entry", err)
	}
	if err := os.WriteFile(s.cachePath(prefix), data, 0644); err != nil {
		return errors.NewCacheError("index", "write_entry", err)
	}
	return nil
}

// Invalidate removes the cached entry for a prefix, forcing the next lookup
// to miss.
func (s *FileStore) Invalidate(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.cachePath(prefix))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewCacheError("index", "invalidate_entry", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and cache-disabled runs
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]string)}
}

// Lookup implements Store
func (s *MemoryStore) Lookup(prefix string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, ok := s.entries[prefix]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// Store implements Store
func (s *MemoryStore) Store(prefix string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	s.entries[prefix] = sorted
	return nil
}

// Invalidate implements Store
func (s *MemoryStore) Invalidate(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, prefix)
	return nil
}

// Size returns the number of cached prefixes
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
