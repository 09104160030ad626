package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileStore_StoreAndLookup tests the basic persistence round trip
func TestFileStore_StoreAndLookup(t *testing.T) {
	store := NewFileStore(t.TempDir())
	const pfx = "data/spot/daily/klines/BTCUSDT/1h/"
	keys := []string{
		pfx + "BTCUSDT-1h-2021-01-02.zip",
		pfx + "BTCUSDT-1h-2021-01-01.zip",
	}

	require.NoError(t, store.Store(pfx, keys))

	got, ok := store.Lookup(pfx)
	require.True(t, ok)
	// entries come back sorted regardless of insertion order
	assert.Equal(t, []string{
		pfx + "BTCUSDT-1h-2021-01-01.zip",
		pfx + "BTCUSDT-1h-2021-01-02.zip",
	}, got)
}

// TestFileStore_MissIsNotError tests that an unknown prefix is a clean miss
func TestFileStore_MissIsNotError(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, ok := store.Lookup("data/spot/daily/klines/NOPE/1h/")
	assert.False(t, ok)
}

// TestFileStore_DistinctPrefixesDistinctFiles tests that prefixes do not collide
func TestFileStore_DistinctPrefixesDistinctFiles(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)

	require.NoError(t, store.Store("data/spot/daily/klines/BTCUSDT/1h/", []string{"a.zip"}))
	require.NoError(t, store.Store("data/spot/daily/klines/ETHUSDT/1h/", []string{"b.zip"}))

	first, ok := store.Lookup("data/spot/daily/klines/BTCUSDT/1h/")
	require.True(t, ok)
	assert.Equal(t, []string{"a.zip"}, first)

	second, ok := store.Lookup("data/spot/daily/klines/ETHUSDT/1h/")
	require.True(t, ok)
	assert.Equal(t, []string{"b.zip"}, second)

	files, err := os.ReadDir(filepath.Join(root, CacheDirName))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

// TestFileStore_CorruptFileIsMiss tests that a damaged cache file degrades to a miss
func TestFileStore_CorruptFileIsMiss(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	const pfx = "data/spot/daily/klines/BTCUSDT/1h/"

	require.NoError(t, store.Store(pfx, []string{"a.zip"}))
	require.NoError(t, os.WriteFile(store.cachePath(pfx), []byte("{not json"), 0644))

	_, ok := store.Lookup(pfx)
	assert.False(t, ok)
}

// TestFileStore_Invalidate tests explicit invalidation
func TestFileStore_Invalidate(t *testing.T) {
	store := NewFileStore(t.TempDir())
	const pfx = "data/spot/daily/klines/BTCUSDT/1h/"

	require.NoError(t, store.Store(pfx, []string{"a.zip"}))
	require.NoError(t, store.Invalidate(pfx))

	_, ok := store.Lookup(pfx)
	assert.False(t, ok)

	// invalidating an absent entry is fine
	assert.NoError(t, store.Invalidate(pfx))
}

// TestFileStore_EmptyListingIsAHit tests that an empty key set still counts as cached
func TestFileStore_EmptyListingIsAHit(t *testing.T) {
	store := NewFileStore(t.TempDir())
	const pfx = "data/spot/daily/klines/DELISTED/1h/"

	require.NoError(t, store.Store(pfx, []string{}))

	got, ok := store.Lookup(pfx)
	assert.True(t, ok)
	assert.Empty(t, got)
}

// TestMemoryStore_Basics tests the in-memory store used by cache-disabled runs
func TestMemoryStore_Basics(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Store("p/", []string{"b.zip", "a.zip"}))

	got, ok := store.Lookup("p/")
	require.True(t, ok)
	assert.Equal(t, []string{"a.zip", "b.zip"}, got)
	assert.Equal(t, 1, store.Size())

	_, ok = store.Lookup("q/")
	assert.False(t, ok)

	require.NoError(t, store.Invalidate("p/"))
	_, ok = store.Lookup("p/")
	assert.False(t, ok)
	assert.Zero(t, store.Size())
}
