package pdo_oci8

import (
	"sync"

	"github.com/cespare/xxhash"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

const defaultStmtCacheSize = 20

// stmtCache pools native statement handles by query text so repeated
// prepares of the same text skip the native round trip. An entry is busy
// while a statement is checked out for it.
type stmtCache struct {
	mu      sync.Mutex
	size    int
	entries map[uint64]*cacheEntry
}

type cacheEntry struct {
	query string
	stmt  oci8.Stmt
	busy  bool
}

func newStmtCache(size int) *stmtCache {
	return &stmtCache{size: size, entries: make(map[uint64]*cacheEntry)}
}

func (cache *stmtCache) enabled() bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.size > 0
}

func (cache *stmtCache) capacity() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.size
}

// get checks out a free handle prepared for the same text.
func (cache *stmtCache) get(query string) (oci8.Stmt, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.size == 0 {
		return nil, false
	}
	entry, ok := cache.entries[xxhash.Sum64String(query)]
	if !ok || entry.busy || entry.query != query {
		return nil, false
	}
	entry.busy = true
	return entry.stmt, true
}

// put returns a handle to the cache, false when the cache cannot take it and
// the caller still owns it. A busy entry only takes back the handle that was
// checked out for it; a second handle prepared for the same text while the
// slot was taken stays with the caller.
func (cache *stmtCache) put(query string, stmt oci8.Stmt) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.size == 0 {
		return false
	}
	key := xxhash.Sum64String(query)
	if entry, ok := cache.entries[key]; ok {
		if entry.query != query || entry.stmt != stmt {
			return false
		}
		entry.busy = false
		return true
	}
	if len(cache.entries) >= cache.size {
		return false
	}
	cache.entries[key] = &cacheEntry{query: query, stmt: stmt}
	return true
}

// resize changes the capacity, dropping free entries while over it. Busy
// entries are left to their owners.
func (cache *stmtCache) resize(size int) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.size = size
	for key, entry := range cache.entries {
		if len(cache.entries) <= size {
			break
		}
		if entry.busy {
			continue
		}
		entry.stmt.Close()
		delete(cache.entries, key)
	}
}

// closeAll releases every pooled handle. Called when the connection closes.
func (cache *stmtCache) closeAll() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for key, entry := range cache.entries {
		entry.stmt.Close()
		delete(cache.entries, key)
	}
}
