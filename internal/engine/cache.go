package engine

import (
	"sync"
	"time"
)

// cacheEntry holds a computed result and the wall-clock instant after
// which it may no longer be served.
type cacheEntry struct {
	value     ClaimableResult
	expiresAt time.Time
}

// resultCache memoizes claimable results keyed on the exact inputs that
// determine them. Concurrent miss-then-store races on the same key are
// benign: the value is a pure function of the key, so the last writer's
// entry is identical to every loser's. The mutex exists only for map safety.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached value for key if it has not expired as of now.
// Expired entries are evicted lazily on lookup.
func (rc *resultCache) get(key string, now time.Time) (ClaimableResult, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	e, ok := rc.entries[key]
	if !ok {
		return ClaimableResult{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(rc.entries, key)
		return ClaimableResult{}, false
	}
	return e.value, true
}

func (rc *resultCache) put(key string, value ClaimableResult, expiresAt time.Time) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = cacheEntry{value: value, expiresAt: expiresAt}
}

// clear drops all entries immediately.
func (rc *resultCache) clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[string]cacheEntry)
}

func (rc *resultCache) size() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}
