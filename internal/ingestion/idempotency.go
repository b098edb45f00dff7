package ingestion

import (
	"container/list"
	"fmt"

	"StreamLedger/internal/observability"
)

// IdempotencyChecker implements two-tier deduplication of contract events:
// a hot in-memory LRU backed by the Postgres event log's unique constraint.
type IdempotencyChecker struct {
	lru       *idempotencyLRU
	dbChecker DBIdempotencyChecker
	metrics   *observability.Metrics
}

// DBIdempotencyChecker is the interface for the Postgres dedup lookup.
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, idempotencyKey string) (bool, error)
}

// NewIdempotencyChecker creates a checker. dbChecker and metrics may be nil.
func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker, metrics *observability.Metrics) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       newIdempotencyLRU(capacity),
		dbChecker: dbChecker,
		metrics:   metrics,
	}
}

// IsDuplicate checks whether the event has already been applied (two-tier
// lookup). On a tier-2 error the event is conservatively treated as new;
// the event log's unique constraint is the final arbiter.
func (ic *IdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) bool {
	compositeKey := fmt.Sprintf("%s:%s", eventType, idempotencyKey)

	if ic.lru.Contains(compositeKey) {
		if ic.metrics != nil {
			ic.metrics.IdempotencyDuplicates.WithLabelValues(eventType, "lru").Inc()
		}
		return true
	}

	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(eventType, idempotencyKey)
		if err != nil {
			if ic.metrics != nil {
				ic.metrics.IdempotencyTier2Errors.Inc()
			}
			return false
		}

		if isDup {
			if ic.metrics != nil {
				ic.metrics.IdempotencyDuplicates.WithLabelValues(eventType, "postgres").Inc()
			}
			ic.lru.Add(compositeKey)
			return true
		}
	}

	return false
}

// MarkProcessed adds the key to the LRU after a committed apply.
func (ic *IdempotencyChecker) MarkProcessed(eventType string, idempotencyKey string) {
	ic.lru.Add(fmt.Sprintf("%s:%s", eventType, idempotencyKey))
}

// --- LRU Implementation ---

// idempotencyLRU is an LRU set of composite idempotency keys.
// Not thread-safe — only accessed from the single apply worker goroutine.
type idempotencyLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

type lruEntry struct {
	key string
}

func newIdempotencyLRU(capacity int) *idempotencyLRU {
	return &idempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front).
func (lru *idempotencyLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if it exists).
func (lru *idempotencyLRU) Add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(&lruEntry{key: key})
	lru.cache[key] = elem

	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *idempotencyLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		delete(lru.cache, elem.Value.(*lruEntry).key)
	}
}

// Size returns the current number of entries.
func (lru *idempotencyLRU) Size() int {
	return lru.lruList.Len()
}
