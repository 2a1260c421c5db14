package exchange

import (
	"container/list"

	"WyvernExchange/internal/observability"

	"github.com/ethereum/go-ethereum/common"
)

// FinalizedCache is an LRU of hashes known to be cancelled or finalized.
// It only holds positive answers: a miss falls through to the store.
// Not thread-safe; guarded by Exchange.mu.
type FinalizedCache struct {
	capacity int
	cache    map[common.Hash]*list.Element
	lruList  *list.List

	evictions int64
	metrics   *observability.Metrics
}

func NewFinalizedCache(capacity int, metrics *observability.Metrics) *FinalizedCache {
	return &FinalizedCache{
		capacity: capacity,
		cache:    make(map[common.Hash]*list.Element, capacity),
		lruList:  list.New(),
		metrics:  metrics,
	}
}

// Contains checks if hash exists (promotes to front)
func (lru *FinalizedCache) Contains(hash common.Hash) bool {
	if lru.capacity <= 0 {
		return false
	}
	elem, exists := lru.cache[hash]
	if exists {
		lru.lruList.MoveToFront(elem)
		lru.record("lru")
		return true
	}
	return false
}

// Add inserts a hash (or promotes if exists). Call only after the write
// that finalized it has committed.
func (lru *FinalizedCache) Add(hash common.Hash) {
	if lru.capacity <= 0 {
		return
	}
	if elem, exists := lru.cache[hash]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(hash)
	lru.cache[hash] = elem

	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
	}
	if lru.metrics != nil {
		lru.metrics.RegistryCacheSize.Set(float64(lru.lruList.Len()))
	}
}

func (lru *FinalizedCache) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		delete(lru.cache, elem.Value.(common.Hash))
		lru.evictions++
		if lru.metrics != nil {
			lru.metrics.RegistryCacheEvictions.Inc()
		}
	}
}

func (lru *FinalizedCache) record(tier string) {
	if lru.metrics != nil {
		lru.metrics.RegistryCacheHits.WithLabelValues(tier).Inc()
	}
}

// Size returns current number of entries
func (lru *FinalizedCache) Size() int {
	return lru.lruList.Len()
}

// Evictions returns total evictions
func (lru *FinalizedCache) Evictions() int64 {
	return lru.evictions
}
