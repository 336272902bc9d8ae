package gossip

import (
	"container/list"
	"sync"
)

// dedupCache is a bounded, content-hash-keyed set used to suppress
// rebroadcast loops (§4.3: "time-limited LRU (>= 4096 entries per kind)").
// It is a set, not a time-limited cache in the TTL sense: capacity eviction
// (oldest-seen-first) stands in for time-limiting, which is sufficient to
// bound loop amplification without a background sweep goroutine.
type dedupCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// newDedupCache creates a cache holding at most capacity entries.
func newDedupCache(capacity int) *dedupCache {
	if capacity <= 0 {
		capacity = 4096
	}
	return &dedupCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// SeenOrAdd reports whether key was already present, inserting it if not.
func (c *dedupCache) SeenOrAdd(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[key]; ok {
		return true
	}
	elem := c.order.PushBack(key)
	c.index[key] = elem
	if c.order.Len() > c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(string))
		}
	}
	return false
}
