// Package resourcecache bounds the number of simultaneously open
// PartitionLog instances a broker process holds, evicting the least
// recently used one once a capacity limit is reached. It sits above
// PartitionLog: a PartitionLog itself always keeps all of its own segments
// open once loaded.
package resourcecache

import (
	"container/list"
	"sync"

	"forge/internal/partitionlog"
)

const defaultCapacity = 500

// Cache manages open *partitionlog.PartitionLog instances keyed by an
// opaque caller-chosen key (typically "topic-partition").
type Cache struct {
	mu       sync.Mutex
	capacity int
	lruList  *list.List
	items    map[string]*list.Element
}

type cacheItem struct {
	key string
	p   *partitionlog.PartitionLog
}

// New returns a Cache holding at most capacity open partition logs.
// capacity <= 0 falls back to a 500-partition default.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		lruList:  list.New(),
		items:    make(map[string]*list.Element),
	}
}

// GetOrLoad returns the cached partition log for key, calling loader to open
// it on a miss. A hit moves the entry to the front of the LRU order; a miss
// that fills the cache evicts (and closes) the least recently used entry.
func (c *Cache) GetOrLoad(key string, loader func() (*partitionlog.PartitionLog, error)) (*partitionlog.PartitionLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*cacheItem).p, nil
	}

	p, err := loader()
	if err != nil {
		return nil, err
	}

	if c.lruList.Len() >= c.capacity {
		c.evict()
	}

	elem := c.lruList.PushFront(&cacheItem{key: key, p: p})
	c.items[key] = elem
	return p, nil
}

func (c *Cache) evict() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}
	c.lruList.Remove(elem)
	item := elem.Value.(*cacheItem)
	delete(c.items, item.key)
	_ = item.p.Close()
}

// Close closes every partition log currently held by the cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.lruList.Front(); e != nil; e = e.Next() {
		_ = e.Value.(*cacheItem).p.Close()
	}
	c.lruList.Init()
	c.items = make(map[string]*list.Element)
	return nil
}
