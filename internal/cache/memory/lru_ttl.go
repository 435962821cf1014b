package memory

import (
	"container/list"
	"sync"
	"time"
)

type item[K comparable, V any] struct {
	key     K
	value   V
	bytes   int
	expires time.Time
}

// LRUTTL is a threadsafe LRU cache with per-entry TTL and an optional
// byte budget. Expired entries are dropped on access.
type LRUTTL[K comparable, V any] struct {
	mu         sync.Mutex
	order      *list.List
	index      map[K]*list.Element
	maxEntries int
	maxBytes   int
	usedBytes  int
	ttl        time.Duration
}

func NewLRUTTL[K comparable, V any](maxEntries, maxBytes int, ttl time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LRUTTL[K, V]{
		order:      list.New(),
		index:      make(map[K]*list.Element),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ttl:        ttl,
	}
}

func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ele, ok := c.index[key]
	if !ok {
		return zero, false
	}
	it := ele.Value.(*item[K, V])
	if time.Now().After(it.expires) {
		c.drop(ele)
		return zero, false
	}
	c.order.MoveToFront(ele)
	return it.value, true
}

func (c *LRUTTL[K, V]) Set(key K, value V, sizeBytes int) {
	if c == nil {
		return
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, ok := c.index[key]; ok {
		it := ele.Value.(*item[K, V])
		c.usedBytes += sizeBytes - it.bytes
		it.value = value
		it.bytes = sizeBytes
		it.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(ele)
		c.evict()
		return
	}

	ele := c.order.PushFront(&item[K, V]{
		key:     key,
		value:   value,
		bytes:   sizeBytes,
		expires: time.Now().Add(c.ttl),
	})
	c.index[key] = ele
	c.usedBytes += sizeBytes
	c.evict()
}

func (c *LRUTTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[key]; ok {
		c.drop(ele)
	}
}

func (c *LRUTTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUTTL[K, V]) evict() {
	for c.order.Len() > 0 {
		if c.order.Len() <= c.maxEntries && (c.maxBytes <= 0 || c.usedBytes <= c.maxBytes) {
			return
		}
		c.drop(c.order.Back())
	}
}

func (c *LRUTTL[K, V]) drop(ele *list.Element) {
	if ele == nil {
		return
	}
	c.order.Remove(ele)
	it := ele.Value.(*item[K, V])
	delete(c.index, it.key)
	c.usedBytes -= it.bytes
	if c.usedBytes < 0 {
		c.usedBytes = 0
	}
}
