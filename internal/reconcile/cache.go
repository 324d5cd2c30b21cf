package reconcile

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// boundedCache is a size-bounded LRU guarded by its own lock. load runs
// inside the lock, so concurrent misses on one key fetch once. Eviction only
// costs an extra fetch; cached values are never the source of truth.
type boundedCache[K comparable, V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[K, V]
}

func newBoundedCache[K comparable, V any](size int) *boundedCache[K, V] {
	if size < 1 {
		size = 1
	}
	lru, err := simplelru.NewLRU[K, V](size, nil)
	if err != nil {
		panic(err)
	}
	return &boundedCache[K, V]{lru: lru}
}

// getOrLoad returns the cached value for key or stores the result of load.
func (c *boundedCache[K, V]) getOrLoad(key K, load func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.lru.Add(key, v)
	return v, nil
}

func (c *boundedCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// keyedMutex hands out one mutex per key.
type keyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

func newKeyedMutex[K comparable]() *keyedMutex[K] {
	return &keyedMutex[K]{locks: make(map[K]*sync.Mutex)}
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex[K]) lock(key K) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
