// Package cache provides an LRU cache of compiled commands.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/provider"
)

const (
	// DefaultCommandCacheCapacity is the default maximum number of cached commands.
	DefaultCommandCacheCapacity = 1000
)

// Key identifies a compiled command by dialect and tree fingerprint.
// Structurally equal trees share a key whether or not they were built
// separately; callers rebind the cached command to their own tree's values.
type Key struct {
	Dialect     string
	Fingerprint string
}

// NewKey returns the key of p compiled for dialect.
func NewKey(dialect string, p provider.Provider) Key {
	return Key{Dialect: dialect, Fingerprint: provider.Fingerprint(p)}
}

func (k Key) flight() string {
	return k.Dialect + "\x00" + k.Fingerprint
}

// CommandCache stores compiled commands with LRU eviction policy.
type CommandCache struct {
	mu       sync.RWMutex
	capacity int
	items    map[Key]*list.Element
	lruList  *list.List
	group    singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheEntry struct {
	key Key
	cmd *compiler.Command
}

// NewCommandCache creates a command cache with default capacity.
func NewCommandCache() *CommandCache {
	return NewCommandCacheWithCapacity(DefaultCommandCacheCapacity)
}

// NewCommandCacheWithCapacity creates a command cache with the given capacity.
func NewCommandCacheWithCapacity(capacity int) *CommandCache {
	if capacity <= 0 {
		capacity = DefaultCommandCacheCapacity
	}
	return &CommandCache{
		capacity: capacity,
		items:    make(map[Key]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Get retrieves a command. Accessing a command moves it to the front of the
// LRU list.
func (cc *CommandCache) Get(key Key) (*compiler.Command, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	elem, exists := cc.items[key]
	if !exists {
		cc.misses.Add(1)
		return nil, false
	}

	cc.lruList.MoveToFront(elem)
	cc.hits.Add(1)
	return elem.Value.(*cacheEntry).cmd, true
}

// Set stores a command, evicting the least recently used one when full.
func (cc *CommandCache) Set(key Key, cmd *compiler.Command) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if elem, exists := cc.items[key]; exists {
		cc.lruList.MoveToFront(elem)
		elem.Value.(*cacheEntry).cmd = cmd
		return
	}

	if cc.lruList.Len() >= cc.capacity {
		cc.evictOldest()
	}

	elem := cc.lruList.PushFront(&cacheEntry{key: key, cmd: cmd})
	cc.items[key] = elem
}

// GetOrCompile returns the cached command for key, or runs compile and
// caches its result. Concurrent misses on one key run compile once. The
// boolean reports a cache hit. Failed compilations are not cached.
func (cc *CommandCache) GetOrCompile(key Key, compile func() (*compiler.Command, error)) (*compiler.Command, bool, error) {
	if cmd, ok := cc.Get(key); ok {
		return cmd, true, nil
	}
	v, err, _ := cc.group.Do(key.flight(), func() (any, error) {
		cc.mu.RLock()
		elem, exists := cc.items[key]
		cc.mu.RUnlock()
		if exists {
			return elem.Value.(*cacheEntry).cmd, nil
		}
		cmd, err := compile()
		if err != nil {
			return nil, err
		}
		cc.Set(key, cmd)
		return cmd, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*compiler.Command), false, nil
}

// evictOldest removes the least recently used command.
// Must be called with lock held.
func (cc *CommandCache) evictOldest() {
	elem := cc.lruList.Back()
	if elem == nil {
		return
	}
	cc.lruList.Remove(elem)
	delete(cc.items, elem.Value.(*cacheEntry).key)
	cc.evictions.Add(1)
}

// Clear removes all cached commands.
func (cc *CommandCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.items = make(map[Key]*list.Element, cc.capacity)
	cc.lruList.Init()
}

// Stats holds cache performance metrics.
type Stats struct {
	Size      int     // Current number of cached commands.
	Capacity  int     // Maximum capacity.
	Hits      uint64  // Number of successful cache lookups.
	Misses    uint64  // Number of cache misses.
	Evictions uint64  // Number of evicted commands.
	HitRate   float64 // Cache hit rate (hits / total requests).
}

// Stats returns cache statistics.
func (cc *CommandCache) Stats() Stats {
	cc.mu.RLock()
	size := cc.lruList.Len()
	cc.mu.RUnlock()

	hits := cc.hits.Load()
	misses := cc.misses.Load()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Capacity:  cc.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: cc.evictions.Load(),
		HitRate:   hitRate,
	}
}
