package state

import (
	"errors"
	"sync"

	"cockpit/internal/types"
)

var (
	ErrDuplicateCacheEntry = errors.New("cache entry already present")
	ErrStaleFetch          = errors.New("fetch result superseded by a newer cache generation")
)

type Entity interface {
	EntityID() string
}

// Snapshot is an immutable view of a cache. Fresh is false both before the
// first fetch and after Clear; a fresh empty snapshot means the backend
// returned nothing.
type Snapshot[T Entity] struct {
	Items      []T
	Fresh      bool
	Generation uint64
}

func (s Snapshot[T]) Cleared() bool {
	return !s.Fresh
}

// Cache is an ordered collection unique by EntityID. Writers replace the
// backing slice wholesale so readers never observe a partial update.
type Cache[T Entity] struct {
	domain types.Domain
	notify func(Field)

	mu         sync.RWMutex
	items      []T
	fresh      bool
	generation uint64
}

func newCache[T Entity](domain types.Domain, notify func(Field)) *Cache[T] {
	return &Cache[T]{domain: domain, notify: notify}
}

func (c *Cache[T]) Domain() types.Domain {
	return c.domain
}

func (c *Cache[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot[T]{
		Items:      append([]T(nil), c.items...),
		Fresh:      c.fresh,
		Generation: c.generation,
	}
}

func (c *Cache[T]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Set replaces the contents. Later entries with an id already seen are
// dropped.
func (c *Cache[T]) Set(items []T) {
	next := dedupe(items)
	c.mu.Lock()
	c.items = next
	c.fresh = true
	c.mu.Unlock()
	c.changed()
}

func (c *Cache[T]) Append(item T) error {
	id := item.EntityID()
	c.mu.Lock()
	for _, existing := range c.items {
		if existing.EntityID() == id {
			c.mu.Unlock()
			return ErrDuplicateCacheEntry
		}
	}
	next := make([]T, 0, len(c.items)+1)
	next = append(next, c.items...)
	next = append(next, item)
	c.items = next
	c.mu.Unlock()
	c.changed()
	return nil
}

// Clear empties the cache, marks it not fresh and starts a new generation.
// It returns the new generation.
func (c *Cache[T]) Clear() uint64 {
	c.mu.Lock()
	c.items = nil
	c.fresh = false
	c.generation++
	gen := c.generation
	c.mu.Unlock()
	c.changed()
	return gen
}

// Commit stores a fetch result that was started at generation. It is
// rejected with ErrStaleFetch when the cache was cleared since.
func (c *Cache[T]) Commit(generation uint64, items []T) error {
	next := dedupe(items)
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return ErrStaleFetch
	}
	c.items = next
	c.fresh = true
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Cache[T]) changed() {
	if c.notify != nil {
		c.notify(Field(c.domain))
	}
}

func dedupe[T Entity](items []T) []T {
	if len(items) == 0 {
		return []T{}
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.EntityID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}
