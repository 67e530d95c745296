// Package cache provides a small in-process read-through cache for data
// that is fixed after deploy, such as the membership plan catalog.
// Entries are never invalidated; restart the process to pick up changes.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for a key on a miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// ReadThrough caches successful loads forever. Concurrent misses for the
// same key share one load through a singleflight group; failed loads are
// not cached.
type ReadThrough[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	group   singleflight.Group
	load    Loader[K, V]
}

// NewReadThrough returns an empty cache backed by load.
func NewReadThrough[K comparable, V any](load Loader[K, V]) *ReadThrough[K, V] {
	return &ReadThrough[K, V]{entries: make(map[K]V), load: load}
}

// Get returns the cached value for key, loading it on the first call.
// A caller whose ctx ends while waiting gets ctx.Err(); the shared load
// keeps running for the others.
func (c *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		// The first caller's cancellation must not fail everyone sharing the load.
		v, err := c.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			var zero V
			return zero, r.Err
		}
		v, _ := r.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *ReadThrough[K, V]) lookup(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Len reports how many keys are cached.
func (c *ReadThrough[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
