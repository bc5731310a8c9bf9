package embedding

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModelCache holds lazily loaded per-key resources such as model clients.
// At most one load runs per key at a time; failed loads are not cached.
type ModelCache[K ~string, V any] struct {
	mu     sync.RWMutex
	loaded map[K]V
	group  singleflight.Group
}

func NewModelCache[K ~string, V any]() *ModelCache[K, V] {
	return &ModelCache[K, V]{loaded: make(map[K]V)}
}

// GetOrLoad returns the cached value for key, calling load when it is missing.
// Concurrent callers for the same key share one load.
func (c *ModelCache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	v, ok := c.loaded[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.group.Do(string(key), func() (any, error) {
		c.mu.RLock()
		v, ok := c.loaded[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.loaded[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return res.(V), nil
}

// Len reports how many keys are loaded.
func (c *ModelCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.loaded)
}
