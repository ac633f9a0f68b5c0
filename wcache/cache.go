// Package wcache provides a worker-local cache for transient operator state,
// such as encoder tables built while computing categorical statistics.
// Entries survive across phases within a run, but the cache must be cleared
// before each full run to avoid stale cross-run contamination: the workflow
// engine calls Clean as a mandatory pre-run step.
package wcache

import (
	"sync"

	"github.com/docker/docker/pkg/locker"
)

// Cache stores named values, loading each at most once per run
type Cache struct {
	locks   *locker.Locker
	mu      sync.Mutex
	entries map[string]interface{}
}

// New creates an empty Cache
func New() *Cache {
	return &Cache{
		locks:   locker.New(),
		entries: make(map[string]interface{}),
	}
}

// GetOrLoad returns the cached value for key, invoking load to produce it if
// absent. Concurrent callers for the same key block until the first load
// completes; loads for distinct keys proceed independently.
func (c *Cache) GetOrLoad(key string, load func() (interface{}, error)) (interface{}, error) {
	c.locks.Lock(key)
	defer c.locks.Unlock(key)
	c.mu.Lock()
	value, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return value, nil
	}
	value, err := load()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
	return value, nil
}

// Delete removes a single entry from the Cache
func (c *Cache) Delete(key string) {
	c.locks.Lock(key)
	defer c.locks.Unlock(key)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clean removes every entry from the Cache
func (c *Cache) Clean() {
	c.mu.Lock()
	c.entries = make(map[string]interface{})
	c.mu.Unlock()
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// the process-wide cache shared by operators running in this worker
var defaultCache = New()

// Default returns the process-wide worker cache
func Default() *Cache {
	return defaultCache
}

// GetOrLoad loads through the process-wide worker cache
func GetOrLoad(key string, load func() (interface{}, error)) (interface{}, error) {
	return defaultCache.GetOrLoad(key, load)
}

// Clean clears the process-wide worker cache
func Clean() {
	defaultCache.Clean()
}
