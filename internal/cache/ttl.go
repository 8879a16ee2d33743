package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc builds a fresh value, typically by fetching credentials and constructing a client
type LoadFunc[T any] func(ctx context.Context) (T, error)

// TTL holds one lazily loaded value that expires after a fixed window.
// Reads of a fresh value only take a read lock. Refreshes are single-flight, so
// concurrent callers that find the value expired share one load.
type TTL[T any] struct {
	ttl  time.Duration
	load LoadFunc[T]
	now  func() time.Time

	mu      sync.RWMutex
	value   T
	expires time.Time
	loaded  bool

	group singleflight.Group
}

// TTLOption customizes a TTL cache
type TTLOption[T any] func(*TTL[T])

// WithClock replaces time.Now, for tests
func WithClock[T any](now func() time.Time) TTLOption[T] {
	return func(c *TTL[T]) { c.now = now }
}

func NewTTL[T any](ttl time.Duration, load LoadFunc[T], opts ...TTLOption[T]) *TTL[T] {
	c := &TTL[T]{ttl: ttl, load: load, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTL[T]) fresh() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded && c.now().Before(c.expires) {
		return c.value, true
	}
	var zero T
	return zero, false
}

// Get returns the cached value, loading it when absent or expired.
// A failed load is not cached; the next call retries. The load keeps the
// caller's context values but not its cancellation, so loaders should bound
// their own time.
func (c *TTL[T]) Get(ctx context.Context) (T, error) {
	if v, ok := c.fresh(); ok {
		return v, nil
	}

	v, err, _ := c.group.Do("load", func() (interface{}, error) {
		if v, ok := c.fresh(); ok {
			return v, nil
		}
		// shared by every waiter, so one caller's cancellation must not fail the rest
		v, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.value = v
		c.expires = c.now().Add(c.ttl)
		c.loaded = true
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate forces the next Get to load again
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	var zero T
	c.value = zero
	c.mu.Unlock()
}
