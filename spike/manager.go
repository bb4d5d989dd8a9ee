// Package spike collapses bursts of identical lookups into single fetches
// backed by a short-lived cache. It shields slow external endpoints from
// request spikes: concurrent callers asking for the same key share one fetch
// and one result.
package spike

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = time.Minute

// Manager deduplicates and caches fetches of T keyed by string. The zero
// value is not usable; create one with NewManager.
type Manager[T any] struct {
	fetch func(ctx context.Context, key string) (T, error)
	cache *gocache.Cache
	ttl   time.Duration

	mu       sync.Mutex
	inflight map[string]*call[T]
}

type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// NewManager creates a manager with a ttl-bounded cache. Errors are not
// cached; a failed fetch is retried on the next lookup.
func NewManager[T any](fetch func(ctx context.Context, key string) (T, error), ttl time.Duration) *Manager[T] {
	return &Manager[T]{
		fetch:    fetch,
		cache:    gocache.New(ttl, cleanupInterval),
		ttl:      ttl,
		inflight: make(map[string]*call[T]),
	}
}

// GetResult returns the cached value for key, joining an in-flight fetch or
// starting one if there is none. A caller whose ctx expires detaches without
// aborting the fetch for the other waiters.
func (m *Manager[T]) GetResult(ctx context.Context, key string) (T, error) {
	if v, ok := m.cache.Get(key); ok {
		//nolint:forcetypeassert
		return v.(T), nil
	}

	m.mu.Lock()
	c, ok := m.inflight[key]
	if !ok {
		c = &call[T]{done: make(chan struct{})}
		m.inflight[key] = c
		// The fetch runs on its own context so all waiters detaching does
		// not waste the work already done.
		go m.run(key, c)
	}
	m.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (m *Manager[T]) run(key string, c *call[T]) {
	c.val, c.err = m.fetch(context.Background(), key)
	if c.err == nil {
		m.cache.Set(key, c.val, m.ttl)
	}
	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
	close(c.done)
}
