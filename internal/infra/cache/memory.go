package cache

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewInMemory creates a new in-memory cache with the given default TTL.
func NewInMemory[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	// Background cleanup goroutine
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value that expires after ttl. A non-positive ttl falls
// back to the configured TTL.
func (c *InMemory[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len returns the number of stored entries, expired ones included until the
// next cleanup.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.done) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.items {
				if now.After(v.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// ============================================================
// Memory backend
// ============================================================

// DefaultMaxTags bounds the tag versions a MemoryBackend tracks.
const DefaultMaxTags = 100_000

// MemoryBackend keeps cached records and tag versions in process. It serves
// single-instance deployments and tests.
//
// Versions come from one backend-wide clock, so a bumped tag always moves
// past every version any record was stored with. When the table reaches its
// limit it is cleared and the floor every untracked tag reports is raised
// past the clock. That drops all cached records but never revives one.
type MemoryBackend struct {
	records *InMemory[[]byte]

	mu       sync.Mutex
	versions map[string]int64
	clock    int64
	floor    int64
	maxTags  int
}

// NewMemoryBackend creates a memory backend whose records expire after ttl.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return NewMemoryBackendWithLimit(ttl, DefaultMaxTags)
}

// NewMemoryBackendWithLimit creates a memory backend tracking at most maxTags
// tag versions. A non-positive maxTags means DefaultMaxTags.
func NewMemoryBackendWithLimit(ttl time.Duration, maxTags int) *MemoryBackend {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	return &MemoryBackend{
		records:  NewInMemory[[]byte](ttl),
		versions: make(map[string]int64),
		maxTags:  maxTags,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.records.Get(key)
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.records.SetWithTTL(key, value, ttl)
	return nil
}

func (m *MemoryBackend) TagVersions(_ context.Context, tags []string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int64, len(tags))
	for i, tag := range tags {
		v, ok := m.versions[tag]
		if !ok {
			v = m.floor
		}
		out[i] = v
	}
	return out, nil
}

func (m *MemoryBackend) BumpTags(_ context.Context, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range tags {
		if _, ok := m.versions[tag]; !ok && len(m.versions) >= m.maxTags {
			m.clock++
			m.floor = m.clock
			m.versions = make(map[string]int64)
		}
		m.clock++
		m.versions[tag] = m.clock
	}
	return nil
}

// TagCount returns the number of tag versions currently tracked.
func (m *MemoryBackend) TagCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.versions)
}

func (m *MemoryBackend) Close() error {
	m.records.Close()
	return nil
}
