package cache

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many Set calls pass between sweeps of expired entries.
const sweepEvery = 256

type cacheItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Compile-time interface check.
var _ Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache is an in-process Cache for single-instance deployments.
// Expired entries are hidden on Get and removed by a periodic sweep on Set.
type MemoryCache[T any] struct {
	mu     sync.RWMutex
	items  map[string]cacheItem[T]
	writes int
	now    func() time.Time
}

// NewMemoryCache creates a new memory cache instance.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheItem[T]),
		now:   time.Now,
	}
}

func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[key]
	if !exists || !m.now().Before(item.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}

	return item.value, nil
}

func (m *MemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.items[key] = cacheItem[T]{
		value:     value,
		expiresAt: now.Add(ttl),
	}

	m.writes++
	if m.writes%sweepEvery == 0 {
		for k, item := range m.items {
			if !now.Before(item.expiresAt) {
				delete(m.items, k)
			}
		}
	}

	return nil
}

func (m *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Close drops all entries.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]cacheItem[T])
	return nil
}

// Health always succeeds for the memory cache.
func (m *MemoryCache[T]) Health(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryCache[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
