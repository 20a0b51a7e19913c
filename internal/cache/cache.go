package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a best-effort byte cache. A miss and a backend failure look the
// same to readers; writers may ignore errors.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte) error
}

var (
	_ Store = (*Cache)(nil)
	_ Store = (*RedisCache)(nil)
)

// DefaultMaxEntries bounds the in-process cache; suggestion keys come from
// free-text queries.
const DefaultMaxEntries = 1024

// Cache is the single-replica Store: a TTL map with a size cap.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	m          map[string]entry
	now        func() time.Time
}

type entry struct {
	val []byte
	exp time.Time
}

func New(ttl time.Duration) *Cache {
	return NewSized(ttl, DefaultMaxEntries)
}

func NewSized(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		m:          make(map[string]entry),
		now:        time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}

	return append([]byte(nil), e.val...), true
}

func (c *Cache) Set(_ context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.m[key]; !exists && len(c.m) >= c.maxEntries {
		c.evict(now)
	}

	c.m[key] = entry{val: append([]byte(nil), val...), exp: now.Add(c.ttl)}
	return nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// evict drops expired entries, or the one closest to expiry when none
// have expired. Callers hold mu.
func (c *Cache) evict(now time.Time) {
	var (
		oldestKey string
		oldestExp time.Time
	)

	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
			continue
		}
		if oldestKey == "" || e.exp.Before(oldestExp) {
			oldestKey, oldestExp = k, e.exp
		}
	}

	if len(c.m) >= c.maxEntries && oldestKey != "" {
		delete(c.m, oldestKey)
	}
}
