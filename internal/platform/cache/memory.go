package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCheckPeriod is how often expired entries are swept.
const DefaultCheckPeriod = 60 * time.Second

// MemoryCache is a process-local Cache backed by ttlcache.
type MemoryCache struct {
	items       *ttlcache.Cache[string, []byte]
	checkPeriod time.Duration
}

// NewMemory creates an in-process cache. Reads do not extend an entry's TTL.
func NewMemory(defaultTTL, checkPeriod time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if checkPeriod <= 0 {
		checkPeriod = DefaultCheckPeriod
	}
	return &MemoryCache{
		items: ttlcache.New(
			ttlcache.WithTTL[string, []byte](defaultTTL),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
		checkPeriod: checkPeriod,
	}
}

// Run sweeps expired entries every check period until ctx is done.
func (c *MemoryCache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.checkPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.items.DeleteExpired()
		}
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	c.items.Set(key, value, ttl)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, pattern string) (int, error) {
	removed := 0
	for _, key := range c.items.Keys() {
		if strings.Contains(key, pattern) {
			c.items.Delete(key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	return c.items.Len()
}

// DeleteExpired sweeps expired entries immediately.
func (c *MemoryCache) DeleteExpired() {
	c.items.DeleteExpired()
}
