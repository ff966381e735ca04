// Package cache holds the response cache that sits in front of read endpoints.
//
// Entries are raw JSON bodies keyed by request URI. Writers remove stale
// entries with Invalidate, which deletes every key containing a substring.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is used when Set is called with a zero TTL.
const DefaultTTL = 300 * time.Second

// Cache is a key to JSON body store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes every key containing pattern and reports how many
	// were removed. The scan is not atomic with respect to concurrent Sets.
	Invalidate(ctx context.Context, pattern string) (int, error)
}
