// Package cache stores index responses between runs.
//
// All backends implement [Cache]. The CLI picks one from configuration:
// [FileCache] on disk by default, [RedisCache] when a shared redis URL is
// configured, and [NullCache] with --no-cache. [Tiered] puts an in-memory
// [MemoryCache] in front of either so repeated lookups inside one resolution
// never leave the process.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}
