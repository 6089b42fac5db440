// Package cache stores rendered page HTML. Rendering is a pure function of
// the markup, so entries never need invalidation, only expiry.
package cache

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-entry expiry.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key for ttl. A zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
