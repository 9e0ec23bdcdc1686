// Package cache provides artifact caching for the composition pipeline.
//
// Composition jobs are pure functions of their inputs, so rendered
// artifacts are cached under content-derived keys: the same planes with
// the same policies and assignments always produce the same composite and
// stack. Backends:
//   - FileCache: directory-based cache for CLI usage
//   - RedisCache: shared cache for multi-instance HTTP deployments
//   - NullCache: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface shared by all backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL stores without expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLs per artifact class. Plane decodes are cheap to redo, so they are
// never cached; rendered artifacts keep for a day.
const (
	TTLComposite = 24 * time.Hour
	TTLStack     = 24 * time.Hour
)
