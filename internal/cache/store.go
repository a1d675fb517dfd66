package cache

import (
	"context"
	"time"
)

// Store is the explicit cache abstraction injected into services that need
// lookup caching. Expiry is always TTL-driven and owned by the caller; there
// is no ambient global cache anywhere in the engine.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
