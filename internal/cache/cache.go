package cache

import (
	"context"
	"time"
)

// Cache memoizes embedding and search results. Implementations must be safe
// for concurrent use. The decision pipeline treats a nil Cache (or a miss on
// every Get) as a valid configuration.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
