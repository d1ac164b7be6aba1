// Package swapqueue hands visible-but-evicted block IDs to the external
// host/device migration layer. Grounded on internal/ai/cache.go's
// CacheStore/MemoryCache/RedisCache split, generalized from a
// get/set/delete cache to a push/drain queue of block IDs.
package swapqueue

import "context"

// Queue is the narrow interface component G pushes swap-in requests
// through, and the out-of-scope migration layer drains from.
type Queue interface {
	PushSwapIn(ids []int32) error
	PushSwapOut(ids []int32) error
	DrainSwapIn(ctx context.Context) ([]int32, error)
	Close() error
}
