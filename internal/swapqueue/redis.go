package swapqueue

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	swapInKey  = "voxfusion:swapin"
	swapOutKey = "voxfusion:swapout"
)

// RedisQueue is a Redis list-backed Queue: PushSwapIn/PushSwapOut RPush
// entry IDs, DrainSwapIn LPops the whole backlog. Grounded on
// internal/ai/cache.go's RedisCache connection shape, wired to a real
// client rather than the teacher's commented-out fallback stub.
type RedisQueue struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisQueue connects to addr and verifies reachability with a ping.
func NewRedisQueue(ctx context.Context, addr, password string, db int) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisQueue{client: client, ctx: ctx}, nil
}

func (q *RedisQueue) PushSwapIn(ids []int32) error {
	return q.push(swapInKey, ids)
}

func (q *RedisQueue) PushSwapOut(ids []int32) error {
	return q.push(swapOutKey, ids)
}

func (q *RedisQueue) push(key string, ids []int32) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = strconv.Itoa(int(id))
	}
	return q.client.RPush(q.ctx, key, members...).Err()
}

// DrainSwapIn pops the entire current swap-in backlog.
func (q *RedisQueue) DrainSwapIn(ctx context.Context) ([]int32, error) {
	length, err := q.client.LLen(ctx, swapInKey).Result()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	raw, err := q.client.LPopCount(ctx, swapInKey, int(length)).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int32, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		ids = append(ids, int32(v))
	}
	return ids, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
