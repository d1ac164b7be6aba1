package swapqueue

import (
	"context"
	"sync"
)

// MemoryQueue is a slice-backed Queue, the default used in tests and when
// no Redis address is configured.
type MemoryQueue struct {
	mu      sync.Mutex
	swapIn  []int32
	swapOut []int32
}

// NewMemoryQueue builds an empty in-memory swap queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) PushSwapIn(ids []int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.swapIn = append(q.swapIn, ids...)
	return nil
}

func (q *MemoryQueue) PushSwapOut(ids []int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.swapOut = append(q.swapOut, ids...)
	return nil
}

// DrainSwapIn returns and clears the current swap-in backlog.
func (q *MemoryQueue) DrainSwapIn(ctx context.Context) ([]int32, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.swapIn
	q.swapIn = nil
	return ids, nil
}

func (q *MemoryQueue) Close() error { return nil }
