package executor

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// PoolExecutor runs iterations across a fixed pool of worker goroutines.
// Workers pull indices off a shared counter, so load balances naturally
// even when per-iteration cost varies (a slow voxel block doesn't stall
// workers that finished their share).
type PoolExecutor struct {
	Workers int
}

// NewPoolExecutor builds a pool sized to the host's CPU count if workers
// is 0 or negative.
func NewPoolExecutor(workers int) *PoolExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PoolExecutor{Workers: workers}
}

func (p *PoolExecutor) Run(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := cursor.Add(1) - 1
				if i >= int64(n) {
					return
				}
				fn(int(i))
			}
		}()
	}
	wg.Wait()
}
