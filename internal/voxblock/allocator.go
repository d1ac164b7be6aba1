package voxblock

import "sync/atomic"

// Allocator is a fixed-capacity slab of voxel blocks with an explicit
// free-list stack. Allocate/Free are O(1) and the allocator is oblivious
// to whatever hash index addresses the blocks it hands out - it only
// ever deals in pool indices, the way spatial.VoxelPool dealt in pooled
// pointers without caring who held them.
type Allocator struct {
	voxels          []Voxel
	blockVoxelCount int32
	nBlocks         int32

	freeList []int32 // stack of free block indices
	top      int32   // index of the top of the stack; -1 when empty

	allocations int64
	frees       int64
}

// NewAllocator builds an allocator for nBlocks blocks of blockDim^3 voxels
// each. Block storage starts at the default (uninitialized) voxel value
// and the free list is filled 0..nBlocks-1, top = nBlocks-1.
func NewAllocator(nBlocks, blockDim int) *Allocator {
	bvc := int32(blockDim * blockDim * blockDim)
	a := &Allocator{
		voxels:          make([]Voxel, int(nBlocks)*int(bvc)),
		blockVoxelCount: bvc,
		nBlocks:         int32(nBlocks),
		freeList:        make([]int32, nBlocks),
		top:             int32(nBlocks) - 1,
	}
	for i := range a.voxels {
		a.voxels[i] = DefaultVoxel()
	}
	for i := int32(0); i < a.nBlocks; i++ {
		a.freeList[i] = i
	}
	return a
}

// NBlocks returns the allocator's total block capacity.
func (a *Allocator) NBlocks() int32 { return a.nBlocks }

// BlockVoxelCount returns B^3, the number of voxels per block.
func (a *Allocator) BlockVoxelCount() int32 { return a.blockVoxelCount }

// Allocate pops a free block index off the stack. Returns (-1, false) on
// exhaustion; the caller is expected to count this as capacity-exhaustion
// and drop the allocation for the frame.
func (a *Allocator) Allocate() (int32, bool) {
	for {
		top := atomic.LoadInt32(&a.top)
		if top < 0 {
			return -1, false
		}
		if atomic.CompareAndSwapInt32(&a.top, top, top-1) {
			idx := a.freeList[top]
			atomic.AddInt64(&a.allocations, 1)
			return idx, true
		}
	}
}

// Free pushes a block index back onto the stack, making it available for
// reuse. Not called concurrently with Allocate in the core's pass model -
// block eviction is the external migration layer's concern.
func (a *Allocator) Free(blockIndex int32) {
	for {
		top := atomic.LoadInt32(&a.top)
		newTop := top + 1
		if newTop >= a.nBlocks {
			return
		}
		a.freeList[newTop] = blockIndex
		if atomic.CompareAndSwapInt32(&a.top, top, newTop) {
			atomic.AddInt64(&a.frees, 1)
			return
		}
	}
}

// Zero resets a block's voxels to the default (uninitialized) value.
// Called by the allocation resolver immediately after binding a freshly
// popped block to a hash entry.
func (a *Allocator) Zero(blockIndex int32) {
	start := blockIndex * a.blockVoxelCount
	voxels := a.voxels[start : start+a.blockVoxelCount]
	for i := range voxels {
		voxels[i] = DefaultVoxel()
	}
}

// Block returns the voxel slice for the given block index.
func (a *Allocator) Block(blockIndex int32) []Voxel {
	start := blockIndex * a.blockVoxelCount
	return a.voxels[start : start+a.blockVoxelCount]
}

// LastFreeBlockID returns the current top-of-stack index (the spec's
// lastFreeBlockId). -1 means the free list is empty.
func (a *Allocator) LastFreeBlockID() int32 {
	return atomic.LoadInt32(&a.top)
}

// FreeListSnapshot returns a copy of the full free-list array, used by
// persistence to dump allocationList verbatim.
func (a *Allocator) FreeListSnapshot() []int32 {
	out := make([]int32, len(a.freeList))
	copy(out, a.freeList)
	return out
}

// RestoreFreeList overwrites the free list and top-of-stack, used by
// persistence to restore a dumped allocator exactly.
func (a *Allocator) RestoreFreeList(list []int32, top int32) {
	copy(a.freeList, list)
	atomic.StoreInt32(&a.top, top)
}

// Stats reports allocator usage counters.
type Stats struct {
	Allocations int64
	Frees       int64
	FreeCount   int32
	Capacity    int32
}

// GetStats returns a snapshot of allocator usage.
func (a *Allocator) GetStats() Stats {
	return Stats{
		Allocations: atomic.LoadInt64(&a.allocations),
		Frees:       atomic.LoadInt64(&a.frees),
		FreeCount:   atomic.LoadInt32(&a.top) + 1,
		Capacity:    a.nBlocks,
	}
}
