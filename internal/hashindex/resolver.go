package hashindex

// ResolveStats summarizes one allocation-resolution sweep, grounded on
// the counters spatial.VoxelPool's allocator kept for its own
// alloc/exhaustion bookkeeping.
type ResolveStats struct {
	Allocated      int32
	AllocFailures  int32 // block pool exhausted
	ExcessFailures int32 // excess region exhausted
}

// Resolve sweeps every slot's staged entriesAllocType and binds a block
// from alloc to each one requesting allocation, in index order. A slot
// staged AllocSlot becomes live in place. A slot staged AllocExcess gets
// a freshly acquired excess slot chained off it via Offset, and the new
// excess slot becomes live.
//
// On exhaustion (block pool or excess region) the slot is left exactly
// as it was before the sweep - still free - so the same pixel's next
// frame will re-derive the same intent and retry. entriesAllocType is
// cleared to AllocNone unconditionally at the end of each slot's
// processing; a retry is driven by re-deriving ROOM_IN_BUCKET from
// scratch, not by anything the resolver leaves behind.
func (h *HashTable) Resolve(alloc BlockAllocator) ResolveStats {
	var stats ResolveStats
	total := int32(len(h.entries))

	for idx := int32(0); idx < total; idx++ {
		kind := loadAllocType(h, idx)
		if kind == AllocNone {
			continue
		}

		switch kind {
		case AllocSlot:
			h.resolveSlot(idx, alloc, &stats)
		case AllocExcess:
			h.resolveExcess(idx, alloc, &stats)
		}

		clearAllocType(h, idx)
	}

	return stats
}

func (h *HashTable) resolveSlot(idx int32, alloc BlockAllocator, stats *ResolveStats) {
	blockIdx, ok := alloc.Allocate()
	if !ok {
		stats.AllocFailures++
		return
	}
	alloc.Zero(blockIdx)
	h.entries[idx] = Entry{
		Pos:    h.entries[idx].Pos,
		Offset: h.entries[idx].Offset,
		Ptr:    PtrState{Kind: PtrLive, Index: blockIdx},
	}
	stats.Allocated++
}

func (h *HashTable) resolveExcess(tail int32, alloc BlockAllocator, stats *ResolveStats) {
	blockIdx, ok := alloc.Allocate()
	if !ok {
		stats.AllocFailures++
		return
	}

	excessSlot, ok := acquireExcessSlot(h)
	if !ok {
		alloc.Free(blockIdx)
		stats.ExcessFailures++
		return
	}

	alloc.Zero(blockIdx)
	excessIdx := h.OrderedCount() + excessSlot
	h.entries[excessIdx] = Entry{
		Pos:    h.entries[tail].Pos,
		Offset: 0,
		Ptr:    PtrState{Kind: PtrLive, Index: blockIdx},
	}
	h.entries[tail].Offset = excessSlot + 1
	stats.Allocated++
}
