package hashindex

import "voxfusion/pkg/voxtypes"

// Large odd primes used to scatter block coordinates across buckets,
// the same three-prime XOR scheme spatial.VoxelGrid's SpatialHash used
// to bucket VoxelIDs before folding into a fixed table size.
const (
	prime1 = 73856093
	prime2 = 19349669
	prime3 = 83492791
)

// IntentKind is the result of PrepareInsert: what the caller must stage
// before the next allocation-resolution sweep picks it up.
type IntentKind uint8

const (
	IntentFound        IntentKind = iota // coordinate already resident (live or evicted)
	IntentRoomInBucket                   // a free ordered slot exists in the bucket
	IntentNeedExcess                     // bucket and chain are full, needs an excess slot
)

// Intent is what PrepareInsert reports for a coordinate.
type Intent struct {
	Kind  IntentKind
	Index int32 // Found: the resident entry; RoomInBucket: the free slot; NeedExcess: the chain's tail
	Ptr   PtrState
}

// HashTable is the bucketed open-addressed index: nBuckets*ePerBucket
// ordered slots plus nExcess overflow slots, addressed contiguously with
// ordered slots first.
type HashTable struct {
	nBuckets   int32
	ePerBucket int32
	nExcess    int32

	entries []Entry

	allocType   []int32 // entriesAllocType, staged by the allocation builder
	visibleType []int32 // entriesVisibleType, combined via atomic max

	excessCursor int32 // monotonic counter into the excess region
}

// NewHashTable builds a table with nBuckets buckets of ePerBucket ordered
// slots each, plus nExcess excess slots.
func NewHashTable(nBuckets, ePerBucket, nExcess int32) *HashTable {
	total := nBuckets*ePerBucket + nExcess
	h := &HashTable{
		nBuckets:    nBuckets,
		ePerBucket:  ePerBucket,
		nExcess:     nExcess,
		entries:     make([]Entry, total),
		allocType:   make([]int32, total),
		visibleType: make([]int32, total),
	}
	for i := range h.entries {
		h.entries[i] = defaultEntry()
	}
	return h
}

// OrderedCount is the number of ordered (non-excess) slots.
func (h *HashTable) OrderedCount() int32 { return h.nBuckets * h.ePerBucket }

// NBuckets returns the bucket count the table was constructed with.
func (h *HashTable) NBuckets() int32 { return h.nBuckets }

// EPerBucket returns the ordered slots per bucket.
func (h *HashTable) EPerBucket() int32 { return h.ePerBucket }

// NExcess returns the excess-region capacity.
func (h *HashTable) NExcess() int32 { return h.nExcess }

// Len is the total slot count, ordered plus excess.
func (h *HashTable) Len() int32 { return int32(len(h.entries)) }

// Entry returns a copy of the slot at idx.
func (h *HashTable) Entry(idx int32) Entry { return h.entries[idx] }

// bucketBase folds a coordinate into the index of its bucket's first slot.
func (h *HashTable) bucketBase(pos voxtypes.BlockCoord) int32 {
	x := int64(pos.X) * prime1
	y := int64(pos.Y) * prime2
	z := int64(pos.Z) * prime3
	mixed := x ^ y ^ z
	bucket := mixed % int64(h.nBuckets)
	if bucket < 0 {
		bucket += int64(h.nBuckets)
	}
	return int32(bucket) * h.ePerBucket
}

// Find looks up a coordinate: within its bucket's ordered slots, then
// down the excess chain hanging off the bucket's last slot. Live, evicted
// and split entries match; a split entry is reported with its PtrSplit
// state so a hierarchical descent can move on to the next finer level.
func (h *HashTable) Find(pos voxtypes.BlockCoord) (idx int32, state PtrState, found bool) {
	base := h.bucketBase(pos)
	for i := int32(0); i < h.ePerBucket; i++ {
		e := h.entries[base+i]
		if (e.Ptr.Resident() || e.Ptr.Kind == PtrSplit) && e.Pos == pos {
			return base + i, e.Ptr, true
		}
	}
	return h.walkExcess(base, pos)
}

func (h *HashTable) walkExcess(lastOrdered int32, pos voxtypes.BlockCoord) (int32, PtrState, bool) {
	tail := lastOrdered + h.ePerBucket - 1
	cursor := h.entries[tail].Offset - 1
	for cursor >= 0 {
		idx := h.OrderedCount() + cursor
		e := h.entries[idx]
		if (e.Ptr.Resident() || e.Ptr.Kind == PtrSplit) && e.Pos == pos {
			return idx, e.Ptr, true
		}
		cursor = e.Offset - 1
	}
	return 0, PtrState{}, false
}

// PrepareInsert resolves what must happen for pos to become resident:
// already found, room in the bucket's ordered slots, or the chain needs
// an excess slot. It never mutates the table - staging is a separate
// step so callers can batch writes per pixel before the resolver sweeps.
func (h *HashTable) PrepareInsert(pos voxtypes.BlockCoord) Intent {
	base := h.bucketBase(pos)
	firstFree := int32(-1)

	for i := int32(0); i < h.ePerBucket; i++ {
		idx := base + i
		e := h.entries[idx]
		if e.Ptr.Resident() {
			if e.Pos == pos {
				return Intent{Kind: IntentFound, Index: idx, Ptr: e.Ptr}
			}
			continue
		}
		if e.Ptr.Kind == PtrFree && firstFree < 0 {
			firstFree = idx
		}
	}

	tail := base + h.ePerBucket - 1
	cursor := h.entries[tail].Offset - 1
	for cursor >= 0 {
		idx := h.OrderedCount() + cursor
		e := h.entries[idx]
		if e.Ptr.Resident() && e.Pos == pos {
			return Intent{Kind: IntentFound, Index: idx, Ptr: e.Ptr}
		}
		tail = idx
		cursor = e.Offset - 1
	}

	if firstFree >= 0 {
		return Intent{Kind: IntentRoomInBucket, Index: firstFree}
	}
	return Intent{Kind: IntentNeedExcess, Index: tail}
}

// StageAlloc marks idx for allocation on the next resolver sweep and
// records the coordinate it should bind to. Safe to call redundantly
// from multiple pixels landing on the same slot in the same frame: the
// write is idempotent once every writer agrees on pos.
func (h *HashTable) StageAlloc(idx int32, kind int32, pos voxtypes.BlockCoord) {
	h.entries[idx].Pos = pos
	storeAllocType(h, idx, kind)
}

// MarkVisible folds level into entriesVisibleType via atomic max, so a
// type-2 (evicted, needs swap-in) observation this frame always wins
// over a type-1 (already resident) observation of the same slot.
func (h *HashTable) MarkVisible(idx int32, level int32) {
	storeVisibleMax(h, idx, level)
}

// AllocType returns the currently staged allocation intent for idx.
func (h *HashTable) AllocType(idx int32) int32 {
	return loadAllocType(h, idx)
}

// VisibleType returns the resolved visibility level for idx.
func (h *HashTable) VisibleType(idx int32) int32 {
	return loadVisibleType(h, idx)
}

// PendingCoord returns the coordinate staged for idx by StageAlloc,
// ahead of the resolver sweep binding it into Entry.Pos permanently.
func (h *HashTable) PendingCoord(idx int32) voxtypes.BlockCoord {
	return h.entries[idx].Pos
}

// SetEntry overwrites a slot directly, bypassing PrepareInsert/Resolve.
// Used by persistence loading to restore a dumped table verbatim, and by
// tests that need to bind a live entry without running a resolver sweep.
func (h *HashTable) SetEntry(idx int32, e Entry) {
	h.entries[idx] = e
}

// ResetVisible clears all visibility markers, called once per frame
// before the allocation/visibility pass re-derives them.
func (h *HashTable) ResetVisible() {
	for i := range h.visibleType {
		h.visibleType[i] = 0
	}
}
