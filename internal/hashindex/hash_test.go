package hashindex

import (
	"testing"

	"voxfusion/pkg/voxtypes"
)

type fakeAllocator struct {
	free   []int32
	top    int32
	zeroed map[int32]bool
}

func newFakeAllocator(n int32) *fakeAllocator {
	a := &fakeAllocator{free: make([]int32, n), top: n - 1, zeroed: map[int32]bool{}}
	for i := int32(0); i < n; i++ {
		a.free[i] = i
	}
	return a
}

func (a *fakeAllocator) Allocate() (int32, bool) {
	if a.top < 0 {
		return -1, false
	}
	idx := a.free[a.top]
	a.top--
	return idx, true
}

func (a *fakeAllocator) Free(blockIndex int32) {
	a.top++
	a.free[a.top] = blockIndex
}

func (a *fakeAllocator) Zero(blockIndex int32) {
	a.zeroed[blockIndex] = true
}

func insertAndResolve(t *testing.T, h *HashTable, alloc BlockAllocator, pos voxtypes.BlockCoord) (int32, bool) {
	t.Helper()
	intent := h.PrepareInsert(pos)
	switch intent.Kind {
	case IntentFound:
		return intent.Index, true
	case IntentRoomInBucket:
		h.StageAlloc(intent.Index, AllocSlot, pos)
	case IntentNeedExcess:
		h.StageAlloc(intent.Index, AllocExcess, pos)
	}
	stats := h.Resolve(alloc)
	if stats.AllocFailures > 0 || stats.ExcessFailures > 0 {
		return 0, false
	}
	idx, _, found := h.Find(pos)
	return idx, found
}

// Property test 2: insert-then-find round trip. Any coordinate staged
// and successfully resolved must be findable afterwards at the same
// position, with a live pointer.
func TestInsertFindRoundTrip(t *testing.T) {
	h := NewHashTable(16, 4, 8)
	alloc := newFakeAllocator(64)

	coords := []voxtypes.BlockCoord{
		{X: 1, Y: 2, Z: 3},
		{X: -5, Y: 10, Z: -2},
		{X: 0, Y: 0, Z: 0},
		{X: 100, Y: -100, Z: 50},
	}

	for _, c := range coords {
		idx, ok := insertAndResolve(t, h, alloc, c)
		if !ok {
			t.Fatalf("insert of %v failed", c)
		}
		_, state, found := h.Find(c)
		if !found {
			t.Fatalf("coordinate %v not found after insert", c)
		}
		if state.Kind != PtrLive {
			t.Fatalf("expected live entry for %v, got state %+v", c, state)
		}
		if h.Entry(idx).Pos != c {
			t.Fatalf("entry pos mismatch: want %v got %v", c, h.Entry(idx).Pos)
		}
	}
}

// S3: three coordinates that collide into the same bucket (E_per_bucket=1)
// all become resident via the excess chain.
func TestExcessChaining(t *testing.T) {
	h := NewHashTable(1, 1, 8) // single bucket forces every insert to collide
	alloc := newFakeAllocator(8)

	coords := []voxtypes.BlockCoord{
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 3, Y: 0, Z: 0},
	}

	for _, c := range coords {
		if _, ok := insertAndResolve(t, h, alloc, c); !ok {
			t.Fatalf("insert of %v should have succeeded via excess chain", c)
		}
	}

	for _, c := range coords {
		_, state, found := h.Find(c)
		if !found || state.Kind != PtrLive {
			t.Fatalf("expected %v resident after chaining, found=%v state=%+v", c, found, state)
		}
	}
}

func TestExcessExhaustion(t *testing.T) {
	h := NewHashTable(1, 1, 1) // room for exactly one excess entry
	alloc := newFakeAllocator(8)

	coords := []voxtypes.BlockCoord{
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 3, Y: 0, Z: 0}, // this one has nowhere to go
	}

	for i, c := range coords[:2] {
		if _, ok := insertAndResolve(t, h, alloc, c); !ok {
			t.Fatalf("insert %d of %v should have succeeded", i, c)
		}
	}

	intent := h.PrepareInsert(coords[2])
	if intent.Kind != IntentNeedExcess {
		t.Fatalf("expected NeedExcess intent, got %v", intent.Kind)
	}
	h.StageAlloc(intent.Index, AllocExcess, coords[2])
	stats := h.Resolve(alloc)
	if stats.ExcessFailures != 1 {
		t.Fatalf("expected one excess failure, got %d", stats.ExcessFailures)
	}

	if _, _, found := h.Find(coords[2]); found {
		t.Fatal("coordinate should not be resident after excess exhaustion")
	}
}

func TestAllocatorExhaustionLeavesSlotFree(t *testing.T) {
	h := NewHashTable(4, 2, 4)
	alloc := newFakeAllocator(0) // no blocks available at all

	pos := voxtypes.BlockCoord{X: 7, Y: 7, Z: 7}
	intent := h.PrepareInsert(pos)
	if intent.Kind != IntentRoomInBucket {
		t.Fatalf("expected room in bucket, got %v", intent.Kind)
	}
	h.StageAlloc(intent.Index, AllocSlot, pos)
	stats := h.Resolve(alloc)
	if stats.AllocFailures != 1 {
		t.Fatalf("expected allocation failure, got %+v", stats)
	}

	if _, _, found := h.Find(pos); found {
		t.Fatal("slot should remain free after allocator exhaustion")
	}
	// Retrying next frame must reproduce the same intent.
	again := h.PrepareInsert(pos)
	if again.Kind != IntentRoomInBucket || again.Index != intent.Index {
		t.Fatalf("expected identical retry intent, got %+v", again)
	}
}

func TestMarkVisibleAtomicMaxWins(t *testing.T) {
	h := NewHashTable(4, 2, 4)
	h.MarkVisible(0, VisibleResident)
	h.MarkVisible(0, VisibleEvicted)
	h.MarkVisible(0, VisibleResident) // must not downgrade

	if got := h.VisibleType(0); got != VisibleEvicted {
		t.Fatalf("expected visibility to stay at evicted level, got %d", got)
	}
}

func TestPtrStateSentinelRoundTrip(t *testing.T) {
	cases := []PtrState{
		{Kind: PtrFree},
		{Kind: PtrSplit},
		{Kind: PtrEvicted},
		{Kind: PtrLive, Index: 42},
	}
	for _, c := range cases {
		raw := c.Encode()
		back := DecodePtr(raw)
		if back != c {
			t.Errorf("round trip of %+v via raw=%d produced %+v", c, raw, back)
		}
	}
}
