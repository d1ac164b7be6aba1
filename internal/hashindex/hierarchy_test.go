package hashindex

import (
	"testing"

	"voxfusion/pkg/voxtypes"
)

// S6: a coarse-level entry marked split defers to the finer level,
// where the actual block lives. Level 0 is finest.
func TestHierarchySplitDefersToFinerLevel(t *testing.T) {
	fine := NewHashTable(8, 2, 4)
	coarse := NewHashTable(8, 2, 4)
	hi := NewHierarchy(fine, coarse)
	alloc := newFakeAllocator(16)

	pos := voxtypes.BlockCoord{X: 4, Y: 4, Z: 4}

	coarseIntent := hi.PrepareInsert(1, pos)
	if coarseIntent.Kind == IntentFound {
		t.Fatal("coarse level should not already hold this coordinate")
	}
	hi.MarkSplit(1, coarseIntent.Index, pos)

	_, coarseState, found := coarse.Find(pos)
	if !found || coarseState.Kind != PtrSplit {
		t.Fatalf("expected coarse level to hold a split entry, got found=%v state=%+v", found, coarseState)
	}

	fineIntent := hi.PrepareInsert(0, pos)
	fine.StageAlloc(fineIntent.Index, AllocSlot, pos)
	if stats := fine.Resolve(alloc); stats.AllocFailures > 0 {
		t.Fatalf("fine-level allocation failed: %+v", stats)
	}

	idx, state, found := fine.Find(pos)
	if !found {
		t.Fatal("expected the fine level to hold the resolved block")
	}
	if state.Kind != PtrLive {
		t.Fatalf("expected live state at fine level, got %+v", state)
	}
	if fine.Entry(idx).Pos != pos {
		t.Fatalf("expected fine-level entry position %+v, got %+v", pos, fine.Entry(idx).Pos)
	}
}

func TestHierarchyNotFound(t *testing.T) {
	fine := NewHashTable(8, 2, 4)
	coarse := NewHashTable(8, 2, 4)
	hi := NewHierarchy(fine, coarse)

	for l := 0; l < hi.NumLevels(); l++ {
		if _, _, found := hi.Level(l).Find(voxtypes.BlockCoord{X: 99, Y: 99, Z: 99}); found {
			t.Fatalf("expected no entry for an unallocated coordinate at level %d", l)
		}
	}
}
