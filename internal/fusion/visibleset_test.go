package fusion

import (
	"testing"

	"voxfusion/internal/hashindex"
)

func TestBuildVisibleSetSplitsResidentAndEvicted(t *testing.T) {
	table := hashindex.NewHashTable(4, 2, 4)
	table.MarkVisible(0, hashindex.VisibleResident)
	table.MarkVisible(1, hashindex.VisibleEvicted)
	table.MarkVisible(2, hashindex.VisibleResident)

	set := BuildVisibleSet(table)

	if len(set.VisibleEntryIDs) != 2 {
		t.Fatalf("expected 2 resident entries, got %d: %v", len(set.VisibleEntryIDs), set.VisibleEntryIDs)
	}
	if len(set.NeedsSwapIn) != 1 {
		t.Fatalf("expected 1 evicted entry, got %d: %v", len(set.NeedsSwapIn), set.NeedsSwapIn)
	}
	if set.NeedsSwapIn[0] != 1 {
		t.Fatalf("expected evicted entry index 1, got %d", set.NeedsSwapIn[0])
	}
}
