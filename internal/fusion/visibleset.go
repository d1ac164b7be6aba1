package fusion

import "voxfusion/internal/hashindex"

// VisibleSet is the compact active-set rebuilt after D+E: entries whose
// block should be fused this frame, plus the entries whose block has
// been swapped out and needs the migration layer to bring it back.
type VisibleSet struct {
	VisibleEntryIDs []int32
	NeedsSwapIn     []int32
}

// BuildVisibleSet scans table's visibility markers and rebuilds the
// compact lists that drive the fusion pass, per spec 4.G. Resident
// (type 1) entries go to VisibleEntryIDs; evicted (type 2) entries go to
// NeedsSwapIn for the external migration layer.
func BuildVisibleSet(table *hashindex.HashTable) VisibleSet {
	var set VisibleSet
	n := table.Len()
	for idx := int32(0); idx < n; idx++ {
		switch table.VisibleType(idx) {
		case hashindex.VisibleResident:
			set.VisibleEntryIDs = append(set.VisibleEntryIDs, idx)
		case hashindex.VisibleEvicted:
			set.NeedsSwapIn = append(set.NeedsSwapIn, idx)
		}
	}
	return set
}
