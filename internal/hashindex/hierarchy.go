package hashindex

import "voxfusion/pkg/voxtypes"

// Hierarchy is the multi-resolution variant: L independent HashTables,
// one per level, level 0 finest. Level l covers blocks of edge 2^l
// times level 0's block size; queries and inserts at level l expect
// coordinates already scaled into that level's space (see the fusion
// package's levelCoord). A coarser entry with Ptr.Kind == PtrSplit
// defers to level l-1 instead of holding a block itself.
type Hierarchy struct {
	levels []*HashTable
}

// NewHierarchy builds a Hierarchy from finest-first level tables
// (levels[0] is level 0, the finest), typically sized identically and
// differing only in the block size the caller associates with each
// level index.
func NewHierarchy(levels ...*HashTable) *Hierarchy {
	return &Hierarchy{levels: levels}
}

// NumLevels returns the level count; level 0 is finest.
func (hi *Hierarchy) NumLevels() int { return len(hi.levels) }

// Level returns the table for a given level index.
func (hi *Hierarchy) Level(l int) *HashTable { return hi.levels[l] }

// PrepareInsert resolves the insertion intent at a specific level,
// against coordinates already scaled into that level's space. Callers
// descend coarsest-first (highest level index to 0) and call this at
// the first level where the query isn't deferred by a PtrSplit entry.
func (hi *Hierarchy) PrepareInsert(level int, pos voxtypes.BlockCoord) Intent {
	return hi.levels[level].PrepareInsert(pos)
}

// MarkSplit binds idx at level directly as a PtrSplit entry for pos. No
// block is allocated and no resolver sweep is involved.
func (hi *Hierarchy) MarkSplit(level int, idx int32, pos voxtypes.BlockCoord) {
	hi.levels[level].entries[idx].Pos = pos
	hi.levels[level].entries[idx].Ptr = PtrState{Kind: PtrSplit}
}
