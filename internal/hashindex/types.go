// Package hashindex implements the bucketed spatial hash table that maps
// integer block coordinates to block-pool indices, with an overflow
// ("excess") chain for collisions. Grounded on spatial.VoxelGrid's
// SpatialHash/VoxelID bucketing and spatial.StreamingGrid's VoxelKey
// map-based index, generalized here to the spec's explicit
// ordered-slots-plus-excess-chain layout (a map alone cannot express
// bounded excess-chain length or the allocation-intent staging below).
package hashindex

import "voxfusion/pkg/voxtypes"

// PtrKind is the tag of a hash entry's ptr sentinel.
type PtrKind uint8

const (
	PtrFree    PtrKind = iota // slot is free (raw <= -3)
	PtrSplit                  // entry delegates to a finer level (raw == -2)
	PtrEvicted                // block swapped to host storage (raw == -1)
	PtrLive                   // live, Index is the block-pool index (raw >= 0)
)

// PtrState is the decoded form of a hash entry's ptr field. The raw
// sentinel encoding is only used at the disk boundary (see
// internal/persist); everywhere else code matches on Kind.
type PtrState struct {
	Kind  PtrKind
	Index int32 // meaningful only when Kind == PtrLive
}

// DecodePtr restores a PtrState from its on-disk/wire sentinel encoding.
func DecodePtr(raw int32) PtrState {
	switch {
	case raw >= 0:
		return PtrState{Kind: PtrLive, Index: raw}
	case raw == -1:
		return PtrState{Kind: PtrEvicted}
	case raw == -2:
		return PtrState{Kind: PtrSplit}
	default:
		return PtrState{Kind: PtrFree}
	}
}

// Encode converts a PtrState back to its sentinel int32 form.
func (p PtrState) Encode() int32 {
	switch p.Kind {
	case PtrLive:
		return p.Index
	case PtrEvicted:
		return -1
	case PtrSplit:
		return -2
	default:
		return -3
	}
}

// Resident reports whether an entry is live or evicted. Pos is
// don't-care for free entries; split entries keep their Pos so that
// Find can report them to a hierarchical descent.
func (p PtrState) Resident() bool {
	return p.Kind == PtrLive || p.Kind == PtrEvicted
}

// Entry is one hash-table slot: the spec's {pos, offset, ptr}.
type Entry struct {
	Pos    voxtypes.BlockCoord
	Offset int32 // k+1 link to the next entry in the chain; 0 = terminal
	Ptr    PtrState
}

// defaultEntry is the at-rest state of a slot: free, offset 0, pos don't-care.
func defaultEntry() Entry {
	return Entry{Ptr: PtrState{Kind: PtrFree}}
}

// Visibility levels for entriesVisibleType, combined via atomic max so a
// type-2 (evicted) write always dominates a same-frame type-1 write.
const (
	VisibleNone     int32 = 0
	VisibleResident int32 = 1
	VisibleEvicted  int32 = 2
)

// Allocation intents for entriesAllocType.
const (
	AllocNone   int32 = 0
	AllocSlot   int32 = 1 // allocate in this ordered slot
	AllocExcess int32 = 2 // allocate a new excess slot chained from here
)

// BlockAllocator is the narrow interface the resolver needs from
// voxblock.Allocator - accepted here as an interface (not imported
// directly) so hashindex has no dependency on the block pool's package.
type BlockAllocator interface {
	Allocate() (int32, bool)
	Free(blockIndex int32)
	Zero(blockIndex int32)
}
