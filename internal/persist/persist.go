// Package persist implements the on-disk layout for a scene.Scene: a
// fixed header followed by dense dumps of each level's hash table, the
// allocator's free list, and the voxel block pool. Grounded on the
// container package's RIFF header read/write style (fixed-field struct
// via encoding/binary, host byte order, error on truncation).
package persist

import (
	"encoding/binary"
	"fmt"
	"io"

	"voxfusion/internal/executor"
	"voxfusion/internal/fusion"
	"voxfusion/internal/hashindex"
	"voxfusion/internal/scene"
	"voxfusion/internal/voxblock"
	"voxfusion/pkg/voxtypes"
)

var order = binary.NativeEndian

// header mirrors spec.md §6's persisted layout exactly: field order and
// widths are part of the wire format, not an implementation detail.
type header struct {
	NBlocks  uint32
	NBuckets uint32
	NExcess  uint32
	B        uint8
	Levels   uint8
	MuBand   float32
	MaxW     uint8
}

// Save writes s's full state to w: header, per-level hash tables, the
// allocation free list and lastFreeBlockId, then the voxel block pool.
// visibleEntryIDs is intentionally not persisted - Load rebuilds it.
func Save(w io.Writer, s *scene.Scene) error {
	tables := s.LevelTables()

	h := header{
		NBlocks:  uint32(s.Allocator.NBlocks()),
		NBuckets: uint32(s.Table.NBuckets()),
		NExcess:  uint32(s.Table.NExcess()),
		B:        uint8(params(s).BlockDim),
		Levels:   uint8(len(tables)),
		MuBand:   float32(params(s).Mu),
		MaxW:     params(s).MaxW,
	}
	if err := binary.Write(w, order, h); err != nil {
		return fmt.Errorf("persist: write header: %w", err)
	}

	for _, t := range tables {
		if err := writeTable(w, t); err != nil {
			return err
		}
	}
	return writeAllocator(w, s.Allocator)
}

func params(s *scene.Scene) fusion.Params { return s.Params() }

func writeTable(w io.Writer, t *hashindex.HashTable) error {
	n := t.Len()
	for i := int32(0); i < n; i++ {
		e := t.Entry(i)
		if err := writeFields(w, e.Pos.X, e.Pos.Y, e.Pos.Z, e.Offset, e.Ptr.Encode()); err != nil {
			return fmt.Errorf("persist: write entry %d: %w", i, err)
		}
	}
	return nil
}

func writeAllocator(w io.Writer, a *voxblock.Allocator) error {
	list := a.FreeListSnapshot()
	if err := binary.Write(w, order, list); err != nil {
		return fmt.Errorf("persist: write free list: %w", err)
	}
	if err := binary.Write(w, order, a.LastFreeBlockID()); err != nil {
		return fmt.Errorf("persist: write lastFreeBlockId: %w", err)
	}

	nBlocks := int(a.NBlocks())
	for b := 0; b < nBlocks; b++ {
		for _, v := range a.Block(int32(b)) {
			if err := writeFields(w, v.SDF, v.WDepth, v.Color[0], v.Color[1], v.Color[2], v.WColor); err != nil {
				return fmt.Errorf("persist: write voxel: %w", err)
			}
		}
	}
	return nil
}

func writeFields(w io.Writer, fields ...interface{}) error {
	for _, f := range fields {
		if err := binary.Write(w, order, f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a scene previously written by Save, sizing a fresh
// scene.Scene from the header and refilling it from the dense dumps.
// visibleEntryIDs is transient and rebuilt by the next Frame() call, per
// spec.md §6. The persisted header (spec.md §6) has no E_per_bucket
// field - it is a deployment-wide constant, not round-tripped - so the
// caller must supply the same value used when the scene was saved.
// VoxelSize, ZMin and ZMax are not in the header either: the loaded
// scene's fusion parameters carry them as zero.
func Load(r io.Reader, exec executor.Executor, ePerBucket int32) (*scene.Scene, error) {
	var h header
	if err := binary.Read(r, order, &h); err != nil {
		return nil, fmt.Errorf("persist: read header: %w", err)
	}

	cfg := scene.Config{
		NBlocks:    int(h.NBlocks),
		BlockDim:   int(h.B),
		NBuckets:   int32(h.NBuckets),
		EPerBucket: ePerBucket,
		NExcess:    int32(h.NExcess),
		Levels:     int(h.Levels),
		Fusion: fusion.Params{
			Mu:       float64(h.MuBand),
			BlockDim: int(h.B),
			MaxW:     h.MaxW,
		},
	}

	s, err := scene.New(cfg, exec)
	if err != nil {
		return nil, fmt.Errorf("persist: rebuild scene: %w", err)
	}

	tables := s.LevelTables()
	for _, t := range tables {
		if err := readTable(r, t); err != nil {
			return nil, err
		}
	}
	if err := readAllocator(r, s.Allocator); err != nil {
		return nil, err
	}
	return s, nil
}

func readTable(r io.Reader, t *hashindex.HashTable) error {
	n := t.Len()
	for i := int32(0); i < n; i++ {
		var x, y, z int16
		var offset, rawPtr int32
		if err := readFields(r, &x, &y, &z, &offset, &rawPtr); err != nil {
			return fmt.Errorf("persist: read entry %d: %w", i, err)
		}
		t.SetEntry(i, hashindex.Entry{
			Pos:    voxtypes.BlockCoord{X: x, Y: y, Z: z},
			Offset: offset,
			Ptr:    hashindex.DecodePtr(rawPtr),
		})
	}
	return nil
}

func readAllocator(r io.Reader, a *voxblock.Allocator) error {
	list := make([]int32, a.NBlocks())
	if err := binary.Read(r, order, list); err != nil {
		return fmt.Errorf("persist: read free list: %w", err)
	}
	var top int32
	if err := binary.Read(r, order, &top); err != nil {
		return fmt.Errorf("persist: read lastFreeBlockId: %w", err)
	}
	a.RestoreFreeList(list, top)

	nBlocks := int(a.NBlocks())
	for b := 0; b < nBlocks; b++ {
		block := a.Block(int32(b))
		for i := range block {
			var sdf int16
			var wDepth, r8, g8, b8, wColor uint8
			if err := readFields(r, &sdf, &wDepth, &r8, &g8, &b8, &wColor); err != nil {
				return fmt.Errorf("persist: read voxel: %w", err)
			}
			block[i] = voxblock.Voxel{SDF: sdf, WDepth: wDepth, Color: [3]uint8{r8, g8, b8}, WColor: wColor}
		}
	}
	return nil
}

func readFields(r io.Reader, fields ...interface{}) error {
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return err
		}
	}
	return nil
}
