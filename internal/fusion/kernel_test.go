package fusion

import (
	"testing"

	"voxfusion/internal/executor"
	"voxfusion/internal/hashindex"
	"voxfusion/internal/voxblock"
	"voxfusion/pkg/voxtypes"
)

func baseParams() Params {
	return Params{Mu: 0.1, VoxelSize: 1, BlockDim: 1, MaxW: 100, ZMin: 0, ZMax: 100}
}

func identityFrame(w, h int, depth float64, hasColor bool) Frame {
	depthBuf := make([]float64, w*h)
	for i := range depthBuf {
		depthBuf[i] = depth
	}
	f := Frame{
		Depth:     DepthImage{W: w, H: h, Depth: depthBuf},
		PoseDepth: voxtypes.Identity(),
		PoseColor: voxtypes.Identity(),
		ProjDepth: voxtypes.ProjParams{FX: 1, FY: 1, CX: 0, CY: 0},
		ProjColor: voxtypes.ProjParams{FX: 1, FY: 1, CX: 0, CY: 0},
		HasColor:  hasColor,
	}
	if hasColor {
		rgb := make([]uint8, w*h*3)
		for i := range rgb {
			rgb[i] = 255
		}
		f.Color = ColorImage{W: w, H: h, RGB: rgb}
	}
	return f
}

// S5: |eta/mu| = 0.3 -> depth updates, color does not.
func TestColorGating(t *testing.T) {
	params := baseParams()
	// voxel (0,0,0) block dim 1 centers at (0.5,0.5,0.5); camD.Z=0.5 at
	// identity pose/projection, so measured=0.53 gives eta=0.03, eta/mu=0.3.
	frame := identityFrame(3, 3, 0.53, true)

	v := voxblock.Voxel{}
	fuseVoxel(&v, voxtypes.BlockCoord{X: 0, Y: 0, Z: 0}, 0, params, frame)

	if v.WDepth != 1 {
		t.Fatalf("expected depth to update, w_depth=%d", v.WDepth)
	}
	if v.WColor != 0 {
		t.Fatalf("expected color NOT to update at |eta/mu|=0.3, w_color=%d", v.WColor)
	}
}

// Property test 5: eta < -mu leaves the voxel entirely unmutated.
func TestTruncationLeavesVoxelUnmutated(t *testing.T) {
	params := baseParams()
	// measured depth far behind the voxel: eta = measured - 0.5 << -mu.
	frame := identityFrame(3, 3, 0.05, true)

	before := voxblock.Voxel{SDF: voxblock.SDFValueToFixed(0.4), WDepth: 5, WColor: 2, Color: [3]uint8{10, 20, 30}}
	v := before
	fuseVoxel(&v, voxtypes.BlockCoord{X: 0, Y: 0, Z: 0}, 0, params, frame)

	if v != before {
		t.Fatalf("voxel should be unmutated behind the truncation band: before=%+v after=%+v", before, v)
	}
}

// Property test 3: fusing an all-zero depth frame leaves every voxel
// unchanged.
func TestFusionIdempotenceOnEmptyDepth(t *testing.T) {
	params := baseParams()
	params.BlockDim = 2
	frame := identityFrame(4, 4, 0, false)

	alloc := voxblock.NewAllocator(1, params.BlockDim)
	idx, _ := alloc.Allocate()
	block := alloc.Block(idx)
	for i := range block {
		block[i].WDepth = 3
		block[i].SDF = voxblock.SDFValueToFixed(0.1)
	}
	before := make([]voxblock.Voxel, len(block))
	copy(before, block)

	table := hashindex.NewHashTable(4, 1, 4)
	table.MarkVisible(0, hashindex.VisibleResident)
	// bind entry 0 directly as live, pointing at the already-allocated block,
	// bypassing Resolve since the block is pre-populated for this test.
	table.SetEntry(0, hashindex.Entry{Pos: voxtypes.BlockCoord{}, Ptr: hashindex.PtrState{Kind: hashindex.PtrLive, Index: idx}})

	FuseFrame(executor.SerialExecutor{}, table, alloc, params, []int32{0}, frame)

	block = alloc.Block(idx)
	for i := range block {
		if block[i] != before[i] {
			t.Fatalf("voxel %d changed on empty-depth fusion: before=%+v after=%+v", i, before[i], block[i])
		}
	}
}
