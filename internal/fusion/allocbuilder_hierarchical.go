package fusion

import (
	"math"
	"sync/atomic"

	"voxfusion/internal/executor"
	"voxfusion/internal/hashindex"
	"voxfusion/pkg/voxtypes"
)

// BuildAllocationVisibilityHierarchical is the multi-resolution variant
// of BuildAllocationVisibility: the truncation-band march is identical,
// but each sampled coordinate is resolved by descending the hierarchy
// coarsest-first, per spec 4.D's hierarchical note and S6.
func BuildAllocationVisibilityHierarchical(exec executor.Executor, frame Frame, params Params, hi *hashindex.Hierarchy) BuildStats {
	invMd := frame.PoseDepth.RigidInverse()
	var rejected int64

	n := frame.Depth.W * frame.Depth.H
	exec.Run(n, func(i int) {
		x := i % frame.Depth.W
		y := i / frame.Depth.W
		if !marchPixelHierarchical(x, y, frame, params, invMd, hi) {
			atomic.AddInt64(&rejected, 1)
		}
	})

	return BuildStats{PixelsRejected: atomic.LoadInt64(&rejected)}
}

func marchPixelHierarchical(x, y int, frame Frame, params Params, invMd voxtypes.Mat4, hi *hashindex.Hierarchy) bool {
	d := frame.Depth.At(x, y)
	mu := params.Mu

	if d <= 0 || d-mu < 0 || d-mu < params.ZMin || d+mu > params.ZMax {
		return false
	}

	pc := voxtypes.Vec3{
		X: (float64(x) - frame.ProjDepth.CX) / frame.ProjDepth.FX * d,
		Y: (float64(y) - frame.ProjDepth.CY) / frame.ProjDepth.FY * d,
		Z: d,
	}
	n := pc.Norm()
	if n == 0 {
		return false
	}

	voxelSizeBlock := params.VoxelSizeBlock()
	pa := invMd.Transform(pc.Scale(1 - mu/n)).Scale(1 / voxelSizeBlock)
	pb := invMd.Transform(pc.Scale(1 + mu/n)).Scale(1 / voxelSizeBlock)

	steps := int(math.Ceil(2 * pb.Sub(pa).Norm()))
	if steps < 1 {
		steps = 1
	}

	var step voxtypes.Vec3
	if steps > 1 {
		step = pb.Sub(pa).Scale(1 / float64(steps-1))
	}

	for i := 0; i < steps; i++ {
		p := pa.Add(step.Scale(float64(i)))
		q := floorCoord(p)
		stageHierarchical(hi, q)
	}
	return true
}

// stageHierarchical descends hi coarsest-first for q, stopping and
// staging an insert at the first level where q is not a split entry.
func stageHierarchical(hi *hashindex.Hierarchy, q voxtypes.BlockCoord) {
	for l := hi.NumLevels() - 1; l >= 0; l-- {
		qL := levelCoord(q, l)
		table := hi.Level(l)

		idx, state, found := table.Find(qL)
		if found && state.Kind == hashindex.PtrSplit {
			continue
		}
		if found {
			if state.Kind == hashindex.PtrEvicted {
				table.MarkVisible(idx, hashindex.VisibleEvicted)
			} else {
				table.MarkVisible(idx, hashindex.VisibleResident)
			}
			return
		}

		intent := hi.PrepareInsert(l, qL)
		switch intent.Kind {
		case hashindex.IntentRoomInBucket:
			table.StageAlloc(intent.Index, hashindex.AllocSlot, qL)
			table.MarkVisible(intent.Index, hashindex.VisibleResident)
		case hashindex.IntentNeedExcess:
			table.StageAlloc(intent.Index, hashindex.AllocExcess, qL)
		}
		return
	}
}

// levelCoord converts a finest-level block coordinate to level l's
// coordinate space, where level l's block edge is 2^l times the finest
// level's. Uses floor division so negative coordinates descend correctly.
func levelCoord(q voxtypes.BlockCoord, l int) voxtypes.BlockCoord {
	if l == 0 {
		return q
	}
	shift := int32(1) << uint(l)
	return voxtypes.BlockCoord{
		X: int16(floorDiv(int32(q.X), shift)),
		Y: int16(floorDiv(int32(q.Y), shift)),
		Z: int16(floorDiv(int32(q.Z), shift)),
	}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
