package fusion

import (
	"math"
	"sync/atomic"

	"voxfusion/internal/executor"
	"voxfusion/internal/hashindex"
	"voxfusion/pkg/voxtypes"
)

// BuildStats summarizes one allocation/visibility march.
type BuildStats struct {
	PixelsRejected int64
}

// BuildAllocationVisibility marches every pixel of frame.Depth through the
// truncation band, staging allocation/visibility intents on table. It is
// the data-parallel pass D runs once per pixel; exec controls whether
// pixels are marched serially or across a worker pool.
func BuildAllocationVisibility(exec executor.Executor, frame Frame, params Params, table *hashindex.HashTable) BuildStats {
	invMd := frame.PoseDepth.RigidInverse()
	var rejected int64

	n := frame.Depth.W * frame.Depth.H
	exec.Run(n, func(i int) {
		x := i % frame.Depth.W
		y := i / frame.Depth.W
		if !marchPixel(x, y, frame, params, invMd, table) {
			atomic.AddInt64(&rejected, 1)
		}
	})

	return BuildStats{PixelsRejected: atomic.LoadInt64(&rejected)}
}

// marchPixel implements spec 4.D for a single pixel; returns false if the
// pixel was rejected before any block march happened.
func marchPixel(x, y int, frame Frame, params Params, invMd voxtypes.Mat4, table *hashindex.HashTable) bool {
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
		stagePoint(table, q)
	}
	return true
}

func floorCoord(p voxtypes.Vec3) voxtypes.BlockCoord {
	return voxtypes.BlockCoord{
		X: int16(math.Floor(p.X)),
		Y: int16(math.Floor(p.Y)),
		Z: int16(math.Floor(p.Z)),
	}
}

// stagePoint runs prepareInsert against q and stages the appropriate
// allocation/visibility intent per spec 4.D step 5.
func stagePoint(table *hashindex.HashTable, q voxtypes.BlockCoord) {
	intent := table.PrepareInsert(q)
	switch intent.Kind {
	case hashindex.IntentFound:
		if intent.Ptr.Kind == hashindex.PtrEvicted {
			table.MarkVisible(intent.Index, hashindex.VisibleEvicted)
		} else {
			table.MarkVisible(intent.Index, hashindex.VisibleResident)
		}
	case hashindex.IntentRoomInBucket:
		table.StageAlloc(intent.Index, hashindex.AllocSlot, q)
		table.MarkVisible(intent.Index, hashindex.VisibleResident)
	case hashindex.IntentNeedExcess:
		table.StageAlloc(intent.Index, hashindex.AllocExcess, q)
	}
}
