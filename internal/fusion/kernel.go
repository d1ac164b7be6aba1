package fusion

import (
	"math"
	"sync/atomic"

	"voxfusion/internal/executor"
	"voxfusion/internal/hashindex"
	"voxfusion/internal/voxblock"
	"voxfusion/pkg/voxtypes"
)

// FuseStats summarizes one fusion pass.
type FuseStats struct {
	VoxelsUpdated int64
}

// FuseFrame runs the fusion kernel over every voxel of every visible
// block, per spec 4.F. One task per voxel; voxel writes are partitioned
// by block so no two tasks touch the same voxel.
func FuseFrame(exec executor.Executor, table *hashindex.HashTable, alloc *voxblock.Allocator, params Params, visible []int32, frame Frame) FuseStats {
	blockVoxelCount := int(alloc.BlockVoxelCount())
	total := len(visible) * blockVoxelCount
	var updated int64

	exec.Run(total, func(i int) {
		blockPos := i / blockVoxelCount
		localIdx := i % blockVoxelCount

		entry := table.Entry(visible[blockPos])
		if entry.Ptr.Kind != hashindex.PtrLive {
			return // resolver failed to bind this entry this frame; nothing to fuse
		}

		voxels := alloc.Block(entry.Ptr.Index)
		prev := voxels[localIdx]
		fuseVoxel(&voxels[localIdx], entry.Pos, localIdx, params, frame)
		if voxels[localIdx] != prev {
			atomic.AddInt64(&updated, 1)
		}
	})

	return FuseStats{VoxelsUpdated: atomic.LoadInt64(&updated)}
}

func fuseVoxel(v *voxblock.Voxel, blockCoord voxtypes.BlockCoord, localIdx int, params Params, frame Frame) {
	ptModel := voxelCenter(blockCoord, localIdx, params.BlockDim, params.VoxelSize)

	camD := frame.PoseDepth.Transform(ptModel)
	if camD.Z <= 0 {
		return
	}
	ud, vd := frame.ProjDepth.Project(camD)
	px, py := int(ud+0.5), int(vd+0.5)
	if px < 1 || px > frame.Depth.W-2 || py < 1 || py > frame.Depth.H-2 {
		return
	}

	measured := frame.Depth.At(px, py)
	if measured <= 0 {
		return
	}

	mu := params.Mu
	eta := measured - camD.Z
	if eta >= -mu {
		newF := math.Min(1, eta/mu)
		v.FuseDepth(newF, params.MaxW)
	}

	if !frame.HasColor || eta > mu {
		return
	}
	if math.Abs(eta/mu) > 0.25 {
		return
	}

	camC := frame.PoseColor.Transform(ptModel)
	if camC.Z <= 0 {
		return
	}
	uc, vc := frame.ProjColor.Project(camC)
	cx, cy := int(uc+0.5), int(vc+0.5)
	if cx < 1 || cx > frame.Color.W-2 || cy < 1 || cy > frame.Color.H-2 {
		return
	}

	r, g, b := frame.Color.Bilinear(uc, vc)
	v.FuseColor(r, g, b, params.MaxW)
}

// voxelCenter computes the world-space center of the localIdx-th voxel
// within the block at blockCoord.
func voxelCenter(blockCoord voxtypes.BlockCoord, localIdx, blockDim int, voxelSize float64) voxtypes.Vec3 {
	lz := localIdx / (blockDim * blockDim)
	rem := localIdx % (blockDim * blockDim)
	ly := rem / blockDim
	lx := rem % blockDim

	wx := float64(int(blockCoord.X)*blockDim+lx) + 0.5
	wy := float64(int(blockCoord.Y)*blockDim+ly) + 0.5
	wz := float64(int(blockCoord.Z)*blockDim+lz) + 0.5

	return voxtypes.Vec3{X: wx * voxelSize, Y: wy * voxelSize, Z: wz * voxelSize}
}
