// Package voxblock owns the fixed-point voxel record and the fixed-capacity
// slab of voxel blocks that backs the sparse TSDF. It knows nothing about
// the hash index that addresses its blocks by coordinate - blocks are
// referenced purely by pool index, the way spatial.VoxelPool referenced
// CompactVoxels purely by pointer.
package voxblock

import "math"

// SDFMax is the fixed-point scale: sdf = round(clamp(f,-1,1) * SDFMax).
// It is the int16 maximum; because the input is clamped to [-1,1] first,
// rounding never leaves the int16 range.
const SDFMax = 32767

// Voxel is the fixed-point TSDF record. Default value is an uninitialized
// voxel: SDF at +1 (encoded), all weights zero.
type Voxel struct {
	SDF     int16   // fixed-point signed distance, encoded per SDFMax
	WDepth  uint8   // depth observation count, saturates at MaxW
	Color   [3]uint8 // RGB color, valid only when WColor > 0
	WColor  uint8   // color observation count, saturates at MaxW
}

// DefaultVoxel returns the zero-weighted, +1-encoded voxel a freshly
// allocated block is filled with.
func DefaultVoxel() Voxel {
	return Voxel{SDF: SDFValueToFixed(1.0)}
}

// IsUninitialized reports whether the voxel has never been observed.
func (v Voxel) IsUninitialized() bool {
	return v.WDepth == 0
}

// SDFFixedToFloat converts a fixed-point sdf to its float value in [-1,1].
func SDFFixedToFloat(v int16) float64 {
	return float64(v) / SDFMax
}

// SDFValueToFixed converts a float sdf in (roughly) [-1,1] to fixed point,
// clamping first so rounding can never overflow int16.
func SDFValueToFixed(f float64) int16 {
	if f < -1 {
		f = -1
	} else if f > 1 {
		f = 1
	}
	return int16(math.Round(f * SDFMax))
}

// WeightedMeanUpdate applies the running weighted-mean recurrence used by
// both the depth and color fusion stages:
//
//	x' = (w_o*x_o + x_n) / (w_o + 1)
//	w' = min(w_o + 1, maxW)
//
// w_o+1 is always >= 1 so there is no division by zero.
func WeightedMeanUpdate(xOld float64, wOld uint8, xNew float64, maxW uint8) (xNewMean float64, wNew uint8) {
	xNewMean = (float64(wOld)*xOld + xNew) / (float64(wOld) + 1)
	if wOld < maxW {
		wNew = wOld + 1
	} else {
		wNew = maxW
	}
	return
}

// FuseDepth applies the depth TSDF update in place and returns the new
// signed-distance float (before fixed-point quantization).
func (v *Voxel) FuseDepth(newF float64, maxW uint8) float64 {
	oldF := SDFFixedToFloat(v.SDF)
	updated, w := WeightedMeanUpdate(oldF, v.WDepth, newF, maxW)
	v.SDF = SDFValueToFixed(updated)
	v.WDepth = w
	return updated
}

// FuseColor applies the per-channel color update in place. rgb is
// normalized to [0,1] per channel.
func (v *Voxel) FuseColor(r, g, b float64, maxW uint8) {
	oldR := float64(v.Color[0]) / 255.0
	oldG := float64(v.Color[1]) / 255.0
	oldB := float64(v.Color[2]) / 255.0

	newR, w := WeightedMeanUpdate(oldR, v.WColor, r, maxW)
	newG, _ := WeightedMeanUpdate(oldG, v.WColor, g, maxW)
	newB, _ := WeightedMeanUpdate(oldB, v.WColor, b, maxW)

	v.Color = [3]uint8{quantize(newR), quantize(newG), quantize(newB)}
	v.WColor = w
}

func quantize(x float64) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(math.Round(x * 255))
}
