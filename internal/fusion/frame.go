// Package fusion drives the per-frame allocation/visibility march and the
// per-voxel TSDF/color fusion kernel. Grounded on spatial.VoxelGrid's
// streaming update loop and spatial.FrustumCuller's plane-march style,
// generalized from grid cells to the truncation-band voxel march.
package fusion

import "voxfusion/pkg/voxtypes"

// DepthImage is a W*H row-major depth buffer in meters; 0 marks invalid.
type DepthImage struct {
	W, H  int
	Depth []float64
}

// At returns depth[x,y], or 0 if out of bounds.
func (d DepthImage) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= d.W || y >= d.H {
		return 0
	}
	return d.Depth[y*d.W+x]
}

// ColorImage is a W*H RGB buffer, channels normalized to [0,255].
type ColorImage struct {
	W, H int
	RGB  []uint8 // 3 bytes per pixel
}

// At returns the r,g,b triple at (x,y), or 0,0,0 if out of bounds.
func (c ColorImage) At(x, y int) (r, g, b uint8) {
	if x < 0 || y < 0 || x >= c.W || y >= c.H {
		return 0, 0, 0
	}
	i := (y*c.W + x) * 3
	return c.RGB[i], c.RGB[i+1], c.RGB[i+2]
}

// Bilinear samples the color image at fractional pixel coordinates
// (u,v), per spec.md 4.F's contrast with depth's nearest-neighbor sample.
func (c ColorImage) Bilinear(u, v float64) (r, g, b float64) {
	x0 := int(u)
	y0 := int(v)
	fx := u - float64(x0)
	fy := v - float64(y0)

	r00, g00, b00 := c.At(x0, y0)
	r10, g10, b10 := c.At(x0+1, y0)
	r01, g01, b01 := c.At(x0, y0+1)
	r11, g11, b11 := c.At(x0+1, y0+1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	top := func(a00, a10 uint8) float64 { return lerp(float64(a00), float64(a10), fx) }
	bot := func(a01, a11 uint8) float64 { return lerp(float64(a01), float64(a11), fx) }

	r = lerp(top(r00, r10), bot(r01, r11), fy) / 255.0
	g = lerp(top(g00, g10), bot(g01, g11), fy) / 255.0
	b = lerp(top(b00, b10), bot(b01, b11), fy) / 255.0
	return
}

// Frame bundles one RGB-D observation with its camera poses.
type Frame struct {
	Depth DepthImage
	Color ColorImage // zero value means color disabled

	PoseDepth voxtypes.Mat4 // M_d: world -> depth camera
	PoseColor voxtypes.Mat4 // M_rgb: world -> color camera

	ProjDepth voxtypes.ProjParams
	ProjColor voxtypes.ProjParams

	HasColor bool
}

// Params collects the tunables referenced across D and F.
type Params struct {
	Mu         float64 // truncation half-width, world units
	VoxelSize  float64 // world units per voxel (not per block)
	BlockDim   int     // B, voxels per block edge
	MaxW       uint8   // saturation weight
	ZMin, ZMax float64 // frustum culling bounds, world units
}

// VoxelSizeBlock is the world-unit size of one block edge.
func (p Params) VoxelSizeBlock() float64 {
	return p.VoxelSize * float64(p.BlockDim)
}
