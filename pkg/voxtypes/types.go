// Package voxtypes - Shared geometric types for the voxfusion core
package voxtypes

import "math"

// Vec3 is a 3D vector in world or camera space.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// BlockCoord is an integer voxel-block coordinate, in block units.
// Matches the on-disk/wire layout of a hash entry's pos field (i16,i16,i16).
type BlockCoord struct {
	X, Y, Z int16
}

// Mat4 is a row-major 4x4 pose/projection matrix (world <-> camera).
type Mat4 [16]float64

// Identity returns the 4x4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Transform applies the matrix to a point (row-major, w=1).
func (m Mat4) Transform(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// RigidInverse inverts a rigid transform (rotation + translation, no
// scale/shear): R' = R^T, t' = -R^T*t. Camera poses are rigid transforms,
// so this avoids needing a general 4x4 inverse.
func (m Mat4) RigidInverse() Mat4 {
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[4], m[5], m[6]
	r20, r21, r22 := m[8], m[9], m[10]
	tx, ty, tz := m[3], m[7], m[11]

	ntx := -(r00*tx + r10*ty + r20*tz)
	nty := -(r01*tx + r11*ty + r21*tz)
	ntz := -(r02*tx + r12*ty + r22*tz)

	return Mat4{
		r00, r10, r20, ntx,
		r01, r11, r21, nty,
		r02, r12, r22, ntz,
		0, 0, 0, 1,
	}
}

// ProjParams packs camera intrinsics as (fx, fy, cx, cy), with the
// convention u = fx*x/z + cx, v = fy*y/z + cy.
type ProjParams struct {
	FX, FY, CX, CY float64
}

// Project maps a camera-space point to pixel coordinates.
func (p ProjParams) Project(cam Vec3) (u, v float64) {
	u = p.FX*cam.X/cam.Z + p.CX
	v = p.FY*cam.Y/cam.Z + p.CY
	return
}

// Camera describes a viewer camera, used only by the optional
// visualization/telemetry layer - never by the fusion core itself.
type Camera struct {
	Position Vec3
	Target   Vec3
	Up       Vec3
	FOV      float64
	Near     float64
	Far      float64
}

// Plane is a 3D plane (ax + by + cz + d = 0).
type Plane struct {
	A, B, C, D float64
}

// FrustumPlanes holds the 6 planes of a view frustum: left, right, top,
// bottom, near, far.
type FrustumPlanes [6]Plane

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns a unit-length copy, or the zero vector if v is zero.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}
