package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is ax + by + cz + d = 0 with (a, b, c) pointing into the frustum.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// distance returns the signed distance of p from the plane (scaled by the
// normal's length).
func (p Plane) distance(x, y, z float32) float32 {
	return p.Normal[0]*x + p.Normal[1]*y + p.Normal[2]*z + p.D
}

// Frustum holds the six clip planes of a view volume, in the order left,
// right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the clip planes from a combined
// projection*view matrix (Gribb/Hartmann). Planes are expressed in whatever
// space the matrix consumes; for halo that's camera-relative world space.
func FrustumFromMatrix(m mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	rows := [6]mgl32.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
		r3.Sub(r2), // far
	}

	var f Frustum
	for i, row := range rows {
		f.Planes[i] = Plane{Normal: row.Vec3(), D: row[3]}
	}
	return f
}

// IntersectsBox reports whether the box can be visible: it's rejected only
// when it lies entirely on the outer side of at least one plane. Boxes near
// the frustum's edges may be accepted without actually overlapping it; such
// a box is drawn and then clipped by the GPU.
func (f Frustum) IntersectsBox(b Box) bool {
	minX, minY, minZ := float32(b.MinX), float32(b.MinY), float32(b.MinZ)
	maxX, maxY, maxZ := float32(b.MaxX), float32(b.MaxY), float32(b.MaxZ)

	for _, p := range f.Planes {
		// Test the corner furthest along the plane normal (the "positive
		// vertex"); if even that one is outside, the whole box is.
		x, y, z := minX, minY, minZ
		if p.Normal[0] >= 0 {
			x = maxX
		}
		if p.Normal[1] >= 0 {
			y = maxY
		}
		if p.Normal[2] >= 0 {
			z = maxZ
		}
		if p.distance(x, y, z) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether the point lies inside all six planes.
func (f Frustum) ContainsPoint(x, y, z float32) bool {
	for _, p := range f.Planes {
		if p.distance(x, y, z) < 0 {
			return false
		}
	}
	return true
}
