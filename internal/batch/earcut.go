package batch

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rclancey/earcut"
)

// triangulate splits a planar polygon into triangles, returned as index
// triples into corners, wound to agree with normal. The polygon is
// projected onto the coordinate plane its normal is most aligned with.
func triangulate(corners []mgl32.Vec3, normal mgl32.Vec3, coords []float64) ([]int, []float64, error) {
	if len(corners) < 3 {
		return nil, coords, fmt.Errorf("degenerate polygon (%d vertices < 3)", len(corners))
	}
	if len(corners) == 3 {
		return []int{0, 1, 2}, coords, nil
	}

	// Drop the dominant axis of the normal.
	u, v := 1, 2
	ax, ay, az := abs32(normal[0]), abs32(normal[1]), abs32(normal[2])
	switch {
	case ay >= ax && ay >= az:
		u, v = 0, 2
	case az >= ax && az >= ay:
		u, v = 0, 1
	}

	// Format: [u0, v0, u1, v1, ..., un, vn]
	coords = coords[:0]
	for _, c := range corners {
		coords = append(coords, float64(c[u]), float64(c[v]))
	}

	indices, err := earcut.Earcut(coords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		return nil, coords, fmt.Errorf("triangulating %d-vertex polygon: %w", len(corners), err)
	}
	if len(indices)%3 != 0 {
		return nil, coords, fmt.Errorf("invalid triangle count (indices: %d, not divisible by 3)", len(indices))
	}

	// Earcut's output winding follows the projection; flip any triangle that
	// disagrees with the polygon's normal.
	for i := 0; i < len(indices); i += 3 {
		a, b, c := corners[indices[i]], corners[indices[i+1]], corners[indices[i+2]]
		if b.Sub(a).Cross(c.Sub(a)).Dot(normal) < 0 {
			indices[i+1], indices[i+2] = indices[i+2], indices[i+1]
		}
	}
	return indices, coords, nil
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
