package geom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellOf(t *testing.T) {
	for _, tc := range []struct {
		pos  BlockPos
		cell Cell
	}{
		{MakeBlockPos(0, 0, 0), MakeCell(0, 0, 0)},
		{MakeBlockPos(15, 15, 15), MakeCell(0, 0, 0)},
		{MakeBlockPos(16, 0, 0), MakeCell(1, 0, 0)},
		{MakeBlockPos(-1, 0, 0), MakeCell(-1, 0, 0)},
		{MakeBlockPos(-16, -17, 31), MakeCell(-1, -2, 1)},
	} {
		assert.Equal(t, tc.cell, CellOf(tc.pos, DefaultCellSize), "pos %s", tc.pos)
	}
}

func TestCellMinRoundTrips(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		p := MakeBlockPos(rng.Int31n(2000)-1000, rng.Int31n(2000)-1000, rng.Int31n(2000)-1000)
		c := CellOf(p, DefaultCellSize)
		local := p.Sub(c.Min(DefaultCellSize))
		require.True(t, local.X >= 0 && local.X < DefaultCellSize, "pos %s cell %s", p, c)
		require.True(t, local.Y >= 0 && local.Y < DefaultCellSize, "pos %s cell %s", p, c)
		require.True(t, local.Z >= 0 && local.Z < DefaultCellSize, "pos %s cell %s", p, c)
	}
}

func TestCellOfAtInt32Limits(t *testing.T) {
	lo := MakeBlockPos(math.MinInt32, math.MinInt32+15, math.MinInt32+16)
	c := CellOf(lo, DefaultCellSize)
	assert.Equal(t, MakeCell(math.MinInt32/16, math.MinInt32/16, math.MinInt32/16+1), c)
	assert.Equal(t, MakeBlockPos(0, 15, 0), lo.Sub(c.Min(DefaultCellSize)))

	hi := MakeBlockPos(math.MaxInt32, math.MaxInt32-15, math.MaxInt32-16)
	c = CellOf(hi, DefaultCellSize)
	assert.Equal(t, MakeCell(math.MaxInt32/16, math.MaxInt32/16, math.MaxInt32/16-1), c)
	assert.Equal(t, MakeBlockPos(15, 0, 15), hi.Sub(c.Min(DefaultCellSize)))
}

func TestBoxUnionIsOrderIndependent(t *testing.T) {
	boxes := []Box{
		BlockBox(MakeBlockPos(1, 2, 3)).Expand(0.5),
		BlockBox(MakeBlockPos(-4, 9, 0)).Expand(0.5),
		BlockBox(MakeBlockPos(7, -3, 12)).Expand(0.5),
	}
	a := boxes[0].Union(boxes[1]).Union(boxes[2])
	b := boxes[2].Union(boxes[0]).Union(boxes[1])
	assert.Equal(t, a, b)
	assert.Equal(t, MakeBox(-4.5, -3.5, -0.5, 8.5, 10.5, 13.5), a)
}

func TestFacingRotation(t *testing.T) {
	// A point at the bottom center of the block ends up on the face the
	// marker is facing.
	bottom := mgl32.Vec4{0.5, 0, 0.5, 1}
	for _, tc := range []struct {
		facing Facing
		want   mgl32.Vec3
	}{
		{FacingNone, mgl32.Vec3{0.5, 0, 0.5}},
		{Down, mgl32.Vec3{0.5, 0, 0.5}},
		{Up, mgl32.Vec3{0.5, 1, 0.5}},
		{North, mgl32.Vec3{0.5, 0.5, 0}},
		{South, mgl32.Vec3{0.5, 0.5, 1}},
		{West, mgl32.Vec3{0, 0.5, 0.5}},
		{East, mgl32.Vec3{1, 0.5, 0.5}},
	} {
		got := FacingRotation(tc.facing).Mul4x1(bottom).Vec3()
		for i := range got {
			assert.InDelta(t, tc.want[i], got[i], 1e-5, "facing %s: got %v, want %v", tc.facing, got, tc.want)
		}
	}
}

func TestSides(t *testing.T) {
	s := SidesOf(Up, West, FacingNone)
	for _, f := range Directions {
		assert.Equal(t, f == Up || f == West, s.Has(f), "facing %s", f)
	}
	assert.False(t, s.Has(FacingNone))
	assert.Zero(t, SidesOf())

	p := MakeBlockPos(1, 2, 3)
	assert.Equal(t, MakeBlockPos(1, 1, 3), p.Neighbor(Down))
	assert.Equal(t, MakeBlockPos(1, 2, 2), p.Neighbor(North))
	assert.Equal(t, MakeBlockPos(2, 2, 3), p.Neighbor(East))
	assert.Equal(t, p, p.Neighbor(FacingNone))
}

func TestParseFacing(t *testing.T) {
	for _, f := range Directions {
		assert.Equal(t, f, ParseFacing(f.String()))
	}
	assert.Equal(t, FacingNone, ParseFacing("sideways"))
}

func testFrustum() Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(70), 1, 0.05, 100)
	view := mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return FrustumFromMatrix(proj.Mul4(view))
}

func TestFrustumIntersectsBox(t *testing.T) {
	f := testFrustum()
	for _, tc := range []struct {
		name    string
		box     Box
		visible bool
	}{
		{"ahead", MakeBox(-1, -1, -11, 1, 1, -9), true},
		{"behind", MakeBox(-1, -1, 9, 1, 1, 11), false},
		{"beyond far plane", MakeBox(-1, -1, -210, 1, 1, -200), false},
		{"far left", MakeBox(-60, -1, -11, -50, 1, -9), false},
		{"far above", MakeBox(-1, 50, -11, 1, 60, -9), false},
		{"straddling near plane", MakeBox(-1, -1, -1, 1, 1, 1), true},
		{"enclosing everything", MakeBox(-500, -500, -500, 500, 500, 500), true},
	} {
		assert.Equal(t, tc.visible, f.IntersectsBox(tc.box), tc.name)
	}
}

func TestFrustumNeverCullsBoxWithVisibleCorner(t *testing.T) {
	f := testFrustum()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		x, y, z := rng.Float64()*200-100, rng.Float64()*200-100, rng.Float64()*200-100
		b := MakeBox(x, y, z, x+rng.Float64()*10, y+rng.Float64()*10, z+rng.Float64()*10)

		anyInside := false
		for _, c := range b.Corners() {
			if f.ContainsPoint(float32(c[0]), float32(c[1]), float32(c[2])) {
				anyInside = true
				break
			}
		}
		if anyInside {
			require.True(t, f.IntersectsBox(b), "culled %s with a visible corner", b)
		}

		allOutsideOnePlane := false
		for _, p := range f.Planes {
			outside := true
			for _, c := range b.Corners() {
				if p.distance(float32(c[0]), float32(c[1]), float32(c[2])) >= 0 {
					outside = false
					break
				}
			}
			if outside {
				allOutsideOnePlane = true
				break
			}
		}
		if allOutsideOnePlane {
			require.False(t, f.IntersectsBox(b), "kept %s lying outside a plane", b)
		}
	}
}
