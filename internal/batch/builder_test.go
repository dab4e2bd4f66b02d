package batch

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/marker"
	"github.com/irfansharif/halo/internal/marker/markertest"
	"github.com/irfansharif/halo/internal/models"
	"github.com/irfansharif/halo/internal/palette"
)

// triangleModels serves a single general triangle for every appearance,
// except kinds marked missing.
type triangleModels struct {
	missing map[marker.Kind]bool
}

func (f triangleModels) Quads(a marker.Appearance, face geom.Facing) ([]models.Quad, error) {
	if f.missing[a.Kind] {
		return nil, models.ErrNoModel
	}
	if face != geom.FacingNone {
		return nil, nil
	}
	return []models.Quad{{
		Corners: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		UVs:     []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}},
	}}, nil
}

func newBuilder(src models.Source) *Builder {
	return New(src, Options{CellSize: 16, Margin: 0.5, DefaultTint: palette.DefaultTint})
}

func toObjects(objs []*markertest.Obj) []marker.Object {
	out := make([]marker.Object, len(objs))
	for i, o := range objs {
		out[i] = o
	}
	return out
}

func TestBuildBuiltinLamp(t *testing.T) {
	lib, err := models.Builtin()
	require.NoError(t, err)
	b := newBuilder(lib)

	lamp := markertest.New(geom.MakeBlockPos(3, 3, 3), 0)
	g, err := b.Build(geom.MakeCell(0, 0, 0), []marker.Object{lamp})
	require.NoError(t, err)

	// Two general quads and six box faces, two triangles each.
	assert.Equal(t, 8*2*3, g.VertexCount)
	assert.Len(t, g.Vertices, g.VertexCount*FloatsPerVertex)
	assert.Equal(t, geom.MakeBox(2.5, 2.5, 2.5, 4.5, 4.5, 4.5), g.Box)

	// Unset glow falls back to the default tint.
	tint := palette.Floats(palette.DefaultTint)
	assert.Equal(t, tint[:], g.Vertices[5:9])
}

func TestBuildLeavesOutCoveredSides(t *testing.T) {
	lib, err := models.Builtin()
	require.NoError(t, err)
	b := newBuilder(lib)

	lamp := markertest.New(geom.MakeBlockPos(3, 3, 3), 0)
	lamp.Covered = geom.SidesOf(geom.Up, geom.North)
	g, err := b.Build(geom.MakeCell(0, 0, 0), []marker.Object{lamp})
	require.NoError(t, err)
	// The two general quads are always drawn; two of the six box faces are
	// covered.
	assert.Equal(t, 6*2*3, g.VertexCount)
	assert.Equal(t, geom.BlockBox(lamp.At).Expand(0.5), g.Box, "covered sides still count towards bounds")
	for i := 0; i < g.VertexCount; i++ {
		normal := mgl32.Vec3(g.Vertices[i*FloatsPerVertex+9 : i*FloatsPerVertex+12])
		assert.False(t, normal.ApproxEqual(geom.Up.Normal()), "vertex %d faces up", i)
	}

	lamp.Covered = geom.SidesOf(geom.Directions...)
	g, err = b.Build(geom.MakeCell(0, 0, 0), []marker.Object{lamp})
	require.NoError(t, err)
	assert.Equal(t, 2*2*3, g.VertexCount)
}

func TestBuildIsCellLocalAndOriented(t *testing.T) {
	b := newBuilder(triangleModels{})
	cell := geom.MakeCell(-1, 0, 2)
	o := markertest.New(geom.MakeBlockPos(-14, 3, 36), 0xff0000) // local (2, 3, 4)
	o.Looks.Facing = geom.Up

	g, err := b.Build(cell, []marker.Object{o})
	require.NoError(t, err)
	require.Equal(t, 3, g.VertexCount)
	assert.Equal(t, geom.MakeBlockPos(-16, 0, 32), g.Origin)

	// Facing up rotates (0,0,0) half a turn about X around the block center.
	first := g.Vertices[:3]
	assert.InDelta(t, 2, first[0], 1e-5)
	assert.InDelta(t, 4, first[1], 1e-5)
	assert.InDelta(t, 5, first[2], 1e-5)

	assert.Equal(t, []float32{1, 0, 0, 1}, g.Vertices[5:9], "glow tint")

	// The triangle is flipped upside down, so its normal is too.
	normal := mgl32.Vec3{g.Vertices[9], g.Vertices[10], g.Vertices[11]}
	assert.True(t, normal.ApproxEqual(mgl32.Vec3{0, 0, -1}), "normal %v", normal)
}

func TestBuildBoxIsOrderIndependent(t *testing.T) {
	b := newBuilder(triangleModels{})
	cell := geom.MakeCell(0, 0, 0)
	rng := rand.New(rand.NewSource(7))

	var objs []*markertest.Obj
	for i := 0; i < 30; i++ {
		pos := geom.MakeBlockPos(rng.Int31n(16), rng.Int31n(16), rng.Int31n(16))
		objs = append(objs, markertest.New(pos, uint32(rng.Intn(0xffffff))))
	}

	first, err := b.Build(cell, toObjects(objs))
	require.NoError(t, err)
	box, digest := first.Box, first.Digest

	for i := 0; i < 10; i++ {
		rng.Shuffle(len(objs), func(i, j int) { objs[i], objs[j] = objs[j], objs[i] })
		g, err := b.Build(cell, toObjects(objs))
		require.NoError(t, err)
		assert.Equal(t, box, g.Box)
		assert.Equal(t, digest, g.Digest)
	}
}

func TestBuildInvisibleMembersStillBound(t *testing.T) {
	b := newBuilder(triangleModels{})
	shown := markertest.New(geom.MakeBlockPos(1, 1, 1), 0)
	hidden := markertest.New(geom.MakeBlockPos(10, 10, 10), 0)
	hidden.Showing = false

	g, err := b.Build(geom.MakeCell(0, 0, 0), []marker.Object{shown, hidden})
	require.NoError(t, err)
	assert.Equal(t, 3, g.VertexCount)
	assert.Equal(t, geom.MakeBox(0.5, 0.5, 0.5, 11.5, 11.5, 11.5), g.Box)
	assert.Len(t, g.Members, 2)

	// Toggling visibility changes the digest even though nothing moved.
	hidden.Showing = true
	g2, err := b.Build(geom.MakeCell(0, 0, 0), []marker.Object{shown, hidden})
	require.NoError(t, err)
	assert.NotEqual(t, g.Digest, g2.Digest)
	assert.Equal(t, 6, g2.VertexCount)
}

func TestBuildSkipsMissingModels(t *testing.T) {
	b := newBuilder(triangleModels{missing: map[marker.Kind]bool{marker.KindBeacon: true}})
	lamp := markertest.New(geom.MakeBlockPos(1, 1, 1), 0)
	beacon := markertest.New(geom.MakeBlockPos(2, 2, 2), 0)
	beacon.Looks.Kind = marker.KindBeacon

	g, err := b.Build(geom.MakeCell(0, 0, 0), []marker.Object{lamp, beacon})
	require.NoError(t, err)
	assert.Equal(t, 3, g.VertexCount)
	assert.Len(t, g.Members, 2)
	assert.Equal(t, 1, b.Stats().SkippedMembers)
}

func TestBuildRejects(t *testing.T) {
	b := newBuilder(triangleModels{})

	_, err := b.Build(geom.MakeCell(0, 0, 0), nil)
	assert.True(t, errors.Is(err, ErrNoMembers))

	stray := markertest.New(geom.MakeBlockPos(16, 0, 0), 0)
	_, err = b.Build(geom.MakeCell(0, 0, 0), []marker.Object{stray})
	assert.Error(t, err)
}
