package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/halo/internal/dirty"
	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/index"
	"github.com/irfansharif/halo/internal/marker"
	"github.com/irfansharif/halo/internal/marker/markertest"
)

func newRegistry() (*Registry, *dirty.Tracker) {
	tr := dirty.New()
	return New(markertest.DefaultWorld, index.New(geom.DefaultCellSize), tr), tr
}

var (
	origin = geom.MakeCell(0, 0, 0)
	east   = geom.MakeCell(1, 0, 0)
)

func TestRegisterMarksCell(t *testing.T) {
	r, tr := newRegistry()
	a := markertest.New(geom.MakeBlockPos(2, 3, 4), 0xff0000)
	r.Register(a)

	assert.Equal(t, 1, r.Len())
	assert.True(t, tr.IsPending(origin))
	assert.Equal(t, []marker.Object{a}, r.Members(origin))

	// Re-registering in place changes nothing.
	tr.Reset()
	r.Register(a)
	assert.Zero(t, tr.Pending())
}

func TestRegisterDisplacesOccupant(t *testing.T) {
	r, _ := newRegistry()
	pos := geom.MakeBlockPos(5, 5, 5)
	a := markertest.New(pos, 0)
	b := markertest.New(pos, 0)

	r.Register(a)
	r.Commit([]marker.Member{marker.MemberOf(a)})
	r.Register(b)

	_, ok := r.Object(a.ID())
	assert.False(t, ok, "occupant still tracked")
	_, ok = r.Snapshot(a.ID())
	assert.False(t, ok, "occupant snapshot kept")
	assert.Equal(t, []marker.Object{b}, r.Members(origin))
	require.NoError(t, r.Index().Validate())
}

func TestRelocateMarksBothCells(t *testing.T) {
	r, tr := newRegistry()
	a := markertest.New(geom.MakeBlockPos(1, 1, 1), 0)
	r.Register(a)
	tr.Reset()

	a.At = geom.MakeBlockPos(17, 1, 1)
	r.Register(a)
	assert.True(t, tr.IsPending(origin))
	assert.True(t, tr.IsPending(east))
	assert.True(t, r.IsEmpty(origin))
	assert.Equal(t, []geom.Cell{east}, r.Cells())
}

func TestUnregister(t *testing.T) {
	r, tr := newRegistry()
	a := markertest.New(geom.MakeBlockPos(1, 1, 1), 0)
	r.Register(a)
	r.Commit([]marker.Member{marker.MemberOf(a)})
	tr.Reset()

	assert.True(t, r.Unregister(a.ID()))
	assert.True(t, tr.IsPending(origin))
	_, ok := r.Snapshot(a.ID())
	assert.False(t, ok)
	assert.False(t, r.Unregister(a.ID()))
}

func TestTickDropsStaleAndRelocatesMoved(t *testing.T) {
	r, tr := newRegistry()
	removed := markertest.New(geom.MakeBlockPos(1, 0, 0), 0)
	elsewhere := markertest.New(geom.MakeBlockPos(2, 0, 0), 0)
	mover := markertest.New(geom.MakeBlockPos(3, 0, 0), 0)
	stays := markertest.New(geom.MakeBlockPos(4, 0, 0), 0)
	for _, o := range []*markertest.Obj{removed, elsewhere, mover, stays} {
		r.Register(o)
	}
	tr.Reset()

	removed.Gone = true
	elsewhere.In = "nether"
	mover.At = geom.MakeBlockPos(20, 0, 0)

	gone, moved := r.Tick()
	assert.Equal(t, 2, gone)
	assert.Equal(t, 1, moved)
	assert.Equal(t, []marker.Object{stays}, r.Members(origin))
	assert.Equal(t, []marker.Object{mover}, r.Members(east))
	assert.True(t, tr.IsPending(origin))
	assert.True(t, tr.IsPending(east))
	require.NoError(t, r.Index().Validate())

	// A quiet tick changes nothing.
	tr.Reset()
	gone, moved = r.Tick()
	assert.Zero(t, gone+moved)
	assert.Zero(t, tr.Pending())
}

func TestChanged(t *testing.T) {
	r, _ := newRegistry()
	a := markertest.New(geom.MakeBlockPos(1, 1, 1), 0x00ff00)
	r.Register(a)
	assert.True(t, r.Changed(origin), "no snapshot yet")

	r.Commit([]marker.Member{marker.MemberOf(a)})
	assert.False(t, r.Changed(origin))

	a.Showing = false
	assert.True(t, r.Changed(origin), "visibility toggles count")
	r.Commit([]marker.Member{marker.MemberOf(a)})

	a.Looks.Glow = 0x0000ff
	assert.True(t, r.Changed(origin))
}

func TestChangedScansWithoutAllocating(t *testing.T) {
	r, _ := newRegistry()
	var members []marker.Member
	for i := int32(0); i < 64; i++ {
		o := markertest.New(geom.MakeBlockPos(i%16, i/16, 0), 0x00ff00)
		r.Register(o)
		members = append(members, marker.MemberOf(o))
	}
	r.Commit(members)

	allocs := testing.AllocsPerRun(100, func() {
		if r.Changed(origin) {
			t.Fatal("nothing changed")
		}
	})
	assert.Zero(t, allocs)
}

func TestClear(t *testing.T) {
	r, _ := newRegistry()
	for i := int32(0); i < 10; i++ {
		r.Register(markertest.New(geom.MakeBlockPos(i*7, 0, 0), 0))
	}
	r.Clear()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Cells())
}
