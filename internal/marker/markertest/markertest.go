// Package markertest provides a mutable marker.Object for tests.
package markertest

import (
	"github.com/google/uuid"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/marker"
)

// DefaultWorld is the world New places objects in.
const DefaultWorld marker.WorldID = "overworld"

// Obj is a plain marker.Object whose state tests poke at directly.
type Obj struct {
	Id      uuid.UUID
	At      geom.BlockPos
	In      marker.WorldID
	Gone    bool
	Looks   marker.Appearance
	Showing bool
	Covered geom.Sides
}

var (
	_ marker.Object   = (*Obj)(nil)
	_ marker.Occluder = (*Obj)(nil)
)

// New returns a visible lamp at pos in DefaultWorld.
func New(pos geom.BlockPos, glow uint32) *Obj {
	return &Obj{
		Id:      uuid.New(),
		At:      pos,
		In:      DefaultWorld,
		Looks:   marker.Appearance{Kind: marker.KindLamp, Glow: glow},
		Showing: true,
	}
}

func (o *Obj) ID() uuid.UUID                 { return o.Id }
func (o *Obj) Pos() geom.BlockPos            { return o.At }
func (o *Obj) World() marker.WorldID         { return o.In }
func (o *Obj) Removed() bool                 { return o.Gone }
func (o *Obj) Appearance() marker.Appearance { return o.Looks }
func (o *Obj) Visible() bool                 { return o.Showing }
func (o *Obj) Occluded() geom.Sides          { return o.Covered }
