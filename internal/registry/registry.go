// Package registry is the authoritative record of which markers halo tracks,
// where they are, and how they looked when their cell was last built.
package registry

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/index"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/marker"
)

// DirtyMarker receives cells whose membership changed.
type DirtyMarker interface {
	MarkDirty(cell geom.Cell)
}

// Registry tracks markers for one world. It owns the cell index and the
// per-object fingerprint snapshots.
type Registry struct {
	world     marker.WorldID
	index     *index.CellIndex
	dirty     DirtyMarker
	objects   map[uuid.UUID]marker.Object
	snapshots map[uuid.UUID]marker.Fingerprint
	logger    *zap.SugaredLogger
}

// New returns an empty registry for world.
func New(world marker.WorldID, ix *index.CellIndex, dirty DirtyMarker) *Registry {
	return &Registry{
		world:     world,
		index:     ix,
		dirty:     dirty,
		objects:   make(map[uuid.UUID]marker.Object),
		snapshots: make(map[uuid.UUID]marker.Fingerprint),
		logger:    logging.Named("registry"),
	}
}

// World returns the world being tracked.
func (r *Registry) World() marker.WorldID { return r.world }

// Index exposes the underlying cell index (read-only use).
func (r *Registry) Index() *index.CellIndex { return r.index }

// Len returns the number of tracked markers.
func (r *Registry) Len() int { return len(r.objects) }

// Register starts tracking o, or relocates it if it's already tracked and
// has moved. Any other marker indexed at o's position is dropped from the
// index first; the simulation still owns it.
func (r *Registry) Register(o marker.Object) {
	id, pos := o.ID(), o.Pos()

	if oldPos, ok := r.index.PosOf(id); ok && oldPos == pos {
		r.objects[id] = o
		return
	}

	if occupant, ok := r.index.At(pos); ok && occupant != id {
		r.logger.Debugf("%s displaces %s at %s", id, occupant, pos)
		r.Unregister(occupant)
	}

	prev, existed, err := r.index.Insert(id, pos)
	if err != nil {
		// Can't happen: the occupant was just removed.
		logging.Base().Errorf("registering %s: %v", id, err)
		return
	}
	r.objects[id] = o

	cell := r.index.CellFor(pos)
	r.dirty.MarkDirty(cell)
	if existed {
		r.logger.Debugf("relocated %s %s -> %s", id, prev, cell)
		if prev != cell {
			r.dirty.MarkDirty(prev)
		}
	} else {
		r.logger.Debugf("registered %s at %s in %s", id, pos, cell)
	}
}

// Unregister stops tracking id, dropping its snapshot and flagging its former
// cell. It reports whether id was tracked.
func (r *Registry) Unregister(id uuid.UUID) bool {
	cell, ok := r.index.Remove(id)
	delete(r.objects, id)
	delete(r.snapshots, id)
	if !ok {
		return false
	}
	r.dirty.MarkDirty(cell)
	r.logger.Debugf("unregistered %s from %s", id, cell)
	return true
}

// Tick validates every tracked marker once per simulation step. Markers the
// simulation destroyed, or that left the tracked world, are unregistered;
// markers that moved are relocated. Changes are collected first and applied
// afterwards so the walk never observes its own mutations.
func (r *Registry) Tick() (removed, moved int) {
	var gone []uuid.UUID
	var relocated []marker.Object
	r.index.Each(func(id uuid.UUID, pos geom.BlockPos, _ geom.Cell) bool {
		o := r.objects[id]
		if o == nil || o.Removed() || o.World() != r.world {
			gone = append(gone, id)
		} else if pos != o.Pos() {
			relocated = append(relocated, o)
		}
		return true
	})

	for _, id := range gone {
		r.Unregister(id)
	}
	for _, o := range relocated {
		r.Register(o)
	}
	if len(gone) > 0 || len(relocated) > 0 {
		r.logger.Debugf("tick: %d stale, %d moved", len(gone), len(relocated))
	}
	return len(gone), len(relocated)
}

// Clear forgets everything. Used when the world unloads or reloads.
func (r *Registry) Clear() {
	r.index.Clear()
	r.objects = make(map[uuid.UUID]marker.Object)
	r.snapshots = make(map[uuid.UUID]marker.Fingerprint)
}

// Object returns the tracked marker with the given ID.
func (r *Registry) Object(id uuid.UUID) (marker.Object, bool) {
	o, ok := r.objects[id]
	return o, ok
}

// Members returns the markers in cell, sorted by ID.
func (r *Registry) Members(cell geom.Cell) []marker.Object {
	ids := r.index.Members(cell)
	members := make([]marker.Object, 0, len(ids))
	for _, id := range ids {
		if o, ok := r.objects[id]; ok {
			members = append(members, o)
		}
	}
	return members
}

// Cells returns every non-empty cell.
func (r *Registry) Cells() []geom.Cell { return r.index.Cells() }

// IsEmpty reports whether cell has no tracked markers.
func (r *Registry) IsEmpty(cell geom.Cell) bool { return r.index.IsEmpty(cell) }

// Changed reports whether any marker in cell renders differently from its
// snapshot (or has none yet).
func (r *Registry) Changed(cell geom.Cell) bool {
	changed := false
	r.index.EachMember(cell, func(id uuid.UUID) bool {
		o, ok := r.objects[id]
		if !ok {
			return true
		}
		snap, ok := r.snapshots[id]
		changed = !ok || snap != marker.FingerprintOf(o)
		return !changed
	})
	return changed
}

// Snapshot returns the fingerprint id was last built with.
func (r *Registry) Snapshot(id uuid.UUID) (marker.Fingerprint, bool) {
	fp, ok := r.snapshots[id]
	return fp, ok
}

// Commit records the fingerprints a successful rebuild used. Members no
// longer tracked are ignored.
func (r *Registry) Commit(members []marker.Member) {
	for _, m := range members {
		if _, ok := r.objects[m.ID]; !ok {
			continue
		}
		r.snapshots[m.ID] = m.Fingerprint
	}
}
