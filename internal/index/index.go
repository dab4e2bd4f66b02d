// Package index maintains the bidirectional mapping between grid cells and
// the markers inside them. It's pure bookkeeping: cells are derived keys, and
// nothing here owns a marker or a GPU resource.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/irfansharif/halo/internal/geom"
)

// ErrOccupied is returned when inserting at a position held by another
// object.
var ErrOccupied = errors.New("position occupied")

type entry struct {
	pos  geom.BlockPos
	cell geom.Cell
}

// CellIndex maps cells to member sets, and objects to their position and
// cell. All toggles are O(1) amortized.
type CellIndex struct {
	cellSize int32
	cells    map[geom.Cell]map[uuid.UUID]struct{}
	objects  map[uuid.UUID]entry
	byPos    map[geom.BlockPos]uuid.UUID
}

// New returns an empty index partitioning the world into cells of the given
// size.
func New(cellSize int32) *CellIndex {
	if cellSize <= 0 {
		cellSize = geom.DefaultCellSize
	}
	return &CellIndex{
		cellSize: cellSize,
		cells:    make(map[geom.Cell]map[uuid.UUID]struct{}),
		objects:  make(map[uuid.UUID]entry),
		byPos:    make(map[geom.BlockPos]uuid.UUID),
	}
}

// CellSize returns the configured cell size.
func (ix *CellIndex) CellSize() int32 { return ix.cellSize }

// CellFor returns the cell a position maps to.
func (ix *CellIndex) CellFor(pos geom.BlockPos) geom.Cell { return geom.CellOf(pos, ix.cellSize) }

// Insert places id at pos, moving it if it's already indexed elsewhere. It
// returns the cell the object previously occupied, if any. Inserting at a
// position held by a different object fails with ErrOccupied; callers evict
// the occupant first.
func (ix *CellIndex) Insert(id uuid.UUID, pos geom.BlockPos) (prev geom.Cell, existed bool, err error) {
	if occupant, ok := ix.byPos[pos]; ok && occupant != id {
		return geom.Cell{}, false, fmt.Errorf("inserting %s at %s held by %s: %w", id, pos, occupant, ErrOccupied)
	}

	old, existed := ix.objects[id]
	if existed {
		if old.pos == pos {
			return old.cell, true, nil
		}
		ix.unlink(id, old)
	}

	cell := ix.CellFor(pos)
	members := ix.cells[cell]
	if members == nil {
		members = make(map[uuid.UUID]struct{})
		ix.cells[cell] = members
	}
	members[id] = struct{}{}
	ix.objects[id] = entry{pos: pos, cell: cell}
	ix.byPos[pos] = id
	return old.cell, existed, nil
}

// Remove drops id from the index, returning the cell it occupied.
func (ix *CellIndex) Remove(id uuid.UUID) (geom.Cell, bool) {
	e, ok := ix.objects[id]
	if !ok {
		return geom.Cell{}, false
	}
	ix.unlink(id, e)
	return e.cell, true
}

// unlink removes every trace of id. Empty member sets are deleted right away
// so a cell key exists iff it has members.
func (ix *CellIndex) unlink(id uuid.UUID, e entry) {
	if members := ix.cells[e.cell]; members != nil {
		delete(members, id)
		if len(members) == 0 {
			delete(ix.cells, e.cell)
		}
	}
	if ix.byPos[e.pos] == id {
		delete(ix.byPos, e.pos)
	}
	delete(ix.objects, id)
}

// Contains reports whether id is indexed.
func (ix *CellIndex) Contains(id uuid.UUID) bool {
	_, ok := ix.objects[id]
	return ok
}

// CellOf returns the cell containing id.
func (ix *CellIndex) CellOf(id uuid.UUID) (geom.Cell, bool) {
	e, ok := ix.objects[id]
	return e.cell, ok
}

// PosOf returns the indexed position of id.
func (ix *CellIndex) PosOf(id uuid.UUID) (geom.BlockPos, bool) {
	e, ok := ix.objects[id]
	return e.pos, ok
}

// At returns the object indexed at pos.
func (ix *CellIndex) At(pos geom.BlockPos) (uuid.UUID, bool) {
	id, ok := ix.byPos[pos]
	return id, ok
}

// Members returns the members of cell, sorted by ID.
func (ix *CellIndex) Members(cell geom.Cell) []uuid.UUID {
	members := ix.cells[cell]
	if len(members) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)
	return ids
}

// EachMember calls fn for every member of cell in no particular order,
// stopping early if fn returns false. fn must not mutate the index.
func (ix *CellIndex) EachMember(cell geom.Cell, fn func(id uuid.UUID) bool) {
	for id := range ix.cells[cell] {
		if !fn(id) {
			return
		}
	}
}

// MemberCount returns the number of members of cell.
func (ix *CellIndex) MemberCount(cell geom.Cell) int { return len(ix.cells[cell]) }

// IsEmpty reports whether cell has no members.
func (ix *CellIndex) IsEmpty(cell geom.Cell) bool { return len(ix.cells[cell]) == 0 }

// Len returns the number of indexed objects.
func (ix *CellIndex) Len() int { return len(ix.objects) }

// Cells returns every non-empty cell, sorted.
func (ix *CellIndex) Cells() []geom.Cell {
	cells := make([]geom.Cell, 0, len(ix.cells))
	for c := range ix.cells {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, geom.CompareCells)
	return cells
}

// IDs returns every indexed object, sorted. Callers that mutate the index
// while walking it iterate over this copy.
func (ix *CellIndex) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(ix.objects))
	for id := range ix.objects {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)
	return ids
}

// Each calls fn for every indexed object in ID order, stopping early if fn
// returns false. fn must not mutate the index.
func (ix *CellIndex) Each(fn func(id uuid.UUID, pos geom.BlockPos, cell geom.Cell) bool) {
	for _, id := range ix.IDs() {
		e := ix.objects[id]
		if !fn(id, e.pos, e.cell) {
			return
		}
	}
}

// Clear drops everything.
func (ix *CellIndex) Clear() {
	ix.cells = make(map[geom.Cell]map[uuid.UUID]struct{})
	ix.objects = make(map[uuid.UUID]entry)
	ix.byPos = make(map[geom.BlockPos]uuid.UUID)
}

// Validate checks that the three mappings are exact inverses of one another
// and that every object sits in the cell its position maps to.
func (ix *CellIndex) Validate() error {
	var errs []string

	members := 0
	for cell, set := range ix.cells {
		if len(set) == 0 {
			errs = append(errs, fmt.Sprintf("cell %s is present but empty", cell))
		}
		for id := range set {
			members++
			e, ok := ix.objects[id]
			if !ok {
				errs = append(errs, fmt.Sprintf("cell %s lists unknown object %s", cell, id))
				continue
			}
			if e.cell != cell {
				errs = append(errs, fmt.Sprintf("cell %s lists %s, which maps to %s", cell, id, e.cell))
			}
		}
	}
	if members != len(ix.objects) {
		errs = append(errs, fmt.Sprintf("%d cell memberships for %d objects", members, len(ix.objects)))
	}

	for id, e := range ix.objects {
		if want := ix.CellFor(e.pos); want != e.cell {
			errs = append(errs, fmt.Sprintf("object %s at %s recorded in %s, want %s", id, e.pos, e.cell, want))
		}
		if _, ok := ix.cells[e.cell][id]; !ok {
			errs = append(errs, fmt.Sprintf("object %s missing from cell %s", id, e.cell))
		}
		if ix.byPos[e.pos] != id {
			errs = append(errs, fmt.Sprintf("object %s not indexed at its position %s", id, e.pos))
		}
	}
	if len(ix.byPos) != len(ix.objects) {
		errs = append(errs, fmt.Sprintf("%d positions for %d objects", len(ix.byPos), len(ix.objects)))
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("index integrity check failed with %d errors: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func compareIDs(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) }
