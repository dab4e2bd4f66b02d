// Package dirty decides, once per frame, which cells need their geometry
// rebuilt and which have emptied out and must be evicted.
//
// A non-empty cell is dirty when:
//   - it has no cached batch yet,
//   - any member's current fingerprint differs from its last snapshot, or
//   - its membership changed since the last rebuild (signalled by MarkDirty).
//
// A cell with no members is never dirty for rebuild; it's queued for
// eviction instead.
package dirty

import (
	"slices"

	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/logging"
)

// Membership is the view of the registry the tracker needs.
type Membership interface {
	// Cells returns every cell with at least one member.
	Cells() []geom.Cell
	// IsEmpty reports whether cell has no members.
	IsEmpty(cell geom.Cell) bool
	// Changed reports whether any member of cell renders differently from
	// its last snapshot.
	Changed(cell geom.Cell) bool
}

// Batches is the view of the buffer cache the tracker needs.
type Batches interface {
	Has(cell geom.Cell) bool
	Cells() []geom.Cell
}

// Result is one frame's worth of work. Both lists are sorted; the order
// carries no meaning beyond determinism since rebuilds are independent.
type Result struct {
	Rebuild []geom.Cell
	Evict   []geom.Cell
}

// Empty reports whether there's nothing to do.
func (r Result) Empty() bool { return len(r.Rebuild) == 0 && len(r.Evict) == 0 }

// Tracker accumulates dirty cells between frames.
type Tracker struct {
	pending map[geom.Cell]struct{}
	logger  *zap.SugaredLogger
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		pending: make(map[geom.Cell]struct{}),
		logger:  logging.Named("dirty"),
	}
}

// MarkDirty flags cell for the next collection. Called on every membership
// change touching the cell.
func (t *Tracker) MarkDirty(cell geom.Cell) {
	t.pending[cell] = struct{}{}
}

// IsPending reports whether cell is flagged.
func (t *Tracker) IsPending(cell geom.Cell) bool {
	_, ok := t.pending[cell]
	return ok
}

// Pending returns the number of flagged cells.
func (t *Tracker) Pending() int { return len(t.pending) }

// Scan applies the dirty policy to the current state, flagging non-empty
// cells without a batch or with changed fingerprints, and cached cells that
// lost all their members.
func (t *Tracker) Scan(m Membership, b Batches) {
	for _, cell := range m.Cells() {
		if _, ok := t.pending[cell]; ok {
			continue
		}
		if !b.Has(cell) {
			t.logger.Debugf("cell %s has no batch yet", cell)
			t.pending[cell] = struct{}{}
			continue
		}
		if m.Changed(cell) {
			t.logger.Debugf("cell %s has changed members", cell)
			t.pending[cell] = struct{}{}
		}
	}
	for _, cell := range b.Cells() {
		if m.IsEmpty(cell) {
			t.pending[cell] = struct{}{}
		}
	}
}

// CollectDirty splits the flagged cells into rebuilds and evictions and
// clears the pending set.
func (t *Tracker) CollectDirty(m Membership) Result {
	if len(t.pending) == 0 {
		return Result{}
	}

	var res Result
	for cell := range t.pending {
		if m.IsEmpty(cell) {
			res.Evict = append(res.Evict, cell)
		} else {
			res.Rebuild = append(res.Rebuild, cell)
		}
	}
	slices.SortFunc(res.Rebuild, geom.CompareCells)
	slices.SortFunc(res.Evict, geom.CompareCells)
	t.pending = make(map[geom.Cell]struct{})

	t.logger.Debugf("collected %d rebuilds, %d evictions", len(res.Rebuild), len(res.Evict))
	return res
}

// Reset drops every flagged cell.
func (t *Tracker) Reset() {
	t.pending = make(map[geom.Cell]struct{})
}
