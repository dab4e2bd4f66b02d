package dirty

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/irfansharif/halo/internal/geom"
)

type fakeMembership struct {
	members map[geom.Cell]int
	changed map[geom.Cell]bool
}

func (f *fakeMembership) Cells() []geom.Cell {
	var cells []geom.Cell
	for c, n := range f.members {
		if n > 0 {
			cells = append(cells, c)
		}
	}
	return cells
}
func (f *fakeMembership) IsEmpty(c geom.Cell) bool { return f.members[c] == 0 }
func (f *fakeMembership) Changed(c geom.Cell) bool { return f.changed[c] }

type fakeBatches map[geom.Cell]bool

func (f fakeBatches) Has(c geom.Cell) bool { return f[c] }
func (f fakeBatches) Cells() []geom.Cell {
	var cells []geom.Cell
	for c := range f {
		cells = append(cells, c)
	}
	return cells
}

var (
	c0 = geom.MakeCell(0, 0, 0)
	c1 = geom.MakeCell(1, 0, 0)
	c2 = geom.MakeCell(2, 0, 0)
	c3 = geom.MakeCell(3, 0, 0)
)

func TestScanPolicy(t *testing.T) {
	m := &fakeMembership{
		members: map[geom.Cell]int{c0: 1, c1: 2, c2: 1},
		changed: map[geom.Cell]bool{c1: true},
	}
	batches := fakeBatches{c0: true, c1: true, c3: true} // c2 never built; c3 emptied

	tr := New()
	tr.Scan(m, batches)
	res := tr.CollectDirty(m)

	assert.Equal(t, []geom.Cell{c1, c2}, res.Rebuild)
	assert.Equal(t, []geom.Cell{c3}, res.Evict)
	assert.Zero(t, tr.Pending())
}

func TestMarkedEmptyCellIsEvictedNotRebuilt(t *testing.T) {
	m := &fakeMembership{members: map[geom.Cell]int{c1: 1}}
	tr := New()
	tr.MarkDirty(c0)
	tr.MarkDirty(c1)

	res := tr.CollectDirty(m)
	assert.Equal(t, []geom.Cell{c1}, res.Rebuild)
	assert.Equal(t, []geom.Cell{c0}, res.Evict)
}

func TestCollectIsDeterministicAndClears(t *testing.T) {
	m := &fakeMembership{members: map[geom.Cell]int{c0: 1, c1: 1, c2: 1, c3: 1}}
	for i := 0; i < 20; i++ {
		tr := New()
		for _, c := range []geom.Cell{c3, c1, c2, c0} {
			tr.MarkDirty(c)
		}
		assert.Equal(t, []geom.Cell{c0, c1, c2, c3}, tr.CollectDirty(m).Rebuild)
		assert.True(t, tr.CollectDirty(m).Empty())
	}
}

func TestSteadyStateIsClean(t *testing.T) {
	m := &fakeMembership{members: map[geom.Cell]int{c0: 3}}
	tr := New()
	tr.Scan(m, fakeBatches{c0: true})
	assert.True(t, tr.CollectDirty(m).Empty())
}
