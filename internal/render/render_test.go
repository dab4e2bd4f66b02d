package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/memory"
)

type fakeCamera struct{ eye mgl64.Vec3 }

func (c fakeCamera) Eye() mgl64.Vec3 { return c.eye }
func (c fakeCamera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(70), 1, 0.05, 256)
}
func (c fakeCamera) Rotation() mgl32.Mat4 { return mgl32.Ident4() } // looking down -Z

type drawCall struct {
	buf    memory.Buffer
	count  int
	origin mgl32.Vec3
}

type fakeDrawer struct {
	begins, ends int
	draws        []drawCall
	boxes        []geom.Box
}

func (d *fakeDrawer) Begin(_, _ mgl32.Mat4) { d.begins++ }
func (d *fakeDrawer) End()                  { d.ends++ }
func (d *fakeDrawer) DrawBox(b geom.Box)    { d.boxes = append(d.boxes, b) }
func (d *fakeDrawer) DrawBatch(buf memory.Buffer, count int, origin mgl32.Vec3) {
	d.draws = append(d.draws, drawCall{buf, count, origin})
}

type fakeBatches []memory.Batch

func (f fakeBatches) Visit(fn func(b *memory.Batch)) {
	for i := range f {
		fn(&f[i])
	}
}

func TestDrawCullsAndOffsets(t *testing.T) {
	cam := fakeCamera{eye: mgl64.Vec3{1000, 64, 1000}}
	batches := fakeBatches{
		{ // ahead of the camera
			Buffer:      1,
			Origin:      geom.MakeBlockPos(992, 48, 976),
			VertexCount: 30,
			Box:         geom.MakeBox(998, 62, 980, 1002, 66, 984),
		},
		{ // behind it
			Buffer:      2,
			Origin:      geom.MakeBlockPos(992, 48, 1008),
			VertexCount: 30,
			Box:         geom.MakeBox(998, 62, 1016, 1002, 66, 1020),
		},
		{ // ahead, but everything in it is hidden
			Buffer: 3,
			Origin: geom.MakeBlockPos(992, 48, 960),
			Box:    geom.MakeBox(998, 62, 960, 1002, 66, 964),
		},
	}

	d := &fakeDrawer{}
	r := NewRenderer(d, Options{})
	r.Draw(cam, batches)

	assert.Equal(t, 1, d.begins)
	assert.Equal(t, 1, d.ends)
	require.Len(t, d.draws, 1)
	assert.Equal(t, memory.Buffer(1), d.draws[0].buf)
	assert.Equal(t, 30, d.draws[0].count)
	assert.Equal(t, mgl32.Vec3{-8, -16, -24}, d.draws[0].origin)
	assert.Empty(t, d.boxes)

	stats := r.Stats()
	assert.Equal(t, 2, stats.Visible)
	assert.Equal(t, 1, stats.Culled)
	assert.Equal(t, 1, stats.Empty)
	assert.Equal(t, 30, stats.Vertices)
}

func TestDrawDebugBounds(t *testing.T) {
	cam := fakeCamera{}
	batches := fakeBatches{
		{Buffer: 1, VertexCount: 3, Box: geom.MakeBox(-1, -1, -6, 1, 1, -4)},
		{Buffer: 2, VertexCount: 3, Box: geom.MakeBox(-1, -1, 4, 1, 1, 6)},
	}

	d := &fakeDrawer{}
	r := NewRenderer(d, Options{DebugBounds: true})
	r.Draw(cam, batches)
	assert.Equal(t, []geom.Box{batches[0].Box}, d.boxes, "only visible cells are outlined")

	r.SetDebugBounds(false)
	d.boxes = nil
	r.Draw(cam, batches)
	assert.Empty(t, d.boxes)
}

func TestDrawNeverMutatesBatches(t *testing.T) {
	batches := fakeBatches{
		{Buffer: 7, VertexCount: 3, Origin: geom.MakeBlockPos(16, 0, -32), Box: geom.MakeBox(16, 0, -32, 20, 4, -28)},
	}
	before := append(fakeBatches(nil), batches...)

	r := NewRenderer(&fakeDrawer{}, Options{DebugBounds: true})
	for i := 0; i < 3; i++ {
		r.Draw(fakeCamera{eye: mgl64.Vec3{float64(i), 0, 0}}, batches)
	}
	assert.Equal(t, before, batches)
}
