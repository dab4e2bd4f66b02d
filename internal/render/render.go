// Package render draws the cached cell batches each frame.
//
// Culling and drawing happen in camera-relative space: batch origins and
// bounding boxes are offset by the camera position in float64 before being
// narrowed to float32, which keeps far-away geometry from jittering.
package render

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/memory"
)

// Camera is the view a frame is drawn from.
type Camera interface {
	Eye() mgl64.Vec3
	Projection() mgl32.Mat4
	// Rotation is the view matrix without the translation.
	Rotation() mgl32.Mat4
}

// Drawer issues draw calls with the marker pipeline.
type Drawer interface {
	Begin(projection, rotation mgl32.Mat4)
	DrawBatch(buf memory.Buffer, vertexCount int, origin mgl32.Vec3)
	// DrawBox outlines a camera-relative box.
	DrawBox(box geom.Box)
	End()
}

// Batches is the read-only view of the buffer cache the renderer needs.
type Batches interface {
	Visit(fn func(b *memory.Batch))
}

// Options configures a Renderer.
type Options struct {
	DebugBounds bool // outline every visible cell
}

// Stats tracks rendering performance metrics for the last frame.
type Stats struct {
	Visible        int // cells drawn
	Culled         int // cells outside the frustum
	Empty          int // visible cells with nothing to draw
	Vertices       int
	LastDrawTimeUs float64
}

// Renderer culls and draws cell batches.
type Renderer struct {
	drawer Drawer
	opts   Options
	stats  Stats
	logger *zap.SugaredLogger
}

func NewRenderer(drawer Drawer, opts Options) *Renderer {
	return &Renderer{
		drawer: drawer,
		opts:   opts,
		logger: logging.Named("render"),
	}
}

// SetDebugBounds toggles bounding box outlines.
func (r *Renderer) SetDebugBounds(on bool) { r.opts.DebugBounds = on }

// DebugBounds reports whether bounding box outlines are drawn.
func (r *Renderer) DebugBounds() bool { return r.opts.DebugBounds }

// Draw renders every batch whose bounding box intersects the camera's view
// frustum. It never modifies the batches.
func (r *Renderer) Draw(cam Camera, batches Batches) {
	startTime := time.Now()

	projection, rotation := cam.Projection(), cam.Rotation()
	frustum := geom.FrustumFromMatrix(projection.Mul4(rotation))
	eye := cam.Eye()

	var stats Stats
	r.drawer.Begin(projection, rotation)
	batches.Visit(func(b *memory.Batch) {
		box := b.Box.Offset(-eye.X(), -eye.Y(), -eye.Z())
		if !frustum.IntersectsBox(box) {
			stats.Culled++
			return
		}
		stats.Visible++

		if r.opts.DebugBounds {
			r.drawer.DrawBox(box)
		}
		if b.VertexCount == 0 {
			stats.Empty++
			return
		}

		origin := mgl64.Vec3{float64(b.Origin.X), float64(b.Origin.Y), float64(b.Origin.Z)}.Sub(eye)
		r.drawer.DrawBatch(b.Buffer, b.VertexCount, mgl32.Vec3{float32(origin.X()), float32(origin.Y()), float32(origin.Z())})
		stats.Vertices += b.VertexCount
	})
	r.drawer.End()

	stats.LastDrawTimeUs = float64(time.Since(startTime).Microseconds())
	r.stats = stats
	r.logger.Debugf("drew %d cells (%d culled, %d empty), %d vertices in %.0fμs",
		stats.Visible, stats.Culled, stats.Empty, stats.Vertices, stats.LastDrawTimeUs)
}

// Stats returns the statistics of the last Draw.
func (r *Renderer) Stats() Stats {
	return r.stats
}
