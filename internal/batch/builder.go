// Package batch turns the markers of one cell into a single vertex stream.
//
// Geometry is generated in cell-local space: the origin is the cell's minimum
// corner, so vertex coordinates stay small and exact in float32 no matter
// how far the cell is from the world origin. The render pass supplies the
// origin (relative to the camera) at draw time.
package batch

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/marker"
	"github.com/irfansharif/halo/internal/models"
	"github.com/irfansharif/halo/internal/palette"
)

// FloatsPerVertex is the vertex layout: position (3), texture coordinates
// (2), color (4), normal (3).
const FloatsPerVertex = 12

// ErrNoMembers is returned when asked to build an empty cell.
var ErrNoMembers = errors.New("no members")

// faces is the order quads are gathered in: general quads first, then one
// list per direction.
var faces = append([]geom.Facing{geom.FacingNone}, geom.Directions...)

// Geometry is the output of a build.
type Geometry struct {
	Cell   geom.Cell
	Origin geom.BlockPos // world position of the cell-local origin

	// Vertices aliases the builder's scratch stream and is only valid until
	// the next Build.
	Vertices    []float32
	VertexCount int

	Box     geom.Box        // world space, covers every member
	Members []marker.Member // sorted by ID
	Digest  uint64          // marker.SetDigest(Members)
}

// Options configures a Builder.
type Options struct {
	CellSize    int32
	Margin      float64    // grows each member's block box
	DefaultTint color.RGBA // tint for markers without a glow color
}

// Builder builds cell geometry. It reuses its scratch buffers between builds
// and is not safe for concurrent use.
type Builder struct {
	models models.Source
	opts   Options

	scratch []float32
	coords  []float64
	quads   [][]models.Quad
	corners []mgl32.Vec3

	stats  Stats
	logger *zap.SugaredLogger
}

// Stats tracks builder activity since construction.
type Stats struct {
	Builds         int
	Vertices       int // emitted across all builds
	SkippedMembers int // members without a model
}

// New returns a builder drawing markers with the given model source.
func New(src models.Source, opts Options) *Builder {
	if opts.CellSize <= 0 {
		opts.CellSize = geom.DefaultCellSize
	}
	return &Builder{
		models: src,
		opts:   opts,
		quads:  make([][]models.Quad, len(faces)),
		logger: logging.Named("batch"),
	}
}

// Stats returns builder statistics.
func (b *Builder) Stats() Stats { return b.stats }

// Build generates geometry for the given members of cell. Every member must
// lie in cell. Invisible members are folded into the bounding box and the
// digest but emit no vertices; members whose model can't be found are
// skipped with a warning.
func (b *Builder) Build(cell geom.Cell, members []marker.Object) (Geometry, error) {
	if len(members) == 0 {
		return Geometry{}, fmt.Errorf("building %s: %w", cell, ErrNoMembers)
	}

	origin := cell.Min(b.opts.CellSize)
	g := Geometry{
		Cell:    cell,
		Origin:  origin,
		Box:     emptyBox(),
		Members: make([]marker.Member, 0, len(members)),
	}
	b.scratch = b.scratch[:0]

	for _, o := range members {
		m := marker.MemberOf(o)
		if c := geom.CellOf(m.Pos, b.opts.CellSize); c != cell {
			return Geometry{}, fmt.Errorf("building %s: member %s at %s belongs to %s", cell, m.ID, m.Pos, c)
		}
		g.Members = append(g.Members, m)
		g.Box = g.Box.Union(geom.BlockBox(m.Pos).Expand(b.opts.Margin))

		if !m.Fingerprint.Visible {
			continue
		}
		if err := b.emit(m, origin); err != nil {
			b.stats.SkippedMembers++
			logging.Base().Warnf("skipping %s in %s: %v", m.ID, cell, err)
		}
	}

	slices.SortFunc(g.Members, func(x, y marker.Member) int {
		return slices.Compare(x.ID[:], y.ID[:])
	})
	g.Digest = marker.SetDigest(g.Members)
	g.Vertices = b.scratch
	g.VertexCount = len(b.scratch) / FloatsPerVertex

	b.stats.Builds++
	b.stats.Vertices += g.VertexCount
	b.logger.Debugf("built %s: %d members, %d vertices, %s", cell, len(g.Members), g.VertexCount, g.Box)
	return g, nil
}

// emit appends the member's triangles to the scratch stream. Either all of
// the member's quads are emitted or none are. Quads authored for a covered
// side are left out.
func (b *Builder) emit(m marker.Member, origin geom.BlockPos) error {
	appearance := m.Fingerprint.Appearance
	for i, face := range faces {
		if m.Fingerprint.Covered.Has(face) {
			b.quads[i] = nil
			continue
		}
		quads, err := b.models.Quads(appearance, face)
		if err != nil {
			return err
		}
		b.quads[i] = quads
	}

	tint := palette.Floats(palette.Tint(appearance.Glow, b.opts.DefaultTint))
	transform := mgl32.Translate3D(m.Pos.Sub(origin).Vec3().Elem()).
		Mul4(geom.FacingRotation(appearance.Facing))

	mark := len(b.scratch)
	for _, quads := range b.quads {
		for _, q := range quads {
			if err := b.emitQuad(q, transform, tint); err != nil {
				b.scratch = b.scratch[:mark]
				return err
			}
		}
	}
	return nil
}

func (b *Builder) emitQuad(q models.Quad, transform mgl32.Mat4, tint [4]float32) error {
	b.corners = b.corners[:0]
	for _, c := range q.Corners {
		b.corners = append(b.corners, mgl32.TransformCoordinate(c, transform))
	}
	normal := models.Normal(b.corners)

	indices, coords, err := triangulate(b.corners, normal, b.coords)
	b.coords = coords
	if err != nil {
		return err
	}
	for _, idx := range indices {
		p, uv := b.corners[idx], q.UVs[idx]
		b.scratch = append(b.scratch,
			p[0], p[1], p[2],                   // position
			uv[0], uv[1],                       // texture
			tint[0], tint[1], tint[2], tint[3], // color
			normal[0], normal[1], normal[2],    // normal
		)
	}
	return nil
}

func emptyBox() geom.Box {
	return geom.Box{
		MinX: math.Inf(1), MinY: math.Inf(1), MinZ: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1), MaxZ: math.Inf(-1),
	}
}
