// Package geom provides the 3D primitives shared across the halo pipeline:
// - integer block positions and the grid cells that partition them
// - axis-aligned bounding boxes in world space
// - facings and the rotations applied to oriented markers
// - view frustums for culling
package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultCellSize matches the world's native section size (16^3 blocks).
const DefaultCellSize = 16

// BlockPos is an integer world position.
type BlockPos struct {
	X, Y, Z int32
}

// Cell identifies a cubic region of CellSize^3 blocks. Cells have no lifetime
// of their own; they are plain keys.
type Cell struct {
	X, Y, Z int32
}

func MakeBlockPos(x, y, z int32) BlockPos { return BlockPos{X: x, Y: y, Z: z} }
func MakeCell(x, y, z int32) Cell         { return Cell{X: x, Y: y, Z: z} }

func (p BlockPos) Add(q BlockPos) BlockPos { return BlockPos{p.X + q.X, p.Y + q.Y, p.Z + q.Z} }
func (p BlockPos) Sub(q BlockPos) BlockPos { return BlockPos{p.X - q.X, p.Y - q.Y, p.Z - q.Z} }

func (p BlockPos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }
func (c Cell) String() string     { return fmt.Sprintf("[%d,%d,%d]", c.X, c.Y, c.Z) }

// Vec3 returns the position as a float vector (the block's minimum corner).
func (p BlockPos) Vec3() mgl32.Vec3 { return mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)} }

// floorDiv divides rounding towards negative infinity, so that block -1 lands
// in cell -1 rather than cell 0.
func floorDiv(v, size int32) int32 {
	q := v / size
	if v%size != 0 && v < 0 {
		q--
	}
	return q
}

// CellOf returns the cell containing the given block.
func CellOf(p BlockPos, size int32) Cell {
	return Cell{floorDiv(p.X, size), floorDiv(p.Y, size), floorDiv(p.Z, size)}
}

// Min returns the cell's minimum corner block.
func (c Cell) Min(size int32) BlockPos {
	return BlockPos{c.X * size, c.Y * size, c.Z * size}
}

// Less orders cells by (X, Y, Z). Used wherever iteration order must be
// deterministic.
func (c Cell) Less(o Cell) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// CompareCells is a three-way comparison consistent with Less, for use with
// slices.SortFunc.
func CompareCells(a, b Cell) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// Box is an axis-aligned box in world space. Kept in float64 since world
// coordinates can be far larger than float32 represents exactly.
type Box struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

func MakeBox(minX, minY, minZ, maxX, maxY, maxZ float64) Box {
	return Box{MinX: minX, MinY: minY, MinZ: minZ, MaxX: maxX, MaxY: maxY, MaxZ: maxZ}
}

// BlockBox returns the unit box occupied by a block.
func BlockBox(p BlockPos) Box {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return Box{x, y, z, x + 1, y + 1, z + 1}
}

// Expand grows the box by m on every side.
func (b Box) Expand(m float64) Box {
	return Box{b.MinX - m, b.MinY - m, b.MinZ - m, b.MaxX + m, b.MaxY + m, b.MaxZ + m}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	return Box{
		math.Min(b.MinX, o.MinX), math.Min(b.MinY, o.MinY), math.Min(b.MinZ, o.MinZ),
		math.Max(b.MaxX, o.MaxX), math.Max(b.MaxY, o.MaxY), math.Max(b.MaxZ, o.MaxZ),
	}
}

// Offset translates the box.
func (b Box) Offset(dx, dy, dz float64) Box {
	return Box{b.MinX + dx, b.MinY + dy, b.MinZ + dz, b.MaxX + dx, b.MaxY + dy, b.MaxZ + dz}
}

// Intersects reports whether two boxes overlap (touching counts).
func (b Box) Intersects(o Box) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX &&
		b.MinY <= o.MaxY && b.MaxY >= o.MinY &&
		b.MinZ <= o.MaxZ && b.MaxZ >= o.MinZ
}

// Corners returns the eight corners of the box.
func (b Box) Corners() [8][3]float64 {
	return [8][3]float64{
		{b.MinX, b.MinY, b.MinZ}, {b.MaxX, b.MinY, b.MinZ},
		{b.MinX, b.MaxY, b.MinZ}, {b.MaxX, b.MaxY, b.MinZ},
		{b.MinX, b.MinY, b.MaxZ}, {b.MaxX, b.MinY, b.MaxZ},
		{b.MinX, b.MaxY, b.MaxZ}, {b.MaxX, b.MaxY, b.MaxZ},
	}
}

func (b Box) String() string {
	return fmt.Sprintf("box[(%.2f,%.2f,%.2f)->(%.2f,%.2f,%.2f)]", b.MinX, b.MinY, b.MinZ, b.MaxX, b.MaxY, b.MaxZ)
}
