package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Facing is one of the six block directions, or FacingNone for markers that
// have no orientation.
type Facing uint8

const (
	FacingNone Facing = iota
	Down
	Up
	North
	South
	West
	East
)

// Directions lists the six real facings in a fixed order.
var Directions = []Facing{Down, Up, North, South, West, East}

func (f Facing) String() string {
	switch f {
	case Down:
		return "down"
	case Up:
		return "up"
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	default:
		return "none"
	}
}

// ParseFacing is the inverse of Facing.String. Unknown names map to
// FacingNone.
func ParseFacing(s string) Facing {
	for _, f := range Directions {
		if f.String() == s {
			return f
		}
	}
	return FacingNone
}

// Sides is a set of real facings.
type Sides uint8

// SidesOf returns the set of the given facings. FacingNone is ignored.
func SidesOf(fs ...Facing) Sides {
	var s Sides
	for _, f := range fs {
		if f != FacingNone {
			s |= 1 << f
		}
	}
	return s
}

// Has reports whether f is in the set.
func (s Sides) Has(f Facing) bool { return f != FacingNone && s&(1<<f) != 0 }

// Normal returns the outward unit vector of the facing (north is -Z, east
// is +X). FacingNone has no normal.
func (f Facing) Normal() mgl32.Vec3 {
	switch f {
	case Down:
		return mgl32.Vec3{0, -1, 0}
	case Up:
		return mgl32.Vec3{0, 1, 0}
	case North:
		return mgl32.Vec3{0, 0, -1}
	case South:
		return mgl32.Vec3{0, 0, 1}
	case West:
		return mgl32.Vec3{-1, 0, 0}
	case East:
		return mgl32.Vec3{1, 0, 0}
	default:
		return mgl32.Vec3{}
	}
}

// Neighbor returns the block adjacent to p on side f. FacingNone returns p.
func (p BlockPos) Neighbor(f Facing) BlockPos {
	n := f.Normal()
	return BlockPos{p.X + int32(n[0]), p.Y + int32(n[1]), p.Z + int32(n[2])}
}

// rotationDegrees returns the (x, y) rotation that turns a model authored
// facing down into the given facing.
func (f Facing) rotationDegrees() (x, y float32) {
	switch f {
	case West:
		return 90, 90
	case North:
		return 90, 0
	case South:
		return 90, 180
	case East:
		return 90, 270
	case Up:
		return 180, 0
	default: // down, none
		return 0, 0
	}
}

// FacingRotation returns the transform orienting a unit-block model towards
// f, rotating around the block center: Y first, then X.
func FacingRotation(f Facing) mgl32.Mat4 {
	x, y := f.rotationDegrees()
	if x == 0 && y == 0 {
		return mgl32.Ident4()
	}
	toCenter := mgl32.Translate3D(0.5, 0.5, 0.5)
	fromCenter := mgl32.Translate3D(-0.5, -0.5, -0.5)
	rotY := mgl32.HomogRotate3DY(mgl32.DegToRad(y))
	rotX := mgl32.HomogRotate3DX(mgl32.DegToRad(x))
	return toCenter.Mul4(rotY).Mul4(rotX).Mul4(fromCenter)
}
