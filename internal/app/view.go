package app

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/irfansharif/halo/internal/config"
	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/render"
)

const (
	minPitch = -89.0
	maxPitch = 89.0
)

// View manages the camera: position, orientation, and viewport. Yaw is
// measured in degrees clockwise from north (-Z), pitch in degrees above the
// horizon.
type View struct {
	Pos           mgl64.Vec3
	Yaw, Pitch    float32
	FOV           float32 // vertical, degrees
	Near, Far     float32
	Width, Height int
}

var _ render.Camera = (*View)(nil)

// NewView creates a camera at the origin looking north.
func NewView(width, height int, cfg config.CameraConfig) *View {
	return &View{
		FOV:    cfg.FOV,
		Near:   cfg.Near,
		Far:    cfg.Far,
		Width:  width,
		Height: height,
	}
}

// SetPitch sets the pitch, clamping to valid range.
func (v *View) SetPitch(pitch float32) {
	if pitch < minPitch {
		v.Pitch = minPitch
	} else if pitch > maxPitch {
		v.Pitch = maxPitch
	} else {
		v.Pitch = pitch
	}
}

// Turn rotates the camera by the given deltas, in degrees.
func (v *View) Turn(dyaw, dpitch float32) {
	v.Yaw = float32(math.Mod(float64(v.Yaw+dyaw), 360))
	v.SetPitch(v.Pitch + dpitch)
}

// SetViewport updates the viewport dimensions.
func (v *View) SetViewport(width, height int) {
	v.Width = width
	v.Height = height
}

// Forward returns the unit view direction.
func (v *View) Forward() mgl32.Vec3 {
	yaw, pitch := mgl32.DegToRad(v.Yaw), mgl32.DegToRad(v.Pitch)
	cp := float32(math.Cos(float64(pitch)))
	return mgl32.Vec3{
		cp * float32(math.Sin(float64(yaw))),
		float32(math.Sin(float64(pitch))),
		-cp * float32(math.Cos(float64(yaw))),
	}
}

// Move translates the camera relative to its heading: forward along the
// horizontal view direction, right perpendicular to it, up along +Y.
func (v *View) Move(forward, right, up float64) {
	yaw := float64(mgl32.DegToRad(v.Yaw))
	sin, cos := math.Sin(yaw), math.Cos(yaw)
	v.Pos = v.Pos.Add(mgl64.Vec3{
		forward*sin + right*cos,
		up,
		-forward*cos + right*sin,
	})
}

// ResetTo places the camera at pos looking north.
func (v *View) ResetTo(pos geom.BlockPos) {
	v.Pos = mgl64.Vec3{float64(pos.X) + 0.5, float64(pos.Y) + 0.5, float64(pos.Z) + 0.5}
	v.Yaw, v.Pitch = 0, 0
}

// Eye returns the camera position.
func (v *View) Eye() mgl64.Vec3 { return v.Pos }

// Projection returns the perspective projection.
func (v *View) Projection() mgl32.Mat4 {
	aspect := float32(1)
	if v.Height > 0 {
		aspect = float32(v.Width) / float32(v.Height)
	}
	return mgl32.Perspective(mgl32.DegToRad(v.FOV), aspect, v.Near, v.Far)
}

// Rotation returns the view matrix of a camera at the origin.
func (v *View) Rotation() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{}, v.Forward(), mgl32.Vec3{0, 1, 0})
}

// Frustum returns the camera-relative view frustum.
func (v *View) Frustum() geom.Frustum {
	return geom.FrustumFromMatrix(v.Projection().Mul4(v.Rotation()))
}
