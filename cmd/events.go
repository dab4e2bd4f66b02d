package main

import (
	"math"
	"strconv"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/halo/internal/app"
	"github.com/irfansharif/halo/internal/config"
	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/sim"
)

const (
	lookSensitivity = 0.15 // degrees per pixel of drag
	sprintFactor    = 4.0
	spawnSpread     = 8 // blocks around the camera new lamps land within
	minFOV, maxFOV  = 20, 110
)

// EventHandlers manages all event handling for the application.
type EventHandlers struct {
	window  *glfw.Window
	session *app.Session
	lamps   *sim.World
	view    *app.View
	speed   float64 // blocks per second

	// Drag-to-look state (per-gesture), captured on mouse press.
	isDragging                       bool
	dragStartMouseX, dragStartMouseY float64
	dragStartYaw, dragStartPitch     float32

	// Period pauses the simulation; rendering carries on.
	paused bool

	// Input buffer for numeric input (batch spawns and removals). Accumulates
	// digits until an action key (C, X) is pressed.
	inputBuffer string
}

// NewEventHandlers creates a new event handlers manager.
func NewEventHandlers(window *glfw.Window, session *app.Session, lamps *sim.World, view *app.View, cfg config.Config) *EventHandlers {
	eh := &EventHandlers{
		window:  window,
		session: session,
		lamps:   lamps,
		view:    view,
		speed:   float64(cfg.Camera.MoveSpeed),
	}
	eh.SetupCallbacks(window)
	return eh
}

// SetupCallbacks configures all GLFW event callbacks.
func (eh *EventHandlers) SetupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(wnd *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleKey(key, action, mods) // for various actions
	})
	window.SetMouseButtonCallback(func(wnd *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleMouseButton(button, action) // for looking around
	})
	window.SetCursorPosCallback(func(wnd *glfw.Window, xpos, ypos float64) {
		eh.updateLook(xpos, ypos)
	})
	window.SetScrollCallback(func(wnd *glfw.Window, _, zoomDelta float64) {
		eh.performZoom(zoomDelta) // narrows or widens the field of view
	})
	window.SetFramebufferSizeCallback(func(wnd *glfw.Window, newW, newH int) {
		eh.view.SetViewport(newW, newH)
	})
}

// handleKey handles keyboard input events. Movement keys are polled every
// frame instead, see handleContinuousMovement.
func (eh *EventHandlers) handleKey(key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}

	// Handle number keys for input.
	if key >= glfw.Key0 && key <= glfw.Key9 {
		eh.inputBuffer += string(rune('0' + int(key-glfw.Key0)))
		return
	}
	if key == glfw.KeyEscape {
		eh.inputBuffer = ""
		return
	}

	switch key {
	case glfw.KeyB:
		eh.session.Renderer().SetDebugBounds(!eh.session.Renderer().DebugBounds())
	case glfw.KeyP:
		eh.session.Cache().PrintStats()
	case glfw.KeyV:
		if err := eh.session.Validate(); err == nil {
			logging.Base().Infof("frame %d: index and cache are consistent", eh.session.Frames())
		}
	case glfw.KeyPeriod:
		eh.paused = !eh.paused
	case glfw.KeyF5:
		eh.handleReload()
	case glfw.KeyR:
		eh.handleResetKey()
	case glfw.KeyC:
		eh.handleSpawnKey()
	case glfw.KeyX:
		eh.handleRemoveKey()
	case glfw.KeyTab:
		next := true
		if (mods & glfw.ModShift) != 0 {
			next = false
		}
		eh.handleLampNavigation(next)
	}
	eh.inputBuffer = ""
}

// handleContinuousMovement moves the camera while W/A/S/D (horizontal),
// Space/Shift (vertical) are held. Control sprints.
func (eh *EventHandlers) handleContinuousMovement(dt float64) {
	held := func(key glfw.Key) float64 {
		if eh.window.GetKey(key) == glfw.Press {
			return 1
		}
		return 0
	}
	forward := held(glfw.KeyW) - held(glfw.KeyS)
	right := held(glfw.KeyD) - held(glfw.KeyA)
	up := held(glfw.KeySpace) - held(glfw.KeyLeftShift)
	if forward == 0 && right == 0 && up == 0 {
		return // nothing to do
	}

	step := eh.speed * dt
	if held(glfw.KeyLeftControl) > 0 {
		step *= sprintFactor
	}
	eh.view.Move(forward*step, right*step, up*step)
}

// handleResetKey places the camera at the closest lamp and selects it for
// subsequent tabs/shift+tabs.
func (eh *EventHandlers) handleResetKey() {
	closest := eh.lamps.Closest(eh.view.Eye(), 1)
	if len(closest) == 0 {
		return // nothing to do
	}
	eh.lookAt(closest[0])
}

// handleLampNavigation handles tab and shift+tab key presses.
func (eh *EventHandlers) handleLampNavigation(next bool) {
	if l := eh.lamps.Iter(next); l != nil {
		eh.lookAt(l)
	}
}

// lookAt backs the camera away from l, facing it.
func (eh *EventHandlers) lookAt(l *sim.Lamp) {
	eh.view.ResetTo(l.Pos().Add(geom.MakeBlockPos(0, 2, 6)))
	eh.view.SetPitch(-15)
}

// handleSpawnKey handles C key presses, spawning one lamp (or as many as
// typed beforehand) around the camera.
func (eh *EventHandlers) handleSpawnKey() {
	eye := eh.view.Eye()
	at := geom.MakeBlockPos(int32(math.Floor(eye[0])), int32(math.Floor(eye[1])), int32(math.Floor(eye[2])))
	n := eh.parseCount()
	for i := 0; i < n; i++ {
		l := eh.lamps.SpawnNear(at, spawnSpread)
		if l == nil {
			break
		}
		if err := eh.session.Register(l); err != nil {
			logging.Base().Warnf("Failed to register lamp: %v", err)
		}
	}
}

// handleRemoveKey handles X key presses, burning out the closest lamp (or as
// many as typed beforehand).
func (eh *EventHandlers) handleRemoveKey() {
	for _, l := range eh.lamps.Closest(eh.view.Eye(), eh.parseCount()) {
		eh.lamps.Remove(l.ID())
	}
}

// handleReload drops everything the session holds and registers the world
// from scratch, as on a world reload.
func (eh *EventHandlers) handleReload() {
	eh.session.Reset()
	for _, l := range eh.lamps.Lamps() {
		if err := eh.session.Register(l); err != nil {
			logging.Base().Warnf("Failed to register lamp: %v", err)
		}
	}
	logging.Base().Infof("reloaded %d lamps", eh.lamps.Len())
}

// handleMouseButton handles mouse button events for looking around.
func (eh *EventHandlers) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return // nothing to do
	}

	switch action {
	case glfw.Press:
		eh.isDragging = true
		eh.dragStartMouseX, eh.dragStartMouseY = eh.window.GetCursorPos()
		eh.dragStartYaw, eh.dragStartPitch = eh.view.Yaw, eh.view.Pitch
	case glfw.Release:
		eh.isDragging = false
	}
}

// updateLook turns the camera based on mouse movement since the drag began.
func (eh *EventHandlers) updateLook(xpos, ypos float64) {
	if !eh.isDragging {
		return
	}

	dx := float32(xpos-eh.dragStartMouseX) * lookSensitivity
	dy := float32(ypos-eh.dragStartMouseY) * lookSensitivity
	eh.view.Yaw, eh.view.Pitch = eh.dragStartYaw, eh.dragStartPitch
	eh.view.Turn(dx, -dy)
}

// performZoom narrows (positive delta) or widens the field of view.
func (eh *EventHandlers) performZoom(zoomDelta float64) {
	fov := eh.view.FOV - float32(zoomDelta)*5
	eh.view.FOV = mgl32.Clamp(fov, minFOV, maxFOV)
}

// parseCount consumes the numeric input buffer, defaulting to 1.
func (eh *EventHandlers) parseCount() int {
	input := eh.inputBuffer
	eh.inputBuffer = ""
	if input == "" {
		return 1
	}
	count, err := strconv.Atoi(input)
	if err != nil || count < 1 {
		return 1
	}
	return count
}
