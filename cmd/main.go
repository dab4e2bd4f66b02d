package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/halo/internal/app"
	"github.com/irfansharif/halo/internal/config"
	"github.com/irfansharif/halo/internal/gpu"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/marker"
	"github.com/irfansharif/halo/internal/memory"
	"github.com/irfansharif/halo/internal/models"
	"github.com/irfansharif/halo/internal/render"
	"github.com/irfansharif/halo/internal/sim"
)

const world marker.WorldID = "overworld"

var (
	configPath = flag.String("config", os.Getenv("HALO_CONFIG"), "path to a YAML config file")
	modelsPath = flag.String("models", "", "path to a YAML model library, replacing the built-in one")

	runtimeLogger = logging.Named("runtime")
)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
}

func makeTitle(fps float64, avgFrameTime float64, renderStats render.Stats, memStats memory.Stats, lamps int) string {
	return fmt.Sprintf("Halo (%.1f FPS, %.2fms/frame, %d lamps, %d/%d cells drawn, %s vertices, %.2fµs/draw, %s GPU)",
		fps,
		avgFrameTime,
		lamps,
		renderStats.Visible,
		memStats.TotalBatches,
		humanize.Comma(int64(renderStats.Vertices)),
		renderStats.LastDrawTimeUs,
		humanize.IBytes(uint64(memStats.TotalGPUBytes)),
	)
}

func main() {
	flag.Parse()
	log := logging.Base()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var library *models.Library
	if *modelsPath != "" {
		library, err = models.Load(*modelsPath)
	} else {
		library, err = models.Builtin()
	}
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}
	log.Infof("OpenGL %s", gl.GoStr(gl.GetString(gl.VERSION)))

	device := gpu.NewDevice()
	shaders, err := gpu.NewShaderManager()
	if err != nil {
		log.Fatalf("Failed to build shaders: %v", err)
	}
	defer shaders.Delete()
	drawer, err := gpu.NewDrawer(device, shaders)
	if err != nil {
		log.Fatalf("Failed to set up drawer: %v", err)
	}
	defer drawer.Delete()

	session, err := app.NewSession(cfg, world, app.Deps{Device: device, Drawer: drawer, Models: library})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer session.Close()

	lamps := sim.New(world, cfg.Sim)
	for _, l := range lamps.Lamps() {
		if err := session.Register(l); err != nil {
			log.Fatalf("Failed to register lamp: %v", err)
		}
	}

	cw, ch := window.GetFramebufferSize()
	view := app.NewView(cw, ch, cfg.Camera)
	view.Pos[1] = 24

	eventHandlers := NewEventHandlers(window, session, lamps, view, cfg)

	tick := time.Second / time.Duration(cfg.Sim.TickRate)
	var behind time.Duration

	frameCount, frameTimeSum := 0, 0.0
	lastFPSUpdate, lastFrame := time.Now(), time.Now()

	// Main loop.
	for !window.ShouldClose() {
		frameStart := time.Now()
		dt := frameStart.Sub(lastFrame)
		lastFrame = frameStart

		eventHandlers.handleContinuousMovement(dt.Seconds())

		if !eventHandlers.paused {
			for behind += dt; behind >= tick; behind -= tick {
				// Tick before registering spawns: a spawn may take a block
				// another lamp just left.
				ev := lamps.Step()
				session.Tick()
				for _, l := range ev.Spawned {
					if err := session.Register(l); err != nil {
						log.Warnf("Dropping spawned lamp: %v", err)
					}
				}
			}
		}

		w, h := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(0.02, 0.02, 0.05, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		stats := session.Frame(view)
		if len(stats.Sync.Failed) > 0 {
			runtimeLogger.Debugf("frame %d: %d cells failed to build", stats.Frame, len(stats.Sync.Failed))
		}

		window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0 // ms
		frameTimeSum += frameTime

		frameCount++
		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			memStats := session.Cache().Stats()
			renderStats := session.Renderer().Stats()
			window.SetTitle(makeTitle(fps, avgFrameTime, renderStats, memStats, lamps.Len()))

			runtimeLogger.Debug("=== Performance statistics ===")
			runtimeLogger.Debugf("Frame rate:     %.1f FPS (%.2f ms/frame)", fps, avgFrameTime)
			runtimeLogger.Debugf("Cells:          %d cached, %d drawn, %d culled, %d empty", memStats.TotalBatches, renderStats.Visible, renderStats.Culled, renderStats.Empty)
			runtimeLogger.Debugf("Geometry:       %d vertices cached, %d drawn", memStats.TotalVertices, renderStats.Vertices)
			runtimeLogger.Debugf("GPU memory:     %s", humanize.IBytes(uint64(memStats.TotalGPUBytes)))
			runtimeLogger.Debugf("Timing:         %.2f µs (last draw), %.2f µs (last sync)", renderStats.LastDrawTimeUs, memStats.LastSyncTimeUs)
			runtimeLogger.Debugf("Compaction:     %d events, %.2f µs (last)", memStats.CompactionEvents, memStats.LastCompactionTimeUs)
			runtimeLogger.Debugf("Simulation:     %d lamps, %d steps", lamps.Len(), lamps.Steps())
			runtimeLogger.Debug("==============================")
		}
	}
}
