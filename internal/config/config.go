// Package config loads halo's settings: built-in defaults, overlaid by an
// optional YAML file, overlaid by a handful of environment variables.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/irfansharif/halo/internal/geom"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds every tunable of the pipeline and the demo binary.
type Config struct {
	Cache  CacheConfig  `yaml:"cache"`
	Window WindowConfig `yaml:"window"`
	Camera CameraConfig `yaml:"camera"`
	Sim    SimConfig    `yaml:"sim"`
	Debug  DebugConfig  `yaml:"debug"`
}

// CacheConfig covers batching and GPU buffer management.
type CacheConfig struct {
	CellSize          int32   `yaml:"cell_size"`            // blocks per cell side
	BoundsMargin      float64 `yaml:"bounds_margin"`        // per-marker bounding box margin
	DefaultTint       string  `yaml:"default_tint"`         // hex color used when a marker's glow is unset
	CompactionFrames  int     `yaml:"compaction_frames"`    // frames between compaction attempts, 0 disables
	ValidationFrames  int     `yaml:"validation_frames"`    // frames between integrity checks, 0 disables
	DefragMaxPerFrame int     `yaml:"defrag_max_per_frame"` // buffers shrunk per compaction attempt
}

// WindowConfig sizes the demo window.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// CameraConfig sets up the demo camera.
type CameraConfig struct {
	FOV       float32 `yaml:"fov"` // vertical, degrees
	Near      float32 `yaml:"near"`
	Far       float32 `yaml:"far"`
	MoveSpeed float32 `yaml:"move_speed"` // blocks per second
}

// SimConfig drives the demo simulation.
type SimConfig struct {
	Seed        int64   `yaml:"seed"` // 0 picks one from the clock
	Lamps       int     `yaml:"lamps"`
	Radius      int32   `yaml:"radius"`        // lamps are scattered within this many blocks of the origin
	TickRate    int     `yaml:"tick_rate"`     // simulation steps per second
	ChurnPerMil int     `yaml:"churn_per_mil"` // per-step, per-lamp odds (out of 1000) of a mutation
	SuppressPct float64 `yaml:"suppress_pct"`  // fraction of lamps spawned invisible
}

// DebugConfig toggles diagnostics.
type DebugConfig struct {
	Bounds bool `yaml:"bounds"` // draw the bounding box of every visible cell
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			CellSize:          geom.DefaultCellSize,
			BoundsMargin:      0.5,
			DefaultTint:       "#222222",
			CompactionFrames:  60,
			ValidationFrames:  100,
			DefragMaxPerFrame: 1,
		},
		Window: WindowConfig{
			Width:  1280,
			Height: 960,
			Title:  "Halo",
		},
		Camera: CameraConfig{
			FOV:       70,
			Near:      0.05,
			Far:       512,
			MoveSpeed: 24,
		},
		Sim: SimConfig{
			Lamps:       2000,
			Radius:      128,
			TickRate:    20,
			ChurnPerMil: 2,
			SuppressPct: 0.05,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv applies HALO_SEED and HALO_DEBUG_BOUNDS.
func (c *Config) applyEnv() error {
	if s := os.Getenv("HALO_SEED"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: HALO_SEED value '%s': %v", ErrInvalid, s, err)
		}
		c.Sim.Seed = seed
	}
	if os.Getenv("HALO_DEBUG_BOUNDS") == "1" {
		c.Debug.Bounds = true
	}
	return nil
}

// Validate checks ranges and parses colors.
func (c Config) Validate() error {
	if c.Cache.CellSize <= 0 {
		return fmt.Errorf("%w: cell_size must be positive, got %d", ErrInvalid, c.Cache.CellSize)
	}
	if c.Cache.BoundsMargin < 0 {
		return fmt.Errorf("%w: bounds_margin must be non-negative, got %v", ErrInvalid, c.Cache.BoundsMargin)
	}
	if _, err := c.Cache.Tint(); err != nil {
		return err
	}
	if c.Cache.DefragMaxPerFrame < 0 || c.Cache.CompactionFrames < 0 || c.Cache.ValidationFrames < 0 {
		return fmt.Errorf("%w: frame cadences must be non-negative", ErrInvalid)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window dimensions %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		return fmt.Errorf("%w: fov must be in (0, 180), got %v", ErrInvalid, c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("%w: clip planes near=%v far=%v", ErrInvalid, c.Camera.Near, c.Camera.Far)
	}
	if c.Sim.Lamps < 0 || c.Sim.Radius <= 0 || c.Sim.TickRate <= 0 {
		return fmt.Errorf("%w: sim lamps=%d radius=%d tick_rate=%d", ErrInvalid, c.Sim.Lamps, c.Sim.Radius, c.Sim.TickRate)
	}
	if c.Sim.SuppressPct < 0 || c.Sim.SuppressPct > 1 {
		return fmt.Errorf("%w: suppress_pct must be in [0, 1], got %v", ErrInvalid, c.Sim.SuppressPct)
	}
	return nil
}

// Tint parses DefaultTint.
func (c CacheConfig) Tint() (color.RGBA, error) {
	col, err := colorful.Hex(c.DefaultTint)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: default_tint %q: %v", ErrInvalid, c.DefaultTint, err)
	}
	r, g, b := col.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
