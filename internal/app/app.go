// Package app ties halo's pieces together for one loaded world.
package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/batch"
	"github.com/irfansharif/halo/internal/config"
	"github.com/irfansharif/halo/internal/dirty"
	"github.com/irfansharif/halo/internal/index"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/marker"
	"github.com/irfansharif/halo/internal/memory"
	"github.com/irfansharif/halo/internal/models"
	"github.com/irfansharif/halo/internal/registry"
	"github.com/irfansharif/halo/internal/render"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Deps are the collaborators a session draws with.
type Deps struct {
	Device memory.Device
	Drawer render.Drawer
	Models models.Source
}

// Session owns all marker state for one world: the registry and its cell
// index, the dirty tracker, and the buffer cache with every GPU buffer it
// holds. It's created when a world is joined and closed when it's left.
type Session struct {
	cfg   config.Config
	world marker.WorldID

	index    *index.CellIndex
	dirty    *dirty.Tracker
	registry *registry.Registry
	builder  *batch.Builder
	cache    *memory.Cache
	renderer *render.Renderer

	frames int
	last   FrameStats
	closed bool
	logger *zap.SugaredLogger
}

// FrameStats describes one Frame.
type FrameStats struct {
	Frame  int
	Sync   memory.SyncResult
	Render render.Stats
}

// NewSession sets up an empty session for world.
func NewSession(cfg config.Config, world marker.WorldID, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tint, err := cfg.Cache.Tint()
	if err != nil {
		return nil, err
	}

	ix := index.New(cfg.Cache.CellSize)
	tracker := dirty.New()
	builder := batch.New(deps.Models, batch.Options{
		CellSize:    cfg.Cache.CellSize,
		Margin:      cfg.Cache.BoundsMargin,
		DefaultTint: tint,
	})
	s := &Session{
		cfg:      cfg,
		world:    world,
		index:    ix,
		dirty:    tracker,
		registry: registry.New(world, ix, tracker),
		builder:  builder,
		cache:    memory.NewCache(deps.Device, builder, memory.Options{DefragMaxPerFrame: cfg.Cache.DefragMaxPerFrame}),
		renderer: render.NewRenderer(deps.Drawer, render.Options{DebugBounds: cfg.Debug.Bounds}),
		logger:   logging.Named("session"),
	}
	s.logger.Debugf("joined %s (cell size %d)", world, cfg.Cache.CellSize)
	return s, nil
}

// World returns the world this session tracks.
func (s *Session) World() marker.WorldID { return s.world }

// Registry exposes the registry, for inspection.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Cache exposes the buffer cache, for inspection.
func (s *Session) Cache() *memory.Cache { return s.cache }

// Renderer exposes the renderer, for stats and debug toggles.
func (s *Session) Renderer() *render.Renderer { return s.renderer }

// Builder exposes the batch builder, for stats.
func (s *Session) Builder() *batch.Builder { return s.builder }

// Register starts tracking o. Markers from other worlds are ignored.
func (s *Session) Register(o marker.Object) error {
	if s.closed {
		return ErrClosed
	}
	if o.World() != s.world {
		return fmt.Errorf("registering %s: in world %q, session tracks %q", o.ID(), o.World(), s.world)
	}
	s.registry.Register(o)
	return nil
}

// Unregister stops tracking id.
func (s *Session) Unregister(id uuid.UUID) bool {
	if s.closed {
		return false
	}
	return s.registry.Unregister(id)
}

// Tick runs once per simulation step, dropping stale markers and following
// moved ones.
func (s *Session) Tick() (removed, moved int) {
	if s.closed {
		return 0, 0
	}
	return s.registry.Tick()
}

// Frame brings the cache up to date and draws it from cam: dirty cells are
// collected, rebuilt or evicted, and the cached batches are culled and
// drawn. Compaction and integrity checks run on their configured cadence.
func (s *Session) Frame(cam render.Camera) FrameStats {
	if s.closed {
		return FrameStats{}
	}
	s.frames++

	s.dirty.Scan(s.registry, s.cache)
	pending := s.dirty.CollectDirty(s.registry)
	stats := FrameStats{Frame: s.frames}
	stats.Sync = s.cache.Sync(pending.Rebuild, pending.Evict, s.registry)

	s.renderer.Draw(cam, s.cache)
	stats.Render = s.renderer.Stats()

	if n := s.cfg.Cache.CompactionFrames; n > 0 && s.frames%n == 0 {
		if err := s.cache.TryCompaction(); err != nil {
			logging.Base().Warnf("compaction: %v", err)
		}
	}
	if n := s.cfg.Cache.ValidationFrames; n > 0 && s.frames%n == 0 {
		s.Validate()
	}

	s.last = stats
	return stats
}

// Validate checks the index and the cache against each other, logging any
// inconsistency.
func (s *Session) Validate() error {
	err := errors.Join(s.index.Validate(), s.cache.ValidateIntegrity(s.registry))
	if err != nil {
		logging.Base().Errorf("frame %d: integrity check failed: %v", s.frames, err)
	}
	return err
}

// LastFrame returns the stats of the most recent Frame.
func (s *Session) LastFrame() FrameStats { return s.last }

// Frames returns the number of frames drawn.
func (s *Session) Frames() int { return s.frames }

// Reset forgets every marker and releases every buffer, as on a world
// reload. The session stays usable.
func (s *Session) Reset() {
	s.registry.Clear()
	s.cache.Release()
	s.dirty.Reset()
	s.logger.Debugf("reset %s", s.world)
}

// Close releases everything the session holds. It's safe to call twice.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.Reset()
	s.closed = true
	s.logger.Debugf("left %s after %d frames", s.world, s.frames)
}
