// Package sim is the demo simulation: a field of lamps that drift, flicker,
// burn out and get replaced. It owns the objects halo tracks.
package sim

import (
	"bytes"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/config"
	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/marker"
	"github.com/irfansharif/halo/internal/palette"
)

const (
	minY, maxY   = -16, 48 // vertical band lamps spawn in
	maxDrift     = 3       // furthest a lamp moves in one step, per axis
	spawnRetries = 16
)

// Lamp is a single simulated marker.
type Lamp struct {
	id      uuid.UUID
	pos     geom.BlockPos
	world   marker.WorldID
	removed bool
	looks   marker.Appearance
	visible bool
	w       *World
}

var (
	_ marker.Object   = (*Lamp)(nil)
	_ marker.Occluder = (*Lamp)(nil)
)

func (l *Lamp) ID() uuid.UUID                 { return l.id }
func (l *Lamp) Pos() geom.BlockPos            { return l.pos }
func (l *Lamp) World() marker.WorldID         { return l.world }
func (l *Lamp) Removed() bool                 { return l.removed }
func (l *Lamp) Appearance() marker.Appearance { return l.looks }
func (l *Lamp) Visible() bool                 { return l.visible }

// Occluded returns the sides another lamp sits right up against.
func (l *Lamp) Occluded() geom.Sides {
	var covered geom.Sides
	if l.removed {
		return covered
	}
	for _, f := range geom.Directions {
		if _, ok := l.w.occupied[l.pos.Neighbor(f)]; ok {
			covered |= geom.SidesOf(f)
		}
	}
	return covered
}

// Events summarizes one Step.
type Events struct {
	Spawned   []*Lamp // new lamps the caller should register
	Removed   int
	Moved     int
	Recolored int
	Toggled   int
}

// World manages every lamp in one loaded world.
type World struct {
	id  marker.WorldID
	cfg config.SimConfig
	rng *rand.Rand

	lamps    map[uuid.UUID]*Lamp         // live lamps
	occupied map[geom.BlockPos]uuid.UUID // at most one lamp per block
	current  uuid.UUID                   // lamp selected by Iter
	steps    int
	logger   *zap.SugaredLogger
}

// New scatters cfg.Lamps lamps around the origin of world. A zero seed picks
// one from the clock.
func New(id marker.WorldID, cfg config.SimConfig) *World {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	w := &World{
		id:       id,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		lamps:    make(map[uuid.UUID]*Lamp),
		occupied: make(map[geom.BlockPos]uuid.UUID),
		logger:   logging.Named("sim"),
	}
	for i := 0; i < cfg.Lamps; i++ {
		w.Spawn()
	}
	w.logger.Infof("seeded %s with %d lamps (seed %d)", id, len(w.lamps), seed)
	return w
}

// ID returns the world's identifier.
func (w *World) ID() marker.WorldID { return w.id }

// Len returns the number of live lamps.
func (w *World) Len() int { return len(w.lamps) }

// Steps returns the number of steps taken.
func (w *World) Steps() int { return w.steps }

// Spawn places a new lamp on a random free block, or returns nil if it
// couldn't find one.
func (w *World) Spawn() *Lamp {
	for i := 0; i < spawnRetries; i++ {
		pos := w.randomPos()
		if _, ok := w.occupied[pos]; ok {
			continue
		}
		return w.place(pos)
	}
	return nil
}

// SpawnNear places a new lamp on a free block within spread blocks of pos, or
// returns nil if it couldn't find one.
func (w *World) SpawnNear(pos geom.BlockPos, spread int32) *Lamp {
	for i := 0; i < spawnRetries; i++ {
		d := func() int32 { return w.rng.Int31n(2*spread+1) - spread }
		at := pos.Add(geom.MakeBlockPos(d(), d(), d()))
		if _, ok := w.occupied[at]; ok {
			continue
		}
		return w.place(at)
	}
	return nil
}

func (w *World) place(pos geom.BlockPos) *Lamp {
	l := &Lamp{
		id:      uuid.New(),
		pos:     pos,
		world:   w.id,
		looks:   w.randomAppearance(),
		visible: w.rng.Float64() >= w.cfg.SuppressPct,
		w:       w,
	}
	w.lamps[l.id] = l
	w.occupied[pos] = l.id
	return l
}

func (w *World) randomPos() geom.BlockPos {
	r := w.cfg.Radius
	return geom.MakeBlockPos(
		w.rng.Int31n(2*r+1)-r,
		w.rng.Int31n(maxY-minY)+minY,
		w.rng.Int31n(2*r+1)-r,
	)
}

func (w *World) randomAppearance() marker.Appearance {
	a := marker.Appearance{Glow: palette.RandomGlow(w.rng)}
	switch n := w.rng.Intn(10); {
	case n < 7:
		a.Kind = marker.KindLamp
		a.Variant = uint8(w.rng.Intn(2))
	case n < 9:
		a.Kind = marker.KindFixture
		a.Facing = geom.Directions[w.rng.Intn(len(geom.Directions))]
	default:
		a.Kind = marker.KindBeacon
	}
	if w.rng.Intn(20) == 0 {
		a.Glow = 0 // drawn with the default tint
	}
	return a
}

// Step advances the simulation once. Each lamp mutates with odds
// ChurnPerMil/1000: it drifts, shimmers, blinks, or burns out. Burnt-out
// lamps are replaced so the population stays steady.
func (w *World) Step() Events {
	w.steps++
	var ev Events
	for _, l := range w.Lamps() {
		if w.rng.Intn(1000) >= w.cfg.ChurnPerMil {
			continue
		}
		switch n := w.rng.Intn(10); {
		case n < 4:
			if w.move(l) {
				ev.Moved++
			}
		case n < 7:
			l.looks.Glow = palette.Shimmered(l.looks.Glow, w.rng)
			if l.looks.Glow == 0 || w.rng.Intn(4) == 0 {
				l.looks.Glow = palette.RandomGlow(w.rng)
			}
			ev.Recolored++
		case n < 9:
			l.visible = !l.visible
			ev.Toggled++
		default:
			w.remove(l)
			ev.Removed++
		}
	}
	for len(w.lamps) < w.cfg.Lamps {
		l := w.Spawn()
		if l == nil {
			break
		}
		ev.Spawned = append(ev.Spawned, l)
	}
	return ev
}

func (w *World) move(l *Lamp) bool {
	d := func() int32 { return w.rng.Int31n(2*maxDrift+1) - maxDrift }
	to := l.pos.Add(geom.MakeBlockPos(d(), d(), d()))
	if _, ok := w.occupied[to]; ok {
		return false
	}
	delete(w.occupied, l.pos)
	l.pos = to
	w.occupied[to] = l.id
	return true
}

// Remove burns out the lamp with the given ID. The session notices on its
// next Tick.
func (w *World) Remove(id uuid.UUID) bool {
	l, ok := w.lamps[id]
	if ok {
		w.remove(l)
	}
	return ok
}

func (w *World) remove(l *Lamp) {
	l.removed = true
	delete(w.lamps, l.id)
	delete(w.occupied, l.pos)
}

// Lamps returns every live lamp sorted by ID.
func (w *World) Lamps() []*Lamp {
	lamps := make([]*Lamp, 0, len(w.lamps))
	for _, l := range w.lamps {
		lamps = append(lamps, l)
	}
	sort.Slice(lamps, func(i, j int) bool { return bytes.Compare(lamps[i].id[:], lamps[j].id[:]) < 0 })
	return lamps
}

// Lamp returns the live lamp with the given ID.
func (w *World) Lamp(id uuid.UUID) (*Lamp, bool) {
	l, ok := w.lamps[id]
	return l, ok
}

// Closest returns up to n lamps sorted by distance to p (closest first). Ties
// are broken by ID.
func (w *World) Closest(p mgl64.Vec3, n int) []*Lamp {
	type sortKey struct {
		distance float64
		lamp     *Lamp
	}

	keys := make([]sortKey, 0, len(w.lamps))
	for _, l := range w.lamps {
		center := mgl64.Vec3{float64(l.pos.X) + 0.5, float64(l.pos.Y) + 0.5, float64(l.pos.Z) + 0.5}
		keys = append(keys, sortKey{center.Sub(p).Len(), l})
	}
	sort.Slice(keys, func(i, j int) bool {
		if math.Abs(keys[i].distance-keys[j].distance) < 1e-9 {
			return bytes.Compare(keys[i].lamp.id[:], keys[j].lamp.id[:]) < 0
		}
		return keys[i].distance < keys[j].distance
	})

	if n > len(keys) {
		n = len(keys)
	}
	result := make([]*Lamp, n)
	for i := range result {
		result[i] = keys[i].lamp
	}
	return result
}

// Iter moves the selection to the next or previous lamp in ID order,
// wrapping around, and returns it. It returns nil when there are no lamps.
func (w *World) Iter(next bool) *Lamp {
	lamps := w.Lamps()
	if len(lamps) == 0 {
		w.current = uuid.Nil
		return nil
	}

	direction := 1
	if !next {
		direction = -1
	}

	pos := -1
	for i, l := range lamps {
		if l.id == w.current {
			pos = i
			break
		}
	}
	var newPos int
	switch {
	case pos >= 0:
		newPos = (pos + direction + len(lamps)) % len(lamps)
	case next:
		newPos = 0 // nothing selected, or the selection burnt out
	default:
		newPos = len(lamps) - 1
	}

	w.current = lamps[newPos].id
	return lamps[newPos]
}
