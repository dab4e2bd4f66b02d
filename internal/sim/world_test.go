package sim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/halo/internal/config"
	"github.com/irfansharif/halo/internal/geom"
)

func testConfig() config.SimConfig {
	cfg := config.Default().Sim
	cfg.Seed = 42
	cfg.Lamps = 200
	cfg.Radius = 32
	return cfg
}

func TestNewScattersDistinctLamps(t *testing.T) {
	w := New("overworld", testConfig())
	require.Equal(t, 200, w.Len())

	seen := make(map[geom.BlockPos]bool)
	for _, l := range w.Lamps() {
		assert.False(t, seen[l.Pos()], "two lamps at %s", l.Pos())
		seen[l.Pos()] = true

		p := l.Pos()
		assert.LessOrEqual(t, p.X, int32(32))
		assert.GreaterOrEqual(t, p.X, int32(-32))
		assert.GreaterOrEqual(t, p.Y, int32(minY))
		assert.Less(t, p.Y, int32(maxY))
		assert.Equal(t, w.ID(), l.World())
		assert.False(t, l.Removed())
	}
}

func TestSeedIsReproducible(t *testing.T) {
	a, b := New("overworld", testConfig()), New("overworld", testConfig())
	var pa, pb []geom.BlockPos
	for _, l := range a.Lamps() {
		pa = append(pa, l.Pos())
	}
	for _, l := range b.Lamps() {
		pb = append(pb, l.Pos())
	}
	// IDs are random, so compare the multiset of positions.
	assert.ElementsMatch(t, pa, pb)
}

func TestSuppressed(t *testing.T) {
	cfg := testConfig()
	cfg.SuppressPct = 1
	w := New("overworld", cfg)
	for _, l := range w.Lamps() {
		assert.False(t, l.Visible())
	}
}

func TestStepChurns(t *testing.T) {
	cfg := testConfig()
	cfg.ChurnPerMil = 1000
	w := New("overworld", cfg)
	before := w.Lamps()

	ev := w.Step()
	assert.Equal(t, 1, w.Steps())
	assert.Positive(t, ev.Moved+ev.Recolored+ev.Toggled)
	assert.Positive(t, ev.Removed)
	assert.Len(t, ev.Spawned, ev.Removed, "population is replenished")
	assert.Equal(t, cfg.Lamps, w.Len())

	removed := 0
	for _, l := range before {
		if l.Removed() {
			removed++
			_, ok := w.Lamp(l.ID())
			assert.False(t, ok)
		}
	}
	assert.Equal(t, ev.Removed, removed)

	occupied := make(map[geom.BlockPos]bool)
	for _, l := range w.Lamps() {
		assert.False(t, occupied[l.Pos()])
		occupied[l.Pos()] = true
	}
}

func TestStepWithoutChurnIsStill(t *testing.T) {
	cfg := testConfig()
	cfg.ChurnPerMil = 0
	w := New("overworld", cfg)
	ev := w.Step()
	assert.Equal(t, Events{}, ev)
}

func TestClosest(t *testing.T) {
	w := New("overworld", testConfig())
	eye := mgl64.Vec3{0, 0, 0}
	closest := w.Closest(eye, 10)
	require.Len(t, closest, 10)

	dist := func(l *Lamp) float64 {
		p := l.Pos()
		return mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y) + 0.5, float64(p.Z) + 0.5}.Len()
	}
	for i := 1; i < len(closest); i++ {
		assert.LessOrEqual(t, dist(closest[i-1]), dist(closest[i]))
	}
	assert.Len(t, w.Closest(eye, 1000), w.Len())
}

func TestIter(t *testing.T) {
	cfg := testConfig()
	cfg.Lamps = 3
	w := New("overworld", cfg)
	lamps := w.Lamps()

	assert.Equal(t, lamps[0], w.Iter(true))
	assert.Equal(t, lamps[1], w.Iter(true))
	assert.Equal(t, lamps[0], w.Iter(false))
	assert.Equal(t, lamps[2], w.Iter(false), "wraps around")

	empty := New("overworld", config.SimConfig{Seed: 1, Radius: 4})
	assert.Nil(t, empty.Iter(true))
}

func TestSpawnNearAndRemove(t *testing.T) {
	cfg := testConfig()
	cfg.Lamps = 0
	w := New("overworld", cfg)

	origin := geom.MakeBlockPos(100, 10, -100)
	l := w.SpawnNear(origin, 2)
	require.NotNil(t, l)
	d := l.Pos().Sub(origin)
	for _, v := range []int32{d.X, d.Y, d.Z} {
		assert.LessOrEqual(t, v, int32(2))
		assert.GreaterOrEqual(t, v, int32(-2))
	}

	// A single-block neighbourhood only fits one lamp.
	assert.Nil(t, w.SpawnNear(l.Pos(), 0))

	assert.True(t, w.Remove(l.ID()))
	assert.True(t, l.Removed())
	assert.False(t, w.Remove(l.ID()))
	assert.Zero(t, w.Len())
	assert.NotNil(t, w.SpawnNear(l.Pos(), 0), "the block is free again")
}

func TestOccludedByNeighbours(t *testing.T) {
	cfg := testConfig()
	cfg.Lamps = 0
	w := New("overworld", cfg)

	origin := geom.MakeBlockPos(0, 0, 0)
	a := w.SpawnNear(origin, 0)
	require.NotNil(t, a)
	assert.Zero(t, a.Occluded())

	above := w.SpawnNear(origin.Neighbor(geom.Up), 0)
	require.NotNil(t, above)
	assert.Equal(t, geom.SidesOf(geom.Up), a.Occluded())
	assert.Equal(t, geom.SidesOf(geom.Down), above.Occluded())

	require.True(t, w.Remove(above.ID()))
	assert.Zero(t, a.Occluded())
}
