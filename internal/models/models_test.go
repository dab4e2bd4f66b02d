package models

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/marker"
)

func TestBuiltin(t *testing.T) {
	lib, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, 4, lib.Len())

	lamp := marker.Appearance{Kind: marker.KindLamp}
	general, err := lib.Quads(lamp, geom.FacingNone)
	require.NoError(t, err)
	assert.Len(t, general, 2)

	for _, face := range geom.Directions {
		quads, err := lib.Quads(lamp, face)
		require.NoError(t, err)
		require.Len(t, quads, 1, face.String())
		assert.True(t, Normal(quads[0].Corners).ApproxEqual(face.Normal()), "%s quad faces %v", face, Normal(quads[0].Corners))
	}

	up, err := lib.Quads(marker.Appearance{Kind: marker.KindFixture}, geom.Up)
	require.NoError(t, err)
	assert.Len(t, up, 2, "box face plus explicit quad")
}

func TestMissingModel(t *testing.T) {
	lib, err := Builtin()
	require.NoError(t, err)

	_, err = lib.Quads(marker.Appearance{Kind: marker.KindBeacon, Variant: 7}, geom.Up)
	assert.True(t, errors.Is(err, ErrNoModel))

	// A known model without quads for a face is not an error.
	quads, err := lib.Quads(marker.Appearance{Kind: marker.KindLamp, Variant: 1}, geom.FacingNone)
	require.NoError(t, err)
	assert.Empty(t, quads)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown kind": "models:\n  - kind: torch\n",
		"short box":    "models:\n  - kind: lamp\n    boxes: [[0, 0, 0]]\n",
		"uv mismatch":  "models:\n  - kind: lamp\n    general:\n      - path: [0,0,0, 1,0,0, 1,1,0]\n        uv: [0,0]\n",
		"bad face":     "models:\n  - kind: lamp\n    faces:\n      sideways:\n        - path: [0,0,0, 1,0,0, 1,1,0]\n          uv: [0,0, 1,0, 1,1]\n",
		"duplicate":    "models:\n  - kind: lamp\n  - kind: lamp\n",
		"not yaml":     "models: [",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestNormal(t *testing.T) {
	tri := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	assert.True(t, Normal(tri).ApproxEqual(mgl32.Vec3{0, 0, 1}))

	degenerate := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}
	assert.Equal(t, mgl32.Vec3{}, Normal(degenerate))
}
