// Package models holds the quad geometry each marker appearance is drawn
// with. Models are authored in block-local coordinates facing down; the batch
// builder orients and places them.
package models

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/marker"
)

//go:embed data/models.yaml
var builtinData []byte

// ErrNoModel is returned when an appearance has no model.
var ErrNoModel = errors.New("no model")

// Source maps a marker's appearance and a face to quads. FacingNone asks for
// the general quads that aren't tied to any face.
type Source interface {
	Quads(a marker.Appearance, face geom.Facing) ([]Quad, error)
}

// Quad is a planar polygon, usually four corners, with per-corner texture
// coordinates.
type Quad struct {
	Corners []mgl32.Vec3
	UVs     []mgl32.Vec2
}

// Normal computes the polygon's unit normal with Newell's method. Corners
// are expected counter-clockwise when viewed from the front.
func Normal(corners []mgl32.Vec3) mgl32.Vec3 {
	var n mgl32.Vec3
	for i := range corners {
		cur, next := corners[i], corners[(i+1)%len(corners)]
		n[0] += (cur.Y() - next.Y()) * (cur.Z() + next.Z())
		n[1] += (cur.Z() - next.Z()) * (cur.X() + next.X())
		n[2] += (cur.X() - next.X()) * (cur.Y() + next.Y())
	}
	if n.Len() == 0 {
		return n
	}
	return n.Normalize()
}

// Model is the geometry for one (kind, variant).
type Model struct {
	General []Quad
	Faces   map[geom.Facing][]Quad
}

type key struct {
	kind    marker.Kind
	variant uint8
}

// Library is a Source backed by parsed model definitions.
type Library struct {
	models map[key]*Model
}

var builtin = sync.OnceValues(func() (*Library, error) {
	return Parse(builtinData)
})

// Builtin returns the library compiled into the binary.
func Builtin() (*Library, error) {
	return builtin()
}

// Load parses a model library from a YAML file.
func Load(path string) (*Library, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading models: %w", err)
	}
	return Parse(b)
}

// Parse builds a library from its YAML definition.
func Parse(data []byte) (*Library, error) {
	type rawQuad struct {
		Path []float32 `yaml:"path"` // flat [x0,y0,z0,x1,y1,z1,...]
		UV   []float32 `yaml:"uv"`   // flat [u0,v0,u1,v1,...]
	}
	type rawModel struct {
		Kind    string               `yaml:"kind"`
		Variant uint8                `yaml:"variant"`
		Boxes   [][]float32          `yaml:"boxes"` // [x0,y0,z0,x1,y1,z1]
		General []rawQuad            `yaml:"general"`
		Faces   map[string][]rawQuad `yaml:"faces"`
	}

	convertRawQuad := func(raw rawQuad) (Quad, error) {
		if len(raw.Path)%3 != 0 || len(raw.Path) < 9 {
			return Quad{}, fmt.Errorf("path needs at least 3 xyz corners, got %d values", len(raw.Path))
		}
		n := len(raw.Path) / 3
		if len(raw.UV) != 2*n {
			return Quad{}, fmt.Errorf("path has %d corners but %d uv values", n, len(raw.UV))
		}
		q := Quad{
			Corners: make([]mgl32.Vec3, n),
			UVs:     make([]mgl32.Vec2, n),
		}
		for i := 0; i < n; i++ {
			q.Corners[i] = mgl32.Vec3{raw.Path[i*3], raw.Path[i*3+1], raw.Path[i*3+2]}
			q.UVs[i] = mgl32.Vec2{raw.UV[i*2], raw.UV[i*2+1]}
		}
		return q, nil
	}

	var raw struct {
		Models []rawModel `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing models: %w", err)
	}

	lib := &Library{models: make(map[key]*Model)}
	for _, rm := range raw.Models {
		kind, err := marker.ParseKind(rm.Kind)
		if err != nil {
			return nil, err
		}
		k := key{kind: kind, variant: rm.Variant}
		if _, ok := lib.models[k]; ok {
			return nil, fmt.Errorf("duplicate model %s/%d", kind, rm.Variant)
		}

		m := &Model{Faces: make(map[geom.Facing][]Quad)}
		for _, b := range rm.Boxes {
			if len(b) != 6 {
				return nil, fmt.Errorf("model %s/%d: box needs 6 values, got %d", kind, rm.Variant, len(b))
			}
			for face, q := range boxQuads(mgl32.Vec3{b[0], b[1], b[2]}, mgl32.Vec3{b[3], b[4], b[5]}) {
				m.Faces[face] = append(m.Faces[face], q)
			}
		}
		for _, rq := range rm.General {
			q, err := convertRawQuad(rq)
			if err != nil {
				return nil, fmt.Errorf("model %s/%d: %w", kind, rm.Variant, err)
			}
			m.General = append(m.General, q)
		}
		for name, rqs := range rm.Faces {
			face := geom.ParseFacing(name)
			if face == geom.FacingNone {
				return nil, fmt.Errorf("model %s/%d: unknown face %q", kind, rm.Variant, name)
			}
			for _, rq := range rqs {
				q, err := convertRawQuad(rq)
				if err != nil {
					return nil, fmt.Errorf("model %s/%d face %s: %w", kind, rm.Variant, face, err)
				}
				m.Faces[face] = append(m.Faces[face], q)
			}
		}
		lib.models[k] = m
	}
	return lib, nil
}

// Quads implements Source. An appearance without a model yields ErrNoModel;
// a model without quads for the face yields none.
func (l *Library) Quads(a marker.Appearance, face geom.Facing) ([]Quad, error) {
	m, ok := l.models[key{kind: a.Kind, variant: a.Variant}]
	if !ok {
		return nil, fmt.Errorf("%w for %s/%d", ErrNoModel, a.Kind, a.Variant)
	}
	if face == geom.FacingNone {
		return m.General, nil
	}
	return m.Faces[face], nil
}

// Len returns the number of models.
func (l *Library) Len() int { return len(l.models) }

var unitUVs = []mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// boxQuads returns the six outward-facing quads of the axis-aligned box
// [lo, hi], counter-clockwise seen from outside.
func boxQuads(lo, hi mgl32.Vec3) map[geom.Facing]Quad {
	x0, y0, z0 := lo.Elem()
	x1, y1, z1 := hi.Elem()
	quad := func(corners ...mgl32.Vec3) Quad {
		return Quad{Corners: corners, UVs: unitUVs}
	}
	return map[geom.Facing]Quad{
		geom.Down:  quad(mgl32.Vec3{x0, y0, z0}, mgl32.Vec3{x1, y0, z0}, mgl32.Vec3{x1, y0, z1}, mgl32.Vec3{x0, y0, z1}),
		geom.Up:    quad(mgl32.Vec3{x0, y1, z0}, mgl32.Vec3{x0, y1, z1}, mgl32.Vec3{x1, y1, z1}, mgl32.Vec3{x1, y1, z0}),
		geom.North: quad(mgl32.Vec3{x0, y0, z0}, mgl32.Vec3{x0, y1, z0}, mgl32.Vec3{x1, y1, z0}, mgl32.Vec3{x1, y0, z0}),
		geom.South: quad(mgl32.Vec3{x0, y0, z1}, mgl32.Vec3{x1, y0, z1}, mgl32.Vec3{x1, y1, z1}, mgl32.Vec3{x0, y1, z1}),
		geom.West:  quad(mgl32.Vec3{x0, y0, z0}, mgl32.Vec3{x0, y0, z1}, mgl32.Vec3{x0, y1, z1}, mgl32.Vec3{x0, y1, z0}),
		geom.East:  quad(mgl32.Vec3{x1, y0, z0}, mgl32.Vec3{x1, y1, z0}, mgl32.Vec3{x1, y1, z1}, mgl32.Vec3{x1, y0, z1}),
	}
}
