// Package palette converts marker glow colors into vertex tints, and
// generates glow colors for the demo simulation.
package palette

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultTint is the muted gray used for markers without a glow color.
var DefaultTint = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 255}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Tint returns the vertex tint for a 0xRRGGBB glow. A zero glow means unset
// and maps to fallback.
func Tint(glow uint32, fallback color.RGBA) color.RGBA {
	if glow == 0 {
		return fallback
	}
	return color.RGBA{
		R: uint8(glow >> 16),
		G: uint8(glow >> 8),
		B: uint8(glow),
		A: 255,
	}
}

// Floats returns the tint as normalized RGBA floats.
func Floats(c color.RGBA) [4]float32 {
	return [4]float32{
		float32(c.R) / 255.0,
		float32(c.G) / 255.0,
		float32(c.B) / 255.0,
		float32(c.A) / 255.0,
	}
}

// ParseGlow parses a "#rrggbb" string into a glow value.
func ParseGlow(s string) (uint32, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("parsing glow %q: %w", s, err)
	}
	return Glow(c), nil
}

// Glow packs a color into 0xRRGGBB.
func Glow(c colorful.Color) uint32 {
	r, g, b := c.Clamped().RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// RandomGlow returns a saturated, bright glow color.
func RandomGlow(r *rand.Rand) uint32 {
	// Convert from 0-100 range to 0-360 for hue, 0-1 for saturation and brightness.
	hue := r.Float64() * 100 * 3.6
	sat := clamp((r.Float64()*40+60)/100.0, 0, 1)
	bright := clamp((r.Float64()*30+70)/100.0, 0, 1)

	glow := Glow(colorful.Hsv(hue, sat, bright))
	if glow == 0 {
		return 1 // zero means unset
	}
	return glow
}

// Shimmered applies a brightness jitter to a glow, keeping its hue.
func Shimmered(glow uint32, r *rand.Rand) uint32 {
	if glow == 0 {
		return 0
	}
	c := colorful.Color{
		R: float64(glow>>16&0xff) / 255,
		G: float64(glow>>8&0xff) / 255,
		B: float64(glow&0xff) / 255,
	}
	h, s, v := c.Hsv()
	v = clamp(v+(r.Float64()-0.5)*0.2, 0.05, 1)

	shimmered := Glow(colorful.Hsv(h, s, v))
	if shimmered == 0 {
		return 1
	}
	return shimmered
}
