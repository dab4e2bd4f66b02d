// Package marker describes the glowing point objects tracked by halo. The
// simulation owns them; halo only ever sees them through the Object
// interface.
package marker

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/irfansharif/halo/internal/geom"
)

// WorldID identifies a loaded world. Objects whose world differs from the
// session's are treated as gone.
type WorldID string

// Kind is the closed set of marker variants.
type Kind uint8

const (
	KindLamp    Kind = iota // free-standing lamp, no orientation
	KindFixture             // wall/ceiling fixture, oriented by its facing
	KindBeacon              // tall beacon column
)

var kindNames = map[Kind]string{
	KindLamp:    "lamp",
	KindFixture: "fixture",
	KindBeacon:  "beacon",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown marker kind %q", s)
}

// Appearance is everything that affects how a marker is drawn.
type Appearance struct {
	Kind    Kind
	Variant uint8       // shape variant within the kind
	Glow    uint32      // 0xRRGGBB; 0 means unset
	Facing  geom.Facing // FacingNone for unoriented markers
}

// Object is the capability halo needs from a simulation entity.
type Object interface {
	ID() uuid.UUID
	Pos() geom.BlockPos
	World() WorldID
	// Removed reports whether the simulation destroyed the entity.
	Removed() bool
	Appearance() Appearance
	// Visible reports whether the marker should render at all right now.
	Visible() bool
}

// Occluder is implemented by objects that know which of their sides are
// covered by neighbouring blocks. Quads authored for a covered side are not
// drawn.
type Occluder interface {
	Occluded() geom.Sides
}

// Fingerprint summarizes an object's rendered appearance. It's a plain
// comparable value: two fingerprints are equal iff the marker would render
// identically.
type Fingerprint struct {
	Appearance
	Visible bool
	Covered geom.Sides // from Occluder, empty otherwise
}

// FingerprintOf captures the object's current fingerprint.
func FingerprintOf(o Object) Fingerprint {
	fp := Fingerprint{Appearance: o.Appearance(), Visible: o.Visible()}
	if oc, ok := o.(Occluder); ok {
		fp.Covered = oc.Occluded()
	}
	return fp
}

// appendTo writes a fixed-width encoding of the fingerprint.
func (f Fingerprint) appendTo(buf []byte) []byte {
	buf = append(buf, byte(f.Kind), f.Variant, byte(f.Facing), byte(f.Covered))
	buf = binary.LittleEndian.AppendUint32(buf, f.Glow)
	if f.Visible {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// Digest hashes the fingerprint.
func (f Fingerprint) Digest() uint64 {
	var buf [9]byte
	return xxhash.Sum64(f.appendTo(buf[:0]))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s/%d glow=#%06x facing=%s visible=%t covered=%06b", f.Kind, f.Variant, f.Glow, f.Facing, f.Visible, uint8(f.Covered)>>1)
}

// Member is one object's contribution to a cell, as seen at build time.
type Member struct {
	ID          uuid.UUID
	Pos         geom.BlockPos
	Fingerprint Fingerprint
}

// MemberOf captures o's current state.
func MemberOf(o Object) Member {
	return Member{ID: o.ID(), Pos: o.Pos(), Fingerprint: FingerprintOf(o)}
}

// SetDigest hashes a set of members. Members must be sorted by ID; the
// result changes whenever membership, a position, or a fingerprint does.
func SetDigest(members []Member) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, m := range members {
		buf = buf[:0]
		buf = append(buf, m.ID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Pos.X))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Pos.Y))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Pos.Z))
		buf = m.Fingerprint.appendTo(buf)
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}
