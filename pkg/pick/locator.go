// Package pick maps renderer intersections back to logical faces and owns
// the per-mesh hover and selection state.
package pick

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/facepick/pkg/mesh"
)

// LocatorKind tells which field of a Locator the renderer supplied.
type LocatorKind int

const (
	ByMaterial LocatorKind = iota // renderer already resolved the material index
	ByTriangle                    // triangle ordinal within the drawable range
	ByDraw                        // raw draw position: index-buffer slot or vertex ordinal
)

func (k LocatorKind) String() string {
	switch k {
	case ByMaterial:
		return "materialIndex"
	case ByTriangle:
		return "triangle"
	case ByDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// Locator identifies what a pointer event intersected. It is decoded once
// at the event boundary; nothing downstream sees the renderer's payload.
type Locator struct {
	Kind  LocatorKind
	Value int
}

// Material returns a locator for an already-resolved material index.
func Material(i int) Locator { return Locator{Kind: ByMaterial, Value: i} }

// Triangle returns a locator for a triangle ordinal.
func Triangle(t int) Locator { return Locator{Kind: ByTriangle, Value: t} }

// Draw returns a locator for a raw draw position.
func Draw(pos int) Locator { return Locator{Kind: ByDraw, Value: pos} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%d", l.Kind, l.Value)
}

// locatorJSON is the wire shape: exactly one field set.
type locatorJSON struct {
	MaterialIndex *int `json:"materialIndex,omitempty"`
	Triangle      *int `json:"triangle,omitempty"`
	Draw          *int `json:"draw,omitempty"`
}

// ErrBadLocator is returned when a payload does not carry exactly one
// locator field.
var ErrBadLocator = errors.New("pick: locator must set exactly one of materialIndex, triangle, draw")

// MarshalJSON encodes the locator as a single-field object.
func (l Locator) MarshalJSON() ([]byte, error) {
	v := l.Value
	var out locatorJSON
	switch l.Kind {
	case ByMaterial:
		out.MaterialIndex = &v
	case ByTriangle:
		out.Triangle = &v
	case ByDraw:
		out.Draw = &v
	default:
		return nil, fmt.Errorf("pick: unknown locator kind %d", l.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts {"materialIndex":n}, {"triangle":n} or {"draw":n}.
func (l *Locator) UnmarshalJSON(data []byte) error {
	var in locatorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("pick: decode locator: %w", err)
	}
	set := 0
	if in.MaterialIndex != nil {
		*l = Material(*in.MaterialIndex)
		set++
	}
	if in.Triangle != nil {
		*l = Triangle(*in.Triangle)
		set++
	}
	if in.Draw != nil {
		*l = Draw(*in.Draw)
		set++
	}
	if set != 1 {
		return ErrBadLocator
	}
	return nil
}

// ResolveFace returns the material index of the face a locator points at.
// Material locators pass through when some group carries that index.
// Triangle and draw locators are searched in the group table, which must be
// sorted by Start as Assemble produces it. Anything outside every group
// resolves to (-1, false).
func ResolveFace(loc Locator, groups []mesh.Group) (int, bool) {
	switch loc.Kind {
	case ByMaterial:
		for _, g := range groups {
			if g.MaterialIndex == loc.Value {
				return loc.Value, true
			}
		}
		return -1, false
	case ByTriangle:
		if loc.Value < 0 || loc.Value > math.MaxInt/3 {
			return -1, false
		}
		return groupAt(loc.Value*3, groups)
	case ByDraw:
		return groupAt(loc.Value, groups)
	}
	return -1, false
}

func groupAt(pos int, groups []mesh.Group) (int, bool) {
	if pos < 0 {
		return -1, false
	}
	i := sort.Search(len(groups), func(i int) bool { return groups[i].End() > pos })
	if i < len(groups) && groups[i].Contains(pos) {
		return groups[i].MaterialIndex, true
	}
	return -1, false
}
