package pick

import (
	"sort"

	"github.com/chazu/facepick/pkg/mesh"
	"github.com/samber/lo"
)

// None is the hovered value when the pointer is not over any face.
const None = -1

// Tints are the presentation colors for faces.
type Tints struct {
	Active  string `json:"active"`
	Default string `json:"default"`
}

// DefaultTints matches the viewer's highlight red over neutral grey.
var DefaultTints = Tints{Active: "#ff0000", Default: "#cccccc"}

// State is a snapshot of a Picker, safe to hand to the UI.
type State struct {
	Hovered     int      `json:"hovered"`
	HoveredName string   `json:"hoveredName,omitempty"`
	Selected    []int    `json:"selected"`
	Colors      []string `json:"colors"`
}

// Picker is the pick state of one mounted mesh: the hovered face (or None)
// and the set of selected faces. Hover and selection are independent.
// A Picker is owned by a single mesh instance and is not safe for
// concurrent use.
type Picker struct {
	groups    []mesh.Group
	faceNames []string
	tints     Tints

	hovered  int
	selected map[int]struct{}

	// OnChange, if set, is called after every actual state change.
	OnChange func(State)
}

// New creates the pick state for an assembled buffer.
func New(buf *mesh.Buffer, tints Tints) *Picker {
	p := &Picker{
		tints:    tints,
		hovered:  None,
		selected: make(map[int]struct{}),
	}
	if buf != nil {
		p.groups = buf.Groups
		p.faceNames = buf.FaceNames
	}
	return p
}

// Resolve maps a locator to a face using this mesh's groups.
func (p *Picker) Resolve(loc Locator) (int, bool) {
	return ResolveFace(loc, p.groups)
}

// Move handles a pointer move over the mesh. The hover changes only when
// the resolved face differs from the current one; repeated moves within a
// face are no-ops. A locator that hits no face is treated like a move with
// no intersection and changes nothing. Reports whether the state changed.
func (p *Picker) Move(loc Locator) bool {
	face, ok := p.Resolve(loc)
	if !ok || face == p.hovered {
		return false
	}
	p.hovered = face
	p.changed()
	return true
}

// Leave handles the pointer leaving the mesh.
func (p *Picker) Leave() bool {
	if p.hovered == None {
		return false
	}
	p.hovered = None
	p.changed()
	return true
}

// Click toggles the selection of the face under loc.
func (p *Picker) Click(loc Locator) bool {
	face, ok := p.Resolve(loc)
	if !ok {
		return false
	}
	return p.Toggle(face)
}

// Toggle adds face to the selection, or removes it if already selected.
// It is the only mutator of the selection set. Faces no group carries are
// ignored.
func (p *Picker) Toggle(face int) bool {
	if _, ok := ResolveFace(Material(face), p.groups); !ok {
		return false
	}
	if _, ok := p.selected[face]; ok {
		delete(p.selected, face)
	} else {
		p.selected[face] = struct{}{}
	}
	p.changed()
	return true
}

// Hovered returns the hovered face, or (None, false).
func (p *Picker) Hovered() (int, bool) {
	return p.hovered, p.hovered != None
}

// IsSelected reports whether face is selected.
func (p *Picker) IsSelected(face int) bool {
	_, ok := p.selected[face]
	return ok
}

// Selected returns the selected faces in ascending order.
func (p *Picker) Selected() []int {
	out := lo.Keys(p.selected)
	sort.Ints(out)
	return out
}

// Colors returns one tint per material slot, recomputed from the current
// hover and selection: active if hovered or selected, default otherwise.
func (p *Picker) Colors() []string {
	slots := 0
	for _, g := range p.groups {
		if g.MaterialIndex+1 > slots {
			slots = g.MaterialIndex + 1
		}
	}
	colors := make([]string, slots)
	for i := range colors {
		if i == p.hovered || p.IsSelected(i) {
			colors[i] = p.tints.Active
		} else {
			colors[i] = p.tints.Default
		}
	}
	return colors
}

// FaceName returns the display name for a material index.
func (p *Picker) FaceName(face int) string {
	for i, g := range p.groups {
		if g.MaterialIndex == face && i < len(p.faceNames) {
			return p.faceNames[i]
		}
	}
	return ""
}

// State returns a snapshot of the pick state.
func (p *Picker) State() State {
	s := State{
		Hovered:  p.hovered,
		Selected: p.Selected(),
		Colors:   p.Colors(),
	}
	if p.hovered != None {
		s.HoveredName = p.FaceName(p.hovered)
	}
	return s
}

func (p *Picker) changed() {
	if p.OnChange != nil {
		p.OnChange(p.State())
	}
}
