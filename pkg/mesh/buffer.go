package mesh

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Group delimits one face's run within the drawable range. Start and Count
// are index-buffer positions for an indexed buffer and vertex slots
// otherwise.
type Group struct {
	Start         int `json:"start"`
	Count         int `json:"count"`
	MaterialIndex int `json:"materialIndex"`
}

// End returns the exclusive end of the group's range.
func (g Group) End() int {
	return g.Start + g.Count
}

// Contains reports whether the draw position pos falls inside the group.
func (g Group) Contains(pos int) bool {
	return pos >= g.Start && pos < g.End()
}

// Buffer is the assembled mesh handed to the renderer. Attribute arrays are
// flat and parallel: 3 floats per vertex for positions and normals, 2 for
// UVs. Indices is nil for a non-indexed buffer. FaceNames runs parallel to
// Groups.
type Buffer struct {
	Positions []float32 `json:"positions"`
	Normals   []float32 `json:"normals"`
	UVs       []float32 `json:"uvs"`
	Indices   []uint32  `json:"indices,omitempty"`
	Indexed   bool      `json:"indexed"`
	Groups    []Group   `json:"groups"`
	FaceNames []string  `json:"faceNames"`
}

// VertexCount returns the number of vertex slots.
func (b *Buffer) VertexCount() int {
	return len(b.Positions) / 3
}

// TriangleCount returns the number of drawable triangles.
func (b *Buffer) TriangleCount() int {
	return b.DrawCount() / 3
}

// DrawCount returns the number of drawable indices: the index-buffer length
// when indexed, the vertex count otherwise.
func (b *Buffer) DrawCount() int {
	if b.Indexed {
		return len(b.Indices)
	}
	return b.VertexCount()
}

// IsEmpty returns true if the buffer has no geometry.
func (b *Buffer) IsEmpty() bool {
	return len(b.Positions) == 0
}

// MaterialIndices returns the groups' material indices in draw order.
func (b *Buffer) MaterialIndices() []int {
	return lo.Map(b.Groups, func(g Group, _ int) int { return g.MaterialIndex })
}

// FaceName returns the name of the face drawn with the given material
// index, or "" if no group carries it.
func (b *Buffer) FaceName(materialIndex int) string {
	for i, g := range b.Groups {
		if g.MaterialIndex == materialIndex && i < len(b.FaceNames) {
			return b.FaceNames[i]
		}
	}
	return ""
}

// ErrGroupCoverage is returned by Validate when the groups do not cover the
// drawable range exactly.
var ErrGroupCoverage = errors.New("mesh: groups do not cover the drawable range")

// Validate checks the buffer invariants: attribute arrays agree on the
// vertex count, every index is in range, and the groups are contiguous,
// ascending, non-overlapping and sum to the draw count.
func (b *Buffer) Validate() error {
	if len(b.Positions)%3 != 0 {
		return fmt.Errorf("mesh: positions length %d is not a multiple of 3", len(b.Positions))
	}
	n := b.VertexCount()
	if len(b.Normals) != n*3 {
		return fmt.Errorf("mesh: normals length %d, want %d", len(b.Normals), n*3)
	}
	if len(b.UVs) != n*2 {
		return fmt.Errorf("mesh: uvs length %d, want %d", len(b.UVs), n*2)
	}
	if !b.Indexed && b.Indices != nil {
		return errors.New("mesh: non-indexed buffer carries an index buffer")
	}
	for i, idx := range b.Indices {
		if int(idx) >= n {
			return fmt.Errorf("mesh: index %d at position %d out of range (%d vertices)", idx, i, n)
		}
	}
	if len(b.FaceNames) != 0 && len(b.FaceNames) != len(b.Groups) {
		return fmt.Errorf("mesh: %d face names for %d groups", len(b.FaceNames), len(b.Groups))
	}

	next := 0
	for i, g := range b.Groups {
		if g.Count < 0 {
			return fmt.Errorf("mesh: group %d has negative count %d", i, g.Count)
		}
		if g.Start != next {
			return fmt.Errorf("%w: group %d starts at %d, want %d", ErrGroupCoverage, i, g.Start, next)
		}
		next = g.End()
	}

	total := lo.SumBy(b.Groups, func(g Group) int { return g.Count })
	if total != b.DrawCount() {
		return fmt.Errorf("%w: groups sum to %d, draw count is %d", ErrGroupCoverage, total, b.DrawCount())
	}
	return nil
}
