// Package tessellate turns a kernel solid into the named-face geometry a
// CAD backend would serve: the solid is meshed, and each triangle is
// assigned to one of six axis-aligned faces by its dominant normal.
package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/kernel"
)

// side is one axis-aligned face bucket. u and v are the position axes its
// planar UVs are taken from.
type side struct {
	id, name string
	axis     int
	sign     float32
	u, v     int
}

// sides is the emission order: FRONT, RIGHT, BACK, LEFT, TOP, BOTTOM.
var sides = []side{
	{"front", "FRONT", 2, 1, 0, 1},
	{"right", "RIGHT", 0, 1, 2, 1},
	{"back", "BACK", 2, -1, 0, 1},
	{"left", "LEFT", 0, -1, 2, 1},
	{"top", "TOP", 1, 1, 0, 2},
	{"bottom", "BOTTOM", 1, -1, 0, 2},
}

// sideOf returns the bucket for a normal, or -1 for a degenerate normal.
func sideOf(nx, ny, nz float32) int {
	n := [3]float32{nx, ny, nz}
	best, bestAbs := -1, float32(0)
	for axis := 0; axis < 3; axis++ {
		a := n[axis]
		if a < 0 {
			a = -a
		}
		if a > bestAbs {
			best, bestAbs = axis, a
		}
	}
	if best < 0 {
		return -1
	}
	for i, s := range sides {
		if s.axis == best && (n[best] > 0) == (s.sign > 0) {
			return i
		}
	}
	return -1
}

// Faces meshes the solid with the kernel and groups the triangles into
// named faces. Vertex normals are the kernel's flat triangle normals. UVs
// are planar projections normalised to the mesh bounds. Empty sides are
// dropped, and material indices are dense in emission order.
func Faces(k kernel.Kernel, s kernel.Solid) ([]cadmesh.Face, error) {
	m, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	return split(m)
}

func split(m *kernel.Mesh) ([]cadmesh.Face, error) {
	if m.VertexCount() != len(m.Indices) {
		return nil, fmt.Errorf("tessellate: expected triangle soup, got %d vertices for %d indices",
			m.VertexCount(), len(m.Indices))
	}

	min, max := m.Bounds()
	buckets := make([]cadmesh.Face, len(sides))
	for i, s := range sides {
		buckets[i] = cadmesh.Face{ID: s.id, Name: s.name}
	}

	for t := 0; t < m.TriangleCount(); t++ {
		first := m.Indices[t*3]
		b := sideOf(m.Normals[first*3], m.Normals[first*3+1], m.Normals[first*3+2])
		if b < 0 {
			continue
		}
		f := &buckets[b]
		base := uint32(len(f.Vertices))
		for j := 0; j < 3; j++ {
			vi := m.Indices[t*3+j]
			f.Vertices = append(f.Vertices, vertex(m, vi, &sides[b], min, max))
		}
		f.Triangles = append(f.Triangles, cadmesh.Triangle{Vertices: [3]uint32{base, base + 1, base + 2}})
	}

	faces := make([]cadmesh.Face, 0, len(sides))
	for _, f := range buckets {
		if len(f.Triangles) == 0 {
			continue
		}
		f.MaterialIndex = len(faces)
		faces = append(faces, f)
	}
	return faces, nil
}

func vertex(m *kernel.Mesh, vi uint32, s *side, min, max [3]float32) cadmesh.Vertex {
	var v cadmesh.Vertex
	for i := 0; i < 3; i++ {
		v.Pos[i] = float64(m.Vertices[vi*3+uint32(i)])
		v.Norm[i] = float64(m.Normals[vi*3+uint32(i)])
	}
	v.UV[0] = normalise(v.Pos[s.u], min[s.u], max[s.u])
	v.UV[1] = normalise(v.Pos[s.v], min[s.v], max[s.v])
	return v
}

func normalise(x float64, lo, hi float32) float64 {
	span := float64(hi - lo)
	if span == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, (x-float64(lo))/span))
}
