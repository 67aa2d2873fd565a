package sdfx

import (
	"math"
	"testing"
)

func TestBoxMesh(t *testing.T) {
	k := New(16)
	m, err := k.ToMesh(k.Box(2, 2, 2))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if len(m.Vertices) != len(m.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(m.Vertices), len(m.Normals))
	}
	if len(m.Indices) != m.TriangleCount()*3 || m.VertexCount() != len(m.Indices) {
		t.Fatalf("soup layout broken: %d vertices, %d indices", m.VertexCount(), len(m.Indices))
	}

	// Marching cubes lands close to, not exactly on, the faces.
	min, max := m.Bounds()
	const tol = 0.25
	for i := 0; i < 3; i++ {
		if math.Abs(float64(min[i])+1) > tol || math.Abs(float64(max[i])-1) > tol {
			t.Errorf("axis %d bounds [%.3f, %.3f], want about [-1, 1]", i, min[i], max[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	k := New(12)
	m, err := k.ToMesh(k.Translate(k.Box(2, 2, 2), 10, 0, -5))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}

	var cx, cz float64
	n := m.VertexCount()
	for i := 0; i < n; i++ {
		cx += float64(m.Vertices[i*3])
		cz += float64(m.Vertices[i*3+2])
	}
	cx /= float64(n)
	cz /= float64(n)

	const tol = 0.5
	if math.Abs(cx-10) > tol {
		t.Errorf("centroid X = %.2f, want near 10", cx)
	}
	if math.Abs(cz+5) > tol {
		t.Errorf("centroid Z = %.2f, want near -5", cz)
	}
}

func TestDefaultCells(t *testing.T) {
	if got := New(0).Cells(); got != DefaultCells {
		t.Errorf("New(0).Cells() = %d, want %d", got, DefaultCells)
	}
	if got := New(-3).Cells(); got != DefaultCells {
		t.Errorf("New(-3).Cells() = %d, want %d", got, DefaultCells)
	}
}

func TestBoundingBox(t *testing.T) {
	k := New(8)
	min, max := k.Box(4, 2, 6).BoundingBox()
	if min[0] > -2 || max[2] < 3 {
		t.Errorf("bounding box %v..%v does not contain the box", min, max)
	}
}
