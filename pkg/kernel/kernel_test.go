package kernel

import "testing"

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name      string
		mesh      Mesh
		verts     int
		triangles int
		empty     bool
	}{
		{"empty", Mesh{}, 0, 0, true},
		{"one vertex", Mesh{Vertices: []float32{1, 2, 3}}, 1, 0, false},
		{"one triangle", Mesh{
			Vertices: []float32{0, 0, 0, 1, 0, 0, 1, 1, 0},
			Indices:  []uint32{0, 1, 2},
		}, 3, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mesh.VertexCount(); got != tt.verts {
				t.Errorf("VertexCount() = %d, want %d", got, tt.verts)
			}
			if got := tt.mesh.TriangleCount(); got != tt.triangles {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.triangles)
			}
			if got := tt.mesh.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestMeshBounds(t *testing.T) {
	m := &Mesh{Vertices: []float32{-1, 2, 0, 3, -4, 5, 0, 0, -6}}
	min, max := m.Bounds()
	if min != [3]float32{-1, -4, -6} {
		t.Errorf("min = %v, want [-1 -4 -6]", min)
	}
	if max != [3]float32{3, 2, 5} {
		t.Errorf("max = %v, want [3 2 5]", max)
	}

	min, max = (&Mesh{}).Bounds()
	if min != ([3]float32{}) || max != ([3]float32{}) {
		t.Errorf("empty bounds = %v %v, want zero", min, max)
	}
}

// stubSolid is a minimal Solid for interface checks.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel proves the interface is satisfiable without a real backend.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) Solid {
	return &stubSolid{
		minBB: [3]float64{-x / 2, -y / 2, -z / 2},
		maxBB: [3]float64{x / 2, y / 2, z / 2},
	}
}

func (k *stubKernel) Translate(s Solid, x, y, z float64) Solid {
	min, max := s.BoundingBox()
	return &stubSolid{
		minBB: [3]float64{min[0] + x, min[1] + y, min[2] + z},
		maxBB: [3]float64{max[0] + x, max[1] + y, max[2] + z},
	}
}

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxIsCentred(t *testing.T) {
	var k Kernel = &stubKernel{}
	min, max := k.Translate(k.Box(2, 4, 6), 1, 0, 0).BoundingBox()
	if min != [3]float64{0, -2, -3} {
		t.Errorf("min = %v, want [0 -2 -3]", min)
	}
	if max != [3]float64{2, 2, 3} {
		t.Errorf("max = %v, want [2 2 3]", max)
	}
}
