package cadmesh

// boxFace is one side of an axis-aligned box: four corners as sign triples
// in counter-clockwise order seen from outside, and the outward normal.
type boxFace struct {
	id, name string
	corners  [4][3]float64
	normal   [3]float64
}

// boxFaces lists the sides in emission order; material index = position.
var boxFaces = []boxFace{
	{"front", "FRONT", [4][3]float64{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}, [3]float64{0, 0, 1}},
	{"right", "RIGHT", [4][3]float64{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}}, [3]float64{1, 0, 0}},
	{"back", "BACK", [4][3]float64{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}, [3]float64{0, 0, -1}},
	{"left", "LEFT", [4][3]float64{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}, [3]float64{-1, 0, 0}},
	{"top", "TOP", [4][3]float64{{1, 1, -1}, {-1, 1, -1}, {-1, 1, 1}, {1, 1, 1}}, [3]float64{0, 1, 0}},
	{"bottom", "BOTTOM", [4][3]float64{{1, -1, 1}, {-1, -1, 1}, {-1, -1, -1}, {1, -1, -1}}, [3]float64{0, -1, 0}},
}

var quadUVs = [4][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

func (bf *boxFace) vertex(c int, size [3]float64) Vertex {
	return Vertex{
		Pos: [3]float64{
			bf.corners[c][0] * size[0] / 2,
			bf.corners[c][1] * size[1] / 2,
			bf.corners[c][2] * size[2] / 2,
		},
		Norm: bf.normal,
		UV:   quadUVs[c],
	}
}

// BoxFaces returns the six faces of a box centred at the origin, four
// vertices and two triangles each.
func BoxFaces(size [3]float64) []Face {
	faces := make([]Face, len(boxFaces))
	for i := range boxFaces {
		bf := &boxFaces[i]
		f := Face{
			ID:            bf.id,
			Name:          bf.name,
			MaterialIndex: i,
			Vertices:      make([]Vertex, 4),
			Triangles:     []Triangle{{Vertices: [3]uint32{0, 1, 2}}, {Vertices: [3]uint32{2, 3, 0}}},
		}
		for c := range f.Vertices {
			f.Vertices[c] = bf.vertex(c, size)
		}
		faces[i] = f
	}
	return faces
}

// flatOrder expands a quad into two triangles without an index buffer.
var flatOrder = [6]int{0, 1, 3, 3, 1, 2}

// FlatBox returns a box centred at the origin as a non-indexed buffer
// block: six vertices per face, face ranges in vertex slots.
func FlatBox(size [3]float64) *BufferGeometry {
	bg := &BufferGeometry{
		Positions: make([]float32, 0, len(boxFaces)*6*3),
		Normals:   make([]float32, 0, len(boxFaces)*6*3),
		UVs:       make([]float32, 0, len(boxFaces)*6*2),
		Faces:     make([]FaceRange, 0, len(boxFaces)),
	}
	for i := range boxFaces {
		bf := &boxFaces[i]
		start := len(bg.Positions) / 3
		for _, c := range flatOrder {
			v := bf.vertex(c, size)
			bg.Positions = append(bg.Positions, float32(v.Pos[0]), float32(v.Pos[1]), float32(v.Pos[2]))
			bg.Normals = append(bg.Normals, float32(v.Norm[0]), float32(v.Norm[1]), float32(v.Norm[2]))
			bg.UVs = append(bg.UVs, float32(v.UV[0]), float32(v.UV[1]))
		}
		bg.Faces = append(bg.Faces, FaceRange{
			ID:            bf.id,
			Name:          bf.name,
			MaterialIndex: i,
			Start:         start,
			Count:         len(flatOrder),
		})
	}
	return bg
}
