package cadmesh

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chazu/facepick/pkg/mesh"
)

// ErrInvalidData marks a document that is missing required fields or whose
// buffer block is internally inconsistent.
var ErrInvalidData = errors.New("Invalid CAD data")

// Validate checks that the document carries face geometry the assembler
// can consume.
func (d *Document) Validate() error {
	if d.Faces == nil && d.BufferGeometry == nil {
		return fmt.Errorf("%w: missing faces array", ErrInvalidData)
	}
	if d.Faces != nil {
		return nil
	}
	return d.BufferGeometry.validate()
}

func (bg *BufferGeometry) validate() error {
	if len(bg.Positions)%3 != 0 {
		return fmt.Errorf("%w: positions length %d is not a multiple of 3", ErrInvalidData, len(bg.Positions))
	}
	n := len(bg.Positions) / 3
	if len(bg.Normals) != n*3 || len(bg.UVs) != n*2 {
		return fmt.Errorf("%w: attribute arrays disagree on %d vertices", ErrInvalidData, n)
	}
	if bg.Faces == nil {
		return fmt.Errorf("%w: missing faces array", ErrInvalidData)
	}

	limit := n
	if bg.Indices != nil {
		limit = len(bg.Indices)
	}
	for _, r := range bg.Faces {
		if r.Start < 0 || r.Count < 0 || r.Start > limit || r.Count > limit-r.Start {
			return fmt.Errorf("%w: face %q range [%d,+%d) exceeds %d", ErrInvalidData, r.ID, r.Start, r.Count, limit)
		}
		if r.Count%3 != 0 {
			return fmt.Errorf("%w: face %q count %d is not whole triangles", ErrInvalidData, r.ID, r.Count)
		}
	}
	for i, idx := range bg.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d at position %d out of range", ErrInvalidData, idx, i)
		}
	}
	return nil
}

// MeshFaces converts the document into assembler input, in emission order.
// Buffer-block faces become implicit-layout faces when the block has no
// indices; otherwise each face gathers the vertices its range references,
// in first-use order, with its indices rewritten to be face-local.
func (d *Document) MeshFaces() ([]mesh.Face, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Faces != nil {
		out := make([]mesh.Face, len(d.Faces))
		for i, f := range d.Faces {
			out[i] = f.meshFace()
		}
		return out, nil
	}
	return d.BufferGeometry.meshFaces(), nil
}

func (f *Face) meshFace() mesh.Face {
	mf := mesh.Face{
		ID:            f.ID,
		Name:          f.Name,
		MaterialIndex: f.MaterialIndex,
		Vertices:      make([]mesh.Vertex, len(f.Vertices)),
	}
	for i, v := range f.Vertices {
		mf.Vertices[i] = v.meshVertex()
	}
	if f.Triangles != nil {
		mf.Triangles = make([]mesh.Triangle, len(f.Triangles))
		for i, t := range f.Triangles {
			mf.Triangles[i] = mesh.Triangle(t.Vertices)
		}
	}
	return mf
}

func (v Vertex) meshVertex() mesh.Vertex {
	return mesh.Vertex{
		Position: [3]float32{float32(v.Pos[0]), float32(v.Pos[1]), float32(v.Pos[2])},
		Normal:   [3]float32{float32(v.Norm[0]), float32(v.Norm[1]), float32(v.Norm[2])},
		UV:       [2]float32{float32(v.UV[0]), float32(v.UV[1])},
	}
}

func (bg *BufferGeometry) vertex(i int) mesh.Vertex {
	p, n, t := bg.Positions[i*3:i*3+3], bg.Normals[i*3:i*3+3], bg.UVs[i*2:i*2+2]
	return mesh.Vertex{
		Position: [3]float32{p[0], p[1], p[2]},
		Normal:   [3]float32{n[0], n[1], n[2]},
		UV:       [2]float32{t[0], t[1]},
	}
}

func (bg *BufferGeometry) meshFaces() []mesh.Face {
	out := make([]mesh.Face, len(bg.Faces))
	for i, r := range bg.Faces {
		mf := mesh.Face{ID: r.ID, Name: r.Name, MaterialIndex: r.MaterialIndex}

		if bg.Indices == nil {
			mf.Vertices = make([]mesh.Vertex, r.Count)
			for j := 0; j < r.Count; j++ {
				mf.Vertices[j] = bg.vertex(r.Start + j)
			}
			out[i] = mf
			continue
		}

		local := make(map[uint32]uint32)
		mf.Triangles = make([]mesh.Triangle, 0, r.Count/3)
		var tri mesh.Triangle
		for j, global := range bg.Indices[r.Start : r.Start+r.Count] {
			li, seen := local[global]
			if !seen {
				li = uint32(len(mf.Vertices))
				local[global] = li
				mf.Vertices = append(mf.Vertices, bg.vertex(int(global)))
			}
			tri[j%3] = li
			if j%3 == 2 {
				mf.Triangles = append(mf.Triangles, tri)
			}
		}
		out[i] = mf
	}
	return out
}

// Assemble validates the document and assembles its faces.
func (d *Document) Assemble() (*mesh.Buffer, error) {
	faces, err := d.MeshFaces()
	if err != nil {
		return nil, err
	}
	return mesh.Assemble(faces)
}

// ContentKey returns a short digest of the document's canonical JSON,
// suitable as a memo key: equal documents produce equal keys.
func (d *Document) ContentKey() string {
	data, err := json.Marshal(d)
	if err != nil {
		// Only unsupported float values (NaN, Inf) can fail here.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
