// Package mesh assembles face-oriented geometry into flat, renderer-ready
// attribute buffers with one material group per face.
//
// Two input layouts are supported. A face that carries explicit triangles
// is assembled into an index buffer, with its local indices remapped by the
// number of vertices appended before it. A face without triangles is an
// implicit layout: every three consecutive vertices form one triangle and
// no index buffer is needed. Vertices are never deduplicated across faces,
// normals are copied verbatim and winding order is not checked.
package mesh

import (
	"fmt"
)

// Vertex is a single vertex slot: position, normal and texture coordinate.
type Vertex struct {
	Position [3]float32 `json:"pos"`
	Normal   [3]float32 `json:"norm"`
	UV       [2]float32 `json:"uv"`
}

// Triangle is a triple of indices into the owning face's vertex list.
type Triangle [3]uint32

// Face is one named logical surface of a solid, drawn with one material.
// A nil Triangles slice selects the implicit (non-indexed) layout.
type Face struct {
	ID            string
	Name          string
	MaterialIndex int
	Vertices      []Vertex
	Triangles     []Triangle
}

// Implicit reports whether the face uses the consecutive-vertex layout.
func (f *Face) Implicit() bool {
	return f.Triangles == nil
}

// IndexError reports a triangle index that falls outside its face's own
// vertex list.
type IndexError struct {
	Face        string // face ID, or name when the ID is empty
	Triangle    int    // triangle ordinal within the face
	Index       uint32 // offending local index
	VertexCount int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("mesh: face %q triangle %d: index %d out of range (face has %d vertices)",
		e.Face, e.Triangle, e.Index, e.VertexCount)
}

// LayoutError reports an implicit-layout face whose vertex run cannot be
// split into whole triangles.
type LayoutError struct {
	Face        string
	VertexCount int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("mesh: face %q has %d vertices, implicit layout needs a multiple of 3",
		e.Face, e.VertexCount)
}

// Assemble converts an ordered face list into a single Buffer.
//
// If any face carries explicit triangles the result is indexed and groups
// are measured in index-buffer positions; implicit faces in such a list are
// given sequential triangles so the units never mix. Otherwise the result is
// non-indexed and groups are measured in vertex slots. An empty face list
// yields an empty buffer and no error.
func Assemble(faces []Face) (*Buffer, error) {
	indexed := false
	totalVerts := 0
	for i := range faces {
		f := &faces[i]
		if f.MaterialIndex < 0 {
			return nil, fmt.Errorf("mesh: face %q has negative material index %d", faceLabel(f), f.MaterialIndex)
		}
		if err := checkFace(f); err != nil {
			return nil, err
		}
		if !f.Implicit() {
			indexed = true
		}
		totalVerts += len(f.Vertices)
	}

	buf := &Buffer{
		Positions: make([]float32, 0, totalVerts*3),
		Normals:   make([]float32, 0, totalVerts*3),
		UVs:       make([]float32, 0, totalVerts*2),
		Groups:    make([]Group, 0, len(faces)),
		FaceNames: make([]string, 0, len(faces)),
		Indexed:   indexed,
	}
	if indexed {
		buf.Indices = make([]uint32, 0, totalVerts)
	}

	var vertexOffset uint32
	for i := range faces {
		f := &faces[i]

		for _, v := range f.Vertices {
			buf.Positions = append(buf.Positions, v.Position[0], v.Position[1], v.Position[2])
			buf.Normals = append(buf.Normals, v.Normal[0], v.Normal[1], v.Normal[2])
			buf.UVs = append(buf.UVs, v.UV[0], v.UV[1])
		}

		g := Group{MaterialIndex: f.MaterialIndex}
		if indexed {
			g.Start = len(buf.Indices)
			if f.Implicit() {
				for j := range f.Vertices {
					buf.Indices = append(buf.Indices, vertexOffset+uint32(j))
				}
			} else {
				for _, tri := range f.Triangles {
					buf.Indices = append(buf.Indices,
						tri[0]+vertexOffset,
						tri[1]+vertexOffset,
						tri[2]+vertexOffset)
				}
			}
			g.Count = len(buf.Indices) - g.Start
		} else {
			g.Start = int(vertexOffset)
			g.Count = len(f.Vertices)
		}

		buf.Groups = append(buf.Groups, g)
		buf.FaceNames = append(buf.FaceNames, f.Name)
		vertexOffset += uint32(len(f.Vertices))
	}

	return buf, nil
}

// checkFace rejects out-of-range local indices and broken implicit runs
// before anything is appended.
func checkFace(f *Face) error {
	n := len(f.Vertices)
	if f.Implicit() {
		if n%3 != 0 {
			return &LayoutError{Face: faceLabel(f), VertexCount: n}
		}
		return nil
	}
	for t, tri := range f.Triangles {
		for _, idx := range tri {
			if int(idx) >= n {
				return &IndexError{Face: faceLabel(f), Triangle: t, Index: idx, VertexCount: n}
			}
		}
	}
	return nil
}

func faceLabel(f *Face) string {
	if f.ID != "" {
		return f.ID
	}
	return f.Name
}
