// Package cadmesh defines the CADMeshData document served by the geometry
// endpoint: metadata, an optional renderer transform, and face geometry in
// one of two layouts (explicit-triangle faces or a flat buffer block with
// face ranges). It converts either layout into mesh assembler input.
package cadmesh

// Source names the producer of a document.
type Source string

const (
	SourceOpenCASCADE Source = "OpenCASCADE"
	SourceManual      Source = "Manual"
)

// Quality is the tessellation quality the producer was asked for.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Metadata describes how the geometry was produced. Advisory only.
type Metadata struct {
	Name                string  `json:"name"`
	Source              Source  `json:"source"`
	TessellationQuality Quality `json:"tessellationQuality"`
	Deflection          float64 `json:"deflection"`
	AngularTolerance    float64 `json:"angularTolerance"`
}

// Vertex is one vertex of a face.
type Vertex struct {
	Pos  [3]float64 `json:"pos"`
	Norm [3]float64 `json:"norm"`
	UV   [2]float64 `json:"uv"`
}

// Triangle indexes into its face's own vertex list.
type Triangle struct {
	Vertices [3]uint32 `json:"vertices"`
}

// Face is a named surface with its own vertices. Triangles may be omitted,
// in which case every three consecutive vertices form a triangle.
type Face struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	MaterialIndex int        `json:"materialIndex"`
	Vertices      []Vertex   `json:"vertices"`
	Triangles     []Triangle `json:"triangles,omitempty"`
}

// FaceRange names a contiguous run of a BufferGeometry. Start and Count are
// vertex slots when the block has no indices, index positions otherwise.
type FaceRange struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MaterialIndex int    `json:"materialIndex"`
	Start         int    `json:"start"`
	Count         int    `json:"count"`
}

// BufferGeometry is the flat-array layout: parallel attribute arrays, an
// optional index buffer, and the face ranges within them.
type BufferGeometry struct {
	Positions []float32   `json:"positions"`
	Normals   []float32   `json:"normals"`
	UVs       []float32   `json:"uvs"`
	Indices   []uint32    `json:"indices,omitempty"`
	Faces     []FaceRange `json:"faces"`
}

// Document is the CADMeshData payload. Exactly one of Faces and
// BufferGeometry is expected; Faces wins when both are present.
type Document struct {
	ID             string          `json:"id"`
	Metadata       Metadata        `json:"metadata"`
	Transform      *Transform      `json:"transform,omitempty"`
	Faces          []Face          `json:"faces"`
	BufferGeometry *BufferGeometry `json:"bufferGeometry,omitempty"`
}

// FaceNames returns the display names of the faces in emission order.
func (d *Document) FaceNames() []string {
	if d.Faces != nil {
		names := make([]string, len(d.Faces))
		for i, f := range d.Faces {
			names[i] = f.Name
		}
		return names
	}
	if d.BufferGeometry != nil {
		names := make([]string, len(d.BufferGeometry.Faces))
		for i, f := range d.BufferGeometry.Faces {
			names[i] = f.Name
		}
		return names
	}
	return []string{}
}
