// Package export writes assembled meshes as binary glTF.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/mesh"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ContentType is the media type of a GLB stream.
const ContentType = "model/gltf-binary"

// DefaultColor is used for faces without a tint.
const DefaultColor = "#cccccc"

// Document builds a glTF document for buf. The vertex attributes are shared;
// each material group becomes one primitive with its own indices and
// material. The transform is carried on the node, never applied to the
// vertices. colors is indexed by material index; missing entries use
// DefaultColor.
func Document(name string, buf *mesh.Buffer, tr *cadmesh.Transform, colors []string) (*gltf.Document, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "facepick"

	var prims []*gltf.Primitive
	if !buf.IsEmpty() {
		attrs := map[string]int{
			gltf.POSITION:   modeler.WritePosition(doc, vec3s(buf.Positions)),
			gltf.NORMAL:     modeler.WriteNormal(doc, vec3s(buf.Normals)),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, vec2s(buf.UVs)),
		}
		for _, g := range buf.Groups {
			mat, err := material(buf.FaceName(g.MaterialIndex), colorAt(colors, g.MaterialIndex))
			if err != nil {
				return nil, fmt.Errorf("export: face %d: %w", g.MaterialIndex, err)
			}
			doc.Materials = append(doc.Materials, mat)
			prims = append(prims, &gltf.Primitive{
				Attributes: attrs,
				Indices:    gltf.Index(modeler.WriteIndices(doc, groupIndices(buf, g))),
				Material:   gltf.Index(len(doc.Materials) - 1),
			})
		}
	}

	node := &gltf.Node{Name: name}
	if len(prims) > 0 {
		doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: prims}}
		node.Mesh = gltf.Index(0)
	}
	if !tr.IsIdentity() {
		q := tr.Quat()
		node.Translation = tr.Position
		node.Rotation = [4]float64{float64(q.V[0]), float64(q.V[1]), float64(q.V[2]), float64(q.W)}
		node.Scale = tr.Scale
	}
	doc.Nodes = []*gltf.Node{node}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// GLB writes buf as a binary glTF stream to w.
func GLB(w io.Writer, name string, buf *mesh.Buffer, tr *cadmesh.Transform, colors []string) error {
	doc, err := Document(name, buf, tr, colors)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// groupIndices returns the vertex indices drawn by g. Non-indexed buffers
// draw their vertices in order.
func groupIndices(buf *mesh.Buffer, g mesh.Group) []uint32 {
	if buf.Indexed {
		return buf.Indices[g.Start:g.End()]
	}
	out := make([]uint32, g.Count)
	for i := range out {
		out[i] = uint32(g.Start + i)
	}
	return out
}

func material(name, color string) (*gltf.Material, error) {
	rgba, err := parseHex(color)
	if err != nil {
		return nil, err
	}
	return &gltf.Material{
		Name:        name,
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &rgba,
		},
	}, nil
}

func colorAt(colors []string, i int) string {
	if i < len(colors) && colors[i] != "" {
		return colors[i]
	}
	return DefaultColor
}

// parseHex reads #rrggbb into an opaque RGBA factor.
func parseHex(s string) ([4]float64, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return [4]float64{}, fmt.Errorf("color %q is not #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return [4]float64{}, fmt.Errorf("color %q: %w", s, err)
	}
	return [4]float64{
		float64(v>>16&0xff) / 255,
		float64(v>>8&0xff) / 255,
		float64(v&0xff) / 255,
		1,
	}, nil
}

func vec3s(f []float32) [][3]float32 {
	out := make([][3]float32, len(f)/3)
	for i := range out {
		out[i] = [3]float32{f[i*3], f[i*3+1], f[i*3+2]}
	}
	return out
}

func vec2s(f []float32) [][2]float32 {
	out := make([][2]float32, len(f)/2)
	for i := range out {
		out[i] = [2]float32{f[i*2], f[i*2+1]}
	}
	return out
}
