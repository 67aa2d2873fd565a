package mesh

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

var cubeFaceNames = []string{"FRONT", "RIGHT", "BACK", "LEFT", "TOP", "BOTTOM"}

// quad returns a 4-vertex face with two explicit triangles.
func quad(name string, material int, normal [3]float32) Face {
	return Face{
		ID:            name,
		Name:          name,
		MaterialIndex: material,
		Vertices: []Vertex{
			{Position: [3]float32{-1, -1, 1}, Normal: normal, UV: [2]float32{0, 0}},
			{Position: [3]float32{1, -1, 1}, Normal: normal, UV: [2]float32{1, 0}},
			{Position: [3]float32{1, 1, 1}, Normal: normal, UV: [2]float32{1, 1}},
			{Position: [3]float32{-1, 1, 1}, Normal: normal, UV: [2]float32{0, 1}},
		},
		Triangles: []Triangle{{0, 1, 2}, {2, 3, 0}},
	}
}

// flatQuad returns a 6-vertex face in the implicit layout.
func flatQuad(name string, material int) Face {
	f := quad(name, material, [3]float32{0, 0, 1})
	v := f.Vertices
	return Face{
		ID:            name,
		Name:          name,
		MaterialIndex: material,
		Vertices:      []Vertex{v[0], v[1], v[3], v[3], v[1], v[2]},
	}
}

func indexedCube() []Face {
	faces := make([]Face, len(cubeFaceNames))
	for i, name := range cubeFaceNames {
		faces[i] = quad(name, i, [3]float32{0, 0, 1})
	}
	return faces
}

func flatCube() []Face {
	faces := make([]Face, len(cubeFaceNames))
	for i, name := range cubeFaceNames {
		faces[i] = flatQuad(name, i)
	}
	return faces
}

func TestAssembleIndexedCubeGroups(t *testing.T) {
	buf, err := Assemble(indexedCube())
	require.NoError(t, err)

	want := []Group{
		{Start: 0, Count: 6, MaterialIndex: 0},
		{Start: 6, Count: 6, MaterialIndex: 1},
		{Start: 12, Count: 6, MaterialIndex: 2},
		{Start: 18, Count: 6, MaterialIndex: 3},
		{Start: 24, Count: 6, MaterialIndex: 4},
		{Start: 30, Count: 6, MaterialIndex: 5},
	}
	require.Equal(t, want, buf.Groups)
	require.True(t, buf.Indexed)
	require.Len(t, buf.Indices, 36)
	require.Equal(t, 24, buf.VertexCount())
	require.Equal(t, 12, buf.TriangleCount())
	require.Equal(t, cubeFaceNames, buf.FaceNames)
	require.NoError(t, buf.Validate())
}

func TestAssembleRemapsLocalIndices(t *testing.T) {
	buf, err := Assemble(indexedCube()[:2])
	require.NoError(t, err)

	// The second face's local 0..3 become 4..7.
	require.Equal(t, []uint32{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4}, buf.Indices)
}

func TestAssembleFlatCubeGroups(t *testing.T) {
	buf, err := Assemble(flatCube())
	require.NoError(t, err)

	require.False(t, buf.Indexed)
	require.Nil(t, buf.Indices)
	require.Equal(t, 36, buf.VertexCount())
	for i, g := range buf.Groups {
		require.Equal(t, Group{Start: i * 6, Count: 6, MaterialIndex: i}, g)
	}
	require.NoError(t, buf.Validate())
}

func TestAssembleMixedLayoutPromotesImplicitFaces(t *testing.T) {
	faces := []Face{quad("A", 0, [3]float32{0, 0, 1}), flatQuad("B", 1)}
	buf, err := Assemble(faces)
	require.NoError(t, err)

	require.True(t, buf.Indexed)
	require.Equal(t, []Group{{0, 6, 0}, {6, 6, 1}}, buf.Groups)
	require.Equal(t, []uint32{4, 5, 6, 7, 8, 9}, buf.Indices[6:])
	require.NoError(t, buf.Validate())
}

func TestAssembleEmpty(t *testing.T) {
	for _, faces := range [][]Face{nil, {}} {
		buf, err := Assemble(faces)
		require.NoError(t, err)
		require.True(t, buf.IsEmpty())
		require.Empty(t, buf.Groups)
		require.Zero(t, buf.DrawCount())
		require.NoError(t, buf.Validate())
	}
}

func TestAssembleIdempotent(t *testing.T) {
	for _, tc := range []struct {
		name  string
		faces []Face
	}{
		{"indexed", indexedCube()},
		{"flat", flatCube()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, err := Assemble(tc.faces)
			require.NoError(t, err)
			b, err := Assemble(tc.faces)
			require.NoError(t, err)

			ab, err := a.MarshalMsg(nil)
			require.NoError(t, err)
			bb, err := b.MarshalMsg(nil)
			require.NoError(t, err)
			require.Equal(t, ab, bb)
		})
	}
}

func TestAssembleGroupInvariants(t *testing.T) {
	// Faces with uneven triangle counts and non-sequential material indices.
	faces := []Face{
		quad("A", 2, [3]float32{1, 0, 0}),
		{ID: "B", MaterialIndex: 0, Vertices: quad("B", 0, [3]float32{}).Vertices, Triangles: []Triangle{{0, 1, 2}}},
		quad("C", 1, [3]float32{0, 1, 0}),
	}
	faces[2].Triangles = append(faces[2].Triangles, Triangle{0, 2, 3})

	buf, err := Assemble(faces)
	require.NoError(t, err)
	require.NoError(t, buf.Validate())
	require.Equal(t, []int{2, 0, 1}, buf.MaterialIndices())

	sum := 0
	for _, g := range buf.Groups {
		sum += g.Count
	}
	require.Equal(t, len(buf.Indices), sum)
}

func TestAssembleCopiesNormalsVerbatim(t *testing.T) {
	// Not unit length; the assembler must not touch it.
	odd := [3]float32{3, 4, 12}
	buf, err := Assemble([]Face{quad("A", 0, odd)})
	require.NoError(t, err)
	require.Equal(t, []float32{3, 4, 12}, buf.Normals[:3])
}

func TestAssembleRejectsOutOfRangeIndex(t *testing.T) {
	bad := quad("broken", 0, [3]float32{})
	bad.Triangles = append(bad.Triangles, Triangle{0, 1, 4})

	_, err := Assemble([]Face{quad("ok", 0, [3]float32{}), bad})
	require.Error(t, err)

	var ie *IndexError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, "broken", ie.Face)
	require.Equal(t, 2, ie.Triangle)
	require.Equal(t, uint32(4), ie.Index)
	require.Equal(t, 4, ie.VertexCount)
}

func TestAssembleRejectsBadImplicitLayout(t *testing.T) {
	f := flatQuad("short", 0)
	f.Vertices = f.Vertices[:5]

	_, err := Assemble([]Face{f})
	var le *LayoutError
	require.True(t, errors.As(err, &le))
	require.Equal(t, 5, le.VertexCount)
}

func TestAssembleRejectsNegativeMaterial(t *testing.T) {
	_, err := Assemble([]Face{quad("neg", -1, [3]float32{})})
	require.Error(t, err)
}

func TestBufferValidate(t *testing.T) {
	valid := func() *Buffer {
		buf, err := Assemble(indexedCube()[:2])
		require.NoError(t, err)
		return buf
	}

	tests := []struct {
		name   string
		mutate func(b *Buffer)
		gap    bool
	}{
		{"gap between groups", func(b *Buffer) { b.Groups[1].Start = 7 }, true},
		{"short coverage", func(b *Buffer) { b.Groups[1].Count = 3 }, true},
		{"index out of range", func(b *Buffer) { b.Indices[0] = 99 }, false},
		{"normals length", func(b *Buffer) { b.Normals = b.Normals[:3] }, false},
		{"uv length", func(b *Buffer) { b.UVs = append(b.UVs, 0) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			err := b.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if got := errors.Is(err, ErrGroupCoverage); got != tt.gap {
				t.Errorf("errors.Is(ErrGroupCoverage) = %v, want %v (%v)", got, tt.gap, err)
			}
		})
	}
}

func TestBufferFaceName(t *testing.T) {
	buf, err := Assemble(indexedCube())
	require.NoError(t, err)
	require.Equal(t, "TOP", buf.FaceName(4))
	require.Equal(t, "", buf.FaceName(17))
}

func TestBufferMsgpRoundTrip(t *testing.T) {
	for _, faces := range [][]Face{indexedCube(), flatCube(), nil} {
		buf, err := Assemble(faces)
		require.NoError(t, err)

		data, err := buf.MarshalMsg(nil)
		require.NoError(t, err)
		require.LessOrEqual(t, len(data), buf.Msgsize())

		var got Buffer
		rest, err := got.UnmarshalMsg(data)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.Equal(t, buf.Indexed, got.Indexed)
		require.Equal(t, buf.Groups, got.Groups)
		require.Equal(t, buf.FaceNames, got.FaceNames)
		require.Equal(t, buf.Indices == nil, got.Indices == nil)
		require.True(t, reflect.DeepEqual(buf.Positions, got.Positions))
	}
}

func TestBufferMsgpRejectsOversizedArrays(t *testing.T) {
	for _, field := range []string{"positions", "indices", "groups", "faceNames"} {
		data := msgp.AppendMapHeader(nil, 1)
		data = msgp.AppendString(data, field)
		data = append(data, 0xdd, 0xff, 0xff, 0xff, 0xff)

		var got Buffer
		_, err := got.UnmarshalMsg(data)
		require.ErrorIs(t, err, msgp.ErrShortBytes, field)
	}
}

func TestMemoRebuildsOnlyOnKeyChange(t *testing.T) {
	var m Memo
	loads := 0
	load := func() ([]Face, error) {
		loads++
		return indexedCube(), nil
	}

	a, err := m.Get("cube@1", load)
	require.NoError(t, err)
	b, err := m.Get("cube@1", load)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 1, loads)

	c, err := m.Get("cube@2", load)
	require.NoError(t, err)
	require.NotSame(t, a, c)
	require.Equal(t, 2, m.Builds())

	m.Invalidate()
	_, err = m.Get("cube@2", load)
	require.NoError(t, err)
	require.Equal(t, 3, loads)
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	var m Memo
	boom := errors.New("boom")
	_, err := m.Get("k", func() ([]Face, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	buf, err := m.Get("k", func() ([]Face, error) { return indexedCube(), nil })
	require.NoError(t, err)
	require.False(t, buf.IsEmpty())
}
