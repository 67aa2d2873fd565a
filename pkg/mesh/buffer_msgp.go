package mesh

import (
	"github.com/tinylib/msgp/msgp"
)

// MessagePack encoding of Buffer. Field names match the JSON encoding so a
// frontend can decode either form with the same schema.

var (
	_ msgp.Marshaler   = (*Buffer)(nil)
	_ msgp.Unmarshaler = (*Buffer)(nil)
	_ msgp.Sizer       = (*Buffer)(nil)
)

// MarshalMsg appends the MessagePack encoding of b to o.
func (b *Buffer) MarshalMsg(o []byte) ([]byte, error) {
	o = msgp.Require(o, b.Msgsize())
	o = msgp.AppendMapHeader(o, 7)

	o = msgp.AppendString(o, "positions")
	o = appendFloat32s(o, b.Positions)
	o = msgp.AppendString(o, "normals")
	o = appendFloat32s(o, b.Normals)
	o = msgp.AppendString(o, "uvs")
	o = appendFloat32s(o, b.UVs)

	o = msgp.AppendString(o, "indices")
	if b.Indices == nil {
		o = msgp.AppendNil(o)
	} else {
		o = msgp.AppendArrayHeader(o, uint32(len(b.Indices)))
		for _, idx := range b.Indices {
			o = msgp.AppendUint32(o, idx)
		}
	}

	o = msgp.AppendString(o, "indexed")
	o = msgp.AppendBool(o, b.Indexed)

	o = msgp.AppendString(o, "groups")
	o = msgp.AppendArrayHeader(o, uint32(len(b.Groups)))
	for _, g := range b.Groups {
		o = msgp.AppendMapHeader(o, 3)
		o = msgp.AppendString(o, "start")
		o = msgp.AppendInt(o, g.Start)
		o = msgp.AppendString(o, "count")
		o = msgp.AppendInt(o, g.Count)
		o = msgp.AppendString(o, "materialIndex")
		o = msgp.AppendInt(o, g.MaterialIndex)
	}

	o = msgp.AppendString(o, "faceNames")
	o = msgp.AppendArrayHeader(o, uint32(len(b.FaceNames)))
	for _, name := range b.FaceNames {
		o = msgp.AppendString(o, name)
	}
	return o, nil
}

// UnmarshalMsg decodes a Buffer from bts and returns the remaining bytes.
// Unknown fields are skipped.
func (b *Buffer) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}

	var field []byte
	for ; n > 0; n-- {
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}
		switch msgp.UnsafeString(field) {
		case "positions":
			b.Positions, bts, err = readFloat32s(bts)
		case "normals":
			b.Normals, bts, err = readFloat32s(bts)
		case "uvs":
			b.UVs, bts, err = readFloat32s(bts)
		case "indices":
			b.Indices, bts, err = readUint32s(bts)
		case "indexed":
			b.Indexed, bts, err = msgp.ReadBoolBytes(bts)
		case "groups":
			b.Groups, bts, err = readGroups(bts)
		case "faceNames":
			b.FaceNames, bts, err = readStrings(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, msgp.WrapError(err, string(field))
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound for the encoded size of b.
func (b *Buffer) Msgsize() int {
	s := msgp.MapHeaderSize
	s += 3*(msgp.StringPrefixSize+9) + msgp.ArrayHeaderSize*3
	s += (len(b.Positions) + len(b.Normals) + len(b.UVs)) * msgp.Float32Size
	s += msgp.StringPrefixSize + 7 + msgp.ArrayHeaderSize + len(b.Indices)*msgp.Uint32Size
	s += msgp.StringPrefixSize + 7 + msgp.BoolSize
	s += msgp.StringPrefixSize + 6 + msgp.ArrayHeaderSize
	s += len(b.Groups) * (msgp.MapHeaderSize + 3*msgp.StringPrefixSize + 5 + 5 + 13 + 3*msgp.IntSize)
	s += msgp.StringPrefixSize + 9 + msgp.ArrayHeaderSize
	for _, name := range b.FaceNames {
		s += msgp.StringPrefixSize + len(name)
	}
	return s
}

func appendFloat32s(o []byte, fs []float32) []byte {
	o = msgp.AppendArrayHeader(o, uint32(len(fs)))
	for _, f := range fs {
		o = msgp.AppendFloat32(o, f)
	}
	return o
}

// readArrayHeader reads an array header whose length is bounded by the
// remaining input, since every element takes at least one byte.
func readArrayHeader(bts []byte) (uint32, []byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return 0, bts, err
	}
	if uint64(n) > uint64(len(rest)) {
		return 0, bts, msgp.ErrShortBytes
	}
	return n, rest, nil
}

func readFloat32s(bts []byte) ([]float32, []byte, error) {
	n, bts, err := readArrayHeader(bts)
	if err != nil {
		return nil, bts, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i], bts, err = msgp.ReadFloat32Bytes(bts)
		if err != nil {
			return nil, bts, msgp.WrapError(err, i)
		}
	}
	return out, bts, nil
}

func readUint32s(bts []byte) ([]uint32, []byte, error) {
	if msgp.IsNil(bts) {
		bts, err := msgp.ReadNilBytes(bts)
		return nil, bts, err
	}
	n, bts, err := readArrayHeader(bts)
	if err != nil {
		return nil, bts, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i], bts, err = msgp.ReadUint32Bytes(bts)
		if err != nil {
			return nil, bts, msgp.WrapError(err, i)
		}
	}
	return out, bts, nil
}

func readGroups(bts []byte) ([]Group, []byte, error) {
	n, bts, err := readArrayHeader(bts)
	if err != nil {
		return nil, bts, err
	}
	out := make([]Group, n)
	for i := range out {
		var fields uint32
		fields, bts, err = msgp.ReadMapHeaderBytes(bts)
		if err != nil {
			return nil, bts, msgp.WrapError(err, i)
		}
		var key []byte
		for ; fields > 0; fields-- {
			key, bts, err = msgp.ReadMapKeyZC(bts)
			if err != nil {
				return nil, bts, msgp.WrapError(err, i)
			}
			switch msgp.UnsafeString(key) {
			case "start":
				out[i].Start, bts, err = msgp.ReadIntBytes(bts)
			case "count":
				out[i].Count, bts, err = msgp.ReadIntBytes(bts)
			case "materialIndex":
				out[i].MaterialIndex, bts, err = msgp.ReadIntBytes(bts)
			default:
				bts, err = msgp.Skip(bts)
			}
			if err != nil {
				return nil, bts, msgp.WrapError(err, i, string(key))
			}
		}
	}
	return out, bts, nil
}

func readStrings(bts []byte) ([]string, []byte, error) {
	n, bts, err := readArrayHeader(bts)
	if err != nil {
		return nil, bts, err
	}
	out := make([]string, n)
	for i := range out {
		out[i], bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return nil, bts, msgp.WrapError(err, i)
		}
	}
	return out, bts, nil
}
