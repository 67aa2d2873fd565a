package cadmesh

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform is applied by the renderer after assembly. Rotation is an
// Euler triple in radians, applied X then Y then Z in the object frame.
// Nothing in this module bakes it into vertex data.
type Transform struct {
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
}

// IdentityTransform has no translation or rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: [3]float64{1, 1, 1}}
}

// UnmarshalJSON decodes a transform, defaulting an absent scale to unit
// scale rather than zero.
func (t *Transform) UnmarshalJSON(data []byte) error {
	type plain Transform
	v := plain(IdentityTransform())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Transform(v)
	return nil
}

// IsIdentity reports whether applying t would leave vertices unchanged.
func (t *Transform) IsIdentity() bool {
	return t == nil || *t == IdentityTransform()
}

// Matrix returns the column-major model matrix T * Rx * Ry * Rz * S.
func (t *Transform) Matrix() mgl32.Mat4 {
	if t == nil {
		return mgl32.Ident4()
	}
	p, r, s := t.Position, t.Rotation, t.Scale
	return mgl32.Translate3D(float32(p[0]), float32(p[1]), float32(p[2])).
		Mul4(mgl32.HomogRotate3DX(float32(r[0]))).
		Mul4(mgl32.HomogRotate3DY(float32(r[1]))).
		Mul4(mgl32.HomogRotate3DZ(float32(r[2]))).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// Quat returns the rotation as a unit quaternion, for exporters that store
// rotation separately from translation and scale.
func (t *Transform) Quat() mgl32.Quat {
	if t == nil {
		return mgl32.QuatIdent()
	}
	r := t.Rotation
	return mgl32.AnglesToQuat(float32(r[0]), float32(r[1]), float32(r[2]), mgl32.XYZ)
}
