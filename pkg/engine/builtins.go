package engine

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/catalog"
	"github.com/chazu/facepick/pkg/kernel/sdfx"
	"github.com/chazu/facepick/pkg/tessellate"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec [3]float64
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpShape is face geometry in one of the two document layouts.
type sexpShape struct {
	kind   string
	faces  []cadmesh.Face
	buffer *cadmesh.BufferGeometry
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s)", s.kind)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

type sexpTransform struct {
	t cadmesh.Transform
}

func (t *sexpTransform) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(transform :position %v :rotation %v :scale %v)", t.t.Position, t.t.Rotation, t.t.Scale)
}
func (t *sexpTransform) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// trailing keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// unknown returns an error naming the first keyword not in allowed.
func (a kwArgs) unknown(fn string, allowed ...string) error {
	for k := range a.kw {
		found := false
		for _, name := range allowed {
			if k == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: unknown keyword :%s", fn, k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts :kw or "kw".
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toVec3 accepts a (vec3 ...) value or a three-element list or array.
func toVec3(s zygo.Sexp) ([3]float64, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil || len(items) != 3 {
		return [3]float64{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
	}
	var out [3]float64
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return [3]float64{}, err
		}
	}
	return out, nil
}

func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func toShape(s zygo.Sexp) (*sexpShape, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

func toTransform(s zygo.Sexp) (cadmesh.Transform, error) {
	if t, ok := s.(*sexpTransform); ok {
		return t.t, nil
	}
	return cadmesh.Transform{}, fmt.Errorf("expected transform, got %T (%s)", s, s.SexpString(nil))
}

func toSource(s zygo.Sexp) (cadmesh.Source, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(name) {
	case "opencascade":
		return cadmesh.SourceOpenCASCADE, nil
	case "manual":
		return cadmesh.SourceManual, nil
	}
	return "", fmt.Errorf("invalid source %q, expected opencascade or manual", name)
}

func toQuality(s zygo.Sexp) (cadmesh.Quality, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	switch q := cadmesh.Quality(name); q {
	case cadmesh.QualityLow, cadmesh.QualityMedium, cadmesh.QualityHigh:
		return q, nil
	}
	return "", fmt.Errorf("invalid quality %q, expected low, medium, or high", name)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// Defaults applied to documents that leave metadata fields out.
const (
	DefaultDeflection       = 0.1
	DefaultAngularTolerance = 0.1
)

// registerBuiltins installs the catalog builtins into env. Documents and
// failures are added to c as they are evaluated.
//
// Source must be preprocessed before evaluation so :keyword tokens reach
// the builtins as recognizable strings.
func registerBuiltins(env *zygo.Zlisp, c *catalog.Catalog) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v sexpVec3
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			v.vec[i] = f
		}
		return &v, nil
	})

	// -----------------------------------------------------------------------
	// (radians 45)
	// -----------------------------------------------------------------------
	env.AddFunction("radians", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("radians requires exactly 1 argument, got %d", len(args))
		}
		deg, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("radians: %w", err)
		}
		return &zygo.SexpFloat{Val: deg * math.Pi / 180}, nil
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 2 2 2) :layout :indexed)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("box", "size", "layout"); err != nil {
			return zygo.SexpNull, err
		}

		size := [3]float64{2, 2, 2}
		if v, ok := pa.kw["size"]; ok {
			s, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			size = s
		}
		layout := "indexed"
		if v, ok := pa.kw["layout"]; ok {
			l, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: layout: %w", err)
			}
			layout = l
		}

		switch layout {
		case "indexed":
			return &sexpShape{kind: "box", faces: cadmesh.BoxFaces(size)}, nil
		case "flat":
			return &sexpShape{kind: "box :layout :flat", buffer: cadmesh.FlatBox(size)}, nil
		}
		return zygo.SexpNull, fmt.Errorf("box: invalid layout %q, expected indexed or flat", layout)
	})

	// -----------------------------------------------------------------------
	// (solid-box :size (vec3 2 2 2) :cells 24 :offset (vec3 0 0 0))
	//
	// Registered as "solid_box"; the preprocessor rewrites the hyphen.
	// -----------------------------------------------------------------------
	env.AddFunction("solid_box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("solid-box", "size", "cells", "offset"); err != nil {
			return zygo.SexpNull, err
		}

		size := [3]float64{2, 2, 2}
		if v, ok := pa.kw["size"]; ok {
			s, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("solid-box: size: %w", err)
			}
			size = s
		}
		for _, d := range size {
			if d <= 0 {
				return zygo.SexpNull, fmt.Errorf("solid-box: size must be positive, got %v", size)
			}
		}
		cells := sdfx.DefaultCells
		if v, ok := pa.kw["cells"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("solid-box: cells: %w", err)
			}
			if n < 2 {
				return zygo.SexpNull, fmt.Errorf("solid-box: cells must be at least 2, got %d", n)
			}
			cells = n
		}

		k := sdfx.New(cells)
		solid := k.Box(size[0], size[1], size[2])
		if v, ok := pa.kw["offset"]; ok {
			off, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("solid-box: offset: %w", err)
			}
			solid = k.Translate(solid, off[0], off[1], off[2])
		}

		faces, err := tessellate.Faces(k, solid)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid-box: %w", err)
		}
		return &sexpShape{kind: "solid-box", faces: faces}, nil
	})

	// -----------------------------------------------------------------------
	// (transform :position (vec3 0 0 0) :rotation (vec3 0 0 (radians 45)) :scale (vec3 1 1 1))
	// -----------------------------------------------------------------------
	env.AddFunction("transform", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("transform", "position", "rotation", "scale"); err != nil {
			return zygo.SexpNull, err
		}

		t := cadmesh.IdentityTransform()
		fields := []struct {
			kw  string
			dst *[3]float64
		}{
			{"position", &t.Position},
			{"rotation", &t.Rotation},
			{"scale", &t.Scale},
		}
		for _, f := range fields {
			v, ok := pa.kw[f.kw]
			if !ok {
				continue
			}
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("transform: %s: %w", f.kw, err)
			}
			*f.dst = vec
		}
		return &sexpTransform{t: t}, nil
	})

	// -----------------------------------------------------------------------
	// (geometry "box2" :shape (box) :name "..." :source :opencascade
	//           :quality :medium :deflection 0.1 :angular-tolerance 0.1
	//           :transform (transform ...))
	// -----------------------------------------------------------------------
	env.AddFunction("geometry", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("geometry requires an id argument")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("geometry: id: %w", err)
		}
		doc, err := buildDocument("geometry", id, pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := c.Add(doc); err != nil {
			return zygo.SexpNull, fmt.Errorf("geometry: %w", err)
		}
		return &zygo.SexpStr{S: id}, nil
	})

	// -----------------------------------------------------------------------
	// (default-geometry :shape (box) ...)
	//
	// Served for every id without an entry. Takes the same keywords as
	// geometry; the id and name are filled in per request.
	// -----------------------------------------------------------------------
	env.AddFunction("default_geometry", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 0 {
			return zygo.SexpNull, fmt.Errorf("default-geometry takes no id")
		}
		if c.HasFallback() {
			return zygo.SexpNull, fmt.Errorf("default-geometry: already defined")
		}
		doc, err := buildDocument("default-geometry", "", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		c.SetFallback(doc)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (failure "error" :status 500 :message "CAD processing failed")
	// -----------------------------------------------------------------------
	env.AddFunction("failure", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknown("failure", "status", "message"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("failure requires an id argument")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("failure: id: %w", err)
		}

		f := catalog.Failure{Status: http.StatusInternalServerError}
		if v, ok := pa.kw["status"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("failure: status: %w", err)
			}
			if n < 400 || n > 599 {
				return zygo.SexpNull, fmt.Errorf("failure: status %d is not an error status", n)
			}
			f.Status = n
		}
		f.Message = http.StatusText(f.Status)
		if v, ok := pa.kw["message"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("failure: message: %w", err)
			}
			f.Message = s
		}

		if err := c.AddFailure(id, f); err != nil {
			return zygo.SexpNull, fmt.Errorf("failure: %w", err)
		}
		return &zygo.SexpStr{S: id}, nil
	})
}

// buildDocument reads the document keywords shared by geometry and
// default-geometry.
func buildDocument(fn, id string, pa kwArgs) (*cadmesh.Document, error) {
	if err := pa.unknown(fn, "shape", "name", "source", "quality", "deflection", "angular-tolerance", "transform"); err != nil {
		return nil, err
	}

	v, ok := pa.kw["shape"]
	if !ok {
		return nil, fmt.Errorf("%s: :shape is required", fn)
	}
	shape, err := toShape(v)
	if err != nil {
		return nil, fmt.Errorf("%s: shape: %w", fn, err)
	}

	doc := &cadmesh.Document{
		ID: id,
		Metadata: cadmesh.Metadata{
			Name:                catalog.DefaultName(id),
			Source:              cadmesh.SourceOpenCASCADE,
			TessellationQuality: cadmesh.QualityMedium,
			Deflection:          DefaultDeflection,
			AngularTolerance:    DefaultAngularTolerance,
		},
		Faces:          shape.faces,
		BufferGeometry: shape.buffer,
	}

	if v, ok := pa.kw["name"]; ok {
		if doc.Metadata.Name, err = toString(v); err != nil {
			return nil, fmt.Errorf("%s: name: %w", fn, err)
		}
	}
	if v, ok := pa.kw["source"]; ok {
		if doc.Metadata.Source, err = toSource(v); err != nil {
			return nil, fmt.Errorf("%s: source: %w", fn, err)
		}
	}
	if v, ok := pa.kw["quality"]; ok {
		if doc.Metadata.TessellationQuality, err = toQuality(v); err != nil {
			return nil, fmt.Errorf("%s: quality: %w", fn, err)
		}
	}
	if v, ok := pa.kw["deflection"]; ok {
		if doc.Metadata.Deflection, err = toFloat64(v); err != nil {
			return nil, fmt.Errorf("%s: deflection: %w", fn, err)
		}
	}
	if v, ok := pa.kw["angular-tolerance"]; ok {
		if doc.Metadata.AngularTolerance, err = toFloat64(v); err != nil {
			return nil, fmt.Errorf("%s: angular-tolerance: %w", fn, err)
		}
	}
	if v, ok := pa.kw["transform"]; ok {
		t, err := toTransform(v)
		if err != nil {
			return nil, fmt.Errorf("%s: transform: %w", fn, err)
		}
		doc.Transform = &t
	}
	return doc, nil
}
