package engine

import (
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/catalog"
)

func mustEvaluate(t *testing.T, source string) *catalog.Catalog {
	t.Helper()
	c, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if c == nil {
		t.Fatal("expected non-nil catalog")
	}
	return c
}

func mustLookup(t *testing.T, c *catalog.Catalog, id string) *cadmesh.Document {
	t.Helper()
	doc, f := c.Lookup(id)
	if f != nil {
		t.Fatalf("Lookup(%q) failed: %v", id, f)
	}
	return doc
}

func TestEvaluateEmptyString(t *testing.T) {
	for _, src := range []string{"", "   \n\t  \n  "} {
		c := mustEvaluate(t, src)
		if c.Len() != 0 || c.HasFallback() {
			t.Errorf("expected empty catalog for %q", src)
		}
	}
}

func TestEvaluatePlainLisp(t *testing.T) {
	c := mustEvaluate(t, "(def x 10)\n(def y 20)\n(+ x y)")
	if c.Len() != 0 {
		t.Errorf("expected no entries, got %d", c.Len())
	}
}

func TestEvaluateGeometryDefaults(t *testing.T) {
	c := mustEvaluate(t, `(geometry "cube" :shape (box))`)
	doc := mustLookup(t, c, "cube")

	if doc.Metadata.Name != "CAD_Geometry_cube" {
		t.Errorf("name = %q", doc.Metadata.Name)
	}
	if doc.Metadata.Source != cadmesh.SourceOpenCASCADE {
		t.Errorf("source = %q", doc.Metadata.Source)
	}
	if doc.Metadata.TessellationQuality != cadmesh.QualityMedium {
		t.Errorf("quality = %q", doc.Metadata.TessellationQuality)
	}
	if doc.Metadata.Deflection != 0.1 || doc.Metadata.AngularTolerance != 0.1 {
		t.Errorf("tolerances = %v/%v", doc.Metadata.Deflection, doc.Metadata.AngularTolerance)
	}
	if doc.Transform != nil {
		t.Errorf("expected no transform, got %+v", doc.Transform)
	}
	if len(doc.Faces) != 6 {
		t.Fatalf("expected 6 faces, got %d", len(doc.Faces))
	}
	if doc.Faces[0].Vertices[0].Pos != [3]float64{-1, -1, 1} {
		t.Errorf("default box is not 2x2x2: %v", doc.Faces[0].Vertices[0].Pos)
	}
}

func TestEvaluateGeometryKeywords(t *testing.T) {
	src := `
(geometry "part"
  :shape (box :size (vec3 4 2 6))
  :name "Bracket"
  :source :manual
  :quality :high
  :deflection 0.01
  :angular-tolerance 0.05
  :transform (transform :position [1 2 3] :rotation (vec3 0 0 (radians 90))))
`
	doc := mustLookup(t, mustEvaluate(t, src), "part")

	want := cadmesh.Metadata{
		Name:                "Bracket",
		Source:              cadmesh.SourceManual,
		TessellationQuality: cadmesh.QualityHigh,
		Deflection:          0.01,
		AngularTolerance:    0.05,
	}
	if doc.Metadata != want {
		t.Errorf("metadata = %+v, want %+v", doc.Metadata, want)
	}
	if doc.Transform == nil {
		t.Fatal("expected transform")
	}
	if doc.Transform.Position != [3]float64{1, 2, 3} {
		t.Errorf("position = %v", doc.Transform.Position)
	}
	if math.Abs(doc.Transform.Rotation[2]-math.Pi/2) > 1e-12 {
		t.Errorf("rotation = %v", doc.Transform.Rotation)
	}
	if doc.Transform.Scale != [3]float64{1, 1, 1} {
		t.Errorf("scale defaults to unit, got %v", doc.Transform.Scale)
	}
	if got := doc.Faces[1].Vertices[0].Pos; got != [3]float64{2, -1, 3} {
		t.Errorf("RIGHT corner = %v, want half extents of 4x2x6", got)
	}
}

func TestEvaluateFlatLayout(t *testing.T) {
	doc := mustLookup(t, mustEvaluate(t, `(geometry "flat" :shape (box :layout :flat))`), "flat")
	if doc.Faces != nil {
		t.Error("flat layout must not carry faces")
	}
	if doc.BufferGeometry == nil || doc.BufferGeometry.Indices != nil {
		t.Fatal("expected a non-indexed buffer block")
	}
	buf, err := doc.Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if buf.Indexed || buf.DrawCount() != 36 {
		t.Errorf("indexed=%v draw=%d, want false/36", buf.Indexed, buf.DrawCount())
	}
}

func TestEvaluateFailure(t *testing.T) {
	c := mustEvaluate(t, `
(failure "gone" :status 404 :message "Invalid geometry ID")
(failure "boom")
`)
	_, f := c.Lookup("gone")
	if f == nil || f.Status != http.StatusNotFound || f.Message != "Invalid geometry ID" {
		t.Errorf("gone = %+v", f)
	}
	_, f = c.Lookup("boom")
	if f == nil || f.Status != http.StatusInternalServerError || f.Message != "Internal Server Error" {
		t.Errorf("boom = %+v", f)
	}
}

func TestEvaluateDefaultGeometry(t *testing.T) {
	c := mustEvaluate(t, `(default-geometry :shape (box))`)
	doc := mustLookup(t, c, "anything")
	if doc.ID != "anything" || doc.Metadata.Name != "CAD_Geometry_anything" {
		t.Errorf("fallback header = %q/%q", doc.ID, doc.Metadata.Name)
	}
}

func TestEvaluateSolidBox(t *testing.T) {
	doc := mustLookup(t, mustEvaluate(t, `(geometry "k" :shape (solid-box :cells 10))`), "k")
	if len(doc.Faces) != 6 {
		t.Fatalf("expected 6 faces, got %d", len(doc.Faces))
	}
	buf, err := doc.Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if err := buf.Validate(); err != nil {
		t.Errorf("invalid buffer: %v", err)
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"parse error", `(geometry "x" :shape (box)`},
		{"missing shape", `(geometry "x")`},
		{"missing id", `(geometry :shape (box))`},
		{"unknown keyword", `(geometry "x" :shape (box) :colour "red")`},
		{"bad layout", `(box :layout :wireframe)`},
		{"bad source", `(geometry "x" :shape (box) :source :blender)`},
		{"bad quality", `(geometry "x" :shape (box) :quality :ultra)`},
		{"vec3 arity", `(vec3 1 2)`},
		{"vec3 type", `(vec3 1 "two" 3)`},
		{"non-error status", `(failure "x" :status 200)`},
		{"duplicate id", `(geometry "x" :shape (box)) (failure "x")`},
		{"second default", `(default-geometry :shape (box)) (default-geometry :shape (box))`},
		{"non-positive size", `(solid-box :size (vec3 0 1 1))`},
		{"too few cells", `(solid-box :cells 1)`},
		{"shape type", `(geometry "x" :shape (vec3 1 2 3))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected eval errors, got fatal error: %v", err)
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected eval errors")
			}
			if c != nil {
				t.Error("expected nil catalog on eval error")
			}
		})
	}
}

func TestEvalErrorString(t *testing.T) {
	if got := (EvalError{Line: 3, Message: "boom"}).Error(); got != "line 3: boom" {
		t.Errorf("got %q", got)
	}
	if got := (EvalError{Message: "boom"}).Error(); got != "boom" {
		t.Errorf("got %q", got)
	}
}

func TestParseZygomysError(t *testing.T) {
	errs := parseZygomysError(errors.New("Error on line 7: unexpected end of input\n"))
	if len(errs) != 1 || errs[0].Line != 7 || errs[0].Message != "unexpected end of input" {
		t.Errorf("got %+v", errs)
	}
	errs = parseZygomysError(errors.New("something else"))
	if errs[0].Line != 0 || errs[0].Message != "something else" {
		t.Errorf("got %+v", errs)
	}
}

func TestDefaultSource(t *testing.T) {
	c := MustDefault()

	want := []string{"box2", "cube", "error", "flat", "invalid", "kernel-box"}
	ids := c.IDs()
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	box2 := mustLookup(t, c, "box2")
	if box2.Transform == nil || math.Abs(box2.Transform.Rotation[2]-math.Pi/4) > 1e-12 {
		t.Errorf("box2 transform = %+v", box2.Transform)
	}

	_, f := c.Lookup("invalid")
	if f == nil || f.Status != 404 || f.Message != "Invalid geometry ID" {
		t.Errorf("invalid = %+v", f)
	}
	_, f = c.Lookup("error")
	if f == nil || f.Status != 500 || f.Message != "CAD processing failed" {
		t.Errorf("error = %+v", f)
	}

	anything := mustLookup(t, c, "my-part")
	if anything.Metadata.Name != "CAD_Geometry_my-part" || len(anything.Faces) != 6 {
		t.Errorf("fallback = %q with %d faces", anything.Metadata.Name, len(anything.Faces))
	}
}

// zygomys sandboxes share global state, so evaluations run sequentially.
func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()
	var keys []string
	for i := 0; i < 3; i++ {
		c, evalErrs, err := eng.Evaluate(`(geometry "cube" :shape (box :size (vec3 1 2 3)))`)
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("iteration %d: %v %v", i, err, evalErrs)
		}
		doc, _ := c.Lookup("cube")
		keys = append(keys, doc.ContentKey())
	}
	if keys[0] != keys[1] || keys[1] != keys[2] {
		t.Errorf("evaluations differ: %v", keys)
	}
}

func TestWaitDiscardsStaleGeneration(t *testing.T) {
	var mu sync.Mutex
	current := uint64(2)

	ch := make(chan evalResult, 1)
	ch <- evalResult{catalog: catalog.New()}

	c, _, err := waitWithTimeout(ch, 1, &mu, &current)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if c != nil {
		t.Error("stale result must be discarded")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	_, evalErrs, err := NewEngine().Evaluate(`(geometry "x" :shape undefined-shape)`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 || evalErrs[0].Message == "" {
		t.Fatalf("expected a populated eval error, got %v", evalErrs)
	}
}
