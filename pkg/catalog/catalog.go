// Package catalog holds the documents and scripted failures the geometry
// endpoint serves, keyed by geometry id.
package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/samber/lo"
)

// ErrDuplicateID is returned when an id is registered twice.
var ErrDuplicateID = errors.New("duplicate geometry id")

// Failure is a scripted error response.
type Failure struct {
	Status  int
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%d: %s", f.Status, f.Message)
}

// NotFound is the failure for an id the catalog cannot serve.
func NotFound() *Failure {
	return &Failure{Status: http.StatusNotFound, Message: "Invalid geometry ID"}
}

// Entry is either a document or a failure.
type Entry struct {
	Document *cadmesh.Document
	Failure  *Failure
}

// Catalog maps geometry ids to entries. A fallback document, when set, is
// served for every id without an entry.
//
// Catalog is not safe for concurrent mutation. Once built it is read-only
// and may be shared.
type Catalog struct {
	entries  map[string]Entry
	fallback *cadmesh.Document
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

func (c *Catalog) add(id string, e Entry) error {
	if id == "" {
		return fmt.Errorf("catalog: empty geometry id")
	}
	if _, ok := c.entries[id]; ok {
		return fmt.Errorf("catalog: %w: %q", ErrDuplicateID, id)
	}
	c.entries[id] = e
	return nil
}

// Add registers a document under its own id.
func (c *Catalog) Add(doc *cadmesh.Document) error {
	return c.add(doc.ID, Entry{Document: doc})
}

// AddFailure registers a scripted failure for id.
func (c *Catalog) AddFailure(id string, f Failure) error {
	return c.add(id, Entry{Failure: &f})
}

// SetFallback sets the document served for unknown ids. Its id and name are
// replaced per lookup.
func (c *Catalog) SetFallback(doc *cadmesh.Document) {
	c.fallback = doc
}

// HasFallback reports whether unknown ids resolve to a document.
func (c *Catalog) HasFallback() bool {
	return c.fallback != nil
}

// Lookup resolves id to a document or a failure; exactly one is non-nil.
// Documents are shared and must not be modified.
func (c *Catalog) Lookup(id string) (*cadmesh.Document, *Failure) {
	if id == "" {
		return nil, NotFound()
	}
	if e, ok := c.entries[id]; ok {
		if e.Failure != nil {
			f := *e.Failure
			return nil, &f
		}
		return e.Document, nil
	}
	if c.fallback == nil {
		return nil, NotFound()
	}
	doc := *c.fallback
	doc.ID = id
	doc.Metadata.Name = DefaultName(id)
	return &doc, nil
}

// IDs returns the registered ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := lo.Keys(c.entries)
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered ids.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// DefaultName is the metadata name given to a document that has none.
func DefaultName(id string) string {
	return "CAD_Geometry_" + id
}
