package server

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/catalog"
	"github.com/chazu/facepick/pkg/export"
	"github.com/chazu/facepick/pkg/mesh"
	"github.com/chazu/facepick/pkg/pick"
	"github.com/labstack/echo/v4"
)

// MsgpackContentType is served by the buffer route when the client accepts it.
const MsgpackContentType = "application/x-msgpack"

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// IDList is the body of the catalog listing.
type IDList struct {
	IDs []string `json:"ids"`
}

// BufferBody is the JSON body of the buffer route.
type BufferBody struct {
	ID        string             `json:"id"`
	Buffer    *mesh.Buffer       `json:"buffer"`
	Transform *cadmesh.Transform `json:"transform,omitempty"`
}

func fail(c echo.Context, f *catalog.Failure) error {
	return c.JSON(f.Status, ErrorBody{Error: f.Message})
}

func (s *Server) listGeometry(c echo.Context) error {
	return c.JSON(http.StatusOK, IDList{IDs: s.cat.IDs()})
}

// simulate waits out the configured processing delay, returning early if
// the client goes away.
func (s *Server) simulate(c echo.Context) error {
	if s.cfg.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.cfg.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
}

// lookup resolves the :id parameter. A nil document means the failure
// response has already been written.
func (s *Server) lookup(c echo.Context) (*cadmesh.Document, error) {
	doc, f := s.cat.Lookup(c.Param("id"))
	if f != nil {
		return nil, fail(c, f)
	}
	return doc, nil
}

// buffer assembles doc, reusing the previous assembly when its content has
// not changed.
func (s *Server) buffer(doc *cadmesh.Document) (*mesh.Buffer, error) {
	return s.memo(doc.ID).Get(doc.ContentKey(), doc.MeshFaces)
}

func processingFailed(c echo.Context, err error) error {
	c.Logger().Errorf("geometry %s: %v", c.Param("id"), err)
	return c.JSON(http.StatusInternalServerError, ErrorBody{Error: "CAD processing failed"})
}

func (s *Server) getGeometry(c echo.Context) error {
	if err := s.simulate(c); err != nil {
		return err
	}
	doc, err := s.lookup(c)
	if doc == nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", CacheControl)
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) getBuffer(c echo.Context) error {
	if err := s.simulate(c); err != nil {
		return err
	}
	doc, err := s.lookup(c)
	if doc == nil {
		return err
	}
	buf, err := s.buffer(doc)
	if err != nil {
		return processingFailed(c, err)
	}

	c.Response().Header().Set("Cache-Control", CacheControl)
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MsgpackContentType) {
		b, err := buf.MarshalMsg(nil)
		if err != nil {
			return processingFailed(c, err)
		}
		return c.Blob(http.StatusOK, MsgpackContentType, b)
	}
	return c.JSON(http.StatusOK, BufferBody{ID: doc.ID, Buffer: buf, Transform: doc.Transform})
}

// getGLTF exports the document as GLB. The optional selected query
// parameter lists material indices to tint as selected, comma separated.
func (s *Server) getGLTF(c echo.Context) error {
	if err := s.simulate(c); err != nil {
		return err
	}
	doc, err := s.lookup(c)
	if doc == nil {
		return err
	}
	buf, err := s.buffer(doc)
	if err != nil {
		return processingFailed(c, err)
	}

	p := pick.New(buf, s.cfg.Tints)
	if sel := c.QueryParam("selected"); sel != "" {
		for _, field := range strings.Split(sel, ",") {
			face, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return c.JSON(http.StatusBadRequest, ErrorBody{Error: "selected must be a list of face indices"})
			}
			if _, ok := p.Resolve(pick.Material(face)); ok && !p.IsSelected(face) {
				p.Toggle(face)
			}
		}
	}

	var out bytes.Buffer
	if err := export.GLB(&out, doc.Metadata.Name, buf, doc.Transform, p.Colors()); err != nil {
		return processingFailed(c, err)
	}
	c.Response().Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": doc.ID + ".glb"}))
	return c.Blob(http.StatusOK, export.ContentType, out.Bytes())
}
