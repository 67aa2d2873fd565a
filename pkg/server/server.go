// Package server serves the geometry catalog over HTTP: CAD mesh documents,
// assembled buffers, glTF exports and websocket pick sessions.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chazu/facepick/pkg/catalog"
	"github.com/chazu/facepick/pkg/mesh"
	"github.com/chazu/facepick/pkg/pick"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultDelay is the simulated CAD processing time per document request.
const DefaultDelay = 100 * time.Millisecond

// CacheControl is sent with every served document.
const CacheControl = "public, max-age=3600"

// Config holds server options.
type Config struct {
	// Delay is applied before every document lookup. Zero disables it.
	Delay time.Duration

	// Tints colour faces in pick sessions and glTF exports.
	Tints pick.Tints

	// AccessLog receives one line per request. Nil disables request logging.
	AccessLog io.Writer
}

// DefaultConfig returns the settings the endpoint ships with.
func DefaultConfig() Config {
	return Config{Delay: DefaultDelay, Tints: pick.DefaultTints}
}

// Server is the geometry endpoint.
type Server struct {
	cat  *catalog.Catalog
	cfg  Config
	echo *echo.Echo

	mu    sync.Mutex
	memos map[string]*mesh.Memo
}

// New builds a server over cat. The catalog must not be modified afterwards.
func New(cat *catalog.Catalog, cfg Config) *Server {
	if cfg.Tints == (pick.Tints{}) {
		cfg.Tints = pick.DefaultTints
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if cfg.AccessLog != nil {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human}\n",
			Output: cfg.AccessLog,
		}))
	}

	s := &Server{
		cat:   cat,
		cfg:   cfg,
		echo:  e,
		memos: make(map[string]*mesh.Memo),
	}

	g := e.Group("/api/geometry")
	g.GET("", s.listGeometry)
	g.GET("/:id", s.getGeometry)
	g.GET("/:id/buffer", s.getBuffer)
	g.GET("/:id/gltf", s.getGLTF)
	g.GET("/:id/pick", s.pickSession)
	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.echo.Listener = ln
	err := s.echo.Start("")
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ListenAndServe listens on addr and serves until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// maxMemos bounds the per-id buffer caches. Unknown ids resolve to the
// fallback document, so the id space is unbounded.
const maxMemos = 256

// memo returns the buffer cache for id.
func (s *Server) memo(id string) *mesh.Memo {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[id]
	if !ok {
		if len(s.memos) >= maxMemos {
			s.memos = make(map[string]*mesh.Memo)
		}
		m = &mesh.Memo{}
		s.memos[id] = m
	}
	return m
}
