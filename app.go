package main

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/engine"
	"github.com/chazu/facepick/pkg/loader"
	"github.com/chazu/facepick/pkg/mesh"
	"github.com/chazu/facepick/pkg/pick"
	"github.com/chazu/facepick/pkg/server"
	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Events emitted to the frontend.
const (
	EventPickChanged   = "pick:changed"
	EventGeometryState = "geometry:state"
)

// Config holds the desktop app settings.
type Config struct {
	// GeometryURL is the geometry endpoint root. When empty the app serves
	// the default catalog itself on a loopback port.
	GeometryURL string

	Tints pick.Tints

	// Delay is the simulated processing time of the embedded endpoint.
	Delay time.Duration
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	cfg    Config
	loader *loader.Loader
	server *server.Server

	// emit sends a frontend event. It is a no-op until startup wires it to
	// the Wails runtime.
	emit func(ctx context.Context, name string, data ...interface{})

	mu      sync.Mutex
	picker  *pick.Picker
	mounted string
}

// GeometryResult is the JSON-serializable load outcome sent to the frontend.
type GeometryResult struct {
	ID        string             `json:"id"`
	State     string             `json:"state"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"errorKind,omitempty"`
	Metadata  *cadmesh.Metadata  `json:"metadata,omitempty"`
	Transform *cadmesh.Transform `json:"transform,omitempty"`
	Buffer    *mesh.Buffer       `json:"buffer,omitempty"`
	Pick      pick.State         `json:"pick"`
}

// PickResult is the pick state after a pointer binding.
type PickResult struct {
	Changed bool       `json:"changed"`
	State   pick.State `json:"state"`
	Error   string     `json:"error,omitempty"`
}

// NewApp creates an App. Zero-valued tints fall back to pick.DefaultTints.
func NewApp(cfg Config) *App {
	if cfg.Tints == (pick.Tints{}) {
		cfg.Tints = pick.DefaultTints
	}
	return &App{
		cfg:  cfg,
		emit: func(context.Context, string, ...interface{}) {},
	}
}

// startup is called by Wails on app startup.
func (a *App) startup(ctx context.Context) {
	a.emit = wailsruntime.EventsEmit
	if err := a.start(ctx); err != nil {
		log.Printf("startup: %v", err)
	}
}

// shutdown is called by Wails when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	if a.server == nil {
		return
	}
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: geometry server: %v", err)
	}
}

// start saves ctx, brings up the embedded endpoint if no URL is configured,
// and creates the loader.
func (a *App) start(ctx context.Context) error {
	a.ctx = ctx

	base := a.cfg.GeometryURL
	if base == "" {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}
		a.server = server.New(engine.MustDefault(), server.Config{Delay: a.cfg.Delay, Tints: a.cfg.Tints})
		go func() {
			if err := a.server.Serve(ln); err != nil {
				log.Printf("geometry server: %v", err)
			}
		}()
		base = "http://" + ln.Addr().String()
		log.Printf("geometry server listening on %s", base)
	}

	a.loader = loader.New(loader.Config{BaseURL: base})
	a.loader.OnChange = func(r loader.Result) {
		a.emit(a.ctx, EventGeometryState, r)
	}
	return nil
}

var errNotStarted = errors.New("app not started")

// LoadGeometry fetches and assembles the geometry for id, mounting a fresh
// pick state when the mesh changes.
func (a *App) LoadGeometry(id string) GeometryResult {
	if a.loader == nil {
		return a.failed(id, errNotStarted)
	}
	res, err := a.loader.Load(a.ctx, id)
	return a.settle(id, res, err)
}

// Refetch repeats the most recent load.
func (a *App) Refetch() GeometryResult {
	if a.loader == nil {
		return a.failed("", errNotStarted)
	}
	res, err := a.loader.Refetch(a.ctx)
	return a.settle(res.Key, res, err)
}

func (a *App) settle(id string, res loader.Result, err error) GeometryResult {
	if errors.Is(err, loader.ErrSuperseded) {
		return a.superseded()
	}

	var le *loader.LoadError
	if errors.As(err, &le) {
		log.Printf("LoadGeometry %q: %s", id, le.Message)
		a.unmount(res.Generation)
		out := a.failed(id, le)
		out.ErrorKind = le.Kind.String()
		return out
	}
	if err != nil {
		log.Printf("LoadGeometry %q: %v", id, err)
		return a.failed(id, err)
	}

	buf, err := a.loader.BufferFor(res)
	if err != nil {
		log.Printf("LoadGeometry %q: assemble: %v", id, err)
		a.unmount(res.Generation)
		out := a.failed(id, err)
		out.ErrorKind = loader.ProcessingFailed.String()
		return out
	}

	st, ok := a.mount(res, buf)
	if !ok {
		return a.superseded()
	}
	return GeometryResult{
		ID:        res.Document.ID,
		State:     res.State.String(),
		Metadata:  &res.Document.Metadata,
		Transform: res.Document.Transform,
		Buffer:    buf,
		Pick:      st,
	}
}

// superseded reports the newer request's state to a caller whose load lost.
func (a *App) superseded() GeometryResult {
	cur := a.loader.Current()
	return GeometryResult{ID: cur.Key, State: cur.State.String(), Pick: a.PickState().State}
}

func (a *App) failed(id string, err error) GeometryResult {
	return GeometryResult{
		ID:    id,
		State: loader.Failed.String(),
		Error: err.Error(),
		Pick:  emptyState(),
	}
}

// mount installs a new Picker for res unless its mesh is already mounted,
// and returns the current pick state. It refuses when a newer load has
// started since res was fetched.
func (a *App) mount(res loader.Result, buf *mesh.Buffer) (pick.State, bool) {
	key := res.Key + "/" + res.Document.ContentKey()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loader.IsCurrent(res.Generation) {
		return pick.State{}, false
	}
	if a.picker == nil || a.mounted != key {
		p := pick.New(buf, a.cfg.Tints)
		p.OnChange = func(st pick.State) {
			a.emit(a.ctx, EventPickChanged, st)
		}
		a.picker = p
		a.mounted = key
	}
	return a.picker.State(), true
}

// unmount drops the picker, unless a newer load than gen has started.
func (a *App) unmount(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loader.IsCurrent(gen) {
		return
	}
	a.picker = nil
	a.mounted = ""
}

func emptyState() pick.State {
	return pick.State{Hovered: pick.None, Selected: []int{}, Colors: []string{}}
}

// withPicker runs fn against the mounted picker.
func (a *App) withPicker(fn func(p *pick.Picker) bool) PickResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.picker == nil {
		return PickResult{State: emptyState(), Error: "no geometry mounted"}
	}
	changed := fn(a.picker)
	return PickResult{Changed: changed, State: a.picker.State()}
}

// PointerMove reports the face under the pointer.
func (a *App) PointerMove(loc pick.Locator) PickResult {
	return a.withPicker(func(p *pick.Picker) bool { return p.Move(loc) })
}

// PointerLeave reports that the pointer left the mesh.
func (a *App) PointerLeave() PickResult {
	return a.withPicker(func(p *pick.Picker) bool { return p.Leave() })
}

// Click toggles the selection of the face under the pointer.
func (a *App) Click(loc pick.Locator) PickResult {
	return a.withPicker(func(p *pick.Picker) bool { return p.Click(loc) })
}

// PickState returns the current pick state without changing it.
func (a *App) PickState() PickResult {
	return a.withPicker(func(*pick.Picker) bool { return false })
}
