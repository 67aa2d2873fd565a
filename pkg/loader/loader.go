// Package loader fetches CAD mesh documents from a geometry endpoint and
// tracks the most recent request. Responses to superseded requests are
// discarded so a slow, older response can never overwrite a newer one.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chazu/facepick/pkg/cadmesh"
	"github.com/chazu/facepick/pkg/mesh"
)

// State is the lifecycle of the current request.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind classifies a load failure.
type Kind int

const (
	FetchFailed Kind = iota + 1
	InvalidData
	ProcessingFailed
)

func (k Kind) String() string {
	switch k {
	case FetchFailed:
		return "fetch_failed"
	case InvalidData:
		return "invalid_data"
	case ProcessingFailed:
		return "processing_failed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// LoadError is a failed load as surfaced to the UI.
type LoadError struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrSuperseded is returned by Load when a newer request started before
// the response arrived. The response has been discarded.
var ErrSuperseded = errors.New("loader: superseded by a newer request")

// ErrNoRequest is returned by Refetch before any Load.
var ErrNoRequest = errors.New("loader: nothing to refetch")

// Result is the outcome of the current request.
type Result struct {
	Key        string            `json:"key"`
	Generation uint64            `json:"generation"`
	State      State             `json:"state"`
	Document   *cadmesh.Document `json:"document,omitempty"`
	Err        *LoadError        `json:"-"`
}

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 30 * time.Second

// Config holds loader options.
type Config struct {
	// BaseURL is the endpoint root; documents are fetched from
	// {BaseURL}/api/geometry/{id}.
	BaseURL string

	// Client defaults to an http.Client with DefaultTimeout.
	Client *http.Client
}

// Loader fetches one geometry at a time. It is safe for concurrent use.
type Loader struct {
	base   string
	client *http.Client

	mu         sync.Mutex
	generation uint64
	current    Result

	memo mesh.Memo

	// OnChange, if set, is called with every published result. It runs
	// with no lock held.
	OnChange func(Result)
}

// New returns a loader for cfg.
func New(cfg Config) *Loader {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Loader{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: client,
	}
}

// Load fetches the document for id. The request is tagged with a new
// generation and Loading is published immediately; the outcome is
// published only if no newer request has started since. A superseded
// request returns ErrSuperseded. Failures are returned as *LoadError and
// published as Failed.
func (l *Loader) Load(ctx context.Context, id string) (Result, error) {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	loading := Result{Key: id, Generation: gen, State: Loading}
	l.current = loading
	l.mu.Unlock()
	l.notify(loading)

	doc, loadErr := l.fetch(ctx, id)

	res := Result{Key: id, Generation: gen, State: Ready, Document: doc}
	if loadErr != nil {
		res = Result{Key: id, Generation: gen, State: Failed, Err: loadErr}
	}

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		return Result{}, ErrSuperseded
	}
	l.current = res
	l.mu.Unlock()
	l.notify(res)

	if loadErr != nil {
		return res, loadErr
	}
	return res, nil
}

// Refetch repeats the current request under a new generation.
func (l *Loader) Refetch(ctx context.Context) (Result, error) {
	l.mu.Lock()
	key, started := l.current.Key, l.generation > 0
	l.mu.Unlock()
	if !started {
		return Result{}, ErrNoRequest
	}
	return l.Load(ctx, key)
}

// Current returns the latest published result.
func (l *Loader) Current() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// IsCurrent reports whether gen is still the latest request.
func (l *Loader) IsCurrent(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen == l.generation
}

// Buffer assembles the current document. The assembly is reused until the
// key or the document content changes.
func (l *Loader) Buffer() (*mesh.Buffer, error) {
	return l.BufferFor(l.Current())
}

// BufferFor assembles the document carried by res, which need not be the
// current result.
func (l *Loader) BufferFor(res Result) (*mesh.Buffer, error) {
	if res.State != Ready || res.Document == nil {
		return nil, fmt.Errorf("loader: no document ready (state %s)", res.State)
	}
	return l.memo.Get(res.Key+"/"+res.Document.ContentKey(), res.Document.MeshFaces)
}

// Builds reports how many times Buffer has assembled a document.
func (l *Loader) Builds() int {
	return l.memo.Builds()
}

func (l *Loader) notify(r Result) {
	if l.OnChange != nil {
		l.OnChange(r)
	}
}

func (l *Loader) fetch(ctx context.Context, id string) (*cadmesh.Document, *LoadError) {
	u := l.base + "/api/geometry/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &LoadError{Kind: FetchFailed, Message: "Failed to fetch geometry: " + err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &LoadError{Kind: FetchFailed, Message: "Failed to fetch geometry: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		kind := FetchFailed
		if resp.StatusCode >= 500 {
			kind = ProcessingFailed
		}
		return nil, &LoadError{
			Kind:    kind,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Failed to fetch geometry: %d", resp.StatusCode),
		}
	}

	var doc cadmesh.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &LoadError{
			Kind:    InvalidData,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s: %v", cadmesh.ErrInvalidData, err),
			Err:     fmt.Errorf("%w: %v", cadmesh.ErrInvalidData, err),
		}
	}
	if err := doc.Validate(); err != nil {
		return nil, &LoadError{Kind: InvalidData, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	return &doc, nil
}
