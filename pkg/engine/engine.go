// Package engine evaluates geometry catalogs written in a small Lisp. It
// wraps zygomys in a sandboxed environment and produces a catalog.Catalog
// from source code.
package engine

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/facepick/pkg/catalog"
	zygo "github.com/glycerine/zygomys/zygo"
)

// DefaultSource is the catalog served when none is configured.
//
//go:embed default.lisp
var DefaultSource string

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in catalog code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter for catalog evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate takes catalog source and produces a new Catalog.
//
// Return semantics:
//   - On success: returns catalog + nil errors + nil error
//   - On parse/eval failure: returns nil catalog + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*catalog.Catalog, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		c, evalErrs, err := e.evaluate(source)
		ch <- evalResult{catalog: c, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// MustDefault evaluates DefaultSource and panics if it does not evaluate
// cleanly.
func MustDefault() *catalog.Catalog {
	c, evalErrs, err := NewEngine().Evaluate(DefaultSource)
	if err != nil {
		panic(fmt.Sprintf("engine: default catalog: %v", err))
	}
	if len(evalErrs) > 0 {
		panic(fmt.Sprintf("engine: default catalog: %v", evalErrs[0]))
	}
	return c
}

func (e *Engine) evaluate(source string) (*catalog.Catalog, []EvalError, error) {
	c := catalog.New()

	// Empty source is a valid program that produces an empty catalog.
	if strings.TrimSpace(source) == "" {
		return c, nil, nil
	}

	// Sandbox mode keeps catalog code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, c)

	if err := env.LoadString(preprocess(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return c, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting the
// line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
