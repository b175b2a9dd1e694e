// Package compiler holds the state shared by every pass of one compilation:
// the symbol allocator, the per-symbol attribute table and the diagnostic
// sink.
package compiler

import (
	"sync"
	"sync/atomic"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/report"
)

// DefaultSeparator joins a parent entity name and a lifted child name.
const DefaultSeparator = "__"

// Options are the switches a compilation is created with.
type Options struct {
	// Separator joins parent and child names of lifted entities.
	Separator string
	// CheckTrees runs the per-pass invariant checks.
	CheckTrees bool
}

// Context is passed by pointer to every allocation site. Symbol allocation
// and the attribute table are safe for concurrent use.
type Context struct {
	Reporter   *report.Reporter
	Separator  string
	CheckTrees bool

	nextID atomic.Int64

	mu    sync.RWMutex
	attrs map[*ast.Symbol]*ast.Attributes
}

func New(opts Options) *Context {
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return &Context{
		Reporter:   report.NewReporter(),
		Separator:  sep,
		CheckTrees: opts.CheckTrees,
		attrs:      make(map[*ast.Symbol]*ast.Attributes),
	}
}

// Reserve makes sure freshly allocated IDs are greater than id. Decoders call
// it after creating symbols with IDs chosen upstream.
func (c *Context) Reserve(id int) {
	for {
		cur := c.nextID.Load()
		if cur > int64(id) {
			return
		}
		if c.nextID.CompareAndSwap(cur, int64(id)+1) {
			return
		}
	}
}

func (c *Context) allocID() int {
	return int(c.nextID.Add(1) - 1)
}

// NewTermSymbol allocates a value symbol.
func (c *Context) NewTermSymbol(name string, loc ast.Loc, kind ast.Type) *ast.Symbol {
	return ast.NewSymbol(c.allocID(), ast.TermSymbol, name, loc, kind)
}

// NewTypeSymbol allocates a type symbol, e.g. an entity.
func (c *Context) NewTypeSymbol(name string, loc ast.Loc, kind ast.Type) *ast.Symbol {
	return ast.NewSymbol(c.allocID(), ast.TypeSymbol, name, loc, kind)
}

// SymbolLike allocates a fresh symbol with the class, name and location of
// tmpl and a deep copy of its kind, so later kind edits on either symbol are
// independent.
func (c *Context) SymbolLike(tmpl *ast.Symbol) *ast.Symbol {
	return ast.NewSymbol(c.allocID(), tmpl.Class(), tmpl.Name(), tmpl.Loc(), ast.CloneType(tmpl.Kind()))
}

// NewEntity allocates an entity symbol with the given ports.
func (c *Context) NewEntity(name string, loc ast.Loc, ports ...*ast.Symbol) *ast.Symbol {
	return c.NewTypeSymbol(name, loc, ast.TypeEntity{Ports: ports})
}
