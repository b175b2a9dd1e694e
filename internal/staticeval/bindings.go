// Package staticeval computes which symbols hold statically known values at
// each statement of an entity body, and evaluates expressions under those
// bindings.
package staticeval

import (
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

// Bindings maps symbols to known values. A Bindings value is never modified
// after it has been handed out; updates return a copy.
type Bindings map[*ast.Symbol]*big.Int

// Lookup returns the known value of sym.
func (b Bindings) Lookup(sym *ast.Symbol) (*big.Int, bool) {
	v, ok := b[sym]
	return v, ok
}

func (b Bindings) with(sym *ast.Symbol, v *big.Int) Bindings {
	out := make(Bindings, len(b)+1)
	for k, x := range b {
		out[k] = x
	}
	out[sym] = normalize(v, ast.Underlying(sym.Kind()))
	return out
}

func (b Bindings) without(syms ...*ast.Symbol) Bindings {
	drop := false
	for _, s := range syms {
		if _, ok := b[s]; ok {
			drop = true
			break
		}
	}
	if !drop {
		return b
	}
	out := make(Bindings, len(b))
	for k, x := range b {
		out[k] = x
	}
	for _, s := range syms {
		delete(out, s)
	}
	return out
}

// join keeps the bindings both sides agree on. A nil side is unreachable and
// contributes nothing.
func join(a, b Bindings) Bindings {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(Bindings)
	for k, x := range a {
		if y, ok := b[k]; ok && x.Cmp(y) == 0 {
			out[k] = x
		}
	}
	return out
}

// Analysis holds the bindings on entry to each analyzed statement.
type Analysis map[ast.Stmt]Bindings

// At returns the bindings valid when control reaches s. Statements that were
// not analyzed, such as dead branches, have no known bindings.
func (a Analysis) At(s ast.Stmt) Bindings {
	if b, ok := a[s]; ok {
		return b
	}
	return Bindings{}
}
