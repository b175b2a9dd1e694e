// Package transform is the post-order tree rewrite engine every lowering pass
// is built on.
//
// A pass sees each node three times: Skip decides whether the node and its
// subtree are passed through untouched, Enter runs before the children are
// visited, and Transform runs after the children have been rewritten and
// returns the replacement. Unchanged subtrees are returned as the identical
// pointers and unchanged lists as the identical slices, so callers can detect
// "nothing changed" by identity.
//
// A Transform may return a *ast.Thicket to expand one node into several
// siblings, or nil to remove a list element. Thickets are spliced into the
// enclosing list and never appear in a result tree.
package transform

import "github.com/robert-at-pretension-io/fsm-lower/internal/ast"

// Pass is one tree rewrite.
type Pass interface {
	Name() string
	Skip(t ast.Tree) bool
	Enter(t ast.Tree)
	Transform(t ast.Tree) ast.Tree
	// DefaultCheck and FinalCheck verify the invariants of the pass when
	// tree checks are enabled. They report violations with ICE.
	DefaultCheck(orig, result ast.Tree)
	FinalCheck(result ast.Tree)
}

// Unwinder is implemented by passes that keep scope stacks. Unwind is called
// for every node whose Enter ran but whose Transform did not complete, in
// innermost-first order, while a Fatal or ICE unwinds the traversal. It must
// undo exactly what Enter pushed for that node.
type Unwinder interface {
	Unwind(t ast.Tree)
}

// Base provides no-op hooks; passes embed it and override what they need.
type Base struct{}

func (Base) Skip(ast.Tree) bool { return false }
func (Base) Enter(ast.Tree) {}
func (Base) Transform(t ast.Tree) ast.Tree { return t }
func (Base) DefaultCheck(orig, res ast.Tree) {}
func (Base) FinalCheck(ast.Tree) {}
