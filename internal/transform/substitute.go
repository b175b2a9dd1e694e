package transform

import (
	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
)

// substitute rewrites references through a replacement function.
type substitute struct {
	Base
	replace func(*ast.ExprRef) ast.Expr
}

func (substitute) Name() string { return "Substitute" }

func (s substitute) Transform(t ast.Tree) ast.Tree {
	ref, ok := t.(*ast.ExprRef)
	if !ok {
		return t
	}
	if e := s.replace(ref); e != nil {
		return e
	}
	return t
}

// Replace rewrites every reference in t for which replace returns a non-nil
// expression. Unaffected subtrees are shared with the input.
func Replace(ctx *compiler.Context, t ast.Tree, replace func(*ast.ExprRef) ast.Expr) ast.Tree {
	return Walk(ctx, substitute{replace: replace}, t)
}

// Substitute rewrites references to the keys of m into references to the
// mapped symbols.
func Substitute(ctx *compiler.Context, t ast.Tree, m map[*ast.Symbol]*ast.Symbol) ast.Tree {
	if len(m) == 0 {
		return t
	}
	return Replace(ctx, t, func(ref *ast.ExprRef) ast.Expr {
		if to, ok := m[ref.Symbol]; ok {
			return &ast.ExprRef{Loc: ref.Loc, Symbol: to}
		}
		return nil
	})
}

// SubstituteExpr is Substitute for expressions; nil passes through.
func SubstituteExpr(ctx *compiler.Context, e ast.Expr, m map[*ast.Symbol]*ast.Symbol) ast.Expr {
	if e == nil {
		return nil
	}
	return Substitute(ctx, e, m).(ast.Expr)
}
