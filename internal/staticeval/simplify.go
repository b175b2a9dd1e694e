package staticeval

import (
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

// Literal builds a literal of type t holding v.
func Literal(loc ast.Loc, v *big.Int, t ast.Type) ast.Expr {
	if w := ast.Width(t); w > 0 {
		return &ast.ExprInt{Loc: loc, Signed: ast.Signed(t), Width: w, Value: normalize(v, t)}
	}
	return &ast.ExprNum{Loc: loc, Signed: v.Sign() < 0, Value: v}
}

// Simplify replaces every maximal subexpression of e with a known value by a
// literal. Only use it on rvalues. e is returned when nothing folds.
func Simplify(e ast.Expr, b Bindings) ast.Expr {
	if ast.IsLiteral(e) {
		return e
	}
	if v, ok := Eval(e, b); ok {
		return Literal(e.Pos(), v, ast.TypeOf(e))
	}
	switch n := e.(type) {
	case *ast.ExprUnary:
		if x := Simplify(n.Expr, b); x != n.Expr {
			return &ast.ExprUnary{Loc: n.Loc, Op: n.Op, Expr: x}
		}
	case *ast.ExprBinary:
		l, r := Simplify(n.Lhs, b), Simplify(n.Rhs, b)
		if l != n.Lhs || r != n.Rhs {
			return &ast.ExprBinary{Loc: n.Loc, Op: n.Op, Lhs: l, Rhs: r}
		}
	case *ast.ExprTernary:
		c, x, y := Simplify(n.Cond, b), Simplify(n.Then, b), Simplify(n.Else, b)
		if c != n.Cond || x != n.Then || y != n.Else {
			return &ast.ExprTernary{Loc: n.Loc, Cond: c, Then: x, Else: y}
		}
	}
	return e
}
