package staticeval

import (
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
)

type analyzer struct {
	out Analysis
	// base holds everywhere: control reaching a statement after a fence or
	// a goto does so in a later cycle.
	base Bindings
}

// Analyze runs the forward analysis over an entity body. initial must only
// hold bindings valid at every program point, such as constants.
func Analyze(stmts []ast.Stmt, initial Bindings) Analysis {
	if initial == nil {
		initial = Bindings{}
	}
	an := &analyzer{out: make(Analysis), base: initial}
	an.block(stmts, initial)
	return an.out
}

// block analyzes a statement list and returns the bindings on fall-through,
// or nil when the end of the list is unreachable.
func (an *analyzer) block(stmts []ast.Stmt, b Bindings) Bindings {
	for _, s := range stmts {
		if b == nil {
			b = an.base
		}
		b = an.stmt(s, b)
	}
	return b
}

func (an *analyzer) stmt(s ast.Stmt, b Bindings) Bindings {
	an.out[s] = b
	switch n := s.(type) {
	case *ast.StmtAssign:
		if ref, ok := n.Lhs.(*ast.ExprRef); ok {
			if v, ok := Eval(n.Rhs, b); ok {
				return b.with(ref.Symbol, v)
			}
		}
		return b.without(ast.LValueRoots(n.Lhs)...)
	case *ast.StmtDecl:
		if n.Decl.Init != nil {
			if v, ok := Eval(n.Decl.Init, b); ok {
				return b.with(n.Decl.Symbol, v)
			}
		}
		return b.without(n.Decl.Symbol)
	case *ast.StmtBlock:
		return an.block(n.Body, b)
	case *ast.StmtIf:
		if v, ok := Eval(n.Cond, b); ok {
			if v.Sign() != 0 {
				return an.block(n.Then, b)
			}
			return an.block(n.Else, b)
		}
		then := an.block(n.Then, refine(n.Cond, true, b))
		els := an.block(n.Else, refine(n.Cond, false, b))
		if then == nil && els == nil {
			return nil
		}
		return join(then, els)
	case *ast.StmtCase:
		return an.caseStmt(n, b)
	case *ast.StmtLoop:
		// A later iteration starts in a new cycle when the body fences.
		inner := an.base
		if !hasFence(n.Body) {
			inner = b.without(ast.Written(n.Body).Slice()...)
		}
		an.block(n.Body, inner)
		return inner
	case *ast.StmtFence, *ast.StmtGoto:
		// The next statement runs in a later cycle with fresh inputs.
		return an.base
	case *ast.StmtBreak, *ast.StmtContinue:
		return nil
	case *ast.StmtRead:
		var drop []*ast.Symbol
		for sym := range b {
			if _, ok := sym.Kind().(ast.TypePipeline); ok {
				drop = append(drop, sym)
			}
		}
		return b.without(drop...)
	}
	return b
}

func hasFence(stmts []ast.Stmt) bool {
	found := false
	for _, s := range stmts {
		ast.Inspect(s, func(t ast.Tree) bool {
			if _, ok := t.(*ast.StmtFence); ok {
				found = true
			}
			return !found
		})
	}
	return found
}

func (an *analyzer) caseStmt(n *ast.StmtCase, b Bindings) Bindings {
	if sel, ok := Eval(n.Expr, b); ok {
		if body, ok := SelectClause(n, sel, b); ok {
			return an.block(body, b)
		}
	}
	var out Bindings
	reachable := false
	for _, c := range n.Clauses {
		entry := b
		if len(c.Conds) == 1 {
			entry = refineEq(n.Expr, c.Conds[0], b)
		}
		if r := an.block(c.Body, entry); r != nil {
			out = join(out, r)
			reachable = true
		}
	}
	if r := an.block(n.Default, b); r != nil {
		out = join(out, r)
		reachable = true
	}
	if !reachable {
		return nil
	}
	return out
}

// SelectClause picks the body a case statement takes for a known selector.
// It fails when a condition before the match cannot be evaluated.
func SelectClause(n *ast.StmtCase, sel *big.Int, b Bindings) ([]ast.Stmt, bool) {
	for _, c := range n.Clauses {
		for _, cond := range c.Conds {
			v, ok := Eval(cond, b)
			if !ok {
				return nil, false
			}
			if v.Cmp(sel) == 0 {
				return c.Body, true
			}
		}
	}
	return n.Default, true
}

// refine adds what is learned from cond having the given truth value.
func refine(cond ast.Expr, truth bool, b Bindings) Bindings {
	switch n := cond.(type) {
	case *ast.ExprUnary:
		if n.Op == "!" {
			return refine(n.Expr, !truth, b)
		}
	case *ast.ExprBinary:
		switch {
		case n.Op == "==" && truth, n.Op == "!=" && !truth:
			return refineEq(n.Lhs, n.Rhs, b)
		case n.Op == "&&" && truth, n.Op == "||" && !truth:
			return refine(n.Rhs, truth, refine(n.Lhs, truth, b))
		}
	case *ast.ExprRef:
		if truth {
			if ast.Width(n.Symbol.Kind()) == 1 {
				return b.with(n.Symbol, big.NewInt(1))
			}
			return b
		}
		return b.with(n.Symbol, big.NewInt(0))
	}
	return b
}

func refineEq(lhs, rhs ast.Expr, b Bindings) Bindings {
	if ref, ok := lhs.(*ast.ExprRef); ok {
		if v, ok := Eval(rhs, b); ok {
			return b.with(ref.Symbol, v)
		}
	}
	if ref, ok := rhs.(*ast.ExprRef); ok {
		if v, ok := Eval(lhs, b); ok {
			return b.with(ref.Symbol, v)
		}
	}
	return b
}

// ConstBindings evaluates the constants declared by an entity. Initializers
// may refer to other constants in any order.
func ConstBindings(ctx *compiler.Context, e *ast.Entity) Bindings {
	b := Bindings{}
	for changed := true; changed; {
		changed = false
		for _, d := range e.Decls {
			if _, ok := d.Symbol.Kind().(ast.TypeConst); !ok {
				continue
			}
			if _, done := b[d.Symbol]; done {
				continue
			}
			init := d.Init
			if init == nil {
				init = ctx.Init(d.Symbol)
			}
			if init == nil {
				continue
			}
			if v, ok := Eval(init, b); ok {
				b = b.with(d.Symbol, v)
				changed = true
			}
		}
	}
	return b
}
