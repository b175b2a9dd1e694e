package transform

import (
	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/report"
)

type walker struct {
	ctx    *compiler.Context
	pass   Pass
	unwind Unwinder
}

func newWalker(ctx *compiler.Context, p Pass) *walker {
	w := &walker{ctx: ctx, pass: p}
	w.unwind, _ = p.(Unwinder)
	return w
}

// Walk applies p to t without running the checks. Passes use it to rewrite
// detached subtrees such as initializers.
func Walk(ctx *compiler.Context, p Pass, t ast.Tree) ast.Tree {
	return newWalker(ctx, p).walk(t)
}

// Apply runs p over the whole program and, when tree checks are enabled,
// verifies the result.
func Apply(ctx *compiler.Context, p Pass, root *ast.Root) *ast.Root {
	res := newWalker(ctx, p).walk(root)
	out, ok := res.(*ast.Root)
	if !ok {
		ctx.Reporter.ICE("%s replaced the root with %T", p.Name(), res)
	}
	if ctx.CheckTrees {
		checkNoThickets(ctx, p, out)
		p.DefaultCheck(root, out)
		p.FinalCheck(out)
	}
	return out
}

// Run is Apply with Fatal and ICE recovered into the returned error.
func Run(ctx *compiler.Context, p Pass, root *ast.Root) (out *ast.Root, err error) {
	ctx.Reporter.SetPass(p.Name())
	defer report.Catch(&err)
	return Apply(ctx, p, root), nil
}

func checkNoThickets(ctx *compiler.Context, p Pass, root *ast.Root) {
	ast.Inspect(root, func(t ast.Tree) bool {
		if _, ok := t.(*ast.Thicket); ok {
			ctx.Reporter.ICE("%s left a thicket in the tree at %s", p.Name(), t.Pos())
		}
		return true
	})
}

func (w *walker) walk(t ast.Tree) ast.Tree {
	if w.pass.Skip(t) {
		return t
	}
	w.pass.Enter(t)
	if w.unwind != nil {
		done := false
		defer func() {
			if !done {
				w.unwind.Unwind(t)
			}
		}()
		res := w.pass.Transform(w.children(t))
		done = true
		return res
	}
	return w.pass.Transform(w.children(t))
}

// children returns t with every child walked, or t itself when no child
// changed.
func (w *walker) children(t ast.Tree) ast.Tree {
	switch n := t.(type) {
	case *ast.Root:
		ents := walkList(w, n.Entities)
		if same(ents, n.Entities) {
			return n
		}
		c := *n
		c.Entities = ents
		return &c
	case *ast.Entity:
		decls := walkList(w, n.Decls)
		ents := walkList(w, n.Entities)
		insts := walkList(w, n.Instances)
		conns := walkList(w, n.Connects)
		stmts := walkList(w, n.Stmts)
		if same(decls, n.Decls) && same(ents, n.Entities) && same(insts, n.Instances) &&
			same(conns, n.Connects) && same(stmts, n.Stmts) {
			return n
		}
		c := *n
		c.Decls, c.Entities, c.Instances, c.Connects, c.Stmts = decls, ents, insts, conns, stmts
		return &c
	case *ast.Decl:
		init := w.optExpr(n.Init)
		if init == n.Init {
			return n
		}
		c := *n
		c.Init = init
		return &c
	case *ast.Connect:
		lhs := w.expr(n.Lhs)
		rhs := walkList(w, n.Rhs)
		if lhs == n.Lhs && same(rhs, n.Rhs) {
			return n
		}
		return &ast.Connect{Loc: n.Loc, Lhs: lhs, Rhs: rhs}
	case *ast.CaseClause:
		conds := walkList(w, n.Conds)
		body := walkList(w, n.Body)
		if same(conds, n.Conds) && same(body, n.Body) {
			return n
		}
		return &ast.CaseClause{Loc: n.Loc, Conds: conds, Body: body}
	case ast.Stmt:
		return w.stmt(n)
	case ast.Expr:
		return w.exprChildren(n)
	}
	return t
}

func (w *walker) stmt(s ast.Stmt) ast.Tree {
	switch n := s.(type) {
	case *ast.StmtBlock:
		body := walkList(w, n.Body)
		if same(body, n.Body) {
			return n
		}
		return &ast.StmtBlock{Loc: n.Loc, Body: body}
	case *ast.StmtIf:
		cond := w.expr(n.Cond)
		then := walkList(w, n.Then)
		els := walkList(w, n.Else)
		if cond == n.Cond && same(then, n.Then) && same(els, n.Else) {
			return n
		}
		return &ast.StmtIf{Loc: n.Loc, Cond: cond, Then: then, Else: els}
	case *ast.StmtCase:
		e := w.expr(n.Expr)
		clauses := walkList(w, n.Clauses)
		def := walkList(w, n.Default)
		if e == n.Expr && same(clauses, n.Clauses) && same(def, n.Default) {
			return n
		}
		return &ast.StmtCase{Loc: n.Loc, Expr: e, Clauses: clauses, Default: def}
	case *ast.StmtLoop:
		body := walkList(w, n.Body)
		if same(body, n.Body) {
			return n
		}
		return &ast.StmtLoop{Loc: n.Loc, Body: body}
	case *ast.StmtAssign:
		lhs, rhs := w.expr(n.Lhs), w.expr(n.Rhs)
		if lhs == n.Lhs && rhs == n.Rhs {
			return n
		}
		return &ast.StmtAssign{Loc: n.Loc, Lhs: lhs, Rhs: rhs}
	case *ast.StmtExpr:
		e := w.expr(n.Expr)
		if e == n.Expr {
			return n
		}
		return &ast.StmtExpr{Loc: n.Loc, Expr: e}
	case *ast.StmtDecl:
		res := w.walk(n.Decl)
		d, ok := res.(*ast.Decl)
		if !ok {
			w.ctx.Reporter.ICE("%s replaced a local declaration with %T", w.pass.Name(), res)
		}
		if d == n.Decl {
			return n
		}
		return &ast.StmtDecl{Loc: n.Loc, Decl: d}
	case *ast.StmtStall:
		cond := w.expr(n.Cond)
		if cond == n.Cond {
			return n
		}
		return &ast.StmtStall{Loc: n.Loc, Cond: cond}
	}
	return s
}

func (w *walker) exprChildren(e ast.Expr) ast.Tree {
	switch n := e.(type) {
	case *ast.ExprUnary:
		x := w.expr(n.Expr)
		if x == n.Expr {
			return n
		}
		return &ast.ExprUnary{Loc: n.Loc, Op: n.Op, Expr: x}
	case *ast.ExprBinary:
		l, r := w.expr(n.Lhs), w.expr(n.Rhs)
		if l == n.Lhs && r == n.Rhs {
			return n
		}
		return &ast.ExprBinary{Loc: n.Loc, Op: n.Op, Lhs: l, Rhs: r}
	case *ast.ExprTernary:
		c, a, b := w.expr(n.Cond), w.expr(n.Then), w.expr(n.Else)
		if c == n.Cond && a == n.Then && b == n.Else {
			return n
		}
		return &ast.ExprTernary{Loc: n.Loc, Cond: c, Then: a, Else: b}
	case *ast.ExprCat:
		parts := walkList(w, n.Parts)
		if same(parts, n.Parts) {
			return n
		}
		return &ast.ExprCat{Loc: n.Loc, Parts: parts}
	case *ast.ExprRep:
		c, x := w.expr(n.Count), w.expr(n.Expr)
		if c == n.Count && x == n.Expr {
			return n
		}
		return &ast.ExprRep{Loc: n.Loc, Count: c, Expr: x}
	case *ast.ExprIndex:
		x, i := w.expr(n.Expr), w.expr(n.Index)
		if x == n.Expr && i == n.Index {
			return n
		}
		return &ast.ExprIndex{Loc: n.Loc, Expr: x, Index: i}
	case *ast.ExprSlice:
		x, msb, lsb := w.expr(n.Expr), w.expr(n.Msb), w.expr(n.Lsb)
		if x == n.Expr && msb == n.Msb && lsb == n.Lsb {
			return n
		}
		return &ast.ExprSlice{Loc: n.Loc, Expr: x, Msb: msb, Lsb: lsb}
	case *ast.ExprSelect:
		x := w.expr(n.Expr)
		if x == n.Expr {
			return n
		}
		return &ast.ExprSelect{Loc: n.Loc, Expr: x, Field: n.Field}
	case *ast.ExprCall:
		f := w.expr(n.Func)
		args := walkList(w, n.Args)
		if f == n.Func && same(args, n.Args) {
			return n
		}
		return &ast.ExprCall{Loc: n.Loc, Func: f, Args: args}
	}
	return e
}

func (w *walker) expr(e ast.Expr) ast.Expr {
	res := w.walk(e)
	x, ok := res.(ast.Expr)
	if !ok {
		w.ctx.Reporter.ICE("%s replaced expression %s with %T", w.pass.Name(), ast.FormatExpr(e), res)
	}
	return x
}

func (w *walker) optExpr(e ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	return w.expr(e)
}

// walkList walks every element and splices the results. The input slice is
// returned when no element changed.
func walkList[T ast.Tree](w *walker, list []T) []T {
	var out []T
	for i, item := range list {
		res := w.walk(item)
		if out == nil && isSame(res, item) {
			continue
		}
		if out == nil {
			out = make([]T, i, len(list))
			copy(out, list[:i])
		}
		out = splice(w, out, res)
	}
	if out == nil {
		return list
	}
	return out
}

func isSame[T ast.Tree](res ast.Tree, item T) bool {
	if res == nil {
		return false
	}
	return res == ast.Tree(item)
}

func splice[T ast.Tree](w *walker, out []T, t ast.Tree) []T {
	if t == nil {
		return out
	}
	if th, ok := t.(*ast.Thicket); ok {
		for _, c := range th.Trees {
			out = splice(w, out, c)
		}
		return out
	}
	v, ok := t.(T)
	if !ok {
		var zero T
		w.ctx.Reporter.ICE("%s produced %T where %T was expected", w.pass.Name(), t, zero)
	}
	return append(out, v)
}

func same[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
