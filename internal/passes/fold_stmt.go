package passes

import (
	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/staticeval"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// FoldStmt removes control flow decided by statically known values. Bindings
// are computed per entity on entry and looked up by the original statement,
// since the statement handed to Transform may be a rewritten copy.
type FoldStmt struct {
	transform.Base
	ctx *compiler.Context

	analyses transform.Stack[staticeval.Analysis]
	bindings transform.Stack[staticeval.Bindings]
}

func NewFoldStmt(ctx *compiler.Context) *FoldStmt {
	return &FoldStmt{ctx: ctx}
}

func (*FoldStmt) Name() string { return "FoldStmt" }

func (p *FoldStmt) Enter(t ast.Tree) {
	switch n := t.(type) {
	case *ast.Entity:
		p.analyses.Push(staticeval.Analyze(n.Stmts, staticeval.ConstBindings(p.ctx, n)))
	case ast.Stmt:
		p.bindings.Push(p.analyses.Top().At(n))
	}
}

func (p *FoldStmt) Unwind(t ast.Tree) {
	switch t.(type) {
	case *ast.Entity:
		p.analyses.Pop()
	case ast.Stmt:
		p.bindings.Pop()
	}
}

func (p *FoldStmt) Transform(t ast.Tree) ast.Tree {
	switch t.(type) {
	case *ast.Entity:
		p.analyses.Pop()
		return t
	case ast.Stmt:
		b := p.bindings.Top()
		res := p.fold(t.(ast.Stmt), b)
		p.bindings.Pop()
		return res
	}
	return t
}

func (p *FoldStmt) fold(s ast.Stmt, b staticeval.Bindings) ast.Tree {
	switch n := s.(type) {
	case *ast.StmtIf:
		if v, ok := staticeval.Eval(n.Cond, b); ok {
			if v.Sign() != 0 {
				return ast.NewThicket(n.Then)
			}
			return ast.NewThicket(n.Else)
		}
		if cond := staticeval.Simplify(n.Cond, b); cond != n.Cond {
			return &ast.StmtIf{Loc: n.Loc, Cond: cond, Then: n.Then, Else: n.Else}
		}
	case *ast.StmtCase:
		if sel, ok := staticeval.Eval(n.Expr, b); ok {
			if body, ok := staticeval.SelectClause(n, sel, b); ok {
				return ast.NewThicket(body)
			}
		}
	case *ast.StmtStall:
		if v, ok := staticeval.Eval(n.Cond, b); ok {
			if v.Sign() != 0 {
				p.ctx.Reporter.Error(n.Loc, "stall condition %s is always true", ast.FormatExpr(n.Cond))
				return n
			}
			return nil
		}
	}
	return s
}

func (p *FoldStmt) FinalCheck(ast.Tree) {
	if !p.analyses.Empty() || !p.bindings.Empty() {
		p.ctx.Reporter.ICE("scope stacks not empty: %d analyses, %d bindings", p.analyses.Len(), p.bindings.Len())
	}
}
