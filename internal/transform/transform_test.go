package transform

import (
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/report"
)

func newCtx() *compiler.Context {
	return compiler.New(compiler.Options{CheckTrees: true})
}

type fixture struct {
	root   *ast.Root
	entity *ast.Entity
	a, b   *ast.Symbol
}

func buildFixture(ctx *compiler.Context) fixture {
	a := ctx.NewTermSymbol("a", ast.Loc{}, ast.TypeIn{Kind: ast.TypeUInt{Width: 4}})
	b := ctx.NewTermSymbol("b", ast.Loc{}, ast.TypeOut{Kind: ast.TypeUInt{Width: 4}})
	ent := &ast.Entity{
		Symbol: ctx.NewEntity("top", ast.Loc{}, a, b),
		Decls:  []*ast.Decl{{Symbol: a}, {Symbol: b}},
		Stmts: []ast.Stmt{
			&ast.StmtIf{
				Cond: ast.Binary(ast.Ref(a), "==", ast.Num(0)),
				Then: []ast.Stmt{ast.Assign(ast.Ref(b), ast.Num(1))},
				Else: []ast.Stmt{ast.Assign(ast.Ref(b), ast.Ref(a))},
			},
			&ast.StmtFence{},
		},
	}
	return fixture{root: &ast.Root{Entities: []*ast.Entity{ent}}, entity: ent, a: a, b: b}
}

type identity struct{ Base }

func (identity) Name() string { return "identity" }

func TestIdentityPassSharesStructure(t *testing.T) {
	ctx := newCtx()
	f := buildFixture(ctx)
	out, err := Run(ctx, identity{}, f.root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != f.root {
		t.Fatalf("identity pass allocated a new root")
	}
}

func TestRewriteCopiesOnlyTheSpine(t *testing.T) {
	ctx := newCtx()
	f := buildFixture(ctx)
	c := ctx.NewTermSymbol("c", ast.Loc{}, ast.TypeUInt{Width: 4})
	out := Substitute(ctx, f.root, map[*ast.Symbol]*ast.Symbol{f.b: c}).(*ast.Root)
	if out == f.root {
		t.Fatalf("substitution returned the original root")
	}
	ent := out.Entities[0]
	if &ent.Decls[0] != &f.entity.Decls[0] {
		t.Fatalf("unchanged declaration list was copied")
	}
	if ent.Stmts[1] != f.entity.Stmts[1] {
		t.Fatalf("unchanged fence was copied")
	}
	oldIf := f.entity.Stmts[0].(*ast.StmtIf)
	newIf := ent.Stmts[0].(*ast.StmtIf)
	if newIf.Cond != oldIf.Cond {
		t.Fatalf("unchanged condition was copied")
	}
	if newIf.Then[0].(*ast.StmtAssign).Lhs.(*ast.ExprRef).Symbol != c {
		t.Fatalf("reference not substituted")
	}
	if oldIf.Then[0].(*ast.StmtAssign).Lhs.(*ast.ExprRef).Symbol != f.b {
		t.Fatalf("input tree was mutated")
	}
}

// expandFence replaces every fence with two fences and removes breaks.
type expandFence struct{ Base }

func (expandFence) Name() string { return "expandFence" }

func (expandFence) Transform(t ast.Tree) ast.Tree {
	switch t.(type) {
	case *ast.StmtFence:
		return &ast.Thicket{Trees: []ast.Tree{&ast.StmtFence{}, &ast.StmtFence{}}}
	case *ast.StmtBreak:
		return nil
	}
	return t
}

func TestThicketsAreSpliced(t *testing.T) {
	ctx := newCtx()
	f := buildFixture(ctx)
	f.entity.Stmts = append(f.entity.Stmts, &ast.StmtBreak{})
	out, err := Run(ctx, expandFence{}, f.root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	stmts := out.Entities[0].Stmts
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3:\n%s", len(stmts), ast.Format(out))
	}
	for _, s := range stmts[1:] {
		if _, ok := s.(*ast.StmtFence); !ok {
			t.Fatalf("expected fences after the if, got %T", s)
		}
	}
}

// scoped pushes per entity and aborts on the first assignment.
type scoped struct {
	Base
	ctx   *compiler.Context
	depth Stack[string]
}

func (*scoped) Name() string { return "scoped" }

func (p *scoped) Enter(t ast.Tree) {
	if e, ok := t.(*ast.Entity); ok {
		p.depth.Push(e.Name())
	}
}

func (p *scoped) Transform(t ast.Tree) ast.Tree {
	switch n := t.(type) {
	case *ast.StmtAssign:
		p.ctx.Reporter.Fatal(n.Loc, "assignment in %s", p.depth.Top())
	case *ast.Entity:
		p.depth.Pop()
	}
	return t
}

func (p *scoped) Unwind(t ast.Tree) {
	if _, ok := t.(*ast.Entity); ok {
		p.depth.Pop()
	}
}

func (p *scoped) FinalCheck(ast.Tree) {
	if !p.depth.Empty() {
		p.ctx.Reporter.ICE("scope stack not empty")
	}
}

func TestFatalUnwindsScopeStacks(t *testing.T) {
	ctx := newCtx()
	f := buildFixture(ctx)
	p := &scoped{ctx: ctx}
	_, err := Run(ctx, p, f.root)
	if !report.IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if !p.depth.Empty() {
		t.Fatalf("stack has %d entries after abort", p.depth.Len())
	}
}

type badExpr struct{ Base }

func (badExpr) Name() string { return "badExpr" }

func (badExpr) Transform(t ast.Tree) ast.Tree {
	if _, ok := t.(*ast.ExprNum); ok {
		return &ast.StmtFence{}
	}
	return t
}

func TestReplacingExpressionWithStatementIsICE(t *testing.T) {
	ctx := newCtx()
	f := buildFixture(ctx)
	_, err := Run(ctx, badExpr{}, f.root)
	if !report.IsICE(err) {
		t.Fatalf("err = %v, want ICE", err)
	}
}

func TestStack(t *testing.T) {
	var s Stack[int]
	if s.Pop() != 0 || s.Top() != 0 {
		t.Fatalf("empty stack must yield zero values")
	}
	s.Push(1)
	s.Push(2)
	if s.Top() != 2 || s.At(1) != 1 || s.At(2) != 0 {
		t.Fatalf("unexpected stack contents")
	}
	if s.Pop() != 2 || s.Len() != 1 {
		t.Fatalf("pop failed")
	}
}
