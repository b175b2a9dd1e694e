package passes

import (
	"slices"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

func TestLoweringOrder(t *testing.T) {
	want := []string{"LowerPipeline", "LowerStacks", "LiftEntities", "SimplifyCat", "FoldStmt", "RemoveRedundantBlocks"}
	if got := Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	b := newBuilder()
	if n := len(Lowering(b.ctx, 2)); n != 9 {
		t.Fatalf("two rounds gave %d passes", n)
	}
	if n := len(Lowering(b.ctx, 0)); n != 6 {
		t.Fatalf("zero rounds gave %d passes", n)
	}
}

func TestLoweringEndToEnd(t *testing.T) {
	b := newBuilder()
	a := b.sym("a", ast.TypeIn{Kind: u(8)})
	o := b.sym("o", ast.TypeOut{Kind: u(8), ST: ast.StoreReg})
	p := b.sym("p", ast.TypeOut{Kind: u(4), ST: ast.StoreReg})
	q := b.sym("q", ast.TypeOut{Kind: u(4), ST: ast.StoreReg})
	mode := b.constant("MODE", 1, ast.Num(1))
	s := b.sym("s", ast.TypeStack{Elem: u(8), Depth: ast.Num(2)})
	top := b.entity("top", a, o, p, q, mode, s)
	top.Stmts = []ast.Stmt{
		&ast.StmtExpr{Loc: b.loc(), Expr: ast.Call(b.ref(s), "push", b.ref(a))},
		b.assign(b.ref(o), ast.Select(b.ref(s), "top")),
	}

	c := b.entity("c")
	c.Stmts = []ast.Stmt{
		&ast.StmtBlock{Loc: b.loc(), Body: []ast.Stmt{
			&ast.StmtIf{
				Loc:  b.loc(),
				Cond: b.ref(mode),
				Then: []ast.Stmt{b.assign(&ast.ExprCat{Loc: b.loc(), Parts: []ast.Expr{b.ref(p), b.ref(q)}}, ast.UInt(8, 165))},
				Else: []ast.Stmt{b.assign(b.ref(p), ast.Num(0))},
			},
		}},
	}
	b.nest(top, c)

	r := root(top)
	for _, pass := range Lowering(b.ctx, 2) {
		r = run(t, b, pass, r)
		if !b.ctx.Reporter.ShouldProceed() {
			t.Fatalf("%s reported %v", pass.Name(), b.ctx.Reporter.Errors())
		}
	}

	var names []string
	for _, e := range r.Entities {
		names = append(names, e.Name())
	}
	if want := []string{"top", "top__c", "top__s"}; !slices.Equal(names, want) {
		t.Fatalf("entities = %v, want %v", names, want)
	}
	ast.Inspect(r, func(n ast.Tree) bool {
		switch x := n.(type) {
		case *ast.StmtBlock:
			t.Fatalf("block at %s survived", x.Loc)
		case *ast.Entity:
			if len(x.Entities) > 0 {
				t.Fatalf("%s still nests entities", x.Name())
			}
		}
		return true
	})

	// the branch on MODE is folded and the concatenation split
	want := "p = 4'd10;\nq = 4'd5;\n"
	if got := stmtsText(entityNamed(t, r, "top__c").Stmts); got != want {
		t.Fatalf("top__c body:\n%s\nwant:\n%s", got, want)
	}
}
