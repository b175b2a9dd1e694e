package passes

import (
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

func TestRemoveRedundantBlocks(t *testing.T) {
	b := newBuilder()
	x := b.sym("x", u(8))
	e := b.entity("top", x)
	set := func(v int64) ast.Stmt { return b.assign(b.ref(x), ast.Num(v)) }
	e.Stmts = []ast.Stmt{
		set(1),
		&ast.StmtBlock{Loc: b.loc(), Body: []ast.Stmt{
			set(2),
			&ast.StmtBlock{Loc: b.loc(), Body: []ast.Stmt{set(3)}},
			&ast.StmtBlock{Loc: b.loc()},
		}},
		&ast.StmtIf{Loc: b.loc(), Cond: b.ref(x), Then: []ast.Stmt{
			&ast.StmtBlock{Loc: b.loc(), Body: []ast.Stmt{set(4)}},
		}},
	}

	once := run(t, b, NewRemoveRedundantBlocks(b.ctx), root(e))
	want := "x = 1;\nx = 2;\nx = 3;\nif (x) {\n  x = 4;\n}\n"
	if got := stmtsText(once.Entities[0].Stmts); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	twice := run(t, b, NewRemoveRedundantBlocks(b.ctx), once)
	if twice != once {
		t.Fatal("second run changed the tree")
	}
}
