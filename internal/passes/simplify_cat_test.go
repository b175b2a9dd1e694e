package passes

import (
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

type catFixture struct {
	b   *builder
	top *ast.Entity

	a, bb, c, d *ast.Symbol
}

// newCatFixture declares a:u2, b:u3, c:u1 and d:u4 in a single entity.
func newCatFixture() *catFixture {
	b := newBuilder()
	f := &catFixture{b: b}
	f.a = b.sym("a", u(2))
	f.bb = b.sym("b", u(3))
	f.c = b.sym("c", u(1))
	f.d = b.sym("d", u(4))
	f.top = b.entity("top", f.a, f.bb, f.c, f.d)
	return f
}

func (f *catFixture) cat(syms ...*ast.Symbol) ast.Expr {
	parts := make([]ast.Expr, len(syms))
	for i, s := range syms {
		parts[i] = f.b.ref(s)
	}
	return &ast.ExprCat{Loc: f.b.loc(), Parts: parts}
}

func TestSimplifyCatRegroupsByWidth(t *testing.T) {
	f := newCatFixture()
	f.top.Stmts = []ast.Stmt{f.b.assign(f.cat(f.a, f.bb), f.cat(f.c, f.d))}

	out := run(t, f.b, NewSimplifyCat(f.b.ctx), root(f.top))

	stmts := out.Entities[0].Stmts
	if len(stmts) != 2 {
		t.Fatalf("expected 2 assignments, got:\n%s", stmtsText(stmts))
	}
	want := "a[1] = c;\n{a[0], b} = d;\n"
	if got := stmtsText(stmts); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	for _, s := range stmts {
		as := s.(*ast.StmtAssign)
		lw, rw := ast.Width(ast.TypeOf(as.Lhs)), ast.Width(ast.TypeOf(as.Rhs))
		if lw != rw {
			t.Fatalf("%s: width %d assigned from %d", strings.TrimSpace(ast.Format(as)), lw, rw)
		}
	}
}

func TestSimplifyCatIsIdempotent(t *testing.T) {
	f := newCatFixture()
	f.top.Stmts = []ast.Stmt{f.b.assign(f.cat(f.a, f.bb), f.cat(f.c, f.d))}

	once := run(t, f.b, NewSimplifyCat(f.b.ctx), root(f.top))
	twice := run(t, f.b, NewSimplifyCat(f.b.ctx), once)
	if twice != once {
		t.Fatalf("second run changed the tree:\n%s", ast.Format(twice))
	}
}

func TestSimplifyCatSplitsConstant(t *testing.T) {
	f := newCatFixture()
	f.top.Stmts = []ast.Stmt{f.b.assign(f.cat(f.a, f.bb), ast.UInt(5, 22))}

	out := run(t, f.b, NewSimplifyCat(f.b.ctx), root(f.top))

	want := "a = 2'd2;\nb = 3'd6;\n"
	if got := stmtsText(out.Entities[0].Stmts); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestSimplifyCatLeavesSharedSymbols(t *testing.T) {
	f := newCatFixture()
	f.top.Stmts = []ast.Stmt{f.b.assign(f.cat(f.a, f.bb), f.cat(f.bb, f.a))}
	r := root(f.top)

	out := run(t, f.b, NewSimplifyCat(f.b.ctx), r)
	if out != r {
		t.Fatalf("swap through a concatenation must stay intact:\n%s", ast.Format(out))
	}
}

func TestSimplifyCatWidthMismatch(t *testing.T) {
	f := newCatFixture()
	f.top.Stmts = []ast.Stmt{f.b.assign(f.cat(f.a, f.bb), f.cat(f.c, f.c))}
	r := root(f.top)

	out := run(t, f.b, NewSimplifyCat(f.b.ctx), r)
	if out != r {
		t.Fatalf("mismatched assignment was rewritten:\n%s", ast.Format(out))
	}
	errs := f.b.ctx.Reporter.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.Contains(errs[0].Message, "5 bits assigned from 2 bits") {
		t.Fatalf("unexpected message %q", errs[0].Message)
	}
}

func TestSimplifyCatFlattens(t *testing.T) {
	f := newCatFixture()
	nested := &ast.ExprCat{Loc: f.b.loc(), Parts: []ast.Expr{f.cat(f.a, f.bb), f.b.ref(f.c)}}
	single := &ast.ExprCat{Loc: f.b.loc(), Parts: []ast.Expr{f.b.ref(f.c)}}
	f.top.Stmts = []ast.Stmt{
		f.b.assign(f.b.ref(f.d), nested),
		f.b.assign(single, ast.UInt(1, 1)),
	}

	out := run(t, f.b, NewSimplifyCat(f.b.ctx), root(f.top))

	want := "d = {a, b, c};\nc = 1'd1;\n"
	if got := stmtsText(out.Entities[0].Stmts); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestSimplifyCatSplitsConnects(t *testing.T) {
	f := newCatFixture()
	f.top.Connects = []*ast.Connect{{
		Loc: f.b.loc(),
		Lhs: f.cat(f.c, f.d),
		Rhs: []ast.Expr{f.cat(f.a, f.bb)},
	}}

	out := run(t, f.b, NewSimplifyCat(f.b.ctx), root(f.top))

	conns := out.Entities[0].Connects
	var got strings.Builder
	for _, c := range conns {
		got.WriteString(ast.Format(c))
	}
	want := "c -> a[1];\nd -> {a[0], b};\n"
	if got.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got.String(), want)
	}
}
