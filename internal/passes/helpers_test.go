package passes

import (
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// builder creates symbols and nodes with increasing source lines so that
// first-reference order is well defined.
type builder struct {
	ctx   *compiler.Context
	line  int
	inits map[*ast.Symbol]ast.Expr
}

func newBuilder() *builder {
	return &builder{
		ctx:   compiler.New(compiler.Options{CheckTrees: true}),
		inits: make(map[*ast.Symbol]ast.Expr),
	}
}

func (b *builder) loc() ast.Loc {
	b.line++
	return ast.Loc{File: "t.fsm", Line: b.line, Col: 1}
}

func (b *builder) sym(name string, kind ast.Type) *ast.Symbol {
	return b.ctx.NewTermSymbol(name, b.loc(), kind)
}

func (b *builder) constant(name string, width int, init ast.Expr) *ast.Symbol {
	s := b.sym(name, ast.TypeConst{Kind: ast.TypeUInt{Width: width}})
	b.inits[s] = init
	return s
}

func (b *builder) ref(s *ast.Symbol) *ast.ExprRef {
	return &ast.ExprRef{Loc: b.loc(), Symbol: s}
}

func (b *builder) assign(lhs, rhs ast.Expr) ast.Stmt {
	return &ast.StmtAssign{Loc: b.loc(), Lhs: lhs, Rhs: rhs}
}

// entity declares syms; the port symbols form the signature.
func (b *builder) entity(name string, syms ...*ast.Symbol) *ast.Entity {
	var ports []*ast.Symbol
	var decls []*ast.Decl
	for _, s := range syms {
		decls = append(decls, &ast.Decl{Loc: s.Loc(), Symbol: s, Init: b.inits[s]})
		if ast.IsPort(s.Kind()) {
			ports = append(ports, s)
		}
	}
	loc := b.loc()
	return &ast.Entity{Loc: loc, Symbol: b.ctx.NewEntity(name, loc, ports...), Decls: decls}
}

// nest makes child a nested entity of parent with one instance.
func (b *builder) nest(parent, child *ast.Entity) *ast.Symbol {
	inst := b.sym(child.Name()+"_i", ast.TypeInstance{Entity: child.Symbol})
	parent.Entities = append(parent.Entities, child)
	parent.Instances = append(parent.Instances, &ast.Instance{Loc: inst.Loc(), Symbol: inst, Entity: child.Symbol})
	return inst
}

func u(w int) ast.Type { return ast.TypeUInt{Width: w} }

func root(es ...*ast.Entity) *ast.Root { return &ast.Root{Entities: es} }

func run(t *testing.T, b *builder, p transform.Pass, r *ast.Root) *ast.Root {
	t.Helper()
	out, err := transform.Run(b.ctx, p, r)
	if err != nil {
		t.Fatalf("%s: %v", p.Name(), err)
	}
	return out
}

func entityNamed(t *testing.T, r *ast.Root, name string) *ast.Entity {
	t.Helper()
	for _, e := range r.Entities {
		if e.Name() == name {
			return e
		}
	}
	var names []string
	for _, e := range r.Entities {
		names = append(names, e.Name())
	}
	t.Fatalf("no entity %s among [%s]", name, strings.Join(names, ", "))
	return nil
}

func declNames(e *ast.Entity) []string {
	var names []string
	for _, d := range e.Decls {
		names = append(names, d.Symbol.Name())
	}
	return names
}

func stmtsText(stmts []ast.Stmt) string {
	var sb strings.Builder
	for _, s := range stmts {
		sb.WriteString(ast.Format(s))
	}
	return sb.String()
}

func connectsText(e *ast.Entity) string {
	var sb strings.Builder
	for _, c := range e.Connects {
		sb.WriteString(ast.Format(c))
	}
	return sb.String()
}

func portNames(e *ast.Entity) []string {
	var names []string
	for _, p := range ast.EntityPorts(e.Symbol) {
		names = append(names, p.Name())
	}
	return names
}

func runErr(b *builder, p transform.Pass, r *ast.Root) (*ast.Root, error) {
	return transform.Run(b.ctx, p, r)
}
