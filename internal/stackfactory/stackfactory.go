// Package stackfactory generates hardware stack entities.
//
// A generated stack has the ports
//
//	in  en, push, pop, set  u1
//	in  d                   elem
//	out q                   elem  (wire)
//	out empty, full         u1
//
// The owner asserts en together with exactly one of push, pop or set.
package stackfactory

import (
	"math/bits"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/staticeval"
)

// Port names of a generated stack entity.
const (
	PortEn    = "en"
	PortPush  = "push"
	PortPop   = "pop"
	PortSet   = "set"
	PortD     = "d"
	PortQ     = "q"
	PortEmpty = "empty"
	PortFull  = "full"
)

// ControlPorts are the single-bit inputs of a stack.
var ControlPorts = []string{PortEn, PortPush, PortPop, PortSet}

// Build generates a stack entity of the given element type. depth must
// evaluate to a positive constant; anything else is an internal error since
// registers cannot be sized.
func Build(ctx *compiler.Context, name string, loc ast.Loc, elem ast.Type, depth ast.Expr) *ast.Entity {
	if depth == nil {
		ctx.Reporter.ICE("stack %s has no depth", name)
	}
	v, ok := staticeval.Eval(depth, staticeval.Bindings{})
	if !ok || !v.IsInt64() || v.Int64() < 1 {
		ctx.Reporter.ICE("stack %s depth %s is not a positive constant", name, ast.FormatExpr(depth))
	}
	return BuildDepth(ctx, name, loc, elem, int(v.Int64()))
}

// BuildDepth is Build with a known depth.
func BuildDepth(ctx *compiler.Context, name string, loc ast.Loc, elem ast.Type, depth int) *ast.Entity {
	g := &gen{ctx: ctx, loc: loc}
	u1 := ast.TypeUInt{Width: 1}
	var ctl [4]*ast.Symbol
	for i, p := range ControlPorts {
		ctl[i] = g.port(p, ast.TypeIn{Kind: u1})
	}
	g.en, g.push, g.pop, g.set = ctl[0], ctl[1], ctl[2], ctl[3]
	g.d = g.port(PortD, ast.TypeIn{Kind: ast.CloneType(elem)})
	g.q = g.port(PortQ, ast.TypeOut{Kind: ast.CloneType(elem), ST: ast.StoreWire})

	if depth == 1 {
		g.empty = g.port(PortEmpty, ast.TypeOut{Kind: u1, ST: ast.StoreWire})
		g.full = g.port(PortFull, ast.TypeOut{Kind: u1, ST: ast.StoreWire})
		g.single(elem)
	} else {
		g.empty = g.portInit(PortEmpty, ast.TypeOut{Kind: u1}, ast.UInt(1, 1))
		g.full = g.portInit(PortFull, ast.TypeOut{Kind: u1}, ast.UInt(1, 0))
		g.multi(elem, depth)
	}

	sym := ctx.NewEntity(name, loc, g.ports...)
	return &ast.Entity{
		Loc:      loc,
		Symbol:   sym,
		Decls:    g.decls,
		Connects: g.conns,
		Stmts:    g.stmts,
	}
}

type gen struct {
	ctx *compiler.Context
	loc ast.Loc

	ports []*ast.Symbol
	decls []*ast.Decl
	conns []*ast.Connect
	stmts []ast.Stmt

	en, push, pop, set, d, q, empty, full *ast.Symbol
}

func (g *gen) port(name string, kind ast.Type) *ast.Symbol {
	return g.portInit(name, kind, nil)
}

func (g *gen) portInit(name string, kind ast.Type, init ast.Expr) *ast.Symbol {
	sym := g.reg(name, kind, init)
	g.ports = append(g.ports, sym)
	return sym
}

func (g *gen) reg(name string, kind ast.Type, init ast.Expr) *ast.Symbol {
	sym := g.ctx.NewTermSymbol(name, g.loc, kind)
	g.decls = append(g.decls, &ast.Decl{Loc: g.loc, Symbol: sym, Init: init})
	if init != nil {
		g.ctx.SetInit(sym, init)
	}
	return sym
}

func (g *gen) connect(src, dst ast.Expr) {
	g.conns = append(g.conns, &ast.Connect{Loc: g.loc, Lhs: src, Rhs: []ast.Expr{dst}})
}

func ref(s *ast.Symbol) ast.Expr { return ast.Ref(s) }

func not(e ast.Expr) ast.Expr { return ast.Unary("~", e) }

func and(es ...ast.Expr) ast.Expr {
	acc := es[0]
	for _, e := range es[1:] {
		acc = ast.Binary(acc, "&", e)
	}
	return acc
}

// single is the depth 1 stack: one storage register and a valid flag, with
// the flags driven combinationally.
func (g *gen) single(elem ast.Type) {
	s := g.reg("s", ast.CloneType(elem), nil)
	valid := g.reg("valid", ast.TypeUInt{Width: 1}, ast.UInt(1, 0))
	g.ctx.SetRole(s, ast.RoleStackStorage)

	g.stmts = append(g.stmts, &ast.StmtIf{
		Loc:  g.loc,
		Cond: ref(g.en),
		Then: []ast.Stmt{
			ast.Assign(ref(s), ref(g.d)),
			ast.Assign(ref(valid), and(not(ref(g.pop)), ast.Binary(ref(valid), "|", ref(g.push)))),
		},
	})
	g.connect(ref(s), ref(g.q))
	g.connect(not(ref(valid)), ref(g.empty))
	g.connect(ref(valid), ref(g.full))
}

// multi is the depth n stack: a pointer, n storage registers and
// registered flags. Statements use blocking semantics.
func (g *gen) multi(elem ast.Type, n int) {
	w := bits.Len(uint(n - 1))
	ptr := g.reg("ptr", ast.TypeUInt{Width: w}, ast.UInt(w, 0))
	s := g.reg("s", ast.TypeArray{Elem: ast.CloneType(elem), Size: n}, nil)
	g.ctx.SetRole(s, ast.RoleStackStorage)
	top := func() ast.Expr { return &ast.ExprIndex{Expr: ref(s), Index: ref(ptr)} }

	onPop := []ast.Stmt{
		ast.Assign(ref(g.empty), ast.Binary(ref(ptr), "==", ast.UInt(w, 0))),
		ast.Assign(ref(g.full), ast.UInt(1, 0)),
		&ast.StmtIf{
			Cond: not(ref(g.empty)),
			Then: []ast.Stmt{ast.Assign(ref(ptr), ast.Binary(ref(ptr), "-", ast.UInt(w, 1)))},
		},
	}
	onPush := []ast.Stmt{
		&ast.StmtIf{
			Cond: and(not(ref(g.empty)), not(ref(g.full)), ref(g.push)),
			Then: []ast.Stmt{ast.Assign(ref(ptr), ast.Binary(ref(ptr), "+", ast.UInt(w, 1)))},
		},
		ast.Assign(top(), ref(g.d)),
		ast.Assign(ref(g.empty), and(ref(g.empty), not(ref(g.push)))),
		ast.Assign(ref(g.full), ast.Binary(ref(ptr), "==", ast.UInt(w, int64(n-1)))),
	}
	g.stmts = append(g.stmts, &ast.StmtIf{
		Loc:  g.loc,
		Cond: ref(g.en),
		Then: []ast.Stmt{&ast.StmtIf{Cond: ref(g.pop), Then: onPop, Else: onPush}},
	})
	g.connect(top(), ref(g.q))
}
