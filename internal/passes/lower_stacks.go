package passes

import (
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/stackfactory"
	"github.com/robert-at-pretension-io/fsm-lower/internal/staticeval"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// LowerStacks replaces every stack declaration with a generated stack entity
// nested in the owner, an instance of it, and interconnect variables driving
// and observing its ports. Stack operations become assignments to the
// interconnect variables. LiftEntities later flattens the generated entity.
type LowerStacks struct {
	transform.Base
	ctx *compiler.Context

	stacks map[*ast.Symbol]*stackInfo
	owners transform.Stack[[]*stackInfo]
	// pending collects the control assignments caused by pop() calls nested
	// in the expressions of the innermost statement.
	pending transform.Stack[[]ast.Stmt]
}

type stackInfo struct {
	sym    *ast.Symbol
	entity *ast.Entity
	inst   *ast.Symbol
	vars   map[string]*ast.Symbol
	decls  []*ast.Decl
	conns  []*ast.Connect
}

func NewLowerStacks(ctx *compiler.Context) *LowerStacks {
	return &LowerStacks{ctx: ctx, stacks: make(map[*ast.Symbol]*stackInfo)}
}

func (*LowerStacks) Name() string { return "LowerStacks" }

func (p *LowerStacks) Enter(t ast.Tree) {
	switch n := t.(type) {
	case *ast.Entity:
		var infos []*stackInfo
		for _, d := range n.Decls {
			if k, ok := d.Symbol.Kind().(ast.TypeStack); ok {
				info := p.build(d.Symbol, k)
				p.stacks[d.Symbol] = info
				infos = append(infos, info)
			}
		}
		p.owners.Push(infos)
	case ast.Stmt:
		p.pending.Push(nil)
	}
}

func (p *LowerStacks) Unwind(t ast.Tree) {
	switch t.(type) {
	case *ast.Entity:
		p.owners.Pop()
	case ast.Stmt:
		p.pending.Pop()
	}
}

func (p *LowerStacks) build(sym *ast.Symbol, k ast.TypeStack) *stackInfo {
	ent := stackfactory.Build(p.ctx, sym.Name(), sym.Loc(), k.Elem, k.Depth)
	inst := p.ctx.NewTermSymbol(sym.Name()+"_inst", sym.Loc(), ast.TypeInstance{Entity: ent.Symbol})
	info := &stackInfo{sym: sym, entity: ent, inst: inst, vars: make(map[string]*ast.Symbol)}
	for _, port := range ast.EntityPorts(ent.Symbol) {
		v := p.ctx.NewTermSymbol(sym.Name()+"_"+port.Name(), sym.Loc(), ast.CloneType(ast.Underlying(port.Kind())))
		p.ctx.SetRole(v, ast.RoleInterconnect)
		p.ctx.SetInterconnect(sym, port.Name(), v)
		info.vars[port.Name()] = v
		info.decls = append(info.decls, &ast.Decl{Loc: sym.Loc(), Symbol: v})

		pin := ast.Select(ast.Ref(inst), port.Name())
		if _, isIn := port.Kind().(ast.TypeIn); isIn {
			info.conns = append(info.conns, &ast.Connect{Loc: sym.Loc(), Lhs: ast.Ref(v), Rhs: []ast.Expr{pin}})
		} else {
			info.conns = append(info.conns, &ast.Connect{Loc: sym.Loc(), Lhs: pin, Rhs: []ast.Expr{ast.Ref(v)}})
		}
	}
	return info
}

func (info *stackInfo) set(port string, v ast.Expr) ast.Stmt {
	return &ast.StmtAssign{Loc: info.sym.Loc(), Lhs: ast.Ref(info.vars[port]), Rhs: v}
}

func one() ast.Expr { return ast.UInt(1, 1) }

// defaults deasserts every control input at the start of the owner body.
func (info *stackInfo) defaults() []ast.Stmt {
	var out []ast.Stmt
	for _, port := range stackfactory.ControlPorts {
		out = append(out, info.set(port, ast.UInt(1, 0)))
	}
	elem := ast.Underlying(info.vars[stackfactory.PortD].Kind())
	return append(out, info.set(stackfactory.PortD, staticeval.Literal(info.sym.Loc(), big.NewInt(0), elem)))
}

func (p *LowerStacks) Transform(t ast.Tree) ast.Tree {
	switch n := t.(type) {
	case *ast.Entity:
		return p.entity(n)
	case *ast.ExprSelect:
		if info := p.stackOf(n.Expr); info != nil {
			switch n.Field {
			case "top":
				return ast.Ref(info.vars[stackfactory.PortQ])
			case stackfactory.PortFull, stackfactory.PortEmpty:
				return ast.Ref(info.vars[n.Field])
			}
		}
	case *ast.ExprCall:
		return p.call(n)
	case ast.Stmt:
		return p.stmt(n)
	}
	return t
}

func (p *LowerStacks) stackOf(e ast.Expr) *stackInfo {
	if ref, ok := e.(*ast.ExprRef); ok {
		return p.stacks[ref.Symbol]
	}
	return nil
}

// call rewrites a stack operation used as a value. Only pop and top yield
// values; the other operations are handled at statement level.
func (p *LowerStacks) call(n *ast.ExprCall) ast.Tree {
	if ref, ok := n.Func.(*ast.ExprRef); ok && len(n.Args) == 0 && p.ctx.Role(ref.Symbol) == ast.RoleInterconnect {
		// top() after its selector was rewritten
		return ref
	}
	sel, ok := n.Func.(*ast.ExprSelect)
	if !ok {
		return n
	}
	info := p.stackOf(sel.Expr)
	if info == nil || sel.Field != "pop" {
		return n
	}
	if p.pending.Empty() {
		p.ctx.Reporter.Error(n.Loc, "%s.pop() used outside a statement", info.sym.Name())
		return n
	}
	frame := p.pending.Pop()
	frame = append(frame, info.set(stackfactory.PortEn, one()), info.set(stackfactory.PortPop, one()))
	p.pending.Push(frame)
	return ast.Ref(info.vars[stackfactory.PortQ])
}

func (p *LowerStacks) stmt(s ast.Stmt) ast.Tree {
	after := p.pending.Pop()
	res := ast.Tree(s)
	if x, ok := s.(*ast.StmtExpr); ok {
		if call, ok := x.Expr.(*ast.ExprCall); ok {
			if ops := p.operation(call); ops != nil {
				res = ast.NewThicket(ops)
			}
		}
		if ref, ok := x.Expr.(*ast.ExprRef); ok && p.ctx.Role(ref.Symbol) == ast.RoleInterconnect && len(after) > 0 {
			// a bare pop() statement: only its side effects remain
			return ast.NewThicket(after)
		}
	}
	if len(after) == 0 {
		return res
	}
	trees := []ast.Tree{}
	switch s.(type) {
	case *ast.StmtIf, *ast.StmtCase, *ast.StmtStall:
		// the value was consumed by the condition
		for _, a := range after {
			trees = append(trees, a)
		}
		trees = append(trees, res)
	default:
		trees = append(trees, res)
		for _, a := range after {
			trees = append(trees, a)
		}
	}
	return &ast.Thicket{Trees: trees}
}

// operation expands push, set and pop statements into control assignments.
func (p *LowerStacks) operation(call *ast.ExprCall) []ast.Stmt {
	sel, ok := call.Func.(*ast.ExprSelect)
	if !ok {
		return nil
	}
	info := p.stackOf(sel.Expr)
	if info == nil {
		return nil
	}
	switch sel.Field {
	case stackfactory.PortPush, stackfactory.PortSet:
		if len(call.Args) != 1 {
			p.ctx.Reporter.Error(call.Loc, "%s.%s takes one argument", info.sym.Name(), sel.Field)
			return nil
		}
		return []ast.Stmt{
			info.set(stackfactory.PortEn, one()),
			info.set(sel.Field, one()),
			info.set(stackfactory.PortD, call.Args[0]),
		}
	}
	return nil
}

func (p *LowerStacks) entity(e *ast.Entity) ast.Tree {
	infos := p.owners.Pop()
	if len(infos) == 0 {
		return e
	}
	out := *e
	out.Decls = nil
	for _, d := range e.Decls {
		if p.stacks[d.Symbol] == nil {
			out.Decls = append(out.Decls, d)
		}
	}
	out.Entities = append([]*ast.Entity(nil), e.Entities...)
	out.Instances = append([]*ast.Instance(nil), e.Instances...)
	out.Connects = append([]*ast.Connect(nil), e.Connects...)
	var prologue []ast.Stmt
	for _, info := range infos {
		out.Decls = append(out.Decls, info.decls...)
		out.Entities = append(out.Entities, info.entity)
		out.Instances = append(out.Instances, &ast.Instance{Loc: info.sym.Loc(), Symbol: info.inst, Entity: info.entity.Symbol})
		out.Connects = append(out.Connects, info.conns...)
		prologue = append(prologue, info.defaults()...)
	}
	out.Stmts = append(prologue, e.Stmts...)
	return &out
}

func (p *LowerStacks) FinalCheck(t ast.Tree) {
	if !p.owners.Empty() || !p.pending.Empty() {
		p.ctx.Reporter.ICE("scope stacks not empty")
	}
	ast.Inspect(t, func(n ast.Tree) bool {
		if d, ok := n.(*ast.Decl); ok {
			if _, isStack := d.Symbol.Kind().(ast.TypeStack); isStack {
				p.ctx.Reporter.ICE("stack %s survived", d.Symbol.Name())
			}
		}
		return true
	})
}
