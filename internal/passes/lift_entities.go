package passes

import (
	"slices"
	"strings"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// LiftEntities flattens nested entities. Every port or constant of an
// ancestor that a nested entity references gets a local alias in the nested
// entity: a port of the same type wired up through the enclosing instances,
// or a copy of the constant with its dependencies. Nested entities are then
// hoisted next to their parent and renamed parent<sep>child.
type LiftEntities struct {
	transform.Base
	ctx *compiler.Context

	frames transform.Stack[*liftFrame]

	// users of outer output ports and valid/ready input ports, reported
	// under their lifted names when the outermost entity is done
	users     map[*ast.Symbol][]*ast.Symbol
	userOrder []*ast.Symbol
}

type liftFrame struct {
	entity            *ast.Entity
	ins, outs, consts *ast.SymbolSet
	fresh             *freshMap
	obligations       []obligation
}

// obligation asks the parent to wire src to port of every instance of child.
type obligation struct {
	child *ast.Symbol
	port  *ast.Symbol
	src   *ast.Symbol
}

// freshMap maps outer symbols to their local aliases in insertion order.
type freshMap struct {
	order []*ast.Symbol
	m     map[*ast.Symbol]*ast.Symbol
}

func (f *freshMap) add(outer, fresh *ast.Symbol) {
	f.order = append(f.order, outer)
	f.m[outer] = fresh
}

func NewLiftEntities(ctx *compiler.Context) *LiftEntities {
	return &LiftEntities{ctx: ctx, users: make(map[*ast.Symbol][]*ast.Symbol)}
}

func (*LiftEntities) Name() string { return "LiftEntities" }

func (p *LiftEntities) newFrame(e *ast.Entity) *liftFrame {
	f := &liftFrame{
		entity: e,
		ins:    ast.NewSymbolSet(),
		outs:   ast.NewSymbolSet(),
		consts: ast.NewSymbolSet(),
		fresh:  &freshMap{m: make(map[*ast.Symbol]*ast.Symbol)},
	}
	for _, d := range e.Decls {
		switch d.Symbol.Kind().(type) {
		case ast.TypeIn:
			f.ins.Add(d.Symbol)
		case ast.TypeOut:
			f.outs.Add(d.Symbol)
		case ast.TypeConst:
			f.consts.Add(d.Symbol)
			if d.Init != nil && p.ctx.Init(d.Symbol) == nil {
				p.ctx.SetInit(d.Symbol, d.Init)
			}
		}
	}
	return f
}

func (f *liftFrame) declares(sym *ast.Symbol) bool {
	return f.ins.Has(sym) || f.outs.Has(sym) || f.consts.Has(sym)
}

// outer reports whether an ancestor on the stack declares sym.
func (p *LiftEntities) outer(sym *ast.Symbol) bool {
	for d := 0; d < p.frames.Len(); d++ {
		if p.frames.At(d).declares(sym) {
			return true
		}
	}
	return false
}

func isConst(sym *ast.Symbol) bool {
	_, ok := sym.Kind().(ast.TypeConst)
	return ok
}

func (p *LiftEntities) Enter(t ast.Tree) {
	e, ok := t.(*ast.Entity)
	if !ok {
		return
	}
	f := p.newFrame(e)
	if !p.frames.Empty() {
		p.collect(e, f)
	}
	p.frames.Push(f)
}

func (p *LiftEntities) Unwind(t ast.Tree) {
	if _, ok := t.(*ast.Entity); ok {
		p.frames.Pop()
		if p.frames.Empty() {
			p.users = make(map[*ast.Symbol][]*ast.Symbol)
			p.userOrder = nil
		}
	}
}

// collect creates the aliases for the outer symbols e references directly,
// plus every outer constant those constants depend on.
func (p *LiftEntities) collect(e *ast.Entity, f *liftFrame) {
	var uses []ast.Use
	seen := make(map[*ast.Symbol]bool)
	add := func(u ast.Use) {
		if !seen[u.Symbol] && p.outer(u.Symbol) {
			seen[u.Symbol] = true
			uses = append(uses, u)
		}
	}
	ast.Inspect(e, func(n ast.Tree) bool {
		switch x := n.(type) {
		case *ast.Entity:
			return x == e
		case *ast.ExprRef:
			add(ast.Use{Symbol: x.Symbol, Loc: x.Loc})
		}
		return true
	})
	for i := 0; i < len(uses); i++ {
		if !isConst(uses[i].Symbol) {
			continue
		}
		if init := p.ctx.Init(uses[i].Symbol); init != nil {
			for _, u := range ast.Uses(init) {
				if isConst(u.Symbol) {
					add(u)
				}
			}
		}
	}
	slices.SortStableFunc(uses, func(a, b ast.Use) int {
		switch {
		case a.Loc.Before(b.Loc):
			return -1
		case b.Loc.Before(a.Loc):
			return 1
		}
		return 0
	})

	for _, u := range uses {
		fresh := p.ctx.SymbolLike(u.Symbol)
		p.ctx.SetLiftedFrom(fresh, u.Symbol)
		f.fresh.add(u.Symbol, fresh)

		switch k := u.Symbol.Kind().(type) {
		case ast.TypeOut:
			p.use(u.Symbol, e.Symbol)
		case ast.TypeIn:
			if k.FC == ast.FlowReady {
				p.use(u.Symbol, e.Symbol)
			}
		}
	}
}

func (p *LiftEntities) use(sym, entity *ast.Symbol) {
	if _, ok := p.users[sym]; !ok {
		p.userOrder = append(p.userOrder, sym)
	}
	p.users[sym] = append(p.users[sym], entity)
}

// alias returns the parent's own alias of outer, creating it on demand. An
// alias created only to pass an output through is a wire.
func (p *LiftEntities) alias(f *liftFrame, outer *ast.Symbol) *ast.Symbol {
	if a, ok := f.fresh.m[outer]; ok {
		return a
	}
	a := p.ctx.SymbolLike(outer)
	if k, ok := a.Kind().(ast.TypeOut); ok {
		a.SetKind(ast.TypeOut{Kind: k.Kind, FC: k.FC, ST: ast.StoreWire})
	}
	p.ctx.SetLiftedFrom(a, outer)
	f.fresh.add(outer, a)
	return a
}

func (p *LiftEntities) Transform(t ast.Tree) ast.Tree {
	switch n := t.(type) {
	case *ast.ExprRef:
		if f := p.frames.Top(); f != nil {
			if to, ok := f.fresh.m[n.Symbol]; ok {
				return &ast.ExprRef{Loc: n.Loc, Symbol: to}
			}
		}
	case *ast.Entity:
		return p.entity(n)
	}
	return t
}

func (p *LiftEntities) entity(e *ast.Entity) ast.Tree {
	f := p.frames.Top()
	orig := f.entity
	if len(f.fresh.order) == 0 && len(f.obligations) == 0 && len(e.Entities) == 0 {
		p.frames.Pop()
		if p.frames.Empty() {
			p.reportConflicts()
		}
		return e
	}

	out := *e
	out.Decls = append([]*ast.Decl(nil), e.Decls...)
	var ports []*ast.Symbol
	for _, outer := range f.fresh.order {
		fresh := f.fresh.m[outer]
		d := &ast.Decl{Loc: orig.Loc, Symbol: fresh}
		if isConst(outer) {
			d.Init = transform.SubstituteExpr(p.ctx, p.ctx.Init(outer), f.fresh.m)
			p.ctx.SetInit(fresh, d.Init)
		} else {
			ports = append(ports, fresh)
		}
		out.Decls = append(out.Decls, d)
	}
	ast.AddPorts(orig.Symbol, ports...)

	out.Connects = append([]*ast.Connect(nil), e.Connects...)
	for _, ob := range f.obligations {
		for _, inst := range e.Instances {
			if inst.Entity != ob.child {
				continue
			}
			pin := ast.Select(&ast.ExprRef{Loc: inst.Loc, Symbol: inst.Symbol}, ob.port.Name())
			src := &ast.ExprRef{Loc: inst.Loc, Symbol: ob.src}
			if _, isIn := ob.port.Kind().(ast.TypeIn); isIn {
				out.Connects = append(out.Connects, &ast.Connect{Loc: inst.Loc, Lhs: src, Rhs: []ast.Expr{pin}})
			} else {
				out.Connects = append(out.Connects, &ast.Connect{Loc: inst.Loc, Lhs: pin, Rhs: []ast.Expr{src}})
			}
		}
	}

	if parent := p.frames.At(1); parent != nil {
		for _, fresh := range ports {
			outer := p.ctx.LiftedFrom(fresh)
			if k, ok := outer.Kind().(ast.TypeOut); ok && k.ST.Kind != ast.StorageWire {
				outer.SetKind(ast.TypeOut{Kind: k.Kind, FC: k.FC, ST: ast.StoreWire})
			}
			src := outer
			if !parent.declares(outer) {
				src = p.alias(parent, outer)
			}
			parent.obligations = append(parent.obligations, obligation{child: orig.Symbol, port: fresh, src: src})
		}
	}

	children := e.Entities
	out.Entities = nil
	p.frames.Pop()

	trees := make([]ast.Tree, 0, len(children)+1)
	trees = append(trees, &out)
	prefix := orig.Name() + p.ctx.Separator
	for _, c := range children {
		c.Symbol.Rename(prefix + c.Name())
		trees = append(trees, c)
	}
	if p.frames.Empty() {
		p.reportConflicts()
	}
	return &ast.Thicket{Trees: trees}
}

func (p *LiftEntities) reportConflicts() {
	for _, sym := range p.userOrder {
		users := p.users[sym]
		if len(users) < 2 {
			continue
		}
		names := make([]string, len(users))
		for i, u := range users {
			names[i] = u.Name()
		}
		if _, ok := sym.Kind().(ast.TypeOut); ok {
			p.ctx.Reporter.Error(sym.Loc(), "output port %s is driven by multiple nested entities: %s", sym.Name(), strings.Join(names, ", "))
		} else {
			p.ctx.Reporter.Error(sym.Loc(), "input port %s with ready flow control is consumed by multiple nested entities: %s", sym.Name(), strings.Join(names, ", "))
		}
	}
	p.users = make(map[*ast.Symbol][]*ast.Symbol)
	p.userOrder = nil
}

func (p *LiftEntities) FinalCheck(t ast.Tree) {
	if !p.frames.Empty() {
		p.ctx.Reporter.ICE("%d entity scopes left on the stack", p.frames.Len())
	}
	root, ok := t.(*ast.Root)
	if !ok {
		return
	}
	for _, e := range root.Entities {
		if len(e.Entities) > 0 {
			p.ctx.Reporter.ICE("entity %s still has %d nested entities", e.Name(), len(e.Entities))
		}
		declared := ast.NewSymbolSet()
		for _, d := range e.Decls {
			declared.Add(d.Symbol)
		}
		for _, i := range e.Instances {
			declared.Add(i.Symbol)
		}
		ast.Inspect(e, func(n ast.Tree) bool {
			if sd, ok := n.(*ast.StmtDecl); ok {
				declared.Add(sd.Decl.Symbol)
			}
			return true
		})
		ast.Inspect(e, func(n ast.Tree) bool {
			if ref, ok := n.(*ast.ExprRef); ok && !declared.Has(ref.Symbol) {
				p.ctx.Reporter.ICE("entity %s references %s which it does not declare", e.Name(), ref.Symbol.Name())
			}
			return true
		})
	}
}
