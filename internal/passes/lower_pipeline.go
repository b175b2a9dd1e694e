package passes

import (
	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// Names of the synthesized pipeline ports.
const (
	PipelineIn  = "pipeline_i"
	PipelineOut = "pipeline_o"
)

// LowerPipeline turns pipeline variables declared by an entity into
// struct-typed ports between its nested stage entities. Stages are ordered
// by the instance-to-instance connections of the enclosing entity.
type LowerPipeline struct {
	transform.Base
	ctx *compiler.Context
}

func NewLowerPipeline(ctx *compiler.Context) *LowerPipeline {
	return &LowerPipeline{ctx: ctx}
}

func (*LowerPipeline) Name() string { return "LowerPipeline" }

// Skip leaves everything below the entity level alone; the work happens on
// the entity declaring the pipeline variables.
func (*LowerPipeline) Skip(t ast.Tree) bool {
	switch t.(type) {
	case *ast.Root, *ast.Entity:
		return false
	}
	return true
}

func (p *LowerPipeline) Transform(t ast.Tree) ast.Tree {
	e, ok := t.(*ast.Entity)
	if !ok {
		return t
	}
	pvars := ast.NewSymbolSet()
	for _, d := range e.Decls {
		if _, ok := d.Symbol.Kind().(ast.TypePipeline); ok {
			pvars.Add(d.Symbol)
		}
	}
	if pvars.Len() == 0 {
		return e
	}
	chains, stageConns, ok := p.chains(e)
	if !ok {
		return e
	}

	ports := make(map[*ast.Symbol]stagePorts)
	rewritten := make(map[*ast.Entity]*ast.Entity)
	for _, chain := range chains {
		p.lowerChain(chain, pvars, ports, rewritten)
	}

	out := *e
	out.Decls = nil
	for _, d := range e.Decls {
		if !pvars.Has(d.Symbol) {
			out.Decls = append(out.Decls, d)
		}
	}
	out.Entities = make([]*ast.Entity, len(e.Entities))
	for i, child := range e.Entities {
		if r, ok := rewritten[child]; ok {
			out.Entities[i] = r
		} else {
			out.Entities[i] = child
		}
	}
	out.Connects = nil
	for _, c := range e.Connects {
		link, isStage := stageConns[c]
		if !isStage {
			out.Connects = append(out.Connects, c)
			continue
		}
		src, dst := ports[link.from].out, ports[link.to].in
		if src == nil || dst == nil {
			continue
		}
		out.Connects = append(out.Connects, &ast.Connect{
			Loc: c.Loc,
			Lhs: ast.Select(c.Lhs, src.Name()),
			Rhs: []ast.Expr{ast.Select(c.Rhs[0], dst.Name())},
		})
	}
	return &out
}

type link struct {
	from, to *ast.Symbol
}

type stagePorts struct {
	in, out *ast.Symbol
}

// chains orders the nested entities of e into pipelines. Every nested entity
// not linked to another one forms a chain of its own.
func (p *LowerPipeline) chains(e *ast.Entity) ([][]*ast.Entity, map[*ast.Connect]link, bool) {
	nested := make(map[*ast.Symbol]*ast.Entity)
	for _, child := range e.Entities {
		nested[child.Symbol] = child
	}
	stageOf := func(x ast.Expr) *ast.Symbol {
		ref, ok := x.(*ast.ExprRef)
		if !ok {
			return nil
		}
		ent := ast.InstanceEntity(ref.Symbol)
		if nested[ent] == nil {
			return nil
		}
		return ent
	}

	succ := make(map[*ast.Symbol]*ast.Symbol)
	pred := make(map[*ast.Symbol]*ast.Symbol)
	conns := make(map[*ast.Connect]link)
	ok := true
	for _, c := range e.Connects {
		if len(c.Rhs) != 1 {
			continue
		}
		from, to := stageOf(c.Lhs), stageOf(c.Rhs[0])
		if from == nil || to == nil {
			continue
		}
		if prev, dup := succ[from]; dup && prev != to {
			p.ctx.Reporter.Error(c.Loc, "pipeline stage %s has more than one successor", from.Name())
			ok = false
		}
		if prev, dup := pred[to]; dup && prev != from {
			p.ctx.Reporter.Error(c.Loc, "pipeline stage %s has more than one predecessor", to.Name())
			ok = false
		}
		succ[from], pred[to] = to, from
		conns[c] = link{from: from, to: to}
	}
	if !ok {
		return nil, nil, false
	}

	var chains [][]*ast.Entity
	visited := make(map[*ast.Symbol]bool)
	for _, child := range e.Entities {
		if _, hasPred := pred[child.Symbol]; hasPred {
			continue
		}
		var chain []*ast.Entity
		for s := child.Symbol; s != nil; s = succ[s] {
			visited[s] = true
			chain = append(chain, nested[s])
		}
		chains = append(chains, chain)
	}
	for _, child := range e.Entities {
		if !visited[child.Symbol] {
			p.ctx.Reporter.Error(child.Loc, "pipeline stages of %s form a cycle through %s", e.Name(), child.Name())
			return nil, nil, false
		}
	}
	return chains, conns, true
}

func (p *LowerPipeline) lowerChain(chain []*ast.Entity, pvars *ast.SymbolSet, ports map[*ast.Symbol]stagePorts, rewritten map[*ast.Entity]*ast.Entity) {
	n := len(chain)
	used := make([]*ast.SymbolSet, n)
	for i, stage := range chain {
		used[i] = ast.NewSymbolSet()
		for _, sym := range ast.Refs(stage) {
			if pvars.Has(sym) {
				used[i].Add(sym)
			}
		}
	}
	later := make([]*ast.SymbolSet, n)
	acc := ast.NewSymbolSet()
	for i := n - 1; i >= 0; i-- {
		later[i] = acc
		acc = acc.Union(used[i])
	}
	active := make([]*ast.SymbolSet, n)
	for i := range chain {
		active[i] = used[i]
		if i > 0 {
			active[i] = used[i].Union(later[i].Intersect(active[i-1]))
		}
	}

	for i, stage := range chain {
		var in, out *ast.SymbolSet
		if i > 0 {
			in = active[i-1].Intersect(active[i])
		}
		if i < n-1 {
			out = active[i].Intersect(active[i+1])
		}
		rewritten[stage] = p.lowerStage(stage, active[i], in, out, ports)
	}
}

func (p *LowerPipeline) structOf(stage *ast.Entity, suffix string, vars []*ast.Symbol) ast.TypeStruct {
	fields := make([]ast.Field, len(vars))
	for i, v := range vars {
		fields[i] = ast.Field{Name: v.Name(), Kind: ast.CloneType(ast.Underlying(v.Kind()))}
	}
	return ast.TypeStruct{Name: stage.Name() + "_" + suffix + "_t", Fields: fields}
}

func (p *LowerPipeline) lowerStage(stage *ast.Entity, active, in, out *ast.SymbolSet, ports map[*ast.Symbol]stagePorts) *ast.Entity {
	locals := make(map[*ast.Symbol]*ast.Symbol)
	var decls []*ast.Decl
	for _, v := range active.Slice() {
		l := p.ctx.NewTermSymbol(v.Name(), v.Loc(), ast.CloneType(ast.Underlying(v.Kind())))
		p.ctx.SetRole(l, ast.RolePipelineLocal)
		locals[v] = l
		decls = append(decls, &ast.Decl{Loc: v.Loc(), Symbol: l})
	}

	r := &stageRewriter{ctx: p.ctx, stage: stage, locals: locals}
	var newPorts []*ast.Symbol
	if in != nil && in.Len() > 0 {
		r.inVars = in.Slice()
		kind := ast.TypeIn{Kind: p.structOf(stage, "in", r.inVars), FC: ast.FlowReady}
		r.in = p.ctx.NewTermSymbol(PipelineIn, stage.Loc, kind)
		p.ctx.SetRole(r.in, ast.RolePipelineIn)
		newPorts = append(newPorts, r.in)
	}
	if out != nil && out.Len() > 0 {
		r.outVars = out.Slice()
		kind := ast.TypeOut{Kind: p.structOf(stage, "out", r.outVars), FC: ast.FlowReady, ST: ast.SliceStorage(ast.SliceForward)}
		r.out = p.ctx.NewTermSymbol(PipelineOut, stage.Loc, kind)
		p.ctx.SetRole(r.out, ast.RolePipelineOut)
		newPorts = append(newPorts, r.out)
	}
	ports[stage.Symbol] = stagePorts{in: r.in, out: r.out}

	res := transform.Walk(p.ctx, r, stage).(*ast.Entity)
	if len(newPorts) == 0 && len(decls) == 0 {
		return res
	}
	c := *res
	c.Decls = make([]*ast.Decl, 0, len(res.Decls)+len(newPorts)+len(decls))
	for _, port := range newPorts {
		c.Decls = append(c.Decls, &ast.Decl{Loc: stage.Loc, Symbol: port})
	}
	c.Decls = append(c.Decls, res.Decls...)
	c.Decls = append(c.Decls, decls...)
	ast.AddPorts(stage.Symbol, newPorts...)
	return &c
}

// stageRewriter rewrites one stage body: pipeline variable references become
// stage locals and read/write become port accesses.
type stageRewriter struct {
	transform.Base
	ctx    *compiler.Context
	stage  *ast.Entity
	locals map[*ast.Symbol]*ast.Symbol

	in, out         *ast.Symbol
	inVars, outVars []*ast.Symbol
}

func (*stageRewriter) Name() string { return "LowerPipeline" }

func (r *stageRewriter) pack(vars []*ast.Symbol) ast.Expr {
	parts := make([]ast.Expr, len(vars))
	for i, v := range vars {
		parts[i] = ast.Ref(r.locals[v])
	}
	return ast.Cat(parts...)
}

func (r *stageRewriter) Transform(t ast.Tree) ast.Tree {
	switch n := t.(type) {
	case *ast.ExprRef:
		if l, ok := r.locals[n.Symbol]; ok {
			return &ast.ExprRef{Loc: n.Loc, Symbol: l}
		}
	case *ast.StmtRead:
		if r.in == nil {
			r.ctx.Reporter.Fatal(n.Loc, "read in pipeline stage %s which has no preceding stage to read from", r.stage.Name())
		}
		return &ast.StmtAssign{Loc: n.Loc, Lhs: r.pack(r.inVars), Rhs: ast.Call(ast.Ref(r.in), "read")}
	case *ast.StmtWrite:
		if r.out == nil {
			r.ctx.Reporter.Fatal(n.Loc, "write in pipeline stage %s which has no following stage to write to", r.stage.Name())
		}
		return &ast.StmtExpr{Loc: n.Loc, Expr: ast.Call(ast.Ref(r.out), "write", r.pack(r.outVars))}
	}
	return t
}

func (p *LowerPipeline) FinalCheck(t ast.Tree) {
	if !p.ctx.Reporter.ShouldProceed() {
		return
	}
	ast.Inspect(t, func(n ast.Tree) bool {
		switch x := n.(type) {
		case *ast.StmtRead, *ast.StmtWrite:
			p.ctx.Reporter.ICE("pipeline statement at %s survived", x.Pos())
		case *ast.Decl:
			if _, ok := x.Symbol.Kind().(ast.TypePipeline); ok {
				p.ctx.Reporter.ICE("pipeline variable %s survived", x.Symbol.Name())
			}
		case *ast.ExprRef:
			if _, ok := x.Symbol.Kind().(ast.TypePipeline); ok {
				p.ctx.Reporter.ICE("reference to pipeline variable %s survived at %s", x.Symbol.Name(), x.Loc)
			}
		}
		return true
	})
}
