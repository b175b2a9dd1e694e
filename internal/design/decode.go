package design

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
)

// Decode parses a design file and builds its tree. See Build.
func Decode(ctx *compiler.Context, data []byte) (*ast.Root, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing design: %w", err)
	}
	return Build(ctx, &f)
}

// Build turns a decoded file into a tree. Symbols keep their upstream
// identifiers and the context is told to allocate fresh symbols above the
// largest one. Every problem found is reported, not only the first.
func Build(ctx *compiler.Context, f *File) (*ast.Root, error) {
	if f.Version != Version {
		return nil, fmt.Errorf("unsupported design version %d (want %d)", f.Version, Version)
	}

	d := &decoder{syms: make(map[int]*ast.Symbol, len(f.Symbols))}

	// Kinds refer to other symbols, so every symbol exists before any kind
	// is decoded.
	for _, s := range f.Symbols {
		if _, dup := d.syms[s.ID]; dup {
			d.errorf(s.Loc, "symbol %d (%s) declared twice", s.ID, s.Name)
			continue
		}
		class := ast.TermSymbol
		switch s.Class {
		case "term":
		case "type":
			class = ast.TypeSymbol
		default:
			d.errorf(s.Loc, "symbol %s: unknown class %q", s.Name, s.Class)
		}
		d.syms[s.ID] = ast.NewSymbol(s.ID, class, s.Name, s.Loc, nil)
		ctx.Reserve(s.ID)
	}
	for _, s := range f.Symbols {
		sym := d.syms[s.ID]
		if sym.Kind() != nil {
			continue
		}
		sym.SetKind(d.typ(s.Loc, s.Type))
	}

	root := &ast.Root{}
	for _, e := range f.Entities {
		root.Entities = append(root.Entities, d.entity(e))
	}

	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return root, nil
}

type decoder struct {
	syms map[int]*ast.Symbol
	errs []error
}

func (d *decoder) errorf(loc ast.Loc, format string, args ...any) {
	d.errs = append(d.errs, fmt.Errorf("%s: %s", loc, fmt.Sprintf(format, args...)))
}

// symbol resolves an identifier; unknown ones are reported and replaced by
// a placeholder so decoding can go on.
func (d *decoder) symbol(loc ast.Loc, id int) *ast.Symbol {
	if sym, ok := d.syms[id]; ok {
		return sym
	}
	d.errorf(loc, "unknown symbol %d", id)
	return ast.NewSymbol(id, ast.TermSymbol, fmt.Sprintf("<unknown %d>", id), loc, ast.TypeVoid{})
}

func (d *decoder) typ(loc ast.Loc, t *Type) ast.Type {
	if t == nil {
		d.errorf(loc, "missing type")
		return ast.TypeVoid{}
	}
	switch t.Kind {
	case "uint":
		return ast.TypeUInt{Width: d.width(loc, t)}
	case "sint":
		return ast.TypeSInt{Width: d.width(loc, t)}
	case "num":
		return ast.TypeNum{Signed: t.Signed}
	case "void":
		return ast.TypeVoid{}
	case "struct":
		fields := make([]ast.Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = ast.Field{Name: f.Name, Kind: d.typ(loc, f.Type)}
		}
		return ast.TypeStruct{Name: t.Name, Fields: fields}
	case "array":
		if t.Size <= 0 {
			d.errorf(loc, "array size must be positive, got %d", t.Size)
		}
		return ast.TypeArray{Elem: d.typ(loc, t.Elem), Size: t.Size}
	case "in":
		return ast.TypeIn{Kind: d.typ(loc, t.Elem), FC: d.flow(loc, t.Flow)}
	case "out":
		return ast.TypeOut{Kind: d.typ(loc, t.Elem), FC: d.flow(loc, t.Flow), ST: d.storage(loc, t)}
	case "const":
		return ast.TypeConst{Kind: d.typ(loc, t.Elem)}
	case "pipeline":
		return ast.TypePipeline{Kind: d.typ(loc, t.Elem)}
	case "stack":
		if t.Depth == nil {
			d.errorf(loc, "stack without depth")
			return ast.TypeStack{Elem: d.typ(loc, t.Elem), Depth: ast.Num(1)}
		}
		return ast.TypeStack{Elem: d.typ(loc, t.Elem), Depth: d.expr(t.Depth)}
	case "entity":
		ports := make([]*ast.Symbol, len(t.Ports))
		for i, id := range t.Ports {
			ports[i] = d.symbol(loc, id)
		}
		return ast.TypeEntity{Ports: ports}
	case "instance":
		return ast.TypeInstance{Entity: d.symbol(loc, t.Entity)}
	}
	d.errorf(loc, "unknown type kind %q", t.Kind)
	return ast.TypeVoid{}
}

func (d *decoder) width(loc ast.Loc, t *Type) int {
	if t.Width <= 0 {
		d.errorf(loc, "%s width must be positive, got %d", t.Kind, t.Width)
		return 1
	}
	return t.Width
}

func (d *decoder) flow(loc ast.Loc, fc string) ast.FlowControl {
	switch fc {
	case "", "none":
		return ast.FlowNone
	case "valid":
		return ast.FlowValid
	case "ready":
		return ast.FlowReady
	}
	d.errorf(loc, "unknown flow control %q", fc)
	return ast.FlowNone
}

func (d *decoder) storage(loc ast.Loc, t *Type) ast.Storage {
	switch t.Storage {
	case "", "reg":
		return ast.StoreReg
	case "wire":
		return ast.StoreWire
	case "slices":
		if len(t.Slices) == 0 {
			d.errorf(loc, "slice storage needs at least one slice")
			return ast.StoreReg
		}
		kinds := make([]ast.SliceKind, len(t.Slices))
		for i, s := range t.Slices {
			switch s {
			case "fslice":
				kinds[i] = ast.SliceForward
			case "bslice":
				kinds[i] = ast.SliceBackward
			case "bubble":
				kinds[i] = ast.SliceBubble
			default:
				d.errorf(loc, "unknown slice kind %q", s)
			}
		}
		return ast.SliceStorage(kinds...)
	}
	d.errorf(loc, "unknown storage %q", t.Storage)
	return ast.StoreReg
}

func (d *decoder) entity(e *Entity) *ast.Entity {
	sym := d.symbol(e.Loc, e.Symbol)
	if _, ok := sym.Kind().(ast.TypeEntity); !ok || !sym.IsType() {
		d.errorf(e.Loc, "%s is not an entity symbol", sym.Name())
	}
	out := &ast.Entity{Loc: e.Loc, Symbol: sym}
	for _, decl := range e.Decls {
		out.Decls = append(out.Decls, d.decl(decl))
	}
	for _, nested := range e.Entities {
		out.Entities = append(out.Entities, d.entity(nested))
	}
	for _, inst := range e.Instances {
		out.Instances = append(out.Instances, &ast.Instance{
			Loc:    inst.Loc,
			Symbol: d.symbol(inst.Loc, inst.Symbol),
			Entity: d.symbol(inst.Loc, inst.Entity),
		})
	}
	for _, c := range e.Connects {
		conn := &ast.Connect{Loc: c.Loc, Lhs: d.exprAt(c.Loc, c.Lhs)}
		if len(c.Rhs) == 0 {
			d.errorf(c.Loc, "connection without sinks")
		}
		conn.Rhs = d.exprs(c.Rhs)
		out.Connects = append(out.Connects, conn)
	}
	out.Stmts = d.stmts(e.Stmts)
	return out
}

func (d *decoder) decl(decl *Decl) *ast.Decl {
	out := &ast.Decl{Loc: decl.Loc, Symbol: d.symbol(decl.Loc, decl.Symbol)}
	if decl.Init != nil {
		out.Init = d.expr(decl.Init)
	}
	return out
}

func (d *decoder) exprs(es []*Expr) []ast.Expr {
	out := make([]ast.Expr, len(es))
	for i, e := range es {
		out[i] = d.expr(e)
	}
	return out
}

// exprAt decodes a required child expression of a node at loc.
func (d *decoder) exprAt(loc ast.Loc, e *Expr) ast.Expr {
	if e == nil {
		d.errorf(loc, "missing expression")
		return ast.Num(0)
	}
	return d.expr(e)
}

func (d *decoder) literal(e *Expr) *big.Int {
	v, ok := new(big.Int).SetString(e.Value, 10)
	if !ok {
		d.errorf(e.Loc, "bad integer literal %q", e.Value)
		return new(big.Int)
	}
	return v
}

func (d *decoder) expr(e *Expr) ast.Expr {
	if e == nil {
		return ast.Num(0)
	}
	loc := e.Loc
	switch e.Op {
	case "ref":
		return &ast.ExprRef{Loc: loc, Symbol: d.symbol(loc, e.Symbol)}
	case "num":
		return &ast.ExprNum{Loc: loc, Signed: e.Signed, Value: d.literal(e)}
	case "int":
		if e.Width <= 0 {
			d.errorf(loc, "sized literal needs a positive width")
		}
		return &ast.ExprInt{Loc: loc, Signed: e.Signed, Width: e.Width, Value: d.literal(e)}
	case "unary":
		return &ast.ExprUnary{Loc: loc, Op: e.Operator, Expr: d.exprAt(loc, e.Expr)}
	case "binary":
		return &ast.ExprBinary{Loc: loc, Op: e.Operator, Lhs: d.exprAt(loc, e.Lhs), Rhs: d.exprAt(loc, e.Rhs)}
	case "ternary":
		return &ast.ExprTernary{Loc: loc, Cond: d.exprAt(loc, e.Cond), Then: d.exprAt(loc, e.Then), Else: d.exprAt(loc, e.Else)}
	case "cat":
		if len(e.Parts) == 0 {
			d.errorf(loc, "empty concatenation")
		}
		return &ast.ExprCat{Loc: loc, Parts: d.exprs(e.Parts)}
	case "rep":
		return &ast.ExprRep{Loc: loc, Count: d.exprAt(loc, e.Count), Expr: d.exprAt(loc, e.Expr)}
	case "index":
		return &ast.ExprIndex{Loc: loc, Expr: d.exprAt(loc, e.Expr), Index: d.exprAt(loc, e.Index)}
	case "slice":
		return &ast.ExprSlice{Loc: loc, Expr: d.exprAt(loc, e.Expr), Msb: d.exprAt(loc, e.Msb), Lsb: d.exprAt(loc, e.Lsb)}
	case "select":
		return &ast.ExprSelect{Loc: loc, Expr: d.exprAt(loc, e.Expr), Field: e.Field}
	case "call":
		return &ast.ExprCall{Loc: loc, Func: d.exprAt(loc, e.Func), Args: d.exprs(e.Args)}
	}
	d.errorf(loc, "unknown expression op %q", e.Op)
	return ast.Num(0)
}

func (d *decoder) stmts(ss []*Stmt) []ast.Stmt {
	var out []ast.Stmt
	for _, s := range ss {
		if st := d.stmt(s); st != nil {
			out = append(out, st)
		}
	}
	return out
}

func (d *decoder) stmt(s *Stmt) ast.Stmt {
	if s == nil {
		return nil
	}
	loc := s.Loc
	switch s.Stmt {
	case "block":
		return &ast.StmtBlock{Loc: loc, Body: d.stmts(s.Body)}
	case "if":
		return &ast.StmtIf{Loc: loc, Cond: d.exprAt(loc, s.Cond), Then: d.stmts(s.Then), Else: d.stmts(s.Else)}
	case "case":
		out := &ast.StmtCase{Loc: loc, Expr: d.exprAt(loc, s.Expr), Default: d.stmts(s.Default)}
		for _, c := range s.Clauses {
			out.Clauses = append(out.Clauses, &ast.CaseClause{Loc: c.Loc, Conds: d.exprs(c.Conds), Body: d.stmts(c.Body)})
		}
		return out
	case "loop":
		return &ast.StmtLoop{Loc: loc, Body: d.stmts(s.Body)}
	case "goto":
		return &ast.StmtGoto{Loc: loc, Target: s.Target}
	case "fence":
		return &ast.StmtFence{Loc: loc}
	case "break":
		return &ast.StmtBreak{Loc: loc}
	case "continue":
		return &ast.StmtContinue{Loc: loc}
	case "assign":
		return &ast.StmtAssign{Loc: loc, Lhs: d.exprAt(loc, s.Lhs), Rhs: d.exprAt(loc, s.Rhs)}
	case "expr":
		return &ast.StmtExpr{Loc: loc, Expr: d.exprAt(loc, s.Expr)}
	case "read":
		return &ast.StmtRead{Loc: loc}
	case "write":
		return &ast.StmtWrite{Loc: loc}
	case "decl":
		if s.Decl == nil {
			d.errorf(loc, "declaration statement without declaration")
			return nil
		}
		return &ast.StmtDecl{Loc: loc, Decl: d.decl(s.Decl)}
	case "stall":
		return &ast.StmtStall{Loc: loc, Cond: d.exprAt(loc, s.Cond)}
	}
	d.errorf(loc, "unknown statement %q", s.Stmt)
	return nil
}
