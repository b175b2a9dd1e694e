package passes

import (
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/staticeval"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
)

// SimplifyCat flattens concatenations and splits assignments and
// connections between concatenations into one per matching group of parts.
type SimplifyCat struct {
	transform.Base
	ctx *compiler.Context
}

func NewSimplifyCat(ctx *compiler.Context) *SimplifyCat {
	return &SimplifyCat{ctx: ctx}
}

func (*SimplifyCat) Name() string { return "SimplifyCat" }

func (p *SimplifyCat) Transform(t ast.Tree) ast.Tree {
	switch n := t.(type) {
	case *ast.ExprCat:
		return flattenCat(n)
	case *ast.StmtAssign:
		return p.assign(n)
	case *ast.Connect:
		return p.connect(n)
	}
	return t
}

func flattenCat(n *ast.ExprCat) ast.Expr {
	nested := false
	for _, part := range n.Parts {
		if _, ok := part.(*ast.ExprCat); ok {
			nested = true
			break
		}
	}
	if !nested {
		if len(n.Parts) == 1 {
			return n.Parts[0]
		}
		return n
	}
	var parts []ast.Expr
	for _, part := range n.Parts {
		if c, ok := part.(*ast.ExprCat); ok {
			parts = append(parts, c.Parts...)
		} else {
			parts = append(parts, part)
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return &ast.ExprCat{Loc: n.Loc, Parts: parts}
}

func (p *SimplifyCat) assign(n *ast.StmtAssign) ast.Tree {
	lhs, ok := n.Lhs.(*ast.ExprCat)
	if !ok {
		return n
	}
	if rhs, ok := n.Rhs.(*ast.ExprCat); ok {
		groups, ok := p.regroup(n.Loc, lhs.Parts, rhs.Parts)
		if !ok {
			return n
		}
		out := make([]ast.Tree, len(groups))
		for i, g := range groups {
			out[i] = &ast.StmtAssign{Loc: n.Loc, Lhs: ast.Cat(g.dst...), Rhs: ast.Cat(g.src...)}
		}
		return &ast.Thicket{Trees: out}
	}
	v, ok := staticeval.Eval(n.Rhs, staticeval.Bindings{})
	if !ok {
		return n
	}
	return splitConstant(n, lhs, v)
}

func (p *SimplifyCat) connect(n *ast.Connect) ast.Tree {
	if len(n.Rhs) != 1 {
		return n
	}
	src, ok1 := n.Lhs.(*ast.ExprCat)
	dst, ok2 := n.Rhs[0].(*ast.ExprCat)
	if !ok1 || !ok2 {
		return n
	}
	groups, ok := p.regroup(n.Loc, dst.Parts, src.Parts)
	if !ok {
		return n
	}
	out := make([]ast.Tree, len(groups))
	for i, g := range groups {
		out[i] = &ast.Connect{Loc: n.Loc, Lhs: ast.Cat(g.src...), Rhs: []ast.Expr{ast.Cat(g.dst...)}}
	}
	return &ast.Thicket{Trees: out}
}

// splitConstant assigns each part of a concatenation its bit field of v.
func splitConstant(n *ast.StmtAssign, lhs *ast.ExprCat, v *big.Int) ast.Tree {
	total := ast.Width(ast.TypeOf(lhs))
	if total == 0 {
		return n
	}
	out := make([]ast.Tree, 0, len(lhs.Parts))
	offset := total
	for _, part := range lhs.Parts {
		t := ast.TypeOf(part)
		w := ast.Width(t)
		if w == 0 {
			return n
		}
		offset -= w
		field := new(big.Int).Rsh(v, uint(offset))
		field.And(field, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1)))
		out = append(out, &ast.StmtAssign{Loc: n.Loc, Lhs: part, Rhs: staticeval.Literal(n.Loc, field, t)})
	}
	return &ast.Thicket{Trees: out}
}

// group is a run of destination parts and a run of source parts of equal
// total width.
type group struct {
	dst, src []ast.Expr
}

// regroup partitions both sides into the coarsest order-preserving groups of
// equal width. ok is false when the node must stay as it is: a symbol occurs
// on both sides, a width is unknown or the widths disagree, or no split is
// possible.
func (p *SimplifyCat) regroup(loc ast.Loc, dst, src []ast.Expr) ([]group, bool) {
	written := ast.NewSymbolSet()
	for _, e := range dst {
		for _, sym := range ast.Refs(e) {
			written.Add(sym)
		}
	}
	for _, e := range src {
		for _, sym := range ast.Refs(e) {
			if written.Has(sym) {
				return nil, false
			}
		}
	}

	dw, okd := widths(dst)
	sw, oks := widths(src)
	if !okd || !oks {
		return nil, false
	}
	if sum(dw) != sum(sw) {
		p.ctx.Reporter.Error(loc, "concatenation widths differ: %d bits assigned from %d bits", sum(dw), sum(sw))
		return nil, false
	}

	var groups []group
	i, j := 0, 0
	for i < len(dst) {
		g := group{dst: []ast.Expr{dst[i]}, src: []ast.Expr{src[j]}}
		accD, accS := dw[i], sw[j]
		i, j = i+1, j+1
		for accD != accS {
			if accD < accS {
				g.dst = append(g.dst, dst[i])
				accD += dw[i]
				i++
			} else {
				g.src = append(g.src, src[j])
				accS += sw[j]
				j++
			}
		}
		groups = append(groups, peel(g)...)
	}
	if len(groups) == 1 && len(groups[0].dst) == len(dst) && len(groups[0].src) == len(src) {
		return nil, false
	}
	return groups, true
}

// peel splits a group with several parts on both sides by slicing the
// leading part of the wider side, as long as that part is a plain or sliced
// reference.
func peel(g group) []group {
	var out []group
	dst, src := g.dst, g.src
	for len(dst) > 1 && len(src) > 1 {
		d, s := dst[0], src[0]
		wd, ws := ast.Width(ast.TypeOf(d)), ast.Width(ast.TypeOf(s))
		switch {
		case wd == ws:
			out = append(out, group{dst: []ast.Expr{d}, src: []ast.Expr{s}})
			dst, src = dst[1:], src[1:]
		case wd > ws:
			top, rest, ok := splitTop(d, ws)
			if !ok {
				return append(out, group{dst: dst, src: src})
			}
			out = append(out, group{dst: []ast.Expr{top}, src: []ast.Expr{s}})
			dst = append([]ast.Expr{rest}, dst[1:]...)
			src = src[1:]
		default:
			top, rest, ok := splitTop(s, wd)
			if !ok {
				return append(out, group{dst: dst, src: src})
			}
			out = append(out, group{dst: []ast.Expr{d}, src: []ast.Expr{top}})
			src = append([]ast.Expr{rest}, src[1:]...)
			dst = dst[1:]
		}
	}
	return append(out, group{dst: dst, src: src})
}

// splitTop cuts the k most significant bits off a reference or a literal
// slice of one.
func splitTop(e ast.Expr, k int) (top, rest ast.Expr, ok bool) {
	var base ast.Expr
	var hi, lo int
	switch n := e.(type) {
	case *ast.ExprRef:
		switch ast.Underlying(n.Symbol.Kind()).(type) {
		case ast.TypeUInt, ast.TypeSInt:
		default:
			return nil, nil, false
		}
		base, hi, lo = n, ast.Width(n.Symbol.Kind())-1, 0
	case *ast.ExprSlice:
		ref, isRef := n.Expr.(*ast.ExprRef)
		msb, ok1 := ast.LiteralValue(n.Msb)
		lsb, ok2 := ast.LiteralValue(n.Lsb)
		if !isRef || !ok1 || !ok2 {
			return nil, nil, false
		}
		base, hi, lo = ref, int(msb.Int64()), int(lsb.Int64())
	default:
		return nil, nil, false
	}
	if k <= 0 || k > hi-lo {
		return nil, nil, false
	}
	return bitRange(base, hi, hi-k+1), bitRange(base, hi-k, lo), true
}

func bitRange(base ast.Expr, msb, lsb int) ast.Expr {
	if msb == lsb {
		return &ast.ExprIndex{Loc: base.Pos(), Expr: base, Index: ast.Num(int64(msb))}
	}
	return &ast.ExprSlice{Loc: base.Pos(), Expr: base, Msb: ast.Num(int64(msb)), Lsb: ast.Num(int64(lsb))}
}

func widths(parts []ast.Expr) ([]int, bool) {
	ws := make([]int, len(parts))
	for i, p := range parts {
		ws[i] = ast.Width(ast.TypeOf(p))
		if ws[i] == 0 {
			return nil, false
		}
	}
	return ws, true
}

func sum(ws []int) int {
	total := 0
	for _, w := range ws {
		total += w
	}
	return total
}
