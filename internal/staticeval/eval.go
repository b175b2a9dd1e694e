package staticeval

import (
	"math/big"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

// maxShift bounds shift amounts the evaluator is willing to materialize.
const maxShift = 1 << 16

// Eval computes the value of e under b. The result is normalized to the
// width and signedness of TypeOf(e).
func Eval(e ast.Expr, b Bindings) (*big.Int, bool) {
	v, ok := eval(e, b)
	if !ok {
		return nil, false
	}
	return normalize(v, ast.TypeOf(e)), true
}

func eval(e ast.Expr, b Bindings) (*big.Int, bool) {
	switch n := e.(type) {
	case *ast.ExprRef:
		return b.Lookup(n.Symbol)
	case *ast.ExprNum:
		return n.Value, n.Value != nil
	case *ast.ExprInt:
		return n.Value, n.Value != nil
	case *ast.ExprUnary:
		return evalUnary(n, b)
	case *ast.ExprBinary:
		return evalBinary(n, b)
	case *ast.ExprTernary:
		if c, ok := Eval(n.Cond, b); ok {
			if c.Sign() != 0 {
				return Eval(n.Then, b)
			}
			return Eval(n.Else, b)
		}
		x, ok1 := Eval(n.Then, b)
		y, ok2 := Eval(n.Else, b)
		if ok1 && ok2 && x.Cmp(y) == 0 {
			return x, true
		}
	case *ast.ExprCat:
		acc := new(big.Int)
		for _, p := range n.Parts {
			w := ast.Width(ast.TypeOf(p))
			v, ok := Eval(p, b)
			if !ok || w == 0 {
				return nil, false
			}
			acc.Lsh(acc, uint(w))
			acc.Or(acc, unsigned(v, w))
		}
		return acc, true
	case *ast.ExprRep:
		count, ok1 := Eval(n.Count, b)
		v, ok2 := Eval(n.Expr, b)
		w := ast.Width(ast.TypeOf(n.Expr))
		if !ok1 || !ok2 || w == 0 || !count.IsInt64() || count.Int64() < 0 || count.Int64()*int64(w) > maxShift {
			return nil, false
		}
		acc := new(big.Int)
		part := unsigned(v, w)
		for i := int64(0); i < count.Int64(); i++ {
			acc.Lsh(acc, uint(w))
			acc.Or(acc, part)
		}
		return acc, true
	case *ast.ExprIndex:
		if _, isArray := ast.TypeOf(n.Expr).(ast.TypeArray); isArray {
			return nil, false
		}
		v, ok1 := Eval(n.Expr, b)
		i, ok2 := Eval(n.Index, b)
		if !ok1 || !ok2 || !i.IsInt64() || i.Int64() < 0 || i.Int64() > maxShift {
			return nil, false
		}
		return big.NewInt(int64(v.Bit(int(i.Int64())))), true
	case *ast.ExprSlice:
		v, ok1 := Eval(n.Expr, b)
		msb, ok2 := Eval(n.Msb, b)
		lsb, ok3 := Eval(n.Lsb, b)
		if !ok1 || !ok2 || !ok3 || !lsb.IsInt64() || lsb.Int64() < 0 || lsb.Int64() > maxShift || msb.Cmp(lsb) < 0 {
			return nil, false
		}
		return new(big.Int).Rsh(v, uint(lsb.Int64())), true
	}
	return nil, false
}

func evalUnary(n *ast.ExprUnary, b Bindings) (*big.Int, bool) {
	v, ok := Eval(n.Expr, b)
	if !ok {
		return nil, false
	}
	w := ast.Width(ast.TypeOf(n.Expr))
	switch n.Op {
	case "+":
		return v, true
	case "-":
		return new(big.Int).Neg(v), true
	case "~":
		return new(big.Int).Not(v), true
	case "!":
		return boolInt(v.Sign() == 0), true
	case "&":
		if w == 0 {
			return nil, false
		}
		return boolInt(unsigned(v, w).Cmp(mask(w)) == 0), true
	case "|":
		return boolInt(v.Sign() != 0), true
	case "^":
		if w == 0 {
			return nil, false
		}
		u := unsigned(v, w)
		parity := uint(0)
		for i := 0; i < w; i++ {
			parity ^= u.Bit(i)
		}
		return big.NewInt(int64(parity)), true
	}
	return nil, false
}

func evalBinary(n *ast.ExprBinary, b Bindings) (*big.Int, bool) {
	// Short circuits decide with one known side.
	switch n.Op {
	case "&&":
		if x, ok := Eval(n.Lhs, b); ok && x.Sign() == 0 {
			return big.NewInt(0), true
		}
		if y, ok := Eval(n.Rhs, b); ok && y.Sign() == 0 {
			return big.NewInt(0), true
		}
	case "||":
		if x, ok := Eval(n.Lhs, b); ok && x.Sign() != 0 {
			return big.NewInt(1), true
		}
		if y, ok := Eval(n.Rhs, b); ok && y.Sign() != 0 {
			return big.NewInt(1), true
		}
	}
	x, ok1 := Eval(n.Lhs, b)
	y, ok2 := Eval(n.Rhs, b)
	if !ok1 || !ok2 {
		return nil, false
	}
	r := new(big.Int)
	switch n.Op {
	case "+":
		return r.Add(x, y), true
	case "-":
		return r.Sub(x, y), true
	case "*":
		return r.Mul(x, y), true
	case "/":
		if y.Sign() == 0 {
			return nil, false
		}
		return r.Quo(x, y), true
	case "%":
		if y.Sign() == 0 {
			return nil, false
		}
		return r.Rem(x, y), true
	case "&":
		return r.And(x, y), true
	case "|":
		return r.Or(x, y), true
	case "^":
		return r.Xor(x, y), true
	case "<<", ">>", ">>>":
		if !y.IsInt64() || y.Int64() < 0 || y.Int64() > maxShift {
			return nil, false
		}
		s := uint(y.Int64())
		switch n.Op {
		case "<<":
			return r.Lsh(x, s), true
		case ">>":
			if w := ast.Width(ast.TypeOf(n.Lhs)); w > 0 {
				x = unsigned(x, w)
			}
			return r.Rsh(x, s), true
		default:
			return r.Rsh(x, s), true
		}
	case "==":
		return boolInt(x.Cmp(y) == 0), true
	case "!=":
		return boolInt(x.Cmp(y) != 0), true
	case "<":
		return boolInt(x.Cmp(y) < 0), true
	case "<=":
		return boolInt(x.Cmp(y) <= 0), true
	case ">":
		return boolInt(x.Cmp(y) > 0), true
	case ">=":
		return boolInt(x.Cmp(y) >= 0), true
	case "&&":
		return boolInt(x.Sign() != 0 && y.Sign() != 0), true
	case "||":
		return boolInt(x.Sign() != 0 || y.Sign() != 0), true
	}
	return nil, false
}

func boolInt(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func mask(w int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(w))
	return m.Sub(m, big.NewInt(1))
}

// unsigned reinterprets v as a w bit unsigned value.
func unsigned(v *big.Int, w int) *big.Int {
	return new(big.Int).And(v, mask(w))
}

// normalize truncates v to the width of t and applies its signedness.
// Values of unsized types are returned unchanged.
func normalize(v *big.Int, t ast.Type) *big.Int {
	w := ast.Width(t)
	if w == 0 {
		return v
	}
	r := unsigned(v, w)
	if ast.Signed(t) && r.Bit(w-1) == 1 {
		r.Sub(r, new(big.Int).Lsh(big.NewInt(1), uint(w)))
	}
	return r
}
