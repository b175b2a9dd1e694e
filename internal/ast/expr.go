package ast

import "math/big"

// Expr is an expression. The type of an expression is derived from its
// structure by TypeOf and never cached on the node.
type Expr interface {
	Tree
	isExpr()
}

type (
	ExprRef struct {
		Loc    Loc
		Symbol *Symbol
	}

	// ExprNum is an unsized integer literal.
	ExprNum struct {
		Loc    Loc
		Signed bool
		Value  *big.Int
	}

	// ExprInt is a sized integer literal.
	ExprInt struct {
		Loc    Loc
		Signed bool
		Width  int
		Value  *big.Int
	}

	ExprUnary struct {
		Loc  Loc
		Op   string
		Expr Expr
	}

	ExprBinary struct {
		Loc Loc
		Op  string
		Lhs Expr
		Rhs Expr
	}

	ExprTernary struct {
		Loc  Loc
		Cond Expr
		Then Expr
		Else Expr
	}

	// ExprCat concatenates its parts, first part most significant.
	ExprCat struct {
		Loc   Loc
		Parts []Expr
	}

	ExprRep struct {
		Loc   Loc
		Count Expr
		Expr  Expr
	}

	ExprIndex struct {
		Loc   Loc
		Expr  Expr
		Index Expr
	}

	// ExprSlice selects bits Msb down to Lsb inclusive.
	ExprSlice struct {
		Loc  Loc
		Expr Expr
		Msb  Expr
		Lsb  Expr
	}

	// ExprSelect selects a struct field, an instance port or a port method.
	ExprSelect struct {
		Loc   Loc
		Expr  Expr
		Field string
	}

	ExprCall struct {
		Loc  Loc
		Func Expr
		Args []Expr
	}
)

func (n *ExprRef) Pos() Loc     { return n.Loc }
func (n *ExprNum) Pos() Loc     { return n.Loc }
func (n *ExprInt) Pos() Loc     { return n.Loc }
func (n *ExprUnary) Pos() Loc   { return n.Loc }
func (n *ExprBinary) Pos() Loc  { return n.Loc }
func (n *ExprTernary) Pos() Loc { return n.Loc }
func (n *ExprCat) Pos() Loc     { return n.Loc }
func (n *ExprRep) Pos() Loc     { return n.Loc }
func (n *ExprIndex) Pos() Loc   { return n.Loc }
func (n *ExprSlice) Pos() Loc   { return n.Loc }
func (n *ExprSelect) Pos() Loc  { return n.Loc }
func (n *ExprCall) Pos() Loc    { return n.Loc }

func (*ExprRef) isTree()     {}
func (*ExprNum) isTree()     {}
func (*ExprInt) isTree()     {}
func (*ExprUnary) isTree()   {}
func (*ExprBinary) isTree()  {}
func (*ExprTernary) isTree() {}
func (*ExprCat) isTree()     {}
func (*ExprRep) isTree()     {}
func (*ExprIndex) isTree()   {}
func (*ExprSlice) isTree()   {}
func (*ExprSelect) isTree()  {}
func (*ExprCall) isTree()    {}

func (*ExprRef) isExpr()     {}
func (*ExprNum) isExpr()     {}
func (*ExprInt) isExpr()     {}
func (*ExprUnary) isExpr()   {}
func (*ExprBinary) isExpr()  {}
func (*ExprTernary) isExpr() {}
func (*ExprCat) isExpr()     {}
func (*ExprRep) isExpr()     {}
func (*ExprIndex) isExpr()   {}
func (*ExprSlice) isExpr()   {}
func (*ExprSelect) isExpr()  {}
func (*ExprCall) isExpr()    {}

// Ref builds a reference to sym.
func Ref(sym *Symbol) *ExprRef {
	return &ExprRef{Symbol: sym}
}

// Num builds an unsized literal.
func Num(v int64) *ExprNum {
	return &ExprNum{Signed: v < 0, Value: big.NewInt(v)}
}

// UInt builds an unsigned sized literal.
func UInt(width int, v int64) *ExprInt {
	return &ExprInt{Width: width, Value: big.NewInt(v)}
}

// Select builds e.field.
func Select(e Expr, field string) *ExprSelect {
	return &ExprSelect{Expr: e, Field: field}
}

// Call builds a method call e.method(args...).
func Call(e Expr, method string, args ...Expr) *ExprCall {
	return &ExprCall{Func: Select(e, method), Args: args}
}

// Assign builds lhs = rhs.
func Assign(lhs, rhs Expr) *StmtAssign {
	return &StmtAssign{Lhs: lhs, Rhs: rhs}
}

// Binary builds lhs op rhs.
func Binary(lhs Expr, op string, rhs Expr) *ExprBinary {
	return &ExprBinary{Op: op, Lhs: lhs, Rhs: rhs}
}

// Unary builds op e.
func Unary(op string, e Expr) *ExprUnary {
	return &ExprUnary{Op: op, Expr: e}
}

// Cat builds a concatenation, collapsing a single part.
func Cat(parts ...Expr) Expr {
	if len(parts) == 1 {
		return parts[0]
	}
	return &ExprCat{Parts: parts}
}

// IsLiteral reports whether e is an integer literal.
func IsLiteral(e Expr) bool {
	switch e.(type) {
	case *ExprNum, *ExprInt:
		return true
	}
	return false
}

// LiteralValue returns the value of an integer literal.
func LiteralValue(e Expr) (*big.Int, bool) {
	switch n := e.(type) {
	case *ExprNum:
		return n.Value, true
	case *ExprInt:
		return n.Value, true
	}
	return nil, false
}
