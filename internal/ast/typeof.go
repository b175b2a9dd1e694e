package ast

// TypeOf derives the type of an expression from its structure and the kinds
// of the symbols it references. Port, const and pipeline wrappers are
// stripped: a reference to an input port has the port's value type.
func TypeOf(e Expr) Type {
	switch n := e.(type) {
	case *ExprRef:
		return Underlying(n.Symbol.Kind())
	case *ExprNum:
		return TypeNum{Signed: n.Signed}
	case *ExprInt:
		if n.Signed {
			return TypeSInt{Width: n.Width}
		}
		return TypeUInt{Width: n.Width}
	case *ExprUnary:
		switch n.Op {
		case "!", "&", "|", "^":
			return TypeUInt{Width: 1}
		}
		return TypeOf(n.Expr)
	case *ExprBinary:
		switch n.Op {
		case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
			return TypeUInt{Width: 1}
		case "<<", ">>", ">>>":
			return TypeOf(n.Lhs)
		}
		return joinTypes(TypeOf(n.Lhs), TypeOf(n.Rhs))
	case *ExprTernary:
		return joinTypes(TypeOf(n.Then), TypeOf(n.Else))
	case *ExprCat:
		w := 0
		for _, p := range n.Parts {
			w += Width(TypeOf(p))
		}
		return TypeUInt{Width: w}
	case *ExprRep:
		count, ok := LiteralValue(n.Count)
		if !ok {
			return TypeUInt{}
		}
		return TypeUInt{Width: int(count.Int64()) * Width(TypeOf(n.Expr))}
	case *ExprIndex:
		if arr, ok := TypeOf(n.Expr).(TypeArray); ok {
			return arr.Elem
		}
		return TypeUInt{Width: 1}
	case *ExprSlice:
		msb, ok1 := LiteralValue(n.Msb)
		lsb, ok2 := LiteralValue(n.Lsb)
		if !ok1 || !ok2 {
			return TypeUInt{}
		}
		return TypeUInt{Width: int(msb.Int64()-lsb.Int64()) + 1}
	case *ExprSelect:
		return selectType(n)
	case *ExprCall:
		return callType(n)
	}
	return TypeVoid{}
}

func selectType(n *ExprSelect) Type {
	switch k := TypeOf(n.Expr).(type) {
	case TypeStruct:
		for _, f := range k.Fields {
			if f.Name == n.Field {
				return f.Kind
			}
		}
	case TypeInstance:
		if port := PortNamed(k.Entity, n.Field); port != nil {
			return Underlying(port.Kind())
		}
	case TypeStack:
		switch n.Field {
		case "top":
			return k.Elem
		case "full", "empty":
			return TypeUInt{Width: 1}
		}
	}
	switch n.Field {
	case "valid", "ready", "space", "move":
		return TypeUInt{Width: 1}
	}
	return TypeVoid{}
}

func callType(n *ExprCall) Type {
	sel, ok := n.Func.(*ExprSelect)
	if !ok {
		return TypeVoid{}
	}
	switch sel.Field {
	case "read":
		return TypeOf(sel.Expr)
	case "pop":
		if k, ok := TypeOf(sel.Expr).(TypeStack); ok {
			return k.Elem
		}
	case "top":
		return selectType(sel)
	}
	return TypeVoid{}
}

// joinTypes returns the result type of an arithmetic or bitwise operation.
// Unsized operands adopt the type of the sized one.
func joinTypes(a, b Type) Type {
	_, aNum := a.(TypeNum)
	_, bNum := b.(TypeNum)
	switch {
	case aNum && bNum:
		return TypeNum{Signed: Signed(a) || Signed(b)}
	case aNum:
		return b
	case bNum:
		return a
	}
	w := max(Width(a), Width(b))
	if Signed(a) && Signed(b) {
		return TypeSInt{Width: w}
	}
	if !Packed(a) {
		return a
	}
	return TypeUInt{Width: w}
}
