package ast

// Inspect traverses t in pre-order, calling f for every node. When f returns
// false the children of that node are skipped.
func Inspect(t Tree, f func(Tree) bool) {
	if t == nil || !f(t) {
		return
	}
	switch n := t.(type) {
	case *Root:
		for _, e := range n.Entities {
			Inspect(e, f)
		}
	case *Entity:
		for _, d := range n.Decls {
			Inspect(d, f)
		}
		for _, e := range n.Entities {
			Inspect(e, f)
		}
		for _, i := range n.Instances {
			Inspect(i, f)
		}
		for _, c := range n.Connects {
			Inspect(c, f)
		}
		inspectStmts(n.Stmts, f)
	case *Decl:
		inspectExpr(n.Init, f)
	case *Connect:
		inspectExpr(n.Lhs, f)
		inspectExprs(n.Rhs, f)
	case *CaseClause:
		inspectExprs(n.Conds, f)
		inspectStmts(n.Body, f)
	case *Thicket:
		for _, c := range n.Trees {
			Inspect(c, f)
		}
	case *StmtBlock:
		inspectStmts(n.Body, f)
	case *StmtIf:
		inspectExpr(n.Cond, f)
		inspectStmts(n.Then, f)
		inspectStmts(n.Else, f)
	case *StmtCase:
		inspectExpr(n.Expr, f)
		for _, c := range n.Clauses {
			Inspect(c, f)
		}
		inspectStmts(n.Default, f)
	case *StmtLoop:
		inspectStmts(n.Body, f)
	case *StmtAssign:
		inspectExpr(n.Lhs, f)
		inspectExpr(n.Rhs, f)
	case *StmtExpr:
		inspectExpr(n.Expr, f)
	case *StmtDecl:
		Inspect(n.Decl, f)
	case *StmtStall:
		inspectExpr(n.Cond, f)
	case *ExprUnary:
		inspectExpr(n.Expr, f)
	case *ExprBinary:
		inspectExpr(n.Lhs, f)
		inspectExpr(n.Rhs, f)
	case *ExprTernary:
		inspectExpr(n.Cond, f)
		inspectExpr(n.Then, f)
		inspectExpr(n.Else, f)
	case *ExprCat:
		inspectExprs(n.Parts, f)
	case *ExprRep:
		inspectExpr(n.Count, f)
		inspectExpr(n.Expr, f)
	case *ExprIndex:
		inspectExpr(n.Expr, f)
		inspectExpr(n.Index, f)
	case *ExprSlice:
		inspectExpr(n.Expr, f)
		inspectExpr(n.Msb, f)
		inspectExpr(n.Lsb, f)
	case *ExprSelect:
		inspectExpr(n.Expr, f)
	case *ExprCall:
		inspectExpr(n.Func, f)
		inspectExprs(n.Args, f)
	}
}

func inspectExpr(e Expr, f func(Tree) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectExprs(es []Expr, f func(Tree) bool) {
	for _, e := range es {
		Inspect(e, f)
	}
}

func inspectStmts(ss []Stmt, f func(Tree) bool) {
	for _, s := range ss {
		Inspect(s, f)
	}
}

// Use is the first reference to a symbol within a tree.
type Use struct {
	Symbol *Symbol
	Loc    Loc
}

// Uses collects every symbol referenced by an ExprRef under the given trees,
// once each, in order of first occurrence.
func Uses(trees ...Tree) []Use {
	seen := make(map[*Symbol]bool)
	var uses []Use
	for _, t := range trees {
		Inspect(t, func(n Tree) bool {
			if ref, ok := n.(*ExprRef); ok && !seen[ref.Symbol] {
				seen[ref.Symbol] = true
				uses = append(uses, Use{Symbol: ref.Symbol, Loc: ref.Loc})
			}
			return true
		})
	}
	return uses
}

// Refs is Uses without locations.
func Refs(trees ...Tree) []*Symbol {
	uses := Uses(trees...)
	syms := make([]*Symbol, len(uses))
	for i, u := range uses {
		syms[i] = u.Symbol
	}
	return syms
}

// StmtTrees converts a statement list for the variadic helpers.
func StmtTrees(stmts []Stmt) []Tree {
	trees := make([]Tree, len(stmts))
	for i, s := range stmts {
		trees[i] = s
	}
	return trees
}

// LValueRoots returns the symbols whose storage an assignment to e writes.
func LValueRoots(e Expr) []*Symbol {
	switch n := e.(type) {
	case *ExprRef:
		return []*Symbol{n.Symbol}
	case *ExprIndex:
		return LValueRoots(n.Expr)
	case *ExprSlice:
		return LValueRoots(n.Expr)
	case *ExprSelect:
		return LValueRoots(n.Expr)
	case *ExprCat:
		var roots []*Symbol
		for _, p := range n.Parts {
			roots = append(roots, LValueRoots(p)...)
		}
		return roots
	}
	return nil
}

// Written returns every symbol assigned anywhere in stmts.
func Written(stmts []Stmt) *SymbolSet {
	set := NewSymbolSet()
	for _, s := range stmts {
		Inspect(s, func(n Tree) bool {
			switch a := n.(type) {
			case *StmtAssign:
				for _, sym := range LValueRoots(a.Lhs) {
					set.Add(sym)
				}
			case *StmtDecl:
				set.Add(a.Decl.Symbol)
			}
			return true
		})
	}
	return set
}
