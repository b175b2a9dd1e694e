package ast

// Stmt is a statement of an entity body.
type Stmt interface {
	Tree
	isStmt()
}

type (
	// StmtBlock groups statements.
	StmtBlock struct {
		Loc  Loc
		Body []Stmt
	}

	StmtIf struct {
		Loc  Loc
		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	StmtCase struct {
		Loc     Loc
		Expr    Expr
		Clauses []*CaseClause
		Default []Stmt
	}

	// StmtLoop repeats its body until a break or goto leaves it.
	StmtLoop struct {
		Loc  Loc
		Body []Stmt
	}

	StmtGoto struct {
		Loc    Loc
		Target string
	}

	// StmtFence ends the current clock cycle.
	StmtFence struct {
		Loc Loc
	}

	StmtBreak struct {
		Loc Loc
	}

	StmtContinue struct {
		Loc Loc
	}

	StmtAssign struct {
		Loc Loc
		Lhs Expr
		Rhs Expr
	}

	// StmtExpr evaluates an expression for its effect, e.g. a port write.
	StmtExpr struct {
		Loc  Loc
		Expr Expr
	}

	// StmtRead loads all pipeline variables of a stage from its predecessor.
	StmtRead struct {
		Loc Loc
	}

	// StmtWrite sends all pipeline variables of a stage to its successor.
	StmtWrite struct {
		Loc Loc
	}

	// StmtDecl declares a local variable.
	StmtDecl struct {
		Loc  Loc
		Decl *Decl
	}

	// StmtStall holds the current state while Cond is true.
	StmtStall struct {
		Loc  Loc
		Cond Expr
	}
)

func (n *StmtBlock) Pos() Loc    { return n.Loc }
func (n *StmtIf) Pos() Loc       { return n.Loc }
func (n *StmtCase) Pos() Loc     { return n.Loc }
func (n *StmtLoop) Pos() Loc     { return n.Loc }
func (n *StmtGoto) Pos() Loc     { return n.Loc }
func (n *StmtFence) Pos() Loc    { return n.Loc }
func (n *StmtBreak) Pos() Loc    { return n.Loc }
func (n *StmtContinue) Pos() Loc { return n.Loc }
func (n *StmtAssign) Pos() Loc   { return n.Loc }
func (n *StmtExpr) Pos() Loc     { return n.Loc }
func (n *StmtRead) Pos() Loc     { return n.Loc }
func (n *StmtWrite) Pos() Loc    { return n.Loc }
func (n *StmtDecl) Pos() Loc     { return n.Loc }
func (n *StmtStall) Pos() Loc    { return n.Loc }

func (*StmtBlock) isTree()    {}
func (*StmtIf) isTree()       {}
func (*StmtCase) isTree()     {}
func (*StmtLoop) isTree()     {}
func (*StmtGoto) isTree()     {}
func (*StmtFence) isTree()    {}
func (*StmtBreak) isTree()    {}
func (*StmtContinue) isTree() {}
func (*StmtAssign) isTree()   {}
func (*StmtExpr) isTree()     {}
func (*StmtRead) isTree()     {}
func (*StmtWrite) isTree()    {}
func (*StmtDecl) isTree()     {}
func (*StmtStall) isTree()    {}

func (*StmtBlock) isStmt()    {}
func (*StmtIf) isStmt()       {}
func (*StmtCase) isStmt()     {}
func (*StmtLoop) isStmt()     {}
func (*StmtGoto) isStmt()     {}
func (*StmtFence) isStmt()    {}
func (*StmtBreak) isStmt()    {}
func (*StmtContinue) isStmt() {}
func (*StmtAssign) isStmt()   {}
func (*StmtExpr) isStmt()     {}
func (*StmtRead) isStmt()     {}
func (*StmtWrite) isStmt()    {}
func (*StmtDecl) isStmt()     {}
func (*StmtStall) isStmt()    {}
