package ast

// Tree is any node of the lowered program.
type Tree interface {
	Pos() Loc
	isTree()
}

// Root is the whole program: an ordered list of entities.
type Root struct {
	Loc      Loc
	Entities []*Entity
}

// Entity is a hardware module.
type Entity struct {
	Loc       Loc
	Symbol    *Symbol
	Decls     []*Decl
	Entities  []*Entity
	Instances []*Instance
	Connects  []*Connect
	Stmts     []Stmt
}

// Decl declares a port, constant, variable, pipeline variable or stack. What
// it declares is given by the kind of its symbol.
type Decl struct {
	Loc    Loc
	Symbol *Symbol
	Init   Expr
}

// Instance instantiates Entity under the name of Symbol.
type Instance struct {
	Loc    Loc
	Symbol *Symbol
	Entity *Symbol
}

// Connect drives every Rhs sink from the Lhs source.
type Connect struct {
	Loc Loc
	Lhs Expr
	Rhs []Expr
}

// CaseClause is one arm of a case statement.
type CaseClause struct {
	Loc   Loc
	Conds []Expr
	Body  []Stmt
}

// Thicket stands for several sibling nodes produced from one input node. It
// is spliced into the enclosing list by the transformer and never survives
// into a finished tree.
type Thicket struct {
	Trees []Tree
}

func (n *Root) Pos() Loc       { return n.Loc }
func (n *Entity) Pos() Loc     { return n.Loc }
func (n *Decl) Pos() Loc       { return n.Loc }
func (n *Instance) Pos() Loc   { return n.Loc }
func (n *Connect) Pos() Loc    { return n.Loc }
func (n *CaseClause) Pos() Loc { return n.Loc }

func (n *Thicket) Pos() Loc {
	if len(n.Trees) > 0 {
		return n.Trees[0].Pos()
	}
	return Loc{}
}

func (*Root) isTree()       {}
func (*Entity) isTree()     {}
func (*Decl) isTree()       {}
func (*Instance) isTree()   {}
func (*Connect) isTree()    {}
func (*CaseClause) isTree() {}
func (*Thicket) isTree()    {}

// NewThicket wraps trees; a single tree is returned as is.
func NewThicket[T Tree](trees []T) Tree {
	if len(trees) == 1 {
		return trees[0]
	}
	out := make([]Tree, len(trees))
	for i, t := range trees {
		out[i] = t
	}
	return &Thicket{Trees: out}
}

// Name returns the entity name.
func (n *Entity) Name() string { return n.Symbol.Name() }

// DeclOf finds the declaration of sym among the entity's declarations.
func (n *Entity) DeclOf(sym *Symbol) *Decl {
	for _, d := range n.Decls {
		if d.Symbol == sym {
			return d
		}
	}
	return nil
}

// Ports returns the symbols of all port declarations in declaration order.
func (n *Entity) Ports() []*Symbol {
	var ports []*Symbol
	for _, d := range n.Decls {
		if IsPort(d.Symbol.Kind()) {
			ports = append(ports, d.Symbol)
		}
	}
	return ports
}
