// Package design reads the typed, name-resolved design produced upstream.
//
// The interchange format is JSON. Every symbol is declared once in a
// top-level table with its identifier, class, location and kind; nodes refer
// to symbols by identifier. The format is checked against the #Design
// contract (see internal/validator) before it reaches Decode.
package design

import "github.com/robert-at-pretension-io/fsm-lower/internal/ast"

// Version is the interchange format version this package reads.
const Version = 1

// File is the top-level document.
type File struct {
	Version  int       `json:"version"`
	Symbols  []Symbol  `json:"symbols"`
	Entities []*Entity `json:"entities"`
}

type Symbol struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Class string  `json:"class"`
	Loc   ast.Loc `json:"loc"`
	Type  *Type   `json:"type"`
}

// Type is a kind; which fields are meaningful depends on Kind.
type Type struct {
	Kind    string   `json:"kind"`
	Width   int      `json:"width,omitempty"`
	Signed  bool     `json:"signed,omitempty"`
	Name    string   `json:"name,omitempty"`
	Fields  []Field  `json:"fields,omitempty"`
	Elem    *Type    `json:"elem,omitempty"`
	Size    int      `json:"size,omitempty"`
	Flow    string   `json:"flow,omitempty"`
	Storage string   `json:"storage,omitempty"`
	Slices  []string `json:"slices,omitempty"`
	Depth   *Expr    `json:"depth,omitempty"`
	Ports   []int    `json:"ports,omitempty"`
	Entity  int      `json:"entity,omitempty"`
}

type Field struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
}

// Expr is an expression node selected by Op.
type Expr struct {
	Op       string  `json:"op"`
	Loc      ast.Loc `json:"loc"`
	Symbol   int     `json:"symbol,omitempty"`
	Value    string  `json:"value,omitempty"`
	Signed   bool    `json:"signed,omitempty"`
	Width    int     `json:"width,omitempty"`
	Operator string  `json:"operator,omitempty"`
	Expr     *Expr   `json:"expr,omitempty"`
	Lhs      *Expr   `json:"lhs,omitempty"`
	Rhs      *Expr   `json:"rhs,omitempty"`
	Cond     *Expr   `json:"cond,omitempty"`
	Then     *Expr   `json:"then,omitempty"`
	Else     *Expr   `json:"else,omitempty"`
	Parts    []*Expr `json:"parts,omitempty"`
	Count    *Expr   `json:"count,omitempty"`
	Index    *Expr   `json:"index,omitempty"`
	Msb      *Expr   `json:"msb,omitempty"`
	Lsb      *Expr   `json:"lsb,omitempty"`
	Field    string  `json:"field,omitempty"`
	Func     *Expr   `json:"func,omitempty"`
	Args     []*Expr `json:"args,omitempty"`
}

type Decl struct {
	Symbol int     `json:"symbol"`
	Loc    ast.Loc `json:"loc"`
	Init   *Expr   `json:"init,omitempty"`
}

// Stmt is a statement node selected by Stmt. Then and Else hold statement
// lists here, unlike in Expr.
type Stmt struct {
	Stmt    string    `json:"stmt"`
	Loc     ast.Loc   `json:"loc"`
	Body    []*Stmt   `json:"body,omitempty"`
	Cond    *Expr     `json:"cond,omitempty"`
	Then    []*Stmt   `json:"then,omitempty"`
	Else    []*Stmt   `json:"else,omitempty"`
	Expr    *Expr     `json:"expr,omitempty"`
	Clauses []*Clause `json:"clauses,omitempty"`
	Default []*Stmt   `json:"default,omitempty"`
	Target  string    `json:"target,omitempty"`
	Lhs     *Expr     `json:"lhs,omitempty"`
	Rhs     *Expr     `json:"rhs,omitempty"`
	Decl    *Decl     `json:"decl,omitempty"`
}

type Clause struct {
	Loc   ast.Loc `json:"loc"`
	Conds []*Expr `json:"conds"`
	Body  []*Stmt `json:"body"`
}

type Instance struct {
	Symbol int     `json:"symbol"`
	Entity int     `json:"entity"`
	Loc    ast.Loc `json:"loc"`
}

type Connect struct {
	Loc ast.Loc `json:"loc"`
	Lhs *Expr   `json:"lhs"`
	Rhs []*Expr `json:"rhs"`
}

type Entity struct {
	Symbol    int         `json:"symbol"`
	Loc       ast.Loc     `json:"loc"`
	Decls     []*Decl     `json:"decls,omitempty"`
	Entities  []*Entity   `json:"entities,omitempty"`
	Instances []*Instance `json:"instances,omitempty"`
	Connects  []*Connect  `json:"connects,omitempty"`
	Stmts     []*Stmt     `json:"stmts,omitempty"`
}
