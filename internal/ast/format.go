package ast

import (
	"fmt"
	"strings"
)

// Format renders a tree as indented source-like text. The output is meant
// for dumps and diagnostics; it is not parsed back.
func Format(t Tree) string {
	p := &printer{}
	p.tree(t)
	return p.b.String()
}

// FormatExpr renders a single expression.
func FormatExpr(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	p := &printer{}
	p.expr(e)
	return p.b.String()
}

type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

func (p *printer) tree(t Tree) {
	switch n := t.(type) {
	case *Root:
		for i, e := range n.Entities {
			if i > 0 {
				p.b.WriteByte('\n')
			}
			p.tree(e)
		}
	case *Entity:
		p.line("entity %s {", n.Name())
		p.indent++
		for _, d := range n.Decls {
			p.line("%s;", p.decl(d))
		}
		for _, e := range n.Entities {
			p.tree(e)
		}
		for _, i := range n.Instances {
			p.line("%s = new %s;", i.Symbol.Name(), i.Entity.Name())
		}
		for _, c := range n.Connects {
			p.tree(c)
		}
		p.stmts(n.Stmts)
		p.indent--
		p.line("}")
	case *Decl:
		p.line("%s;", p.decl(n))
	case *Instance:
		p.line("%s = new %s;", n.Symbol.Name(), n.Entity.Name())
	case *Connect:
		rhs := make([]string, len(n.Rhs))
		for i, r := range n.Rhs {
			rhs[i] = FormatExpr(r)
		}
		p.line("%s -> %s;", FormatExpr(n.Lhs), strings.Join(rhs, ", "))
	case *Thicket:
		for _, c := range n.Trees {
			p.tree(c)
		}
	case Stmt:
		p.stmt(n)
	case Expr:
		p.expr(n)
	}
}

func (p *printer) decl(d *Decl) string {
	s := fmt.Sprintf("%s %s", d.Symbol.Kind(), d.Symbol.Name())
	if d.Init != nil {
		s += " = " + FormatExpr(d.Init)
	}
	return s
}

func (p *printer) stmts(ss []Stmt) {
	for _, s := range ss {
		p.stmt(s)
	}
}

func (p *printer) block(head string, body []Stmt) {
	if head == "" {
		p.line("{")
	} else {
		p.line("%s {", head)
	}
	p.indent++
	p.stmts(body)
	p.indent--
	p.line("}")
}

func (p *printer) stmt(s Stmt) {
	switch n := s.(type) {
	case *StmtBlock:
		p.block("", n.Body)
	case *StmtIf:
		p.block("if ("+FormatExpr(n.Cond)+")", n.Then)
		if len(n.Else) > 0 {
			p.block("else", n.Else)
		}
	case *StmtCase:
		p.line("case (%s) {", FormatExpr(n.Expr))
		p.indent++
		for _, c := range n.Clauses {
			conds := make([]string, len(c.Conds))
			for i, e := range c.Conds {
				conds[i] = FormatExpr(e)
			}
			p.block(strings.Join(conds, ", ")+":", c.Body)
		}
		if n.Default != nil {
			p.block("default:", n.Default)
		}
		p.indent--
		p.line("}")
	case *StmtLoop:
		p.block("loop", n.Body)
	case *StmtGoto:
		p.line("goto %s;", n.Target)
	case *StmtFence:
		p.line("fence;")
	case *StmtBreak:
		p.line("break;")
	case *StmtContinue:
		p.line("continue;")
	case *StmtAssign:
		p.line("%s = %s;", FormatExpr(n.Lhs), FormatExpr(n.Rhs))
	case *StmtExpr:
		p.line("%s;", FormatExpr(n.Expr))
	case *StmtRead:
		p.line("read;")
	case *StmtWrite:
		p.line("write;")
	case *StmtDecl:
		p.line("%s;", p.decl(n.Decl))
	case *StmtStall:
		p.line("stall %s;", FormatExpr(n.Cond))
	}
}

func (p *printer) exprs(es []Expr) {
	for i, e := range es {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.expr(e)
	}
}

func (p *printer) expr(e Expr) {
	switch n := e.(type) {
	case *ExprRef:
		p.b.WriteString(n.Symbol.Name())
	case *ExprNum:
		p.b.WriteString(n.Value.String())
	case *ExprInt:
		sign := ""
		if n.Signed {
			sign = "s"
		}
		fmt.Fprintf(&p.b, "%d'%sd%s", n.Width, sign, n.Value)
	case *ExprUnary:
		p.b.WriteString(n.Op)
		p.expr(n.Expr)
	case *ExprBinary:
		p.b.WriteByte('(')
		p.expr(n.Lhs)
		fmt.Fprintf(&p.b, " %s ", n.Op)
		p.expr(n.Rhs)
		p.b.WriteByte(')')
	case *ExprTernary:
		p.b.WriteByte('(')
		p.expr(n.Cond)
		p.b.WriteString(" ? ")
		p.expr(n.Then)
		p.b.WriteString(" : ")
		p.expr(n.Else)
		p.b.WriteByte(')')
	case *ExprCat:
		p.b.WriteByte('{')
		p.exprs(n.Parts)
		p.b.WriteByte('}')
	case *ExprRep:
		p.b.WriteByte('{')
		p.expr(n.Count)
		p.b.WriteByte('{')
		p.expr(n.Expr)
		p.b.WriteString("}}")
	case *ExprIndex:
		p.expr(n.Expr)
		p.b.WriteByte('[')
		p.expr(n.Index)
		p.b.WriteByte(']')
	case *ExprSlice:
		p.expr(n.Expr)
		p.b.WriteByte('[')
		p.expr(n.Msb)
		p.b.WriteByte(':')
		p.expr(n.Lsb)
		p.b.WriteByte(']')
	case *ExprSelect:
		p.expr(n.Expr)
		p.b.WriteByte('.')
		p.b.WriteString(n.Field)
	case *ExprCall:
		p.expr(n.Func)
		p.b.WriteByte('(')
		p.exprs(n.Args)
		p.b.WriteByte(')')
	default:
		p.b.WriteString("<?>")
	}
}
