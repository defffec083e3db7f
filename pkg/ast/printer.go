package ast

import (
	"fmt"
	"strings"
)

// Print renders statements as indented s-expressions, one top-level
// statement per line.
func Print(stmts []Stmt) string {
	p := &printer{}
	lines := make([]string, 0, len(stmts))
	for _, s := range stmts {
		lines = append(lines, p.stmt(s))
	}
	return strings.Join(lines, "\n")
}

// PrintExpr renders a single expression.
func PrintExpr(e Expr) string {
	return (&printer{}).expr(e)
}

type printer struct {
	indent int
}

func (p *printer) pad() string {
	return strings.Repeat("  ", p.indent)
}

func (p *printer) block(stmts []Stmt) string {
	p.indent++
	lines := make([]string, len(stmts))
	for i, s := range stmts {
		lines[i] = p.pad() + p.stmt(s)
	}
	p.indent--
	return strings.Join(lines, "\n")
}

func (p *printer) stmt(s Stmt) string {
	switch n := s.(type) {
	case *Group:
		params := make([]string, len(n.Params))
		for i, name := range n.Params {
			params[i] = "$" + name
		}
		head := fmt.Sprintf("(%s-group %s", n.Kind, n.Name)
		if len(params) > 0 {
			head += " " + strings.Join(params, " ")
		}
		return fmt.Sprintf("%s\n%s)", head, p.block(n.Body))
	case *Use:
		return fmt.Sprintf("(use $%s)", n.Name)
	case *If:
		keyword := "if"
		if n.Invert {
			keyword = "unless"
		}
		cond := p.expr(n.Cond)
		then := p.block(n.Then)
		if len(n.Else) == 0 {
			return fmt.Sprintf("(%s %s\n%s)", keyword, cond, then)
		}
		return fmt.Sprintf("(%s %s\n%s\n%s)", keyword, cond, then, p.block(n.Else))
	case *While:
		keyword := "while"
		if n.Invert {
			keyword = "until"
		}
		return fmt.Sprintf("(%s %s\n%s)", keyword, p.expr(n.Cond), p.block(n.Body))
	case *Exec:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			if a.IsWord() {
				args[i] = a.Word
			} else {
				args[i] = p.expr(a.Value)
			}
		}
		if len(args) == 0 {
			return fmt.Sprintf("(call %s)", n.Name)
		}
		return fmt.Sprintf("(call %s %s)", n.Name, strings.Join(args, " "))
	case *Var:
		return fmt.Sprintf("(set $%s %s)", n.Name, p.expr(n.Value))
	}
	return fmt.Sprintf("(? %T)", s)
}

func (p *printer) paren(name string, args ...Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = p.expr(a)
	}
	return fmt.Sprintf("(%s %s)", name, strings.Join(parts, " "))
}

func (p *printer) expr(e Expr) string {
	switch n := e.(type) {
	case *Binary:
		return p.paren(string(n.Op), n.Left, n.Right)
	case *Logical:
		return p.paren(string(n.Op), n.Left, n.Right)
	case *Unary:
		return p.paren(string(n.Op), n.Operand)
	case *Grouping:
		return p.paren("group", n.Inner)
	case *Literal:
		return n.Value.String()
	case *Variable:
		return "$" + n.Name
	}
	return fmt.Sprintf("(? %T)", e)
}
