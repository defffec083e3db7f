package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ailang/ai/pkg/ast"
	"github.com/ailang/ai/pkg/types"
)

func pos(p lexer.Position) ast.Pos {
	return ast.Pos{Line: p.Line, Column: p.Column}
}

// varName strips the leading '$'.
func varName(tok string) string {
	return strings.TrimPrefix(tok, "$")
}

func convertBlock(stmts []*statement) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		if n := s.toAST(); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (s *statement) toAST() ast.Stmt {
	switch {
	case s.Group != nil:
		g := s.Group
		kind := ast.Sequence
		switch g.Kind {
		case "parallel":
			kind = ast.Parallel
		case "race":
			kind = ast.Race
		}
		params := make([]string, len(g.Params))
		for i, p := range g.Params {
			params[i] = varName(p)
		}
		return &ast.Group{Pos: pos(g.Pos), Name: g.Name, Kind: kind, Params: params, Body: convertBlock(g.Body.Stmts)}
	case s.Use != nil:
		return &ast.Use{Pos: pos(s.Use.Pos), Name: varName(s.Use.Name)}
	case s.If != nil:
		return s.If.toAST()
	case s.While != nil:
		w := s.While
		return &ast.While{Pos: pos(w.Pos), Cond: w.Cond.toAST(), Invert: w.Keyword == "until", Body: convertBlock(w.Body.Stmts)}
	case s.Var != nil:
		return &ast.Var{Pos: pos(s.Var.Pos), Name: varName(s.Var.Name), Value: s.Var.Value.toAST()}
	case s.Exec != nil:
		e := s.Exec
		args := make([]ast.Arg, len(e.Args))
		for i, a := range e.Args {
			if a.Word != nil {
				args[i] = ast.Arg{Pos: pos(a.Pos), Word: *a.Word}
			} else {
				args[i] = ast.Arg{Pos: pos(a.Pos), Value: a.Value.toAST()}
			}
		}
		return &ast.Exec{Pos: pos(e.Pos), Name: e.Name, Args: args}
	}
	return nil
}

func (i *ifStmt) toAST() *ast.If {
	n := &ast.If{
		Pos:    pos(i.Pos),
		Cond:   i.Cond.toAST(),
		Invert: i.Keyword == "unless",
		Then:   convertBlock(i.Then.Stmts),
	}
	if i.Else != nil {
		if i.Else.If != nil {
			n.Else = []ast.Stmt{i.Else.If.toAST()}
		} else {
			n.Else = convertBlock(i.Else.Block.Stmts)
		}
	}
	return n
}

// Binary chains fold to the left: a - b - c == (a - b) - c

func (e *expr) toAST() ast.Expr {
	out := e.Left.toAST()
	for _, t := range e.Rest {
		out = &ast.Logical{Pos: pos(t.Pos), Op: ast.LogicalOp(t.Op), Left: out, Right: t.Right.toAST()}
	}
	return out
}

func (e *andExpr) toAST() ast.Expr {
	out := e.Left.toAST()
	for _, t := range e.Rest {
		out = &ast.Logical{Pos: pos(t.Pos), Op: ast.And, Left: out, Right: t.Right.toAST()}
	}
	return out
}

func (e *equality) toAST() ast.Expr {
	out := e.Left.toAST()
	for _, t := range e.Rest {
		out = &ast.Binary{Pos: pos(t.Pos), Op: ast.BinaryOp(t.Op), Left: out, Right: t.Right.toAST()}
	}
	return out
}

func (e *comparison) toAST() ast.Expr {
	out := e.Left.toAST()
	for _, t := range e.Rest {
		out = &ast.Binary{Pos: pos(t.Pos), Op: ast.BinaryOp(t.Op), Left: out, Right: t.Right.toAST()}
	}
	return out
}

func (e *term) toAST() ast.Expr {
	out := e.Left.toAST()
	for _, t := range e.Rest {
		out = &ast.Binary{Pos: pos(t.Pos), Op: ast.BinaryOp(t.Op), Left: out, Right: t.Right.toAST()}
	}
	return out
}

func (e *factor) toAST() ast.Expr {
	out := e.Left.toAST()
	for _, t := range e.Rest {
		out = &ast.Binary{Pos: pos(t.Pos), Op: ast.BinaryOp(t.Op), Left: out, Right: t.Right.toAST()}
	}
	return out
}

func (u *unary) toAST() ast.Expr {
	if u.Power != nil {
		return u.Power.toAST()
	}
	return &ast.Unary{Pos: pos(u.Pos), Op: ast.UnaryOp(u.Op), Operand: u.Operand.toAST()}
}

func (p *power) toAST() ast.Expr {
	base := p.Base.toAST()
	if p.Exp == nil {
		return base
	}
	return &ast.Binary{Pos: pos(p.Pos), Op: ast.Exp, Left: base, Right: p.Exp.toAST()}
}

func (p *primary) toAST() ast.Expr {
	at := pos(p.Pos)
	switch {
	case p.Number != nil:
		return &ast.Literal{Pos: at, Value: types.Number(*p.Number)}
	case p.String != nil:
		// Remove quotes from parsed string
		s := *p.String
		return &ast.Literal{Pos: at, Value: types.String(s[1 : len(s)-1])}
	case p.Bool != nil:
		return &ast.Literal{Pos: at, Value: types.Boolean(*p.Bool == "true")}
	case p.Var != nil:
		return &ast.Variable{Pos: at, Name: varName(*p.Var)}
	case p.Abs != nil:
		return &ast.Unary{Pos: at, Op: ast.Abs, Operand: p.Abs.toAST()}
	case p.Group != nil:
		return &ast.Grouping{Pos: at, Inner: p.Group.toAST()}
	}
	return nil
}
