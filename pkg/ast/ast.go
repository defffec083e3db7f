// Package ast defines the syntax tree handed from the parser to the
// compiler. Names are stored without the leading '$'.
package ast

import "github.com/ailang/ai/pkg/types"

// Pos is a source location.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) Position() Pos { return p }

// Node is implemented by every statement and expression.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// GroupKind is the execution discipline of a group.
type GroupKind int

const (
	Sequence GroupKind = iota
	Parallel
	Race
)

func (k GroupKind) String() string {
	switch k {
	case Parallel:
		return "parallel"
	case Race:
		return "race"
	default:
		return "sequence"
	}
}

// Group defines a named, reusable block.
type Group struct {
	Pos
	Name   string
	Kind   GroupKind
	Params []string
	Body   []Stmt
}

// Use declares a host property.
type Use struct {
	Pos
	Name string
}

// If covers if/unless with an optional else branch.
type If struct {
	Pos
	Cond   Expr
	Invert bool
	Then   []Stmt
	Else   []Stmt
}

// While covers while/until loops.
type While struct {
	Pos
	Cond   Expr
	Invert bool
	Body   []Stmt
}

// Exec invokes a callable or a group.
type Exec struct {
	Pos
	Name string
	Args []Arg
}

// Arg is one call argument: a bare word when Value is nil.
type Arg struct {
	Pos
	Word  string
	Value Expr
}

// IsWord reports whether the argument is a literal word.
func (a Arg) IsWord() bool { return a.Value == nil }

// Var assigns a variable or a settable property.
type Var struct {
	Pos
	Name  string
	Value Expr
}

func (*Group) stmt() {}
func (*Use) stmt()   {}
func (*If) stmt()    {}
func (*While) stmt() {}
func (*Exec) stmt()  {}
func (*Var) stmt()   {}

// BinaryOp is an arithmetic or comparison operator.
type BinaryOp string

const (
	Add BinaryOp = "+"
	Sub BinaryOp = "-"
	Mul BinaryOp = "*"
	Div BinaryOp = "/"
	Mod BinaryOp = "%"
	Exp BinaryOp = "^"
	Eq  BinaryOp = "=="
	Ne  BinaryOp = "!="
	Lt  BinaryOp = "<"
	Le  BinaryOp = "<="
	Gt  BinaryOp = ">"
	Ge  BinaryOp = ">="
)

// LogicalOp is and/or/xor.
type LogicalOp string

const (
	And LogicalOp = "and"
	Or  LogicalOp = "or"
	Xor LogicalOp = "xor"
)

// UnaryOp is a prefix operator.
type UnaryOp string

const (
	Neg UnaryOp = "-"
	Not UnaryOp = "!"
	Abs UnaryOp = "abs"
)

type Binary struct {
	Pos
	Op          BinaryOp
	Left, Right Expr
}

type Logical struct {
	Pos
	Op          LogicalOp
	Left, Right Expr
}

type Unary struct {
	Pos
	Op      UnaryOp
	Operand Expr
}

type Grouping struct {
	Pos
	Inner Expr
}

type Literal struct {
	Pos
	Value types.Value
}

type Variable struct {
	Pos
	Name string
}

func (*Binary) expr()   {}
func (*Logical) expr()  {}
func (*Unary) expr()    {}
func (*Grouping) expr() {}
func (*Literal) expr()  {}
func (*Variable) expr() {}
