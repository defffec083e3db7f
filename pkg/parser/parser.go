// Package parser provides Ai parsing using Participle v2.
// Grammar is defined as Go structs with tags and converted to ast nodes.
package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ailang/ai/pkg/ast"
)

// Grammar nodes - parsed from source, converted to ast nodes for compilation

type script struct {
	Stmts []*statement `@@*`
}

type statement struct {
	Group *groupStmt `  @@`
	Use   *useStmt   `| @@`
	If    *ifStmt    `| @@`
	While *whileStmt `| @@`
	Var   *varStmt   `| @@`
	Exec  *execStmt  `| @@`
}

type block struct {
	Stmts []*statement `"{" @@* "}"`
}

// groupStmt: KIND group name $param* { ... }
type groupStmt struct {
	Pos    lexer.Position
	Kind   string   `@("sequence" | "parallel" | "race") "group"`
	Name   string   `@Ident`
	Params []string `@Var*`
	Body   *block   `@@`
}

type useStmt struct {
	Pos  lexer.Position
	Name string `"use" @Var ";"`
}

type ifStmt struct {
	Pos     lexer.Position
	Keyword string      `@("if" | "unless")`
	Cond    *expr       `@@`
	Then    *block      `@@`
	Else    *elseClause `( "else" @@ )?`
}

type elseClause struct {
	If    *ifStmt `  @@`
	Block *block  `| @@`
}

type whileStmt struct {
	Pos     lexer.Position
	Keyword string `@("while" | "until")`
	Cond    *expr  `@@`
	Body    *block `@@`
}

type varStmt struct {
	Pos   lexer.Position
	Name  string `@Var "="`
	Value *expr  `@@ ";"`
}

type execStmt struct {
	Pos  lexer.Position
	Name string `@Ident`
	Args []*arg `@@* ";"`
}

// arg: a value (unary level, so arguments stay whitespace separated) or a word
type arg struct {
	Pos   lexer.Position
	Value *unary  `  @@`
	Word  *string `| @Ident`
}

// Expression levels, loosest first

type expr struct {
	Left *andExpr  `@@`
	Rest []*orTail `@@*`
}

type orTail struct {
	Pos   lexer.Position
	Op    string   `@("or" | "xor")`
	Right *andExpr `@@`
}

type andExpr struct {
	Left *equality  `@@`
	Rest []*andTail `@@*`
}

type andTail struct {
	Pos   lexer.Position
	Op    string    `@"and"`
	Right *equality `@@`
}

type equality struct {
	Left *comparison     `@@`
	Rest []*equalityTail `@@*`
}

type equalityTail struct {
	Pos   lexer.Position
	Op    string      `@("==" | "!=")`
	Right *comparison `@@`
}

type comparison struct {
	Left *term             `@@`
	Rest []*comparisonTail `@@*`
}

type comparisonTail struct {
	Pos   lexer.Position
	Op    string `@("<=" | ">=" | "<" | ">")`
	Right *term  `@@`
}

type term struct {
	Left *factor     `@@`
	Rest []*termTail `@@*`
}

type termTail struct {
	Pos   lexer.Position
	Op    string  `@("+" | "-")`
	Right *factor `@@`
}

type factor struct {
	Left *unary        `@@`
	Rest []*factorTail `@@*`
}

type factorTail struct {
	Pos   lexer.Position
	Op    string `@("*" | "/" | "%")`
	Right *unary `@@`
}

type unary struct {
	Pos     lexer.Position
	Op      string `  ( @("-" | "!")`
	Operand *unary `    @@ )`
	Power   *power `| @@`
}

// power is right associative: 2 ^ 3 ^ 2 == 2 ^ (3 ^ 2)
type power struct {
	Pos  lexer.Position
	Base *primary `@@`
	Exp  *unary   `( "^" @@ )?`
}

type primary struct {
	Pos    lexer.Position
	Number *float64 `  @Number`
	String *string  `| @String`
	Bool   *string  `| @("true" | "false")`
	Var    *string  `| @Var`
	Abs    *expr    `| "abs" "(" @@ ")"`
	Group  *expr    `| "(" @@ ")"`
}

// Ai lexer definition
var aiLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Skip whitespace and comments
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},

	// Literals
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]+)?`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},

	// $name: variables and properties
	{Name: "Var", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_]*`},

	// Identifiers (keywords, callable names and literal words)
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	// Multi-char operators first
	{Name: "Operator", Pattern: `==|!=|<=|>=|[-+*/%^<>=!]`},
	{Name: "Punct", Pattern: `[(){};]`},
})

var grammar = participle.MustBuild[script](
	participle.Lexer(aiLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse parses Ai source into statements. filename is used in error
// positions only.
func Parse(filename, source string) ([]ast.Stmt, error) {
	s, err := grammar.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	return convertBlock(s.Stmts), nil
}
