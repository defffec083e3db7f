// Package engine ties the Ai stages together: source -> AST -> Program ->
// Interpreter.
package engine

import (
	"fmt"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/compiler"
	"github.com/ailang/ai/pkg/interpreter"
	"github.com/ailang/ai/pkg/parser"
)

// Engine collects capability registrations and compiles scripts against
// them.
type Engine struct {
	compiler *compiler.Compiler
}

// New creates an engine with no registrations.
func New() *Engine {
	return &Engine{compiler: compiler.New()}
}

func (e *Engine) RegisterCallable(name string, c bytecode.Callable) error {
	return e.compiler.RegisterCallable(name, c)
}

func (e *Engine) RegisterProperty(name string, p bytecode.Prop) error {
	return e.compiler.RegisterProperty(name, p)
}

// Compile parses and compiles source. The registrations move into the
// returned Program.
func (e *Engine) Compile(filename, source string) (*bytecode.Program, error) {
	stmts, err := parser.Parse(filename, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return e.compiler.Compile(stmts)
}

// Convert compiles source into a ready interpreter.
func (e *Engine) Convert(filename, source string) (*interpreter.Interpreter, error) {
	prog, err := e.Compile(filename, source)
	if err != nil {
		return nil, err
	}
	return interpreter.New(prog), nil
}

// FromIR assembles textual IR (as printed by bytecode.Disassemble) into an
// interpreter with no registrations.
func FromIR(ir string) (*interpreter.Interpreter, error) {
	code, err := bytecode.Assemble(ir)
	if err != nil {
		return nil, err
	}
	return interpreter.New(bytecode.NewProgram(code)), nil
}

// FromCompiled loads a CBOR program written by bytecode.Marshal.
func FromCompiled(data []byte) (*interpreter.Interpreter, error) {
	code, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return interpreter.New(bytecode.NewProgram(code)), nil
}
