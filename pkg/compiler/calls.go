package compiler

import (
	"errors"

	"github.com/ailang/ai/pkg/ast"
	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

func (s *state) exec(n *ast.Exec) {
	if g, ok := s.groups[n.Name]; ok {
		s.callGroup(n, g)
		return
	}
	callable, ok := s.compiler.callables[n.Name]
	if !ok {
		s.errorOnce(n, types.ErrUnregisteredCallable, n.Name)
		return
	}

	shapes := make([]bytecode.Arg, len(n.Args))
	for i, a := range n.Args {
		switch {
		case a.IsWord():
			shapes[i] = bytecode.WordArg(a.Word)
		default:
			var literal types.Value
			if lit, ok := a.Value.(*ast.Literal); ok {
				literal = lit.Value
			}
			shapes[i] = bytecode.ValueArg(literal)
		}
	}
	if err := callable.CheckSyntax(shapes); err != nil {
		s.errorAt(n, types.ErrCallSyntax, n.Name, "%s", syntaxMessage(err))
		return
	}
	s.emitCall(n, bytecode.OpCall)
}

func syntaxMessage(err error) string {
	var e *types.Error
	if errors.As(err, &e) && e.Kind == types.ErrCallSyntax {
		return e.Msg
	}
	return err.Error()
}

func (s *state) callGroup(n *ast.Exec, g *ast.Group) {
	values := 0
	for _, a := range n.Args {
		if a.IsWord() {
			s.errorAt(a, types.ErrCallSyntax, n.Name, "group arguments must be values, got word '%s'", a.Word)
			return
		}
		values++
	}
	if values != len(g.Params) {
		s.errorAt(n, types.ErrCallSyntax, n.Name, "expected %d argument(s), got %d", len(g.Params), values)
		return
	}
	code := bytecode.OpCall
	switch g.Kind {
	case ast.Parallel:
		code = bytecode.OpCallParallel
	case ast.Race:
		code = bytecode.OpCallRace
	}
	s.emitCall(n, code)
}

// emitCall pushes value arguments left to right followed by the call.
func (s *state) emitCall(n *ast.Exec, code bytecode.Opcode) {
	argc := 0
	for _, a := range n.Args {
		if a.IsWord() {
			continue
		}
		s.expr(a.Value)
		argc++
	}
	s.emit(bytecode.Op{Code: code, Name: n.Name, Argc: argc})
}

// group emits a definition inline behind a guard jump:
//
//	jump end
//	label name
//	push 0 ...        local slot reservation
//	<body>            sequence
//	fork b0 b1 ...    parallel/race, then one "bi: <stmt> return" per branch
//	return
//	end:
func (s *state) group(g *ast.Group) {
	if s.groups[g.Name] != g {
		// duplicate, already reported
		return
	}
	guard := s.emit(bytecode.Jump(0))
	s.emit(bytecode.Label(g.Name))
	sc := s.openScope(g.Params, g.Body)
	s.reserve(sc)

	if g.Kind == ast.Sequence {
		s.block(g.Body)
		s.emit(bytecode.Simple(bytecode.OpReturn))
	} else {
		s.branches(g.Body)
	}

	s.closeScope()
	s.patch(guard)
}

// branches compiles each executable top-level statement of a concurrent
// body as its own branch. Nested definitions follow the branches.
func (s *state) branches(body []ast.Stmt) {
	var branches, nested []ast.Stmt
	for _, st := range body {
		switch st.(type) {
		case *ast.Group, *ast.Use:
			nested = append(nested, st)
		default:
			branches = append(branches, st)
		}
	}

	fork := s.emit(bytecode.Fork(make([]int, len(branches))...))
	for i, st := range branches {
		s.code[fork].Addrs[i] = len(s.code)
		s.stmt(st)
		s.emit(bytecode.Simple(bytecode.OpReturn))
	}
	s.block(nested)
}
