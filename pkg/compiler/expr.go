package compiler

import (
	"github.com/ailang/ai/pkg/ast"
	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

var binaryOps = map[ast.BinaryOp]bytecode.Opcode{
	ast.Add: bytecode.OpAdd,
	ast.Sub: bytecode.OpSub,
	ast.Mul: bytecode.OpMul,
	ast.Div: bytecode.OpDiv,
	ast.Mod: bytecode.OpMod,
	ast.Exp: bytecode.OpExp,
	ast.Eq:  bytecode.OpEq,
	ast.Ne:  bytecode.OpNe,
	ast.Lt:  bytecode.OpLt,
	ast.Le:  bytecode.OpLe,
	ast.Gt:  bytecode.OpGt,
	ast.Ge:  bytecode.OpGe,
}

var logicalOps = map[ast.LogicalOp]bytecode.Opcode{
	ast.And: bytecode.OpAnd,
	ast.Or:  bytecode.OpOr,
	ast.Xor: bytecode.OpXor,
}

// expr emits operands left then right, then the operator. Binary ops
// compute left OP right, so this order must not change.
func (s *state) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Literal:
		s.emit(bytecode.Push(n.Value))
	case *ast.Variable:
		s.variable(n)
	case *ast.Grouping:
		s.expr(n.Inner)
	case *ast.Binary:
		s.expr(n.Left)
		s.expr(n.Right)
		s.emit(bytecode.Simple(binaryOps[n.Op]))
	case *ast.Logical:
		s.expr(n.Left)
		s.expr(n.Right)
		s.emit(bytecode.Simple(logicalOps[n.Op]))
	case *ast.Unary:
		s.expr(n.Operand)
		switch n.Op {
		case ast.Neg:
			s.emit(bytecode.Simple(bytecode.OpNeg))
		case ast.Abs:
			s.emit(bytecode.Simple(bytecode.OpAbs))
		case ast.Not:
			s.emit(bytecode.Push(types.Boolean(true)))
			s.emit(bytecode.Simple(bytecode.OpXor))
		}
	default:
		s.errorAt(e, types.ErrType, "", "unsupported expression %T", e)
	}
}

func (s *state) variable(n *ast.Variable) {
	if s.uses[n.Name] {
		s.emit(bytecode.Get(n.Name))
		return
	}
	if slot, ok := s.scope.slots[n.Name]; ok && s.scope.defined[n.Name] {
		s.emit(bytecode.Load(slot))
		return
	}
	s.errorOnce(n, types.ErrUnresolvedVariable, "$"+n.Name)
	// keep stack shape for later code
	s.emit(bytecode.Push(types.Number(0)))
}
