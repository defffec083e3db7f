package interpreter

import (
	"math"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

// binary applies an arithmetic, comparison or logic opcode to left and
// right, which were pushed in that order.
func binary(code bytecode.Opcode, addr int, left, right types.Value) (types.Value, error) {
	switch code {
	case bytecode.OpAdd:
		return add(addr, left, right)
	case bytecode.OpEq:
		return types.Boolean(left.Equal(right)), nil
	case bytecode.OpNe:
		return types.Boolean(!left.Equal(right)), nil
	case bytecode.OpAnd:
		return types.Boolean(left.Truthy() && right.Truthy()), nil
	case bytecode.OpOr:
		return types.Boolean(left.Truthy() || right.Truthy()), nil
	case bytecode.OpXor:
		return types.Boolean(left.Truthy() != right.Truthy()), nil
	}

	a, aok := left.(types.Number)
	b, bok := right.(types.Number)
	if !aok || !bok {
		return nil, types.Errorf(types.ErrType, addr, "Both operands must be numbers")
	}
	switch code {
	case bytecode.OpSub:
		return a - b, nil
	case bytecode.OpMul:
		return a * b, nil
	case bytecode.OpDiv:
		return a / b, nil
	case bytecode.OpMod:
		return types.Number(math.Mod(float64(a), float64(b))), nil
	case bytecode.OpExp:
		return types.Number(math.Pow(float64(a), float64(b))), nil
	case bytecode.OpLt:
		return types.Boolean(a < b), nil
	case bytecode.OpLe:
		return types.Boolean(a <= b), nil
	case bytecode.OpGt:
		return types.Boolean(a > b), nil
	case bytecode.OpGe:
		return types.Boolean(a >= b), nil
	}
	return nil, types.Errorf(types.ErrType, addr, "not a binary operator: %s", code)
}

// add sums numbers and concatenates strings, left first.
func add(addr int, left, right types.Value) (types.Value, error) {
	switch l := left.(type) {
	case types.Number:
		if r, ok := right.(types.Number); ok {
			return l + r, nil
		}
		return nil, types.Errorf(types.ErrType, addr, "Right operand must be a number")
	case types.String:
		if r, ok := right.(types.String); ok {
			return l + r, nil
		}
		return nil, types.Errorf(types.ErrType, addr, "Right operand must be a string")
	}
	return nil, types.Errorf(types.ErrType, addr, "Operands must be numbers or strings")
}

// unary rewrites the top of the stack in place.
func unary(code bytecode.Opcode, addr int, v types.Value) (types.Value, error) {
	n, ok := v.(types.Number)
	if !ok {
		if code == bytecode.OpNeg {
			return nil, types.Errorf(types.ErrType, addr, "Only numbers can be negated")
		}
		return nil, types.Errorf(types.ErrType, addr, "Absolute value only works with numbers")
	}
	if code == bytecode.OpNeg {
		return -n, nil
	}
	return types.Number(math.Abs(float64(n))), nil
}
