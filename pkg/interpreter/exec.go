package interpreter

import (
	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

// exec dispatches one instruction fetched from addr. t.ip already points
// past it.
func (in *Interpreter) exec(t *task, addr int, op bytecode.Op) (State, error) {
	switch op.Code {
	case bytecode.OpPush:
		t.push(op.Value)

	case bytecode.OpPop:
		if _, err := t.pop(addr); err != nil {
			return Stop, err
		}

	case bytecode.OpDup:
		if len(t.stack) == 0 {
			return Stop, types.Errorf(types.ErrStackUnderflow, addr, "dup on empty stack")
		}
		t.push(t.stack[len(t.stack)-1])

	case bytecode.OpLoad:
		idx := t.offset() + op.Slot
		if op.Slot < 0 || idx >= len(t.stack) {
			return Stop, types.Errorf(types.ErrIndexOutOfBounds, addr, "no local slot %d", op.Slot)
		}
		t.push(t.stack[idx])

	case bytecode.OpStore:
		v, err := t.pop(addr)
		if err != nil {
			return Stop, err
		}
		idx := t.offset() + op.Slot
		if op.Slot < 0 || idx >= len(t.stack) {
			return Stop, types.Errorf(types.ErrIndexOutOfBounds, addr, "no local slot %d", op.Slot)
		}
		t.stack[idx] = v

	case bytecode.OpGet:
		prop, ok := in.prog.Property(op.Name)
		if !ok {
			return Stop, types.NameError(types.ErrUnregisteredProperty, addr, op.Name)
		}
		t.push(prop.Get())

	case bytecode.OpSet:
		v, err := t.pop(addr)
		if err != nil {
			return Stop, err
		}
		prop, ok := in.prog.Property(op.Name)
		if !ok {
			return Stop, types.NameError(types.ErrUnregisteredProperty, addr, op.Name)
		}
		if !prop.Settable() {
			return Stop, types.NameError(types.ErrUnsettableProperty, addr, op.Name)
		}
		if err := prop.Set(v); err != nil {
			return Stop, &types.Error{Kind: types.ErrHost, Name: op.Name, Addr: addr, Msg: err.Error()}
		}

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpExp,
		bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor,
		bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		right, err := t.pop(addr)
		if err != nil {
			return Stop, err
		}
		left, err := t.pop(addr)
		if err != nil {
			return Stop, err
		}
		v, err := binary(op.Code, addr, left, right)
		if err != nil {
			return Stop, err
		}
		t.push(v)

	case bytecode.OpNeg, bytecode.OpAbs:
		if len(t.stack) == 0 {
			return Stop, types.Errorf(types.ErrStackUnderflow, addr, "%s on empty stack", op.Code)
		}
		v, err := unary(op.Code, addr, t.stack[len(t.stack)-1])
		if err != nil {
			return Stop, err
		}
		t.stack[len(t.stack)-1] = v

	case bytecode.OpJump:
		t.ip = op.Addr

	case bytecode.OpJumpIf, bytecode.OpJumpUnless:
		cond, err := t.pop(addr)
		if err != nil {
			return Stop, err
		}
		if cond.Truthy() == (op.Code == bytecode.OpJumpIf) {
			t.ip = op.Addr
		}

	case bytecode.OpLabel:
		// Group entry marker

	case bytecode.OpCall, bytecode.OpCallParallel, bytecode.OpCallRace:
		return in.call(t, addr, op)

	case bytecode.OpReturn:
		if len(t.frames) == 0 {
			return Stop, types.Errorf(types.ErrStackUnderflow, addr, "return without a frame")
		}
		in.returnFrame(t)

	case bytecode.OpFork:
		if err := in.fork(t, addr, op); err != nil {
			return Stop, err
		}

	default:
		return Stop, types.Errorf(types.ErrType, addr, "unknown opcode %s", op.Code)
	}
	return Continue, nil
}
