// Package bytecode defines the instruction set shared by the Ai compiler
// and interpreter, the Program container, and the capability interfaces a
// host implements.
//
// Instructions are not byte-encoded: a program is a flat []Op addressed by
// index. Jump and call targets are absolute indices; an address equal to
// len(code) means "end of program".
package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ailang/ai/pkg/types"
)

// Opcode identifies an instruction.
type Opcode byte

// === Stack and locals ===
const (
	OpPush  Opcode = iota // [v] -- v
	OpPop                 // a --
	OpDup                 // a -- a a
	OpLoad                // [slot] -- frame[slot]
	OpStore               // [slot] v --
	OpGet                 // [name] -- prop
	OpSet                 // [name] v --
)

// === Arithmetic (left right -- result) ===
const (
	OpAdd Opcode = iota + 0x10
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpNeg // a -- (-a)
	OpAbs // a -- |a|
)

// === Logic and comparison ===
const (
	OpAnd Opcode = iota + 0x20
	OpOr
	OpXor
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// === Control flow ===
const (
	OpJump         Opcode = iota + 0x30 // [addr]
	OpJumpIf                            // [addr] cond --
	OpJumpUnless                        // [addr] cond --
	OpLabel                             // [name] no-op, marks a group entry
	OpCall                              // [name argc]
	OpCallParallel                      // [name argc]
	OpCallRace                          // [name argc]
	OpReturn                            // pop frame
	OpFork                              // [addr...] split into branches
)

var opNames = map[Opcode]string{
	OpPush: "push", OpPop: "pop", OpDup: "dup",
	OpLoad: "load", OpStore: "store", OpGet: "get", OpSet: "set",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpMod: "mod", OpExp: "exp", OpNeg: "neg", OpAbs: "abs",
	OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpJump: "jump", OpJumpIf: "jump_if", OpJumpUnless: "jump_unless",
	OpLabel: "label", OpCall: "call", OpCallParallel: "call_parallel",
	OpCallRace: "call_race", OpReturn: "return", OpFork: "fork",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

// String returns the mnemonic of an opcode
func (o Opcode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op%02X", byte(o))
}

// Valid reports whether o is a known opcode.
func (o Opcode) Valid() bool {
	_, ok := opNames[o]
	return ok
}

// IsJump returns true for the three jump instructions
func (o Opcode) IsJump() bool {
	return o == OpJump || o == OpJumpIf || o == OpJumpUnless
}

// IsCall returns true for the three invocation instructions
func (o Opcode) IsCall() bool {
	return o == OpCall || o == OpCallParallel || o == OpCallRace
}

// Op is one instruction. Only the operand fields relevant to Code are set.
type Op struct {
	Code  Opcode
	Value types.Value // push
	Slot  int         // load, store
	Name  string      // get, set, label, call*
	Argc  int         // call*
	Addr  int         // jump*
	Addrs []int       // fork
}

// Push pushes a constant.
func Push(v types.Value) Op { return Op{Code: OpPush, Value: v} }

// Load pushes the local in slot, relative to the current frame.
func Load(slot int) Op { return Op{Code: OpLoad, Slot: slot} }

// Store pops into the local in slot, relative to the current frame.
func Store(slot int) Op { return Op{Code: OpStore, Slot: slot} }

// Get pushes the value of a host property.
func Get(name string) Op { return Op{Code: OpGet, Name: name} }

// Set pops into a settable host property.
func Set(name string) Op { return Op{Code: OpSet, Name: name} }

// Jump continues at addr.
func Jump(addr int) Op { return Op{Code: OpJump, Addr: addr} }

// JumpIf pops a condition and continues at addr when it is truthy.
func JumpIf(addr int) Op { return Op{Code: OpJumpIf, Addr: addr} }

// JumpUnless pops a condition and continues at addr when it is falsy.
func JumpUnless(addr int) Op { return Op{Code: OpJumpUnless, Addr: addr} }

// Label marks a group entry. It does nothing when executed.
func Label(name string) Op { return Op{Code: OpLabel, Name: name} }

// Call invokes a host callable or sequence group with the top argc values.
func Call(name string, argc int) Op { return Op{Code: OpCall, Name: name, Argc: argc} }

// CallParallel enters a parallel group with the top argc values.
func CallParallel(name string, argc int) Op {
	return Op{Code: OpCallParallel, Name: name, Argc: argc}
}

// CallRace enters a race group with the top argc values.
func CallRace(name string, argc int) Op {
	return Op{Code: OpCallRace, Name: name, Argc: argc}
}

// Fork splits the current task into one branch per address.
func Fork(addrs ...int) Op { return Op{Code: OpFork, Addrs: addrs} }

// Simple builds an instruction without operands (arithmetic, logic,
// comparison, pop, dup, return).
func Simple(code Opcode) Op { return Op{Code: code} }

// String renders the instruction in assembler syntax.
func (op Op) String() string {
	switch op.Code {
	case OpPush:
		return "push " + formatValue(op.Value)
	case OpLoad, OpStore:
		return fmt.Sprintf("%s %d", op.Code, op.Slot)
	case OpGet, OpSet, OpLabel:
		return fmt.Sprintf("%s %s", op.Code, op.Name)
	case OpJump, OpJumpIf, OpJumpUnless:
		return fmt.Sprintf("%s %d", op.Code, op.Addr)
	case OpCall, OpCallParallel, OpCallRace:
		return fmt.Sprintf("%s %s %d", op.Code, op.Name, op.Argc)
	case OpFork:
		parts := make([]string, len(op.Addrs))
		for i, a := range op.Addrs {
			parts[i] = strconv.Itoa(a)
		}
		return strings.TrimSpace("fork " + strings.Join(parts, " "))
	}
	return op.Code.String()
}

// Equal compares two instructions operand by operand.
func (op Op) Equal(other Op) bool {
	if op.Code != other.Code || op.Slot != other.Slot || op.Name != other.Name ||
		op.Argc != other.Argc || op.Addr != other.Addr || len(op.Addrs) != len(other.Addrs) {
		return false
	}
	for i := range op.Addrs {
		if op.Addrs[i] != other.Addrs[i] {
			return false
		}
	}
	if op.Value == nil || other.Value == nil {
		return op.Value == nil && other.Value == nil
	}
	return op.Value.Equal(other.Value)
}

func formatValue(v types.Value) string {
	switch x := v.(type) {
	case types.Number:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case nil:
		return "0"
	}
	return v.String()
}
