// Package interpreter provides the Ai execution engine.
// It executes a compiled Program one instruction per Step, with an
// operand stack, a call stack of frames, and branch tasks for parallel
// and race groups.
package interpreter

import (
	"github.com/tliron/commonlog"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

var log = commonlog.GetLogger("ai.interpreter")

// State is the outcome of one Step.
type State int

const (
	// Continue means an instruction ran and more remain
	Continue State = iota
	// Yield means a host action is in progress; step again next tick
	Yield
	// Stop means the program ran off its end
	Stop
)

func (s State) String() string {
	switch s {
	case Continue:
		return "continue"
	case Yield:
		return "yield"
	default:
		return "stop"
	}
}

// Interpreter is the Ai execution engine
type Interpreter struct {
	prog *bytecode.Program
	root *task

	// running is set once verification passed and cleared at Stop
	running bool
	// halted keeps Stop stable until Reset
	halted bool
	// fault is the runtime error that ended execution
	fault error

	// Steps counts executed Step calls since the last Reset
	Steps int
}

// New creates an interpreter that owns prog.
func New(prog *bytecode.Program) *Interpreter {
	return &Interpreter{prog: prog, root: newTask(0)}
}

// Program returns the program being executed.
func (in *Interpreter) Program() *bytecode.Program {
	return in.prog
}

// Running reports whether execution has begun and not yet stopped.
func (in *Interpreter) Running() bool {
	return in.running
}

// RegisterCallable adds a host callable. Fails once execution has begun.
func (in *Interpreter) RegisterCallable(name string, c bytecode.Callable) error {
	if in.running {
		return types.NameError(types.ErrInterpreterActive, -1, name)
	}
	return in.prog.RegisterCallable(name, c)
}

// RegisterProperty adds a host property. Fails once execution has begun.
func (in *Interpreter) RegisterProperty(name string, p bytecode.Prop) error {
	if in.running {
		return types.NameError(types.ErrInterpreterActive, -1, name)
	}
	return in.prog.RegisterProperty(name, p)
}

// Step verifies the program on first use, then executes one instruction.
// Verification failures leave the interpreter idle so the host can
// register what is missing and step again. A runtime error is returned
// again by every later Step until Reset.
func (in *Interpreter) Step() (State, error) {
	if in.fault != nil {
		return Stop, in.fault
	}
	if in.halted {
		return Stop, nil
	}
	if !in.running {
		if err := in.Verify(); err != nil {
			return Stop, err
		}
		in.running = true
	}

	in.Steps++
	state, err := in.advance(in.root)
	if err != nil {
		log.Errorf("%s", err)
		in.fault = err
		in.running = false
		in.root.terminate()
		return Stop, err
	}
	if state == Stop {
		in.running = false
		in.halted = true
	}
	return state, nil
}

// Interpret steps until the program stops or fails.
func (in *Interpreter) Interpret() error {
	for {
		state, err := in.Step()
		if err != nil {
			return err
		}
		if state == Stop {
			return nil
		}
	}
}

// Reset rewinds to the start of the program, terminating any in-flight
// callables. Registrations are kept.
func (in *Interpreter) Reset() {
	in.root.terminate()
	in.root = newTask(0)
	in.running = false
	in.halted = false
	in.fault = nil
	in.Steps = 0
}

// Stop abandons any in-progress host actions and resets.
func (in *Interpreter) Stop() {
	in.Reset()
}

// IP returns the instruction pointer of the main task.
func (in *Interpreter) IP() int {
	return in.root.ip
}

// Stack returns a copy of the main operand stack.
func (in *Interpreter) Stack() []types.Value {
	return append([]types.Value(nil), in.root.stack...)
}

// Depth returns the number of active frames of the main task.
func (in *Interpreter) Depth() int {
	return len(in.root.frames)
}
