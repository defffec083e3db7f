package host

import (
	"fmt"
	"io"
	"strings"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/interpreter"
	"github.com/ailang/ai/pkg/types"
)

// waitCommand finishes on its n-th Execute, so `wait 1;` completes in the
// tick it starts.
type waitCommand struct {
	ticks   int
	elapsed int
}

func (w *waitCommand) Initialize()      { w.elapsed = 0 }
func (w *waitCommand) Execute()         { w.elapsed++ }
func (w *waitCommand) IsFinished() bool { return w.elapsed >= w.ticks }
func (w *waitCommand) End(bool)         {}

// ExpectArgs fails unless exactly n values were passed. Programs loaded
// from IR or CBOR reach factories without a compile-time syntax check.
func ExpectArgs(cmd string, args []types.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s expects %d argument(s), got %d", cmd, n, len(args))
	}
	return nil
}

// WaitFactory builds `wait <ticks>;` commands.
func WaitFactory(args []types.Value) (Command, error) {
	if err := ExpectArgs("wait", args, 1); err != nil {
		return nil, err
	}
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, fmt.Errorf("wait expects a number, got %s", args[0].Type())
	}
	return &waitCommand{ticks: int(n)}, nil
}

type printCommand struct {
	out  io.Writer
	line string
	done bool
}

func (p *printCommand) Initialize()      {}
func (p *printCommand) Execute()         { fmt.Fprintln(p.out, p.line); p.done = true }
func (p *printCommand) IsFinished() bool { return p.done }
func (p *printCommand) End(bool)         {}

// PrintFactory builds `print <values...>;` commands writing to out.
func PrintFactory(out io.Writer) Factory {
	return func(args []types.Value) (Command, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = types.Display(a)
		}
		return &printCommand{out: out, line: strings.Join(parts, " ")}, nil
	}
}

// RegisterStandard registers wait and print.
func RegisterStandard(r Registrar, out io.Writer) error {
	if err := Register(r, "wait", WaitFactory, SimpleArgs(1)); err != nil {
		return err
	}
	return Register(r, "print", PrintFactory(out), ValuesOnly())
}

// ScriptCommand runs another interpreter as a command: each Execute steps
// it until it yields or stops.
type ScriptCommand struct {
	Interp *interpreter.Interpreter
	// MaxSteps bounds one Execute; 0 means unbounded
	MaxSteps int

	complete bool
	active   bool
	err      error
}

// Active reports whether a run has started and not yet ended.
func (s *ScriptCommand) Active() bool { return s.active }

func (s *ScriptCommand) Initialize() {
	s.Interp.Reset()
	s.active = true
	s.complete = false
	s.err = nil
}

func (s *ScriptCommand) Execute() {
	for i := 0; s.MaxSteps == 0 || i < s.MaxSteps; i++ {
		state, err := s.Interp.Step()
		if err != nil {
			s.err = err
			s.complete = true
			return
		}
		switch state {
		case interpreter.Stop:
			s.complete = true
			return
		case interpreter.Yield:
			return
		}
	}
}

func (s *ScriptCommand) IsFinished() bool { return s.complete }

func (s *ScriptCommand) End(interrupted bool) {
	s.active = false
	if interrupted {
		s.Interp.Stop()
	}
}

// Err returns the error that ended the script, if any.
func (s *ScriptCommand) Err() error { return s.err }

// scriptCallable exposes a ScriptCommand that surfaces script errors to
// the calling interpreter.
type scriptCallable struct {
	*CommandAdapter
	cmd *ScriptCommand
}

func (c *scriptCallable) Call(args []types.Value) (bool, error) {
	done, err := c.CommandAdapter.Call(args)
	if err == nil && done {
		err = c.cmd.Err()
	}
	return done, err
}

func (c *scriptCallable) Instance() bytecode.Callable {
	return &scriptCallable{CommandAdapter: c.CommandAdapter.Instance().(*CommandAdapter), cmd: c.cmd}
}

// RegisterScript registers sub as a no-argument callable named name. All
// invocations drive the same sub-interpreter, so a call made while another
// run is still in progress (say from a second parallel branch) fails.
func RegisterScript(r Registrar, name string, sub *interpreter.Interpreter, maxSteps int) error {
	cmd := &ScriptCommand{Interp: sub, MaxSteps: maxSteps}
	adapter := NewCommandAdapter(func(args []types.Value) (Command, error) {
		if err := ExpectArgs(name, args, 0); err != nil {
			return nil, err
		}
		if cmd.active {
			return nil, fmt.Errorf("script %s is already running", name)
		}
		return cmd, nil
	}, NoArgs())
	return r.RegisterCallable(name, &scriptCallable{CommandAdapter: adapter, cmd: cmd})
}

var _ bytecode.Callable = (*scriptCallable)(nil)
