package host

import (
	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

// Command is a multi-tick host action with an explicit lifecycle.
type Command interface {
	// Initialize runs once before the first Execute
	Initialize()
	// Execute runs once per tick
	Execute()
	// IsFinished is checked after every Execute
	IsFinished() bool
	// End runs once; interrupted is true when the action was abandoned
	End(interrupted bool)
}

// Factory builds a command from the values passed at the call site.
type Factory func(args []types.Value) (Command, error)

type commandState int

const (
	inactive commandState = iota
	active
	complete
)

// CommandAdapter exposes a command factory as a Callable. Each invocation
// gets its own command through Instance.
type CommandAdapter struct {
	factory Factory
	checker Checker

	command Command
	state   commandState
}

// NewCommandAdapter wraps factory with checker as its call syntax.
func NewCommandAdapter(factory Factory, checker Checker) *CommandAdapter {
	return &CommandAdapter{factory: factory, checker: checker}
}

// Instance returns an adapter with fresh lifecycle state.
func (a *CommandAdapter) Instance() bytecode.Callable {
	return &CommandAdapter{factory: a.factory, checker: a.checker}
}

func (a *CommandAdapter) CheckSyntax(args []bytecode.Arg) error {
	if a.checker == nil {
		return nil
	}
	return a.checker(args)
}

// Call runs one tick of the command, creating and initializing it first
// when this is a new invocation.
func (a *CommandAdapter) Call(args []types.Value) (bool, error) {
	if a.state != active {
		cmd, err := a.factory(args)
		if err != nil {
			return false, err
		}
		a.command = cmd
		a.command.Initialize()
		a.state = active
	}
	a.command.Execute()
	if a.command.IsFinished() {
		a.command.End(false)
		a.state = complete
		return true, nil
	}
	return false, nil
}

// Terminate ends an active command as interrupted.
func (a *CommandAdapter) Terminate() {
	if a.state == active {
		a.command.End(true)
		a.state = complete
	}
}

// Register wraps factory in a CommandAdapter and registers it as name.
func Register(r Registrar, name string, factory Factory, checker Checker) error {
	return r.RegisterCallable(name, NewCommandAdapter(factory, checker))
}
