package bytecode

import "github.com/ailang/ai/pkg/types"

// Callable is a host action invocable from a script.
type Callable interface {
	// Call runs one tick of the action with the values passed at the call
	// site. It returns false while the action is still in progress; the
	// interpreter then yields and retries the same call on the next step.
	Call(args []types.Value) (bool, error)
	// CheckSyntax validates the shape of a call site at compile time.
	CheckSyntax(args []Arg) error
}

// Terminator is implemented by callables that hold state across ticks and
// must be told when the interpreter abandons them mid-action (a lost race
// branch, Stop, Reset).
type Terminator interface {
	Terminate()
}

// Instancer is implemented by callables whose in-progress state belongs to
// one invocation. The interpreter asks for a fresh instance each time a
// call site starts a new invocation, so parallel branches calling the same
// name do not share state. Retries reuse the instance.
type Instancer interface {
	Instance() Callable
}

// Prop is a host value readable (and optionally writable) from a script.
// Settable must not change over the lifetime of the property.
type Prop interface {
	Get() types.Value
	Set(v types.Value) error
	Settable() bool
}

// Arg is the static shape of one call argument: a literal word or a value
// expression. Value arguments that are plain literals carry the literal.
type Arg struct {
	word    string
	isValue bool
	literal types.Value
}

// WordArg is a bare word argument such as `degrees`.
func WordArg(word string) Arg { return Arg{word: word} }

// ValueArg is a value argument. literal is nil unless the expression is a
// constant.
func ValueArg(literal types.Value) Arg { return Arg{isValue: true, literal: literal} }

func (a Arg) IsValue() bool { return a.isValue }
func (a Arg) IsWord() bool  { return !a.isValue }

// Word returns the word of a word argument, "" for values.
func (a Arg) Word() string { return a.word }

// MatchesWord reports whether a is exactly the word w.
func (a Arg) MatchesWord(w string) bool { return !a.isValue && a.word == w }

// Literal returns the constant value of a literal argument.
func (a Arg) Literal() (types.Value, bool) {
	return a.literal, a.isValue && a.literal != nil
}

func (a Arg) String() string {
	if !a.isValue {
		return a.word
	}
	if a.literal != nil {
		return a.literal.String()
	}
	return "<value>"
}
