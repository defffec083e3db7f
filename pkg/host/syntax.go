// Package host contains helpers for exposing host capabilities to Ai
// scripts: call syntax checkers, a command lifecycle adapter, and simple
// property implementations.
package host

import (
	"fmt"
	"strings"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

// Checker validates the argument shapes of a call site.
type Checker func(args []bytecode.Arg) error

// Registrar is satisfied by both the compiler and the interpreter.
type Registrar interface {
	RegisterCallable(name string, c bytecode.Callable) error
	RegisterProperty(name string, p bytecode.Prop) error
}

func syntaxError(format string, args ...any) error {
	return &types.Error{Kind: types.ErrCallSyntax, Addr: -1, Msg: fmt.Sprintf(format, args...)}
}

// DefineSyntax builds a checker from a pattern such as "to * degrees":
// "*" accepts any value, every other token must appear as that exact word.
func DefineSyntax(syntax string) Checker {
	params := strings.Fields(syntax)
	return func(args []bytecode.Arg) error {
		if len(args) != len(params) {
			return syntaxError("Incorrect argument count (Expected %d, got %d)", len(params), len(args))
		}
		for i, param := range params {
			arg := args[i]
			if arg.IsValue() {
				if param != "*" {
					return syntaxError("Expected argument %d to be the word '%s'", i+1, param)
				}
				continue
			}
			if param == "*" {
				return syntaxError("Expected argument %d to be a value", i+1)
			}
			if !arg.MatchesWord(param) {
				return syntaxError("Expected argument %d to be the word '%s'", i+1, param)
			}
		}
		return nil
	}
}

// NoArgs accepts only an empty argument list.
func NoArgs() Checker {
	return func(args []bytecode.Arg) error {
		if len(args) != 0 {
			return syntaxError("Expected no arguments, got %d", len(args))
		}
		return nil
	}
}

// SimpleArgs accepts exactly n value arguments.
func SimpleArgs(n int) Checker {
	return func(args []bytecode.Arg) error {
		for i, arg := range args {
			if arg.IsWord() {
				return syntaxError("Expected only value arguments but found the word '%s' at %d", arg.Word(), i+1)
			}
		}
		if len(args) != n {
			return syntaxError("Expected %d arguments, got %d", n, len(args))
		}
		return nil
	}
}

// ValuesOnly accepts any number of value arguments.
func ValuesOnly() Checker {
	return func(args []bytecode.Arg) error {
		for i, arg := range args {
			if arg.IsWord() {
				return syntaxError("does not accept words (word '%s' at %d)", arg.Word(), i+1)
			}
		}
		return nil
	}
}
