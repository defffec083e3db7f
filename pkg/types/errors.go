package types

import (
	"fmt"
	"strings"
)

// ErrorKind classifies compile and runtime failures. A kind is itself an
// error so callers can test with errors.Is(err, types.ErrType).
type ErrorKind int

const (
	ErrStackUnderflow ErrorKind = iota + 1
	ErrIndexOutOfBounds
	ErrType
	ErrUnregisteredCallable
	ErrUnregisteredProperty
	ErrUnsettableProperty
	ErrDuplicateCallable
	ErrDuplicateProperty
	ErrInterpreterActive
	ErrInvalidCall
	ErrCallSyntax
	ErrUnresolvedVariable
	ErrHost
)

var kindNames = map[ErrorKind]string{
	ErrStackUnderflow:       "stack underflow",
	ErrIndexOutOfBounds:     "index out of bounds",
	ErrType:                 "type error",
	ErrUnregisteredCallable: "unregistered callable",
	ErrUnregisteredProperty: "unregistered property",
	ErrUnsettableProperty:   "unsettable property",
	ErrDuplicateCallable:    "duplicate callable",
	ErrDuplicateProperty:    "duplicate property",
	ErrInterpreterActive:    "interpreter active",
	ErrInvalidCall:          "invalid call",
	ErrCallSyntax:           "call syntax",
	ErrUnresolvedVariable:   "unresolved variable",
	ErrHost:                 "host error",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("unknown error %d", int(k))
}

func (k ErrorKind) Error() string { return k.String() }

// Error is a single failure. Addr is the instruction address for runtime
// and verification errors (-1 when not applicable); Line/Column locate
// compile errors in the source (0 when unknown).
type Error struct {
	Kind   ErrorKind
	Name   string
	Msg    string
	Addr   int
	Line   int
	Column int
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d: ", e.Line, e.Column)
	}
	sb.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&sb, " '%s'", e.Name)
	}
	if e.Addr >= 0 && e.Line == 0 {
		fmt.Fprintf(&sb, " at %d", e.Addr)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	return sb.String()
}

// Is matches an ErrorKind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// Errorf builds a runtime error at addr.
func Errorf(kind ErrorKind, addr int, format string, args ...any) *Error {
	return &Error{Kind: kind, Addr: addr, Msg: fmt.Sprintf(format, args...)}
}

// NameError builds an error about a named capability at addr.
func NameError(kind ErrorKind, addr int, name string) *Error {
	return &Error{Kind: kind, Addr: addr, Name: name}
}

// Errors is an aggregated report. Compilation and verification collect
// every problem they find into one.
type Errors []*Error

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "no errors"
	case 1:
		return es[0].Error()
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d errors:\n  %s", len(es), strings.Join(parts, "\n  "))
}

// Unwrap exposes the entries to errors.Is and errors.As.
func (es Errors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// OrNil returns nil for an empty report so callers can return it directly.
func (es Errors) OrNil() error {
	if len(es) == 0 {
		return nil
	}
	return es
}
