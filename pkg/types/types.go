// Package types defines the runtime values of Ai scripts.
// Every value that can exist on the operand stack implements Value.
package types

import (
	"fmt"
	"strconv"
)

// Value is the interface all Ai values implement.
type Value interface {
	// String returns a human-readable representation
	String() string
	// Type returns the type name for error messages
	Type() string
	// Equal checks equality with another value
	Equal(other Value) bool
	// Truthy is the coercion used by logic and conditional jumps
	Truthy() bool
}

// Number is the only numeric kind.
type Number float64

func (n Number) String() string {
	// Whole numbers print without a fraction
	if n == Number(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

func (n Number) Type() string { return "number" }
func (n Number) Truthy() bool { return n != 0 }

func (n Number) Equal(other Value) bool {
	if o, ok := other.(Number); ok {
		return n == o
	}
	return false
}

// String represents a string value
type String string

func (s String) String() string { return strconv.Quote(string(s)) }
func (s String) Type() string   { return "string" }
func (s String) Truthy() bool   { return s != "" }

func (s String) Equal(other Value) bool {
	if o, ok := other.(String); ok {
		return s == o
	}
	return false
}

// Boolean represents true/false
type Boolean bool

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Boolean) Type() string { return "boolean" }
func (b Boolean) Truthy() bool { return bool(b) }

func (b Boolean) Equal(other Value) bool {
	if o, ok := other.(Boolean); ok {
		return b == o
	}
	return false
}

// Display renders a value the way a script author wrote it: strings are
// not quoted.
func Display(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// FromGo converts a decoded configuration scalar into a Value.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Number(0), nil
	case Value:
		return x, nil
	case bool:
		return Boolean(x), nil
	case string:
		return String(x), nil
	case int:
		return Number(x), nil
	case int64:
		return Number(x), nil
	case uint64:
		return Number(x), nil
	case float32:
		return Number(x), nil
	case float64:
		return Number(x), nil
	default:
		return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
