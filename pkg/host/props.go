package host

import (
	"sync"

	"github.com/ailang/ai/pkg/types"
)

// Var is a settable property holding a value.
type Var struct {
	mu    sync.Mutex
	value types.Value
}

func NewVar(initial types.Value) *Var {
	return &Var{value: initial}
}

func (v *Var) Get() types.Value {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

func (v *Var) Set(value types.Value) error {
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
	return nil
}

func (v *Var) Settable() bool { return true }

// ReadOnly is a constant property.
type ReadOnly struct {
	Value types.Value
}

func (r ReadOnly) Get() types.Value { return r.Value }

func (r ReadOnly) Set(types.Value) error {
	return &types.Error{Kind: types.ErrUnsettableProperty, Addr: -1}
}

func (r ReadOnly) Settable() bool { return false }

// Func is a property backed by host functions, read-only when Setter is
// nil.
type Func struct {
	Getter func() types.Value
	Setter func(types.Value) error
}

func (f Func) Get() types.Value { return f.Getter() }

func (f Func) Set(v types.Value) error {
	if f.Setter == nil {
		return &types.Error{Kind: types.ErrUnsettableProperty, Addr: -1}
	}
	return f.Setter(v)
}

func (f Func) Settable() bool { return f.Setter != nil }
