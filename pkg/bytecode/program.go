package bytecode

import (
	"sort"

	"github.com/ailang/ai/pkg/types"
)

// Target is the result of resolving a call name: either a host callable or
// a group entry address. Groups and callables share one namespace.
type Target struct {
	Callable Callable
	Entry    int
}

// IsGroup reports whether the target is a group entry.
func (t Target) IsGroup() bool { return t.Callable == nil }

// Program is compiled code plus the capabilities it was compiled against.
type Program struct {
	Code []Op

	calls  map[string]Target
	props  map[string]Prop
	groups map[string]int
}

// NewProgram wraps code and builds the group table from its Label
// instructions.
func NewProgram(code []Op) *Program {
	p := &Program{
		Code:   code,
		calls:  make(map[string]Target),
		props:  make(map[string]Prop),
		groups: make(map[string]int),
	}
	for addr, op := range code {
		if op.Code == OpLabel {
			p.groups[op.Name] = addr
			p.calls[op.Name] = Target{Entry: addr}
		}
	}
	return p
}

// taken reports whether name is already a group, callable or property.
func (p *Program) taken(name string) bool {
	if _, ok := p.calls[name]; ok {
		return true
	}
	_, ok := p.props[name]
	return ok
}

// RegisterCallable adds a host callable. A name already used by a group,
// callable or property is rejected and the tables are left unchanged.
func (p *Program) RegisterCallable(name string, c Callable) error {
	if p.taken(name) {
		return types.NameError(types.ErrDuplicateCallable, -1, name)
	}
	p.calls[name] = Target{Callable: c}
	return nil
}

// RegisterProperty adds a host property, with the same collision rule as
// RegisterCallable.
func (p *Program) RegisterProperty(name string, prop Prop) error {
	if p.taken(name) {
		return types.NameError(types.ErrDuplicateProperty, -1, name)
	}
	p.props[name] = prop
	return nil
}

// Resolve looks a call name up in the flat callable/group namespace.
func (p *Program) Resolve(name string) (Target, bool) {
	t, ok := p.calls[name]
	return t, ok
}

// Property returns a registered property.
func (p *Program) Property(name string) (Prop, bool) {
	prop, ok := p.props[name]
	return prop, ok
}

// Group returns the entry address of a group.
func (p *Program) Group(name string) (int, bool) {
	addr, ok := p.groups[name]
	return addr, ok
}

// Groups returns the group names in entry order.
func (p *Program) Groups() []string {
	names := make([]string, 0, len(p.groups))
	for n := range p.groups {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return p.groups[names[i]] < p.groups[names[j]] })
	return names
}

// Callables returns the registered host callables.
func (p *Program) Callables() map[string]Callable {
	out := make(map[string]Callable)
	for n, t := range p.calls {
		if !t.IsGroup() {
			out[n] = t.Callable
		}
	}
	return out
}

// ForkAt returns the Fork instruction that starts the body of the group
// entered at entry. A concurrent group's entry is its Label followed by
// the local slot reservation and then the Fork.
func (p *Program) ForkAt(entry int) (Op, int, bool) {
	addr := entry + 1
	for addr < len(p.Code) && p.Code[addr].Code == OpPush {
		addr++
	}
	if addr < len(p.Code) && p.Code[addr].Code == OpFork {
		return p.Code[addr], addr, true
	}
	return Op{}, -1, false
}
