// Package compiler lowers Ai syntax trees to bytecode.
//
// Compilation is a single forward pass with jump backpatching. Every
// statically detectable problem is collected; Compile returns either a
// complete Program or all errors together.
package compiler

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/ailang/ai/pkg/ast"
	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

var log = commonlog.GetLogger("ai.compiler")

// Compiler holds capability registrations between compilations.
type Compiler struct {
	callables map[string]bytecode.Callable
	props     map[string]bytecode.Prop
	order     []string // registration order, for deterministic transfer
}

// New creates a compiler with no registrations.
func New() *Compiler {
	return &Compiler{
		callables: make(map[string]bytecode.Callable),
		props:     make(map[string]bytecode.Prop),
	}
}

func (c *Compiler) taken(name string) bool {
	if _, ok := c.callables[name]; ok {
		return true
	}
	_, ok := c.props[name]
	return ok
}

// RegisterCallable makes a host action available to scripts.
func (c *Compiler) RegisterCallable(name string, callable bytecode.Callable) error {
	if c.taken(name) {
		return types.NameError(types.ErrDuplicateCallable, -1, name)
	}
	c.callables[name] = callable
	c.order = append(c.order, name)
	return nil
}

// RegisterProperty makes a host value available to scripts.
func (c *Compiler) RegisterProperty(name string, prop bytecode.Prop) error {
	if c.taken(name) {
		return types.NameError(types.ErrDuplicateProperty, -1, name)
	}
	c.props[name] = prop
	c.order = append(c.order, name)
	return nil
}

// Compile lowers stmts to a Program. On success the registrations move
// into the Program, which owns them from then on, and the compiler starts
// over empty. On failure the registrations are kept and the returned
// error is a types.Errors.
func (c *Compiler) Compile(stmts []ast.Stmt) (*bytecode.Program, error) {
	s := &state{
		compiler: c,
		groups:   make(map[string]*ast.Group),
		uses:     make(map[string]bool),
		reported: make(map[string]bool),
	}
	s.collect(stmts)

	top := s.openScope(nil, stmts)
	s.reserve(top)
	s.block(stmts)

	if len(s.errs) > 0 {
		log.Debugf("compile failed with %d error(s)", len(s.errs))
		return nil, s.errs
	}

	prog := bytecode.NewProgram(s.code)
	for _, name := range c.order {
		var err error
		if callable, ok := c.callables[name]; ok {
			err = prog.RegisterCallable(name, callable)
		} else {
			err = prog.RegisterProperty(name, c.props[name])
		}
		if err != nil {
			return nil, types.Errors{asError(err)}
		}
	}
	log.Debugf("compiled %d statement(s) to %d op(s), %d group(s)", len(stmts), len(s.code), len(s.groups))

	c.callables = make(map[string]bytecode.Callable)
	c.props = make(map[string]bytecode.Prop)
	c.order = nil
	return prog, nil
}

func asError(err error) *types.Error {
	var e *types.Error
	if errors.As(err, &e) {
		return e
	}
	return &types.Error{Kind: types.ErrHost, Addr: -1, Msg: err.Error()}
}

// state is the per-compilation working set.
type state struct {
	compiler *Compiler
	code     []bytecode.Op
	errs     types.Errors
	groups   map[string]*ast.Group
	uses     map[string]bool
	reported map[string]bool
	scope    *scope
}

// scope is the slot map of the top level or one group body.
type scope struct {
	parent  *scope
	slots   map[string]int
	defined map[string]bool
	next    int
	nparams int
}

func (s *state) errorAt(n ast.Node, kind types.ErrorKind, name, format string, args ...any) {
	p := n.Position()
	s.errs = append(s.errs, &types.Error{
		Kind:   kind,
		Name:   name,
		Msg:    fmt.Sprintf(format, args...),
		Addr:   -1,
		Line:   p.Line,
		Column: p.Column,
	})
}

// errorOnce reports kind/name the first time only. A missing host name is
// reported once whichever roles it is used in.
func (s *state) errorOnce(n ast.Node, kind types.ErrorKind, name string) {
	key := fmt.Sprintf("%d:%s", kind, name)
	if kind == types.ErrUnregisteredCallable || kind == types.ErrUnregisteredProperty {
		key = "unregistered:" + name
	}
	if s.reported[key] {
		return
	}
	s.reported[key] = true
	s.errorAt(n, kind, name, "")
}

func (s *state) emit(op bytecode.Op) int {
	s.code = append(s.code, op)
	return len(s.code) - 1
}

// patch points the jump at addr to the current end of code.
func (s *state) patch(addr int) {
	s.code[addr].Addr = len(s.code)
}

// collect finds every group definition and use declaration up front so
// calls and property references can be resolved regardless of order.
func (s *state) collect(stmts []ast.Stmt) {
	for _, st := range stmts {
		switch n := st.(type) {
		case *ast.Group:
			switch {
			case s.groups[n.Name] != nil:
				s.errorAt(n, types.ErrDuplicateCallable, n.Name, "group already defined")
			case s.compiler.taken(n.Name):
				s.errorAt(n, types.ErrDuplicateCallable, n.Name, "group name is already registered")
			default:
				s.groups[n.Name] = n
			}
			s.collect(n.Body)
		case *ast.Use:
			s.uses[n.Name] = true
			if _, ok := s.compiler.props[n.Name]; !ok {
				s.errorOnce(n, types.ErrUnregisteredProperty, n.Name)
			}
		case *ast.If:
			s.collect(n.Then)
			s.collect(n.Else)
		case *ast.While:
			s.collect(n.Body)
		}
	}
}

// openScope creates the slot map for a body: parameters first, then every
// other assigned name in first-assignment order. Nested group bodies are
// separate scopes.
func (s *state) openScope(params []string, body []ast.Stmt) *scope {
	sc := &scope{
		parent:  s.scope,
		slots:   make(map[string]int),
		defined: make(map[string]bool),
		nparams: len(params),
	}
	for _, p := range params {
		sc.slots[p] = sc.next
		sc.defined[p] = true
		sc.next++
	}
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, st := range stmts {
			switch n := st.(type) {
			case *ast.Var:
				if _, ok := sc.slots[n.Name]; !ok && !s.uses[n.Name] {
					sc.slots[n.Name] = sc.next
					sc.next++
				}
			case *ast.If:
				walk(n.Then)
				walk(n.Else)
			case *ast.While:
				walk(n.Body)
			}
		}
	}
	walk(body)
	s.scope = sc
	return sc
}

func (s *state) closeScope() {
	s.scope = s.scope.parent
}

// reserve pushes one zero per non-parameter local so Store always hits an
// existing slot.
func (s *state) reserve(sc *scope) {
	for i := sc.nparams; i < sc.next; i++ {
		s.emit(bytecode.Push(types.Number(0)))
	}
}

func (s *state) block(stmts []ast.Stmt) {
	for _, st := range stmts {
		s.stmt(st)
	}
}

func (s *state) stmt(st ast.Stmt) {
	switch n := st.(type) {
	case *ast.Use:
		// declaration only
	case *ast.Var:
		s.assign(n)
	case *ast.If:
		s.ifStmt(n)
	case *ast.While:
		s.whileStmt(n)
	case *ast.Exec:
		s.exec(n)
	case *ast.Group:
		s.group(n)
	default:
		s.errorAt(st, types.ErrType, "", "unsupported statement %T", st)
	}
}

func (s *state) assign(n *ast.Var) {
	if s.uses[n.Name] {
		if prop, ok := s.compiler.props[n.Name]; ok && !prop.Settable() {
			s.errorOnce(n, types.ErrUnsettableProperty, n.Name)
		}
		s.expr(n.Value)
		s.emit(bytecode.Set(n.Name))
		return
	}
	s.expr(n.Value)
	s.emit(bytecode.Store(s.scope.slots[n.Name]))
	s.scope.defined[n.Name] = true
}

func (s *state) ifStmt(n *ast.If) {
	s.expr(n.Cond)
	skip := s.emit(conditionalSkip(n.Invert))
	s.block(n.Then)
	if len(n.Else) == 0 {
		s.patch(skip)
		return
	}
	end := s.emit(bytecode.Jump(0))
	s.patch(skip)
	s.block(n.Else)
	s.patch(end)
}

func (s *state) whileStmt(n *ast.While) {
	top := len(s.code)
	s.expr(n.Cond)
	exit := s.emit(conditionalSkip(n.Invert))
	s.block(n.Body)
	s.emit(bytecode.Jump(top))
	s.patch(exit)
}

// conditionalSkip leaves a block when its condition does not hold:
// if/while skip on false, unless/until skip on true.
func conditionalSkip(invert bool) bytecode.Op {
	if invert {
		return bytecode.JumpIf(0)
	}
	return bytecode.JumpUnless(0)
}
