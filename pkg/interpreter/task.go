package interpreter

import (
	"errors"

	"github.com/tliron/commonlog"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/types"
)

// frame is pushed when a group is called.
type frame struct {
	returnAddr  int
	stackOffset int
	mode        bytecode.Opcode // the call instruction that entered the group
}

// task is one execution context: the main program or one branch of a
// parallel/race group.
type task struct {
	ip     int
	stack  []types.Value
	frames []frame

	// branch tasks finish when their last frame returns
	branch bool
	done   bool

	// join is set while this task waits on its branches
	join *join

	// pending is the callable instance of an unfinished call at pendingAt
	pending   bytecode.Callable
	pendingAt int
}

func newTask(ip int) *task {
	return &task{ip: ip, stack: make([]types.Value, 0, 32), pendingAt: -1}
}

// join schedules the branches forked by a parallel or race group.
type join struct {
	race     bool
	children []*task
	cursor   int
	yielded  bool
}

func (t *task) offset() int {
	if len(t.frames) == 0 {
		return 0
	}
	return t.frames[len(t.frames)-1].stackOffset
}

func (t *task) push(v types.Value) {
	t.stack = append(t.stack, v)
}

func (t *task) pop(addr int) (types.Value, error) {
	if len(t.stack) == 0 {
		return nil, types.Errorf(types.ErrStackUnderflow, addr, "pop from empty stack")
	}
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v, nil
}

// terminate abandons the in-flight callable of t and of all its branches.
func (t *task) terminate() {
	if t.pending != nil {
		if term, ok := t.pending.(bytecode.Terminator); ok {
			term.Terminate()
		}
		t.pending = nil
		t.pendingAt = -1
	}
	if t.join != nil {
		for _, c := range t.join.children {
			if !c.done {
				c.terminate()
			}
		}
	}
}

// advance runs one instruction of t, or of the branch whose turn it is
// when t is waiting on a join.
func (in *Interpreter) advance(t *task) (State, error) {
	if t.join != nil {
		return in.advanceJoin(t)
	}
	code := in.prog.Code
	if t.ip >= len(code) {
		if t.branch {
			return Stop, types.Errorf(types.ErrIndexOutOfBounds, t.ip, "branch ran past end of program")
		}
		return Stop, nil
	}
	addr := t.ip
	op := code[addr]
	t.ip++
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("%04d: %-24s stack=%v", addr, op, t.stack)
	}
	return in.exec(t, addr, op)
}

// advanceJoin gives the current branch one instruction. A branch keeps its
// turn until it yields or finishes; when the cursor wraps after a round in
// which some branch yielded, the whole join yields.
func (in *Interpreter) advanceJoin(t *task) (State, error) {
	j := t.join
	child := j.children[j.cursor]
	state, err := in.advance(child)
	if err != nil {
		return Stop, err
	}
	if state == Yield {
		j.yielded = true
	}

	if child.done && j.race {
		in.finishJoin(t)
		return Continue, nil
	}
	if !child.done && state != Yield {
		return Continue, nil
	}

	next := -1
	for i := 1; i <= len(j.children); i++ {
		idx := (j.cursor + i) % len(j.children)
		if !j.children[idx].done {
			next = idx
			break
		}
	}
	if next < 0 {
		in.finishJoin(t)
		return Continue, nil
	}

	wrapped := next <= j.cursor
	j.cursor = next
	if wrapped && j.yielded {
		j.yielded = false
		return Yield, nil
	}
	return Continue, nil
}

// fork splits t into one branch per address. Each branch starts with a
// copy of the group's frame window.
func (in *Interpreter) fork(t *task, addr int, op bytecode.Op) error {
	if len(t.frames) == 0 {
		return types.Errorf(types.ErrInvalidCall, addr, "fork outside a group")
	}
	f := t.frames[len(t.frames)-1]
	if len(op.Addrs) == 0 {
		in.returnFrame(t)
		return nil
	}
	window := t.stack[f.stackOffset:]
	j := &join{race: f.mode == bytecode.OpCallRace}
	for _, start := range op.Addrs {
		child := newTask(start)
		child.branch = true
		child.stack = append(child.stack, window...)
		child.frames = []frame{{returnAddr: -1, stackOffset: 0, mode: f.mode}}
		j.children = append(j.children, child)
	}
	t.join = j
	log.Debugf("%04d: fork %d branch(es), race=%t", addr, len(j.children), j.race)
	return nil
}

// finishJoin abandons unfinished branches and returns from the group.
func (in *Interpreter) finishJoin(t *task) {
	for _, c := range t.join.children {
		if !c.done {
			c.terminate()
		}
	}
	t.join = nil
	in.returnFrame(t)
}

func (in *Interpreter) returnFrame(t *task) {
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.stack = t.stack[:f.stackOffset]
	if t.branch && len(t.frames) == 0 {
		t.done = true
		return
	}
	t.ip = f.returnAddr
}

// call invokes a host callable or enters a group.
func (in *Interpreter) call(t *task, addr int, op bytecode.Op) (State, error) {
	target, ok := in.prog.Resolve(op.Name)
	if !ok {
		return Stop, types.NameError(types.ErrUnregisteredCallable, addr, op.Name)
	}
	if op.Argc < 0 || len(t.stack)-t.offset() < op.Argc {
		return Stop, types.Errorf(types.ErrStackUnderflow, addr, "%s expects %d argument(s)", op.Name, op.Argc)
	}
	base := len(t.stack) - op.Argc

	if target.IsGroup() {
		if op.Code != bytecode.OpCall {
			if _, _, ok := in.prog.ForkAt(target.Entry); !ok {
				return Stop, types.NameError(types.ErrInvalidCall, addr, op.Name)
			}
		}
		t.frames = append(t.frames, frame{returnAddr: t.ip, stackOffset: base, mode: op.Code})
		t.ip = target.Entry
		return Continue, nil
	}
	if op.Code != bytecode.OpCall {
		return Stop, types.NameError(types.ErrInvalidCall, addr, op.Name)
	}

	callable := target.Callable
	if t.pending != nil && t.pendingAt == addr {
		callable = t.pending
	} else if inst, ok := callable.(bytecode.Instancer); ok {
		callable = inst.Instance()
	}

	args := append([]types.Value(nil), t.stack[base:]...)
	finished, err := callable.Call(args)
	if err != nil {
		t.pending, t.pendingAt = nil, -1
		var e *types.Error
		if errors.As(err, &e) {
			return Stop, err
		}
		return Stop, &types.Error{Kind: types.ErrHost, Name: op.Name, Addr: addr, Msg: err.Error()}
	}
	if !finished {
		// retry the same call next step
		t.pending, t.pendingAt = callable, addr
		t.ip = addr
		return Yield, nil
	}
	t.pending, t.pendingAt = nil, -1
	t.stack = t.stack[:base]
	return Continue, nil
}
