package interpreter

import (
	"errors"
	"strings"
	"testing"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/compiler"
	"github.com/ailang/ai/pkg/parser"
	"github.com/ailang/ai/pkg/types"
)

// recorder appends "name args..." to a shared log and finishes at once.
type recorder struct {
	name string
	log  *[]string
}

func (r *recorder) Call(args []types.Value) (bool, error) {
	parts := []string{r.name}
	for _, a := range args {
		parts = append(parts, types.Display(a))
	}
	*r.log = append(*r.log, strings.Join(parts, " "))
	return true, nil
}

func (r *recorder) CheckSyntax([]bytecode.Arg) error { return nil }

// tickerStats is shared by all instances of one ticker.
type tickerStats struct {
	instances  int
	terminated int
}

// ticker finishes on the n-th call, n being its first argument (or 3 when
// called without one).
type ticker struct {
	stats *tickerStats
	n     int
	count int
}

func newTicker() *ticker {
	return &ticker{stats: &tickerStats{}}
}

func (w *ticker) Instance() bytecode.Callable {
	w.stats.instances++
	return &ticker{stats: w.stats}
}

func (w *ticker) Call(args []types.Value) (bool, error) {
	if w.count == 0 {
		w.n = 3
		if len(args) > 0 {
			w.n = int(args[0].(types.Number))
		}
	}
	w.count++
	return w.count >= w.n, nil
}

func (w *ticker) CheckSyntax([]bytecode.Arg) error { return nil }
func (w *ticker) Terminate()                       { w.stats.terminated++ }

type testProp struct {
	value    types.Value
	settable bool
}

func (p *testProp) Get() types.Value { return p.value }

func (p *testProp) Set(v types.Value) error {
	p.value = v
	return nil
}

func (p *testProp) Settable() bool { return p.settable }

// Helper to compile Ai source against the given callables
func compileAi(t *testing.T, src string, caps map[string]bytecode.Callable) *Interpreter {
	t.Helper()
	stmts, err := parser.Parse("test.ai", src)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	c := compiler.New()
	for name, callable := range caps {
		if err := c.RegisterCallable(name, callable); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}
	prog, err := c.Compile(stmts)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	return New(prog)
}

// Helper to compile and run to completion
func runAi(t *testing.T, src string, caps map[string]bytecode.Callable) *Interpreter {
	t.Helper()
	in := compileAi(t, src, caps)
	if err := in.Interpret(); err != nil {
		t.Fatalf("Runtime error: %v", err)
	}
	return in
}

// runTicks steps until Stop, treating each Yield as the end of a tick. It
// returns the tick in which the program stopped.
func runTicks(t *testing.T, in *Interpreter, max int) int {
	t.Helper()
	for tick := 1; tick <= max; tick++ {
		for {
			state, err := in.Step()
			if err != nil {
				t.Fatalf("Runtime error in tick %d: %v", tick, err)
			}
			if state == Stop {
				return tick
			}
			if state == Yield {
				break
			}
		}
	}
	t.Fatalf("Program did not stop within %d ticks", max)
	return 0
}

func loggers(log *[]string, names ...string) map[string]bytecode.Callable {
	caps := make(map[string]bytecode.Callable)
	for _, n := range names {
		caps[n] = &recorder{name: n, log: log}
	}
	return caps
}

func expectLog(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected calls %q, got %q", want, got)
	}
}

// === Expressions ===

func TestExpressions(t *testing.T) {
	tests := []struct {
		expr     string
		expected types.Value
	}{
		{"1 + 2 * 3", types.Number(7)},
		{"(1 + 2) * 3", types.Number(9)},
		{"10 - 4 - 3", types.Number(3)},
		{"9 / 2", types.Number(4.5)},
		{"7 % 3", types.Number(1)},
		{"2 ^ 3 ^ 2", types.Number(512)},
		{"-3 + 1", types.Number(-2)},
		{"abs(2 - 5)", types.Number(3)},
		{`"ab" + "cd"`, types.String("abcd")},
		{"1 == 1.0", types.Boolean(true)},
		{`"a" != "a"`, types.Boolean(false)},
		{"1 < 2 and 3 >= 3", types.Boolean(true)},
		{"1 > 2 or 2 <= 1", types.Boolean(false)},
		{"true xor true", types.Boolean(false)},
		{"!false", types.Boolean(true)},
		{"1 == true", types.Boolean(false)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			in := runAi(t, "$r = "+tt.expr+";", nil)
			stack := in.Stack()
			if len(stack) != 1 {
				t.Fatalf("Expected one local, got %v", stack)
			}
			if !stack[0].Equal(tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, stack[0])
			}
		})
	}
}

func TestTypeErrors(t *testing.T) {
	tests := []struct {
		expr string
		msg  string
	}{
		{`1 + "x"`, "Right operand must be a number"},
		{`"x" + 1`, "Right operand must be a string"},
		{`true + 1`, "Operands must be numbers or strings"},
		{`"a" * 2`, "Both operands must be numbers"},
		{`2 < "b"`, "Both operands must be numbers"},
		{`-"a"`, "Only numbers can be negated"},
		{`abs(true)`, "Absolute value only works with numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			in := compileAi(t, "$r = "+tt.expr+";", nil)
			err := in.Interpret()
			if err == nil {
				t.Fatal("Expected a type error")
			}
			if !errors.Is(err, types.ErrType) {
				t.Errorf("Expected type error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Expected %q in %q", tt.msg, err.Error())
			}
		})
	}
}

// Loaded programs skip the compiler, so operands can be out of range.
func TestMalformedOperands(t *testing.T) {
	tests := []struct {
		name string
		code []bytecode.Op
		kind types.ErrorKind
	}{
		{"load negative", []bytecode.Op{bytecode.Push(types.Number(1)), bytecode.Load(-1)}, types.ErrIndexOutOfBounds},
		{"load past stack", []bytecode.Op{bytecode.Load(0)}, types.ErrIndexOutOfBounds},
		{"store negative", []bytecode.Op{bytecode.Push(types.Number(1)), bytecode.Push(types.Number(2)), bytecode.Store(-1)}, types.ErrIndexOutOfBounds},
		{"store past stack", []bytecode.Op{bytecode.Push(types.Number(1)), bytecode.Store(3)}, types.ErrIndexOutOfBounds},
		{"negative argc", []bytecode.Op{bytecode.Call("a", -1)}, types.ErrStackUnderflow},
		{"missing args", []bytecode.Op{bytecode.Push(types.Number(1)), bytecode.Call("a", 2)}, types.ErrStackUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log []string
			in := New(bytecode.NewProgram(tt.code))
			if err := in.RegisterCallable("a", &recorder{name: "a", log: &log}); err != nil {
				t.Fatal(err)
			}
			if err := in.Interpret(); !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
			if len(log) != 0 {
				t.Errorf("Expected no host calls, got %v", log)
			}
		})
	}
}

func TestFaultIsSticky(t *testing.T) {
	in := compileAi(t, `$r = 1 + "x";`, nil)
	first := in.Interpret()
	if first == nil {
		t.Fatal("Expected an error")
	}
	state, err := in.Step()
	if state != Stop || err != first {
		t.Errorf("Expected the same error again, got %v %v", state, err)
	}

	in.Reset()
	if _, err := in.Step(); err != nil {
		t.Errorf("Expected Reset to clear the fault, got %v", err)
	}
}

// === Locals and control flow ===

func TestLocals(t *testing.T) {
	in := runAi(t, `
		$x = 2;
		$y = $x * 3 - 1;
		$x = $x + $y;
	`, nil)
	stack := in.Stack()
	if len(stack) != 2 || !stack[0].Equal(types.Number(7)) || !stack[1].Equal(types.Number(5)) {
		t.Errorf("Expected [7 5], got %v", stack)
	}
}

func TestControlFlow(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected []float64
	}{
		{"while", `
			$i = 0;
			$sum = 0;
			while $i < 5 {
				$i = $i + 1;
				$sum = $sum + $i;
			}`, []float64{5, 15}},
		{"else if", `
			$x = 7;
			$r = 0;
			if $x < 5 { $r = 1; } else if $x < 10 { $r = 2; } else { $r = 3; }`, []float64{7, 2}},
		{"if without else", `
			$r = 1;
			if $r > 5 { $r = 0; }`, []float64{1}},
		{"until and unless", `
			$n = 10;
			until $n <= 3 { $n = $n - 4; }
			$flag = 0;
			unless $n == 2 { $flag = 1; }`, []float64{2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := runAi(t, tt.src, nil).Stack()
			if len(stack) != len(tt.expected) {
				t.Fatalf("Expected %d locals, got %v", len(tt.expected), stack)
			}
			for i, want := range tt.expected {
				if !stack[i].Equal(types.Number(want)) {
					t.Errorf("Slot %d: expected %v, got %v", i, want, stack[i])
				}
			}
		})
	}
}

func TestStopIsStable(t *testing.T) {
	in := runAi(t, "$x = 1;", nil)
	for i := 0; i < 3; i++ {
		state, err := in.Step()
		if state != Stop || err != nil {
			t.Fatalf("Expected Stop, got %v %v", state, err)
		}
	}
	if stack := in.Stack(); len(stack) != 1 || !stack[0].Equal(types.Number(1)) {
		t.Errorf("Expected stack [1], got %v", stack)
	}
	if in.Running() {
		t.Error("Expected interpreter to be idle after Stop")
	}
}

// === Groups ===

func TestSequenceGroup(t *testing.T) {
	var log []string
	runAi(t, `
		sequence group g {
			a 1;
			b 2;
		}
		a 0;
		g;
		g;
		b 3;
	`, loggers(&log, "a", "b"))
	expectLog(t, log, []string{"a 0", "a 1", "b 2", "a 1", "b 2", "b 3"})
}

func TestGroupParams(t *testing.T) {
	var log []string
	in := runAi(t, `
		sequence group diff $a $b {
			$r = $a - $b;
			out $r;
		}
		diff 10 4;
		diff 1 2;
	`, loggers(&log, "out"))
	expectLog(t, log, []string{"out 6", "out -1"})
	if len(in.Stack()) != 0 || in.Depth() != 0 {
		t.Errorf("Expected clean stack and frames, got %v depth %d", in.Stack(), in.Depth())
	}
}

func TestGroupCalledBeforeDefinition(t *testing.T) {
	var log []string
	runAi(t, `
		sequence group outer {
			inner;
			a 2;
		}
		sequence group inner {
			a 1;
		}
		outer;
	`, loggers(&log, "a"))
	expectLog(t, log, []string{"a 1", "a 2"})
}

func TestParallelBranchKeepsTurnUntilYield(t *testing.T) {
	var log []string
	runAi(t, `
		parallel group both {
			sequence group lhs { a 1; a 2; }
			sequence group rhs { b 1; b 2; }
			lhs;
			rhs;
		}
		both;
		a 3;
	`, loggers(&log, "a", "b"))
	expectLog(t, log, []string{"a 1", "a 2", "b 1", "b 2", "a 3"})
}

func TestParallelInterleavesAtYields(t *testing.T) {
	var log []string
	caps := loggers(&log, "a", "b")
	caps["slow"] = newTicker()
	in := compileAi(t, `
		sequence group lhs { a 1; slow; a 2; }
		sequence group rhs { b 1; slow; b 2; }
		parallel group both {
			lhs;
			rhs;
		}
		both;
		a 3;
	`, caps)
	if ticks := runTicks(t, in, 10); ticks != 3 {
		t.Errorf("Expected 3 ticks, took %d", ticks)
	}
	expectLog(t, log, []string{"a 1", "b 1", "a 2", "b 2", "a 3"})
}

func TestParallelBranchesSeeParams(t *testing.T) {
	var log []string
	in := runAi(t, `
		parallel group pair $n {
			a $n;
			b ($n + 1);
		}
		pair 7;
	`, loggers(&log, "a", "b"))
	expectLog(t, log, []string{"a 7", "b 8"})
	if len(in.Stack()) != 0 {
		t.Errorf("Expected empty stack, got %v", in.Stack())
	}
}

func TestParallelWaitsForAll(t *testing.T) {
	wait := newTicker()
	in := compileAi(t, `
		parallel group both {
			wait 1;
			wait 5;
		}
		both;
	`, map[string]bytecode.Callable{"wait": wait})

	if ticks := runTicks(t, in, 20); ticks != 5 {
		t.Errorf("Expected parallel group to take 5 ticks, took %d", ticks)
	}
	if wait.stats.instances != 2 {
		t.Errorf("Expected one instance per branch, got %d", wait.stats.instances)
	}
	if wait.stats.terminated != 0 {
		t.Errorf("Expected no terminations, got %d", wait.stats.terminated)
	}
}

func TestRaceFirstWins(t *testing.T) {
	wait := newTicker()
	in := compileAi(t, `
		race group first {
			wait 2;
			wait 5;
		}
		first;
	`, map[string]bytecode.Callable{"wait": wait})

	if ticks := runTicks(t, in, 20); ticks != 2 {
		t.Errorf("Expected race to finish in tick 2, took %d", ticks)
	}
	if wait.stats.terminated != 1 {
		t.Errorf("Expected the slow branch to be terminated once, got %d", wait.stats.terminated)
	}
}

// === Host calls ===

func TestYieldRetriesSameCall(t *testing.T) {
	var log []string
	slow := newTicker()
	caps := loggers(&log, "a")
	caps["slow"] = slow
	in := compileAi(t, "a 1; slow; a 2;", caps)

	var states []State
	for {
		state, err := in.Step()
		if err != nil {
			t.Fatalf("Runtime error: %v", err)
		}
		states = append(states, state)
		if state == Yield && in.IP() != 2 {
			t.Errorf("Expected ip to stay on the call, got %d", in.IP())
		}
		if state == Stop {
			break
		}
	}

	want := []State{Continue, Continue, Yield, Yield, Continue, Continue, Continue, Stop}
	if len(states) != len(want) {
		t.Fatalf("Expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Step %d: expected %v, got %v", i, want[i], states[i])
		}
	}
	if slow.stats.instances != 1 {
		t.Errorf("Expected retries to reuse one instance, got %d", slow.stats.instances)
	}
	expectLog(t, log, []string{"a 1", "a 2"})
}

type failing struct{}

func (failing) Call([]types.Value) (bool, error)  { return false, errors.New("motor jammed") }
func (failing) CheckSyntax([]bytecode.Arg) error { return nil }

func TestHostErrorIsWrapped(t *testing.T) {
	in := compileAi(t, "jam;", map[string]bytecode.Callable{"jam": failing{}})
	err := in.Interpret()
	if !errors.Is(err, types.ErrHost) {
		t.Fatalf("Expected host error, got %v", err)
	}
	if !strings.Contains(err.Error(), "motor jammed") || !strings.Contains(err.Error(), "jam") {
		t.Errorf("Expected callable name and message in %q", err.Error())
	}
}

func TestAbandonTerminatesPending(t *testing.T) {
	tests := []struct {
		name    string
		abandon func(in *Interpreter)
	}{
		{"stop", (*Interpreter).Stop},
		{"reset", (*Interpreter).Reset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait := newTicker()
			in := compileAi(t, "wait 5;", map[string]bytecode.Callable{"wait": wait})
			for {
				state, err := in.Step()
				if err != nil {
					t.Fatalf("Runtime error: %v", err)
				}
				if state == Yield {
					break
				}
			}
			tt.abandon(in)
			tt.abandon(in)
			if wait.stats.terminated != 1 {
				t.Errorf("Expected pending call to be terminated once, got %d", wait.stats.terminated)
			}
			if in.Running() || in.IP() != 0 {
				t.Errorf("Expected a reset interpreter, running=%v ip=%d", in.Running(), in.IP())
			}
		})
	}
}

// === Verification and registration ===

func TestVerifyReportsAllMissing(t *testing.T) {
	code := []bytecode.Op{
		bytecode.Get("a"),
		bytecode.Call("b", 1),
		bytecode.Get("a"),
		bytecode.Set("c"),
		bytecode.Call("b", 0),
	}
	in := New(bytecode.NewProgram(code))

	_, err := in.Step()
	var errs types.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("Expected aggregated errors, got %v", err)
	}
	want := []struct {
		kind types.ErrorKind
		name string
	}{
		{types.ErrUnregisteredProperty, "a"},
		{types.ErrUnregisteredCallable, "b"},
		{types.ErrUnregisteredProperty, "c"},
	}
	if len(errs) != len(want) {
		t.Fatalf("Expected %d errors, got %v", len(want), errs)
	}
	for i, w := range want {
		if errs[i].Kind != w.kind || errs[i].Name != w.name {
			t.Errorf("Error %d: expected %v %q, got %v", i, w.kind, w.name, errs[i])
		}
	}
	if in.Running() {
		t.Error("Expected interpreter to stay idle after failed verification")
	}

	// Registering what was missing lets the same interpreter run
	var log []string
	a := &testProp{value: types.Number(4)}
	c := &testProp{value: types.Number(0), settable: true}
	if err := in.RegisterProperty("a", a); err != nil {
		t.Fatal(err)
	}
	if err := in.RegisterProperty("c", c); err != nil {
		t.Fatal(err)
	}
	if err := in.RegisterCallable("b", &recorder{name: "b", log: &log}); err != nil {
		t.Fatal(err)
	}
	if err := in.Interpret(); err != nil {
		t.Fatalf("Runtime error: %v", err)
	}
	if !c.value.Equal(types.Number(4)) {
		t.Errorf("Expected c = 4, got %v", c.value)
	}
	expectLog(t, log, []string{"b 4", "b"})
}

func TestVerifyRejectsUnsettable(t *testing.T) {
	in := New(bytecode.NewProgram([]bytecode.Op{bytecode.Push(types.Number(1)), bytecode.Set("p")}))
	if err := in.RegisterProperty("p", &testProp{value: types.Number(0)}); err != nil {
		t.Fatal(err)
	}
	if err := in.Verify(); !errors.Is(err, types.ErrUnsettableProperty) {
		t.Errorf("Expected unsettable property, got %v", err)
	}
}

func TestVerifyRejectsConcurrentCallOfSequence(t *testing.T) {
	code := []bytecode.Op{
		bytecode.Jump(3),
		bytecode.Label("g"),
		bytecode.Simple(bytecode.OpReturn),
		bytecode.CallParallel("g", 0),
		bytecode.CallRace("h", 0),
	}
	in := New(bytecode.NewProgram(code))
	if err := in.RegisterCallable("h", newTicker()); err != nil {
		t.Fatal(err)
	}
	err := in.Verify()
	var errs types.Errors
	if !errors.As(err, &errs) || len(errs) != 2 {
		t.Fatalf("Expected two errors, got %v", err)
	}
	for _, e := range errs {
		if e.Kind != types.ErrInvalidCall {
			t.Errorf("Expected invalid call, got %v", e)
		}
	}
}

func TestVerifyJumpTargets(t *testing.T) {
	code := []bytecode.Op{
		bytecode.Jump(1), // one past the end is a valid exit
		bytecode.Jump(7),
	}
	err := New(bytecode.NewProgram(code)).Verify()
	var errs types.Errors
	if !errors.As(err, &errs) || len(errs) != 1 || errs[0].Addr != 1 {
		t.Errorf("Expected one bad jump at 1, got %v", err)
	}
}

func TestRegistrationConflicts(t *testing.T) {
	in := New(bytecode.NewProgram([]bytecode.Op{bytecode.Label("g"), bytecode.Simple(bytecode.OpReturn)}))

	if err := in.RegisterCallable("g", newTicker()); !errors.Is(err, types.ErrDuplicateCallable) {
		t.Errorf("Expected group name clash, got %v", err)
	}
	if err := in.RegisterProperty("p", &testProp{}); err != nil {
		t.Fatal(err)
	}
	if err := in.RegisterCallable("p", newTicker()); !errors.Is(err, types.ErrDuplicateCallable) {
		t.Errorf("Expected property name clash, got %v", err)
	}
	if err := in.RegisterProperty("p", &testProp{}); !errors.Is(err, types.ErrDuplicateProperty) {
		t.Errorf("Expected duplicate property, got %v", err)
	}
	if _, ok := in.Program().Resolve("p"); ok {
		t.Error("Failed registration must not change the tables")
	}
}

func TestRegisterWhileRunning(t *testing.T) {
	wait := newTicker()
	in := compileAi(t, "wait 2;", map[string]bytecode.Callable{"wait": wait})
	if _, err := in.Step(); err != nil {
		t.Fatal(err)
	}
	if err := in.RegisterProperty("late", &testProp{}); !errors.Is(err, types.ErrInterpreterActive) {
		t.Errorf("Expected interpreter active, got %v", err)
	}
	if err := in.Interpret(); err != nil {
		t.Fatal(err)
	}
	if err := in.RegisterProperty("late", &testProp{}); err != nil {
		t.Errorf("Expected registration after Stop to succeed, got %v", err)
	}
}
