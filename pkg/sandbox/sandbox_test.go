package sandbox

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/ailang/ai/pkg/config"
	"github.com/ailang/ai/pkg/engine"
	"github.com/ailang/ai/pkg/interpreter"
	"github.com/ailang/ai/pkg/telemetry"
	"github.com/ailang/ai/pkg/types"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// === World Tests ===

func TestWorldCreation(t *testing.T) {
	w := NewWorld(5, 4, testRng())
	if w.Width != 5 || w.Height != 4 || len(w.Grid) != 20 {
		t.Fatalf("Unexpected world %dx%d with %d tiles", w.Width, w.Height, len(w.Grid))
	}
	w.AddBorder()
	if !w.Blocked(0, 0) || !w.Blocked(4, 3) || w.Blocked(2, 2) {
		t.Error("Border walls misplaced")
	}
	if !w.Blocked(-1, 2) || !w.Blocked(5, 0) {
		t.Error("Outside the grid must be wall")
	}
}

func TestBeaconCount(t *testing.T) {
	w := NewWorld(5, 5, testRng())
	w.SetTile(1, 1, MakeTile(TileBeacon))
	w.SetTile(3, 3, MakeTile(TileBeacon))
	if w.Beacons() != 2 {
		t.Fatalf("Expected 2 beacons, got %d", w.Beacons())
	}
	w.SetTile(1, 1, MakeTile(TileWall))
	if w.Beacons() != 1 {
		t.Errorf("Expected overwriting to update the count, got %d", w.Beacons())
	}
	if d := w.NearestBeacon(0, 0); d != 6 {
		t.Errorf("Expected distance 6, got %d", d)
	}
	w.SetTile(3, 3, MakeTile(TileEmpty))
	if d := w.NearestBeacon(0, 0); d != -1 {
		t.Errorf("Expected -1 without beacons, got %d", d)
	}
}

func TestScatterBeacons(t *testing.T) {
	w := NewWorld(8, 8, testRng())
	w.Robot = NewRobot(0, 0, 0, 1)
	w.ScatterBeacons(5)
	if w.Beacons() != 5 {
		t.Errorf("Expected 5 beacons, got %d", w.Beacons())
	}
	if w.TileAt(0, 0).Type() == TileBeacon {
		t.Error("Beacon placed under the robot")
	}
}

func TestRender(t *testing.T) {
	w := NewWorld(4, 3, testRng())
	w.AddBorder()
	w.SetTile(2, 1, MakeTile(TileBeacon))
	w.Robot = NewRobot(1, 1, 0, 1)
	expected := "####\n#>*#\n####\n"
	if got := w.Render(); got != expected {
		t.Errorf("Expected:\n%s\nGot:\n%s", expected, got)
	}
}

// === Robot Tests ===

func TestRobotDirections(t *testing.T) {
	tests := []struct {
		heading int
		dx, dy  int
		glyph   byte
	}{
		{0, 1, 0, '>'},
		{90, 0, -1, '^'},
		{180, -1, 0, '<'},
		{270, 0, 1, 'v'},
		{-90, 0, 1, 'v'},
		{450, 0, -1, '^'},
	}
	for _, tt := range tests {
		r := NewRobot(0, 0, tt.heading, 1)
		dx, dy := r.Direction()
		if dx != tt.dx || dy != tt.dy || r.Glyph() != tt.glyph {
			t.Errorf("Heading %d: expected (%d,%d) %c, got (%d,%d) %c",
				tt.heading, tt.dx, tt.dy, tt.glyph, dx, dy, r.Glyph())
		}
	}
}

func TestRobotStep(t *testing.T) {
	w := NewWorld(3, 1, testRng())
	r := NewRobot(0, 0, 0, 1)
	if !r.Step(w, 1) || !r.Step(w, 1) {
		t.Fatal("Expected two free steps")
	}
	if r.Step(w, 1) {
		t.Error("Expected the edge to block")
	}
	if r.X != 2 || r.Odometer != 2 || r.Bumps != 1 {
		t.Errorf("Unexpected robot %+v", r)
	}
	if !r.Step(w, -1) || r.X != 1 {
		t.Errorf("Expected to back up to 1, got %d", r.X)
	}
}

// === Script Tests ===

type scriptResult struct {
	sb     *Sandbox
	sched  *Scheduler
	output string
	err    error
}

// runScript compiles src against a sandbox built from cfg and runs it to
// completion.
func runScript(t *testing.T, cfg *config.Config, src string) scriptResult {
	t.Helper()
	var out bytes.Buffer
	sb, err := New(cfg, &out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e := engine.New()
	if err := sb.Register(e); err != nil {
		t.Fatalf("Register: %v", err)
	}
	interp, err := e.Convert("test.ai", src)
	if err != nil {
		return scriptResult{sb: sb, output: out.String(), err: err}
	}
	sched := NewScheduler(sb, interp, cfg.Run.Budget)
	state, err := sched.Run(100)
	if err == nil && state != interpreter.Stop {
		t.Fatalf("Script did not stop within 100 ticks")
	}
	return scriptResult{sb: sb, sched: sched, output: out.String(), err: err}
}

func at(x, y int) func(*config.Config) {
	return func(c *config.Config) { c.Robot.X, c.Robot.Y = x, y }
}

func boxed(c *config.Config) {
	c.World.Width, c.World.Height = 5, 5
	c.World.Border = true
	c.Robot.X, c.Robot.Y = 1, 1
}

func TestScripts(t *testing.T) {
	tests := []struct {
		name   string
		setup  []func(*config.Config)
		src    string
		ticks  int
		x, y   int
		output string
	}{
		{"forward spans ticks", nil, `forward 3;`, 3, 3, 0, ""},
		{"speed setting", nil, `
			use $speed;
			$speed = 2;
			forward 3;`, 2, 3, 0, ""},
		{"blocked move ends early", []func(*config.Config){func(c *config.Config) {
			c.World.Walls = [][2]int{{2, 0}}
		}}, `forward 5;`, 2, 1, 0, ""},
		{"back", []func(*config.Config){at(5, 5)}, `back 2;`, 2, 3, 5, ""},
		{"negative forward", []func(*config.Config){at(5, 5)}, `forward -1;`, 1, 4, 5, ""},
		{"collect", []func(*config.Config){func(c *config.Config) {
			c.World.Beacons = [][2]int{{2, 0}}
		}}, `
			use $collected;
			use $beacons;
			forward 2;
			collect;
			print $collected $beacons;`, 2, 2, 0, "1 0\n"},
		{"sensors", []func(*config.Config){boxed, func(c *config.Config) {
			c.World.Beacons = [][2]int{{3, 3}}
		}}, `
			use $distance;
			use $beacon;
			use $on_beacon;
			print $distance $beacon $on_beacon;`, 1, 1, 1, "2 4 false\n"},
		{"drive to the wall", []func(*config.Config){boxed}, `
			use $distance;
			while $distance > 0 { forward 1; }`, 1, 3, 1, ""},
		{"tick sensor", nil, `
			use $tick;
			wait 3;
			print $tick;`, 3, 0, 0, "2\n"},
		{"race stops the slower branch", nil, `
			race group seek {
				forward 10;
				wait 3;
			}
			seek;`, 3, 3, 0, ""},
		{"parallel drive and turn", []func(*config.Config){at(5, 5)}, `
			parallel group both {
				forward 2;
				left 90 degrees;
			}
			both;`, 2, 6, 4, ""},
		{"config properties", []func(*config.Config){func(c *config.Config) {
			c.Props = []config.Prop{
				{Name: "target", Value: int64(4)},
				{Name: "mode", Value: "scout", Settable: true},
			}
		}}, `
			use $target;
			use $mode;
			print $mode;
			$mode = "done";
			forward $target;
			print $mode;`, 4, 4, 0, "scout\ndone\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			for _, f := range tt.setup {
				f(cfg)
			}
			res := runScript(t, cfg, tt.src)
			if res.err != nil {
				t.Fatalf("Run error: %v", res.err)
			}
			if res.sched.Ticks != tt.ticks {
				t.Errorf("Expected %d ticks, got %d", tt.ticks, res.sched.Ticks)
			}
			r := res.sb.Robot
			if r.X != tt.x || r.Y != tt.y {
				t.Errorf("Expected robot at (%d, %d), got (%d, %d)", tt.x, tt.y, r.X, r.Y)
			}
			if res.output != tt.output {
				t.Errorf("Expected output %q, got %q", tt.output, res.output)
			}
		})
	}
}

func TestTurns(t *testing.T) {
	tests := []struct {
		src     string
		ticks   int
		heading int
	}{
		{"left 90 degrees;", 1, 90},
		{"left 180 degrees;", 2, 180},
		{"right 90 degrees;", 1, 270},
		{"right 270 degrees;", 3, 90},
		{"left 45 degrees; left 45 degrees;", 1, 90},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res := runScript(t, config.Default(), tt.src)
			if res.err != nil {
				t.Fatalf("Run error: %v", res.err)
			}
			if res.sched.Ticks != tt.ticks || res.sb.Robot.Heading != tt.heading {
				t.Errorf("Expected heading %d after %d tick(s), got %d after %d",
					tt.heading, tt.ticks, res.sb.Robot.Heading, res.sched.Ticks)
			}
		})
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind types.ErrorKind
		msg  string
	}{
		{"speed must be positive", "use $speed; $speed = 0;", types.ErrHost, "speed must be a whole number"},
		{"forward needs a number", `forward "far";`, types.ErrHost, "expects a number"},
		{"sensors are read-only", "use $x; $x = 1;", types.ErrUnsettableProperty, "'x'"},
		{"turns need degrees", "left 90;", types.ErrCallSyntax, "Incorrect argument count"},
		{"unknown command", "fly 3;", types.ErrUnregisteredCallable, "'fly'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runScript(t, config.Default(), tt.src)
			if !errors.Is(res.err, tt.kind) {
				t.Fatalf("Expected %v, got %v", tt.kind, res.err)
			}
			if !strings.Contains(res.err.Error(), tt.msg) {
				t.Errorf("Expected %q in %q", tt.msg, res.err.Error())
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.World.Walls = [][2]int{{0, 0}}
	if _, err := New(cfg, &bytes.Buffer{}); err == nil {
		t.Error("Expected robot-in-wall error")
	}

	cfg = config.Default()
	cfg.Props = []config.Prop{{Name: "heading", Value: int64(1)}}
	if _, err := New(cfg, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "shadows a sensor") {
		t.Errorf("Expected shadowing error, got %v", err)
	}

	cfg = config.Default()
	cfg.Props = []config.Prop{{Name: "odd", Value: []int{1}}}
	if _, err := New(cfg, &bytes.Buffer{}); err == nil {
		t.Error("Expected unsupported value error")
	}
}

func TestRegisterTwice(t *testing.T) {
	sb, err := New(config.Default(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	e := engine.New()
	if err := sb.Register(e); err != nil {
		t.Fatal(err)
	}
	if err := sb.Register(e); !errors.Is(err, types.ErrDuplicateProperty) {
		t.Errorf("Expected duplicate property, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	sb, err := New(config.Default(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	snap := sb.Snapshot()
	if snap["x"] != "0" || snap["on_beacon"] != "false" || snap["speed"] != "1" {
		t.Errorf("Unexpected snapshot %v", snap)
	}
	names := sb.PropNames()
	if len(names) != len(snap) || names[0] != "beacon" {
		t.Errorf("Expected sorted names, got %v", names)
	}
}

// === Scheduler Tests ===

func TestSchedulerBudget(t *testing.T) {
	var out bytes.Buffer
	sb, err := New(config.Default(), &out)
	if err != nil {
		t.Fatal(err)
	}
	e := engine.New()
	if err := sb.Register(e); err != nil {
		t.Fatal(err)
	}
	interp, err := e.Convert("spin.ai", `
		$i = 0;
		while true { $i = $i + 1; }`)
	if err != nil {
		t.Fatal(err)
	}
	sched := NewScheduler(sb, interp, 10)
	state, err := sched.Run(3)
	if err != nil {
		t.Fatal(err)
	}
	if state != interpreter.Continue || sched.Ticks != 3 {
		t.Errorf("Expected to be cut off after 3 ticks, got %v after %d", state, sched.Ticks)
	}
	if interp.Running() {
		t.Error("Expected the tick limit to stop the interpreter")
	}
	if sb.World.Tick != 3 {
		t.Errorf("Expected world time 3, got %d", sb.World.Tick)
	}
}

func TestSchedulerRecordsTelemetry(t *testing.T) {
	rec, err := telemetry.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	sb, err := New(config.Default(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	e := engine.New()
	if err := sb.Register(e); err != nil {
		t.Fatal(err)
	}
	interp, err := e.Convert("line.ai", "forward 3;")
	if err != nil {
		t.Fatal(err)
	}
	sched := NewScheduler(sb, interp, 0)
	sched.Script = "line.ai"
	sched.Recorder = rec
	if _, err := sched.Run(10); err != nil {
		t.Fatal(err)
	}

	runs, err := rec.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != sched.RunID || runs[0].Script != "line.ai" || runs[0].Ticks != 3 {
		t.Fatalf("Unexpected runs %+v", runs)
	}

	ticks, err := rec.Ticks(sched.RunID)
	if err != nil {
		t.Fatal(err)
	}
	states := []string{"yield", "yield", "stop"}
	if len(ticks) != len(states) {
		t.Fatalf("Expected %d ticks, got %d", len(states), len(ticks))
	}
	for i, tk := range ticks {
		if tk.Tick != i+1 || tk.X != i+1 || tk.State != states[i] {
			t.Errorf("Tick %d: got %+v", i+1, tk)
		}
		if tk.Props["x"] != tk.Props["odometer"] {
			t.Errorf("Tick %d: props out of sync: %v", i+1, tk.Props)
		}
	}
}

func TestSchedulerRecordsErrors(t *testing.T) {
	rec, err := telemetry.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	sb, err := New(config.Default(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	e := engine.New()
	if err := sb.Register(e); err != nil {
		t.Fatal(err)
	}
	interp, err := e.Convert("bad.ai", `$r = 1 + "a";`)
	if err != nil {
		t.Fatal(err)
	}
	sched := NewScheduler(sb, interp, 0)
	sched.Recorder = rec
	if _, err := sched.Run(10); !errors.Is(err, types.ErrType) {
		t.Fatalf("Expected type error, got %v", err)
	}
	runs, err := rec.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || !strings.Contains(runs[0].Error, "Right operand must be a number") {
		t.Errorf("Expected the error to be recorded, got %+v", runs)
	}
}

func TestLoadedProgramsCheckArity(t *testing.T) {
	tests := []struct {
		ir  string
		msg string
	}{
		{"call forward 0", "move expects 1 argument(s), got 0"},
		{"push 1\npush 2\ncall back 2", "move expects 1 argument(s), got 2"},
		{"call left 0", "turn expects 1 argument(s), got 0"},
		{"push 1\ncall collect 1", "collect expects 0 argument(s), got 1"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			sb, err := New(config.Default(), &bytes.Buffer{})
			if err != nil {
				t.Fatal(err)
			}
			in, err := engine.FromIR(tt.ir)
			if err != nil {
				t.Fatal(err)
			}
			if err := sb.Register(in); err != nil {
				t.Fatal(err)
			}
			err = in.Interpret()
			if !errors.Is(err, types.ErrHost) || !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Expected host error %q, got %v", tt.msg, err)
			}
			if sb.Robot.X != 0 || sb.Robot.Heading != 0 {
				t.Errorf("Robot moved: %+v", sb.Robot)
			}
		})
	}
}
