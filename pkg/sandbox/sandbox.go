package sandbox

import (
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/ailang/ai/pkg/bytecode"
	"github.com/ailang/ai/pkg/config"
	"github.com/ailang/ai/pkg/host"
	"github.com/ailang/ai/pkg/types"
)

// Sandbox holds the world and the capabilities it exposes to scripts.
type Sandbox struct {
	World  *World
	Robot  *Robot
	Output io.Writer

	props map[string]bytecode.Prop
}

// New builds a world from cfg.
func New(cfg *config.Config, out io.Writer) (*Sandbox, error) {
	wc := cfg.World
	w := NewWorld(wc.Width, wc.Height, rand.New(rand.NewSource(wc.Seed)))
	if wc.Border {
		w.AddBorder()
	}
	for _, p := range wc.Walls {
		w.SetTile(p[0], p[1], MakeTile(TileWall))
	}
	for _, p := range wc.Beacons {
		w.SetTile(p[0], p[1], MakeTile(TileBeacon))
	}
	rc := cfg.Robot
	if w.Blocked(rc.X, rc.Y) {
		return nil, fmt.Errorf("robot start (%d, %d) is inside a wall", rc.X, rc.Y)
	}
	w.Robot = NewRobot(rc.X, rc.Y, rc.Heading, rc.Speed)
	w.ScatterBeacons(wc.RandomBeacons)

	s := &Sandbox{World: w, Robot: w.Robot, Output: out}
	s.props = s.sensors()
	for _, p := range cfg.Props {
		if _, ok := s.props[p.Name]; ok {
			return nil, fmt.Errorf("property %q shadows a sensor", p.Name)
		}
		v, err := types.FromGo(p.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		if p.Settable {
			s.props[p.Name] = host.NewVar(v)
		} else {
			s.props[p.Name] = host.ReadOnly{Value: v}
		}
	}
	return s, nil
}

func number(n int) types.Value { return types.Number(n) }

// sensors are the built-in robot properties.
func (s *Sandbox) sensors() map[string]bytecode.Prop {
	r, w := s.Robot, s.World
	return map[string]bytecode.Prop{
		"x":         host.Func{Getter: func() types.Value { return number(r.X) }},
		"y":         host.Func{Getter: func() types.Value { return number(r.Y) }},
		"heading":   host.Func{Getter: func() types.Value { return number(r.Heading) }},
		"odometer":  host.Func{Getter: func() types.Value { return number(r.Odometer) }},
		"collected": host.Func{Getter: func() types.Value { return number(r.Collected) }},
		"bumps":     host.Func{Getter: func() types.Value { return number(r.Bumps) }},
		"beacons":   host.Func{Getter: func() types.Value { return number(w.Beacons()) }},
		"tick":      host.Func{Getter: func() types.Value { return number(w.Tick) }},
		"beacon": host.Func{Getter: func() types.Value {
			return number(w.NearestBeacon(r.X, r.Y))
		}},
		"distance": host.Func{Getter: func() types.Value {
			dx, dy := r.Direction()
			return number(w.FreeAhead(r.X, r.Y, dx, dy))
		}},
		"on_beacon": host.Func{Getter: func() types.Value {
			return types.Boolean(w.TileAt(r.X, r.Y).Type() == TileBeacon)
		}},
		"speed": host.Func{
			Getter: func() types.Value { return number(r.Speed) },
			Setter: func(v types.Value) error {
				n, ok := v.(types.Number)
				if !ok || n < 1 || n != types.Number(int(n)) {
					return fmt.Errorf("speed must be a whole number of cells >= 1, got %s", v)
				}
				r.Speed = int(n)
				return nil
			},
		},
	}
}

// Register exposes the robot sensors, motions and the standard wait/print
// commands to r.
func (s *Sandbox) Register(r host.Registrar) error {
	for _, name := range s.PropNames() {
		if err := r.RegisterProperty(name, s.props[name]); err != nil {
			return err
		}
	}
	commands := []struct {
		name    string
		factory host.Factory
		checker host.Checker
	}{
		{"forward", s.move(1), host.SimpleArgs(1)},
		{"back", s.move(-1), host.SimpleArgs(1)},
		{"left", s.turn(1), host.DefineSyntax("* degrees")},
		{"right", s.turn(-1), host.DefineSyntax("* degrees")},
		{"collect", s.collect, host.NoArgs()},
	}
	for _, c := range commands {
		if err := host.Register(r, c.name, c.factory, c.checker); err != nil {
			return err
		}
	}
	return host.RegisterStandard(r, s.Output)
}

// PropNames lists the exposed properties in sorted order.
func (s *Sandbox) PropNames() []string {
	names := make([]string, 0, len(s.props))
	for n := range s.props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot renders every property value for telemetry.
func (s *Sandbox) Snapshot() map[string]string {
	out := make(map[string]string, len(s.props))
	for n, p := range s.props {
		out[n] = types.Display(p.Get())
	}
	return out
}

func wholeNumber(cmd string, args []types.Value) (int, error) {
	if err := host.ExpectArgs(cmd, args, 1); err != nil {
		return 0, err
	}
	n, ok := args[0].(types.Number)
	if !ok {
		return 0, fmt.Errorf("%s expects a number, got %s", cmd, args[0].Type())
	}
	return int(n), nil
}

// moveCommand drives up to Speed cells per tick until the distance is
// covered or a wall blocks the way.
type moveCommand struct {
	s       *Sandbox
	sign    int
	cells   int
	moved   int
	blocked bool
}

func (s *Sandbox) move(sign int) host.Factory {
	return func(args []types.Value) (host.Command, error) {
		n, err := wholeNumber("move", args)
		if err != nil {
			return nil, err
		}
		sign := sign
		if n < 0 {
			sign, n = -sign, -n
		}
		return &moveCommand{s: s, sign: sign, cells: n}, nil
	}
}

func (m *moveCommand) Initialize() {}

func (m *moveCommand) Execute() {
	for i := 0; i < m.s.Robot.Speed && m.moved < m.cells; i++ {
		if !m.s.Robot.Step(m.s.World, m.sign) {
			m.blocked = true
			return
		}
		m.moved++
	}
}

func (m *moveCommand) IsFinished() bool { return m.blocked || m.moved >= m.cells }
func (m *moveCommand) End(bool)         {}

// turnCommand rotates at most 90 degrees per tick.
type turnCommand struct {
	s         *Sandbox
	remaining int
}

func (s *Sandbox) turn(sign int) host.Factory {
	return func(args []types.Value) (host.Command, error) {
		n, err := wholeNumber("turn", args)
		if err != nil {
			return nil, err
		}
		return &turnCommand{s: s, remaining: sign * n}, nil
	}
}

func (t *turnCommand) Initialize() {}

func (t *turnCommand) Execute() {
	step := t.remaining
	if step > 90 {
		step = 90
	} else if step < -90 {
		step = -90
	}
	t.s.Robot.Turn(step)
	t.remaining -= step
}

func (t *turnCommand) IsFinished() bool { return t.remaining == 0 }
func (t *turnCommand) End(bool)         {}

type collectCommand struct {
	s    *Sandbox
	done bool
}

func (s *Sandbox) collect(args []types.Value) (host.Command, error) {
	if err := host.ExpectArgs("collect", args, 0); err != nil {
		return nil, err
	}
	return &collectCommand{s: s}, nil
}

func (c *collectCommand) Initialize()      {}
func (c *collectCommand) Execute()         { c.s.Robot.Collect(c.s.World); c.done = true }
func (c *collectCommand) IsFinished() bool { return c.done }
func (c *collectCommand) End(bool)         {}
