package sandbox

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/ailang/ai/pkg/interpreter"
	"github.com/ailang/ai/pkg/telemetry"
)

var log = commonlog.GetLogger("ai.sandbox")

// Recorder receives run telemetry. *telemetry.Recorder implements it.
type Recorder interface {
	BeginRun(id uuid.UUID, script string) error
	RecordTick(t telemetry.Tick) error
	EndRun(id uuid.UUID, ticks int, err error) error
}

// Scheduler runs the sandbox tick loop.
type Scheduler struct {
	Sandbox *Sandbox
	Interp  *interpreter.Interpreter
	Budget  int // instructions per tick (0 = unlimited)

	RunID    uuid.UUID
	Script   string
	Recorder Recorder // optional

	// Ticks run so far
	Ticks int
}

// NewScheduler creates a scheduler with a fresh run id.
func NewScheduler(sb *Sandbox, interp *interpreter.Interpreter, budget int) *Scheduler {
	return &Scheduler{
		Sandbox: sb,
		Interp:  interp,
		Budget:  budget,
		RunID:   uuid.New(),
	}
}

// Tick steps the script until it yields, stops, fails or uses up the
// instruction budget, then advances world time.
func (s *Scheduler) Tick() (interpreter.State, error) {
	state := interpreter.Continue
	var err error
	steps := 0
	for s.Budget == 0 || steps < s.Budget {
		state, err = s.Interp.Step()
		steps++
		if err != nil || state != interpreter.Continue {
			break
		}
	}
	if state == interpreter.Continue && err == nil {
		log.Debugf("tick %d: budget of %d instruction(s) used up", s.Sandbox.World.Tick, s.Budget)
	}

	w := s.Sandbox.World
	w.Tick++
	s.Ticks++

	if s.Recorder != nil {
		r := s.Sandbox.Robot
		rec := telemetry.Tick{
			Run:     s.RunID,
			Tick:    w.Tick,
			X:       r.X,
			Y:       r.Y,
			Heading: r.Heading,
			State:   state.String(),
			Steps:   steps,
			Props:   s.Sandbox.Snapshot(),
		}
		if rerr := s.Recorder.RecordTick(rec); rerr != nil {
			log.Warningf("run %s: %s", s.RunID, rerr)
		}
	}
	return state, err
}

// Run ticks until the script stops, fails or maxTicks ticks have run
// (0 = no limit). It returns the last state.
func (s *Scheduler) Run(maxTicks int) (interpreter.State, error) {
	if s.Recorder != nil {
		if err := s.Recorder.BeginRun(s.RunID, s.Script); err != nil {
			return interpreter.Stop, err
		}
	}
	log.Infof("run %s: starting %s", s.RunID, s.Script)

	var state interpreter.State
	var err error
	for maxTicks == 0 || s.Ticks < maxTicks {
		state, err = s.Tick()
		if err != nil || state == interpreter.Stop {
			break
		}
	}
	if err == nil && state != interpreter.Stop {
		log.Warningf("run %s: tick limit %d reached", s.RunID, maxTicks)
		s.Interp.Stop()
	}
	log.Infof("run %s: %d tick(s), robot at (%d, %d), %d beacon(s) collected",
		s.RunID, s.Ticks, s.Sandbox.Robot.X, s.Sandbox.Robot.Y, s.Sandbox.Robot.Collected)

	if s.Recorder != nil {
		if rerr := s.Recorder.EndRun(s.RunID, s.Ticks, err); rerr != nil && err == nil {
			err = rerr
		}
	}
	return state, err
}
