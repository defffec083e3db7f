// Package telemetry records sandbox runs in a SQLite database: one row per
// run and one row per tick with the robot pose, the interpreter state and
// a snapshot of the script-visible properties.
package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("ai.telemetry")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	script   TEXT NOT NULL,
	started  TEXT NOT NULL,
	finished TEXT,
	ticks    INTEGER NOT NULL DEFAULT 0,
	error    TEXT
);
CREATE TABLE IF NOT EXISTS ticks (
	run     TEXT NOT NULL REFERENCES runs(id),
	tick    INTEGER NOT NULL,
	x       INTEGER NOT NULL,
	y       INTEGER NOT NULL,
	heading INTEGER NOT NULL,
	state   TEXT NOT NULL,
	steps   INTEGER NOT NULL,
	props   TEXT NOT NULL,
	PRIMARY KEY (run, tick)
);`

// Tick is one recorded simulation step.
type Tick struct {
	Run     uuid.UUID
	Tick    int
	X, Y    int
	Heading int
	State   string
	Steps   int
	Props   map[string]string
}

// Run summarizes a recorded run.
type Run struct {
	ID     uuid.UUID
	Script string
	Ticks  int
	Error  string
}

// Recorder writes runs to a SQLite database.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	// one connection keeps :memory: databases shared across statements
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: create schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// BeginRun registers a new run.
func (r *Recorder) BeginRun(id uuid.UUID, script string) error {
	_, err := r.db.Exec(`INSERT INTO runs (id, script, started) VALUES (?, ?, ?)`,
		id.String(), script, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("telemetry: begin run: %w", err)
	}
	log.Debugf("run %s started for %s", id, script)
	return nil
}

// RecordTick stores one tick.
func (r *Recorder) RecordTick(t Tick) error {
	props, err := json.Marshal(t.Props)
	if err != nil {
		return fmt.Errorf("telemetry: encode props: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO ticks (run, tick, x, y, heading, state, steps, props) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Run.String(), t.Tick, t.X, t.Y, t.Heading, t.State, t.Steps, string(props))
	if err != nil {
		return fmt.Errorf("telemetry: record tick %d: %w", t.Tick, err)
	}
	return nil
}

// EndRun marks a run finished. runErr is stored when non-nil.
func (r *Recorder) EndRun(id uuid.UUID, ticks int, runErr error) error {
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := r.db.Exec(`UPDATE runs SET finished = ?, ticks = ?, error = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), ticks, msg, id.String())
	if err != nil {
		return fmt.Errorf("telemetry: end run: %w", err)
	}
	log.Debugf("run %s finished after %d tick(s)", id, ticks)
	return nil
}

// Runs lists recorded runs, oldest first.
func (r *Recorder) Runs() ([]Run, error) {
	rows, err := r.db.Query(`SELECT id, script, ticks, COALESCE(error, '') FROM runs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("telemetry: list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var run Run
		var id string
		if err := rows.Scan(&id, &run.Script, &run.Ticks, &run.Error); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("telemetry: bad run id %q: %w", id, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Ticks returns the recorded ticks of a run in order.
func (r *Recorder) Ticks(id uuid.UUID) ([]Tick, error) {
	rows, err := r.db.Query(`SELECT tick, x, y, heading, state, steps, props FROM ticks WHERE run = ? ORDER BY tick`, id.String())
	if err != nil {
		return nil, fmt.Errorf("telemetry: list ticks: %w", err)
	}
	defer rows.Close()
	var out []Tick
	for rows.Next() {
		t := Tick{Run: id}
		var props string
		if err := rows.Scan(&t.Tick, &t.X, &t.Y, &t.Heading, &t.State, &t.Steps, &props); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &t.Props); err != nil {
			return nil, fmt.Errorf("telemetry: decode props: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
