package sandbox

// Headings are degrees counterclockwise from east; y grows downwards, so
// heading 90 moves towards y-1.

// Robot is the simulated vehicle a script drives.
type Robot struct {
	X, Y    int
	Heading int // normalized to [0, 360)
	Speed   int // cells per tick

	// Odometer counts cells travelled
	Odometer int
	// Collected counts beacons picked up
	Collected int
	// Bumps counts moves blocked by a wall
	Bumps int
}

// NewRobot creates a robot at the given pose.
func NewRobot(x, y, heading, speed int) *Robot {
	r := &Robot{X: x, Y: y, Speed: speed}
	r.Turn(heading)
	return r
}

// Turn rotates counterclockwise by deg (clockwise when negative).
func (r *Robot) Turn(deg int) {
	r.Heading = ((r.Heading+deg)%360 + 360) % 360
}

// Direction returns the unit step of the heading, snapped to the nearest
// multiple of 90 degrees.
func (r *Robot) Direction() (dx, dy int) {
	switch ((r.Heading + 45) / 90) % 4 {
	case 0:
		return 1, 0
	case 1:
		return 0, -1
	case 2:
		return -1, 0
	default:
		return 0, 1
	}
}

// Step moves one cell forwards (sign 1) or backwards (sign -1). It
// reports false when a wall is in the way.
func (r *Robot) Step(w *World, sign int) bool {
	dx, dy := r.Direction()
	nx, ny := r.X+sign*dx, r.Y+sign*dy
	if w.Blocked(nx, ny) {
		r.Bumps++
		return false
	}
	r.X, r.Y = nx, ny
	r.Odometer++
	return true
}

// Collect picks up a beacon under the robot.
func (r *Robot) Collect(w *World) bool {
	if w.TileAt(r.X, r.Y).Type() != TileBeacon {
		return false
	}
	w.SetTile(r.X, r.Y, MakeTile(TileEmpty))
	r.Collected++
	return true
}

// Glyph is the map character for the current heading.
func (r *Robot) Glyph() byte {
	switch dx, dy := r.Direction(); {
	case dx > 0:
		return '>'
	case dx < 0:
		return '<'
	case dy < 0:
		return '^'
	default:
		return 'v'
	}
}
