// Package sandbox is a reference Ai host: a robot on a tile grid whose
// sensors are script properties and whose motions are multi-tick
// callables, driven by a fixed-rate tick scheduler.
package sandbox

import (
	"math/rand"
	"strings"
)

// Tile types
const (
	TileEmpty = iota
	TileWall
	TileBeacon
)

// Tile is one grid cell.
type Tile byte

func MakeTile(typ byte) Tile {
	return Tile(typ)
}

func (t Tile) Type() byte { return byte(t) }

// World is a Width×Height tile grid with one robot.
type World struct {
	Width, Height int
	Grid          []Tile
	Robot         *Robot
	Tick          int

	// Cached tile count (maintained by SetTile)
	beaconCount int

	Rng *rand.Rand
}

// NewWorld creates an empty world.
func NewWorld(width, height int, rng *rand.Rand) *World {
	return &World{
		Width:  width,
		Height: height,
		Grid:   make([]Tile, width*height),
		Rng:    rng,
	}
}

func (w *World) idx(x, y int) int {
	return y*w.Width + x
}

func (w *World) InBounds(x, y int) bool {
	return x >= 0 && x < w.Width && y >= 0 && y < w.Height
}

// TileAt returns the tile at (x,y); everything outside the grid is wall.
func (w *World) TileAt(x, y int) Tile {
	if !w.InBounds(x, y) {
		return Tile(TileWall)
	}
	return w.Grid[w.idx(x, y)]
}

func (w *World) SetTile(x, y int, t Tile) {
	if !w.InBounds(x, y) {
		return
	}
	i := w.idx(x, y)
	if w.Grid[i].Type() == TileBeacon {
		w.beaconCount--
	}
	if t.Type() == TileBeacon {
		w.beaconCount++
	}
	w.Grid[i] = t
}

// Blocked reports whether the robot cannot enter (x,y).
func (w *World) Blocked(x, y int) bool {
	return w.TileAt(x, y).Type() == TileWall
}

// Beacons returns the number of beacons left.
func (w *World) Beacons() int {
	return w.beaconCount
}

// AddBorder walls off the outermost ring of cells.
func (w *World) AddBorder() {
	for x := 0; x < w.Width; x++ {
		w.SetTile(x, 0, MakeTile(TileWall))
		w.SetTile(x, w.Height-1, MakeTile(TileWall))
	}
	for y := 0; y < w.Height; y++ {
		w.SetTile(0, y, MakeTile(TileWall))
		w.SetTile(w.Width-1, y, MakeTile(TileWall))
	}
}

// ScatterBeacons places up to n beacons on random empty tiles.
func (w *World) ScatterBeacons(n int) {
	for i := 0; i < n; i++ {
		for tries := 0; tries < 50; tries++ {
			x := w.Rng.Intn(w.Width)
			y := w.Rng.Intn(w.Height)
			if w.TileAt(x, y).Type() == TileEmpty && !w.robotAt(x, y) {
				w.SetTile(x, y, MakeTile(TileBeacon))
				break
			}
		}
	}
}

func (w *World) robotAt(x, y int) bool {
	return w.Robot != nil && w.Robot.X == x && w.Robot.Y == y
}

// NearestBeacon returns the Manhattan distance to the closest beacon, or
// -1 when none are left.
func (w *World) NearestBeacon(x, y int) int {
	best := -1
	for i, t := range w.Grid {
		if t.Type() != TileBeacon {
			continue
		}
		d := abs(i%w.Width-x) + abs(i/w.Width-y)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// FreeAhead counts the open cells in front of (x,y) along (dx,dy).
func (w *World) FreeAhead(x, y, dx, dy int) int {
	n := 0
	for {
		x, y = x+dx, y+dy
		if w.Blocked(x, y) {
			return n
		}
		n++
	}
}

// Render draws the grid: '#' wall, '*' beacon, robot as an arrow.
func (w *World) Render() string {
	var sb strings.Builder
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			switch {
			case w.robotAt(x, y):
				sb.WriteByte(w.Robot.Glyph())
			case w.TileAt(x, y).Type() == TileWall:
				sb.WriteByte('#')
			case w.TileAt(x, y).Type() == TileBeacon:
				sb.WriteByte('*')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
