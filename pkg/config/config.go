// Package config handles sandbox configuration files (ai.toml or ai.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is a sandbox run configuration.
type Config struct {
	World World  `toml:"world" yaml:"world"`
	Robot Robot  `toml:"robot" yaml:"robot"`
	Run   Run    `toml:"run" yaml:"run"`
	Props []Prop `toml:"props" yaml:"props"`
}

// World describes the grid.
type World struct {
	Width   int      `toml:"width" yaml:"width"`
	Height  int      `toml:"height" yaml:"height"`
	Seed    int64    `toml:"seed" yaml:"seed"`
	Walls   [][2]int `toml:"walls" yaml:"walls"`
	Beacons [][2]int `toml:"beacons" yaml:"beacons"`
	// RandomBeacons places this many extra beacons from Seed
	RandomBeacons int `toml:"random-beacons" yaml:"random_beacons"`
	// Border surrounds the grid with walls
	Border bool `toml:"border" yaml:"border"`
}

// Robot is the start pose.
type Robot struct {
	X       int `toml:"x" yaml:"x"`
	Y       int `toml:"y" yaml:"y"`
	Heading int `toml:"heading" yaml:"heading"`
	Speed   int `toml:"speed" yaml:"speed"`
}

// Run limits execution.
type Run struct {
	Ticks  int `toml:"ticks" yaml:"ticks"`
	Budget int `toml:"budget" yaml:"budget"`
}

// Prop is an extra script property.
type Prop struct {
	Name     string `toml:"name" yaml:"name"`
	Value    any    `toml:"value" yaml:"value"`
	Settable bool   `toml:"settable" yaml:"settable"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads a configuration file. The format follows the extension:
// .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes configuration bytes. path selects the format and is used
// in error messages.
func Parse(data []byte, path string) (*Config, error) {
	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unknown config format (want .toml, .yaml or .yml)", path)
	}
	c.setDefaults()
	if err := c.validate(path); err != nil {
		return nil, err
	}
	return &c, nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.World.Width == 0 {
		c.World.Width = 16
	}
	if c.World.Height == 0 {
		c.World.Height = 16
	}
	if c.Robot.Speed == 0 {
		c.Robot.Speed = 1
	}
	if c.Run.Ticks == 0 {
		c.Run.Ticks = 1000
	}
	if c.Run.Budget == 0 {
		c.Run.Budget = 10000
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	w := c.World
	if w.Width < 1 || w.Height < 1 {
		return fmt.Errorf("%s: world size must be positive", path)
	}
	inside := func(p [2]int) bool {
		return p[0] >= 0 && p[0] < w.Width && p[1] >= 0 && p[1] < w.Height
	}
	if !inside([2]int{c.Robot.X, c.Robot.Y}) {
		return fmt.Errorf("%s: robot start (%d, %d) is outside the world", path, c.Robot.X, c.Robot.Y)
	}
	if c.Robot.Heading%90 != 0 {
		return fmt.Errorf("%s: robot heading must be a multiple of 90", path)
	}
	for i, p := range w.Walls {
		if !inside(p) {
			return fmt.Errorf("%s: walls[%d] is outside the world", path, i)
		}
	}
	for i, p := range w.Beacons {
		if !inside(p) {
			return fmt.Errorf("%s: beacons[%d] is outside the world", path, i)
		}
	}
	seen := make(map[string]bool)
	for i, p := range c.Props {
		if p.Name == "" {
			return fmt.Errorf("%s: props[%d]: name is required", path, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%s: props[%d]: duplicate name %q", path, i, p.Name)
		}
		seen[p.Name] = true
	}
	if c.Run.Ticks < 0 || c.Run.Budget < 0 {
		return fmt.Errorf("%s: run limits must not be negative", path)
	}
	return nil
}
