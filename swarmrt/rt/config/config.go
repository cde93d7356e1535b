// Package config loads run settings from YAML over built-in defaults.
package config

import (
	"flag"
	"os"

	"github.com/gekko3d/boids/swarmrt/rt/grid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// WebGPU guarantees at least this many invocations per work group.
const MaxGroupInvocations = 256

const (
	BackendGPU  = "gpu"
	BackendHost = "host"
)

type GridConfig struct {
	CellUnit   int32 `yaml:"cell_unit"`
	MaxPerCell int32 `yaml:"max_per_cell"`
	GroupSize  int   `yaml:"group_size"`
}

type ParticleConfig struct {
	Count int   `yaml:"count"`
	Seed  int64 `yaml:"seed"` // 0 picks a time based seed
}

type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Config struct {
	Grid      GridConfig     `yaml:"grid"`
	Particles ParticleConfig `yaml:"particles"`
	Viewport  ViewportConfig `yaml:"viewport"`

	Backend     string `yaml:"backend"`
	MetricsAddr string `yaml:"metrics_addr"`
	Debug       bool   `yaml:"debug"`
	LogFile     string `yaml:"log_file"` // keeps logs while the viewer owns the terminal

	// Prime runs one dispatch and readback before the first frame.
	Prime bool `yaml:"prime"`
}

func Default() Config {
	return Config{
		Grid: GridConfig{
			CellUnit:   10,
			MaxPerCell: 20,
			GroupSize:  16,
		},
		Particles: ParticleConfig{Count: 10000},
		Viewport:  ViewportConfig{Width: 1280, Height: 720},
		Backend:   BackendGPU,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Grid.CellUnit <= 0:
		return errors.Errorf("config: cell_unit must be positive, got %d", c.Grid.CellUnit)
	case c.Grid.MaxPerCell <= 0:
		return errors.Errorf("config: max_per_cell must be positive, got %d", c.Grid.MaxPerCell)
	case c.Grid.GroupSize <= 0 || c.Grid.GroupSize*c.Grid.GroupSize > MaxGroupInvocations:
		return errors.Errorf("config: group_size %d must be in [1, 16]", c.Grid.GroupSize)
	case c.Particles.Count <= 0:
		return errors.Errorf("config: particle count must be positive, got %d", c.Particles.Count)
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return errors.Errorf("config: invalid viewport %dx%d", c.Viewport.Width, c.Viewport.Height)
	case c.Backend != BackendGPU && c.Backend != BackendHost:
		return errors.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// Settings derives the grid layout. Each axis covers the viewport plus at
// least one extra group of cells, rounded down to a whole number of groups.
func (c Config) Settings() grid.Settings {
	unit := int(c.Grid.CellUnit)
	group := c.Grid.GroupSize
	dimX := paddedDim(c.Viewport.Width, unit, group)
	dimY := paddedDim(c.Viewport.Height, unit, group)
	return grid.Settings{
		CellUnit:   c.Grid.CellUnit,
		DimX:       int32(dimX),
		DimY:       int32(dimY),
		MaxPerCell: c.Grid.MaxPerCell,
		BoundX:     int32(dimX*unit - 1),
		BoundY:     int32(dimY*unit - 1),
	}
}

func paddedDim(view, unit, group int) int {
	dim := (view+unit-1)/unit + group
	return dim - dim%group
}

// Overrides holds command line values that replace file values when given.
type Overrides struct {
	fs *flag.FlagSet

	cellUnit   int
	maxPerCell int
	groupSize  int
	count      int
	seed       int64
	width      int
	height     int
	backend    string
	metrics    string
	debug      bool
	logFile    string
	prime      bool
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{fs: fs}
	fs.IntVar(&o.cellUnit, "cell-unit", 0, "world units per grid cell")
	fs.IntVar(&o.maxPerCell, "max-per-cell", 0, "particle refs per grid cell")
	fs.IntVar(&o.groupSize, "group-size", 0, "square work group edge")
	fs.IntVar(&o.count, "particles", 0, "particle count")
	fs.Int64Var(&o.seed, "seed", 0, "random seed, 0 for time based")
	fs.IntVar(&o.width, "width", 0, "viewport width")
	fs.IntVar(&o.height, "height", 0, "viewport height")
	fs.StringVar(&o.backend, "backend", "", "compute backend: gpu or host")
	fs.StringVar(&o.metrics, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.logFile, "log-file", "", "write logs to this file")
	fs.BoolVar(&o.prime, "prime", false, "run one dispatch before the first frame")
	return o
}

// Apply copies every flag that was set on the command line into c.
func (o *Overrides) Apply(c *Config) {
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cell-unit":
			c.Grid.CellUnit = int32(o.cellUnit)
		case "max-per-cell":
			c.Grid.MaxPerCell = int32(o.maxPerCell)
		case "group-size":
			c.Grid.GroupSize = o.groupSize
		case "particles":
			c.Particles.Count = o.count
		case "seed":
			c.Particles.Seed = o.seed
		case "width":
			c.Viewport.Width = o.width
		case "height":
			c.Viewport.Height = o.height
		case "backend":
			c.Backend = o.backend
		case "metrics-addr":
			c.MetricsAddr = o.metrics
		case "debug":
			c.Debug = o.debug
		case "log-file":
			c.LogFile = o.logFile
		case "prime":
			c.Prime = o.prime
		}
	})
}
