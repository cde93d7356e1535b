package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/boids/swarmrt/rt/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSettings_PaddedDimensions(t *testing.T) {
	cfg := Default()
	// 1280/10 = 128 (+16 = 144, a multiple of 16); 720/10 = 72 (+16 = 88 -> 80).
	assert.Equal(t, grid.Settings{
		CellUnit:   10,
		DimX:       144,
		DimY:       80,
		MaxPerCell: 20,
		BoundX:     1439,
		BoundY:     799,
	}, cfg.Settings())

	// Groups of 20 over a 1152x648 viewport.
	cfg.Grid.GroupSize = 20
	cfg.Viewport = ViewportConfig{Width: 1152, Height: 648}
	s := cfg.Settings()
	assert.Equal(t, int32(120), s.DimX) // ceil(115.2)=116 +20 = 136 -> 120
	assert.Equal(t, int32(80), s.DimY)  // ceil(64.8)=65 +20 = 85 -> 80
}

func TestSettings_CoversViewport(t *testing.T) {
	for _, vp := range []ViewportConfig{{1, 1}, {99, 41}, {1280, 720}, {1921, 1081}} {
		cfg := Default()
		cfg.Viewport = vp
		s := cfg.Settings()
		assert.GreaterOrEqual(t, int(s.DimX)*int(s.CellUnit), vp.Width)
		assert.GreaterOrEqual(t, int(s.DimY)*int(s.CellUnit), vp.Height)
		assert.Zero(t, int(s.DimX)%cfg.Grid.GroupSize)
		assert.Zero(t, int(s.DimY)%cfg.Grid.GroupSize)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"cell unit":    func(c *Config) { c.Grid.CellUnit = 0 },
		"max per cell": func(c *Config) { c.Grid.MaxPerCell = -1 },
		"group zero":   func(c *Config) { c.Grid.GroupSize = 0 },
		"group large":  func(c *Config) { c.Grid.GroupSize = 17 },
		"count":        func(c *Config) { c.Particles.Count = 0 },
		"viewport":     func(c *Config) { c.Viewport.Height = 0 },
		"backend":      func(c *Config) { c.Backend = "vulkan" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boids.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
grid:
  max_per_cell: 8
particles:
  count: 500
  seed: 42
backend: host
log_file: /tmp/boids.log
prime: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.Grid.MaxPerCell)
	assert.Equal(t, int32(10), cfg.Grid.CellUnit)
	assert.Equal(t, 500, cfg.Particles.Count)
	assert.Equal(t, int64(42), cfg.Particles.Seed)
	assert.Equal(t, BackendHost, cfg.Backend)
	assert.Equal(t, "/tmp/boids.log", cfg.LogFile)
	assert.True(t, cfg.Prime)
	assert.Equal(t, 1280, cfg.Viewport.Width)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid: [1, 2"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestOverrides_OnlySetFlags(t *testing.T) {
	fs := flag.NewFlagSet("boids", flag.ContinueOnError)
	o := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-particles=64", "-backend", "host", "-debug", "-log-file", "run.log", "-prime"}))

	cfg := Default()
	cfg.Grid.MaxPerCell = 8
	o.Apply(&cfg)

	assert.Equal(t, 64, cfg.Particles.Count)
	assert.Equal(t, BackendHost, cfg.Backend)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "run.log", cfg.LogFile)
	assert.True(t, cfg.Prime)
	assert.Equal(t, int32(8), cfg.Grid.MaxPerCell, "unset flags keep file values")
	assert.Equal(t, 1280, cfg.Viewport.Width)
}
