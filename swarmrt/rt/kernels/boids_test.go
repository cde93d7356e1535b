package kernels

import (
	"testing"

	"github.com/gekko3d/boids/swarmrt/rt/codec"
	"github.com/gekko3d/boids/swarmrt/rt/device"
	"github.com/gekko3d/boids/swarmrt/rt/grid"
	"github.com/stretchr/testify/assert"
)

const testGroup = 4

var testSettings = grid.Settings{CellUnit: 10, DimX: 8, DimY: 8, MaxPerCell: 4, BoundX: 79, BoundY: 79}

func bind(particles []float32, mouse [2]float32) map[uint32][]byte {
	g := grid.NewGrid(testSettings)
	g.Rebuild(particles)
	return map[uint32][]byte{
		device.SlotSettings: codec.Bytes(testSettings.Words()),
		device.SlotGrid:     codec.Bytes(g.Cells()),
		device.SlotParticle: codec.Bytes(particles),
		device.SlotMouse:    codec.Bytes(mouse[:]),
	}
}

var noMouse = [2]float32{device.MouseSentinel, device.MouseSentinel}

var allGroups = device.WorkGroups{X: 2, Y: 2, Z: 1}

func run(bound map[uint32][]byte, groups device.WorkGroups) []float32 {
	Boids(testGroup, DefaultParams)(bound, groups)
	return codec.Values[float32](bound[device.SlotParticle])
}

func TestBoids_LoneParticleMoves(t *testing.T) {
	got := run(bind([]float32{15, 15, 1.5, 0}, noMouse), allGroups)
	assert.InDeltaSlice(t, []float32{16.5, 15, 1.5, 0}, got, 1e-5)
}

func TestBoids_SpeedIsClamped(t *testing.T) {
	got := run(bind([]float32{15, 15, 3, 4}, noMouse), allGroups)
	assert.InDeltaSlice(t, []float32{16.2, 16.6, 1.2, 1.6}, got, 1e-5)

	got = run(bind([]float32{15, 15, 0.3, 0.4}, noMouse), allGroups)
	assert.InDeltaSlice(t, []float32{15.6, 15.8, 0.6, 0.8}, got, 1e-5)
}

func TestBoids_ReflectsAtBounds(t *testing.T) {
	got := run(bind([]float32{78.5, 5, 2, 0}, noMouse), allGroups)
	assert.InDeltaSlice(t, []float32{79, 5, -2, 0}, got, 1e-5)

	got = run(bind([]float32{5, 0.5, 0, -2}, noMouse), allGroups)
	assert.InDeltaSlice(t, []float32{5, 0, 0, 2}, got, 1e-5)
}

func TestBoids_MouseRepels(t *testing.T) {
	got := run(bind([]float32{15, 15, 1, 0}, [2]float32{10, 15}), allGroups)
	assert.InDeltaSlice(t, []float32{16.6, 15, 1.6, 0}, got, 1e-4)

	// Out of range.
	got = run(bind([]float32{15, 15, 1, 0}, [2]float32{75, 75}), allGroups)
	assert.InDeltaSlice(t, []float32{16, 15, 1, 0}, got, 1e-5)
}

func TestBoids_NeighboursSeparate(t *testing.T) {
	got := run(bind([]float32{
		15, 15, 1, 0,
		17, 15, 1, 0,
	}, noMouse), allGroups)

	assert.InDelta(t, 1.0, got[2], 1e-4, "min speed keeps the trailing boid at 1")
	assert.Greater(t, got[6], float32(1.05), "leading boid is pushed forward")
}

func TestBoids_UnbinnedParticleIsUntouched(t *testing.T) {
	bound := bind([]float32{15, 15, 1, 0}, noMouse)
	clear(bound[device.SlotGrid])
	got := run(bound, allGroups)
	assert.Equal(t, []float32{15, 15, 1, 0}, got)
}

func TestBoids_OnlyDispatchedCellsRun(t *testing.T) {
	particles := []float32{
		5, 5, 1, 0, // cell (0,0), group (0,0)
		65, 65, 1, 0, // cell (6,6), group (1,1)
	}
	got := run(bind(particles, noMouse), device.WorkGroups{X: 1, Y: 1, Z: 1})
	assert.InDeltaSlice(t, []float32{6, 5, 1, 0, 65, 65, 1, 0}, got, 1e-5)
}
