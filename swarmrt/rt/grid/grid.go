// Package grid bins particles into the fixed-capacity cells the kernel reads.
package grid

import (
	"math"
)

// Settings is the immutable grid description shared with the kernel.
// Field order matches the device layout of the settings buffer.
type Settings struct {
	CellUnit   int32 // world units per cell edge
	DimX       int32
	DimY       int32
	MaxPerCell int32
	BoundX     int32
	BoundY     int32
}

// Words returns the six int32 words uploaded to binding slot 0.
func (s Settings) Words() []int32 {
	return []int32{s.CellUnit, s.DimX, s.DimY, s.MaxPerCell, s.BoundX, s.BoundY}
}

// Len is the number of int32 entries in the flat grid.
func (s Settings) Len() int {
	return int(s.DimX) * int(s.DimY) * int(s.MaxPerCell)
}

// Index maps a cell coordinate and slot to its position in the flat grid.
func (s Settings) Index(x, y, slot int) int {
	return y*int(s.DimX)*int(s.MaxPerCell) + x*int(s.MaxPerCell) + slot
}

// CellOf returns the cell containing a world position.
func (s Settings) CellOf(px, py float32) (int, int) {
	return s.getCellIndex(px), s.getCellIndex(py)
}

func (s Settings) getCellIndex(pos float32) int {
	return int(math.Floor(float64(pos / float32(s.CellUnit))))
}

func (s Settings) contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < int(s.DimX) && y < int(s.DimY)
}

// Bucket is a fixed capacity view over one cell of the flat grid.
// Once full, further pushes are refused; earlier refs are never displaced.
type Bucket struct {
	slots []int32
	fill  *int32
}

// Push stores ref in the next free slot. It returns false when the cell
// already holds MaxPerCell refs.
func (b Bucket) Push(ref int32) bool {
	if int(*b.fill) >= len(b.slots) {
		return false
	}
	b.slots[*b.fill] = ref
	*b.fill++
	return true
}

func (b Bucket) Len() int { return int(*b.fill) }
func (b Bucket) Cap() int { return len(b.slots) }

// Refs returns the stored 1-based particle refs.
func (b Bucket) Refs() []int32 {
	return b.slots[:*b.fill]
}

// Grid bins particle positions into Settings.DimX x Settings.DimY cells.
// Each cell holds up to MaxPerCell 1-based particle refs; 0 marks an empty slot.
type Grid struct {
	settings Settings
	cells    []int32
	fill     []int32 // scratch counters, one per cell

	binned     int
	dropped    int
	outOfRange int
}

func NewGrid(settings Settings) *Grid {
	return &Grid{
		settings: settings,
		cells:    make([]int32, settings.Len()),
		fill:     make([]int32, int(settings.DimX)*int(settings.DimY)),
	}
}

func (g *Grid) Settings() Settings { return g.settings }

// Clear zeroes every slot and counter.
func (g *Grid) Clear() {
	clear(g.cells)
	clear(g.fill)
	g.binned, g.dropped, g.outOfRange = 0, 0, 0
}

// Bucket returns the bounded container for cell (x, y).
func (g *Grid) Bucket(x, y int) Bucket {
	start := g.settings.Index(x, y, 0)
	return Bucket{
		slots: g.cells[start : start+int(g.settings.MaxPerCell)],
		fill:  &g.fill[y*int(g.settings.DimX)+x],
	}
}

// Rebuild clears the grid and bins particles, given as packed
// (posX, posY, velX, velY) quadruples, in ascending index order.
// Particles landing in a full cell are left out for this frame.
// Particles outside the grid are counted and skipped.
func (g *Grid) Rebuild(particles []float32) {
	g.Clear()

	n := len(particles) / 4
	for i := 0; i < n; i++ {
		x, y := g.settings.CellOf(particles[i*4], particles[i*4+1])
		if !g.settings.contains(x, y) {
			g.outOfRange++
			continue
		}
		if !g.Bucket(x, y).Push(int32(i + 1)) {
			g.dropped++
			continue
		}
		g.binned++
	}
}

// Cells is the flat grid in device layout. The slice is reused by the next Rebuild.
func (g *Grid) Cells() []int32 { return g.cells }

// Binned is the number of particles recorded by the last Rebuild.
func (g *Grid) Binned() int { return g.binned }

// Dropped is the number of particles refused by full cells in the last Rebuild.
func (g *Grid) Dropped() int { return g.dropped }

// OutOfRange is the number of particles outside the grid in the last Rebuild.
func (g *Grid) OutOfRange() int { return g.outOfRange }
