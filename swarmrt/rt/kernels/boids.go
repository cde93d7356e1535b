// Package kernels holds host implementations of the compute kernels, used by
// device.HostBackend when no GPU is available and by tests.
package kernels

import (
	"github.com/gekko3d/boids/swarmrt/rt/codec"
	"github.com/gekko3d/boids/swarmrt/rt/device"
	"github.com/gekko3d/boids/swarmrt/rt/grid"
	"github.com/go-gl/mathgl/mgl32"
)

// BoidsName is the label the boids kernel is compiled and registered under.
const BoidsName = "boids"

// Params are the steering constants. Ranges are in cell units.
// DefaultParams mirrors the constants compiled into boids.wgsl.
type Params struct {
	VisualRange    float32
	ProtectedRange float32
	MouseRange     float32

	Centering  float32
	Matching   float32
	Avoidance  float32
	MouseForce float32

	MinSpeed float32
	MaxSpeed float32
}

var DefaultParams = Params{
	VisualRange:    1.0,
	ProtectedRange: 0.4,
	MouseRange:     6.0,
	Centering:      0.0005,
	Matching:       0.05,
	Avoidance:      0.05,
	MouseForce:     0.6,
	MinSpeed:       1.0,
	MaxSpeed:       2.0,
}

type boid struct {
	pos, vel mgl32.Vec2
}

// Boids returns the host boids kernel for a square work group of groupSize.
// Cells outside the dispatched groups are not invoked, as on the device.
// Neighbours are read from the state at dispatch start, so the result does
// not depend on cell visiting order.
func Boids(groupSize int, params Params) device.KernelFunc {
	return func(bound map[uint32][]byte, groups device.WorkGroups) {
		words := codec.Values[int32](bound[device.SlotSettings])
		settings := grid.Settings{
			CellUnit:   words[0],
			DimX:       words[1],
			DimY:       words[2],
			MaxPerCell: words[3],
			BoundX:     words[4],
			BoundY:     words[5],
		}
		cells := codec.Values[int32](bound[device.SlotGrid])
		mouse := codec.Values[float32](bound[device.SlotMouse])
		state := codec.Values[float32](bound[device.SlotParticle])

		k := &boidsKernel{
			params:   params,
			settings: settings,
			cells:    cells,
			mouse:    mgl32.Vec2{mouse[0], mouse[1]},
			prev:     state,
			next:     append([]float32(nil), state...),
		}

		spanX := min(int(groups.X)*groupSize, int(settings.DimX))
		spanY := min(int(groups.Y)*groupSize, int(settings.DimY))
		for cy := 0; cy < spanY; cy++ {
			for cx := 0; cx < spanX; cx++ {
				k.invoke(cx, cy)
			}
		}

		codec.Encode(bound[device.SlotParticle], k.next)
	}
}

type boidsKernel struct {
	params   Params
	settings grid.Settings
	cells    []int32
	mouse    mgl32.Vec2
	prev     []float32
	next     []float32
}

func (k *boidsKernel) load(i int) boid {
	return boid{
		pos: mgl32.Vec2{k.prev[i*4], k.prev[i*4+1]},
		vel: mgl32.Vec2{k.prev[i*4+2], k.prev[i*4+3]},
	}
}

func (k *boidsKernel) refs(cx, cy int) []int32 {
	start := k.settings.Index(cx, cy, 0)
	return k.cells[start : start+int(k.settings.MaxPerCell)]
}

func (k *boidsKernel) invoke(cx, cy int) {
	for _, ref := range k.refs(cx, cy) {
		if ref == 0 {
			break
		}
		k.steer(int(ref-1), cx, cy)
	}
}

func (k *boidsKernel) steer(index, cx, cy int) {
	p := k.params
	unit := float32(k.settings.CellUnit)
	visual := p.VisualRange * unit
	personal := p.ProtectedRange * unit

	self := k.load(index)
	pos, vel := self.pos, self.vel

	var center, heading, away mgl32.Vec2
	var neighbours float32

	for ny := cy - 1; ny <= cy+1; ny++ {
		for nx := cx - 1; nx <= cx+1; nx++ {
			if nx < 0 || ny < 0 || nx >= int(k.settings.DimX) || ny >= int(k.settings.DimY) {
				continue
			}
			for _, ref := range k.refs(nx, ny) {
				if ref == 0 {
					break
				}
				other := int(ref - 1)
				if other == index {
					continue
				}
				o := k.load(other)
				offset := o.pos.Sub(pos)
				dist := offset.Len()
				if dist < personal {
					away = away.Sub(offset)
				}
				if dist < visual {
					center = center.Add(o.pos)
					heading = heading.Add(o.vel)
					neighbours++
				}
			}
		}
	}

	if neighbours > 0 {
		vel = vel.Add(center.Mul(1 / neighbours).Sub(pos).Mul(p.Centering))
		vel = vel.Add(heading.Mul(1 / neighbours).Sub(vel).Mul(p.Matching))
	}
	vel = vel.Add(away.Mul(p.Avoidance))

	if k.mouse[0] != device.MouseSentinel || k.mouse[1] != device.MouseSentinel {
		push := pos.Sub(k.mouse)
		if dist := push.Len(); dist > 0 && dist < p.MouseRange*unit {
			vel = vel.Add(push.Mul(p.MouseForce / dist))
		}
	}

	if speed := vel.Len(); speed > p.MaxSpeed {
		vel = vel.Mul(p.MaxSpeed / speed)
	} else if speed > 0 && speed < p.MinSpeed {
		vel = vel.Mul(p.MinSpeed / speed)
	}

	pos = pos.Add(vel)
	pos[0], vel[0] = reflect(pos[0], vel[0], float32(k.settings.BoundX))
	pos[1], vel[1] = reflect(pos[1], vel[1], float32(k.settings.BoundY))

	k.next[index*4] = pos[0]
	k.next[index*4+1] = pos[1]
	k.next[index*4+2] = vel[0]
	k.next[index*4+3] = vel[1]
}

// reflect clamps a coordinate to [0, bound] and points the velocity back inside.
func reflect(pos, vel, bound float32) (float32, float32) {
	switch {
	case pos < 0:
		return 0, abs(vel)
	case pos > bound:
		return bound, -abs(vel)
	}
	return pos, vel
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
