package particles

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gekko3d/boids/swarmrt/rt/codec"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RandomizeBounds(t *testing.T) {
	s := NewStore(500)
	s.Randomize(rand.New(rand.NewSource(1)), 320, 200)

	require.Len(t, s.Data(), 4*500)
	for i := 0; i < s.Len(); i++ {
		p := s.Particle(i)
		assert.GreaterOrEqual(t, p.Pos.X(), float32(0))
		assert.Less(t, p.Pos.X(), float32(320))
		assert.GreaterOrEqual(t, p.Pos.Y(), float32(0))
		assert.Less(t, p.Pos.Y(), float32(200))
		assert.Equal(t, float32(math.Trunc(float64(p.Pos.X()))), p.Pos.X(), "positions are whole units")
		assert.GreaterOrEqual(t, p.Vel.X(), float32(-2))
		assert.LessOrEqual(t, p.Vel.X(), float32(2))
		assert.GreaterOrEqual(t, p.Vel.Y(), float32(-2))
		assert.LessOrEqual(t, p.Vel.Y(), float32(2))
	}
}

func TestStore_RandomizeRejectsEmptyViewport(t *testing.T) {
	s := NewStore(1)
	assert.Panics(t, func() { s.Randomize(rand.New(rand.NewSource(1)), 0, 10) })
}

func TestStore_ReplaceKeepsLength(t *testing.T) {
	s := NewStore(3)
	before := &s.Data()[0]

	next := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	s.Replace(codec.Bytes(next))

	assert.Equal(t, next, s.Data())
	assert.Len(t, s.Data(), 12)
	assert.Same(t, before, &s.Data()[0], "readback is applied in place")
	assert.Equal(t, Particle{Pos: mgl32.Vec2{5, 6}, Vel: mgl32.Vec2{7, 8}}, s.Particle(1))
}

func TestStore_ReplaceWrongSizePanics(t *testing.T) {
	s := NewStore(2)
	assert.Panics(t, func() { s.Replace(make([]byte, 16)) })
}

func TestStore_BytesMatchesByteLen(t *testing.T) {
	s := NewStore(10)
	assert.Len(t, s.Bytes(), s.ByteLen())
	assert.Equal(t, 160, s.ByteLen())
}

func TestParticle_Instance(t *testing.T) {
	p := Particle{Pos: mgl32.Vec2{10, 20}, Vel: mgl32.Vec2{0, 1}}
	inst := p.Instance()

	assert.InDelta(t, math.Pi/2, inst.Heading, 1e-6)
	assert.Equal(t, mgl32.Vec2{10, 20}, inst.Position)

	// The transform moves the local +x axis onto the heading, then translates.
	tip := inst.Transform.Mul3x1(mgl32.Vec3{1, 0, 1})
	assert.InDelta(t, 10, tip.X(), 1e-5)
	assert.InDelta(t, 21, tip.Y(), 1e-5)
}

func TestVelocityHue(t *testing.T) {
	assert.InDelta(t, 1.0, VelocityHue(mgl32.Vec2{3, 0}), 1e-6)
	assert.InDelta(t, 0.0, VelocityHue(mgl32.Vec2{-0.5, 0}), 1e-6)
	assert.InDelta(t, 0.5, VelocityHue(mgl32.Vec2{0, -2}), 1e-6)
	assert.InDelta(t, 0.5, VelocityHue(mgl32.Vec2{0, 0}), 1e-6)
}

func TestParticle_InstanceColor(t *testing.T) {
	// Heading +x wraps to hue 0 (red) rather than falling off the hue circle.
	c := Particle{Vel: mgl32.Vec2{1, 0}}.Instance().Color
	assert.InDelta(t, 1.0, c.R, 1e-6)
	assert.InDelta(t, 0.2, c.G, 1e-6)
	assert.InDelta(t, 0.2, c.B, 1e-6)

	// At rest: hue 0.5 (cyan).
	c = Particle{}.Instance().Color
	assert.InDelta(t, 0.2, c.R, 1e-6)
	assert.InDelta(t, 1.0, c.G, 1e-6)
	assert.InDelta(t, 1.0, c.B, 1e-6)
}

func TestStore_InstancesReusesBuffer(t *testing.T) {
	s := NewStore(4)
	buf := make([]Instance, 0, 8)
	out := s.Instances(buf)
	require.Len(t, out, 4)
	assert.Same(t, &buf[:1][0], &out[0])

	out = s.Instances(nil)
	assert.Len(t, out, 4)
}
