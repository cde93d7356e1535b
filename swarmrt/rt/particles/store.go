package particles

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gekko3d/boids/swarmrt/rt/codec"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

// FloatsPerParticle is the packed (posX, posY, velX, velY) stride.
const FloatsPerParticle = 4

// Saturation and value of instance colors; hue comes from the velocity.
const (
	colorSaturation = 0.8
	colorValue      = 1.0
)

// Particle is one unpacked entry of the mirror.
type Particle struct {
	Pos mgl32.Vec2
	Vel mgl32.Vec2
}

// Instance is the per-particle output consumed by a display layer.
type Instance struct {
	Position  mgl32.Vec2
	Heading   float32    // radians, direction of the velocity vector
	Transform mgl32.Mat3 // 2D homogeneous: translate * rotate
	Color     colorful.Color
}

// Store is the host mirror of particle state. Its length is fixed at 4*N.
// After Randomize, the only writer is Replace, which takes device readback bytes.
type Store struct {
	count int
	data  []float32
}

func NewStore(count int) *Store {
	if count < 0 {
		count = 0
	}
	return &Store{
		count: count,
		data:  make([]float32, count*FloatsPerParticle),
	}
}

// Randomize seeds whole-unit positions inside the viewport and velocity
// components in [-2, 2).
func (s *Store) Randomize(rng *rand.Rand, viewWidth, viewHeight int) {
	if viewWidth <= 0 || viewHeight <= 0 {
		panic(fmt.Sprintf("particles: invalid viewport %dx%d", viewWidth, viewHeight))
	}
	for i := 0; i < s.count; i++ {
		s.data[i*4] = float32(rng.Intn(viewWidth))
		s.data[i*4+1] = float32(rng.Intn(viewHeight))
		s.data[i*4+2] = (rng.Float32() - 0.5) * 4.0
		s.data[i*4+3] = (rng.Float32() - 0.5) * 4.0
	}
}

// Len is the particle count N.
func (s *Store) Len() int { return s.count }

// Data is the packed mirror. Callers must treat it as read-only.
func (s *Store) Data() []float32 { return s.data }

// ByteLen is the size of the particle buffer on the device.
func (s *Store) ByteLen() int { return len(s.data) * 4 }

// Bytes encodes the mirror for the initial particle buffer upload.
func (s *Store) Bytes() []byte { return codec.Bytes(s.data) }

// Replace overwrites the mirror in place with a full particle buffer readback.
// A buffer of the wrong size panics.
func (s *Store) Replace(raw []byte) {
	codec.Decode(s.data, raw)
}

func (s *Store) Particle(i int) Particle {
	d := s.data[i*4 : i*4+4]
	return Particle{Pos: mgl32.Vec2{d[0], d[1]}, Vel: mgl32.Vec2{d[2], d[3]}}
}

// Instances fills dst with one Instance per particle, reusing its capacity.
func (s *Store) Instances(dst []Instance) []Instance {
	if cap(dst) < s.count {
		dst = make([]Instance, s.count)
	}
	dst = dst[:s.count]
	for i := range dst {
		dst[i] = s.Particle(i).Instance()
	}
	return dst
}

// Instance derives the render transform and color for a particle.
func (p Particle) Instance() Instance {
	heading := float32(math.Atan2(float64(p.Vel.Y()), float64(p.Vel.X())))
	return Instance{
		Position:  p.Pos,
		Heading:   heading,
		Transform: mgl32.Translate2D(p.Pos.X(), p.Pos.Y()).Mul3(mgl32.HomogRotate2D(heading)),
		Color:     colorful.Hsv(math.Mod(float64(VelocityHue(p.Vel))*360.0, 360.0), colorSaturation, colorValue),
	}
}

// VelocityHue maps the velocity direction to a hue in [0, 1]:
// 0 heading -x, 0.5 vertical or at rest, 1 heading +x.
func VelocityHue(vel mgl32.Vec2) float32 {
	var dirX float32
	if l := vel.Len(); l > 0 {
		dirX = vel.X() / l
	}
	return (dirX + 1) / 2
}
