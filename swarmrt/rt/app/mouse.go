package app

import (
	"github.com/gekko3d/boids/swarmrt/rt/codec"
	"github.com/gekko3d/boids/swarmrt/rt/device"
)

// Pointer is the interaction state supplied by the host for one frame,
// in world coordinates.
type Pointer struct {
	X, Y   float32
	Active bool
}

// MouseState is the two-word content of the mouse buffer.
type MouseState [2]float32

// NoMouse is the sentinel meaning no interaction this frame.
var NoMouse = MouseState{device.MouseSentinel, device.MouseSentinel}

func MouseFrom(p Pointer) MouseState {
	if !p.Active {
		return NoMouse
	}
	return MouseState{p.X, p.Y}
}

func (m MouseState) Active() bool { return m != NoMouse }

// Encode writes the state into an 8-byte buffer.
func (m MouseState) Encode(dst []byte) {
	codec.Encode(dst, m[:])
}

func (m MouseState) Bytes() []byte {
	return codec.Bytes(m[:])
}
