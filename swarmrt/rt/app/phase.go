package app

import "fmt"

// Phase is a step of the per-frame cycle.
type Phase int

const (
	Idle Phase = iota
	GridUpdate
	BufferUpload
	Dispatch
	Sync
	Readback
)

// framePhases is the order one Step walks through, starting and ending at Idle.
var framePhases = []Phase{GridUpdate, BufferUpload, Dispatch, Sync, Readback}

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case GridUpdate:
		return "GridUpdate"
	case BufferUpload:
		return "BufferUpload"
	case Dispatch:
		return "Dispatch"
	case Sync:
		return "Sync"
	case Readback:
		return "Readback"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
