// Package device owns the compute-device side of the simulation: buffers,
// the compiled kernel, its pipeline and the binding set tying them together.
//
// Backends expose device objects through opaque Handles. A Handle equal to
// InvalidHandle never refers to a live object, which is what makes teardown
// safe to repeat.
package device

import (
	"fmt"

	"github.com/pkg/errors"
)

// Handle identifies a device object owned by a Backend.
type Handle uint64

// InvalidHandle is the released/never-created sentinel.
const InvalidHandle Handle = 0

func (h Handle) Valid() bool { return h != InvalidHandle }

// BufferAccess describes who writes a buffer after creation.
type BufferAccess int

const (
	// HostWritable buffers are rewritten by the host through WriteBuffer.
	HostWritable BufferAccess = iota
	// DeviceWritable buffers are written by the kernel and read back by the host.
	DeviceWritable
	// Immutable buffers are filled once at creation.
	Immutable
)

func (a BufferAccess) String() string {
	switch a {
	case HostWritable:
		return "HostWritable"
	case DeviceWritable:
		return "DeviceWritable"
	case Immutable:
		return "Immutable"
	default:
		return fmt.Sprintf("BufferAccess(%d)", int(a))
	}
}

// WorkGroups is a dispatch size in work groups.
type WorkGroups struct {
	X, Y, Z uint32
}

// Binding attaches a buffer to a kernel-visible slot.
type Binding struct {
	Slot   uint32
	Buffer Handle
}

// Backend is the minimal device surface the session needs.
// Backends are used from a single goroutine.
type Backend interface {
	CreateBuffer(label string, contents []byte, access BufferAccess) (Handle, error)
	WriteBuffer(buf Handle, offset uint64, data []byte) error
	// ReadBuffer copies the whole buffer to host memory, blocking until done.
	ReadBuffer(buf Handle) ([]byte, error)

	// CreateKernel compiles kernel source. label doubles as the kernel name.
	CreateKernel(label string, source string) (Handle, error)
	CreatePipeline(kernel Handle, entryPoint string) (Handle, error)
	CreateBindingSet(pipeline Handle, group uint32, bindings []Binding) (Handle, error)

	// Submit records and submits one dispatch.
	Submit(pipeline, set Handle, groups WorkGroups) error
	// Sync blocks until all submitted work has completed.
	Sync() error

	// Free releases one object. Freeing InvalidHandle is a no-op.
	Free(h Handle)
	// Close releases the device itself.
	Close()
}

var (
	ErrUnknownHandle  = errors.New("device: unknown handle")
	ErrWrongHandle    = errors.New("device: handle refers to a different object kind")
	ErrOutOfBounds    = errors.New("device: write exceeds buffer size")
	ErrUnknownKernel  = errors.New("device: no kernel registered under this name")
	ErrMissingBinding = errors.New("device: binding slot has no buffer")
	ErrDestroyed      = errors.New("device: session destroyed")
)
