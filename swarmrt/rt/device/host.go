package device

import (
	"github.com/pkg/errors"
)

// KernelFunc is a host implementation of a compute kernel. bound maps each
// binding slot to the live bytes of its buffer; writes are visible to the host.
type KernelFunc func(bound map[uint32][]byte, groups WorkGroups)

type hostObjectKind int

const (
	hostBuffer hostObjectKind = iota
	hostKernel
	hostPipeline
	hostSet
)

type hostObject struct {
	kind     hostObjectKind
	label    string
	data     []byte
	access   BufferAccess
	fn       KernelFunc
	kernel   Handle
	pipeline Handle
	bindings []Binding
}

type hostDispatch struct {
	set    Handle
	groups WorkGroups
}

// HostBackend emulates a compute device in host memory. Kernels are looked up
// by label among the registered KernelFuncs. Submitted work runs on Sync.
type HostBackend struct {
	kernels map[string]KernelFunc
	objects map[Handle]*hostObject
	next    Handle
	pending []hostDispatch
	closed  bool

	// FailCreate, when set, is consulted before every object creation.
	FailCreate func(label string) error

	Dispatches int
}

func NewHostBackend() *HostBackend {
	return &HostBackend{
		kernels: make(map[string]KernelFunc),
		objects: make(map[Handle]*hostObject),
	}
}

// Register makes fn available to CreateKernel under name.
func (b *HostBackend) Register(name string, fn KernelFunc) *HostBackend {
	b.kernels[name] = fn
	return b
}

func (b *HostBackend) add(obj *hostObject) (Handle, error) {
	if b.FailCreate != nil {
		if err := b.FailCreate(obj.label); err != nil {
			return InvalidHandle, err
		}
	}
	b.next++
	b.objects[b.next] = obj
	return b.next, nil
}

func (b *HostBackend) get(h Handle, kind hostObjectKind) (*hostObject, error) {
	obj, ok := b.objects[h]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	if obj.kind != kind {
		return nil, errors.Wrapf(ErrWrongHandle, "handle %d", h)
	}
	return obj, nil
}

func (b *HostBackend) CreateBuffer(label string, contents []byte, access BufferAccess) (Handle, error) {
	data := make([]byte, len(contents))
	copy(data, contents)
	return b.add(&hostObject{kind: hostBuffer, label: label, data: data, access: access})
}

func (b *HostBackend) WriteBuffer(buf Handle, offset uint64, data []byte) error {
	obj, err := b.get(buf, hostBuffer)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > uint64(len(obj.data)) {
		return errors.Wrapf(ErrOutOfBounds, "%s: %d bytes at %d into %d", obj.label, len(data), offset, len(obj.data))
	}
	copy(obj.data[offset:], data)
	return nil
}

func (b *HostBackend) ReadBuffer(buf Handle) ([]byte, error) {
	obj, err := b.get(buf, hostBuffer)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (b *HostBackend) CreateKernel(label string, source string) (Handle, error) {
	fn, ok := b.kernels[label]
	if !ok {
		return InvalidHandle, errors.Wrapf(ErrUnknownKernel, "%q", label)
	}
	return b.add(&hostObject{kind: hostKernel, label: label, fn: fn})
}

func (b *HostBackend) CreatePipeline(kernel Handle, entryPoint string) (Handle, error) {
	k, err := b.get(kernel, hostKernel)
	if err != nil {
		return InvalidHandle, err
	}
	return b.add(&hostObject{kind: hostPipeline, label: k.label + ":" + entryPoint, kernel: kernel})
}

func (b *HostBackend) CreateBindingSet(pipeline Handle, group uint32, bindings []Binding) (Handle, error) {
	p, err := b.get(pipeline, hostPipeline)
	if err != nil {
		return InvalidHandle, err
	}
	for _, bind := range bindings {
		if _, err := b.get(bind.Buffer, hostBuffer); err != nil {
			return InvalidHandle, errors.Wrapf(err, "slot %d", bind.Slot)
		}
	}
	bs := make([]Binding, len(bindings))
	copy(bs, bindings)
	return b.add(&hostObject{kind: hostSet, label: p.label + " set", pipeline: pipeline, bindings: bs})
}

func (b *HostBackend) Submit(pipeline, set Handle, groups WorkGroups) error {
	if _, err := b.get(pipeline, hostPipeline); err != nil {
		return err
	}
	if _, err := b.get(set, hostSet); err != nil {
		return err
	}
	b.pending = append(b.pending, hostDispatch{set: set, groups: groups})
	return nil
}

func (b *HostBackend) Sync() error {
	for _, d := range b.pending {
		set, err := b.get(d.set, hostSet)
		if err != nil {
			return err
		}
		pipeline, err := b.get(set.pipeline, hostPipeline)
		if err != nil {
			return err
		}
		kernel, err := b.get(pipeline.kernel, hostKernel)
		if err != nil {
			return err
		}

		bound := make(map[uint32][]byte, len(set.bindings))
		for _, bind := range set.bindings {
			buf, err := b.get(bind.Buffer, hostBuffer)
			if err != nil {
				return err
			}
			bound[bind.Slot] = buf.data
		}
		kernel.fn(bound, d.groups)
		b.Dispatches++
	}
	b.pending = b.pending[:0]
	return nil
}

func (b *HostBackend) Free(h Handle) {
	if !h.Valid() {
		return
	}
	delete(b.objects, h)
}

func (b *HostBackend) Close() {
	b.closed = true
	b.pending = nil
}

// Live is the number of objects not yet freed.
func (b *HostBackend) Live() int { return len(b.objects) }

// Closed reports whether Close was called.
func (b *HostBackend) Closed() bool { return b.closed }

// Pending is the number of submitted but not yet synced dispatches.
func (b *HostBackend) Pending() int { return len(b.pending) }
