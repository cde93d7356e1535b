// Package gpu implements device.Backend on top of WebGPU.
package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/boids/swarmrt/rt/device"
	"github.com/pkg/errors"
)

// Readback polls are bounded so a lost device surfaces as an error instead of a hang.
const maxMapPolls = 10000

type bufferEntry struct {
	buffer  *wgpu.Buffer
	staging *wgpu.Buffer // MapRead copy target, DeviceWritable buffers only
	size    uint64
}

// Backend owns a headless WebGPU device and the objects created on it.
type Backend struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	next      device.Handle
	buffers   map[device.Handle]*bufferEntry
	modules   map[device.Handle]*wgpu.ShaderModule
	pipelines map[device.Handle]*wgpu.ComputePipeline
	sets      map[device.Handle]*wgpu.BindGroup
}

// New requests a high-performance adapter without a surface and opens a device on it.
func New() (*Backend, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrap(err, "request adapter")
	}

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Boids Compute Device",
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(err, "request device")
	}

	return &Backend{
		Instance:  instance,
		Adapter:   adapter,
		Device:    dev,
		Queue:     dev.GetQueue(),
		buffers:   make(map[device.Handle]*bufferEntry),
		modules:   make(map[device.Handle]*wgpu.ShaderModule),
		pipelines: make(map[device.Handle]*wgpu.ComputePipeline),
		sets:      make(map[device.Handle]*wgpu.BindGroup),
	}, nil
}

func (b *Backend) handle() device.Handle {
	b.next++
	return b.next
}

func usageFor(access device.BufferAccess) wgpu.BufferUsage {
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	if access == device.DeviceWritable {
		usage |= wgpu.BufferUsageCopySrc
	}
	return usage
}

func (b *Backend) CreateBuffer(label string, contents []byte, access device.BufferAccess) (device.Handle, error) {
	buffer, err := b.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    usageFor(access),
	})
	if err != nil {
		return device.InvalidHandle, errors.Wrapf(err, "create buffer %s", label)
	}
	entry := &bufferEntry{buffer: buffer, size: uint64(len(contents))}

	if access == device.DeviceWritable {
		entry.staging, err = b.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label + " readback",
			Size:  entry.size,
			Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		})
		if err != nil {
			buffer.Release()
			return device.InvalidHandle, errors.Wrapf(err, "create readback buffer %s", label)
		}
	}

	h := b.handle()
	b.buffers[h] = entry
	return h, nil
}

func (b *Backend) buffer(h device.Handle) (*bufferEntry, error) {
	entry, ok := b.buffers[h]
	if !ok {
		return nil, errors.Wrapf(device.ErrUnknownHandle, "buffer %d", h)
	}
	return entry, nil
}

func (b *Backend) WriteBuffer(h device.Handle, offset uint64, data []byte) error {
	entry, err := b.buffer(h)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > entry.size {
		return errors.Wrapf(device.ErrOutOfBounds, "%d bytes at %d into %d", len(data), offset, entry.size)
	}
	return b.Queue.WriteBuffer(entry.buffer, offset, data)
}

// ReadBuffer copies the buffer into its staging twin, waits for the copy and
// maps the staging buffer for reading.
func (b *Backend) ReadBuffer(h device.Handle) ([]byte, error) {
	entry, err := b.buffer(h)
	if err != nil {
		return nil, err
	}
	if entry.staging == nil {
		return nil, errors.Errorf("gpu: buffer %d is not readable from the host", h)
	}

	encoder, err := b.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create readback encoder")
	}
	defer encoder.Release()

	encoder.CopyBufferToBuffer(entry.buffer, 0, entry.staging, 0, entry.size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, errors.Wrap(err, "finish readback encoder")
	}
	defer cmd.Release()
	b.Queue.Submit(cmd)

	var (
		done   bool
		status wgpu.BufferMapAsyncStatus
	)
	err = entry.staging.MapAsync(wgpu.MapModeRead, 0, entry.size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return nil, errors.Wrap(err, "map readback buffer")
	}
	for i := 0; i < maxMapPolls && !done; i++ {
		b.Device.Poll(true, nil)
	}
	if !done {
		return nil, errors.New("gpu: readback map did not complete")
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.Errorf("gpu: readback map failed with status %d", status)
	}

	mapped := entry.staging.GetMappedRange(0, uint(entry.size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	entry.staging.Unmap()
	return out, nil
}

func (b *Backend) CreateKernel(label string, source string) (device.Handle, error) {
	module, err := b.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return device.InvalidHandle, errors.Wrapf(err, "compile %s", label)
	}
	h := b.handle()
	b.modules[h] = module
	return h, nil
}

func (b *Backend) CreatePipeline(kernel device.Handle, entryPoint string) (device.Handle, error) {
	module, ok := b.modules[kernel]
	if !ok {
		return device.InvalidHandle, errors.Wrapf(device.ErrUnknownHandle, "kernel %d", kernel)
	}
	pipeline, err := b.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Boids Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return device.InvalidHandle, errors.Wrap(err, "create compute pipeline")
	}
	h := b.handle()
	b.pipelines[h] = pipeline
	return h, nil
}

func (b *Backend) CreateBindingSet(pipeline device.Handle, group uint32, bindings []device.Binding) (device.Handle, error) {
	p, ok := b.pipelines[pipeline]
	if !ok {
		return device.InvalidHandle, errors.Wrapf(device.ErrUnknownHandle, "pipeline %d", pipeline)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for _, bind := range bindings {
		entry, err := b.buffer(bind.Buffer)
		if err != nil {
			return device.InvalidHandle, errors.Wrapf(err, "slot %d", bind.Slot)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: bind.Slot,
			Buffer:  entry.buffer,
			Size:    wgpu.WholeSize,
		})
	}

	layout := p.GetBindGroupLayout(group)
	defer layout.Release()

	set, err := b.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Boids Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return device.InvalidHandle, errors.Wrap(err, "create bind group")
	}
	h := b.handle()
	b.sets[h] = set
	return h, nil
}

func (b *Backend) Submit(pipeline, set device.Handle, groups device.WorkGroups) error {
	p, ok := b.pipelines[pipeline]
	if !ok {
		return errors.Wrapf(device.ErrUnknownHandle, "pipeline %d", pipeline)
	}
	bg, ok := b.sets[set]
	if !ok {
		return errors.Wrapf(device.ErrUnknownHandle, "binding set %d", set)
	}

	encoder, err := b.Device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "create command encoder")
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(groups.X, groups.Y, groups.Z)
	err = pass.End()
	pass.Release()
	if err != nil {
		return errors.Wrap(err, "end compute pass")
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "finish command encoder")
	}
	defer cmd.Release()
	b.Queue.Submit(cmd)
	return nil
}

// Sync waits for the queue to drain.
func (b *Backend) Sync() error {
	b.Device.Poll(true, nil)
	return nil
}

func (b *Backend) Free(h device.Handle) {
	if !h.Valid() {
		return
	}
	if set, ok := b.sets[h]; ok {
		set.Release()
		delete(b.sets, h)
		return
	}
	if p, ok := b.pipelines[h]; ok {
		p.Release()
		delete(b.pipelines, h)
		return
	}
	if m, ok := b.modules[h]; ok {
		m.Release()
		delete(b.modules, h)
		return
	}
	if entry, ok := b.buffers[h]; ok {
		if entry.staging != nil {
			entry.staging.Release()
		}
		entry.buffer.Release()
		delete(b.buffers, h)
	}
}

// Close releases anything still alive and then the device itself.
func (b *Backend) Close() {
	if b.Device == nil {
		return
	}
	for h := range b.sets {
		b.Free(h)
	}
	for h := range b.pipelines {
		b.Free(h)
	}
	for h := range b.modules {
		b.Free(h)
	}
	for h := range b.buffers {
		b.Free(h)
	}
	b.Queue.Release()
	b.Device.Release()
	b.Adapter.Release()
	b.Instance.Release()
	b.Queue, b.Device, b.Adapter, b.Instance = nil, nil, nil, nil
}
