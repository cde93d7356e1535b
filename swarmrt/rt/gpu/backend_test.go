package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/boids/swarmrt/rt/device"
	"github.com/stretchr/testify/assert"
)

func TestUsageFor(t *testing.T) {
	base := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	assert.Equal(t, base, usageFor(device.Immutable))
	assert.Equal(t, base, usageFor(device.HostWritable))
	assert.Equal(t, base|wgpu.BufferUsageCopySrc, usageFor(device.DeviceWritable))
}

func TestBackend_UnknownHandles(t *testing.T) {
	b := &Backend{
		buffers:   make(map[device.Handle]*bufferEntry),
		modules:   make(map[device.Handle]*wgpu.ShaderModule),
		pipelines: make(map[device.Handle]*wgpu.ComputePipeline),
		sets:      make(map[device.Handle]*wgpu.BindGroup),
	}

	assert.ErrorIs(t, b.WriteBuffer(9, 0, []byte{1}), device.ErrUnknownHandle)
	_, err := b.ReadBuffer(9)
	assert.ErrorIs(t, err, device.ErrUnknownHandle)
	_, err = b.CreatePipeline(9, "main")
	assert.ErrorIs(t, err, device.ErrUnknownHandle)
	_, err = b.CreateBindingSet(9, 0, nil)
	assert.ErrorIs(t, err, device.ErrUnknownHandle)
	assert.ErrorIs(t, b.Submit(9, 10, device.WorkGroups{X: 1, Y: 1, Z: 1}), device.ErrUnknownHandle)

	assert.NotPanics(t, func() { b.Free(device.InvalidHandle) })
	assert.NotPanics(t, func() { b.Free(9) })
	assert.NotPanics(t, b.Close, "closing without a device is a no-op")
}

func TestBackend_ReadBufferNeedsStaging(t *testing.T) {
	b := &Backend{buffers: map[device.Handle]*bufferEntry{3: {size: 16}}}

	_, err := b.ReadBuffer(3)
	assert.EqualError(t, err, "gpu: buffer 3 is not readable from the host")
}
