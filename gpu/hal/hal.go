// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hal defines the narrow set of backend objects needed to run
// a single compute dispatch and read its result back: an instance that
// hands out adapters, a logical device with its queue, buffers, shader
// modules, compute pipelines, bind groups and command encoding.
//
// Two implementations exist: [cogentcore.org/offload/gpu/webgpu], which
// drives a real GPU through wgpu-native, and [cogentcore.org/offload/gpu/soft],
// a CPU reference that applies the same validation rules.
//
// All objects are owned by exactly one Go value and must be released
// with Release when no longer needed. None of the objects are safe to
// record commands into from more than one goroutine.
package hal

// Instance is the entry point of a backend.
type Instance interface {
	// Name returns the backend name, e.g. "webgpu" or "soft".
	Name() string

	// RequestAdapter returns the adapter selected with the given options.
	// A nil options pointer uses the default selection criteria.
	RequestAdapter(opts *AdapterOptions) (Adapter, error)

	Release()
}

// AdapterOptions are the adapter selection criteria.
type AdapterOptions struct {
	// ForceFallback selects the backend's fallback (software) adapter.
	ForceFallback bool
}

// AdapterInfo describes a physical adapter.
type AdapterInfo struct {
	Name    string
	Vendor  string
	Backend string
}

// Limits are the device limits relevant to compute dispatch.
type Limits struct {
	MaxBufferSize                    uint64
	MaxStorageBufferBindingSize      uint64
	MaxComputeWorkgroupsPerDimension uint32
}

// DefaultLimits returns the WebGPU default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBufferSize:                    256 << 20,
		MaxStorageBufferBindingSize:      128 << 20,
		MaxComputeWorkgroupsPerDimension: 65535,
	}
}

// Adapter is a handle to a physical compute device.
type Adapter interface {
	Info() AdapterInfo

	// Limits returns the best limits the adapter supports. A device
	// may be created with lower ones; see [Device.Limits].
	Limits() Limits

	// RequestDevice opens a logical device with default features and limits.
	RequestDevice(label string) (Device, error)

	Release()
}

// Device is a logical device. It owns every object created through it.
type Device interface {
	Queue() Queue

	// Limits returns the limits the device was created with.
	Limits() Limits

	CreateShaderModule(label, wgsl string) (ShaderModule, error)

	// CreateComputePipeline creates a pipeline whose bind group layouts
	// are inferred from the module's declared bindings.
	CreateComputePipeline(label string, module ShaderModule, entryPoint string) (ComputePipeline, error)

	// CreateBuffer creates a zero-initialized buffer.
	CreateBuffer(label string, size uint64, usage Usages) (Buffer, error)

	// CreateBufferInit creates a buffer holding a copy of contents.
	CreateBufferInit(label string, contents []byte, usage Usages) (Buffer, error)

	CreateBindGroup(label string, layout BindGroupLayout, entries []BindGroupEntry) (BindGroup, error)

	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Poll processes submitted work and fires any map callbacks that have
	// become ready. If wait is true it blocks until the queue is empty.
	// It returns true when no submitted work remains.
	Poll(wait bool) (bool, error)

	Release()
}

// Queue submits command buffers. Submitted work executes in
// submission order; completion is observed through Device.Poll.
type Queue interface {
	Submit(cmds ...CommandBuffer) error
}

// Buffer is a flat byte region with a fixed usage set.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() Usages

	// MapAsync requests a host mapping of the given range. The callback
	// is invoked from Device.Poll once the request can be satisfied.
	MapAsync(mode MapMode, offset, size uint64, callback func(MapStatus)) error

	// MappedRange returns the mapped bytes, or nil if not mapped.
	// The returned slice is only valid until Unmap.
	MappedRange(offset, size uint64) []byte

	Unmap()

	Release()
}

// ShaderModule is a compiled shader.
type ShaderModule interface {
	Release()
}

// ComputePipeline is an immutable compiled kernel plus layout.
type ComputePipeline interface {
	// BindGroupLayout returns the inferred layout for the given group.
	BindGroupLayout(group uint32) (BindGroupLayout, error)

	Release()
}

// BindGroupLayout describes the resources expected by one group.
type BindGroupLayout interface {
	Release()
}

// BindGroupEntry binds one buffer range to a binding slot.
// A zero Size means the rest of the buffer from Offset.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Size    uint64
}

// BindGroup is a concrete slot to resource mapping.
type BindGroup interface {
	Release()
}

// CommandEncoder records commands into a CommandBuffer.
type CommandEncoder interface {
	BeginComputePass(label string) ComputePass

	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64)

	// Finish ends recording. Validation errors raised while recording
	// are returned here.
	Finish() (CommandBuffer, error)

	Release()
}

// ComputePass records dispatches against a pipeline and bind groups.
type ComputePass interface {
	SetPipeline(pipeline ComputePipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	DispatchWorkgroups(x, y, z uint32)
	End()
	Release()
}

// CommandBuffer is a finished list of commands, consumed by one submit.
type CommandBuffer interface {
	Release()
}
