// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"
	"unsafe"

	"cogentcore.org/offload/gpu/hal"
	"cogentcore.org/offload/gpu/wgsl"
)

// Kernel is the CPU implementation of a WGSL compute shader.
type Kernel struct {
	// Name is used in messages only.
	Name string

	// Source is the exact WGSL text this kernel implements.
	Source string

	// Invoke runs a single invocation with the given global invocation id.
	// Invocations run sequentially in workgroup order.
	Invoke func(b Bindings, gid [3]uint32)
}

// Bindings gives a kernel access to the bytes bound at each slot
// of group 0.
type Bindings map[uint32][]byte

// Float32 returns the bytes bound at slot viewed as float32 values.
// Writes through the returned slice update the buffer.
func (b Bindings) Float32(slot uint32) []float32 {
	return view[float32](b[slot])
}

// Uint32 returns the bytes bound at slot viewed as uint32 values.
func (b Bindings) Uint32(slot uint32) []uint32 {
	return view[uint32](b[slot])
}

// Int32 returns the bytes bound at slot viewed as int32 values.
func (b Bindings) Int32(slot uint32) []int32 {
	return view[int32](b[slot])
}

func view[E float32 | int32 | uint32](bs []byte) []E {
	if len(bs) < 4 {
		return nil
	}
	return unsafe.Slice((*E)(unsafe.Pointer(&bs[0])), len(bs)/4)
}

// ShaderModule is a soft shader module bound to its kernel.
type ShaderModule struct {
	label  string
	kernel Kernel
	module *wgsl.Module
}

func (sm *ShaderModule) Release() {}

// ComputePipeline is a soft compute pipeline.
type ComputePipeline struct {
	label   string
	module  *ShaderModule
	entry   wgsl.EntryPoint
	layouts map[uint32]*BindGroupLayout
}

func (pl *ComputePipeline) BindGroupLayout(group uint32) (hal.BindGroupLayout, error) {
	bl, ok := pl.layouts[group]
	if !ok {
		return nil, fmt.Errorf("%w: pipeline %q has no bind group %d", ErrValidation, pl.label, group)
	}
	return bl, nil
}

func (pl *ComputePipeline) Release() {}

// BindGroupLayout is the inferred layout of one group.
type BindGroupLayout struct {
	group   uint32
	entries []wgsl.Binding
}

func (bl *BindGroupLayout) binding(slot uint32) (wgsl.Binding, bool) {
	for _, b := range bl.entries {
		if b.Binding == slot {
			return b, true
		}
	}
	return wgsl.Binding{}, false
}

func (bl *BindGroupLayout) Release() {}

type boundBuffer struct {
	binding uint32
	buffer  *Buffer
	offset  uint64
	size    uint64
}

// BindGroup is a validated slot to buffer mapping.
type BindGroup struct {
	label   string
	layout  *BindGroupLayout
	entries []boundBuffer
}

func (bg *BindGroup) bindings() Bindings {
	b := Bindings{}
	for _, e := range bg.entries {
		b[e.binding] = e.buffer.data[e.offset : e.offset+e.size]
	}
	return b
}

func (bg *BindGroup) Release() {}
