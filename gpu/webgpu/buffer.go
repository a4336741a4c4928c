// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"fmt"

	"cogentcore.org/offload/gpu/hal"
	"github.com/cogentcore/webgpu/wgpu"
)

// Buffer wraps a wgpu buffer.
type Buffer struct {
	buf   *wgpu.Buffer
	label string
	size  uint64
	usage hal.Usages
}

func (bf *Buffer) Label() string     { return bf.label }
func (bf *Buffer) Size() uint64      { return bf.size }
func (bf *Buffer) Usage() hal.Usages { return bf.usage }

func (bf *Buffer) MapAsync(mode hal.MapMode, offset, size uint64, callback func(hal.MapStatus)) error {
	if mode != hal.MapRead {
		return fmt.Errorf("webgpu: buffer %q: only read mappings are supported", bf.label)
	}
	return bf.buf.MapAsync(wgpu.MapModeRead, offset, size, func(s wgpu.BufferMapAsyncStatus) {
		callback(status(s))
	})
}

func (bf *Buffer) MappedRange(offset, size uint64) []byte {
	return bf.buf.GetMappedRange(uint(offset), uint(size))
}

func (bf *Buffer) Unmap() {
	bf.buf.Unmap()
}

func (bf *Buffer) Release() {
	if bf.buf != nil {
		bf.buf.Release()
		bf.buf = nil
	}
}

// CommandEncoder wraps a wgpu command encoder.
type CommandEncoder struct {
	cmd *wgpu.CommandEncoder
}

func (ce *CommandEncoder) BeginComputePass(label string) hal.ComputePass {
	return &ComputePass{cp: ce.cmd.BeginComputePass(nil)} // note: optional name in the descriptor
}

func (ce *CommandEncoder) CopyBufferToBuffer(src hal.Buffer, srcOffset uint64, dst hal.Buffer, dstOffset, size uint64) {
	ce.cmd.CopyBufferToBuffer(src.(*Buffer).buf, srcOffset, dst.(*Buffer).buf, dstOffset, size)
}

func (ce *CommandEncoder) Finish() (hal.CommandBuffer, error) {
	cb, err := ce.cmd.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{cb: cb}, nil
}

func (ce *CommandEncoder) Release() {
	if ce.cmd != nil {
		ce.cmd.Release()
		ce.cmd = nil
	}
}

// ComputePass wraps a wgpu compute pass encoder.
type ComputePass struct {
	cp *wgpu.ComputePassEncoder
}

func (cp *ComputePass) SetPipeline(pipeline hal.ComputePipeline) {
	cp.cp.SetPipeline(pipeline.(*ComputePipeline).pl)
}

func (cp *ComputePass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	cp.cp.SetBindGroup(index, group.(*BindGroup).bg, dynamicOffsets)
}

func (cp *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	cp.cp.DispatchWorkgroups(x, y, z)
}

func (cp *ComputePass) End() {
	cp.cp.End()
}

func (cp *ComputePass) Release() {
	if cp.cp != nil {
		cp.cp.Release()
		cp.cp = nil
	}
}

// CommandBuffer wraps a wgpu command buffer.
type CommandBuffer struct {
	cb *wgpu.CommandBuffer
}

func (cb *CommandBuffer) Release() {
	if cb.cb != nil {
		cb.cb.Release()
		cb.cb = nil
	}
}
