// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"fmt"

	"cogentcore.org/offload/gpu/hal"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device wraps a wgpu device.
type Device struct {
	dev   *wgpu.Device
	queue *Queue
}

func (dv *Device) Queue() hal.Queue { return dv.queue }

// Limits returns the limits of the device, which are the WebGPU
// defaults since RequestDevice asks for no others.
func (dv *Device) Limits() hal.Limits {
	return limits(dv.dev.GetLimits().Limits)
}

func (dv *Device) CreateShaderModule(label, src string) (hal.ShaderModule, error) {
	sm, err := dv.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, err
	}
	return &ShaderModule{sm: sm}, nil
}

func (dv *Device) CreateComputePipeline(label string, module hal.ShaderModule, entryPoint string) (hal.ComputePipeline, error) {
	sm, ok := module.(*ShaderModule)
	if !ok || sm == nil {
		return nil, fmt.Errorf("webgpu: compute pipeline %q: not a webgpu shader module", label)
	}
	// no Layout: it is inferred from the shader
	pl, err := dv.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     sm.sm,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return &ComputePipeline{pl: pl}, nil
}

func (dv *Device) CreateBuffer(label string, size uint64, usage hal.Usages) (hal.Buffer, error) {
	buf, err := dv.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usages(usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{buf: buf, label: label, size: size, usage: usage}, nil
}

func (dv *Device) CreateBufferInit(label string, contents []byte, usage hal.Usages) (hal.Buffer, error) {
	buf, err := dv.dev.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    usages(usage),
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{buf: buf, label: label, size: uint64(len(contents)), usage: usage}, nil
}

func (dv *Device) CreateBindGroup(label string, layout hal.BindGroupLayout, entries []hal.BindGroupEntry) (hal.BindGroup, error) {
	bl, ok := layout.(*BindGroupLayout)
	if !ok || bl == nil {
		return nil, fmt.Errorf("webgpu: bind group %q: not a webgpu bind group layout", label)
	}
	wes := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		bf, ok := e.Buffer.(*Buffer)
		if !ok || bf == nil {
			return nil, fmt.Errorf("webgpu: bind group %q: binding %d: not a webgpu buffer", label, e.Binding)
		}
		size := e.Size
		if size == 0 {
			size = bf.size - min(e.Offset, bf.size)
		}
		wes[i] = wgpu.BindGroupEntry{
			Binding: e.Binding,
			Buffer:  bf.buf,
			Offset:  e.Offset,
			Size:    size,
		}
	}
	bg, err := dv.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  bl.bl,
		Entries: wes,
	})
	if err != nil {
		return nil, err
	}
	return &BindGroup{bg: bg}, nil
}

func (dv *Device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	cmd, err := dv.dev.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	return &CommandEncoder{cmd: cmd}, nil
}

// Poll polls the device. wgpu-native reports no poll errors:
// failures surface through the map callback status.
func (dv *Device) Poll(wait bool) (bool, error) {
	return dv.dev.Poll(wait, nil), nil
}

func (dv *Device) Release() {
	if dv.dev != nil {
		dv.queue.q.Release()
		dv.dev.Release()
		dv.dev = nil
	}
}

// Queue wraps a wgpu queue.
type Queue struct {
	q *wgpu.Queue
}

func (q *Queue) Submit(cmds ...hal.CommandBuffer) error {
	wcs := make([]*wgpu.CommandBuffer, len(cmds))
	for i, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok || cb == nil {
			return fmt.Errorf("webgpu: submit: not a webgpu command buffer")
		}
		wcs[i] = cb.cb
	}
	q.q.Submit(wcs...)
	return nil
}

// ShaderModule wraps a wgpu shader module.
type ShaderModule struct {
	sm *wgpu.ShaderModule
}

func (sm *ShaderModule) Release() {
	if sm.sm != nil {
		sm.sm.Release()
		sm.sm = nil
	}
}

// ComputePipeline wraps a wgpu compute pipeline.
type ComputePipeline struct {
	pl *wgpu.ComputePipeline
}

func (pl *ComputePipeline) BindGroupLayout(group uint32) (hal.BindGroupLayout, error) {
	bl := pl.pl.GetBindGroupLayout(group)
	if bl == nil {
		return nil, fmt.Errorf("webgpu: pipeline has no bind group %d", group)
	}
	return &BindGroupLayout{bl: bl}, nil
}

func (pl *ComputePipeline) Release() {
	if pl.pl != nil {
		pl.pl.Release()
		pl.pl = nil
	}
}

// BindGroupLayout wraps a wgpu bind group layout.
type BindGroupLayout struct {
	bl *wgpu.BindGroupLayout
}

func (bl *BindGroupLayout) Release() {
	if bl.bl != nil {
		bl.bl.Release()
		bl.bl = nil
	}
}

// BindGroup wraps a wgpu bind group.
type BindGroup struct {
	bg *wgpu.BindGroup
}

func (bg *BindGroup) Release() {
	if bg.bg != nil {
		bg.bg.Release()
		bg.bg = nil
	}
}
