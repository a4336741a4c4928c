// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu/hal"
)

// command is one recorded command.
type command interface {
	run()
	buffers() []*Buffer
}

type copyCommand struct {
	src, dst             *Buffer
	srcOffset, dstOffset uint64
	size                 uint64
}

func (c *copyCommand) run() {
	copy(c.dst.data[c.dstOffset:c.dstOffset+c.size], c.src.data[c.srcOffset:c.srcOffset+c.size])
}

func (c *copyCommand) buffers() []*Buffer { return []*Buffer{c.src, c.dst} }

type dispatchCommand struct {
	pipeline *ComputePipeline
	group    *BindGroup
	x, y, z  uint32
}

// run executes every invocation of every workgroup sequentially.
func (c *dispatchCommand) run() {
	k := c.pipeline.module.kernel
	ws := c.pipeline.entry.WorkgroupSize
	b := c.group.bindings()
	for wz := uint32(0); wz < c.z; wz++ {
		for wy := uint32(0); wy < c.y; wy++ {
			for wx := uint32(0); wx < c.x; wx++ {
				for lz := uint32(0); lz < ws[2]; lz++ {
					for ly := uint32(0); ly < ws[1]; ly++ {
						for lx := uint32(0); lx < ws[0]; lx++ {
							k.Invoke(b, [3]uint32{wx*ws[0] + lx, wy*ws[1] + ly, wz*ws[2] + lz})
						}
					}
				}
			}
		}
	}
}

func (c *dispatchCommand) buffers() []*Buffer {
	bs := make([]*Buffer, len(c.group.entries))
	for i, e := range c.group.entries {
		bs[i] = e.buffer
	}
	return bs
}

// CommandEncoder records commands. Recording errors are collected and
// returned from Finish, as WebGPU does.
type CommandEncoder struct {
	device *Device
	label  string
	cmds   []command
	errs   []error
	pass   *ComputePass
	done   bool
}

func (ce *CommandEncoder) errorf(format string, args ...any) {
	ce.errs = append(ce.errs, fmt.Errorf("%w: command encoder %q: "+format, append([]any{ErrValidation, ce.label}, args...)...))
}

func (ce *CommandEncoder) BeginComputePass(label string) hal.ComputePass {
	cp := &ComputePass{encoder: ce, label: label}
	if ce.pass != nil && !ce.pass.ended {
		ce.errorf("compute pass %q begun while %q is open", label, ce.pass.label)
	}
	ce.pass = cp
	return cp
}

func (ce *CommandEncoder) CopyBufferToBuffer(src hal.Buffer, srcOffset uint64, dst hal.Buffer, dstOffset, size uint64) {
	if ce.pass != nil && !ce.pass.ended {
		ce.errorf("copy recorded while compute pass %q is open", ce.pass.label)
		return
	}
	sb, ok1 := src.(*Buffer)
	db, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 || sb == nil || db == nil {
		ce.errorf("copy: not a soft buffer")
		return
	}
	switch {
	case sb == db:
		ce.errorf("copy: source and destination are the same buffer %q", sb.label)
	case !sb.usage.Has(hal.UsageCopySrc):
		ce.errorf("copy: source %q needs CopySrc usage, has %s", sb.label, sb.usage)
	case !db.usage.Has(hal.UsageCopyDst):
		ce.errorf("copy: destination %q needs CopyDst usage, has %s", db.label, db.usage)
	case srcOffset%4 != 0 || dstOffset%4 != 0 || size%4 != 0:
		ce.errorf("copy: offsets and size must be multiples of 4")
	case srcOffset+size > sb.Size():
		ce.errorf("copy: source range [%d, %d) out of %q of size %d", srcOffset, srcOffset+size, sb.label, sb.Size())
	case dstOffset+size > db.Size():
		ce.errorf("copy: destination range [%d, %d) out of %q of size %d", dstOffset, dstOffset+size, db.label, db.Size())
	default:
		ce.cmds = append(ce.cmds, &copyCommand{src: sb, dst: db, srcOffset: srcOffset, dstOffset: dstOffset, size: size})
	}
}

func (ce *CommandEncoder) Finish() (hal.CommandBuffer, error) {
	if ce.done {
		return nil, fmt.Errorf("%w: command encoder %q already finished", ErrValidation, ce.label)
	}
	ce.done = true
	if ce.pass != nil && !ce.pass.ended {
		ce.errorf("compute pass %q was not ended", ce.pass.label)
	}
	if len(ce.errs) > 0 {
		return nil, errors.Join(ce.errs...)
	}
	return &CommandBuffer{label: ce.label, cmds: ce.cmds}, nil
}

func (ce *CommandEncoder) Release() {}

// ComputePass records dispatches into its encoder.
type ComputePass struct {
	encoder  *CommandEncoder
	label    string
	pipeline *ComputePipeline
	group    *BindGroup
	ended    bool
}

func (cp *ComputePass) SetPipeline(pipeline hal.ComputePipeline) {
	pl, ok := pipeline.(*ComputePipeline)
	if !ok || pl == nil {
		cp.encoder.errorf("compute pass %q: not a soft compute pipeline", cp.label)
		return
	}
	cp.pipeline = pl
}

func (cp *ComputePass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	bg, ok := group.(*BindGroup)
	if !ok || bg == nil {
		cp.encoder.errorf("compute pass %q: not a soft bind group", cp.label)
		return
	}
	if index != 0 {
		cp.encoder.errorf("compute pass %q: only bind group 0 is supported, got %d", cp.label, index)
		return
	}
	if len(dynamicOffsets) > 0 {
		cp.encoder.errorf("compute pass %q: dynamic offsets are not supported", cp.label)
		return
	}
	cp.group = bg
}

func (cp *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	ce := cp.encoder
	if cp.ended {
		ce.errorf("compute pass %q: dispatch after End", cp.label)
		return
	}
	if cp.pipeline == nil {
		ce.errorf("compute pass %q: dispatch without a pipeline", cp.label)
		return
	}
	if cp.group == nil {
		ce.errorf("compute pass %q: dispatch without bind group 0", cp.label)
		return
	}
	if l, ok := cp.pipeline.layouts[0]; ok && l != cp.group.layout {
		// layouts are compared by identity, as for inferred layouts in WebGPU
		ce.errorf("compute pass %q: bind group %q was not created from the layout of pipeline %q", cp.label, cp.group.label, cp.pipeline.label)
		return
	}
	mx := ce.device.limits.MaxComputeWorkgroupsPerDimension
	if x > mx || y > mx || z > mx {
		ce.errorf("compute pass %q: dispatch (%d, %d, %d) exceeds %d workgroups per dimension", cp.label, x, y, z, mx)
		return
	}
	if x == 0 || y == 0 || z == 0 {
		return
	}
	ce.cmds = append(ce.cmds, &dispatchCommand{pipeline: cp.pipeline, group: cp.group, x: x, y: y, z: z})
}

func (cp *ComputePass) End() {
	if cp.ended {
		cp.encoder.errorf("compute pass %q ended twice", cp.label)
		return
	}
	cp.ended = true
}

func (cp *ComputePass) Release() {}

// CommandBuffer is a finished list of soft commands.
type CommandBuffer struct {
	label     string
	cmds      []command
	submitted bool
	released  bool
}

func (cb *CommandBuffer) execute() {
	for _, c := range cb.cmds {
		c.run()
	}
}

// buffers returns every buffer referenced by the commands.
func (cb *CommandBuffer) buffers() []*Buffer {
	var bs []*Buffer
	for _, c := range cb.cmds {
		bs = append(bs, c.buffers()...)
	}
	return bs
}

func (cb *CommandBuffer) Release() { cb.released = true }
