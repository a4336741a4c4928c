// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"
	"sync"

	"cogentcore.org/offload/gpu/hal"
	"cogentcore.org/offload/gpu/wgsl"
)

// Device is a soft logical device.
type Device struct {
	mu sync.Mutex

	label      string
	kernels    map[string]Kernel
	limits     hal.Limits
	queue      *Queue
	stall      bool
	deviceLost bool
	released   bool

	// pending holds submitted work not yet executed, in submission order.
	pending []*submission

	// submitted and executed count submissions.
	submitted uint64
	executed  uint64

	// maps holds map requests waiting for their submissions to execute.
	maps []*mapRequest
}

type submission struct {
	seq  uint64
	cmds []*CommandBuffer
}

type mapRequest struct {
	buffer *Buffer
	after  uint64
}

func (dv *Device) Queue() hal.Queue { return dv.queue }

func (dv *Device) Limits() hal.Limits { return dv.limits }

// queued returns the number of submissions not yet executed.
func (dv *Device) queued() int {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return len(dv.pending)
}

func (dv *Device) CreateShaderModule(label, src string) (hal.ShaderModule, error) {
	k, ok := dv.kernels[src]
	if !ok {
		return nil, fmt.Errorf("%w: shader module %q: no CPU kernel registered for this source", ErrValidation, label)
	}
	md, err := wgsl.Reflect(src)
	if err != nil {
		return nil, fmt.Errorf("%w: shader module %q: %w", ErrValidation, label, err)
	}
	return &ShaderModule{label: label, kernel: k, module: md}, nil
}

func (dv *Device) CreateComputePipeline(label string, module hal.ShaderModule, entryPoint string) (hal.ComputePipeline, error) {
	sm, ok := module.(*ShaderModule)
	if !ok || sm == nil {
		return nil, fmt.Errorf("%w: compute pipeline %q: not a soft shader module", ErrValidation, label)
	}
	ep, ok := sm.module.EntryPoint(entryPoint)
	if !ok {
		return nil, fmt.Errorf("%w: compute pipeline %q: entry point %q not found", ErrValidation, label, entryPoint)
	}
	if ep.Invocations() == 0 {
		return nil, fmt.Errorf("%w: compute pipeline %q: workgroup size of %q is not a constant", ErrValidation, label, entryPoint)
	}
	pl := &ComputePipeline{label: label, module: sm, entry: ep, layouts: map[uint32]*BindGroupLayout{}}
	for _, b := range sm.module.Bindings {
		bl := pl.layouts[b.Group]
		if bl == nil {
			bl = &BindGroupLayout{group: b.Group}
			pl.layouts[b.Group] = bl
		}
		bl.entries = append(bl.entries, b)
	}
	return pl, nil
}

func (dv *Device) CreateBuffer(label string, size uint64, usage hal.Usages) (hal.Buffer, error) {
	return dv.newBuffer(label, size, usage, nil)
}

func (dv *Device) CreateBufferInit(label string, contents []byte, usage hal.Usages) (hal.Buffer, error) {
	return dv.newBuffer(label, uint64(len(contents)), usage, contents)
}

func (dv *Device) newBuffer(label string, size uint64, usage hal.Usages, contents []byte) (*Buffer, error) {
	if usage == 0 {
		return nil, fmt.Errorf("%w: buffer %q: usage must not be empty", ErrValidation, label)
	}
	if usage.Has(hal.UsageMapRead) && usage&^(hal.UsageMapRead|hal.UsageCopyDst) != 0 {
		return nil, fmt.Errorf("%w: buffer %q: MapRead may only be combined with CopyDst, got %s", ErrValidation, label, usage)
	}
	if size > dv.limits.MaxBufferSize {
		return nil, fmt.Errorf("%w: buffer %q: size %d exceeds MaxBufferSize %d", ErrValidation, label, size, dv.limits.MaxBufferSize)
	}
	bf := &Buffer{device: dv, label: label, usage: usage, data: make([]byte, size)}
	copy(bf.data, contents)
	return bf, nil
}

func (dv *Device) CreateBindGroup(label string, layout hal.BindGroupLayout, entries []hal.BindGroupEntry) (hal.BindGroup, error) {
	bl, ok := layout.(*BindGroupLayout)
	if !ok || bl == nil {
		return nil, fmt.Errorf("%w: bind group %q: not a soft bind group layout", ErrValidation, label)
	}
	if len(entries) != len(bl.entries) {
		return nil, fmt.Errorf("%w: bind group %q: %d entries for a layout with %d bindings", ErrValidation, label, len(entries), len(bl.entries))
	}
	bg := &BindGroup{label: label, layout: bl}
	seen := map[uint32]bool{}
	for _, e := range entries {
		lb, ok := bl.binding(e.Binding)
		if !ok {
			return nil, fmt.Errorf("%w: bind group %q: binding %d is not in the layout", ErrValidation, label, e.Binding)
		}
		if seen[e.Binding] {
			return nil, fmt.Errorf("%w: bind group %q: binding %d given twice", ErrValidation, label, e.Binding)
		}
		seen[e.Binding] = true
		bf, ok := e.Buffer.(*Buffer)
		if !ok || bf == nil {
			return nil, fmt.Errorf("%w: bind group %q: binding %d: not a soft buffer", ErrValidation, label, e.Binding)
		}
		need := hal.UsageStorage
		if lb.Kind == wgsl.Uniform {
			need = hal.UsageUniform
		}
		if !bf.usage.Has(need) {
			return nil, fmt.Errorf("%w: bind group %q: binding %d (%s) needs %s usage, buffer %q has %s", ErrValidation, label, e.Binding, lb.Kind, need, bf.label, bf.usage)
		}
		size := e.Size
		if size == 0 {
			size = bf.Size() - min(e.Offset, bf.Size())
		}
		if e.Offset+size > bf.Size() || size == 0 {
			return nil, fmt.Errorf("%w: bind group %q: binding %d range [%d, %d) out of buffer %q of size %d", ErrValidation, label, e.Binding, e.Offset, e.Offset+size, bf.label, bf.Size())
		}
		bg.entries = append(bg.entries, boundBuffer{binding: e.Binding, buffer: bf, offset: e.Offset, size: size})
	}
	return bg, nil
}

func (dv *Device) CreateCommandEncoder(label string) (hal.CommandEncoder, error) {
	return &CommandEncoder{device: dv, label: label}, nil
}

// Poll executes submitted work in order and then fires the callbacks of
// map requests whose preceding submissions have all executed. Without
// wait, at most one submission is executed per call.
func (dv *Device) Poll(wait bool) (bool, error) {
	dv.mu.Lock()
	if dv.deviceLost {
		var fire []*Buffer
		for _, mr := range dv.maps {
			fire = append(fire, mr.buffer)
		}
		dv.maps = nil
		dv.mu.Unlock()
		for _, bf := range fire {
			bf.resolve(hal.MapDeviceLost)
		}
		return false, ErrDeviceLost
	}
	if dv.stall {
		empty := len(dv.pending) == 0 && len(dv.maps) == 0
		dv.mu.Unlock()
		return empty, nil
	}
	for len(dv.pending) > 0 {
		sub := dv.pending[0]
		dv.pending = dv.pending[1:]
		for _, cb := range sub.cmds {
			cb.execute()
		}
		dv.executed = sub.seq
		if !wait {
			break
		}
	}
	var ready []*Buffer
	var waiting []*mapRequest
	for _, mr := range dv.maps {
		if mr.after <= dv.executed {
			ready = append(ready, mr.buffer)
		} else {
			waiting = append(waiting, mr)
		}
	}
	dv.maps = waiting
	empty := len(dv.pending) == 0
	dv.mu.Unlock()

	for _, bf := range ready {
		bf.resolve(hal.MapSuccess)
	}
	return empty, nil
}

func (dv *Device) Release() {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.released = true
	dv.pending = nil
}

// addMap registers a map request that becomes ready once everything
// submitted so far has executed.
func (dv *Device) addMap(bf *Buffer) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.maps = append(dv.maps, &mapRequest{buffer: bf, after: dv.submitted})
}

func (dv *Device) removeMap(bf *Buffer) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	for i, mr := range dv.maps {
		if mr.buffer == bf {
			dv.maps = append(dv.maps[:i], dv.maps[i+1:]...)
			return
		}
	}
}

// Queue is the soft device queue.
type Queue struct {
	device *Device
}

// Submit validates and enqueues the command buffers as one submission.
// A command buffer can only be submitted once, and no buffer it uses
// may be mapped or have a map pending.
func (q *Queue) Submit(cmds ...hal.CommandBuffer) error {
	dv := q.device
	var cbs []*CommandBuffer
	for _, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok || cb == nil {
			return fmt.Errorf("%w: submit: not a soft command buffer", ErrValidation)
		}
		if cb.submitted {
			return fmt.Errorf("%w: submit: command buffer %q was already submitted", ErrValidation, cb.label)
		}
		if cb.released {
			return fmt.Errorf("%w: submit: command buffer %q was released", ErrValidation, cb.label)
		}
		for _, bf := range cb.buffers() {
			if st := bf.MapState(); st != Unmapped {
				return fmt.Errorf("%w: submit: buffer %q is used while %s", ErrValidation, bf.label, st)
			}
			if bf.isReleased() {
				return fmt.Errorf("%w: submit: buffer %q was released", ErrValidation, bf.label)
			}
		}
		cbs = append(cbs, cb)
	}
	for _, cb := range cbs {
		cb.submitted = true
	}
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if dv.released {
		return fmt.Errorf("%w: submit: device was released", ErrValidation)
	}
	dv.submitted++
	dv.pending = append(dv.pending, &submission{seq: dv.submitted, cmds: cbs})
	return nil
}
