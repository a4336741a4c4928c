// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"

	"cogentcore.org/offload/gpu/hal"
	"cogentcore.org/offload/gpu/wgsl"
)

// BindEntry binds a buffer, over its entire extent,
// to a binding slot of group 0.
type BindEntry struct {
	Binding uint32
	Buffer  hal.Buffer
}

// BindGroup is the concrete mapping of buffers to the binding slots
// of group 0 of a [ComputePipeline].
type BindGroup struct {
	// Pipeline is the pipeline whose layout the group was built against.
	Pipeline *ComputePipeline

	group hal.BindGroup
}

// KindUsage returns the buffer usage needed to bind a buffer
// to a slot of the given kind. Handle slots cannot take a buffer.
func KindUsage(k wgsl.Kinds) hal.Usages {
	if !k.IsBuffer() {
		return 0
	}
	switch k {
	case wgsl.Storage, wgsl.ReadOnlyStorage:
		return hal.UsageStorage
	case wgsl.Uniform:
		return hal.UsageUniform
	}
	return 0
}

// NewBindGroup builds the bind group for group 0 of pl from the given
// entries. Each slot declared by the layout must be given exactly once,
// by a buffer whose usage can serve the declared kind; anything else is
// a [*BindingLayoutMismatchError].
func NewBindGroup(dev *Device, pl *ComputePipeline, entries ...BindEntry) (*BindGroup, error) {
	mismatch := func(format string, args ...any) error {
		return &BindingLayoutMismatchError{Pipeline: pl.Name, Reason: fmt.Sprintf(format, args...)}
	}
	if len(entries) != len(pl.Layout) {
		return nil, mismatch("%d entries given for a layout with %d bindings", len(entries), len(pl.Layout))
	}
	seen := make(map[uint32]bool, len(entries))
	hes := make([]hal.BindGroupEntry, len(entries))
	for i, e := range entries {
		lb, ok := pl.Binding(e.Binding)
		if !ok {
			return nil, mismatch("binding %d is not declared", e.Binding)
		}
		if seen[e.Binding] {
			return nil, mismatch("binding %d is given more than once", e.Binding)
		}
		seen[e.Binding] = true
		if e.Buffer == nil {
			return nil, mismatch("binding %d (%s) has no buffer", e.Binding, lb.Name)
		}
		need := KindUsage(lb.Kind)
		if need == 0 {
			return nil, mismatch("binding %d (%s) is a %s slot, not a buffer", e.Binding, lb.Name, lb.Kind)
		}
		if !e.Buffer.Usage().Has(need) {
			return nil, mismatch("binding %d (%s) is %s and needs %s usage; buffer %q has %s", e.Binding, lb.Name, lb.Kind, need, e.Buffer.Label(), e.Buffer.Usage())
		}
		hes[i] = hal.BindGroupEntry{Binding: e.Binding, Buffer: e.Buffer}
	}
	layout, err := pl.pipeline.BindGroupLayout(0)
	if err != nil {
		return nil, &BindingLayoutMismatchError{Pipeline: pl.Name, Reason: "no layout for group 0", Err: err}
	}
	defer layout.Release()
	bg, err := dev.Device.CreateBindGroup(pl.Name, layout, hes)
	if err != nil {
		return nil, &BindingLayoutMismatchError{Pipeline: pl.Name, Reason: "rejected by the device", Err: err}
	}
	return &BindGroup{Pipeline: pl, group: bg}, nil
}

// CheckElement returns a [*BindingLayoutMismatchError] if a group 0
// binding of pl is an array of a scalar type other than E.
func CheckElement[E Element](pl *ComputePipeline) error {
	want := TypeOf[E]().WGSL()
	for _, b := range pl.Layout {
		el, ok := strings.CutPrefix(b.Type, "array<")
		if !ok {
			continue
		}
		el = strings.TrimSpace(strings.TrimSuffix(el, ">"))
		if i := strings.IndexByte(el, ','); i >= 0 { // array<f32, 4>
			el = strings.TrimSpace(el[:i])
		}
		if el != want {
			return &BindingLayoutMismatchError{Pipeline: pl.Name, Reason: fmt.Sprintf("binding %d (%s) is %s, buffers hold %s", b.Binding, b.Name, b.Type, want)}
		}
	}
	return nil
}

func (bg *BindGroup) Release() {
	if bg.group != nil {
		bg.group.Release()
		bg.group = nil
	}
}
