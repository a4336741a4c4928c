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

// ComputePipeline is a compiled compute kernel together with the
// binding layout inferred from its source. It is immutable once built
// and can be used for any number of dispatches.
type ComputePipeline struct {
	// unique name of this pipeline
	Name string

	// Entry is the compute entry point.
	Entry string

	// Layout is the reflected layout of bind group 0,
	// sorted by binding slot.
	Layout []wgsl.Binding

	// WorkgroupSize is the @workgroup_size of the entry point.
	WorkgroupSize [3]uint32

	module   hal.ShaderModule
	pipeline hal.ComputePipeline
}

// NewComputePipeline compiles the WGSL code and builds a compute
// pipeline for the given entry point on dev, with its layout inferred
// from the code. Any failure, from the host side compiler or from the
// backend, is returned as a [*ShaderCompilationError].
func NewComputePipeline(dev *Device, name, code, entry string) (*ComputePipeline, error) {
	fail := func(diag string) error {
		return &ShaderCompilationError{Pipeline: name, Entry: entry, Diagnostics: diag}
	}
	spirv, err := wgsl.Compile(code)
	switch {
	case wgsl.Unsupported(err):
		Logger().Warn("gpu: host compiler skipped shader", "pipeline", name, "reason", err)
	case err != nil:
		return nil, fail(err.Error())
	}
	md, err := wgsl.Reflect(code)
	if err != nil {
		return nil, fail(err.Error())
	}
	ep, ok := md.EntryPoint(entry)
	if !ok {
		var names []string
		for _, e := range md.EntryPoints {
			names = append(names, e.Name)
		}
		return nil, fail(fmt.Sprintf("no @compute entry point named %q (have: %s)", entry, strings.Join(names, ", ")))
	}

	pl := &ComputePipeline{
		Name:          name,
		Entry:         entry,
		Layout:        md.Group(0),
		WorkgroupSize: ep.WorkgroupSize,
	}
	pl.module, err = dev.Device.CreateShaderModule(name, code)
	if err != nil {
		return nil, fail(err.Error())
	}
	pl.pipeline, err = dev.Device.CreateComputePipeline(name, pl.module, entry)
	if err != nil {
		pl.module.Release()
		return nil, fail(err.Error())
	}
	Logger().Debug("gpu: compute pipeline created", "name", name, "entry", entry, "bindings", len(pl.Layout), "workgroupSize", ep.WorkgroupSize, "spirvWords", len(spirv))
	return pl, nil
}

// Invocations returns the number of invocations per workgroup.
func (pl *ComputePipeline) Invocations() int {
	return int(pl.WorkgroupSize[0] * pl.WorkgroupSize[1] * pl.WorkgroupSize[2])
}

// Binding returns the layout entry for the given slot of group 0.
func (pl *ComputePipeline) Binding(slot uint32) (wgsl.Binding, bool) {
	for _, b := range pl.Layout {
		if b.Binding == slot {
			return b, true
		}
	}
	return wgsl.Binding{}, false
}

func (pl *ComputePipeline) Release() {
	if pl.pipeline != nil {
		pl.pipeline.Release()
		pl.pipeline = nil
	}
	if pl.module != nil {
		pl.module.Release()
		pl.module = nil
	}
}
