// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"context"
	"time"

	"cogentcore.org/offload/gpu/hal"
)

// Kernel is the compute program to offload. Its group 0 must declare
// the input at binding 0 and the output at binding 1.
type Kernel struct {
	// Name labels the pipeline.
	Name string

	// Source is the WGSL source.
	Source string

	// Entry is the compute entry point.
	Entry string
}

// RunOptions are the options for [Run].
type RunOptions struct {
	// Device are the device options.
	Device DeviceOptions

	// Workgroups is the dispatch size. A zero value dispatches enough
	// workgroups along x to cover every element.
	Workgroups [3]uint32

	// PollTimeout bounds the wait for the result. Zero waits indefinitely.
	PollTimeout time.Duration
}

// Run offloads data to the kernel once: it opens a device on inst,
// builds the pipeline, creates and uploads the buffers, binds them,
// dispatches, and reads the output back. Every resource is released,
// in reverse creation order, before Run returns. A nil opts uses the
// defaults. Either the full result or an error is returned.
func Run[E Element](ctx context.Context, inst hal.Instance, k Kernel, data []E, opts *RunOptions) ([]E, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	if len(data) == 0 {
		inst.Release()
		return nil, ErrEmptyInput
	}
	dev, err := NewDevice(inst, &opts.Device)
	if err != nil {
		return nil, err
	}
	defer dev.Release()

	pl, err := NewComputePipeline(dev, k.Name, k.Source, k.Entry)
	if err != nil {
		return nil, err
	}
	defer pl.Release()
	Logger().Info("gpu: pipeline ready", "kernel", k.Name)

	set, err := NewBufferSet(dev, data)
	if err != nil {
		return nil, err
	}
	defer set.Release()
	Logger().Info("gpu: buffers ready", "elements", set.Len, "bytes", set.Size)

	if err := CheckElement[E](pl); err != nil {
		return nil, err
	}
	bg, err := NewBindGroup(dev, pl, set.Entries()...)
	if err != nil {
		return nil, err
	}
	defer bg.Release()
	Logger().Info("gpu: bind group ready", "bindings", len(pl.Layout))

	wg := opts.Workgroups
	if wg == ([3]uint32{}) {
		wg = [3]uint32{uint32(Warps(len(data), max(pl.Invocations(), 1))), 1, 1}
	}
	dp := NewDispatcher(dev)
	if err := dp.Compute(pl, bg, wg); err != nil {
		return nil, err
	}
	Logger().Info("gpu: compute submitted", "workgroups", wg)

	if opts.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.PollTimeout)
		defer cancel()
	}
	out, err := Readback(ctx, dp, set)
	if err != nil {
		return nil, err
	}
	Logger().Info("gpu: result read back", "elements", len(out))
	return out, nil
}
