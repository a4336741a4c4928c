// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"context"
	"fmt"
	"math"

	"cogentcore.org/offload/gpu/hal"
)

// Dispatcher records and submits the commands of one offload:
// the compute dispatch, and the copy of the output into the staging
// buffer for reading back.
type Dispatcher struct {
	device *Device
}

// NewDispatcher returns a new Dispatcher for dev.
func NewDispatcher(dev *Device) *Dispatcher {
	return &Dispatcher{device: dev}
}

// ValidateWorkgroups returns [ErrInvalidWorkgroups] if any dimension is
// zero or exceeds the device limit.
func (dp *Dispatcher) ValidateWorkgroups(wg [3]uint32) error {
	mx := dp.device.Limits.MaxComputeWorkgroupsPerDimension
	for _, n := range wg {
		if n == 0 || n > mx {
			return fmt.Errorf("%w: %v (each must be in 1..%d)", ErrInvalidWorkgroups, wg, mx)
		}
	}
	return nil
}

// Compute records a compute pass that runs pl over the given number of
// workgroups with bg bound to group 0, and submits it.
func (dp *Dispatcher) Compute(pl *ComputePipeline, bg *BindGroup, workgroups [3]uint32) error {
	if err := dp.ValidateWorkgroups(workgroups); err != nil {
		return err
	}
	if bg.Pipeline != pl {
		return &BindingLayoutMismatchError{Pipeline: pl.Name, Reason: fmt.Sprintf("bind group was built for pipeline %q", bg.Pipeline.Name)}
	}
	cmd, err := dp.device.Device.CreateCommandEncoder(pl.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	defer cmd.Release()
	ce := cmd.BeginComputePass(pl.Name)
	ce.SetPipeline(pl.pipeline)
	ce.SetBindGroup(0, bg.group, nil)
	ce.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	ce.End()
	ce.Release()
	if err := dp.submit(cmd); err != nil {
		return err
	}
	Logger().Debug("gpu: dispatch submitted", "pipeline", pl.Name, "workgroups", workgroups)
	return nil
}

// Copy records a copy of size bytes from the start of src to the start
// of dst, and submits it.
func (dp *Dispatcher) Copy(src, dst hal.Buffer, size uint64) error {
	cmd, err := dp.device.Device.CreateCommandEncoder("copy")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	defer cmd.Release()
	cmd.CopyBufferToBuffer(src, 0, dst, 0, size)
	if err := dp.submit(cmd); err != nil {
		return err
	}
	Logger().Debug("gpu: copy submitted", "src", src.Label(), "dst", dst.Label(), "bytes", size)
	return nil
}

func (dp *Dispatcher) submit(cmd hal.CommandEncoder) error {
	cmdBuffer, err := cmd.Finish()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	defer cmdBuffer.Release()
	if err := dp.device.Queue.Submit(cmdBuffer); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return nil
}

// Readback copies the output buffer of set into its staging buffer,
// waits for the staging buffer to be mapped, and returns a copy of its
// contents. The staging buffer is unmapped before returning.
func Readback[E Element](ctx context.Context, dp *Dispatcher, set *BufferSet[E]) ([]E, error) {
	if err := dp.Copy(set.Output, set.Staging, set.Size); err != nil {
		return nil, err
	}
	mp, err := RequestMap(dp.device, set.Staging)
	if err != nil {
		return nil, err
	}
	return ReadMapped[E](ctx, mp, set.Len)
}

// Warps returns the number of warps (work goups of compute threads)
// that is sufficient to compute n elements, given specified number
// of threads per this dimension.
// It just rounds up to nearest even multiple of n divided by threads:
// Ceil(n / threads)
func Warps(n, threads int) int {
	return int(math.Ceil(float64(n) / float64(threads)))
}
