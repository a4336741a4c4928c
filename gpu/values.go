// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"cogentcore.org/offload/gpu/hal"
)

// Buffer usages of the three buffers of a [BufferSet].
const (
	InputUsage   = hal.UsageStorage
	OutputUsage  = hal.UsageStorage | hal.UsageCopySrc
	StagingUsage = hal.UsageMapRead | hal.UsageCopyDst
)

// BufferSet holds the three device buffers of one offload:
// the input holding the uploaded data, the output written by the
// kernel, and the host-mappable staging buffer the output is copied
// into for reading back. All three have the same size.
type BufferSet[E Element] struct {
	// Len is the number of elements.
	Len int

	// Size is the size of each buffer in bytes.
	Size uint64

	// Input is initialized with the data, for reading by the kernel.
	Input hal.Buffer

	// Output is zero-initialized, for writing by the kernel
	// and as a copy source.
	Output hal.Buffer

	// Staging can be mapped for reading on the host, and is
	// a copy destination.
	Staging hal.Buffer
}

// NewBufferSet creates the buffers for data on dev, uploading data to
// the input buffer. The output and staging buffers are zero-initialized.
func NewBufferSet[E Element](dev *Device, data []E) (*BufferSet[E], error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	sz := ByteSize[E](len(data))
	if lim := dev.Limits.MaxBufferSize; sz > lim {
		return nil, fmt.Errorf("%w: %d bytes exceeds MaxBufferSize %d", ErrAllocationFailed, sz, lim)
	}
	if lim := dev.Limits.MaxStorageBufferBindingSize; sz > lim {
		return nil, fmt.Errorf("%w: %d bytes exceeds MaxStorageBufferBindingSize %d", ErrAllocationFailed, sz, lim)
	}
	bs := &BufferSet[E]{Len: len(data), Size: sz}
	var err error
	bs.Input, err = dev.Device.CreateBufferInit("input", ToBytes(data), InputUsage)
	if err != nil {
		return nil, fmt.Errorf("%w: input: %w", ErrAllocationFailed, err)
	}
	bs.Output, err = dev.Device.CreateBuffer("output", sz, OutputUsage)
	if err != nil {
		bs.Release()
		return nil, fmt.Errorf("%w: output: %w", ErrAllocationFailed, err)
	}
	bs.Staging, err = dev.Device.CreateBuffer("staging", sz, StagingUsage)
	if err != nil {
		bs.Release()
		return nil, fmt.Errorf("%w: staging: %w", ErrAllocationFailed, err)
	}
	Logger().Debug("gpu: buffers created", "type", TypeOf[E](), "len", bs.Len, "bytes", sz)
	return bs, nil
}

// Entries returns the bind group entries of the set:
// the input at slot 0 and the output at slot 1, each over its full extent.
func (bs *BufferSet[E]) Entries() []BindEntry {
	return []BindEntry{
		{Binding: 0, Buffer: bs.Input},
		{Binding: 1, Buffer: bs.Output},
	}
}

// Release releases the buffers in reverse creation order.
func (bs *BufferSet[E]) Release() {
	for _, b := range []*hal.Buffer{&bs.Staging, &bs.Output, &bs.Input} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
}
