// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"testing"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addOneWGSL = `
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;

@compute @workgroup_size(4)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
	dst[gid.x] = src[gid.x] + 1.0;
}
`

var addOne = Kernel{
	Name:   "addOne",
	Source: addOneWGSL,
	Invoke: func(b Bindings, gid [3]uint32) {
		src, dst := b.Float32(0), b.Float32(1)
		if int(gid[0]) < len(dst) {
			dst[gid[0]] = src[gid[0]] + 1
		}
	},
}

func newDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	in := New(append([]Option{WithKernels(addOne)}, opts...)...)
	ad, err := in.RequestAdapter(nil)
	require.NoError(t, err)
	dv, err := ad.RequestDevice("test")
	require.NoError(t, err)
	return dv.(*Device)
}

func floats(b []byte) []float32 {
	return append([]float32(nil), view[float32](b)...)
}

func bytesOf(fs ...float32) []byte {
	b := make([]byte, 4*len(fs))
	copy(view[float32](b), fs)
	return b
}

// setup creates the pipeline, buffers and bind group for addOne over in.
func setup(t *testing.T, dv *Device, in ...float32) (hal.ComputePipeline, hal.BindGroup, hal.Buffer, hal.Buffer) {
	t.Helper()
	sm, err := dv.CreateShaderModule("addOne", addOneWGSL)
	require.NoError(t, err)
	pl, err := dv.CreateComputePipeline("addOne", sm, "main")
	require.NoError(t, err)
	src, err := dv.CreateBufferInit("src", bytesOf(in...), hal.UsageStorage)
	require.NoError(t, err)
	dst, err := dv.CreateBuffer("dst", uint64(4*len(in)), hal.UsageStorage|hal.UsageCopySrc)
	require.NoError(t, err)
	layout, err := pl.BindGroupLayout(0)
	require.NoError(t, err)
	bg, err := dv.CreateBindGroup("bg", layout, []hal.BindGroupEntry{{Binding: 0, Buffer: src}, {Binding: 1, Buffer: dst}})
	require.NoError(t, err)
	return pl, bg, src, dst
}

func dispatch(t *testing.T, dv *Device, pl hal.ComputePipeline, bg hal.BindGroup, x uint32) hal.CommandBuffer {
	t.Helper()
	enc, err := dv.CreateCommandEncoder("dispatch")
	require.NoError(t, err)
	cp := enc.BeginComputePass("pass")
	cp.SetPipeline(pl)
	cp.SetBindGroup(0, bg, nil)
	cp.DispatchWorkgroups(x, 1, 1)
	cp.End()
	cb, err := enc.Finish()
	require.NoError(t, err)
	return cb
}

func copyCmd(t *testing.T, dv *Device, src, dst hal.Buffer) hal.CommandBuffer {
	t.Helper()
	enc, err := dv.CreateCommandEncoder("copy")
	require.NoError(t, err)
	enc.CopyBufferToBuffer(src, 0, dst, 0, src.Size())
	cb, err := enc.Finish()
	require.NoError(t, err)
	return cb
}

func TestWithoutAdapter(t *testing.T) {
	_, err := New(WithoutAdapter()).RequestAdapter(nil)
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestAdapterLimits(t *testing.T) {
	big := hal.DefaultLimits()
	big.MaxBufferSize = 1 << 31
	in := New(WithAdapterLimits(big))
	ad, err := in.RequestAdapter(nil)
	require.NoError(t, err)
	assert.Equal(t, big, ad.Limits())
	dv, err := ad.RequestDevice("x")
	require.NoError(t, err)
	assert.Equal(t, hal.DefaultLimits(), dv.Limits())
	_, err = dv.CreateBuffer("b", 1<<29, hal.UsageStorage)
	assert.ErrorIs(t, err, ErrValidation)

	ad, err = New().RequestAdapter(nil)
	require.NoError(t, err)
	assert.Equal(t, hal.DefaultLimits(), ad.Limits())
}

func TestDeviceError(t *testing.T) {
	fail := errors.New("refused")
	ad, err := New(WithDeviceError(fail)).RequestAdapter(nil)
	require.NoError(t, err)
	_, err = ad.RequestDevice("x")
	assert.ErrorIs(t, err, fail)
}

func TestUnknownKernel(t *testing.T) {
	dv := newDevice(t)
	_, err := dv.CreateShaderModule("nope", "@compute @workgroup_size(1) fn main() {}")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPipelineEntryPoint(t *testing.T) {
	dv := newDevice(t)
	sm, err := dv.CreateShaderModule("addOne", addOneWGSL)
	require.NoError(t, err)
	_, err = dv.CreateComputePipeline("addOne", sm, "other")
	assert.ErrorIs(t, err, ErrValidation)

	pl, err := dv.CreateComputePipeline("addOne", sm, "main")
	require.NoError(t, err)
	_, err = pl.BindGroupLayout(1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBufferUsage(t *testing.T) {
	dv := newDevice(t)
	_, err := dv.CreateBuffer("empty", 16, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = dv.CreateBuffer("bad", 16, hal.UsageMapRead|hal.UsageStorage)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = dv.CreateBuffer("big", dv.limits.MaxBufferSize+4, hal.UsageStorage)
	assert.ErrorIs(t, err, ErrValidation)
	bf, err := dv.CreateBuffer("staging", 16, hal.UsageMapRead|hal.UsageCopyDst)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), bf.Size())
}

func TestBindGroupValidation(t *testing.T) {
	dv := newDevice(t)
	sm, err := dv.CreateShaderModule("addOne", addOneWGSL)
	require.NoError(t, err)
	pl, err := dv.CreateComputePipeline("addOne", sm, "main")
	require.NoError(t, err)
	layout, err := pl.BindGroupLayout(0)
	require.NoError(t, err)
	src, _ := dv.CreateBufferInit("src", bytesOf(1, 2), hal.UsageStorage)
	dst, _ := dv.CreateBuffer("dst", 8, hal.UsageStorage|hal.UsageCopySrc)
	staging, _ := dv.CreateBuffer("staging", 8, hal.UsageMapRead|hal.UsageCopyDst)

	tests := []struct {
		name    string
		entries []hal.BindGroupEntry
	}{
		{"too few", []hal.BindGroupEntry{{Binding: 0, Buffer: src}}},
		{"unknown slot", []hal.BindGroupEntry{{Binding: 0, Buffer: src}, {Binding: 2, Buffer: dst}}},
		{"duplicate slot", []hal.BindGroupEntry{{Binding: 0, Buffer: src}, {Binding: 0, Buffer: dst}}},
		{"wrong usage", []hal.BindGroupEntry{{Binding: 0, Buffer: src}, {Binding: 1, Buffer: staging}}},
		{"out of range", []hal.BindGroupEntry{{Binding: 0, Buffer: src}, {Binding: 1, Buffer: dst, Offset: 4, Size: 8}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dv.CreateBindGroup("bg", layout, tt.entries)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEncoderErrorsAtFinish(t *testing.T) {
	dv := newDevice(t)
	pl, bg, src, dst := setup(t, dv, 1, 2, 3, 4)

	// src lacks CopySrc
	enc, _ := dv.CreateCommandEncoder("copy")
	enc.CopyBufferToBuffer(src, 0, dst, 0, 16)
	_, err := enc.Finish()
	assert.ErrorIs(t, err, ErrValidation)

	// unended pass
	enc, _ = dv.CreateCommandEncoder("unended")
	cp := enc.BeginComputePass("pass")
	cp.SetPipeline(pl)
	cp.SetBindGroup(0, bg, nil)
	cp.DispatchWorkgroups(1, 1, 1)
	_, err = enc.Finish()
	assert.ErrorIs(t, err, ErrValidation)

	// no bind group
	enc, _ = dv.CreateCommandEncoder("nobind")
	cp = enc.BeginComputePass("pass")
	cp.SetPipeline(pl)
	cp.DispatchWorkgroups(1, 1, 1)
	cp.End()
	_, err = enc.Finish()
	assert.ErrorIs(t, err, ErrValidation)

	// too many workgroups
	enc, _ = dv.CreateCommandEncoder("big")
	cp = enc.BeginComputePass("pass")
	cp.SetPipeline(pl)
	cp.SetBindGroup(0, bg, nil)
	cp.DispatchWorkgroups(dv.limits.MaxComputeWorkgroupsPerDimension+1, 1, 1)
	cp.End()
	_, err = enc.Finish()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDispatchAndReadback(t *testing.T) {
	dv := newDevice(t)
	pl, bg, _, dst := setup(t, dv, 1, 2, 3, 4, 5, 6)
	staging, err := dv.CreateBuffer("staging", dst.Size(), hal.UsageMapRead|hal.UsageCopyDst)
	require.NoError(t, err)

	require.NoError(t, dv.Queue().Submit(dispatch(t, dv, pl, bg, 2)))
	require.NoError(t, dv.Queue().Submit(copyCmd(t, dv, dst, staging)))
	assert.Equal(t, 2, dv.queued())

	var got []hal.MapStatus
	require.NoError(t, staging.MapAsync(hal.MapRead, 0, staging.Size(), func(s hal.MapStatus) {
		got = append(got, s)
	}))
	assert.Nil(t, staging.MappedRange(0, staging.Size()), "not mapped before poll")
	assert.Empty(t, got, "callback only fires from poll")

	// one submission per non-blocking poll: the map waits for both
	empty, err := dv.Poll(false)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Empty(t, got)

	empty, err = dv.Poll(false)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Equal(t, []hal.MapStatus{hal.MapSuccess}, got)

	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7}, floats(staging.MappedRange(0, staging.Size())))
	staging.Unmap()
	assert.Equal(t, Unmapped, staging.(*Buffer).MapState())
}

func TestMapStateRules(t *testing.T) {
	dv := newDevice(t)
	_, _, _, dst := setup(t, dv, 1, 2)
	staging, _ := dv.CreateBuffer("staging", 8, hal.UsageMapRead|hal.UsageCopyDst)
	nop := func(hal.MapStatus) {}

	assert.ErrorIs(t, dst.MapAsync(hal.MapRead, 0, 8, nop), ErrValidation, "needs MapRead usage")
	assert.ErrorIs(t, staging.MapAsync(hal.MapRead, 0, 16, nop), ErrValidation, "out of range")
	assert.ErrorIs(t, staging.MapAsync(hal.MapWrite, 0, 8, nop), ErrValidation)

	require.NoError(t, staging.MapAsync(hal.MapRead, 0, 8, nop))
	assert.ErrorIs(t, staging.MapAsync(hal.MapRead, 0, 8, nop), ErrValidation, "already pending")

	// a buffer with a map pending cannot be used by a submission
	err := dv.Queue().Submit(copyCmd(t, dv, dst, staging))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUnmapCancelsPending(t *testing.T) {
	dv := newDevice(t)
	staging, _ := dv.CreateBuffer("staging", 8, hal.UsageMapRead|hal.UsageCopyDst)
	var got hal.MapStatus = -1
	require.NoError(t, staging.MapAsync(hal.MapRead, 0, 8, func(s hal.MapStatus) { got = s }))
	staging.Unmap()
	assert.Equal(t, hal.MapUnmappedBeforeCallback, got)
	_, err := dv.Poll(true)
	require.NoError(t, err)
	assert.Equal(t, hal.MapUnmappedBeforeCallback, got, "no second callback")
}

func TestResubmit(t *testing.T) {
	dv := newDevice(t)
	pl, bg, _, _ := setup(t, dv, 1, 2, 3, 4)
	cb := dispatch(t, dv, pl, bg, 1)
	require.NoError(t, dv.Queue().Submit(cb))
	assert.ErrorIs(t, dv.Queue().Submit(cb), ErrValidation)
}

func TestDeviceLost(t *testing.T) {
	dv := newDevice(t, WithDeviceLost())
	staging, _ := dv.CreateBuffer("staging", 8, hal.UsageMapRead|hal.UsageCopyDst)
	var got hal.MapStatus = -1
	require.NoError(t, staging.MapAsync(hal.MapRead, 0, 8, func(s hal.MapStatus) { got = s }))
	_, err := dv.Poll(true)
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.Equal(t, hal.MapDeviceLost, got)
}

func TestStall(t *testing.T) {
	dv := newDevice(t, WithStall())
	pl, bg, _, _ := setup(t, dv, 1, 2, 3, 4)
	require.NoError(t, dv.Queue().Submit(dispatch(t, dv, pl, bg, 1)))
	empty, err := dv.Poll(true)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, 1, dv.queued())
}

func TestKernelsRegistry(t *testing.T) {
	RegisterKernel(addOne)
	_, ok := Kernels()[addOneWGSL]
	assert.True(t, ok)
}
