// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"context"
	"testing"

	"cogentcore.org/offload/gpu"
	"cogentcore.org/offload/gpu/hal"
	"cogentcore.org/offload/kernels"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInstance returns a new Instance, skipping the test on hosts
// without a GPU adapter.
func newInstance(t *testing.T) *Instance {
	t.Helper()
	inst := New()
	ad, err := inst.RequestAdapter(nil)
	if err != nil {
		inst.Release()
		t.Skipf("no GPU adapter available: %v", err)
	}
	ad.Release()
	return inst
}

func TestUsages(t *testing.T) {
	assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, usages(hal.UsageStorage|hal.UsageCopySrc))
	assert.Zero(t, usages(0))
}

func TestStatus(t *testing.T) {
	tests := map[wgpu.BufferMapAsyncStatus]hal.MapStatus{
		wgpu.BufferMapAsyncStatusSuccess:                 hal.MapSuccess,
		wgpu.BufferMapAsyncStatusValidationError:         hal.MapValidationError,
		wgpu.BufferMapAsyncStatusUnknown:                 hal.MapUnknown,
		wgpu.BufferMapAsyncStatusDeviceLost:              hal.MapDeviceLost,
		wgpu.BufferMapAsyncStatusDestroyedBeforeCallback: hal.MapDestroyedBeforeCallback,
		wgpu.BufferMapAsyncStatusUnmappedBeforeCallback:  hal.MapUnmappedBeforeCallback,
		wgpu.BufferMapAsyncStatusMappingAlreadyPending:   hal.MapValidationError,
		wgpu.BufferMapAsyncStatusOffsetOutOfRange:        hal.MapValidationError,
		wgpu.BufferMapAsyncStatusSizeOutOfRange:          hal.MapValidationError,
	}
	for ws, want := range tests {
		assert.Equal(t, want, status(ws), "%v", ws)
	}
}

func TestAdapterInfo(t *testing.T) {
	inst := newInstance(t)
	defer inst.Release()
	ad, err := inst.RequestAdapter(nil)
	require.NoError(t, err)
	defer ad.Release()
	info := ad.Info()
	assert.NotEmpty(t, info.Name)
	lim := ad.Limits()
	assert.NotZero(t, lim.MaxBufferSize)
	assert.NotZero(t, lim.MaxComputeWorkgroupsPerDimension)

	dv, err := ad.RequestDevice("test")
	require.NoError(t, err)
	defer dv.Release()
	dl := dv.Limits()
	assert.NotZero(t, dl.MaxStorageBufferBindingSize)
	assert.LessOrEqual(t, dl.MaxBufferSize, lim.MaxBufferSize)
	assert.LessOrEqual(t, dl.MaxStorageBufferBindingSize, lim.MaxStorageBufferBindingSize)
}

func TestRunKernels(t *testing.T) {
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	for _, k := range []kernels.Kernel{kernels.Double, kernels.Sum} {
		t.Run(k.Name, func(t *testing.T) {
			inst := newInstance(t)
			out, err := gpu.Run(context.Background(), inst, gpu.Kernel{Name: k.Name, Source: k.Source, Entry: k.Entry}, in, nil)
			require.NoError(t, err)
			assert.Equal(t, k.Reference(in), out)
		})
	}
}
