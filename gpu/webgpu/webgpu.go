// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webgpu implements [hal] on a real GPU through wgpu-native,
// using github.com/cogentcore/webgpu.
package webgpu

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu/hal"
	"github.com/cogentcore/webgpu/wgpu"
)

// Name is the backend name.
const Name = "webgpu"

// Instance wraps a wgpu instance.
type Instance struct {
	inst *wgpu.Instance
}

// New returns a new webgpu Instance.
func New() *Instance {
	return &Instance{inst: wgpu.CreateInstance(nil)}
}

func (in *Instance) Name() string { return Name }

func (in *Instance) RequestAdapter(opts *hal.AdapterOptions) (hal.Adapter, error) {
	if in.inst == nil {
		return nil, errors.New("webgpu: instance was not created")
	}
	wo := &wgpu.RequestAdapterOptions{}
	if opts != nil {
		wo.ForceFallbackAdapter = opts.ForceFallback
	}
	ad, err := in.inst.RequestAdapter(wo)
	if err != nil {
		return nil, err
	}
	if ad == nil {
		return nil, errors.New("webgpu: no adapter returned")
	}
	return &Adapter{ad: ad}, nil
}

func (in *Instance) Release() {
	if in.inst != nil {
		in.inst.Release()
		in.inst = nil
	}
}

// Adapter wraps a wgpu adapter.
type Adapter struct {
	ad *wgpu.Adapter
}

func (ad *Adapter) Info() hal.AdapterInfo {
	info := ad.ad.GetInfo()
	return hal.AdapterInfo{
		Name:    adapterName(&info),
		Vendor:  strings.TrimSpace(info.VendorName),
		Backend: fmt.Sprint(info.BackendType),
	}
}

// adapterName returns the most descriptive name of the adapter,
// skipping the hex ids some drivers report as names.
func adapterName(ai *wgpu.AdapterInfo) string {
	for _, n := range []string{ai.Name, ai.DriverDescription, ai.VendorName} {
		n = strings.TrimSpace(n)
		if n != "" && !strings.HasPrefix(n, "0x") {
			return n
		}
	}
	return "unknown adapter"
}

func (ad *Adapter) Limits() hal.Limits {
	return limits(ad.ad.GetLimits().Limits)
}

// limits converts limits from wgpu.
func limits(l wgpu.Limits) hal.Limits {
	return hal.Limits{
		MaxBufferSize:                    l.MaxBufferSize,
		MaxStorageBufferBindingSize:      l.MaxStorageBufferBindingSize,
		MaxComputeWorkgroupsPerDimension: l.MaxComputeWorkgroupsPerDimension,
	}
}

func (ad *Adapter) RequestDevice(label string) (hal.Device, error) {
	dev, err := ad.ad.RequestDevice(&wgpu.DeviceDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &Device{dev: dev, queue: &Queue{q: dev.GetQueue()}}, nil
}

func (ad *Adapter) Release() {
	if ad.ad != nil {
		ad.ad.Release()
		ad.ad = nil
	}
}

// usages converts buffer usages to wgpu.
func usages(u hal.Usages) wgpu.BufferUsage {
	var wu wgpu.BufferUsage
	if u.Has(hal.UsageMapRead) {
		wu |= wgpu.BufferUsageMapRead
	}
	if u.Has(hal.UsageMapWrite) {
		wu |= wgpu.BufferUsageMapWrite
	}
	if u.Has(hal.UsageCopySrc) {
		wu |= wgpu.BufferUsageCopySrc
	}
	if u.Has(hal.UsageCopyDst) {
		wu |= wgpu.BufferUsageCopyDst
	}
	if u.Has(hal.UsageUniform) {
		wu |= wgpu.BufferUsageUniform
	}
	if u.Has(hal.UsageStorage) {
		wu |= wgpu.BufferUsageStorage
	}
	return wu
}

// status converts a map status from wgpu.
// Range and pending errors are validation errors of the request.
func status(s wgpu.BufferMapAsyncStatus) hal.MapStatus {
	switch s {
	case wgpu.BufferMapAsyncStatusSuccess:
		return hal.MapSuccess
	case wgpu.BufferMapAsyncStatusValidationError,
		wgpu.BufferMapAsyncStatusMappingAlreadyPending,
		wgpu.BufferMapAsyncStatusOffsetOutOfRange,
		wgpu.BufferMapAsyncStatusSizeOutOfRange:
		return hal.MapValidationError
	case wgpu.BufferMapAsyncStatusDeviceLost:
		return hal.MapDeviceLost
	case wgpu.BufferMapAsyncStatusDestroyedBeforeCallback:
		return hal.MapDestroyedBeforeCallback
	case wgpu.BufferMapAsyncStatusUnmappedBeforeCallback:
		return hal.MapUnmappedBeforeCallback
	}
	return hal.MapUnknown
}
