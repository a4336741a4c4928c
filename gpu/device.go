// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"

	"cogentcore.org/offload/gpu/hal"
)

// DeviceOptions are the options for [NewDevice].
type DeviceOptions struct {
	// Label is the debug label of the logical device.
	Label string

	// ForceFallback selects the fallback (software) adapter of the backend.
	ForceFallback bool
}

// Device holds the adapter, logical device and queue used for
// one offload run. It owns every resource created through it.
type Device struct {
	// Instance is the backend instance.
	Instance hal.Instance

	// Adapter is the physical device selected by the backend.
	Adapter hal.Adapter

	// Device is the logical device.
	Device hal.Device

	// Queue is the device queue.
	Queue hal.Queue

	// Info describes the selected adapter.
	Info hal.AdapterInfo

	// Limits are the limits of the logical device, which can be
	// lower than those the adapter supports.
	Limits hal.Limits
}

// NewDevice selects an adapter from the given backend instance and
// opens a logical device with its queue. A nil opts uses the defaults.
// The Device takes ownership of inst, which is released on failure.
// There is no retry.
func NewDevice(inst hal.Instance, opts *DeviceOptions) (*Device, error) {
	if opts == nil {
		opts = &DeviceOptions{}
	}
	label := opts.Label
	if label == "" {
		label = "offload"
	}
	ad, err := inst.RequestAdapter(&hal.AdapterOptions{ForceFallback: opts.ForceFallback})
	if err != nil {
		inst.Release()
		return nil, fmt.Errorf("%w: %s backend: %w", ErrNoAdapterFound, inst.Name(), err)
	}
	if ad == nil {
		inst.Release()
		return nil, fmt.Errorf("%w: %s backend returned no adapter", ErrNoAdapterFound, inst.Name())
	}
	info := ad.Info()
	Logger().Info("gpu: adapter selected", "name", info.Name, "vendor", info.Vendor, "backend", info.Backend)

	hd, err := ad.RequestDevice(label)
	if err != nil {
		ad.Release()
		inst.Release()
		return nil, fmt.Errorf("%w: adapter %q: %w", ErrDeviceCreationFailed, info.Name, err)
	}
	dv := &Device{
		Instance: inst,
		Adapter:  ad,
		Device:   hd,
		Queue:    hd.Queue(),
		Info:     info,
		Limits:   hd.Limits(),
	}
	Logger().Debug("gpu: device created", "label", label, "maxBufferSize", dv.Limits.MaxBufferSize)
	return dv, nil
}

// Poll processes submitted work, firing any ready map callbacks.
// If wait is true it blocks until the queue is empty.
// It returns true when no submitted work remains.
func (dv *Device) Poll(wait bool) (bool, error) {
	return dv.Device.Poll(wait)
}

// WaitDone waits until device is done with current processing steps
func (dv *Device) WaitDone() error {
	_, err := dv.Poll(true)
	return err
}

// Release releases the device, adapter and instance.
func (dv *Device) Release() {
	if dv.Device != nil {
		dv.Device.Release()
		dv.Device = nil
		dv.Queue = nil
	}
	if dv.Adapter != nil {
		dv.Adapter.Release()
		dv.Adapter = nil
	}
	if dv.Instance != nil {
		dv.Instance.Release()
		dv.Instance = nil
	}
}
