// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package soft is a CPU implementation of [hal]. It executes registered Go
// kernels in place of WGSL shaders and applies the same validation rules
// as WebGPU: buffer usages are checked on every bind, copy and map,
// encoder errors surface at Finish, work runs in submission order, and
// map callbacks fire only from Device.Poll once every submission made
// before the map request has executed.
package soft

import (
	"sync"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu/hal"
)

// Errors returned by the soft backend.
var (
	ErrNoAdapter  = errors.New("soft: no adapter available")
	ErrDeviceLost = errors.New("soft: device lost")
	ErrValidation = errors.New("soft: validation error")
)

// Name is the backend name.
const Name = "soft"

// Instance is the soft backend instance.
type Instance struct {
	kernels    map[string]Kernel
	limits     hal.Limits
	adLimits   *hal.Limits
	noAdapter  bool
	deviceErr  error
	stall      bool
	deviceLost bool
}

// Option configures an Instance.
type Option func(*Instance)

// WithKernels adds kernels in addition to the registered ones.
func WithKernels(ks ...Kernel) Option {
	return func(in *Instance) {
		for _, k := range ks {
			in.kernels[k.Source] = k
		}
	}
}

// WithLimits sets the device limits. The adapter reports the same
// limits unless [WithAdapterLimits] is given.
func WithLimits(l hal.Limits) Option {
	return func(in *Instance) { in.limits = l }
}

// WithAdapterLimits sets the limits reported by the adapter, which
// may exceed those of the devices it creates, as on a discrete GPU
// whose devices are opened with the default limits.
func WithAdapterLimits(l hal.Limits) Option {
	return func(in *Instance) { in.adLimits = &l }
}

// WithoutAdapter makes RequestAdapter fail, as on a host with no
// compute-capable device.
func WithoutAdapter() Option {
	return func(in *Instance) { in.noAdapter = true }
}

// WithDeviceError makes RequestDevice fail with err.
func WithDeviceError(err error) Option {
	return func(in *Instance) { in.deviceErr = err }
}

// WithStall makes Poll never make progress, as a hung device would.
func WithStall() Option {
	return func(in *Instance) { in.stall = true }
}

// WithDeviceLost makes Poll report a lost device.
func WithDeviceLost() Option {
	return func(in *Instance) { in.deviceLost = true }
}

// New returns a new soft Instance holding all registered kernels.
func New(opts ...Option) *Instance {
	in := &Instance{
		kernels: Kernels(),
		limits:  hal.DefaultLimits(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

func (in *Instance) Name() string { return Name }

func (in *Instance) RequestAdapter(opts *hal.AdapterOptions) (hal.Adapter, error) {
	if in.noAdapter {
		return nil, ErrNoAdapter
	}
	return &Adapter{inst: in}, nil
}

func (in *Instance) Release() {}

// Adapter is the single soft adapter.
type Adapter struct {
	inst *Instance
}

func (ad *Adapter) Info() hal.AdapterInfo {
	return hal.AdapterInfo{Name: "Soft CPU Adapter", Vendor: "Cogent Core", Backend: Name}
}

func (ad *Adapter) Limits() hal.Limits {
	if ad.inst.adLimits != nil {
		return *ad.inst.adLimits
	}
	return ad.inst.limits
}

func (ad *Adapter) RequestDevice(label string) (hal.Device, error) {
	if ad.inst.deviceErr != nil {
		return nil, ad.inst.deviceErr
	}
	dv := &Device{
		label:      label,
		kernels:    ad.inst.kernels,
		limits:     ad.inst.limits,
		stall:      ad.inst.stall,
		deviceLost: ad.inst.deviceLost,
	}
	dv.queue = &Queue{device: dv}
	return dv, nil
}

func (ad *Adapter) Release() {}

var (
	registryMu sync.RWMutex
	registry   = map[string]Kernel{}
)

// RegisterKernel makes a kernel available to every Instance created
// afterwards. Kernels are matched to shader modules by exact source text.
func RegisterKernel(k Kernel) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[k.Source] = k
}

// Kernels returns a copy of the registered kernels, keyed by source.
func Kernels() map[string]Kernel {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ks := make(map[string]Kernel, len(registry))
	for src, k := range registry {
		ks[src] = k
	}
	return ks
}
