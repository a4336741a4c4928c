// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernels provides the WGSL compute kernels that can be offloaded,
// each with a CPU reference implementation. All kernels share the same
// interface: entry point main, and group 0 with the input array at
// binding 0 and the output array of the same length at binding 1.
package kernels

import (
	"embed"
	"fmt"
	"sort"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu/soft"
)

//go:embed shaders/*.wgsl
var shaders embed.FS

// Entry is the entry point of every kernel.
const Entry = "main"

// Kernel is a compute kernel.
type Kernel struct {
	// Name is the kernel name used in configuration.
	Name string

	// Source is the WGSL source.
	Source string

	// Entry is the compute entry point.
	Entry string

	// Reference computes on the CPU what the kernel computes on the GPU.
	Reference func(in []float32) []float32
}

var (
	// Double writes 2*x for every element x of the input.
	Double = Kernel{
		Name:   "double",
		Source: source("double"),
		Entry:  Entry,
		Reference: func(in []float32) []float32 {
			out := make([]float32, len(in))
			for i, x := range in {
				out[i] = x * 2
			}
			return out
		},
	}

	// Sum writes the sum of the input to the first element of the output,
	// leaving the remaining elements zero.
	Sum = Kernel{
		Name:   "sum",
		Source: source("sum"),
		Entry:  Entry,
		Reference: func(in []float32) []float32 {
			out := make([]float32, len(in))
			if len(out) == 0 {
				return out
			}
			var total float32
			for _, x := range in {
				total += x
			}
			out[0] = total
			return out
		},
	}
)

// Default is the kernel run when none is configured.
var Default = Double

var all = map[string]Kernel{
	Double.Name: Double,
	Sum.Name:    Sum,
}

func init() {
	soft.RegisterKernel(soft.Kernel{
		Name:   Double.Name,
		Source: Double.Source,
		Invoke: func(b soft.Bindings, gid [3]uint32) {
			in, out := b.Float32(0), b.Float32(1)
			i := gid[0]
			if int(i) >= len(in) || int(i) >= len(out) {
				return
			}
			out[i] = in[i] * 2
		},
	})
	soft.RegisterKernel(soft.Kernel{
		Name:   Sum.Name,
		Source: Sum.Source,
		Invoke: func(b soft.Bindings, gid [3]uint32) {
			if gid[0] != 0 {
				return
			}
			in, out := b.Float32(0), b.Float32(1)
			if len(out) == 0 {
				return
			}
			var total float32
			for _, x := range in {
				total += x
			}
			out[0] = total
		},
	})
}

func source(name string) string {
	return string(errors.Must1(shaders.ReadFile("shaders/" + name + ".wgsl")))
}

// ByName returns the kernel with the given name.
func ByName(name string) (Kernel, error) {
	k, ok := all[name]
	if !ok {
		return Kernel{}, fmt.Errorf("kernels: unknown kernel %q (have %v)", name, Names())
	}
	return k, nil
}

// Names returns the names of all kernels in sorted order.
func Names() []string {
	ns := make([]string, 0, len(all))
	for n := range all {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}

// Has returns true if a kernel with the given name exists.
func Has(name string) bool {
	_, ok := all[name]
	return ok
}
