// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernels

import (
	"testing"

	"cogentcore.org/offload/gpu/soft"
	"cogentcore.org/offload/gpu/wgsl"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			k, err := ByName(name)
			require.NoError(t, err)
			md, err := wgsl.Reflect(k.Source)
			require.NoError(t, err)
			g := md.Group(0)
			require.Len(t, g, 2)
			assert.Equal(t, uint32(0), g[0].Binding)
			assert.Equal(t, wgsl.ReadOnlyStorage, g[0].Kind)
			assert.Equal(t, uint32(1), g[1].Binding)
			assert.Equal(t, wgsl.Storage, g[1].Kind)
			ep, ok := md.EntryPoint(k.Entry)
			require.True(t, ok)
			assert.Equal(t, uint32(64), ep.Invocations())
		})
	}
}

func TestCompile(t *testing.T) {
	for _, name := range Names() {
		k, err := ByName(name)
		require.NoError(t, err)
		words, err := wgsl.Compile(k.Source)
		require.NoError(t, err, name)
		require.NotEmpty(t, words)
		assert.Equal(t, uint32(wgsl.SPIRVMagic), words[0])
	}
}

func TestReference(t *testing.T) {
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16}, Double.Reference(in))
	assert.Equal(t, []float32{36, 0, 0, 0, 0, 0, 0, 0}, Sum.Reference(in))
	assert.Empty(t, Sum.Reference(nil))
}

// TestSoftKernels checks the registered CPU kernels against the references.
func TestSoftKernels(t *testing.T) {
	in := []float32{0.5, -1.25, 3, 1e-3, 7, 2.5, -8, 100, 0.1}
	ks := soft.Kernels()
	for _, k := range []Kernel{Double, Sum} {
		sk, ok := ks[k.Source]
		require.True(t, ok, k.Name)
		b := soft.Bindings{0: toBytes(in), 1: make([]byte, 4*len(in))}
		for i := range uint32(64) {
			sk.Invoke(b, [3]uint32{i, 0, 0})
		}
		out := b.Float32(1)
		want := k.Reference(in)
		require.Len(t, out, len(want))
		for i := range want {
			assert.LessOrEqual(t, math32.Abs(want[i]-out[i]), float32(1e-5), "%s[%d]", k.Name, i)
		}
		assert.Equal(t, in, b.Float32(0), "input is not written")
	}
}

func TestByName(t *testing.T) {
	k, err := ByName("sum")
	require.NoError(t, err)
	assert.Equal(t, "sum", k.Name)
	_, err = ByName("product")
	assert.Error(t, err)
	assert.True(t, Has("double"))
	assert.False(t, Has("product"))
	assert.Equal(t, []string{"double", "sum"}, Names())
	assert.Equal(t, Double.Name, Default.Name)
}

func toBytes(fs []float32) []byte {
	b := make([]byte, 4*len(fs))
	copy(soft.Bindings{0: b}.Float32(0), fs)
	return b
}
