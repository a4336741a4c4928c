// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wgsl is a small WGSL front end: it compiles shader source with
// naga to surface compiler diagnostics before any device is involved, and
// reflects the resource bindings and compute entry points that a host
// needs to wire buffers to a kernel.
package wgsl

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

// Compile compiles WGSL source to SPIR-V words. The returned error
// carries naga's diagnostics unchanged.
func Compile(src string) ([]uint32, error) {
	b, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	// SPIR-V is a stream of little-endian 32-bit words
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}

// Unsupported returns true if err, as returned by Compile, only says
// that the compiler does not implement something yet, rather than
// reporting an error in the source. Such sources are left to the
// device driver.
func Unsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not implemented")
}

// Kinds are the resource kinds a binding slot can declare.
type Kinds int32

const (
	// Storage is var<storage, read_write>.
	Storage Kinds = iota

	// ReadOnlyStorage is var<storage> or var<storage, read>.
	ReadOnlyStorage

	// Uniform is var<uniform>.
	Uniform

	// Handle is any binding without an address space
	// (textures and samplers).
	Handle
)

func (k Kinds) String() string {
	switch k {
	case Storage:
		return "storage"
	case ReadOnlyStorage:
		return "read-only-storage"
	case Uniform:
		return "uniform"
	case Handle:
		return "handle"
	}
	return "Kinds(" + strconv.Itoa(int(k)) + ")"
}

// IsBuffer returns true if the kind is bound to a buffer.
func (k Kinds) IsBuffer() bool {
	return k != Handle
}

// Binding is one @group/@binding declaration.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	Type    string
	Kind    Kinds
}

func (b Binding) String() string {
	return fmt.Sprintf("@group(%d) @binding(%d) %s: %s (%s)", b.Group, b.Binding, b.Name, b.Type, b.Kind)
}

// EntryPoint is a @compute function.
type EntryPoint struct {
	Name string

	// WorkgroupSize is the declared @workgroup_size. Dimensions that are
	// not given default to 1; dimensions given as expressions other than
	// integer literals are 0.
	WorkgroupSize [3]uint32
}

// Invocations returns the number of invocations in one workgroup.
func (ep EntryPoint) Invocations() uint32 {
	return ep.WorkgroupSize[0] * ep.WorkgroupSize[1] * ep.WorkgroupSize[2]
}

// Module is the reflected interface of a shader.
type Module struct {
	Bindings    []Binding
	EntryPoints []EntryPoint
}

var (
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	varDecl      = regexp.MustCompile(`((?:@\w+\s*(?:\([^)]*\))?\s*)+)var\s*(<[^>]*>)?\s*(\w+)\s*:\s*([^;=]+)`)
	fnDecl       = regexp.MustCompile(`((?:@\w+\s*(?:\([^)]*\))?\s*)+)fn\s+(\w+)`)
	attribute    = regexp.MustCompile(`@(\w+)\s*(?:\(([^)]*)\))?`)
)

// Reflect extracts the bindings and compute entry points of src.
// Bindings are sorted by group then binding.
func Reflect(src string) (*Module, error) {
	src = blockComment.ReplaceAllString(src, "")
	src = lineComment.ReplaceAllString(src, "")

	md := &Module{}
	seen := map[[2]uint32]string{}
	for _, m := range varDecl.FindAllStringSubmatch(src, -1) {
		attrs := attributes(m[1])
		gs, hasGroup := attrs["group"]
		bs, hasBinding := attrs["binding"]
		if !hasGroup || !hasBinding {
			continue
		}
		g, err := strconv.ParseUint(strings.TrimSpace(gs), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("wgsl: %s: invalid @group(%s)", m[3], gs)
		}
		b, err := strconv.ParseUint(strings.TrimSpace(bs), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("wgsl: %s: invalid @binding(%s)", m[3], bs)
		}
		key := [2]uint32{uint32(g), uint32(b)}
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("wgsl: %s and %s both use @group(%d) @binding(%d)", prev, m[3], g, b)
		}
		seen[key] = m[3]
		md.Bindings = append(md.Bindings, Binding{
			Group:   uint32(g),
			Binding: uint32(b),
			Name:    m[3],
			Type:    strings.TrimSpace(m[4]),
			Kind:    addressKind(m[2]),
		})
	}
	sort.Slice(md.Bindings, func(i, j int) bool {
		bi, bj := md.Bindings[i], md.Bindings[j]
		if bi.Group != bj.Group {
			return bi.Group < bj.Group
		}
		return bi.Binding < bj.Binding
	})

	for _, m := range fnDecl.FindAllStringSubmatch(src, -1) {
		attrs := attributes(m[1])
		if _, ok := attrs["compute"]; !ok {
			continue
		}
		md.EntryPoints = append(md.EntryPoints, EntryPoint{
			Name:          m[2],
			WorkgroupSize: workgroupSize(attrs["workgroup_size"]),
		})
	}
	return md, nil
}

// Group returns the bindings declared in the given group.
func (md *Module) Group(group uint32) []Binding {
	var bs []Binding
	for _, b := range md.Bindings {
		if b.Group == group {
			bs = append(bs, b)
		}
	}
	return bs
}

// EntryPoint returns the compute entry point with the given name.
func (md *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range md.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

func attributes(s string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attribute.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

func addressKind(tmpl string) Kinds {
	tmpl = strings.Trim(tmpl, "<> \t\n")
	if tmpl == "" {
		return Handle
	}
	parts := strings.Split(tmpl, ",")
	space := strings.TrimSpace(parts[0])
	switch space {
	case "uniform":
		return Uniform
	case "storage":
		if len(parts) > 1 && strings.TrimSpace(parts[1]) == "read_write" {
			return Storage
		}
		return ReadOnlyStorage
	}
	return Handle
}

func workgroupSize(args string) [3]uint32 {
	sz := [3]uint32{1, 1, 1}
	if strings.TrimSpace(args) == "" {
		return sz
	}
	for i, a := range strings.Split(args, ",") {
		if i > 2 {
			break
		}
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimSuffix(a, "u"), "i"), 10, 32)
		if err != nil {
			sz[i] = 0
			continue
		}
		sz[i] = uint32(n)
	}
	return sz
}
