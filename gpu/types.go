// Copyright (c) 2019, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"unsafe"
)

// Types are the element types that can be offloaded. All of them are
// 4 bytes wide and are stored in native little-endian byte order,
// with no header or padding.
type Types int32

const (
	UndefinedType Types = iota
	Int32
	Uint32
	Float32
)

// Bytes returns number of bytes for this type
func (tp Types) Bytes() int {
	return TypeSizes[tp]
}

// WGSL returns the WGSL scalar type name.
func (tp Types) WGSL() string {
	switch tp {
	case Int32:
		return "i32"
	case Uint32:
		return "u32"
	case Float32:
		return "f32"
	}
	return ""
}

func (tp Types) String() string {
	switch tp {
	case UndefinedType:
		return "UndefinedType"
	case Int32:
		return "Int32"
	case Uint32:
		return "Uint32"
	case Float32:
		return "Float32"
	}
	return fmt.Sprintf("Types(%d)", int(tp))
}

// TypeSizes gives our data type sizes in bytes
var TypeSizes = map[Types]int{
	Int32:   4,
	Uint32:  4,
	Float32: 4,
}

// Element is the constraint satisfied by the element types.
type Element interface {
	float32 | int32 | uint32
}

// TypeOf returns the [Types] of E.
func TypeOf[E Element]() Types {
	var e E
	switch any(e).(type) {
	case int32:
		return Int32
	case uint32:
		return Uint32
	case float32:
		return Float32
	}
	return UndefinedType
}

// ByteSize returns the size in bytes of n elements of type E.
func ByteSize[E Element](n int) uint64 {
	return uint64(n) * uint64(TypeOf[E]().Bytes())
}

// ToBytes returns the bytes of s without copying.
func ToBytes[E Element](s []E) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// FromBytes returns a copy of b as elements of type E.
// Trailing bytes that do not make up a whole element are ignored.
func FromBytes[E Element](b []byte) []E {
	out := make([]E, len(b)/TypeOf[E]().Bytes())
	copy(ToBytes(out), b)
	return out
}
