// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"fmt"
	"strings"
)

// Usages is the set of ways a buffer may be used.
// It is fixed when the buffer is created.
type Usages uint32

const (
	UsageMapRead Usages = 1 << iota
	UsageMapWrite
	UsageCopySrc
	UsageCopyDst
	UsageUniform
	UsageStorage
)

var usageNames = []struct {
	flag Usages
	name string
}{
	{UsageMapRead, "MapRead"},
	{UsageMapWrite, "MapWrite"},
	{UsageCopySrc, "CopySrc"},
	{UsageCopyDst, "CopyDst"},
	{UsageUniform, "Uniform"},
	{UsageStorage, "Storage"},
}

// Has returns true if all of the given flags are set.
func (u Usages) Has(flags Usages) bool {
	return u&flags == flags
}

func (u Usages) String() string {
	if u == 0 {
		return "None"
	}
	var parts []string
	for _, un := range usageNames {
		if u.Has(un.flag) {
			parts = append(parts, un.name)
		}
	}
	return strings.Join(parts, "|")
}

// MapMode is the access mode of a buffer mapping.
type MapMode int

const (
	MapRead MapMode = iota + 1
	MapWrite
)

// MapStatus is the outcome of an asynchronous map request.
type MapStatus int

const (
	MapSuccess MapStatus = iota
	MapValidationError
	MapUnknown
	MapDeviceLost
	MapDestroyedBeforeCallback
	MapUnmappedBeforeCallback
)

func (s MapStatus) String() string {
	switch s {
	case MapSuccess:
		return "Success"
	case MapValidationError:
		return "ValidationError"
	case MapUnknown:
		return "Unknown"
	case MapDeviceLost:
		return "DeviceLost"
	case MapDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case MapUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	default:
		return fmt.Sprintf("MapStatus(%d)", int(s))
	}
}
