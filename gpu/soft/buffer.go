// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"
	"sync"

	"cogentcore.org/offload/gpu/hal"
)

// MapStates is the mapping state of a buffer.
type MapStates int32

const (
	Unmapped MapStates = iota
	MapPending
	Mapped
)

func (s MapStates) String() string {
	switch s {
	case Unmapped:
		return "unmapped"
	case MapPending:
		return "map pending"
	case Mapped:
		return "mapped"
	}
	return fmt.Sprintf("MapStates(%d)", int(s))
}

// Buffer is a soft buffer backed by host memory.
//
//	Unmapped -> MapAsync -> MapPending -> Poll -> Mapped -> Unmap -> Unmapped
type Buffer struct {
	mu sync.Mutex

	device *Device
	label  string
	usage  hal.Usages
	data   []byte

	state     MapStates
	mapOffset uint64
	mapSize   uint64
	callback  func(hal.MapStatus)
	released  bool
}

func (bf *Buffer) Label() string     { return bf.label }
func (bf *Buffer) Size() uint64      { return uint64(len(bf.data)) }
func (bf *Buffer) Usage() hal.Usages { return bf.usage }

// MapState returns the current mapping state.
func (bf *Buffer) MapState() MapStates {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	return bf.state
}

func (bf *Buffer) isReleased() bool {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	return bf.released
}

func (bf *Buffer) MapAsync(mode hal.MapMode, offset, size uint64, callback func(hal.MapStatus)) error {
	if callback == nil {
		return fmt.Errorf("%w: buffer %q: map callback is nil", ErrValidation, bf.label)
	}
	if mode != hal.MapRead {
		return fmt.Errorf("%w: buffer %q: only read mappings are supported", ErrValidation, bf.label)
	}
	if !bf.usage.Has(hal.UsageMapRead) {
		return fmt.Errorf("%w: buffer %q: read mapping needs MapRead usage, has %s", ErrValidation, bf.label, bf.usage)
	}
	if offset%8 != 0 || size%4 != 0 {
		return fmt.Errorf("%w: buffer %q: map offset %d must be a multiple of 8 and size %d a multiple of 4", ErrValidation, bf.label, offset, size)
	}
	bf.mu.Lock()
	if bf.released {
		bf.mu.Unlock()
		return fmt.Errorf("%w: buffer %q was released", ErrValidation, bf.label)
	}
	if bf.state != Unmapped {
		st := bf.state
		bf.mu.Unlock()
		return fmt.Errorf("%w: buffer %q is already %s", ErrValidation, bf.label, st)
	}
	if offset+size > uint64(len(bf.data)) {
		bf.mu.Unlock()
		return fmt.Errorf("%w: buffer %q: map range [%d, %d) out of size %d", ErrValidation, bf.label, offset, offset+size, len(bf.data))
	}
	bf.state = MapPending
	bf.mapOffset = offset
	bf.mapSize = size
	bf.callback = callback
	bf.mu.Unlock()
	bf.device.addMap(bf)
	return nil
}

// resolve completes a pending map request with the given status.
func (bf *Buffer) resolve(status hal.MapStatus) {
	bf.mu.Lock()
	if bf.state != MapPending {
		bf.mu.Unlock()
		return
	}
	cb := bf.callback
	bf.callback = nil
	if status == hal.MapSuccess {
		bf.state = Mapped
	} else {
		bf.state = Unmapped
	}
	bf.mu.Unlock()
	cb(status)
}

func (bf *Buffer) MappedRange(offset, size uint64) []byte {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.state != Mapped {
		return nil
	}
	if offset < bf.mapOffset || offset+size > bf.mapOffset+bf.mapSize {
		return nil
	}
	return bf.data[offset : offset+size : offset+size]
}

func (bf *Buffer) Unmap() {
	bf.mu.Lock()
	pending := bf.state == MapPending
	bf.state = Unmapped
	bf.mu.Unlock()
	if pending {
		bf.device.removeMap(bf)
		bf.abort(hal.MapUnmappedBeforeCallback)
	}
}

func (bf *Buffer) Release() {
	bf.mu.Lock()
	if bf.released {
		bf.mu.Unlock()
		return
	}
	bf.released = true
	pending := bf.state == MapPending
	bf.state = Unmapped
	bf.mu.Unlock()
	if pending {
		bf.device.removeMap(bf)
		bf.abort(hal.MapDestroyedBeforeCallback)
	}
}

func (bf *Buffer) abort(status hal.MapStatus) {
	bf.mu.Lock()
	cb := bf.callback
	bf.callback = nil
	bf.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}
