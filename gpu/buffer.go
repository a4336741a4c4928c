// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu/hal"
)

// PollInterval is the pause between non-blocking polls in [Mapping.Wait]
// when the context can be cancelled.
var PollInterval = time.Millisecond

// MapStates are the states of a [Mapping].
type MapStates int32

const (
	// MapPending is a map request whose callback has not fired.
	MapPending MapStates = iota

	// MapReady is a resolved, successful mapping that can be viewed.
	MapReady

	// MapFailed is a map request that resolved with an error.
	MapFailed

	// MapReleased is a mapping that has been unmapped.
	MapReleased
)

func (s MapStates) String() string {
	switch s {
	case MapPending:
		return "pending"
	case MapReady:
		return "ready"
	case MapFailed:
		return "failed"
	case MapReleased:
		return "released"
	}
	return fmt.Sprintf("MapStates(%d)", int(s))
}

// MapStatusError returns an error if the status is not success.
func MapStatusError(status hal.MapStatus) error {
	if status != hal.MapSuccess {
		return fmt.Errorf("%w: buffer map status %s", ErrPollFailed, status)
	}
	return nil
}

// Mapping is a single-shot future for a read mapping of a whole buffer.
// It resolves when the backend fires the map callback, which only
// happens while the device is polled. Its data can only be viewed once
// resolved, and the buffer can only be unmapped once no view is held.
type Mapping struct {
	mu sync.Mutex

	device *Device
	buffer hal.Buffer
	state  MapStates
	err    error
	views  int
}

// RequestMap requests a read mapping of the whole of buf, which must
// have [hal.UsageMapRead] and no work pending that writes to it other
// than what has been submitted already.
func RequestMap(dev *Device, buf hal.Buffer) (*Mapping, error) {
	mp := &Mapping{device: dev, buffer: buf}
	err := buf.MapAsync(hal.MapRead, 0, buf.Size(), mp.resolve)
	if err != nil {
		return nil, fmt.Errorf("%w: map request for %q: %w", ErrPollFailed, buf.Label(), err)
	}
	return mp, nil
}

// resolve is the map callback.
func (mp *Mapping) resolve(status hal.MapStatus) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.state != MapPending {
		return
	}
	if err := MapStatusError(status); err != nil {
		mp.state = MapFailed
		mp.err = err
		return
	}
	mp.state = MapReady
}

// State returns the current state.
func (mp *Mapping) State() MapStates {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

// Done returns true once the map request has resolved, either way.
func (mp *Mapping) Done() bool {
	return mp.State() != MapPending
}

// Wait polls the device until the map request resolves. If ctx cannot
// be cancelled, Wait blocks in the device poll for as long as it takes.
// Otherwise it polls without blocking until ctx is done.
func (mp *Mapping) Wait(ctx context.Context) error {
	if ctx.Done() == nil {
		return mp.waitBlocking()
	}
	for {
		if done, err := mp.check(); done {
			return err
		}
		if _, err := mp.device.Poll(false); err != nil {
			mp.fail(err)
			continue
		}
		if done, err := mp.check(); done {
			return err
		}
		select {
		case <-ctx.Done():
			err := fmt.Errorf("%w: waiting for map of %q: %w", ErrPollFailed, mp.buffer.Label(), ctx.Err())
			mp.fail(err)
			return err
		case <-time.After(PollInterval):
		}
	}
}

func (mp *Mapping) waitBlocking() error {
	for {
		if done, err := mp.check(); done {
			return err
		}
		empty, err := mp.device.Poll(true)
		if err != nil {
			mp.fail(err)
			continue
		}
		if done, err := mp.check(); done {
			return err
		}
		if empty {
			err := fmt.Errorf("%w: device drained without resolving map of %q", ErrPollFailed, mp.buffer.Label())
			mp.fail(err)
			return err
		}
	}
}

// check returns true with the resolution error once resolved.
func (mp *Mapping) check() (bool, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	switch mp.state {
	case MapPending:
		return false, nil
	case MapReady:
		return true, nil
	}
	return true, mp.err
}

// fail resolves a pending mapping with err.
func (mp *Mapping) fail(err error) {
	if !errors.Is(err, ErrPollFailed) {
		err = fmt.Errorf("%w: %w", ErrPollFailed, err)
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.state == MapPending {
		mp.state = MapFailed
		mp.err = err
	}
}

// View returns the mapped bytes. The view is only valid until
// [Mapping.ReleaseView], which must be called once for every View.
// Calling View before the mapping resolved returns [ErrMapPending].
func (mp *Mapping) View() ([]byte, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	switch mp.state {
	case MapPending:
		return nil, ErrMapPending
	case MapFailed:
		return nil, mp.err
	case MapReleased:
		return nil, fmt.Errorf("%w: %q is no longer mapped", ErrPollFailed, mp.buffer.Label())
	}
	b := mp.buffer.MappedRange(0, mp.buffer.Size())
	if b == nil {
		return nil, fmt.Errorf("%w: no mapped range for %q", ErrPollFailed, mp.buffer.Label())
	}
	mp.views++
	return b, nil
}

// ReleaseView releases a view returned by View.
func (mp *Mapping) ReleaseView() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.views > 0 {
		mp.views--
	}
}

// Unmap unmaps the buffer. It returns [ErrViewOutstanding] while
// any view is held. Unmapping a pending mapping cancels it.
func (mp *Mapping) Unmap() error {
	mp.mu.Lock()
	if mp.views > 0 {
		mp.mu.Unlock()
		return ErrViewOutstanding
	}
	if mp.state == MapReleased {
		mp.mu.Unlock()
		return nil
	}
	mp.state = MapReleased
	mp.mu.Unlock()
	mp.buffer.Unmap()
	return nil
}

// ReadMapped waits for mp to resolve, copies the mapped bytes into a new
// slice of n elements, releases the view and then unmaps. On any error
// no data is returned.
func ReadMapped[E Element](ctx context.Context, mp *Mapping, n int) ([]E, error) {
	if err := mp.Wait(ctx); err != nil {
		errors.Log(mp.Unmap())
		return nil, err
	}
	b, err := mp.View()
	if err != nil {
		errors.Log(mp.Unmap())
		return nil, err
	}
	need := ByteSize[E](n)
	if uint64(len(b)) < need {
		mp.ReleaseView()
		errors.Log(mp.Unmap())
		return nil, fmt.Errorf("%w: mapped %d bytes, need %d", ErrPollFailed, len(b), need)
	}
	out := FromBytes[E](b[:need])
	mp.ReleaseView()
	if err := mp.Unmap(); err != nil {
		return nil, err
	}
	return out, nil
}
