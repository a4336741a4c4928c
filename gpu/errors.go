// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/errors"
)

// Errors returned by the offload pipeline. Every error returned by this
// package matches exactly one of these with [errors.Is]. None of them
// are retried.
var (
	// ErrNoAdapterFound is returned when no compatible adapter exists.
	ErrNoAdapterFound = errors.New("gpu: no compatible adapter found")

	// ErrDeviceCreationFailed is returned when the adapter refuses
	// to open a logical device.
	ErrDeviceCreationFailed = errors.New("gpu: device creation failed")

	// ErrShaderCompilation is matched by every [*ShaderCompilationError].
	ErrShaderCompilation = errors.New("gpu: shader compilation failed")

	// ErrAllocationFailed is returned when a buffer cannot be created.
	ErrAllocationFailed = errors.New("gpu: buffer allocation failed")

	// ErrBindingLayoutMismatch is matched by every [*BindingLayoutMismatchError].
	ErrBindingLayoutMismatch = errors.New("gpu: binding layout mismatch")

	// ErrSubmissionFailed is returned when the device rejects
	// recorded commands.
	ErrSubmissionFailed = errors.New("gpu: command submission failed")

	// ErrPollFailed is returned when a map request does not complete
	// successfully.
	ErrPollFailed = errors.New("gpu: device poll failed")

	// ErrEmptyInput is returned for an input of zero elements,
	// which cannot be bound to a storage slot.
	ErrEmptyInput = errors.New("gpu: input is empty")

	// ErrMapPending is returned when a mapping is read before it resolved.
	ErrMapPending = errors.New("gpu: buffer map is still pending")

	// ErrViewOutstanding is returned when unmapping while a view is held.
	ErrViewOutstanding = errors.New("gpu: mapped view is still outstanding")

	// ErrInvalidWorkgroups is returned for a dispatch size that the
	// device cannot run.
	ErrInvalidWorkgroups = errors.New("gpu: invalid workgroup count")
)

// ShaderCompilationError is returned when the kernel source cannot be
// turned into a compute pipeline.
type ShaderCompilationError struct {
	// Pipeline is the name of the pipeline being built.
	Pipeline string

	// Entry is the requested entry point.
	Entry string

	// Diagnostics is the compiler output.
	Diagnostics string
}

func (e *ShaderCompilationError) Error() string {
	return fmt.Sprintf("gpu: shader compilation failed for pipeline %q (entry %q):\n%s", e.Pipeline, e.Entry, strings.TrimSpace(e.Diagnostics))
}

func (e *ShaderCompilationError) Is(target error) bool {
	return target == ErrShaderCompilation
}

// BindingLayoutMismatchError is returned when the buffers given to a
// bind group do not match the layout inferred for the pipeline.
type BindingLayoutMismatchError struct {
	// Pipeline is the name of the pipeline whose layout was used.
	Pipeline string

	// Reason describes the mismatch.
	Reason string

	// Err is the backend error, if the mismatch was reported by the backend.
	Err error
}

func (e *BindingLayoutMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gpu: binding layout mismatch for pipeline %q: %s: %v", e.Pipeline, e.Reason, e.Err)
	}
	return fmt.Sprintf("gpu: binding layout mismatch for pipeline %q: %s", e.Pipeline, e.Reason)
}

func (e *BindingLayoutMismatchError) Is(target error) bool {
	return target == ErrBindingLayoutMismatch
}

func (e *BindingLayoutMismatchError) Unwrap() error { return e.Err }
