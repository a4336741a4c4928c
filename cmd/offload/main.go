// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command offload runs a compute kernel once on the GPU over a small
// array and prints the input and the result read back. It takes no
// arguments; see [Config] for the optional config file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/offload/gpu"
	"cogentcore.org/offload/kernels"
	"github.com/muesli/termenv"
)

func main() {
	// wgpu-native wants all calls on one OS thread
	runtime.LockOSThread()
	if errors.Log(run(context.Background(), os.Stdout)) != nil {
		os.Exit(1)
	}
}

// run loads the config, runs the kernel and prints the arrays to w.
// Nothing but progress records is written unless the run succeeds.
func run(ctx context.Context, w io.Writer) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	gpu.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	defer gpu.SetLogger(nil)

	k, err := kernels.ByName(cfg.Kernel)
	if err != nil {
		return err
	}
	gk := gpu.Kernel{Name: k.Name, Source: k.Source, Entry: k.Entry}
	out, err := gpu.Run(ctx, cfg.Instance(), gk, cfg.Input, cfg.RunOptions())
	if err != nil {
		return err
	}
	printArrays(w, cfg.Input, out)
	return nil
}

// printArrays prints the input and output, styled when w is a terminal.
func printArrays(w io.Writer, in, out []float32) {
	o := termenv.NewOutput(w)
	fmt.Fprintf(w, "%s %v\n", o.String("Input:").Bold(), in)
	fmt.Fprintf(w, "%s %v\n", o.String("Output:").Bold().Foreground(o.Color("2")), out)
}
