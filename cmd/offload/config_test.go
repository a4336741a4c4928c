// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/offload/gpu"
	"cogentcore.org/offload/gpu/soft"
	"cogentcore.org/offload/kernels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	return writeConfigFile(t, "offload.toml", content)
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, "webgpu", cfg.Backend)
	assert.Equal(t, kernels.Default.Name, cfg.Kernel)
	assert.Equal(t, "double", cfg.Kernel)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultInput, cfg.Input)
	assert.False(t, cfg.ForceFallback)
	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestRequiredMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), true)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend = "soft"
kernel = "sum"
input = [0.5, 1.5, 2]
poll_timeout = "250ms"
log_level = "debug"
force_fallback = true
`)
	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, soft.Name, cfg.Backend)
	assert.Equal(t, "sum", cfg.Kernel)
	assert.Equal(t, []float32{0.5, 1.5, 2}, cfg.Input)
	assert.True(t, cfg.ForceFallback)
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	opts := cfg.RunOptions()
	assert.Equal(t, 250*time.Millisecond, opts.PollTimeout)
	assert.True(t, opts.Device.ForceFallback)
	_, ok := cfg.Instance().(*soft.Instance)
	assert.True(t, ok)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfigFile(t, "offload.yaml", `
backend: soft
kernel: sum
input: [3, 4]
log_level: warn
`)
	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, soft.Name, cfg.Backend)
	assert.Equal(t, "sum", cfg.Kernel)
	assert.Equal(t, []float32{3, 4}, cfg.Input)
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = LoadConfig(writeConfigFile(t, "bad.yml", "backend: [soft"), true)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"backend": `backend = "cuda"`,
		"kernel":  `kernel = "product"`,
		"timeout": `poll_timeout = "soon"`,
		"level":   `log_level = "loud"`,
		"syntax":  `backend = `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content), true)
			assert.Error(t, err)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	p, required := ConfigPath()
	assert.Equal(t, DefaultConfigFile, p)
	assert.False(t, required)

	t.Setenv(ConfigEnv, "/etc/offload.toml")
	p, required = ConfigPath()
	assert.Equal(t, "/etc/offload.toml", p)
	assert.True(t, required)
}

func TestRun(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, `
backend = "soft"
kernel = "double"
`))
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, "Soft CPU Adapter")
	assert.Contains(t, out, "Input: [1 2 3 4 5 6 7 8]")
	assert.Contains(t, out, "Output: [2 4 6 8 10 12 14 16]")
	assert.False(t, gpu.Logger().Enabled(context.Background(), slog.LevelError), "logger is reset")
}

func TestRunSum(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, `
backend = "soft"
kernel = "sum"
log_level = "error"
`))
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), &buf))
	assert.Equal(t, "Input: [1 2 3 4 5 6 7 8]\nOutput: [36 0 0 0 0 0 0 0]\n", buf.String())
}

func TestRunFailure(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, `
backend = "soft"
input = []
poll_timeout = "1s"
`))
	var buf bytes.Buffer
	// an empty input falls back to the default input
	require.NoError(t, run(context.Background(), &buf))

	t.Setenv(ConfigEnv, writeConfig(t, `backend = "nope"`))
	buf.Reset()
	assert.Error(t, run(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "Output:")
}
