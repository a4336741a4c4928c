// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/cli"
	"cogentcore.org/offload/gpu"
	"cogentcore.org/offload/gpu/hal"
	"cogentcore.org/offload/gpu/soft"
	"cogentcore.org/offload/gpu/webgpu"
	"cogentcore.org/offload/kernels"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ConfigEnv is the environment variable holding the config file path.
const ConfigEnv = "OFFLOAD_CONFIG"

// DefaultConfigFile is read when present and ConfigEnv is not set.
const DefaultConfigFile = "offload.toml"

// Backends are the names of the available backends.
var Backends = []string{webgpu.Name, soft.Name}

// DefaultInput is the input used when none is configured.
var DefaultInput = []float32{1, 2, 3, 4, 5, 6, 7, 8}

// Config contains the configuration information used by offload
type Config struct {

	// the compute backend to run on: webgpu or soft
	Backend string `default:"webgpu" toml:"backend" yaml:"backend"`

	// the kernel to run (double or sum); defaults to [kernels.Default]
	Kernel string `toml:"kernel" yaml:"kernel"`

	// the values to offload; defaults to 1 through 8
	Input []float32 `toml:"input" yaml:"input"`

	// how long to wait for the result, e.g. "5s"; empty waits indefinitely
	PollTimeout string `toml:"poll_timeout" yaml:"poll_timeout"`

	// the minimum level of progress records: debug, info, warn or error
	LogLevel string `default:"info" toml:"log_level" yaml:"log_level"`

	// whether to select the fallback (software) adapter of the webgpu backend
	ForceFallback bool `toml:"force_fallback" yaml:"force_fallback"`
}

// ConfigPath returns the config file to read, and whether it was
// named explicitly (in which case it must exist).
func ConfigPath() (string, bool) {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p, true
	}
	return DefaultConfigFile, false
}

// LoadConfig returns the config from the default tag values, overlaid
// with the file at path if it exists: YAML for a .yaml or .yml
// extension, TOML otherwise. A missing file is an error only if required.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if err := cli.SetFromDefaults(cfg); err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return nil, fmt.Errorf("offload: reading config: %w", err)
		default:
			if err := decode(path, b, cfg); err != nil {
				return nil, fmt.Errorf("offload: config %s: %w", path, err)
			}
		}
	}
	if cfg.Kernel == "" {
		cfg.Kernel = kernels.Default.Name
	}
	if len(cfg.Input) == 0 {
		cfg.Input = slices.Clone(DefaultInput)
	}
	return cfg, cfg.Validate()
}

func decode(path string, b []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	}
	return toml.Unmarshal(b, cfg)
}

// Validate returns an error for unknown names or malformed values.
func (cfg *Config) Validate() error {
	if !slices.Contains(Backends, cfg.Backend) {
		return fmt.Errorf("offload: unknown backend %q (have %v)", cfg.Backend, Backends)
	}
	if !kernels.Has(cfg.Kernel) {
		return fmt.Errorf("offload: unknown kernel %q (have %v)", cfg.Kernel, kernels.Names())
	}
	if _, err := cfg.Timeout(); err != nil {
		return err
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}

// Timeout returns the parsed PollTimeout.
func (cfg *Config) Timeout() (time.Duration, error) {
	if cfg.PollTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(cfg.PollTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("offload: invalid poll_timeout %q", cfg.PollTimeout)
	}
	return d, nil
}

// Level returns the parsed LogLevel.
func (cfg *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return l, fmt.Errorf("offload: invalid log_level %q", cfg.LogLevel)
	}
	return l, nil
}

// Instance returns a new instance of the configured backend.
func (cfg *Config) Instance() hal.Instance {
	if cfg.Backend == soft.Name {
		return soft.New()
	}
	return webgpu.New()
}

// RunOptions returns the options for [gpu.Run].
func (cfg *Config) RunOptions() *gpu.RunOptions {
	d, _ := cfg.Timeout()
	return &gpu.RunOptions{
		Device:      gpu.DeviceOptions{Label: "offload", ForceFallback: cfg.ForceFallback},
		PollTimeout: d,
	}
}
