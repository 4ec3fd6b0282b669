// Package config loads the YAML settings shared by the adder commands.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFilename   = "adder.yaml"
	DefaultAlterScale = 3
	DefaultCapacity   = 4096
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the on-disk configuration. Zero values are replaced by defaults.
type Config struct {
	LogLevel string       `yaml:"log_level,omitempty"`
	JIT      JITConfig    `yaml:"jit"`
	Output   OutputConfig `yaml:"output"`
}

type JITConfig struct {
	// Capacity is the initial size of the code buffer in bytes.
	Capacity int `yaml:"capacity,omitempty"`
	// AlterScale multiplies the first result to form the altered constant.
	AlterScale int64 `yaml:"alter_scale,omitempty"`
}

type OutputConfig struct {
	// Color is one of auto, always or never.
	Color string `yaml:"color,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.normalize()
	return c
}

func (c *Config) normalize() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.JIT.Capacity == 0 {
		c.JIT.Capacity = DefaultCapacity
	}
	if c.JIT.AlterScale == 0 {
		c.JIT.AlterScale = DefaultAlterScale
	}
	if c.Output.Color == "" {
		c.Output.Color = "auto"
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.JIT.Capacity < 0 {
		return fmt.Errorf("%w: jit.capacity %d is negative", ErrInvalid, c.JIT.Capacity)
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: output.color %q (want auto, always or never)", ErrInvalid, c.Output.Color)
	}
	return nil
}

// Level converts LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return lvl, nil
}

// Load reads path. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Write stores c at path in the same format Load reads.
func Write(path string, c Config) error {
	c.normalize()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
