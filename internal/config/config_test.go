package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.JIT.AlterScale != DefaultAlterScale {
		t.Errorf("JIT.AlterScale = %d, want %d", c.JIT.AlterScale, DefaultAlterScale)
	}
	if c.JIT.Capacity != DefaultCapacity {
		t.Errorf("JIT.Capacity = %d, want %d", c.JIT.Capacity, DefaultCapacity)
	}
	if c.Output.Color != "auto" {
		t.Errorf("Output.Color = %q, want %q", c.Output.Color, "auto")
	}
	lvl, err := c.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if lvl != slog.LevelInfo {
		t.Errorf("Level = %v, want %v", lvl, slog.LevelInfo)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFilename)
	content := `log_level: debug
jit:
  capacity: 8192
  alter_scale: 5
output:
  color: never
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.JIT.Capacity != 8192 {
		t.Errorf("JIT.Capacity = %d, want 8192", c.JIT.Capacity)
	}
	if c.JIT.AlterScale != 5 {
		t.Errorf("JIT.AlterScale = %d, want 5", c.JIT.AlterScale)
	}
	if c.Output.Color != "never" {
		t.Errorf("Output.Color = %q, want %q", c.Output.Color, "never")
	}
	if lvl, _ := c.Level(); lvl != slog.LevelDebug {
		t.Errorf("Level = %v, want %v", lvl, slog.LevelDebug)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", c)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load error = %v, want ErrNotExist", err)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"level", "log_level: loud\n"},
		{"color", "output:\n  color: sometimes\n"},
		{"capacity", "jit:\n  capacity: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Parse error = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Parse([]byte("jit: [")); err == nil {
		t.Fatal("Parse of malformed yaml succeeded")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	want := Default()
	want.JIT.AlterScale = 7
	want.Output.Color = "always"

	if err := Write(path, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}
