//go:build linux && amd64

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyrange/adder/internal/ast"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestRunCompile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "test.snek")
	out := filepath.Join(dir, "test.s")
	writeFile(t, in, "(sub1 (sub1 10))\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-config", plainConfig(t), in, out}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr.String())
	}

	asmText, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(asmText), "  sub RAX, DWORD 1\n") {
		t.Errorf("output.s = %q, missing sub line", asmText)
	}
	for _, want := range []string{"result: 8", "altered result: 24"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestRunCompileAlterScaleAndDump(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "test.snek")
	writeFile(t, in, "(add1 4)")

	var stdout, stderr bytes.Buffer
	args := []string{"-config", plainConfig(t), "-alter-scale", "10", "-dump", in, filepath.Join(dir, "test.s")}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// mov rax, 4 encodes as 48 c7 c0 04 00 00 00.
	for _, want := range []string{"48 c7 c0 04 00 00 00", "altered result: 50"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout.String())
		}
	}
}

func TestRunCompileSyntaxError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.snek")
	writeFile(t, in, "(add1 1 2)")

	var stdout, stderr bytes.Buffer
	err := run([]string{in, filepath.Join(dir, "bad.s")}, &stdout, &stderr)
	if !errors.Is(err, ast.ErrSyntax) {
		t.Fatalf("run error = %v, want ErrSyntax", err)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.snek"), "(add1 (add1 5))")
	writeFile(t, filepath.Join(dir, "b.snek"), "(sub1 -3)")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"check", "-config", plainConfig(t), dir}, &stdout, &stderr); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "ok 2 programs") {
		t.Errorf("stdout = %q, want ok summary", stdout.String())
	}

	writeFile(t, filepath.Join(dir, "c.snek"), "(add1 1 2)")
	writeFile(t, filepath.Join(dir, "d.snek"), "99999999999")
	stdout.Reset()
	err := run([]string{"check", "-config", plainConfig(t), dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("check with bad programs succeeded")
	}
	if !strings.Contains(stdout.String(), "FAIL 2 of 4 programs") {
		t.Errorf("stdout = %q, want failure summary", stdout.String())
	}
	if !strings.Contains(err.Error(), "c.snek") || !strings.Contains(err.Error(), "d.snek") {
		t.Errorf("error %q does not name both failing files", err)
	}
}
