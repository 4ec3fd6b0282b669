package compiler

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tinyrange/adder/internal/asm"
	"github.com/tinyrange/adder/internal/ast"
	"gopkg.in/yaml.v3"
)

type program struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Want   int64  `yaml:"want"`
	Instrs int    `yaml:"instrs"`
}

func loadPrograms(t *testing.T) []program {
	t.Helper()
	data, err := os.ReadFile("testdata/programs.yaml")
	if err != nil {
		t.Fatalf("read corpus: %v", err)
	}
	var corpus struct {
		Programs []program `yaml:"programs"`
	}
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		t.Fatalf("decode corpus: %v", err)
	}
	if len(corpus.Programs) == 0 {
		t.Fatalf("corpus is empty")
	}
	return corpus.Programs
}

func TestCompileExample(t *testing.T) {
	u, err := Compile("(sub1 (sub1 10))")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	wantInstrs := []asm.Instr{
		asm.Mov(asm.RAX, asm.Immediate(10)),
		asm.Sub(asm.RAX, asm.Immediate(1)),
		asm.Sub(asm.RAX, asm.Immediate(1)),
	}
	if diff := cmp.Diff(wantInstrs, u.Instrs); diff != "" {
		t.Fatalf("instructions mismatch (-want +got):\n%s", diff)
	}
	const wantText = "section .text\n" +
		"global our_code_starts_here\n" +
		"our_code_starts_here:\n" +
		"  mov RAX, DWORD 10\n" +
		"  sub RAX, DWORD 1\n" +
		"  sub RAX, DWORD 1\n" +
		"  ret\n"
	if u.Assembly != wantText {
		t.Fatalf("Assembly=\n%s\nwant\n%s", u.Assembly, wantText)
	}
	if got := u.Eval(); got != 8 {
		t.Fatalf("Eval()=%d, want 8", got)
	}
}

func TestCompileCorpus(t *testing.T) {
	for _, p := range loadPrograms(t) {
		t.Run(p.Name, func(t *testing.T) {
			u, err := Compile(p.Source)
			if err != nil {
				t.Fatalf("Compile(%q) failed: %v", p.Source, err)
			}
			if got := len(u.Instrs); got != p.Instrs {
				t.Fatalf("len(Instrs)=%d, want %d", got, p.Instrs)
			}
			if got := u.Eval(); got != p.Want {
				t.Fatalf("Eval()=%d, want %d", got, p.Want)
			}
			again, err := Compile(p.Source)
			if err != nil {
				t.Fatalf("second Compile failed: %v", err)
			}
			if again.Assembly != u.Assembly {
				t.Fatalf("assembly not deterministic:\n%s\nvs\n%s", u.Assembly, again.Assembly)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"9999999999", ast.ErrRange},
		{"(add1 1 2)", ast.ErrSyntax},
		{"(mul 2)", ast.ErrSyntax},
		{"add1", ast.ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Compile(tt.src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Compile(%q) error=%v, want %v", tt.src, err, tt.want)
			}
		})
	}

	if _, err := Compile("(add1 3"); err == nil {
		t.Fatalf("Compile of unterminated list succeeded")
	}
}

func TestMismatchError(t *testing.T) {
	err := error(&MismatchError{Source: "(add1 1)", Got: 3, Want: 2})
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("errors.Is(%v, ErrMismatch)=false", err)
	}
	if got, want := err.Error(), "(add1 1): jit returned 3, interpreter 2"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
}
