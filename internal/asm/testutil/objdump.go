// Package testutil checks encoded machine code against GNU objdump.
package testutil

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// DisasmLine is a single instruction line printed by objdump.
type DisasmLine struct {
	Text       string
	Normalized string
	Mnemonic   string
}

// Expectation describes one instruction that should appear in the
// disassembly, in order.
type Expectation struct {
	Name     string
	Mnemonic string
	Contains []string
}

func (e Expectation) match(line DisasmLine) error {
	if e.Mnemonic != "" && line.Mnemonic != e.Mnemonic {
		return fmt.Errorf("mnemonic=%s, want %s", line.Mnemonic, e.Mnemonic)
	}
	for _, needle := range e.Contains {
		if !strings.Contains(line.Normalized, needle) {
			return fmt.Errorf("missing %q in %q", needle, line.Normalized)
		}
	}
	return nil
}

// VerifyExpectations requires lines to start with instructions matching
// expect, in order. Trailing instructions are ignored.
func VerifyExpectations(t *testing.T, lines []DisasmLine, expect []Expectation) {
	t.Helper()
	if len(lines) < len(expect) {
		t.Fatalf("objdump returned %d instructions, want at least %d", len(lines), len(expect))
	}
	for idx, exp := range expect {
		if err := exp.match(lines[idx]); err != nil {
			t.Fatalf("instruction %q mismatch at line %d: %v\nline: %s", exp.Name, idx, err, lines[idx].Text)
		}
	}
}

// DisassembleAMD64 wraps code in a minimal ELF and runs
// objdump -d --no-show-raw-insn with the Intel syntax the assembly emitter
// uses. The test is skipped when objdump is not installed.
func DisassembleAMD64(t *testing.T, code []byte) []DisasmLine {
	t.Helper()

	tool, err := exec.LookPath("objdump")
	if err != nil {
		t.Skipf("objdump not found: %v", err)
	}

	tmp, err := os.CreateTemp(t.TempDir(), "adder-objdump-*.elf")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := tmp.Write(minimalELF(code, elf.EM_X86_64)); err != nil {
		t.Fatalf("write temp ELF: %v", err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatalf("close temp ELF: %v", err)
	}

	out, err := exec.Command(tool, "-d", "--no-show-raw-insn", "-M", "intel", tmp.Name()).CombinedOutput()
	if err != nil {
		t.Fatalf("objdump failed: %v\n\n%s", err, out)
	}

	lines, err := parseObjdump(string(out))
	if err != nil {
		t.Fatalf("parse objdump output: %v", err)
	}
	if len(lines) == 0 {
		t.Fatalf("objdump produced no instructions:\n%s", out)
	}
	return lines
}

// minimalELF builds a relocatable-free ELF64 image holding code in .text.
func minimalELF(code []byte, machine elf.Machine) []byte {
	const (
		ehdrSize  = 64
		shdrSize  = 64
		nsections = 3 // null, .text, .shstrtab
		textAlign = 16
	)

	shstr := []byte("\x00.text\x00.shstrtab\x00")
	textOff := ehdrSize
	shstrOff := align(textOff+len(code), textAlign)
	shOff := align(shstrOff+len(shstr), 8)

	buf := make([]byte, shOff+nsections*shdrSize)
	copy(buf[textOff:], code)
	copy(buf[shstrOff:], shstr)

	le := binary.LittleEndian
	copy(buf, []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	le.PutUint16(buf[16:], uint16(elf.ET_EXEC))
	le.PutUint16(buf[18:], uint16(machine))
	le.PutUint32(buf[20:], uint32(elf.EV_CURRENT))
	le.PutUint64(buf[40:], uint64(shOff))
	le.PutUint16(buf[52:], ehdrSize)
	le.PutUint16(buf[58:], shdrSize)
	le.PutUint16(buf[60:], nsections)
	le.PutUint16(buf[62:], 2) // e_shstrndx

	text := buf[shOff+shdrSize:]
	le.PutUint32(text[0:], 1) // ".text"
	le.PutUint32(text[4:], uint32(elf.SHT_PROGBITS))
	le.PutUint64(text[8:], uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR))
	le.PutUint64(text[24:], uint64(textOff))
	le.PutUint64(text[32:], uint64(len(code)))
	le.PutUint64(text[48:], textAlign)

	strtab := buf[shOff+2*shdrSize:]
	le.PutUint32(strtab[0:], 7) // ".shstrtab"
	le.PutUint32(strtab[4:], uint32(elf.SHT_STRTAB))
	le.PutUint64(strtab[24:], uint64(shstrOff))
	le.PutUint64(strtab[32:], uint64(len(shstr)))
	le.PutUint64(strtab[48:], 1)

	return buf
}

func parseObjdump(out string) ([]DisasmLine, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	var lines []DisasmLine
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.IndexRune(line, ':')
		if colon == -1 {
			continue
		}
		text := strings.TrimSpace(line[colon+1:])
		if text == "" || strings.HasPrefix(text, "<") || strings.HasPrefix(text, ".") || strings.HasPrefix(text, "file format") {
			continue
		}
		fields := strings.Fields(text)
		lines = append(lines, DisasmLine{
			Text:       text,
			Normalized: strings.Join(fields, " "),
			Mnemonic:   strings.ToLower(fields[0]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return lines, nil
}

func align(value, boundary int) int {
	if rem := value % boundary; rem != 0 {
		return value + boundary - rem
	}
	return value
}
