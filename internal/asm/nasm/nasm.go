// Package nasm renders instruction sequences as NASM-syntax assembly text.
package nasm

import (
	"fmt"
	"strings"

	"github.com/tinyrange/adder/internal/asm"
)

// EntrySymbol is the exported label of the generated compilation unit.
const EntrySymbol = "our_code_starts_here"

// FormatOperand renders a register by name and an immediate with an explicit
// DWORD size annotation.
func FormatOperand(op asm.Operand) (string, error) {
	switch v := op.(type) {
	case asm.Register:
		return v.String(), nil
	case asm.Immediate:
		return fmt.Sprintf("DWORD %d", int32(v)), nil
	default:
		return "", fmt.Errorf("%w: operand %T", asm.ErrUnsupportedInstruction, op)
	}
}

// FormatInstr renders a single instruction, e.g. "add RAX, DWORD 1".
func FormatInstr(i asm.Instr) (string, error) {
	switch i.Op {
	case asm.OpMov, asm.OpAdd, asm.OpSub:
	default:
		return "", asm.Unsupported(i)
	}

	dst, err := FormatOperand(i.Dst)
	if err != nil {
		return "", err
	}
	src, err := FormatOperand(i.Src)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s, %s", i.Op, dst, src), nil
}

// FormatInstrs renders instrs one per line, joined by newlines.
func FormatInstrs(instrs []asm.Instr) (string, error) {
	lines := make([]string, 0, len(instrs))
	for _, i := range instrs {
		line, err := FormatInstr(i)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// Program wraps instrs in a compilation unit that exports EntrySymbol and
// returns to the caller after the last instruction.
func Program(instrs []asm.Instr) (string, error) {
	var b strings.Builder
	b.WriteString("section .text\n")
	fmt.Fprintf(&b, "global %s\n", EntrySymbol)
	fmt.Fprintf(&b, "%s:\n", EntrySymbol)
	for _, i := range instrs {
		line, err := FormatInstr(i)
		if err != nil {
			return "", err
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("  ret\n")
	return b.String(), nil
}

// MustProgram is like Program but panics on unsupported instructions.
func MustProgram(instrs []asm.Instr) string {
	out, err := Program(instrs)
	if err != nil {
		panic(err)
	}
	return out
}
