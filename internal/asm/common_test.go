package asm

import (
	"errors"
	"testing"
)

func TestInstrString(t *testing.T) {
	tests := []struct {
		instr Instr
		want  string
	}{
		{Mov(RAX, Immediate(10)), "mov RAX, 10"},
		{Add(RAX, Immediate(1)), "add RAX, 1"},
		{Sub(Accumulator, Immediate(-1)), "sub RAX, -1"},
		{Instr{Op: 99}, "Opcode(99) <nil>, <nil>"},
	}
	for _, tt := range tests {
		if got := tt.instr.String(); got != tt.want {
			t.Fatalf("String()=%q, want %q", got, tt.want)
		}
	}
}

func TestUnsupported(t *testing.T) {
	err := Unsupported(Mov(Immediate(1), RAX))
	if !errors.Is(err, ErrUnsupportedInstruction) {
		t.Fatalf("Unsupported err=%v, want ErrUnsupportedInstruction", err)
	}
	if got, want := err.Error(), "unsupported instruction: mov 1, RAX"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
}
