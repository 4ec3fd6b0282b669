// Package asm is the instruction vocabulary shared by the assembly text
// emitter and the machine code emitters.
package asm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInstruction is returned when an opcode or operand shape
	// has no encoding. The instruction selector never produces one, so
	// seeing it means a compiler bug.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrAllocation is returned when executable memory cannot be obtained.
	ErrAllocation = errors.New("allocate executable memory")
)

// Operand is either a Register or an Immediate.
type Operand interface {
	String() string
	operand()
}

// Register identifies a machine register. The accumulator is the only member
// today; new registers are added here without changing call sites.
type Register uint8

const (
	RAX Register = iota
)

// Accumulator holds the running value of a computation.
const Accumulator = RAX

func (r Register) String() string {
	switch r {
	case RAX:
		return "RAX"
	default:
		return fmt.Sprintf("Register(%d)", uint8(r))
	}
}

// Immediate is a 32-bit signed constant operand.
type Immediate int32

func (i Immediate) String() string { return fmt.Sprintf("%d", int32(i)) }

func (Register) operand()  {}
func (Immediate) operand() {}

var (
	_ Operand = RAX
	_ Operand = Immediate(0)
)

// Opcode selects the operation performed by an Instr.
type Opcode uint8

const (
	OpMov Opcode = iota + 1
	OpAdd
	OpSub
)

func (op Opcode) String() string {
	switch op {
	case OpMov:
		return "mov"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// Instr is a two-operand instruction. Dst is written; Src is read.
type Instr struct {
	Op  Opcode
	Dst Operand
	Src Operand
}

func Mov(dst, src Operand) Instr { return Instr{Op: OpMov, Dst: dst, Src: src} }
func Add(dst, src Operand) Instr { return Instr{Op: OpAdd, Dst: dst, Src: src} }
func Sub(dst, src Operand) Instr { return Instr{Op: OpSub, Dst: dst, Src: src} }

func (i Instr) String() string {
	return fmt.Sprintf("%s %s, %s", i.Op, operandString(i.Dst), operandString(i.Src))
}

func operandString(op Operand) string {
	if op == nil {
		return "<nil>"
	}
	return op.String()
}

// Unsupported wraps ErrUnsupportedInstruction with the offending instruction.
func Unsupported(i Instr) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, i)
}
