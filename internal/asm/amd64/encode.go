package amd64

import (
	"encoding/binary"
	"math"

	"github.com/tinyrange/adder/internal/asm"
)

// ALU opcode extensions for the 0x81/0x83 group.
const (
	aluAdd byte = 0
	aluSub byte = 5
)

// Encode returns the x86-64 bytes for a single instruction. Only register
// destinations with immediate sources are encodable.
func Encode(i asm.Instr) ([]byte, error) {
	reg, imm, ok := regImm(i)
	if !ok {
		return nil, asm.Unsupported(i)
	}

	switch i.Op {
	case asm.OpMov:
		return encodeMovRegImm32Sign(reg, int32(imm))
	case asm.OpAdd:
		return encodeALURegImm(aluAdd, reg, int32(imm))
	case asm.OpSub:
		return encodeALURegImm(aluSub, reg, int32(imm))
	default:
		return nil, asm.Unsupported(i)
	}
}

// EncodeAll encodes instrs back to back.
func EncodeAll(instrs []asm.Instr) ([]byte, error) {
	out := make([]byte, 0, len(instrs)*7)
	for _, i := range instrs {
		code, err := Encode(i)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
	}
	return out, nil
}

// EncodeRet returns the near return instruction.
func EncodeRet() []byte {
	return []byte{0xC3}
}

// encodeMovRegImm32Sign emits MOV r/m64, imm32 (C7 /0), which sign-extends
// the immediate into the full 64-bit register.
func encodeMovRegImm32Sign(reg asm.Register, value int32) ([]byte, error) {
	info, err := regInfo(reg)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 7)
	rex := rexState{w: true, b: info.high}
	out = append(out, rex.prefix(), 0xC7, 0xC0|info.code)

	var imm [4]byte
	binary.LittleEndian.PutUint32(imm[:], uint32(value))
	out = append(out, imm[:]...)
	return out, nil
}

func encodeALURegImm(op byte, reg asm.Register, value int32) ([]byte, error) {
	info, err := regInfo(reg)
	if err != nil {
		return nil, err
	}

	rex := rexState{w: true, b: info.high}

	var opcode byte
	var imm []byte
	if value >= math.MinInt8 && value <= math.MaxInt8 {
		opcode = 0x83
		imm = []byte{byte(value)}
	} else {
		opcode = 0x81
		imm = make([]byte, 4)
		binary.LittleEndian.PutUint32(imm, uint32(value))
	}

	out := make([]byte, 0, 7)
	out = append(out, rex.prefix(), opcode)
	modrm := byte(0xC0 | (op << 3) | info.code)
	out = append(out, modrm)
	out = append(out, imm...)
	return out, nil
}
