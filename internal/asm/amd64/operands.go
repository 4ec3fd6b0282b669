package amd64

import (
	"fmt"

	"github.com/tinyrange/adder/internal/asm"
)

type registerCode struct {
	code byte
	high bool
}

// regInfo maps an abstract register to its ModRM/REX encoding.
func regInfo(r asm.Register) (registerCode, error) {
	switch r {
	case asm.RAX:
		return registerCode{code: 0, high: false}, nil
	default:
		return registerCode{}, fmt.Errorf("%w: no encoding for %s", asm.ErrUnsupportedInstruction, r)
	}
}

type rexState struct {
	w bool
	r bool
	x bool
	b bool
}

func (r rexState) prefix() byte {
	if !r.w && !r.r && !r.x && !r.b {
		return 0
	}
	p := byte(0x40)
	if r.w {
		p |= 0x08
	}
	if r.r {
		p |= 0x04
	}
	if r.x {
		p |= 0x02
	}
	if r.b {
		p |= 0x01
	}
	return p
}

// regImm splits an instruction into the register/immediate pair that every
// supported encoding takes.
func regImm(i asm.Instr) (asm.Register, asm.Immediate, bool) {
	dst, ok := i.Dst.(asm.Register)
	if !ok {
		return 0, 0, false
	}
	src, ok := i.Src.(asm.Immediate)
	if !ok {
		return 0, 0, false
	}
	return dst, src, true
}
