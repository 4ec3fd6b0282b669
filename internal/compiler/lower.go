// Package compiler lowers expressions to accumulator-machine instructions and
// drives the full text-to-native pipeline.
package compiler

import (
	"fmt"

	"github.com/tinyrange/adder/internal/asm"
	"github.com/tinyrange/adder/internal/ast"
)

// Lower returns the instructions that leave the value of e in the
// accumulator. The innermost literal is loaded first and each enclosing
// add1/sub1 follows in order, so the first instruction is always a Mov and
// len(result) == 1 + ast.Wrappers(e).
func Lower(e ast.Expr) []asm.Instr {
	// Collect wrappers outermost first and emit them in reverse. This is the
	// post-order walk without recursion.
	var wrappers []asm.Opcode
	for {
		switch v := e.(type) {
		case ast.Add1:
			wrappers = append(wrappers, asm.OpAdd)
			e = v.Expr
			continue
		case ast.Sub1:
			wrappers = append(wrappers, asm.OpSub)
			e = v.Expr
			continue
		case ast.Num:
			instrs := make([]asm.Instr, 0, 1+len(wrappers))
			instrs = append(instrs, asm.Mov(asm.Accumulator, asm.Immediate(v.Value)))
			for i := len(wrappers) - 1; i >= 0; i-- {
				instrs = append(instrs, asm.Instr{
					Op:  wrappers[i],
					Dst: asm.Accumulator,
					Src: asm.Immediate(1),
				})
			}
			return instrs
		default:
			panic(fmt.Sprintf("compiler: unknown expression %T", e))
		}
	}
}
