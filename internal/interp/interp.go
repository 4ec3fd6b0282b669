// Package interp evaluates expressions directly. It serves as the oracle the
// JIT output is checked against.
package interp

import (
	"fmt"

	"github.com/tinyrange/adder/internal/ast"
)

// Eval returns the value of e. Arithmetic is 64-bit, matching the width of
// the accumulator, so results past the 32-bit literal range do not wrap.
func Eval(e ast.Expr) int64 {
	switch v := e.(type) {
	case ast.Num:
		return int64(v.Value)
	case ast.Add1:
		return 1 + Eval(v.Expr)
	case ast.Sub1:
		return Eval(v.Expr) - 1
	default:
		panic(fmt.Sprintf("interp: unknown expression %T", e))
	}
}
