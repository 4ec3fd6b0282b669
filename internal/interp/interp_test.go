package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinyrange/adder/internal/ast"
)

func TestEval(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"0", 0},
		{"-12", -12},
		{"(add1 (add1 5))", 7},
		{"(sub1 (sub1 10))", 8},
		{"(add1 (sub1 (add1 (sub1 3))))", 3},
		{"(add1 2147483647)", math.MaxInt32 + 1},
		{"(sub1 -2147483648)", math.MinInt32 - 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := ast.Parse(tt.src)
			require.NoError(t, err)
			require.Equal(t, tt.want, Eval(e))
		})
	}
}

func TestEvalUnknownExpression(t *testing.T) {
	require.Panics(t, func() { Eval(nil) })
}
