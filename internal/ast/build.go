package ast

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tinyrange/adder/internal/sexp"
)

var (
	ErrSyntax = errors.New("syntax error")
	ErrRange  = errors.New("integer literal out of range")
)

// SyntaxError names the node that does not match the expression grammar.
type SyntaxError struct {
	Node   sexp.Node
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrSyntax, e.Reason, e.Node)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// RangeError reports an integer literal that does not fit in 32 signed bits.
type RangeError struct {
	Literal string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %s does not fit in 32 bits", ErrRange, e.Literal)
}

func (e *RangeError) Unwrap() error { return ErrRange }

// Build converts a generic s-expression tree into an Expr.
//
//	EXPR := INTEGER | (add1 EXPR) | (sub1 EXPR)
func Build(n sexp.Node) (Expr, error) {
	switch v := n.(type) {
	case sexp.Int:
		value, err := strconv.ParseInt(v.Text, 10, 32)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, &RangeError{Literal: v.Text}
			}
			return nil, &SyntaxError{Node: n, Reason: "malformed integer"}
		}
		return Num{Value: int32(value)}, nil
	case sexp.List:
		if len(v) != 2 {
			return nil, &SyntaxError{Node: n, Reason: fmt.Sprintf("expected 2 elements, got %d", len(v))}
		}
		op, ok := v[0].(sexp.Symbol)
		if !ok {
			return nil, &SyntaxError{Node: n, Reason: "operator must be a symbol"}
		}
		switch op {
		case OpAdd1:
			inner, err := Build(v[1])
			if err != nil {
				return nil, err
			}
			return Add1{Expr: inner}, nil
		case OpSub1:
			inner, err := Build(v[1])
			if err != nil {
				return nil, err
			}
			return Sub1{Expr: inner}, nil
		default:
			return nil, &SyntaxError{Node: n, Reason: fmt.Sprintf("unknown operator %q", string(op))}
		}
	case nil:
		return nil, &SyntaxError{Node: sexp.List{}, Reason: "missing expression"}
	default:
		return nil, &SyntaxError{Node: n, Reason: "unexpected atom"}
	}
}

// Parse reads src as an s-expression and builds an Expr from it.
func Parse(src string) (Expr, error) {
	n, err := sexp.Parse(src)
	if err != nil {
		return nil, err
	}
	return Build(n)
}
