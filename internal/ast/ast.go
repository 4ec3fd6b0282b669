// Package ast defines the typed expression tree and builds it from a generic
// s-expression tree.
package ast

import (
	"fmt"
	"strconv"
)

// Expr is an immutable expression node.
type Expr interface {
	String() string
	expr()
}

// Num is an integer literal.
type Num struct {
	Value int32
}

// Add1 increments the value of its operand.
type Add1 struct {
	Expr Expr
}

// Sub1 decrements the value of its operand.
type Sub1 struct {
	Expr Expr
}

var (
	_ Expr = Num{}
	_ Expr = Add1{}
	_ Expr = Sub1{}
)

func (Num) expr()  {}
func (Add1) expr() {}
func (Sub1) expr() {}

func (n Num) String() string  { return strconv.FormatInt(int64(n.Value), 10) }
func (a Add1) String() string { return fmt.Sprintf("(%s %s)", OpAdd1, a.Expr) }
func (s Sub1) String() string { return fmt.Sprintf("(%s %s)", OpSub1, s.Expr) }

// Operator tokens accepted in the head position of a list.
const (
	OpAdd1 = "add1"
	OpSub1 = "sub1"
)

// Wrappers counts the add1/sub1 nodes in e.
func Wrappers(e Expr) int {
	n := 0
	for {
		switch v := e.(type) {
		case Add1:
			e = v.Expr
		case Sub1:
			e = v.Expr
		default:
			return n
		}
		n++
	}
}
