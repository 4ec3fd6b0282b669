// Package sexp holds the generic parenthesised-atom tree consumed by the
// compiler front end, and a small reader that produces it from text.
package sexp

import (
	"strings"
)

// Node is a single element of an s-expression tree.
type Node interface {
	String() string
	node()
}

// Int is an integer atom. The digits are kept verbatim so that range checks
// are left to the consumer.
type Int struct {
	Text string
}

// Symbol is a bare identifier atom.
type Symbol string

// List is a parenthesised sequence of nodes.
type List []Node

var (
	_ Node = Int{}
	_ Node = Symbol("")
	_ Node = List(nil)
)

func (Int) node()    {}
func (Symbol) node() {}
func (List) node()   {}

func (i Int) String() string    { return i.Text }
func (s Symbol) String() string { return string(s) }

func (l List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for idx, n := range l {
		if idx > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(n.String())
	}
	b.WriteByte(')')
	return b.String()
}
