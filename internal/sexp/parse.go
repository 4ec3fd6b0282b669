package sexp

import (
	"errors"
	"fmt"
)

var ErrUnexpectedEOF = errors.New("unexpected end of input")

// ParseError reports a malformed s-expression at a byte offset.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sexp: offset %d: %s", e.Offset, e.Msg)
}

type reader struct {
	src string
	pos int
}

// Parse reads exactly one s-expression from src. Text after a semicolon is
// ignored up to the end of the line.
func Parse(src string) (Node, error) {
	r := &reader{src: src}
	n, err := r.read()
	if err != nil {
		return nil, err
	}
	r.skipSpace()
	if r.pos < len(r.src) {
		return nil, &ParseError{Offset: r.pos, Msg: fmt.Sprintf("trailing input %q", r.rest())}
	}
	return n, nil
}

func (r *reader) rest() string {
	const limit = 16
	s := r.src[r.pos:]
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func (r *reader) skipSpace() {
	for r.pos < len(r.src) {
		switch c := r.src[r.pos]; {
		case c == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		case isSpace(c):
			r.pos++
		default:
			return
		}
	}
}

func (r *reader) read() (Node, error) {
	r.skipSpace()
	if r.pos >= len(r.src) {
		return nil, fmt.Errorf("sexp: offset %d: %w", r.pos, ErrUnexpectedEOF)
	}

	switch r.src[r.pos] {
	case '(':
		start := r.pos
		r.pos++
		list := List{}
		for {
			r.skipSpace()
			if r.pos >= len(r.src) {
				return nil, fmt.Errorf("sexp: unclosed list at offset %d: %w", start, ErrUnexpectedEOF)
			}
			if r.src[r.pos] == ')' {
				r.pos++
				return list, nil
			}
			n, err := r.read()
			if err != nil {
				return nil, err
			}
			list = append(list, n)
		}
	case ')':
		return nil, &ParseError{Offset: r.pos, Msg: "unexpected ')'"}
	}

	start := r.pos
	for r.pos < len(r.src) && !isDelimiter(r.src[r.pos]) {
		r.pos++
	}
	return atom(r.src[start:r.pos]), nil
}

func atom(tok string) Node {
	if isInteger(tok) {
		return Int{Text: tok}
	}
	return Symbol(tok)
}

func isInteger(tok string) bool {
	digits := tok
	if len(digits) > 0 && (digits[0] == '-' || digits[0] == '+') {
		digits = digits[1:]
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || c == '(' || c == ')' || c == ';'
}
