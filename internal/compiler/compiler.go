package compiler

import (
	"errors"
	"fmt"
	"math"

	"github.com/tinyrange/adder/internal/asm"
	"github.com/tinyrange/adder/internal/asm/amd64"
	"github.com/tinyrange/adder/internal/asm/nasm"
	"github.com/tinyrange/adder/internal/ast"
	"github.com/tinyrange/adder/internal/interp"
)

var (
	// ErrMismatch is returned when native code disagrees with the interpreter.
	ErrMismatch = errors.New("jit result does not match interpreter")
	// ErrImmediateRange is returned when a constant does not fit a 32-bit
	// immediate.
	ErrImmediateRange = errors.New("constant does not fit in a 32-bit immediate")
)

// Unit is one program carried through every stage of the pipeline.
type Unit struct {
	Source   string
	Expr     ast.Expr
	Instrs   []asm.Instr
	Assembly string
}

// Compile parses src and produces its instruction list and assembly text.
func Compile(src string) (*Unit, error) {
	expr, err := ast.Parse(src)
	if err != nil {
		return nil, err
	}
	instrs := Lower(expr)
	text, err := nasm.Program(instrs)
	if err != nil {
		return nil, fmt.Errorf("render assembly: %w", err)
	}
	return &Unit{
		Source:   src,
		Expr:     expr,
		Instrs:   instrs,
		Assembly: text,
	}, nil
}

// Eval returns the interpreter's value for the unit.
func (u *Unit) Eval() int64 {
	return interp.Eval(u.Expr)
}

// Load appends the unit's code to a and returns a handle to it. The buffer is
// committed on return.
func (u *Unit) Load(a *amd64.Assembler) (amd64.Func, error) {
	start := a.Offset()
	if err := a.Push(u.Instrs...); err != nil {
		return amd64.Func{}, fmt.Errorf("emit instructions: %w", err)
	}
	if err := a.Ret(); err != nil {
		return amd64.Func{}, fmt.Errorf("emit return: %w", err)
	}
	if err := a.Commit(); err != nil {
		return amd64.Func{}, err
	}
	return Acquire(a, start)
}

// Acquire returns a fresh handle to the code at offset.
func Acquire(a *amd64.Assembler, offset amd64.AssemblyOffset) (amd64.Func, error) {
	view, err := a.Reader().Lock()
	if err != nil {
		return amd64.Func{}, err
	}
	defer view.Unlock()
	return view.Entry(offset)
}

// MismatchError reports a program whose native result differs from the
// interpreter's.
type MismatchError struct {
	Source string
	Got    int64
	Want   int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: jit returned %d, interpreter %d", e.Source, e.Got, e.Want)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// CrossCheck loads u into a, runs it and compares the result with the
// interpreter. It returns the native result.
func CrossCheck(a *amd64.Assembler, u *Unit) (int64, error) {
	fn, err := u.Load(a)
	if err != nil {
		return 0, err
	}
	got, err := fn.Call()
	if err != nil {
		return 0, err
	}
	if want := u.Eval(); got != want {
		return got, &MismatchError{Source: u.Source, Got: got, Want: want}
	}
	return got, nil
}

// Replace rewrites the code at entry so it returns k, then reacquires a
// handle. Handles taken before the call are stale afterwards.
func Replace(a *amd64.Assembler, entry amd64.AssemblyOffset, k int64) (amd64.Func, error) {
	if k < math.MinInt32 || k > math.MaxInt32 {
		return amd64.Func{}, fmt.Errorf("%w: %d", ErrImmediateRange, k)
	}
	err := a.Alter(func(m *amd64.Modifier) error {
		if err := m.Goto(entry); err != nil {
			return err
		}
		if err := m.Push(asm.Mov(asm.Accumulator, asm.Immediate(k))); err != nil {
			return err
		}
		return m.Ret()
	})
	if err != nil {
		return amd64.Func{}, err
	}
	return Acquire(a, entry)
}
