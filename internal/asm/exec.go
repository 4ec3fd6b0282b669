package asm

// NativeFunc is a callable entry point into generated machine code.
// It is implemented by architecture-specific Func types.
type NativeFunc interface {
	// Call runs the code and returns the accumulator as a signed integer.
	Call() (int64, error)

	// Entry returns the address of the entry point.
	Entry() uintptr
}
