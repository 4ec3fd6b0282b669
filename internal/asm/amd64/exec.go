//go:build linux && amd64

package amd64

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

func pageSize() int {
	return unix.Getpagesize()
}

// mapRegion returns an anonymous private RW mapping of size bytes.
func mapRegion(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("empty code region")
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap code region: %w", err)
	}
	return mem, nil
}

func unmapRegion(mem []byte) error {
	if mem == nil {
		return nil
	}
	return unix.Munmap(mem)
}

// protectRegion switches the whole mapping between RX and RW. The region is
// never writable and executable at the same time.
func protectRegion(mem []byte, exec bool) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if exec {
		prot = unix.PROT_READ | unix.PROT_EXEC
	}
	if err := unix.Mprotect(mem, prot); err != nil {
		return fmt.Errorf("mprotect code region: %w", err)
	}
	return nil
}

func regionAddr(mem []byte, offset int) uintptr {
	return uintptr(unsafe.Pointer(&mem[offset]))
}

// bindNative wraps the code at entry in a Go function using the System V
// calling convention: no arguments, result in RAX.
func bindNative(entry uintptr) (func() int64, error) {
	if entry == 0 {
		return nil, fmt.Errorf("nil entry point")
	}
	var fn func() int64
	purego.RegisterFunc(&fn, entry)
	return fn, nil
}
