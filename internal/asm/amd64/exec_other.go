//go:build !(linux && amd64)

package amd64

import "os"

func pageSize() int {
	return os.Getpagesize()
}

func mapRegion(int) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

func unmapRegion([]byte) error {
	return nil
}

func protectRegion([]byte, bool) error {
	return ErrUnsupportedPlatform
}

func regionAddr([]byte, int) uintptr {
	return 0
}

func bindNative(uintptr) (func() int64, error) {
	return nil, ErrUnsupportedPlatform
}
