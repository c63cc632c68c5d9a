// Package mem provides read-only views over memory of the current process.
package mem

import (
	"errors"
	"fmt"
)

var ErrUnmapped = errors.New("address range is not mapped")

// Memory views size bytes located at the absolute address addr.
type Memory interface {
	View(addr, size uint64) ([]byte, error)
}

// Image is a byte image placed at a fixed address.
type Image struct {
	Addr uint64
	Data []byte
}

func (i Image) contains(addr, size uint64) bool {
	n := uint64(len(i.Data))
	return addr >= i.Addr && addr-i.Addr <= n && size <= n-(addr-i.Addr)
}

func (i Image) View(addr, size uint64) ([]byte, error) {
	if !i.contains(addr, size) {
		return nil, fmt.Errorf("view 0x%x+0x%x: %w", addr, size, ErrUnmapped)
	}
	off := addr - i.Addr
	return i.Data[off : off+size : off+size], nil
}

// Images is a set of non-overlapping images.
type Images []Image

func (is Images) View(addr, size uint64) ([]byte, error) {
	for _, i := range is {
		if i.contains(addr, size) {
			return i.View(addr, size)
		}
	}
	return nil, fmt.Errorf("view 0x%x+0x%x: %w", addr, size, ErrUnmapped)
}
