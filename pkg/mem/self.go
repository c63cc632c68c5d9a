package mem

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/samber/lo"

	"github.com/vietanhduong/buildid/pkg/proc"
)

// Self reads the memory of the calling process in place. A view is only handed out when
// the whole range is covered by contiguous readable mappings, and it stays valid for as
// long as those mappings exist.
type Self struct {
	maps []*proc.Map
}

func NewSelf(maps []*proc.Map) *Self {
	return &Self{maps: lo.Filter(maps, func(m *proc.Map, _ int) bool { return m.Readable() })}
}

func (s *Self) View(addr, size uint64) ([]byte, error) {
	if size > math.MaxInt || addr+size < addr {
		return nil, fmt.Errorf("view 0x%x+0x%x: invalid size", addr, size)
	}
	if !s.covered(addr, size) {
		return nil, fmt.Errorf("view 0x%x+0x%x: %w", addr, size, ErrUnmapped)
	}
	if size == 0 {
		return []byte{}, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(size)), nil
}

func (s *Self) covered(addr, size uint64) bool {
	end := addr + size
	cur := addr
	for _, m := range s.maps {
		if m.EndAddr <= cur {
			continue
		}
		if m.StartAddr > cur {
			return false
		}
		if m.EndAddr >= end {
			return true
		}
		cur = m.EndAddr
	}
	return false
}
