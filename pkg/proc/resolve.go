package proc

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var ErrNoMapping = errors.New("no mapping")

// Find returns the mapping containing addr.
func Find(maps []*Map, addr uint64) (*Map, bool) {
	return lo.Find(maps, func(m *Map) bool { return m.Contains(addr) })
}

// Resolve maps a code address to the mapping holding the header of the object that
// contains it: the nearest mapping at or below the containing one that maps the same
// file at offset zero. Its StartAddr is the base address of the object.
func Resolve(maps []*Map, addr uint64) (*Map, error) {
	m, ok := Find(maps, addr)
	if !ok {
		return nil, fmt.Errorf("%w contains 0x%x", ErrNoMapping, addr)
	}
	if isAnonymous(m.Pathname) {
		return nil, fmt.Errorf("address 0x%x is in anonymous mapping %s: %w", addr, m, ErrNoMapping)
	}

	file := m.File()
	var header *Map
	for _, c := range maps {
		if c.StartAddr > m.StartAddr {
			break
		}
		if c.FileOffset == 0 && c.File() == file {
			header = c
		}
	}
	if header == nil {
		return nil, fmt.Errorf("no header mapping for %s: %w", m.Pathname, ErrNoMapping)
	}
	return header, nil
}

// Objects groups mappings by the object backing them, keeping only objects with at least
// one executable mapping. These are the loaded modules of the process.
func Objects(maps []*Map) map[File][]*Map {
	groups := lo.GroupBy(lo.Filter(maps, func(m *Map, _ int) bool {
		return !isAnonymous(m.Pathname)
	}), func(m *Map) File { return m.File() })
	return lo.PickBy(groups, func(_ File, ms []*Map) bool {
		return lo.SomeBy(ms, func(m *Map) bool { return m.Executable() })
	})
}
