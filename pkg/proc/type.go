package proc

import "fmt"

type Map struct {
	Pathname   string
	StartAddr  uint64
	EndAddr    uint64
	Perms      string
	FileOffset uint64
	DevMajor   uint32
	DevMinor   uint32
	Inode      uint64
}

func (m *Map) String() string {
	if m == nil {
		return ""
	}

	return fmt.Sprintf("%s 0x%016x-0x%016x %s 0x%016x %x:%x %d",
		m.Pathname,
		m.StartAddr,
		m.EndAddr,
		m.Perms,
		m.FileOffset,
		m.DevMajor,
		m.DevMinor,
		m.Inode)
}

func (m *Map) Contains(addr uint64) bool { return addr >= m.StartAddr && addr < m.EndAddr }

func (m *Map) Size() uint64 { return m.EndAddr - m.StartAddr }

func (m *Map) Readable() bool { return len(m.Perms) > 0 && m.Perms[0] == 'r' }

func (m *Map) Executable() bool { return len(m.Perms) > 2 && m.Perms[2] == 'x' }

// File identifies the object backing a mapping. Two mappings with the same File belong to
// the same loaded object.
type File struct {
	DevMajor uint32
	DevMinor uint32
	Inode    uint64
	Path     string
}

func (m *Map) File() File {
	return File{
		DevMajor: m.DevMajor,
		DevMinor: m.DevMinor,
		Inode:    m.Inode,
		Path:     m.Pathname,
	}
}
