package elf

import (
	delf "debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/samber/lo"

	"github.com/vietanhduong/buildid/pkg/mem"
	"github.com/vietanhduong/buildid/pkg/region"
)

const (
	header32Size = 52
	header64Size = 64
	prog32Size   = 32
	prog64Size   = 56

	// Larger counts need the section-header extension, which loaded objects
	// never use.
	maxProgs = 0xfff0
)

type Segment struct {
	Type   delf.ProgType
	Flags  delf.ProgFlag
	Off    uint64
	Vaddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Module is a loaded ELF object: the analogue of a dl_phdr_info.
type Module struct {
	Name string
	// Addr is the load bias: the difference between the addresses the object is
	// mapped at and the virtual addresses in its program headers.
	Addr uint64
	// Header is the address the ELF header is mapped at.
	Header    uint64
	Class     delf.Class
	ByteOrder binary.ByteOrder
	Segments  []Segment
}

func (m *Module) firstLoad() (Segment, bool) {
	return lo.Find(m.Segments, func(s Segment) bool { return s.Type == delf.PT_LOAD })
}

// LoadBase is the address of the first loadable segment. Modules without a PT_LOAD
// segment have no load base.
func (m *Module) LoadBase() (uint64, bool) {
	load, ok := m.firstLoad()
	if !ok {
		return 0, false
	}
	return m.Addr + load.Vaddr, true
}

func (m *Module) NoteSegments() []Segment {
	return lo.Filter(m.Segments, func(s Segment, _ int) bool { return s.Type == delf.PT_NOTE })
}

// ReadModule reads the ELF header and program headers of the object whose header is
// mapped at addr.
func ReadModule(memory mem.Memory, name string, addr uint64) (*Module, error) {
	ident, err := memory.View(addr, delf.EI_NIDENT)
	if err != nil {
		return nil, fmt.Errorf("read elf ident: %w", err)
	}
	if string(ident[:4]) != delf.ELFMAG {
		return nil, fmt.Errorf("bad elf magic %q", ident[:4])
	}

	m := &Module{Name: name, Addr: addr, Header: addr, Class: delf.Class(ident[delf.EI_CLASS])}
	switch delf.Data(ident[delf.EI_DATA]) {
	case delf.ELFDATA2LSB:
		m.ByteOrder = binary.LittleEndian
	case delf.ELFDATA2MSB:
		m.ByteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("unsupported elf data encoding %d", ident[delf.EI_DATA])
	}

	var hdrSize, progSize uint64
	switch m.Class {
	case delf.ELFCLASS32:
		hdrSize, progSize = header32Size, prog32Size
	case delf.ELFCLASS64:
		hdrSize, progSize = header64Size, prog64Size
	default:
		return nil, fmt.Errorf("unsupported elf class %s", m.Class)
	}

	raw, err := memory.View(addr, hdrSize)
	if err != nil {
		return nil, fmt.Errorf("read elf header: %w", err)
	}
	hdr := region.New(raw, m.ByteOrder)
	phoff, phentsize, phnum, err := progTable(hdr, m.Class)
	if err != nil {
		return nil, fmt.Errorf("read elf header: %w", err)
	}
	if phnum == 0 {
		return m, nil
	}
	if phentsize < progSize {
		return nil, fmt.Errorf("program header entry size %d is smaller than %d", phentsize, progSize)
	}
	if phnum > maxProgs {
		return nil, fmt.Errorf("too many program headers (%d)", phnum)
	}

	raw, err = memory.View(addr+phoff, phentsize*phnum)
	if err != nil {
		return nil, fmt.Errorf("read program headers: %w", err)
	}
	progs := region.New(raw, m.ByteOrder)
	m.Segments = make([]Segment, 0, phnum)
	for i := uint64(0); i < phnum; i++ {
		ph, err := progs.Sub(i*phentsize, progSize)
		if err != nil {
			return nil, fmt.Errorf("read program header %d: %w", i, err)
		}
		m.Segments = append(m.Segments, parseSegment(ph, m.Class))
	}

	if load, ok := m.firstLoad(); ok {
		// the header mapping is file offset 0, which the first PT_LOAD places at
		// Vaddr - Off
		m.Addr = addr + load.Off - load.Vaddr
	}
	return m, nil
}

func progTable(hdr region.Region, class delf.Class) (phoff, phentsize, phnum uint64, err error) {
	var entsize, num uint16
	if class == delf.ELFCLASS64 {
		if phoff, err = hdr.Uint64(32); err != nil {
			return
		}
		if entsize, err = hdr.Uint16(54); err != nil {
			return
		}
		num, err = hdr.Uint16(56)
	} else {
		var off32 uint32
		if off32, err = hdr.Uint32(28); err != nil {
			return
		}
		phoff = uint64(off32)
		if entsize, err = hdr.Uint16(42); err != nil {
			return
		}
		num, err = hdr.Uint16(44)
	}
	return phoff, uint64(entsize), uint64(num), err
}

// ph holds exactly one program header of the given class.
func parseSegment(ph region.Region, class delf.Class) Segment {
	b := ph.Data()
	o := ph.Order()
	if class == delf.ELFCLASS64 {
		return Segment{
			Type:   delf.ProgType(o.Uint32(b[0:])),
			Flags:  delf.ProgFlag(o.Uint32(b[4:])),
			Off:    o.Uint64(b[8:]),
			Vaddr:  o.Uint64(b[16:]),
			Filesz: o.Uint64(b[32:]),
			Memsz:  o.Uint64(b[40:]),
			Align:  o.Uint64(b[48:]),
		}
	}
	return Segment{
		Type:   delf.ProgType(o.Uint32(b[0:])),
		Off:    uint64(o.Uint32(b[4:])),
		Vaddr:  uint64(o.Uint32(b[8:])),
		Filesz: uint64(o.Uint32(b[16:])),
		Memsz:  uint64(o.Uint32(b[20:])),
		Flags:  delf.ProgFlag(o.Uint32(b[24:])),
		Align:  uint64(o.Uint32(b[28:])),
	}
}
