package elf

import (
	delf "debug/elf"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/golang/glog"

	"github.com/vietanhduong/buildid/pkg/mem"
	"github.com/vietanhduong/buildid/pkg/note"
	"github.com/vietanhduong/buildid/pkg/proc"
)

var ErrResolution = errors.New("unable to resolve own module")

// Locator finds the GNU build ID of the loaded ELF object that contains a code address,
// by default the object containing the locator itself.
type Locator struct {
	// Maps returns the mappings of the current process. Defaults to /proc/self/maps.
	Maps func() ([]*proc.Map, error)
	// Memory builds the view used to read loaded objects. Defaults to in-place reads.
	Memory func(maps []*proc.Map) (mem.Memory, error)
	// Addr is a code address inside the object to inspect. Zero means the locator's own
	// code.
	Addr uint64
	// GoFallback returns the Go build ID note when the object has no GNU build ID.
	GoFallback bool
}

// Find returns the build ID or nil when the object has none. Errors report why the
// object could not be inspected.
func (l *Locator) Find() (id []byte, err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			id, err = nil, fmt.Errorf("fault while reading loaded objects: %w", rerr)
		}
	}()

	maps, err := l.maps()
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}

	addr := l.Addr
	if addr == 0 {
		pc, _, _, ok := runtime.Caller(0)
		if !ok {
			return nil, fmt.Errorf("%w: no caller pc", ErrResolution)
		}
		addr = uint64(pc)
	}
	header, err := proc.Resolve(maps, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	memory, err := l.memory(maps)
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}
	if c, ok := memory.(io.Closer); ok {
		defer c.Close()
	}

	it := NewModuleIterator(maps, memory)
	for it.Next() {
		m := it.Module()
		base, ok := m.LoadBase()
		if !ok {
			glog.V(2).Infof("No PT_LOAD segment found in object %s, skipping", m.Name)
			continue
		}
		if base != header.StartAddr {
			glog.V(3).Infof("Object %s base 0x%x != 0x%x, skipping", m.Name, base, header.StartAddr)
			continue
		}
		return l.findNote(memory, m), nil
	}
	glog.V(1).Infof("No loaded object has base 0x%x (%s)", header.StartAddr, header.Pathname)
	return nil, nil
}

func (l *Locator) findNote(memory mem.Memory, m *Module) []byte {
	var goID []byte
	scan := func(addr, size uint64, what string) []byte {
		data, err := memory.View(addr, size)
		if err != nil {
			glog.Warningf("Failed to read %s at 0x%x of %s: %v", what, addr, m.Name, err)
			return nil
		}
		s := note.NewScanner(data, m.ByteOrder)
		for s.Next() {
			n := s.Note()
			if note.IsGNUBuildID(n) {
				return n.Desc()
			}
			if l.GoFallback && goID == nil && note.IsGoBuildID(n) {
				goID = n.Desc()
			}
		}
		if err := s.Err(); err != nil {
			glog.V(2).Infof("The %s at 0x%x of %s has invalid note: %v", what, addr, m.Name, err)
		}
		return nil
	}

	for _, seg := range m.NoteSegments() {
		if id := scan(m.Addr+seg.Vaddr, seg.Filesz, "note segment"); id != nil {
			return id
		}
	}
	// the Go linker places .note.gnu.build-id in the text segment without a PT_NOTE
	for _, sec := range noteSections(m.Name) {
		if id := scan(m.Addr+sec.Addr, sec.Size, "note section "+sec.Name); id != nil {
			return id
		}
	}
	if goID != nil {
		glog.V(1).Infof("No GNU build ID in %s, using Go build ID", m.Name)
	}
	return goID
}

// noteSections returns the allocated SHT_NOTE sections of the object file at path. Section
// headers are not loaded, so they are read from the file.
func noteSections(path string) []delf.SectionHeader {
	f, err := delf.Open(path)
	if err != nil {
		glog.V(2).Infof("Failed to open %s for section headers: %v", path, err)
		return nil
	}
	defer f.Close()

	var out []delf.SectionHeader
	for _, s := range f.Sections {
		if s.Type == delf.SHT_NOTE && s.Flags&delf.SHF_ALLOC != 0 && s.Size > 0 {
			out = append(out, s.SectionHeader)
		}
	}
	return out
}

func (l *Locator) maps() ([]*proc.Map, error) {
	if l.Maps != nil {
		return l.Maps()
	}
	return proc.ParseSelfMaps()
}

func (l *Locator) memory(maps []*proc.Map) (mem.Memory, error) {
	if l.Memory != nil {
		return l.Memory(maps)
	}
	return mem.NewSelf(maps), nil
}
