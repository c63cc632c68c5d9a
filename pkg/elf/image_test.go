package elf

import (
	delf "debug/elf"
	"encoding/binary"

	"github.com/vietanhduong/buildid/pkg/note"
)

const (
	imageSize   = 0x1000
	notesOff    = 0x100
	sectionOff  = 0x200
	shstrtabOff = 0x300
	shdrOff     = 0x400
)

type imageSpec struct {
	class   delf.Class
	order   binary.ByteOrder
	vaddr   uint64
	notes   []byte
	noLoad  bool
	noNotes bool
	// sectionNotes are placed in a SHT_NOTE section inside the first PT_LOAD that no
	// PT_NOTE covers, the way the Go linker lays out .note.gnu.build-id.
	sectionNotes []byte
}

// buildImage lays out an ELF header, its program headers and a note segment the way a
// linker places them at the start of the first PT_LOAD.
func buildImage(spec imageSpec) []byte {
	if spec.class == delf.ELFCLASSNONE {
		spec.class = delf.ELFCLASS64
	}
	if spec.order == nil {
		spec.order = binary.LittleEndian
	}
	o := spec.order
	img := make([]byte, imageSize)
	copy(img, delf.ELFMAG)
	img[delf.EI_CLASS] = byte(spec.class)
	if o == binary.LittleEndian {
		img[delf.EI_DATA] = byte(delf.ELFDATA2LSB)
	} else {
		img[delf.EI_DATA] = byte(delf.ELFDATA2MSB)
	}
	img[delf.EI_VERSION] = byte(delf.EV_CURRENT)
	o.PutUint32(img[20:], uint32(delf.EV_CURRENT))

	type phdr struct {
		typ                delf.ProgType
		off, vaddr, filesz uint64
		flags              delf.ProgFlag
	}
	var progs []phdr
	if !spec.noLoad {
		progs = append(progs, phdr{delf.PT_LOAD, 0, spec.vaddr, imageSize, delf.PF_R | delf.PF_X})
	}
	if !spec.noNotes {
		progs = append(progs, phdr{delf.PT_NOTE, notesOff, spec.vaddr + notesOff, uint64(len(spec.notes)), delf.PF_R})
	}
	copy(img[notesOff:], spec.notes)
	if spec.sectionNotes != nil {
		writeSections(img, spec)
	}

	if spec.class == delf.ELFCLASS64 {
		o.PutUint16(img[16:], uint16(delf.ET_DYN))
		o.PutUint64(img[32:], header64Size)
		o.PutUint16(img[52:], header64Size)
		o.PutUint16(img[54:], prog64Size)
		o.PutUint16(img[56:], uint16(len(progs)))
		for i, p := range progs {
			b := img[header64Size+i*prog64Size:]
			o.PutUint32(b[0:], uint32(p.typ))
			o.PutUint32(b[4:], uint32(p.flags))
			o.PutUint64(b[8:], p.off)
			o.PutUint64(b[16:], p.vaddr)
			o.PutUint64(b[24:], p.vaddr)
			o.PutUint64(b[32:], p.filesz)
			o.PutUint64(b[40:], p.filesz)
			o.PutUint64(b[48:], 4)
		}
		return img
	}

	o.PutUint16(img[16:], uint16(delf.ET_DYN))
	o.PutUint32(img[28:], header32Size)
	o.PutUint16(img[40:], header32Size)
	o.PutUint16(img[42:], prog32Size)
	o.PutUint16(img[44:], uint16(len(progs)))
	for i, p := range progs {
		b := img[header32Size+i*prog32Size:]
		o.PutUint32(b[0:], uint32(p.typ))
		o.PutUint32(b[4:], uint32(p.off))
		o.PutUint32(b[8:], uint32(p.vaddr))
		o.PutUint32(b[12:], uint32(p.vaddr))
		o.PutUint32(b[16:], uint32(p.filesz))
		o.PutUint32(b[20:], uint32(p.filesz))
		o.PutUint32(b[24:], uint32(p.flags))
		o.PutUint32(b[28:], 4)
	}
	return img
}

func encodeNote(order binary.ByteOrder, typ uint32, name, desc []byte) []byte {
	pad := func(b []byte) []byte {
		for len(b)%note.Align != 0 {
			b = append(b, 0)
		}
		return b
	}
	out := make([]byte, note.HeaderSize)
	order.PutUint32(out[0:], uint32(len(name)))
	order.PutUint32(out[4:], uint32(len(desc)))
	order.PutUint32(out[8:], typ)
	out = append(out, pad(append([]byte(nil), name...))...)
	return append(out, pad(append([]byte(nil), desc...))...)
}

func gnuNote(order binary.ByteOrder, id []byte) []byte {
	return encodeNote(order, note.TypeGNUBuildID, note.NameGNU, id)
}

var shstrtab = []byte("\x00.note.gnu.build-id\x00.shstrtab\x00")

// writeSections adds a null section, the note section and the section name table.
func writeSections(img []byte, spec imageSpec) {
	o := spec.order
	copy(img[sectionOff:], spec.sectionNotes)
	copy(img[shstrtabOff:], shstrtab)

	type shdr struct {
		name, typ       uint32
		flags           uint64
		addr, off, size uint64
	}
	shdrs := []shdr{
		{},
		{1, uint32(delf.SHT_NOTE), uint64(delf.SHF_ALLOC), spec.vaddr + sectionOff, sectionOff, uint64(len(spec.sectionNotes))},
		{20, uint32(delf.SHT_STRTAB), 0, 0, shstrtabOff, uint64(len(shstrtab))},
	}

	if spec.class == delf.ELFCLASS64 {
		o.PutUint64(img[40:], shdrOff)
		o.PutUint16(img[58:], 64)
		o.PutUint16(img[60:], uint16(len(shdrs)))
		o.PutUint16(img[62:], 2)
		for i, sh := range shdrs {
			b := img[shdrOff+i*64:]
			o.PutUint32(b[0:], sh.name)
			o.PutUint32(b[4:], sh.typ)
			o.PutUint64(b[8:], sh.flags)
			o.PutUint64(b[16:], sh.addr)
			o.PutUint64(b[24:], sh.off)
			o.PutUint64(b[32:], sh.size)
			o.PutUint64(b[48:], 1)
		}
		return
	}

	o.PutUint32(img[32:], shdrOff)
	o.PutUint16(img[46:], 40)
	o.PutUint16(img[48:], uint16(len(shdrs)))
	o.PutUint16(img[50:], 2)
	for i, sh := range shdrs {
		b := img[shdrOff+i*40:]
		o.PutUint32(b[0:], sh.name)
		o.PutUint32(b[4:], sh.typ)
		o.PutUint32(b[8:], uint32(sh.flags))
		o.PutUint32(b[12:], uint32(sh.addr))
		o.PutUint32(b[16:], uint32(sh.off))
		o.PutUint32(b[20:], uint32(sh.size))
		o.PutUint32(b[32:], 1)
	}
}
