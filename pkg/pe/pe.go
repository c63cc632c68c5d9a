// Package pe walks the debug directory of a loaded PE image to find its CodeView record.
// All addresses inside the image are RVAs, that is offsets from the image base.
package pe

import (
	"bytes"
	dpe "debug/pe"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/vietanhduong/buildid/pkg/region"
)

const (
	lfanewOffset   = 0x3c
	fileHeaderSize = 20

	optionalMagic32 = 0x10b
	optionalMagic64 = 0x20b

	DebugDirectorySize = 28
	DebugTypeCodeView  = 2

	codeViewHeaderSize = 24
	GUIDSize           = 16
)

var (
	dosMagic      = []byte("MZ")
	peSignature   = []byte("PE\x00\x00")
	rsdsSignature = []byte("RSDS")

	ErrBadMagic = errors.New("not a pe image")
)

// DebugDirectory is an IMAGE_DEBUG_DIRECTORY entry.
type DebugDirectory struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             uint32
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

func parseDebugDirectory(r region.Region) DebugDirectory {
	b, o := r.Data(), r.Order()
	return DebugDirectory{
		Characteristics:  o.Uint32(b[0:]),
		TimeDateStamp:    o.Uint32(b[4:]),
		MajorVersion:     o.Uint16(b[8:]),
		MinorVersion:     o.Uint16(b[10:]),
		Type:             o.Uint32(b[12:]),
		SizeOfData:       o.Uint32(b[16:]),
		AddressOfRawData: o.Uint32(b[20:]),
		PointerToRawData: o.Uint32(b[24:]),
	}
}

// CodeView is an RSDS record: the identity of the PDB matching the image.
type CodeView struct {
	GUID []byte
	Age  uint32
	Path string
}

// GUIDString formats the GUID the way Windows does, with the first three groups stored
// little-endian.
func (c *CodeView) GUIDString() string {
	if len(c.GUID) != GUIDSize {
		return ""
	}
	g := c.GUID
	return fmt.Sprintf("%08X-%04X-%04X-%X-%X",
		binary.LittleEndian.Uint32(g[0:]),
		binary.LittleEndian.Uint16(g[4:]),
		binary.LittleEndian.Uint16(g[6:]),
		g[8:10],
		g[10:])
}

// FileHeader reads the DOS header, the PE signature and the COFF file header. It returns
// the offset of the optional header.
func FileHeader(image []byte) (*dpe.FileHeader, uint64, error) {
	r := region.New(image, binary.LittleEndian)
	magic, err := r.Slice(0, uint64(len(dosMagic)))
	if err != nil {
		return nil, 0, fmt.Errorf("read dos header: %w", err)
	}
	if !bytes.Equal(magic, dosMagic) {
		return nil, 0, fmt.Errorf("%w: dos magic %q", ErrBadMagic, magic)
	}
	lfanew, err := r.Uint32(lfanewOffset)
	if err != nil {
		return nil, 0, fmt.Errorf("read dos header: %w", err)
	}
	sig, err := r.Slice(uint64(lfanew), uint64(len(peSignature)))
	if err != nil {
		return nil, 0, fmt.Errorf("read pe signature: %w", err)
	}
	if !bytes.Equal(sig, peSignature) {
		return nil, 0, fmt.Errorf("%w: pe signature %q", ErrBadMagic, sig)
	}

	off := uint64(lfanew) + uint64(len(peSignature))
	fh, err := r.Sub(off, fileHeaderSize)
	if err != nil {
		return nil, 0, fmt.Errorf("read file header: %w", err)
	}
	b := fh.Data()
	return &dpe.FileHeader{
		Machine:              binary.LittleEndian.Uint16(b[0:]),
		NumberOfSections:     binary.LittleEndian.Uint16(b[2:]),
		TimeDateStamp:        binary.LittleEndian.Uint32(b[4:]),
		PointerToSymbolTable: binary.LittleEndian.Uint32(b[8:]),
		NumberOfSymbols:      binary.LittleEndian.Uint32(b[12:]),
		SizeOfOptionalHeader: binary.LittleEndian.Uint16(b[16:]),
		Characteristics:      binary.LittleEndian.Uint16(b[18:]),
	}, off + fileHeaderSize, nil
}

// DebugDataDirectory returns the debug entry of the data directory table. A zero Size
// means the image has no debug directory.
func DebugDataDirectory(image []byte) (dpe.DataDirectory, error) {
	fh, off, err := FileHeader(image)
	if err != nil {
		return dpe.DataDirectory{}, err
	}
	if fh.SizeOfOptionalHeader == 0 {
		glog.V(2).Info("PE image has no optional header")
		return dpe.DataDirectory{}, nil
	}

	opt, err := region.New(image, binary.LittleEndian).Sub(off, uint64(fh.SizeOfOptionalHeader))
	if err != nil {
		return dpe.DataDirectory{}, fmt.Errorf("read optional header: %w", err)
	}
	magic, err := opt.Uint16(0)
	if err != nil {
		return dpe.DataDirectory{}, fmt.Errorf("read optional header: %w", err)
	}
	var countOff, dirsOff uint64
	switch magic {
	case optionalMagic32:
		countOff, dirsOff = 92, 96
	case optionalMagic64:
		countOff, dirsOff = 108, 112
	default:
		return dpe.DataDirectory{}, fmt.Errorf("%w: optional header magic 0x%x", ErrBadMagic, magic)
	}
	count, err := opt.Uint32(countOff)
	if err != nil {
		return dpe.DataDirectory{}, fmt.Errorf("read optional header: %w", err)
	}
	if count <= dpe.IMAGE_DIRECTORY_ENTRY_DEBUG {
		glog.V(2).Infof("PE image has %d data directories, no debug entry", count)
		return dpe.DataDirectory{}, nil
	}
	dir, err := opt.Sub(dirsOff+dpe.IMAGE_DIRECTORY_ENTRY_DEBUG*8, 8)
	if err != nil {
		return dpe.DataDirectory{}, fmt.Errorf("read debug data directory: %w", err)
	}
	return dpe.DataDirectory{
		VirtualAddress: binary.LittleEndian.Uint32(dir.Data()[0:]),
		Size:           binary.LittleEndian.Uint32(dir.Data()[4:]),
	}, nil
}

// FindCodeView returns the first CodeView record of the debug directory, or nil when the
// image has none. With firstEntryOnly only the first directory entry is considered.
func FindCodeView(image []byte, firstEntryOnly bool) (*CodeView, error) {
	dd, err := DebugDataDirectory(image)
	if err != nil {
		return nil, err
	}
	if dd.Size == 0 {
		return nil, nil
	}

	r := region.New(image, binary.LittleEndian)
	n := uint64(dd.Size) / DebugDirectorySize
	for i := uint64(0); i < n; i++ {
		raw, err := r.Sub(uint64(dd.VirtualAddress)+i*DebugDirectorySize, DebugDirectorySize)
		if err != nil {
			return nil, fmt.Errorf("read debug directory entry %d: %w", i, err)
		}
		entry := parseDebugDirectory(raw)
		if entry.Type == DebugTypeCodeView {
			return parseCodeView(r, entry)
		}
		if firstEntryOnly {
			break
		}
	}
	return nil, nil
}

func parseCodeView(image region.Region, entry DebugDirectory) (*CodeView, error) {
	if entry.AddressOfRawData == 0 {
		// debug data that is not mapped with the image
		glog.V(2).Info("CodeView entry is not mapped")
		return nil, nil
	}
	data, err := image.Sub(uint64(entry.AddressOfRawData), uint64(entry.SizeOfData))
	if err != nil {
		return nil, fmt.Errorf("read codeview record: %w", err)
	}
	sig, err := data.Slice(0, uint64(len(rsdsSignature)))
	if err != nil {
		return nil, fmt.Errorf("read codeview signature: %w", err)
	}
	if !bytes.Equal(sig, rsdsSignature) {
		return nil, fmt.Errorf("codeview signature %q: %w", sig, region.ErrSignatureMismatch)
	}
	guid, err := data.Slice(4, GUIDSize)
	if err != nil {
		return nil, fmt.Errorf("read codeview guid: %w", err)
	}
	age, err := data.Uint32(4 + GUIDSize)
	if err != nil {
		return nil, fmt.Errorf("read codeview age: %w", err)
	}
	path, _ := data.Tail(codeViewHeaderSize)
	name, _, _ := bytes.Cut(path.Data(), []byte{0})
	return &CodeView{GUID: guid, Age: age, Path: string(name)}, nil
}
