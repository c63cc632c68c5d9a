// Package note parses ELF note records: a sequence of self-describing records made of a
// name size, a descriptor size and a type, followed by the name and the descriptor, each
// padded to 4 bytes.
package note

import (
	"bytes"
	"encoding/binary"

	"github.com/vietanhduong/buildid/pkg/align"
	"github.com/vietanhduong/buildid/pkg/region"
)

const (
	// HeaderSize is namesz, descsz and type.
	HeaderSize = 12

	// Toolchains pad notes to 4 bytes even on 64-bit targets, whatever the
	// gABI says about 8-byte alignment.
	Align = 4

	TypeGNUBuildID uint32 = 3
	TypeGoBuildID  uint32 = 4
)

var (
	NameGNU = []byte("GNU\x00")
	NameGo  = []byte("Go\x00\x00")
)

// Note is a view over one record. It does not copy the underlying bytes.
type Note struct {
	data  []byte
	order binary.ByteOrder
}

func (n Note) NameSize() uint32 { return n.order.Uint32(n.data[0:4]) }
func (n Note) DescSize() uint32 { return n.order.Uint32(n.data[4:8]) }
func (n Note) Type() uint32     { return n.order.Uint32(n.data[8:12]) }

// Name returns the name bytes, including the trailing NUL as stored.
func (n Note) Name() []byte {
	return n.data[HeaderSize : HeaderSize+uint64(n.NameSize())]
}

// Desc returns the descriptor (payload) bytes.
func (n Note) Desc() []byte {
	start := HeaderSize + align.AlignUp(uint64(n.NameSize()), Align)
	return n.data[start : start+uint64(n.DescSize())]
}

// Len is the total length of the record including padding.
func (n Note) Len() int { return len(n.data) }

// Parse splits the first note record off data and returns it with the unconsumed rest.
// A region shorter than a header yields a *region.MissingHeaderError, and a record that
// claims more bytes than data holds yields a *region.TruncatedError.
func Parse(data []byte, order binary.ByteOrder) (Note, []byte, error) {
	if order == nil {
		order = binary.NativeEndian
	}
	if len(data) < HeaderSize {
		return Note{}, nil, &region.MissingHeaderError{Size: uint64(len(data)), Need: HeaderSize}
	}
	namesz := uint64(order.Uint32(data[0:4]))
	descsz := uint64(order.Uint32(data[4:8]))
	end := HeaderSize + align.AlignUp(namesz, Align) + align.AlignUp(descsz, Align)
	if end > uint64(len(data)) {
		return Note{}, nil, &region.TruncatedError{Have: uint64(len(data)), Need: end}
	}
	return Note{data: data[:end:end], order: order}, data[end:], nil
}

// IsGNUBuildID reports whether n is a non-empty NT_GNU_BUILD_ID note.
func IsGNUBuildID(n Note) bool {
	return n.Type() == TypeGNUBuildID && len(n.Desc()) != 0 && bytes.Equal(n.Name(), NameGNU)
}

// IsGoBuildID reports whether n is a non-empty Go build ID note.
func IsGoBuildID(n Note) bool {
	return n.Type() == TypeGoBuildID && len(n.Desc()) != 0 && bytes.Equal(n.Name(), NameGo)
}
