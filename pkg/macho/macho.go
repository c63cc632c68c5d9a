// Package macho walks the load commands of a Mach-O image to find its LC_UUID.
package macho

import (
	dmacho "debug/macho"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vietanhduong/buildid/pkg/region"
)

const (
	headerSize32 = 28
	headerSize64 = 32

	// CommandHeaderSize is cmd and cmdsize. Every command's cmdsize includes it.
	CommandHeaderSize = 8

	LoadCmdUUID dmacho.LoadCmd = 0x1b
	UUIDSize                   = 16
)

var (
	ErrBadMagic       = errors.New("not a mach-o image")
	ErrInvalidCommand = errors.New("invalid load command")
)

type Header struct {
	dmacho.FileHeader
	// Size is the size of the header; load commands start right after it.
	Size      uint64
	ByteOrder binary.ByteOrder
}

// ParseHeader reads a thin Mach-O header in either byte order.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 4 {
		return nil, &region.MissingHeaderError{Size: uint64(len(data)), Need: headerSize32}
	}

	h := &Header{}
	h.ByteOrder, h.Size = byteOrder(data)
	if h.ByteOrder == nil {
		return nil, fmt.Errorf("%w: magic 0x%x", ErrBadMagic, binary.BigEndian.Uint32(data))
	}
	if uint64(len(data)) < h.Size {
		return nil, &region.MissingHeaderError{Size: uint64(len(data)), Need: h.Size}
	}

	o := h.ByteOrder
	h.FileHeader = dmacho.FileHeader{
		Magic:  o.Uint32(data[0:]),
		Cpu:    dmacho.Cpu(o.Uint32(data[4:])),
		SubCpu: o.Uint32(data[8:]),
		Type:   dmacho.Type(o.Uint32(data[12:])),
		Ncmd:   o.Uint32(data[16:]),
		Cmdsz:  o.Uint32(data[20:]),
		Flags:  o.Uint32(data[24:]),
	}
	return h, nil
}

func byteOrder(data []byte) (binary.ByteOrder, uint64) {
	for _, o := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		switch o.Uint32(data) {
		case dmacho.Magic32:
			return o, headerSize32
		case dmacho.Magic64:
			return o, headerSize64
		}
	}
	return nil, 0
}

// Command is a view over one load command.
type Command struct {
	Cmd  dmacho.LoadCmd
	Size uint32
	// Data is the payload following cmd and cmdsize.
	Data []byte
}

// FindUUID returns the payload of the first LC_UUID command of the image.
func FindUUID(data []byte) ([]byte, error) {
	s, err := NewCommandScanner(data)
	if err != nil {
		return nil, err
	}
	for s.Next() {
		c := s.Command()
		if c.Cmd != LoadCmdUUID {
			continue
		}
		if len(c.Data) < UUIDSize {
			return nil, fmt.Errorf("LC_UUID payload of %d bytes: %w", len(c.Data), &region.TruncatedError{
				Have: uint64(len(c.Data)),
				Need: UUIDSize,
			})
		}
		return c.Data[:UUIDSize:UUIDSize], nil
	}
	return nil, s.Err()
}
