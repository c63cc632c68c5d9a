package macho

import (
	dmacho "debug/macho"
	"fmt"

	"github.com/vietanhduong/buildid/pkg/region"
)

// CommandScanner walks the load commands of an image. It stops after ncmds commands, at
// the end of the sizeofcmds region, or at the first malformed command.
type CommandScanner struct {
	header *Header
	cmds   region.Region
	off    uint64
	n      uint32
	cmd    Command
	err    error
}

func NewCommandScanner(data []byte) (*CommandScanner, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("parse mach-o header: %w", err)
	}
	// the declared region may not fit the data we were given
	end := min(h.Size+uint64(h.Cmdsz), uint64(len(data)))
	return &CommandScanner{
		header: h,
		cmds:   region.New(data[h.Size:end], h.ByteOrder),
	}, nil
}

func (s *CommandScanner) Header() *Header { return s.header }

func (s *CommandScanner) Next() bool {
	if s.err != nil || s.n >= s.header.Ncmd || s.off >= s.cmds.Len() {
		return false
	}

	hdr, err := s.cmds.Sub(s.off, CommandHeaderSize)
	if err != nil {
		s.err = fmt.Errorf("load command %d at 0x%x: %w", s.n, s.off, err)
		return false
	}
	o := s.cmds.Order()
	cmd := dmacho.LoadCmd(o.Uint32(hdr.Data()[0:]))
	size := o.Uint32(hdr.Data()[4:])
	if size < CommandHeaderSize {
		s.err = fmt.Errorf("%w: command %d (%s) has cmdsize %d", ErrInvalidCommand, s.n, cmd, size)
		return false
	}
	payload, err := s.cmds.Slice(s.off+CommandHeaderSize, uint64(size)-CommandHeaderSize)
	if err != nil {
		s.err = fmt.Errorf("load command %d (%s): %w", s.n, cmd, err)
		return false
	}

	s.cmd = Command{Cmd: cmd, Size: size, Data: payload}
	s.off += uint64(size)
	s.n++
	return true
}

func (s *CommandScanner) Command() Command { return s.cmd }

func (s *CommandScanner) Err() error { return s.err }
