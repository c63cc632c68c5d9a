package macho

import (
	dmacho "debug/macho"
	"encoding/binary"
)

type command struct {
	cmd     dmacho.LoadCmd
	payload []byte
	// size overrides cmdsize when non-zero
	size uint32
}

type imageSpec struct {
	order binary.ByteOrder
	is32  bool
	cmds  []command
	// ncmds and sizeofcmds are derived from cmds unless overridden
	ncmds *uint32
	cmdsz *uint32
	// trailer is appended after the commands without being counted
	trailer []byte
}

func u32(v uint32) *uint32 { return &v }

func buildImage(spec imageSpec) []byte {
	o := spec.order
	if o == nil {
		o = binary.LittleEndian
	}
	var body []byte
	for _, c := range spec.cmds {
		size := c.size
		if size == 0 {
			size = uint32(CommandHeaderSize + len(c.payload))
		}
		b := make([]byte, CommandHeaderSize)
		o.PutUint32(b[0:], uint32(c.cmd))
		o.PutUint32(b[4:], size)
		body = append(append(body, b...), c.payload...)
	}

	ncmds, cmdsz := uint32(len(spec.cmds)), uint32(len(body))
	if spec.ncmds != nil {
		ncmds = *spec.ncmds
	}
	if spec.cmdsz != nil {
		cmdsz = *spec.cmdsz
	}

	magic, size := uint32(dmacho.Magic64), headerSize64
	if spec.is32 {
		magic, size = dmacho.Magic32, headerSize32
	}
	hdr := make([]byte, size)
	o.PutUint32(hdr[0:], magic)
	o.PutUint32(hdr[4:], uint32(dmacho.CpuArm64))
	o.PutUint32(hdr[12:], uint32(dmacho.TypeExec))
	o.PutUint32(hdr[16:], ncmds)
	o.PutUint32(hdr[20:], cmdsz)
	return append(append(hdr, body...), spec.trailer...)
}

func uuidCommand(id []byte) command {
	return command{cmd: LoadCmdUUID, payload: id}
}

// buildFat wraps thin images into a universal binary, one per cpu.
func buildFat(arches map[dmacho.Cpu][]byte, order []dmacho.Cpu) []byte {
	o := binary.BigEndian
	out := o.AppendUint32(nil, dmacho.MagicFat)
	out = o.AppendUint32(out, uint32(len(order)))
	off := uint32(fatHeaderSize + fatArchSize*len(order))
	for _, cpu := range order {
		out = o.AppendUint32(out, uint32(cpu))
		out = o.AppendUint32(out, 0)
		out = o.AppendUint32(out, off)
		out = o.AppendUint32(out, uint32(len(arches[cpu])))
		out = o.AppendUint32(out, 0)
		off += uint32(len(arches[cpu]))
	}
	for _, cpu := range order {
		out = append(out, arches[cpu]...)
	}
	return out
}
