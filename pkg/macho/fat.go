package macho

import (
	dmacho "debug/macho"
	"encoding/binary"
	"fmt"
	"runtime"

	"github.com/vietanhduong/buildid/pkg/region"
)

const (
	fatHeaderSize = 8
	fatArchSize   = 20
)

var goarchCpu = map[string]dmacho.Cpu{
	"386":   dmacho.Cpu386,
	"amd64": dmacho.CpuAmd64,
	"arm":   dmacho.CpuArm,
	"arm64": dmacho.CpuArm64,
}

// HostCpu is the Mach-O CPU type of the running program.
func HostCpu() (dmacho.Cpu, bool) {
	cpu, ok := goarchCpu[runtime.GOARCH]
	return cpu, ok
}

// Thin returns the slice of a universal binary holding the image for cpu. Thin images
// are returned unchanged.
func Thin(data []byte, cpu dmacho.Cpu) ([]byte, error) {
	r := region.New(data, binary.BigEndian)
	magic, err := r.Uint32(0)
	if err != nil || magic != dmacho.MagicFat {
		return data, nil
	}
	n, err := r.Uint32(4)
	if err != nil {
		return nil, fmt.Errorf("read fat header: %w", err)
	}
	for i := uint64(0); i < uint64(n); i++ {
		arch, err := r.Sub(fatHeaderSize+i*fatArchSize, fatArchSize)
		if err != nil {
			return nil, fmt.Errorf("read fat arch %d: %w", i, err)
		}
		b := arch.Data()
		if dmacho.Cpu(binary.BigEndian.Uint32(b[0:])) != cpu {
			continue
		}
		off := uint64(binary.BigEndian.Uint32(b[8:]))
		size := uint64(binary.BigEndian.Uint32(b[12:]))
		img, err := r.Slice(off, size)
		if err != nil {
			return nil, fmt.Errorf("read fat arch %d image: %w", i, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("no image for cpu %s in universal binary", cpu)
}
